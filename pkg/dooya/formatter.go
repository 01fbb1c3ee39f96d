// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dooya

import (
	"fmt"
	"strings"
	"time"
)

// FormatFrame formats a frame into a human-readable line
func FormatFrame(f Frame, at time.Time) string {
	timestamp := at.Format("15:04:05.000")
	return fmt.Sprintf("[%s] %s (0x%02X) addr=%s %s crc=0x%04X\n",
		timestamp, FormatFunction(f.function), uint8(f.function), f.address, formatArguments(f), f.crc)
}

// FormatFunction returns the human-readable name for a function code
func FormatFunction(fn FunctionCode) string {
	switch fn {
	case FuncRead:
		return "READ"
	case FuncWrite:
		return "WRITE"
	case FuncControl:
		return "CONTROL"
	case FuncProgramAddress:
		return "PROGRAM_ADDRESS"
	default:
		return "UNKNOWN"
	}
}

// FormatRegister returns the human-readable name for a register
func FormatRegister(reg Register) string {
	switch reg {
	case RegStatus:
		return "STATUS"
	case RegAddressHigh:
		return "ADDR_HIGH"
	case RegPercent:
		return "PERCENT"
	case RegDirection:
		return "DIRECTION"
	case RegHandle:
		return "HANDLE"
	case RegMotorStatus:
		return "MOTOR_STATUS"
	case RegSwitchPassive:
		return "SWITCH_PASSIVE"
	case RegSwitchActive:
		return "SWITCH_ACTIVE"
	case RegVersion:
		return "VERSION"
	default:
		return fmt.Sprintf("REG_0x%02X", uint8(reg))
	}
}

// FormatControl returns the human-readable name for a control sub-command
func FormatControl(cmd ControlCommand) string {
	switch cmd {
	case CmdOpen:
		return "OPEN"
	case CmdClose:
		return "CLOSE"
	case CmdStop:
		return "STOP"
	case CmdPercent:
		return "PERCENT"
	case CmdDelete:
		return "DELETE"
	case CmdReset:
		return "RESET"
	default:
		return fmt.Sprintf("CMD_0x%02X", uint8(cmd))
	}
}

func formatArguments(f Frame) string {
	switch f.function {
	case FuncRead, FuncWrite:
		return fmt.Sprintf("reg=%s value=0x%02X", FormatRegister(Register(f.echo)), f.data)
	case FuncControl:
		cmd := ControlCommand(f.echo)
		if cmd == CmdPercent {
			return fmt.Sprintf("cmd=%s target=%d%%", FormatControl(cmd), f.data)
		}
		return fmt.Sprintf("cmd=%s", FormatControl(cmd))
	case FuncProgramAddress:
		return fmt.Sprintf("new=%s", Address{Low: f.echo, High: f.data})
	default:
		return fmt.Sprintf("b4=0x%02X b5=0x%02X", f.echo, f.data)
	}
}

// FormatState formats a decoded state into a multi-line summary
func FormatState(s DeviceState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Position:       %s\n", s.Position)
	fmt.Fprintf(&b, "  Motor:          %s\n", s.Motor)
	fmt.Fprintf(&b, "  Active switch:  %s\n", s.ActiveSwitch)
	fmt.Fprintf(&b, "  Passive switch: %s\n", s.PassiveSwitch)
	fmt.Fprintf(&b, "  Handle:         %s\n", s.Handle)
	fmt.Fprintf(&b, "  Firmware:       0x%02X\n", s.Firmware)
	return b.String()
}

// FormatHex returns bytes as space-separated upper-case hex
func FormatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
