// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dooya

import "fmt"

// Position is the curtain position in percent, or PositionUncalibrated
type Position uint8

// Calibrated reports whether the motor has learned its stroke
func (p Position) Calibrated() bool {
	return p != PositionUncalibrated
}

// Percent returns the position and whether it is a usable percentage
func (p Position) Percent() (int, bool) {
	if !p.Calibrated() || p > PositionMax {
		return 0, false
	}
	return int(p), true
}

// String returns "50%" or "uncalibrated"
func (p Position) String() string {
	if !p.Calibrated() {
		return "uncalibrated"
	}
	return fmt.Sprintf("%d%%", uint8(p))
}

// MotorStatus represents the motor state reported by the device
type MotorStatus uint8

// Motor status values
const (
	MotorStopped MotorStatus = 0x00
	MotorRunning MotorStatus = 0x01
	MotorError   MotorStatus = 0x02
	MotorUnknown MotorStatus = 0x03
)

func (m MotorStatus) String() string {
	switch m {
	case MotorStopped:
		return "stopped"
	case MotorRunning:
		return "running"
	case MotorError:
		return "error"
	default:
		return fmt.Sprintf("unknown(0x%02X)", uint8(m))
	}
}

// SwitchStatus represents an active or passive switch input
type SwitchStatus uint8

// Switch status values
const (
	SwitchNormal    SwitchStatus = 0x00
	SwitchTriggered SwitchStatus = 0x01
)

func (s SwitchStatus) String() string {
	if s == SwitchNormal {
		return "normal"
	}
	return "triggered"
}

// HandleStatus represents the manual pull-handle input
type HandleStatus uint8

// Handle status values
const (
	HandleNormal   HandleStatus = 0x00
	HandleOperated HandleStatus = 0x01
)

func (h HandleStatus) String() string {
	if h == HandleNormal {
		return "normal"
	}
	return "operated"
}

// DeviceState is the decoded state of one motor.
// It is a plain value; every successful read produces a fresh one.
type DeviceState struct {
	Position      Position
	Motor         MotorStatus
	ActiveSwitch  SwitchStatus
	PassiveSwitch SwitchStatus
	Handle        HandleStatus
	Firmware      uint8
	Direction     uint8 // only populated by a full register read
}

// DecodeStatus maps a status response to a DeviceState.
// Byte 5 is the position; byte 4 is the status byte.
func DecodeStatus(f Frame) DeviceState {
	status := f.echo
	s := DeviceState{
		Position: Position(f.data),
		Motor:    MotorStatus(status & statusMotorMask),
		Firmware: status >> statusFirmwareShift,
	}
	if status&statusActiveSwitch != 0 {
		s.ActiveSwitch = SwitchTriggered
	}
	if status&statusPassiveSwitch != 0 {
		s.PassiveSwitch = SwitchTriggered
	}
	if status&statusHandle != 0 {
		s.Handle = HandleOperated
	}
	return s
}

// EncodeStatus builds the status byte for a state. It is the inverse of the
// byte-4 mapping in DecodeStatus and is used by device simulators.
func EncodeStatus(s DeviceState) byte {
	b := byte(s.Motor) & statusMotorMask
	if s.ActiveSwitch != SwitchNormal {
		b |= statusActiveSwitch
	}
	if s.PassiveSwitch != SwitchNormal {
		b |= statusPassiveSwitch
	}
	if s.Handle != HandleNormal {
		b |= statusHandle
	}
	return b | s.Firmware<<statusFirmwareShift
}

// ApplyRegister folds a single-register read into s and returns the result
func ApplyRegister(s DeviceState, reg Register, value byte) DeviceState {
	switch reg {
	case RegPercent:
		s.Position = Position(value)
	case RegDirection:
		s.Direction = value
	case RegHandle:
		s.Handle = HandleStatus(value)
	case RegMotorStatus:
		s.Motor = MotorStatus(value)
	case RegSwitchPassive:
		s.PassiveSwitch = SwitchStatus(value)
	case RegSwitchActive:
		s.ActiveSwitch = SwitchStatus(value)
	case RegVersion:
		s.Firmware = value
	}
	return s
}

// StateRegisters lists the registers read by a full per-register status read
var StateRegisters = []Register{
	RegPercent,
	RegMotorStatus,
	RegHandle,
	RegSwitchActive,
	RegSwitchPassive,
	RegDirection,
	RegVersion,
}
