// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dooya implements the Dooya RS485 curtain motor protocol.
//
// Every message on the bus, request or response, is a fixed 8-byte frame:
//
//	[0] start code 0x55
//	[1] device address low
//	[2] device address high
//	[3] function code
//	[4] echo/status byte
//	[5] data byte
//	[6] CRC16 low
//	[7] CRC16 high
//
// The CRC is CRC16/Modbus over bytes 0..5. Motors silently drop frames with a
// bad CRC, so callers must treat silence as a timeout rather than a protocol
// error. This package provides frame encoding/decoding, stream framing,
// status decoding, validation and formatting.
package dooya

// Protocol framing
const (
	StartByte = 0x55
	FrameSize = 8
	crcOffset = 6
)

// CRC-16/Modbus configuration (reflected form of 0x8005)
const (
	crcPolynomial = 0xA001
	crcInitial    = 0xFFFF
)

// FunctionCode identifies the operation carried by a frame.
type FunctionCode uint8

// Function codes
const (
	FuncRead           FunctionCode = 0x01
	FuncWrite          FunctionCode = 0x02
	FuncControl        FunctionCode = 0x03
	FuncProgramAddress FunctionCode = 0x04
)

// Valid reports whether f is one of the four defined function codes.
func (f FunctionCode) Valid() bool {
	return f >= FuncRead && f <= FuncProgramAddress
}

// Register identifies a read/write data address on the motor.
type Register uint8

// Registers
const (
	RegStatus        Register = 0x00 // packed status snapshot; also address low on write
	RegAddressHigh   Register = 0x01
	RegPercent       Register = 0x02
	RegDirection     Register = 0x03
	RegHandle        Register = 0x04
	RegMotorStatus   Register = 0x05
	RegSwitchPassive Register = 0x27
	RegSwitchActive  Register = 0x28
	RegVersion       Register = 0xFE
)

// RegAddressLow shares the data address of the status snapshot.
const RegAddressLow = RegStatus

// ControlCommand is the sub-command carried in byte 4 of a control frame.
type ControlCommand uint8

// Control sub-commands
const (
	CmdOpen    ControlCommand = 0x01
	CmdClose   ControlCommand = 0x02
	CmdStop    ControlCommand = 0x03
	CmdPercent ControlCommand = 0x04
	CmdDelete  ControlCommand = 0x07
	CmdReset   ControlCommand = 0x08
)

// Special address bytes
const (
	AddressByteNone      = 0x00
	AddressByteBroadcast = 0xFF
	AddressByteFactory   = 0xFE
)

// Status byte layout (byte 4 of a status response)
const (
	statusMotorMask     = 0x03
	statusActiveSwitch  = 0x04
	statusPassiveSwitch = 0x08
	statusHandle        = 0x10
	statusFirmwareShift = 5
)

// Position limits
const (
	PositionMax          = 100
	PositionUncalibrated = 0xFF
)
