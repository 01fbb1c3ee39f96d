// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dooya

// Request builder functions create Frames ready for encoding.
// These wrap NewFrame so that callers never have to remember which byte
// carries the register, sub-command or value for a given function.

// readLength is the data-length byte the motor expects on single-register reads
const readLength = 0x01

// NewStatusRequest creates a packed status read (function 0x01, register 0x00).
// The response carries the status byte in byte 4 and the position in byte 5.
func NewStatusRequest(addr Address) Frame {
	return NewFrame(addr, FuncRead, byte(RegStatus), 0x00)
}

// NewReadRequest creates a single-register read.
// The motor answers with the register value in byte 5.
func NewReadRequest(addr Address, reg Register) Frame {
	return NewFrame(addr, FuncRead, byte(reg), readLength)
}

// NewWriteRequest creates a single-register write
func NewWriteRequest(addr Address, reg Register, value byte) Frame {
	return NewFrame(addr, FuncWrite, byte(reg), value)
}

// NewControlRequest creates a control frame (open, close, stop, delete, reset)
func NewControlRequest(addr Address, cmd ControlCommand) Frame {
	return NewFrame(addr, FuncControl, byte(cmd), 0x00)
}

// NewPositionRequest creates a move-to-percent control frame.
// The caller is responsible for keeping percent within 0..100.
func NewPositionRequest(addr Address, percent uint8) Frame {
	return NewFrame(addr, FuncControl, byte(CmdPercent), percent)
}

// NewProgramAddressRequest creates the frame that assigns newAddr to the motor
// currently in programming mode.
func NewProgramAddressRequest(addr Address, newAddr Address) Frame {
	return NewFrame(addr, FuncProgramAddress, newAddr.Low, newAddr.High)
}

// IsProgrammingRequest reports whether f is the request a motor broadcasts
// after its button has been held and the LED flashed twice.
func IsProgrammingRequest(f Frame) bool {
	return f.function == FuncProgramAddress && f.address == FactoryAddress && f.echo == 0x01
}
