// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dooya

// Frame represents one decoded 8-byte protocol frame.
// Frames are immutable values; accessors return copies.
type Frame struct {
	address  Address
	function FunctionCode
	echo     byte
	data     byte
	crc      uint16
}

// NewFrame creates a frame from its fields. The CRC is computed automatically.
func NewFrame(addr Address, fn FunctionCode, echo, data byte) Frame {
	f := Frame{address: addr, function: fn, echo: echo, data: data}
	raw := f.header()
	f.crc = CalculateCRC(raw[:])
	return f
}

func (f Frame) header() [crcOffset]byte {
	return [crcOffset]byte{StartByte, f.address.Low, f.address.High, byte(f.function), f.echo, f.data}
}

// Address returns the frame's device address
func (f Frame) Address() Address {
	return f.address
}

// Function returns the frame's function code
func (f Frame) Function() FunctionCode {
	return f.function
}

// Echo returns byte 4 (register, sub-command or status byte)
func (f Frame) Echo() byte {
	return f.echo
}

// Data returns byte 5
func (f Frame) Data() byte {
	return f.data
}

// CRC returns the frame's CRC value
func (f Frame) CRC() uint16 {
	return f.crc
}

// Bytes returns the wire representation of the frame
func (f Frame) Bytes() []byte {
	h := f.header()
	out := make([]byte, FrameSize)
	copy(out, h[:])
	out[crcOffset] = byte(f.crc)
	out[crcOffset+1] = byte(f.crc >> 8)
	return out
}
