// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dooya

// Encode assembles a wire-formatted frame ready for transmission.
// The CRC is computed over bytes 0..5 and appended low byte first.
func Encode(addr Address, fn FunctionCode, echo, data byte) []byte {
	return NewFrame(addr, fn, echo, data).Bytes()
}

// EncodeFrame encodes an existing Frame back to wire format
func EncodeFrame(f Frame) []byte {
	return f.Bytes()
}
