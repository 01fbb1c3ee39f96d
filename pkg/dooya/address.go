// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dooya

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is the two-byte logical address of a motor on the bus
type Address struct {
	Low  uint8
	High uint8
}

// FactoryAddress is the address every motor ships with
var FactoryAddress = Address{Low: AddressByteFactory, High: AddressByteFactory}

// ProgrammingAddress is used as the target while the motor is in programming mode
var ProgrammingAddress = Address{Low: AddressByteNone, High: AddressByteNone}

// NewAddress creates an address from its low and high bytes
func NewAddress(low, high uint8) Address {
	return Address{Low: low, High: high}
}

// ValidProgrammingTarget reports whether the address may be assigned to a motor.
// Neither byte may be 0x00 or 0xFF.
func (a Address) ValidProgrammingTarget() bool {
	return validAddressByte(a.Low) && validAddressByte(a.High)
}

func validAddressByte(b uint8) bool {
	return b != AddressByteNone && b != AddressByteBroadcast
}

// String returns the address as 0xHHLL, high byte first as printed on labels
func (a Address) String() string {
	return fmt.Sprintf("0x%02X%02X", a.High, a.Low)
}

// ParseAddress parses "0xHHLL" (four hex digits, high byte first) or
// "low,high" where each byte is decimal or 0x-prefixed hex.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if low, high, ok := strings.Cut(s, ","); ok {
		l, err := ParseByte(low)
		if err != nil {
			return Address{}, fmt.Errorf("invalid low byte: %w", err)
		}
		h, err := ParseByte(high)
		if err != nil {
			return Address{}, fmt.Errorf("invalid high byte: %w", err)
		}
		return Address{Low: l, High: h}, nil
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(hex) != 4 {
		return Address{}, fmt.Errorf("invalid address %q: expected 0xHHLL or low,high", s)
	}
	v, err := strconv.ParseUint(hex, 16, 16)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address{Low: uint8(v & 0xFF), High: uint8(v >> 8)}, nil
}

// ParseByte parses a single byte given as decimal or 0x-prefixed hex
func ParseByte(s string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%q is not a byte (0-255 or 0x00-0xFF)", s)
	}
	return uint8(v), nil
}
