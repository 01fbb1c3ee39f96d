// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dooya

import (
	"bytes"
	"testing"
)

func TestRequestBuilders(t *testing.T) {
	addr := NewAddress(0x02, 0xFE)

	tests := []struct {
		name  string
		frame Frame
		want  []byte
	}{
		{
			name:  "status read",
			frame: NewStatusRequest(addr),
			want:  []byte{0x55, 0x02, 0xFE, 0x01, 0x00, 0x00, 0x15, 0xF6},
		},
		{
			name:  "open factory address",
			frame: NewControlRequest(FactoryAddress, CmdOpen),
			want:  []byte{0x55, 0xFE, 0xFE, 0x03, 0x01, 0x00, 0xE5, 0xB2},
		},
		{
			name:  "register read",
			frame: NewReadRequest(FactoryAddress, RegAddressHigh),
			want:  Encode(FactoryAddress, FuncRead, 0x01, 0x01),
		},
		{
			name:  "register write",
			frame: NewWriteRequest(addr, RegDirection, 0x01),
			want:  Encode(addr, FuncWrite, 0x03, 0x01),
		},
		{
			name:  "move to percent",
			frame: NewPositionRequest(addr, 40),
			want:  Encode(addr, FuncControl, 0x04, 40),
		},
		{
			name:  "factory reset",
			frame: NewControlRequest(addr, CmdReset),
			want:  Encode(addr, FuncControl, 0x08, 0x00),
		},
		{
			name:  "program address",
			frame: NewProgramAddressRequest(FactoryAddress, NewAddress(0x12, 0x34)),
			want:  Encode(FactoryAddress, FuncProgramAddress, 0x12, 0x34),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.frame.Bytes()
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Bytes() = % X, want % X", got, tt.want)
			}
			if !bytes.Equal(EncodeFrame(tt.frame), got) {
				t.Error("EncodeFrame should match Bytes()")
			}
		})
	}
}

func TestIsProgrammingRequest(t *testing.T) {
	raw := []byte{0x55, 0xFE, 0xFE, 0x04, 0x01, 0x00, 0x54, 0x73}
	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !IsProgrammingRequest(f) {
		t.Error("expected the device programming request to be recognised")
	}

	if IsProgrammingRequest(NewControlRequest(FactoryAddress, CmdOpen)) {
		t.Error("control frame is not a programming request")
	}
	if IsProgrammingRequest(NewFrame(NewAddress(0x02, 0xFE), FuncProgramAddress, 0x01, 0x00)) {
		t.Error("programming request must come from the factory address")
	}
}
