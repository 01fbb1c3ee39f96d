// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dooya

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestTrace_WriteRead(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriter(&buf)

	tx := NewStatusRequest(NewAddress(0x02, 0xFE)).Bytes()
	rx := []byte{0x55, 0x02, 0xFE, 0x01, 0x00, 0x32, 0x94, 0x23}

	if err := w.Record(DirectionTX, "gw:502", tx); err != nil {
		t.Fatalf("Record TX: %v", err)
	}
	if err := w.Record(DirectionRX, "gw:502", rx); err != nil {
		t.Fatalf("Record RX: %v", err)
	}

	r := NewTraceReader(&buf)
	first, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.Direction != DirectionTX || !bytes.Equal(first.Bytes, tx) || first.Endpoint != "gw:502" {
		t.Errorf("first record = %+v", first)
	}
	if first.Time.IsZero() {
		t.Error("record time should be set")
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if second.Direction != DirectionRX || !bytes.Equal(second.Bytes, rx) {
		t.Errorf("second record = %+v", second)
	}
	if line := FormatTraceRecord(second); !strings.Contains(line, "RX") || !strings.Contains(line, "READ") {
		t.Errorf("FormatTraceRecord = %q", line)
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestTrace_RecordCopiesBytes(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriter(&buf)

	data := []byte{0x55, 0x00}
	if err := w.Record(DirectionRX, "", data); err != nil {
		t.Fatalf("Record: %v", err)
	}
	data[1] = 0xFF

	rec, err := NewTraceReader(&buf).Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.Bytes[1] != 0x00 {
		t.Error("recorded bytes should not alias the caller's slice")
	}
	if line := FormatTraceRecord(rec); !strings.Contains(line, "malformed") {
		t.Errorf("short record should format with decode error: %q", line)
	}
}
