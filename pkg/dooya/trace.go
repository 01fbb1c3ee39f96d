// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dooya

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction marks whether a traced frame was sent or received
type Direction uint8

// Trace directions
const (
	DirectionTX Direction = 0
	DirectionRX Direction = 1
)

func (d Direction) String() string {
	if d == DirectionTX {
		return "TX"
	}
	return "RX"
}

// TraceRecord is one frame captured on the wire.
// Records are stored as a sequence of CBOR maps with integer keys.
type TraceRecord struct {
	Time      time.Time `cbor:"1,keyasint"`
	Direction Direction `cbor:"2,keyasint"`
	Endpoint  string    `cbor:"3,keyasint,omitempty"`
	Bytes     []byte    `cbor:"4,keyasint"`
}

var traceEncMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// TraceWriter appends trace records to a stream. Safe for concurrent use.
type TraceWriter struct {
	mu  sync.Mutex
	enc *cbor.Encoder
}

// NewTraceWriter creates a writer that encodes records to w
func NewTraceWriter(w io.Writer) *TraceWriter {
	return &TraceWriter{enc: traceEncMode.NewEncoder(w)}
}

// Record writes a single frame. The byte slice is copied.
func (t *TraceWriter) Record(dir Direction, endpoint string, data []byte) error {
	rec := TraceRecord{
		Time:      time.Now(),
		Direction: dir,
		Endpoint:  endpoint,
		Bytes:     append([]byte(nil), data...),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode trace record: %w", err)
	}
	return nil
}

// TraceReader reads records written by a TraceWriter
type TraceReader struct {
	dec *cbor.Decoder
}

// NewTraceReader creates a reader over r
func NewTraceReader(r io.Reader) *TraceReader {
	return &TraceReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream
func (t *TraceReader) Next() (TraceRecord, error) {
	var rec TraceRecord
	if err := t.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return TraceRecord{}, io.EOF
		}
		return TraceRecord{}, fmt.Errorf("failed to decode trace record: %w", err)
	}
	return rec, nil
}

// FormatTraceRecord formats a record, decoding the frame when possible
func FormatTraceRecord(rec TraceRecord) string {
	f, err := Decode(rec.Bytes)
	if err != nil {
		return fmt.Sprintf("[%s] %s %s (%v)\n",
			rec.Time.Format("15:04:05.000"), rec.Direction, FormatHex(rec.Bytes), err)
	}
	return fmt.Sprintf("%s %s", rec.Direction, FormatFrame(f, rec.Time))
}
