// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dooya

import (
	"errors"
	"fmt"
)

// Decode errors
var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Decode parses a complete wire frame.
// It never panics; any input length is accepted and reported.
func Decode(b []byte) (Frame, error) {
	if len(b) != FrameSize {
		return Frame{}, fmt.Errorf("%w: length %d, want %d", ErrMalformedFrame, len(b), FrameSize)
	}
	if b[0] != StartByte {
		return Frame{}, fmt.Errorf("%w: start byte 0x%02X, want 0x%02X", ErrMalformedFrame, b[0], StartByte)
	}

	received := uint16(b[crcOffset]) | uint16(b[crcOffset+1])<<8
	calculated := CalculateCRC(b[:crcOffset])
	if received != calculated {
		return Frame{}, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrChecksumMismatch, calculated, received)
	}

	return Frame{
		address:  Address{Low: b[1], High: b[2]},
		function: FunctionCode(b[3]),
		echo:     b[4],
		data:     b[5],
		crc:      received,
	}, nil
}

// Framer states (internal)
const (
	stateIdle = iota
	stateCollect
)

// Framer assembles candidate frames from a byte stream.
// Bytes before a start code are skipped; once a start code is seen the next
// seven bytes complete the candidate. CRC is not checked here so that the
// caller can tell corruption apart from silence.
type Framer struct {
	state   int
	buffer  [FrameSize]byte
	index   int
	skipped int
}

// NewFramer creates a new stream framer
func NewFramer() *Framer {
	return &Framer{state: stateIdle}
}

// Reset discards any partially assembled frame
func (f *Framer) Reset() {
	f.state = stateIdle
	f.index = 0
	f.skipped = 0
}

// Skipped returns the number of noise bytes discarded since the last Reset
func (f *Framer) Skipped() int {
	return f.skipped
}

// Pending reports whether a frame is partially assembled
func (f *Framer) Pending() bool {
	return f.state == stateCollect
}

// FeedByte processes a single byte.
// Returns the raw candidate frame when complete, or nil.
func (f *Framer) FeedByte(b byte) []byte {
	switch f.state {
	case stateIdle:
		if b != StartByte {
			f.skipped++
			return nil
		}
		f.buffer[0] = b
		f.index = 1
		f.state = stateCollect
		return nil

	default:
		f.buffer[f.index] = b
		f.index++
		if f.index < FrameSize {
			return nil
		}
		out := make([]byte, FrameSize)
		copy(out, f.buffer[:])
		f.state = stateIdle
		f.index = 0
		return out
	}
}

// Feed processes a chunk of bytes and returns every completed candidate
func (f *Framer) Feed(data []byte) [][]byte {
	var frames [][]byte
	for _, b := range data {
		if raw := f.FeedByte(b); raw != nil {
			frames = append(frames, raw)
		}
	}
	return frames
}
