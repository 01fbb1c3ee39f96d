// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dooya

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// ============================================================
// Decode Fuzz Tests
// ============================================================

// TestFuzzDecode_RandomBytes feeds random inputs of any length to Decode
// and verifies it never panics and only returns the two decode errors
func TestFuzzDecode_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(20))
		rng.Read(data)

		_, err := Decode(data)
		if err != nil && !errors.Is(err, ErrMalformedFrame) && !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("Round %d: unexpected error type: %v", i, err)
		}
	}
}

// TestFuzzDecode_RoundTrip encodes random fields and decodes them back
func TestFuzzDecode_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		addr := NewAddress(uint8(rng.Intn(256)), uint8(rng.Intn(256)))
		fn := FunctionCode(rng.Intn(256))
		echo := byte(rng.Intn(256))
		data := byte(rng.Intn(256))

		raw := Encode(addr, fn, echo, data)
		f, err := Decode(raw)
		if err != nil {
			t.Errorf("Round %d: unexpected decode error: %v", i, err)
			continue
		}
		if f.Address() != addr || f.Function() != fn || f.Echo() != echo || f.Data() != data {
			t.Errorf("Round %d: field mismatch for % X", i, raw)
		}
		if !bytes.Equal(f.Bytes(), raw) {
			t.Errorf("Round %d: Bytes() mismatch", i)
		}
	}
}

// TestFuzzDecode_CorruptedFrames flips random bits in valid frames
func TestFuzzDecode_CorruptedFrames(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		raw := Encode(NewAddress(uint8(rng.Intn(256)), uint8(rng.Intn(256))),
			FunctionCode(rng.Intn(4)+1), byte(rng.Intn(256)), byte(rng.Intn(256)))

		// Corrupt one byte after the start code
		idx := rng.Intn(FrameSize-1) + 1
		raw[idx] ^= byte(rng.Intn(255) + 1)

		if _, err := Decode(raw); !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("Round %d: single-byte corruption at %d not detected: %v", i, idx, err)
		}
	}
}

// ============================================================
// Framer Fuzz Tests
// ============================================================

// TestFuzzFramer_RandomBytes verifies the framer never panics and only
// yields full-size candidates that begin with the start code
func TestFuzzFramer_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		framer := NewFramer()
		data := make([]byte, rng.Intn(512)+1)
		rng.Read(data)

		for _, raw := range framer.Feed(data) {
			if len(raw) != FrameSize || raw[0] != StartByte {
				t.Fatalf("Round %d: invalid candidate % X", i, raw)
			}
		}
	}
}

// TestFuzzFramer_NoisyStream embeds a valid frame in leading noise free of
// start codes and expects it to be recovered intact
func TestFuzzFramer_NoisyStream(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		noise := make([]byte, rng.Intn(32))
		for j := range noise {
			b := byte(rng.Intn(256))
			if b == StartByte {
				b = 0x00
			}
			noise[j] = b
		}
		frame := Encode(NewAddress(uint8(rng.Intn(256)), uint8(rng.Intn(256))),
			FuncRead, 0x00, byte(rng.Intn(101)))

		framer := NewFramer()
		got := framer.Feed(append(noise, frame...))
		if len(got) != 1 || !bytes.Equal(got[0], frame) {
			t.Errorf("Round %d: frame not recovered after %d noise bytes", i, len(noise))
			continue
		}
		if framer.Skipped() != len(noise) {
			t.Errorf("Round %d: Skipped = %d, want %d", i, framer.Skipped(), len(noise))
		}
	}
}
