// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dooya

import (
	"fmt"
	"sync"
	"time"
)

// Outcome classifies a single transaction attempt
type Outcome int

// Attempt outcomes
const (
	OutcomeOK Outcome = iota
	OutcomeTimeout
	OutcomeChecksum
	OutcomeMalformed
	OutcomeMismatch
	OutcomeConnectionLost
)

// Statistics tracks transaction counters and error rates.
// It is safe for concurrent use.
type Statistics struct {
	mu sync.Mutex

	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Transactions   uint64
	Succeeded      uint64
	Failed         uint64
	Attempts       uint64
	Timeouts       uint64
	CRCErrors      uint64
	MalformedFrame uint64
	Mismatches     uint64
	ConnectionLost uint64
	Reconnects     uint64

	// Rates (calculated)
	AttemptRate float64 // attempts/sec
	ErrorRate   float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordAttempt updates counters for one attempt
func (s *Statistics) RecordAttempt(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Attempts++
	switch o {
	case OutcomeTimeout:
		s.Timeouts++
	case OutcomeChecksum:
		s.CRCErrors++
	case OutcomeMalformed:
		s.MalformedFrame++
	case OutcomeMismatch:
		s.Mismatches++
	case OutcomeConnectionLost:
		s.ConnectionLost++
	}
	s.LastUpdateTime = time.Now()
}

// RecordTransaction updates counters for a finished transaction
func (s *Statistics) RecordTransaction(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Transactions++
	if ok {
		s.Succeeded++
	} else {
		s.Failed++
	}
	s.LastUpdateTime = time.Now()
}

// RecordReconnect counts a session reset
func (s *Statistics) RecordReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reconnects++
}

// Snapshot returns a copy of the counters with rates calculated
func (s *Statistics) Snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calculateRates()
	return Statistics{
		StartTime:      s.StartTime,
		LastUpdateTime: s.LastUpdateTime,
		Transactions:   s.Transactions,
		Succeeded:      s.Succeeded,
		Failed:         s.Failed,
		Attempts:       s.Attempts,
		Timeouts:       s.Timeouts,
		CRCErrors:      s.CRCErrors,
		MalformedFrame: s.MalformedFrame,
		Mismatches:     s.Mismatches,
		ConnectionLost: s.ConnectionLost,
		Reconnects:     s.Reconnects,
		AttemptRate:    s.AttemptRate,
		ErrorRate:      s.ErrorRate,
	}
}

func (s *Statistics) errorCount() uint64 {
	return s.Timeouts + s.CRCErrors + s.MalformedFrame + s.Mismatches + s.ConnectionLost
}

func (s *Statistics) calculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.AttemptRate = float64(s.Attempts) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var successPercent float64
	if snap.Transactions > 0 {
		successPercent = float64(snap.Succeeded) * 100.0 / float64(snap.Transactions)
	}

	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Transactions:    %8d\n", snap.Transactions)
	result += fmt.Sprintf("Succeeded:       %8d (%.1f%%)\n", snap.Succeeded, successPercent)
	if snap.Failed > 0 {
		result += fmt.Sprintf("Failed:          %8d\n", snap.Failed)
	}
	result += fmt.Sprintf("Attempts:        %8d\n", snap.Attempts)
	if snap.Timeouts > 0 {
		result += fmt.Sprintf("  Timeouts:        %6d\n", snap.Timeouts)
	}
	if snap.CRCErrors > 0 {
		result += fmt.Sprintf("  CRC Errors:      %6d\n", snap.CRCErrors)
	}
	if snap.MalformedFrame > 0 {
		result += fmt.Sprintf("  Malformed:       %6d\n", snap.MalformedFrame)
	}
	if snap.Mismatches > 0 {
		result += fmt.Sprintf("  Mismatches:      %6d\n", snap.Mismatches)
	}
	if snap.ConnectionLost > 0 {
		result += fmt.Sprintf("  Conn Lost:       %6d\n", snap.ConnectionLost)
	}
	if snap.Reconnects > 0 {
		result += fmt.Sprintf("Reconnects:      %8d\n", snap.Reconnects)
	}
	result += fmt.Sprintf("Attempt Rate:    %8.1f /sec\n", snap.AttemptRate)
	result += fmt.Sprintf("Error Rate:      %8.1f /sec\n", snap.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.Transactions = 0
	s.Succeeded = 0
	s.Failed = 0
	s.Attempts = 0
	s.Timeouts = 0
	s.CRCErrors = 0
	s.MalformedFrame = 0
	s.Mismatches = 0
	s.ConnectionLost = 0
	s.Reconnects = 0
	s.AttemptRate = 0
	s.ErrorRate = 0
}
