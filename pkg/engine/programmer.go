// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/velarium/pkg/dooya"
)

// SequencerState is a step of the address-programming ritual
type SequencerState int

const (
	StateIdle SequencerState = iota
	StateArmed
	StateSent
	StateConfirmed
	StateFailed
)

func (s SequencerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateSent:
		return "sent"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible
func (s SequencerState) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// Sequencer drives one address-programming attempt.
//
// The operator must hold the motor button for about five seconds until the
// LED flashes twice; the motor then accepts a new address for roughly ten
// seconds. Neither window can be observed by software, so Arm only records
// that the operator has done it. A Sequencer is single use.
type Sequencer struct {
	engine    *Engine
	target    dooya.Address
	onConfirm func(dooya.Address)

	mu      sync.Mutex
	state   SequencerState
	newAddr dooya.Address
	err     error
}

// NewSequencer creates an idle sequencer for the motor reachable at target
func NewSequencer(e *Engine, target dooya.Address) *Sequencer {
	return &Sequencer{engine: e, target: target}
}

// State returns the current state
func (s *Sequencer) State() SequencerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure cause once the sequencer is Failed
func (s *Sequencer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Target returns the address the programming frame is sent to
func (s *Sequencer) Target() dooya.Address {
	return s.target
}

// NewAddress returns the address being assigned, valid from Sent onwards
func (s *Sequencer) NewAddress() dooya.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newAddr
}

// Arm records that the operator has put the motor into programming mode
func (s *Sequencer) Arm() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		s.state = StateArmed
		return nil
	case StateArmed:
		return nil
	default:
		return ErrSequencerUsed
	}
}

// AwaitRequest waits up to window for the motor's own programming request
// and arms on receipt
func (s *Sequencer) AwaitRequest(ctx context.Context, window time.Duration) error {
	if st := s.State(); st != StateIdle && st != StateArmed {
		return ErrSequencerUsed
	}
	if err := s.engine.AwaitProgrammingRequest(ctx, window); err != nil {
		return err
	}
	return s.Arm()
}

// Program sends the new address. An invalid address is rejected without
// consuming the sequence; any other outcome is final.
func (s *Sequencer) Program(ctx context.Context, newLow, newHigh byte) error {
	newAddr := dooya.NewAddress(newLow, newHigh)

	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.mu.Unlock()
		return ErrNotArmed
	case StateArmed:
	default:
		s.mu.Unlock()
		return ErrSequencerUsed
	}
	if !newAddr.ValidProgrammingTarget() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s (bytes 0x00 and 0xFF are reserved)", ErrInvalidAddress, newAddr)
	}
	s.state = StateSent
	s.newAddr = newAddr
	s.mu.Unlock()

	err := s.engine.ProgramAddress(ctx, s.target, newLow, newHigh)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateFailed
		s.err = err
		return err
	}
	s.state = StateConfirmed
	if s.onConfirm != nil {
		s.onConfirm(newAddr)
	}
	return nil
}
