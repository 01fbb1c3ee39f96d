// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import "context"

// Scope is a mutual-exclusion token for one physical bus.
// Engines that reach the same gateway endpoint must share a Scope so that
// at most one transaction is outstanding on the wire.
type Scope struct {
	sem chan struct{}
}

// NewScope creates an unheld scope
func NewScope() *Scope {
	return &Scope{sem: make(chan struct{}, 1)}
}

// Acquire blocks until the scope is held or ctx is done.
// Waiters are served in arrival order.
func (s *Scope) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes the scope only if it is free
func (s *Scope) TryAcquire() bool {
	select {
	case s.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the scope
func (s *Scope) Release() {
	<-s.sem
}

// BusyPolicy decides what an operation does when the scope is held
type BusyPolicy int

const (
	// BusyQueue waits for the scope, honouring the caller's context
	BusyQueue BusyPolicy = iota
	// BusyReject fails immediately with ErrBusy
	BusyReject
)

func (p BusyPolicy) String() string {
	if p == BusyReject {
		return "reject"
	}
	return "queue"
}

// ParseBusyPolicy parses "queue" or "reject"
func ParseBusyPolicy(s string) (BusyPolicy, bool) {
	switch s {
	case "", "queue":
		return BusyQueue, true
	case "reject":
		return BusyReject, true
	default:
		return BusyQueue, false
	}
}
