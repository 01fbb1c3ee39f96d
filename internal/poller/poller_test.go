// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/Thermoquad/velarium/pkg/engine"
	"github.com/Thermoquad/velarium/pkg/session"
)

// scriptedTarget returns queued results, then succeeds
type scriptedTarget struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (s *scriptedTarget) Name() string { return "test" }

func (s *scriptedTarget) Status(ctx context.Context) (dooya.DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) > 0 {
		err := s.results[0]
		s.results = s.results[1:]
		if err != nil {
			return dooya.DeviceState{}, err
		}
	}
	return dooya.DeviceState{Position: 42}, nil
}

var testConfig = Config{
	Interval:         10 * time.Second,
	BackoffInitial:   30 * time.Second,
	BackoffMax:       100 * time.Second,
	UnavailableAfter: 3,
}

func failure() error {
	return &engine.OperationError{Op: "read status", Attempts: 3, Cause: session.ErrTimeout}
}

func TestPoll_BackoffSequence(t *testing.T) {
	target := &scriptedTarget{results: []error{failure(), failure(), failure(), failure(), nil}}
	resets := 0
	p := New(target, testConfig, WithReset(func() { resets++ }))

	want := []struct {
		next      time.Duration
		available bool
	}{
		{30 * time.Second, true},
		{60 * time.Second, true},
		{100 * time.Second, false},
		{100 * time.Second, false},
		{10 * time.Second, true},
	}

	for i, w := range want {
		u := p.Poll(context.Background())
		if u.Next != w.next || u.Available != w.available {
			t.Errorf("poll %d: next=%v available=%v, want %v/%v", i+1, u.Next, u.Available, w.next, w.available)
		}
	}
	if resets != 1 {
		t.Errorf("reset called %d times, want 1", resets)
	}
}

func TestPoll_ReportsKind(t *testing.T) {
	p := New(&scriptedTarget{results: []error{failure()}}, testConfig)
	u := p.Poll(context.Background())
	if !errors.Is(u.Err, engine.ErrOperationFailed) || u.Kind != engine.KindTimeout {
		t.Errorf("update = %+v", u)
	}
	if u.Failures != 1 || u.Device != "test" {
		t.Errorf("update = %+v", u)
	}

	u = p.Poll(context.Background())
	if u.Err != nil || uint8(u.State.Position) != 42 || u.Failures != 0 {
		t.Errorf("update after success = %+v", u)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig
	cfg.Interval = time.Millisecond
	p := New(&scriptedTarget{}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Update)
	done := make(chan struct{})
	go func() {
		p.Run(ctx, out)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case u := <-out:
			if u.Err != nil {
				t.Errorf("unexpected error: %v", u.Err)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for update")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
