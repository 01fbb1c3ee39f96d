// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package poller refreshes device state on a cadence, backing off
// exponentially while a motor does not answer.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/Thermoquad/velarium/pkg/engine"
	"go.uber.org/zap"
)

// Target is a device that can be polled. *engine.Device implements it.
type Target interface {
	Name() string
	Status(ctx context.Context) (dooya.DeviceState, error)
}

// Config holds the polling cadence
type Config struct {
	Interval         time.Duration
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	UnavailableAfter int
}

// Update is the result of one poll
type Update struct {
	Device    string
	At        time.Time
	State     dooya.DeviceState
	Err       error
	Kind      engine.ErrorKind
	Available bool
	Failures  int
	Next      time.Duration
}

// Poller polls one target
type Poller struct {
	target Target
	cfg    Config
	logger *zap.Logger
	reset  func()

	mu        sync.Mutex
	failures  int
	available bool
	next      time.Duration
}

// Option configures a Poller
type Option func(*Poller)

// WithLogger sets the poller logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithReset is called once when the target becomes unavailable
func WithReset(fn func()) Option {
	return func(p *Poller) {
		p.reset = fn
	}
}

// New creates a poller. The target starts out available.
func New(t Target, cfg Config, opts ...Option) *Poller {
	if cfg.UnavailableAfter < 1 {
		cfg.UnavailableAfter = 1
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = cfg.BackoffInitial
	}
	p := &Poller{
		target:    t,
		cfg:       cfg,
		logger:    zap.NewNop(),
		available: true,
		next:      cfg.Interval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll reads the target once and updates availability and the next delay
func (p *Poller) Poll(ctx context.Context) Update {
	state, err := p.target.Status(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	u := Update{
		Device: p.target.Name(),
		At:     time.Now(),
		State:  state,
		Err:    err,
		Kind:   engine.Classify(err),
	}

	if err == nil {
		if !p.available {
			p.logger.Info("device available again", zap.String("device", u.Device))
		}
		p.failures = 0
		p.available = true
		p.next = p.cfg.Interval
	} else {
		p.failures++
		p.next = p.backoff(p.failures)
		if p.available && p.failures >= p.cfg.UnavailableAfter {
			p.available = false
			p.logger.Warn("device unavailable",
				zap.String("device", u.Device),
				zap.Int("failures", p.failures),
				zap.Error(err))
			if p.reset != nil {
				p.reset()
			}
		} else {
			p.logger.Debug("poll failed",
				zap.String("device", u.Device),
				zap.Int("failures", p.failures),
				zap.Duration("retry_in", p.next),
				zap.Error(err))
		}
	}

	u.Available = p.available
	u.Failures = p.failures
	u.Next = p.next
	return u
}

// backoff returns BackoffInitial doubled for every failure after the first
func (p *Poller) backoff(failures int) time.Duration {
	d := p.cfg.BackoffInitial
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= p.cfg.BackoffMax {
			return p.cfg.BackoffMax
		}
	}
	return d
}

// NextDelay returns the wait before the next poll
func (p *Poller) NextDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}

// Available reports whether the target is considered reachable
func (p *Poller) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// Run polls until ctx is done, sending every update to out.
// The first poll happens immediately.
func (p *Poller) Run(ctx context.Context, out chan<- Update) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		u := p.Poll(ctx)
		select {
		case out <- u:
		case <-ctx.Done():
			return
		}
		timer.Reset(u.Next)
	}
}
