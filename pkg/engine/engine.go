// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package engine turns logical curtain operations into request/response
// exchanges over a session.
//
// The wire protocol carries no transaction identifier, so the first complete
// frame after a send is taken as the response. Every operation therefore holds
// a Scope for its whole duration, retries included.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/Thermoquad/velarium/pkg/session"
	"go.uber.org/zap"
)

// Defaults
const (
	DefaultAttempts = 3
	DefaultTimeout  = 5 * time.Second
)

// Transport is the single-attempt exchange the engine runs over.
// *session.Session implements it.
type Transport interface {
	Open(ctx context.Context) error
	Close() error
	SendAndAwait(frame []byte, timeout time.Duration) ([]byte, error)
}

// Receiver is implemented by transports that can wait for unsolicited frames
type Receiver interface {
	Receive(timeout time.Duration) ([]byte, error)
}

// Command is a motion command
type Command int

const (
	CommandOpen Command = iota
	CommandClose
	CommandStop
)

func (c Command) String() string {
	switch c {
	case CommandOpen:
		return "open"
	case CommandClose:
		return "close"
	case CommandStop:
		return "stop"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

func (c Command) control() (dooya.ControlCommand, bool) {
	switch c {
	case CommandOpen:
		return dooya.CmdOpen, true
	case CommandClose:
		return dooya.CmdClose, true
	case CommandStop:
		return dooya.CmdStop, true
	default:
		return 0, false
	}
}

// Engine runs transactions against one transport
type Engine struct {
	transport Transport
	scope     *Scope
	policy    BusyPolicy
	attempts  int
	timeout   time.Duration
	logger    *zap.Logger
	stats     *dooya.Statistics

	needsReset atomic.Bool
}

// Option configures an Engine
type Option func(*Engine)

// WithAttempts sets the number of attempts per operation (minimum 1)
func WithAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.attempts = n
		}
	}
}

// WithTimeout sets the per-attempt response timeout
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithScope shares a bus scope with other engines
func WithScope(s *Scope) Option {
	return func(e *Engine) {
		if s != nil {
			e.scope = s
		}
	}
}

// WithBusyPolicy selects queueing or rejection when the scope is held
func WithBusyPolicy(p BusyPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithLogger sets the engine logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStatistics shares a statistics tracker
func WithStatistics(s *dooya.Statistics) Option {
	return func(e *Engine) {
		if s != nil {
			e.stats = s
		}
	}
}

// New creates an engine. The transport is opened lazily.
func New(t Transport, opts ...Option) *Engine {
	e := &Engine{
		transport: t,
		scope:     NewScope(),
		policy:    BusyQueue,
		attempts:  DefaultAttempts,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
		stats:     dooya.NewStatistics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Statistics returns the engine's live counters
func (e *Engine) Statistics() *dooya.Statistics {
	return e.stats
}

// Attempts returns the configured attempt cap
func (e *Engine) Attempts() int {
	return e.attempts
}

// Reset closes the session so that the next operation reopens it.
// If a transaction is running the close is deferred until the next one starts.
func (e *Engine) Reset() {
	e.needsReset.Store(true)
	if e.scope.TryAcquire() {
		defer e.scope.Release()
		e.resetLocked()
	}
}

// Close releases the transport
func (e *Engine) Close() error {
	return e.transport.Close()
}

func (e *Engine) resetLocked() {
	if !e.needsReset.Swap(false) {
		return
	}
	if err := e.transport.Close(); err != nil {
		e.logger.Debug("close during reset failed", zap.Error(err))
	}
	e.stats.RecordReconnect()
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.policy == BusyReject {
		if !e.scope.TryAcquire() {
			return ErrBusy
		}
		return nil
	}
	if err := e.scope.Acquire(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	return nil
}

// matcher validates a decoded response against its request
type matcher func(resp dooya.Frame) error

func expectFrom(fn dooya.FunctionCode, addrs ...dooya.Address) matcher {
	return func(resp dooya.Frame) error {
		if resp.Function() != fn {
			return fmt.Errorf("%w: function %s, want %s",
				ErrProtocolMismatch, dooya.FormatFunction(resp.Function()), dooya.FormatFunction(fn))
		}
		for _, a := range addrs {
			if resp.Address() == a {
				return nil
			}
		}
		return fmt.Errorf("%w: response from %s, want %s", ErrProtocolMismatch, resp.Address(), addrs[0])
	}
}

// transact runs req with retries and returns the matched response
func (e *Engine) transact(ctx context.Context, op string, req dooya.Frame, match matcher) (dooya.Frame, error) {
	if err := e.acquire(ctx); err != nil {
		return dooya.Frame{}, err
	}
	defer e.scope.Release()

	e.resetLocked()

	raw := req.Bytes()
	log := e.logger.With(zap.String("op", op), zap.Stringer("addr", req.Address()))

	var lastErr error
	attempt := 0
	for attempt < e.attempts {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempt++

		resp, err := e.exchange(ctx, raw, match)
		kind := Classify(err)
		e.stats.RecordAttempt(outcomeOf(kind))
		if err == nil {
			e.stats.RecordTransaction(true)
			log.Debug("transaction complete", zap.Int("attempt", attempt))
			return resp, nil
		}

		lastErr = err
		log.Debug("attempt failed", zap.Int("attempt", attempt), zap.Stringer("kind", kind), zap.Error(err))

		if !kind.Retryable() {
			break
		}
		if kind == KindConnectionLost {
			e.transport.Close()
			e.stats.RecordReconnect()
		}
	}

	e.stats.RecordTransaction(false)
	e.needsReset.Store(true)
	log.Warn("operation failed", zap.Int("attempts", attempt), zap.Error(lastErr))
	return dooya.Frame{}, &OperationError{
		Op:       op,
		Address:  req.Address(),
		Attempts: attempt,
		Cause:    lastErr,
	}
}

// exchange performs one encode, send, await and decode cycle
func (e *Engine) exchange(ctx context.Context, raw []byte, match matcher) (dooya.Frame, error) {
	if err := e.transport.Open(ctx); err != nil {
		if !errors.Is(err, session.ErrConnectionLost) {
			err = fmt.Errorf("%w: %w", session.ErrConnectionLost, err)
		}
		return dooya.Frame{}, err
	}

	b, err := e.transport.SendAndAwait(raw, e.timeout)
	if err != nil {
		return dooya.Frame{}, err
	}

	resp, err := dooya.Decode(b)
	if err != nil {
		return dooya.Frame{}, err
	}
	if err := match(resp); err != nil {
		return dooya.Frame{}, err
	}
	return resp, nil
}

// ============================================================
// Operations
// ============================================================

// ReadStatus reads the packed status snapshot of one motor
func (e *Engine) ReadStatus(ctx context.Context, addr dooya.Address) (dooya.DeviceState, error) {
	resp, err := e.transact(ctx, "read status", dooya.NewStatusRequest(addr), expectFrom(dooya.FuncRead, addr))
	if err != nil {
		return dooya.DeviceState{}, err
	}
	return dooya.DecodeStatus(resp), nil
}

// ReadRegister reads a single register value
func (e *Engine) ReadRegister(ctx context.Context, addr dooya.Address, reg dooya.Register) (byte, error) {
	op := "read " + dooya.FormatRegister(reg)
	resp, err := e.transact(ctx, op, dooya.NewReadRequest(addr, reg), expectFrom(dooya.FuncRead, addr))
	if err != nil {
		return 0, err
	}
	return resp.Data(), nil
}

// ReadFullStatus builds a state from individual register reads.
// Each register is its own transaction; the first failure is returned.
func (e *Engine) ReadFullStatus(ctx context.Context, addr dooya.Address) (dooya.DeviceState, error) {
	var state dooya.DeviceState
	for _, reg := range dooya.StateRegisters {
		v, err := e.ReadRegister(ctx, addr, reg)
		if err != nil {
			return dooya.DeviceState{}, err
		}
		state = dooya.ApplyRegister(state, reg, v)
	}
	return state, nil
}

// WriteRegister writes a single register value
func (e *Engine) WriteRegister(ctx context.Context, addr dooya.Address, reg dooya.Register, value byte) error {
	op := "write " + dooya.FormatRegister(reg)
	_, err := e.transact(ctx, op, dooya.NewWriteRequest(addr, reg, value), expectFrom(dooya.FuncWrite, addr))
	return err
}

// WriteControl sends an open, close or stop command
func (e *Engine) WriteControl(ctx context.Context, addr dooya.Address, cmd Command) error {
	cc, ok := cmd.control()
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidCommand, cmd)
	}
	return e.control(ctx, cmd.String(), dooya.NewControlRequest(addr, cc))
}

// SetPosition moves the curtain to target percent (0..100)
func (e *Engine) SetPosition(ctx context.Context, addr dooya.Address, target int) error {
	if target < 0 || target > dooya.PositionMax {
		return fmt.Errorf("%w: %d (must be 0-%d)", ErrInvalidPosition, target, dooya.PositionMax)
	}
	return e.control(ctx, "set position", dooya.NewPositionRequest(addr, uint8(target)))
}

// DeleteDevice clears the motor's stored limits and address pairing
func (e *Engine) DeleteDevice(ctx context.Context, addr dooya.Address) error {
	return e.control(ctx, "delete", dooya.NewControlRequest(addr, dooya.CmdDelete))
}

// FactoryReset restores the motor's factory settings
func (e *Engine) FactoryReset(ctx context.Context, addr dooya.Address) error {
	return e.control(ctx, "factory reset", dooya.NewControlRequest(addr, dooya.CmdReset))
}

func (e *Engine) control(ctx context.Context, op string, req dooya.Frame) error {
	_, err := e.transact(ctx, op, req, expectFrom(dooya.FuncControl, req.Address()))
	return err
}

// ProgramAddress assigns a new address to the motor at addr, which must be in
// programming mode. The acknowledgement may come from either address.
func (e *Engine) ProgramAddress(ctx context.Context, addr dooya.Address, newLow, newHigh byte) error {
	newAddr := dooya.NewAddress(newLow, newHigh)
	if !newAddr.ValidProgrammingTarget() {
		return fmt.Errorf("%w: %s (bytes 0x00 and 0xFF are reserved)", ErrInvalidAddress, newAddr)
	}
	_, err := e.transact(ctx, "program address", dooya.NewProgramAddressRequest(addr, newAddr),
		expectFrom(dooya.FuncProgramAddress, addr, newAddr))
	return err
}

// AwaitProgrammingRequest listens for the frame a motor broadcasts once its
// button has been held. It returns session.ErrTimeout if none arrives
// within window.
func (e *Engine) AwaitProgrammingRequest(ctx context.Context, window time.Duration) error {
	rx, ok := e.transport.(Receiver)
	if !ok {
		return ErrReceiveUnsupported
	}
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.scope.Release()

	e.resetLocked()
	if err := e.transport.Open(ctx); err != nil {
		return err
	}

	deadline := time.Now().Add(window)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return session.ErrTimeout
		}

		raw, err := rx.Receive(remaining)
		if err != nil {
			return err
		}
		f, err := dooya.Decode(raw)
		if err != nil {
			e.logger.Debug("ignoring frame", zap.Error(err))
			continue
		}
		if dooya.IsProgrammingRequest(f) {
			e.logger.Info("programming request received")
			return nil
		}
	}
}
