// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session owns the byte connection to the RS485 bus.
//
// A Session sends one frame and waits for one candidate response. It never
// retries; retry policy belongs to the transaction engine.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Thermoquad/velarium/pkg/dooya"
	"go.uber.org/zap"
)

// Transport errors
var (
	ErrTimeout        = errors.New("timeout waiting for response")
	ErrConnectionLost = errors.New("connection lost")
)

const readBufferSize = 64

// Session is a single duplex connection to a gateway, serial adapter or bridge
type Session struct {
	dialer Dialer
	logger *zap.Logger
	trace  *dooya.TraceWriter

	mu      sync.Mutex
	conn    Conn
	framer  *dooya.Framer
	pending [][]byte
	buf     []byte
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger used for frame-level debug output
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTrace records every transmitted and received frame
func WithTrace(w *dooya.TraceWriter) Option {
	return func(s *Session) {
		s.trace = w
	}
}

// New creates a closed session. Nothing is dialed until Open.
func New(d Dialer, opts ...Option) *Session {
	s := &Session{
		dialer: d,
		logger: zap.NewNop(),
		framer: dooya.NewFramer(),
		buf:    make([]byte, readBufferSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open establishes the connection. It is a no-op when already open.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrConnectionLost, s.dialer, err)
	}

	s.conn = conn
	s.framer.Reset()
	s.pending = nil
	s.logger.Debug("session opened", zap.String("endpoint", s.dialer.String()))
	return nil
}

// Close releases the connection. Safe to call when already closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.pending = nil
	s.framer.Reset()
	s.logger.Debug("session closed", zap.String("endpoint", s.dialer.String()))
	return err
}

// IsOpen reports whether a connection is currently held
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// String describes the endpoint
func (s *Session) String() string {
	return s.dialer.String()
}

// SendAndAwait writes one frame and returns the first complete candidate
// frame received within timeout. The candidate is not CRC-checked.
//
// Returns ErrTimeout when nothing arrives in time and ErrConnectionLost when
// the stream fails; in the latter case the session closes itself.
func (s *Session) SendAndAwait(frame []byte, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, fmt.Errorf("%w: session not open", ErrConnectionLost)
	}

	// Anything buffered belongs to an earlier exchange
	s.framer.Reset()
	if len(s.pending) > 0 {
		s.logger.Debug("discarding stale frames", zap.Int("count", len(s.pending)))
		s.pending = nil
	}

	if _, err := s.conn.Write(frame); err != nil {
		s.closeLocked()
		return nil, fmt.Errorf("%w: write: %w", ErrConnectionLost, err)
	}
	s.record(dooya.DirectionTX, frame)

	return s.awaitLocked(timeout)
}

// Receive waits for one frame without sending anything. A timeout of zero
// waits indefinitely. Frames that arrived together are returned in order on
// subsequent calls.
func (s *Session) Receive(timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, fmt.Errorf("%w: session not open", ErrConnectionLost)
	}

	if len(s.pending) > 0 {
		raw := s.pending[0]
		s.pending = s.pending[1:]
		return raw, nil
	}
	return s.awaitLocked(timeout)
}

func (s *Session) awaitLocked(timeout time.Duration) ([]byte, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		s.closeLocked()
		return nil, fmt.Errorf("%w: set deadline: %w", ErrConnectionLost, err)
	}

	for {
		n, err := s.conn.Read(s.buf)
		if n > 0 {
			frames := s.framer.Feed(s.buf[:n])
			if len(frames) > 0 {
				for _, raw := range frames {
					s.record(dooya.DirectionRX, raw)
				}
				s.pending = append(s.pending, frames[1:]...)
				return frames[0], nil
			}
		}
		if err != nil {
			return nil, s.readError(err)
		}
	}
}

func (s *Session) readError(err error) error {
	if isTimeout(err) {
		if f, ok := s.conn.(failer); ok && f.Failed() {
			s.closeLocked()
		}
		return ErrTimeout
	}
	s.closeLocked()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: closed by peer", ErrConnectionLost)
	}
	return fmt.Errorf("%w: read: %w", ErrConnectionLost, err)
}

func (s *Session) record(dir dooya.Direction, raw []byte) {
	if ce := s.logger.Check(zap.DebugLevel, "frame"); ce != nil {
		ce.Write(zap.Stringer("dir", dir), zap.String("bytes", dooya.FormatHex(raw)))
	}
	if s.trace == nil {
		return
	}
	if err := s.trace.Record(dir, s.dialer.String(), raw); err != nil {
		s.logger.Warn("trace write failed", zap.Error(err))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
