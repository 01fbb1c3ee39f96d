// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/Thermoquad/velarium/pkg/session"
)

// reply produces the raw response for a request
type reply func(req dooya.Frame) ([]byte, error)

// MockTransport implements Transport and Receiver for testing
type MockTransport struct {
	mutex    sync.Mutex
	open     bool
	opens    int
	closes   int
	openErr  error
	txLog    [][]byte
	script   []reply
	fallback reply
	rxData   [][]byte
}

func NewMockTransport(script ...reply) *MockTransport {
	return &MockTransport{script: script, fallback: echoDevice(dooya.DeviceState{Position: 50})}
}

func (m *MockTransport) Open(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	if !m.open {
		m.open = true
		m.opens++
	}
	return nil
}

func (m *MockTransport) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.open {
		m.open = false
		m.closes++
	}
	return nil
}

func (m *MockTransport) SendAndAwait(frame []byte, timeout time.Duration) ([]byte, error) {
	m.mutex.Lock()
	dataCopy := append([]byte(nil), frame...)
	m.txLog = append(m.txLog, dataCopy)
	next := m.fallback
	if len(m.script) > 0 {
		next = m.script[0]
		m.script = m.script[1:]
	}
	m.mutex.Unlock()

	req, err := dooya.Decode(dataCopy)
	if err != nil {
		return nil, err
	}
	return next(req)
}

func (m *MockTransport) Receive(timeout time.Duration) ([]byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.rxData) == 0 {
		return nil, session.ErrTimeout
	}
	data := m.rxData[0]
	m.rxData = m.rxData[1:]
	return data, nil
}

// Test helper methods
func (m *MockTransport) Sends() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.txLog)
}

func (m *MockTransport) TxLog() [][]byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	result := make([][]byte, len(m.txLog))
	copy(result, m.txLog)
	return result
}

func (m *MockTransport) Counts() (opens, closes int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.opens, m.closes
}

// echoDevice answers like a motor: same address and function, with status
// responses carrying state
func echoDevice(state dooya.DeviceState) reply {
	return func(req dooya.Frame) ([]byte, error) {
		if req.Function() == dooya.FuncRead && req.Echo() == byte(dooya.RegStatus) && req.Data() == 0x00 {
			return dooya.Encode(req.Address(), dooya.FuncRead, dooya.EncodeStatus(state), byte(state.Position)), nil
		}
		return req.Bytes(), nil
	}
}

func fail(err error) reply {
	return func(dooya.Frame) ([]byte, error) {
		return nil, err
	}
}

func rawReply(b []byte) reply {
	return func(dooya.Frame) ([]byte, error) {
		return b, nil
	}
}
