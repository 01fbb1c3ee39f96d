// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/Thermoquad/velarium/pkg/dooya"
)

// Device binds an engine to one motor address and remembers the last state read
type Device struct {
	engine *Engine
	name   string

	mu       sync.Mutex
	address  dooya.Address
	state    dooya.DeviceState
	hasState bool
	updated  time.Time
}

// NewDevice creates a handle for the motor at addr
func NewDevice(e *Engine, name string, addr dooya.Address) *Device {
	return &Device{engine: e, name: name, address: addr}
}

// Name returns the configured device name
func (d *Device) Name() string {
	return d.name
}

// Address returns the address currently used to reach the motor
func (d *Device) Address() dooya.Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.address
}

// Engine returns the engine the device talks through
func (d *Device) Engine() *Engine {
	return d.engine
}

// LastState returns a copy of the most recent successful read
func (d *Device) LastState() (dooya.DeviceState, time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, d.updated, d.hasState
}

// Status reads the motor state and caches it
func (d *Device) Status(ctx context.Context) (dooya.DeviceState, error) {
	s, err := d.engine.ReadStatus(ctx, d.Address())
	if err != nil {
		return dooya.DeviceState{}, err
	}
	d.store(s)
	return s, nil
}

// FullStatus reads every state register and caches the result
func (d *Device) FullStatus(ctx context.Context) (dooya.DeviceState, error) {
	s, err := d.engine.ReadFullStatus(ctx, d.Address())
	if err != nil {
		return dooya.DeviceState{}, err
	}
	d.store(s)
	return s, nil
}

func (d *Device) store(s dooya.DeviceState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = s
	d.hasState = true
	d.updated = time.Now()
}

// Open starts opening the curtain
func (d *Device) Open(ctx context.Context) error {
	return d.engine.WriteControl(ctx, d.Address(), CommandOpen)
}

// Close starts closing the curtain
func (d *Device) Close(ctx context.Context) error {
	return d.engine.WriteControl(ctx, d.Address(), CommandClose)
}

// Stop halts the motor
func (d *Device) Stop(ctx context.Context) error {
	return d.engine.WriteControl(ctx, d.Address(), CommandStop)
}

// SetPosition moves the curtain to percent
func (d *Device) SetPosition(ctx context.Context, percent int) error {
	return d.engine.SetPosition(ctx, d.Address(), percent)
}

// Sequencer starts a programming sequence for this motor.
// The device's address changes only when the sequence is confirmed.
func (d *Device) Sequencer() *Sequencer {
	s := NewSequencer(d.engine, d.Address())
	s.onConfirm = d.readdress
	return s
}

// Program assigns a new address to a motor the operator has already put in
// programming mode. It returns the sequence so callers can inspect its state.
func (d *Device) Program(ctx context.Context, newLow, newHigh byte) (*Sequencer, error) {
	s := d.Sequencer()
	if err := s.Arm(); err != nil {
		return s, err
	}
	return s, s.Program(ctx, newLow, newHigh)
}

func (d *Device) readdress(addr dooya.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.address = addr
	d.state = dooya.DeviceState{}
	d.hasState = false
	d.updated = time.Time{}
}
