// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/velarium/internal/config"
	"github.com/Thermoquad/velarium/internal/poller"
	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/Thermoquad/velarium/pkg/engine"
	"github.com/Thermoquad/velarium/pkg/session"
	tea "github.com/charmbracelet/bubbletea"
)

// echoTransport acknowledges every request by echoing it back
type echoTransport struct{}

func (echoTransport) Open(ctx context.Context) error { return nil }
func (echoTransport) Close() error                   { return nil }
func (echoTransport) SendAndAwait(frame []byte, timeout time.Duration) ([]byte, error) {
	return append([]byte(nil), frame...), nil
}

// withSettings installs cfg and the given selection flags for one test
func withSettings(t *testing.T, cfg *config.Config, name, addr string) {
	t.Helper()
	oldSettings, oldName, oldAddr := settings, deviceName, deviceAddr
	settings, deviceName, deviceAddr = cfg, name, addr
	t.Cleanup(func() {
		settings, deviceName, deviceAddr = oldSettings, oldName, oldAddr
	})
}

func testConfig(devices ...config.Device) *config.Config {
	cfg := config.Default()
	cfg.Devices = devices
	return cfg
}

func TestResolveDevice(t *testing.T) {
	bedroom := config.Device{Name: "bedroom", AddressLow: 0x12, AddressHigh: 0x34}
	kitchen := config.Device{Name: "kitchen", AddressLow: 0x01, AddressHigh: 0x02}

	tests := []struct {
		name     string
		devices  []config.Device
		flagName string
		flagAddr string
		wantName string
		wantAddr dooya.Address
		wantErr  bool
	}{
		{"only device", []config.Device{bedroom}, "", "", "bedroom", dooya.NewAddress(0x12, 0x34), false},
		{"by name", []config.Device{bedroom, kitchen}, "kitchen", "", "kitchen", dooya.NewAddress(0x01, 0x02), false},
		{"by address", nil, "", "0x3412", "0x3412", dooya.NewAddress(0x12, 0x34), false},
		{"address with name", nil, "spare", "18,52", "spare", dooya.NewAddress(0x12, 0x34), false},
		{"ambiguous", []config.Device{bedroom, kitchen}, "", "", "", dooya.Address{}, true},
		{"unknown name", []config.Device{bedroom}, "garage", "", "", dooya.Address{}, true},
		{"bad address", nil, "", "0xZZ", "", dooya.Address{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withSettings(t, testConfig(tt.devices...), tt.flagName, tt.flagAddr)

			name, addr, err := resolveDevice()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s %s", name, addr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if addr != tt.wantAddr {
				t.Errorf("addr = %s, want %s", addr, tt.wantAddr)
			}
		})
	}
}

func TestResolveDeviceUnknownNameIsNotFound(t *testing.T) {
	withSettings(t, testConfig(config.Device{Name: "bedroom"}), "garage", "")

	_, _, err := resolveDevice()
	if !errors.Is(err, config.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNewDialer(t *testing.T) {
	tests := []struct {
		name    string
		gw      config.Gateway
		want    string
		wantErr bool
	}{
		{"tcp", config.Gateway{Transport: config.TransportTCP, Host: "10.0.0.5", Port: 502}, "TCP: 10.0.0.5:502", false},
		{"tcp without host", config.Gateway{Transport: config.TransportTCP, Port: 502}, "", true},
		{"serial", config.Gateway{Transport: config.TransportSerial, SerialPort: "/dev/ttyUSB0", Baud: 9600}, "Serial: /dev/ttyUSB0 @ 9600 baud", false},
		{"serial without port", config.Gateway{Transport: config.TransportSerial, Baud: 9600}, "", true},
		{"websocket", config.Gateway{Transport: config.TransportWebSocket, URL: "ws://bridge/bus"}, "WebSocket: ws://bridge/bus", false},
		{"websocket without url", config.Gateway{Transport: config.TransportWebSocket}, "", true},
		{"unknown", config.Gateway{Transport: "carrier-pigeon"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := newDialer(tt.gw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", d)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.String() != tt.want {
				t.Errorf("String() = %q, want %q", d.String(), tt.want)
			}
		})
	}
}

func TestWebSocketPasswordFromEnvironment(t *testing.T) {
	t.Setenv(PasswordEnvVar, "hunter2")

	d, err := newDialer(config.Gateway{Transport: config.TransportWebSocket, URL: "wss://bridge/bus", Username: "admin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ws, ok := d.(*session.WebSocketDialer)
	if !ok {
		t.Fatalf("expected *session.WebSocketDialer, got %T", d)
	}
	if ws.Username != "admin" || ws.Password != "hunter2" {
		t.Errorf("credentials = %q/%q", ws.Username, ws.Password)
	}
}

func TestLogFrameStatistics(t *testing.T) {
	stats := dooya.NewStatistics()
	now := time.Now()

	good := dooya.Encode(dooya.NewAddress(0x12, 0x34), dooya.FuncControl, 0x01, 0x00)
	bad := append([]byte(nil), good...)
	bad[7] ^= 0xFF
	short := []byte{0x55, 0x12}

	logFrame(stats, sniffed{raw: good, at: now})
	logFrame(stats, sniffed{raw: bad, at: now})
	logFrame(stats, sniffed{raw: short, at: now})

	snap := stats.Snapshot()
	if snap.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", snap.Attempts)
	}
	if snap.Succeeded != 1 || snap.Failed != 2 {
		t.Errorf("Succeeded/Failed = %d/%d, want 1/2", snap.Succeeded, snap.Failed)
	}
	if snap.CRCErrors != 1 {
		t.Errorf("CRCErrors = %d, want 1", snap.CRCErrors)
	}
	if snap.MalformedFrame != 1 {
		t.Errorf("MalformedFrame = %d, want 1", snap.MalformedFrame)
	}
}

func testMonitorModel(t *testing.T, names ...string) monitorModel {
	t.Helper()
	conn := &Connection{Engine: engine.New(echoTransport{}), Name: "test"}
	devices := make([]*engine.Device, len(names))
	for i, n := range names {
		devices[i] = engine.NewDevice(conn.Engine, n, dooya.NewAddress(uint8(i+1), 0x01))
	}
	return initialMonitorModel(context.Background(), conn, devices)
}

func TestMonitorProcessPoll(t *testing.T) {
	m := testMonitorModel(t, "bedroom", "kitchen")

	state := dooya.DeviceState{Position: 40, Motor: dooya.MotorStopped}
	updated, _ := m.Update(pollMsg(poller.Update{Device: "kitchen", At: time.Now(), State: state, Available: true}))
	m = updated.(monitorModel)

	if m.devices[0].hasState {
		t.Error("bedroom should not have state")
	}
	if !m.devices[1].hasState || m.devices[1].state != state {
		t.Errorf("kitchen state = %+v", m.devices[1].state)
	}

	updated, _ = m.Update(pollMsg(poller.Update{
		Device:    "bedroom",
		At:        time.Now(),
		Err:       session.ErrTimeout,
		Kind:      engine.KindTimeout,
		Available: false,
		Failures:  3,
		Next:      2 * time.Minute,
	}))
	m = updated.(monitorModel)

	if m.devices[0].available {
		t.Error("bedroom should be unavailable")
	}
	last := m.eventLog[len(m.eventLog)-1]
	if !last.isError || !strings.Contains(last.message, "unavailable") {
		t.Errorf("last event = %+v", last)
	}
	if !strings.Contains(m.devices[0].Description(), "unavailable") {
		t.Errorf("Description() = %q", m.devices[0].Description())
	}
}

func TestMonitorControlKeys(t *testing.T) {
	m := testMonitorModel(t, "bedroom")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	if cmd == nil {
		t.Fatal("expected a command for 'o'")
	}
	msg, ok := cmd().(commandResultMsg)
	if !ok {
		t.Fatalf("expected commandResultMsg, got %T", msg)
	}
	if msg.err != nil {
		t.Errorf("open failed: %v", msg.err)
	}
	if msg.device != "bedroom" || msg.what != engine.CommandOpen.String() {
		t.Errorf("result = %+v", msg)
	}

	updated, _ := m.Update(msg)
	m = updated.(monitorModel)
	if !strings.Contains(m.View(), "acknowledged") {
		t.Error("expected acknowledgement in event log")
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestMonitorPositionInput(t *testing.T) {
	m := testMonitorModel(t, "bedroom")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(monitorModel)
	if m.focusedField != focusPositionInput {
		t.Fatal("tab should focus the position input")
	}

	for _, r := range "150" {
		updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = updated.(monitorModel)
	}
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(monitorModel)
	if cmd != nil {
		t.Error("out of range position should not send a command")
	}
	if last := m.eventLog[len(m.eventLog)-1]; !last.isError {
		t.Errorf("expected error event, got %+v", last)
	}

	m.positionInput.SetValue("75")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected position command")
	}
	if msg := cmd().(commandResultMsg); msg.err != nil || msg.what != "position 75%" {
		t.Errorf("result = %+v", msg)
	}
}
