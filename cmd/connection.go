// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/velarium/internal/config"
	"github.com/Thermoquad/velarium/internal/logging"
	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/Thermoquad/velarium/pkg/engine"
	"github.com/Thermoquad/velarium/pkg/session"
	"golang.org/x/term"
)

// PasswordEnvVar holds the WebSocket password so it never appears in shell history
const PasswordEnvVar = "VELARIUM_PASSWORD"

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv(PasswordEnvVar); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// newDialer builds the dialer for the configured gateway
func newDialer(gw config.Gateway) (session.Dialer, error) {
	switch gw.Transport {
	case config.TransportTCP:
		if gw.Host == "" {
			return nil, fmt.Errorf("no gateway host: use --host or set gateway.host")
		}
		return &session.TCPDialer{Host: gw.Host, Port: gw.Port, Timeout: gw.DialTimeout}, nil

	case config.TransportSerial:
		if gw.SerialPort == "" {
			return nil, fmt.Errorf("no serial port: use --port or set gateway.serial_port")
		}
		return &session.SerialDialer{PortName: gw.SerialPort, BaudRate: gw.Baud}, nil

	case config.TransportWebSocket:
		if gw.URL == "" {
			return nil, fmt.Errorf("no bridge URL: use --url or set gateway.url")
		}
		password := ""
		if gw.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}
		return &session.WebSocketDialer{
			URL:              gw.URL,
			Username:         gw.Username,
			Password:         password,
			SkipSSLVerify:    gw.NoSSLVerify,
			HandshakeTimeout: gw.DialTimeout,
		}, nil
	}

	return nil, fmt.Errorf("unknown transport %q", gw.Transport)
}

// Connection bundles the session, the engine driving it and the optional
// trace file
type Connection struct {
	Session *session.Session
	Engine  *engine.Engine
	Name    string

	trace *os.File
}

// OpenConnection builds a session and engine from the loaded settings. The
// session is dialed lazily by the first transaction.
func OpenConnection() (*Connection, error) {
	dialer, err := newDialer(settings.Gateway)
	if err != nil {
		return nil, err
	}

	c := &Connection{Name: dialer.String()}

	opts := []session.Option{session.WithLogger(logging.Named("session"))}
	if traceFile != "" {
		f, err := os.Create(traceFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace file: %w", err)
		}
		c.trace = f
		opts = append(opts, session.WithTrace(dooya.NewTraceWriter(f)))
	}

	c.Session = session.New(dialer, opts...)
	c.Engine = engine.New(c.Session,
		engine.WithAttempts(settings.Engine.Attempts),
		engine.WithTimeout(settings.Engine.Timeout),
		engine.WithBusyPolicy(settings.BusyPolicy()),
		engine.WithLogger(logging.Named("engine")),
	)
	return c, nil
}

// Close releases the connection and flushes the trace file
func (c *Connection) Close() {
	c.Engine.Close()
	if c.trace != nil {
		c.trace.Close()
	}
}

// Device resolves the target device from --addr, --device, or the only
// configured device
func (c *Connection) Device() (*engine.Device, error) {
	name, addr, err := resolveDevice()
	if err != nil {
		return nil, err
	}
	return engine.NewDevice(c.Engine, name, addr), nil
}

// Devices returns every configured device, or the selected one when
// --addr or --device is given
func (c *Connection) Devices() ([]*engine.Device, error) {
	if deviceAddr != "" || deviceName != "" || len(settings.Devices) == 0 {
		d, err := c.Device()
		if err != nil {
			return nil, err
		}
		return []*engine.Device{d}, nil
	}

	devices := make([]*engine.Device, 0, len(settings.Devices))
	for _, d := range settings.Devices {
		devices = append(devices, engine.NewDevice(c.Engine, d.Name, d.Address()))
	}
	return devices, nil
}

func resolveDevice() (string, dooya.Address, error) {
	if deviceAddr != "" {
		addr, err := dooya.ParseAddress(deviceAddr)
		if err != nil {
			return "", dooya.Address{}, err
		}
		name := deviceName
		if name == "" {
			name = addr.String()
		}
		return name, addr, nil
	}

	if deviceName != "" {
		d, err := settings.FindDevice(deviceName)
		if err != nil {
			return "", dooya.Address{}, err
		}
		return d.Name, d.Address(), nil
	}

	if len(settings.Devices) == 1 {
		d := settings.Devices[0]
		return d.Name, d.Address(), nil
	}

	return "", dooya.Address{}, fmt.Errorf("no device selected: use --device or --addr")
}
