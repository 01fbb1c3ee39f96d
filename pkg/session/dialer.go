// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// Conn is a duplex byte stream with read deadlines
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

// Dialer establishes the byte stream a Session runs over
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
	String() string
}

// failer is implemented by connections that cannot be reused after a read
// timeout. The session closes them so the next Open dials again.
type failer interface {
	Failed() bool
}

// DefaultDialTimeout bounds connection establishment when none is configured
const DefaultDialTimeout = 10 * time.Second

// ============================================================
// TCP gateway
// ============================================================

// TCPDialer connects to a TCP-to-RS485 gateway
type TCPDialer struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Dial opens the TCP connection
func (d *TCPDialer) Dial(ctx context.Context) (Conn, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	nd := net.Dialer{Timeout: timeout}
	conn, err := nd.DialContext(ctx, "tcp", net.JoinHostPort(d.Host, strconv.Itoa(d.Port)))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (d *TCPDialer) String() string {
	return fmt.Sprintf("TCP: %s", net.JoinHostPort(d.Host, strconv.Itoa(d.Port)))
}

// ============================================================
// Serial port
// ============================================================

// SerialDialer opens a local RS485 adapter
type SerialDialer struct {
	PortName string
	BaudRate int
}

// Dial opens the serial port (8N1)
func (d *SerialDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: d.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", d.PortName, err)
	}

	return &serialConn{port: port}, nil
}

func (d *SerialDialer) String() string {
	return fmt.Sprintf("Serial: %s @ %d baud", d.PortName, d.BaudRate)
}

// serialConn adapts serial.Port read timeouts to deadlines
type serialConn struct {
	port     serial.Port
	deadline time.Time
}

func (s *serialConn) Read(p []byte) (int, error) {
	if s.deadline.IsZero() {
		if err := s.port.SetReadTimeout(serial.NoTimeout); err != nil {
			return 0, err
		}
	} else {
		remaining := time.Until(s.deadline)
		if remaining <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
		if err := s.port.SetReadTimeout(remaining); err != nil {
			return 0, err
		}
	}

	n, err := s.port.Read(p)
	if err == nil && n == 0 {
		// go.bug.st/serial reports an elapsed read timeout as a zero-length read
		return 0, os.ErrDeadlineExceeded
	}
	return n, err
}

func (s *serialConn) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialConn) SetReadDeadline(t time.Time) error {
	s.deadline = t
	return nil
}

func (s *serialConn) Close() error {
	return s.port.Close()
}

// ============================================================
// WebSocket bridge
// ============================================================

// ErrWebSocketClosed is returned when reading from a failed WebSocket connection
var ErrWebSocketClosed = errors.New("websocket connection closed")

// WebSocketDialer connects to a WebSocket-to-serial bridge that carries raw
// bus bytes in binary messages
type WebSocketDialer struct {
	URL              string
	Username         string
	Password         string
	SkipSSLVerify    bool
	HandshakeTimeout time.Duration
}

// Dial performs the WebSocket handshake with optional HTTP Basic auth
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: d.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if d.Username != "" && d.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(d.Username + ":" + d.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, d.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &wsConn{conn: conn}, nil
}

func (d *WebSocketDialer) String() string {
	return fmt.Sprintf("WebSocket: %s", d.URL)
}

// wsConn exposes binary WebSocket messages as a byte stream
type wsConn struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	failed    bool
}

func (w *wsConn) Read(p []byte) (int, error) {
	if w.failed {
		return 0, ErrWebSocketClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			// gorilla/websocket connections are unusable after any read error,
			// including a deadline
			w.failed = true
			return 0, err
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) SetReadDeadline(t time.Time) error {
	return w.conn.SetReadDeadline(t)
}

func (w *wsConn) Failed() bool {
	return w.failed
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
