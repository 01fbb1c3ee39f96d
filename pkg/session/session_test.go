// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/gorilla/websocket"
)

// pipeDialer hands out one end of a net.Pipe and runs device on the other
type pipeDialer struct {
	dials  int
	err    error
	device func(conn net.Conn)
}

func (d *pipeDialer) Dial(ctx context.Context) (Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.dials++
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		d.device(server)
	}()
	return client, nil
}

func (d *pipeDialer) String() string {
	return "pipe"
}

// respondWith reads one request and writes reply
func respondWith(reply []byte) func(net.Conn) {
	return func(conn net.Conn) {
		req := make([]byte, dooya.FrameSize)
		if _, err := io.ReadFull(conn, req); err != nil {
			return
		}
		conn.Write(reply)
		io.Copy(io.Discard, conn)
	}
}

var statusResponse = []byte{0x55, 0x02, 0xFE, 0x01, 0x00, 0x32, 0x94, 0x23}

func openSession(t *testing.T, d Dialer, opts ...Option) *Session {
	t.Helper()
	s := New(d, opts...)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSendAndAwait_Response(t *testing.T) {
	// Leading noise must be skipped by the framer
	reply := append([]byte{0x00, 0xFF}, statusResponse...)
	s := openSession(t, &pipeDialer{device: respondWith(reply)})

	req := dooya.NewStatusRequest(dooya.NewAddress(0x02, 0xFE)).Bytes()
	got, err := s.SendAndAwait(req, time.Second)
	if err != nil {
		t.Fatalf("SendAndAwait failed: %v", err)
	}
	if !bytes.Equal(got, statusResponse) {
		t.Errorf("response = % X, want % X", got, statusResponse)
	}
}

func TestSendAndAwait_Timeout(t *testing.T) {
	silent := func(conn net.Conn) { io.Copy(io.Discard, conn) }
	s := openSession(t, &pipeDialer{device: silent})

	start := time.Now()
	_, err := s.SendAndAwait(dooya.NewStatusRequest(dooya.FactoryAddress).Bytes(), 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
	if !s.IsOpen() {
		t.Error("a timeout should leave the session open")
	}
}

func TestSendAndAwait_PartialFrameTimesOut(t *testing.T) {
	s := openSession(t, &pipeDialer{device: respondWith(statusResponse[:5])})

	_, err := s.SendAndAwait(dooya.NewStatusRequest(dooya.FactoryAddress).Bytes(), 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout for a truncated response, got %v", err)
	}
}

func TestSendAndAwait_ConnectionLost(t *testing.T) {
	hangup := func(conn net.Conn) {
		req := make([]byte, dooya.FrameSize)
		io.ReadFull(conn, req)
	}
	s := openSession(t, &pipeDialer{device: hangup})

	_, err := s.SendAndAwait(dooya.NewStatusRequest(dooya.FactoryAddress).Bytes(), time.Second)
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
	if s.IsOpen() {
		t.Error("session should close itself after the connection is lost")
	}
}

func TestSendAndAwait_NotOpen(t *testing.T) {
	s := New(&pipeDialer{device: respondWith(statusResponse)})
	_, err := s.SendAndAwait(dooya.NewStatusRequest(dooya.FactoryAddress).Bytes(), time.Second)
	if !errors.Is(err, ErrConnectionLost) {
		t.Errorf("expected ErrConnectionLost, got %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	d := &pipeDialer{device: respondWith(statusResponse)}
	s := openSession(t, d)

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	if d.dials != 1 {
		t.Errorf("dials = %d, want 1", d.dials)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close on a closed session should succeed, got %v", err)
	}
}

func TestOpen_DialFailure(t *testing.T) {
	s := New(&pipeDialer{err: errors.New("refused")})
	err := s.Open(context.Background())
	if !errors.Is(err, ErrConnectionLost) {
		t.Errorf("expected ErrConnectionLost, got %v", err)
	}
	if s.IsOpen() {
		t.Error("session should remain closed")
	}
}

func TestReceive_QueuesBackToBackFrames(t *testing.T) {
	request := []byte{0x55, 0xFE, 0xFE, 0x04, 0x01, 0x00, 0x54, 0x73}
	burst := append(append([]byte{}, request...), statusResponse...)
	send := func(conn net.Conn) {
		conn.Write(burst)
		io.Copy(io.Discard, conn)
	}
	s := openSession(t, &pipeDialer{device: send})

	first, err := s.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	second, err := s.Receive(time.Second)
	if err != nil {
		t.Fatalf("second Receive failed: %v", err)
	}
	if !bytes.Equal(first, request) || !bytes.Equal(second, statusResponse) {
		t.Errorf("frames out of order: % X / % X", first, second)
	}
}

func TestSession_Trace(t *testing.T) {
	var buf bytes.Buffer
	s := openSession(t, &pipeDialer{device: respondWith(statusResponse)},
		WithTrace(dooya.NewTraceWriter(&buf)))

	req := dooya.NewStatusRequest(dooya.NewAddress(0x02, 0xFE)).Bytes()
	if _, err := s.SendAndAwait(req, time.Second); err != nil {
		t.Fatalf("SendAndAwait failed: %v", err)
	}

	r := dooya.NewTraceReader(&buf)
	tx, err := r.Next()
	if err != nil || tx.Direction != dooya.DirectionTX || !bytes.Equal(tx.Bytes, req) {
		t.Fatalf("TX record = %+v, %v", tx, err)
	}
	rx, err := r.Next()
	if err != nil || rx.Direction != dooya.DirectionRX || !bytes.Equal(rx.Bytes, statusResponse) {
		t.Fatalf("RX record = %+v, %v", rx, err)
	}
}

func TestTCPDialer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		respondWith(statusResponse)(conn)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	d := &TCPDialer{Host: "127.0.0.1", Port: addr.Port, Timeout: time.Second}
	if d.String() != "TCP: 127.0.0.1:"+strconv.Itoa(addr.Port) {
		t.Errorf("String = %q", d.String())
	}

	s := openSession(t, d)
	got, err := s.SendAndAwait(dooya.NewStatusRequest(dooya.NewAddress(0x02, 0xFE)).Bytes(), time.Second)
	if err != nil {
		t.Fatalf("SendAndAwait failed: %v", err)
	}
	if !bytes.Equal(got, statusResponse) {
		t.Errorf("response = % X", got)
	}
}

func TestWebSocketDialer_RejectsScheme(t *testing.T) {
	d := &WebSocketDialer{URL: "http://example.invalid/bus"}
	if _, err := d.Dial(context.Background()); err == nil {
		t.Error("expected an error for a non-ws scheme")
	}
}

func TestWebSocketDialer_BinaryBridge(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		// Text messages are ignored; the response is split across two binary messages
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		conn.WriteMessage(websocket.BinaryMessage, statusResponse[:3])
		conn.WriteMessage(websocket.BinaryMessage, statusResponse[3:])
		conn.ReadMessage()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	d := &WebSocketDialer{URL: wsURL, Username: "admin", Password: "secret"}
	s := openSession(t, d)

	got, err := s.SendAndAwait(dooya.NewStatusRequest(dooya.NewAddress(0x02, 0xFE)).Bytes(), time.Second)
	if err != nil {
		t.Fatalf("SendAndAwait failed: %v", err)
	}
	if !bytes.Equal(got, statusResponse) {
		t.Errorf("response = % X", got)
	}
	s.Close()

	bad := New(&WebSocketDialer{URL: wsURL, Username: "admin", Password: "wrong"})
	if err := bad.Open(context.Background()); !errors.Is(err, ErrConnectionLost) {
		t.Errorf("expected dial failure, got %v", err)
	}
}
