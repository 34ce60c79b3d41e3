// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rapture-chat/rapture/lib/clock"
	"github.com/rapture-chat/rapture/lib/secret"
	"github.com/rapture-chat/rapture/lib/testutil"
)

const (
	testURL       = "wss://gateway.test"
	testResumeURL = "wss://resume.test"
	testInterval  = 40 * time.Second
	waitTimeout   = 5 * time.Second
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeConn is an in-memory Conn. The test plays the server: push
// queues inbound packets, written carries every packet the gateway
// sends, and serverClose ends the connection with a close frame.
type fakeConn struct {
	url     string
	inbound chan []byte
	written chan []byte
	closes  chan int

	closeOnce sync.Mutex
	done      chan struct{}
	readErr   error
}

func newFakeConn(url string) *fakeConn {
	return &fakeConn{
		url:     url,
		inbound: make(chan []byte, 64),
		written: make(chan []byte, 256),
		closes:  make(chan int, 4),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.done:
		return nil, c.terminalError()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}
	c.written <- payload
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.closes <- code
	c.finish(net.ErrClosed)
	return nil
}

func (c *fakeConn) finish(err error) {
	c.closeOnce.Lock()
	defer c.closeOnce.Unlock()
	select {
	case <-c.done:
		return
	default:
	}
	c.readErr = err
	close(c.done)
}

func (c *fakeConn) terminalError() error {
	c.closeOnce.Lock()
	defer c.closeOnce.Unlock()
	return c.readErr
}

// serverClose ends the connection as if the server sent a close frame.
func (c *fakeConn) serverClose(code int) {
	c.finish(&CloseError{Code: code, Reason: "closed by test"})
}

func (c *fakeConn) push(t *testing.T, op Opcode, sequence int64, eventType EventType, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", op, err)
	}
	packet := Packet{Op: op, Sequence: sequence, Type: eventType, Data: raw}
	encoded, err := json.Marshal(packet)
	if err != nil {
		t.Fatalf("marshal packet: %v", err)
	}
	c.inbound <- encoded
}

func (c *fakeConn) pushRaw(data string) {
	c.inbound <- []byte(data)
}

func (c *fakeConn) hello(t *testing.T) {
	t.Helper()
	c.push(t, OpHello, 0, "", helloData{HeartbeatInterval: testInterval.Milliseconds()})
}

func (c *fakeConn) ready(t *testing.T, sequence int64) {
	t.Helper()
	c.push(t, OpDispatch, sequence, EventReady, map[string]any{
		"v":                  10,
		"user":               map[string]any{"id": "80351110224678912", "username": "rapture"},
		"guilds":             []any{map[string]any{"id": "41771983423143937", "unavailable": true}},
		"session_id":         "session-1",
		"resume_gateway_url": testResumeURL,
	})
}

type sentPacket struct {
	Op   Opcode          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// expect reads the next packet the gateway wrote and checks its opcode.
func (c *fakeConn) expect(t *testing.T, op Opcode) json.RawMessage {
	t.Helper()
	raw := testutil.RequireReceive(t, c.written, waitTimeout, fmt.Sprintf("waiting for %s", op))
	var packet sentPacket
	if err := json.Unmarshal(raw, &packet); err != nil {
		t.Fatalf("gateway wrote invalid JSON %q: %v", raw, err)
	}
	if packet.Op != op {
		t.Fatalf("gateway wrote %s (%s), want %s", packet.Op, raw, op)
	}
	return packet.Data
}

func (c *fakeConn) expectClose(t *testing.T, code int) {
	t.Helper()
	got := testutil.RequireReceive(t, c.closes, waitTimeout, "waiting for close")
	if got != code {
		t.Fatalf("close code = %d, want %d", got, code)
	}
}

// fakeDialer hands out a new fakeConn per Dial.
type fakeDialer struct {
	dialed chan *fakeConn

	mu   sync.Mutex
	fail error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeConn, 8)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	fail := d.fail
	d.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	conn := newFakeConn(url)
	d.dialed <- conn
	return conn, nil
}

func (d *fakeDialer) next(t *testing.T, url string) *fakeConn {
	t.Helper()
	conn := testutil.RequireReceive(t, d.dialed, waitTimeout, "waiting for dial")
	if conn.url != url {
		t.Fatalf("dialed %q, want %q", conn.url, url)
	}
	return conn
}

func testToken(t *testing.T) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromBytes([]byte("test-token"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	gateway *Gateway
	dialer  *fakeDialer
	clock   *clock.FakeClock
	cancel  context.CancelFunc
	result  chan error
	done    chan struct{}
}

// newHarness builds a Gateway on a fake dialer and clock. The first
// heartbeat lands at half the interval so the first write after HELLO
// is always IDENTIFY or RESUME.
func newHarness(t *testing.T, options ...func(*Config)) *harness {
	t.Helper()
	fakeClock := clock.Fake(testEpoch)
	dialer := newFakeDialer()
	config := Config{
		URL:     testURL,
		Token:   testToken(t),
		Intents: 513,
		Dialer:  dialer,
		Jitter:  func() float64 { return 0.5 },
		Clock:   fakeClock,
		Logger:  discardLogger(),
	}
	for _, option := range options {
		option(&config)
	}
	gateway, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{gateway: gateway, dialer: dialer, clock: fakeClock}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.result = make(chan error, 1)
	h.done = make(chan struct{})
	go func() {
		defer close(h.done)
		h.result <- h.gateway.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(waitTimeout):
			t.Errorf("Run did not return after cancel")
		}
	})
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	return testutil.RequireReceive(t, h.result, waitTimeout, "waiting for Run to return")
}

// connectReady drives a fresh connection through HELLO, IDENTIFY and
// READY.
func (h *harness) connectReady(t *testing.T, sequence int64) *fakeConn {
	t.Helper()
	readyCh := make(chan struct{}, 1)
	On(h.gateway, func(ctx context.Context, ready *Ready) {
		select {
		case readyCh <- struct{}{}:
		default:
		}
	})
	conn := h.dialer.next(t, testURL)
	conn.hello(t)
	conn.expect(t, OpIdentify)
	conn.ready(t, sequence)
	testutil.RequireReceive(t, readyCh, waitTimeout, "waiting for READY handler")
	return conn
}

// beat moves the fake clock past the next heartbeat deadline.
func (h *harness) beat(pending int, d time.Duration) {
	h.clock.WaitForTimers(pending)
	h.clock.Advance(d)
}

var errDialRefused = errors.New("connection refused")
