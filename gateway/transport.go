// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zlib"

	"github.com/rapture-chat/rapture/lib/version"
)

// APIVersion is the gateway protocol version requested on connect.
const APIVersion = "10"

// maxMessageSize bounds a single inbound gateway message after
// decompression: 16 MB. GUILD_CREATE for a large guild is the biggest
// legitimate payload.
const maxMessageSize = 16 << 20

// writeTimeout bounds a write whose context carries no deadline.
const writeTimeout = 10 * time.Second

// Dialer opens gateway connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is one gateway connection. Read and Write may be called
// concurrently with each other but not with themselves. Close may be
// called from any goroutine and unblocks a pending Read.
type Conn interface {
	// Read returns the next JSON payload. When the peer closes the
	// connection with a close frame, the error is a *CloseError.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one JSON payload as a text message.
	Write(ctx context.Context, payload []byte) error

	// Close sends a close frame with code and reason and releases the
	// connection.
	Close(code int, reason string) error
}

// WebSocketDialer dials the gateway over WebSocket.
type WebSocketDialer struct {
	// Dialer is the underlying WebSocket dialer. Defaults to
	// websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Header is sent with the upgrade request. A User-Agent from
	// lib/version is added when absent.
	Header http.Header
}

// Dial connects to rawURL after adding the protocol version and
// encoding parameters if the URL does not already carry them.
func (d WebSocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	target, err := gatewayURL(rawURL)
	if err != nil {
		return nil, err
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := d.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if header.Get("User-Agent") == "" {
		header.Set("User-Agent", version.UserAgent())
	}

	conn, response, err := dialer.DialContext(ctx, target, header)
	if response != nil && response.Body != nil {
		response.Body.Close()
	}
	if err != nil {
		if response != nil {
			return nil, fmt.Errorf("gateway: dialing %s: %w (HTTP %d)", target, err, response.StatusCode)
		}
		return nil, fmt.Errorf("gateway: dialing %s: %w", target, err)
	}
	conn.SetReadLimit(maxMessageSize)
	return &websocketConn{conn: conn}, nil
}

// gatewayURL adds v and encoding query parameters.
func gatewayURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("gateway: parsing URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "wss" && parsed.Scheme != "ws" {
		return "", fmt.Errorf("gateway: URL %q must use ws or wss", rawURL)
	}
	query := parsed.Query()
	if query.Get("v") == "" {
		query.Set("v", APIVersion)
	}
	if query.Get("encoding") == "" {
		query.Set("encoding", "json")
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) Read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, &CloseError{Code: closeErr.Code, Reason: closeErr.Text}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	switch messageType {
	case websocket.TextMessage:
		return data, nil
	case websocket.BinaryMessage:
		return inflate(data)
	default:
		return nil, fmt.Errorf("gateway: unexpected message type %d", messageType)
	}
}

func (c *websocketConn) Write(ctx context.Context, payload []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *websocketConn) Close(code int, reason string) error {
	message := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
	return c.conn.Close()
}

// inflate decompresses a zlib-compressed payload, sent by the server
// when IDENTIFY asked for compression.
func inflate(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gateway: opening compressed payload: %w", err)
	}
	defer reader.Close()

	inflated, err := io.ReadAll(io.LimitReader(reader, maxMessageSize+1))
	if err != nil {
		return nil, fmt.Errorf("gateway: inflating payload: %w", err)
	}
	if len(inflated) > maxMessageSize {
		return nil, fmt.Errorf("gateway: inflated payload exceeds %d bytes", maxMessageSize)
	}
	return inflated, nil
}
