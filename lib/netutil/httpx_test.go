// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"
)

type failReader struct{}

func (*failReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestReadResponse(t *testing.T) {
	data, err := ReadResponse(strings.NewReader(`{"id":"1"}`))
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if string(data) != `{"id":"1"}` {
		t.Errorf("got %q", data)
	}

	if _, err := ReadResponse(&failReader{}); err == nil {
		t.Error("expected error from failing reader")
	}
}

func TestReadResponse_Bounded(t *testing.T) {
	oversized := io.MultiReader(
		bytes.NewReader(make([]byte, MaxResponseSize)),
		strings.NewReader("overflow"),
	)
	data, err := ReadResponse(oversized)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if int64(len(data)) != MaxResponseSize {
		t.Errorf("read %d bytes, want %d", len(data), MaxResponseSize)
	}
}

func TestDecodeResponse(t *testing.T) {
	var result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := DecodeResponse(strings.NewReader(`{"code":10003,"message":"Unknown Channel"}`), &result); err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if result.Code != 10003 || result.Message != "Unknown Channel" {
		t.Errorf("decoded %+v", result)
	}

	if err := DecodeResponse(strings.NewReader("not json"), &result); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"EOF", io.EOF, true},
		{"wrapped EOF", fmt.Errorf("reading frame: %w", io.EOF), true},
		{"closed", net.ErrClosed, true},
		{"broken pipe", syscall.EPIPE, true},
		{"reset", syscall.ECONNRESET, true},
		{"other", errors.New("tls: bad certificate"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}
