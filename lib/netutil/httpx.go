// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small HTTP and connection helpers shared by the
// REST client and the gateway transport.
//
// ReadResponse and DecodeResponse cap body reads at MaxResponseSize so a
// misbehaving server cannot exhaust memory. IsExpectedCloseError tells
// an orderly connection teardown apart from a real transport failure.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds REST response body reads: 32 MB. Platform
// responses are far smaller; the largest legitimate bodies are message
// history pages.
const MaxResponseSize int64 = 32 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a JSON body (bounded) and decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := ReadResponse(body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}
