// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestParseHeadersResetPrecedence(t *testing.T) {
	now := epoch
	absolute := now.Add(10 * time.Second)

	tests := []struct {
		name      string
		headers   map[string]string
		wantReset time.Time
		wantOK    bool
	}{
		{
			name: "retry-after overrides everything",
			headers: map[string]string{
				HeaderRemaining:  "0",
				HeaderReset:      "1772366410",
				HeaderResetAfter: "10",
				HeaderRetryAfter: "1.5",
			},
			wantReset: now.Add(1500 * time.Millisecond),
			wantOK:    true,
		},
		{
			name: "reset-after preferred over absolute reset",
			headers: map[string]string{
				HeaderRemaining:  "3",
				HeaderReset:      "1772366499",
				HeaderResetAfter: "0.25",
			},
			wantReset: now.Add(250 * time.Millisecond),
			wantOK:    true,
		},
		{
			name: "absolute reset",
			headers: map[string]string{
				HeaderRemaining: "3",
				HeaderReset:     "1772366410",
			},
			wantReset: absolute,
			wantOK:    true,
		},
		{
			name: "fractional absolute reset",
			headers: map[string]string{
				HeaderRemaining: "3",
				HeaderReset:     "1772366410.5",
			},
			wantReset: absolute.Add(500 * time.Millisecond),
			wantOK:    true,
		},
		{
			name:      "retry-after only",
			headers:   map[string]string{HeaderRetryAfter: "4"},
			wantReset: now.Add(4 * time.Second),
			wantOK:    true,
		},
		{
			name:    "remaining without reset",
			headers: map[string]string{HeaderRemaining: "3"},
			wantOK:  false,
		},
		{
			name:    "no headers",
			headers: map[string]string{},
			wantOK:  false,
		},
		{
			name:    "malformed reset-after falls through to nothing",
			headers: map[string]string{HeaderRemaining: "1", HeaderResetAfter: "soon"},
			wantOK:  false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			header := http.Header{}
			for name, value := range test.headers {
				header.Set(name, value)
			}
			state, ok := ParseHeaders(header, now)
			if ok != test.wantOK {
				t.Fatalf("ParseHeaders() ok = %v, want %v", ok, test.wantOK)
			}
			if !ok {
				return
			}
			if !state.Reset.Equal(test.wantReset) {
				t.Errorf("Reset = %v, want %v", state.Reset, test.wantReset)
			}
		})
	}
}

func TestParseHeadersFields(t *testing.T) {
	header := http.Header{}
	header.Set(HeaderLimit, "10")
	header.Set(HeaderRemaining, "7")
	header.Set(HeaderResetAfter, "1")
	header.Set(HeaderBucket, "abc")
	header.Set(HeaderGlobal, "true")

	state, ok := ParseHeaders(header, epoch)
	if !ok {
		t.Fatal("ParseHeaders() = false")
	}
	if state.Limit != 10 || state.Remaining != 7 {
		t.Errorf("state = %+v", state)
	}
	if state.ServerID != "abc" {
		t.Errorf("ServerID = %q", state.ServerID)
	}
	if !state.Global {
		t.Error("Global = false")
	}
}

func TestParseHeadersRetryAfterOnlyIsExhausted(t *testing.T) {
	header := http.Header{}
	header.Set(HeaderRetryAfter, "2")
	state, ok := ParseHeaders(header, epoch)
	if !ok {
		t.Fatal("ParseHeaders() = false")
	}
	if state.Limit != 0 || state.Remaining != 0 {
		t.Errorf("state = %+v, want an exhausted window", state)
	}
}
