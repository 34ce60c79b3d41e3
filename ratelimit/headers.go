// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Response header names.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderResetAfter = "X-RateLimit-Reset-After"
	HeaderBucket     = "X-RateLimit-Bucket"
	HeaderGlobal     = "X-RateLimit-Global"
	HeaderScope      = "X-RateLimit-Scope"
	HeaderRetryAfter = "Retry-After"
)

// State is the limit state parsed from one response.
type State struct {
	ServerID  string
	Limit     int
	Remaining int
	Reset     time.Time
	Global    bool
}

// ParseHeaders extracts limit state from header, resolving times
// against now.
//
// The reset time comes from the first of these that is present and
// parses: Retry-After (seconds, set on 429 responses and authoritative
// for them), X-RateLimit-Reset-After (seconds from now, which is immune
// to skew between the local and server clocks), then X-RateLimit-Reset
// (absolute epoch seconds). All three accept fractional values.
//
// A response carrying X-RateLimit-Remaining and a reset is usable. A
// response carrying only Retry-After is also usable and yields an
// exhausted window (limit and remaining zero) ending after the retry
// delay. Anything else returns false.
func ParseHeaders(header http.Header, now time.Time) (State, bool) {
	state := State{
		ServerID: header.Get(HeaderBucket),
		Global:   strings.EqualFold(header.Get(HeaderGlobal), "true"),
	}

	retryAfter, hasRetryAfter := parseSeconds(header.Get(HeaderRetryAfter))
	remaining, remainingErr := strconv.Atoi(header.Get(HeaderRemaining))

	if remainingErr != nil {
		if !hasRetryAfter {
			return State{}, false
		}
		state.Reset = now.Add(retryAfter)
		return state, true
	}

	switch {
	case hasRetryAfter:
		state.Reset = now.Add(retryAfter)
	default:
		if resetAfter, ok := parseSeconds(header.Get(HeaderResetAfter)); ok {
			state.Reset = now.Add(resetAfter)
		} else if reset, ok := parseEpochSeconds(header.Get(HeaderReset)); ok {
			state.Reset = reset
		} else {
			return State{}, false
		}
	}

	state.Remaining = remaining
	if limit, err := strconv.Atoi(header.Get(HeaderLimit)); err == nil {
		state.Limit = limit
	} else {
		state.Limit = remaining
	}
	return state, true
}

// parseSeconds parses a non-negative, possibly fractional, count of
// seconds.
func parseSeconds(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func parseEpochSeconds(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return time.Time{}, false
	}
	whole := int64(seconds)
	fraction := seconds - float64(whole)
	return time.Unix(whole, int64(fraction*float64(time.Second))), true
}
