// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rapture-chat/rapture/ratelimit"
)

// Request describes one API call.
type Request struct {
	// Route is the rate-limit route shape, for example
	// "GET /channels/:channel_id/messages". Empty derives it from Method
	// and Path with [ParseRoute].
	Route string

	// MajorID is the value of the route's major parameter (the channel,
	// guild, or webhook id). Ignored when Route is empty; ParseRoute
	// extracts it.
	MajorID string

	// Method defaults to GET.
	Method string

	// Path is relative to the client's base URL and starts with "/".
	Path string

	// Query is appended to the URL when non-empty.
	Query url.Values

	// Body is JSON-encoded unless it is already []byte or
	// json.RawMessage. Nil sends no body.
	Body any

	// Header holds extra request headers. Authorization, User-Agent,
	// and Content-Type are always set by the client.
	Header http.Header

	// Reason is recorded in the guild audit log for moderation
	// actions.
	Reason string
}

func (request Request) routeKey(method string) ratelimit.RouteKey {
	if request.Route != "" {
		return ratelimit.RouteKey{Route: request.Route, MajorID: request.MajorID}
	}
	route, majorID := ParseRoute(method, request.Path)
	return ratelimit.RouteKey{Route: route, MajorID: majorID}
}

// Response is a completed API response with its body read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (response *Response) Decode(v any) error {
	if err := json.Unmarshal(response.Body, v); err != nil {
		return fmt.Errorf("rest: decoding response: %w", err)
	}
	return nil
}
