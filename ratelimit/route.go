// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package ratelimit

// RouteKey identifies a rate-limited route from the client's side:
// the route shape ("GET /channels/:id/messages") and the value of its
// major parameter, if any. Requests with different major ids are
// limited independently even on the same route shape.
type RouteKey struct {
	Route   string
	MajorID string
}

func (key RouteKey) String() string {
	if key.MajorID == "" {
		return key.Route
	}
	return key.Route + " [" + key.MajorID + "]"
}
