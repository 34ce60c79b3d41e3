// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// GatewayInfo is the response of GET /gateway.
type GatewayInfo struct {
	URL string `json:"url"`
}

// GatewayBotInfo is the response of GET /gateway/bot, which adds a
// sharding recommendation and the identify budget.
type GatewayBotInfo struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// SessionStartLimit reports how many IDENTIFYs remain in the current
// window. ResetAfter is in milliseconds.
type SessionStartLimit struct {
	Total          int `json:"total"`
	Remaining      int `json:"remaining"`
	ResetAfter     int `json:"reset_after"`
	MaxConcurrency int `json:"max_concurrency"`
}
