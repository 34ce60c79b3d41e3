// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/rapture-chat/rapture/lib/clock"
)

// Limiter is the registry of rate-limit buckets for one client.
//
// Lookups take a read lock, so requests on different buckets never
// contend on the registry; only bucket creation and aliasing take the
// write lock.
type Limiter struct {
	clock clock.Clock

	mu         sync.RWMutex
	byRoute    map[RouteKey]*Bucket
	byServerID map[string]*Bucket

	global *Bucket
}

// New creates an empty Limiter. A nil clock uses [clock.Real].
func New(clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.Real()
	}
	return &Limiter{
		clock:      clk,
		byRoute:    make(map[RouteKey]*Bucket),
		byServerID: make(map[string]*Bucket),
		global:     newBucket(clk, "", 0, 0, time.Time{}),
	}
}

// Global returns the bucket shared by every request. It exists from
// construction and starts unthrottled.
func (limiter *Limiter) Global() *Bucket {
	return limiter.global
}

// BucketByRouteKey returns the bucket for key, or nil if no response on
// that route has reported rate-limit headers yet.
func (limiter *Limiter) BucketByRouteKey(key RouteKey) *Bucket {
	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	return limiter.byRoute[key]
}

// BucketByServerID returns the bucket the server identified as id, or
// nil.
func (limiter *Limiter) BucketByServerID(id string) *Bucket {
	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	return limiter.byServerID[id]
}

// Update records limit state for key.
//
// When serverID names a known bucket, that bucket is updated in place
// and key is aliased to it, replacing any bucket key pointed at before.
// When key already maps to a bucket the server has not identified (or
// serverID is empty), that bucket is updated in place so a cooldown in
// progress on it carries over. Otherwise a new bucket is created and
// indexed under key and, when non-empty, serverID.
func (limiter *Limiter) Update(key RouteKey, serverID string, limit, remaining int, reset time.Time) *Bucket {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	if serverID != "" {
		if bucket, ok := limiter.byServerID[serverID]; ok {
			bucket.Update(limit, remaining, reset)
			limiter.byRoute[key] = bucket
			return bucket
		}
	}

	if bucket, ok := limiter.byRoute[key]; ok {
		existingID := bucket.ServerID()
		if serverID == "" || existingID == "" {
			bucket.Update(limit, remaining, reset)
			if serverID != "" {
				bucket.mu.Lock()
				bucket.serverID = serverID
				bucket.mu.Unlock()
				limiter.byServerID[serverID] = bucket
			}
			return bucket
		}
	}

	bucket := newBucket(limiter.clock, serverID, limit, remaining, reset)
	limiter.byRoute[key] = bucket
	if serverID != "" {
		limiter.byServerID[serverID] = bucket
	}
	return bucket
}

// UpdateFromHeaders records the limit state carried by a response's
// headers against key. Returns the bucket and true, or nil and false
// when the response had no usable rate-limit headers.
func (limiter *Limiter) UpdateFromHeaders(key RouteKey, header http.Header) (*Bucket, bool) {
	state, ok := ParseHeaders(header, limiter.clock.Now())
	if !ok {
		return nil, false
	}
	return limiter.Update(key, state.ServerID, state.Limit, state.Remaining, state.Reset), true
}

// UpdateGlobal applies a response's headers to the global bucket.
// Used when the server marks a limit as global.
func (limiter *Limiter) UpdateGlobal(header http.Header) bool {
	state, ok := ParseHeaders(header, limiter.clock.Now())
	if !ok {
		return false
	}
	limiter.global.Update(state.Limit, state.Remaining, state.Reset)
	return true
}
