// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rapture-chat/rapture/lib/clock"
)

// ErrNegativeWait is returned by [Bucket.LockUntilReset] when the reset
// time is already in the past. It usually means the local clock and
// the server disagree.
var ErrNegativeWait = errors.New("ratelimit: cannot wait for negative duration, clock may be out of sync")

// Bucket is one server-side quota window.
//
// State (limit, remaining, reset) is guarded by a mutex and changes only
// through [Bucket.Update], [Bucket.SetReset] and [Bucket.Reserve]. Independently, the gate
// serializes cooldowns: while one caller holds it for a wait, every
// other caller that reaches the bucket queues behind it. The gate is a
// one-slot channel so a queued caller can give up when its context is
// cancelled.
type Bucket struct {
	clock clock.Clock

	mu        sync.Mutex
	limit     int
	remaining int
	reset     time.Time
	serverID  string

	gate chan struct{}
}

func newBucket(clk clock.Clock, serverID string, limit, remaining int, reset time.Time) *Bucket {
	return &Bucket{
		clock:     clk,
		limit:     limit,
		remaining: remaining,
		reset:     reset,
		serverID:  serverID,
		gate:      make(chan struct{}, 1),
	}
}

// Limit returns the request count of the bucket's window.
func (bucket *Bucket) Limit() int {
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	return bucket.limit
}

// Remaining returns the requests left before the window resets.
func (bucket *Bucket) Remaining() int {
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	return bucket.remaining
}

// ResetTime returns when the current window ends.
func (bucket *Bucket) ResetTime() time.Time {
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	return bucket.reset
}

// ServerID returns the server's bucket id, or "" if none was reported.
func (bucket *Bucket) ServerID() string {
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	return bucket.serverID
}

// Locked reports whether a caller currently holds the cooldown gate.
func (bucket *Bucket) Locked() bool {
	return len(bucket.gate) > 0
}

// Update replaces the bucket's state with values observed in a
// response.
func (bucket *Bucket) Update(limit, remaining int, reset time.Time) {
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	bucket.limit = limit
	bucket.remaining = remaining
	bucket.reset = reset
}

// SetReset moves the end of the current window to reset, leaving the
// limit and remaining count alone. A 429's retry delay replaces
// whatever reset the response headers reported.
func (bucket *Bucket) SetReset(reset time.Time) {
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	bucket.reset = reset
}

// WillLimit reports whether sending now would exceed the window: no
// requests remain and the reset time has not passed.
func (bucket *Bucket) WillLimit() bool {
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	return bucket.willLimitLocked(bucket.clock.Now())
}

func (bucket *Bucket) willLimitLocked(now time.Time) bool {
	return bucket.remaining-1 < 0 && !now.After(bucket.reset)
}

// LockFor holds the gate for exactly d. Other callers arriving at the
// bucket block in [Bucket.WaitUntilAvailable] or [Bucket.Preflight]
// until it is released. Returns the context's error if cancelled while
// queued or while waiting; the gate is released either way.
func (bucket *Bucket) LockFor(ctx context.Context, d time.Duration) error {
	if err := bucket.acquire(ctx); err != nil {
		return err
	}
	defer bucket.release()
	return bucket.sleep(ctx, d)
}

// LockUntilReset holds the gate until the bucket's reset time. If the
// reset time has already passed it returns an error wrapping
// [ErrNegativeWait] without waiting.
func (bucket *Bucket) LockUntilReset(ctx context.Context) error {
	wait := clock.Until(bucket.clock, bucket.ResetTime())
	if wait < 0 {
		return fmt.Errorf("%w (%s)", ErrNegativeWait, wait)
	}
	return bucket.LockFor(ctx, wait)
}

// WaitUntilAvailable returns once no caller holds the gate. It waits
// for the current holder only and never starts a cooldown of its own.
func (bucket *Bucket) WaitUntilAvailable(ctx context.Context) error {
	if err := bucket.acquire(ctx); err != nil {
		return err
	}
	bucket.release()
	return nil
}

// Preflight prepares the bucket for one request. It waits for any held
// gate, then, if [Bucket.WillLimit] holds, keeps the gate until the
// reset time. The limit check and the wait computation happen under one
// lock, so the reset passing in between cannot produce a negative wait.
// Returns how long it waited for the reset (zero when the request may
// go immediately). Preflight does not count the request; see
// [Bucket.Reserve].
func (bucket *Bucket) Preflight(ctx context.Context) (time.Duration, error) {
	return bucket.preflight(ctx, false)
}

// Reserve is [Bucket.Preflight] followed by recording one request
// against the window. The decrement happens while the gate is still
// held and in the same critical section as the final limit check, so
// two callers can never both spend the last remaining request.
func (bucket *Bucket) Reserve(ctx context.Context) (time.Duration, error) {
	return bucket.preflight(ctx, true)
}

func (bucket *Bucket) preflight(ctx context.Context, consume bool) (time.Duration, error) {
	if err := bucket.acquire(ctx); err != nil {
		return 0, err
	}
	defer bucket.release()

	bucket.mu.Lock()
	now := bucket.clock.Now()
	var wait time.Duration
	if bucket.willLimitLocked(now) {
		wait = bucket.reset.Sub(now)
	}
	if wait <= 0 {
		if consume {
			bucket.remaining--
		}
		bucket.mu.Unlock()
		return 0, nil
	}
	bucket.mu.Unlock()

	if err := bucket.sleep(ctx, wait); err != nil {
		return 0, err
	}
	if consume {
		bucket.mu.Lock()
		bucket.remaining--
		bucket.mu.Unlock()
	}
	return wait, nil
}

func (bucket *Bucket) acquire(ctx context.Context) error {
	select {
	case bucket.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (bucket *Bucket) release() {
	<-bucket.gate
}

func (bucket *Bucket) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-bucket.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
