// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The rate limiter, the HTTP pipeline, and the gateway heartbeat all
// take a Clock instead of calling the time package directly. Real()
// delegates to the time package. Fake() stands still until Advance is
// called, which makes cooldown and heartbeat behavior testable without
// sleeping:
//
//	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	limiter := ratelimit.New(fakeClock)
//	// ... start a goroutine that waits on a bucket ...
//	fakeClock.WaitForTimers(1)
//	fakeClock.Advance(5 * time.Second)
//
// FakeClock.Now is safe to hand to libraries that accept a Now-only
// clock interface (cenkalti/backoff's Clock, for instance).
package clock
