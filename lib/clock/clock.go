// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source for rate-limit cooldowns, heartbeat
// cadence, and reconnect backoff. Production code uses Real(); tests
// use Fake() and move time forward explicitly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Until returns the duration from c.Now() to t. Negative when t is in
// the past.
func Until(c Clock, t time.Time) time.Duration {
	return t.Sub(c.Now())
}
