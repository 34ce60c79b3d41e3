// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds channel helpers for tests that coordinate
// with background goroutines: gateway read loops, heartbeat loops, and
// rate-limit waiters.
//
// [RequireReceive] and [RequireClosed] bound a wait with a wall-clock
// timeout so a broken test fails instead of hanging. [RequireNoReceive]
// asserts that nothing arrives within a short window, for checks such
// as "the second caller is still blocked on the bucket". Everything
// else in the suite uses lib/clock.Fake for time.
package testutil
