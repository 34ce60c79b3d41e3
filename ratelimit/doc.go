// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit tracks the platform's per-route and global REST
// rate limits.
//
// The server partitions its quota into buckets. A [Bucket] records the
// last observed limit, remaining count, and reset time, and owns a
// cooldown gate that blocks callers while a wait is in progress. The
// [Limiter] indexes buckets two ways: by [RouteKey] (route shape plus
// major parameter), which the client knows before sending, and by the
// server's opaque bucket id from the X-RateLimit-Bucket header, which is
// learned from responses. Route keys that report the same bucket id
// share one *Bucket.
//
// Buckets are created lazily on the first response that carries
// rate-limit headers and are never removed. A route with no bucket yet
// is unthrottled.
//
// The typical request cycle, as driven by the rest package:
//
//	bucket := limiter.BucketByRouteKey(key)
//	if bucket != nil {
//		bucket.Reserve(ctx) // wait out an exhausted window, then count the request
//	}
//	response := send()
//	limiter.UpdateFromHeaders(key, response.Header)
package ratelimit
