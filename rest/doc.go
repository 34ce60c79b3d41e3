// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// Package rest is a rate-limited client for the platform's HTTPS API.
//
// Every call goes through [Client.Do], which implements the request
// pipeline:
//
//  1. Resolve the route's bucket and the global bucket from the
//     client's [ratelimit.Limiter].
//  2. Wait out any cooldown in progress and any exhausted window
//     (preemptive limiting), global bucket first.
//  3. Reserve one request from the route bucket and send.
//  4. Record the X-RateLimit-* headers of the response.
//  5. Classify: 2xx success returns the response; 429 waits exactly
//     the server's retry_after on the global or route bucket and
//     retries; any other 400-502 status returns an [*APIError];
//     anything else is logged and returns (nil, nil).
//
// 429 responses are retried until the request is admitted or its
// context ends. [Config].MaxAttempts bounds the retries instead.
//
// The typed endpoint methods (GetChannel, CreateMessage, ...) cover the
// calls a bot needs to answer messages and locate the gateway.
package rest
