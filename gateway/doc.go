// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway maintains a bot's real-time connection to the
// platform's WebSocket gateway.
//
// A [Gateway] owns one logical session across any number of transport
// connections. [Gateway.Run] dials, waits for HELLO, starts the
// heartbeat, and then either IDENTIFYs (no session, or the session was
// invalidated) or RESUMEs (a session survived the last disconnect, so
// the server replays what was missed). Dispatches update the session's
// sequence number and are decoded through a static event table into
// typed events delivered to handlers registered with [On].
//
// Connection lifecycle:
//
//	disconnected -> awaiting_hello -> identifying -> connected (READY)
//	                               \-> resuming   -> connected (RESUMED)
//
// When the transport closes, the session is kept and the next
// connection resumes it. Close codes 4007 and 4009 invalidate the
// session, so the next connection identifies instead. Close codes that
// cannot succeed on retry (bad token, bad shard, bad intents, bad API
// version) end Run with a [*CloseError]. Everything else reconnects
// after an exponential backoff.
//
// The heartbeat loop watches for acknowledgements. After
// [Config].MaxMissedAcks unacknowledged beats the connection is treated
// as dead: it is closed with a resumable code and the run loop reconnects
// and resumes.
//
// Handlers never run on the read loop. Each dispatch is delivered on its
// own goroutine, which calls that event's handlers in registration
// order, so a slow handler delays only later handlers of the same
// dispatch.
//
// Sessions can be persisted with a [SessionStore] so a restarted process
// resumes instead of identifying.
package gateway
