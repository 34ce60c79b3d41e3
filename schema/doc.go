// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the platform payload types the REST client and
// the gateway decode into.
//
// Coverage is deliberately narrow: the fields a bot needs to route and
// answer messages, track guild membership, and find the gateway. Unknown
// JSON fields are ignored, so payloads from newer API versions decode
// without error.
//
// Identifiers are [Snowflake] values. On the wire they are decimal
// strings; nullable identifiers are *Snowflake so a JSON null decodes to
// nil.
package schema
