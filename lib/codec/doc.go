// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR configuration for state rapture persists
// locally: gateway session snapshots written by the file and redis
// session stores. Everything that crosses the network to the platform
// is JSON; CBOR never leaves the process's own storage.
//
// Encoding is Core Deterministic (RFC 8949 §4.2), so the same session
// snapshot always produces the same bytes. Structs may carry either
// `cbor` or `json` tags; the library falls back to `json` tags when no
// `cbor` tag is present.
package codec
