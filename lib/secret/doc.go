// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds bot credentials outside the Go heap.
//
// [Buffer] is backed by an anonymous mmap region that is mlocked
// (never swapped) and excluded from core dumps. Close zeroes and
// unmaps it. The REST client and the gateway both read the token from
// a Buffer when they build an Authorization header or an IDENTIFY
// payload, so the long-lived copy of the token never sits in
// garbage-collected memory.
//
// [ReadToken] loads a token from a file or stdin and splits an
// optional "<type> <token>" prefix such as "Bot abc...".
package secret
