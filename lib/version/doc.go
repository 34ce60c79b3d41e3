// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// Package version carries build version information and the REST
// User-Agent string.
//
// Values are injected at build time:
//
//	go build -ldflags "-X github.com/rapture-chat/rapture/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
