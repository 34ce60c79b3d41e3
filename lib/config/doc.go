// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the configuration file for rapture binaries.
//
// Configuration comes from a single file named by either the
// RAPTURE_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no environment override of
// individual values.
//
// Files ending in .json or .jsonc are parsed as JSON with comments and
// trailing commas permitted; anything else is parsed as YAML. Both forms
// use the same snake_case keys.
//
// ${HOME} and ${VAR:-default} patterns are expanded in path fields
// (token_file, session.path) after loading.
//
// Key exports:
//
//   - [Config] -- token, REST, gateway, session, and metrics sections
//   - [Default] -- a Config with every default filled in
//   - [Load] and [LoadFile] -- the two entry points
//   - [Duration] -- a time.Duration that decodes from "30s" strings
package config
