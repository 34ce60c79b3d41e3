// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.TokenType != "Bot" {
		t.Errorf("expected token_type=Bot, got %s", cfg.TokenType)
	}
	if cfg.Gateway.LargeThreshold != 150 {
		t.Errorf("expected large_threshold=150, got %d", cfg.Gateway.LargeThreshold)
	}
	if cfg.Gateway.ShardCount != 1 {
		t.Errorf("expected shard_count=1, got %d", cfg.Gateway.ShardCount)
	}
	if cfg.Gateway.MaxMissedAcks != 2 {
		t.Errorf("expected max_missed_acks=2, got %d", cfg.Gateway.MaxMissedAcks)
	}
	if cfg.Session.Store != StoreNone {
		t.Errorf("expected session.store=none, got %s", cfg.Session.Store)
	}
	if cfg.Gateway.Intents&IntentMessageContent == 0 {
		t.Error("expected default intents to include message content")
	}
}

func TestLoad_RequiresRaptureConfig(t *testing.T) {
	t.Setenv(EnvVar, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when RAPTURE_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "RAPTURE_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestLoad_WithRaptureConfig(t *testing.T) {
	path := writeConfig(t, "rapture.yaml", `
token_file: /run/secrets/bot-token
gateway:
  shard_id: 1
  shard_count: 4
`)
	t.Setenv(EnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.TokenFile != "/run/secrets/bot-token" {
		t.Errorf("expected token_file from file, got %s", cfg.TokenFile)
	}
	if cfg.Gateway.ShardID != 1 || cfg.Gateway.ShardCount != 4 {
		t.Errorf("expected shard [1,4], got [%d,%d]", cfg.Gateway.ShardID, cfg.Gateway.ShardCount)
	}
	// Unset fields keep their defaults.
	if cfg.Gateway.LargeThreshold != 150 {
		t.Errorf("expected default large_threshold, got %d", cfg.Gateway.LargeThreshold)
	}
}

func TestLoadFile_YAMLDurations(t *testing.T) {
	path := writeConfig(t, "rapture.yaml", `
token_file: token
rest:
  max_attempts: 3
  request_timeout: 15s
session:
  store: file
  path: /var/lib/rapture/session.cbor
  max_age: 90s
metrics:
  listen: 127.0.0.1:9464
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.REST.MaxAttempts != 3 {
		t.Errorf("max_attempts = %d, want 3", cfg.REST.MaxAttempts)
	}
	if cfg.REST.RequestTimeout.Std() != 15*time.Second {
		t.Errorf("request_timeout = %v, want 15s", cfg.REST.RequestTimeout)
	}
	if cfg.Session.MaxAge.Std() != 90*time.Second {
		t.Errorf("max_age = %v, want 90s", cfg.Session.MaxAge)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9464" {
		t.Errorf("metrics.listen = %q", cfg.Metrics.Listen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	path := writeConfig(t, "rapture.jsonc", `{
	// Token from the secrets mount.
	"token_file": "/run/secrets/bot-token",
	"gateway": {
		"compress": true,
		"large_threshold": 250, // maximum
	},
	"session": {"store": "redis", "redis_addr": "localhost:6379", "max_age": "2m"},
}`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if !cfg.Gateway.Compress {
		t.Error("expected compress=true")
	}
	if cfg.Gateway.LargeThreshold != 250 {
		t.Errorf("large_threshold = %d, want 250", cfg.Gateway.LargeThreshold)
	}
	if cfg.Session.Store != StoreRedis || cfg.Session.RedisAddr != "localhost:6379" {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Session.MaxAge.Std() != 2*time.Minute {
		t.Errorf("max_age = %v, want 2m", cfg.Session.MaxAge)
	}
	if cfg.Session.RedisKey != "rapture:session" {
		t.Errorf("redis_key = %q, want default", cfg.Session.RedisKey)
	}
}

func TestLoadFile_BadDuration(t *testing.T) {
	path := writeConfig(t, "rapture.yaml", "rest:\n  request_timeout: soon\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("RAPTURE_TEST_DIR", "/srv/bot")

	path := writeConfig(t, "rapture.yaml", `
token_file: ${RAPTURE_TEST_DIR}/token
session:
  path: ${RAPTURE_TEST_UNSET:-/tmp}/session.cbor
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.TokenFile != "/srv/bot/token" {
		t.Errorf("token_file = %q", cfg.TokenFile)
	}
	if cfg.Session.Path != "/tmp/session.cbor" {
		t.Errorf("session.path = %q", cfg.Session.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(c *Config) {}},
		{name: "missing token", modify: func(c *Config) { c.TokenFile = "" }, wantErr: "token_file is required"},
		{name: "token type", modify: func(c *Config) { c.TokenType = "Basic" }, wantErr: "token_type"},
		{name: "relative api url", modify: func(c *Config) { c.APIURL = "/api" }, wantErr: "api_url"},
		{name: "negative attempts", modify: func(c *Config) { c.REST.MaxAttempts = -1 }, wantErr: "rest.max_attempts"},
		{name: "large threshold", modify: func(c *Config) { c.Gateway.LargeThreshold = 10 }, wantErr: "gateway.large_threshold"},
		{name: "shard out of range", modify: func(c *Config) { c.Gateway.ShardID = 1 }, wantErr: "gateway.shard_id"},
		{name: "missed acks", modify: func(c *Config) { c.Gateway.MaxMissedAcks = 0 }, wantErr: "gateway.max_missed_acks"},
		{name: "unknown store", modify: func(c *Config) { c.Session.Store = "sqlite" }, wantErr: "session.store"},
		{name: "file store without path", modify: func(c *Config) { c.Session.Store = StoreFile }, wantErr: "session.path"},
		{name: "redis store without addr", modify: func(c *Config) { c.Session.Store = StoreRedis }, wantErr: "session.redis_addr"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			cfg.TokenFile = "token"
			test.modify(cfg)

			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %q, want it to contain %q", err.Error(), test.wantErr)
			}
		})
	}
}

func TestValidate_ReportsEveryField(t *testing.T) {
	cfg := Default()
	cfg.Gateway.ShardCount = 0
	cfg.Session.Store = "disk"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, field := range []string{"token_file", "gateway.shard_count", "session.store"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err.Error(), field)
		}
	}
}
