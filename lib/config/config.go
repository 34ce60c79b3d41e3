// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable [Load] reads the config path
// from.
const EnvVar = "RAPTURE_CONFIG"

// Session store kinds.
const (
	StoreNone  = "none"
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Gateway intent bits used by the default configuration.
const (
	IntentGuilds         int64 = 1 << 0
	IntentGuildMembers   int64 = 1 << 1
	IntentGuildMessages  int64 = 1 << 9
	IntentMessageContent int64 = 1 << 15
)

// Config is the configuration for a rapture bot.
type Config struct {
	// TokenFile is the path to a file holding the bot token, optionally
	// prefixed with its type ("Bot abc..."). "-" reads stdin.
	TokenFile string `yaml:"token_file" json:"token_file"`

	// TokenType is the Authorization scheme used when the token file
	// carries no prefix. Default: Bot
	TokenType string `yaml:"token_type" json:"token_type"`

	// APIURL is the REST base URL including the version segment.
	// Default: https://discord.com/api/v10
	APIURL string `yaml:"api_url" json:"api_url"`

	REST    RESTConfig    `yaml:"rest" json:"rest"`
	Gateway GatewayConfig `yaml:"gateway" json:"gateway"`
	Session SessionConfig `yaml:"session" json:"session"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// RESTConfig configures the HTTP request pipeline.
type RESTConfig struct {
	// MaxAttempts bounds retries of rate-limited requests. Zero retries
	// until the request succeeds or its context ends.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// RequestTimeout applies to calls whose context has no deadline.
	// Zero disables it.
	RequestTimeout Duration `yaml:"request_timeout" json:"request_timeout"`
}

// GatewayConfig configures the gateway connection.
type GatewayConfig struct {
	// Intents is the bitmask of event groups to subscribe to.
	Intents int64 `yaml:"intents" json:"intents"`

	// LargeThreshold is the member count above which the server stops
	// sending offline members in GUILD_CREATE. Range 50-250. Default: 150
	LargeThreshold int `yaml:"large_threshold" json:"large_threshold"`

	ShardID    int `yaml:"shard_id" json:"shard_id"`
	ShardCount int `yaml:"shard_count" json:"shard_count"`

	// Compress requests zlib-compressed dispatch payloads.
	Compress bool `yaml:"compress" json:"compress"`

	// MaxMissedAcks is how many consecutive unacknowledged heartbeats
	// mark the connection as dead. Default: 2
	MaxMissedAcks int `yaml:"max_missed_acks" json:"max_missed_acks"`
}

// SessionConfig configures gateway session persistence.
type SessionConfig struct {
	// Store selects the backend: none, file, or redis. Default: none
	Store string `yaml:"store" json:"store"`

	// Path is the state file for the file store.
	Path string `yaml:"path" json:"path"`

	// RedisAddr is host:port for the redis store.
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`

	// RedisKey is the key the redis store writes. Default: rapture:session
	RedisKey string `yaml:"redis_key" json:"redis_key"`

	// MaxAge discards saved sessions older than this. Default: 5m
	MaxAge Duration `yaml:"max_age" json:"max_age"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address to serve /metrics on. Empty disables it.
	Listen string `yaml:"listen" json:"listen"`
}

// Default returns the default configuration. TokenFile has no default;
// [Config.Validate] rejects a config without one.
func Default() *Config {
	return &Config{
		TokenType: "Bot",
		APIURL:    "https://discord.com/api/v10",
		Gateway: GatewayConfig{
			Intents:        IntentGuilds | IntentGuildMembers | IntentGuildMessages | IntentMessageContent,
			LargeThreshold: 150,
			ShardID:        0,
			ShardCount:     1,
			MaxMissedAcks:  2,
		},
		Session: SessionConfig{
			Store:    StoreNone,
			RedisKey: "rapture:session",
			MaxAge:   Duration(5 * time.Minute),
		},
	}
}

// Load loads configuration from the file named by RAPTURE_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your rapture.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over [Default]. The result is
// not validated; call [Config.Validate].
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.decode(path, data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return yaml.Unmarshal(data, c)
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.TokenFile = expandVars(c.TokenFile, vars)
	c.Session.Path = expandVars(c.Session.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. Every problem is
// reported, each naming its field.
func (c *Config) Validate() error {
	var errs []error

	if c.TokenFile == "" {
		errs = append(errs, fmt.Errorf("token_file is required"))
	}
	if c.TokenType != "Bot" && c.TokenType != "Bearer" {
		errs = append(errs, fmt.Errorf("token_type must be Bot or Bearer, got %q", c.TokenType))
	}
	if parsed, err := url.Parse(c.APIURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("api_url must be an absolute URL, got %q", c.APIURL))
	}

	if c.REST.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("rest.max_attempts must not be negative"))
	}
	if c.REST.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("rest.request_timeout must not be negative"))
	}

	if c.Gateway.LargeThreshold < 50 || c.Gateway.LargeThreshold > 250 {
		errs = append(errs, fmt.Errorf("gateway.large_threshold must be between 50 and 250, got %d", c.Gateway.LargeThreshold))
	}
	if c.Gateway.ShardCount < 1 {
		errs = append(errs, fmt.Errorf("gateway.shard_count must be at least 1"))
	}
	if c.Gateway.ShardID < 0 || c.Gateway.ShardID >= c.Gateway.ShardCount {
		errs = append(errs, fmt.Errorf("gateway.shard_id must be in [0, shard_count), got %d", c.Gateway.ShardID))
	}
	if c.Gateway.MaxMissedAcks < 1 {
		errs = append(errs, fmt.Errorf("gateway.max_missed_acks must be at least 1"))
	}

	stores := []string{StoreNone, StoreFile, StoreRedis}
	if !slices.Contains(stores, c.Session.Store) {
		errs = append(errs, fmt.Errorf("session.store must be one of: %v", stores))
	}
	if c.Session.Store == StoreFile && c.Session.Path == "" {
		errs = append(errs, fmt.Errorf("session.path is required for the file store"))
	}
	if c.Session.Store == StoreRedis && c.Session.RedisAddr == "" {
		errs = append(errs, fmt.Errorf("session.redis_addr is required for the redis store"))
	}
	if c.Session.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("session.max_age must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Duration is a time.Duration written as a Go duration string ("90s",
// "5m") in both YAML and JSON.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	return d.parse(text)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	return d.parse(text)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) parse(text string) error {
	if text == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
