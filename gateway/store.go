// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rapture-chat/rapture/lib/clock"
	"github.com/rapture-chat/rapture/lib/codec"
	"github.com/rapture-chat/rapture/lib/statefile"
)

// SessionStore persists resume state so a restarted process can RESUME
// instead of starting a new session.
type SessionStore interface {
	// Load returns the saved state, or (nil, nil) when none is saved
	// or the saved state is too old to resume.
	Load(ctx context.Context) (*SessionState, error)

	// Save replaces the saved state.
	Save(ctx context.Context, state SessionState) error

	// Clear removes the saved state.
	Clear(ctx context.Context) error
}

// FileSessionStore keeps session state in a CBOR file, written
// atomically.
type FileSessionStore struct {
	// Path is the state file. Its directory must exist.
	Path string

	// MaxAge, when positive, makes Load ignore state saved longer ago
	// than this. The server forgets sessions a few minutes after
	// disconnect.
	MaxAge time.Duration

	// Clock defaults to clock.Real().
	Clock clock.Clock
}

func (s *FileSessionStore) Load(ctx context.Context) (*SessionState, error) {
	data, err := statefile.Read(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gateway: loading session: %w", err)
	}
	var state SessionState
	if err := codec.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("gateway: decoding session file %s: %w", s.Path, err)
	}
	if s.stale(state) {
		return nil, nil
	}
	return &state, nil
}

func (s *FileSessionStore) Save(ctx context.Context, state SessionState) error {
	data, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("gateway: encoding session: %w", err)
	}
	if err := statefile.Write(s.Path, data); err != nil {
		return fmt.Errorf("gateway: saving session: %w", err)
	}
	return nil
}

func (s *FileSessionStore) Clear(ctx context.Context) error {
	return statefile.Remove(s.Path)
}

func (s *FileSessionStore) stale(state SessionState) bool {
	if s.MaxAge <= 0 {
		return false
	}
	clk := s.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return clk.Now().Sub(state.SavedAt) > s.MaxAge
}

// RedisSessionStore keeps session state under one Redis key. Expiry is
// left to Redis.
type RedisSessionStore struct {
	Client redis.Cmdable

	// Key defaults to "rapture:session".
	Key string

	// TTL, when positive, expires the key this long after each save.
	TTL time.Duration
}

// DefaultRedisKey is the key RedisSessionStore uses when Key is empty.
const DefaultRedisKey = "rapture:session"

func (s *RedisSessionStore) key() string {
	if s.Key == "" {
		return DefaultRedisKey
	}
	return s.Key
}

func (s *RedisSessionStore) Load(ctx context.Context) (*SessionState, error) {
	data, err := s.Client.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gateway: loading session from redis: %w", err)
	}
	var state SessionState
	if err := codec.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("gateway: decoding session from redis key %s: %w", s.key(), err)
	}
	return &state, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, state SessionState) error {
	data, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("gateway: encoding session: %w", err)
	}
	if err := s.Client.Set(ctx, s.key(), data, s.TTL).Err(); err != nil {
		return fmt.Errorf("gateway: saving session to redis: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Clear(ctx context.Context) error {
	if err := s.Client.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("gateway: clearing session in redis: %w", err)
	}
	return nil
}
