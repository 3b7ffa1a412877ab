// Package session maps opaque session ids to user ids and carries them in a
// signed cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ai-companion/backend/pkg/cache"
	"ai-companion/backend/shared/redis"
)

// ErrNotFound is returned when a session id is unknown or expired
var ErrNotFound = errors.New("session not found")

// Store persists session id → user id mappings with a TTL
type Store interface {
	Save(ctx context.Context, sessionID string, userID uint, ttl time.Duration) error
	Lookup(ctx context.Context, sessionID string) (uint, error)
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore keeps sessions in process memory. Sessions are lost on restart.
type MemoryStore struct {
	items *cache.Cache
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{items: cache.New(24*time.Hour, cleanupInterval)}
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, userID uint, ttl time.Duration) error {
	s.items.SetWithExpiration(sessionID, userID, ttl)
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, sessionID string) (uint, error) {
	userID, ok := cache.GetAs[uint](s.items, sessionID)
	if !ok {
		return 0, ErrNotFound
	}
	return userID, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.items.Delete(sessionID)
	return nil
}

// RedisStore shares sessions between server instances
type RedisStore struct {
	client *redis.RedisClient
	prefix string
}

func NewRedisStore(client *redis.RedisClient) *RedisStore {
	return &RedisStore{client: client, prefix: "session:"}
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, userID uint, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+sessionID, strconv.FormatUint(uint64(userID), 10), ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, sessionID string) (uint, error) {
	raw, err := s.client.Get(ctx, s.prefix+sessionID)
	if err != nil {
		if redis.IsNil(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("lookup session: %w", err)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session %s: %w", sessionID, err)
	}
	return uint(id), nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.prefix+sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
