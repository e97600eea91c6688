// Package viewstate persists small per-user UI state (filters, selection, view
// mode) between requests.
package viewstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store loads and saves JSON-encodable values by key.
type Store interface {
	// Load decodes the value under key into dest and reports whether it was found.
	Load(ctx context.Context, key string, dest any) (bool, error)
	Save(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// Key namespaces a value by user.
func Key(userID uint, name string) string {
	return fmt.Sprintf("user:%d:%s", userID, name)
}

// RedisStore keeps values in Redis with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps client; keys are stored under prefix.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, key string, dest any) (bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("viewstate get: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("viewstate unmarshal: %w", err)
	}
	return true, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("viewstate marshal: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("viewstate set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("viewstate delete: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore is used when Redis is not configured. State is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memItem
	ttl   time.Duration
	now   func() time.Time
}

type memItem struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore keeps values for ttl; ttl <= 0 keeps them forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{items: make(map[string]memItem), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Load(_ context.Context, key string, dest any) (bool, error) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || (!it.expiresAt.IsZero() && !s.now().Before(it.expiresAt)) {
		return false, nil
	}
	if err := json.Unmarshal(it.data, dest); err != nil {
		return false, fmt.Errorf("viewstate unmarshal: %w", err)
	}
	return true, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("viewstate marshal: %w", err)
	}
	it := memItem{data: data}
	if s.ttl > 0 {
		it.expiresAt = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	s.items[key] = it
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}
