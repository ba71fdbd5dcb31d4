// Package cache provides the shared token cache used by provider gateways.
// Redis backs multi-process deployments; the memory variant serves tests and
// single-process runs.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Memory is an in-process TTL cache. Concurrent readers are safe; a stale
// read around expiry only costs a recompute.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: map[string]memoryEntry{}}
}

// Get returns the cached value when present and unexpired.
func (m *Memory) Get(ctx context.Context, key string) (string, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

// Set stores the value under key for ttl.
func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
}

// Redis is a TokenCache backed by a shared redis instance.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing redis client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get returns the cached value. Transport failures read as a miss; the
// caller re-authenticates.
func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

// Set stores the value under key for ttl. Write failures are ignored.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	_ = r.client.Set(ctx, key, value, ttl).Err()
}
