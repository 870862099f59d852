// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultSettingsTTL bounds how long a cached settings row may be served.
// The admin upsert path invalidates explicitly, so the TTL only covers
// writes that bypass this process.
const DefaultSettingsTTL = 5 * time.Minute

// SettingsCache memoizes limit settings lookups keyed by user type.
// Implementations must be safe for concurrent use.
type SettingsCache interface {
	Get(ctx context.Context, userType UserType) *LimitSettings
	Set(ctx context.Context, settings *LimitSettings)
	Invalidate(ctx context.Context, userType UserType)
	Cleanup(ctx context.Context)
}

type cacheEntry struct {
	data   *LimitSettings
	expiry time.Time
}

// MemorySettingsCache is a TTL map with lazy eviction
type MemorySettingsCache struct {
	ttl     time.Duration
	entries map[UserType]cacheEntry
	mu      sync.RWMutex
}

// NewMemorySettingsCache creates an in-memory cache. A non-positive TTL
// falls back to DefaultSettingsTTL.
func NewMemorySettingsCache(ttl time.Duration) *MemorySettingsCache {
	if ttl <= 0 {
		ttl = DefaultSettingsTTL
	}
	return &MemorySettingsCache{
		ttl:     ttl,
		entries: make(map[UserType]cacheEntry),
	}
}

// Get returns a copy of the cached settings or nil on miss or expiry.
// The copy keeps callers from mutating the shared entry.
func (c *MemorySettingsCache) Get(ctx context.Context, userType UserType) *LimitSettings {
	c.mu.RLock()
	entry, ok := c.entries[userType]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiry) {
		return nil
	}
	settings := *entry.data
	return &settings
}

// Set always overwrites the entry for the settings' user type
func (c *MemorySettingsCache) Set(ctx context.Context, settings *LimitSettings) {
	if settings == nil {
		return
	}
	copied := *settings
	c.mu.Lock()
	c.entries[copied.UserType] = cacheEntry{
		data:   &copied,
		expiry: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Invalidate drops the entry for a user type
func (c *MemorySettingsCache) Invalidate(ctx context.Context, userType UserType) {
	c.mu.Lock()
	delete(c.entries, userType)
	c.mu.Unlock()
}

// Cleanup removes expired entries. Eviction is otherwise lazy, so this
// only needs periodic invocation to bound memory.
func (c *MemorySettingsCache) Cleanup(ctx context.Context) {
	now := time.Now()
	c.mu.Lock()
	for userType, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, userType)
		}
	}
	c.mu.Unlock()
}

// RedisSettingsCache shares cached settings across instances.
// Redis errors degrade to cache misses, never failures.
type RedisSettingsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSettingsCache creates a Redis-backed cache from a URL
// (format: redis://host:port/db)
func NewRedisSettingsCache(redisURL string, ttl time.Duration) (*RedisSettingsCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultSettingsTTL
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSettingsCache{client: client, ttl: ttl}, nil
}

func settingsKey(userType UserType) string {
	return fmt.Sprintf("limitsettings:%s", userType)
}

// Get returns the cached settings or nil on miss, expiry, or Redis error
func (c *RedisSettingsCache) Get(ctx context.Context, userType UserType) *LimitSettings {
	data, err := c.client.Get(ctx, settingsKey(userType)).Bytes()
	if err != nil {
		return nil
	}

	var settings LimitSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil
	}
	return &settings
}

// Set stores the settings with the cache TTL
func (c *RedisSettingsCache) Set(ctx context.Context, settings *LimitSettings) {
	if settings == nil {
		return
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return
	}
	c.client.Set(ctx, settingsKey(settings.UserType), data, c.ttl)
}

// Invalidate drops the entry for a user type
func (c *RedisSettingsCache) Invalidate(ctx context.Context, userType UserType) {
	c.client.Del(ctx, settingsKey(userType))
}

// Cleanup is a no-op: Redis expires keys itself
func (c *RedisSettingsCache) Cleanup(ctx context.Context) {}

// Close releases the Redis connection pool
func (c *RedisSettingsCache) Close() error {
	return c.client.Close()
}
