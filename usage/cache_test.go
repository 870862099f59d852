// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryCacheGetSet(t *testing.T) {
	cache := NewMemorySettingsCache(time.Minute)
	ctx := context.Background()

	if got := cache.Get(ctx, UserTypeFree); got != nil {
		t.Errorf("expected miss on empty cache, got %+v", got)
	}

	settings := &LimitSettings{UserType: UserTypeFree, MaxGenerations: 10}
	cache.Set(ctx, settings)

	got := cache.Get(ctx, UserTypeFree)
	if got == nil {
		t.Fatal("expected hit after set")
	}
	if got.MaxGenerations != 10 {
		t.Errorf("max generations = %d, want 10", got.MaxGenerations)
	}

	// Other keys still miss
	if got := cache.Get(ctx, UserTypePlus); got != nil {
		t.Errorf("expected miss for other user type, got %+v", got)
	}
}

func TestMemoryCacheIsolatesEntries(t *testing.T) {
	cache := NewMemorySettingsCache(time.Minute)
	ctx := context.Background()

	settings := &LimitSettings{UserType: UserTypeFree, MaxGenerations: 10}
	cache.Set(ctx, settings)

	// Mutating the original after Set must not change the cached entry.
	settings.MaxGenerations = 99
	if got := cache.Get(ctx, UserTypeFree); got.MaxGenerations != 10 {
		t.Errorf("max generations = %d, want 10 after caller mutation", got.MaxGenerations)
	}

	// Mutating a returned value must not corrupt later reads.
	first := cache.Get(ctx, UserTypeFree)
	first.MaxGenerations = 0
	if got := cache.Get(ctx, UserTypeFree); got.MaxGenerations != 10 {
		t.Errorf("max generations = %d, want 10 after reader mutation", got.MaxGenerations)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemorySettingsCache(10 * time.Millisecond)
	ctx := context.Background()

	cache.Set(ctx, &LimitSettings{UserType: UserTypeFree})
	time.Sleep(20 * time.Millisecond)

	if got := cache.Get(ctx, UserTypeFree); got != nil {
		t.Error("expected expired entry to miss")
	}
}

func TestMemoryCacheSetOverwrites(t *testing.T) {
	cache := NewMemorySettingsCache(time.Minute)
	ctx := context.Background()

	cache.Set(ctx, &LimitSettings{UserType: UserTypeFree, MaxGenerations: 10})
	cache.Set(ctx, &LimitSettings{UserType: UserTypeFree, MaxGenerations: 20})

	got := cache.Get(ctx, UserTypeFree)
	if got == nil || got.MaxGenerations != 20 {
		t.Errorf("expected overwrite to win, got %+v", got)
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	cache := NewMemorySettingsCache(time.Minute)
	ctx := context.Background()

	cache.Set(ctx, &LimitSettings{UserType: UserTypeFree})
	cache.Invalidate(ctx, UserTypeFree)

	if got := cache.Get(ctx, UserTypeFree); got != nil {
		t.Error("expected miss after invalidation")
	}
}

func TestMemoryCacheCleanup(t *testing.T) {
	cache := NewMemorySettingsCache(10 * time.Millisecond)
	ctx := context.Background()

	cache.Set(ctx, &LimitSettings{UserType: UserTypeFree})
	cache.Set(ctx, &LimitSettings{UserType: UserTypePlus})
	time.Sleep(20 * time.Millisecond)

	cache.Cleanup(ctx)

	cache.mu.RLock()
	remaining := len(cache.entries)
	cache.mu.RUnlock()

	if remaining != 0 {
		t.Errorf("cleanup left %d expired entries", remaining)
	}
}

func newTestRedisCache(t *testing.T, ttl time.Duration) (*RedisSettingsCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cache, err := NewRedisSettingsCache(fmt.Sprintf("redis://%s", mr.Addr()), ttl)
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	return cache, mr
}

func TestRedisCacheGetSet(t *testing.T) {
	cache, _ := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	if got := cache.Get(ctx, UserTypeFree); got != nil {
		t.Errorf("expected miss on empty cache, got %+v", got)
	}

	cache.Set(ctx, &LimitSettings{UserType: UserTypeFree, MaxActivities: 100, IncludeFollowups: true})

	got := cache.Get(ctx, UserTypeFree)
	if got == nil {
		t.Fatal("expected hit after set")
	}
	if got.MaxActivities != 100 || !got.IncludeFollowups {
		t.Errorf("round-tripped settings mismatch: %+v", got)
	}
}

func TestRedisCacheExpiry(t *testing.T) {
	cache, mr := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, &LimitSettings{UserType: UserTypeFree})
	mr.FastForward(2 * time.Minute)

	if got := cache.Get(ctx, UserTypeFree); got != nil {
		t.Error("expected expired entry to miss")
	}
}

func TestRedisCacheInvalidate(t *testing.T) {
	cache, _ := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, &LimitSettings{UserType: UserTypePlus})
	cache.Invalidate(ctx, UserTypePlus)

	if got := cache.Get(ctx, UserTypePlus); got != nil {
		t.Error("expected miss after invalidation")
	}
}

func TestRedisCacheDegradesToMissOnError(t *testing.T) {
	cache, mr := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, &LimitSettings{UserType: UserTypeFree})
	mr.Close()

	// A dead Redis never fails a check, it just misses
	if got := cache.Get(ctx, UserTypeFree); got != nil {
		t.Error("expected miss when Redis is unreachable")
	}
}

func TestNewRedisCacheInvalidURL(t *testing.T) {
	if _, err := NewRedisSettingsCache("not-a-url", time.Minute); err == nil {
		t.Error("expected error for invalid URL")
	}
}
