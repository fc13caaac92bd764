// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package premium

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultCacheTTL is how long lookup results are kept.
const DefaultCacheTTL = 10 * time.Minute

// Cache stores lookup results, including "no trusted identity" results.
// Keys are case-insensitive.
type Cache interface {
	// Get returns hit=false on a miss. On a hit, a nil Identity is a cached
	// "not found".
	Get(ctx context.Context, name string) (id *Identity, hit bool, err error)
	Set(ctx context.Context, name string, id *Identity, ttl time.Duration) error
}

func cacheKey(name string) string {
	return strings.ToLower(name)
}

type memoryEntry struct {
	id      *Identity
	expires time.Time
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, name string) (*Identity, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(name)
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	if e.id == nil {
		return nil, true, nil
	}
	cp := *e.id
	return &cp, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, name string, id *Identity, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stored *Identity
	if id != nil {
		cp := *id
		stored = &cp
	}
	c.entries[cacheKey(name)] = memoryEntry{id: stored, expires: c.now().Add(ttl)}
	return nil
}

// redisNotFound marks a cached "not found" result.
const redisNotFound = "-"

// DefaultRedisPrefix namespaces cache keys.
const DefaultRedisPrefix = "gatekeeper:premium:"

// RedisCache is a Cache shared by every proxy node through redis.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache creates a cache over client. An empty prefix selects
// DefaultRedisPrefix.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

// NewRedisCacheFromURL parses a redis:// URL and creates a cache.
func NewRedisCacheFromURL(rawURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, oops.Code("PREMIUM_INVALID_CONFIG").Wrap(err)
	}
	return NewRedisCache(redis.NewClient(opts), ""), nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, name string) (*Identity, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+cacheKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.Code("PREMIUM_CACHE_FAILED").With("name", name).Wrap(err)
	}
	if raw == redisNotFound {
		return nil, true, nil
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil, false, oops.Code("PREMIUM_CACHE_FAILED").With("name", name).Wrap(err)
	}
	return &id, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, name string, id *Identity, ttl time.Duration) error {
	value := redisNotFound
	if id != nil {
		raw, err := json.Marshal(id)
		if err != nil {
			return oops.Code("PREMIUM_CACHE_FAILED").With("name", name).Wrap(err)
		}
		value = string(raw)
	}
	if err := c.client.Set(ctx, c.prefix+cacheKey(name), value, ttl).Err(); err != nil {
		return oops.Code("PREMIUM_CACHE_FAILED").With("name", name).Wrap(err)
	}
	return nil
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return oops.Code("PREMIUM_CACHE_FAILED").Wrap(err)
	}
	return nil
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
