package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/parkerpayne/bard/logger"
)

// 缓存键
const (
	KeyLibrary   = "bard:listing:library"
	KeyPlaylists = "bard:listing:playlists"
)

// ListingCache caches rendered listing JSON (library, playlists).
// Get returns ok=false on a miss.
type ListingCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte)
	Invalidate(ctx context.Context, keys ...string)
}

// NewListingCache returns a redis-backed cache when a client is connected,
// otherwise an in-process one.
func NewListingCache(client *redis.Client, ttl time.Duration) ListingCache {
	if client != nil {
		return &RedisListingCache{client: client, ttl: ttl}
	}
	return NewMemoryListingCache(ttl)
}

// RedisListingCache 基于 Redis 的列表缓存
type RedisListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (c *RedisListingCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("获取列表缓存失败", logger.String("key", key), logger.ErrorField(err))
		}
		return nil, false
	}
	return data, true
}

func (c *RedisListingCache) Set(ctx context.Context, key string, data []byte) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("设置列表缓存失败", logger.String("key", key), logger.ErrorField(err))
	}
}

func (c *RedisListingCache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("清除列表缓存失败", logger.Any("keys", keys), logger.ErrorField(err))
	}
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryListingCache 进程内列表缓存
type MemoryListingCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryListingCache creates an in-process cache with the given TTL.
func NewMemoryListingCache(ttl time.Duration) *MemoryListingCache {
	return &MemoryListingCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryListingCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expires) {
		return nil, false
	}
	return e.data, true
}

func (c *MemoryListingCache) Set(_ context.Context, key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{data: data, expires: c.now().Add(c.ttl)}
}

func (c *MemoryListingCache) Invalidate(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
}
