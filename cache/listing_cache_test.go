package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryListingCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryListingCache(time.Minute)
	c.now = func() time.Time { return now }

	if _, ok := c.Get(ctx, KeyLibrary); ok {
		t.Fatal("empty cache should miss")
	}

	c.Set(ctx, KeyLibrary, []byte(`{"songs":[]}`))
	c.Set(ctx, KeyPlaylists, []byte(`{"playlists":[]}`))
	if data, ok := c.Get(ctx, KeyLibrary); !ok || string(data) != `{"songs":[]}` {
		t.Errorf("Get = %s, %v", data, ok)
	}

	c.Invalidate(ctx, KeyLibrary)
	if _, ok := c.Get(ctx, KeyLibrary); ok {
		t.Error("invalidated key should miss")
	}
	if _, ok := c.Get(ctx, KeyPlaylists); !ok {
		t.Error("other keys must survive invalidation")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, KeyPlaylists); ok {
		t.Error("expired entry should miss")
	}
}

func TestNewListingCacheWithoutRedis(t *testing.T) {
	if _, ok := NewListingCache(nil, time.Minute).(*MemoryListingCache); !ok {
		t.Error("nil client should fall back to memory cache")
	}
}
