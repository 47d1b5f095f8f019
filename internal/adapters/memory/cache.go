// Package memory provides an in-process ports.CacheService backed by ccache.
package memory

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v3"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
)

// Cache is a size-bounded LRU with per-item TTL.
type Cache struct {
	items *ccache.Cache[[]byte]
}

// New creates a cache holding at most maxSize entries.
func New(maxSize int64) *Cache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Cache{items: ccache.New(ccache.Configure[[]byte]().MaxSize(maxSize))}
}

// Get returns a live entry or domain.ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	item := c.items.Get(key)
	if item == nil || item.Expired() {
		return nil, domain.ErrNotFound
	}
	return item.Value(), nil
}

// Set stores value for ttlSeconds. A non-positive TTL keeps the entry for a day.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	c.items.Set(key, value, ttl)
	return nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

// Close stops the background pruner.
func (c *Cache) Close() {
	c.items.Stop()
}
