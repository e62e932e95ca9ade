// Package memory is a bounded in-process result cache.
package memory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/plumbus-labs/plumbus/pkg/models"
)

// Cache holds at most maxEntries results, each for at most ttl. The least
// recently used entry is evicted first.
type Cache struct {
	lru       *expirable.LRU[string, models.GenerationResult]
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a Cache. A zero ttl keeps entries until evicted.
func New(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		lru: expirable.NewLRU[string, models.GenerationResult](maxEntries, nil, ttl),
	}
}

// Get returns the result stored under key.
func (c *Cache) Get(_ context.Context, key string) (models.GenerationResult, bool) {
	res, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return models.GenerationResult{}, false
	}
	c.hits.Add(1)
	return res, true
}

// Peek returns the result stored under key without touching statistics or
// recency.
func (c *Cache) Peek(_ context.Context, key string) (models.GenerationResult, bool) {
	return c.lru.Peek(key)
}

// Put stores res under key, replacing any previous value.
func (c *Cache) Put(_ context.Context, key string, res models.GenerationResult) error {
	if c.lru.Add(key, res) {
		c.evictions.Add(1)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats(context.Context) (models.CacheStats, error) {
	return models.CacheStats{
		Entries:   int64(c.lru.Len()),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}, nil
}

// Clear removes every entry.
func (c *Cache) Clear(context.Context) error {
	c.lru.Purge()
	return nil
}

// Close is a no-op.
func (c *Cache) Close() error { return nil }
