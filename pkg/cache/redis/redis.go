// Package redis is a result cache shared between processes through Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/plumbus-labs/plumbus/pkg/models"
)

// Cache stores results as JSON under prefix+key with a TTL. Capacity is
// left to the server's maxmemory policy.
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New connects to the Redis server at url (redis://host:port/db).
func New(ctx context.Context, url, prefix string, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(rdb, prefix, ttl, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{rdb: rdb, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *Cache) redisKey(key string) string {
	return c.prefix + key
}

// Get retrieves a cached result.
func (c *Cache) Get(ctx context.Context, key string) (models.GenerationResult, bool) {
	res, ok := c.Peek(ctx, key)
	if !ok {
		c.misses.Add(1)
		return models.GenerationResult{}, false
	}
	c.hits.Add(1)
	return res, true
}

// Peek retrieves a cached result without counting it.
func (c *Cache) Peek(ctx context.Context, key string) (models.GenerationResult, bool) {
	data, err := c.rdb.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get error", zap.String("key", key), zap.Error(err))
		}
		return models.GenerationResult{}, false
	}

	var res models.GenerationResult
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Warn("redis entry corrupt", zap.String("key", key), zap.Error(err))
		return models.GenerationResult{}, false
	}
	return res, true
}

// Put stores a result.
func (c *Cache) Put(ctx context.Context, key string, res models.GenerationResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	if err := c.rdb.Set(ctx, c.redisKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats counts the keys under the prefix. Hits and misses are local to
// this process.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear deletes every key under the prefix.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
