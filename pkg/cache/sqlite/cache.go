// Package sqlite is a persistent result cache backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/plumbus-labs/plumbus/pkg/models"
)

// Cache stores generation results by canonical key with a TTL.
type Cache struct {
	db         *sql.DB
	ttl        time.Duration
	maxEntries int
	hits       atomic.Int64
	misses     atomic.Int64
	evictions  atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS image_cache (
	cache_key TEXT PRIMARY KEY,
	result BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	accessed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_image_cache_accessed ON image_cache(accessed_at);
`

// New opens the cache at dbPath. A zero ttl keeps entries until evicted;
// a zero maxEntries leaves the table unbounded.
func New(dbPath string, maxEntries int, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, ttl: ttl, maxEntries: maxEntries}, nil
}

// Get retrieves a cached result. Expired entries are reported as misses.
func (c *Cache) Get(ctx context.Context, key string) (models.GenerationResult, bool) {
	res, ok := c.lookup(ctx, key)
	if !ok {
		c.misses.Add(1)
		return models.GenerationResult{}, false
	}

	_, _ = c.db.ExecContext(ctx,
		`UPDATE image_cache SET accessed_at = ? WHERE cache_key = ?`, time.Now().UTC(), key)

	c.hits.Add(1)
	return res, true
}

// Peek retrieves a cached result without counting it or refreshing its
// access time.
func (c *Cache) Peek(ctx context.Context, key string) (models.GenerationResult, bool) {
	return c.lookup(ctx, key)
}

func (c *Cache) lookup(ctx context.Context, key string) (models.GenerationResult, bool) {
	var data []byte
	var createdAt time.Time
	var ttlSeconds int64

	err := c.db.QueryRowContext(ctx,
		`SELECT result, created_at, ttl_seconds FROM image_cache WHERE cache_key = ?`, key,
	).Scan(&data, &createdAt, &ttlSeconds)
	if err != nil {
		return models.GenerationResult{}, false
	}
	if ttlSeconds > 0 && time.Since(createdAt) > time.Duration(ttlSeconds)*time.Second {
		return models.GenerationResult{}, false
	}

	var res models.GenerationResult
	if err := json.Unmarshal(data, &res); err != nil {
		return models.GenerationResult{}, false
	}
	return res, true
}

// Put stores a result, evicting the least recently accessed entries when
// the table grows past maxEntries.
func (c *Cache) Put(ctx context.Context, key string, res models.GenerationResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	now := time.Now().UTC()
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO image_cache (cache_key, result, created_at, accessed_at, ttl_seconds)
		 VALUES (?, ?, ?, ?, ?)`,
		key, data, now, now, int64(c.ttl.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	if c.maxEntries <= 0 {
		return nil
	}
	out, err := c.db.ExecContext(ctx,
		`DELETE FROM image_cache WHERE cache_key IN (
			SELECT cache_key FROM image_cache ORDER BY accessed_at DESC LIMIT -1 OFFSET ?
		)`, c.maxEntries)
	if err != nil {
		return fmt.Errorf("cache evict: %w", err)
	}
	if n, err := out.RowsAffected(); err == nil {
		c.evictions.Add(n)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM image_cache`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries:   count,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}, nil
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM image_cache`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Prune removes expired entries and returns how many were deleted.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM image_cache WHERE ttl_seconds > 0
		 AND (julianday('now') - julianday(created_at)) * 86400 > ttl_seconds`)
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
