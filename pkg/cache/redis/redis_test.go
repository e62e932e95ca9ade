package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plumbus-labs/plumbus/pkg/cache"
	"github.com/plumbus-labs/plumbus/pkg/models"
)

var _ cache.Store = (*Cache)(nil)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewWithClient(rdb, "plumbus:image:", time.Hour, zap.NewNop())
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func result(url string) models.GenerationResult {
	return models.GenerationResult{
		ImageURL:    url,
		Prompt:      "a plumbus",
		ServiceName: "huggingface",
		GeneratedAt: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
	}
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	require.NoError(t, c.Put(ctx, "k1", result("u1")))
	assert.True(t, mr.Exists("plumbus:image:k1"))

	got, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, result("u1"), got)

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	require.NoError(t, c.Put(ctx, "k", result("u")))
	assert.Equal(t, time.Hour, mr.TTL("plumbus:image:k"))

	mr.FastForward(2 * time.Hour)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestStatsAndClear(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)
	require.NoError(t, mr.Set("unrelated", "x"))

	require.NoError(t, c.Put(ctx, "a", result("a")))
	require.NoError(t, c.Put(ctx, "b", result("b")))
	c.Get(ctx, "a")
	c.Get(ctx, "zzz")

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.CacheStats{Entries: 2, Hits: 1, Misses: 1}, stats)

	require.NoError(t, c.Clear(ctx))
	stats, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Entries)
	assert.True(t, mr.Exists("unrelated"))
}

func TestNewBadURL(t *testing.T) {
	_, err := New(context.Background(), "://nope", "p:", time.Minute, nil)
	assert.Error(t, err)
}

func TestNewConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), "redis://"+mr.Addr()+"/0", "p:", time.Minute, nil)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Put(context.Background(), "x", result("u")))
	assert.True(t, mr.Exists("p:x"))
}

func TestPeekDoesNotCount(t *testing.T) {
	ctx := context.Background()
	c, _ := setupCache(t)
	require.NoError(t, c.Put(ctx, "k", result("u")))

	got, ok := c.Peek(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "u", got.ImageURL)
	_, ok = c.Peek(ctx, "missing")
	assert.False(t, ok)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}
