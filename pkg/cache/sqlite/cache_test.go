package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/plumbus-labs/plumbus/pkg/cache"
	"github.com/plumbus-labs/plumbus/pkg/models"
)

var _ cache.Store = (*Cache)(nil)

func newTestCache(t *testing.T, maxEntries int, ttl time.Duration) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	c, err := New(dbPath, maxEntries, ttl)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func result(url string) models.GenerationResult {
	return models.GenerationResult{
		ImageURL:    url,
		Prompt:      "a plumbus",
		ServiceName: "together",
		GeneratedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0, time.Hour)
	key := cache.Key(models.GenerationRequest{Style: models.StyleCartoon})

	if err := c.Put(ctx, key, result("https://img/1.png")); err != nil {
		t.Fatal(err)
	}

	got, ok := c.Get(ctx, key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != result("https://img/1.png") {
		t.Errorf("unexpected result: %+v", got)
	}

	if _, ok := c.Get(ctx, "other"); ok {
		t.Error("expected cache miss for unknown key")
	}
}

func TestTTLExpiration(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0, time.Second)

	if err := c.Put(ctx, "k", result("u")); err != nil {
		t.Fatal(err)
	}

	time.Sleep(1100 * time.Millisecond)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected cache miss after TTL expiration")
	}
	n, err := c.Prune(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned entry, got %d", n)
	}
}

func TestMaxEntries(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 2, time.Hour)

	for _, k := range []string{"a", "b", "c"} {
		if err := c.Put(ctx, k, result(k)); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 2 {
		t.Errorf("expected 2 entries, got %d", stats.Entries)
	}
	if stats.Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", stats.Evictions)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0, time.Hour)

	_ = c.Put(ctx, "h1", result("u"))
	c.Get(ctx, "h1") // hit
	c.Get(ctx, "h2") // miss

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0, time.Hour)

	_ = c.Put(ctx, "h1", result("u"))
	_ = c.Put(ctx, "h2", result("u"))

	if err := c.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	stats, _ := c.Stats(ctx)
	if stats.Entries != 0 {
		t.Errorf("expected 0 entries after clear, got %d", stats.Entries)
	}
}

func TestPeekDoesNotCount(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0, time.Hour)

	if err := c.Put(ctx, "k", result("https://img/p.png")); err != nil {
		t.Fatal(err)
	}
	if got, ok := c.Peek(ctx, "k"); !ok || got.ImageURL != "https://img/p.png" {
		t.Fatalf("Peek = %+v, %v", got, ok)
	}
	if _, ok := c.Peek(ctx, "missing"); ok {
		t.Error("expected miss for unknown key")
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("Peek should not count: %+v", stats)
	}
}
