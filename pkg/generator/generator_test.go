package generator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumbus-labs/plumbus/pkg/budget"
	"github.com/plumbus-labs/plumbus/pkg/metrics"
	"github.com/plumbus-labs/plumbus/pkg/models"
	"github.com/plumbus-labs/plumbus/pkg/prompt"
	"github.com/plumbus-labs/plumbus/pkg/provider"
	"github.com/plumbus-labs/plumbus/pkg/provider/huggingface"
	"github.com/plumbus-labs/plumbus/pkg/provider/together"
	"github.com/plumbus-labs/plumbus/pkg/router"
)

type fakeProvider struct {
	name    string
	url     string
	err     error
	calls   atomic.Int64
	release chan struct{}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req provider.Request) (provider.Image, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return provider.Image{}, ctx.Err()
		}
	}
	if f.err != nil {
		return provider.Image{}, f.err
	}
	return provider.Image{URL: f.url}, nil
}

type memRecorder struct {
	mu      sync.Mutex
	entries []models.HistoryEntry
}

func (m *memRecorder) Record(_ context.Context, e models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRecorder) outcomes() []models.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Outcome, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Outcome
	}
	return out
}

var cartoon = models.GenerationRequest{
	Style:      models.StyleCartoon,
	Components: []models.Component{models.ComponentGrumbo, models.ComponentFleeb},
}

func TestGenerateCachesResult(t *testing.T) {
	primary := &fakeProvider{name: "primary", url: "data:image/png;base64,AAAA"}
	c := New(Options{Router: router.NewStatic(router.Route{Provider: primary, Metered: true}), Quota: budget.New(30000)})
	ctx := context.Background()

	first, err := c.Generate(ctx, cartoon)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "primary", first.ServiceName)

	second, err := c.Generate(ctx, cartoon)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ImageURL, second.ImageURL)
	assert.Equal(t, first.Prompt, second.Prompt)
	assert.Equal(t, int64(1), primary.calls.Load())

	u := c.Usage()
	assert.Equal(t, int64(2), u.TotalRequests)
	assert.Equal(t, int64(1), u.SuccessfulGenerations)
	assert.Equal(t, int64(1), u.CacheHits)
	assert.Equal(t, int64(len(first.Prompt)), u.CurrentMonthUsage)
	assert.Equal(t, 30000-int64(len(first.Prompt)), u.RemainingQuota)
}

func TestGenerateComponentOrderIndependent(t *testing.T) {
	primary := &fakeProvider{name: "primary", url: "u"}
	c := New(Options{Router: router.NewStatic(router.Route{Provider: primary})})
	ctx := context.Background()

	_, err := c.Generate(ctx, cartoon)
	require.NoError(t, err)

	reordered := cartoon
	reordered.Components = []models.Component{models.ComponentFleeb, models.ComponentGrumbo}
	res, err := c.Generate(ctx, reordered)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, int64(1), primary.calls.Load())
}

func TestGenerateFallsBackToSecondary(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("boom")}
	secondary := &fakeProvider{name: "secondary", url: "https://img/1.png"}
	rec := &memRecorder{}
	c := New(Options{
		Router:  router.NewStatic(router.Route{Provider: primary, Metered: true}, router.Route{Provider: secondary}),
		History: rec,
	})

	res, err := c.Generate(context.Background(), cartoon)
	require.NoError(t, err)
	assert.Equal(t, "secondary", res.ServiceName)
	assert.Equal(t, "https://img/1.png", res.ImageURL)
	assert.Equal(t, []models.Outcome{models.OutcomeFailed, models.OutcomeSuccess}, rec.outcomes())
	assert.NotEmpty(t, rec.entries[0].RequestID)
	assert.Equal(t, rec.entries[0].RequestID, rec.entries[1].RequestID)
}

func TestGeneratePrimaryFailsNoSecondary(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("upstream down")}
	c := New(Options{Router: router.NewStatic(router.Route{Provider: primary})})

	_, err := c.Generate(context.Background(), cartoon)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "failed")
	assert.Contains(t, err.Error(), "upstream down")
	assert.Equal(t, int64(0), c.Usage().SuccessfulGenerations)
}

func TestGenerateNoProviders(t *testing.T) {
	c := New(Options{})
	assert.False(t, c.Available())

	_, err := c.Generate(context.Background(), cartoon)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, router.ErrNoProviders)
}

func TestGenerateInvalidRequest(t *testing.T) {
	primary := &fakeProvider{name: "primary", url: "u"}
	c := New(Options{Router: router.NewStatic(router.Route{Provider: primary})})

	_, err := c.Generate(context.Background(), models.GenerationRequest{Style: "baroque"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, int64(0), primary.calls.Load())
}

func TestGenerateQuotaSkipsMeteredProvider(t *testing.T) {
	primary := &fakeProvider{name: "primary", url: "p"}
	secondary := &fakeProvider{name: "secondary", url: "s"}
	rec := &memRecorder{}
	c := New(Options{
		Router:  router.NewStatic(router.Route{Provider: primary, Metered: true}, router.Route{Provider: secondary}),
		Quota:   budget.New(10), // shorter than any prompt
		History: rec,
	})

	res, err := c.Generate(context.Background(), cartoon)
	require.NoError(t, err)
	assert.Equal(t, "secondary", res.ServiceName)
	assert.Equal(t, int64(0), primary.calls.Load())
	assert.Equal(t, int64(1), secondary.calls.Load())
	assert.Equal(t, []models.Outcome{models.OutcomeQuotaSkipped, models.OutcomeSuccess}, rec.outcomes())

	// unmetered success does not consume quota
	assert.Equal(t, int64(0), c.Usage().CurrentMonthUsage)
}

func TestGenerateQuotaExhaustedOnlyProvider(t *testing.T) {
	primary := &fakeProvider{name: "primary", url: "p"}
	c := New(Options{
		Router: router.NewStatic(router.Route{Provider: primary, Metered: true}),
		Quota:  budget.New(1),
	})

	_, err := c.Generate(context.Background(), cartoon)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Equal(t, int64(0), primary.calls.Load())
}

func TestGenerateDeduplicatesInFlight(t *testing.T) {
	primary := &fakeProvider{name: "primary", url: "u", release: make(chan struct{})}
	c := New(Options{Router: router.NewStatic(router.Route{Provider: primary})})

	const n = 8
	var wg sync.WaitGroup
	results := make([]models.GenerationResult, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Generate(context.Background(), cartoon)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(primary.release)
	wg.Wait()

	assert.Equal(t, int64(1), primary.calls.Load())
	fresh := 0
	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, "u", results[i].ImageURL)
		if !results[i].Cached {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)

	u := c.Usage()
	assert.Equal(t, int64(n), u.TotalRequests)
	assert.Equal(t, int64(1), u.SuccessfulGenerations)
	assert.Equal(t, int64(n-1), u.CacheHits)
}

func TestGenerateRecordsMetrics(t *testing.T) {
	primary := &fakeProvider{name: "primary", url: "u"}
	m := metrics.New()
	c := New(Options{Router: router.NewStatic(router.Route{Provider: primary}), Metrics: m})

	_, err := c.Generate(context.Background(), cartoon)
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), cartoon)
	require.NoError(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["plumbus_generations_total"])
	assert.True(t, names["plumbus_cache_lookups_total"])
}

func TestCacheStatsAndClear(t *testing.T) {
	primary := &fakeProvider{name: "primary", url: "u"}
	c := New(Options{Router: router.NewStatic(router.Route{Provider: primary})})
	ctx := context.Background()

	_, err := c.Generate(ctx, cartoon)
	require.NoError(t, err)

	stats, err := c.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Entries)

	require.NoError(t, c.ClearCache(ctx))
	res, err := c.Generate(ctx, cartoon)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, int64(2), primary.calls.Load())
}

func TestGenerateCountsOneMissPerGeneration(t *testing.T) {
	primary := &fakeProvider{name: "primary", url: "u"}
	c := New(Options{Router: router.NewStatic(router.Route{Provider: primary})})
	ctx := context.Background()

	_, err := c.Generate(ctx, cartoon)
	require.NoError(t, err)
	stats, err := c.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.CacheStats{Entries: 1, Misses: 1}, stats)

	_, err = c.Generate(ctx, cartoon)
	require.NoError(t, err)
	stats, err = c.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.CacheStats{Entries: 1, Hits: 1, Misses: 1}, stats)
}

func TestGenerateCanceledCallerDoesNotFailOthers(t *testing.T) {
	primary := &fakeProvider{name: "primary", url: "u", release: make(chan struct{})}
	c := New(Options{Router: router.NewStatic(router.Route{Provider: primary})})

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Generate(firstCtx, cartoon)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return primary.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type outcome struct {
		res models.GenerationResult
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := c.Generate(context.Background(), cartoon)
		second <- outcome{res, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(primary.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "u", got.res.ImageURL)
	assert.Equal(t, int64(1), primary.calls.Load())

	// the shared result was cached even though its first caller left
	res, err := c.Generate(context.Background(), cartoon)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, int64(1), primary.calls.Load())
}

func TestQuotaGaugeSetOnStart(t *testing.T) {
	m := metrics.New()
	New(Options{Quota: budget.New(30000), Metrics: m})

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var value float64
	found := false
	for _, f := range families {
		if f.GetName() == "plumbus_quota_remaining_characters" {
			value = f.GetMetric()[0].GetGauge().GetValue()
			found = true
		}
	}
	require.True(t, found)
	assert.Equal(t, 30000.0, value)
}

func TestRequestIDFromContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

// The following tests run the real provider clients against httptest
// upstreams.

func newHF(t *testing.T, status int, calls *atomic.Int64) *huggingface.Provider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if status != http.StatusOK {
			http.Error(w, "model loading", status)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	}))
	t.Cleanup(srv.Close)
	return huggingface.New(huggingface.Config{APIKey: "hf", BaseURL: srv.URL})
}

func newTogether(t *testing.T, status int, calls *atomic.Int64) *together.Provider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if status != http.StatusOK {
			http.Error(w, `{"error":"rate limited"}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"url":"https://cdn.together.ai/img.png"}]}`))
	}))
	t.Cleanup(srv.Close)
	return together.New(together.Config{APIKey: "tg", BaseURL: srv.URL})
}

func TestHTTPBothProvidersFail(t *testing.T) {
	var hfCalls, tgCalls atomic.Int64
	c := New(Options{Router: router.NewStatic(
		router.Route{Provider: newHF(t, http.StatusServiceUnavailable, &hfCalls), Metered: true},
		router.Route{Provider: newTogether(t, http.StatusTooManyRequests, &tgCalls)},
	)})

	_, err := c.Generate(context.Background(), cartoon)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "all providers failed"))
	assert.Equal(t, int64(1), hfCalls.Load())
	assert.Equal(t, int64(1), tgCalls.Load())

	var se *provider.StatusError
	require.ErrorAs(t, err, &se)
}

func TestHTTPPrimarySucceeds(t *testing.T) {
	var hfCalls, tgCalls atomic.Int64
	c := New(Options{
		Router: router.NewStatic(
			router.Route{Provider: newHF(t, http.StatusOK, &hfCalls), Metered: true},
			router.Route{Provider: newTogether(t, http.StatusOK, &tgCalls)},
		),
		Quota: budget.New(30000),
	})

	icon, ok := prompt.Preset("iconSize")
	require.True(t, ok)
	res, err := c.Generate(context.Background(), icon)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.ImageURL, "data:image/png;base64,"))
	assert.Equal(t, "huggingface", res.ServiceName)
	assert.Equal(t, int64(0), tgCalls.Load())
}
