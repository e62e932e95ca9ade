// Package generator turns generation requests into images, trying each
// configured provider in order and caching results by canonical key.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/plumbus-labs/plumbus/pkg/budget"
	"github.com/plumbus-labs/plumbus/pkg/cache"
	"github.com/plumbus-labs/plumbus/pkg/cache/memory"
	"github.com/plumbus-labs/plumbus/pkg/metrics"
	"github.com/plumbus-labs/plumbus/pkg/models"
	"github.com/plumbus-labs/plumbus/pkg/prompt"
	"github.com/plumbus-labs/plumbus/pkg/provider"
	"github.com/plumbus-labs/plumbus/pkg/router"
	"github.com/plumbus-labs/plumbus/pkg/tracker"
)

var (
	// ErrAllProvidersFailed is returned when no provider produced an image.
	ErrAllProvidersFailed = errors.New("all providers failed")
	// ErrInvalidRequest is returned for requests with unsupported options.
	ErrInvalidRequest = errors.New("invalid request")
)

// Recorder receives one history entry per provider attempt or cache hit.
type Recorder interface {
	Record(ctx context.Context, entry models.HistoryEntry) error
}

// Options configures a Client. Only Router is required for generation;
// everything else has a working default.
type Options struct {
	Router  *router.Router
	Cache   cache.Store
	Quota   *budget.Quota
	History Recorder
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// Client generates images. It is safe for concurrent use.
type Client struct {
	router  *router.Router
	cache   cache.Store
	quota   *budget.Quota
	counter *tracker.Counter
	history Recorder
	metrics *metrics.Collector
	logger  *zap.Logger
	group   singleflight.Group
	now     func() time.Time
}

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{
		router:  opts.Router,
		cache:   opts.Cache,
		quota:   opts.Quota,
		counter: tracker.New(),
		history: opts.History,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     time.Now,
	}
	if c.router == nil {
		c.router = router.NewStatic()
	}
	if c.cache == nil {
		c.cache = memory.New(256, 24*time.Hour)
	}
	if c.quota == nil {
		c.quota = budget.New(0)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.metrics != nil && c.quota.Enabled() {
		c.metrics.SetQuotaRemaining(c.quota.Remaining())
	}
	return c
}

type requestIDKey struct{}

// WithRequestID attaches a request ID that is carried into history entries.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// flight is the value shared by coalesced callers.
type flight struct {
	result    models.GenerationResult
	fromCache bool
}

// Generate returns an image for req. A cached result is returned with
// Cached set and no provider call. On a miss the providers are tried once
// each, in order; metered providers are skipped when the quota cannot
// cover the prompt. Concurrent calls for the same request share one
// provider call, which runs detached from any single caller: a caller
// whose ctx ends stops waiting, the others still get the result.
func (c *Client) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	c.counter.Request()

	if err := req.Validate(); err != nil {
		return models.GenerationResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if RequestIDFromContext(ctx) == "" {
		ctx = WithRequestID(ctx, uuid.NewString())
	}

	norm := req.Normalize()
	key := cache.Key(norm)

	if res, ok := c.cache.Get(ctx, key); ok {
		c.hit(ctx, key, norm, res)
		res.Cached = true
		return res, nil
	}
	c.recordLookup(false)

	leader := false
	ch := c.group.DoChan(key, func() (any, error) {
		leader = true
		fctx := context.WithoutCancel(ctx)
		// Peek: this lookup was already counted as a miss above.
		if res, ok := c.cache.Peek(fctx, key); ok {
			return flight{result: res, fromCache: true}, nil
		}
		res, err := c.generate(fctx, norm, key)
		return flight{result: res}, err
	})

	var out singleflight.Result
	select {
	case <-ctx.Done():
		return models.GenerationResult{}, ctx.Err()
	case out = <-ch:
	}
	if out.Err != nil {
		return models.GenerationResult{}, out.Err
	}

	f := out.Val.(flight)
	res := f.result
	if !leader || f.fromCache {
		c.hit(ctx, key, norm, res)
		res.Cached = true
	}
	return res, nil
}

func (c *Client) hit(ctx context.Context, key string, req models.GenerationRequest, res models.GenerationResult) {
	c.counter.CacheHit()
	c.recordLookup(true)
	c.record(ctx, models.HistoryEntry{
		CacheKey: key,
		Style:    req.Style,
		Prompt:   res.Prompt,
		Provider: res.ServiceName,
		Outcome:  models.OutcomeCacheHit,
	})
}

func (c *Client) generate(ctx context.Context, req models.GenerationRequest, key string) (models.GenerationResult, error) {
	p := prompt.Build(req)
	log := c.logger.With(
		zap.String("request_id", RequestIDFromContext(ctx)),
		zap.String("style", string(req.Style)),
	)

	routes, err := c.router.Resolve(req.Style)
	if err != nil {
		return models.GenerationResult{}, fmt.Errorf("%w: %w", ErrAllProvidersFailed, err)
	}

	var errs *multierror.Error
	for _, rt := range routes {
		name := rt.Provider.Name()
		entry := models.HistoryEntry{CacheKey: key, Style: req.Style, Prompt: p.Text, Provider: name}

		if rt.Metered && !c.quota.Allow(len(p.Text)) {
			log.Debug("quota insufficient, skipping provider",
				zap.String("provider", name),
				zap.Int("prompt_chars", len(p.Text)),
				zap.Int64("remaining", c.quota.Remaining()),
			)
			entry.Outcome = models.OutcomeQuotaSkipped
			c.record(ctx, entry)
			c.recordGeneration(name, entry.Outcome, 0)
			continue
		}

		start := time.Now()
		img, err := rt.Provider.Generate(ctx, provider.Request{
			Prompt:         p.Text,
			NegativePrompt: p.Negative,
			Width:          req.Size.Width,
			Height:         req.Size.Height,
		})
		elapsed := time.Since(start)
		entry.LatencyMs = elapsed.Milliseconds()

		if err != nil {
			log.Warn("provider failed, trying next",
				zap.String("provider", name),
				zap.Duration("latency", elapsed),
				zap.Error(err),
			)
			errs = multierror.Append(errs, err)
			entry.Outcome = models.OutcomeFailed
			entry.Error = err.Error()
			c.record(ctx, entry)
			c.recordGeneration(name, entry.Outcome, elapsed)
			continue
		}

		if rt.Metered {
			c.quota.Consume(len(p.Text))
			if c.metrics != nil {
				c.metrics.SetQuotaRemaining(c.quota.Remaining())
			}
		}

		res := models.GenerationResult{
			ImageURL:    img.URL,
			Prompt:      p.Text,
			ServiceName: name,
			GeneratedAt: c.now().UTC(),
		}
		if err := c.cache.Put(ctx, key, res); err != nil {
			log.Warn("cache put failed", zap.Error(err))
		}
		c.counter.Success()

		entry.Outcome = models.OutcomeSuccess
		c.record(ctx, entry)
		c.recordGeneration(name, entry.Outcome, elapsed)
		log.Info("image generated",
			zap.String("provider", name),
			zap.Duration("latency", elapsed),
		)
		return res, nil
	}

	if errs == nil {
		return models.GenerationResult{}, ErrAllProvidersFailed
	}
	errs.ErrorFormat = joinErrors
	return models.GenerationResult{}, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errs)
}

func joinErrors(es []error) string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (c *Client) record(ctx context.Context, entry models.HistoryEntry) {
	if c.history == nil {
		return
	}
	entry.RequestID = RequestIDFromContext(ctx)
	entry.CreatedAt = c.now().UTC()
	if err := c.history.Record(ctx, entry); err != nil {
		c.logger.Warn("history record failed", zap.Error(err))
	}
}

func (c *Client) recordLookup(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(hit)
	}
}

func (c *Client) recordGeneration(name string, outcome models.Outcome, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordGeneration(name, string(outcome), d)
	}
}

// Usage returns the client's counters and the current quota state.
func (c *Client) Usage() models.UsageStats {
	s := c.counter.Snapshot()
	return models.UsageStats{
		TotalRequests:         s.TotalRequests,
		SuccessfulGenerations: s.SuccessfulGenerations,
		CacheHits:             s.CacheHits,
		CurrentMonthUsage:     c.quota.Used(),
		RemainingQuota:        c.quota.Remaining(),
	}
}

// Available reports whether any provider is configured.
func (c *Client) Available() bool {
	return c.router.Available()
}

// CacheStats returns the result cache's metrics.
func (c *Client) CacheStats(ctx context.Context) (models.CacheStats, error) {
	return c.cache.Stats(ctx)
}

// ClearCache drops every cached result.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.cache.Clear(ctx)
}

// Close releases the cache.
func (c *Client) Close() error {
	return c.cache.Close()
}
