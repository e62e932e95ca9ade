// Package loader wraps a generator for page components that must always
// render something: it retries with exponential backoff and finally falls
// back to the static plumbus asset.
package loader

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/plumbus-labs/plumbus/pkg/fallback"
	"github.com/plumbus-labs/plumbus/pkg/generator"
	"github.com/plumbus-labs/plumbus/pkg/models"
)

// Generator is the part of generator.Client the loader needs.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error)
	Available() bool
}

// Config controls retries. Delays start at InitialDelay and double up to
// MaxDelay, without jitter.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig retries three times after 1s, 2s and 4s.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 8 * time.Second}
}

// Image is what a page component renders.
type Image struct {
	URL      string                   `json:"url"`
	Prompt   string                   `json:"prompt,omitempty"`
	Result   *models.GenerationResult `json:"result,omitempty"`
	Fallback bool                     `json:"fallback"`
	Attempts int                      `json:"attempts"`
	Err      string                   `json:"error,omitempty"`
}

// Loader produces images for page components.
type Loader struct {
	gen    Generator
	cfg    Config
	logger *zap.Logger
}

// New creates a Loader.
func New(gen Generator, cfg Config, logger *zap.Logger) *Loader {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay << max(cfg.MaxRetries, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{gen: gen, cfg: cfg, logger: logger}
}

// Load returns a generated image, or the fallback asset when no provider is
// configured or every attempt failed. It never fails.
func (l *Loader) Load(ctx context.Context, req models.GenerationRequest) Image {
	if !l.gen.Available() {
		return Image{URL: fallback.SVG(), Fallback: true}
	}

	attempts := 0
	op := func() (models.GenerationResult, error) {
		attempts++
		res, err := l.gen.Generate(ctx, req)
		if errors.Is(err, generator.ErrInvalidRequest) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     l.cfg.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         l.cfg.MaxDelay,
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(max(l.cfg.MaxRetries, 0)+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			l.logger.Warn("image generation failed, retrying",
				zap.Int("attempt", attempts),
				zap.Duration("backoff", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		l.logger.Warn("image generation exhausted, using fallback",
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return Image{URL: fallback.SVG(), Fallback: true, Attempts: attempts, Err: err.Error()}
	}

	return Image{URL: res.ImageURL, Prompt: res.Prompt, Result: &res, Attempts: attempts}
}
