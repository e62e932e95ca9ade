// Package server exposes image generation, usage and cache management over
// HTTP, alongside the static site.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/plumbus-labs/plumbus/pkg/audit"
	"github.com/plumbus-labs/plumbus/pkg/config"
	"github.com/plumbus-labs/plumbus/pkg/generator"
	"github.com/plumbus-labs/plumbus/pkg/loader"
	"github.com/plumbus-labs/plumbus/pkg/metrics"
)

// Options wires a Server. Generator is required; History, Metrics and Site
// are optional.
type Options struct {
	Config    *config.Config
	Generator *generator.Client
	Loader    *loader.Loader
	History   *audit.Logger
	Metrics   *metrics.Collector
	Site      http.Handler
	Logger    *zap.Logger
}

// Server is the plumbus HTTP server.
type Server struct {
	cfg     *config.Config
	gen     *generator.Client
	loader  *loader.Loader
	history *audit.Logger
	metrics *metrics.Collector
	site    http.Handler
	logger  *zap.Logger
	limiter *limiter
	handler http.Handler
}

// New creates a Server wired with all dependencies.
func New(opts Options) *Server {
	s := &Server{
		cfg:     opts.Config,
		gen:     opts.Generator,
		loader:  opts.Loader,
		history: opts.History,
		metrics: opts.Metrics,
		site:    opts.Site,
		logger:  opts.Logger,
	}
	if s.cfg == nil {
		s.cfg = config.Default()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.loader == nil {
		s.loader = loader.New(s.gen, loader.Config{
			MaxRetries:   s.cfg.Loader.MaxRetries,
			InitialDelay: s.cfg.Loader.InitialDelay,
			MaxDelay:     s.cfg.Loader.MaxDelay,
		}, s.logger)
	}
	s.limiter = newLimiter(s.cfg.Server.RateLimit, s.cfg.Server.Burst)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/images/generations", s.limiter.RateLimit(s.handleGenerate))
	mux.HandleFunc("GET /v1/presets", s.handlePresets)
	mux.HandleFunc("GET /v1/presets/{name}/image", s.limiter.RateLimit(s.handlePresetImage))
	mux.HandleFunc("GET /v1/usage", s.handleUsage)
	mux.HandleFunc("GET /v1/cache/stats", s.handleCacheStats)
	mux.HandleFunc("DELETE /v1/cache", s.handleCacheClear)
	mux.HandleFunc("GET /v1/history", s.handleHistory)
	mux.HandleFunc("GET /fallback.svg", s.handleFallback)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("/", s.handleSite)

	s.handler = Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger, s.metrics),
	)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	limiterCtx, stop := context.WithCancel(ctx)
	defer stop()
	go s.limiter.run(limiterCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("plumbus server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
