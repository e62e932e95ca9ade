package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plumbus-labs/plumbus/pkg/audit"
	"github.com/plumbus-labs/plumbus/pkg/budget"
	"github.com/plumbus-labs/plumbus/pkg/cache"
	"github.com/plumbus-labs/plumbus/pkg/cache/memory"
	rediscache "github.com/plumbus-labs/plumbus/pkg/cache/redis"
	"github.com/plumbus-labs/plumbus/pkg/cache/sqlite"
	"github.com/plumbus-labs/plumbus/pkg/config"
	"github.com/plumbus-labs/plumbus/pkg/generator"
	"github.com/plumbus-labs/plumbus/pkg/metrics"
	"github.com/plumbus-labs/plumbus/pkg/router"
)

// app holds everything a command needs to generate images.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	gen     *generator.Client
	history *audit.Logger
	metrics *metrics.Collector
}

func newApp(ctx context.Context, configPath string, withMetrics bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := initLogger(cfg.Log)

	store, err := openCache(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	if cfg.History.Enabled {
		a.history, err = openHistory(cfg)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	if withMetrics {
		a.metrics = metrics.New()
	}

	opts := generator.Options{
		Router:  router.New(cfg),
		Cache:   store,
		Quota:   budget.New(cfg.Quota.MonthlyCharacters),
		Metrics: a.metrics,
		Logger:  logger,
	}
	if a.history != nil {
		opts.History = a.history
	}
	a.gen = generator.New(opts)

	logger.Debug("app initialized",
		zap.String("cache", cfg.Cache.Backend),
		zap.Bool("history", cfg.History.Enabled),
		zap.Bool("providers", a.gen.Available()))
	return a, nil
}

func (a *app) Close() {
	if err := a.gen.Close(); err != nil {
		a.logger.Warn("close cache", zap.Error(err))
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("close history", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// openCache builds the configured result cache backend.
func openCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Store, error) {
	c := cfg.Cache
	switch c.Backend {
	case config.CacheSQLite:
		s, err := sqlite.New(cfg.DBPath, c.MaxEntries, c.TTL)
		if err != nil {
			return nil, fmt.Errorf("init sqlite cache: %w", err)
		}
		return s, nil
	case config.CacheRedis:
		s, err := rediscache.New(ctx, c.RedisURL, c.KeyPrefix, c.TTL, logger)
		if err != nil {
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
		return s, nil
	default:
		return memory.New(c.MaxEntries, c.TTL), nil
	}
}

func openHistory(cfg *config.Config) (*audit.Logger, error) {
	l, err := audit.New(audit.Config{
		DBPath:         cfg.HistoryDBPath(),
		RetentionDays:  cfg.History.RetentionDays,
		IncludePrompts: cfg.History.IncludePrompts,
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return l, nil
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
