package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/plumbus-labs/plumbus/pkg/models"
)

// Provider types.
const (
	ProviderHuggingFace = "huggingface"
	ProviderTogether    = "together"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// Config holds all plumbus configuration.
type Config struct {
	Listen    string           `yaml:"listen"`
	DBPath    string           `yaml:"db_path"`
	Log       LogConfig        `yaml:"log"`
	Providers []ProviderConfig `yaml:"providers"`
	Router    RouterConfig     `yaml:"router"`
	Cache     CacheConfig      `yaml:"cache"`
	Quota     QuotaConfig      `yaml:"quota"`
	Loader    LoaderConfig     `yaml:"loader"`
	History   HistoryConfig    `yaml:"history"`
	Server    ServerConfig     `yaml:"server"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// ProviderConfig defines an upstream image provider. Order in the list is
// the fallback order.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	Type    string        `yaml:"type"`
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
	Metered *bool         `yaml:"metered"`
}

// IsMetered reports whether calls to the provider count against the quota.
// Hugging Face is metered unless configured otherwise.
func (p ProviderConfig) IsMetered() bool {
	if p.Metered != nil {
		return *p.Metered
	}
	return p.Type == ProviderHuggingFace
}

// RouterConfig defines per-style provider order overrides.
type RouterConfig struct {
	Routes []RouteConfig `yaml:"routes"`
}

// RouteConfig maps a style to an ordered list of provider names.
type RouteConfig struct {
	Style     string   `yaml:"style"`
	Providers []string `yaml:"providers"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	Backend    string        `yaml:"backend"`
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
	RedisURL   string        `yaml:"redis_url"`
	KeyPrefix  string        `yaml:"key_prefix"`
}

// QuotaConfig controls the soft monthly character budget. Zero disables it.
type QuotaConfig struct {
	MonthlyCharacters int64 `yaml:"monthly_characters"`
}

// LoaderConfig controls retries made on behalf of page components.
type LoaderConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// HistoryConfig controls the generation history log.
type HistoryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	DBPath         string `yaml:"db_path"`
	RetentionDays  int    `yaml:"retention_days"`
	IncludePrompts bool   `yaml:"include_prompts"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	RateLimit       float64       `yaml:"rate_limit"` // generations per second, 0 = unlimited
	Burst           int           `yaml:"burst"`
	SiteDir         string        `yaml:"site_dir"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// envOverrides are read from the process environment after the file.
type envOverrides struct {
	Listen           string `env:"PLUMBUS_LISTEN"`
	DBPath           string `env:"PLUMBUS_DB_PATH"`
	LogLevel         string `env:"PLUMBUS_LOG_LEVEL"`
	HuggingFaceToken string `env:"PLUMBUS_HUGGINGFACE_TOKEN"`
	TogetherToken    string `env:"PLUMBUS_TOGETHER_TOKEN"`
	RedisURL         string `env:"PLUMBUS_REDIS_URL"`
}

// Default returns a Config with sensible defaults. Both providers are
// listed without keys; a provider without a key is skipped at runtime.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "plumbus.db",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Providers: []ProviderConfig{
			{Name: ProviderHuggingFace, Type: ProviderHuggingFace},
			{Name: ProviderTogether, Type: ProviderTogether},
		},
		Cache: CacheConfig{
			Backend:    CacheMemory,
			MaxEntries: 256,
			TTL:        24 * time.Hour,
			KeyPrefix:  "plumbus:image:",
		},
		Quota: QuotaConfig{
			MonthlyCharacters: 30000,
		},
		Loader: LoaderConfig{
			MaxRetries:   3,
			InitialDelay: time.Second,
			MaxDelay:     8 * time.Second,
		},
		History: HistoryConfig{
			Enabled:       false,
			RetentionDays: 30,
		},
		Server: ServerConfig{
			RateLimit:       5,
			Burst:           10,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Load reads a YAML config file, expands environment variables and applies
// PLUMBUS_* overrides. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files. Missing files are
// ignored; variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if ov.Listen != "" {
		cfg.Listen = ov.Listen
	}
	if ov.DBPath != "" {
		cfg.DBPath = ov.DBPath
	}
	if ov.LogLevel != "" {
		cfg.Log.Level = ov.LogLevel
	}
	if ov.RedisURL != "" {
		cfg.Cache.RedisURL = ov.RedisURL
	}
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		switch {
		case p.Type == ProviderHuggingFace && ov.HuggingFaceToken != "":
			p.APIKey = ov.HuggingFaceToken
		case p.Type == ProviderTogether && ov.TogetherToken != "":
			p.APIKey = ov.TogetherToken
		}
	}
	return nil
}

// Validate checks provider, route and cache settings.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		switch p.Type {
		case ProviderHuggingFace, ProviderTogether:
		default:
			return fmt.Errorf("provider %q: unknown type %q", p.Name, p.Type)
		}
	}

	for _, r := range c.Router.Routes {
		if strings.TrimSpace(r.Style) == "" {
			return errors.New("router: route style is required")
		}
		if !slices.Contains(models.Styles, models.Style(r.Style)) {
			return fmt.Errorf("router: unknown style %q", r.Style)
		}
		if len(r.Providers) == 0 {
			return fmt.Errorf("router: route %q has no providers", r.Style)
		}
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheSQLite:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return errors.New("cache: redis backend requires redis_url")
		}
	default:
		return fmt.Errorf("cache: unknown backend %q", c.Cache.Backend)
	}
	if c.Cache.MaxEntries <= 0 {
		return errors.New("cache: max_entries must be positive")
	}

	if c.Quota.MonthlyCharacters < 0 {
		return errors.New("quota: monthly_characters must not be negative")
	}
	if c.Loader.MaxRetries < 0 {
		return errors.New("loader: max_retries must not be negative")
	}
	return nil
}

// HistoryDBPath returns the history database path, defaulting to DBPath.
func (c *Config) HistoryDBPath() string {
	if c.History.DBPath != "" {
		return c.History.DBPath
	}
	return c.DBPath
}
