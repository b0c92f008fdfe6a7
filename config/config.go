// Package config loads the dealsgw configuration from YAML with DEALSGW_*
// environment overrides and turns it into dealscache options and a provider.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/dealscache"
	"github.com/unkn0wn-root/dealscache/codec"
	"github.com/unkn0wn-root/dealscache/internal/warmup"
	pr "github.com/unkn0wn-root/dealscache/provider"
	"github.com/unkn0wn-root/dealscache/provider/bigcache"
	"github.com/unkn0wn-root/dealscache/provider/memory"
	"github.com/unkn0wn-root/dealscache/provider/ristretto"
)

const EnvPrefix = "DEALSGW_"

const (
	ProviderMemory    = "memory"
	ProviderRistretto = "ristretto"
	ProviderBigCache  = "bigcache"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Upstream        Upstream      `yaml:"upstream"`
	Log             Log           `yaml:"log"`
	Cache           Cache         `yaml:"cache"`
	Warmup          warmup.Config `yaml:"warmup"`
}

type Upstream struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"` // transport-level cap; per-operation deadlines live in Cache
	UserAgent string        `yaml:"user_agent"`
}

type Log struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type Operation struct {
	TTL     time.Duration `yaml:"ttl"`
	Timeout time.Duration `yaml:"timeout"`
}

type Cache struct {
	Provider      string        `yaml:"provider"`
	Codec         string        `yaml:"codec"`
	MaxEntries    int           `yaml:"max_entries"`
	Retention     time.Duration `yaml:"retention"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxValueBytes int           `yaml:"max_value_bytes"`

	Search  Operation `yaml:"search"`
	Popular Operation `yaml:"popular"`
	Health  Operation `yaml:"health"`
	History Operation `yaml:"history"`
}

// Default is the configuration used for anything a file leaves out.
func Default() Config {
	return Config{
		Listen:          ":8080",
		ShutdownTimeout: 10 * time.Second,
		Upstream: Upstream{
			BaseURL:   "http://localhost:9000",
			Timeout:   10 * time.Second,
			UserAgent: "dealsgw",
		},
		Log: Log{Level: "info", Format: "json"},
		Cache: Cache{
			Provider:      ProviderMemory,
			Codec:         codec.NameMsgpack,
			MaxEntries:    10_000,
			Retention:     24 * time.Hour,
			SweepInterval: 10 * time.Minute,
			Search:        Operation{TTL: 5 * time.Minute, Timeout: 3 * time.Second},
			Popular:       Operation{TTL: 10 * time.Minute, Timeout: 3 * time.Second},
			Health:        Operation{TTL: 30 * time.Second, Timeout: 2 * time.Second},
			History:       Operation{TTL: 30 * time.Minute, Timeout: 2 * time.Second},
		},
		Warmup: warmup.Config{Popular: "@every 5m"},
	}
}

// Load reads path (optional), applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if cfg, err = Parse(data); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from DEALSGW_* variables, e.g. DEALSGW_LISTEN,
// DEALSGW_UPSTREAM_BASE_URL, DEALSGW_CACHE_PROVIDER, DEALSGW_CACHE_SEARCH_TTL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LISTEN":              &c.Listen,
		"UPSTREAM_BASE_URL":   &c.Upstream.BaseURL,
		"UPSTREAM_USER_AGENT": &c.Upstream.UserAgent,
		"LOG_LEVEL":           &c.Log.Level,
		"LOG_FORMAT":          &c.Log.Format,
		"CACHE_PROVIDER":      &c.Cache.Provider,
		"CACHE_CODEC":         &c.Cache.Codec,
		"WARMUP_POPULAR":      &c.Warmup.Popular,
		"WARMUP_HEALTH":       &c.Warmup.Health,
	}
	ints := map[string]*int{
		"CACHE_MAX_ENTRIES":     &c.Cache.MaxEntries,
		"CACHE_MAX_VALUE_BYTES": &c.Cache.MaxValueBytes,
	}
	durs := map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT":      &c.ShutdownTimeout,
		"UPSTREAM_TIMEOUT":      &c.Upstream.Timeout,
		"CACHE_RETENTION":       &c.Cache.Retention,
		"CACHE_SWEEP_INTERVAL":  &c.Cache.SweepInterval,
		"CACHE_SEARCH_TTL":      &c.Cache.Search.TTL,
		"CACHE_SEARCH_TIMEOUT":  &c.Cache.Search.Timeout,
		"CACHE_POPULAR_TTL":     &c.Cache.Popular.TTL,
		"CACHE_POPULAR_TIMEOUT": &c.Cache.Popular.Timeout,
		"CACHE_HEALTH_TTL":      &c.Cache.Health.TTL,
		"CACHE_HEALTH_TIMEOUT":  &c.Cache.Health.Timeout,
		"CACHE_HISTORY_TTL":     &c.Cache.History.TTL,
		"CACHE_HISTORY_TIMEOUT": &c.Cache.History.Timeout,
	}

	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	for name, dst := range ints {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q: %v", ErrInvalid, EnvPrefix, name, v, err)
			}
			*dst = n
		}
	}
	for name, dst := range durs {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q: %v", ErrInvalid, EnvPrefix, name, v, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Listen == "" {
		bad("listen is empty")
	}
	if !strings.HasPrefix(c.Upstream.BaseURL, "http://") && !strings.HasPrefix(c.Upstream.BaseURL, "https://") {
		bad("upstream.base_url %q is not an http(s) URL", c.Upstream.BaseURL)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		bad("log.level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		bad("log.format %q", c.Log.Format)
	}
	switch c.Cache.Provider {
	case ProviderMemory, ProviderRistretto, ProviderBigCache:
	default:
		bad("cache.provider %q", c.Cache.Provider)
	}
	switch c.Cache.Codec {
	case "", codec.NameMsgpack, codec.NameJSON, codec.NameCBOR:
	default:
		bad("cache.codec %q", c.Cache.Codec)
	}
	if c.Cache.Retention < 0 {
		bad("cache.retention is negative")
	}
	if c.Cache.MaxValueBytes < 0 {
		bad("cache.max_value_bytes is negative")
	}
	for name, op := range map[string]Operation{
		"search": c.Cache.Search, "popular": c.Cache.Popular,
		"health": c.Cache.Health, "history": c.Cache.History,
	} {
		if op.TTL < 0 || op.Timeout < 0 {
			bad("cache.%s durations must not be negative", name)
		}
	}
	return errors.Join(errs...)
}

// Options maps the cache section onto dealscache.Options. Provider, Logger
// and Hooks are left for the caller.
func (c Config) Options() dealscache.Options {
	op := func(o Operation) dealscache.OperationConfig {
		return dealscache.OperationConfig{TTL: o.TTL, Timeout: o.Timeout}
	}
	return dealscache.Options{
		Search:        op(c.Cache.Search),
		Popular:       op(c.Cache.Popular),
		Health:        op(c.Cache.Health),
		History:       op(c.Cache.History),
		MaxEntries:    c.Cache.MaxEntries,
		Retention:     c.Cache.Retention,
		SweepInterval: c.Cache.SweepInterval,
		MaxValueBytes: c.Cache.MaxValueBytes,
		Codec:         c.Cache.Codec,
	}
}

// Provider builds the byte store named by cache.provider. The caller owns it.
func (c Config) Provider(ctx context.Context) (pr.Provider, error) {
	retention := c.Cache.Retention
	if retention == 0 {
		retention = 24 * time.Hour
	}
	switch c.Cache.Provider {
	case "", ProviderMemory:
		return memory.New(), nil
	case ProviderRistretto:
		perOp := c.Cache.MaxEntries
		if perOp <= 0 {
			perOp = 10_000
		}
		// Four operations share the cache, each capped at MaxEntries.
		p, err := ristretto.New(ristretto.DefaultConfig(int64(perOp) * 4))
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderBigCache:
		p, err := bigcache.New(ctx, bigcache.Config{
			LifeWindow:  retention,
			CleanWindow: c.Cache.SweepInterval,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: cache.provider %q", ErrInvalid, c.Cache.Provider)
	}
}
