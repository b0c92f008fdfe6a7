package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/dealscache/provider/bigcache"
	"github.com/unkn0wn-root/dealscache/provider/memory"
	"github.com/unkn0wn-root/dealscache/provider/ristretto"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
listen: ":9090"
upstream:
  base_url: https://deals.example.com/api
cache:
  provider: ristretto
  history:
    ttl: 1h
`))
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Listen)
	require.Equal(t, "https://deals.example.com/api", cfg.Upstream.BaseURL)
	require.Equal(t, ProviderRistretto, cfg.Cache.Provider)
	require.Equal(t, time.Hour, cfg.Cache.History.TTL)
	require.Equal(t, 2*time.Second, cfg.Cache.History.Timeout, "untouched fields keep defaults")
	require.Equal(t, 5*time.Minute, cfg.Cache.Search.TTL)
}

func TestParseEmptyAndUnknown(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = Parse([]byte("cache:\n  providr: memory\n"))
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"DEALSGW_LISTEN":               ":7000",
		"DEALSGW_CACHE_MAX_ENTRIES":    "500",
		"DEALSGW_CACHE_SEARCH_TIMEOUT": "750ms",
		"DEALSGW_LOG_LEVEL":            "debug",
	}))
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.Listen)
	require.Equal(t, 500, cfg.Cache.MaxEntries)
	require.Equal(t, 750*time.Millisecond, cfg.Cache.Search.Timeout)
	require.Equal(t, "debug", cfg.Log.Level)

	err = cfg.ApplyEnv(env(map[string]string{"DEALSGW_CACHE_RETENTION": "forever"}))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Upstream.BaseURL = "ftp://nope"
	cfg.Log.Level = "loud"
	cfg.Cache.Provider = "redis"
	cfg.Cache.Health.TTL = -time.Second

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	for _, want := range []string{"base_url", "log.level", "cache.provider", "cache.health"} {
		require.ErrorContains(t, err, want)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dealsgw.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: console\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "console", cfg.Log.Format)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestOptionsMapping(t *testing.T) {
	cfg := Default()
	cfg.Cache.MaxValueBytes = 4096
	opts := cfg.Options()

	require.Equal(t, cfg.Cache.Popular.TTL, opts.Popular.TTL)
	require.Equal(t, cfg.Cache.Health.Timeout, opts.Health.Timeout)
	require.Equal(t, cfg.Cache.Retention, opts.Retention)
	require.Equal(t, 4096, opts.MaxValueBytes)
	require.Nil(t, opts.Provider)
}

func TestProviderSelection(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		want any
	}{
		{ProviderMemory, &memory.Provider{}},
		{ProviderRistretto, &ristretto.Provider{}},
		{ProviderBigCache, &bigcache.Provider{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Cache.Provider = tc.name
			p, err := cfg.Provider(ctx)
			require.NoError(t, err)
			t.Cleanup(func() { _ = p.Close(ctx) })
			require.IsType(t, tc.want, p)
		})
	}

	cfg := Default()
	cfg.Cache.Provider = "redis"
	_, err := cfg.Provider(ctx)
	require.ErrorIs(t, err, ErrInvalid)
}
