package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.Equal(t, 10, cfg.Datafeed.BatchSize)
	assert.Equal(t, 0, cfg.Datafeed.RetryCount)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Empty(t, cfg.Cache.Path)
	assert.NoError(t, cfg.Validate())

	timing, err := cfg.Datafeed.Timing()
	require.NoError(t, err)
	assert.Equal(t, time.Second, timing.PauseBetweenBatches)
	assert.Equal(t, 500*time.Millisecond, timing.PauseBetweenRetries)
	assert.Equal(t, 30*time.Second, timing.Timeout)
	assert.Equal(t, 24*time.Hour, timing.EmptyHourSettle)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"bad base url", func(c *Config) { c.Datafeed.BaseURL = "ftp://example.com" }, "datafeed.base_url"},
		{"empty base url", func(c *Config) { c.Datafeed.BaseURL = "" }, "datafeed.base_url"},
		{"zero batch", func(c *Config) { c.Datafeed.BatchSize = 0 }, "datafeed.batch_size must be at least 1"},
		{"negative retries", func(c *Config) { c.Datafeed.RetryCount = -1 }, "datafeed.retry_count must not be negative"},
		{"bad pause", func(c *Config) { c.Datafeed.PauseBetweenBatches = "soon" }, "datafeed.pause_between_batches"},
		{"negative pause", func(c *Config) { c.Datafeed.PauseBetweenRetries = "-1s" }, "must not be negative"},
		{"missing timeout", func(c *Config) { c.Datafeed.Timeout = "" }, "datafeed.timeout is required"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad empty hour settle", func(c *Config) { c.Datafeed.EmptyHourSettle = "a day" }, "datafeed.empty_hour_settle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml format", "cfg.yaml", "datafeed:\n  batch_size: 4\n  retry_count: 2\ncache:\n  path: /tmp/hours.sqlite\n"},
		{"json format", "cfg.json", `{"datafeed":{"batch_size":4,"retry_count":2},"cache":{"path":"/tmp/hours.sqlite"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			cfg, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, 4, cfg.Datafeed.BatchSize)
			assert.Equal(t, 2, cfg.Datafeed.RetryCount)
			assert.Equal(t, "/tmp/hours.sqlite", cfg.Cache.Path)
			// untouched fields keep their defaults
			assert.Equal(t, Default().Datafeed.BaseURL, cfg.Datafeed.BaseURL)
			assert.Equal(t, "30s", cfg.Datafeed.Timeout)
		})
	}
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datafeed:\n  batch_size: 0\n"), 0o644))
	_, err = LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DUKAS_BASE_URL":              "http://127.0.0.1:9999/datafeed",
		"DUKAS_BATCH_SIZE":            "3",
		"DUKAS_RETRY_COUNT":           "5",
		"DUKAS_PAUSE_BETWEEN_BATCHES": "0s",
		"DUKAS_CACHE_PATH":            "hours.sqlite",
		"DUKAS_LOG_LEVEL":             "debug",
		"DUKAS_EMPTY_HOUR_SETTLE":     "6h",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "http://127.0.0.1:9999/datafeed", cfg.Datafeed.BaseURL)
	assert.Equal(t, 3, cfg.Datafeed.BatchSize)
	assert.Equal(t, 5, cfg.Datafeed.RetryCount)
	assert.Equal(t, "0s", cfg.Datafeed.PauseBetweenBatches)
	assert.Equal(t, "500ms", cfg.Datafeed.PauseBetweenRetries)
	assert.Equal(t, "hours.sqlite", cfg.Cache.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "6h", cfg.Datafeed.EmptyHourSettle)
	assert.NoError(t, cfg.Validate())

	env["DUKAS_BATCH_SIZE"] = "many"
	err := Default().ApplyEnv(lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DUKAS_BATCH_SIZE")
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DUKAS_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("DUKAS_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("DUKAS_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("DUKAS_TEST_DOTENV"))
}
