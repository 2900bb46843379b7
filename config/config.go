package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the complete fetcher configuration
type Config struct {
	Datafeed DatafeedConfig `json:"datafeed" yaml:"datafeed"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// DatafeedConfig controls how hour files are requested
type DatafeedConfig struct {
	BaseURL             string `json:"base_url" yaml:"base_url"`
	BatchSize           int    `json:"batch_size" yaml:"batch_size"`
	PauseBetweenBatches string `json:"pause_between_batches" yaml:"pause_between_batches"` // e.g. "1s", "250ms"
	RetryCount          int    `json:"retry_count" yaml:"retry_count"`
	PauseBetweenRetries string `json:"pause_between_retries" yaml:"pause_between_retries"`
	Timeout             string `json:"timeout" yaml:"timeout"`
	EmptyHourSettle     string `json:"empty_hour_settle" yaml:"empty_hour_settle"` // wait before caching an hour without ticks
}

// CacheConfig points at the SQLite hour cache. An empty path disables it.
type CacheConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Timing holds the parsed durations of a DatafeedConfig
type Timing struct {
	PauseBetweenBatches time.Duration
	PauseBetweenRetries time.Duration
	Timeout             time.Duration
	EmptyHourSettle     time.Duration
}

// Timing parses the duration strings
func (d DatafeedConfig) Timing() (Timing, error) {
	var (
		t   Timing
		err error
	)
	if t.PauseBetweenBatches, err = parseDuration("datafeed.pause_between_batches", d.PauseBetweenBatches); err != nil {
		return Timing{}, err
	}
	if t.PauseBetweenRetries, err = parseDuration("datafeed.pause_between_retries", d.PauseBetweenRetries); err != nil {
		return Timing{}, err
	}
	if t.Timeout, err = parseDuration("datafeed.timeout", d.Timeout); err != nil {
		return Timing{}, err
	}
	if t.EmptyHourSettle, err = parseDuration("datafeed.empty_hour_settle", d.EmptyHourSettle); err != nil {
		return Timing{}, err
	}
	return t, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}

// Default returns the datafeed defaults: batches of 10 hours, one second
// apart, no retries.
func Default() *Config {
	return &Config{
		Datafeed: DatafeedConfig{
			BaseURL:             "https://datafeed.dukascopy.com/datafeed",
			BatchSize:           10,
			PauseBetweenBatches: "1s",
			RetryCount:          0,
			PauseBetweenRetries: "500ms",
			Timeout:             "30s",
			EmptyHourSettle:     "24h",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// LoadFromFile loads configuration from a file (YAML or JSON) on top of
// the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from DUKAS_* variables found through lookup
// (normally os.LookupEnv).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("DUKAS_BASE_URL", &c.Datafeed.BaseURL)
	str("DUKAS_PAUSE_BETWEEN_BATCHES", &c.Datafeed.PauseBetweenBatches)
	str("DUKAS_PAUSE_BETWEEN_RETRIES", &c.Datafeed.PauseBetweenRetries)
	str("DUKAS_TIMEOUT", &c.Datafeed.Timeout)
	str("DUKAS_EMPTY_HOUR_SETTLE", &c.Datafeed.EmptyHourSettle)
	str("DUKAS_CACHE_PATH", &c.Cache.Path)
	str("DUKAS_LOG_LEVEL", &c.Log.Level)
	if err := num("DUKAS_BATCH_SIZE", &c.Datafeed.BatchSize); err != nil {
		return err
	}
	if err := num("DUKAS_RETRY_COUNT", &c.Datafeed.RetryCount); err != nil {
		return err
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.Datafeed.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("datafeed.base_url must be an http(s) URL")
	}
	if c.Datafeed.BatchSize < 1 {
		return fmt.Errorf("datafeed.batch_size must be at least 1")
	}
	if c.Datafeed.RetryCount < 0 {
		return fmt.Errorf("datafeed.retry_count must not be negative")
	}
	t, err := c.Datafeed.Timing()
	if err != nil {
		return err
	}
	if t.Timeout == 0 {
		return fmt.Errorf("datafeed.timeout is required")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
