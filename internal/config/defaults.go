package config

import (
	"time"

	"github.com/rickgao/twquote/internal/api"
	"github.com/rickgao/twquote/internal/history"
	"github.com/rickgao/twquote/internal/poller"
)

// Default values for optional configuration fields.
const (
	DefaultInterval           = 5 * time.Second
	DefaultRounds             = 1
	DefaultOutputDir          = "output"
	DefaultQuoteURL           = api.DefaultBaseURL
	DefaultTWSEURL            = history.DefaultTWSEURL
	DefaultTPExURL            = history.DefaultTPExURL
	DefaultAPITimeout         = api.DefaultTimeout
	DefaultMinInterval        = api.DefaultMinInterval
	DefaultHistoryMinInterval = history.DefaultMinInterval
	DefaultHistoryProvider    = history.ProviderExchange
	DefaultMaxRetries         = 2
	DefaultBackoff            = 500 * time.Millisecond
	DefaultRateLimitBackoff   = 2 * time.Second
	DefaultMetricsPath        = "/metrics"
)

// Default returns a configuration with every default applied and no
// symbols.
func Default() *Config {
	cfg := &Config{Rounds: DefaultRounds}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}

	// API defaults
	if c.API.QuoteURL == "" {
		c.API.QuoteURL = DefaultQuoteURL
	}
	if c.API.TWSEURL == "" {
		c.API.TWSEURL = DefaultTWSEURL
	}
	if c.API.TPExURL == "" {
		c.API.TPExURL = DefaultTPExURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MinInterval == 0 {
		c.API.MinInterval = DefaultMinInterval
	}
	if c.API.HistoryMinInterval == 0 {
		c.API.HistoryMinInterval = DefaultHistoryMinInterval
	}

	// Daily defaults
	if c.Daily.Provider == "" {
		c.Daily.Provider = DefaultHistoryProvider
	}

	// Retry defaults
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = DefaultMaxRetries
	}
	if c.Retry.Backoff == 0 {
		c.Retry.Backoff = DefaultBackoff
	}
	if c.Retry.RateLimitBackoff == 0 {
		c.Retry.RateLimitBackoff = DefaultRateLimitBackoff
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// PollerConfig returns the poller settings.
func (c *Config) PollerConfig() poller.Config {
	return poller.Config{
		Interval: c.Interval,
		Rounds:   c.Rounds,
	}
}

// RetryPolicy returns the cycle retry settings.
func (c *Config) RetryPolicy() poller.RetryConfig {
	return poller.RetryConfig{
		MaxRetries:       c.Retry.MaxRetries,
		Backoff:          c.Retry.Backoff,
		RateLimitBackoff: c.Retry.RateLimitBackoff,
	}
}

// HistoryConfig returns the daily bar source settings.
func (c *Config) HistoryConfig() history.Config {
	return history.Config{
		Provider:    c.Daily.Provider,
		TWSEURL:     c.API.TWSEURL,
		TPExURL:     c.API.TPExURL,
		Timeout:     c.API.Timeout,
		MinInterval: c.API.HistoryMinInterval,
	}
}
