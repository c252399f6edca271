package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/twquote/internal/history"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("symbols is required")
	}
	if _, err := c.SymbolList(); err != nil {
		return fmt.Errorf("symbols: %w", err)
	}
	if _, err := c.MarketOverrides(); err != nil {
		return err
	}

	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.Rounds < 0 {
		return fmt.Errorf("rounds must be >= 0, got %d", c.Rounds)
	}
	if c.OutputDir == "" {
		return errors.New("output_dir is required")
	}

	if c.API.QuoteURL == "" {
		return errors.New("api.quote_url is required")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.API.MinInterval < 0 {
		return errors.New("api.min_interval must be >= 0")
	}

	if c.Retry.Backoff < 0 || c.Retry.RateLimitBackoff < 0 {
		return errors.New("retry backoff must be >= 0")
	}

	if c.Daily.Enabled {
		if err := c.validateDaily(); err != nil {
			return err
		}
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (c *Config) validateDaily() error {
	switch c.Daily.Provider {
	case history.ProviderExchange, history.ProviderYahoo:
	default:
		return fmt.Errorf("daily.provider must be %q or %q, got %q",
			history.ProviderExchange, history.ProviderYahoo, c.Daily.Provider)
	}
	if c.Daily.Start == "" {
		return errors.New("daily.start is required")
	}
	start, end, err := c.DailyRange(time.Now())
	if err != nil {
		return err
	}
	if err := history.ValidateRange(start, end); err != nil {
		return fmt.Errorf("daily: %w", err)
	}
	return nil
}
