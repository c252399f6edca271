package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/twquote/internal/model"
)

// Config is the root configuration for a twquote run.
type Config struct {
	Symbols   []string          `yaml:"symbols"`
	Interval  time.Duration     `yaml:"interval"`
	Rounds    int               `yaml:"rounds"` // 0 runs until interrupted; absent means 1
	OutputDir string            `yaml:"output_dir"`
	Markets   map[string]string `yaml:"markets"` // code -> tse|otc, pins the board
	Workbook  *bool             `yaml:"workbook"`
	SelfTest  bool              `yaml:"self_test"`
	Live      bool              `yaml:"-"` // Self-test against the live endpoint
	Debug     bool              `yaml:"debug"`

	Daily   DailyConfig   `yaml:"daily"`
	API     APIConfig     `yaml:"api"`
	Retry   RetryConfig   `yaml:"retry"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DailyConfig enables the one-time daily bar fetch.
type DailyConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Start    string `yaml:"start"` // YYYY-MM-DD
	End      string `yaml:"end"`   // YYYY-MM-DD, defaults to today
	Provider string `yaml:"provider"`
}

// APIConfig holds upstream endpoint settings.
type APIConfig struct {
	QuoteURL           string        `yaml:"quote_url"`
	TWSEURL            string        `yaml:"twse_url"`
	TPExURL            string        `yaml:"tpex_url"`
	Timeout            time.Duration `yaml:"timeout"`
	MinInterval        time.Duration `yaml:"min_interval"`
	HistoryMinInterval time.Duration `yaml:"history_min_interval"`
}

// RetryConfig holds the per-symbol retry policy.
type RetryConfig struct {
	MaxRetries       int           `yaml:"max_retries"` // 0 uses the default, negative disables retries
	Backoff          time.Duration `yaml:"backoff"`
	RateLimitBackoff time.Duration `yaml:"rate_limit_backoff"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"` // 0 disables the endpoint
	Path string `yaml:"path"`
}

// WorkbookEnabled reports whether the xlsx artifact is written.
func (c *Config) WorkbookEnabled() bool {
	return c.Workbook == nil || *c.Workbook
}

// SymbolList parses and deduplicates the configured symbols.
func (c *Config) SymbolList() ([]model.Symbol, error) {
	return model.ParseSymbols(c.Symbols)
}

// MarketOverrides parses the markets map.
func (c *Config) MarketOverrides() (map[string]model.Board, error) {
	out := make(map[string]model.Board, len(c.Markets))
	for code, board := range c.Markets {
		sym, err := model.ParseSymbol(code)
		if err != nil {
			return nil, fmt.Errorf("markets: %w", err)
		}
		b, err := model.ParseBoard(board)
		if err != nil {
			return nil, fmt.Errorf("markets.%s: %w", code, err)
		}
		out[sym.Code] = b
	}
	return out, nil
}

// DailyRange parses the daily start and end dates in Taipei time. An empty
// end means today.
func (c *Config) DailyRange(now time.Time) (start, end time.Time, err error) {
	start, err = parseDate(c.Daily.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("daily.start: %w", err)
	}
	if strings.TrimSpace(c.Daily.End) == "" {
		n := now.In(model.Taipei)
		return start, time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, model.Taipei), nil
	}
	end, err = parseDate(c.Daily.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("daily.end: %w", err)
	}
	return start, end, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	for _, layout := range []string{model.DateLayout, "20060102", "2006/01/02"} {
		if t, err := time.ParseInLocation(layout, s, model.Taipei); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
}
