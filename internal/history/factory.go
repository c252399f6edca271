package history

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/twquote/internal/market"
)

// Config selects and configures a Source.
type Config struct {
	Provider    string
	TWSEURL     string
	TPExURL     string
	Timeout     time.Duration
	MinInterval time.Duration
}

// New returns the Source for cfg.Provider. An empty provider selects the
// exchange reports.
func New(cfg Config, registry market.Registry, logger *slog.Logger) (Source, error) {
	switch cfg.Provider {
	case "", ProviderExchange:
		return NewExchangeSource(ExchangeConfig{
			TWSEURL:     cfg.TWSEURL,
			TPExURL:     cfg.TPExURL,
			Timeout:     cfg.Timeout,
			MinInterval: cfg.MinInterval,
		}, registry, logger), nil
	case ProviderYahoo:
		return NewYahooSource(registry, logger), nil
	default:
		return nil, fmt.Errorf("unknown history provider %q", cfg.Provider)
	}
}
