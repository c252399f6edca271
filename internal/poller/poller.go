package poller

import (
	"context"
	"log/slog"
	"time"
)

// MinInterval is the smallest interval between round starts.
const MinInterval = 200 * time.Millisecond

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Target gap between round starts (default: 5s)
	Rounds   int           // Rounds to run; <= 0 runs until cancelled
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		Rounds:   1,
	}
}

// Poller runs a Cycle repeatedly.
type Poller struct {
	cfg    Config
	cycle  *Cycle
	logger *slog.Logger
}

// New creates a new Poller. Intervals below MinInterval are raised to it.
func New(cfg Config, cycle *Cycle, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval < MinInterval {
		cfg.Interval = MinInterval
	}
	return &Poller{
		cfg:    cfg,
		cycle:  cycle,
		logger: logger,
	}
}

// Interval returns the effective interval after clamping.
func (p *Poller) Interval() time.Duration {
	return p.cfg.Interval
}

// Run loads daily bars if configured, then runs rounds until the round
// count is reached or ctx is cancelled. Rounds never overlap: after a round
// the poller waits for the rest of the interval, or starts the next round
// at once if the round overran it. Cancellation is not an error; the only
// error returned is an invalid daily range.
func (p *Poller) Run(ctx context.Context) ([]Outcome, error) {
	if err := p.cycle.FetchDaily(ctx); err != nil {
		return nil, err
	}

	p.logger.Info("poller started",
		"interval", p.cfg.Interval,
		"rounds", p.cfg.Rounds,
		"symbols", len(p.cycle.state.Symbols),
	)

	var outcomes []Outcome
	for round := 1; p.cfg.Rounds <= 0 || round <= p.cfg.Rounds; round++ {
		if ctx.Err() != nil {
			break
		}

		o := p.cycle.Run(ctx, round)
		outcomes = append(outcomes, o)

		p.logger.Info("poll cycle complete",
			"round", round,
			"fetched", o.Successes,
			"errors", o.Failures,
			"duration", o.Duration(),
		)
		if p.cycle.hooks.Round != nil {
			p.cycle.hooks.Round(o)
		}

		if p.cfg.Rounds > 0 && round >= p.cfg.Rounds {
			break
		}
		if wait := p.cfg.Interval - o.Duration(); wait > 0 {
			if !sleep(ctx, wait) {
				break
			}
		}
	}

	p.logger.Info("poller stopped",
		"rounds", len(outcomes),
		"cancelled", ctx.Err() != nil,
	)
	return outcomes, nil
}
