package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/twquote/internal/api"
	"github.com/rickgao/twquote/internal/history"
	"github.com/rickgao/twquote/internal/model"
	"github.com/rickgao/twquote/internal/run"
)

// QuoteSource fetches one real-time quote per call.
type QuoteSource interface {
	FetchQuote(ctx context.Context, sym model.Symbol) (model.Quote, error)
}

// QuoteSourceFunc is a function adapter for QuoteSource.
type QuoteSourceFunc func(context.Context, model.Symbol) (model.Quote, error)

func (f QuoteSourceFunc) FetchQuote(ctx context.Context, sym model.Symbol) (model.Quote, error) {
	return f(ctx, sym)
}

// RetryConfig controls per-symbol retries.
type RetryConfig struct {
	MaxRetries       int           // Retries after the first attempt (default: 2)
	Backoff          time.Duration // Wait before retrying a transient error (default: 500ms)
	RateLimitBackoff time.Duration // Wait before retrying a rate-limited error (default: 2s)
}

// DefaultRetryConfig returns the default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:       2,
		Backoff:          500 * time.Millisecond,
		RateLimitBackoff: 2 * time.Second,
	}
}

// DailyRange requests daily bars for [Start, End] once per run.
type DailyRange struct {
	Source history.Source
	Start  time.Time
	End    time.Time
}

// Hooks observe the loop. Nil fields are ignored.
type Hooks struct {
	// Attempt is called after every fetch attempt; err is nil on success.
	Attempt func(sym model.Symbol, attempt int, err error)
	// Round is called with each round's outcome.
	Round func(Outcome)
}

// Outcome summarizes one round.
type Outcome struct {
	Round     int
	Successes int
	Failures  int
	Skipped   int // Symbols not attempted because the context was cancelled
	Started   time.Time
	Finished  time.Time
}

// Duration returns how long the round took.
func (o Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}

// Cycle fetches every symbol once per Run and records results in a run.State.
type Cycle struct {
	retry   RetryConfig
	source  QuoteSource
	state   *run.State
	daily   *DailyRange
	hooks   Hooks
	logger  *slog.Logger
	now     func() time.Time
	sleepFn func(ctx context.Context, d time.Duration) bool
}

// NewCycle creates a Cycle over state.Symbols. daily may be nil.
func NewCycle(retry RetryConfig, source QuoteSource, state *run.State, daily *DailyRange, hooks Hooks, logger *slog.Logger) *Cycle {
	if logger == nil {
		logger = slog.Default()
	}
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	return &Cycle{
		retry:   retry,
		source:  source,
		state:   state,
		daily:   daily,
		hooks:   hooks,
		logger:  logger,
		now:     time.Now,
		sleepFn: sleep,
	}
}

// Run executes one round. It never fails: every symbol ends in a quote or a
// failure record. Cancellation is checked between symbols; a symbol whose
// fetch has started is always given a disposition.
func (c *Cycle) Run(ctx context.Context, round int) Outcome {
	out := Outcome{Round: round, Started: c.now()}

	for i, sym := range c.state.Symbols {
		if ctx.Err() != nil {
			out.Skipped = len(c.state.Symbols) - i
			c.logger.Info("round interrupted",
				"round", round,
				"skipped", out.Skipped,
			)
			break
		}

		var q model.Quote
		attempts, err := c.withRetry(ctx, sym, func(fctx context.Context) error {
			var ferr error
			q, ferr = c.source.FetchQuote(fctx, sym)
			return ferr
		})
		if err != nil {
			c.state.RecordFailure(model.FailureRecord{
				Timestamp: c.now(),
				Symbol:    sym.Code,
				Stage:     model.StageFetch,
				Kind:      api.KindName(err),
				Message:   err.Error(),
				Attempt:   attempts,
			})
			c.logger.Warn("failed to fetch quote",
				"symbol", sym.String(),
				"attempts", attempts,
				"err", err,
			)
			out.Failures++
			continue
		}

		c.state.AddQuote(q)
		out.Successes++
	}

	out.Finished = c.now()
	return out
}

// FetchDaily loads daily bars for every symbol into the run state. Fetch
// failures become failure records; only an invalid range is returned.
func (c *Cycle) FetchDaily(ctx context.Context) error {
	if c.daily == nil || c.daily.Source == nil {
		return nil
	}
	if err := history.ValidateRange(c.daily.Start, c.daily.End); err != nil {
		return err
	}

	for _, sym := range c.state.Symbols {
		if ctx.Err() != nil {
			return nil
		}

		var bars []model.DailyBar
		attempts, err := c.withRetry(ctx, sym, func(fctx context.Context) error {
			var ferr error
			bars, ferr = c.daily.Source.FetchDaily(fctx, sym, c.daily.Start, c.daily.End)
			return ferr
		})
		if errors.Is(err, history.ErrInvalidRange) {
			return err
		}
		if err != nil {
			stage := model.StageFetch
			if errors.Is(err, api.ErrMalformed) {
				stage = model.StageParse
			}
			c.state.RecordFailure(model.FailureRecord{
				Timestamp: c.now(),
				Symbol:    sym.Code,
				Stage:     stage,
				Kind:      api.KindName(err),
				Message:   err.Error(),
				Attempt:   attempts,
			})
			c.logger.Warn("failed to fetch daily bars",
				"symbol", sym.String(),
				"err", err,
			)
			continue
		}

		added, replaced := c.state.MergeBars(bars)
		c.logger.Info("daily bars merged",
			"symbol", sym.String(),
			"added", added,
			"replaced", replaced,
		)
	}
	return nil
}

// withRetry calls fn up to 1+MaxRetries times. Requests run on a context
// detached from cancellation so an attempt in flight completes; a
// cancellation during backoff ends the sequence with the last error.
func (c *Cycle) withRetry(ctx context.Context, sym model.Symbol, fn func(context.Context) error) (int, error) {
	fctx := context.WithoutCancel(ctx)
	maxAttempts := 1 + c.retry.MaxRetries

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(fctx)
		if c.hooks.Attempt != nil {
			c.hooks.Attempt(sym, attempt, err)
		}
		if err == nil {
			return attempt, nil
		}
		if !retryable(err) || attempt >= maxAttempts {
			return attempt, err
		}

		wait := c.retry.Backoff
		if errors.Is(err, api.ErrRateLimited) {
			wait = c.retry.RateLimitBackoff
		}
		c.logger.Debug("retrying fetch",
			"symbol", sym.String(),
			"attempt", attempt,
			"wait", wait,
			"err", err,
		)
		if !c.sleepFn(ctx, wait) {
			return attempt, err
		}
	}
}

func retryable(err error) bool {
	return errors.Is(err, api.ErrTransient) || errors.Is(err, api.ErrRateLimited)
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
