// Package app wires the acquisition pipeline together for one invocation.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rickgao/twquote/internal/api"
	"github.com/rickgao/twquote/internal/config"
	"github.com/rickgao/twquote/internal/display"
	"github.com/rickgao/twquote/internal/errlog"
	"github.com/rickgao/twquote/internal/history"
	"github.com/rickgao/twquote/internal/market"
	"github.com/rickgao/twquote/internal/metrics"
	"github.com/rickgao/twquote/internal/model"
	"github.com/rickgao/twquote/internal/poller"
	"github.com/rickgao/twquote/internal/run"
	"github.com/rickgao/twquote/internal/writer"
)

// Options configures Run.
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	// Out receives a snapshot table after each round. Nil disables it.
	Out io.Writer

	// Source and History replace the network sources when set.
	Source  poller.QuoteSource
	History history.Source

	// Now returns the run start time. Defaults to time.Now.
	Now func() time.Time
}

// Result describes a finished run.
type Result struct {
	State    *run.State
	Outcomes []poller.Outcome
	Files    []string // Artifacts written
	ErrorLog string   // Error log path, empty when there was nothing to log

	// Boards lists every code whose board was pinned or learned this run.
	Boards []model.Symbol
}

// Run polls until the configured rounds complete or ctx is cancelled, then
// writes the artifacts and the error log. The flush runs even when polling
// fails or panics.
func Run(ctx context.Context, opts Options) (res *Result, err error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	symbols, err := cfg.SymbolList()
	if err != nil {
		return nil, fmt.Errorf("parse symbols: %w", err)
	}
	overrides, err := cfg.MarketOverrides()
	if err != nil {
		return nil, err
	}
	registry := market.NewRegistry(overrides, logger)

	source := opts.Source
	if source == nil {
		source = api.NewClient(cfg.API.QuoteURL,
			api.WithTimeout(cfg.API.Timeout),
			api.WithMinInterval(cfg.API.MinInterval),
			api.WithLogger(logger),
			api.WithRegistry(registry),
		)
	}

	var daily *poller.DailyRange
	if cfg.Daily.Enabled {
		start, end, err := cfg.DailyRange(now())
		if err != nil {
			return nil, err
		}
		src := opts.History
		if src == nil {
			if src, err = history.New(cfg.HistoryConfig(), registry, logger); err != nil {
				return nil, err
			}
		}
		daily = &poller.DailyRange{Source: src, Start: start, End: end}
	}

	collector := metrics.NewCollector()
	if cfg.Metrics.Port > 0 {
		mctx, stop := context.WithCancel(context.WithoutCancel(ctx))
		defer stop()
		go func() {
			if err := collector.Serve(mctx, cfg.Metrics.Port, cfg.Metrics.Path, logger); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	state := run.New(symbols, now(), logger)
	res = &Result{State: state}

	var printer *display.Printer
	if opts.Out != nil {
		printer = display.NewPrinter(opts.Out, state)
	}
	hooks := poller.Hooks{
		Attempt: collector.ObserveAttempt,
		Round: func(o poller.Outcome) {
			collector.ObserveRound(o)
			if printer != nil {
				printer.PrintRound(o)
			}
		},
	}

	cycle := poller.NewCycle(cfg.RetryPolicy(), source, state, daily, hooks, logger)
	p := poller.New(cfg.PollerConfig(), cycle, logger)

	logger.Info("run started",
		"run_id", state.ID,
		"symbols", len(symbols),
		"rounds", cfg.Rounds,
		"interval", p.Interval(),
		"daily", cfg.Daily.Enabled,
	)

	defer func() {
		w := writer.New(writer.WriterConfig{Dir: cfg.OutputDir, Workbook: cfg.WorkbookEnabled()}, logger)
		files, writeErr := w.Flush(state)
		collector.ObserveFlush(w.Stats())
		res.Files = files

		logPath, logErr := flushErrorLog(state, cfg.OutputDir)
		res.ErrorLog = logPath

		err = errors.Join(err, writeErr, logErr)

		res.Boards = registry.Known()
		boards := make([]string, len(res.Boards))
		for i, s := range res.Boards {
			boards[i] = s.String()
		}
		logger.Info("run finished",
			"run_id", state.ID,
			"rounds", len(res.Outcomes),
			"quotes", len(state.Quotes()),
			"bars", len(state.Bars()),
			"failures", state.Errors.Len(),
			"files", len(files),
			"boards", boards,
		)
	}()

	res.Outcomes, err = p.Run(ctx)
	return res, err
}

// flushErrorLog writes pending failure records to the day's log file in dir.
func flushErrorLog(state *run.State, dir string) (string, error) {
	if state.Errors.Pending() == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, errlog.FileName(state.Started))
	if err := state.Errors.FlushToFile(path); err != nil {
		return "", err
	}
	return path, nil
}
