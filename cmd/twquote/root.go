package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rickgao/twquote/internal/app"
	"github.com/rickgao/twquote/internal/config"
	"github.com/rickgao/twquote/internal/version"
)

// flags holds command line values. Only flags the user set override the
// config file.
type flags struct {
	configPath      string
	envFile         string
	interval        time.Duration
	rounds          int
	outdir          string
	daily           bool
	start           string
	end             string
	historyProvider string
	selftest        bool
	live            bool
	metricsPort     int
	noWorkbook      bool
	debug           bool
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "twquote [SYMBOL...]",
		Short: "Poll Taiwan equity quotes into CSV and xlsx files",
		Long: `twquote polls the TWSE MIS real-time quote endpoint for TWSE and TPEx
symbols at a fixed interval, optionally loads daily bars for a date range,
and writes the results to CSV and xlsx files plus a daily error log.

Symbols may carry a board: 2330, tse:2330, otc:3008, 3008.TWO.`,
		Example: `  twquote 2330 2317 --interval 5s --rounds 10
  twquote 2330 --daily --start 2025-09-01 --end 2025-09-19
  twquote --config twquote.yaml
  twquote --selftest`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, f, args)
		},
	}

	bindFlags(cmd.Flags(), &f)
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func bindFlags(fs *pflag.FlagSet, f *flags) {
	fs.StringVarP(&f.configPath, "config", "c", "", "path to YAML config file")
	fs.StringVar(&f.envFile, "env-file", ".env", "path to .env file loaded before the config")
	fs.DurationVarP(&f.interval, "interval", "i", config.DefaultInterval, "interval between round starts")
	fs.IntVarP(&f.rounds, "rounds", "n", config.DefaultRounds, "number of rounds, 0 runs until interrupted")
	fs.StringVarP(&f.outdir, "outdir", "o", config.DefaultOutputDir, "output directory")
	fs.BoolVar(&f.daily, "daily", false, "also fetch daily bars for --start..--end")
	fs.StringVar(&f.start, "start", "", "daily range start (YYYY-MM-DD)")
	fs.StringVar(&f.end, "end", "", "daily range end (YYYY-MM-DD), defaults to today")
	fs.StringVar(&f.historyProvider, "history-provider", config.DefaultHistoryProvider, "daily bar provider: exchange or yahoo")
	fs.BoolVar(&f.selftest, "selftest", false, "run one round against a recorded payload and exit")
	fs.BoolVar(&f.live, "live", false, "with --selftest, use the live endpoint and configured symbols")
	fs.IntVar(&f.metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")
	fs.BoolVar(&f.noWorkbook, "no-xlsx", false, "skip the xlsx workbook")
	fs.BoolVar(&f.debug, "debug", false, "enable debug logging")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "twquote", version.String())
		},
	}
}

func runRoot(cmd *cobra.Command, f flags, args []string) error {
	if err := config.LoadDotEnv(f.envFile); err != nil {
		return err
	}

	cfg, err := config.LoadWithDefaults(f.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, f, args, cfg)

	logger := newLogger(cfg.Debug)
	slog.SetDefault(logger)

	logger.Info("starting twquote",
		"version", version.Version,
		"commit", version.Commit,
		"config", f.configPath,
	)

	if cfg.SelfTest {
		if err := app.SelfTest(cmd.Context(), cfg, f.live, logger); err != nil {
			logger.Error("self-test failed", "error", err)
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "self-test passed")
		return nil
	}

	if err := cfg.Validate(); err != nil {
		err = fmt.Errorf("validate config: %w", err)
		logger.Error("invalid configuration", "error", err)
		return err
	}

	res, err := app.Run(cmd.Context(), app.Options{
		Config: cfg,
		Logger: logger,
		Out:    cmd.OutOrStdout(),
	})
	if res != nil {
		for _, path := range res.Files {
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
		}
		if res.ErrorLog != "" {
			fmt.Fprintln(cmd.OutOrStdout(), "errors logged to", res.ErrorLog)
		}
	}
	if err != nil {
		logger.Error("run failed", "error", err)
		return err
	}
	if cmd.Context().Err() != nil {
		logger.Info("interrupted, output flushed")
	}
	return nil
}

// applyFlags copies explicitly set flags and positional symbols onto cfg.
func applyFlags(cmd *cobra.Command, f flags, args []string, cfg *config.Config) {
	fs := cmd.Flags()
	if len(args) > 0 {
		cfg.Symbols = args
	}
	if fs.Changed("interval") {
		cfg.Interval = f.interval
	}
	if fs.Changed("rounds") {
		cfg.Rounds = f.rounds
	}
	if fs.Changed("outdir") {
		cfg.OutputDir = f.outdir
	}
	if fs.Changed("start") {
		cfg.Daily.Start = f.start
		cfg.Daily.Enabled = true
	}
	if fs.Changed("daily") {
		cfg.Daily.Enabled = f.daily
	}
	if fs.Changed("end") {
		cfg.Daily.End = f.end
	}
	if fs.Changed("history-provider") {
		cfg.Daily.Provider = f.historyProvider
	}
	if fs.Changed("metrics-port") {
		cfg.Metrics.Port = f.metricsPort
	}
	if fs.Changed("no-xlsx") {
		enabled := !f.noWorkbook
		cfg.Workbook = &enabled
	}
	if fs.Changed("debug") {
		cfg.Debug = f.debug
	}
	if fs.Changed("selftest") {
		cfg.SelfTest = f.selftest
	}
	cfg.Live = f.live
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
