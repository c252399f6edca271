package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/twquote/internal/api"
	"github.com/rickgao/twquote/internal/config"
	"github.com/rickgao/twquote/internal/history"
	"github.com/rickgao/twquote/internal/model"
	"github.com/rickgao/twquote/internal/poller"
	"github.com/rickgao/twquote/internal/writer"
)

var runStart = time.Date(2025, 9, 19, 9, 0, 0, 0, model.Taipei)

func testConfig(t *testing.T, symbols ...string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Symbols = symbols
	cfg.Interval = poller.MinInterval
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.Retry.Backoff = time.Millisecond
	cfg.Retry.RateLimitBackoff = time.Millisecond
	return cfg
}

// stubSource knows 2330 and 2317; every other code is unknown.
func stubSource(calls *atomic.Int32) poller.QuoteSource {
	return poller.QuoteSourceFunc(func(ctx context.Context, sym model.Symbol) (model.Quote, error) {
		if calls != nil {
			calls.Add(1)
		}
		switch sym.Code {
		case "2330", "2317":
			return model.Quote{
				Symbol:    sym.WithBoard(model.BoardTSE),
				Timestamp: time.Now(),
				Last:      decimal.NewFromInt(100),
				HasLast:   true,
			}, nil
		default:
			return model.Quote{}, api.Permanent(sym.Code, api.ErrUnknownSymbol)
		}
	})
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestRun(t *testing.T) {
	cfg := testConfig(t, "2330", "9999")
	cfg.Rounds = 2
	var out bytes.Buffer

	res, err := Run(context.Background(), Options{
		Config: cfg,
		Source: stubSource(nil),
		Out:    &out,
		Now:    func() time.Time { return runStart },
	})
	require.NoError(t, err)

	assert.Len(t, res.Outcomes, 2)
	assert.Len(t, res.State.Quotes(), 2)
	assert.Equal(t, 2, res.State.Errors.Len())

	require.Len(t, res.Files, 2, "quotes csv and workbook")
	for _, f := range res.Files {
		assert.FileExists(t, f)
	}

	require.Equal(t, filepath.Join(cfg.OutputDir, "error_log_20250919.log"), res.ErrorLog)
	lines := readLines(t, res.ErrorLog)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "| 9999 | fetch | permanent | attempt=1 |")
	assert.Contains(t, lines[2], "| 9999 | fetch | permanent | attempt=1 |")

	assert.Contains(t, out.String(), "Round 1")
	assert.Contains(t, out.String(), "Round 2")
}

func TestRun_NoFailuresWritesNoErrorLog(t *testing.T) {
	cfg := testConfig(t, "2330")

	res, err := Run(context.Background(), Options{Config: cfg, Source: stubSource(nil)})
	require.NoError(t, err)
	assert.Empty(t, res.ErrorLog)

	matches, err := filepath.Glob(filepath.Join(cfg.OutputDir, "error_log_*.log"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRun_ReportsPinnedBoards(t *testing.T) {
	cfg := testConfig(t, "2330", "6488")
	cfg.Markets = map[string]string{"6488": "otc"}

	res, err := Run(context.Background(), Options{Config: cfg, Source: stubSource(nil)})
	require.NoError(t, err)
	assert.Equal(t, []model.Symbol{{Code: "6488", Board: model.BoardOTC}}, res.Boards)
}

func TestRun_CancelledStillFlushes(t *testing.T) {
	cfg := testConfig(t, "2330", "9999")
	cfg.Rounds = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	src := stubSource(&calls)
	cancelling := poller.QuoteSourceFunc(func(fctx context.Context, sym model.Symbol) (model.Quote, error) {
		q, err := src.FetchQuote(fctx, sym)
		if calls.Load() == 3 { // first symbol of round 2
			cancel()
		}
		return q, err
	})

	res, err := Run(ctx, Options{Config: cfg, Source: cancelling})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, 1, res.Outcomes[1].Successes)
	assert.Equal(t, 1, res.Outcomes[1].Skipped)
	assert.Len(t, res.State.Quotes(), 2)

	// One failure from round 1; the skipped symbol is not a failure.
	assert.Zero(t, res.State.Errors.Pending())
	lines := readLines(t, res.ErrorLog)
	assert.Len(t, lines, 2)

	require.NotEmpty(t, res.Files)
	data, err := os.ReadFile(res.Files[0])
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"), "header plus two quote rows")
}

type stubHistory struct {
	calls atomic.Int32
}

func (s *stubHistory) FetchDaily(ctx context.Context, sym model.Symbol, start, end time.Time) ([]model.DailyBar, error) {
	s.calls.Add(1)
	if err := history.ValidateRange(start, end); err != nil {
		return nil, err
	}
	if sym.Code == "9999" {
		return nil, api.Permanent(sym.Code, errors.New("no data"))
	}
	return []model.DailyBar{
		{Symbol: sym, Date: start, Close: decimal.NewFromInt(99)},
		{Symbol: sym, Date: end, Close: decimal.NewFromInt(100)},
	}, nil
}

func TestRun_DailyMode(t *testing.T) {
	cfg := testConfig(t, "2330", "9999")
	cfg.Daily = config.DailyConfig{Enabled: true, Start: "2025-09-01", End: "2025-09-19", Provider: "exchange"}
	hist := &stubHistory{}

	res, err := Run(context.Background(), Options{Config: cfg, Source: stubSource(nil), History: hist})
	require.NoError(t, err)

	assert.Equal(t, int32(2), hist.calls.Load(), "daily bars are fetched once per symbol per run")
	assert.Len(t, res.State.Bars(), 2)
	require.Len(t, res.Files, 3, "quotes csv, daily csv and workbook")
	assert.Contains(t, filepath.Base(res.Files[1]), "daily_")

	// One quote failure and one daily failure for 9999.
	assert.Equal(t, 2, res.State.Errors.Len())
}

func TestRun_InvalidDailyRangeIsFatal(t *testing.T) {
	cfg := testConfig(t, "2330")
	cfg.Daily = config.DailyConfig{Enabled: true, Start: "2025-09-19", End: "2025-09-01", Provider: "exchange"}

	res, err := Run(context.Background(), Options{Config: cfg, Source: stubSource(nil), History: &stubHistory{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, history.ErrInvalidRange)
	assert.Empty(t, res.Outcomes)
	assert.NotEmpty(t, res.Files, "artifacts are still flushed")
}

func TestRun_WriteErrorPropagates(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	cfg := testConfig(t, "2330")
	cfg.OutputDir = filepath.Join(blocker, "out")

	res, err := Run(context.Background(), Options{Config: cfg, Source: stubSource(nil)})
	require.Error(t, err)
	assert.ErrorIs(t, err, writer.ErrWrite)
	assert.Empty(t, res.Files)
	assert.Len(t, res.Outcomes, 1)
}

func TestRun_InvalidSymbols(t *testing.T) {
	cfg := testConfig(t, "AAPL")
	_, err := Run(context.Background(), Options{Config: cfg, Source: stubSource(nil)})
	assert.ErrorIs(t, err, model.ErrInvalidSymbol)
}

func TestSelfTest(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, SelfTest(context.Background(), cfg, false, nil))
}
