package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"github.com/rickgao/twquote/internal/api"
	"github.com/rickgao/twquote/internal/market"
	"github.com/rickgao/twquote/internal/model"
)

// barIter is the subset of *chart.Iter used by YahooSource.
type barIter interface {
	Next() bool
	Bar() *finance.ChartBar
	Err() error
}

type chartFunc func(*chart.Params) barIter

// YahooSource fetches daily bars from Yahoo Finance.
type YahooSource struct {
	chart    chartFunc
	registry market.Registry
	logger   *slog.Logger
}

// NewYahooSource creates a YahooSource. registry may be nil.
func NewYahooSource(registry market.Registry, logger *slog.Logger) *YahooSource {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = market.NewRegistry(nil, logger)
	}
	return &YahooSource{
		chart:    func(p *chart.Params) barIter { return chart.Get(p) },
		registry: registry,
		logger:   logger,
	}
}

// yahooTicker returns the Yahoo ticker for a code on a board.
func yahooTicker(code string, b model.Board) string {
	if b == model.BoardOTC {
		return code + ".TWO"
	}
	return code + ".TW"
}

// FetchDaily implements Source. An unknown board tries ".TW" then ".TWO".
func (s *YahooSource) FetchDaily(ctx context.Context, sym model.Symbol, start, end time.Time) ([]model.DailyBar, error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}

	sym = s.registry.Resolve(sym)
	boards := []model.Board{sym.Board}
	if sym.Board == model.BoardUnknown {
		boards = []model.Board{model.BoardTSE, model.BoardOTC}
	}

	var lastErr error
	found := false
	for _, b := range boards {
		bars, err := s.fetch(ctx, sym.WithBoard(b), start, end)
		if err != nil {
			var fe *api.FetchError
			if errors.As(err, &fe) && fe.IsRetryable() {
				return nil, err
			}
			lastErr = err
			continue
		}
		found = true
		if len(bars) > 0 {
			s.registry.Learn(sym.Code, b)
			return Normalize(bars, start, end), nil
		}
	}

	if !found {
		if len(boards) == 1 {
			return nil, lastErr
		}
		return nil, api.Permanent(sym.Code, api.ErrUnknownSymbol)
	}
	return []model.DailyBar{}, nil
}

func (s *YahooSource) fetch(ctx context.Context, sym model.Symbol, start, end time.Time) ([]model.DailyBar, error) {
	ticker := yahooTicker(sym.Code, sym.Board)
	from := Day(start)
	// The chart endpoint treats period2 as exclusive.
	to := Day(end).AddDate(0, 0, 1)

	params := &chart.Params{
		Symbol:   ticker,
		Start:    datetime.New(&from),
		End:      datetime.New(&to),
		Interval: datetime.OneDay,
	}
	params.Context = &ctx

	iter := s.chart(params)
	var bars []model.DailyBar
	for iter.Next() {
		bar := iter.Bar()
		if bar == nil || bar.Close.IsZero() {
			continue
		}
		bars = append(bars, model.DailyBar{
			Symbol: sym,
			Date:   Day(time.Unix(int64(bar.Timestamp), 0)),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: int64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, classifyYahoo(sym.Code, ticker, err)
	}

	s.logger.Debug("fetched yahoo chart", "ticker", ticker, "bars", len(bars))
	return bars, nil
}

// classifyYahoo maps finance-go errors onto fetch error classes.
func classifyYahoo(code, ticker string, err error) error {
	msg := strings.ToLower(err.Error())
	wrapped := fmt.Errorf("chart %s: %w", ticker, err)
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many"):
		return api.RateLimited(code, wrapped)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "no data") ||
		strings.Contains(msg, "delisted") || strings.Contains(msg, "404"):
		return api.Permanent(code, wrapped)
	default:
		return api.Transient(code, wrapped)
	}
}
