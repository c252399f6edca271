package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rickgao/twquote/internal/model"
)

// ErrInvalidRange is returned when start is after end. No request is made.
var ErrInvalidRange = errors.New("invalid date range")

// Source fetches daily bars for a symbol over an inclusive date range.
type Source interface {
	FetchDaily(ctx context.Context, sym model.Symbol, start, end time.Time) ([]model.DailyBar, error)
}

// Provider names accepted by New.
const (
	ProviderExchange = "exchange"
	ProviderYahoo    = "yahoo"
)

// ValidateRange checks start <= end at day granularity in Taipei time.
func ValidateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if Day(start).After(Day(end)) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange,
			start.Format(model.DateLayout), end.Format(model.DateLayout))
	}
	return nil
}

// Day truncates t to midnight Taipei time.
func Day(t time.Time) time.Time {
	t = t.In(model.Taipei)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, model.Taipei)
}

// Normalize clips bars to [start, end], sorts them by date and drops
// duplicate dates, keeping the last occurrence.
func Normalize(bars []model.DailyBar, start, end time.Time) []model.DailyBar {
	from, to := Day(start), Day(end)

	byDate := make(map[string]model.DailyBar, len(bars))
	for _, b := range bars {
		b.Date = Day(b.Date)
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		byDate[b.Date.Format(model.DateLayout)] = b
	}

	out := make([]model.DailyBar, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// months returns the first day of every calendar month touching [start, end].
func months(start, end time.Time) []time.Time {
	from, to := Day(start), Day(end)
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, model.Taipei)
	var out []time.Time
	for !cur.After(to) {
		out = append(out, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}
