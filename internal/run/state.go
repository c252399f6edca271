// Package run holds the in-memory state accumulated by one invocation.
package run

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/twquote/internal/errlog"
	"github.com/rickgao/twquote/internal/model"
)

// State accumulates quotes, daily bars and failures for a single run. It is
// owned by one goroutine at a time; only the error log is safe for
// concurrent use.
type State struct {
	ID      string
	Started time.Time
	Symbols []model.Symbol
	Errors  *errlog.Log

	quotes []model.Quote
	bars   map[model.BarKey]model.DailyBar
}

// New creates the state for a run over symbols starting at started.
func New(symbols []model.Symbol, started time.Time, logger *slog.Logger) *State {
	id := uuid.NewString()
	return &State{
		ID:      id,
		Started: started,
		Symbols: symbols,
		Errors:  errlog.New(id, logger),
		bars:    make(map[model.BarKey]model.DailyBar),
	}
}

// AddQuote appends one successfully fetched quote.
func (s *State) AddQuote(q model.Quote) {
	s.quotes = append(s.quotes, q)
}

// Quotes returns the quotes in fetch order.
func (s *State) Quotes() []model.Quote {
	return s.quotes
}

// LatestQuotes returns the most recent quote per symbol code, in the order
// the symbols were first seen.
func (s *State) LatestQuotes() []model.Quote {
	idx := make(map[string]int)
	var out []model.Quote
	for _, q := range s.quotes {
		if i, ok := idx[q.Symbol.Code]; ok {
			out[i] = q
			continue
		}
		idx[q.Symbol.Code] = len(out)
		out = append(out, q)
	}
	return out
}

// MergeBars stores bars keyed by (code, date). A bar for an existing key
// replaces it, so merging the same fetch twice leaves one row per key.
func (s *State) MergeBars(bars []model.DailyBar) (added, replaced int) {
	for _, b := range bars {
		k := b.Key()
		if _, ok := s.bars[k]; ok {
			replaced++
		} else {
			added++
		}
		s.bars[k] = b
	}
	return added, replaced
}

// Bars returns all bars sorted by symbol code, then date.
func (s *State) Bars() []model.DailyBar {
	out := make([]model.DailyBar, 0, len(s.bars))
	for _, b := range s.bars {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol.Code != out[j].Symbol.Code {
			return out[i].Symbol.Code < out[j].Symbol.Code
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// RecordFailure appends rec to the error log.
func (s *State) RecordFailure(rec model.FailureRecord) {
	s.Errors.Append(rec)
}
