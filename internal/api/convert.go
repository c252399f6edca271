package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/twquote/internal/model"
)

// MaxDepth is the number of book levels the endpoint publishes per side.
const MaxDepth = 5

// isBlank reports whether s is one of the placeholders the exchanges use for
// "no value".
func isBlank(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "-", "--", "N/A", "X":
		return true
	}
	return false
}

// ParseDecimal parses a quoted price. Returns ok=false for placeholders.
// "1,245.50" -> 1245.5, "-" -> (0, false, nil)
func ParseDecimal(s string) (d decimal.Decimal, ok bool, err error) {
	if isBlank(s) {
		return decimal.Zero, false, nil
	}
	d, err = decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse price %q: %w", s, err)
	}
	return d, true, nil
}

// ParseCount parses a volume or size with optional thousands separators.
// "1,000" -> 1000, "23415" -> 23415, "-" -> (0, false, nil)
func ParseCount(s string) (n int64, ok bool, err error) {
	if isBlank(s) {
		return 0, false, nil
	}
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if n, err := strconv.ParseInt(clean, 10, 64); err == nil {
		return n, true, nil
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, false, fmt.Errorf("parse count %q: %w", s, err)
	}
	return d.IntPart(), true, nil
}

// splitList splits a "_"-separated depth list, dropping the trailing empty
// element. "1_2_" -> ["1", "2"]
func splitList(s string) []string {
	parts := strings.Split(s, "_")
	for len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// ParseLevels pairs a price list with a size list. Pairs whose price is a
// placeholder are skipped; a count mismatch or unparseable entry is an error.
func ParseLevels(prices, sizes string) ([]model.PriceLevel, error) {
	px, sz := splitList(prices), splitList(sizes)
	if len(px) != len(sz) {
		return nil, fmt.Errorf("depth has %d prices but %d sizes", len(px), len(sz))
	}

	levels := make([]model.PriceLevel, 0, min(len(px), MaxDepth))
	for i := range px {
		p, ok, err := ParseDecimal(px[i])
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		n, _, err := ParseCount(sz[i])
		if err != nil {
			return nil, err
		}
		levels = append(levels, model.PriceLevel{Price: p, Size: n})
		if len(levels) == MaxDepth {
			break
		}
	}
	return levels, nil
}

// ParseTimestamp combines the endpoint's date and time fields in Taipei time.
// Falls back to tlong (ms since epoch) when date/time are missing.
func ParseTimestamp(date, clock, tlong string) (time.Time, error) {
	if date != "" && clock != "" {
		t, err := time.ParseInLocation("20060102 15:04:05", date+" "+clock, model.Taipei)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q %q: %w", date, clock, err)
		}
		return t, nil
	}
	if tlong != "" {
		ms, err := strconv.ParseInt(tlong, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse tlong %q: %w", tlong, err)
		}
		return time.UnixMilli(ms).In(model.Taipei), nil
	}
	return time.Time{}, errors.New("missing timestamp")
}

// toQuote converts a quoteItem to model.Quote. Missing depth is treated as a
// malformed payload rather than an empty book.
func (it *quoteItem) toQuote(sym model.Symbol) (model.Quote, error) {
	code := sym.Code

	if it.AskPrices == nil || it.AskSizes == nil || it.BidPrices == nil || it.BidSizes == nil {
		return model.Quote{}, Malformed(code, "missing depth fields")
	}

	clock := it.Time
	if clock == "" {
		clock = it.AltTime
	}
	ts, err := ParseTimestamp(it.Date, clock, it.TLong)
	if err != nil {
		return model.Quote{}, Malformed(code, "%v", err)
	}

	q := model.Quote{
		Symbol:    sym,
		Name:      it.Name,
		Timestamp: ts,
	}
	if b, err := model.ParseBoard(it.Exchange); err == nil {
		q.Symbol.Board = b
	}

	if q.Last, q.HasLast, err = ParseDecimal(it.Last); err != nil {
		return model.Quote{}, Malformed(code, "last: %v", err)
	}

	prices := []struct {
		name string
		raw  string
		dst  *decimal.NullDecimal
	}{
		{"open", it.Open, &q.Open},
		{"high", it.High, &q.High},
		{"low", it.Low, &q.Low},
		{"prev_close", it.PrevClose, &q.PrevClose},
		{"limit_up", it.LimitUp, &q.LimitUp},
		{"limit_down", it.LimitDown, &q.LimitDown},
	}
	for _, p := range prices {
		if p.dst.Decimal, p.dst.Valid, err = ParseDecimal(p.raw); err != nil {
			return model.Quote{}, Malformed(code, "%s: %v", p.name, err)
		}
	}

	if q.Volume, _, err = ParseCount(it.Volume); err != nil {
		return model.Quote{}, Malformed(code, "volume: %v", err)
	}

	if q.Bids, err = ParseLevels(*it.BidPrices, *it.BidSizes); err != nil {
		return model.Quote{}, Malformed(code, "bids: %v", err)
	}
	if q.Asks, err = ParseLevels(*it.AskPrices, *it.AskSizes); err != nil {
		return model.Quote{}, Malformed(code, "asks: %v", err)
	}

	return q, nil
}
