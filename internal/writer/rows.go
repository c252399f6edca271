package writer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/twquote/internal/api"
	"github.com/rickgao/twquote/internal/model"
)

const (
	stampLayout = "20060102_150405"
	timeLayout  = "2006-01-02 15:04:05"

	// maxTagSymbols is the largest symbol set spelled out in file names.
	maxTagSymbols = 3
)

// cell is one table value: string, decimal.Decimal, int64 or nil (blank).
type cell = any

var quoteHeader = buildQuoteHeader()

var barHeader = []string{"symbol", "board", "date", "open", "high", "low", "close", "volume"}

func buildQuoteHeader() []string {
	h := []string{
		"symbol", "board", "name", "timestamp", "fetched_at", "latency_ms",
		"last", "open", "high", "low", "prev_close", "limit_up", "limit_down", "volume",
	}
	for _, side := range []string{"bid_px", "bid_sz", "ask_px", "ask_sz"} {
		for i := 1; i <= api.MaxDepth; i++ {
			h = append(h, fmt.Sprintf("%s_%d", side, i))
		}
	}
	return h
}

// Tag derives the symbol-set part of artifact names: codes joined with "-"
// for up to three symbols, otherwise the first code plus "+N".
func Tag(symbols []model.Symbol) string {
	switch {
	case len(symbols) == 0:
		return "none"
	case len(symbols) <= maxTagSymbols:
		codes := make([]string, len(symbols))
		for i, s := range symbols {
			codes[i] = s.Code
		}
		return strings.Join(codes, "-")
	default:
		return fmt.Sprintf("%s+%d", symbols[0].Code, len(symbols)-1)
	}
}

// FileNames returns the artifact names for a run started at started.
func FileNames(started time.Time, symbols []model.Symbol) (quotes, daily, workbook string) {
	suffix := started.In(model.Taipei).Format(stampLayout) + "_" + Tag(symbols)
	return "quotes_" + suffix + ".csv", "daily_" + suffix + ".csv", "twquote_" + suffix + ".xlsx"
}

// quoteCells flattens q into one row matching quoteHeader.
func quoteCells(q model.Quote) []cell {
	row := []cell{
		q.Symbol.Code,
		string(q.Symbol.Board),
		q.Name,
		formatTime(q.Timestamp),
		formatTime(q.FetchedAt),
		q.SourceLatency.Milliseconds(),
		optional(q.Last, q.HasLast),
		nullable(q.Open),
		nullable(q.High),
		nullable(q.Low),
		nullable(q.PrevClose),
		nullable(q.LimitUp),
		nullable(q.LimitDown),
		q.Volume,
	}
	row = appendLevels(row, q.Bids)
	row = appendLevels(row, q.Asks)
	return row
}

// appendLevels appends MaxDepth prices followed by MaxDepth sizes.
func appendLevels(row []cell, levels []model.PriceLevel) []cell {
	for i := 0; i < api.MaxDepth; i++ {
		if i < len(levels) {
			row = append(row, levels[i].Price)
		} else {
			row = append(row, nil)
		}
	}
	for i := 0; i < api.MaxDepth; i++ {
		if i < len(levels) {
			row = append(row, levels[i].Size)
		} else {
			row = append(row, nil)
		}
	}
	return row
}

func barCells(b model.DailyBar) []cell {
	return []cell{
		b.Symbol.Code,
		string(b.Symbol.Board),
		b.Date.Format(model.DateLayout),
		b.Open,
		b.High,
		b.Low,
		b.Close,
		b.Volume,
	}
}

func optional(d decimal.Decimal, ok bool) cell {
	if !ok {
		return nil
	}
	return d
}

func nullable(d decimal.NullDecimal) cell {
	return optional(d.Decimal, d.Valid)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(model.Taipei).Format(timeLayout)
}

// csvRecord renders cells as CSV fields.
func csvRecord(cells []cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = v
		case decimal.Decimal:
			out[i] = v.String()
		case int64:
			out[i] = strconv.FormatInt(v, 10)
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

// xlsxRow converts cells to spreadsheet values; decimals become numbers.
func xlsxRow(cells []cell) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		if d, ok := c.(decimal.Decimal); ok {
			out[i] = d.InexactFloat64()
			continue
		}
		out[i] = c
	}
	return out
}
