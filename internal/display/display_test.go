package display

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rickgao/twquote/internal/model"
	"github.com/rickgao/twquote/internal/poller"
	"github.com/rickgao/twquote/internal/run"
)

func quote(last string, prev string) model.Quote {
	q := model.Quote{
		Symbol:    model.Symbol{Code: "2330", Board: model.BoardTSE},
		Name:      "台積電",
		Timestamp: time.Date(2025, 9, 19, 13, 30, 0, 0, model.Taipei),
		PrevClose: decimal.NewNullDecimal(decimal.RequireFromString(prev)),
		Volume:    31820,
		Bids:      []model.PriceLevel{{Price: decimal.RequireFromString("1245"), Size: 12}},
	}
	if last != "" {
		q.Last = decimal.RequireFromString(last)
		q.HasLast = true
	}
	return q
}

func TestQuoteRow(t *testing.T) {
	tests := []struct {
		name     string
		q        model.Quote
		wantLast string
		wantChg  string
		wantPct  string
		wantSign int
	}{
		{"up", quote("1260", "1250"), "1260", "+10", "+0.8%", 1},
		{"down", quote("1245", "1250"), "1245", "-5", "-0.4%", -1},
		{"flat", quote("1250", "1250"), "1250", "0", "0%", 0},
		{"no trade", quote("", "1250"), "-", "", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, sign := quoteRow(tt.q)
			assert.Len(t, row, len(headers))
			assert.Equal(t, "tse:2330", row[0])
			assert.Equal(t, tt.wantLast, row[2])
			assert.Equal(t, tt.wantChg, row[3])
			assert.Equal(t, tt.wantPct, row[4])
			assert.Equal(t, "1245", row[5])
			assert.Equal(t, "-", row[6])
			assert.Equal(t, "13:30:00", row[8])
			assert.Equal(t, tt.wantSign, sign)
		})
	}
}

func TestPrinter_PrintRound(t *testing.T) {
	state := run.New([]model.Symbol{{Code: "2330"}}, time.Now(), nil)
	state.AddQuote(quote("1260", "1250"))

	var buf bytes.Buffer
	NewPrinter(&buf, state).PrintRound(poller.Outcome{Round: 3, Successes: 1})

	out := buf.String()
	for _, want := range []string{"Round 3", "ok=1", "tse:2330", "1260", "31820"} {
		assert.True(t, strings.Contains(out, want), "output missing %q:\n%s", want, out)
	}
}
