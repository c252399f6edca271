package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// TestModelTypes validates that model types can be instantiated correctly.
func TestModelTypes(t *testing.T) {
	t.Run("Quote", func(t *testing.T) {
		q := Quote{
			Symbol:  Symbol{Code: "2330", Board: BoardTSE},
			Name:    "台積電",
			Last:    decimal.RequireFromString("1245"),
			HasLast: true,
			Bids: []PriceLevel{
				{Price: decimal.RequireFromString("1240"), Size: 12},
				{Price: decimal.RequireFromString("1235"), Size: 30},
			},
			Asks: []PriceLevel{
				{Price: decimal.RequireFromString("1245"), Size: 7},
			},
		}

		bid, ok := q.BestBid()
		if !ok {
			t.Fatal("BestBid() ok = false, want true")
		}
		if !bid.Price.Equal(decimal.RequireFromString("1240")) {
			t.Errorf("BestBid().Price = %s, want 1240", bid.Price)
		}
		ask, ok := q.BestAsk()
		if !ok || ask.Size != 7 {
			t.Errorf("BestAsk() = %+v, %v, want size 7", ask, ok)
		}
	})

	t.Run("Quote without depth", func(t *testing.T) {
		var q Quote
		if _, ok := q.BestBid(); ok {
			t.Error("BestBid() ok = true on empty book")
		}
		if _, ok := q.BestAsk(); ok {
			t.Error("BestAsk() ok = true on empty book")
		}
	})

	t.Run("DailyBar key", func(t *testing.T) {
		b := DailyBar{
			Symbol: Symbol{Code: "2330"},
			Date:   time.Date(2025, 9, 19, 0, 0, 0, 0, Taipei),
		}
		want := BarKey{Code: "2330", Date: "2025-09-19"}
		if b.Key() != want {
			t.Errorf("Key() = %+v, want %+v", b.Key(), want)
		}

		// Board does not take part in the key.
		b2 := b
		b2.Symbol.Board = BoardTSE
		if b.Key() != b2.Key() {
			t.Error("Key() differs by board")
		}
	})
}

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		input   string
		want    Symbol
		wantErr bool
	}{
		{"2330", Symbol{Code: "2330"}, false},
		{" 2330 ", Symbol{Code: "2330"}, false},
		{"tse:2330", Symbol{Code: "2330", Board: BoardTSE}, false},
		{"OTC_3008", Symbol{Code: "3008", Board: BoardOTC}, false},
		{"2330.TW", Symbol{Code: "2330", Board: BoardTSE}, false},
		{"6488.two", Symbol{Code: "6488", Board: BoardOTC}, false},
		{"00878", Symbol{Code: "00878"}, false},
		{"2881a", Symbol{Code: "2881A"}, false},
		{"２３３０", Symbol{Code: "2330"}, false},
		{"", Symbol{}, true},
		{"AAPL", Symbol{}, true},
		{"233", Symbol{}, true},
		{"nyse:2330", Symbol{}, true},
		{"1234567", Symbol{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSymbol(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSymbol(%q) = %+v, want error", tt.input, got)
				}
				if !errors.Is(err, ErrInvalidSymbol) {
					t.Errorf("error = %v, want ErrInvalidSymbol", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSymbol(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseSymbol(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSymbols(t *testing.T) {
	t.Run("dedup keeps order", func(t *testing.T) {
		got, err := ParseSymbols([]string{"2330", "2317", "2330", "tse:2317"})
		if err != nil {
			t.Fatalf("ParseSymbols error: %v", err)
		}
		want := []Symbol{{Code: "2330"}, {Code: "2317", Board: BoardTSE}}
		if len(got) != len(want) {
			t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
			}
		}
	})

	t.Run("conflicting boards", func(t *testing.T) {
		if _, err := ParseSymbols([]string{"tse:3008", "otc:3008"}); err == nil {
			t.Error("expected error for conflicting boards")
		}
	})

	t.Run("invalid entry", func(t *testing.T) {
		if _, err := ParseSymbols([]string{"2330", "bad"}); err == nil {
			t.Error("expected error for invalid entry")
		}
	})
}

func TestSymbolString(t *testing.T) {
	if got := (Symbol{Code: "2330"}).String(); got != "2330" {
		t.Errorf("String() = %q, want %q", got, "2330")
	}
	if got := (Symbol{Code: "3008"}).WithBoard(BoardOTC).String(); got != "otc:3008" {
		t.Errorf("String() = %q, want %q", got, "otc:3008")
	}
}

func TestTaipeiZone(t *testing.T) {
	ts := time.Date(2025, 9, 19, 13, 30, 0, 0, Taipei)
	if _, off := ts.Zone(); off != 8*60*60 {
		t.Errorf("offset = %d, want %d", off, 8*60*60)
	}
}
