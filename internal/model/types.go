package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Real-Time Types
// -----------------------------------------------------------------------------

// PriceLevel represents a single price level in the five-level order book.
type PriceLevel struct {
	Price decimal.Decimal // Quoted price (NTD)
	Size  int64           // Lots at this price
}

// Quote is one point-in-time snapshot of a symbol from the real-time endpoint.
type Quote struct {
	Symbol    Symbol    // Requested symbol, board filled in from the response
	Name      string    // Short name (e.g. 台積電)
	Timestamp time.Time // Exchange timestamp of the snapshot

	Last    decimal.Decimal // Last traded price
	HasLast bool            // False when nothing has traded yet ("-")

	// Invalid until the exchange publishes a value; pre-open snapshots
	// carry "-" for most of these.
	Open      decimal.NullDecimal
	High      decimal.NullDecimal
	Low       decimal.NullDecimal
	PrevClose decimal.NullDecimal
	LimitUp   decimal.NullDecimal
	LimitDown decimal.NullDecimal
	Volume    int64 // Accumulated lots

	Bids []PriceLevel // Best bid first
	Asks []PriceLevel // Best ask first

	FetchedAt     time.Time     // Local receive time
	SourceLatency time.Duration // Round trip of the request that produced this quote
}

// BestBid returns the most aggressive bid, if any.
func (q Quote) BestBid() (PriceLevel, bool) {
	if len(q.Bids) == 0 {
		return PriceLevel{}, false
	}
	return q.Bids[0], true
}

// BestAsk returns the most aggressive ask, if any.
func (q Quote) BestAsk() (PriceLevel, bool) {
	if len(q.Asks) == 0 {
		return PriceLevel{}, false
	}
	return q.Asks[0], true
}

// -----------------------------------------------------------------------------
// Historical Types
// -----------------------------------------------------------------------------

// DailyBar is one trading day's OHLCV summary. Unique by (Symbol.Code, Date).
type DailyBar struct {
	Symbol Symbol
	Date   time.Time // Midnight Asia/Taipei
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64 // Shares traded
}

// BarKey identifies a DailyBar for idempotent merging.
type BarKey struct {
	Code string
	Date string // YYYY-MM-DD
}

// Key returns the merge key of the bar.
func (b DailyBar) Key() BarKey {
	return BarKey{Code: b.Symbol.Code, Date: b.Date.Format(DateLayout)}
}

// -----------------------------------------------------------------------------
// Failure Types
// -----------------------------------------------------------------------------

// Stage identifies where in the pipeline a failure happened.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageParse Stage = "parse"
	StageWrite Stage = "write"
)

// FailureRecord is a logged, non-fatal failure. Never mutated once appended.
type FailureRecord struct {
	Timestamp time.Time
	Symbol    string // Symbol code, empty for run-level failures
	Stage     Stage
	Kind      string // Error class, e.g. "permanent", "transient", "rate_limited"
	Message   string
	Attempt   int // 1-based number of the final attempt
}

// DateLayout is the canonical date format for bars and file names.
const DateLayout = "2006-01-02"
