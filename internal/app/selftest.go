package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rickgao/twquote/internal/config"
	"github.com/rickgao/twquote/internal/model"
)

// selfTestPayload is a recorded MIS response for 3305 at the close.
const selfTestPayload = `{"msgArray":[{"c":"3305","n":"昇貿","nf":"昇貿科技股份有限公司","ex":"tse",` +
	`"d":"20250919","t":"13:30:00","tlong":"1758259800000",` +
	`"o":"116.5","h":"121","l":"113","y":"116","z":"118.5","u":"127.5","w":"104.5","v":"23415",` +
	`"a":"119_120_","f":"94_108_","b":"118_117_","g":"102_147_"}],` +
	`"rtcode":"0000","rtmessage":"OK"}`

const selfTestSymbol = "3305"

// ErrSelfTest is returned when a self-test check fails.
var ErrSelfTest = errors.New("self-test failed")

// SelfTest runs one bounded round into a temporary directory. Without live
// it serves a recorded payload in-process and also checks a known-bad
// symbol; with live it uses the configured endpoint and symbols. It passes
// when the round produced at least one quote or failure record and every
// artifact was written.
func SelfTest(ctx context.Context, cfg *config.Config, live bool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	c := *cfg
	c.Rounds = 1
	c.Daily.Enabled = false
	c.Metrics.Port = 0

	dir, err := os.MkdirTemp("", "twquote-selftest-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	c.OutputDir = dir

	if !live {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if strings.Contains(r.URL.Query().Get("ex_ch"), selfTestSymbol) {
				w.Write([]byte(selfTestPayload))
				return
			}
			w.Write([]byte(`{"msgArray":[],"rtcode":"0000","rtmessage":"OK"}`))
		}))
		defer srv.Close()

		c.API.QuoteURL = srv.URL
		c.API.MinInterval = 0
		c.Symbols = []string{selfTestSymbol, "9999"}
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("%w: no symbols configured", ErrSelfTest)
	}

	logger.Info("self-test started", "live", live, "symbols", c.Symbols)

	res, err := Run(ctx, Options{Config: &c, Logger: logger})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSelfTest, err)
	}

	quotes, failures := len(res.State.Quotes()), res.State.Errors.Len()
	if quotes+failures == 0 {
		return fmt.Errorf("%w: no quote and no failure recorded", ErrSelfTest)
	}
	if len(res.Files) == 0 {
		return fmt.Errorf("%w: no artifacts written", ErrSelfTest)
	}

	if !live {
		if err := checkRecorded(res); err != nil {
			return fmt.Errorf("%w: %v", ErrSelfTest, err)
		}
	}

	logger.Info("self-test passed",
		"quotes", quotes,
		"failures", failures,
		"files", len(res.Files),
	)
	return nil
}

// checkRecorded verifies the parse of the recorded payload and the
// handling of the unknown symbol.
func checkRecorded(res *Result) error {
	quotes := res.State.Quotes()
	if len(quotes) != 1 {
		return fmt.Errorf("got %d quotes, want 1", len(quotes))
	}
	q := quotes[0]
	if !q.HasLast || !q.Last.Equal(decimal.RequireFromString("118.5")) {
		return fmt.Errorf("last = %s, want 118.5", q.Last)
	}
	bid, ok := q.BestBid()
	if !ok || !bid.Price.Equal(decimal.NewFromInt(118)) || bid.Size != 102 {
		return fmt.Errorf("best bid = %+v, want 118 x 102", bid)
	}
	ask, ok := q.BestAsk()
	if !ok || !ask.Price.Equal(decimal.NewFromInt(119)) || ask.Size != 94 {
		return fmt.Errorf("best ask = %+v, want 119 x 94", ask)
	}

	learned := model.Symbol{Code: selfTestSymbol, Board: model.BoardTSE}
	if !slices.Contains(res.Boards, learned) {
		return fmt.Errorf("boards = %v, want %s learned from the response", res.Boards, learned)
	}

	recs := res.State.Errors.Records()
	if len(recs) != 1 || recs[0].Symbol != "9999" || recs[0].Kind != "permanent" {
		return fmt.Errorf("failure records = %+v, want one permanent failure for 9999", recs)
	}
	if res.ErrorLog == "" {
		return errors.New("error log was not written")
	}
	if _, err := os.Stat(res.ErrorLog); err != nil {
		return fmt.Errorf("error log: %w", err)
	}
	return nil
}
