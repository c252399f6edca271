package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rickgao/twquote/internal/model"
)

// ErrUnknownSymbol is wrapped with ErrPermanent when the endpoint returns no
// entry for the requested code.
var ErrUnknownSymbol = errors.New("unknown symbol")

// rtCodeOK is the MIS status code for a successful query.
const rtCodeOK = "0000"

// FetchQuote fetches one real-time snapshot for sym. It makes exactly one
// request and does not retry.
func (c *Client) FetchQuote(ctx context.Context, sym model.Symbol) (model.Quote, error) {
	sym = c.registry.Resolve(sym)

	query := map[string]string{
		"ex_ch": ExChannel(sym),
		"json":  "1",
		"delay": "0",
		"lang":  "zh_tw",
		"_":     strconv.FormatInt(c.now().UnixMilli(), 10),
	}

	body, latency, err := c.doRequest(ctx, sym.Code, quotePath, query)
	if err != nil {
		return model.Quote{}, err
	}

	item, err := decodeQuote(sym.Code, body)
	if err != nil {
		return model.Quote{}, err
	}

	q, err := item.toQuote(sym)
	if err != nil {
		return model.Quote{}, err
	}
	q.FetchedAt = c.now().In(model.Taipei)
	q.SourceLatency = latency

	c.registry.Learn(sym.Code, q.Symbol.Board)

	c.logger.Debug("fetched quote",
		"symbol", q.Symbol.String(),
		"last", q.Last.String(),
		"latency", latency,
	)
	return q, nil
}

// ExChannel builds the ex_ch parameter. A symbol with no known board is
// queried on both boards in the same request.
// tse:2330 -> "tse_2330.tw", 3008 -> "tse_3008.tw|otc_3008.tw"
func ExChannel(sym model.Symbol) string {
	if sym.Board == model.BoardUnknown {
		return fmt.Sprintf("tse_%s.tw|otc_%s.tw", sym.Code, sym.Code)
	}
	return fmt.Sprintf("%s_%s.tw", sym.Board, sym.Code)
}

// decodeQuote validates the envelope and returns the entry for code.
func decodeQuote(code string, body []byte) (*quoteItem, error) {
	if !gjson.ValidBytes(body) {
		// Maintenance and block pages come back as HTML with status 200.
		return nil, Transient(code, fmt.Errorf("non-JSON response (%d bytes)", len(body)))
	}

	if rt := gjson.GetBytes(body, "rtcode"); rt.Exists() && rt.String() != rtCodeOK {
		msg := gjson.GetBytes(body, "rtmessage").String()
		err := fmt.Errorf("rtcode %s: %s", rt.String(), msg)
		if isThrottleMessage(msg) {
			return nil, RateLimited(code, err)
		}
		return nil, Transient(code, err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, Malformed(code, "unmarshal response: %v", err)
	}

	for i := range resp.MsgArray {
		if resp.MsgArray[i].Code == code {
			return &resp.MsgArray[i], nil
		}
	}
	return nil, Permanent(code, ErrUnknownSymbol)
}

func isThrottleMessage(msg string) bool {
	m := strings.ToLower(msg)
	for _, s := range []string{"too many", "rate limit", "frequent", "頻繁", "過多"} {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}
