package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/rickgao/twquote/internal/api"
	"github.com/rickgao/twquote/internal/market"
	"github.com/rickgao/twquote/internal/model"
)

// Default exchange endpoints and pacing. TWSE blocks clients that exceed a
// few requests every five seconds.
const (
	DefaultTWSEURL     = "https://www.twse.com.tw"
	DefaultTPExURL     = "https://www.tpex.org.tw"
	DefaultMinInterval = 2 * time.Second

	twseDailyPath = "/rwd/zh/afterTrading/STOCK_DAY"
	tpexDailyPath = "/web/stock/aftertrading/daily_trading_info/st43_result.php"

	// TPEx reports volume in thousands of shares.
	tpexVolumeUnit = 1000
)

// ExchangeConfig configures ExchangeSource.
type ExchangeConfig struct {
	TWSEURL     string
	TPExURL     string
	Timeout     time.Duration
	MinInterval time.Duration // Zero disables pacing
}

// ExchangeSource fetches daily bars from the exchanges' own monthly reports.
type ExchangeSource struct {
	cfg      ExchangeConfig
	twse     *resty.Client
	tpex     *resty.Client
	limiter  *rate.Limiter
	registry market.Registry
	logger   *slog.Logger
}

// NewExchangeSource creates an ExchangeSource. registry may be nil.
func NewExchangeSource(cfg ExchangeConfig, registry market.Registry, logger *slog.Logger) *ExchangeSource {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = market.NewRegistry(nil, logger)
	}
	if cfg.TWSEURL == "" {
		cfg.TWSEURL = DefaultTWSEURL
	}
	if cfg.TPExURL == "" {
		cfg.TPExURL = DefaultTPExURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = api.DefaultTimeout
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &ExchangeSource{
		cfg:      cfg,
		twse:     resty.New().SetBaseURL(cfg.TWSEURL).SetTimeout(cfg.Timeout).SetHeader("Accept", "application/json"),
		tpex:     resty.New().SetBaseURL(cfg.TPExURL).SetTimeout(cfg.Timeout).SetHeader("Accept", "application/json"),
		limiter:  rate.NewLimiter(limit, 1),
		registry: registry,
		logger:   logger,
	}
}

// FetchDaily implements Source. A symbol with no known board is looked up on
// TWSE first, then TPEx. A symbol without a report on any tried board fails
// with a permanent unknown symbol error; a listed symbol whose range holds
// no trading day returns an empty slice.
func (s *ExchangeSource) FetchDaily(ctx context.Context, sym model.Symbol, start, end time.Time) ([]model.DailyBar, error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}

	sym = s.registry.Resolve(sym)
	boards := []model.Board{sym.Board}
	if sym.Board == model.BoardUnknown {
		boards = []model.Board{model.BoardTSE, model.BoardOTC}
	}

	for _, b := range boards {
		bars, found, err := s.fetchBoard(ctx, sym.WithBoard(b), start, end)
		if err != nil {
			return nil, err
		}
		if found {
			s.registry.Learn(sym.Code, b)
			out := Normalize(bars, start, end)
			s.logger.Debug("fetched daily bars",
				"symbol", sym.WithBoard(b).String(),
				"bars", len(out),
			)
			return out, nil
		}
	}

	s.logger.Debug("symbol not listed on any board", "symbol", sym.Code)
	return nil, api.Permanent(sym.Code, api.ErrUnknownSymbol)
}

// fetchBoard fetches every month in range from one board. found reports
// whether any month had data for the symbol.
func (s *ExchangeSource) fetchBoard(ctx context.Context, sym model.Symbol, start, end time.Time) (bars []model.DailyBar, found bool, err error) {
	for _, month := range months(start, end) {
		var rows []model.DailyBar
		var ok bool
		switch sym.Board {
		case model.BoardOTC:
			rows, ok, err = s.fetchTPExMonth(ctx, sym, month)
		default:
			rows, ok, err = s.fetchTWSEMonth(ctx, sym, month)
		}
		if err != nil {
			return nil, false, err
		}
		found = found || ok
		bars = append(bars, rows...)
	}
	return bars, found, nil
}

// fetchTWSEMonth fetches one STOCK_DAY report.
//
//	{"stat":"OK","fields":["日期","成交股數","成交金額","開盤價","最高價","最低價","收盤價","漲跌價差","成交筆數"],
//	 "data":[["114/09/01","33,211,230","39,551,231,000","1,190.00","1,195.00","1,180.00","1,185.00","-5.00","52,345"]]}
func (s *ExchangeSource) fetchTWSEMonth(ctx context.Context, sym model.Symbol, month time.Time) ([]model.DailyBar, bool, error) {
	body, err := s.get(ctx, s.twse, sym.Code, twseDailyPath, map[string]string{
		"date":     month.Format("20060102"),
		"stockNo":  sym.Code,
		"response": "json",
	})
	if err != nil {
		return nil, false, err
	}

	if stat := gjson.GetBytes(body, "stat").String(); !strings.EqualFold(stat, "OK") {
		// "很抱歉，沒有符合條件的資料!" for unknown codes and months before listing.
		return nil, false, nil
	}

	rows := gjson.GetBytes(body, "data").Array()
	bars, err := parseRows(sym, rows, 1)
	if err != nil {
		return nil, false, err
	}
	return bars, true, nil
}

// fetchTPExMonth fetches one st43 report.
//
//	{"stkNo":"3008","iTotalRecords":21,
//	 "aaData":[["114/09/01","1,234","2,345,678","1,900.00","1,920.00","1,880.00","1,905.00","5.00","3,210"]]}
func (s *ExchangeSource) fetchTPExMonth(ctx context.Context, sym model.Symbol, month time.Time) ([]model.DailyBar, bool, error) {
	body, err := s.get(ctx, s.tpex, sym.Code, tpexDailyPath, map[string]string{
		"l":     "zh-tw",
		"d":     FormatROCMonth(month),
		"stkno": sym.Code,
	})
	if err != nil {
		return nil, false, err
	}

	rows := gjson.GetBytes(body, "aaData").Array()
	if len(rows) == 0 {
		return nil, false, nil
	}
	bars, err := parseRows(sym, rows, tpexVolumeUnit)
	if err != nil {
		return nil, false, err
	}
	return bars, true, nil
}

// parseRows converts report rows laid out as date, volume, value, open,
// high, low, close, ... Days without a trade ("--" prices) are skipped.
func parseRows(sym model.Symbol, rows []gjson.Result, volumeUnit int64) ([]model.DailyBar, error) {
	bars := make([]model.DailyBar, 0, len(rows))
	for i, row := range rows {
		cols := row.Array()
		if len(cols) < 7 {
			return nil, api.Malformed(sym.Code, "row %d has %d columns", i, len(cols))
		}

		date, err := ParseROCDate(cols[0].String())
		if err != nil {
			return nil, api.Malformed(sym.Code, "row %d: %v", i, err)
		}
		volume, _, err := api.ParseCount(cols[1].String())
		if err != nil {
			return nil, api.Malformed(sym.Code, "row %d volume: %v", i, err)
		}

		var ohlc [4]decimal.Decimal
		traded := true
		for j := range ohlc {
			d, ok, err := api.ParseDecimal(cols[3+j].String())
			if err != nil {
				return nil, api.Malformed(sym.Code, "row %d col %d: %v", i, 3+j, err)
			}
			traded = traded && ok
			ohlc[j] = d
		}
		if !traded {
			continue
		}

		bars = append(bars, model.DailyBar{
			Symbol: sym,
			Date:   date,
			Open:   ohlc[0],
			High:   ohlc[1],
			Low:    ohlc[2],
			Close:  ohlc[3],
			Volume: volume * volumeUnit,
		})
	}
	return bars, nil
}

// get performs one paced GET against an exchange endpoint.
func (s *ExchangeSource) get(ctx context.Context, rc *resty.Client, code, path string, query map[string]string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, api.Transient(code, fmt.Errorf("wait for request slot: %w", err))
	}

	resp, err := rc.R().SetContext(ctx).SetQueryParams(query).Get(path)
	if err != nil {
		return nil, api.Transient(code, fmt.Errorf("do request: %w", err))
	}
	body := resp.Body()
	if err := api.ClassifyHTTP(code, nil, resp.StatusCode(), body); err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, api.Transient(code, fmt.Errorf("non-JSON response (%d bytes)", len(body)))
	}
	return body, nil
}
