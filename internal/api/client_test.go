package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/twquote/internal/market"
	"github.com/rickgao/twquote/internal/model"
)

const tsmcPayload = `{"msgArray":[{"c":"2330","n":"台積電","nf":"台灣積體電路製造股份有限公司","ex":"tse",` +
	`"d":"20250919","t":"13:30:00","z":"1245.0000","o":"1255.0000","h":"1260.0000","l":"1240.0000",` +
	`"y":"1250.0000","u":"1375.0000","w":"1125.0000","v":"31820",` +
	`"a":"1250.0000_1255.0000_1260.0000_1265.0000_1270.0000_","f":"120_85_301_44_97_",` +
	`"b":"1245.0000_1240.0000_1235.0000_1230.0000_1225.0000_","g":"12_230_77_150_64_"}],` +
	`"rtcode":"0000","rtmessage":"OK"}`

func newTestClient(url string, opts ...ClientOption) *Client {
	opts = append([]ClientOption{WithMinInterval(0), WithTimeout(2 * time.Second)}, opts...)
	return NewClient(url, opts...)
}

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("")

		if c.baseURL != DefaultBaseURL {
			t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
		}
		if c.timeout != DefaultTimeout {
			t.Errorf("timeout = %v, want %v", c.timeout, DefaultTimeout)
		}
		if c.minInterval != DefaultMinInterval {
			t.Errorf("minInterval = %v, want %v", c.minInterval, DefaultMinInterval)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
		if c.Registry() == nil {
			t.Error("registry should not be nil")
		}
	})

	t.Run("with options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		reg := market.NewRegistry(nil, logger)
		hc := &http.Client{}
		c := NewClient("https://mis.example.com",
			WithTimeout(15*time.Second),
			WithMinInterval(time.Second),
			WithLogger(logger),
			WithHTTPClient(hc),
			WithRegistry(reg),
		)
		if c.timeout != 15*time.Second {
			t.Errorf("timeout = %v, want %v", c.timeout, 15*time.Second)
		}
		if c.minInterval != time.Second {
			t.Errorf("minInterval = %v, want %v", c.minInterval, time.Second)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
		if c.httpClient != hc {
			t.Error("custom HTTP client not set")
		}
		if c.Registry() != reg {
			t.Error("registry not set correctly")
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "Not Found"}
	if err.Error() != "mis api error 404: Not Found" {
		t.Errorf("Error() = %q", err.Error())
	}

	tests := []struct {
		code     int
		expected bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{400, false},
		{404, false},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.code}
		if got := err.IsRetryable(); got != tt.expected {
			t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
		}
	}
}

func TestClassifyHTTP(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   error
	}{
		{"ok", nil, 200, nil},
		{"transport", errors.New("connection reset"), 0, ErrTransient},
		{"server error", nil, 502, ErrTransient},
		{"throttled", nil, 429, ErrRateLimited},
		{"forbidden", nil, 403, ErrPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyHTTP("2330", tt.err, tt.status, nil)
			if tt.want == nil {
				if got != nil {
					t.Errorf("ClassifyHTTP = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("ClassifyHTTP = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindName(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{Transient("2330", nil), "transient"},
		{RateLimited("2330", nil), "rate_limited"},
		{Permanent("2330", ErrUnknownSymbol), "permanent"},
		{Malformed("2330", "bad"), "malformed"},
		{errors.New("other"), "unknown"},
	}
	for _, tt := range tests {
		if got := KindName(tt.err); got != tt.want {
			t.Errorf("KindName(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestFetchQuote(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != quotePath {
				t.Errorf("path = %q, want %q", r.URL.Path, quotePath)
			}
			if got := r.URL.Query().Get("ex_ch"); got != "tse_2330.tw" {
				t.Errorf("ex_ch = %q, want %q", got, "tse_2330.tw")
			}
			if r.URL.Query().Get("json") != "1" {
				t.Errorf("json = %q, want 1", r.URL.Query().Get("json"))
			}
			if !strings.Contains(r.Header.Get("Referer"), "mis.twse.com.tw") {
				t.Errorf("Referer = %q", r.Header.Get("Referer"))
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(tsmcPayload))
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		q, err := c.FetchQuote(context.Background(), model.Symbol{Code: "2330", Board: model.BoardTSE})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.Symbol.String() != "tse:2330" {
			t.Errorf("Symbol = %q, want %q", q.Symbol.String(), "tse:2330")
		}
		if len(q.Bids) != 5 || len(q.Asks) != 5 {
			t.Errorf("depth = %d/%d, want 5/5", len(q.Bids), len(q.Asks))
		}
		if q.Last.String() != "1245" {
			t.Errorf("Last = %s, want 1245", q.Last)
		}
		if q.FetchedAt.IsZero() {
			t.Error("FetchedAt not set")
		}
	})

	t.Run("unknown board queries both and learns", func(t *testing.T) {
		var channels []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			channels = append(channels, r.URL.Query().Get("ex_ch"))
			w.Write([]byte(tsmcPayload))
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		for i := 0; i < 2; i++ {
			if _, err := c.FetchQuote(context.Background(), model.Symbol{Code: "2330"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if len(channels) != 2 {
			t.Fatalf("requests = %d, want 2", len(channels))
		}
		if channels[0] != "tse_2330.tw|otc_2330.tw" {
			t.Errorf("first ex_ch = %q", channels[0])
		}
		if channels[1] != "tse_2330.tw" {
			t.Errorf("second ex_ch = %q, want learned board", channels[1])
		}
	})

	t.Run("unknown symbol is permanent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"msgArray":[],"rtcode":"0000","rtmessage":"OK"}`))
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		_, err := c.FetchQuote(context.Background(), model.Symbol{Code: "9999"})
		if !errors.Is(err, ErrPermanent) || !errors.Is(err, ErrUnknownSymbol) {
			t.Fatalf("error = %v, want permanent unknown symbol", err)
		}
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Symbol != "9999" {
			t.Errorf("FetchError symbol = %+v", fe)
		}
		if fe.IsRetryable() {
			t.Error("IsRetryable() = true, want false")
		}
	})

	t.Run("5xx is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		_, err := c.FetchQuote(context.Background(), model.Symbol{Code: "2330"})
		if !errors.Is(err, ErrTransient) {
			t.Fatalf("error = %v, want transient", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 503 {
			t.Errorf("APIError = %+v, want 503", apiErr)
		}
	})

	t.Run("429 is rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		_, err := c.FetchQuote(context.Background(), model.Symbol{Code: "2330"})
		if !errors.Is(err, ErrRateLimited) {
			t.Fatalf("error = %v, want rate limited", err)
		}
	})

	t.Run("throttle rtcode is rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"msgArray":[],"rtcode":"9999","rtmessage":"Too many requests"}`))
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		_, err := c.FetchQuote(context.Background(), model.Symbol{Code: "2330"})
		if !errors.Is(err, ErrRateLimited) {
			t.Fatalf("error = %v, want rate limited", err)
		}
	})

	t.Run("HTML body is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><body>maintenance</body></html>`))
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		_, err := c.FetchQuote(context.Background(), model.Symbol{Code: "2330"})
		if !errors.Is(err, ErrTransient) {
			t.Fatalf("error = %v, want transient", err)
		}
	})

	t.Run("missing depth is permanent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"msgArray":[{"c":"2330","ex":"tse","d":"20250919","t":"13:30:00","z":"1245"}],"rtcode":"0000"}`))
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		_, err := c.FetchQuote(context.Background(), model.Symbol{Code: "2330"})
		if !errors.Is(err, ErrPermanent) || !errors.Is(err, ErrMalformed) {
			t.Fatalf("error = %v, want permanent malformed", err)
		}
	})

	t.Run("timeout is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(tsmcPayload))
		}))
		defer server.Close()

		c := newTestClient(server.URL, WithTimeout(50*time.Millisecond))
		_, err := c.FetchQuote(context.Background(), model.Symbol{Code: "2330"})
		if !errors.Is(err, ErrTransient) {
			t.Fatalf("error = %v, want transient", err)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(tsmcPayload))
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.FetchQuote(ctx, model.Symbol{Code: "2330"})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "context canceled") {
			t.Errorf("error should contain 'context canceled', got %v", err)
		}
	})
}

func TestFetchQuote_Pacing(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(tsmcPayload))
	}))
	defer server.Close()

	c := NewClient(server.URL, WithMinInterval(50*time.Millisecond))
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.FetchQuote(context.Background(), model.Symbol{Code: "2330", Board: model.BoardTSE}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// First request is immediate, the next two wait one interval each.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("elapsed = %v, want >= ~100ms", elapsed)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

func TestExChannel(t *testing.T) {
	tests := []struct {
		sym  model.Symbol
		want string
	}{
		{model.Symbol{Code: "2330", Board: model.BoardTSE}, "tse_2330.tw"},
		{model.Symbol{Code: "6488", Board: model.BoardOTC}, "otc_6488.tw"},
		{model.Symbol{Code: "3008"}, "tse_3008.tw|otc_3008.tw"},
	}
	for _, tt := range tests {
		if got := ExChannel(tt.sym); got != tt.want {
			t.Errorf("ExChannel(%v) = %q, want %q", tt.sym, got, tt.want)
		}
	}
}
