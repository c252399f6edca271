package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/rickgao/twquote/internal/market"
)

// Default client settings.
const (
	DefaultBaseURL     = "https://mis.twse.com.tw"
	DefaultTimeout     = 5 * time.Second
	DefaultMinInterval = 200 * time.Millisecond

	quotePath = "/stock/api/getStockInfo.jsp"
)

// defaultHeaders mimic the MIS web page; the endpoint rejects bare clients.
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36",
	"Referer":         "https://mis.twse.com.tw/stock/detail-item",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7",
	"Cache-Control":   "no-cache",
}

// Client provides access to the MIS real-time quote endpoint.
type Client struct {
	baseURL     string
	timeout     time.Duration
	minInterval time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
	registry    market.Registry
	now         func() time.Time

	rest    *resty.Client
	limiter *rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new MIS client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     baseURL,
		timeout:     DefaultTimeout,
		minInterval: DefaultMinInterval,
		logger:      slog.Default(),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.registry == nil {
		c.registry = market.NewRegistry(nil, c.logger)
	}
	if c.httpClient != nil {
		c.rest = resty.NewWithClient(c.httpClient)
	} else {
		c.rest = resty.New()
	}
	c.rest.
		SetBaseURL(c.baseURL).
		SetTimeout(c.timeout).
		SetHeaders(defaultHeaders)

	limit := rate.Inf
	if c.minInterval > 0 {
		limit = rate.Every(c.minInterval)
	}
	c.limiter = rate.NewLimiter(limit, 1)

	return c
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMinInterval sets the minimum spacing between outbound requests.
// Zero disables pacing.
func WithMinInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.minInterval = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRegistry sets the board registry used to resolve symbols.
func WithRegistry(r market.Registry) ClientOption {
	return func(c *Client) {
		c.registry = r
	}
}

// Registry returns the board registry the client resolves symbols with.
func (c *Client) Registry() market.Registry {
	return c.registry
}
