package api

import (
	"context"
	"fmt"
	"time"
)

// doRequest performs one paced GET and returns the body and round-trip time.
// Errors are already classified.
func (c *Client) doRequest(ctx context.Context, symbol, path string, query map[string]string) ([]byte, time.Duration, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, Transient(symbol, fmt.Errorf("wait for request slot: %w", err))
	}

	start := c.now()
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(path)
	latency := c.now().Sub(start)
	if err != nil {
		return nil, latency, Transient(symbol, fmt.Errorf("do request: %w", err))
	}

	body := resp.Body()
	if err := ClassifyHTTP(symbol, nil, resp.StatusCode(), body); err != nil {
		return nil, latency, err
	}
	return body, latency, nil
}
