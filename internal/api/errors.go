package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error classes. Every error returned by FetchQuote matches exactly one of
// these with errors.Is.
var (
	// ErrTransient covers network failures, timeouts and 5xx responses.
	ErrTransient = errors.New("transient fetch error")

	// ErrRateLimited means the endpoint asked us to slow down.
	ErrRateLimited = errors.New("rate limited")

	// ErrPermanent covers unknown symbols and malformed payloads.
	ErrPermanent = errors.New("permanent fetch error")

	// ErrMalformed is wrapped together with ErrPermanent when the payload
	// could not be parsed.
	ErrMalformed = errors.New("malformed payload")
)

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mis api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// FetchError is returned by sources for a failed fetch.
type FetchError struct {
	Kind   error // ErrTransient, ErrRateLimited or ErrPermanent
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Symbol, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Symbol, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsRetryable returns true for transient and rate-limited failures.
func (e *FetchError) IsRetryable() bool {
	return e.Kind == ErrTransient || e.Kind == ErrRateLimited
}

// KindName returns a short label for the error class, used in logs and
// failure records.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrPermanent):
		return "permanent"
	default:
		return "unknown"
	}
}

// Transient wraps err as a retryable failure for symbol.
func Transient(symbol string, err error) error {
	return &FetchError{Kind: ErrTransient, Symbol: symbol, Err: err}
}

// RateLimited wraps err as a throttling failure for symbol.
func RateLimited(symbol string, err error) error {
	return &FetchError{Kind: ErrRateLimited, Symbol: symbol, Err: err}
}

// Permanent wraps err as a non-retryable failure for symbol.
func Permanent(symbol string, err error) error {
	return &FetchError{Kind: ErrPermanent, Symbol: symbol, Err: err}
}

// Malformed wraps a parse failure for symbol. It matches both ErrPermanent
// and ErrMalformed.
func Malformed(symbol string, format string, args ...any) error {
	return &FetchError{
		Kind:   ErrPermanent,
		Symbol: symbol,
		Err:    fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...)),
	}
}

// ClassifyHTTP converts a transport error or HTTP status into a FetchError.
// A nil return means the response is usable.
func ClassifyHTTP(symbol string, transportErr error, status int, body []byte) error {
	if transportErr != nil {
		return Transient(symbol, transportErr)
	}
	if status < 400 {
		return nil
	}
	apiErr := &APIError{
		StatusCode: status,
		Message:    http.StatusText(status),
		Body:       body,
	}
	switch {
	case status == http.StatusTooManyRequests:
		return RateLimited(symbol, apiErr)
	case apiErr.IsRetryable():
		return Transient(symbol, apiErr)
	default:
		return Permanent(symbol, apiErr)
	}
}
