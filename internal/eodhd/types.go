// Package eodhd is a small client for the EODHD market data API:
// real-time quotes, company fundamentals and the financial news feed.
package eodhd

import (
	"fmt"
	"net/http"
	"time"
)

// QueryOption represents an optional parameter for API queries.
type QueryOption func(*queryParams)

type queryParams struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// WithDateRange sets the date range for the query.
func WithDateRange(from, to time.Time) QueryOption {
	return func(p *queryParams) {
		p.From = from
		p.To = to
	}
}

// WithLimit sets the maximum number of results.
func WithLimit(limit int) QueryOption {
	return func(p *queryParams) {
		p.Limit = limit
	}
}

// WithOffset skips the first n results.
func WithOffset(offset int) QueryOption {
	return func(p *queryParams) {
		p.Offset = offset
	}
}

// APIError represents an error from the EODHD API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Temporary reports whether the request may succeed if retried
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
