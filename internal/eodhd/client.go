package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the EODHD API.
	DefaultBaseURL = "https://eodhd.com/api"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10

	// DefaultMaxRetries bounds retries of temporary failures.
	DefaultMaxRetries = 3
)

// Client is an EODHD API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
	maxRetries int
	retryWait  time.Duration
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithRetry sets how often and how soon temporary failures are retried.
func WithRetry(maxRetries int, initialWait time.Duration) ClientOption {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if initialWait > 0 {
			c.retryWait = initialWait
		}
	}
}

// NewClient creates a new EODHD API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		maxRetries: DefaultMaxRetries,
		retryWait:  500 * time.Millisecond,
		logger:     arbor.NewLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get performs a GET request to the API, retrying temporary failures.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		c.logger.Debug().
			Str("url", c.baseURL+path).
			Msg("EODHD API request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(body)),
				Endpoint:   path,
			}
			if !apiErr.Temporary() {
				return backoff.Permanent(apiErr)
			}
			return apiErr
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = c.retryWait
	strategy.MaxElapsedTime = DefaultTimeout

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(strategy, uint64(c.maxRetries)), ctx))
}

// GetRealTimeQuote retrieves the latest quote for a symbol.
// Symbol format: TICKER.EXCHANGE (e.g., "AAPL.US")
func (c *Client) GetRealTimeQuote(ctx context.Context, symbol string) (*Quote, error) {
	var result Quote
	if err := c.get(ctx, "/real-time/"+url.PathEscape(symbol), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetFundamentals retrieves the General and Highlights sections for a symbol.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*Fundamentals, error) {
	params := url.Values{}
	params.Set("filter", "General,Highlights")

	var result Fundamentals
	if err := c.get(ctx, "/fundamentals/"+url.PathEscape(symbol), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetNews retrieves news for one or more symbols.
// Symbols should be in TICKER.EXCHANGE format.
func (c *Client) GetNews(ctx context.Context, symbols []string, opts ...QueryOption) (NewsResponse, error) {
	if len(symbols) == 0 {
		return nil, errors.New("at least one symbol is required")
	}

	params := &queryParams{
		Limit: 50,
	}
	for _, opt := range opts {
		opt(params)
	}

	queryParams := url.Values{}
	queryParams.Set("s", strings.Join(symbols, ","))
	if params.Limit > 0 {
		queryParams.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		queryParams.Set("offset", strconv.Itoa(params.Offset))
	}
	if !params.From.IsZero() {
		queryParams.Set("from", params.From.Format("2006-01-02"))
	}
	if !params.To.IsZero() {
		queryParams.Set("to", params.To.Format("2006-01-02"))
	}

	var result NewsResponse
	if err := c.get(ctx, "/news", queryParams, &result); err != nil {
		return nil, err
	}

	for i := range result {
		if t, ok := parseNewsDate(result[i].DateStr); ok {
			result[i].Date = t
		}
	}

	return result, nil
}
