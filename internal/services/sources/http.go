// -----------------------------------------------------------------------
// HTTP fetcher shared by the web source adapters.
// Every request waits on the source's limiter and retries transient
// failures with exponential backoff.
// -----------------------------------------------------------------------

package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/specula/internal/common"
)

const (
	defaultRetryInterval = 500 * time.Millisecond
	defaultMaxElapsed    = 30 * time.Second
	maxBodyBytes         = 10 << 20
)

// HTTPStatusError is returned for any non-2xx response
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether a retry could plausibly succeed
func (e *HTTPStatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Fetcher performs rate-limited GET requests with retries
type Fetcher struct {
	httpClient    *http.Client
	limiter       *rate.Limiter
	userAgent     string
	maxRetries    int
	retryInterval time.Duration
	maxElapsed    time.Duration
	logger        arbor.ILogger
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = hc
	}
}

// WithRateLimit sets the allowed requests per second (<= 0 disables limiting)
func WithRateLimit(perSecond float64) FetcherOption {
	return func(f *Fetcher) {
		f.limiter = newLimiter(perSecond)
	}
}

// WithMaxRetries sets how many times a transient failure is retried
func WithMaxRetries(n int) FetcherOption {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRetries = n
		}
	}
}

// WithRetryInterval sets the initial backoff interval
func WithRetryInterval(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.retryInterval = d
		}
	}
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// NewFetcher creates a fetcher from the [sources] config section
func NewFetcher(cfg common.SourcesConfig, logger arbor.ILogger, opts ...FetcherOption) *Fetcher {
	timeout, err := cfg.RequestTimeoutDuration()
	if err != nil {
		timeout = 30 * time.Second
	}

	f := &Fetcher{
		httpClient:    &http.Client{Timeout: timeout},
		limiter:       newLimiter(cfg.RateLimit),
		userAgent:     cfg.UserAgent,
		maxRetries:    cfg.MaxRetries,
		retryInterval: defaultRetryInterval,
		maxElapsed:    defaultMaxElapsed,
		logger:        logger,
	}
	if f.maxRetries < 0 {
		f.maxRetries = 0
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Get fetches rawURL and returns the response body
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}

		resp, err := f.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := &HTTPStatusError{StatusCode: resp.StatusCode, URL: rawURL}
			if !statusErr.Retryable() {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = f.retryInterval
	strategy.MaxElapsedTime = f.maxElapsed

	policy := backoff.WithContext(backoff.WithMaxRetries(strategy, uint64(f.maxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		f.logger.Debug().
			Str("url", rawURL).
			Dur("wait", wait).
			Err(err).
			Msg("Request failed, retrying")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	return body, nil
}
