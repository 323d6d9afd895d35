package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
)

func newTestFetcher(opts ...FetcherOption) *Fetcher {
	cfg := common.SourcesConfig{RequestTimeout: "5s", UserAgent: "specula-test"}
	opts = append([]FetcherOption{WithRateLimit(0), WithRetryInterval(time.Millisecond)}, opts...)
	return NewFetcher(cfg, arbor.NewLogger(), opts...)
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "specula-test", r.Header.Get("User-Agent"))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(WithMaxRetries(3)).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetcher_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher(WithMaxRetries(3)).Get(context.Background(), srv.URL)
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetcher_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestFetcher(WithMaxRetries(2)).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetcher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher().Get(ctx, "http://127.0.0.1:1/unreachable")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHTTPStatusError_Retryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := &HTTPStatusError{StatusCode: tt.status, URL: "https://example.com"}
			assert.Equal(t, tt.want, err.Retryable())
		})
	}
}
