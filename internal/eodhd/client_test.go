package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL), WithRetry(2, time.Millisecond), WithRateLimit(100))
}

func TestClient_GetRealTimeQuote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/real-time/ACME.US", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_token"))
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		w.Write([]byte(`{"code":"ACME.US","timestamp":1792411200,"close":104.5,"previousClose":"100","change":4.5,"change_p":"NA"}`))
	})

	quote, err := client.GetRealTimeQuote(context.Background(), "ACME.US")
	require.NoError(t, err)
	assert.Equal(t, 104.5, quote.Close.Float64())
	assert.Equal(t, 100.0, quote.PreviousClose.Float64())
	assert.Equal(t, 0.0, quote.ChangePercent.Float64())
	assert.Equal(t, int64(1792411200), quote.Time().Unix())
}

func TestClient_GetFundamentals(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fundamentals/ACME.US", r.URL.Path)
		assert.Equal(t, "General,Highlights", r.URL.Query().Get("filter"))
		w.Write([]byte(`{
			"General": {"Code":"ACME","Name":"Acme Corp","Exchange":"NYSE","Sector":"Healthcare","Industry":"Biotechnology"},
			"Highlights": {"MarketCapitalization": 5300000000, "WallStreetTargetPrice": "NA"}
		}`))
	})

	f, err := client.GetFundamentals(context.Background(), "ACME.US")
	require.NoError(t, err)
	require.NotNil(t, f.General)
	assert.Equal(t, "Acme Corp", f.General.Name)
	assert.Equal(t, "Biotechnology", f.General.Industry)
	require.NotNil(t, f.Highlights)
	assert.Equal(t, 5.3e9, f.Highlights.MarketCapitalization.Float64())
	assert.Zero(t, f.Highlights.WallStreetTargetPrice.Float64())
}

func TestClient_GetNews(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/news", r.URL.Path)
		assert.Equal(t, "ACME.US,ORBT.US", q.Get("s"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "2026-10-17", q.Get("from"))
		assert.Equal(t, "2026-10-19", q.Get("to"))
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"date": "2026-10-19T09:30:00+00:00", "title": "Acme wins approval", "link": "https://news.example.com/acme", "symbols": []string{"ACME.US"}},
			{"date": "garbage", "title": "Orbit update", "link": "https://news.example.com/orbt"},
		})
	})

	to := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	news, err := client.GetNews(context.Background(), []string{"ACME.US", "ORBT.US"}, WithLimit(5), WithDateRange(to.Add(-48*time.Hour), to))
	require.NoError(t, err)
	require.Len(t, news, 2)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC), news[0].Date.UTC())
	assert.Equal(t, []string{"ACME.US"}, news[0].Symbols)
	assert.True(t, news[1].Date.IsZero())

	_, err = client.GetNews(context.Background(), nil)
	assert.Error(t, err)
}

func TestClient_Errors(t *testing.T) {
	t.Run("client error is not retried", func(t *testing.T) {
		var calls int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("invalid api token"))
		})

		_, err := client.GetRealTimeQuote(context.Background(), "ACME.US")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "invalid api token", apiErr.Message)
		assert.False(t, apiErr.Temporary())
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("server errors are retried", func(t *testing.T) {
		var calls int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"code":"ACME.US","close":10}`))
		})

		quote, err := client.GetRealTimeQuote(context.Background(), "ACME.US")
		require.NoError(t, err)
		assert.Equal(t, 10.0, quote.Close.Float64())
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("malformed body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{`))
		})
		_, err := client.GetRealTimeQuote(context.Background(), "ACME.US")
		assert.Error(t, err)
	})
}

func TestNumber_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{`12.5`, 12.5},
		{`"7.25"`, 7.25},
		{`"NA"`, 0},
		{`null`, 0},
		{`""`, 0},
		{`"n/a"`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var n Number
			require.NoError(t, json.Unmarshal([]byte(tt.in), &n))
			assert.Equal(t, tt.want, n.Float64())
		})
	}
}
