package finnhub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
)

func newTestClient(url string) *Client {
	return New(Config{BaseURL: url, APIKey: "secret", Timeout: 2 * time.Second}, nil)
}

func TestFetchCandlesOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/stock/candle" || q.Get("symbol") != "AAPL" || q.Get("resolution") != "D" || q.Get("token") != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if q.Get("from") != "1700000000" || q.Get("to") != "1700172800" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"s":"ok","t":[1700086400,1700000000],"o":[2,1],"h":[2.5,1.5],"l":[1.5,0.5],"c":[2.2,1.1],"v":[200,100]}`))
	}))
	defer srv.Close()

	candles, err := newTestClient(srv.URL).FetchCandles(context.Background(), "AAPL", drepo.ResDaily,
		time.Unix(1700000000, 0), time.Unix(1700172800, 0))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if c := candles[1]; c.Timestamp != 1700000000 || c.Open != 1 || c.High != 1.5 || c.Low != 0.5 || c.Close != 1.1 || c.Volume != 100 {
		t.Fatalf("columns mapped incorrectly: %+v", c)
	}
}

func TestFetchCandlesRateLimited(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", RetryMaxTime: 3 * time.Second}, nil)
	_, err := c.FetchCandles(context.Background(), "AAPL", drepo.ResDaily, time.Now().AddDate(0, 0, -10), time.Now())
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("429 must not be retried, got %d calls", calls)
	}
}

func TestFetchCandlesNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"s":"no_data"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchCandles(context.Background(), "ZZZZ", drepo.ResDaily, time.Now().AddDate(0, 0, -10), time.Now())
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestFetchCandlesColumnMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"s":"ok","t":[1,2],"o":[1],"h":[1,2],"l":[1,2],"c":[1,2],"v":[1,2]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchCandles(context.Background(), "AAPL", drepo.ResDaily, time.Now().AddDate(0, 0, -10), time.Now())
	if err == nil || errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("expected a decode error, got %v", err)
	}
}
