package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FinCast/internal/domain/models"
)

type countingRefresher struct {
	mu      sync.Mutex
	symbols []string
	err     error
}

func (r *countingRefresher) Refresh(ctx context.Context, symbol string, from, to time.Time) (*models.PredictionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("refresh must run under a timeout")
	}
	if !from.IsZero() || !to.IsZero() {
		return nil, errors.New("scheduled refresh uses the configured lookback")
	}
	r.symbols = append(r.symbols, symbol)
	if r.err != nil {
		return nil, r.err
	}
	return &models.PredictionResult{Symbol: symbol}, nil
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := New(&countingRefresher{}, "AAPL", time.Minute, nil)
	if err := s.Register("every day at ten"); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
	if err := s.Register("0 22 * * 1-5"); err != nil {
		t.Fatalf("register: %v", err)
	}
	s.Start()
	defer s.Stop()
	next := s.Next()
	if next.IsZero() {
		t.Fatalf("expected a next run time")
	}
	if wd := next.Weekday(); wd == time.Saturday || wd == time.Sunday || next.Hour() != 22 {
		t.Fatalf("unexpected next run %v", next)
	}
}

func TestRunNowRefreshesSymbol(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, "AAPL", time.Minute, nil)
	s.RunNow()
	if len(r.symbols) != 1 || r.symbols[0] != "AAPL" {
		t.Fatalf("refresh calls: %v", r.symbols)
	}

	r.err = models.ErrUpstreamUnavailable
	s.RunNow()
	if len(r.symbols) != 2 {
		t.Fatalf("failed refresh must still be attempted")
	}
}
