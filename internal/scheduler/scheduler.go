package scheduler

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	applogger "FinCast/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Refresher re-fetches candles and retrains; zero times mean the configured lookback.
type Refresher interface {
	Refresh(ctx context.Context, symbol string, from, to time.Time) (*models.PredictionResult, error)
}

// Scheduler runs a periodic refresh of the configured symbol.
type Scheduler struct {
	cron    *cron.Cron
	refresh Refresher
	symbol  string
	timeout time.Duration
	l       *applogger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler using standard 5-field cron specs in UTC. A run
// still in progress when the next one fires is skipped.
func New(refresh Refresher, symbol string, timeout time.Duration, l *applogger.Logger) *Scheduler {
	if l == nil {
		l = applogger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger{l}), cron.SkipIfStillRunning(cronLogger{l})),
			cron.WithLogger(cronLogger{l}),
		),
		refresh: refresh,
		symbol:  symbol,
		timeout: timeout,
		l:       l,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds the refresh job for spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.RunNow); err != nil {
		return fmt.Errorf("register refresh %q: %w", spec, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started", applogger.Int("jobs", len(s.cron.Entries())))
}

// Stop cancels a running refresh and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.l.Info("scheduler stopped")
}

// Next returns the next scheduled run, zero when nothing is registered.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunNow executes one refresh immediately.
func (s *Scheduler) RunNow() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.l.Info("scheduled refresh", applogger.String("symbol", s.symbol))
	res, err := s.refresh.Refresh(ctx, s.symbol, time.Time{}, time.Time{})
	if err != nil {
		s.l.Error("scheduled refresh failed", applogger.String("symbol", s.symbol), applogger.Error(err))
		return
	}
	s.l.Info("scheduled refresh done",
		applogger.String("symbol", res.Symbol),
		applogger.Float64("prediction", res.Prediction),
		applogger.Float64("accuracy", res.Accuracy))
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct{ l *applogger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron "+msg, applogger.Any("kv", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron "+msg, applogger.Error(err), applogger.Any("kv", keysAndValues))
}
