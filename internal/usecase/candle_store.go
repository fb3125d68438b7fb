package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"
)

// CandleStore fetches daily candles from the provider, normalizes them and
// persists the resulting series.
type CandleStore struct {
	provider domrepo.CandleProvider
	store    domrepo.SeriesStore
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewCandleStore(provider domrepo.CandleProvider, store domrepo.SeriesStore, metrics domrepo.Metrics) *CandleStore {
	return &CandleStore{provider: provider, store: store, metrics: metrics}
}

// SetLogger injects a structured logger.
func (s *CandleStore) SetLogger(l *applogger.Logger) { s.l = l }

// FetchAndStore calls the provider once for [from, to] and overwrites the
// stored series. Nothing is persisted when the provider fails or returns
// no rows; the error then wraps ErrUpstreamUnavailable.
func (s *CandleStore) FetchAndStore(ctx context.Context, symbol string, res domrepo.Resolution, from, to time.Time) (models.Series, error) {
	if symbol == "" {
		return models.Series{}, fmt.Errorf("symbol required")
	}
	if from.After(to) {
		return models.Series{}, fmt.Errorf("from must be <= to")
	}
	if !domrepo.IsValidResolution(res) {
		res = domrepo.DefaultResolution()
	}

	start := time.Now()
	candles, err := s.provider.FetchCandles(ctx, symbol, res, from, to)
	s.metrics.RecordLatency("fetch", time.Since(start).Seconds())
	if err == nil && len(candles) == 0 {
		err = fmt.Errorf("provider returned no candles: %w", models.ErrUpstreamUnavailable)
	}
	s.metrics.RecordFetch(symbol, len(candles), err)
	if err != nil {
		if !errors.Is(err, models.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
		}
		s.warn("candle fetch failed", applogger.String("symbol", symbol), applogger.Error(err))
		return models.Series{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	series := models.NewSeries(symbol, string(res), candles)
	if err := s.store.Save(ctx, series); err != nil {
		return models.Series{}, fmt.Errorf("store %s: %w", symbol, err)
	}
	if s.l != nil {
		first := series.Candles[0]
		last, _ := series.Last()
		s.l.Info("candles stored",
			applogger.String("symbol", symbol),
			applogger.Int("rows", series.Len()),
			applogger.String("first", first.Time().Format(time.DateOnly)),
			applogger.String("last", last.Time().Format(time.DateOnly)),
		)
	}
	return series, nil
}

// Load returns the stored series for symbol, re-normalized.
func (s *CandleStore) Load(ctx context.Context, symbol string) (models.Series, error) {
	series, err := s.store.Load(ctx, symbol)
	if err != nil {
		return models.Series{}, fmt.Errorf("load %s: %w", symbol, err)
	}
	return models.NewSeries(series.Symbol, series.Resolution, series.Candles), nil
}

func (s *CandleStore) warn(msg string, fields ...applogger.Field) {
	if s.l != nil {
		s.l.Warn(msg, fields...)
	}
}

// Import normalizes candles read from a file and overwrites the stored series.
func (s *CandleStore) Import(ctx context.Context, symbol string, res domrepo.Resolution, candles []models.Candle) (models.Series, error) {
	if len(candles) == 0 {
		return models.Series{}, fmt.Errorf("import %s: %w", symbol, models.ErrInsufficientData)
	}
	series := models.NewSeries(symbol, string(res), candles)
	if err := s.store.Save(ctx, series); err != nil {
		return models.Series{}, fmt.Errorf("store %s: %w", symbol, err)
	}
	return series, nil
}
