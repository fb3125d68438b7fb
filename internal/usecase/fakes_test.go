package usecase

import (
	"context"
	"math"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/domain/service"
	"FinCast/internal/services/sequence"
)

type fakeProvider struct {
	candles []models.Candle
	err     error
	calls   int
	from    time.Time
	to      time.Time
}

func (p *fakeProvider) FetchCandles(_ context.Context, _ string, _ domrepo.Resolution, from, to time.Time) ([]models.Candle, error) {
	p.calls++
	p.from, p.to = from, to
	return p.candles, p.err
}

type memSeriesStore struct {
	mu    sync.Mutex
	data  map[string]models.Series
	saves int
}

func newMemSeriesStore() *memSeriesStore {
	return &memSeriesStore{data: make(map[string]models.Series)}
}

func (s *memSeriesStore) Save(_ context.Context, series models.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.data[series.Symbol] = series
	return nil
}

func (s *memSeriesStore) Load(_ context.Context, symbol string) (models.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	series, ok := s.data[symbol]
	if !ok {
		return models.Series{}, models.ErrSeriesNotFound
	}
	return series, nil
}

type memModelStore struct {
	data  []byte
	saves int
}

func (s *memModelStore) Save(_ context.Context, m service.SequenceModel) error {
	b, err := m.MarshalJSON()
	if err != nil {
		return err
	}
	s.data = b
	s.saves++
	return nil
}

func (s *memModelStore) Load(_ context.Context) (service.SequenceModel, error) {
	if s.data == nil {
		return nil, models.ErrModelLoad
	}
	return sequence.Decode(s.data)
}

type nopMetrics struct {
	cycles      int
	stageErrors []string
	fetches     int
}

func (m *nopMetrics) RecordCycle(string, error)               { m.cycles++ }
func (m *nopMetrics) RecordStageError(stage string)           { m.stageErrors = append(m.stageErrors, stage) }
func (m *nopMetrics) RecordTraining(string, float64, float64) {}
func (m *nopMetrics) RecordResult(*models.PredictionResult)   {}
func (m *nopMetrics) RecordFetch(string, int, error)          { m.fetches++ }
func (m *nopMetrics) RecordLatency(string, float64)           {}

type runLog struct {
	mu   sync.Mutex
	runs []error
	pubs []*models.PredictionResult
}

func (r *runLog) RecordRun(_ context.Context, _ *models.PredictionResult, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, err)
	return nil
}

func (r *runLog) Publish(_ context.Context, res *models.PredictionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pubs = append(r.pubs, res)
	return nil
}

func (r *runLog) Close() error { return nil }

// dailyCandles builds n daily candles of a trending sine wave.
func dailyCandles(n int) []models.Candle {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		c := 100 + 10*math.Sin(float64(i)/8) + 0.05*float64(i)
		out[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i).Unix(),
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1e6,
		}
	}
	return out
}

func smallModel() sequence.Config {
	return sequence.Config{SeqLength: 30, Hidden: 8, LearningRate: 0.01, ClipNorm: 5, Seed: 42}
}
