package repository

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/service"
)

// CandleProvider fetches raw daily candles from an upstream market data API.
type CandleProvider interface {
	FetchCandles(ctx context.Context, symbol string, res Resolution, from, to time.Time) ([]models.Candle, error)
}

// SeriesStore persists one normalized series per symbol with overwrite semantics.
type SeriesStore interface {
	Save(ctx context.Context, s models.Series) error
	Load(ctx context.Context, symbol string) (models.Series, error)
}

// ModelStore persists the latest trained model artifact.
type ModelStore interface {
	Save(ctx context.Context, m service.SequenceModel) error
	Load(ctx context.Context) (service.SequenceModel, error)
}

// ResultPublisher emits finished prediction results to downstream consumers.
type ResultPublisher interface {
	Publish(ctx context.Context, r *models.PredictionResult) error
	Close() error
}

// RunRecorder keeps an audit trail of prediction cycles.
type RunRecorder interface {
	RecordRun(ctx context.Context, r *models.PredictionResult, runErr error) error
	Close() error
}

type Metrics interface {
	RecordCycle(symbol string, err error)
	RecordStageError(stage string)
	RecordTraining(symbol string, seconds float64, finalLoss float64)
	RecordResult(r *models.PredictionResult)
	RecordFetch(symbol string, candles int, err error)
	RecordLatency(op string, seconds float64)
}

// ResultCache mirrors the latest result for other replicas and guards the
// prediction cycle with a TTL lock.
type ResultCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
