package service

import (
	"context"
	"encoding/json"

	"FinCast/internal/domain/models"
)

// SequenceModel is a recurrent regressor mapping a window of scaled values
// to the next scaled value.
type SequenceModel interface {
	json.Marshaler

	// Train fits the weights in place. It must not be called concurrently with Predict.
	Train(ctx context.Context, windows [][]float64, targets []float64, epochs, batchSize int) (models.TrainReport, error)
	// Predict returns one value per window; each window must be SeqLength long.
	Predict(windows [][]float64) ([]float64, error)
	SeqLength() int
	Meta() models.ModelMeta
	SetMeta(m models.ModelMeta)
}

// ModelFactory builds a fresh, untrained model.
type ModelFactory func() SequenceModel

// ModelDecoder restores a model from its serialized artifact.
type ModelDecoder func(data []byte) (SequenceModel, error)
