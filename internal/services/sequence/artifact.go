package sequence

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/service"
)

const artifactFormat = "fincast.lstm.v1"

// artifact is the on-disk form of a trained network.
type artifact struct {
	Format       string             `json:"format"`
	SeqLength    int                `json:"seq_length"`
	Features     int                `json:"features"`
	Hidden       int                `json:"hidden"`
	LearningRate float64            `json:"learning_rate"`
	Kernel       []float64          `json:"kernel"`
	Recurrent    []float64          `json:"recurrent_kernel"`
	Bias         []float64          `json:"bias"`
	DenseKernel  []float64          `json:"dense_kernel"`
	DenseBias    float64            `json:"dense_bias"`
	Symbol       string             `json:"symbol"`
	TrainedAt    time.Time          `json:"trained_at"`
	Scaler       models.ScalerState `json:"scaler"`
}

// MarshalJSON encodes architecture, weights and metadata.
func (m *LSTM) MarshalJSON() ([]byte, error) {
	k, r, b, d, db := m.layout()
	a := artifact{
		Format:       artifactFormat,
		SeqLength:    m.cfg.SeqLength,
		Features:     1,
		Hidden:       m.cfg.Hidden,
		LearningRate: m.cfg.LearningRate,
		Kernel:       m.theta[k:r],
		Recurrent:    m.theta[r:b],
		Bias:         m.theta[b:d],
		DenseKernel:  m.theta[d:db],
		DenseBias:    m.theta[db],
		Symbol:       m.meta.Symbol,
		TrainedAt:    m.meta.TrainedAt,
		Scaler:       m.meta.Scaler,
	}
	return json.Marshal(a)
}

// Decode restores a network written by MarshalJSON. Any malformed or
// inconsistent artifact yields ErrModelLoad.
func Decode(data []byte) (service.SequenceModel, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model artifact: %v: %w", err, models.ErrModelLoad)
	}
	if a.Format != artifactFormat {
		return nil, fmt.Errorf("unknown artifact format %q: %w", a.Format, models.ErrModelLoad)
	}
	if a.Features != 1 || a.SeqLength < 1 || a.Hidden < 1 {
		return nil, fmt.Errorf("bad architecture features=%d seq_length=%d hidden=%d: %w",
			a.Features, a.SeqLength, a.Hidden, models.ErrModelLoad)
	}
	h := a.Hidden
	if len(a.Kernel) != 4*h || len(a.Recurrent) != 4*h*h || len(a.Bias) != 4*h || len(a.DenseKernel) != h {
		return nil, fmt.Errorf("weight shapes do not match hidden=%d: %w", h, models.ErrModelLoad)
	}

	cfg := DefaultConfig()
	cfg.SeqLength = a.SeqLength
	cfg.Hidden = h
	if a.LearningRate > 0 {
		cfg.LearningRate = a.LearningRate
	}
	theta := make([]float64, 0, paramCount(h))
	theta = append(theta, a.Kernel...)
	theta = append(theta, a.Recurrent...)
	theta = append(theta, a.Bias...)
	theta = append(theta, a.DenseKernel...)
	theta = append(theta, a.DenseBias)
	for _, w := range theta {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("non-finite weight: %w", models.ErrModelLoad)
		}
	}

	return &LSTM{
		cfg:   cfg,
		theta: theta,
		adam:  newAdam(len(theta), cfg.LearningRate),
		meta:  models.ModelMeta{Symbol: a.Symbol, TrainedAt: a.TrainedAt, Scaler: a.Scaler},
	}, nil
}

var _ service.ModelDecoder = Decode
