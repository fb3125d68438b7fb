package features

import (
	"fmt"

	"FinCast/internal/domain/models"
)

// Scaler is a min-max normalizer. It is fitted once on a training
// partition and reapplied, never refitted, everywhere else.
type Scaler struct {
	state models.ScalerState
}

// Fit computes min and max over train.
func Fit(train []float64) (*Scaler, error) {
	if len(train) == 0 {
		return nil, fmt.Errorf("fit scaler on empty partition: %w", models.ErrInsufficientData)
	}
	lo, hi := train[0], train[0]
	for _, v := range train[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return NewScaler(models.ScalerState{Min: lo, Max: hi})
}

// NewScaler restores a scaler from persisted state.
func NewScaler(st models.ScalerState) (*Scaler, error) {
	if st.Max == st.Min {
		return nil, fmt.Errorf("min == max == %g: %w", st.Min, models.ErrDegenerateSeries)
	}
	return &Scaler{state: st}, nil
}

// State returns the fitted statistics.
func (s *Scaler) State() models.ScalerState { return s.state }

// Transform maps values to (v-min)/(max-min). Values outside the fitted
// range are extrapolated, not clamped.
func (s *Scaler) Transform(values []float64) []float64 {
	out := make([]float64, len(values))
	span := s.state.Max - s.state.Min
	for i, v := range values {
		out[i] = (v - s.state.Min) / span
	}
	return out
}

// InverseTransform maps scaled values back to original units.
func (s *Scaler) InverseTransform(scaled []float64) []float64 {
	out := make([]float64, len(scaled))
	for i, v := range scaled {
		out[i] = s.InverseValue(v)
	}
	return out
}

// InverseValue maps a single scaled value back to original units.
func (s *Scaler) InverseValue(v float64) float64 {
	return v*(s.state.Max-s.state.Min) + s.state.Min
}
