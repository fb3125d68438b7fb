package features

import (
	"fmt"

	"FinCast/internal/domain/models"
)

// MakeWindows slides a seqLength window over values. For every i in
// [seqLength, len(values)) it emits values[i-seqLength:i] with target values[i].
// It returns exactly len(values)-seqLength windows and never mutates values.
func MakeWindows(values []float64, seqLength int) ([][]float64, []float64, error) {
	if seqLength < 1 {
		return nil, nil, fmt.Errorf("seq_length %d: %w", seqLength, models.ErrInsufficientData)
	}
	if len(values) <= seqLength {
		return nil, nil, fmt.Errorf("need more than %d values, got %d: %w", seqLength, len(values), models.ErrInsufficientData)
	}
	n := len(values) - seqLength
	windows := make([][]float64, 0, n)
	targets := make([]float64, 0, n)
	for i := seqLength; i < len(values); i++ {
		w := make([]float64, seqLength)
		copy(w, values[i-seqLength:i])
		windows = append(windows, w)
		targets = append(targets, values[i])
	}
	return windows, targets, nil
}

// MakeWindowsWithContext builds one window per element of values, taking the
// lookback for the first elements from the tail of history. Targets are
// exactly values, so none of them overlaps history.
func MakeWindowsWithContext(history, values []float64, seqLength int) ([][]float64, []float64, error) {
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("no values to window: %w", models.ErrInsufficientData)
	}
	if len(history) < seqLength {
		return nil, nil, fmt.Errorf("need %d history values, got %d: %w", seqLength, len(history), models.ErrInsufficientData)
	}
	joined := make([]float64, 0, seqLength+len(values))
	joined = append(joined, history[len(history)-seqLength:]...)
	joined = append(joined, values...)
	return MakeWindows(joined, seqLength)
}

// LastWindow returns a copy of the trailing seqLength values, the input of a
// one-step-ahead forecast.
func LastWindow(values []float64, seqLength int) ([]float64, error) {
	if seqLength < 1 || len(values) < seqLength {
		return nil, fmt.Errorf("need %d values for forecast window, got %d: %w", seqLength, len(values), models.ErrInsufficientData)
	}
	w := make([]float64, seqLength)
	copy(w, values[len(values)-seqLength:])
	return w, nil
}
