package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable means the candle provider returned no usable data.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrInsufficientData means a series is too short to build windows.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerateSeries means the training partition has zero variance.
	ErrDegenerateSeries = errors.New("degenerate series")
	// ErrShapeMismatch means window and model dimensions disagree.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrModelLoad means the model artifact is missing or corrupt.
	ErrModelLoad = errors.New("model load failure")
	// ErrBusy means another replica holds the training lock.
	ErrBusy = errors.New("prediction cycle busy")
	// ErrSeriesNotFound means nothing is stored for the symbol yet.
	ErrSeriesNotFound = errors.New("series not found")
)

// Stage names a step of the prediction cycle.
type Stage string

const (
	StageLoading     Stage = "loading"
	StageSplitting   Stage = "splitting"
	StageTraining    Stage = "training"
	StageEvaluating  Stage = "evaluating"
	StageForecasting Stage = "forecasting"
)

// CycleError tags a failed prediction cycle with the stage that aborted it.
type CycleError struct {
	Stage Stage
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// StageOf returns the failed stage of err, or "" when err is not a CycleError.
func StageOf(err error) Stage {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Stage
	}
	return ""
}
