package models

import "time"

// ScalerState holds min-max statistics fitted on a training partition.
type ScalerState struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// TrainReport summarizes one training run.
type TrainReport struct {
	Epochs  int       `json:"epochs"`
	Windows int       `json:"windows"`
	Losses  []float64 `json:"losses"` // training mse per epoch
}

// FinalLoss returns the last epoch loss, or 0 when nothing was trained.
func (r TrainReport) FinalLoss() float64 {
	if len(r.Losses) == 0 {
		return 0
	}
	return r.Losses[len(r.Losses)-1]
}

// ModelMeta is the provenance stored next to trained weights.
type ModelMeta struct {
	Symbol    string      `json:"symbol"`
	TrainedAt time.Time   `json:"trained_at"`
	Scaler    ScalerState `json:"scaler"`
}

// PredictionResult is the outcome of one prediction cycle.
// Accuracy, MSE and MAE are measured on scaled values; Prediction,
// LastClose and MAPE are in price units.
type PredictionResult struct {
	Symbol       string    `json:"symbol"`
	Accuracy     float64   `json:"accuracy"`
	MSE          float64   `json:"mse"`
	MAE          float64   `json:"mae"`
	MAPE         float64   `json:"mape"`
	Prediction   float64   `json:"prediction"`
	LastClose    float64   `json:"last_close"`
	TrainWindows int       `json:"train_windows"`
	TestWindows  int       `json:"test_windows"`
	Epochs       int       `json:"epochs"`
	TrainLoss    float64   `json:"train_loss"`
	TrainedAt    time.Time `json:"trained_at"`
	DurationMS   int64     `json:"duration_ms"`
}

// Forecast is an inference-only prediction from the persisted model.
type Forecast struct {
	Symbol     string    `json:"symbol"`
	Prediction float64   `json:"prediction"`
	LastClose  float64   `json:"last_close"`
	TrainedAt  time.Time `json:"trained_at"`
}
