package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"FinCast/internal/domain/models"
)

func TestSQLiteRunRecorder(t *testing.T) {
	rec, err := NewSQLiteRunRecorder(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rec.Close()
	ctx := context.Background()

	ok := &models.PredictionResult{Symbol: "AAPL", Accuracy: 97.5, MSE: 0.001, MAE: 0.025, Prediction: 189.3, DurationMS: 1200}
	if err := rec.RecordRun(ctx, ok, nil); err != nil {
		t.Fatalf("record ok: %v", err)
	}
	failed := &models.CycleError{Stage: models.StageLoading, Err: models.ErrUpstreamUnavailable}
	if err := rec.RecordRun(ctx, &models.PredictionResult{Symbol: "AAPL"}, failed); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	runs, err := rec.RecentRuns(ctx, "AAPL", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Status != "error" || runs[0].Stage != "loading" {
		t.Fatalf("unexpected failure row %+v", runs[0])
	}
	if runs[1].Status != "ok" || runs[1].Prediction != 189.3 || runs[1].Accuracy != 97.5 {
		t.Fatalf("unexpected success row %+v", runs[1])
	}
	if !errors.Is(failed, models.ErrUpstreamUnavailable) {
		t.Fatalf("cycle error must unwrap")
	}
}
