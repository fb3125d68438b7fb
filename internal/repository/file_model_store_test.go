package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/services/sequence"
)

func TestFileModelStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "latest.json")
	store := NewFileModelStore(path, sequence.Decode)

	m := sequence.New(sequence.Config{SeqLength: 4, Hidden: 3, Seed: 1})
	m.SetMeta(models.ModelMeta{Symbol: "AAPL", TrainedAt: time.Unix(1700000000, 0).UTC(), Scaler: models.ScalerState{Min: 1, Max: 2}})
	if err := store.Save(context.Background(), m); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	window := [][]float64{{0.1, 0.2, 0.3, 0.4}}
	want, _ := m.Predict(window)
	got, err := loaded.Predict(window)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if want[0] != got[0] {
		t.Fatalf("loaded model predicts %v, want %v", got[0], want[0])
	}
	if loaded.Meta().Scaler.Max != 2 {
		t.Fatalf("scaler lost: %+v", loaded.Meta())
	}
}

func TestFileModelStoreErrors(t *testing.T) {
	dir := t.TempDir()
	missing := NewFileModelStore(filepath.Join(dir, "none.json"), sequence.Decode)
	if _, err := missing.Load(context.Background()); !errors.Is(err, models.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad for missing file, got %v", err)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte(`{"format":`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFileModelStore(corrupt, sequence.Decode).Load(context.Background()); !errors.Is(err, models.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad for corrupt file, got %v", err)
	}
}
