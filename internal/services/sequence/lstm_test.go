package sequence

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"FinCast/internal/domain/models"
)

func sineWindows(n, seqLen int) ([][]float64, []float64) {
	values := make([]float64, n+seqLen)
	for i := range values {
		values[i] = 0.5 + 0.4*math.Sin(float64(i)/4)
	}
	windows := make([][]float64, n)
	targets := make([]float64, n)
	for i := 0; i < n; i++ {
		windows[i] = values[i : i+seqLen]
		targets[i] = values[i+seqLen]
	}
	return windows, targets
}

func smallConfig() Config {
	return Config{SeqLength: 6, Hidden: 8, LearningRate: 0.01, Seed: 7}
}

func TestTrainLossDecreases(t *testing.T) {
	windows, targets := sineWindows(120, 6)
	m := New(smallConfig())
	report, err := m.Train(context.Background(), windows, targets, 25, 16)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if report.Epochs != 25 || len(report.Losses) != 25 {
		t.Fatalf("unexpected report %+v", report)
	}
	first, last := report.Losses[0], report.FinalLoss()
	if !(last < first) {
		t.Fatalf("loss did not decrease: first=%v last=%v", first, last)
	}
}

func TestSeededInitIsReproducible(t *testing.T) {
	windows, _ := sineWindows(5, 6)
	a, _ := New(smallConfig()).Predict(windows)
	b, _ := New(smallConfig()).Predict(windows)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed gave different outputs at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestShapeMismatch(t *testing.T) {
	m := New(smallConfig())
	if _, err := m.Predict([][]float64{{1, 2, 3}}); !errors.Is(err, models.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	windows, targets := sineWindows(4, 6)
	if _, err := m.Train(context.Background(), windows, targets[:3], 1, 2); !errors.Is(err, models.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if _, err := m.Train(context.Background(), nil, nil, 1, 2); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestTrainHonoursContext(t *testing.T) {
	windows, targets := sineWindows(40, 6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(smallConfig()).Train(ctx, windows, targets, 3, 8); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	windows, targets := sineWindows(40, 6)
	m := New(smallConfig())
	if _, err := m.Train(context.Background(), windows, targets, 3, 8); err != nil {
		t.Fatalf("train: %v", err)
	}
	meta := models.ModelMeta{
		Symbol:    "AAPL",
		TrainedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Scaler:    models.ScalerState{Min: 90, Max: 180},
	}
	m.SetMeta(meta)

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if restored.SeqLength() != 6 {
		t.Fatalf("seq length = %d", restored.SeqLength())
	}
	if got := restored.Meta(); got.Symbol != meta.Symbol || !got.TrainedAt.Equal(meta.TrainedAt) || got.Scaler != meta.Scaler {
		t.Fatalf("meta mismatch: %+v", got)
	}

	want, _ := m.Predict(windows)
	got, err := restored.Predict(windows)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for i := range want {
		if math.Abs(want[i]-got[i]) > 1e-12 {
			t.Fatalf("prediction %d differs: %v vs %v", i, want[i], got[i])
		}
	}
}

func TestDecodeCorrupt(t *testing.T) {
	good, err := json.Marshal(New(smallConfig()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var truncatedKernel map[string]any
	if err := json.Unmarshal(good, &truncatedKernel); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	truncatedKernel["kernel"] = []float64{0.1}
	badShape, _ := json.Marshal(truncatedKernel)

	for name, data := range map[string][]byte{
		"garbage":   []byte("not json"),
		"truncated": good[:len(good)/2],
		"format":    []byte(`{"format":"other","features":1,"seq_length":6,"hidden":8}`),
		"shape":     badShape,
	} {
		if _, err := Decode(data); !errors.Is(err, models.ErrModelLoad) {
			t.Fatalf("%s: expected ErrModelLoad, got %v", name, err)
		}
	}
}
