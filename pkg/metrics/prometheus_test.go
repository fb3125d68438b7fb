package metrics

import (
	"errors"
	"testing"

	"FinCast/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if c := out.GetCounter(); c != nil {
		return c.GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordCycle("AAPL", nil)
	r.RecordCycle("AAPL", errors.New("boom"))
	r.RecordCycle("AAPL", nil)
	if got := value(t, r.cycles.WithLabelValues("AAPL", "ok")); got != 2 {
		t.Fatalf("ok cycles = %v", got)
	}

	r.RecordResult(&models.PredictionResult{Symbol: "AAPL", Prediction: 190.5, Accuracy: 96.2, MSE: 0.003})
	if got := value(t, r.lastPrediction.WithLabelValues("AAPL")); got != 190.5 {
		t.Fatalf("last prediction = %v", got)
	}

	r.RecordFetch("AAPL", 0, errors.New("429"))
	r.RecordFetch("AAPL", 250, nil)
	if got := value(t, r.fetchedCandles.WithLabelValues("AAPL")); got != 250 {
		t.Fatalf("fetched candles = %v", got)
	}
	if got := value(t, r.fetches.WithLabelValues("AAPL", "error")); got != 1 {
		t.Fatalf("failed fetches = %v", got)
	}
}
