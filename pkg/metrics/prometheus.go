package metrics

import (
	"sync"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycles         *prometheus.CounterVec
	stageErrors    *prometheus.CounterVec
	trainSeconds   *prometheus.HistogramVec
	trainLoss      *prometheus.GaugeVec
	lastPrediction *prometheus.GaugeVec
	lastAccuracy   *prometheus.GaugeVec
	lastMSE        *prometheus.GaugeVec
	fetches        *prometheus.CounterVec
	fetchedCandles *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

var _ domrepo.Metrics = (*Recorder)(nil)

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// Default returns a process-wide recorder registered with the default
// Prometheus registry.
func Default() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = New(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// New creates a recorder registered with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_prediction_cycles_total",
				Help: "Prediction cycles by outcome",
			},
			[]string{"symbol", "result"},
		),
		stageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_stage_errors_total",
				Help: "Failed prediction cycles by stage",
			},
			[]string{"stage"},
		),
		trainSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincast_training_duration_seconds",
				Help:    "Wall time spent training the model",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"symbol"},
		),
		trainLoss: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_training_final_loss",
				Help: "Training mse of the last epoch",
			},
			[]string{"symbol"},
		),
		lastPrediction: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_last_prediction",
				Help: "Last next-day close prediction",
			},
			[]string{"symbol"},
		),
		lastAccuracy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_last_accuracy_percent",
				Help: "Accuracy (1-mae)*100 of the last evaluation",
			},
			[]string{"symbol"},
		),
		lastMSE: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_last_mse",
				Help: "Scaled test mse of the last evaluation",
			},
			[]string{"symbol"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_upstream_fetches_total",
				Help: "Upstream candle fetches by outcome",
			},
			[]string{"symbol", "result"},
		),
		fetchedCandles: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_upstream_candles",
				Help: "Candles returned by the last successful fetch",
			},
			[]string{"symbol"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	if reg != nil {
		reg.MustRegister(r.cycles, r.stageErrors, r.trainSeconds, r.trainLoss,
			r.lastPrediction, r.lastAccuracy, r.lastMSE, r.fetches, r.fetchedCandles, r.latency)
	}
	return r
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (r *Recorder) RecordCycle(symbol string, err error) {
	r.cycles.WithLabelValues(symbol, result(err)).Inc()
}

func (r *Recorder) RecordStageError(stage string) {
	r.stageErrors.WithLabelValues(stage).Inc()
}

func (r *Recorder) RecordTraining(symbol string, seconds float64, finalLoss float64) {
	r.trainSeconds.WithLabelValues(symbol).Observe(seconds)
	r.trainLoss.WithLabelValues(symbol).Set(finalLoss)
}

func (r *Recorder) RecordResult(res *models.PredictionResult) {
	r.lastPrediction.WithLabelValues(res.Symbol).Set(res.Prediction)
	r.lastAccuracy.WithLabelValues(res.Symbol).Set(res.Accuracy)
	r.lastMSE.WithLabelValues(res.Symbol).Set(res.MSE)
}

func (r *Recorder) RecordFetch(symbol string, candles int, err error) {
	r.fetches.WithLabelValues(symbol, result(err)).Inc()
	if err == nil {
		r.fetchedCandles.WithLabelValues(symbol).Set(float64(candles))
	}
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
