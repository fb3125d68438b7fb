package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/domain/service"
	"FinCast/internal/services/evaluation"
	"FinCast/internal/services/features"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/util"
)

// PredictionConfig holds the knobs of one prediction cycle.
type PredictionConfig struct {
	Symbol       string
	Resolution   domrepo.Resolution
	LookbackDays int
	Split        features.SplitPolicy
	Epochs       int
	BatchSize    int
	TrainTimeout time.Duration
	ResultTTL    time.Duration
	LockTTL      time.Duration
}

// PipelineContext is the process state shared by the HTTP handlers and the
// scheduler: the last series used, the model serving Forecast and the most
// recent successful result.
type PipelineContext struct {
	Series models.Series
	Model  service.SequenceModel
	Last   *models.PredictionResult
}

// PredictionService runs load -> split -> train -> evaluate -> forecast
// cycles. Cycles are serialized in-process and, when a cache is set, across
// replicas through a TTL lock.
type PredictionService struct {
	cfg       PredictionConfig
	candles   *CandleStore
	store     domrepo.ModelStore
	newModel  service.ModelFactory
	metrics   domrepo.Metrics
	recorder  domrepo.RunRecorder
	publisher domrepo.ResultPublisher
	cache     domrepo.ResultCache
	l         *applogger.Logger

	cycleMu  sync.Mutex
	stateMu  sync.RWMutex
	pc       PipelineContext
	lockPoll time.Duration
	now      func() time.Time
}

func NewPredictionService(
	cfg PredictionConfig,
	candles *CandleStore,
	store domrepo.ModelStore,
	newModel service.ModelFactory,
	metrics domrepo.Metrics,
) *PredictionService {
	if cfg.Epochs < 1 {
		cfg.Epochs = 10
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 32
	}
	if cfg.TrainTimeout <= 0 {
		cfg.TrainTimeout = 2 * time.Minute
	}
	if cfg.LookbackDays < 1 {
		cfg.LookbackDays = 730
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.TrainTimeout + time.Minute
	}
	cfg.Symbol = util.NormalizeSymbol(cfg.Symbol)
	return &PredictionService{
		cfg:      cfg,
		candles:  candles,
		store:    store,
		newModel: newModel,
		metrics:  metrics,
		lockPoll: 500 * time.Millisecond,
		now:      time.Now,
	}
}

// SetLogger injects a structured logger.
func (s *PredictionService) SetLogger(l *applogger.Logger) { s.l = l }

// SetRecorder sets the run audit trail.
func (s *PredictionService) SetRecorder(r domrepo.RunRecorder) { s.recorder = r }

// SetPublisher sets the sink for finished results.
func (s *PredictionService) SetPublisher(p domrepo.ResultPublisher) { s.publisher = p }

// SetCache enables the result mirror and the cross-replica cycle lock.
func (s *PredictionService) SetCache(c domrepo.ResultCache) { s.cache = c }

// Candles returns the candle store feeding the cycles.
func (s *PredictionService) Candles() *CandleStore { return s.candles }

// Symbol returns the configured default symbol.
func (s *PredictionService) Symbol() string { return s.cfg.Symbol }

// Init restores the stored series and the persisted model. A missing
// series or model is logged, not returned.
func (s *PredictionService) Init(ctx context.Context) error {
	series, err := s.candles.Load(ctx, s.cfg.Symbol)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrSeriesNotFound):
		s.info("no stored series", applogger.String("symbol", s.cfg.Symbol))
	default:
		return fmt.Errorf("init series: %w", err)
	}

	model, merr := s.store.Load(ctx)
	if merr != nil {
		s.warn("no usable model artifact", applogger.Error(merr))
	}

	var last *models.PredictionResult
	if s.cache != nil {
		var cached models.PredictionResult
		if err := s.cache.Get(ctx, resultKey(s.cfg.Symbol), &cached); err == nil {
			last = &cached
		}
	}

	s.stateMu.Lock()
	s.pc.Series = series
	if merr == nil {
		s.pc.Model = model
	}
	s.pc.Last = last
	s.stateMu.Unlock()

	if merr == nil {
		meta := model.Meta()
		s.info("model restored",
			applogger.String("symbol", meta.Symbol),
			applogger.String("trained_at", meta.TrainedAt.Format(time.RFC3339)))
	}
	return nil
}

// RunPredictionCycle trains a fresh model on the stored series of symbol
// (fetched first when nothing is stored), evaluates it on the test
// partition and forecasts the next close. Stage failures are *CycleError.
func (s *PredictionService) RunPredictionCycle(ctx context.Context, symbol string) (*models.PredictionResult, error) {
	symbol = s.symbolOrDefault(symbol)
	return s.run(ctx, symbol, func(ctx context.Context) (models.Series, error) {
		series, err := s.candles.Load(ctx, symbol)
		if errors.Is(err, models.ErrSeriesNotFound) {
			from, to := util.LookbackRange(s.now(), s.cfg.LookbackDays)
			return s.candles.FetchAndStore(ctx, symbol, s.cfg.Resolution, from, to)
		}
		return series, err
	})
}

// Refresh re-fetches [from, to] (the configured lookback when zero), stores
// it and runs a cycle on it.
func (s *PredictionService) Refresh(ctx context.Context, symbol string, from, to time.Time) (*models.PredictionResult, error) {
	symbol = s.symbolOrDefault(symbol)
	if from.IsZero() || to.IsZero() {
		lf, lt := util.LookbackRange(s.now(), s.cfg.LookbackDays)
		if from.IsZero() {
			from = lf
		}
		if to.IsZero() {
			to = lt
		}
	}
	return s.run(ctx, symbol, func(ctx context.Context) (models.Series, error) {
		return s.candles.FetchAndStore(ctx, symbol, s.cfg.Resolution, from, to)
	})
}

// Forecast predicts the next close with the model currently held, without
// training. It fails with ErrModelLoad when no model is available.
func (s *PredictionService) Forecast(ctx context.Context) (*models.Forecast, error) {
	s.stateMu.RLock()
	model, series := s.pc.Model, s.pc.Series
	s.stateMu.RUnlock()

	if model == nil {
		return nil, fmt.Errorf("forecast: %w", models.ErrModelLoad)
	}
	meta := model.Meta()
	symbol := meta.Symbol
	if symbol == "" {
		symbol = s.cfg.Symbol
	}
	if series.Symbol != symbol || series.IsEmpty() {
		var err error
		if series, err = s.candles.Load(ctx, symbol); err != nil {
			return nil, fmt.Errorf("forecast: %w", err)
		}
	}

	scaler, err := features.NewScaler(meta.Scaler)
	if err != nil {
		return nil, fmt.Errorf("forecast scaler: %v: %w", err, models.ErrModelLoad)
	}
	next, last, err := predictNext(model, scaler, series)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	return &models.Forecast{
		Symbol:     symbol,
		Prediction: next,
		LastClose:  last,
		TrainedAt:  meta.TrainedAt,
	}, nil
}

// LastResult returns the most recent successful result of this process, or
// the one mirrored in the cache by another replica.
func (s *PredictionService) LastResult(ctx context.Context) (*models.PredictionResult, bool) {
	s.stateMu.RLock()
	last := s.pc.Last
	s.stateMu.RUnlock()
	if last != nil {
		cp := *last
		return &cp, true
	}
	if s.cache == nil {
		return nil, false
	}
	var cached models.PredictionResult
	if err := s.cache.Get(ctx, resultKey(s.cfg.Symbol), &cached); err != nil {
		return nil, false
	}
	return &cached, true
}

type loadFunc func(ctx context.Context) (models.Series, error)

func (s *PredictionService) run(ctx context.Context, symbol string, load loadFunc) (*models.PredictionResult, error) {
	start := s.now()
	release, err := s.acquire(ctx, symbol)
	if err != nil {
		s.finish(ctx, symbol, nil, err)
		return nil, err
	}
	defer release()

	res, err := s.cycle(ctx, symbol, load)
	if res != nil {
		res.DurationMS = s.now().Sub(start).Milliseconds()
	}
	s.metrics.RecordLatency("cycle", s.now().Sub(start).Seconds())
	s.finish(ctx, symbol, res, err)
	return res, err
}

func (s *PredictionService) cycle(ctx context.Context, symbol string, load loadFunc) (*models.PredictionResult, error) {
	// loading
	series, err := load(ctx)
	if err != nil {
		return nil, &models.CycleError{Stage: models.StageLoading, Err: err}
	}
	s.stateMu.Lock()
	s.pc.Series = series
	s.stateMu.Unlock()

	model := s.newModel()
	seq := model.SeqLength()

	// splitting
	train, test, err := features.Split(series, s.cfg.Split)
	if err != nil {
		return nil, &models.CycleError{Stage: models.StageSplitting, Err: err}
	}
	scaler, err := features.Fit(train.Closes())
	if err != nil {
		return nil, &models.CycleError{Stage: models.StageSplitting, Err: err}
	}
	scaledTrain := scaler.Transform(train.Closes())
	trainX, trainY, err := features.MakeWindows(scaledTrain, seq)
	if err != nil {
		return nil, &models.CycleError{Stage: models.StageSplitting, Err: fmt.Errorf("train windows: %w", err)}
	}
	testX, testY, err := features.MakeWindowsWithContext(scaledTrain, scaler.Transform(test.Closes()), seq)
	if err != nil {
		return nil, &models.CycleError{Stage: models.StageSplitting, Err: fmt.Errorf("test windows: %w", err)}
	}

	// training
	tctx, cancel := context.WithTimeout(ctx, s.cfg.TrainTimeout)
	trainStart := time.Now()
	report, err := model.Train(tctx, trainX, trainY, s.cfg.Epochs, s.cfg.BatchSize)
	cancel()
	if err != nil {
		return nil, &models.CycleError{Stage: models.StageTraining, Err: err}
	}
	s.metrics.RecordTraining(symbol, time.Since(trainStart).Seconds(), report.FinalLoss())
	s.info("model trained",
		applogger.String("symbol", symbol),
		applogger.Int("windows", report.Windows),
		applogger.Int("epochs", report.Epochs),
		applogger.Float64("loss", report.FinalLoss()),
		applogger.Duration("took", time.Since(trainStart)))

	// evaluating
	pred, err := model.Predict(testX)
	if err != nil {
		return nil, &models.CycleError{Stage: models.StageEvaluating, Err: err}
	}
	m, err := evaluation.Evaluate(pred, testY)
	if err != nil {
		return nil, &models.CycleError{Stage: models.StageEvaluating, Err: err}
	}
	mape, err := evaluation.MAPE(scaler.InverseTransform(pred), scaler.InverseTransform(testY))
	if err != nil {
		s.warn("mape unavailable", applogger.String("symbol", symbol), applogger.Error(err))
	}

	// forecasting
	next, lastClose, err := predictNext(model, scaler, series)
	if err != nil {
		return nil, &models.CycleError{Stage: models.StageForecasting, Err: err}
	}

	trainedAt := s.now().UTC()
	model.SetMeta(models.ModelMeta{Symbol: symbol, TrainedAt: trainedAt, Scaler: scaler.State()})
	if err := s.store.Save(ctx, model); err != nil {
		s.warn("model persist failed", applogger.String("symbol", symbol), applogger.Error(err))
	}

	res := &models.PredictionResult{
		Symbol:       symbol,
		Accuracy:     m.Accuracy,
		MSE:          m.MSE,
		MAE:          m.MAE,
		MAPE:         mape,
		Prediction:   next,
		LastClose:    lastClose,
		TrainWindows: len(trainX),
		TestWindows:  len(testX),
		Epochs:       report.Epochs,
		TrainLoss:    report.FinalLoss(),
		TrainedAt:    trainedAt,
	}

	s.stateMu.Lock()
	s.pc.Model = model
	s.pc.Last = res
	s.stateMu.Unlock()
	return res, nil
}

// predictNext feeds the trailing window of series to model and returns the
// forecast and the last close, both in price units.
func predictNext(model service.SequenceModel, scaler *features.Scaler, series models.Series) (float64, float64, error) {
	closes := series.Closes()
	window, err := features.LastWindow(scaler.Transform(closes), model.SeqLength())
	if err != nil {
		return 0, 0, err
	}
	out, err := model.Predict([][]float64{window})
	if err != nil {
		return 0, 0, err
	}
	return scaler.InverseValue(out[0]), closes[len(closes)-1], nil
}

// acquire serializes cycles. With a cache it also takes the distributed lock,
// polling until the training timeout elapses and then failing with ErrBusy.
// Cache errors fall back to the in-process lock alone.
func (s *PredictionService) acquire(ctx context.Context, symbol string) (func(), error) {
	s.cycleMu.Lock()
	if s.cache == nil {
		return s.cycleMu.Unlock, nil
	}

	key := lockKey(symbol)
	deadline := time.NewTimer(s.cfg.TrainTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(s.lockPoll)
	defer tick.Stop()
	for {
		ok, err := s.cache.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			s.warn("cycle lock unavailable, continuing in-process", applogger.Error(err))
			return s.cycleMu.Unlock, nil
		}
		if ok {
			return func() {
				if err := s.cache.Unlock(context.WithoutCancel(ctx), key); err != nil {
					s.warn("cycle unlock failed", applogger.Error(err))
				}
				s.cycleMu.Unlock()
			}, nil
		}
		select {
		case <-ctx.Done():
			s.cycleMu.Unlock()
			return nil, ctx.Err()
		case <-deadline.C:
			s.cycleMu.Unlock()
			return nil, fmt.Errorf("cycle lock %s: %w", key, models.ErrBusy)
		case <-tick.C:
		}
	}
}

// finish records metrics, the audit row and the result event. Failures of
// the sinks are logged only.
func (s *PredictionService) finish(ctx context.Context, symbol string, res *models.PredictionResult, err error) {
	s.metrics.RecordCycle(symbol, err)
	sinkCtx := context.WithoutCancel(ctx)

	if err != nil {
		if stage := models.StageOf(err); stage != "" {
			s.metrics.RecordStageError(string(stage))
		}
		s.warn("prediction cycle failed", applogger.String("symbol", symbol), applogger.Error(err))
		if s.recorder != nil {
			if rerr := s.recorder.RecordRun(sinkCtx, &models.PredictionResult{Symbol: symbol}, err); rerr != nil {
				s.warn("record run failed", applogger.Error(rerr))
			}
		}
		return
	}

	s.metrics.RecordResult(res)
	s.info("prediction cycle done",
		applogger.String("symbol", symbol),
		applogger.Float64("prediction", res.Prediction),
		applogger.Float64("accuracy", res.Accuracy),
		applogger.Float64("mse", res.MSE),
		applogger.Int64("duration_ms", res.DurationMS))

	if s.recorder != nil {
		if rerr := s.recorder.RecordRun(sinkCtx, res, nil); rerr != nil {
			s.warn("record run failed", applogger.Error(rerr))
		}
	}
	if s.publisher != nil {
		if perr := s.publisher.Publish(sinkCtx, res); perr != nil {
			s.warn("publish result failed", applogger.Error(perr))
		}
	}
	if s.cache != nil {
		if cerr := s.cache.Set(sinkCtx, resultKey(symbol), res, s.cfg.ResultTTL); cerr != nil {
			s.warn("cache result failed", applogger.Error(cerr))
		}
	}
}

func (s *PredictionService) symbolOrDefault(symbol string) string {
	if symbol = util.NormalizeSymbol(symbol); symbol == "" {
		return s.cfg.Symbol
	}
	return symbol
}

func resultKey(symbol string) string { return "result:" + symbol }

func lockKey(symbol string) string { return "lock:cycle:" + symbol }

func (s *PredictionService) info(msg string, fields ...applogger.Field) {
	if s.l != nil {
		s.l.Info(msg, fields...)
	}
}

func (s *PredictionService) warn(msg string, fields ...applogger.Field) {
	if s.l != nil {
		s.l.Warn(msg, fields...)
	}
}
