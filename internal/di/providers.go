package di

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/repository"
	"FinCast/internal/domain/service"
	"FinCast/internal/handler/api"
	internalrepo "FinCast/internal/repository"
	"FinCast/internal/scheduler"
	"FinCast/internal/service/finnhub"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/services/features"
	"FinCast/internal/services/sequence"
	"FinCast/internal/usecase"
	"FinCast/pkg/cache"
	pkgch "FinCast/pkg/clickhouse"
	"FinCast/pkg/config"
	xhttp "FinCast/pkg/http"
	pkgkafka "FinCast/pkg/kafka"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.Default()
}

// ProvideCandleProvider creates the Finnhub REST candle client.
func ProvideCandleProvider(cfg *config.Config, l *applogger.Logger) repository.CandleProvider {
	return finnhub.New(finnhub.Config{
		BaseURL:       cfg.Finnhub.BaseURL,
		APIKey:        cfg.Finnhub.APIKey,
		Timeout:       cfg.Finnhub.Timeout,
		RetryMaxTime:  cfg.Finnhub.RetryMaxTime,
		RatePerSecond: cfg.Finnhub.RatePerSecond,
		RateBurst:     cfg.Finnhub.RateBurst,
	}, l)
}

// ProvideSeriesStore creates the CSV or ClickHouse series backend.
func ProvideSeriesStore(cfg *config.Config, l *applogger.Logger) (repository.SeriesStore, func(), error) {
	if cfg.Series.Backend != "clickhouse" {
		store := internalrepo.NewCSVSeriesStore(cfg.Series.Dir)
		store.SetLogger(l)
		return store, func() {}, nil
	}

	client, err := pkgch.NewClient(pkgch.Config{
		Host:        cfg.ClickHouse.Host,
		Port:        cfg.ClickHouse.Port,
		Database:    cfg.ClickHouse.Database,
		User:        cfg.ClickHouse.User,
		Password:    cfg.ClickHouse.Password,
		UseHTTP:     cfg.ClickHouse.UseHTTP,
		MaxOpen:     4,
		MaxIdle:     2,
		DialTimeout: cfg.ClickHouse.DialTimeout,
		ReadTimeout: cfg.ClickHouse.ReadTimeout,
		MaxExecTime: cfg.ClickHouse.MaxExecutionTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.CandleSchema); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	store := internalrepo.NewCHSeriesStore(client)
	store.SetLogger(l)
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return store, cleanup, nil
}

// ProvideModelStore creates the JSON artifact store.
func ProvideModelStore(cfg *config.Config) repository.ModelStore {
	return internalrepo.NewFileModelStore(cfg.Model.Path, sequence.Decode)
}

// ProvideModelFactory builds fresh LSTM models from the model section.
func ProvideModelFactory(cfg *config.Config) service.ModelFactory {
	return sequence.Factory(sequence.Config{
		SeqLength:    cfg.Model.SeqLength,
		Hidden:       cfg.Model.Hidden,
		LearningRate: cfg.Model.LearningRate,
		ClipNorm:     cfg.Model.ClipNorm,
		Seed:         cfg.Model.Seed,
	})
}

// ProvideRunRecorder creates the SQLite audit trail, or a no-op recorder.
func ProvideRunRecorder(cfg *config.Config, l *applogger.Logger) (repository.RunRecorder, func(), error) {
	if !cfg.SQLite.Enabled {
		return internalrepo.NewNoopRecorder(), func() {}, nil
	}
	rec, err := internalrepo.NewSQLiteRunRecorder(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite recorder: %w", err)
	}
	cleanup := func() {
		if err := rec.Close(); err != nil {
			l.Warn("sqlite close error", applogger.Error(err))
		}
	}
	return rec, cleanup, nil
}

// ProvideResultPublisher creates the Kafka result publisher, or a no-op one.
func ProvideResultPublisher(cfg *config.Config, l *applogger.Logger) (repository.ResultPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NewNoopPublisher(), func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.Config{
		Brokers:      cfg.Kafka.Brokers,
		Compression:  cfg.Kafka.Compression,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		MaxAttempts:  cfg.Kafka.MaxAttempts,
		WriteTimeout: cfg.Kafka.WriteTimeout,
		BatchTimeout: 10 * time.Millisecond,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.Topic)
	cleanup := func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka close error", applogger.Error(err))
		}
	}
	return pub, cleanup, nil
}

// ProvideResultCache connects to Redis when enabled. Otherwise an in-process
// cache holds the result mirror and the cycle lock of this replica.
func ProvideResultCache(cfg *config.Config, l *applogger.Logger) (repository.ResultCache, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(256))
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	cleanup := func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	return rc, cleanup, nil
}

// ProvideCandleStore creates the candle store use case.
func ProvideCandleStore(
	provider repository.CandleProvider,
	store repository.SeriesStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.CandleStore {
	cs := usecase.NewCandleStore(provider, store, m)
	cs.SetLogger(l)
	return cs
}

// ProvidePredictionService creates the prediction use case.
func ProvidePredictionService(
	cfg *config.Config,
	candles *usecase.CandleStore,
	store repository.ModelStore,
	factory service.ModelFactory,
	m repository.Metrics,
	rec repository.RunRecorder,
	pub repository.ResultPublisher,
	rc repository.ResultCache,
	l *applogger.Logger,
) *usecase.PredictionService {
	svc := usecase.NewPredictionService(usecase.PredictionConfig{
		Symbol:       cfg.Series.Symbol,
		Resolution:   repository.NormalizeResolution(cfg.Series.Resolution),
		LookbackDays: cfg.Series.LookbackDays,
		Split:        features.SplitPolicy{TestRatio: cfg.Split.TestRatio, Holdout: cfg.Split.Holdout},
		Epochs:       cfg.Training.Epochs,
		BatchSize:    cfg.Training.BatchSize,
		TrainTimeout: cfg.Training.Timeout,
		ResultTTL:    cfg.Redis.ResultTTL,
		LockTTL:      cfg.Redis.LockTTL,
	}, candles, store, factory, m)
	svc.SetLogger(l)
	svc.SetRecorder(rec)
	svc.SetPublisher(pub)
	svc.SetCache(rc)
	return svc
}

// ProvideRateLimiter creates the per-client limiter of the training endpoints.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSec)
}

// ProvideHTTPHandler registers the prediction routes.
func ProvideHTTPHandler(l *applogger.Logger, svc *usecase.PredictionService, rl *ratelimit.Limiter) xhttp.Handler {
	return api.NewPredictionEchoHandler(l, svc, rl)
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithLogger(l),
	)
}

// ProvideScheduler creates the refresh scheduler, nil when disabled.
func ProvideScheduler(cfg *config.Config, svc *usecase.PredictionService, l *applogger.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	s := scheduler.New(svc, svc.Symbol(), cfg.Training.Timeout+cfg.Finnhub.Timeout+time.Minute, l)
	if err := s.Register(cfg.Scheduler.Spec); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	svc *usecase.PredictionService,
	srv *xhttp.Server,
	sched *scheduler.Scheduler,
) *server.App {
	return server.New(cfg, l, svc, srv, sched)
}
