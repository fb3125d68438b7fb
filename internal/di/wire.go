//go:build wireinject
// +build wireinject

package di

import (
	"FinCast/internal/usecase"
	"FinCast/pkg/config"
	"FinCast/pkg/server"

	"github.com/google/wire"
)

var pipelineSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,

	// Infrastructure and repositories
	ProvideCandleProvider,
	ProvideSeriesStore,
	ProvideModelStore,
	ProvideModelFactory,
	ProvideRunRecorder,
	ProvideResultPublisher,
	ProvideResultCache,

	// Use cases
	ProvideCandleStore,
	ProvidePredictionService,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		pipelineSet,
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideScheduler,
		ProvideApp,
	)
	return &server.App{}, nil, nil
}

// InitializePipeline wires the prediction pipeline without the HTTP surface.
func InitializePipeline(cfg *config.Config) (*usecase.PredictionService, func(), error) {
	wire.Build(pipelineSet)
	return &usecase.PredictionService{}, nil, nil
}
