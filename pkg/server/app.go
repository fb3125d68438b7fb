package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinCast/internal/scheduler"
	"FinCast/internal/usecase"
	"FinCast/pkg/config"
	xhttp "FinCast/pkg/http"
	applogger "FinCast/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	svc        *usecase.PredictionService
	httpServer *xhttp.Server
	sched      *scheduler.Scheduler
}

// New creates a new App instance with all dependencies. sched may be nil.
// Infrastructure clients are released by the injector's cleanup function.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	svc *usecase.PredictionService,
	httpServer *xhttp.Server,
	sched *scheduler.Scheduler,
) *App {
	return &App{
		cfg:        cfg,
		logger:     logger,
		svc:        svc,
		httpServer: httpServer,
		sched:      sched,
	}
}

// Run restores the pipeline state, starts the HTTP server and the scheduler
// and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.svc.Init(ctx); err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.sched != nil {
		a.sched.Start()
		a.logger.Info("refresh scheduled",
			applogger.String("spec", a.cfg.Scheduler.Spec),
			applogger.String("next", a.sched.Next().Format(time.RFC3339)))
	}

	a.logger.Info("fincast started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("symbol", a.svc.Symbol()),
		applogger.Int("port", a.cfg.Server.Port))

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	if a.sched != nil {
		a.sched.Stop()
	}

	if err := a.httpServer.Stop(context.Background()); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}
