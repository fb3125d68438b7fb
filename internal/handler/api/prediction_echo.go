package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/service/ratelimit"
	xhttp "FinCast/pkg/http"
	xlogger "FinCast/pkg/logger"
	"FinCast/pkg/util"

	"github.com/labstack/echo/v4"
)

// Predictor is the prediction use case as seen by the HTTP layer.
type Predictor interface {
	RunPredictionCycle(ctx context.Context, symbol string) (*models.PredictionResult, error)
	Refresh(ctx context.Context, symbol string, from, to time.Time) (*models.PredictionResult, error)
	Forecast(ctx context.Context) (*models.Forecast, error)
	LastResult(ctx context.Context) (*models.PredictionResult, bool)
}

// PredictionEchoHandler serves the prediction endpoints.
type PredictionEchoHandler struct {
	logger *xlogger.Logger
	svc    Predictor
	rl     *ratelimit.Limiter
	now    func() time.Time
}

func NewPredictionEchoHandler(logger *xlogger.Logger, svc Predictor, rl *ratelimit.Limiter) *PredictionEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &PredictionEchoHandler{logger: logger, svc: svc, rl: rl, now: time.Now}
}

func (h *PredictionEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/predict", h.Predict)
	g.POST("/refresh", h.Refresh)
	g.GET("/forecast", h.Forecast)
	g.GET("/last", h.Last)
}

func (h *PredictionEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Predict retrains a fresh model and returns {accuracy, mse, prediction, ...}.
func (h *PredictionEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, "predict") {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many training requests"))
	}

	res, err := h.svc.RunPredictionCycle(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("predict usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return c.JSON(http.StatusOK, res)
}

// Refresh re-fetches candles for [from, to] (or the last lookback_days, or the
// configured lookback) and retrains.
func (h *PredictionEchoHandler) Refresh(c echo.Context) error {
	req := &models.RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	// Zero bounds are filled from the configured lookback by the service.
	var from, to time.Time
	if req.LookbackDays > 0 {
		from, to = util.LookbackRange(h.now(), req.LookbackDays)
	}
	if req.From != "" {
		t, ok := util.ParseTime(req.From)
		if !ok {
			return xhttp.BadRequestResponse(c, []*xhttp.AppError{invalidTime("from", req.From)})
		}
		from = t
	}
	if req.To != "" {
		t, ok := util.ParseTime(req.To)
		if !ok {
			return xhttp.BadRequestResponse(c, []*xhttp.AppError{invalidTime("to", req.To)})
		}
		to = t
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return xhttp.BadRequestResponse(c, []*xhttp.AppError{xhttp.BadRequestError("from must be before to")})
	}
	if !h.allow(c, "refresh") {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many training requests"))
	}

	res, err := h.svc.Refresh(c.Request().Context(), req.Symbol, from, to)
	if err != nil {
		h.logger.Error("refresh usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return c.JSON(http.StatusOK, res)
}

// Forecast answers from the persisted model without training.
func (h *PredictionEchoHandler) Forecast(c echo.Context) error {
	fc, err := h.svc.Forecast(c.Request().Context())
	if err != nil {
		h.logger.Warn("forecast usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return c.JSON(http.StatusOK, fc)
}

func (h *PredictionEchoHandler) Last(c echo.Context) error {
	res, ok := h.svc.LastResult(c.Request().Context())
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no prediction has completed yet"))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return c.JSON(http.StatusOK, res)
}

func (h *PredictionEchoHandler) allow(c echo.Context, route string) bool {
	if h.rl == nil {
		return true
	}
	key := c.RealIP() + ":" + route
	if h.rl.Allow(key) {
		return true
	}
	if wait := h.rl.RetryAfter(key); wait > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
	}
	h.logger.Warn("rate limited", xlogger.String("remote", c.RealIP()), xlogger.String("route", route))
	return false
}

func invalidTime(field, value string) *xhttp.AppError {
	return xhttp.NewAppError("ERR_TIME_FORMAT", field, "unrecognized time format", http.StatusBadRequest).
		WithParam("value", value)
}

// toAppError maps the error taxonomy onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrUpstreamUnavailable):
		appErr = xhttp.ServiceUnavailableError("ERR_UPSTREAM_UNAVAILABLE", "market data provider unavailable")
	case errors.Is(err, models.ErrBusy):
		appErr = xhttp.ServiceUnavailableError("ERR_BUSY", "another prediction cycle is running")
	case errors.Is(err, models.ErrInsufficientData):
		appErr = xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", "not enough candles for the configured window")
	case errors.Is(err, models.ErrDegenerateSeries):
		appErr = xhttp.UnprocessableError("ERR_DEGENERATE_SERIES", "training prices have zero variance")
	case errors.Is(err, models.ErrSeriesNotFound):
		appErr = xhttp.NewAppError("ERR_SERIES_NOT_FOUND", "", "no stored series for symbol", http.StatusNotFound)
	case errors.Is(err, models.ErrShapeMismatch):
		appErr = xhttp.NewAppError("ERR_SHAPE_MISMATCH", "", "model input shape mismatch", http.StatusInternalServerError)
	case errors.Is(err, models.ErrModelLoad):
		appErr = xhttp.NewAppError("ERR_MODEL_LOAD", "", "model artifact missing or corrupt", http.StatusInternalServerError)
	case errors.Is(err, context.DeadlineExceeded):
		appErr = xhttp.GatewayTimeoutError("prediction cycle timed out")
	default:
		appErr = xhttp.InternalError("prediction cycle failed")
	}
	if stage := models.StageOf(err); stage != "" {
		appErr.WithParam("stage", string(stage))
	}
	return appErr.WithError(err)
}
