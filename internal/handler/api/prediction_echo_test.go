package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/service/ratelimit"

	"github.com/labstack/echo/v4"
)

type fakePredictor struct {
	res      *models.PredictionResult
	err      error
	symbol   string
	from, to time.Time
	last     *models.PredictionResult
}

func (f *fakePredictor) RunPredictionCycle(_ context.Context, symbol string) (*models.PredictionResult, error) {
	f.symbol = symbol
	return f.res, f.err
}

func (f *fakePredictor) Refresh(_ context.Context, symbol string, from, to time.Time) (*models.PredictionResult, error) {
	f.symbol, f.from, f.to = symbol, from, to
	return f.res, f.err
}

func (f *fakePredictor) Forecast(context.Context) (*models.Forecast, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Forecast{Symbol: "AAPL", Prediction: f.res.Prediction}, nil
}

func (f *fakePredictor) LastResult(context.Context) (*models.PredictionResult, bool) {
	return f.last, f.last != nil
}

func serve(t *testing.T, h *PredictionEchoHandler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestPredictReturnsContract(t *testing.T) {
	f := &fakePredictor{res: &models.PredictionResult{Symbol: "MSFT", Accuracy: 97.5, MSE: 0.001, MAE: 0.025, Prediction: 412.3}}
	rec := serve(t, NewPredictionEchoHandler(nil, f, nil), http.MethodGet, "/api/predict?symbol=MSFT")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"accuracy", "mse", "prediction"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("missing %q in %s", key, rec.Body.String())
		}
	}
	if f.symbol != "MSFT" {
		t.Fatalf("symbol not passed through: %q", f.symbol)
	}
}

func TestPredictErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&models.CycleError{Stage: models.StageLoading, Err: models.ErrUpstreamUnavailable}, http.StatusServiceUnavailable, "ERR_UPSTREAM_UNAVAILABLE"},
		{&models.CycleError{Stage: models.StageSplitting, Err: fmt.Errorf("x: %w", models.ErrInsufficientData)}, http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_DATA"},
		{&models.CycleError{Stage: models.StageSplitting, Err: models.ErrDegenerateSeries}, http.StatusUnprocessableEntity, "ERR_DEGENERATE_SERIES"},
		{&models.CycleError{Stage: models.StageTraining, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, "ERR_TIMEOUT"},
		{fmt.Errorf("lock: %w", models.ErrBusy), http.StatusServiceUnavailable, "ERR_BUSY"},
		{&models.CycleError{Stage: models.StageEvaluating, Err: models.ErrShapeMismatch}, http.StatusInternalServerError, "ERR_SHAPE_MISMATCH"},
	}
	for _, tc := range cases {
		rec := serve(t, NewPredictionEchoHandler(nil, &fakePredictor{err: tc.err}, nil), http.MethodGet, "/api/predict")
		if rec.Code != tc.status {
			t.Fatalf("%v: status %d, want %d", tc.err, rec.Code, tc.status)
		}
		var body struct {
			Status int `json:"status"`
			Data   []struct {
				Code string `json:"code"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Status != tc.status || len(body.Data) != 1 || body.Data[0].Code != tc.code {
			t.Fatalf("%v: body %s", tc.err, rec.Body.String())
		}
	}
}

func TestPredictValidatesSymbol(t *testing.T) {
	rec := serve(t, NewPredictionEchoHandler(nil, &fakePredictor{}, nil), http.MethodGet, "/api/predict?symbol=ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPredictRateLimited(t *testing.T) {
	f := &fakePredictor{res: &models.PredictionResult{Symbol: "AAPL"}}
	h := NewPredictionEchoHandler(nil, f, ratelimit.New(1, 0.01))
	e := echo.New()
	h.RegisterRoutes(e)

	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predict", nil))
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes %v", codes)
	}
}

func TestRefreshParsesRange(t *testing.T) {
	f := &fakePredictor{res: &models.PredictionResult{Symbol: "AAPL"}}
	rec := serve(t, NewPredictionEchoHandler(nil, f, nil), http.MethodPost, "/api/refresh?symbol=AAPL&from=2024-01-02&to=2024-06-28")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if f.symbol != "AAPL" || f.from.Format(time.DateOnly) != "2024-01-02" || f.to.Format(time.DateOnly) != "2024-06-28" {
		t.Fatalf("got symbol=%q from=%v to=%v", f.symbol, f.from, f.to)
	}

	rec = serve(t, NewPredictionEchoHandler(nil, f, nil), http.MethodPost, "/api/refresh?from=yesterday")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad from: status %d", rec.Code)
	}
}

func TestRefreshDefaultsToConfiguredLookback(t *testing.T) {
	f := &fakePredictor{res: &models.PredictionResult{Symbol: "AAPL"}}
	rec := serve(t, NewPredictionEchoHandler(nil, f, nil), http.MethodPost, "/api/refresh")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !f.from.IsZero() || !f.to.IsZero() {
		t.Fatalf("expected zero bounds so the service applies its lookback, got %v..%v", f.from, f.to)
	}
}

func TestRefreshLookbackDays(t *testing.T) {
	f := &fakePredictor{res: &models.PredictionResult{Symbol: "AAPL"}}
	h := NewPredictionEchoHandler(nil, f, nil)
	h.now = func() time.Time { return time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC) }
	rec := serve(t, h, http.MethodPost, "/api/refresh?lookback_days=90")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if days := f.to.Sub(f.from).Hours() / 24; days < 90 || days > 91 {
		t.Fatalf("expected a 90 day lookback, got %.1f days", days)
	}

	if rec := serve(t, h, http.MethodPost, "/api/refresh?lookback_days=5000"); rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized lookback: status %d", rec.Code)
	}
}

func TestForecastAndLast(t *testing.T) {
	f := &fakePredictor{err: models.ErrModelLoad}
	if rec := serve(t, NewPredictionEchoHandler(nil, f, nil), http.MethodGet, "/api/forecast"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("forecast without model: %d", rec.Code)
	}
	if rec := serve(t, NewPredictionEchoHandler(nil, f, nil), http.MethodGet, "/api/last"); rec.Code != http.StatusNotFound {
		t.Fatalf("last without result: %d", rec.Code)
	}

	f = &fakePredictor{res: &models.PredictionResult{Prediction: 101}, last: &models.PredictionResult{Prediction: 99}}
	if rec := serve(t, NewPredictionEchoHandler(nil, f, nil), http.MethodGet, "/api/forecast"); rec.Code != http.StatusOK {
		t.Fatalf("forecast: %d", rec.Code)
	}
	rec := serve(t, NewPredictionEchoHandler(nil, f, nil), http.MethodGet, "/api/last")
	if rec.Code != http.StatusOK {
		t.Fatalf("last: %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := serve(t, NewPredictionEchoHandler(nil, &fakePredictor{}, nil), http.MethodGet, "/health")
	if rec.Code != http.StatusOK || rec.Body.String() != "{\"status\":\"ok\"}\n" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}
}
