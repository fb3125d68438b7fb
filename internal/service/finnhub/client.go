package finnhub

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	xhttp "FinCast/pkg/http"
	applogger "FinCast/pkg/logger"
)

const DefaultBaseURL = "https://finnhub.io/api/v1"

// Config holds the REST endpoint settings. APIKey comes from configuration,
// never from code.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RetryMaxTime  time.Duration
	RatePerSecond float64
	RateBurst     int
}

// Client implements CandleProvider backed by the Finnhub candle endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *xhttp.Client
	logger  *applogger.Logger
}

var _ drepo.CandleProvider = (*Client)(nil)

// New creates a Finnhub candle client.
func New(cfg Config, logger *applogger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	opts := []xhttp.ClientOption{
		xhttp.WithTimeout(cfg.Timeout),
		xhttp.WithRateLimit(cfg.RatePerSecond, cfg.RateBurst),
	}
	if cfg.RetryMaxTime > 0 {
		opts = append(opts, xhttp.WithRetry(cfg.RetryMaxTime))
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    xhttp.NewClient(opts...),
		logger:  logger,
	}
}

// candleResponse is the columnar payload of /stock/candle.
type candleResponse struct {
	S string    `json:"s"`
	O []float64 `json:"o"`
	H []float64 `json:"h"`
	L []float64 `json:"l"`
	C []float64 `json:"c"`
	T []int64   `json:"t"`
	V []float64 `json:"v"`
}

// FetchCandles performs one GET /stock/candle call. Any non-200 status,
// transport failure or "no_data" body is reported as ErrUpstreamUnavailable.
func (c *Client) FetchCandles(ctx context.Context, symbol string, res drepo.Resolution, from, to time.Time) ([]models.Candle, error) {
	query := url.Values{
		"symbol":     {symbol},
		"resolution": {string(res)},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(to.Unix(), 10)},
		"token":      {c.apiKey},
	}

	var body candleResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/stock/candle", query, &body); err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			c.warn("finnhub non-200", applogger.String("symbol", symbol), applogger.Int("status", se.StatusCode))
			return nil, fmt.Errorf("finnhub candles %s: status %d: %w", symbol, se.StatusCode, models.ErrUpstreamUnavailable)
		}
		c.warn("finnhub request failed", applogger.String("symbol", symbol), applogger.Error(err))
		return nil, fmt.Errorf("finnhub candles %s: %v: %w", symbol, err, models.ErrUpstreamUnavailable)
	}

	if body.S != "ok" {
		return nil, fmt.Errorf("finnhub candles %s: status %q: %w", symbol, body.S, models.ErrUpstreamUnavailable)
	}
	return body.toCandles()
}

func (r candleResponse) toCandles() ([]models.Candle, error) {
	n := len(r.T)
	if len(r.O) != n || len(r.H) != n || len(r.L) != n || len(r.C) != n || len(r.V) != n {
		return nil, fmt.Errorf("finnhub candles: column lengths differ t=%d o=%d h=%d l=%d c=%d v=%d",
			n, len(r.O), len(r.H), len(r.L), len(r.C), len(r.V))
	}
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = models.Candle{
			Timestamp: r.T[i],
			Open:      r.O[i],
			High:      r.H[i],
			Low:       r.L[i],
			Close:     r.C[i],
			Volume:    r.V[i],
		}
	}
	return out, nil
}

func (c *Client) warn(msg string, fields ...applogger.Field) {
	if c.logger != nil {
		c.logger.Warn(msg, fields...)
	}
}
