package middleware

import (
	"strconv"
	"sync"
	"time"

	applogger "FinCast/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type httpCollectors struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

var (
	httpMetrics     *httpCollectors
	httpMetricsOnce sync.Once
)

func collectors() *httpCollectors {
	httpMetricsOnce.Do(func() {
		httpMetrics = &httpCollectors{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "fincast_http_requests_total",
				Help: "HTTP requests by route, method and status class",
			}, []string{"route", "method", "class"}),
			// Training requests run for seconds to minutes.
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "fincast_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 60, 180},
			}, []string{"route", "method"}),
			inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "fincast_http_in_flight_requests",
				Help: "Requests currently being served",
			}),
		}
		prometheus.MustRegister(httpMetrics.requests, httpMetrics.duration, httpMetrics.inFlight)
	})
	return httpMetrics
}

// Metrics records request counts and latency labelled by the route template
// and logs failed or slow requests.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	m := collectors()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			defer m.inFlight.Dec()
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			code := c.Response().Status
			elapsed := time.Since(start)

			m.requests.WithLabelValues(route, method, statusClass(code)).Inc()
			m.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())

			fields := []applogger.Field{
				applogger.String("route", route),
				applogger.String("method", method),
				applogger.Int("status", code),
				applogger.Duration("duration_ms", elapsed),
			}
			switch {
			case code >= 500:
				l.Error("http request failed", fields...)
			case slowThreshold > 0 && elapsed >= slowThreshold:
				l.Warn("http request slow", fields...)
			}
			return nil
		}
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}
