// Package prometheus contains the Prometheus-backed implementations of the
// metrics interfaces.
package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/dittostore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// httpMetrics is the Prometheus implementation of metrics.HTTPMetrics.
type httpMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	bytesWritten     prometheus.Counter
	throttledTotal   prometheus.Counter
}

// NewHTTPMetrics creates a Prometheus-backed HTTPMetrics instance, or the
// no-op implementation when metrics are disabled.
func NewHTTPMetrics() metrics.HTTPMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopHTTPMetrics()
	}

	reg := metrics.GetRegistry()

	return &httpMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittostore_http_requests_total",
				Help: "Total number of HTTP requests by method and status",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittostore_http_request_duration_milliseconds",
				Help: "Duration of HTTP requests in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"method"},
		),
		requestsInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittostore_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
		bytesWritten: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittostore_http_response_bytes_total",
				Help: "Total response body bytes written",
			},
		),
		throttledTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittostore_http_requests_throttled_total",
				Help: "Total requests rejected by the rate limiter",
			},
		),
	}
}

func (m *httpMetrics) RequestStarted() {
	m.requestsInFlight.Inc()
}

func (m *httpMetrics) RequestFinished(method string, status int, duration time.Duration, bytes int64) {
	m.requestsInFlight.Dec()
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(float64(duration.Milliseconds()))
	m.bytesWritten.Add(float64(bytes))
}

func (m *httpMetrics) RequestThrottled() {
	m.throttledTotal.Inc()
}
