// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	PredictionsTotal     *prometheus.CounterVec
	PredictionErrors     *prometheus.CounterVec
	PredictionLatency    *prometheus.HistogramVec
	PredictionConfidence prometheus.Histogram
	ModelLoaded          prometheus.Gauge
	ModelInfo            *prometheus.GaugeVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	HistoryWritesTotal   *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors with reg, which lets tests use
// an isolated prometheus.Registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentiment_predictions_total",
				Help: "Total predictions served by label.",
			},
			[]string{"label"},
		),
		PredictionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentiment_prediction_errors_total",
				Help: "Failed predictions by reason (unavailable, internal, invalid).",
			},
			[]string{"reason"},
		),
		PredictionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentiment_prediction_latency_seconds",
				Help:    "Prediction latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
			},
			[]string{"cache_status"},
		),
		PredictionConfidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentiment_prediction_confidence",
				Help:    "Confidence of served predictions.",
				Buckets: []float64{0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 0.99},
			},
		),
		ModelLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentiment_model_loaded",
				Help: "1 when a model is loaded and serving, 0 when degraded.",
			},
		),
		ModelInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentiment_model_info",
				Help: "Loaded model description; value is the held-out accuracy.",
			},
			[]string{"kind", "n_features"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		HistoryWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "history_writes_total",
				Help: "Prediction history writes by status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PredictionsTotal,
		m.PredictionErrors,
		m.PredictionLatency,
		m.PredictionConfidence,
		m.ModelLoaded,
		m.ModelInfo,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.HistoryWritesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
