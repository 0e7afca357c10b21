package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_service"

// Metrics holds the Prometheus collectors for the HTTP API, the upstream
// clients, the observation store and event publication.
type Metrics struct {
	// HTTP surface.
	HTTPRequests *prometheus.CounterVec   // labels: method, route, status
	HTTPDuration *prometheus.HistogramVec // labels: method, route

	// Upstream calls.
	UpstreamRequests *prometheus.CounterVec   // labels: upstream={weatherapi,youtube}, outcome={success,not_found,error}
	UpstreamDuration *prometheus.HistogramVec // labels: upstream
	BreakerOpen      prometheus.Gauge

	// Store.
	StoreOutcomes *prometheus.CounterVec // labels: outcome={inserted,exists,error}
	Exports       *prometheus.CounterVec // labels: format

	// Observation events.
	Events *prometheus.CounterVec // labels: outcome={published,dropped,error}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Calls to third-party APIs by upstream and outcome.",
		}, []string{"upstream", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Third-party API call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"upstream"}),
		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weatherapi_breaker_open",
			Help:      "1 while the weather API circuit breaker is open.",
		}),
		StoreOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_stored_total",
			Help:      "Create-if-absent outcomes for fetched observations.",
		}, []string{"outcome"}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Completed table exports by format.",
		}, []string{"format"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observation_events_total",
			Help:      "Observation events by publication outcome.",
		}, []string{"outcome"}),
	}

	prometheus.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.BreakerOpen,
		m.StoreOutcomes,
		m.Exports,
		m.Events,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they like.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		HTTPRequests:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total"}, []string{"method", "route", "status"}),
		HTTPDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds"}, []string{"method", "route"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "upstream_requests_total"}, []string{"upstream", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "upstream_duration_seconds"}, []string{"upstream"}),
		BreakerOpen:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "weatherapi_breaker_open"}),
		StoreOutcomes:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "observations_stored_total"}, []string{"outcome"}),
		Exports:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "exports_total"}, []string{"format"}),
		Events:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "observation_events_total"}, []string{"outcome"}),
	}
}
