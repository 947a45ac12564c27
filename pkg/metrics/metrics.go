// Package metrics defines the Prometheus metric collectors used across
// docsearch and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the services.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	RateLimitedTotal       prometheus.Counter
	SearchQueriesTotal     *prometheus.CounterVec
	SearchLatency          *prometheus.HistogramVec
	SearchResultsCount     prometheus.Histogram
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	IndexLoadsTotal        *prometheus.CounterVec
	IndexDocuments         prometheus.Gauge
	IndexTerms             *prometheus.GaugeVec
	IndexBuildsTotal       *prometheus.CounterVec
	AnalyticsEventsDropped prometheus.Counter
	CircuitBreakerState    *prometheus.GaugeVec

	registry prometheus.Gatherer
}

// New creates all collectors and registers them with reg. A nil reg uses a
// fresh registry, which keeps tests independent of the global default.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
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
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the per-client rate limiter.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		IndexLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_loads_total",
				Help: "Index load attempts by status (ok, unchanged, schema_mismatch, error).",
			},
			[]string{"status"},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Documents in the active search index.",
			},
		),
		IndexTerms: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Distinct terms in the active search index by table.",
			},
			[]string{"table"},
		),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_builds_total",
				Help: "Index builds by status.",
			},
			[]string{"status"},
		),
		AnalyticsEventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Analytics events dropped because the collector buffer was full.",
			},
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
		m.RateLimitedTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexLoadsTotal,
		m.IndexDocuments,
		m.IndexTerms,
		m.IndexBuildsTotal,
		m.AnalyticsEventsDropped,
		m.CircuitBreakerState,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.registry = g
	}
	return m
}

// Handler returns the scrape handler for the registry these metrics were
// registered with, falling back to the global default.
func (m *Metrics) Handler() http.Handler {
	if m.registry != nil && m.registry != prometheus.DefaultGatherer {
		return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
