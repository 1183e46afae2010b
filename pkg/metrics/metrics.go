// Package metrics defines the Prometheus collectors for the lyrics search
// service and serves them for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	SearchQueriesTotal    *prometheus.CounterVec
	SearchLatency         *prometheus.HistogramVec
	SearchResultsCount    prometheus.Histogram
	SearchCandidatesCount prometheus.Histogram
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter

	CorpusDocuments      prometheus.Gauge
	VocabularySize       prometheus.Gauge
	IndexBuildDuration   prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
	AnalyticsEventsTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry, which keeps tests independent of the global one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
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
		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Search queries by outcome (results, zero_result, empty_query, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search latency in seconds by cache status.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "search_results_count",
			Help:    "Number of results returned per query.",
			Buckets: []float64{0, 1, 2, 5, 10},
		}),
		SearchCandidatesCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "search_candidates_count",
			Help:    "Number of candidate documents scored per query.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Query cache hits.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Query cache misses.",
		}),
		CorpusDocuments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corpus_documents",
			Help: "Documents in the loaded corpus index.",
		}),
		VocabularySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corpus_vocabulary_size",
			Help: "Terms in the loaded vocabulary.",
		}),
		IndexBuildDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "index_build_duration_seconds",
			Help: "Time taken to build the corpus index at startup.",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		AnalyticsEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_total",
				Help: "Search analytics events by outcome (published, dropped, failed, consumed, rejected).",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.SearchCandidatesCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CorpusDocuments,
		m.VocabularySize,
		m.IndexBuildDuration,
		m.CircuitBreakerState,
		m.AnalyticsEventsTotal,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// Handler serves the collectors registered through New.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
