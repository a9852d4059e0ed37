// Package metrics defines the Prometheus metric collectors used by the
// discovery service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchRequestsTotal  *prometheus.CounterVec
	SearchResultsCount   prometheus.Histogram
	IndexRebuildDuration prometheus.Histogram
	IndexTopics          prometheus.Gauge
	TrendingLatency      *prometheus.HistogramVec
	RankingDuration      prometheus.Histogram
	RankedCandidates     prometheus.Histogram
	CacheOutcomesTotal   *prometheus.CounterVec
	CacheWriteFailures   prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
	ForumEventsTotal     *prometheus.CounterVec
	AnalyticsDropped     prometheus.Counter
}

// New creates all collectors and registers them with reg. Tests pass a
// fresh prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
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
		SearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_search_requests_total",
				Help: "Prefix searches by result type (match, empty, error).",
			},
			[]string{"result_type"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "discovery_search_results_count",
				Help:    "Number of topics returned per prefix search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		IndexRebuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "discovery_index_rebuild_seconds",
				Help:    "Time spent rebuilding the prefix index from the record store.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		IndexTopics: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "discovery_index_topics",
				Help: "Distinct titles in the most recently built prefix index.",
			},
		),
		TrendingLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "discovery_trending_latency_seconds",
				Help:    "Trending request latency by cache outcome.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_outcome"},
		),
		RankingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "discovery_ranking_seconds",
				Help:    "Time spent computing a trending ranking, store reads included.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		RankedCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "discovery_ranked_candidates",
				Help:    "Topics scored per trending computation.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		CacheOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_cache_outcomes_total",
				Help: "Trending cache probes by outcome (hit, miss, corrupt, unavailable).",
			},
			[]string{"outcome"},
		),
		CacheWriteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_cache_write_failures_total",
				Help: "Trending cache writes that failed and were swallowed.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		ForumEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_forum_events_total",
				Help: "Forum events consumed by type.",
			},
			[]string{"type"},
		),
		AnalyticsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_analytics_dropped_total",
				Help: "Analytics events dropped because the buffer was full.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchRequestsTotal,
		m.SearchResultsCount,
		m.IndexRebuildDuration,
		m.IndexTopics,
		m.TrendingLatency,
		m.RankingDuration,
		m.RankedCandidates,
		m.CacheOutcomesTotal,
		m.CacheWriteFailures,
		m.CircuitBreakerState,
		m.ForumEventsTotal,
		m.AnalyticsDropped,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
