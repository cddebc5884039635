// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
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
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	HighlightRegions     prometheus.Counter
	StaleHitsTotal       prometheus.Counter
	PageCacheHits        prometheus.Counter
	PageCacheMisses      prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	ReindexBooksTotal    *prometheus.CounterVec
	ReindexDuration      prometheus.Histogram
	IndexedBooks         prometheus.Gauge
	IndexedPages         prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg. A nil reg
// leaves them unregistered, which tests use to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
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
				Help:    "Search latency in seconds, including highlight resolution.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of hits returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		HighlightRegions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "highlight_regions_total",
				Help: "Total highlight regions resolved.",
			},
		),
		StaleHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stale_hits_total",
				Help: "Hits whose page vanished before highlight resolution.",
			},
		),
		PageCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "page_cache_hits_total",
				Help: "Highlight page cache hits.",
			},
		),
		PageCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "page_cache_misses_total",
				Help: "Highlight page cache misses.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of search result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of search result cache misses.",
			},
		),
		ReindexBooksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reindex_books_total",
				Help: "Books reindexed by status (indexed, failed, removed).",
			},
			[]string{"status"},
		),
		ReindexDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reindex_duration_seconds",
				Help:    "Duration of a single book build in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		IndexedBooks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexed_books",
				Help: "Number of books in the index.",
			},
		),
		IndexedPages: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexed_pages",
				Help: "Number of pages in the index.",
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

	if reg != nil {
		reg.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.HTTPRequestsInFlight,
			m.SearchQueriesTotal,
			m.SearchLatency,
			m.SearchResultsCount,
			m.HighlightRegions,
			m.StaleHitsTotal,
			m.PageCacheHits,
			m.PageCacheMisses,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.ReindexBooksTotal,
			m.ReindexDuration,
			m.IndexedBooks,
			m.IndexedPages,
			m.CircuitBreakerState,
		)
	}
	return m
}

// SetIndexSize publishes the current book and page counts.
func (m *Metrics) SetIndexSize(books, pages int) {
	if m == nil {
		return
	}
	m.IndexedBooks.Set(float64(books))
	m.IndexedPages.Set(float64(pages))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
