// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package metrics exposes Prometheus instrumentation for the query
// path and the index builder.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueryDuration observes wall-clock latency per query path
	// ("name", "exhaustive", "tvshow").
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imdbsearch_query_duration_seconds",
			Help:    "Duration of search queries in seconds",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"path"},
	)

	// QueryResults observes result-set sizes after filtering and
	// trimming.
	QueryResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imdbsearch_query_results",
			Help:    "Number of results returned per query",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"path"},
	)

	// QueryErrors counts failed queries by path.
	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imdbsearch_query_errors_total",
			Help: "Total number of failed search queries",
		},
		[]string{"path"},
	)

	// BuildDuration records the duration of the last completed build
	// phase, by phase.
	BuildDuration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "imdbsearch_build_phase_duration_seconds",
			Help: "Duration of the last completed index build phase",
		},
		[]string{"phase"},
	)

	// BuildLastSuccess is the unix time of the last successful full
	// build.
	BuildLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imdbsearch_build_last_success_timestamp_seconds",
			Help: "Unix time of the last successful index build",
		},
	)

	// IndexDocuments is the number of names in the open index.
	IndexDocuments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imdbsearch_index_documents",
			Help: "Number of name documents in the open index",
		},
	)

	// IndexSizeBytes is the total on-disk size of the open index.
	IndexSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imdbsearch_index_size_bytes",
			Help: "Total on-disk size of the index files",
		},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open for the
	// exhaustive-scan circuit breaker.
	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imdbsearch_scan_breaker_state",
			Help: "Exhaustive-scan circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	// APIRequests counts HTTP requests by endpoint and status code.
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imdbsearch_api_requests_total",
			Help: "Total HTTP API requests",
		},
		[]string{"endpoint", "status"},
	)

	// WebSocketConnections tracks live streaming-search connections.
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imdbsearch_websocket_connections",
			Help: "Currently open streaming search connections",
		},
	)
)

// ObserveQuery records one completed query.
func ObserveQuery(path string, start time.Time, results int, err error) {
	QueryDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		QueryErrors.WithLabelValues(path).Inc()
		return
	}
	QueryResults.WithLabelValues(path).Observe(float64(results))
}
