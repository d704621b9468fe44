// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for ingestion, queries and HTTP traffic.
type Metrics struct {
	// Ingestion
	VisitsTotal        *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	CompensationsTotal *prometheus.CounterVec
	ReindexedTotal     *prometheus.CounterVec

	// Embedding
	EmbeddedTextsTotal prometheus.Counter

	// Reads
	QueriesTotal *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers the metrics with the default registry.
//
// Registration happens once per process; later calls return the same value.
//
// Metrics:
//   - webtracker_visits_total{outcome} - submissions by outcome (new, duplicate, error)
//   - webtracker_ingest_stage_duration_seconds{stage} - time spent per pipeline stage
//   - webtracker_vector_compensations_total{result} - rollbacks of vector upserts
//   - webtracker_reindexed_visits_total{result} - visits processed by reindex jobs
//   - webtracker_embedded_texts_total - texts sent to the embedder
//   - webtracker_queries_total{operation} - read operations served
//   - webtracker_http_requests_total{method,route,status} - HTTP requests
//   - webtracker_http_request_duration_seconds{method,route} - HTTP latency
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			VisitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "webtracker_visits_total",
					Help: "Total number of visit submissions by outcome",
				},
				[]string{"outcome"},
			),

			StageDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "webtracker_ingest_stage_duration_seconds",
					Help:    "Duration of ingestion stages in seconds",
					Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
				},
				[]string{"stage"}, // "normalize", "embed", "persist"
			),

			CompensationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "webtracker_vector_compensations_total",
					Help: "Total number of vector upserts rolled back after a failed commit",
				},
				[]string{"result"},
			),

			ReindexedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "webtracker_reindexed_visits_total",
					Help: "Total number of visits processed by reindex jobs",
				},
				[]string{"result"},
			),

			EmbeddedTextsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "webtracker_embedded_texts_total",
					Help: "Total number of texts sent to the embedder",
				},
			),

			QueriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "webtracker_queries_total",
					Help: "Total number of read operations served",
				},
				[]string{"operation"},
			),

			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "webtracker_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "route", "status"},
			),

			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "webtracker_http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "route"},
			),
		}
	})
	return globalMetrics
}
