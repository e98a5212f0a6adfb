// Package metrics provides Prometheus metrics for the Hako server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the Hako server.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	UploadsStarted   prometheus.Counter
	UploadsCompleted prometheus.Counter
	ChunksAppended   prometheus.Counter
	ChunkBytesTotal  prometheus.Counter
	DownloadsTotal   prometheus.Counter

	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	GCRunsTotal    prometheus.Counter
	GCFilesRemoved prometheus.Counter
	GCDuration     prometheus.Histogram
	GCLastRunTime  prometheus.Gauge

	RateLimitedRequests *prometheus.CounterVec
}

const namespace = "hako"

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed.",
			},
		),

		UploadsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "started_total",
				Help:      "Total number of prepare_upload calls.",
			},
		),
		UploadsCompleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "completed_total",
				Help:      "Total number of uploads that reached upload_complete.",
			},
		),
		ChunksAppended: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "chunks_appended_total",
				Help:      "Total number of chunks accepted by append_chunk.",
			},
		),
		ChunkBytesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "chunk_bytes_total",
				Help:      "Total ciphertext bytes accepted across all chunks.",
			},
		),
		DownloadsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "download",
				Name:      "total",
				Help:      "Total number of completed download requests.",
			},
		),

		StoreOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of store operations.",
			},
			[]string{"operation", "status"},
		),
		StoreOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Store operation duration in seconds.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),

		GCRunsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gc",
				Name:      "runs_total",
				Help:      "Total number of garbage collection ticks.",
			},
		),
		GCFilesRemoved: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gc",
				Name:      "files_removed_total",
				Help:      "Total number of files removed by garbage collection.",
			},
		),
		GCDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gc",
				Name:      "duration_seconds",
				Help:      "Garbage collection tick duration in seconds.",
				Buckets:   []float64{.001, .01, .1, .5, 1, 5, 10, 30},
			},
		),
		GCLastRunTime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "gc",
				Name:      "last_run_timestamp_seconds",
				Help:      "Timestamp of the last garbage collection tick.",
			},
		),

		RateLimitedRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "requests_total",
				Help:      "Total number of rate limited requests.",
			},
			[]string{"path"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordStoreOperation records a store operation's outcome and duration.
func (m *Metrics) RecordStoreOperation(operation, status string, duration float64) {
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordGCRun records a completed garbage collection tick.
func (m *Metrics) RecordGCRun(duration float64, filesRemoved int, finishedAt float64) {
	m.GCRunsTotal.Inc()
	m.GCDuration.Observe(duration)
	m.GCFilesRemoved.Add(float64(filesRemoved))
	m.GCLastRunTime.Set(finishedAt)
}

// RecordRateLimited records a rate limited request.
func (m *Metrics) RecordRateLimited(path string) {
	m.RateLimitedRequests.WithLabelValues(path).Inc()
}
