package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	evaluationsTotal       *prometheus.CounterVec
	evaluationSeconds      *prometheus.HistogramVec
	evaluationCacheTotal   *prometheus.CounterVec
	transcriptExportsTotal *prometheus.CounterVec
	transcriptImportsTotal *prometheus.CounterVec
	documentUploadsTotal   *prometheus.CounterVec
	documentRejectedTotal  *prometheus.CounterVec
	documentUploadSeconds  prometheus.Histogram
	evaluationSockets      prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebook_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gradebook_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebook_http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_evaluations_total",
			Help: "Number of grade sheet evaluations by policy and source.",
		}, []string{"policy", "source"})

		evaluationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grading_evaluation_seconds",
			Help:    "Time spent evaluating a grade sheet.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"source"})

		evaluationCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_evaluation_cache_total",
			Help: "Evaluation cache lookups by outcome.",
		}, []string{"outcome"})

		transcriptExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transcript_exports_total",
			Help: "Transcripts exported by format and outcome.",
		}, []string{"format", "status"})

		transcriptImportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transcript_imports_total",
			Help: "Spreadsheet imports by outcome.",
		}, []string{"status"})

		documentUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "document_uploads_total",
			Help: "Documents stored by storage driver.",
		}, []string{"driver"})

		documentRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "document_uploads_rejected_total",
			Help: "Document uploads rejected by reason.",
		}, []string{"reason"})

		documentUploadSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "document_upload_seconds",
			Help:    "Latency of document uploads including storage.",
			Buckets: prometheus.DefBuckets,
		})

		evaluationSockets = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grading_evaluation_sockets_active",
			Help: "Open live evaluation websocket connections.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			evaluationsTotal,
			evaluationSeconds,
			evaluationCacheTotal,
			transcriptExportsTotal,
			transcriptImportsTotal,
			documentUploadsTotal,
			documentRejectedTotal,
			documentUploadSeconds,
			evaluationSockets,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Evaluations counts evaluations by policy and source (stateless, roster, websocket).
func Evaluations() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// EvaluationLatency exposes the evaluation duration histogram.
func EvaluationLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return evaluationSeconds
}

// EvaluationCache counts cache hits and misses.
func EvaluationCache() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationCacheTotal
}

// TranscriptExports counts transcript exports.
func TranscriptExports() *prometheus.CounterVec {
	RegisterMetrics()
	return transcriptExportsTotal
}

// TranscriptImports exposes the spreadsheet import counter.
func TranscriptImports() *prometheus.CounterVec {
	RegisterMetrics()
	return transcriptImportsTotal
}

// DocumentUploads counts stored documents.
func DocumentUploads() *prometheus.CounterVec {
	RegisterMetrics()
	return documentUploadsTotal
}

// DocumentRejected counts rejected uploads.
func DocumentRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return documentRejectedTotal
}

// DocumentUploadLatency exposes the upload latency histogram.
func DocumentUploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return documentUploadSeconds
}

// EvaluationSockets tracks open websocket connections.
func EvaluationSockets() prometheus.Gauge {
	RegisterMetrics()
	return evaluationSockets
}
