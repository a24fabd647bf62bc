package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	evaluationsTotal    *prometheus.CounterVec
	evaluationDuration  *prometheus.HistogramVec
	parseFallbacksTotal *prometheus.CounterVec
	ocrPagesTotal       *prometheus.CounterVec
	ocrLatencySeconds   *prometheus.HistogramVec
	ocrRejectedTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essay_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "essay_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essay_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essay_evaluations_total",
			Help: "Essay evaluation runs by outcome.",
		}, []string{"outcome"})

		evaluationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "essay_evaluation_duration_seconds",
			Help:    "End to end duration of essay evaluation runs.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 120},
		}, []string{"outcome"})

		parseFallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essay_rubric_parse_fallbacks_total",
			Help: "Rubric responses that could not be parsed and fell back to the default score.",
		}, []string{"dimension"})

		ocrPagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essay_ocr_pages_total",
			Help: "OCR pages processed by winning engine.",
		}, []string{"engine"})

		ocrLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "essay_ocr_latency_seconds",
			Help:    "Latency of OCR extraction per page.",
			Buckets: prometheus.DefBuckets,
		}, []string{"engine"})

		ocrRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essay_ocr_rejected_total",
			Help: "OCR uploads rejected before extraction.",
		}, []string{"reason"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			evaluationsTotal, evaluationDuration, parseFallbacksTotal,
			ocrPagesTotal, ocrLatencySeconds, ocrRejectedTotal,
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

// EvaluationsTotal counts evaluation runs by outcome.
func EvaluationsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// EvaluationDuration observes evaluation run duration by outcome.
func EvaluationDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return evaluationDuration
}

// ParseFallbacks counts rubric parse fallbacks per dimension.
func ParseFallbacks() *prometheus.CounterVec {
	RegisterMetrics()
	return parseFallbacksTotal
}

// OCRPages counts extracted pages per engine.
func OCRPages() *prometheus.CounterVec {
	RegisterMetrics()
	return ocrPagesTotal
}

// OCRLatency observes per page extraction latency.
func OCRLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return ocrLatencySeconds
}

// OCRRejected counts rejected uploads by reason.
func OCRRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return ocrRejectedTotal
}
