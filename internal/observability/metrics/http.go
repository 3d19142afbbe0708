package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	documentsProcessed *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	stageFallbacks     *prometheus.CounterVec
	inferenceCalls     *prometheus.CounterVec
	verificationsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loandocs",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "loandocs",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "loandocs",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	documentsProcessed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loandocs",
			Subsystem: "pipeline",
			Name:      "documents_processed_total",
			Help:      "Total documents run through extraction by detected type and status.",
		},
		[]string{"service", "document_type", "status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "loandocs",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		},
		[]string{"service", "stage"},
	)
	stageFallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loandocs",
			Subsystem: "pipeline",
			Name:      "stage_fallbacks_total",
			Help:      "Total non-terminal stages that degraded to a fallback payload.",
		},
		[]string{"service", "stage"},
	)
	inferenceCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loandocs",
			Subsystem: "inference",
			Name:      "calls_total",
			Help:      "Total calls to the inference backend by operation and outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)
	verificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loandocs",
			Subsystem: "ledger",
			Name:      "verifications_total",
			Help:      "Total human verification approvals recorded.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		documentsProcessed,
		stageDuration,
		stageFallbacks,
		inferenceCalls,
		verificationsTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		documentsProcessed: documentsProcessed,
		stageDuration:      stageDuration,
		stageFallbacks:     stageFallbacks,
		inferenceCalls:     inferenceCalls,
		verificationsTotal: verificationsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/verifications/"):
		return "/v1/verifications/{application_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordDocumentProcessed(service, documentType, status string) {
	if documentType == "" {
		documentType = "unknown"
	}
	m.documentsProcessed.WithLabelValues(service, documentType, status).Inc()
}

func (m *HTTPServerMetrics) RecordStageDuration(service, stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(service, stage).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordStageFallback(service, stage string) {
	m.stageFallbacks.WithLabelValues(service, stage).Inc()
}

func (m *HTTPServerMetrics) RecordInferenceCall(service, operation, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.inferenceCalls.WithLabelValues(service, operation, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordVerification(service, status string) {
	m.verificationsTotal.WithLabelValues(service, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
