package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

const namespace = "asn"

// HTTPServerMetrics is the API process registry. It also implements the
// pipeline's VerificationMetrics port.
type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	verdictTotal   *prometheus.CounterVec
	verdictScore   *prometheus.HistogramVec
	degradedTotal  *prometheus.CounterVec
	checklistTotal *prometheus.CounterVec
	verifyDuration *prometheus.HistogramVec
	breakerState   *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	m := &HTTPServerMetrics{
		service:  service,
		registry: registry,
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"service", "method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"service", "method", "path"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "http",
				Name:        "in_flight_requests",
				Help:        "Number of in-flight HTTP requests.",
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
		verdictTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "verification",
				Name:      "verdicts_total",
				Help:      "Verification verdicts by document type and status.",
			},
			[]string{"service", "document_type", "status", "degraded"},
		),
		verdictScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "verification",
				Name:      "verdict_score",
				Help:      "Distribution of verdict scores.",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
			},
			[]string{"service", "document_type"},
		),
		degradedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "verification",
				Name:      "degraded_total",
				Help:      "Provider calls that fell back to a degraded result, by pipeline stage.",
			},
			[]string{"service", "stage"},
		),
		checklistTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "checklist",
				Name:      "evaluations_total",
				Help:      "Checklist evaluations by overall status.",
			},
			[]string{"service", "overall"},
		),
		verifyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "verification",
				Name:      "pipeline_duration_seconds",
				Help:      "Duration of the verification pipeline after upload validation.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"service", "document_type"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "circuit_state",
				Help:      "Circuit breaker state per provider operation (0 closed, 1 half-open, 2 open).",
			},
			[]string{"service", "operation"},
		),
	}

	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.verdictTotal,
		m.verdictScore,
		m.degradedTotal,
		m.checklistTotal,
		m.verifyDuration,
		m.breakerState,
	)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request totals and latency. pathLabel maps a request
// to a bounded label value.
func (m *HTTPServerMetrics) Middleware(pathLabel func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := pathLabel(r)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(m.service, r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordVerdict(documentType domain.DocumentType, verdict domain.Verdict) {
	m.verdictTotal.WithLabelValues(m.service, string(documentType), string(verdict.Status), strconv.FormatBool(verdict.Degraded)).Inc()
	m.verdictScore.WithLabelValues(m.service, string(documentType)).Observe(verdict.Score)
}

func (m *HTTPServerMetrics) RecordDegraded(stage string) {
	if stage == "" {
		stage = "unknown"
	}
	m.degradedTotal.WithLabelValues(m.service, stage).Inc()
}

func (m *HTTPServerMetrics) RecordChecklist(overall domain.CheckStatus) {
	m.checklistTotal.WithLabelValues(m.service, string(overall)).Inc()
}

func (m *HTTPServerMetrics) RecordDuration(documentType domain.DocumentType, elapsed time.Duration) {
	m.verifyDuration.WithLabelValues(m.service, string(documentType)).Observe(elapsed.Seconds())
}

// RecordBreakerState matches resilience.StateListener.
func (m *HTTPServerMetrics) RecordBreakerState(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(m.service, operation).Set(float64(to))
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
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
