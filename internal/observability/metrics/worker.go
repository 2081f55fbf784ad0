package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the review-queue consumer.
type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	eventsTotal   *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	eventLag      prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "verification_events_total",
			Help:      "Consumed verification events by outcome (queued, skipped, error).",
		},
		[]string{"service", "outcome"},
	)
	eventDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "verification_event_duration_seconds",
			Help:      "Event handling duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "verification_events_in_flight",
			Help:        "Number of verification events being handled.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	eventLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "event_lag_seconds",
			Help:        "Delay between verification and review-queue handling.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(eventsTotal, eventDuration, inFlight, eventLag)

	return &WorkerMetrics{
		service:       service,
		registry:      registry,
		eventsTotal:   eventsTotal,
		eventDuration: eventDuration,
		inFlight:      inFlight,
		eventLag:      eventLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEvent() {
	m.inFlight.Inc()
}

func (m *WorkerMetrics) FinishEvent(duration time.Duration, queued bool, err error) {
	m.inFlight.Dec()

	outcome := "skipped"
	switch {
	case err != nil:
		outcome = "error"
	case queued:
		outcome = "queued"
	}
	m.eventsTotal.WithLabelValues(m.service, outcome).Inc()
	m.eventDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveEventLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLag.Observe(lag.Seconds())
}
