package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClientMetrics covers backend requests and the job lifecycle of one client.
type ClientMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	pollChecksTotal *prometheus.CounterVec
	jobsTotal       *prometheus.CounterVec
	busy            prometheus.Gauge
	breakerState    *prometheus.GaugeVec
}

func NewClientMetrics(service string) *ClientMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arc",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Total backend requests by operation and outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arc",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)
	pollChecksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arc",
			Subsystem: "poller",
			Name:      "checks_total",
			Help:      "Total job status checks by reported status.",
		},
		[]string{"service", "status"},
	)
	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arc",
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Total jobs finished by outcome.",
		},
		[]string{"service", "outcome"},
	)
	busy := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "arc",
			Subsystem: "jobs",
			Name:      "busy",
			Help:      "1 while a job or report action is in progress.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "arc",
			Subsystem: "backend",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(requestTotal, requestDuration, pollChecksTotal, jobsTotal, busy, breakerState)

	return &ClientMetrics{
		registry:        registry,
		service:         service,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		pollChecksTotal: pollChecksTotal,
		jobsTotal:       jobsTotal,
		busy:            busy,
		breakerState:    breakerState,
	}
}

func (m *ClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ClientMetrics) ObserveRequest(operation, outcome string, duration time.Duration) {
	m.requestTotal.WithLabelValues(m.service, operation, outcome).Inc()
	m.requestDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

func (m *ClientMetrics) ObservePollStatus(status string) {
	if status == "" {
		status = "unknown"
	}
	m.pollChecksTotal.WithLabelValues(m.service, status).Inc()
}

func (m *ClientMetrics) ObserveJobOutcome(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.jobsTotal.WithLabelValues(m.service, outcome).Inc()
}

func (m *ClientMetrics) SetBusy(busy bool) {
	if busy {
		m.busy.Set(1)
		return
	}
	m.busy.Set(0)
}

func (m *ClientMetrics) ObserveBreakerState(operation, state string) {
	value := 0.0
	switch state {
	case "half_open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
