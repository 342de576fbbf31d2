package handler

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaypoint/message-relay/internal/resilience"
)

// Metrics holds Prometheus metrics
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	messagesSent        prometheus.Counter
	messagesFailed      *prometheus.CounterVec
	sendAttempts        prometheus.Counter
	attemptDuration     prometheus.Histogram
	breakerState        prometheus.Gauge
	breakerTransitions  *prometheus.CounterVec
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		messagesSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "messages_sent_total",
				Help: "Total number of messages accepted by the provider",
			},
		),
		messagesFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_failed_total",
				Help: "Total number of failed messages by failure kind",
			},
			[]string{"kind"},
		),
		sendAttempts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "provider_send_attempts_total",
				Help: "Total number of wire attempts to the provider, including retries",
			},
		),
		attemptDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "provider_attempt_duration_seconds",
				Help:    "Duration of individual provider attempts",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
		breakerState: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "provider_circuit_breaker_state",
				Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
			},
		),
		breakerTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_circuit_breaker_transitions_total",
				Help: "Circuit breaker state transitions",
			},
			[]string{"from", "to"},
		),
	}
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMessageSent records a message accepted by the provider
func (m *Metrics) RecordMessageSent() {
	m.messagesSent.Inc()
}

// RecordMessageFailed records a failed message
func (m *Metrics) RecordMessageFailed(kind string) {
	m.messagesFailed.WithLabelValues(kind).Inc()
}

// RecordAttempt records one wire attempt to the provider
func (m *Metrics) RecordAttempt(a resilience.Attempt) {
	m.sendAttempts.Inc()
	m.attemptDuration.Observe(a.Elapsed.Seconds())
}

// RecordBreakerTransition records a circuit breaker transition and updates
// the state gauge
func (m *Metrics) RecordBreakerTransition(change resilience.StateChange) {
	m.breakerTransitions.WithLabelValues(change.From.String(), change.To.String()).Inc()
	m.breakerState.Set(float64(change.To))
}

// MetricsHandler handles metrics endpoints
type MetricsHandler struct {
	metrics *Metrics
	breaker *resilience.Breaker
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(metrics *Metrics, breaker *resilience.Breaker) *MetricsHandler {
	return &MetricsHandler{
		metrics: metrics,
		breaker: breaker,
	}
}

// Handler returns the Prometheus HTTP handler
func (h *MetricsHandler) Handler() http.Handler {
	return promhttp.Handler()
}

// BreakerStatus handles circuit breaker status requests
// @Summary Circuit breaker status
// @Description Get a snapshot of the provider circuit breaker
// @Tags metrics
// @Produce json
// @Success 200 {object} resilience.Stats
// @Router /metrics/breaker [get]
func (h *MetricsHandler) BreakerStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.breaker.Snapshot())
}
