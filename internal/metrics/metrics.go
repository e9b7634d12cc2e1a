package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// StatusTransportError labels client requests that never got a response.
const StatusTransportError = "transport_error"

// Metrics holds all Prometheus metrics for SafeKart.
// Every Record method is a no-op on a nil receiver, so callers can leave
// metrics unset.
type Metrics struct {
	// Session manager operations (login, register, refresh, password_reset, sign_out)
	AuthOperations *prometheus.CounterVec
	AuthDuration   *prometheus.HistogramVec
	AuthFailures   *prometheus.CounterVec

	// Remote auth client requests
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Development backend
	ServerRequests *prometheus.CounterVec
	RegisteredUser prometheus.Counter

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		AuthOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safekart_auth_operations_total",
				Help: "Total number of session operations",
			},
			[]string{"operation", "outcome"},
		),
		AuthDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "safekart_auth_operation_duration_seconds",
				Help:    "Session operation duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safekart_auth_failures_total",
				Help: "Total number of failed session operations by error category",
			},
			[]string{"operation", "category"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safekart_http_requests_total",
				Help: "Total number of requests sent to the SafeKart API",
			},
			[]string{"endpoint", "status"},
		),
		HTTPLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "safekart_http_request_duration_seconds",
				Help:    "SafeKart API request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ServerRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safekart_devserver_requests_total",
				Help: "Total number of requests served by the development backend",
			},
			[]string{"route", "status"},
		),
		RegisteredUser: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "safekart_devserver_registrations_total",
				Help: "Total number of accounts created on the development backend",
			},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safekart_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code"},
		),
	}
}

// RecordAuthOperation records one session operation. An empty category
// means the operation succeeded.
func (m *Metrics) RecordAuthOperation(operation string, duration time.Duration, category string) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if category != "" {
		outcome = OutcomeFailure
		m.AuthFailures.WithLabelValues(operation, category).Inc()
	}
	m.AuthOperations.WithLabelValues(operation, outcome).Inc()
	m.AuthDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records one API call. status 0 means no response arrived.
func (m *Metrics) RecordHTTPRequest(endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	label := StatusTransportError
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.HTTPRequests.WithLabelValues(endpoint, label).Inc()
	m.HTTPLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordServerRequest records one request handled by the development backend.
func (m *Metrics) RecordServerRequest(route string, status int) {
	if m == nil {
		return
	}
	m.ServerRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// RecordRegistration counts an account created on the development backend.
func (m *Metrics) RecordRegistration() {
	if m == nil {
		return
	}
	m.RegisteredUser.Inc()
}

// RecordError counts a structured error by code.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(code).Inc()
}
