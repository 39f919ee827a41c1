package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the Prometheus collectors exported on /metrics.
type Metrics struct {
	registry        *prometheus.Registry
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec
	tokensIssued    *prometheus.CounterVec
	tokensRevoked   *prometheus.CounterVec
}

// NewMetrics registers the service collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sso_http_request_duration_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_http_errors_total",
			Help: "Total number of failed HTTP requests by error code.",
		}, []string{"path", "method", "code"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_tokens_issued_total",
			Help: "Total number of issued tokens.",
		}, []string{"client"}),
		tokensRevoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_tokens_revoked_total",
			Help: "Total number of revoked tokens.",
		}, []string{"operation"}),
	}
	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.errorCount,
		m.tokensIssued,
		m.tokensRevoked,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordTokenIssued counts an issued token for client.
func (m *Metrics) RecordTokenIssued(client string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(client).Inc()
}

// RecordTokensRevoked adds n revoked tokens for the given operation.
func (m *Metrics) RecordTokensRevoked(operation string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.tokensRevoked.WithLabelValues(operation).Add(float64(n))
}
