package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the scimgate server.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Provisioning metrics.
	ProvisioningOpsTotal *prometheus.CounterVec

	// Rate limiting metrics.
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Usage recorder metrics.
	RecorderBufferSize   prometheus.Gauge
	RecorderFlushesTotal *prometheus.CounterVec
	RecorderStampsTotal  prometheus.Counter

	// Auth metrics.
	AuthFailuresTotal  *prometheus.CounterVec
	AuthSuccessesTotal *prometheus.CounterVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scimgate_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"kind", "method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scimgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "method", "path_pattern"}),

		ProvisioningOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scimgate_provisioning_operations_total",
			Help: "Total number of SCIM provisioning operations.",
		}, []string{"operation", "status"}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scimgate_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}, []string{"scope"}),

		RecorderBufferSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scimgate_recorder_buffer_size",
			Help: "Current number of buffered token usage stamps.",
		}),

		RecorderFlushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scimgate_recorder_flushes_total",
			Help: "Total number of usage recorder flushes.",
		}, []string{"status"}),

		RecorderStampsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scimgate_recorder_stamps_total",
			Help: "Total number of token usage stamps recorded.",
		}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scimgate_auth_failures_total",
			Help: "Total number of authentication failures.",
		}, []string{"auth_type"}),

		AuthSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scimgate_auth_successes_total",
			Help: "Total number of successful authentications.",
		}, []string{"auth_type"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scimgate_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	// Register all metrics.
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ProvisioningOpsTotal,
		m.RateLimitRejectionsTotal,
		m.RecorderBufferSize,
		m.RecorderFlushesTotal,
		m.RecorderStampsTotal,
		m.AuthFailuresTotal,
		m.AuthSuccessesTotal,
		m.ServerStartTime,
	)

	// Set server start time.
	m.ServerStartTime.Set(float64(time.Now().Unix()))

	// Register Go runtime and process collectors.
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// ObserveHTTPRequest records a completed HTTP request.
func (m *Metrics) ObserveHTTPRequest(kind, method, pathPattern string, statusCode int, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(kind, method, pathPattern, fmt.Sprintf("%d", statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(kind, method, pathPattern).Observe(seconds)
}

// IncProvisioningOp increments the provisioning operation counter. operation
// is one of list, get, create, replace, patch, deactivate; status is "ok" or
// "error".
func (m *Metrics) IncProvisioningOp(operation, status string) {
	m.ProvisioningOpsTotal.WithLabelValues(operation, status).Inc()
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection(scope string) {
	m.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
}

// IncAuthFailure increments the auth failure counter for the given auth type.
func (m *Metrics) IncAuthFailure(authType string) {
	m.AuthFailuresTotal.WithLabelValues(authType).Inc()
}

// IncAuthSuccess increments the auth success counter for the given auth type.
func (m *Metrics) IncAuthSuccess(authType string) {
	m.AuthSuccessesTotal.WithLabelValues(authType).Inc()
}

// SetRecorderBufferSize updates the usage recorder buffer gauge.
func (m *Metrics) SetRecorderBufferSize(n int) {
	m.RecorderBufferSize.Set(float64(n))
}

// IncRecorderFlush increments the recorder flush counter with the given status
// ("success" or "error").
func (m *Metrics) IncRecorderFlush(status string) {
	m.RecorderFlushesTotal.WithLabelValues(status).Inc()
}

// IncRecorderStamp increments the recorded usage stamp counter.
func (m *Metrics) IncRecorderStamp() {
	m.RecorderStampsTotal.Inc()
}
