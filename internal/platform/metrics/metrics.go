package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// Every method is safe to call on a nil receiver.
type Metrics struct {
	RequestLatency *prometheus.HistogramVec

	// Session proxy
	SessionsCreated  *prometheus.CounterVec
	UpstreamDuration prometheus.Histogram

	// Config store
	ConfigSaves *prometheus.CounterVec

	// Widget messaging
	EmbedMessages    *prometheus.CounterVec
	EmbedRejected    *prometheus.CounterVec
	ConfigSends      *prometheus.CounterVec
	RelayConnections prometheus.Gauge

	LoginAttempts *prometheus.CounterVec

	RateLimited *prometheus.CounterVec
}

// New registers all metrics with the default Prometheus registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers all metrics with reg; tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kyc_demo_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),

		SessionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_demo_sessions_created_total",
			Help: "Verification sessions requested from the KYC provider by outcome",
		}, []string{"outcome"}), // outcome: "success", "upstream_error"

		UpstreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_demo_upstream_duration_seconds",
			Help:    "Duration of calls to the KYC provider",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		ConfigSaves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_demo_config_saves_total",
			Help: "Session configuration writes by field and outcome",
		}, []string{"field", "outcome"}), // field: "steps", "short_key"

		EmbedMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_demo_embed_messages_total",
			Help: "Accepted widget messages by type",
		}, []string{"type"}),

		EmbedRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_demo_embed_messages_rejected_total",
			Help: "Widget messages dropped by the origin and source filter",
		}, []string{"reason"}), // reason: "origin", "source"

		ConfigSends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_demo_config_sends_total",
			Help: "Scheduled CONFIG deliveries by outcome",
		}, []string{"outcome"}), // outcome: "delivered", "stale", "failed"

		RelayConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "kyc_demo_relay_connections",
			Help: "Open browser relay connections",
		}),

		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_demo_login_attempts_total",
			Help: "Login form submissions by outcome",
		}, []string{"outcome"}), // outcome: "invalid", "session_created", "upstream_error"

		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_demo_rate_limited_total",
			Help: "Requests refused by the session rate limiter by endpoint class",
		}, []string{"class"}),
	}
}

func (m *Metrics) ObserveRequestLatency(method, route string, d time.Duration) {
	if m != nil {
		m.RequestLatency.WithLabelValues(method, route).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementSessionsCreated(outcome string) {
	if m != nil {
		m.SessionsCreated.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveUpstreamDuration(d time.Duration) {
	if m != nil {
		m.UpstreamDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementConfigSaves(field, outcome string) {
	if m != nil {
		m.ConfigSaves.WithLabelValues(field, outcome).Inc()
	}
}

func (m *Metrics) IncrementEmbedMessage(msgType string) {
	if m != nil {
		m.EmbedMessages.WithLabelValues(msgType).Inc()
	}
}

func (m *Metrics) IncrementEmbedRejected(reason string) {
	if m != nil {
		m.EmbedRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementConfigSend(outcome string) {
	if m != nil {
		m.ConfigSends.WithLabelValues(outcome).Inc()
	}
}

// RelayConnected tracks an open relay; call the returned func on disconnect.
func (m *Metrics) RelayConnected() func() {
	if m == nil {
		return func() {}
	}
	m.RelayConnections.Inc()
	return m.RelayConnections.Dec
}

func (m *Metrics) IncrementRateLimited(class string) {
	if m != nil {
		m.RateLimited.WithLabelValues(class).Inc()
	}
}

func (m *Metrics) IncrementLoginAttempt(outcome string) {
	if m != nil {
		m.LoginAttempts.WithLabelValues(outcome).Inc()
	}
}
