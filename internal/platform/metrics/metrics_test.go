package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementSessionsCreated("success")
		m.ObserveUpstreamDuration(time.Second)
		m.IncrementConfigSaves("steps", "success")
		m.IncrementEmbedMessage("READY")
		m.IncrementEmbedRejected("origin")
		m.IncrementConfigSend("stale")
		m.RelayConnected()()
		m.IncrementLoginAttempt("invalid")
		m.IncrementRateLimited("session")
		m.ObserveRequestLatency("GET", "/api/config", time.Millisecond)
	})
}

func TestCountersIncrement(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncrementConfigSend("delivered")
	m.IncrementConfigSend("stale")
	m.IncrementConfigSend("stale")
	m.IncrementEmbedRejected("source")
	m.IncrementRateLimited("session")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfigSends.WithLabelValues("delivered")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConfigSends.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbedRejected.WithLabelValues("source")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("session")))

	done := m.RelayConnected()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayConnections))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RelayConnections))
}
