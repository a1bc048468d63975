package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuditMetrics(reg)

	m.ObserveRequest("resolve", 200, 10*time.Millisecond)
	m.ObserveRequest("poll", 0, time.Millisecond)
	m.ObserveRequest("poll", 0, time.Millisecond)
	m.IncPollAttempt()
	m.IncPollAttempt()
	m.RecordOutcome("done")
	m.RecordPolicyAction("Warn")
	m.RecordPolicyAction("")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("resolve", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("poll", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PollAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PolicyActions.WithLabelValues("Warn")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PolicyActions.WithLabelValues("unknown")))
}

func TestAuditMetrics_Nil(t *testing.T) {
	var m *AuditMetrics

	// Must not panic
	m.ObserveRequest("submit", 202, time.Millisecond)
	m.IncPollAttempt()
	m.RecordOutcome("timeout")
	m.RecordPolicyAction("None")
}

func TestAuditMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on the global registry.
	NewAuditMetrics(prometheus.NewRegistry())
	NewAuditMetrics(prometheus.NewRegistry())
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuditMetrics(reg)
	m.RecordOutcome("done")

	path := filepath.Join(t.TempDir(), "iqaudit.prom")
	require.NoError(t, WriteTextfile(reg, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `iqaudit_outcomes_total{outcome="done"} 1`)
}
