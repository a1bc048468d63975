package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics collects counters for one audit process. A nil *AuditMetrics
// is valid and records nothing.
type AuditMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	PollAttempts    prometheus.Counter
	Outcomes        *prometheus.CounterVec
	PolicyActions   *prometheus.CounterVec
}

// NewAuditMetrics creates the audit metrics and registers them on reg.
func NewAuditMetrics(reg prometheus.Registerer) *AuditMetrics {
	m := &AuditMetrics{}

	m.RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqaudit_requests_total",
			Help: "Total number of requests sent to the IQ server",
		},
		[]string{"step", "status"},
	)

	m.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iqaudit_request_duration_seconds",
			Help:    "Duration of IQ server requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	m.PollAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "iqaudit_poll_attempts_total",
			Help: "Total number of report status polls",
		},
	)

	m.Outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqaudit_outcomes_total",
			Help: "Audit runs by terminal outcome",
		},
		[]string{"outcome"},
	)

	m.PolicyActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqaudit_policy_actions_total",
			Help: "Completed audits by policy action",
		},
		[]string{"action"},
	)

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.PollAttempts,
		m.Outcomes,
		m.PolicyActions,
	)

	return m
}

// ObserveRequest records one request. status is the HTTP status code, or 0
// when the request never got a response.
func (m *AuditMetrics) ObserveRequest(step string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = fmt.Sprintf("%d", status)
	}
	m.RequestsTotal.WithLabelValues(step, label).Inc()
	m.RequestDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (m *AuditMetrics) IncPollAttempt() {
	if m == nil {
		return
	}
	m.PollAttempts.Inc()
}

func (m *AuditMetrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

func (m *AuditMetrics) RecordPolicyAction(action string) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	m.PolicyActions.WithLabelValues(action).Inc()
}

// WriteTextfile dumps everything in g to path in the Prometheus text format,
// suitable for the node exporter textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
