// Package observability provides Prometheus metrics instrumentation for
// the command core.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// COMMAND METRICS
// =============================================================================

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valet_commands_total",
			Help: "Total number of submitted commands",
		},
		[]string{"intent", "status"}, // status: ok, needs_confirmation, error
	)

	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "valet_command_duration_seconds",
			Help:    "Command handling duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"intent"},
	)
)

// =============================================================================
// POLICY METRICS
// =============================================================================

var (
	policyDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valet_policy_decisions_total",
			Help: "Total policy gate decisions",
		},
		[]string{"action", "effect"}, // effect: allow, require_confirmation, deny
	)
)

// =============================================================================
// PENDING ACTION METRICS
// =============================================================================

var (
	pendingActionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valet_pending_actions_created_total",
			Help: "Total pending actions staged for confirmation",
		},
		[]string{"action"},
	)

	pendingActionsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valet_pending_actions_resolved_total",
			Help: "Total pending actions resolved",
		},
		[]string{"resolution"}, // resolution: confirmed, cancelled, expired
	)
)

// =============================================================================
// EXECUTOR METRICS
// =============================================================================

var (
	executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valet_executions_total",
			Help: "Total action executor invocations",
		},
		[]string{"action", "status"}, // status: executed, failed
	)

	executionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "valet_execution_duration_seconds",
			Help:    "Action executor duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"action"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordCommand records command handling metrics.
// This should be called after a submitted command is fully handled.
func RecordCommand(intent string, status string, durationMS int) {
	commandsTotal.WithLabelValues(intent, status).Inc()
	commandDurationSeconds.WithLabelValues(intent).Observe(float64(durationMS) / 1000.0)
}

// RecordPolicyDecision records one policy gate decision.
func RecordPolicyDecision(action string, effect string) {
	policyDecisionsTotal.WithLabelValues(action, effect).Inc()
}

// RecordPendingCreated records a newly staged pending action.
func RecordPendingCreated(action string) {
	pendingActionsCreatedTotal.WithLabelValues(action).Inc()
}

// RecordPendingResolved records a pending action leaving the store.
// Resolution is one of "confirmed", "cancelled", "expired".
func RecordPendingResolved(resolution string) {
	pendingActionsResolvedTotal.WithLabelValues(resolution).Inc()
}

// RecordExecution records action executor metrics.
// This should be called after the executor returns.
func RecordExecution(action string, status string, durationMS int) {
	executionsTotal.WithLabelValues(action, status).Inc()
	executionDurationSeconds.WithLabelValues(action).Observe(float64(durationMS) / 1000.0)
}
