// Package metrics defines Prometheus metrics for the probe scheduler.
//
// Metric naming follows Prometheus conventions:
//   - probescheduler_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/probesched/probe-scheduler/internal/lifecycle"
)

var (
	// RunsTotal counts completed Runs by schedule kind and outcome status.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probescheduler_runs_total",
			Help: "Total number of probe runs by schedule kind and status.",
		},
		[]string{"kind", "status"},
	)

	// RunDurationSeconds is a histogram of Run-level latency by schedule kind.
	RunDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "probescheduler_run_duration_seconds",
			Help:    "Wall-clock duration of a probe run, including retries, in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	// AttemptsTotal counts individual HTTP attempts by outcome status,
	// distinct from RunsTotal since one Run can carry several Attempts.
	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probescheduler_attempts_total",
			Help: "Total number of individual HTTP probe attempts by status.",
		},
		[]string{"status"},
	)

	// ActiveWorkflowsTotal is the number of schedules with a live workflow
	// execution goroutine running right now.
	ActiveWorkflowsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "probescheduler_active_workflows",
			Help: "Number of schedules with a currently running workflow execution.",
		},
	)

	// SchedulesPausedTotal is the number of schedules currently paused.
	SchedulesPausedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "probescheduler_schedules_paused",
			Help: "Number of schedules currently paused.",
		},
	)

	// ControlPlaneOpsTotal counts control-plane mutations by operation and
	// outcome (ok/error).
	ControlPlaneOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probescheduler_control_plane_ops_total",
			Help: "Total control-plane operations by kind and outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

// Registry is this module's own Prometheus registry rather than the global
// DefaultRegisterer, so /metrics serves exactly this module's series with
// no risk of collision from whatever else links into the binary.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		RunsTotal,
		RunDurationSeconds,
		AttemptsTotal,
		ActiveWorkflowsTotal,
		SchedulesPausedTotal,
		ControlPlaneOpsTotal,
	)
}

// RecordRun records metrics for one completed probe run.
func RecordRun(kind, status string, duration time.Duration) {
	RunsTotal.WithLabelValues(kind, status).Inc()
	RunDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordAttempt records a single HTTP attempt's outcome.
func RecordAttempt(status string) {
	AttemptsTotal.WithLabelValues(status).Inc()
}

// RecordControlPlaneOp records a create/update/pause/resume/delete call.
func RecordControlPlaneOp(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ControlPlaneOpsTotal.WithLabelValues(operation, outcome).Inc()
}

// Observer adapts lifecycle events into metric updates, so the control plane
// and workflow engine don't need their own Prometheus imports — they just
// emit lifecycle.Events and this Observer keeps the gauges in sync.
type Observer struct{}

// ObserveLifecycleEvent implements lifecycle.Observer.
func (Observer) ObserveLifecycleEvent(evt lifecycle.Event) {
	switch evt.Type {
	case lifecycle.EventWorkflowStarted, lifecycle.EventWorkflowResumed:
		ActiveWorkflowsTotal.Inc()
	case lifecycle.EventWorkflowExited:
		ActiveWorkflowsTotal.Dec()
	case lifecycle.EventSchedulePaused:
		SchedulesPausedTotal.Inc()
	case lifecycle.EventScheduleResumed:
		SchedulesPausedTotal.Dec()
	}
}

var _ lifecycle.Observer = Observer{}
