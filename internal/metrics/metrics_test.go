package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/probesched/probe-scheduler/internal/lifecycle"
)

func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := cv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func getHistogramCount(hv *prometheus.HistogramVec, labels ...string) uint64 {
	m := &dto.Metric{}
	observer := hv.WithLabelValues(labels...)
	if c, ok := observer.(prometheus.Metric); ok {
		if err := c.Write(m); err != nil {
			return 0
		}
		return m.GetHistogram().GetSampleCount()
	}
	return 0
}

func TestRecordRun(t *testing.T) {
	RecordRun("interval", "success", 250*time.Millisecond)

	val := getCounterValue(RunsTotal, "interval", "success")
	if val < 1 {
		t.Errorf("RunsTotal = %f, want >= 1", val)
	}

	count := getHistogramCount(RunDurationSeconds, "interval")
	if count < 1 {
		t.Errorf("RunDurationSeconds sample count = %d, want >= 1", count)
	}
}

func TestRecordAttempt(t *testing.T) {
	RecordAttempt("timeout")
	RecordAttempt("timeout")

	val := getCounterValue(AttemptsTotal, "timeout")
	if val < 2 {
		t.Errorf("AttemptsTotal = %f, want >= 2", val)
	}
}

func TestRecordControlPlaneOp(t *testing.T) {
	RecordControlPlaneOp("create_schedule", nil)
	RecordControlPlaneOp("create_schedule", errTest)

	ok := getCounterValue(ControlPlaneOpsTotal, "create_schedule", "ok")
	if ok < 1 {
		t.Errorf("ControlPlaneOpsTotal ok = %f, want >= 1", ok)
	}
	errored := getCounterValue(ControlPlaneOpsTotal, "create_schedule", "error")
	if errored < 1 {
		t.Errorf("ControlPlaneOpsTotal error = %f, want >= 1", errored)
	}
}

func TestObserverTracksActiveWorkflows(t *testing.T) {
	ActiveWorkflowsTotal.Set(0)
	var obs Observer

	obs.ObserveLifecycleEvent(lifecycle.Event{Type: lifecycle.EventWorkflowStarted})
	obs.ObserveLifecycleEvent(lifecycle.Event{Type: lifecycle.EventWorkflowResumed})
	if val := getGaugeValue(ActiveWorkflowsTotal); val != 2 {
		t.Errorf("ActiveWorkflowsTotal = %f, want 2", val)
	}

	obs.ObserveLifecycleEvent(lifecycle.Event{Type: lifecycle.EventWorkflowExited})
	if val := getGaugeValue(ActiveWorkflowsTotal); val != 1 {
		t.Errorf("ActiveWorkflowsTotal = %f, want 1", val)
	}
}

func TestObserverTracksPausedSchedules(t *testing.T) {
	SchedulesPausedTotal.Set(0)
	var obs Observer

	obs.ObserveLifecycleEvent(lifecycle.Event{Type: lifecycle.EventSchedulePaused})
	if val := getGaugeValue(SchedulesPausedTotal); val != 1 {
		t.Errorf("SchedulesPausedTotal = %f, want 1", val)
	}

	obs.ObserveLifecycleEvent(lifecycle.Event{Type: lifecycle.EventScheduleResumed})
	if val := getGaugeValue(SchedulesPausedTotal); val != 0 {
		t.Errorf("SchedulesPausedTotal = %f, want 0", val)
	}
}

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "boom" }
