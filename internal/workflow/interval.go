package workflow

import (
	"context"
	"time"

	"github.com/probesched/probe-scheduler/internal/lifecycle"
	"github.com/probesched/probe-scheduler/internal/metrics"
	"github.com/probesched/probe-scheduler/internal/tracing"
	"go.uber.org/zap"
)

// runInterval is IntervalScheduleWorkflow: fetch, check deleted/paused,
// probe, record, increment run_number, durably sleep interval_seconds,
// repeat until the schedule is deleted, a Fetch fails, or the context is
// canceled.
func (e *Engine) runInterval(ctx context.Context, scheduleID, executionID string, resume bool) {
	runNumber := 0

	if resume {
		wakeAt, lastRunNumber, found, err := e.journal.LastWake(scheduleID)
		if err != nil {
			e.logger.Warn("read last wake failed, resuming fresh", zap.String("schedule_id", scheduleID), zap.Error(err))
		}
		if found {
			runNumber = lastRunNumber
			if !waitOrCancel(ctx, time.Until(wakeAt)) {
				return
			}
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}

		fetch, err := e.activities.Fetch(ctx, scheduleID)
		if err != nil {
			e.logger.Warn("fetch failed, exiting interval workflow", zap.String("schedule_id", scheduleID), zap.Error(err))
			return
		}
		if fetch.Deleted {
			e.exitWorkflow(scheduleID, executionID, "deleted")
			return
		}

		var interval time.Duration
		if fetch.Paused {
			interval = e.pausedPollInterval
		} else {
			runNumber++
			e.executeOnce(ctx, scheduleID, executionID, "interval", runNumber, fetch)
			interval = time.Duration(fetch.IntervalSeconds) * time.Second
		}

		if !e.durableSleep(ctx, scheduleID, executionID, runNumber, interval) {
			return
		}
	}
}

func (e *Engine) executeOnce(ctx context.Context, scheduleID, executionID, kind string, runNumber int, fetch FetchResult) {
	ctx, span := tracing.StartWorkflowSpan(ctx, scheduleID, kind)
	defer span.End()

	input := buildProbeInput(fetch.Target, fetch.URL)
	result, err := e.activities.Probe(ctx, input)
	if err != nil {
		e.logger.Warn("probe activity failed", zap.String("schedule_id", scheduleID), zap.Int("run_number", runNumber), zap.Error(err))
		return
	}

	for _, attempt := range result.Attempts {
		metrics.RecordAttempt(string(attempt.Status))
	}
	var latency time.Duration
	if result.LatencyMS != nil {
		latency = time.Duration(*result.LatencyMS * float64(time.Millisecond))
	}
	metrics.RecordRun(kind, string(result.Status), latency)

	run, err := e.activities.Record(ctx, scheduleID, runNumber, result)
	if err != nil {
		e.logger.Warn("record activity failed", zap.String("schedule_id", scheduleID), zap.Int("run_number", runNumber), zap.Error(err))
		return
	}

	if appendErr := e.journal.Append(scheduleID, executionID, HistoryActivityCompleted, map[string]any{
		"run_id":     run.ID,
		"run_number": runNumber,
		"status":     string(run.Status),
	}); appendErr != nil {
		e.logger.Warn("append activity_completed failed", zap.String("schedule_id", scheduleID), zap.Error(appendErr))
	}

	lifecycle.Emit(e.observer, lifecycle.Event{
		Type:       lifecycle.EventRunCompleted,
		ScheduleID: scheduleID,
		RunID:      run.ID,
		RunNumber:  runNumber,
		Status:     string(run.Status),
	})
}

func (e *Engine) durableSleep(ctx context.Context, scheduleID, executionID string, runNumber int, interval time.Duration) bool {
	wake := time.Now().Add(interval)
	if err := e.journal.Append(scheduleID, executionID, HistorySleepCommitted, sleepPayload{
		NextWakeAt: wake.UTC().Format(time.RFC3339Nano),
		RunNumber:  runNumber,
	}); err != nil {
		e.logger.Warn("append sleep_committed failed", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
	lifecycle.Emit(e.observer, lifecycle.Event{Type: lifecycle.EventWorkflowSleep, ScheduleID: scheduleID, NextWakeAt: &wake})

	return waitOrCancel(ctx, interval)
}

func (e *Engine) exitWorkflow(scheduleID, executionID, reason string) {
	if err := e.journal.Append(scheduleID, executionID, HistoryWorkflowExited, map[string]any{"reason": reason}); err != nil {
		e.logger.Warn("append workflow_exited failed", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
	lifecycle.Emit(e.observer, lifecycle.Event{Type: lifecycle.EventWorkflowExited, ScheduleID: scheduleID, Reason: reason})
}
