package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// runWindow is WindowScheduleWorkflow: fetch once to establish the bounded
// window, then loop probe/record/sleep until the next tick would fall on or
// after end_time, at which point the workflow exits for good (a Window
// schedule runs once and is done, it does not restart).
func (e *Engine) runWindow(ctx context.Context, scheduleID, executionID string, resume bool) {
	runNumber := 0
	var endTime time.Time

	if resume {
		wakeAt, lastRunNumber, persistedEnd, found, err := e.journal.LastWindowWake(scheduleID)
		if err != nil {
			e.logger.Warn("read last window wake failed, resuming fresh", zap.String("schedule_id", scheduleID), zap.Error(err))
		}
		if found && !persistedEnd.IsZero() {
			runNumber = lastRunNumber
			endTime = persistedEnd
			if !waitOrCancel(ctx, time.Until(wakeAt)) {
				return
			}
		}
	}

	if endTime.IsZero() {
		fetch, err := e.activities.Fetch(ctx, scheduleID)
		if err != nil {
			e.logger.Warn("initial fetch failed, exiting window workflow", zap.String("schedule_id", scheduleID), zap.Error(err))
			return
		}
		if fetch.Deleted {
			e.exitWorkflow(scheduleID, executionID, "deleted")
			return
		}
		endTime = time.Now().Add(time.Duration(fetch.DurationSeconds) * time.Second)
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if !time.Now().Before(endTime) {
			e.exitWorkflow(scheduleID, executionID, "window_elapsed")
			return
		}

		fetch, err := e.activities.Fetch(ctx, scheduleID)
		if err != nil {
			e.logger.Warn("fetch failed, exiting window workflow", zap.String("schedule_id", scheduleID), zap.Error(err))
			return
		}
		if fetch.Deleted {
			e.exitWorkflow(scheduleID, executionID, "deleted")
			return
		}

		if fetch.Paused {
			e.exitWorkflow(scheduleID, executionID, "paused")
			return
		}

		runNumber++
		e.executeOnce(ctx, scheduleID, executionID, "window", runNumber, fetch)

		interval := time.Duration(fetch.IntervalSeconds) * time.Second
		nextRun := time.Now().Add(interval)
		if !nextRun.Before(endTime) {
			e.exitWorkflow(scheduleID, executionID, "window_elapsed")
			return
		}

		if !e.durableWindowSleep(ctx, scheduleID, executionID, runNumber, interval, endTime) {
			return
		}
	}
}

func (e *Engine) durableWindowSleep(ctx context.Context, scheduleID, executionID string, runNumber int, interval time.Duration, endTime time.Time) bool {
	wake := time.Now().Add(interval)
	if err := e.journal.Append(scheduleID, executionID, HistorySleepCommitted, sleepPayload{
		NextWakeAt: wake.UTC().Format(time.RFC3339Nano),
		RunNumber:  runNumber,
		EndTime:    endTime.UTC().Format(time.RFC3339Nano),
	}); err != nil {
		e.logger.Warn("append sleep_committed failed", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
	return waitOrCancel(ctx, interval)
}
