// Package workflow is the in-process durable execution substrate: one
// goroutine per active schedule, replaying a SQL journal on resume instead
// of an external workflow-engine SDK.
package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/probesched/probe-scheduler/internal/lifecycle"
	"github.com/probesched/probe-scheduler/internal/model"
	"go.uber.org/zap"
)

// defaultPausedPollInterval is how often an interval schedule found paused
// re-checks its own state; it replaces IntervalSeconds while paused.
const defaultPausedPollInterval = 30 * time.Second

type execution struct {
	executionID string
	cancel      context.CancelFunc
}

// Engine owns one execution goroutine per active schedule, keyed by
// schedule id, mirroring jobs.Scheduler's inFlight/activeTargets bookkeeping
// but for long-lived workflow executions instead of one-shot command runs.
type Engine struct {
	journal    *Journal
	activities Activities
	logger     *zap.Logger
	observer   lifecycle.Observer

	pausedPollInterval time.Duration

	mu         sync.Mutex
	executions map[string]*execution
	wg         sync.WaitGroup
}

// NewEngine creates the durable execution substrate backed by db's
// workflow_history table.
func NewEngine(db *sql.DB, activities Activities, logger *zap.Logger, observer lifecycle.Observer) (*Engine, error) {
	journal, err := NewJournal(db)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = lifecycle.Noop{}
	}
	return &Engine{
		journal:            journal,
		activities:         activities,
		logger:             logger,
		observer:           observer,
		pausedPollInterval: defaultPausedPollInterval,
		executions:         make(map[string]*execution),
	}, nil
}

// SetPausedPollInterval overrides how often an interval schedule found
// paused re-checks for resume. d <= 0 is ignored.
func (e *Engine) SetPausedPollInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	e.pausedPollInterval = d
}

// ActiveCount returns the number of schedules with a live execution
// goroutine, for health/metrics reporting.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.executions)
}

// IsRunning reports whether scheduleID currently has a live goroutine.
func (e *Engine) IsRunning(scheduleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.executions[scheduleID]
	return ok
}

// Start begins a brand-new workflow execution for scheduleID. Safe to call
// on an already-running schedule: it is a no-op in that case.
func (e *Engine) Start(ctx context.Context, scheduleID string, kind model.ScheduleKind) {
	e.startExecution(ctx, scheduleID, kind, false)
}

// Resume reconciles scheduleID against the engine's live handle table the
// way the reference system's resume_schedule describes-then-starts: if a
// goroutine is already running, this is a no-op (the "describe succeeds"
// path); otherwise a fresh execution is started that first replays the
// journal to resume from the last persisted wake time rather than resetting
// the schedule's cadence.
func (e *Engine) Resume(ctx context.Context, scheduleID string, kind model.ScheduleKind) {
	if e.IsRunning(scheduleID) {
		return
	}
	e.startExecution(ctx, scheduleID, kind, true)
}

func (e *Engine) startExecution(ctx context.Context, scheduleID string, kind model.ScheduleKind, resume bool) {
	e.mu.Lock()
	if _, ok := e.executions[scheduleID]; ok {
		e.mu.Unlock()
		return
	}
	execCtx, cancel := context.WithCancel(ctx)
	executionID := fmt.Sprintf("wf-%s-%d", scheduleID, time.Now().UnixNano())
	e.executions[scheduleID] = &execution{executionID: executionID, cancel: cancel}
	e.mu.Unlock()

	if !resume {
		if err := e.journal.Append(scheduleID, executionID, HistoryWorkflowStarted, map[string]any{"kind": string(kind)}); err != nil {
			e.logger.Warn("append workflow_started failed", zap.String("schedule_id", scheduleID), zap.Error(err))
		}
	}
	lifecycle.Emit(e.observer, lifecycle.Event{Type: lifecycle.EventWorkflowStarted, ScheduleID: scheduleID})

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.finish(scheduleID)

		switch kind {
		case model.ScheduleInterval:
			e.runInterval(execCtx, scheduleID, executionID, resume)
		case model.ScheduleWindow:
			e.runWindow(execCtx, scheduleID, executionID, resume)
		default:
			e.logger.Warn("unknown schedule kind", zap.String("schedule_id", scheduleID), zap.String("kind", string(kind)))
		}
	}()
}

func (e *Engine) finish(scheduleID string) {
	e.mu.Lock()
	delete(e.executions, scheduleID)
	e.mu.Unlock()
}

// Terminate cancels scheduleID's execution context, if one is running. The
// goroutine observes cancellation at its next context check point (a
// durable sleep wait or an in-flight Probe's request context) and exits.
func (e *Engine) Terminate(scheduleID string) {
	e.mu.Lock()
	exec, ok := e.executions[scheduleID]
	e.mu.Unlock()
	if !ok {
		return
	}
	exec.cancel()
}

// Stop cancels every live execution and waits for all goroutines to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	execs := make([]*execution, 0, len(e.executions))
	for _, exec := range e.executions {
		execs = append(execs, exec)
	}
	e.mu.Unlock()

	for _, exec := range execs {
		exec.cancel()
	}
	e.wg.Wait()
}

// waitOrCancel blocks for d or until ctx is canceled, returning false if
// canceled first.
func waitOrCancel(ctx context.Context, d time.Duration) bool {
	if d < 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
