// Package activities implements the Fetch, Probe, and Record durable
// execution activities that internal/workflow's engine invokes on every
// schedule tick. Fetch and Record are store-backed; Probe delegates to
// internal/probe/executor.
package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/probesched/probe-scheduler/internal/model"
	"github.com/probesched/probe-scheduler/internal/probe/executor"
	"github.com/probesched/probe-scheduler/internal/store"
	"github.com/probesched/probe-scheduler/internal/tracing"
	"github.com/probesched/probe-scheduler/internal/workflow"
)

// Activities implements workflow.Activities against a Store and an Executor.
type Activities struct {
	store    *store.Store
	executor *executor.Executor
}

// New creates the activity set the workflow engine drives.
func New(s *store.Store, e *executor.Executor) *Activities {
	return &Activities{store: s, executor: e}
}

// Fetch re-reads the schedule's current state and its target/URL. A
// schedule that no longer exists is reported as Deleted rather than an
// error, mirroring get_schedule_and_target's {"deleted": true} sentinel.
func (a *Activities) Fetch(ctx context.Context, scheduleID string) (workflow.FetchResult, error) {
	ctx, span := tracing.StartFetchSpan(ctx, scheduleID)
	defer span.End()

	sched, err := a.store.GetSchedule(scheduleID)
	if errors.Is(err, store.ErrNotFound) {
		return workflow.FetchResult{Deleted: true}, nil
	}
	if err != nil {
		return workflow.FetchResult{}, fmt.Errorf("fetch schedule: %w", err)
	}
	if sched.Paused {
		return workflow.FetchResult{
			Paused:          true,
			Kind:            sched.Kind,
			IntervalSeconds: sched.IntervalSeconds,
			DurationSeconds: sched.DurationSeconds,
		}, nil
	}

	target, err := a.store.GetTarget(sched.TargetID)
	if errors.Is(err, store.ErrNotFound) {
		return workflow.FetchResult{Deleted: true}, nil
	}
	if err != nil {
		return workflow.FetchResult{}, fmt.Errorf("fetch target: %w", err)
	}

	u, err := a.store.GetURL(target.URLID)
	if errors.Is(err, store.ErrNotFound) {
		return workflow.FetchResult{Deleted: true}, nil
	}
	if err != nil {
		return workflow.FetchResult{}, fmt.Errorf("fetch url: %w", err)
	}

	return workflow.FetchResult{
		Kind:            sched.Kind,
		IntervalSeconds: sched.IntervalSeconds,
		DurationSeconds: sched.DurationSeconds,
		Target:          target,
		URL:             u,
	}, nil
}

// Probe runs the HTTP probe's full retry loop. It never returns a domain
// error; the returned error is reserved for a canceled ctx.
func (a *Activities) Probe(ctx context.Context, in executor.Input) (*executor.Result, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	ctx, span := tracing.StartProbeSpan(ctx, string(in.Method), in.URL)
	result := a.executor.Execute(ctx, in)
	tracing.EndProbeSpan(span, string(result.Status), derefInt(result.StatusCode), len(result.Attempts))
	return result, nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// Record persists the Run-level result and its ordered Attempts.
func (a *Activities) Record(ctx context.Context, scheduleID string, runNumber int, result *executor.Result) (model.Run, error) {
	ctx, span := tracing.StartRecordSpan(ctx, scheduleID, runNumber)
	defer span.End()

	sched, err := a.store.GetSchedule(scheduleID)
	if err != nil {
		return model.Run{}, fmt.Errorf("record: reload schedule: %w", err)
	}
	target, err := a.store.GetTarget(sched.TargetID)
	if err != nil {
		return model.Run{}, fmt.Errorf("record: reload target: %w", err)
	}

	run := model.Run{
		ScheduleID:        scheduleID,
		RunNumber:         runNumber,
		StartedAt:         result.StartedAt,
		Status:            result.Status,
		StatusCode:        result.StatusCode,
		LatencyMS:         result.LatencyMS,
		ResponseSizeBytes: result.ResponseSizeBytes,
		RequestHeaders:    target.Headers,
		RequestBody:       target.Body,
		ResponseHeaders:   result.ResponseHeaders,
		ResponseBody:      result.ResponseBody,
		ErrorMessage:      result.ErrorMessage,
		Redirected:        result.Redirected,
		RedirectCount:     result.RedirectCount,
		RedirectHistory:   result.RedirectHistory,
	}

	attempts := make([]model.Attempt, 0, len(result.Attempts))
	for _, a := range result.Attempts {
		attempts = append(attempts, model.Attempt{
			AttemptNumber:     a.AttemptNumber,
			StartedAt:         a.StartedAt,
			Status:            a.Status,
			StatusCode:        a.StatusCode,
			LatencyMS:         a.LatencyMS,
			ResponseSizeBytes: a.ResponseSizeBytes,
			ResponseHeaders:   a.ResponseHeaders,
			ResponseBody:      a.ResponseBody,
			ErrorMessage:      a.ErrorMessage,
		})
	}

	return a.store.CreateRun(run, attempts)
}
