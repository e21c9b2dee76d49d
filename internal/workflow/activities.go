package workflow

import (
	"context"

	"github.com/probesched/probe-scheduler/internal/model"
	"github.com/probesched/probe-scheduler/internal/probe/executor"
)

// FetchResult is the frozen snapshot a workflow iteration acts on: either the
// schedule is gone or paused, or it carries everything needed to run one
// Probe activity.
type FetchResult struct {
	Deleted         bool
	Paused          bool
	Kind            model.ScheduleKind
	IntervalSeconds int
	DurationSeconds int
	Target          model.Target
	URL             model.URL
}

// Activities is the set of durable-execution activities the engine invokes.
// Implementations live in internal/activities; the engine depends only on
// this interface so the two packages don't import each other.
type Activities interface {
	// Fetch re-reads the schedule and its target/URL, returning Deleted or
	// Paused instead of an error when the schedule no longer runs.
	Fetch(ctx context.Context, scheduleID string) (FetchResult, error)
	// Probe runs one HTTP probe (including its own internal retry loop) and
	// never returns a domain error — only a canceled ctx aborts early.
	Probe(ctx context.Context, in executor.Input) (*executor.Result, error)
	// Record persists the Run and its Attempts for scheduleID/runNumber.
	Record(ctx context.Context, scheduleID string, runNumber int, result *executor.Result) (model.Run, error)
}

func buildProbeInput(target model.Target, u model.URL) executor.Input {
	return executor.Input{
		URL:               u.String(),
		Method:            target.Method,
		Headers:           target.Headers,
		Body:              target.Body,
		TimeoutSeconds:    target.TimeoutSeconds,
		RetryCount:        target.RetryCount,
		RetryDelaySeconds: target.RetryDelaySeconds,
		FollowRedirects:   target.FollowRedirects,
	}
}
