// Package schedules implements the create/update/pause/resume/delete
// control-plane operations for Schedules: starting, terminating, and
// reconciling the workflow.Engine executions backing each one.
package schedules

import (
	"context"
	"fmt"

	"github.com/probesched/probe-scheduler/internal/lifecycle"
	"github.com/probesched/probe-scheduler/internal/metrics"
	"github.com/probesched/probe-scheduler/internal/model"
	"github.com/probesched/probe-scheduler/internal/store"
	"github.com/probesched/probe-scheduler/internal/tracing"
	"github.com/probesched/probe-scheduler/internal/workflow"
	"go.uber.org/zap"
)

// Service starts, terminates, and mutates Schedules, keeping workflow.Engine
// executions and the Schedule rows' paused/workflow_handle fields in sync.
type Service struct {
	store    *store.Store
	engine   *workflow.Engine
	observer lifecycle.Observer
	logger   *zap.Logger
}

// New creates a Service.
func New(s *store.Store, engine *workflow.Engine, observer lifecycle.Observer, logger *zap.Logger) *Service {
	if observer == nil {
		observer = lifecycle.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, engine: engine, observer: observer, logger: logger}
}

// CreateInput is the payload for create-schedule.
type CreateInput struct {
	Kind            model.ScheduleKind
	Name            string
	TargetID        string
	IntervalSeconds int
	DurationSeconds int
	Paused          bool
}

// Create inserts the Schedule row; unless created paused, it immediately
// starts the backing workflow and persists the resulting handle.
func (s *Service) Create(in CreateInput) (_ model.Schedule, err error) {
	ctx, span := tracing.StartControlPlaneSpan(context.Background(), "create_schedule", in.TargetID)
	defer span.End()
	defer func() { metrics.RecordControlPlaneOp("create_schedule", err) }()

	if in.IntervalSeconds <= 0 {
		return model.Schedule{}, fmt.Errorf("interval_seconds must be > 0")
	}
	if in.Kind == model.ScheduleWindow && in.DurationSeconds <= 0 {
		return model.Schedule{}, fmt.Errorf("duration_seconds must be > 0 for a window schedule")
	}
	if _, err := s.store.GetTarget(in.TargetID); err != nil {
		return model.Schedule{}, fmt.Errorf("create schedule: %w", err)
	}

	sched := model.Schedule{
		Name:            in.Name,
		TargetID:        in.TargetID,
		IntervalSeconds: in.IntervalSeconds,
		DurationSeconds: in.DurationSeconds,
		Paused:          in.Paused,
	}

	var created model.Schedule
	switch in.Kind {
	case model.ScheduleWindow:
		created, err = s.store.CreateWindowSchedule(sched)
	default:
		created, err = s.store.CreateIntervalSchedule(sched)
	}
	if err != nil {
		return model.Schedule{}, fmt.Errorf("create schedule: %w", err)
	}

	lifecycle.Emit(s.observer, lifecycle.Event{Type: lifecycle.EventScheduleCreated, ScheduleID: created.ID, TargetID: created.TargetID})

	if created.Paused {
		return created, nil
	}

	handle := workflowHandle(created.ID)
	s.engine.Start(ctx, created.ID, created.Kind)
	if err := s.store.SetScheduleHandle(created.ID, created.Kind, handle); err != nil {
		return model.Schedule{}, fmt.Errorf("create schedule: persist handle: %w", err)
	}
	created.WorkflowHandle = handle
	return created, nil
}

// UpdateInterval mutates interval_seconds (and, for a window schedule,
// duration_seconds). It never restarts the workflow: the running loop
// re-fetches and observes the new value on its next tick.
func (s *Service) UpdateInterval(id string, intervalSeconds, durationSeconds int) (_ model.Schedule, err error) {
	_, span := tracing.StartControlPlaneSpan(context.Background(), "update_schedule", id)
	defer span.End()
	defer func() { metrics.RecordControlPlaneOp("update_schedule", err) }()

	sched, err := s.store.GetSchedule(id)
	if err != nil {
		return model.Schedule{}, err
	}
	if intervalSeconds <= 0 {
		return model.Schedule{}, fmt.Errorf("interval_seconds must be > 0")
	}
	if err := s.store.UpdateScheduleInterval(id, sched.Kind, intervalSeconds); err != nil {
		return model.Schedule{}, fmt.Errorf("update schedule: %w", err)
	}
	if sched.Kind == model.ScheduleWindow && durationSeconds > 0 {
		if err := s.store.UpdateScheduleDuration(id, durationSeconds); err != nil {
			return model.Schedule{}, fmt.Errorf("update schedule: %w", err)
		}
	}
	lifecycle.Emit(s.observer, lifecycle.Event{Type: lifecycle.EventScheduleUpdated, ScheduleID: id})
	return s.store.GetSchedule(id)
}

// Pause terminates the workflow (best-effort — a missing execution is not an
// error) and marks the schedule paused with its handle cleared.
func (s *Service) Pause(id string) (_ model.Schedule, err error) {
	_, span := tracing.StartControlPlaneSpan(context.Background(), "pause_schedule", id)
	defer span.End()
	defer func() { metrics.RecordControlPlaneOp("pause_schedule", err) }()

	sched, err := s.store.GetSchedule(id)
	if err != nil {
		return model.Schedule{}, err
	}

	s.engine.Terminate(id)

	if err := s.store.SetSchedulePaused(id, sched.Kind, true); err != nil {
		return model.Schedule{}, fmt.Errorf("pause schedule: %w", err)
	}
	if err := s.store.SetScheduleHandle(id, sched.Kind, ""); err != nil {
		return model.Schedule{}, fmt.Errorf("pause schedule: %w", err)
	}
	lifecycle.Emit(s.observer, lifecycle.Event{Type: lifecycle.EventSchedulePaused, ScheduleID: id})
	return s.store.GetSchedule(id)
}

// Resume flips paused off and reconciles the workflow: if the engine already
// reports it running (the describe-succeeds path) this starts nothing new;
// otherwise a fresh execution is started that replays the journal from the
// last persisted wake time.
func (s *Service) Resume(id string) (_ model.Schedule, err error) {
	ctx, span := tracing.StartControlPlaneSpan(context.Background(), "resume_schedule", id)
	defer span.End()
	defer func() { metrics.RecordControlPlaneOp("resume_schedule", err) }()

	sched, err := s.store.GetSchedule(id)
	if err != nil {
		return model.Schedule{}, err
	}

	if err := s.store.SetSchedulePaused(id, sched.Kind, false); err != nil {
		return model.Schedule{}, fmt.Errorf("resume schedule: %w", err)
	}

	handle := workflowHandle(id)
	s.engine.Resume(ctx, id, sched.Kind)
	if err := s.store.SetScheduleHandle(id, sched.Kind, handle); err != nil {
		return model.Schedule{}, fmt.Errorf("resume schedule: %w", err)
	}
	lifecycle.Emit(s.observer, lifecycle.Event{Type: lifecycle.EventScheduleResumed, ScheduleID: id})
	return s.store.GetSchedule(id)
}

// Delete terminates the workflow (best-effort) and cascade-deletes the
// Schedule's Runs/Attempts and the Schedule row itself.
func (s *Service) Delete(id string) (err error) {
	_, span := tracing.StartControlPlaneSpan(context.Background(), "delete_schedule", id)
	defer span.End()
	defer func() { metrics.RecordControlPlaneOp("delete_schedule", err) }()

	sched, err := s.store.GetSchedule(id)
	if err != nil {
		return err
	}

	s.engine.Terminate(id)

	if err := s.store.DeleteSchedule(id, sched.Kind); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	lifecycle.Emit(s.observer, lifecycle.Event{Type: lifecycle.EventScheduleDeleted, ScheduleID: id})
	return nil
}

// Get fetches a Schedule by id.
func (s *Service) Get(id string) (model.Schedule, error) {
	return s.store.GetSchedule(id)
}

// List returns every Schedule, Interval and Window alike.
func (s *Service) List() ([]model.Schedule, error) {
	return s.store.ListSchedules()
}

func workflowHandle(scheduleID string) string {
	return "schedule-" + scheduleID
}
