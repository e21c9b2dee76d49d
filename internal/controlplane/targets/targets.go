// Package targets implements the create/update/delete control-plane
// operations for Targets, cascading into their owned URL row and, on
// delete, into every Schedule attached to the target.
package targets

import (
	"context"
	"fmt"

	"github.com/probesched/probe-scheduler/internal/controlplane/schedules"
	"github.com/probesched/probe-scheduler/internal/lifecycle"
	"github.com/probesched/probe-scheduler/internal/metrics"
	"github.com/probesched/probe-scheduler/internal/model"
	"github.com/probesched/probe-scheduler/internal/store"
	"github.com/probesched/probe-scheduler/internal/tracing"
	"go.uber.org/zap"
)

// Service mutates Target rows and their owned URL, delegating Schedule
// teardown to schedules.Service so a target delete terminates every
// workflow attached to it.
type Service struct {
	store     *store.Store
	schedules *schedules.Service
	observer  lifecycle.Observer
	logger    *zap.Logger
}

// New creates a Service. schedules may be nil in tests that never exercise
// Delete's cascade.
func New(s *store.Store, sched *schedules.Service, observer lifecycle.Observer, logger *zap.Logger) *Service {
	if observer == nil {
		observer = lifecycle.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, schedules: sched, observer: observer, logger: logger}
}

// CreateInput is the payload for create-target.
type CreateInput struct {
	Name              string
	URL               model.URL
	Method            model.Method
	Headers           map[string]string
	Body              model.JSONValue
	TimeoutSeconds    int
	RetryCount        int
	RetryDelaySeconds int
	FollowRedirects   bool
}

// Create inserts the URL row then the Target row referencing it. If the
// Target insert fails, the URL row just inserted is deleted again, so a
// failed create leaves neither row behind.
func (s *Service) Create(in CreateInput) (_ model.Target, err error) {
	_, span := tracing.StartControlPlaneSpan(context.Background(), "create_target", in.Name)
	defer span.End()
	defer func() { metrics.RecordControlPlaneOp("create_target", err) }()

	if in.Name == "" {
		return model.Target{}, fmt.Errorf("target name is required")
	}
	if !model.ValidMethod(string(in.Method)) {
		return model.Target{}, fmt.Errorf("invalid method %q", in.Method)
	}
	target := applyDefaults(model.Target{
		Name:              in.Name,
		Method:            in.Method,
		Headers:           in.Headers,
		Body:              in.Body,
		TimeoutSeconds:    in.TimeoutSeconds,
		RetryCount:        in.RetryCount,
		RetryDelaySeconds: in.RetryDelaySeconds,
		FollowRedirects:   in.FollowRedirects,
	})

	u, err := s.store.CreateURL(in.URL)
	if err != nil {
		return model.Target{}, fmt.Errorf("create target: %w", err)
	}
	target.URLID = u.ID

	created, err := s.store.CreateTarget(target)
	if err != nil {
		_ = s.store.DeleteURL(u.ID)
		return model.Target{}, fmt.Errorf("create target: %w", err)
	}
	lifecycle.Emit(s.observer, lifecycle.Event{Type: lifecycle.EventTargetCreated, TargetID: created.ID})
	return created, nil
}

// UpdateInput is the payload for update-target. A zero-value URL means "keep
// the existing URL" since URL has no optional-pointer fields of its own.
type UpdateInput struct {
	Name              string
	URL               *model.URL
	Method            model.Method
	Headers           map[string]string
	Body              model.JSONValue
	TimeoutSeconds    int
	RetryCount        int
	RetryDelaySeconds int
	FollowRedirects   bool
}

// Update replaces the Target's mutable fields. If a new URL is supplied, a
// fresh URL row is created, the Target is repointed at it, and the old URL
// row is discarded — per the contract, update-target never mutates a URL
// row in place. Update does not touch Schedules or running workflows.
func (s *Service) Update(id string, in UpdateInput) (_ model.Target, err error) {
	_, span := tracing.StartControlPlaneSpan(context.Background(), "update_target", id)
	defer span.End()
	defer func() { metrics.RecordControlPlaneOp("update_target", err) }()

	existing, err := s.store.GetTarget(id)
	if err != nil {
		return model.Target{}, err
	}
	if !model.ValidMethod(string(in.Method)) {
		return model.Target{}, fmt.Errorf("invalid method %q", in.Method)
	}

	updated := applyDefaults(model.Target{
		ID:                id,
		Name:              in.Name,
		URLID:             existing.URLID,
		Method:            in.Method,
		Headers:           in.Headers,
		Body:              in.Body,
		TimeoutSeconds:    in.TimeoutSeconds,
		RetryCount:        in.RetryCount,
		RetryDelaySeconds: in.RetryDelaySeconds,
		FollowRedirects:   in.FollowRedirects,
	})

	oldURLID := ""
	if in.URL != nil {
		newURL, err := s.store.CreateURL(*in.URL)
		if err != nil {
			return model.Target{}, fmt.Errorf("update target: %w", err)
		}
		updated.URLID = newURL.ID
		oldURLID = existing.URLID
	}

	if err := s.store.UpdateTarget(updated); err != nil {
		return model.Target{}, fmt.Errorf("update target: %w", err)
	}
	if oldURLID != "" {
		if err := s.store.DeleteURL(oldURLID); err != nil {
			s.logger.Warn("failed to discard superseded url", zap.String("url_id", oldURLID), zap.Error(err))
		}
	}
	lifecycle.Emit(s.observer, lifecycle.Event{Type: lifecycle.EventTargetUpdated, TargetID: id})
	return s.store.GetTarget(id)
}

// Get fetches a Target by id.
func (s *Service) Get(id string) (model.Target, error) {
	return s.store.GetTarget(id)
}

// List returns every Target.
func (s *Service) List() ([]model.Target, error) {
	return s.store.ListTargets()
}

// Delete cascade-deletes every Schedule attached to id (each via
// schedules.Service.Delete, so their workflows are terminated first), then
// the Target row, then its owned URL row.
func (s *Service) Delete(id string) (err error) {
	_, span := tracing.StartControlPlaneSpan(context.Background(), "delete_target", id)
	defer span.End()
	defer func() { metrics.RecordControlPlaneOp("delete_target", err) }()

	target, err := s.store.GetTarget(id)
	if err != nil {
		return err
	}

	attached, err := s.store.ListSchedulesForTarget(id)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	for _, sched := range attached {
		if s.schedules != nil {
			if err := s.schedules.Delete(sched.ID); err != nil {
				return fmt.Errorf("delete target: cascade schedule %s: %w", sched.ID, err)
			}
		} else if err := s.store.DeleteSchedule(sched.ID, sched.Kind); err != nil {
			return fmt.Errorf("delete target: cascade schedule %s: %w", sched.ID, err)
		}
	}

	if err := s.store.DeleteTarget(id); err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if err := s.store.DeleteURL(target.URLID); err != nil {
		s.logger.Warn("failed to delete target's url", zap.String("url_id", target.URLID), zap.Error(err))
	}
	lifecycle.Emit(s.observer, lifecycle.Event{Type: lifecycle.EventTargetDeleted, TargetID: id})
	return nil
}

// applyDefaults fills in zero-value fields that have no legitimate "unset"
// meaning of their own. retry_delay_seconds is not among them: 0 is a valid
// explicit value, so its default is resolved at the HTTP boundary instead,
// the same way follow_redirects' default-true is.
func applyDefaults(t model.Target) model.Target {
	if t.Headers == nil {
		t.Headers = map[string]string{}
	}
	if t.TimeoutSeconds == 0 {
		t.TimeoutSeconds = 30
	}
	return t
}
