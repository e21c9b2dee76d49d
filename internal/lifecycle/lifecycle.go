// Package lifecycle defines the event types emitted by the control plane and
// the workflow engine as schedules and runs move through their states.
package lifecycle

import (
	"fmt"
	"strings"
	"time"
)

// EventType labels a lifecycle notification emitted to observers.
type EventType string

const (
	EventTargetCreated   EventType = "target.created"
	EventTargetUpdated   EventType = "target.updated"
	EventTargetDeleted   EventType = "target.deleted"
	EventScheduleCreated EventType = "schedule.created"
	EventScheduleUpdated EventType = "schedule.updated"
	EventSchedulePaused  EventType = "schedule.paused"
	EventScheduleResumed EventType = "schedule.resumed"
	EventScheduleDeleted EventType = "schedule.deleted"
	EventRunStarted      EventType = "run.started"
	EventRunAttempt      EventType = "run.attempt"
	EventRunRetrying     EventType = "run.retrying"
	EventRunCompleted    EventType = "run.completed"
	EventWorkflowStarted EventType = "workflow.started"
	EventWorkflowSleep   EventType = "workflow.sleep"
	EventWorkflowResumed EventType = "workflow.resumed"
	EventWorkflowExited  EventType = "workflow.exited"
)

// Event carries schedule/run correlation metadata for observers such as the
// metrics collector or a future audit surface.
type Event struct {
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	ScheduleID   string    `json:"schedule_id,omitempty"`
	TargetID     string    `json:"target_id,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
	RunNumber    int       `json:"run_number,omitempty"`
	Attempt      int       `json:"attempt,omitempty"`
	Status       string    `json:"status,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	NextWakeAt   *time.Time `json:"next_wake_at,omitempty"`
}

func (e Event) normalize() Event {
	e.Type = EventType(strings.TrimSpace(string(e.Type)))
	e.ScheduleID = strings.TrimSpace(e.ScheduleID)
	e.TargetID = strings.TrimSpace(e.TargetID)
	e.RunID = strings.TrimSpace(e.RunID)
	e.Status = strings.TrimSpace(e.Status)
	e.Reason = strings.TrimSpace(e.Reason)
	if e.NextWakeAt != nil {
		ts := e.NextWakeAt.UTC()
		e.NextWakeAt = &ts
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}

// Normalized returns the event with trimmed ids and a non-zero UTC timestamp.
func (e Event) Normalized() Event {
	return e.normalize()
}

// Summary returns a human-readable description, reused by any future log or
// event-stream surface.
func (e Event) Summary() string {
	target := e.ScheduleID
	if target == "" {
		target = "unknown"
	}
	switch e.Type {
	case EventScheduleCreated:
		return fmt.Sprintf("Schedule created: %s", target)
	case EventSchedulePaused:
		return fmt.Sprintf("Schedule paused: %s", target)
	case EventScheduleResumed:
		return fmt.Sprintf("Schedule resumed: %s", target)
	case EventScheduleDeleted:
		return fmt.Sprintf("Schedule deleted: %s", target)
	case EventRunStarted:
		return fmt.Sprintf("Run started for schedule %s", target)
	case EventRunCompleted:
		return fmt.Sprintf("Run completed for schedule %s: %s", target, e.Status)
	case EventWorkflowSleep:
		return fmt.Sprintf("Workflow sleeping for schedule %s until %v", target, e.NextWakeAt)
	default:
		return fmt.Sprintf("Lifecycle event: %s", target)
	}
}

// Observer receives normalized lifecycle events.
type Observer interface {
	ObserveLifecycleEvent(event Event)
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(event Event)

// ObserveLifecycleEvent implements Observer.
func (fn ObserverFunc) ObserveLifecycleEvent(event Event) {
	if fn != nil {
		fn(event)
	}
}

// Noop discards every event. Used as the default observer when none is wired.
type Noop struct{}

// ObserveLifecycleEvent implements Observer.
func (Noop) ObserveLifecycleEvent(Event) {}

// Emit normalizes evt and forwards it to observer, tolerating a nil observer.
func Emit(observer Observer, evt Event) {
	if observer == nil {
		return
	}
	observer.ObserveLifecycleEvent(evt.normalize())
}

// multi fans a single event out to every wrapped Observer, in order.
type multi []Observer

// Multi combines several observers into one, so a caller that only accepts
// a single Observer (workflow.NewEngine, schedules.New, targets.New) can
// still drive metrics, audit logging, and any other sink side by side.
func Multi(observers ...Observer) Observer {
	return multi(observers)
}

func (m multi) ObserveLifecycleEvent(event Event) {
	for _, o := range m {
		if o != nil {
			o.ObserveLifecycleEvent(event)
		}
	}
}
