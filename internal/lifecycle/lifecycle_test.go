package lifecycle

import "testing"

func TestNormalizedTrimsAndStampsTimestamp(t *testing.T) {
	evt := Event{Type: " schedule.created ", ScheduleID: " sched-1 "}
	got := evt.Normalized()

	if got.Type != EventScheduleCreated {
		t.Fatalf("type = %q, want %q", got.Type, EventScheduleCreated)
	}
	if got.ScheduleID != "sched-1" {
		t.Fatalf("schedule id = %q, want trimmed", got.ScheduleID)
	}
	if got.Timestamp.IsZero() {
		t.Fatalf("expected a stamped timestamp")
	}
}

func TestEmitToleratesNilObserver(t *testing.T) {
	Emit(nil, Event{Type: EventRunStarted})
}

func TestObserverFuncReceivesNormalizedEvent(t *testing.T) {
	var got Event
	observer := ObserverFunc(func(e Event) { got = e })

	Emit(observer, Event{Type: EventRunCompleted, ScheduleID: "sched-2", Status: "success"})

	if got.Type != EventRunCompleted {
		t.Fatalf("type = %q, want %q", got.Type, EventRunCompleted)
	}
	if got.ScheduleID != "sched-2" {
		t.Fatalf("schedule id = %q, want sched-2", got.ScheduleID)
	}
	if got.Timestamp.IsZero() {
		t.Fatalf("expected a stamped timestamp")
	}
}

func TestNoopDiscardsEvents(t *testing.T) {
	Noop{}.ObserveLifecycleEvent(Event{Type: EventRunStarted})
}

func TestSummaryForKnownTypes(t *testing.T) {
	cases := []Event{
		{Type: EventScheduleCreated, ScheduleID: "s1"},
		{Type: EventSchedulePaused, ScheduleID: "s1"},
		{Type: EventRunCompleted, ScheduleID: "s1", Status: "success"},
	}
	for _, evt := range cases {
		if evt.Summary() == "" {
			t.Errorf("Summary() returned empty string for %s", evt.Type)
		}
	}
}
