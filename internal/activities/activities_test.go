package activities

import (
	"context"
	"testing"

	"github.com/probesched/probe-scheduler/internal/model"
	"github.com/probesched/probe-scheduler/internal/probe/executor"
	"github.com/probesched/probe-scheduler/internal/store"
	"go.uber.org/zap"
)

func newTestActivities(t *testing.T) (*Activities, *store.Store) {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, executor.New(zap.NewNop())), s
}

func seedSchedule(t *testing.T, s *store.Store) model.Schedule {
	t.Helper()
	u, err := s.CreateURL(model.URL{Scheme: "https", Netloc: "example.com", Path: "/health"})
	if err != nil {
		t.Fatalf("CreateURL: %v", err)
	}
	target, err := s.CreateTarget(model.Target{
		Name:            "health",
		URLID:           u.ID,
		Method:          model.MethodGet,
		TimeoutSeconds:  5,
		FollowRedirects: true,
	})
	if err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}
	sched, err := s.CreateIntervalSchedule(model.Schedule{
		Name:            "every-minute",
		TargetID:        target.ID,
		IntervalSeconds: 60,
	})
	if err != nil {
		t.Fatalf("CreateIntervalSchedule: %v", err)
	}
	return sched
}

func TestFetchReturnsDeletedForUnknownSchedule(t *testing.T) {
	a, _ := newTestActivities(t)
	result, err := a.Fetch(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !result.Deleted {
		t.Fatalf("expected Deleted=true, got %+v", result)
	}
}

func TestFetchReturnsSnapshotForLiveSchedule(t *testing.T) {
	a, s := newTestActivities(t)
	sched := seedSchedule(t, s)

	result, err := a.Fetch(context.Background(), sched.ID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Deleted || result.Paused {
		t.Fatalf("unexpected deleted/paused: %+v", result)
	}
	if result.Target.Name != "health" || result.URL.Netloc != "example.com" {
		t.Fatalf("got %+v", result)
	}
	if result.IntervalSeconds != 60 {
		t.Fatalf("interval = %d, want 60", result.IntervalSeconds)
	}
}

func TestFetchReturnsPausedWithoutLoadingTarget(t *testing.T) {
	a, s := newTestActivities(t)
	sched := seedSchedule(t, s)
	if err := s.SetSchedulePaused(sched.ID, model.ScheduleInterval, true); err != nil {
		t.Fatalf("SetSchedulePaused: %v", err)
	}

	result, err := a.Fetch(context.Background(), sched.ID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !result.Paused || result.Deleted {
		t.Fatalf("got %+v", result)
	}
	if result.Target.ID != "" {
		t.Fatalf("expected no target to be loaded for a paused schedule, got %+v", result.Target)
	}
}

func TestRecordPersistsRunAndAttempts(t *testing.T) {
	a, s := newTestActivities(t)
	sched := seedSchedule(t, s)

	statusCode := 200
	latency := 5.0
	size := 10
	result := &executor.Result{
		Status:            model.StatusSuccess,
		StatusCode:        &statusCode,
		LatencyMS:         &latency,
		ResponseSizeBytes: &size,
		ResponseBody:      model.NewJSONValueFromText(`{"ok":true}`),
		Attempts: []executor.AttemptResult{
			{AttemptNumber: 1, Status: model.StatusSuccess, StatusCode: &statusCode},
		},
	}

	run, err := a.Record(context.Background(), sched.ID, 1, result)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if run.ID == "" || run.Status != model.StatusSuccess {
		t.Fatalf("got %+v", run)
	}

	attempts, err := s.ListAttempts(run.ID)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("len = %d, want 1", len(attempts))
	}
}
