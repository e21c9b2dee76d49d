package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/probesched/probe-scheduler/internal/activities"
	"github.com/probesched/probe-scheduler/internal/controlplane/schedules"
	"github.com/probesched/probe-scheduler/internal/controlplane/targets"
	"github.com/probesched/probe-scheduler/internal/probe/executor"
	"github.com/probesched/probe-scheduler/internal/store"
	"github.com/probesched/probe-scheduler/internal/workflow"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*Handler, *http.ServeMux) {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	acts := activities.New(s, executor.New(zap.NewNop()))
	engine, err := workflow.NewEngine(s.DB(), acts, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	schedSvc := schedules.New(s, engine, nil, zap.NewNop())
	targetSvc := targets.New(s, schedSvc, nil, zap.NewNop())

	h := New(targetSvc, schedSvc, s, zap.NewNop())
	return h, h.Mux()
}

func doRequest(mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	var r *http.Request
	if body != nil {
		buf, _ := json.Marshal(body)
		r = httptest.NewRequest(method, path, bytes.NewReader(buf))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, r)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v, body=%s", err, rr.Body.String())
	}
	return env
}

func TestHealthzAndVersion(t *testing.T) {
	_, mux := newTestHandler(t)

	rr := doRequest(mux, "GET", "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if !env.Success {
		t.Fatalf("expected success=true")
	}

	rr = doRequest(mux, "GET", "/version", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestCreateTargetThenGet(t *testing.T) {
	_, mux := newTestHandler(t)

	rr := doRequest(mux, "POST", "/targets", map[string]any{
		"name":   "health-check",
		"url":    "https://example.com/health",
		"method": "GET",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	created := env.Data.(map[string]any)
	id := created["id"].(string)
	if created["url"] != "https://example.com/health" {
		t.Fatalf("unexpected url in response: %v", created["url"])
	}
	if created["follow_redirects"] != true {
		t.Fatalf("expected follow_redirects to default true, got %v", created["follow_redirects"])
	}

	rr = doRequest(mux, "GET", "/targets/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateTargetRejectsMissingName(t *testing.T) {
	_, mux := newTestHandler(t)

	rr := doRequest(mux, "POST", "/targets", map[string]any{
		"url":    "https://example.com/health",
		"method": "GET",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if env.Success {
		t.Fatalf("expected success=false")
	}
}

func TestGetTargetNotFound(t *testing.T) {
	_, mux := newTestHandler(t)

	rr := doRequest(mux, "GET", "/targets/does-not-exist", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestScheduleLifecycle(t *testing.T) {
	_, mux := newTestHandler(t)

	rr := doRequest(mux, "POST", "/targets", map[string]any{
		"name": "health-check", "url": "https://example.com/health", "method": "GET",
	})
	target := decodeEnvelope(t, rr).Data.(map[string]any)
	targetID := target["id"].(string)

	rr = doRequest(mux, "POST", "/schedules", map[string]any{
		"name": "every-minute", "target_id": targetID, "interval_seconds": 60,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	sched := decodeEnvelope(t, rr).Data.(map[string]any)
	scheduleID := sched["id"].(string)
	if sched["kind"] != "interval" {
		t.Fatalf("expected interval kind, got %v", sched["kind"])
	}

	rr = doRequest(mux, "POST", "/schedules/"+scheduleID+"/pause", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	paused := decodeEnvelope(t, rr).Data.(map[string]any)
	if paused["paused"] != true {
		t.Fatalf("expected paused=true")
	}

	rr = doRequest(mux, "POST", "/schedules/"+scheduleID+"/resume", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(mux, "PUT", "/schedules/"+scheduleID, map[string]any{"interval_seconds": 120})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	updated := decodeEnvelope(t, rr).Data.(map[string]any)
	if updated["interval_seconds"].(float64) != 120 {
		t.Fatalf("expected interval_seconds=120, got %v", updated["interval_seconds"])
	}

	rr = doRequest(mux, "DELETE", "/schedules/"+scheduleID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateScheduleRejectsUnknownTarget(t *testing.T) {
	_, mux := newTestHandler(t)

	rr := doRequest(mux, "POST", "/schedules", map[string]any{
		"name": "orphan", "target_id": "missing", "interval_seconds": 60,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestListRunsEmpty(t *testing.T) {
	_, mux := newTestHandler(t)

	rr := doRequest(mux, "GET", "/runs?schedule_id=missing", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	runs, ok := env.Data.([]any)
	if !ok || len(runs) != 0 {
		t.Fatalf("expected an empty list, got %#v", env.Data)
	}
}

func TestGetRunNotFound(t *testing.T) {
	_, mux := newTestHandler(t)

	rr := doRequest(mux, "GET", "/runs/does-not-exist", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
