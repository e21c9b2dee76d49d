package executor

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/probesched/probe-scheduler/internal/model"
	"go.uber.org/zap"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	return New(zap.NewNop())
}

func TestExecuteHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	result := newTestExecutor(t).Execute(t.Context(), Input{
		URL:             srv.URL,
		Method:          model.MethodGet,
		TimeoutSeconds:  5,
		FollowRedirects: true,
	})

	if result.Status != model.StatusSuccess {
		t.Fatalf("status = %s, want success", result.Status)
	}
	if len(result.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(result.Attempts))
	}
	if result.StatusCode == nil || *result.StatusCode != 200 {
		t.Fatalf("status code = %v, want 200", result.StatusCode)
	}
}

func TestExecuteRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := newTestExecutor(t).Execute(t.Context(), Input{
		URL:               srv.URL,
		Method:            model.MethodGet,
		TimeoutSeconds:    5,
		RetryCount:        2,
		RetryDelaySeconds: 0,
		FollowRedirects:   true,
	})

	if result.Status != model.StatusSuccess {
		t.Fatalf("status = %s, want success", result.Status)
	}
	if len(result.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(result.Attempts))
	}
	wantStatuses := []model.Status{model.StatusHTTP5xx, model.StatusHTTP5xx, model.StatusSuccess}
	for i, a := range result.Attempts {
		if a.Status != wantStatuses[i] {
			t.Errorf("attempt %d status = %s, want %s", i+1, a.Status, wantStatuses[i])
		}
		if a.AttemptNumber != i+1 {
			t.Errorf("attempt %d number = %d, want %d", i, a.AttemptNumber, i+1)
		}
	}
}

func TestExecute4xxShortCircuits(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result := newTestExecutor(t).Execute(t.Context(), Input{
		URL:               srv.URL,
		Method:            model.MethodGet,
		TimeoutSeconds:    5,
		RetryCount:        5,
		RetryDelaySeconds: 0,
		FollowRedirects:   true,
	})

	if result.Status != model.StatusHTTP4xx {
		t.Fatalf("status = %s, want http_4xx", result.Status)
	}
	if len(result.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1 (4xx must not retry)", len(result.Attempts))
	}
	if calls != 1 {
		t.Fatalf("server calls = %d, want 1", calls)
	}
}

func TestExecuteCapturesRedirectHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	result := newTestExecutor(t).Execute(t.Context(), Input{
		URL:             srv.URL + "/start",
		Method:          model.MethodGet,
		TimeoutSeconds:  5,
		FollowRedirects: true,
	})

	if !result.Redirected {
		t.Fatalf("expected redirected=true")
	}
	if result.RedirectCount != len(result.RedirectHistory) {
		t.Fatalf("redirect_count %d != len(history) %d", result.RedirectCount, len(result.RedirectHistory))
	}
	if len(result.RedirectHistory) != 1 || result.RedirectHistory[0].StatusCode != http.StatusFound {
		t.Fatalf("redirect history = %+v, want one 302 hop", result.RedirectHistory)
	}
}

func TestExecuteConnectionError(t *testing.T) {
	result := newTestExecutor(t).Execute(t.Context(), Input{
		URL:             "http://127.0.0.1:1",
		Method:          model.MethodGet,
		TimeoutSeconds:  1,
		FollowRedirects: true,
	})
	if result.Status != model.StatusConnectionError {
		t.Fatalf("status = %s, want connection_error", result.Status)
	}
}
