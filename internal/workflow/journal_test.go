package workflow

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openJournalTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestJournalAppendAssignsIncreasingStepIndex(t *testing.T) {
	j, err := NewJournal(openJournalTestDB(t))
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}

	if err := j.Append("sched-1", "exec-1", HistoryWorkflowStarted, map[string]any{"kind": "interval"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Append("sched-1", "exec-1", HistoryActivityCompleted, map[string]any{"run_number": 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	step, err := j.nextStepIndex("sched-1")
	if err != nil {
		t.Fatalf("nextStepIndex: %v", err)
	}
	if step != 2 {
		t.Fatalf("next step index = %d, want 2", step)
	}
}

func TestJournalLastWakeRoundTrips(t *testing.T) {
	j, err := NewJournal(openJournalTestDB(t))
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}

	wake := time.Now().Add(30 * time.Second).UTC()
	if err := j.Append("sched-2", "exec-1", HistorySleepCommitted, sleepPayload{
		NextWakeAt: wake.Format(time.RFC3339Nano),
		RunNumber:  5,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	gotWake, gotRun, found, err := j.LastWake("sched-2")
	if err != nil {
		t.Fatalf("LastWake: %v", err)
	}
	if !found {
		t.Fatalf("expected a sleep_committed row to be found")
	}
	if gotRun != 5 {
		t.Fatalf("run number = %d, want 5", gotRun)
	}
	if !gotWake.Equal(wake) {
		t.Fatalf("wake = %v, want %v", gotWake, wake)
	}
}

func TestJournalLastWakeNotFoundWhenEmpty(t *testing.T) {
	j, err := NewJournal(openJournalTestDB(t))
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	_, _, found, err := j.LastWake("sched-empty")
	if err != nil {
		t.Fatalf("LastWake: %v", err)
	}
	if found {
		t.Fatalf("expected not found for a schedule with no history")
	}
}

func TestJournalHasHistory(t *testing.T) {
	j, err := NewJournal(openJournalTestDB(t))
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	has, err := j.HasHistory("sched-3")
	if err != nil {
		t.Fatalf("HasHistory: %v", err)
	}
	if has {
		t.Fatalf("expected no history yet")
	}

	if err := j.Append("sched-3", "exec-1", HistoryWorkflowStarted, map[string]any{}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	has, err = j.HasHistory("sched-3")
	if err != nil {
		t.Fatalf("HasHistory: %v", err)
	}
	if !has {
		t.Fatalf("expected history after an append")
	}
}
