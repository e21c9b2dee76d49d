package workflow

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// HistoryKind labels a row in the durable execution journal.
type HistoryKind string

const (
	HistoryWorkflowStarted  HistoryKind = "workflow_started"
	HistoryActivityCompleted HistoryKind = "activity_completed"
	HistorySleepCommitted   HistoryKind = "sleep_committed"
	HistoryWorkflowExited   HistoryKind = "workflow_exited"
)

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS workflow_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	schedule_id  TEXT NOT NULL,
	execution_id TEXT NOT NULL,
	step_index   INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	payload      TEXT NOT NULL DEFAULT '{}',
	committed_at TEXT NOT NULL
)`

const createHistoryIndex = `
CREATE INDEX IF NOT EXISTS idx_workflow_history_schedule
ON workflow_history(schedule_id, step_index)`

// Journal is the append-only SQL history backing the durable execution
// substrate's crash-recovery story: every recorded Run (the Record
// activity's completion) and every durable sleep commits a row here, the
// sleep row before the workflow loop waits on it. Fetch and Probe
// completions are not journaled.
type Journal struct {
	db *sql.DB
}

// NewJournal opens the journal, creating workflow_history if needed.
func NewJournal(db *sql.DB) (*Journal, error) {
	if _, err := db.Exec(createHistoryTable); err != nil {
		return nil, fmt.Errorf("create workflow_history: %w", err)
	}
	if _, err := db.Exec(createHistoryIndex); err != nil {
		return nil, fmt.Errorf("create workflow_history index: %w", err)
	}
	return &Journal{db: db}, nil
}

// Append records one history entry for scheduleID/executionID.
func (j *Journal) Append(scheduleID, executionID string, kind HistoryKind, payload any) error {
	step, err := j.nextStepIndex(scheduleID)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal history payload: %w", err)
	}
	_, err = j.db.Exec(
		`INSERT INTO workflow_history (schedule_id, execution_id, step_index, kind, payload, committed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		scheduleID, executionID, step, string(kind), string(body), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (j *Journal) nextStepIndex(scheduleID string) (int, error) {
	var max sql.NullInt64
	err := j.db.QueryRow(
		`SELECT MAX(step_index) FROM workflow_history WHERE schedule_id = ?`, scheduleID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("next step index: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

type sleepPayload struct {
	NextWakeAt string `json:"next_wake_at"`
	RunNumber  int    `json:"run_number"`
	EndTime    string `json:"end_time,omitempty"`
}

// LastWake returns the most recently committed durable-sleep entry for
// scheduleID, if any. Used on resume to compute the remaining delay instead
// of resetting the schedule's full interval.
func (j *Journal) LastWake(scheduleID string) (wakeAt time.Time, runNumber int, found bool, err error) {
	var raw string
	row := j.db.QueryRow(
		`SELECT payload FROM workflow_history
		 WHERE schedule_id = ? AND kind = ?
		 ORDER BY step_index DESC LIMIT 1`,
		scheduleID, string(HistorySleepCommitted),
	)
	if err = row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, 0, false, nil
		}
		return time.Time{}, 0, false, fmt.Errorf("read last wake: %w", err)
	}
	var payload sleepPayload
	if err = json.Unmarshal([]byte(raw), &payload); err != nil {
		return time.Time{}, 0, false, fmt.Errorf("decode sleep payload: %w", err)
	}
	wakeAt, err = time.Parse(time.RFC3339Nano, payload.NextWakeAt)
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("parse next_wake_at: %w", err)
	}
	return wakeAt, payload.RunNumber, true, nil
}

// LastWindowWake is LastWake plus the window workflow's own end_time, for
// resuming a Window schedule's bounded loop instead of just its cadence.
func (j *Journal) LastWindowWake(scheduleID string) (wakeAt time.Time, runNumber int, endTime time.Time, found bool, err error) {
	var raw string
	row := j.db.QueryRow(
		`SELECT payload FROM workflow_history
		 WHERE schedule_id = ? AND kind = ?
		 ORDER BY step_index DESC LIMIT 1`,
		scheduleID, string(HistorySleepCommitted),
	)
	if err = row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, 0, time.Time{}, false, nil
		}
		return time.Time{}, 0, time.Time{}, false, fmt.Errorf("read last window wake: %w", err)
	}
	var payload sleepPayload
	if err = json.Unmarshal([]byte(raw), &payload); err != nil {
		return time.Time{}, 0, time.Time{}, false, fmt.Errorf("decode sleep payload: %w", err)
	}
	wakeAt, err = time.Parse(time.RFC3339Nano, payload.NextWakeAt)
	if err != nil {
		return time.Time{}, 0, time.Time{}, false, fmt.Errorf("parse next_wake_at: %w", err)
	}
	if payload.EndTime != "" {
		endTime, err = time.Parse(time.RFC3339Nano, payload.EndTime)
		if err != nil {
			return time.Time{}, 0, time.Time{}, false, fmt.Errorf("parse end_time: %w", err)
		}
	}
	return wakeAt, payload.RunNumber, endTime, true, nil
}

// HasHistory reports whether scheduleID has any journal rows at all. The
// engine does not call it: whether an execution is fresh or a resume is
// decided by whether it was begun through Start or Resume.
func (j *Journal) HasHistory(scheduleID string) (bool, error) {
	var exists int
	err := j.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM workflow_history WHERE schedule_id = ?)`, scheduleID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check history: %w", err)
	}
	return exists == 1, nil
}
