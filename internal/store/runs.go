package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/probesched/probe-scheduler/internal/model"
)

// CreateRun inserts a Run and its Attempts in a single transaction — the
// Record activity's write is all-or-nothing the way jobs.Store's
// transitionRun keeps a run and its side effects consistent.
func (s *Store) CreateRun(run model.Run, attempts []model.Attempt) (model.Run, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return model.Run{}, fmt.Errorf("begin create run: %w", err)
	}
	defer tx.Rollback()

	run.ID = uuid.NewString()
	now := nowRFC3339()

	requestHeaders, err := json.Marshal(run.RequestHeaders)
	if err != nil {
		return model.Run{}, fmt.Errorf("marshal request headers: %w", err)
	}
	requestBody, err := json.Marshal(run.RequestBody)
	if err != nil {
		return model.Run{}, fmt.Errorf("marshal request body: %w", err)
	}
	responseHeaders, err := json.Marshal(run.ResponseHeaders)
	if err != nil {
		return model.Run{}, fmt.Errorf("marshal response headers: %w", err)
	}
	responseBody, err := json.Marshal(run.ResponseBody)
	if err != nil {
		return model.Run{}, fmt.Errorf("marshal response body: %w", err)
	}
	redirectHistory, err := json.Marshal(run.RedirectHistory)
	if err != nil {
		return model.Run{}, fmt.Errorf("marshal redirect history: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO runs (id, schedule_id, run_number, started_at, status, status_code, latency_ms,
		 response_size_bytes, request_headers, request_body, response_headers, response_body,
		 error_message, redirected, redirect_count, redirect_history, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ScheduleID, run.RunNumber, run.StartedAt.UTC().Format(timeLayout), string(run.Status),
		nullableInt(run.StatusCode), nullableFloat(run.LatencyMS), nullableInt(run.ResponseSizeBytes),
		string(requestHeaders), string(requestBody), string(responseHeaders), string(responseBody),
		run.ErrorMessage, boolToInt(run.Redirected), run.RedirectCount, string(redirectHistory), now, now,
	)
	if err != nil {
		return model.Run{}, fmt.Errorf("insert run: %w", err)
	}

	for i := range attempts {
		attempts[i].ID = uuid.NewString()
		attempts[i].RunID = run.ID
		if err := insertAttempt(tx, attempts[i]); err != nil {
			return model.Run{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Run{}, fmt.Errorf("commit create run: %w", err)
	}

	run.CreatedAt = parseTime(now)
	run.UpdatedAt = parseTime(now)
	return run, nil
}

func insertAttempt(tx *sql.Tx, a model.Attempt) error {
	responseHeaders, err := json.Marshal(a.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("marshal attempt response headers: %w", err)
	}
	responseBody, err := json.Marshal(a.ResponseBody)
	if err != nil {
		return fmt.Errorf("marshal attempt response body: %w", err)
	}
	now := nowRFC3339()
	_, err = tx.Exec(
		`INSERT INTO attempts (id, run_id, attempt_number, started_at, status, status_code, latency_ms,
		 response_size_bytes, response_headers, response_body, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RunID, a.AttemptNumber, a.StartedAt.UTC().Format(timeLayout), string(a.Status),
		nullableInt(a.StatusCode), nullableFloat(a.LatencyMS), nullableInt(a.ResponseSizeBytes),
		string(responseHeaders), string(responseBody), a.ErrorMessage, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// GetRun fetches a Run by id.
func (s *Store) GetRun(id string) (model.Run, error) {
	var run model.Run
	var status, requestHeaders, requestBody, responseHeaders, responseBody, redirectHistory string
	var statusCode, responseSize sql.NullInt64
	var latencyMS sql.NullFloat64
	var redirected int
	var startedAt, createdAt, updatedAt string

	err := s.db.QueryRow(
		`SELECT id, schedule_id, run_number, started_at, status, status_code, latency_ms,
		 response_size_bytes, request_headers, request_body, response_headers, response_body,
		 error_message, redirected, redirect_count, redirect_history, created_at, updated_at
		 FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.ScheduleID, &run.RunNumber, &startedAt, &status, &statusCode, &latencyMS,
		&responseSize, &requestHeaders, &requestBody, &responseHeaders, &responseBody,
		&run.ErrorMessage, &redirected, &run.RedirectCount, &redirectHistory, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return model.Run{}, ErrNotFound
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("get run: %w", err)
	}

	run.Status = model.Status(status)
	run.StartedAt = parseTime(startedAt)
	run.CreatedAt = parseTime(createdAt)
	run.UpdatedAt = parseTime(updatedAt)
	run.Redirected = redirected != 0
	if statusCode.Valid {
		v := int(statusCode.Int64)
		run.StatusCode = &v
	}
	if latencyMS.Valid {
		run.LatencyMS = &latencyMS.Float64
	}
	if responseSize.Valid {
		v := int(responseSize.Int64)
		run.ResponseSizeBytes = &v
	}
	if err := json.Unmarshal([]byte(requestHeaders), &run.RequestHeaders); err != nil {
		return model.Run{}, fmt.Errorf("decode request headers: %w", err)
	}
	if err := json.Unmarshal([]byte(requestBody), &run.RequestBody); err != nil {
		return model.Run{}, fmt.Errorf("decode request body: %w", err)
	}
	if err := json.Unmarshal([]byte(responseHeaders), &run.ResponseHeaders); err != nil {
		return model.Run{}, fmt.Errorf("decode response headers: %w", err)
	}
	if err := json.Unmarshal([]byte(responseBody), &run.ResponseBody); err != nil {
		return model.Run{}, fmt.Errorf("decode response body: %w", err)
	}
	if err := json.Unmarshal([]byte(redirectHistory), &run.RedirectHistory); err != nil {
		return model.Run{}, fmt.Errorf("decode redirect history: %w", err)
	}
	return run, nil
}

// ListRuns returns runs for scheduleID newest-first, paginated.
func (s *Store) ListRuns(scheduleID string, limit, offset int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id FROM runs WHERE schedule_id = ? ORDER BY run_number DESC LIMIT ? OFFSET ?`,
		scheduleID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Run, 0, len(ids))
	for _, id := range ids {
		run, err := s.GetRun(id)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

// ListAttempts returns every Attempt for runID, in attempt order.
func (s *Store) ListAttempts(runID string) ([]model.Attempt, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, attempt_number, started_at, status, status_code, latency_ms,
		 response_size_bytes, response_headers, response_body, error_message, created_at, updated_at
		 FROM attempts WHERE run_id = ? ORDER BY attempt_number`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		var a model.Attempt
		var status, responseHeaders, responseBody string
		var statusCode, responseSize sql.NullInt64
		var latencyMS sql.NullFloat64
		var startedAt, createdAt, updatedAt string

		if err := rows.Scan(&a.ID, &a.RunID, &a.AttemptNumber, &startedAt, &status, &statusCode, &latencyMS,
			&responseSize, &responseHeaders, &responseBody, &a.ErrorMessage, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Status = model.Status(status)
		a.StartedAt = parseTime(startedAt)
		a.CreatedAt = parseTime(createdAt)
		a.UpdatedAt = parseTime(updatedAt)
		if statusCode.Valid {
			v := int(statusCode.Int64)
			a.StatusCode = &v
		}
		if latencyMS.Valid {
			a.LatencyMS = &latencyMS.Float64
		}
		if responseSize.Valid {
			v := int(responseSize.Int64)
			a.ResponseSizeBytes = &v
		}
		if err := json.Unmarshal([]byte(responseHeaders), &a.ResponseHeaders); err != nil {
			return nil, fmt.Errorf("decode attempt response headers: %w", err)
		}
		if err := json.Unmarshal([]byte(responseBody), &a.ResponseBody); err != nil {
			return nil, fmt.Errorf("decode attempt response body: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RunFilter narrows ListRunsFiltered's query. Zero-value fields are
// unconstrained.
type RunFilter struct {
	ScheduleID string
	Status     model.Status
	StartTime  string // RFC3339, inclusive lower bound on started_at
	EndTime    string // RFC3339, exclusive upper bound on started_at
	Limit      int
	Offset     int
}

// ListRunsFiltered backs the Query API's GET /runs, supporting the
// schedule_id/status/start_time/end_time filters independently of
// ListRuns's schedule-scoped pagination.
func (s *Store) ListRunsFiltered(f RunFilter) ([]model.Run, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id FROM runs WHERE 1 = 1`
	var args []any
	if f.ScheduleID != "" {
		query += ` AND schedule_id = ?`
		args = append(args, f.ScheduleID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.StartTime != "" {
		query += ` AND started_at >= ?`
		args = append(args, f.StartTime)
	}
	if f.EndTime != "" {
		query += ` AND started_at < ?`
		args = append(args, f.EndTime)
	}
	query += ` ORDER BY started_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs filtered: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Run, 0, len(ids))
	for _, id := range ids {
		run, err := s.GetRun(id)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

// LastRunNumber returns the highest run_number recorded for scheduleID, or 0
// if none exist yet.
func (s *Store) LastRunNumber(scheduleID string) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(run_number) FROM runs WHERE schedule_id = ?`, scheduleID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("last run number: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
