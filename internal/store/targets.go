package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/probesched/probe-scheduler/internal/model"
)

// CreateTarget inserts a new Target row, assigning it a fresh id.
func (s *Store) CreateTarget(t model.Target) (model.Target, error) {
	t.ID = uuid.NewString()
	now := nowRFC3339()

	headers, err := json.Marshal(t.Headers)
	if err != nil {
		return model.Target{}, fmt.Errorf("marshal headers: %w", err)
	}
	body, err := json.Marshal(t.Body)
	if err != nil {
		return model.Target{}, fmt.Errorf("marshal body: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO targets (id, name, url_id, method, headers, body, timeout_seconds, retry_count, retry_delay_seconds, follow_redirects, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.URLID, string(t.Method), string(headers), string(body),
		t.TimeoutSeconds, t.RetryCount, t.RetryDelaySeconds, boolToInt(t.FollowRedirects), now, now,
	)
	if err != nil {
		return model.Target{}, fmt.Errorf("insert target: %w", err)
	}
	t.CreatedAt = parseTime(now)
	t.UpdatedAt = parseTime(now)
	return t, nil
}

// GetTarget fetches a Target by id.
func (s *Store) GetTarget(id string) (model.Target, error) {
	var t model.Target
	var method, headers, body string
	var followRedirects int
	var createdAt, updatedAt string

	err := s.db.QueryRow(
		`SELECT id, name, url_id, method, headers, body, timeout_seconds, retry_count, retry_delay_seconds, follow_redirects, created_at, updated_at
		 FROM targets WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.URLID, &method, &headers, &body, &t.TimeoutSeconds, &t.RetryCount, &t.RetryDelaySeconds, &followRedirects, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return model.Target{}, ErrNotFound
	}
	if err != nil {
		return model.Target{}, fmt.Errorf("get target: %w", err)
	}

	t.Method = model.Method(method)
	if err := json.Unmarshal([]byte(headers), &t.Headers); err != nil {
		return model.Target{}, fmt.Errorf("decode headers: %w", err)
	}
	if err := json.Unmarshal([]byte(body), &t.Body); err != nil {
		return model.Target{}, fmt.Errorf("decode body: %w", err)
	}
	t.FollowRedirects = followRedirects != 0
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

// UpdateTarget overwrites an existing Target's mutable fields.
func (s *Store) UpdateTarget(t model.Target) error {
	headers, err := json.Marshal(t.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	body, err := json.Marshal(t.Body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	now := nowRFC3339()

	res, err := s.db.Exec(
		`UPDATE targets SET name = ?, url_id = ?, method = ?, headers = ?, body = ?, timeout_seconds = ?,
		 retry_count = ?, retry_delay_seconds = ?, follow_redirects = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, t.URLID, string(t.Method), string(headers), string(body), t.TimeoutSeconds,
		t.RetryCount, t.RetryDelaySeconds, boolToInt(t.FollowRedirects), now, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTarget removes a Target and (via ON DELETE CASCADE) its interval and
// window schedule rows. Its URL row and its schedules' runs and attempts are
// not removed by this call.
func (s *Store) DeleteTarget(id string) error {
	res, err := s.db.Exec(`DELETE FROM targets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTargets returns every Target, ordered by creation time.
func (s *Store) ListTargets() ([]model.Target, error) {
	rows, err := s.db.Query(
		`SELECT id, name, url_id, method, headers, body, timeout_seconds, retry_count, retry_delay_seconds, follow_redirects, created_at, updated_at
		 FROM targets ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []model.Target
	for rows.Next() {
		var t model.Target
		var method, headers, body string
		var followRedirects int
		var createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.Name, &t.URLID, &method, &headers, &body, &t.TimeoutSeconds, &t.RetryCount, &t.RetryDelaySeconds, &followRedirects, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		t.Method = model.Method(method)
		if err := json.Unmarshal([]byte(headers), &t.Headers); err != nil {
			return nil, fmt.Errorf("decode headers: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &t.Body); err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		t.FollowRedirects = followRedirects != 0
		t.CreatedAt = parseTime(createdAt)
		t.UpdatedAt = parseTime(updatedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
