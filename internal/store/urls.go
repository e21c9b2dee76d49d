package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/probesched/probe-scheduler/internal/model"
)

// CreateURL inserts a new URL row, assigning it a fresh id.
func (s *Store) CreateURL(u model.URL) (model.URL, error) {
	u.ID = uuid.NewString()
	now := nowRFC3339()
	_, err := s.db.Exec(
		`INSERT INTO urls (id, scheme, netloc, path, params, query, fragment, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Scheme, u.Netloc, u.Path, u.Params, u.Query, u.Fragment, now, now,
	)
	if err != nil {
		return model.URL{}, fmt.Errorf("insert url: %w", err)
	}
	u.CreatedAt = parseTime(now)
	u.UpdatedAt = parseTime(now)
	return u, nil
}

// GetURL fetches a URL by id.
func (s *Store) GetURL(id string) (model.URL, error) {
	return s.getURL(s.db, id)
}

// DeleteURL removes a URL row. The FK runs target->url, not the reverse, so
// deleting a Target's owned URL is the caller's (delete-target's)
// responsibility, not something ON DELETE CASCADE gives for free here.
func (s *Store) DeleteURL(id string) error {
	res, err := s.db.Exec(`DELETE FROM urls WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete url: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func (s *Store) getURL(q querier, id string) (model.URL, error) {
	var u model.URL
	var createdAt, updatedAt string
	err := q.QueryRow(
		`SELECT id, scheme, netloc, path, params, query, fragment, created_at, updated_at
		 FROM urls WHERE id = ?`, id,
	).Scan(&u.ID, &u.Scheme, &u.Netloc, &u.Path, &u.Params, &u.Query, &u.Fragment, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return model.URL{}, ErrNotFound
	}
	if err != nil {
		return model.URL{}, fmt.Errorf("get url: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return u, nil
}
