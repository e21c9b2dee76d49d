package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/probesched/probe-scheduler/internal/model"
)

// CreateIntervalSchedule inserts a new Interval schedule, assigning a fresh id.
func (s *Store) CreateIntervalSchedule(sched model.Schedule) (model.Schedule, error) {
	sched.ID = uuid.NewString()
	sched.Kind = model.ScheduleInterval
	now := nowRFC3339()
	_, err := s.db.Exec(
		`INSERT INTO interval_schedules (id, name, target_id, interval_seconds, paused, workflow_handle, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, sched.Name, sched.TargetID, sched.IntervalSeconds, boolToInt(sched.Paused), sched.WorkflowHandle, now, now,
	)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("insert interval schedule: %w", err)
	}
	sched.CreatedAt = parseTime(now)
	sched.UpdatedAt = parseTime(now)
	return sched, nil
}

// CreateWindowSchedule inserts a new Window schedule, assigning a fresh id.
func (s *Store) CreateWindowSchedule(sched model.Schedule) (model.Schedule, error) {
	sched.ID = uuid.NewString()
	sched.Kind = model.ScheduleWindow
	now := nowRFC3339()
	_, err := s.db.Exec(
		`INSERT INTO window_schedules (id, name, target_id, interval_seconds, duration_seconds, paused, workflow_handle, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, sched.Name, sched.TargetID, sched.IntervalSeconds, sched.DurationSeconds, boolToInt(sched.Paused), sched.WorkflowHandle, now, now,
	)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("insert window schedule: %w", err)
	}
	sched.CreatedAt = parseTime(now)
	sched.UpdatedAt = parseTime(now)
	return sched, nil
}

// GetSchedule looks a schedule up by id across both the Interval and Window
// tables, since the two are a disjoint union over a single logical entity.
func (s *Store) GetSchedule(id string) (model.Schedule, error) {
	sched, err := s.getIntervalSchedule(id)
	if err == nil {
		return sched, nil
	}
	if err != ErrNotFound {
		return model.Schedule{}, err
	}
	return s.getWindowSchedule(id)
}

func (s *Store) getIntervalSchedule(id string) (model.Schedule, error) {
	var sched model.Schedule
	var paused int
	var createdAt, updatedAt string
	err := s.db.QueryRow(
		`SELECT id, name, target_id, interval_seconds, paused, workflow_handle, created_at, updated_at
		 FROM interval_schedules WHERE id = ?`, id,
	).Scan(&sched.ID, &sched.Name, &sched.TargetID, &sched.IntervalSeconds, &paused, &sched.WorkflowHandle, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return model.Schedule{}, ErrNotFound
	}
	if err != nil {
		return model.Schedule{}, fmt.Errorf("get interval schedule: %w", err)
	}
	sched.Kind = model.ScheduleInterval
	sched.Paused = paused != 0
	sched.CreatedAt = parseTime(createdAt)
	sched.UpdatedAt = parseTime(updatedAt)
	return sched, nil
}

func (s *Store) getWindowSchedule(id string) (model.Schedule, error) {
	var sched model.Schedule
	var paused int
	var createdAt, updatedAt string
	err := s.db.QueryRow(
		`SELECT id, name, target_id, interval_seconds, duration_seconds, paused, workflow_handle, created_at, updated_at
		 FROM window_schedules WHERE id = ?`, id,
	).Scan(&sched.ID, &sched.Name, &sched.TargetID, &sched.IntervalSeconds, &sched.DurationSeconds, &paused, &sched.WorkflowHandle, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return model.Schedule{}, ErrNotFound
	}
	if err != nil {
		return model.Schedule{}, fmt.Errorf("get window schedule: %w", err)
	}
	sched.Kind = model.ScheduleWindow
	sched.Paused = paused != 0
	sched.CreatedAt = parseTime(createdAt)
	sched.UpdatedAt = parseTime(updatedAt)
	return sched, nil
}

func (s *Store) scheduleTable(kind model.ScheduleKind) (string, error) {
	switch kind {
	case model.ScheduleInterval:
		return "interval_schedules", nil
	case model.ScheduleWindow:
		return "window_schedules", nil
	default:
		return "", fmt.Errorf("unknown schedule kind %q", kind)
	}
}

// SetScheduleHandle records the workflow handle assigned to a schedule when
// its execution starts.
func (s *Store) SetScheduleHandle(id string, kind model.ScheduleKind, handle string) error {
	table, err := s.scheduleTable(kind)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		fmt.Sprintf(`UPDATE %s SET workflow_handle = ?, updated_at = ? WHERE id = ?`, table),
		handle, nowRFC3339(), id,
	)
	if err != nil {
		return fmt.Errorf("set schedule handle: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSchedulePaused flips a schedule's paused flag.
func (s *Store) SetSchedulePaused(id string, kind model.ScheduleKind, paused bool) error {
	table, err := s.scheduleTable(kind)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		fmt.Sprintf(`UPDATE %s SET paused = ?, updated_at = ? WHERE id = ?`, table),
		boolToInt(paused), nowRFC3339(), id,
	)
	if err != nil {
		return fmt.Errorf("set schedule paused: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateScheduleInterval changes a schedule's interval_seconds; the running
// workflow's next iteration picks it up on its next Fetch.
func (s *Store) UpdateScheduleInterval(id string, kind model.ScheduleKind, intervalSeconds int) error {
	table, err := s.scheduleTable(kind)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		fmt.Sprintf(`UPDATE %s SET interval_seconds = ?, updated_at = ? WHERE id = ?`, table),
		intervalSeconds, nowRFC3339(), id,
	)
	if err != nil {
		return fmt.Errorf("update schedule interval: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateScheduleDuration changes a window schedule's duration_seconds.
func (s *Store) UpdateScheduleDuration(id string, durationSeconds int) error {
	res, err := s.db.Exec(
		`UPDATE window_schedules SET duration_seconds = ?, updated_at = ? WHERE id = ?`,
		durationSeconds, nowRFC3339(), id,
	)
	if err != nil {
		return fmt.Errorf("update schedule duration: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSchedule removes a schedule and cascade-deletes its Runs and
// Attempts. Runs reference schedule_id without a foreign key — the schedule
// tables are a disjoint union, so a single FK can't target both — so the
// cascade is done explicitly here inside one transaction rather than relying
// on ON DELETE CASCADE the way targets/urls do.
func (s *Store) DeleteSchedule(id string, kind model.ScheduleKind) error {
	table, err := s.scheduleTable(kind)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete schedule: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM attempts WHERE run_id IN (SELECT id FROM runs WHERE schedule_id = ?)`, id,
	); err != nil {
		return fmt.Errorf("delete attempts for schedule: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE schedule_id = ?`, id); err != nil {
		return fmt.Errorf("delete runs for schedule: %w", err)
	}
	res, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// ListSchedulesForTarget returns every Interval and Window schedule that
// references targetID, used by delete-target's cascade.
func (s *Store) ListSchedulesForTarget(targetID string) ([]model.Schedule, error) {
	all, err := s.ListSchedules()
	if err != nil {
		return nil, err
	}
	out := make([]model.Schedule, 0, len(all))
	for _, sched := range all {
		if sched.TargetID == targetID {
			out = append(out, sched)
		}
	}
	return out, nil
}

// ListSchedules returns every Interval and Window schedule.
func (s *Store) ListSchedules() ([]model.Schedule, error) {
	intervalSchedules, err := s.listIntervalSchedules()
	if err != nil {
		return nil, err
	}
	windowSchedules, err := s.listWindowSchedules()
	if err != nil {
		return nil, err
	}
	return append(intervalSchedules, windowSchedules...), nil
}

func (s *Store) listIntervalSchedules() ([]model.Schedule, error) {
	rows, err := s.db.Query(
		`SELECT id, name, target_id, interval_seconds, paused, workflow_handle, created_at, updated_at
		 FROM interval_schedules ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list interval schedules: %w", err)
	}
	defer rows.Close()

	var out []model.Schedule
	for rows.Next() {
		var sched model.Schedule
		var paused int
		var createdAt, updatedAt string
		if err := rows.Scan(&sched.ID, &sched.Name, &sched.TargetID, &sched.IntervalSeconds, &paused, &sched.WorkflowHandle, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan interval schedule: %w", err)
		}
		sched.Kind = model.ScheduleInterval
		sched.Paused = paused != 0
		sched.CreatedAt = parseTime(createdAt)
		sched.UpdatedAt = parseTime(updatedAt)
		out = append(out, sched)
	}
	return out, rows.Err()
}

func (s *Store) listWindowSchedules() ([]model.Schedule, error) {
	rows, err := s.db.Query(
		`SELECT id, name, target_id, interval_seconds, duration_seconds, paused, workflow_handle, created_at, updated_at
		 FROM window_schedules ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list window schedules: %w", err)
	}
	defer rows.Close()

	var out []model.Schedule
	for rows.Next() {
		var sched model.Schedule
		var paused int
		var createdAt, updatedAt string
		if err := rows.Scan(&sched.ID, &sched.Name, &sched.TargetID, &sched.IntervalSeconds, &sched.DurationSeconds, &paused, &sched.WorkflowHandle, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan window schedule: %w", err)
		}
		sched.Kind = model.ScheduleWindow
		sched.Paused = paused != 0
		sched.CreatedAt = parseTime(createdAt)
		sched.UpdatedAt = parseTime(updatedAt)
		out = append(out, sched)
	}
	return out, rows.Err()
}
