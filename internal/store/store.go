// Package store persists the URL/Target/Schedule/Run/Attempt data model in a
// relational database, using a single pooled connection and short
// transactions the way the control plane's job store does.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/probesched/probe-scheduler/internal/migration"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// backupRetention is how long a pre-migration sqlite backup file is kept
// around before CleanOldBackups prunes it.
const backupRetention = 7 * 24 * time.Hour

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("not found")

// ErrInvalidRunTransition names a Run/Attempt write that would violate the
// append-only, last-attempt-mirrors-run invariant. No Store method checks
// that invariant or returns this error.
var ErrInvalidRunTransition = errors.New("invalid run transition")

// Driver selects the backing database/sql driver.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Store is the persistence layer for the probe scheduler's data model.
type Store struct {
	db     *sql.DB
	driver Driver
}

// Open opens (and migrates) the store for the given driver and DSN. SQLite
// is kept to a single pooled connection for deterministic write ordering,
// mirroring the control plane's own job store; Postgres/MySQL get a modest
// pool since they arbitrate concurrent writers themselves.
func Open(driver Driver, dsn string) (*Store, error) {
	driverName, err := sqlDriverName(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set WAL: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set busy_timeout: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(5)
	}

	if driver == DriverSQLite && dsn != "" && dsn != ":memory:" {
		if _, statErr := os.Stat(dsn); statErr == nil {
			if _, err := migration.BackupDatabase(dsn); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("backup before migrate: %w", err)
			}
			// Best-effort pruning; a failed cleanup never blocks startup.
			_ = migration.CleanOldBackups(dsn, backupRetention)
		}
	}

	s := &Store{db: db, driver: driver}
	if err := migration.NewRunner("probe-scheduler", schemaMigrations).Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func sqlDriverName(d Driver) (string, error) {
	switch d {
	case DriverSQLite, "":
		return "sqlite", nil
	case DriverPostgres:
		return "pgx", nil
	case DriverMySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("unknown database driver %q", d)
	}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection pool so the workflow engine's journal
// can share the same database as the rest of the schema.
func (s *Store) DB() *sql.DB {
	return s.db
}

// schemaMigrations is the probe scheduler's full migration history. Future
// schema changes append a new Migration rather than editing v1's statements.
var schemaMigrations = []migration.Migration{
	{
		Version:     1,
		Description: "create urls, targets, schedules, runs, attempts",
		Up: func(tx *sql.Tx) error {
			for _, stmt := range v1Statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("apply schema statement: %w", err)
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			for _, table := range []string{"attempts", "runs", "window_schedules", "interval_schedules", "targets", "urls"} {
				if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
					return fmt.Errorf("drop %s: %w", table, err)
				}
			}
			return nil
		},
	},
}

var v1Statements = []string{
		`CREATE TABLE IF NOT EXISTS urls (
			id         TEXT PRIMARY KEY,
			scheme     TEXT NOT NULL DEFAULT 'https',
			netloc     TEXT NOT NULL,
			path       TEXT NOT NULL DEFAULT '',
			params     TEXT NOT NULL DEFAULT '',
			query      TEXT NOT NULL DEFAULT '',
			fragment   TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_urls_netloc ON urls(netloc)`,
		`CREATE TABLE IF NOT EXISTS targets (
			id                  TEXT PRIMARY KEY,
			name                TEXT NOT NULL,
			url_id              TEXT NOT NULL,
			method              TEXT NOT NULL,
			headers             TEXT NOT NULL DEFAULT '{}',
			body                TEXT,
			timeout_seconds     INTEGER NOT NULL DEFAULT 30,
			retry_count         INTEGER NOT NULL DEFAULT 0,
			retry_delay_seconds INTEGER NOT NULL DEFAULT 1,
			follow_redirects    INTEGER NOT NULL DEFAULT 1,
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL,
			FOREIGN KEY(url_id) REFERENCES urls(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_targets_url_id ON targets(url_id)`,
		`CREATE TABLE IF NOT EXISTS interval_schedules (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			target_id        TEXT NOT NULL,
			interval_seconds INTEGER NOT NULL,
			paused           INTEGER NOT NULL DEFAULT 0,
			workflow_handle  TEXT NOT NULL DEFAULT '',
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL,
			FOREIGN KEY(target_id) REFERENCES targets(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS window_schedules (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			target_id        TEXT NOT NULL,
			interval_seconds INTEGER NOT NULL,
			duration_seconds INTEGER NOT NULL,
			paused           INTEGER NOT NULL DEFAULT 0,
			workflow_handle  TEXT NOT NULL DEFAULT '',
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL,
			FOREIGN KEY(target_id) REFERENCES targets(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interval_schedules_target ON interval_schedules(target_id)`,
		`CREATE INDEX IF NOT EXISTS idx_window_schedules_target ON window_schedules(target_id)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id                   TEXT PRIMARY KEY,
			schedule_id          TEXT NOT NULL,
			run_number           INTEGER NOT NULL,
			started_at           TEXT NOT NULL,
			status               TEXT NOT NULL,
			status_code          INTEGER,
			latency_ms           REAL,
			response_size_bytes  INTEGER,
			request_headers      TEXT NOT NULL DEFAULT '{}',
			request_body         TEXT,
			response_headers     TEXT NOT NULL DEFAULT '{}',
			response_body        TEXT,
			error_message        TEXT NOT NULL DEFAULT '',
			redirected           INTEGER NOT NULL DEFAULT 0,
			redirect_count       INTEGER NOT NULL DEFAULT 0,
			redirect_history     TEXT NOT NULL DEFAULT '[]',
			created_at           TEXT NOT NULL,
			updated_at           TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_schedule ON runs(schedule_id, run_number DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_schedule_started ON runs(schedule_id, started_at DESC)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id                  TEXT PRIMARY KEY,
			run_id              TEXT NOT NULL,
			attempt_number      INTEGER NOT NULL,
			started_at          TEXT NOT NULL,
			status              TEXT NOT NULL,
			status_code         INTEGER,
			latency_ms          REAL,
			response_size_bytes INTEGER,
			response_headers    TEXT NOT NULL DEFAULT '{}',
			response_body       TEXT,
			error_message       TEXT NOT NULL DEFAULT '',
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL,
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id, attempt_number)`,
}

const timeLayout = time.RFC3339Nano

func nowRFC3339() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
