package migration

import (
	"database/sql"
	"fmt"
	"log"
	"sort"
)

// Migration is one versioned schema change. Up and Down run inside a
// transaction; SetVersion is only called after the transaction commits.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
	Down        func(tx *sql.Tx) error
}

// Runner applies a sorted set of Migrations against a store's database.
type Runner struct {
	storeName  string
	migrations []Migration
}

// NewRunner sorts migrations by Version and returns a Runner for them.
func NewRunner(storeName string, migrations []Migration) *Runner {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Runner{storeName: storeName, migrations: sorted}
}

// Migrate applies every migration newer than the current version, in order.
func (r *Runner) Migrate(db *sql.DB) error {
	if len(r.migrations) == 0 {
		return nil
	}
	latest := r.migrations[len(r.migrations)-1].Version
	return r.MigrateTo(db, latest)
}

// MigrateTo applies migrations up to and including targetVersion.
func (r *Runner) MigrateTo(db *sql.DB, targetVersion int) error {
	current, err := CurrentVersion(db)
	if err != nil {
		return err
	}
	for _, m := range r.migrations {
		if m.Version <= current || m.Version > targetVersion {
			continue
		}
		if err := r.applyUp(db, m); err != nil {
			return fmt.Errorf("%s: migrate to v%d: %w", r.storeName, m.Version, err)
		}
	}
	return nil
}

// Rollback applies Down migrations to bring the schema back to targetVersion.
func (r *Runner) Rollback(db *sql.DB, targetVersion int) error {
	current, err := CurrentVersion(db)
	if err != nil {
		return err
	}
	for i := len(r.migrations) - 1; i >= 0; i-- {
		m := r.migrations[i]
		if m.Version > current || m.Version <= targetVersion {
			continue
		}
		if err := r.applyDown(db, m); err != nil {
			return fmt.Errorf("%s: rollback to v%d: %w", r.storeName, m.Version, err)
		}
	}
	return nil
}

func (r *Runner) applyUp(db *sql.DB, m Migration) error {
	if m.Up == nil {
		return fmt.Errorf("migration v%d has no Up", m.Version)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.Up(tx); err != nil {
		return fmt.Errorf("up: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if err := SetVersion(db, m.Version); err != nil {
		return fmt.Errorf("set version after up: %w", err)
	}
	log.Printf("%s: applied migration v%d (%s)", r.storeName, m.Version, m.Description)
	return nil
}

func (r *Runner) applyDown(db *sql.DB, m Migration) error {
	if m.Down == nil {
		return fmt.Errorf("migration v%d has no Down", m.Version)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.Down(tx); err != nil {
		return fmt.Errorf("down: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if err := SetVersion(db, m.Version-1); err != nil {
		return fmt.Errorf("set version after down: %w", err)
	}
	log.Printf("%s: rolled back migration v%d (%s)", r.storeName, m.Version, m.Description)
	return nil
}
