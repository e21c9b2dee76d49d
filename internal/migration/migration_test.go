package migration

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTempDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func openTempFileDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, path
}

func TestCurrentVersionDefaultsToZero(t *testing.T) {
	db := openTempDB(t)
	v, err := CurrentVersion(db)
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if v != 0 {
		t.Fatalf("version = %d, want 0", v)
	}
}

func TestSetVersionThenCurrentVersion(t *testing.T) {
	db := openTempDB(t)
	if err := SetVersion(db, 3); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}
	v, err := CurrentVersion(db)
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if v != 3 {
		t.Fatalf("version = %d, want 3", v)
	}

	if err := SetVersion(db, 4); err != nil {
		t.Fatalf("SetVersion (update): %v", err)
	}
	v, err = CurrentVersion(db)
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if v != 4 {
		t.Fatalf("version = %d, want 4", v)
	}
}

func TestNeedsMigration(t *testing.T) {
	db := openTempDB(t)
	needs, err := NeedsMigration(db, 2)
	if err != nil {
		t.Fatalf("NeedsMigration: %v", err)
	}
	if !needs {
		t.Fatalf("needs = false, want true at version 0")
	}

	if err := SetVersion(db, 2); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}
	needs, err = NeedsMigration(db, 2)
	if err != nil {
		t.Fatalf("NeedsMigration: %v", err)
	}
	if needs {
		t.Fatalf("needs = true, want false once at target")
	}
}

func TestEnsureVersionOnlySetsOnce(t *testing.T) {
	db := openTempDB(t)
	if err := EnsureVersion(db, 5); err != nil {
		t.Fatalf("EnsureVersion: %v", err)
	}
	v, _ := CurrentVersion(db)
	if v != 5 {
		t.Fatalf("version = %d, want 5", v)
	}

	if err := EnsureVersion(db, 9); err != nil {
		t.Fatalf("EnsureVersion (second call): %v", err)
	}
	v, _ = CurrentVersion(db)
	if v != 5 {
		t.Fatalf("version = %d, want unchanged 5", v)
	}
}

func TestCheckVersionRefusesNewerSchema(t *testing.T) {
	db := openTempDB(t)
	if err := SetVersion(db, 7); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}
	if err := CheckVersion(db, 5); err == nil {
		t.Fatalf("expected error when schema (7) is newer than binary (5)")
	}
	if err := CheckVersion(db, 7); err != nil {
		t.Fatalf("CheckVersion at equal version: %v", err)
	}
	if err := CheckVersion(db, 10); err != nil {
		t.Fatalf("CheckVersion at older schema: %v", err)
	}
}

func TestRunnerMigrateAppliesInOrder(t *testing.T) {
	db := openTempDB(t)
	var applied []int
	migrations := []Migration{
		{
			Version: 2,
			Up: func(tx *sql.Tx) error {
				applied = append(applied, 2)
				_, err := tx.Exec(`CREATE TABLE b (id TEXT)`)
				return err
			},
		},
		{
			Version: 1,
			Up: func(tx *sql.Tx) error {
				applied = append(applied, 1)
				_, err := tx.Exec(`CREATE TABLE a (id TEXT)`)
				return err
			},
		},
	}

	runner := NewRunner("test-store", migrations)
	if err := runner.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	if len(applied) != 2 || applied[0] != 1 || applied[1] != 2 {
		t.Fatalf("applied order = %v, want [1 2]", applied)
	}
	v, _ := CurrentVersion(db)
	if v != 2 {
		t.Fatalf("version = %d, want 2", v)
	}

	if _, err := db.Exec(`INSERT INTO a VALUES ('x')`); err != nil {
		t.Fatalf("table a missing: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO b VALUES ('y')`); err != nil {
		t.Fatalf("table b missing: %v", err)
	}
}

func TestRunnerMigrateIsIdempotent(t *testing.T) {
	db := openTempDB(t)
	calls := 0
	runner := NewRunner("test-store", []Migration{
		{
			Version: 1,
			Up: func(tx *sql.Tx) error {
				calls++
				_, err := tx.Exec(`CREATE TABLE a (id TEXT)`)
				return err
			},
		},
	})

	if err := runner.Migrate(db); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	if err := runner.Migrate(db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if calls != 1 {
		t.Fatalf("Up called %d times, want 1", calls)
	}
}

func TestRunnerRollback(t *testing.T) {
	db := openTempDB(t)
	runner := NewRunner("test-store", []Migration{
		{
			Version: 1,
			Up:      func(tx *sql.Tx) error { _, err := tx.Exec(`CREATE TABLE a (id TEXT)`); return err },
			Down:    func(tx *sql.Tx) error { _, err := tx.Exec(`DROP TABLE a`); return err },
		},
	})

	if err := runner.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := runner.Rollback(db, 0); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	v, _ := CurrentVersion(db)
	if v != 0 {
		t.Fatalf("version after rollback = %d, want 0", v)
	}
	if _, err := db.Exec(`INSERT INTO a VALUES ('x')`); err == nil {
		t.Fatalf("table a should have been dropped")
	}
}

func TestBackupDatabaseAndCleanOldBackups(t *testing.T) {
	db, path := openTempFileDB(t)
	if _, err := db.Exec(`CREATE TABLE a (id TEXT)`); err != nil {
		t.Fatalf("seed table: %v", err)
	}
	db.Close()

	backupPath, err := BackupDatabase(path)
	if err != nil {
		t.Fatalf("BackupDatabase: %v", err)
	}
	if _, err := os.Stat(backupPath); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}

	if err := CleanOldBackups(path, time.Hour); err != nil {
		t.Fatalf("CleanOldBackups (nothing old): %v", err)
	}
	if _, err := os.Stat(backupPath); err != nil {
		t.Fatalf("fresh backup should survive a 1h cutoff: %v", err)
	}

	if err := CleanOldBackups(path, -time.Second); err != nil {
		t.Fatalf("CleanOldBackups (everything old): %v", err)
	}
	if _, err := os.Stat(backupPath); !os.IsNotExist(err) {
		t.Fatalf("expired backup should have been removed")
	}
}
