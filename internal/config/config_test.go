package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.ListenAddr)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("expected sqlite, got %s", cfg.DBDriver)
	}
	if cfg.DefaultTimeoutSeconds != 30 {
		t.Errorf("expected 30, got %d", cfg.DefaultTimeoutSeconds)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected info, got %s", cfg.LogLevel)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.MetricsAddr)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"listen_addr": ":9090",
		"db_driver": "postgres",
		"db_dsn": "postgres://localhost/probescheduler",
		"default_retry_count": 3,
		"log_level": "debug"
	}`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.ListenAddr)
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("expected postgres, got %s", cfg.DBDriver)
	}
	if cfg.DBDSN != "postgres://localhost/probescheduler" {
		t.Errorf("unexpected dsn: %s", cfg.DBDSN)
	}
	if cfg.DefaultRetryCount != 3 {
		t.Errorf("expected 3, got %d", cfg.DefaultRetryCount)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug, got %s", cfg.LogLevel)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"listen_addr": ":9090"}`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PROBESCHEDULER_LISTEN_ADDR", ":7070")
	t.Setenv("PROBESCHEDULER_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ListenAddr != ":7070" {
		t.Errorf("env should override file: got %s", cfg.ListenAddr)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("env should override default: got %s", cfg.LogLevel)
	}
}

func TestLoadFromEnvOnly(t *testing.T) {
	t.Setenv("PROBESCHEDULER_DB_DSN", "/tmp/env-test.db")
	t.Setenv("PROBESCHEDULER_OTLP_ENDPOINT", "otel-collector:4317")
	t.Setenv("PROBESCHEDULER_PAUSED_POLL_INTERVAL_SECONDS", "45")

	cfg := LoadFromEnv()
	if cfg.DBDSN != "/tmp/env-test.db" {
		t.Errorf("expected /tmp/env-test.db, got %s", cfg.DBDSN)
	}
	if cfg.OTLPEndpoint != "otel-collector:4317" {
		t.Errorf("expected otel-collector:4317, got %s", cfg.OTLPEndpoint)
	}
	if cfg.PausedPollIntervalSeconds != 45 {
		t.Errorf("expected 45, got %d", cfg.PausedPollIntervalSeconds)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	cfg := Default()
	cfg.ListenAddr = ":3000"
	cfg.DBDSN = "/data/probescheduler.db"

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.ListenAddr != ":3000" {
		t.Errorf("expected :3000, got %s", loaded.ListenAddr)
	}
	if loaded.DBDSN != "/data/probescheduler.db" {
		t.Errorf("expected /data/probescheduler.db, got %s", loaded.DBDSN)
	}
}

func TestDriverReflectsDBDriver(t *testing.T) {
	cfg := Default()
	cfg.DBDriver = "postgres"
	if string(cfg.Driver()) != "postgres" {
		t.Errorf("expected postgres, got %s", cfg.Driver())
	}
}
