// Package config provides configuration loading for the probe scheduler.
// Configuration sources (in priority order): env vars > config file > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/probesched/probe-scheduler/internal/store"
)

// Config holds all probe scheduler configuration.
type Config struct {
	// Listen address for the Query API (default ":8080")
	ListenAddr string `json:"listen_addr"`

	// Storage driver ("sqlite", "postgres" or "mysql") and its DSN.
	DBDriver string `json:"db_driver"`
	DBDSN    string `json:"db_dsn"`

	// Default Target retry behavior. These are loaded and saved with the rest
	// of the config, but no component reads them: a Target that omits these
	// fields gets the fixed defaults from the model package instead.
	DefaultRetryCount        int `json:"default_retry_count"`
	DefaultRetryDelaySeconds int `json:"default_retry_delay_seconds"`
	DefaultTimeoutSeconds    int `json:"default_timeout_seconds"`

	// How often a paused interval schedule's workflow loop re-checks for
	// resume. It is used in place of interval_seconds whenever the schedule
	// is found paused.
	PausedPollIntervalSeconds int `json:"paused_poll_interval_seconds"`

	// Log level (debug, info, warn, error)
	LogLevel string `json:"log_level"`

	// OTLP gRPC endpoint for traces; empty disables tracing.
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`

	// Metrics/health server address, separate from the Query API so it can
	// be firewalled off independently (default ":9090").
	MetricsAddr string `json:"metrics_addr"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		ListenAddr:                ":8080",
		DBDriver:                  string(store.DriverSQLite),
		DBDSN:                     "probescheduler.db",
		DefaultRetryCount:         0,
		DefaultRetryDelaySeconds:  1,
		DefaultTimeoutSeconds:     30,
		PausedPollIntervalSeconds: 30,
		LogLevel:                  "info",
		MetricsAddr:               ":9090",
	}
}

// Load reads configuration from a file, then overlays environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("PROBESCHEDULER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PROBESCHEDULER_DB_DRIVER"); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv("PROBESCHEDULER_DB_DSN"); v != "" {
		cfg.DBDSN = v
	}
	if v := os.Getenv("PROBESCHEDULER_DEFAULT_RETRY_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultRetryCount = n
		}
	}
	if v := os.Getenv("PROBESCHEDULER_DEFAULT_RETRY_DELAY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultRetryDelaySeconds = n
		}
	}
	if v := os.Getenv("PROBESCHEDULER_DEFAULT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultTimeoutSeconds = n
		}
	}
	if v := os.Getenv("PROBESCHEDULER_PAUSED_POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PausedPollIntervalSeconds = n
		}
	}
	if v := os.Getenv("PROBESCHEDULER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PROBESCHEDULER_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := os.Getenv("PROBESCHEDULER_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() Config {
	cfg, _ := Load("")
	return cfg
}

// Save writes configuration to a file.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0640)
}

// Driver returns the configured store.Driver.
func (c Config) Driver() store.Driver {
	return store.Driver(c.DBDriver)
}
