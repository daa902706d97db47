package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config captures environment driven configuration for the migrator.
type Config struct {
	SQLiteDSN   string
	ScriptsDir  string
	BusyTimeout time.Duration
	JournalMode string
	StepTimeout time.Duration
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults; values that are present but
// unparsable are collected and reported together in a single error.
func Load() (Config, error) {
	cfg := Config{
		SQLiteDSN:   "file:migrator.db",
		ScriptsDir:  "migrations",
		BusyTimeout: 30 * time.Second,
		JournalMode: "WAL",
		StepTimeout: 5 * time.Minute,
	}

	invalid := make([]string, 0, 2)

	if dsn := strings.TrimSpace(os.Getenv("MIGRATOR_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if dir := strings.TrimSpace(os.Getenv("MIGRATOR_SCRIPTS_DIR")); dir != "" {
		cfg.ScriptsDir = dir
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("MIGRATOR_BUSY_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout < 0 {
			invalid = append(invalid, "MIGRATOR_BUSY_TIMEOUT")
		} else {
			cfg.BusyTimeout = timeout
		}
	}

	if mode := strings.TrimSpace(os.Getenv("MIGRATOR_JOURNAL_MODE")); mode != "" {
		cfg.JournalMode = strings.ToUpper(mode)
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("MIGRATOR_STEP_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "MIGRATOR_STEP_TIMEOUT")
		} else {
			cfg.StepTimeout = timeout
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
