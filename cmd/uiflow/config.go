package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all uiflow configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ArtifactsDir string `json:"artifacts_dir"`
	DBPath       string `json:"db_path"`
	LogLevel     string `json:"log_level"`
	PoolSize     int    `json:"pool_size"`
	RobotBinary  string `json:"robot_binary"`
	ExecTimeout  string `json:"exec_timeout"` // Go duration string; empty means no timeout
}

func defaultConfig() Config {
	return Config{
		ArtifactsDir: filepath.Join(uiflowDir(), "artifacts"),
		DBPath:       filepath.Join(uiflowDir(), "uiflow.db"),
		LogLevel:     "info",
		PoolSize:     4,
		RobotBinary:  "robot",
	}
}

func uiflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".uiflow"
	}
	return filepath.Join(home, ".uiflow")
}

func settingsPath() string {
	return filepath.Join(uiflowDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("UIFLOW_ARTIFACTS_DIR"); v != "" {
		cfg.ArtifactsDir = v
	}
	if v := os.Getenv("UIFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("UIFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("UIFLOW_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv("UIFLOW_ROBOT_BINARY"); v != "" {
		cfg.RobotBinary = v
	}
	if v := os.Getenv("UIFLOW_EXEC_TIMEOUT"); v != "" {
		cfg.ExecTimeout = v
	}

	return cfg
}

// SchedulePath returns the schedule record location.
func (c Config) SchedulePath() string {
	return filepath.Join(c.ArtifactsDir, "schedule.json")
}

// ExecTimeoutDuration parses the configured execution timeout.
// Invalid or empty values fall back to unbounded.
func (c Config) ExecTimeoutDuration() time.Duration {
	if c.ExecTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.ExecTimeout)
	if err != nil {
		return 0
	}
	return d
}
