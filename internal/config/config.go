// Package config loads cortex configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all cortex configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Memory store configuration
	Memory MemoryConfig `yaml:"memory"`

	// Trace consolidation configuration
	Consolidation ConsolidationConfig `yaml:"consolidation"`

	// Audit trail configuration
	Audit AuditConfig `yaml:"audit"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// MemoryConfig configures the persistent store.
type MemoryConfig struct {
	// DatabasePath is the sqlite database file.
	DatabasePath string `yaml:"database_path"`
}

// ConsolidationConfig configures the periodic trace consolidation job.
type ConsolidationConfig struct {
	// Period is the consolidation window size (default 1h; summary ids
	// are derived from the hour-floored window start).
	Period string `yaml:"period"`
	// EdgeWorkers bounds concurrent derived-edge writes.
	EdgeWorkers int `yaml:"edge_workers"`
}

// PeriodDuration parses Period, defaulting to one hour.
func (c ConsolidationConfig) PeriodDuration() time.Duration {
	d, err := time.ParseDuration(c.Period)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// AuditConfig configures the audit sink.
type AuditConfig struct {
	// Path is the JSONL audit log file.
	Path string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"` // master toggle
	Dir        string          `yaml:"dir"`        // optional log directory
	Categories map[string]bool `yaml:"categories"` // per-category toggles
}

// Default returns the configuration used when no file is present.
func Default(workspace string) *Config {
	return &Config{
		Name:    "cortex",
		Version: "0.1.0",
		Memory: MemoryConfig{
			DatabasePath: filepath.Join(workspace, "cortex.db"),
		},
		Consolidation: ConsolidationConfig{
			Period:      "1h",
			EdgeWorkers: 4,
		},
		Audit: AuditConfig{
			Path: filepath.Join(workspace, "audit.jsonl"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override file settings.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CORTEX_DB_PATH"); v != "" {
		cfg.Memory.DatabasePath = v
	}
	if v := os.Getenv("CORTEX_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
	if v := os.Getenv("CORTEX_CONSOLIDATION_PERIOD"); v != "" {
		cfg.Consolidation.Period = v
	}
	if v := os.Getenv("CORTEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CORTEX_DEBUG"); v == "1" || v == "true" {
		cfg.Logging.DebugMode = true
	}
}

// Save writes the configuration back to disk.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
