package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for a careview run.
type Config struct {
	DSN        string
	LogFormat  string // "text" or "json"
	FilePath   string // one-shot ingest: single bundle file
	WatchDir   string // directory of bundle files to watch or ingest
	ListenAddr string
	NotifyURL  string

	StabilityWindow time.Duration `yaml:"stability_window"` // quiet period before a changed file is ingested
	RetryAttempts   uint          `yaml:"retry_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`

	InsightsAPIKey string
	InsightsModel  string `yaml:"insights_model"`
}

// yamlConfig is the on-disk YAML structure. Only tuning knobs live in the
// file; connection and path settings come from flags and the environment.
// Durations are strings ("2s", "500ms") parsed with time.ParseDuration.
type yamlConfig struct {
	StabilityWindow string `yaml:"stability_window"`
	RetryAttempts   uint   `yaml:"retry_attempts"`
	RetryDelay      string `yaml:"retry_delay"`
	InsightsModel   string `yaml:"insights_model"`
}

// LoadFromFile reads a YAML config file and merges its values into Config.
// Zero values in the file leave the existing config untouched.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if yc.StabilityWindow != "" {
		d, err := parseTuningDuration("stability_window", yc.StabilityWindow)
		if err != nil {
			return err
		}
		c.StabilityWindow = d
	}
	if yc.RetryAttempts != 0 {
		c.RetryAttempts = yc.RetryAttempts
	}
	if yc.RetryDelay != "" {
		d, err := parseTuningDuration("retry_delay", yc.RetryDelay)
		if err != nil {
			return err
		}
		c.RetryDelay = d
	}
	if yc.InsightsModel != "" {
		c.InsightsModel = yc.InsightsModel
	}
	return nil
}

func parseTuningDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

// ValidateFile checks that a one-shot ingest target exists.
func (c *Config) ValidateFile() error {
	if c.FilePath == "" {
		return fmt.Errorf("--file is required")
	}
	if _, err := os.Stat(c.FilePath); err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}
	return nil
}

// ValidateWatchDir checks that the bundle directory exists.
func (c *Config) ValidateWatchDir() error {
	if c.WatchDir == "" {
		return fmt.Errorf("--dir is required")
	}
	info, err := os.Stat(c.WatchDir)
	if err != nil {
		return fmt.Errorf("directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", c.WatchDir)
	}
	return nil
}

// ValidateDSN checks that a database connection string was supplied.
func (c *Config) ValidateDSN() error {
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return nil
}
