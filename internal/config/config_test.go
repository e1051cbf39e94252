package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromFile_Valid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("stability_window: 3s\nretry_attempts: 5\nretry_delay: 250ms\ninsights_model: gemini-2.0-flash\n"), 0644)

	var c Config
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if c.StabilityWindow != 3*time.Second {
		t.Errorf("stability window: got %v", c.StabilityWindow)
	}
	if c.RetryAttempts != 5 {
		t.Errorf("retry attempts: got %d", c.RetryAttempts)
	}
	if c.RetryDelay != 250*time.Millisecond {
		t.Errorf("retry delay: got %v", c.RetryDelay)
	}
	if c.InsightsModel != "gemini-2.0-flash" {
		t.Errorf("insights model: got %q", c.InsightsModel)
	}
}

func TestLoadFromFile_EmptyKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("{}\n"), 0644)

	c := Config{RetryAttempts: 3, RetryDelay: time.Second}
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if c.RetryAttempts != 3 || c.RetryDelay != time.Second {
		t.Errorf("existing values overwritten: %+v", c)
	}
}

func TestLoadFromFile_NegativeWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("stability_window: -1s\n"), 0644)

	var c Config
	if err := c.LoadFromFile(path); err == nil {
		t.Fatal("expected error for negative stability window")
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	var c Config
	err := c.LoadFromFile("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateFile(t *testing.T) {
	var c Config
	if err := c.ValidateFile(); err == nil {
		t.Fatal("expected error for empty file path")
	}

	c.FilePath = "/nonexistent/bundle.json"
	if err := c.ValidateFile(); err == nil {
		t.Fatal("expected error for missing file")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.json")
	os.WriteFile(path, []byte("{}"), 0644)
	c.FilePath = path
	if err := c.ValidateFile(); err != nil {
		t.Fatalf("ValidateFile: %v", err)
	}
}

func TestValidateWatchDir(t *testing.T) {
	var c Config
	if err := c.ValidateWatchDir(); err == nil {
		t.Fatal("expected error for empty dir")
	}

	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	os.WriteFile(file, []byte("x"), 0644)
	c.WatchDir = file
	if err := c.ValidateWatchDir(); err == nil {
		t.Fatal("expected error for non-directory")
	}

	c.WatchDir = dir
	if err := c.ValidateWatchDir(); err != nil {
		t.Fatalf("ValidateWatchDir: %v", err)
	}
}

func TestValidateDSN(t *testing.T) {
	var c Config
	if err := c.ValidateDSN(); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	c.DSN = "postgres://localhost/careview"
	if err := c.ValidateDSN(); err != nil {
		t.Fatalf("ValidateDSN: %v", err)
	}
}
