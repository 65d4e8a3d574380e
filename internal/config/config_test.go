package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arikfeldman/tritier/internal/config"
)

func TestDefault_HasSensibleValues(t *testing.T) {
	cfg := config.Default()

	if cfg.Node.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Node.Port)
	}
	if cfg.Node.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Node.Host)
	}
	if cfg.Node.DataDir != "./data" {
		t.Errorf("expected default data_dir ./data, got %s", cfg.Node.DataDir)
	}
	if cfg.Engine.Frequency() != 50*time.Millisecond {
		t.Errorf("expected default frequency 50ms, got %s", cfg.Engine.Frequency())
	}
	if cfg.Engine.FastThreshold() >= cfg.Engine.SlowThreshold() {
		t.Error("default fastThreshold must be less than slowThreshold")
	}
	if !cfg.DeadLetter.Enabled {
		t.Error("dead letter journal should be enabled by default")
	}
	if !cfg.Stats.Enabled {
		t.Error("stats push should be enabled by default")
	}
}

func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("/tmp/tritier_nonexistent_config_12345.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Node.Port != 8080 {
		t.Errorf("expected default port for missing file, got %d", cfg.Node.Port)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	yaml := `
node:
  port: 9999
  host: "127.0.0.1"
  data_dir: "/tmp/tritier_test"
engine:
  frequency_ms: 100
  fast_threshold_ms: 1000
  slow_threshold_ms: 10000
dead_letter:
  enabled: false
`
	path := writeTempYAML(t, yaml)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Node.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Node.Port)
	}
	if cfg.Node.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Node.Host)
	}
	if cfg.Engine.FrequencyMs != 100 {
		t.Errorf("expected frequency_ms 100, got %d", cfg.Engine.FrequencyMs)
	}
	if cfg.DeadLetter.Enabled {
		t.Error("expected dead_letter.enabled overridden to false")
	}
	// Unset fields keep their defaults.
	if cfg.Metrics.Port != 9090 {
		t.Errorf("expected default metrics port 9090 (unchanged), got %d", cfg.Metrics.Port)
	}
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	path := writeTempYAML(t, "node: [invalid: yaml: {{{}}")
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid, got: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := config.Default()
	cfg.Node.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for port 0")
	}

	cfg.Node.Port = 99999
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for port 99999")
	}
}

func TestValidate_EmptyDataDir(t *testing.T) {
	cfg := config.Default()
	cfg.Node.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty data_dir")
	}
}

func TestValidate_ThresholdOrdering(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.FastThresholdMs = cfg.Engine.SlowThresholdMs
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error when fastThreshold >= slowThreshold")
	}
}

func TestValidate_ZeroFrequency(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.FrequencyMs = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero frequency_ms")
	}
}

func TestValidate_DeadLetterPathRequiredWhenEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.DeadLetter.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty dead_letter.path while enabled")
	}
}

// writeTempYAML writes content to a temp file and returns its path.
func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writeTempYAML: %v", err)
	}
	return path
}
