// Package config holds all configuration types and loading logic for
// tritierd. Config structure never shrinks — fields are only added, never
// renamed or removed.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a tritierd process.
type Config struct {
	Node       NodeConfig       `yaml:"node"`
	Engine     EngineConfig     `yaml:"engine"`
	DeadLetter DeadLetterConfig `yaml:"dead_letter"`
	Producers  ProducerConfig   `yaml:"producers"`
	Auth       AuthConfig       `yaml:"auth"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Stats      StatsConfig      `yaml:"stats"`
}

// NodeConfig holds identity and network settings for this process.
type NodeConfig struct {
	// ID is a ULID string. Use "auto" to generate and persist one on first start.
	ID      string `yaml:"id"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

// EngineConfig tunes the tiered scheduler's classification thresholds and
// Fast-tier cadence (spec.md §4.1, §4.3-§4.5).
type EngineConfig struct {
	FrequencyMs     int `yaml:"frequency_ms"`
	FastThresholdMs int `yaml:"fast_threshold_ms"`
	SlowThresholdMs int `yaml:"slow_threshold_ms"`
	DispatchSize    int `yaml:"dispatch_size"`
	GracePeriodMs   int `yaml:"grace_period_ms"`
}

// Frequency returns EngineConfig.FrequencyMs as a time.Duration.
func (e EngineConfig) Frequency() time.Duration { return time.Duration(e.FrequencyMs) * time.Millisecond }

// FastThreshold returns EngineConfig.FastThresholdMs as a time.Duration.
func (e EngineConfig) FastThreshold() time.Duration {
	return time.Duration(e.FastThresholdMs) * time.Millisecond
}

// SlowThreshold returns EngineConfig.SlowThresholdMs as a time.Duration.
func (e EngineConfig) SlowThreshold() time.Duration {
	return time.Duration(e.SlowThresholdMs) * time.Millisecond
}

// GracePeriod returns EngineConfig.GracePeriodMs as a time.Duration.
func (e EngineConfig) GracePeriod() time.Duration {
	return time.Duration(e.GracePeriodMs) * time.Millisecond
}

// DeadLetterConfig controls the bbolt-backed journal that records items
// whose Execute faulted, separate from the engine's in-memory pending work
// (spec.md §5's non-goal of persisting pending work does not cover outcomes).
type DeadLetterConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ProducerConfig sets rate limiting applied per-producer.
type ProducerConfig struct {
	// MaxRate is HTTP requests per second per client IP (all routes,
	// submissions included).
	MaxRate int `yaml:"max_rate"`
	// Burst allows temporary spikes above MaxRate.
	Burst int `yaml:"burst"`
}

// AuthConfig controls API key authentication on every route of the HTTP
// server.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// StatsConfig controls the websocket endpoint that pushes live
// Engine.Statistics snapshots to connected observers.
type StatsConfig struct {
	Enabled        bool `yaml:"enabled"`
	PushIntervalMs int  `yaml:"push_interval_ms"`
}

// PushInterval returns StatsConfig.PushIntervalMs as a time.Duration.
func (s StatsConfig) PushInterval() time.Duration {
	return time.Duration(s.PushIntervalMs) * time.Millisecond
}

// Default returns a Config populated with safe, sensible defaults.
// It is the canonical source of truth for default values.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ID:      "auto",
			Host:    "0.0.0.0",
			Port:    8080,
			DataDir: "./data",
		},
		Engine: EngineConfig{
			FrequencyMs:     50,
			FastThresholdMs: 500,
			SlowThresholdMs: 5_000,
			DispatchSize:    0,
			GracePeriodMs:   20_000,
		},
		DeadLetter: DeadLetterConfig{
			Enabled: true,
			Path:    "./data/deadletter.db",
		},
		Producers: ProducerConfig{
			MaxRate: 10_000,
			Burst:   50_000,
		},
		Auth: AuthConfig{
			Enabled: false,
			APIKey:  "",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Stats: StatsConfig{
			Enabled:        true,
			PushIntervalMs: 1_000,
		},
	}
}

// Load reads a YAML config file at path and overlays it on top of Default().
// If the file does not exist the default config is returned without error,
// making it easy to run tritierd with no config file at all.
//
// After loading the file, environment variables are applied as overrides:
//
//	TRITIER_AUTH_API_KEY   — sets auth.api_key and enables auth (auth.enabled = true)
//	TRITIER_DATA_DIR       — sets node.data_dir
//	TRITIER_PORT           — sets node.port
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays environment variable overrides onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TRITIER_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
		cfg.Auth.Enabled = true
	}
	if v := os.Getenv("TRITIER_DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("TRITIER_PORT"); v != "" {
		var p int
		if _, err := fmt.Sscanf(v, "%d", &p); err == nil && p > 0 {
			cfg.Node.Port = p
		}
	}
}

// Validate checks that the config values are consistent and within
// acceptable ranges. It returns the first error found.
func (c *Config) Validate() error {
	if c.Node.Port < 1 || c.Node.Port > 65535 {
		return errors.New("node.port must be between 1 and 65535")
	}
	if c.Node.DataDir == "" {
		return errors.New("node.data_dir must not be empty")
	}
	if c.Engine.FrequencyMs < 1 {
		return errors.New("engine.frequency_ms must be at least 1")
	}
	if c.Engine.FastThresholdMs >= c.Engine.SlowThresholdMs {
		return errors.New("engine.fast_threshold_ms must be less than engine.slow_threshold_ms")
	}
	if c.Engine.GracePeriodMs < 0 {
		return errors.New("engine.grace_period_ms must be >= 0")
	}
	if c.DeadLetter.Enabled && c.DeadLetter.Path == "" {
		return errors.New("dead_letter.path must not be empty when dead_letter.enabled is true")
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return errors.New("metrics.port must be between 1 and 65535")
	}
	if c.Producers.MaxRate < 0 {
		return errors.New("producers.max_rate must be >= 0")
	}
	if c.Producers.Burst < 0 {
		return errors.New("producers.burst must be >= 0")
	}
	return nil
}
