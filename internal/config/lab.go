package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/soundlab/internal/thermal"
)

// DefaultConfigPath is where the server looks for a config file when none
// is given on the command line.
const DefaultConfigPath = "config/soundlab.json"

// LabConfig is the root configuration of the lab server. Every field is
// optional; the Get* methods supply defaults for fields left unset, so
// partial configs are safe.
type LabConfig struct {
	Listen   *string `json:"listen,omitempty" yaml:"listen,omitempty"`
	LogLevel *string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// Session defaults and lifecycle
	DefaultTemperatureC *float64 `json:"default_temperature_c,omitempty" yaml:"default_temperature_c,omitempty"`
	SessionTTL          *string  `json:"session_ttl,omitempty" yaml:"session_ttl,omitempty"`       // duration string like "30m"
	SweepInterval       *string  `json:"sweep_interval,omitempty" yaml:"sweep_interval,omitempty"` // duration string like "1m"

	// Pulse-echo procedure
	SettleDuration       *string  `json:"settle_duration,omitempty" yaml:"settle_duration,omitempty"` // duration string like "3s"
	DelayToleranceMs     *float64 `json:"delay_tolerance_ms,omitempty" yaml:"delay_tolerance_ms,omitempty"`
	VelocityToleranceMPS *float64 `json:"velocity_tolerance_mps,omitempty" yaml:"velocity_tolerance_mps,omitempty"`
	TheoryToleranceMPS   *float64 `json:"theory_tolerance_mps,omitempty" yaml:"theory_tolerance_mps,omitempty"`

	// Seed makes every session's random draws reproducible when set.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptyLabConfig returns a LabConfig with all fields set to nil.
func EmptyLabConfig() *LabConfig {
	return &LabConfig{}
}

// DefaultLabConfig returns a config with every field populated with its
// default value.
func DefaultLabConfig() *LabConfig {
	return &LabConfig{
		Listen:               ptrString(":8080"),
		LogLevel:             ptrString("info"),
		DefaultTemperatureC:  ptrFloat64(20.0),
		SessionTTL:           ptrString("30m"),
		SweepInterval:        ptrString("1m"),
		SettleDuration:       ptrString("3s"),
		DelayToleranceMs:     ptrFloat64(0.5),
		VelocityToleranceMPS: ptrFloat64(1.0),
		TheoryToleranceMPS:   ptrFloat64(10.0),
	}
}

// LoadLabConfig loads a LabConfig from a .json, .yaml or .yml file.
// The file must be under 1MB.
func LoadLabConfig(path string) (*LabConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyLabConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *LabConfig) Validate() error {
	if c.DefaultTemperatureC != nil {
		t := *c.DefaultTemperatureC
		if t < thermal.MinTemperature || t > thermal.MaxTemperature {
			return fmt.Errorf("default_temperature_c must be between %.0f and %.0f, got %f", thermal.MinTemperature, thermal.MaxTemperature, t)
		}
	}

	durations := []struct {
		name     string
		value    *string
		positive bool
	}{
		{"session_ttl", c.SessionTTL, true},
		{"sweep_interval", c.SweepInterval, true},
		{"settle_duration", c.SettleDuration, false},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		v, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.value, err)
		}
		if v < 0 || (d.positive && v == 0) {
			return fmt.Errorf("%s must be positive, got %s", d.name, v)
		}
	}

	tolerances := []struct {
		name  string
		value *float64
	}{
		{"delay_tolerance_ms", c.DelayToleranceMs},
		{"velocity_tolerance_mps", c.VelocityToleranceMPS},
		{"theory_tolerance_mps", c.TheoryToleranceMPS},
	}
	for _, tol := range tolerances {
		if tol.value != nil && !(*tol.value > 0) {
			return fmt.Errorf("%s must be > 0, got %f", tol.name, *tol.value)
		}
	}

	if c.LogLevel != nil {
		switch *c.LogLevel {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", *c.LogLevel)
		}
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetListen returns the listen address or the default.
func (c *LabConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}

// GetLogLevel returns the log level or the default.
func (c *LabConfig) GetLogLevel() string {
	if c.LogLevel == nil || *c.LogLevel == "" {
		return "info"
	}
	return *c.LogLevel
}

// GetDefaultTemperatureC returns the initial session temperature or the default.
func (c *LabConfig) GetDefaultTemperatureC() float64 {
	if c.DefaultTemperatureC == nil {
		return 20.0
	}
	return *c.DefaultTemperatureC
}

// GetSessionTTL returns how long an idle session is kept.
func (c *LabConfig) GetSessionTTL() time.Duration {
	return durationOr(c.SessionTTL, 30*time.Minute)
}

// GetSweepInterval returns how often idle sessions are swept.
func (c *LabConfig) GetSweepInterval() time.Duration {
	return durationOr(c.SweepInterval, time.Minute)
}

// GetSettleDuration returns the pulse-echo settle period.
func (c *LabConfig) GetSettleDuration() time.Duration {
	return durationOr(c.SettleDuration, 3*time.Second)
}

// GetDelayToleranceMs returns the Δt tolerance or the default.
func (c *LabConfig) GetDelayToleranceMs() float64 {
	if c.DelayToleranceMs == nil {
		return 0.5
	}
	return *c.DelayToleranceMs
}

// GetVelocityToleranceMPS returns the velocity tolerance or the default.
func (c *LabConfig) GetVelocityToleranceMPS() float64 {
	if c.VelocityToleranceMPS == nil {
		return 1.0
	}
	return *c.VelocityToleranceMPS
}

// GetTheoryToleranceMPS returns the near-theory band or the default.
func (c *LabConfig) GetTheoryToleranceMPS() float64 {
	if c.TheoryToleranceMPS == nil {
		return 10.0
	}
	return *c.TheoryToleranceMPS
}

// GetSeed returns the configured seed and whether one was set.
func (c *LabConfig) GetSeed() (uint64, bool) {
	if c.Seed == nil {
		return 0, false
	}
	return *c.Seed, true
}
