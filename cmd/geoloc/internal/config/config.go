// Package config loads the optional geoloc.yaml configuration. Settings
// resolve in three layers: built-in defaults, then ~/.geoloc/config.yaml,
// then geoloc.yaml in the working directory. Command-line flags override
// all of them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the per-directory configuration file.
const FileName = "geoloc.yaml"

// Config represents one geoloc.yaml file. Pointer fields distinguish an
// absent setting from an explicit zero.
type Config struct {
	Source    string    `yaml:"source,omitempty"`
	Accuracy  *float64  `yaml:"accuracy,omitempty"`
	Interval  string    `yaml:"interval,omitempty"`
	Threshold *float64  `yaml:"threshold,omitempty"`
	Timeout   string    `yaml:"timeout,omitempty"`
	Listen    string    `yaml:"listen,omitempty"`
	Log       string    `yaml:"log,omitempty"`
	Sim       SimConfig `yaml:"sim"`
}

// SimConfig configures the simulated sensor source.
type SimConfig struct {
	Latitude  *float64 `yaml:"latitude,omitempty"`
	Longitude *float64 `yaml:"longitude,omitempty"`
	Altitude  *float64 `yaml:"altitude,omitempty"`
	Seed      *int64   `yaml:"seed,omitempty"`
	Step      *float64 `yaml:"step,omitempty"`
}

// Resolved contains merged settings with defaults applied.
type Resolved struct {
	Source    string
	Accuracy  float64
	Interval  time.Duration
	Threshold float64
	Timeout   time.Duration
	Listen    string
	Log       string
	Sim       SimResolved
}

// SimResolved contains the merged simulated-sensor settings.
type SimResolved struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
	Seed      int64
	Step      float64
}

// LoadOptional reads a config file if present. A missing file yields an
// empty config, not an error.
func LoadOptional(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &cfg, nil
}

// Resolve merges the home config (homeDir/.geoloc/config.yaml) and the
// working-directory config (workDir/geoloc.yaml), applies defaults, and
// validates the result. The working directory wins on conflicts.
func Resolve(workDir, homeDir string) (*Resolved, error) {
	merged := &Config{}

	if homeDir != "" {
		home, err := LoadOptional(filepath.Join(homeDir, ".geoloc", "config.yaml"))
		if err != nil {
			return nil, err
		}
		merged.overlay(home)
	}

	work, err := LoadOptional(filepath.Join(workDir, FileName))
	if err != nil {
		return nil, err
	}
	merged.overlay(work)

	return merged.resolve()
}

// ResolveDefault resolves from the current working directory and the user's
// home directory. A missing home directory just skips that layer.
func ResolveDefault() (*Resolved, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}
	return Resolve(workDir, homeDir)
}

// overlay copies every setting present in over into c.
func (c *Config) overlay(over *Config) {
	if over.Source != "" {
		c.Source = over.Source
	}
	if over.Accuracy != nil {
		c.Accuracy = over.Accuracy
	}
	if over.Interval != "" {
		c.Interval = over.Interval
	}
	if over.Threshold != nil {
		c.Threshold = over.Threshold
	}
	if over.Timeout != "" {
		c.Timeout = over.Timeout
	}
	if over.Listen != "" {
		c.Listen = over.Listen
	}
	if over.Log != "" {
		c.Log = over.Log
	}
	if over.Sim.Latitude != nil {
		c.Sim.Latitude = over.Sim.Latitude
	}
	if over.Sim.Longitude != nil {
		c.Sim.Longitude = over.Sim.Longitude
	}
	if over.Sim.Altitude != nil {
		c.Sim.Altitude = over.Sim.Altitude
	}
	if over.Sim.Seed != nil {
		c.Sim.Seed = over.Sim.Seed
	}
	if over.Sim.Step != nil {
		c.Sim.Step = over.Sim.Step
	}
}

func (c *Config) resolve() (*Resolved, error) {
	out := &Resolved{
		Source:    "sim",
		Accuracy:  100,
		Interval:  time.Second,
		Threshold: 0,
		Timeout:   10 * time.Second,
		Listen:    ":7311",
		Log:       "info",
		Sim: SimResolved{
			Latitude:  60.1699,
			Longitude: 24.9384,
			Altitude:  12,
			Seed:      1,
			Step:      25,
		},
	}

	if s := strings.TrimSpace(c.Source); s != "" {
		if s != "sim" && s != "remote" {
			return nil, fmt.Errorf("source must be sim or remote (got %q)", s)
		}
		out.Source = s
	}
	if c.Accuracy != nil {
		if *c.Accuracy <= 0 {
			return nil, fmt.Errorf("accuracy must be positive (got %v)", *c.Accuracy)
		}
		out.Accuracy = *c.Accuracy
	}
	if s := strings.TrimSpace(c.Interval); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", s, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("interval cannot be negative (got %s)", d)
		}
		out.Interval = d
	}
	if c.Threshold != nil {
		if *c.Threshold < 0 {
			return nil, fmt.Errorf("threshold cannot be negative (got %v)", *c.Threshold)
		}
		out.Threshold = *c.Threshold
	}
	if s := strings.TrimSpace(c.Timeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", s, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("timeout must be positive (got %s)", d)
		}
		out.Timeout = d
	}
	if s := strings.TrimSpace(c.Listen); s != "" {
		out.Listen = s
	}
	if s := strings.TrimSpace(c.Log); s != "" {
		out.Log = s
	}
	if c.Sim.Latitude != nil {
		out.Sim.Latitude = *c.Sim.Latitude
	}
	if c.Sim.Longitude != nil {
		out.Sim.Longitude = *c.Sim.Longitude
	}
	if c.Sim.Altitude != nil {
		out.Sim.Altitude = *c.Sim.Altitude
	}
	if c.Sim.Seed != nil {
		out.Sim.Seed = *c.Sim.Seed
	}
	if c.Sim.Step != nil {
		if *c.Sim.Step <= 0 {
			return nil, fmt.Errorf("sim.step must be positive (got %v)", *c.Sim.Step)
		}
		out.Sim.Step = *c.Sim.Step
	}

	return out, nil
}
