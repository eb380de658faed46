// Package config loads monitor configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultServerAddress  = ":8090"
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultAPITimeout     = 10 * time.Second
	defaultImportInterval = 30 * time.Second
	defaultEventInterval  = time.Minute
	defaultProgressPoll   = time.Second
	defaultStatusInterval = 5 * time.Minute
	defaultTermInterval   = 8 * time.Hour
	defaultBackfillWindow = 48 * time.Hour
)

// Config is the top-level monitor configuration.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// ServerConfig configures the monitor's own HTTP surface.
type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// APIConfig locates the provisioning REST API the monitor consumes.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"` // e.g. "https://provision.example.edu/api/v1"
	Timeout time.Duration `yaml:"timeout"`
}

// MonitorConfig holds the polling cadences and event chart settings.
type MonitorConfig struct {
	ImportInterval   time.Duration `yaml:"import_interval"`   // job list refresh
	EventInterval    time.Duration `yaml:"event_interval"`    // live chart tick
	ProgressInterval time.Duration `yaml:"progress_interval"` // per-job progress poll
	StatusInterval   time.Duration `yaml:"status_interval"`   // upstream status
	TermInterval     time.Duration `yaml:"term_interval"`     // term boundary refresh
	EventTypes       []string      `yaml:"event_types"`
	BackfillWindow   time.Duration `yaml:"backfill_window"`
}

// Load reads the config file at path, applies defaults and env overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// missing file is fine; env vars and defaults carry it
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaultServerAddress
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = defaultAPITimeout
	}
	if cfg.Monitor.ImportInterval <= 0 {
		cfg.Monitor.ImportInterval = defaultImportInterval
	}
	if cfg.Monitor.EventInterval <= 0 {
		cfg.Monitor.EventInterval = defaultEventInterval
	}
	if cfg.Monitor.ProgressInterval <= 0 {
		cfg.Monitor.ProgressInterval = defaultProgressPoll
	}
	if cfg.Monitor.StatusInterval <= 0 {
		cfg.Monitor.StatusInterval = defaultStatusInterval
	}
	if cfg.Monitor.TermInterval <= 0 {
		cfg.Monitor.TermInterval = defaultTermInterval
	}
	if len(cfg.Monitor.EventTypes) == 0 {
		cfg.Monitor.EventTypes = []string{"enrollment", "instructor"}
	}
	if cfg.Monitor.BackfillWindow <= 0 {
		cfg.Monitor.BackfillWindow = defaultBackfillWindow
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SIS_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("MONITOR_PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	if v := os.Getenv("MONITOR_EVENT_TYPES"); v != "" {
		types := make([]string, 0, 4)
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
		if len(types) > 0 {
			cfg.Monitor.EventTypes = types
		}
	}
	if v := os.Getenv("MONITOR_IMPORT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Monitor.ImportInterval = d
		}
	}
	if v := os.Getenv("MONITOR_EVENT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Monitor.EventInterval = d
		}
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required (or SIS_API_URL)")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.Monitor.ProgressInterval < time.Second {
		return fmt.Errorf("monitor.progress_interval must be at least 1s, got %v", c.Monitor.ProgressInterval)
	}
	for i, t := range c.Monitor.EventTypes {
		if t == "" {
			return fmt.Errorf("monitor.event_types[%d] is empty", i)
		}
	}
	return nil
}

// parseBool accepts "true", "1" and "yes" (case-insensitive).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
