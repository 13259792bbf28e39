package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configurable parameters for the application.
// Fields without a yaml tag are flag/default only.
type Config struct {
	ArchivePath string `yaml:"archive"`
	Port        int    `yaml:"port"`
	TraceSize   int    `yaml:"trace_size"`
	LogLevel    string `yaml:"log_level"`

	// Filter is an optional expr predicate selecting which archive entries
	// are registered, e.g. `status == 200 && method == "GET"`.
	Filter string `yaml:"filter"`

	// Watch enables hot reload when the archive file changes.
	Watch bool `yaml:"watch"`

	// RateLimit is tokens per second per client; <= 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	RateLimiterTTL  time.Duration `yaml:"-"`
	WatcherDebounce time.Duration `yaml:"-"`

	ReadTimeout     time.Duration `yaml:"-"`
	WriteTimeout    time.Duration `yaml:"-"`
	IdleTimeout     time.Duration `yaml:"-"`
	ShutdownTimeout time.Duration `yaml:"-"`
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		ArchivePath: "./session.har",
		Port:        8080,
		TraceSize:   200,
		LogLevel:    "info",

		RateBurst: 20,

		RateLimiterTTL:  10 * time.Minute,
		WatcherDebounce: 500 * time.Millisecond,

		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadFile overlays values from a YAML config file onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}
