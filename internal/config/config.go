// Package config loads engine configuration from TOML files.
//
// A missing file is not an error: Load falls back to defaults so the engine
// runs unconfigured. Watch provides optional hot reload for settings that
// can change at runtime, such as the history limit.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the engine configuration.
type Config struct {
	History HistoryConfig `toml:"history"`
	Sync    SyncConfig    `toml:"sync"`
	Log     LogConfig     `toml:"log"`
}

// HistoryConfig configures the undo/redo stacks.
type HistoryConfig struct {
	// Limit bounds the undo stack; oldest entries are evicted beyond it.
	Limit int `toml:"limit"`
}

// SyncConfig configures the synchronizer's poller.
type SyncConfig struct {
	// IntervalSeconds is the number of seconds between synchronization
	// passes.
	IntervalSeconds int `toml:"interval_seconds"`

	// MaxRetries bounds the backoff retries per failed pass.
	MaxRetries uint64 `toml:"max_retries"`
}

// Interval returns the polling interval as a duration.
func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		History: HistoryConfig{Limit: 50},
		Sync:    SyncConfig{IntervalSeconds: 30, MaxRetries: 5},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the configuration at path, applying defaults for missing
// fields. A missing file returns the defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.History.Limit < 0 {
		return fmt.Errorf("history.limit must not be negative, got %d", c.History.Limit)
	}
	if c.Sync.IntervalSeconds < 0 {
		return fmt.Errorf("sync.interval_seconds must not be negative, got %d", c.Sync.IntervalSeconds)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}
