package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the host tool configuration
type Config struct {
	// Device is the serial device path; empty means auto-discover
	Device string `json:"device"`

	Baud          int `json:"baud"`
	ReadTimeoutMs int `json:"read_timeout_ms"`

	// CommandTimeoutMs bounds the wait for an ACK or a reply
	CommandTimeoutMs int `json:"command_timeout_ms"`

	// WatchDir is where new device nodes appear while waiting for a badge
	WatchDir string `json:"watch_dir"`

	// Wait keeps watching for a badge instead of failing when none is attached
	Wait bool `json:"wait"`

	Verbose bool `json:"verbose"`
}

// LoadConfig parses a JSON configuration and fills in defaults
func LoadConfig(jsonData []byte) (*Config, error) {
	var config Config

	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadConfigFile reads and parses the configuration at path
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	config, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return config, nil
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(config *Config) {
	if config.Baud == 0 {
		config.Baud = 115200 // ignored by USB CDC
	}
	if config.ReadTimeoutMs == 0 {
		config.ReadTimeoutMs = 100
	}
	if config.CommandTimeoutMs == 0 {
		config.CommandTimeoutMs = 2000
	}
	if config.WatchDir == "" {
		config.WatchDir = "/dev"
	}
}

// Validate rejects values no port can use
func (c *Config) Validate() error {
	if c.Baud < 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.ReadTimeoutMs < 0 || c.CommandTimeoutMs < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// CommandTimeout returns CommandTimeoutMs as a duration
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMs) * time.Millisecond
}
