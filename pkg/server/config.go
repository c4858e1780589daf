package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the runtime server configuration. Heartbeat settings are
// fixed at construction and must not change after Start.
type Config struct {
	Port         int
	DatabasePath string

	// ConnectionLostTimeoutSeconds is the transport-level idle duration
	// after which an unresponsive connection is considered dead. 0 disables
	// transport liveness checks.
	ConnectionLostTimeoutSeconds int
	HeartbeatEnabled             bool
	HeartbeatIntervalValue       int
	HeartbeatIntervalUnit        time.Duration
	HeartbeatToleranceFactor     float64

	// MaxParallelMessages bounds concurrent inbound message processing
	// across all connections. 1 forces sequential processing.
	MaxParallelMessages int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:                         8855,
		DatabasePath:                 "~/.biblink/biblink.db",
		ConnectionLostTimeoutSeconds: 6, // should be an even number, 0 disables
		HeartbeatEnabled:             true,
		HeartbeatIntervalValue:       6,
		HeartbeatIntervalUnit:        time.Second,
		HeartbeatToleranceFactor:     0.5,
		MaxParallelMessages:          500,
	}
}

// HeartbeatInterval returns the heartbeat period as a duration.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalValue) * c.HeartbeatIntervalUnit
}

// ConnectionLostTimeout returns the transport liveness timeout as a
// duration.
func (c Config) ConnectionLostTimeout() time.Duration {
	return time.Duration(c.ConnectionLostTimeoutSeconds) * time.Second
}

// TOMLConfig represents the structure of the server config file.
type TOMLConfig struct {
	Server    ServerSection    `toml:"server"`
	Heartbeat HeartbeatSection `toml:"heartbeat"`
	Limits    LimitsSection    `toml:"limits"`
}

type ServerSection struct {
	Port         int    `toml:"port"`
	DatabasePath string `toml:"database_path"`
}

type HeartbeatSection struct {
	Enabled                      bool    `toml:"enabled"`
	ConnectionLostTimeoutSeconds int     `toml:"connection_lost_timeout_seconds"`
	IntervalSeconds              int     `toml:"interval_seconds"`
	ToleranceFactor              float64 `toml:"tolerance_factor"`
}

type LimitsSection struct {
	MaxParallelMessages int `toml:"max_parallel_messages"`
}

// DefaultTOMLConfig returns the default config file contents.
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Server: ServerSection{
			Port:         8855,
			DatabasePath: "~/.biblink/biblink.db",
		},
		Heartbeat: HeartbeatSection{
			Enabled:                      true,
			ConnectionLostTimeoutSeconds: 6,
			IntervalSeconds:              6,
			ToleranceFactor:              0.5,
		},
		Limits: LimitsSection{
			MaxParallelMessages: 500,
		},
	}
}

// LoadConfig loads configuration from a TOML file, creating a default file
// if none exists. Keys absent from the file keep their default values.
func LoadConfig(path string) (TOMLConfig, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return TOMLConfig{}, err
	}

	if _, err := os.Stat(expanded); os.IsNotExist(err) {
		config := DefaultTOMLConfig()
		if err := writeDefaultConfig(expanded, config); err != nil {
			// Can't write (permissions, read-only fs); defaults still work.
			return config, nil
		}
		return config, nil
	}

	config := DefaultTOMLConfig()
	if _, err := toml.DecodeFile(expanded, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// writeDefaultConfig writes the default config to a file.
func writeDefaultConfig(path string, config TOMLConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# BibLink Server Configuration
# This file was auto-generated with default values
# Edit as needed and restart the server for changes to take effect

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ToConfig converts the file representation to the runtime configuration.
func (c *TOMLConfig) ToConfig() Config {
	cfg := DefaultConfig()

	if c.Server.Port != 0 {
		cfg.Port = c.Server.Port
	}
	if strings.TrimSpace(c.Server.DatabasePath) != "" {
		cfg.DatabasePath = c.Server.DatabasePath
	}

	cfg.HeartbeatEnabled = c.Heartbeat.Enabled
	cfg.ConnectionLostTimeoutSeconds = c.Heartbeat.ConnectionLostTimeoutSeconds

	cfg.HeartbeatIntervalUnit = time.Second
	if c.Heartbeat.IntervalSeconds != 0 {
		cfg.HeartbeatIntervalValue = c.Heartbeat.IntervalSeconds
	} else {
		// Derived from the connection-lost timeout when unset.
		cfg.HeartbeatIntervalValue = c.Heartbeat.ConnectionLostTimeoutSeconds
	}

	if c.Heartbeat.ToleranceFactor != 0 {
		cfg.HeartbeatToleranceFactor = c.Heartbeat.ToleranceFactor
	}

	if c.Limits.MaxParallelMessages != 0 {
		cfg.MaxParallelMessages = c.Limits.MaxParallelMessages
	}

	return cfg
}

// GetDatabasePath returns the database path with ~ expanded.
func (c Config) GetDatabasePath() (string, error) {
	return expandHome(c.DatabasePath)
}

func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}
	return path, nil
}
