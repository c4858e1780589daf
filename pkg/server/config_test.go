package server

import (
	"os"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Port != 8855 {
		t.Errorf("Expected default port 8855, got %d", config.Port)
	}
	if !config.HeartbeatEnabled {
		t.Error("Expected heartbeat enabled by default")
	}
	if config.ConnectionLostTimeout() != 6*time.Second {
		t.Errorf("Expected 6s connection lost timeout, got %v", config.ConnectionLostTimeout())
	}
	if config.HeartbeatInterval() != 6*time.Second {
		t.Errorf("Expected 6s heartbeat interval, got %v", config.HeartbeatInterval())
	}
	if config.HeartbeatToleranceFactor != 0.5 {
		t.Errorf("Expected tolerance factor 0.5, got %v", config.HeartbeatToleranceFactor)
	}
	if config.MaxParallelMessages != 500 {
		t.Errorf("Expected 500 parallel messages, got %d", config.MaxParallelMessages)
	}
}

func TestHeartbeatIntervalUnits(t *testing.T) {
	config := DefaultConfig()
	config.HeartbeatIntervalValue = 250
	config.HeartbeatIntervalUnit = time.Millisecond

	if config.HeartbeatInterval() != 250*time.Millisecond {
		t.Errorf("Expected 250ms interval, got %v", config.HeartbeatInterval())
	}
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	tmpDir := t.TempDir()
	path := tmpDir + "/config.toml"

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected config file to be created: %v", err)
	}
	if config.Server.Port != 8855 {
		t.Errorf("Expected default port in created config, got %d", config.Server.Port)
	}
	if !config.Heartbeat.Enabled {
		t.Error("Expected heartbeat enabled in created config")
	}
}

func TestLoadConfigParsesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := tmpDir + "/config.toml"

	content := `
[server]
port = 9999

[heartbeat]
enabled = false
connection_lost_timeout_seconds = 8
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	tomlConfig, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	config := tomlConfig.ToConfig()

	if config.Port != 9999 {
		t.Errorf("Expected port 9999, got %d", config.Port)
	}
	if config.HeartbeatEnabled {
		t.Error("Expected heartbeat disabled")
	}
	if config.ConnectionLostTimeoutSeconds != 8 {
		t.Errorf("Expected timeout 8s, got %d", config.ConnectionLostTimeoutSeconds)
	}
	// Keys absent from the file keep their defaults.
	if config.MaxParallelMessages != 500 {
		t.Errorf("Expected default parallel messages, got %d", config.MaxParallelMessages)
	}
	if config.HeartbeatToleranceFactor != 0.5 {
		t.Errorf("Expected default tolerance factor, got %v", config.HeartbeatToleranceFactor)
	}
}

func TestLoadConfigRejectsInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := tmpDir + "/config.toml"

	if err := os.WriteFile(path, []byte("this is not toml = = ="), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error for invalid config file")
	}
}

func TestToConfigDerivesIntervalFromTimeout(t *testing.T) {
	tomlConfig := TOMLConfig{
		Heartbeat: HeartbeatSection{
			Enabled:                      true,
			ConnectionLostTimeoutSeconds: 8,
		},
	}
	config := tomlConfig.ToConfig()

	if config.HeartbeatInterval() != 8*time.Second {
		t.Errorf("Expected interval derived from timeout (8s), got %v", config.HeartbeatInterval())
	}
}
