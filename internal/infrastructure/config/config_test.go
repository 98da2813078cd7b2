package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
bridge:
  id: rs485
mqtt:
  broker:
    host: broker.local
    port: 1883
    client_id: rs485-bridge
banks:
  - id: hall
    host: 192.168.1.50
    port: 8899
    slave_address: 1
    settle_delay: 100
    switches:
      - index: 1
        name: hall lamp
      - index: 2
        name: porch lamp
covers:
  - id: study-curtain
    name: study curtain
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Bridge.ID != "rs485" {
		t.Errorf("Bridge.ID = %q", cfg.Bridge.ID)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT host = %q", cfg.MQTT.Broker.Host)
	}
	if len(cfg.Banks) != 1 || len(cfg.Banks[0].Switches) != 2 {
		t.Fatalf("banks = %+v", cfg.Banks)
	}
	if cfg.Banks[0].GetSettleDelay() != 100*time.Millisecond {
		t.Errorf("settle delay = %v", cfg.Banks[0].GetSettleDelay())
	}
	if len(cfg.Covers) != 1 || cfg.Covers[0].ID != "study-curtain" {
		t.Errorf("covers = %+v", cfg.Covers)
	}

	// Defaults survive partial files.
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.GetHealthInterval() != 30*time.Second {
		t.Errorf("health interval = %v, want 30s", cfg.GetHealthInterval())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Load succeeded for missing file")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no banks",
			yaml:    "bridge:\n  id: rs485\n",
			wantErr: "at least one bank is required",
		},
		{
			name: "bank missing host",
			yaml: `
banks:
  - id: hall
    slave_address: 1
    switches:
      - index: 1
        name: lamp
`,
			wantErr: "host is required",
		},
		{
			name: "duplicate bank ids",
			yaml: `
banks:
  - id: hall
    host: a
    slave_address: 1
    switches: [{index: 1, name: x}]
  - id: hall
    host: b
    slave_address: 2
    switches: [{index: 1, name: y}]
`,
			wantErr: "duplicates",
		},
		{
			name: "bank without switches",
			yaml: `
banks:
  - id: hall
    host: a
    slave_address: 1
`,
			wantErr: "at least one switch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RS485BRIDGE_MQTT_HOST", "env-broker")
	t.Setenv("RS485BRIDGE_MQTT_PORT", "8883")
	t.Setenv("RS485BRIDGE_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("MQTT host = %q, want env-broker", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}
