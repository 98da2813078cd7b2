package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the RS-485 bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Banks    []BankConfig   `yaml:"banks"`
	Covers   []CoverConfig  `yaml:"covers"`
}

// BridgeConfig contains bridge-level identity and reporting settings.
type BridgeConfig struct {
	ID                string `yaml:"id"`
	HealthInterval    int    `yaml:"health_interval"`    // seconds
	TelemetryInterval int    `yaml:"telemetry_interval"` // seconds
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// DatabaseConfig contains SQLite state history settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// BankConfig describes one slave module behind one TCP-serial gateway.
type BankConfig struct {
	ID              string         `yaml:"id"`
	Host            string         `yaml:"host"`
	Port            int            `yaml:"port"`
	SlaveAddress    int            `yaml:"slave_address"`
	RegisterAddress int            `yaml:"register_address"`
	StateModulus    int            `yaml:"state_modulus"`
	ReadChunkBytes  int            `yaml:"read_chunk_bytes"`
	ConnectTimeout  int            `yaml:"connect_timeout"`   // seconds
	MaxRetryDelay   int            `yaml:"max_retry_delay"`   // seconds
	SettleDelay     int            `yaml:"settle_delay"`      // milliseconds
	WatchdogPoll    int            `yaml:"watchdog_poll"`     // seconds
	ProbeTimeout    int            `yaml:"probe_timeout"`     // seconds
	Switches        []SwitchConfig `yaml:"switches"`
}

// SwitchConfig names one switch position within a bank.
type SwitchConfig struct {
	Index int    `yaml:"index"`
	Name  string `yaml:"name"`
}

// CoverConfig describes one locally tracked cover.
type CoverConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RS485BRIDGE_SECTION_KEY
// For example: RS485BRIDGE_MQTT_HOST, RS485BRIDGE_DATABASE_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:                "rs485",
			HealthInterval:    30,
			TelemetryInterval: 60,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "rs485-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/rs485bridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RS485BRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RS485BRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RS485BRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("RS485BRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RS485BRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("RS485BRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("RS485BRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("RS485BRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database.enabled")
	}
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb.enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb.enabled")
		}
	}
	if len(c.Banks) == 0 {
		errs = append(errs, "at least one bank is required")
	}

	seen := make(map[string]bool)
	for i, bank := range c.Banks {
		prefix := fmt.Sprintf("banks[%d]", i)
		if bank.ID == "" {
			errs = append(errs, prefix+".id is required")
		} else if seen[bank.ID] {
			errs = append(errs, prefix+".id duplicates "+bank.ID)
		} else {
			seen[bank.ID] = true
		}
		if bank.Host == "" {
			errs = append(errs, prefix+".host is required")
		}
		if bank.SlaveAddress < 1 || bank.SlaveAddress > 255 {
			errs = append(errs, prefix+".slave_address must be between 1 and 255")
		}
		if len(bank.Switches) == 0 {
			errs = append(errs, prefix+" needs at least one switch")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetHealthInterval returns the health publish interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetTelemetryInterval returns the telemetry flush interval as a Duration.
func (c *Config) GetTelemetryInterval() time.Duration {
	return time.Duration(c.Bridge.TelemetryInterval) * time.Second
}

// GetConnectTimeout returns the bank's connect timeout as a Duration.
func (b BankConfig) GetConnectTimeout() time.Duration {
	return time.Duration(b.ConnectTimeout) * time.Second
}

// GetMaxRetryDelay returns the bank's backoff cap as a Duration.
func (b BankConfig) GetMaxRetryDelay() time.Duration {
	return time.Duration(b.MaxRetryDelay) * time.Second
}

// GetSettleDelay returns the bank's toggle settle delay as a Duration.
func (b BankConfig) GetSettleDelay() time.Duration {
	return time.Duration(b.SettleDelay) * time.Millisecond
}

// GetWatchdogPoll returns the bank's watchdog poll interval as a Duration.
func (b BankConfig) GetWatchdogPoll() time.Duration {
	return time.Duration(b.WatchdogPoll) * time.Second
}

// GetProbeTimeout returns the bank's watchdog probe timeout as a Duration.
func (b BankConfig) GetProbeTimeout() time.Duration {
	return time.Duration(b.ProbeTimeout) * time.Second
}
