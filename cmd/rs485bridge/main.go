// RS-485 Bridge - relay bank gateway for Gray Logic
//
// This is the main entry point for the RS-485 bridge. It connects
// TCP-serial gateways carrying RS-485 relay banks to the Gray Logic
// MQTT bus: commands in, retained state and health out.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-rs485/internal/bridges/rs485"
	"github.com/nerrad567/gray-logic-rs485/internal/history"
	"github.com/nerrad567/gray-logic-rs485/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-rs485/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-rs485/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-rs485/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-rs485/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting RS-485 bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the local state history store (optional)
	var historyRepo *history.Repository
	if cfg.Database.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if bootErr := db.Bootstrap(ctx); bootErr != nil {
			return fmt.Errorf("bootstrapping database schema: %w", bootErr)
		}
		historyRepo = history.NewRepository(db.DB)
		log.Info("state history enabled", "path", cfg.Database.Path)
	} else {
		log.Info("state history disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build the relay banks
	banks := make([]*rs485.Bank, 0, len(cfg.Banks))
	bankByID := make(map[string]*rs485.Bank, len(cfg.Banks))
	for _, bankCfg := range cfg.Banks {
		bank, bankErr := rs485.NewBank(bankConfig(bankCfg))
		if bankErr != nil {
			return fmt.Errorf("creating bank %q: %w", bankCfg.ID, bankErr)
		}
		bank.SetLogger(log)
		banks = append(banks, bank)
		bankByID[bankCfg.ID] = bank
		log.Info("bank configured",
			"bank", bankCfg.ID,
			"gateway", fmt.Sprintf("%s:%d", bankCfg.Host, bankCfg.Port),
			"slave", bankCfg.SlaveAddress,
			"switches", len(bankCfg.Switches),
		)
	}

	return runBridge(ctx, cfg, log, banks, bankByID, historyRepo, influxClient)
}

// runBridge wires MQTT, devices, and the bridge, then blocks until the
// context is cancelled.
func runBridge(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	banks []*rs485.Bank,
	bankByID map[string]*rs485.Bank,
	historyRepo *history.Repository,
	influxClient *influxdb.Client,
) error {
	// The LWT payload is bridge metadata, so build it before connecting.
	lwtPayload, err := json.Marshal(rs485.NewLWTMessage(cfg.Bridge.ID))
	if err != nil {
		return fmt.Errorf("building LWT payload: %w", err)
	}

	// Connect to MQTT broker with the health topic LWT
	mqttClient, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{
		Topic:   rs485.HealthTopic(),
		Payload: lwtPayload,
	})
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Assemble the bridge
	opts := rs485.BridgeOptions{
		BridgeID:       cfg.Bridge.ID,
		Version:        version,
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		Banks:          banks,
		HealthInterval: cfg.GetHealthInterval(),
		Logger:         log,
	}
	if historyRepo != nil {
		opts.History = historyRepo
	}
	if influxClient != nil {
		opts.Telemetry = &telemetryAdapter{client: influxClient}
	}

	bridge, err := rs485.NewBridge(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	// Register devices from config
	for _, bankCfg := range cfg.Banks {
		bank := bankByID[bankCfg.ID]
		for _, swCfg := range bankCfg.Switches {
			if _, addErr := bridge.AddSwitch(bank, swCfg.Index, swCfg.Name); addErr != nil {
				return fmt.Errorf("adding switch %d on bank %q: %w", swCfg.Index, bankCfg.ID, addErr)
			}
		}
	}
	for _, coverCfg := range cfg.Covers {
		if _, addErr := bridge.AddCover(coverCfg.ID, coverCfg.Name); addErr != nil {
			return fmt.Errorf("adding cover %q: %w", coverCfg.ID, addErr)
		}
	}

	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()
	log.Info("bridge started", "banks", len(banks))

	// Periodic telemetry flush of bank counters
	if influxClient != nil {
		interval := cfg.GetTelemetryInterval()
		if interval <= 0 {
			interval = 60 * time.Second
		}
		go telemetryLoop(ctx, bridge, interval)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// telemetryLoop pushes bank counters to the telemetry writer until the
// context is cancelled.
func telemetryLoop(ctx context.Context, bridge *rs485.Bridge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bridge.FlushTelemetry()
		}
	}
}

// bankConfig maps the YAML bank section onto the bridge's bank config.
func bankConfig(cfg config.BankConfig) rs485.BankConfig {
	return rs485.BankConfig{
		ID:               cfg.ID,
		Host:             cfg.Host,
		Port:             cfg.Port,
		SlaveAddress:     byte(cfg.SlaveAddress), // #nosec G115 -- validated 1..255
		SwitchCount:      switchCount(cfg),
		RegisterAddress:  uint16(cfg.RegisterAddress), // #nosec G115 -- validated by config
		StateModulus:     cfg.StateModulus,
		ReadChunkBytes:   cfg.ReadChunkBytes,
		ConnectTimeout:   cfg.GetConnectTimeout(),
		MaxRetryDelay:    cfg.GetMaxRetryDelay(),
		SettleDelay:      cfg.GetSettleDelay(),
		WatchdogInterval: cfg.GetWatchdogPoll(),
		ProbeTimeout:     cfg.GetProbeTimeout(),
	}
}

// switchCount returns the highest configured switch index for a bank.
// Unnamed positions above it are not exposed as devices.
func switchCount(cfg config.BankConfig) int {
	count := 0
	for _, sw := range cfg.Switches {
		if sw.Index > count {
			count = sw.Index
		}
	}
	return count
}

// getConfigPath returns the configuration file path.
// Uses RS485BRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RS485BRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// the infrastructure handler returns an error, the bridge handler does not.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements rs485.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements rs485.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements rs485.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Disconnect implements rs485.MQTTClient.
// The MQTT client lifecycle is managed by run's defer chain, so this is
// a no-op.
func (a *mqttBridgeAdapter) Disconnect(_ uint) {}

// telemetryAdapter adapts the InfluxDB client to the bridge's
// TelemetryWriter interface.
type telemetryAdapter struct {
	client *influxdb.Client
}

// WriteBankStats implements rs485.TelemetryWriter.
func (a *telemetryAdapter) WriteBankStats(bankID string, stats rs485.ConnStats) {
	a.client.WriteBankCounters(bankID, stats.Connected,
		stats.FramesRx, stats.BytesTx, stats.ReconnectsTotal, stats.ErrorsTotal)
}

// WriteStateChange implements rs485.TelemetryWriter.
func (a *telemetryAdapter) WriteStateChange(deviceID, deviceType string, state map[string]any) {
	a.client.WriteStateChange(deviceID, deviceType, state)
}
