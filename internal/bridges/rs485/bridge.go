package rs485

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// minTopicParts is the minimum number of parts in a valid MQTT topic.
	minTopicParts = 3

	// commandTimeout bounds the toggle sequence for a single command.
	commandTimeout = 5 * time.Second
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool

	// Disconnect closes the connection gracefully.
	Disconnect(quiesce uint)
}

// StateRecorder persists device state transitions.
// This interface is satisfied by *history.Repository. It is
// optional; if nil the bridge operates without history.
type StateRecorder interface {
	// RecordState appends one state transition for a device.
	RecordState(ctx context.Context, deviceID, deviceType string, state map[string]any) error
}

// TelemetryWriter forwards bridge counters and state changes to a time
// series store. Optional; if nil the bridge operates without telemetry.
type TelemetryWriter interface {
	// WriteBankStats records one bank's connection counters.
	WriteBankStats(bankID string, stats ConnStats)

	// WriteStateChange records one device state change.
	WriteStateChange(deviceID, deviceType string, state map[string]any)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// BridgeID identifies this bridge in health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Banks are the configured relay banks.
	Banks []*Bank

	// HealthInterval is how often health is published. Default 30s.
	HealthInterval time.Duration

	// Logger is optional structured logger.
	Logger Logger

	// History is optional state history persistence.
	History StateRecorder

	// Telemetry is optional time series output.
	Telemetry TelemetryWriter
}

// Bridge orchestrates bidirectional translation between the RS-485 relay
// banks and MQTT. It handles:
//   - Receiving commands from Core via MQTT and driving switch toggles
//     and cover movement
//   - Publishing retained state updates when device state changes
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	bridgeID  string
	mqtt      MQTTClient
	banks     []*Bank
	health    *HealthReporter
	history   StateRecorder
	telemetry TelemetryWriter

	switches map[string]*Switch
	covers   map[string]*Cover
	deviceMu sync.RWMutex

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if len(opts.Banks) == 0 {
		return nil, fmt.Errorf("at least one bank is required")
	}

	// Bridge-level context so in-flight commands abort on shutdown.
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		bridgeID:  opts.BridgeID,
		mqtt:      opts.MQTTClient,
		banks:     opts.Banks,
		history:   opts.History,
		telemetry: opts.Telemetry,
		switches:  make(map[string]*Switch),
		covers:    make(map[string]*Cover),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.BridgeID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Banks:     opts.Banks,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Health returns the bridge's health reporter, for LWT wiring before the
// MQTT connection is established.
func (b *Bridge) Health() *HealthReporter {
	return b.health
}

// AddSwitch registers a switch on one of the bridge's banks. State
// changes are published to MQTT and recorded in history/telemetry.
func (b *Bridge) AddSwitch(bank *Bank, index int, name string) (*Switch, error) {
	var sw *Switch
	sw, err := bank.NewSwitch(index, name, func(on bool) {
		b.publishSwitchState(sw)
	})
	if err != nil {
		return nil, err
	}

	b.deviceMu.Lock()
	b.switches[sw.ID()] = sw
	b.deviceMu.Unlock()

	return sw, nil
}

// AddCover registers a cover. State changes are published to MQTT and
// recorded in history/telemetry.
func (b *Bridge) AddCover(id, name string) (*Cover, error) {
	var cover *Cover
	cover, err := NewCover(id, name, func(state string, position int) {
		b.publishCoverState(cover)
	})
	if err != nil {
		return nil, err
	}

	b.deviceMu.Lock()
	b.covers[id] = cover
	b.deviceMu.Unlock()

	return cover, nil
}

// Start begins bridge operation. This attaches every switch to its bank
// (starting the gateway connections and watchdogs), subscribes to MQTT
// command topics, and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	b.deviceMu.RLock()
	switches := make([]*Switch, 0, len(b.switches))
	for _, sw := range b.switches {
		switches = append(switches, sw)
	}
	deviceCount := len(b.switches) + len(b.covers)
	b.deviceMu.RUnlock()

	for _, sw := range switches {
		if err := sw.Attach(ctx); err != nil {
			return fmt.Errorf("attach switch %s: %w", sw.ID(), err)
		}
	}

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	b.health.SetDeviceCount(deviceCount)
	b.health.Start(ctx)

	b.logInfo("bridge started",
		"bridge_id", b.bridgeID,
		"banks", len(b.banks),
		"devices", deviceCount)

	return nil
}

// Stop gracefully shuts down the bridge: detaches every switch (closing
// the gateway connections), stops health reporting, and waits for
// in-flight command handlers.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()

		b.deviceMu.RLock()
		switches := make([]*Switch, 0, len(b.switches))
		for _, sw := range b.switches {
			switches = append(switches, sw)
		}
		b.deviceMu.RUnlock()

		for _, sw := range switches {
			sw.Detach()
		}

		b.health.Stop()
		b.wg.Wait()

		b.logInfo("bridge stopped")
	})
}

// FlushTelemetry writes current per-bank counters to the telemetry
// store. Called periodically by the host process.
func (b *Bridge) FlushTelemetry() {
	if b.telemetry == nil {
		return
	}
	for _, bank := range b.banks {
		b.telemetry.WriteBankStats(bank.Config().ID, bank.Conn().Stats())
	}
}

// handleMQTTMessage routes incoming MQTT messages to command handling.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	if parts[1] != "command" {
		b.logError("unknown message type", fmt.Errorf("type: %s", parts[1]))
		return
	}

	// Handle asynchronously: commands block on the settle delay, and the
	// paho callback must not be held up.
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handleCommand(payload)
	}()
}

// handleCommand processes a command message from Core.
func (b *Bridge) handleCommand(payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	b.deviceMu.RLock()
	sw, isSwitch := b.switches[cmd.DeviceID]
	cover, isCover := b.covers[cmd.DeviceID]
	b.deviceMu.RUnlock()

	switch {
	case isSwitch:
		b.executeSwitchCommand(cmd, sw)
	case isCover:
		b.executeCoverCommand(cmd, cover)
	default:
		b.publishAckError(cmd, ErrCodeNotConfigured,
			fmt.Sprintf("device %s not configured", cmd.DeviceID))
	}
}

// executeSwitchCommand drives one switch toggle sequence.
func (b *Bridge) executeSwitchCommand(cmd CommandMessage, sw *Switch) {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	var err error
	switch cmd.Command {
	case "on":
		err = sw.TurnOn(ctx)
	case "off":
		err = sw.TurnOff(ctx)
	case "toggle":
		if sw.IsOn() {
			err = sw.TurnOff(ctx)
		} else {
			err = sw.TurnOn(ctx)
		}
	default:
		b.publishAckError(cmd, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown switch command: %s", cmd.Command))
		return
	}

	if err != nil {
		b.logError("switch command failed", err)
		b.publishAckError(cmd, ErrCodeDeviceUnreachable,
			fmt.Sprintf("toggle failed: %v", err))
		return
	}

	b.publishAck(cmd, AckAccepted)
}

// executeCoverCommand drives one cover movement.
func (b *Bridge) executeCoverCommand(cmd CommandMessage, cover *Cover) {
	switch cmd.Command {
	case "open":
		cover.Open()
	case "close":
		cover.Close()
	case "stop":
		cover.Stop()
	case "set_position":
		posAny, ok := cmd.Parameters["position"]
		if !ok {
			b.publishAckError(cmd, ErrCodeInvalidParameters,
				"missing 'position' parameter")
			return
		}
		position, ok := posAny.(float64)
		if !ok {
			b.publishAckError(cmd, ErrCodeInvalidParameters,
				"'position' must be a number")
			return
		}
		if position < CoverPositionClosed || position > CoverPositionOpen {
			b.publishAckError(cmd, ErrCodeInvalidParameters,
				fmt.Sprintf("'position' must be 0-100, got %.2f", position))
			return
		}
		cover.SetPosition(int(position))
	default:
		b.publishAckError(cmd, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown cover command: %s", cmd.Command))
		return
	}

	b.publishAck(cmd, AckAccepted)
}

// publishSwitchState publishes a retained state message for a switch and
// feeds the history/telemetry sinks.
func (b *Bridge) publishSwitchState(sw *Switch) {
	state := map[string]any{"on": sw.IsOn()}
	b.publishState(sw.ID(), "switch", state)
}

// publishCoverState publishes a retained state message for a cover and
// feeds the history/telemetry sinks.
func (b *Bridge) publishCoverState(cover *Cover) {
	state := map[string]any{
		"state":    cover.State(),
		"position": cover.Position(),
	}
	b.publishState(cover.ID(), "cover", state)
}

func (b *Bridge) publishState(deviceID, deviceType string, state map[string]any) {
	msg := NewStateMessage(deviceID, state)

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	if err := b.mqtt.Publish(StateTopic(deviceID), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	}

	if b.history != nil {
		if err := b.history.RecordState(b.ctx, deviceID, deviceType, state); err != nil {
			b.logDebug("history record skipped",
				"device", deviceID, "reason", err.Error())
		}
	}
	if b.telemetry != nil {
		b.telemetry.WriteStateChange(deviceID, deviceType, state)
	}
}

// publishAck publishes a command acknowledgment.
func (b *Bridge) publishAck(cmd CommandMessage, status AckStatus) {
	ack := NewAckMessage(cmd, status)

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	if err := b.mqtt.Publish(AckTopic(cmd.DeviceID), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// publishAckError publishes a failed command acknowledgment.
func (b *Bridge) publishAckError(cmd CommandMessage, code, message string) {
	ack := NewAckError(cmd, code, message)

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack error", err)
		return
	}

	if err := b.mqtt.Publish(AckTopic(cmd.DeviceID), payload, 1, false); err != nil {
		b.logError("failed to publish ack error", err)
	}

	b.logError("command failed",
		fmt.Errorf("code=%s message=%s", code, message))
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
