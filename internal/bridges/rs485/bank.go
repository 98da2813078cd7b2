package rs485

import (
	"context"
	"fmt"
	"sync"
)

// Bank is one configuration scope: a single slave module behind one
// gateway connection. It owns the shared register state, the pub/sub hub,
// the connection manager, and the lazily started watchdog. Switches are
// created from their bank and share all of these.
//
// Thread Safety: all methods are safe for concurrent use.
type Bank struct {
	cfg      BankConfig
	conn     *Conn
	hub      *Hub
	register *RegisterState

	// Watchdog lifecycle: created on first switch attach, stopped when
	// the last subscriber departs.
	watchdog *Watchdog
	wdMu     sync.Mutex

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBank validates the configuration and builds the bank's connection,
// hub, and register state. No I/O happens until the first switch attaches.
func NewBank(cfg BankConfig) (*Bank, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn := NewConn(ConnConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		ReadChunk:      cfg.ReadChunkBytes,
		ConnectTimeout: cfg.ConnectTimeout,
		MaxRetryDelay:  cfg.MaxRetryDelay,
	})

	return &Bank{
		cfg:      cfg,
		conn:     conn,
		hub:      NewHub(conn),
		register: NewRegisterState(),
	}, nil
}

// Config returns the bank's validated configuration.
func (b *Bank) Config() BankConfig {
	return b.cfg
}

// Conn returns the bank's connection manager.
func (b *Bank) Conn() *Conn {
	return b.conn
}

// Hub returns the bank's pub/sub hub.
func (b *Bank) Hub() *Hub {
	return b.hub
}

// Register returns the bank's shared register state.
func (b *Bank) Register() *RegisterState {
	return b.register
}

// SetLogger sets the logger for the bank and its components.
func (b *Bank) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.conn.SetLogger(logger)
	b.hub.SetLogger(logger)
}

// NewSwitch creates the switch with the given 1-based index in this bank.
func (b *Bank) NewSwitch(index int, name string, onChange func(on bool)) (*Switch, error) {
	if index < 1 || index > b.cfg.SwitchCount {
		return nil, fmt.Errorf("%w: switch index %d outside 1..%d",
			ErrInvalidConfig, index, b.cfg.SwitchCount)
	}

	return &Switch{
		id:       fmt.Sprintf("%s-%d", b.cfg.ID, index),
		name:     name,
		index:    index,
		bank:     b,
		onChange: onChange,
	}, nil
}

// ensureWatchdog starts the bank watchdog if none is running.
// Called on every switch attach; only the first call creates one.
func (b *Bank) ensureWatchdog(ctx context.Context) {
	b.wdMu.Lock()
	defer b.wdMu.Unlock()

	if b.watchdog != nil {
		return
	}

	b.watchdog = NewWatchdog(WatchdogConfig{
		Conn:         b.conn,
		Hub:          b.hub,
		Slave:        b.cfg.SlaveAddress,
		Register:     b.cfg.RegisterAddress,
		Interval:     b.cfg.WatchdogInterval,
		ProbeTimeout: b.cfg.ProbeTimeout,
	})
	b.loggerMu.RLock()
	if b.logger != nil {
		b.watchdog.SetLogger(b.logger)
	}
	b.loggerMu.RUnlock()

	b.watchdog.Start(ctx)
	b.logDebug("watchdog started", "bank", b.cfg.ID)
}

// releaseSubscriber tears the bank down once the last subscriber departs:
// the watchdog is stopped and the gateway connection closed. A later
// attach starts both again.
func (b *Bank) releaseSubscriber() {
	if b.hub.Len() > 0 {
		return
	}

	b.wdMu.Lock()
	if b.watchdog != nil {
		b.watchdog.Stop()
		b.watchdog = nil
	}
	b.wdMu.Unlock()

	if err := b.conn.Close(); err != nil {
		b.logError("closing gateway connection", err)
	}
	b.logDebug("last subscriber departed, connection closed", "bank", b.cfg.ID)
}

// logDebug logs a debug message if logger is set.
func (b *Bank) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bank) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
