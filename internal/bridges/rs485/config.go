package rs485

import (
	"fmt"
	"strings"
	"time"
)

// Default device timings.
const (
	// defaultSettleDelay is how long a toggle waits after issuing its read
	// for the asynchronous response to refresh the shared register.
	defaultSettleDelay = 100 * time.Millisecond

	// defaultWatchdogInterval is the liveness probe poll interval.
	defaultWatchdogInterval = 3 * time.Second
)

// BankConfig describes one bank of switches: a single slave module behind
// one TCP-serial gateway. All fields the protocol consumes are enumerated
// here and validated once at construction rather than read ad hoc.
type BankConfig struct {
	// ID uniquely identifies the bank; it prefixes subscriber ids.
	ID string

	// Host is the TCP-serial gateway address.
	Host string

	// Port is the gateway TCP port.
	Port int

	// SlaveAddress is the module's address on the RS-485 bus.
	SlaveAddress byte

	// SwitchCount is how many switches the module exposes (1..6).
	SwitchCount int

	// RegisterAddress is the shared bitfield register. Default: 0x1008.
	RegisterAddress uint16

	// StateModulus bounds the register's meaningful state space.
	// Default: 256 (8 bits).
	StateModulus int

	// ReadChunkBytes is the socket read size; one read is one frame.
	// Default: 12.
	ReadChunkBytes int

	// ConnectTimeout bounds each gateway connection attempt. Default: 10s.
	ConnectTimeout time.Duration

	// MaxRetryDelay caps the reconnection backoff. Default: 60s.
	MaxRetryDelay time.Duration

	// SettleDelay is the pause between a toggle's read and its write.
	// Default: 100ms.
	SettleDelay time.Duration

	// WatchdogInterval is the liveness probe poll interval. Default: 3s.
	WatchdogInterval time.Duration

	// ProbeTimeout bounds each watchdog register read. Default: the slave
	// address in seconds, matching the gateway's per-slave response
	// scaling.
	ProbeTimeout time.Duration
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c BankConfig) withDefaults() BankConfig {
	if c.RegisterAddress == 0 {
		c.RegisterAddress = DefaultRegisterAddress
	}
	if c.StateModulus == 0 {
		c.StateModulus = DefaultStateModulus
	}
	if c.ReadChunkBytes == 0 {
		c.ReadChunkBytes = defaultReadChunk
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.MaxRetryDelay == 0 {
		c.MaxRetryDelay = defaultMaxRetryDelay
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = defaultSettleDelay
	}
	if c.WatchdogInterval == 0 {
		c.WatchdogInterval = defaultWatchdogInterval
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = time.Duration(c.SlaveAddress) * time.Second
	}
	return c
}

// Validate checks the configuration for errors.
func (c BankConfig) Validate() error {
	var errs []string

	if c.ID == "" {
		errs = append(errs, "id is required")
	}
	if c.Host == "" {
		errs = append(errs, "host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	if c.SlaveAddress == 0 {
		errs = append(errs, "slave_address is required")
	}
	if c.SwitchCount < 1 || c.SwitchCount > MaxSwitchesPerSlave {
		errs = append(errs, fmt.Sprintf("switch_count must be between 1 and %d", MaxSwitchesPerSlave))
	}
	if c.StateModulus < 0 {
		errs = append(errs, "state_modulus must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
