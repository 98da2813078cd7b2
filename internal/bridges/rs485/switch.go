package rs485

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Switch owns one relay position's boolean state, derived from the bank's
// shared register bitfield, and performs read-before-write toggles.
//
// Lifecycle is tied to the owning entity: Attach subscribes the switch to
// its bank's frame stream (starting the connection and watchdog if it is
// the first), Detach unsubscribes it (tearing both down if it is the
// last).
type Switch struct {
	id    string
	name  string
	index int
	bank  *Bank

	mu       sync.Mutex
	isOn     bool
	attached bool

	// onChange is notified with the new boolean state after every
	// recompute that changes it. May be nil.
	onChange func(on bool)
}

// ID returns the switch's unique subscriber id.
func (s *Switch) ID() string {
	return s.id
}

// Name returns the human-readable switch name.
func (s *Switch) Name() string {
	return s.name
}

// Index returns the 1-based switch position within its bank.
func (s *Switch) Index() int {
	return s.index
}

// IsOn returns the switch's current derived boolean state.
func (s *Switch) IsOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOn
}

// Attach starts the bank's connection (idempotent), subscribes the switch
// to the frame stream under its unique id, and lazily starts the bank
// watchdog.
func (s *Switch) Attach(ctx context.Context) error {
	s.bank.conn.Start()

	if err := s.bank.hub.Subscribe(s.id, s.handleFrame); err != nil {
		return err
	}

	s.mu.Lock()
	s.attached = true
	s.mu.Unlock()

	s.bank.ensureWatchdog(ctx)
	return nil
}

// Detach unsubscribes the switch. When it was the last subscriber the
// bank closes its gateway connection and stops the watchdog.
func (s *Switch) Detach() {
	s.bank.hub.Unsubscribe(s.id)

	s.mu.Lock()
	s.attached = false
	s.mu.Unlock()

	s.bank.releaseSubscriber()
}

// handleFrame processes one inbound gateway frame.
//
// Malformed frames are dropped and logged; frames for other slaves are
// ignored. A frame carrying a register value for this switch's slave
// overwrites the shared register state and recomputes the boolean.
func (s *Switch) handleFrame(_ string, frame []byte) {
	resp, err := Decode(frame)
	if err != nil {
		if errors.Is(err, ErrFrameTooShort) || errors.Is(err, ErrUnsupportedFunction) {
			s.bank.logDebug("dropping frame", "switch", s.id, "reason", err.Error())
			return
		}
		s.bank.logError("decoding frame", err)
		return
	}

	if resp.Slave != s.bank.cfg.SlaveAddress {
		return
	}

	value, ok := resp.RegisterValue()
	if !ok {
		return
	}

	s.bank.register.Observe(value)
	s.Refresh()
}

// Refresh recomputes the boolean purely from the shared register value.
// It has no side effect beyond notifying the change callback.
func (s *Switch) Refresh() {
	on := SwitchOn(s.bank.register.Value(), s.index, s.bank.cfg.StateModulus)
	s.setOn(on)
}

// TurnOn toggles the switch on.
func (s *Switch) TurnOn(ctx context.Context) error {
	return s.toggle(ctx, true)
}

// TurnOff toggles the switch off.
func (s *Switch) TurnOff(ctx context.Context) error {
	return s.toggle(ctx, false)
}

// toggle performs the read-before-write sequence: read the current
// register, wait the settle delay so the asynchronous response can
// refresh shared state, then XOR the switch index in and write.
//
// The sequence narrows but does not close the race between two switches
// on the same slave toggling concurrently; the register value echoed
// back by the hardware after the write re-synchronises everyone.
func (s *Switch) toggle(ctx context.Context, on bool) error {
	cfg := s.bank.cfg

	if err := s.bank.hub.ReadRegister(ctx, cfg.SlaveAddress, cfg.RegisterAddress, 1); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(cfg.SettleDelay):
	}

	value := s.bank.register.Toggle(s.index)
	if err := s.bank.hub.WriteRegister(ctx, cfg.SlaveAddress, cfg.RegisterAddress, value); err != nil {
		return err
	}

	s.bank.logDebug("toggled switch",
		"switch", s.id, "on", on, "register_value", value)
	s.setOn(on)
	return nil
}

// setOn stores the boolean and notifies the change callback when it
// actually changed.
func (s *Switch) setOn(on bool) {
	s.mu.Lock()
	changed := s.isOn != on
	s.isOn = on
	callback := s.onChange
	s.mu.Unlock()

	if changed && callback != nil {
		callback(on)
	}
}
