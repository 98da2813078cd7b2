package rs485

import (
	"math/bits"
	"sync"
)

// Default register parameters for the LP-F8 relay module family.
const (
	// DefaultRegisterAddress is the holding register carrying the shared
	// switch bitfield.
	DefaultRegisterAddress uint16 = 0x1008

	// DefaultStateModulus bounds the meaningful state space of the shared
	// register: 256 keeps 8 bits, one per possible switch position.
	DefaultStateModulus = 256

	// MaxSwitchesPerSlave is the largest switch index a module exposes.
	MaxSwitchesPerSlave = 6
)

// RegisterState is the shared on/off bitfield of all switches on one
// slave. One instance exists per bank and is handed to every switch in
// that bank; all mutation funnels through its two accessors.
//
// Two writers compete for the value:
//
//   - Observe stores a value parsed from an inbound frame. The device is
//     ground truth, so an observed value always overwrites whatever was
//     computed locally.
//   - Toggle XORs a switch index into the current value before a write is
//     issued, so the caller can transmit the intended new state.
//
// Resolution is last-writer-wins; the hardware echoes every write back as
// a read, which re-synchronises local state shortly after each toggle.
type RegisterState struct {
	mu    sync.Mutex
	value uint16
}

// NewRegisterState creates an empty register state (all switches off).
func NewRegisterState() *RegisterState {
	return &RegisterState{}
}

// Value returns the current register value.
func (s *RegisterState) Value() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Observe overwrites the state with a value received over the wire.
func (s *RegisterState) Observe(v uint16) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
}

// Toggle flips the bits of the raw switch index into the register value
// and returns the new value to transmit.
//
// The LP-F8 encoding XORs the 1-based index itself, not a single bit
// mask: toggling switch 3 on register 0 yields 3, which flips switches 1
// and 2 in the bit-reversed read encoding. This asymmetry is a quirk of
// the device family and is reproduced deliberately.
func (s *RegisterState) Toggle(index int) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value ^= uint16(index) //nolint:gosec // index validated to 1..6 by Config
	return s.value
}

// SwitchOn reports whether switch index (1-based) reads as on in register
// value v under the given state modulus.
//
// The device transmits the bitfield bit-reversed relative to switch
// numbering: v is reduced modulo the modulus, rendered as a fixed-width
// bitfield, and reversed, after which switch index i occupies position
// i-1. That reduces to testing bit i-1 of v mod modulus.
func SwitchOn(v uint16, index, modulus int) bool {
	if modulus <= 1 || index < 1 {
		return false
	}
	width := bits.Len(uint(modulus - 1))
	if index > width {
		return false
	}
	masked := int(v) % modulus
	return masked>>(index-1)&1 == 1
}
