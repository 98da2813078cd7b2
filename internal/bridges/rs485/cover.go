package rs485

import (
	"fmt"
	"sync"
)

// Cover movement states as reported to the host platform.
const (
	CoverStateOpen    = "open"
	CoverStateClosed  = "closed"
	CoverStateOpening = "opening"
	CoverStateClosing = "closing"
	CoverStateStopped = "stopped"
)

// Position bounds. 0 is fully closed, 100 fully open.
const (
	CoverPositionClosed = 0
	CoverPositionOpen   = 100
)

// Cover models a curtain or blind controlled alongside a relay bank. The
// relay boards expose no position feedback, so the position is tracked
// locally from the commands issued and assumed reached when movement
// stops.
type Cover struct {
	id   string
	name string

	mu       sync.Mutex
	position int
	state    string

	onChange func(state string, position int)
}

// NewCover creates a cover assumed closed until commanded otherwise.
func NewCover(id, name string, onChange func(state string, position int)) (*Cover, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: cover id must not be empty", ErrInvalidConfig)
	}
	return &Cover{
		id:       id,
		name:     name,
		position: CoverPositionClosed,
		state:    CoverStateClosed,
		onChange: onChange,
	}, nil
}

// ID returns the cover's unique id.
func (c *Cover) ID() string {
	return c.id
}

// Name returns the human-readable cover name.
func (c *Cover) Name() string {
	return c.name
}

// Position returns the last commanded position.
func (c *Cover) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// State returns the current movement state.
func (c *Cover) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open drives the cover fully open.
func (c *Cover) Open() {
	c.set(CoverStateOpen, CoverPositionOpen)
}

// Close drives the cover fully closed.
func (c *Cover) Close() {
	c.set(CoverStateClosed, CoverPositionClosed)
}

// Stop halts movement at the current tracked position.
func (c *Cover) Stop() {
	c.mu.Lock()
	position := c.position
	c.mu.Unlock()
	c.set(CoverStateStopped, position)
}

// SetPosition moves the cover to a target position, clamped to [0, 100].
func (c *Cover) SetPosition(position int) {
	if position < CoverPositionClosed {
		position = CoverPositionClosed
	}
	if position > CoverPositionOpen {
		position = CoverPositionOpen
	}

	state := CoverStateStopped
	switch position {
	case CoverPositionClosed:
		state = CoverStateClosed
	case CoverPositionOpen:
		state = CoverStateOpen
	}
	c.set(state, position)
}

func (c *Cover) set(state string, position int) {
	c.mu.Lock()
	changed := c.state != state || c.position != position
	c.state = state
	c.position = position
	callback := c.onChange
	c.mu.Unlock()

	if changed && callback != nil {
		callback(state, position)
	}
}
