package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tchatdev/tchat/internal/bus"
)

// State represents a client runtime state.
type State string

const (
	// Booting is the initial state while stores and config load.
	Booting State = "BOOTING"
	// AuthRequired means no usable token is present; polling is paused.
	AuthRequired State = "AUTH_REQUIRED"
	// Syncing means the first refresh after boot or re-auth is in flight.
	Syncing State = "SYNCING"
	// Ready means the last refresh succeeded.
	Ready State = "READY"
	// Degraded means the last refresh failed; the previous snapshot is
	// served until the next tick succeeds.
	Degraded State = "DEGRADED"
	// Error is a terminal fault requiring a restart.
	Error State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:      {AuthRequired, Syncing, Error},
	AuthRequired: {Syncing, Error},
	Syncing:      {Ready, Degraded, AuthRequired, Error},
	Ready:        {Degraded, AuthRequired, Error},
	Degraded:     {Ready, AuthRequired, Error},
	Error:        {Booting},
}

// Machine tracks and enforces client runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if to == m.current {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind: bus.KindStatusChanged,
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
