package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/zpw/internal/bus"
)

// State represents a daemon runtime state.
type State string

const (
	Booting             State = "BOOTING"
	CredentialsRequired State = "CREDENTIALS_REQUIRED"
	Ready               State = "READY"
	Stopping            State = "STOPPING"
	Error               State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:             {CredentialsRequired, Ready, Error},
	CredentialsRequired: {Ready, Stopping, Error},
	Ready:               {CredentialsRequired, Stopping, Error},
	Error:               {Booting, Stopping},
	Stopping:            {},
}

// Machine tracks and enforces daemon runtime state transitions.
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

// IsReady reports whether undo requests may be dispatched.
func (m *Machine) IsReady() bool {
	return m.Current() == Ready
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:    bus.KindStatusChanged,
			Payload: StatusChange{From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State `json:"from"`
	To   State `json:"to"`
}
