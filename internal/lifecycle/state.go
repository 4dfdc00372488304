// Package lifecycle provides the component state machine and the typed
// event bus that every stateful ConnRi component is built on.
package lifecycle

import (
	"fmt"
	"sync"
)

// State is the lifecycle state of a component instance.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Degraded
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	case ShuttingDown:
		return "shutting_down"
	case Stopped:
		return "stopped"
	default:
		return "invalid"
	}
}

// Usable reports whether operations may be issued in this state.
func (s State) Usable() bool {
	return s == Ready || s == Degraded
}

// transitions is the set of allowed state changes. Movement is monotonic
// except for the Ready↔Degraded oscillation driven by pool errors.
var transitions = map[State][]State{
	Uninitialized: {Initializing},
	Initializing:  {Ready, ShuttingDown, Stopped},
	Ready:         {Degraded, ShuttingDown},
	Degraded:      {Ready, ShuttingDown},
	ShuttingDown:  {Stopped},
	Stopped:       nil,
}

// Machine holds the single authoritative State of one component instance.
// It is safe for concurrent use.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine returns a Machine in the Uninitialized state.
func NewMachine() *Machine {
	return &Machine{state: Uninitialized}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves the machine to the given state, or returns an error if
// the change is not allowed from the current state.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, next := range transitions[m.state] {
		if next == to {
			m.state = to
			return nil
		}
	}
	return fmt.Errorf("invalid state transition %s -> %s", m.state, to)
}

// TransitionIf moves from -> to only when the machine is currently in from.
// It reports whether the transition happened. Used for the Ready↔Degraded
// oscillation, where losing the race is not an error.
func (m *Machine) TransitionIf(from, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != from {
		return false
	}
	for _, next := range transitions[from] {
		if next == to {
			m.state = to
			return true
		}
	}
	return false
}
