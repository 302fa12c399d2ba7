// Package statemachine provides a small table-driven transition engine
// shared by every state machine in siverify: transaction commit status,
// pruner constraint lifecycle, and SAT solver lifecycle (spec.md §4.10).
package statemachine

import (
	"fmt"
	"sync"
)

// Transition describes the destination state of a (fromState, event) pair.
type Transition struct {
	From  string
	Event string
	To    string
}

// Machine is a generic finite state machine keyed by an arbitrary subject
// id. It is intentionally tiny: siverify's machines have at most a handful
// of states and never need guards or entry/exit actions.
type Machine struct {
	mu      sync.RWMutex
	initial string
	table   map[string]map[string]string
	states  map[string]string
}

// New builds a machine from its transition table and initial state.
func New(initial string, transitions []Transition) *Machine {
	m := &Machine{
		initial: initial,
		table:   make(map[string]map[string]string),
		states:  make(map[string]string),
	}
	for _, t := range transitions {
		if m.table[t.From] == nil {
			m.table[t.From] = make(map[string]string)
		}
		m.table[t.From][t.Event] = t.To
	}
	return m
}

// Current returns the current state of subject, defaulting to the initial
// state if the subject has never transitioned.
func (m *Machine) Current(subject string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.states[subject]; ok {
		return s
	}
	return m.initial
}

// Apply fires event against subject's current state. It returns an error if
// no transition exists for (currentState, event); this is how Apply rejects
// illegal transitions, e.g. a COMMIT transaction asked to go ONGOING again.
func (m *Machine) Apply(subject, event string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[subject]
	if !ok {
		state = m.initial
	}

	next, ok := m.table[state][event]
	if !ok {
		return state, fmt.Errorf("statemachine: no transition from %q on event %q", state, event)
	}
	m.states[subject] = next
	return next, nil
}

// Reset discards any recorded state for subject, returning it to initial.
func (m *Machine) Reset(subject string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, subject)
}
