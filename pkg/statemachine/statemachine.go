// Package statemachine holds a single state value that can only be replaced
// by consuming the previous one.
package statemachine

import "errors"

// ErrNoState is returned when the container is used after its state was
// taken and never put back, which happens if a transition panicked.
var ErrNoState = errors.New("state machine holds no state")

// StateMachine owns exactly one state of type S between transitions.
type StateMachine[S any] struct {
	state S
	held  bool
}

func New[S any](initial S) *StateMachine[S] {
	return &StateMachine[S]{state: initial, held: true}
}

// ReplaceState takes the current state, passes it to transition and stores the
// result. The state is absent while transition runs.
func (m *StateMachine[S]) ReplaceState(transition func(S) S) error {
	if !m.held {
		return ErrNoState
	}
	var zero S
	current := m.state
	m.state, m.held = zero, false

	next := transition(current)
	m.state, m.held = next, true
	return nil
}

// IntoState consumes the container and returns the state it held.
func (m *StateMachine[S]) IntoState() (S, error) {
	var zero S
	if !m.held {
		return zero, ErrNoState
	}
	s := m.state
	m.state, m.held = zero, false
	return s, nil
}
