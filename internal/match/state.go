package match

import "fmt"

// State is a match's lifecycle state.
type State string

const (
	StateInit      State = "init"
	StateTurn      State = "turn"
	StateFinalized State = "finalized"
	StateForfeited State = "forfeited"
)

// IsTerminal reports whether s ends the match.
func IsTerminal(s State) bool {
	return s == StateFinalized || s == StateForfeited
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateInit:
		return to == StateTurn || to == StateForfeited
	case StateTurn:
		return to == StateTurn || to == StateFinalized || to == StateForfeited
	default:
		return false
	}
}

// machine tracks the state of one match and rejects illegal moves.
type machine struct {
	state State
}

func newMachine() *machine { return &machine{state: StateInit} }

func (m *machine) transition(to State) error {
	if !isAllowedTransition(m.state, to) {
		return fmt.Errorf("disallowed match transition: %s -> %s", m.state, to)
	}
	m.state = to
	return nil
}
