package game

import (
	"encoding/json"
	"fmt"
)

// Move is a player's action for one turn.
//
// The underlying byte is the wire symbol, so encoding a Move for a strategy
// process is a plain byte write.
type Move byte

const (
	Cooperate Move = 'C'
	Defect    Move = 'D'
)

// Valid reports whether m is one of the two moves.
func (m Move) Valid() bool { return m == Cooperate || m == Defect }

// Flip returns the opposite move.
func (m Move) Flip() Move {
	if m == Cooperate {
		return Defect
	}
	return Cooperate
}

// Signal returns the observable form of m.
func (m Move) Signal() Signal { return Signal(m) }

func (m Move) String() string {
	switch m {
	case Cooperate:
		return "C"
	case Defect:
		return "D"
	default:
		return "?"
	}
}

func (m Move) MarshalJSON() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid move %q", byte(m))
	}
	return json.Marshal(m.String())
}

func (m *Move) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if len(s) != 1 || !Move(s[0]).Valid() {
		return fmt.Errorf("invalid move %q", s)
	}
	*m = Move(s[0])
	return nil
}

// Hint is a round-3 side-channel value. It shares the move alphabet but is
// never used to compute payoffs.
type Hint = Move

// Signal is what a strategy observes about its opponent.
//
// In addition to the two moves it carries NoPrior (first turn) and Unknown
// (withheld by fog of war). Unknown is never interpretable as a move.
type Signal byte

const (
	SignalCooperate Signal = 'C'
	SignalDefect    Signal = 'D'
	SignalNoPrior   Signal = 'N'
	SignalUnknown   Signal = 'U'
)

// Valid reports whether s is one of the four observable symbols.
func (s Signal) Valid() bool {
	switch s {
	case SignalCooperate, SignalDefect, SignalNoPrior, SignalUnknown:
		return true
	default:
		return false
	}
}

// Move returns the move carried by s, if any.
func (s Signal) Move() (Move, bool) {
	switch s {
	case SignalCooperate:
		return Cooperate, true
	case SignalDefect:
		return Defect, true
	default:
		return 0, false
	}
}

func (s Signal) String() string {
	if !s.Valid() {
		return "?"
	}
	return string(rune(s))
}

func (s Signal) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid signal %q", byte(s))
	}
	return json.Marshal(s.String())
}

func (s *Signal) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	if len(str) != 1 || !Signal(str[0]).Valid() {
		return fmt.Errorf("invalid signal %q", str)
	}
	*s = Signal(str[0])
	return nil
}

// Payoff returns the points awarded to (a, b) for one turn.
//
//	(C,C) -> (3,3)   (D,D) -> (1,1)
//	(D,C) -> (5,0)   (C,D) -> (0,5)
//
// Callers must pass actual moves; observed values never score.
func Payoff(a, b Move) (int, int) {
	switch {
	case a == Cooperate && b == Cooperate:
		return 3, 3
	case a == Defect && b == Defect:
		return 1, 1
	case a == Defect && b == Cooperate:
		return 5, 0
	default:
		return 0, 5
	}
}
