package game

import (
	"fmt"
	"strings"
)

// PenaltyKind names why a turn was penalized. Values are part of the result
// wire shape; do not rename.
type PenaltyKind string

const (
	PenaltyTimeout          PenaltyKind = "timeout"
	PenaltyNonZeroExit      PenaltyKind = "non_zero_exit"
	PenaltyResourceExceeded PenaltyKind = "resource_exceeded"
	PenaltyLaunchError      PenaltyKind = "launch_error"
	PenaltyMalformedOutput  PenaltyKind = "malformed_output"
)

// Penalty records a forced Defect for one player on one turn.
//
// Strike is the player's strike count after this penalty (1-based).
type Penalty struct {
	Player int         `json:"player"`
	Kind   PenaltyKind `json:"kind"`
	Strike int         `json:"strike"`
}

// TurnRecord is the immutable log entry for one turn.
//
// Index 0 is the match's first player, index 1 the second. Observed[i] is
// player i's move as its opponent saw it after the protocol transform.
type TurnRecord struct {
	Turn          int       `json:"turn"`
	Actual        [2]Move   `json:"actual"`
	Observed      [2]Signal `json:"observed"`
	Hints         *[2]Hint  `json:"hints,omitempty"`
	ObservedHints *[2]Hint  `json:"observed_hints,omitempty"`
	Payoff        [2]int    `json:"payoff"`
	Penalties     []Penalty `json:"penalties,omitempty"`
}

// PenaltyFor returns the penalty of player on this turn, if any.
func (t TurnRecord) PenaltyFor(player int) (Penalty, bool) {
	for _, p := range t.Penalties {
		if p.Player == player {
			return p, true
		}
	}
	return Penalty{}, false
}

// MatchStatus is the terminal status of a match.
type MatchStatus string

const (
	StatusCompleted MatchStatus = "completed"
	StatusForfeited MatchStatus = "forfeited"
)

// Side names which participant(s) forfeited.
type Side string

const (
	SideA    Side = "a"
	SideB    Side = "b"
	SideBoth Side = "both"
)

// Includes reports whether player index i is covered by s.
func (s Side) Includes(i int) bool {
	switch s {
	case SideBoth:
		return true
	case SideA:
		return i == 0
	case SideB:
		return i == 1
	default:
		return false
	}
}

// Forfeit reasons emitted by the core.
const (
	ReasonStrikes     = "strikes"
	ReasonLaunchError = "launch_error"
	ReasonCancelled   = "cancelled"
)

// MatchResult is the symmetric record of one pairing. It is stored once and
// can be viewed from either participant through Perspective.
type MatchResult struct {
	ID          string        `json:"id"`
	Round       RoundNumber   `json:"round"`
	Players     [2]StrategyID `json:"players"`
	Turns       []TurnRecord  `json:"turns"`
	Score       [2]int        `json:"score"`
	Status      MatchStatus   `json:"status"`
	ForfeitedBy Side          `json:"forfeited_by,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

// MatchID returns the deterministic identity of a pairing. Players must be
// passed in canonical (ascending) order.
func MatchID(round RoundNumber, a, b StrategyID) string {
	return fmt.Sprintf("r%d:%s:%s", int(round), a, b)
}

// Index returns the player index of id, or -1.
func (m MatchResult) Index(id StrategyID) int {
	switch id {
	case m.Players[0]:
		return 0
	case m.Players[1]:
		return 1
	default:
		return -1
	}
}

// Forfeited reports whether player index i forfeited the match.
func (m MatchResult) Forfeited(i int) bool {
	return m.Status == StatusForfeited && m.ForfeitedBy.Includes(i)
}

// CheckInvariants verifies the turn log against the recorded totals.
func (m MatchResult) CheckInvariants(turnCount int) error {
	var sum [2]int
	for i, t := range m.Turns {
		if t.Turn != i+1 {
			return fmt.Errorf("match %s: turn %d recorded at position %d", m.ID, t.Turn, i)
		}
		a, b := Payoff(t.Actual[0], t.Actual[1])
		if t.Payoff != [2]int{a, b} {
			return fmt.Errorf("match %s turn %d: payoff %v does not match actual moves", m.ID, t.Turn, t.Payoff)
		}
		sum[0] += t.Payoff[0]
		sum[1] += t.Payoff[1]
	}
	if sum != m.Score {
		return fmt.Errorf("match %s: score %v != sum of turns %v", m.ID, m.Score, sum)
	}
	if m.Status == StatusCompleted && len(m.Turns) != turnCount {
		return fmt.Errorf("match %s: completed with %d turns, want %d", m.ID, len(m.Turns), turnCount)
	}
	return nil
}

// TurnView is one turn seen from a single participant.
type TurnView struct {
	Turn           int      `json:"turn"`
	YourMove       Move     `json:"your_move"`
	OpponentMove   Move     `json:"opponent_move"`
	OpponentSaw    Signal   `json:"opponent_saw"`
	YouSaw         Signal   `json:"you_saw"`
	YourHint       *Hint    `json:"your_hint,omitempty"`
	OpponentHint   *Hint    `json:"opponent_hint,omitempty"`
	YourPayoff     int      `json:"your_payoff"`
	OpponentPayoff int      `json:"opponent_payoff"`
	Penalty        *Penalty `json:"penalty,omitempty"`
}

// MatchView is a MatchResult from one participant's side.
type MatchView struct {
	MatchID       string      `json:"match_id"`
	Round         RoundNumber `json:"round"`
	Self          StrategyID  `json:"self"`
	Opponent      StrategyID  `json:"opponent"`
	YourScore     int         `json:"your_score"`
	OpponentScore int         `json:"opponent_score"`
	Status        MatchStatus `json:"status"`
	YouForfeited  bool        `json:"you_forfeited"`
	Reason        string      `json:"reason,omitempty"`
	Turns         []TurnView  `json:"turns"`
}

// Perspective returns the match as seen by id.
func (m MatchResult) Perspective(id StrategyID) (MatchView, error) {
	self := m.Index(id)
	if self < 0 {
		return MatchView{}, fmt.Errorf("%w: %q in %s", ErrNotParticipant, id, m.ID)
	}
	opp := 1 - self
	v := MatchView{
		MatchID:       m.ID,
		Round:         m.Round,
		Self:          m.Players[self],
		Opponent:      m.Players[opp],
		YourScore:     m.Score[self],
		OpponentScore: m.Score[opp],
		Status:        m.Status,
		YouForfeited:  m.Forfeited(self),
		Reason:        m.Reason,
		Turns:         make([]TurnView, len(m.Turns)),
	}
	for i, t := range m.Turns {
		tv := TurnView{
			Turn:           t.Turn,
			YourMove:       t.Actual[self],
			OpponentMove:   t.Actual[opp],
			OpponentSaw:    t.Observed[self],
			YouSaw:         t.Observed[opp],
			YourPayoff:     t.Payoff[self],
			OpponentPayoff: t.Payoff[opp],
		}
		if t.Hints != nil {
			yh, oh := t.Hints[self], t.Hints[opp]
			tv.YourHint, tv.OpponentHint = &yh, &oh
		}
		if p, ok := t.PenaltyFor(self); ok {
			tv.Penalty = &p
		}
		v.Turns[i] = tv
	}
	return v, nil
}

// ParseMatchID splits an ID produced by MatchID.
func ParseMatchID(id string) (RoundNumber, StrategyID, StrategyID, error) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 || !strings.HasPrefix(parts[0], "r") {
		return 0, "", "", fmt.Errorf("malformed match id %q", id)
	}
	r, err := ParseRound(strings.TrimPrefix(parts[0], "r"))
	if err != nil {
		return 0, "", "", err
	}
	return r, StrategyID(parts[1]), StrategyID(parts[2]), nil
}
