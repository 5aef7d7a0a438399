package protocol

import (
	"gauntlet/internal/game"
)

// History accumulates what each player has been allowed to see and renders
// the per-turn wire input for either side.
//
// In round 3 a hint sent on turn t reaches the opponent as part of the
// history it receives before deciding turn t+1.
type History struct {
	round game.RoundNumber
	turns int

	// last[i] is what player i saw of its opponent on the previous turn.
	last [2]game.Signal

	// blocks[i] is player i's encoded round-3 history.
	blocks [2][]byte
}

// NewHistory starts an empty history for round.
func NewHistory(round game.RoundNumber) *History {
	return &History{
		round: round,
		last:  [2]game.Signal{game.SignalNoPrior, game.SignalNoPrior},
	}
}

// Turns returns the number of recorded turns.
func (h *History) Turns() int { return h.turns }

// Input returns player's argv[1] for the next turn, or nil in round 1.
func (h *History) Input(player int) *string {
	var s string
	switch h.round {
	case game.RoundFog:
		s = h.last[player].String()
	case game.RoundOracle:
		s = string(h.blocks[player])
	default:
		return nil
	}
	return &s
}

// Append records a finished turn.
func (h *History) Append(rec game.TurnRecord) {
	h.turns++
	for p := 0; p < 2; p++ {
		opp := 1 - p
		h.last[p] = rec.Observed[opp]
		if h.round != game.RoundOracle {
			continue
		}
		blk := game.Block{
			YourMove:     rec.Actual[p],
			OpponentMove: rec.Actual[opp],
			YourHint:     game.Defect,
			OpponentHint: game.Defect,
		}
		if rec.Hints != nil {
			blk.YourHint = rec.Hints[p]
		}
		if rec.ObservedHints != nil {
			blk.OpponentHint = rec.ObservedHints[opp]
		}
		if m, ok := rec.Observed[opp].Move(); ok {
			blk.OpponentMove = m
		}
		h.blocks[p] = append(h.blocks[p], game.EncodeRound3History([]game.Block{blk})...)
	}
}
