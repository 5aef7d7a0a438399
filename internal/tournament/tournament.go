package tournament

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"gauntlet/internal/game"
	"gauntlet/internal/standings"
)

// Report is the outcome of several rounds played under one run ID.
type Report struct {
	RunID   string                    `json:"run_id"`
	Seed    uint64                    `json:"seed"`
	Rounds  []*RoundReport            `json:"rounds"`
	Overall []standings.RoundStanding `json:"overall"`
}

// RoundSeed derives the seed of one round from the tournament seed, so each
// round has its own stream even when the same pairs meet again.
func RoundSeed(seed uint64, round game.RoundNumber) uint64 {
	z := seed + uint64(round)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// RunTournament plays every round that has a submission set, in round order.
//
// It stops at the first round that returns an error; the report then holds
// the rounds played so far (including the failed one when it produced a
// report).
func (s *Scheduler) RunTournament(ctx context.Context, seed uint64, sets map[game.RoundNumber]*game.SubmissionSet) (*Report, error) {
	if len(sets) == 0 {
		return nil, configErrorf("submissions", "no rounds to play")
	}
	for r := range sets {
		if err := r.Validate(); err != nil {
			return nil, &ConfigError{Field: "round", Err: err}
		}
	}

	rep := &Report{RunID: uuid.NewString(), Seed: seed}
	var inputs []standings.RoundResults
	for _, round := range game.Rounds {
		set, ok := sets[round]
		if !ok {
			continue
		}
		cfg := game.DefaultRoundConfig(round, RoundSeed(seed, round))
		rr, err := s.RunRound(ctx, rep.RunID, cfg, set)
		if rr != nil {
			rep.Rounds = append(rep.Rounds, rr)
			inputs = append(inputs, standings.RoundResults{Results: rr.Results, Excluded: rr.ExcludedIDs()})
		}
		if err != nil {
			rep.Overall = standings.Overall(inputs)
			return rep, fmt.Errorf("tournament %s: %w", rep.RunID, err)
		}
	}
	rep.Overall = standings.Overall(inputs)
	return rep, nil
}
