// Package standings reduces match results to ranked per-strategy totals.
//
// Everything here is a pure function of its input: the same results always
// produce the same standings, in the same order.
package standings

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"gauntlet/internal/game"
)

// RoundStanding is one strategy's line in a leaderboard.
type RoundStanding struct {
	Rank            int             `json:"rank"`
	StrategyID      game.StrategyID `json:"strategy_id"`
	MatchesPlayed   int             `json:"matches_played"`
	TotalScore      int             `json:"total_score"`
	Cooperations    int             `json:"cooperations"`
	Defections      int             `json:"defections"`
	CooperationRate float64         `json:"cooperation_rate"`
	Forfeits        int             `json:"forfeits"`
	Cancelled       int             `json:"cancelled"`
	Penalties       int             `json:"penalties"`
	Excluded        bool            `json:"excluded"`
	MeanMatchScore  float64         `json:"mean_match_score"`
	ScoreStdDev     float64         `json:"score_stddev"`
}

// Leaderboard is the snapshot emitted for a round (or a whole tournament,
// with Round zero).
type Leaderboard struct {
	Round         game.RoundNumber `json:"round,omitempty"`
	Standings     []RoundStanding  `json:"standings"`
	ResultsDigest string           `json:"results_digest,omitempty"`
}

// Summarize ranks every strategy that appears in results.
func Summarize(results []game.MatchResult) []RoundStanding {
	return SummarizeWithExclusions(results, nil)
}

// SummarizeWithExclusions is Summarize plus strategies that were excluded
// from the round before play. They appear with a zero score.
func SummarizeWithExclusions(results []game.MatchResult, excluded []game.StrategyID) []RoundStanding {
	acc := make(map[game.StrategyID]*tally)
	get := func(id game.StrategyID) *tally {
		t, ok := acc[id]
		if !ok {
			t = &tally{standing: RoundStanding{StrategyID: id}}
			acc[id] = t
		}
		return t
	}

	for _, m := range results {
		for i, id := range m.Players {
			t := get(id)
			t.standing.MatchesPlayed++
			t.standing.TotalScore += m.Score[i]
			t.scores = append(t.scores, float64(m.Score[i]))
			if m.Forfeited(i) {
				if m.Reason == game.ReasonCancelled {
					t.standing.Cancelled++
				} else {
					t.standing.Forfeits++
				}
			}
			for _, turn := range m.Turns {
				if turn.Actual[i] == game.Cooperate {
					t.standing.Cooperations++
				} else {
					t.standing.Defections++
				}
				if _, ok := turn.PenaltyFor(i); ok {
					t.standing.Penalties++
				}
			}
		}
	}
	for _, id := range excluded {
		get(id).standing.Excluded = true
	}

	out := make([]RoundStanding, 0, len(acc))
	for _, t := range acc {
		out = append(out, t.finish())
	}
	Rank(out)
	return out
}

// Rank sorts standings in place and assigns 1-based ranks.
//
// Order: total score descending, then cooperation rate descending, then
// strategy identity ascending.
func Rank(s []RoundStanding) {
	sort.Slice(s, func(i, j int) bool { return less(s[i], s[j]) })
	for i := range s {
		s[i].Rank = i + 1
	}
}

func less(a, b RoundStanding) bool {
	if a.TotalScore != b.TotalScore {
		return a.TotalScore > b.TotalScore
	}
	// Compare rates by cross-multiplying the integer counts so equal rates
	// never differ by a rounding error.
	an, ad := a.Cooperations, a.Cooperations+a.Defections
	bn, bd := b.Cooperations, b.Cooperations+b.Defections
	if l, r := an*bd, bn*ad; l != r {
		return l > r
	}
	return a.StrategyID < b.StrategyID
}

type tally struct {
	standing RoundStanding
	scores   []float64
}

func (t *tally) finish() RoundStanding {
	s := t.standing
	if moves := s.Cooperations + s.Defections; moves > 0 {
		s.CooperationRate = float64(s.Cooperations) / float64(moves)
	}
	sort.Float64s(t.scores)
	switch n := len(t.scores); {
	case n >= 2:
		s.MeanMatchScore, s.ScoreStdDev = stat.MeanStdDev(t.scores, nil)
	case n == 1:
		s.MeanMatchScore = t.scores[0]
	}
	return s
}

// RoundResults is one round's input to Overall.
type RoundResults struct {
	Results  []game.MatchResult
	Excluded []game.StrategyID
}

// Overall ranks strategies across several rounds by their summed totals. A
// strategy is marked excluded only if it never played a match.
func Overall(rounds []RoundResults) []RoundStanding {
	var all []game.MatchResult
	played := make(map[game.StrategyID]bool)
	for _, r := range rounds {
		all = append(all, r.Results...)
		for _, m := range r.Results {
			played[m.Players[0]] = true
			played[m.Players[1]] = true
		}
	}

	var excluded []game.StrategyID
	seen := make(map[game.StrategyID]bool)
	for _, r := range rounds {
		for _, id := range r.Excluded {
			if !played[id] && !seen[id] {
				seen[id] = true
				excluded = append(excluded, id)
			}
		}
	}
	return SummarizeWithExclusions(all, excluded)
}
