package standings

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/game"
)

// constant builds a completed match in which each side repeats one move.
func constant(a, b game.StrategyID, ma, mb game.Move, turns int) game.MatchResult {
	m := game.MatchResult{
		ID:      game.MatchID(game.RoundNoise, a, b),
		Round:   game.RoundNoise,
		Players: [2]game.StrategyID{a, b},
		Status:  game.StatusCompleted,
	}
	pa, pb := game.Payoff(ma, mb)
	for i := 1; i <= turns; i++ {
		m.Turns = append(m.Turns, game.TurnRecord{
			Turn:     i,
			Actual:   [2]game.Move{ma, mb},
			Observed: [2]game.Signal{ma.Signal(), mb.Signal()},
			Payoff:   [2]int{pa, pb},
		})
		m.Score[0] += pa
		m.Score[1] += pb
	}
	return m
}

func byID(s []RoundStanding) map[game.StrategyID]RoundStanding {
	out := make(map[game.StrategyID]RoundStanding, len(s))
	for _, r := range s {
		out[r.StrategyID] = r
	}
	return out
}

func TestSummarizeTotalsEqualSumOfMatchScores(t *testing.T) {
	results := []game.MatchResult{
		constant("alld", "allc", game.Defect, game.Cooperate, 10),
		constant("alld", "tft", game.Defect, game.Defect, 10),
		constant("allc", "tft", game.Cooperate, game.Cooperate, 10),
	}
	got := byID(Summarize(results))

	assert.Equal(t, 50+10, got["alld"].TotalScore)
	assert.Equal(t, 0+30, got["allc"].TotalScore)
	assert.Equal(t, 10+30, got["tft"].TotalScore)
	assert.Equal(t, 2, got["allc"].MatchesPlayed)
	assert.Equal(t, 20, got["allc"].Cooperations)
	assert.Equal(t, 0, got["allc"].Defections)
	assert.InDelta(t, 0.5, got["tft"].CooperationRate, 1e-12)
	assert.InDelta(t, 20.0, got["tft"].MeanMatchScore, 1e-12)
	assert.InDelta(t, 14.142135623730951, got["tft"].ScoreStdDev, 1e-9)
}

func TestRankTieBreaks(t *testing.T) {
	s := []RoundStanding{
		{StrategyID: "zed", TotalScore: 10, Cooperations: 1, Defections: 1},
		{StrategyID: "bob", TotalScore: 10, Cooperations: 1, Defections: 1},
		{StrategyID: "amy", TotalScore: 10, Cooperations: 1, Defections: 3},
		{StrategyID: "top", TotalScore: 11},
		{StrategyID: "kim", TotalScore: 10, Cooperations: 2, Defections: 2},
	}
	Rank(s)

	var order []game.StrategyID
	for i, r := range s {
		order = append(order, r.StrategyID)
		assert.Equal(t, i+1, r.Rank)
	}
	assert.Equal(t, []game.StrategyID{"top", "bob", "kim", "zed", "amy"}, order)
}

func TestSummarizeIsPureAndOrderInsensitive(t *testing.T) {
	results := []game.MatchResult{
		constant("a", "b", game.Cooperate, game.Defect, 7),
		constant("a", "c", game.Cooperate, game.Cooperate, 9),
		constant("b", "c", game.Defect, game.Defect, 4),
		constant("b", "d", game.Cooperate, game.Cooperate, 3),
	}
	want := Summarize(results)

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		shuffled := append([]game.MatchResult(nil), results...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		require.Equal(t, want, Summarize(shuffled))
	}
}

func TestForfeitsPenaltiesAndCancellations(t *testing.T) {
	m := constant("a", "b", game.Defect, game.Cooperate, 3)
	m.Status = game.StatusForfeited
	m.ForfeitedBy = game.SideA
	m.Reason = game.ReasonStrikes
	for i := range m.Turns {
		m.Turns[i].Penalties = []game.Penalty{{Player: 0, Kind: game.PenaltyTimeout, Strike: i + 1}}
	}
	c := game.MatchResult{
		ID:          game.MatchID(game.RoundNoise, "a", "c"),
		Players:     [2]game.StrategyID{"a", "c"},
		Status:      game.StatusForfeited,
		ForfeitedBy: game.SideBoth,
		Reason:      game.ReasonCancelled,
	}
	got := byID(Summarize([]game.MatchResult{m, c}))

	assert.Equal(t, 1, got["a"].Forfeits)
	assert.Equal(t, 1, got["a"].Cancelled)
	assert.Equal(t, 3, got["a"].Penalties)
	assert.Equal(t, 0, got["b"].Forfeits)
	assert.Equal(t, 1, got["c"].Cancelled)
	assert.Equal(t, 0, got["c"].Forfeits)
}

func TestExcludedStrategiesRankWithZero(t *testing.T) {
	results := []game.MatchResult{constant("a", "b", game.Cooperate, game.Cooperate, 2)}
	s := SummarizeWithExclusions(results, []game.StrategyID{"broken"})

	require.Len(t, s, 3)
	last := s[2]
	assert.Equal(t, game.StrategyID("broken"), last.StrategyID)
	assert.True(t, last.Excluded)
	assert.Zero(t, last.TotalScore)
	assert.Zero(t, last.MatchesPlayed)
}

func TestOverallSumsRounds(t *testing.T) {
	r1 := []game.MatchResult{constant("a", "b", game.Defect, game.Cooperate, 2)}
	r2 := []game.MatchResult{constant("a", "b", game.Cooperate, game.Defect, 3)}

	got := byID(Overall([]RoundResults{
		{Results: r1, Excluded: []game.StrategyID{"c"}},
		{Results: r2, Excluded: []game.StrategyID{"c"}},
	}))

	assert.Equal(t, 10, got["a"].TotalScore)
	assert.Equal(t, 15, got["b"].TotalScore)
	assert.Equal(t, 2, got["a"].MatchesPlayed)
	assert.True(t, got["c"].Excluded)
	assert.Equal(t, 1, got["b"].Rank)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Empty(t, Summarize(nil))
}
