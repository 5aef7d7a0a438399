package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMatch() MatchResult {
	hints := [2]Hint{Cooperate, Defect}
	return MatchResult{
		ID:      MatchID(RoundOracle, "a", "b"),
		Round:   RoundOracle,
		Players: [2]StrategyID{"a", "b"},
		Turns: []TurnRecord{
			{
				Turn:          1,
				Actual:        [2]Move{Defect, Cooperate},
				Observed:      [2]Signal{SignalDefect, SignalCooperate},
				Hints:         &hints,
				ObservedHints: &hints,
				Payoff:        [2]int{5, 0},
				Penalties:     []Penalty{{Player: 0, Kind: PenaltyTimeout, Strike: 1}},
			},
		},
		Score:       [2]int{5, 0},
		Status:      StatusForfeited,
		ForfeitedBy: SideA,
		Reason:      ReasonStrikes,
	}
}

func TestPerspectiveSwapsSides(t *testing.T) {
	m := sampleMatch()

	va, err := m.Perspective("a")
	require.NoError(t, err)
	vb, err := m.Perspective("b")
	require.NoError(t, err)

	assert.Equal(t, StrategyID("b"), va.Opponent)
	assert.Equal(t, 5, va.YourScore)
	assert.Equal(t, 0, vb.YourScore)
	assert.True(t, va.YouForfeited)
	assert.False(t, vb.YouForfeited)

	assert.Equal(t, Defect, va.Turns[0].YourMove)
	assert.Equal(t, Defect, vb.Turns[0].OpponentMove)
	require.NotNil(t, vb.Turns[0].YourHint)
	assert.Equal(t, Defect, *vb.Turns[0].YourHint)
	require.NotNil(t, va.Turns[0].Penalty)
	assert.Nil(t, vb.Turns[0].Penalty)

	_, err = m.Perspective("c")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestCheckInvariants(t *testing.T) {
	m := sampleMatch()
	require.NoError(t, m.CheckInvariants(TurnCount))

	m.Score[0] = 6
	assert.Error(t, m.CheckInvariants(TurnCount))

	m = sampleMatch()
	m.Status = StatusCompleted
	assert.Error(t, m.CheckInvariants(TurnCount))
	assert.NoError(t, m.CheckInvariants(1))
}

func TestMatchIDRoundTrip(t *testing.T) {
	id := MatchID(RoundFog, "alpha", "beta")
	r, a, b, err := ParseMatchID(id)
	require.NoError(t, err)
	assert.Equal(t, RoundFog, r)
	assert.Equal(t, StrategyID("alpha"), a)
	assert.Equal(t, StrategyID("beta"), b)

	_, _, _, err = ParseMatchID("nonsense")
	assert.Error(t, err)
}

func TestSideIncludes(t *testing.T) {
	assert.True(t, SideBoth.Includes(0))
	assert.True(t, SideBoth.Includes(1))
	assert.True(t, SideA.Includes(0))
	assert.False(t, SideA.Includes(1))
	assert.False(t, Side("").Includes(0))
}
