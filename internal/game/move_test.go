package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayoffTable(t *testing.T) {
	cases := []struct {
		a, b   Move
		pa, pb int
	}{
		{Cooperate, Cooperate, 3, 3},
		{Defect, Defect, 1, 1},
		{Defect, Cooperate, 5, 0},
		{Cooperate, Defect, 0, 5},
	}
	for _, tc := range cases {
		pa, pb := Payoff(tc.a, tc.b)
		assert.Equal(t, tc.pa, pa, "%s vs %s", tc.a, tc.b)
		assert.Equal(t, tc.pb, pb, "%s vs %s", tc.a, tc.b)
	}
}

func TestMoveFlip(t *testing.T) {
	assert.Equal(t, Defect, Cooperate.Flip())
	assert.Equal(t, Cooperate, Defect.Flip())
}

func TestSignalUnknownIsNotAMove(t *testing.T) {
	_, ok := SignalUnknown.Move()
	assert.False(t, ok)
	_, ok = SignalNoPrior.Move()
	assert.False(t, ok)

	m, ok := SignalDefect.Move()
	require.True(t, ok)
	assert.Equal(t, Defect, m)
}

func TestMoveJSON(t *testing.T) {
	b, err := json.Marshal([]Move{Cooperate, Defect})
	require.NoError(t, err)
	assert.JSONEq(t, `["C","D"]`, string(b))

	var s Signal
	require.NoError(t, json.Unmarshal([]byte(`"U"`), &s))
	assert.Equal(t, SignalUnknown, s)

	var m Move
	assert.Error(t, json.Unmarshal([]byte(`"U"`), &m))
	_, err = json.Marshal(Move('x'))
	assert.Error(t, err)
}

func TestRoundValidate(t *testing.T) {
	for _, r := range Rounds {
		assert.NoError(t, r.Validate())
	}
	assert.ErrorIs(t, RoundNumber(4).Validate(), ErrInvalidRound)
	_, err := ParseRound("zero")
	assert.ErrorIs(t, err, ErrInvalidRound)

	cfg := DefaultRoundConfig(RoundFog, 7)
	assert.Equal(t, 200, cfg.TurnCount)
	require.NoError(t, cfg.Validate())
	cfg.TurnCount = 0
	assert.Error(t, cfg.Validate())
}
