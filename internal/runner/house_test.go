package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/game"
)

func play(t *testing.T, h *HouseRunner, bot string, in TurnInput) string {
	t.Helper()
	out := h.Execute(context.Background(), HouseBot("b", bot), in, Budget{})
	require.True(t, out.OK())
	return string(out.Stdout)
}

func ptr(s string) *string { return &s }

func TestHouseBotsRound1(t *testing.T) {
	h := NewHouseRunner(1)
	in := TurnInput{Round: game.RoundNoise, MatchID: "m", Turn: 1}

	assert.Equal(t, "C\n", play(t, h, BotAlwaysCooperate, in))
	assert.Equal(t, "D\n", play(t, h, BotAlwaysDefect, in))
	assert.Equal(t, "C\n", play(t, h, BotTitForTat, in))
}

func TestTitForTatRound2(t *testing.T) {
	h := NewHouseRunner(1)
	cases := map[string]string{"N": "C\n", "C": "C\n", "D": "D\n", "U": "C\n"}
	for arg, want := range cases {
		got := play(t, h, BotTitForTat, TurnInput{Round: game.RoundFog, Arg: ptr(arg)})
		assert.Equal(t, want, got, "input %s", arg)
	}
}

func TestTitForTatAndGrudgerRound3(t *testing.T) {
	h := NewHouseRunner(1)

	assert.Equal(t, "CC\n", play(t, h, BotTitForTat, TurnInput{Round: game.RoundOracle, Arg: ptr("")}))
	assert.Equal(t, "DD\n", play(t, h, BotTitForTat, TurnInput{Round: game.RoundOracle, Arg: ptr("CDCC")}))
	assert.Equal(t, "CC\n", play(t, h, BotTitForTat, TurnInput{Round: game.RoundOracle, Arg: ptr("CDCCCCCC")}))

	assert.Equal(t, "DD\n", play(t, h, BotGrudger, TurnInput{Round: game.RoundOracle, Arg: ptr("CDCCCCCC")}))
	assert.Equal(t, "CC\n", play(t, h, BotGrudger, TurnInput{Round: game.RoundOracle, Arg: ptr("CCCC")}))
}

func TestRandomBotIsReproducible(t *testing.T) {
	in := TurnInput{Round: game.RoundOracle, MatchID: "r3:a:b", Arg: ptr("")}

	var seq1, seq2 []string
	for turn := 1; turn <= 50; turn++ {
		in.Turn = turn
		seq1 = append(seq1, play(t, NewHouseRunner(9), BotRandom, in))
		seq2 = append(seq2, play(t, NewHouseRunner(9), BotRandom, in))
	}
	assert.Equal(t, seq1, seq2)
	for _, out := range seq1 {
		_, _, err := game.ParseMoveHintOutput([]byte(out))
		assert.NoError(t, err)
	}
}

func TestHouseRunnerPrepare(t *testing.T) {
	h := NewHouseRunner(0)
	assert.NoError(t, h.Prepare(context.Background(), HouseBot("x", "Tit_For_Tat")))
	assert.ErrorIs(t, h.Prepare(context.Background(), HouseBot("x", "pavlov")), ErrUnknownBot)
	assert.Equal(t, FailureLaunchError, h.Execute(context.Background(), HouseBot("x", "pavlov"), TurnInput{}, Budget{}).Failure)
}

func TestDispatchRoutesByLanguage(t *testing.T) {
	ext := &stubRunner{out: Success([]byte("D"))}
	d := &Dispatch{House: NewHouseRunner(0), External: ext}

	out := d.Execute(context.Background(), HouseBot("b", BotAlwaysCooperate), TurnInput{Round: game.RoundNoise}, Budget{})
	assert.Equal(t, "C\n", string(out.Stdout))

	out = d.Execute(context.Background(), game.NewStrategy("p", "o", game.LanguagePython, "x"), TurnInput{Round: game.RoundNoise}, Budget{})
	assert.Equal(t, "D", string(out.Stdout))
	assert.Equal(t, 1, ext.calls)

	assert.NoError(t, d.Prepare(context.Background(), game.NewStrategy("p", "o", game.LanguagePython, "x")))
}

type stubRunner struct {
	out   Outcome
	calls int
}

func (s *stubRunner) Execute(context.Context, game.Strategy, TurnInput, Budget) Outcome {
	s.calls++
	return s.out
}
