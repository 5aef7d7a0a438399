package trace

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/game"
)

func sampleEvents() []Event {
	return []Event{
		{Kind: EventMatchForfeited, MatchID: "r1:b:c", StrategyID: "c", Reason: game.ReasonStrikes},
		{Kind: EventStrategyExcluded, StrategyID: "z", Reason: "launch_error"},
		{Kind: EventMatchCompleted, MatchID: "r1:a:b"},
		{Kind: EventMatchCancelled, MatchID: "r1:a:c", Reason: game.ReasonCancelled},
	}
}

func TestCanonicalJSONIsByteStable(t *testing.T) {
	tr := RoundTrace{Round: game.RoundNoise, Seed: 7, Events: sampleEvents()}
	b, err := tr.CanonicalJSON()
	require.NoError(t, err)

	want := `{"round":1,"seed":7,"events":[` +
		`{"kind":"StrategyExcluded","strategyId":"z","reason":"launch_error"},` +
		`{"kind":"MatchCompleted","matchId":"r1:a:b"},` +
		`{"kind":"MatchCancelled","matchId":"r1:a:c","reason":"cancelled"},` +
		`{"kind":"MatchForfeited","matchId":"r1:b:c","strategyId":"c","reason":"strikes"}]}`
	assert.Equal(t, want, string(b))
}

func TestHashIgnoresInsertionOrder(t *testing.T) {
	events := sampleEvents()
	base, err := RoundTrace{Round: game.RoundFog, Events: events}.Hash()
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 10; i++ {
		shuffled := append([]Event(nil), events...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		h, err := RoundTrace{Round: game.RoundFog, Events: shuffled}.Hash()
		require.NoError(t, err)
		assert.Equal(t, base, h)
	}
}

func TestValidate(t *testing.T) {
	bad := RoundTrace{Round: game.RoundNoise, Events: []Event{{Kind: EventMatchCompleted}}}
	assert.Error(t, bad.Validate())
	bad = RoundTrace{Round: 5}
	assert.ErrorIs(t, bad.Validate(), game.ErrInvalidRound)
	bad = RoundTrace{Round: 1, Events: []Event{{Kind: "Weird", MatchID: "x"}}}
	assert.Error(t, bad.Validate())
}

func TestRecorderConcurrent(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record(Event{Kind: EventMatchCompleted, MatchID: game.MatchID(1, "a", game.StrategyID(rune('a'+i%26)))})
		}()
	}
	wg.Wait()

	tr := r.Trace(game.RoundNoise, 1)
	assert.Len(t, tr.Events, 50)
	for i := 1; i < len(tr.Events); i++ {
		assert.LessOrEqual(t, tr.Events[i-1].MatchID, tr.Events[i].MatchID)
	}
}

type panicky struct{}

func (panicky) Record(Event) { panic("boom") }

func TestSafeRecordSwallowsPanics(t *testing.T) {
	assert.NotPanics(t, func() { SafeRecord(panicky{}, Event{Kind: EventMatchCompleted}) })
	assert.NotPanics(t, func() { SafeRecord(nil, Event{}) })
}

func TestMatchEvent(t *testing.T) {
	m := game.MatchResult{ID: "r1:a:b", Players: [2]game.StrategyID{"a", "b"}, Status: game.StatusForfeited, ForfeitedBy: game.SideB, Reason: game.ReasonStrikes}
	assert.Equal(t, Event{Kind: EventMatchForfeited, MatchID: "r1:a:b", StrategyID: "b", Reason: "strikes"}, MatchEvent(m))

	m.ForfeitedBy, m.Reason = game.SideBoth, game.ReasonCancelled
	assert.Equal(t, EventMatchCancelled, MatchEvent(m).Kind)

	m.Status = game.StatusCompleted
	assert.Equal(t, EventMatchCompleted, MatchEvent(m).Kind)
}

func TestDigest(t *testing.T) {
	a := game.MatchResult{ID: "r1:a:b", Round: 1, Players: [2]game.StrategyID{"a", "b"}, Status: game.StatusCompleted, Score: [2]int{3, 3},
		Turns: []game.TurnRecord{{Turn: 1, Actual: [2]game.Move{'C', 'C'}, Observed: [2]game.Signal{'C', 'C'}, Payoff: [2]int{3, 3}}}}
	b := a
	b.ID = "r1:a:c"
	b.Players[1] = "c"

	d1, err := Digest([]game.MatchResult{a, b})
	require.NoError(t, err)
	d2, err := Digest([]game.MatchResult{b, a})
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	b.Score[0] = 4
	d3, err := Digest([]game.MatchResult{a, b})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)

	_, err = Digest([]game.MatchResult{a, a})
	assert.Error(t, err)
}
