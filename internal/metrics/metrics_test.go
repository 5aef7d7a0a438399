package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/game"
	"gauntlet/internal/runner"
)

func TestInvocationCounters(t *testing.T) {
	c := NewWithRegistry(prometheus.NewRegistry())

	c.ObserveInvocation(game.LanguagePython, runner.FailureNone, 10*time.Millisecond)
	c.ObserveInvocation(game.LanguagePython, runner.FailureTimeout, 2*time.Second)
	c.ObserveInvocation(game.LanguagePython, runner.FailureTimeout, 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.invocations.WithLabelValues("python", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.invocations.WithLabelValues("python", "timeout")))
}

func TestMatchMetrics(t *testing.T) {
	c := NewWithRegistry(prometheus.NewRegistry())
	m := game.MatchResult{
		Round:       game.RoundFog,
		Status:      game.StatusForfeited,
		ForfeitedBy: game.SideA,
		Reason:      game.ReasonStrikes,
		Turns: []game.TurnRecord{
			{Turn: 1, Penalties: []game.Penalty{{Player: 0, Kind: game.PenaltyMalformedOutput, Strike: 1}}},
			{Turn: 2, Penalties: []game.Penalty{{Player: 0, Kind: game.PenaltyTimeout, Strike: 2}}},
		},
	}

	c.MatchStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.matchesInFlight))
	c.MatchFinished(m, time.Second)
	c.StrategyExcluded(game.RoundFog)

	assert.Equal(t, 0.0, testutil.ToFloat64(c.matchesInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.matches.WithLabelValues("fog-of-war", "forfeited", "strikes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.penalties.WithLabelValues("fog-of-war", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.exclusions.WithLabelValues("fog-of-war")))
}

func TestNewRegistersRuntimeCollectors(t *testing.T) {
	c := New()
	c.RoundFinished(game.RoundNoise, time.Second)

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "go_goroutines")
	assert.Contains(t, joined, "gauntlet_round_duration_seconds")
}
