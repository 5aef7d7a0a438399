// Package metrics holds the prometheus collectors for tournament execution.
//
// Collectors are registered on an explicit registry rather than the global
// default, so tests and multiple tournaments in one process do not collide.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gauntlet/internal/game"
	"gauntlet/internal/runner"
)

// Collectors groups every gauntlet metric.
type Collectors struct {
	registry *prometheus.Registry

	invocations        *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	matches            *prometheus.CounterVec
	matchDuration      *prometheus.HistogramVec
	penalties          *prometheus.CounterVec
	exclusions         *prometheus.CounterVec
	matchesInFlight    prometheus.Gauge
	roundDuration      *prometheus.HistogramVec
}

// New creates collectors on a fresh registry, including the Go runtime and
// process collectors.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the gauntlet collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		registry: reg,

		// invocations counts strategy process invocations by language and outcome
		invocations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gauntlet_strategy_invocations_total",
			Help: "Strategy invocations by language and outcome",
		}, []string{"language", "outcome"}),

		invocationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gauntlet_strategy_invocation_duration_seconds",
			Help:    "Wall-clock duration of a single strategy invocation",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"language"}),

		matches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gauntlet_matches_total",
			Help: "Finished matches by round, status and reason",
		}, []string{"round", "status", "reason"}),

		matchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gauntlet_match_duration_seconds",
			Help:    "Wall-clock duration of a match",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"round"}),

		penalties: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gauntlet_turn_penalties_total",
			Help: "Penalized turns by round and kind",
		}, []string{"round", "kind"}),

		exclusions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gauntlet_strategy_exclusions_total",
			Help: "Strategies excluded from a round before play",
		}, []string{"round"}),

		matchesInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "gauntlet_matches_in_flight",
			Help: "Matches currently being played",
		}),

		roundDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gauntlet_round_duration_seconds",
			Help:    "Wall-clock duration of a full round",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 16),
		}, []string{"round"}),
	}
}

// Registry returns the registry for exposition.
func (c *Collectors) Registry() *prometheus.Registry { return c.registry }

// ObserveInvocation implements runner.Observer.
func (c *Collectors) ObserveInvocation(lang game.Language, failure runner.FailureKind, d time.Duration) {
	outcome := string(failure)
	if failure == runner.FailureNone {
		outcome = "ok"
	}
	c.invocations.WithLabelValues(string(lang), outcome).Inc()
	c.invocationDuration.WithLabelValues(string(lang)).Observe(d.Seconds())
}

// MatchStarted marks a match as in flight.
func (c *Collectors) MatchStarted() { c.matchesInFlight.Inc() }

// MatchFinished records a finished match and its penalties.
func (c *Collectors) MatchFinished(m game.MatchResult, d time.Duration) {
	c.matchesInFlight.Dec()
	round := roundLabel(m.Round)
	c.matches.WithLabelValues(round, string(m.Status), m.Reason).Inc()
	c.matchDuration.WithLabelValues(round).Observe(d.Seconds())
	for _, t := range m.Turns {
		for _, p := range t.Penalties {
			c.penalties.WithLabelValues(round, string(p.Kind)).Inc()
		}
	}
}

// StrategyExcluded counts a preflight exclusion.
func (c *Collectors) StrategyExcluded(round game.RoundNumber) {
	c.exclusions.WithLabelValues(roundLabel(round)).Inc()
}

// RoundFinished records the duration of a round.
func (c *Collectors) RoundFinished(round game.RoundNumber, d time.Duration) {
	c.roundDuration.WithLabelValues(roundLabel(round)).Observe(d.Seconds())
}

func roundLabel(r game.RoundNumber) string { return r.Name() }
