package protocol

import (
	"fmt"
	"math/rand/v2"

	"gauntlet/internal/game"
)

// Observation is the result of transforming one turn.
//
// Observed[i] is player i's move as its opponent sees it. ObservedHints[i] is
// player i's hint as delivered to its opponent; it is nil outside round 3.
type Observation struct {
	Observed      [2]game.Signal
	ObservedHints *[2]game.Hint
	Payoff        [2]int
}

// Engine applies one round's information rules.
type Engine interface {
	Round() game.RoundNumber
	Transform(actual [2]game.Move, hints *[2]game.Hint) Observation
}

type options struct {
	noiseRate float64
	fogRate   float64
}

// Option overrides an engine constant. Tournament code never passes options;
// they exist for experiments and tests.
type Option func(*options)

// WithNoiseRate sets the per-player flip probability of the noise engine.
func WithNoiseRate(p float64) Option {
	return func(o *options) { o.noiseRate = p }
}

// WithFogRate sets the per-player withholding probability of the fog engine.
func WithFogRate(q float64) Option {
	return func(o *options) { o.fogRate = q }
}

// New returns the engine for round, seeded with seed.
func New(round game.RoundNumber, seed uint64, opts ...Option) (Engine, error) {
	o := options{noiseRate: game.NoiseRate, fogRate: game.FogRate}
	for _, opt := range opts {
		opt(&o)
	}
	if o.noiseRate < 0 || o.noiseRate > 1 {
		return nil, fmt.Errorf("noise rate %v out of [0,1]", o.noiseRate)
	}
	if o.fogRate < 0 || o.fogRate > 1 {
		return nil, fmt.Errorf("fog rate %v out of [0,1]", o.fogRate)
	}

	switch round {
	case game.RoundNoise:
		return &noiseEngine{rng: newRand(seed), p: o.noiseRate}, nil
	case game.RoundFog:
		return &fogEngine{rng: newRand(seed), q: o.fogRate}, nil
	case game.RoundOracle:
		return &oracleEngine{}, nil
	default:
		return nil, round.Validate()
	}
}

func payoff(actual [2]game.Move) [2]int {
	a, b := game.Payoff(actual[0], actual[1])
	return [2]int{a, b}
}

// noiseEngine flips each player's observed move with probability p.
type noiseEngine struct {
	rng *rand.Rand
	p   float64
}

func (e *noiseEngine) Round() game.RoundNumber { return game.RoundNoise }

func (e *noiseEngine) Transform(actual [2]game.Move, _ *[2]game.Hint) Observation {
	var obs Observation
	for i, m := range actual {
		// Always draw so the stream layout does not depend on p.
		if e.rng.Float64() < e.p {
			m = m.Flip()
		}
		obs.Observed[i] = m.Signal()
	}
	obs.Payoff = payoff(actual)
	return obs
}

// fogEngine replaces each player's observed move with Unknown with
// probability q.
type fogEngine struct {
	rng *rand.Rand
	q   float64
}

func (e *fogEngine) Round() game.RoundNumber { return game.RoundFog }

func (e *fogEngine) Transform(actual [2]game.Move, _ *[2]game.Hint) Observation {
	var obs Observation
	for i, m := range actual {
		if e.rng.Float64() < e.q {
			obs.Observed[i] = game.SignalUnknown
			continue
		}
		obs.Observed[i] = m.Signal()
	}
	obs.Payoff = payoff(actual)
	return obs
}

// oracleEngine delivers moves and hints unaltered. Hints may lie; the engine
// does not care.
type oracleEngine struct{}

func (oracleEngine) Round() game.RoundNumber { return game.RoundOracle }

func (oracleEngine) Transform(actual [2]game.Move, hints *[2]game.Hint) Observation {
	obs := Observation{
		Observed: [2]game.Signal{actual[0].Signal(), actual[1].Signal()},
		Payoff:   payoff(actual),
	}
	delivered := [2]game.Hint{game.Defect, game.Defect}
	if hints != nil {
		delivered = *hints
	}
	obs.ObservedHints = &delivered
	return obs
}
