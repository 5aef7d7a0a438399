package game

import (
	"fmt"
	"strconv"
)

// Tournament-wide constants. None of them is configurable.
const (
	TurnCount  = 200
	NoiseRate  = 0.05
	FogRate    = 0.10
	MaxStrikes = 3
)

// RoundNumber selects the protocol variant of a round.
type RoundNumber int

const (
	RoundNoise  RoundNumber = 1
	RoundFog    RoundNumber = 2
	RoundOracle RoundNumber = 3
)

// Rounds lists every round in play order.
var Rounds = []RoundNumber{RoundNoise, RoundFog, RoundOracle}

// Validate returns ErrInvalidRound unless r is 1, 2 or 3.
func (r RoundNumber) Validate() error {
	switch r {
	case RoundNoise, RoundFog, RoundOracle:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidRound, int(r))
	}
}

// Name returns the human name of the round's protocol variant.
func (r RoundNumber) Name() string {
	switch r {
	case RoundNoise:
		return "noise"
	case RoundFog:
		return "fog-of-war"
	case RoundOracle:
		return "oracle-hints"
	default:
		return "round-" + strconv.Itoa(int(r))
	}
}

// ParseRound parses "1", "2" or "3".
func ParseRound(s string) (RoundNumber, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRound, s)
	}
	r := RoundNumber(n)
	if err := r.Validate(); err != nil {
		return 0, err
	}
	return r, nil
}

// RoundConfig is the run-level input for one round.
type RoundConfig struct {
	Round     RoundNumber `json:"round"`
	TurnCount int         `json:"turn_count"`
	Seed      uint64      `json:"seed"`
}

// DefaultRoundConfig returns a config with the tournament turn count.
func DefaultRoundConfig(round RoundNumber, seed uint64) RoundConfig {
	return RoundConfig{Round: round, TurnCount: TurnCount, Seed: seed}
}

func (c RoundConfig) Validate() error {
	if err := c.Round.Validate(); err != nil {
		return err
	}
	if c.TurnCount <= 0 {
		return fmt.Errorf("turn count must be > 0 (got %d)", c.TurnCount)
	}
	return nil
}
