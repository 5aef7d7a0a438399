package protocol

import (
	"hash/fnv"
	"math/rand/v2"

	"gauntlet/internal/game"
)

// seedStream is a splitmix64 generator used to spread one seed into many.
type seedStream struct{ state uint64 }

func newSeedStream(base uint64) *seedStream { return &seedStream{state: base} }

func (s *seedStream) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z ^= z >> 30
	z *= 0xBF58476D1CE4E5B9
	z ^= z >> 27
	z *= 0x94D049BB133111EB
	z ^= z >> 31
	return z
}

// MatchSeed derives a match's seed from the round seed and the pairing.
//
// It depends only on identities, never on scheduling, so matches can run in
// any order or in parallel and still replay exactly.
func MatchSeed(roundSeed uint64, a, b game.StrategyID) uint64 {
	h := fnv.New64a()
	h.Write([]byte(a))
	h.Write([]byte{0})
	h.Write([]byte(b))
	return newSeedStream(roundSeed ^ h.Sum64()).next()
}

// newRand returns a PCG generator seeded from seed.
func newRand(seed uint64) *rand.Rand {
	s := newSeedStream(seed)
	return rand.New(rand.NewPCG(s.next(), s.next()))
}
