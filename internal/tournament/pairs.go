package tournament

import (
	"sort"

	"gauntlet/internal/game"
)

// Pair is an unordered pairing in canonical order (A < B).
type Pair struct {
	A, B game.StrategyID
}

// Pairs returns every unordered pair of distinct ids exactly once, sorted.
// Duplicate ids are collapsed.
func Pairs(ids []game.StrategyID) []Pair {
	uniq := append([]game.StrategyID(nil), ids...)
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })
	n := 0
	for i, id := range uniq {
		if i == 0 || id != uniq[n-1] {
			uniq[n] = id
			n++
		}
	}
	uniq = uniq[:n]

	out := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, Pair{A: uniq[i], B: uniq[j]})
		}
	}
	return out
}
