package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"gauntlet/internal/game"
)

// ComputeHash returns the SHA-256 hex of an already canonical encoding.
func ComputeHash(canonical []byte) string {
	if len(canonical) == 0 {
		return ""
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// CanonicalResults encodes results sorted by match ID. Go's encoder writes
// struct fields in declaration order, so the bytes depend only on content.
func CanonicalResults(results []game.MatchResult) ([]byte, error) {
	sorted := append([]game.MatchResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return nil, fmt.Errorf("duplicate match id %q", sorted[i].ID)
		}
	}
	return json.Marshal(sorted)
}

// Digest fingerprints a result set. Identical inputs and seeds with
// deterministic strategies give identical digests.
func Digest(results []game.MatchResult) (string, error) {
	b, err := CanonicalResults(results)
	if err != nil {
		return "", err
	}
	return ComputeHash(b), nil
}
