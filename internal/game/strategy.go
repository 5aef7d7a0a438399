package game

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// StrategyID is the stable identity of a submission within a round.
type StrategyID string

// ValidateID rejects identities that are empty or would collide with the
// separators used in match IDs and store keys.
func ValidateID(id StrategyID) error {
	if strings.TrimSpace(string(id)) == "" {
		return fmt.Errorf("strategy id is required")
	}
	if strings.ContainsAny(string(id), ":/ \t\n") {
		return fmt.Errorf("strategy id %q contains a reserved character", id)
	}
	return nil
}

// Language is the declared implementation language of a submission.
type Language string

const (
	LanguageC      Language = "c"
	LanguageCPP    Language = "cpp"
	LanguagePython Language = "python"

	// LanguageHouse marks a built-in bot; Source holds the bot name.
	LanguageHouse Language = "house"
)

// ParseLanguage accepts the canonical names plus common aliases.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c":
		return LanguageC, nil
	case "cpp", "c++", "cxx":
		return LanguageCPP, nil
	case "python", "py", "python3":
		return LanguagePython, nil
	case "house", "bot":
		return LanguageHouse, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
}

// Strategy is an immutable submission.
//
// Digest is computed from (Language, Source) only; Owner and ID do not affect
// it, so two owners submitting identical code share build artifacts.
type Strategy struct {
	ID       StrategyID `json:"id"`
	Owner    string     `json:"owner"`
	Language Language   `json:"language"`
	Source   string     `json:"-"`
	Digest   string     `json:"digest"`
}

// NewStrategy builds a Strategy and computes its digest.
func NewStrategy(id StrategyID, owner string, lang Language, source string) Strategy {
	return Strategy{
		ID:       id,
		Owner:    owner,
		Language: lang,
		Source:   source,
		Digest:   ComputeDigest(lang, []byte(source)),
	}
}

// ComputeDigest returns the hex SHA-256 over length-prefixed language and
// source fields.
func ComputeDigest(lang Language, source []byte) string {
	h := sha256.New()
	writeField := func(data []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(data)))
		h.Write(n[:])
		h.Write(data)
	}
	writeField([]byte(lang))
	writeField(source)
	return hex.EncodeToString(h.Sum(nil))
}

// SubmissionSet maps strategy identity to submission for one round.
//
// A set is built while a round is open and frozen at lockout; the scheduler
// refuses to run a set that has not been frozen.
type SubmissionSet struct {
	Round      RoundNumber
	frozen     bool
	strategies map[StrategyID]Strategy
}

// NewSubmissionSet returns an open set for round.
func NewSubmissionSet(round RoundNumber) *SubmissionSet {
	return &SubmissionSet{Round: round, strategies: make(map[StrategyID]Strategy)}
}

// Add registers s. It fails once the set is frozen or when the ID is taken.
func (s *SubmissionSet) Add(st Strategy) error {
	if s.frozen {
		return ErrSubmissionFrozen
	}
	if err := ValidateID(st.ID); err != nil {
		return err
	}
	if _, ok := s.strategies[st.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, st.ID)
	}
	if st.Digest == "" {
		st.Digest = ComputeDigest(st.Language, []byte(st.Source))
	}
	s.strategies[st.ID] = st
	return nil
}

// Freeze locks the set. Freezing twice is a no-op.
func (s *SubmissionSet) Freeze() { s.frozen = true }

// Frozen reports whether the set has been locked.
func (s *SubmissionSet) Frozen() bool { return s != nil && s.frozen }

// Len returns the number of strategies.
func (s *SubmissionSet) Len() int { return len(s.strategies) }

// Get returns the strategy with the given identity.
func (s *SubmissionSet) Get(id StrategyID) (Strategy, bool) {
	st, ok := s.strategies[id]
	return st, ok
}

// IDs returns every identity in ascending order.
func (s *SubmissionSet) IDs() []StrategyID {
	ids := make([]StrategyID, 0, len(s.strategies))
	for id := range s.strategies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Strategies returns every strategy ordered by identity.
func (s *SubmissionSet) Strategies() []Strategy {
	ids := s.IDs()
	out := make([]Strategy, len(ids))
	for i, id := range ids {
		out[i] = s.strategies[id]
	}
	return out
}
