// Package trace records what happened in a round in a form that does not
// depend on timing, and fingerprints result sets so two runs can be compared
// byte for byte.
package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gauntlet/internal/game"
)

// RoundTrace is the canonical record of a round's logical events.
//
// It carries no timestamps, durations or error strings. Events are put in a
// total order by Canonicalize, so the same round always yields the same
// bytes regardless of worker count.
type RoundTrace struct {
	Round  game.RoundNumber
	Seed   uint64
	Events []Event
}

// EventKind discriminates Event. The string values are part of the canonical
// bytes; do not rename.
type EventKind string

const (
	EventStrategyExcluded EventKind = "StrategyExcluded"
	EventMatchCompleted   EventKind = "MatchCompleted"
	EventMatchForfeited   EventKind = "MatchForfeited"
	EventMatchCancelled   EventKind = "MatchCancelled"
)

// Event is a single logical fact about a round.
type Event struct {
	Kind EventKind

	// MatchID is set for match events.
	MatchID string

	// StrategyID is set for strategy events, and for forfeits by one side.
	StrategyID game.StrategyID

	// Reason is a stable reason code such as "strikes" or "launch_error".
	Reason string
}

// Validate checks basic invariants.
func (t *RoundTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if err := t.Round.Validate(); err != nil {
		return err
	}
	for i, e := range t.Events {
		switch e.Kind {
		case EventStrategyExcluded:
			if e.StrategyID == "" {
				return fmt.Errorf("events[%d].strategyId is required for kind %q", i, e.Kind)
			}
		case EventMatchCompleted, EventMatchForfeited, EventMatchCancelled:
			if e.MatchID == "" {
				return fmt.Errorf("events[%d].matchId is required for kind %q", i, e.Kind)
			}
		default:
			return fmt.Errorf("events[%d].kind %q is unknown", i, e.Kind)
		}
	}
	return nil
}

// Canonicalize sorts events by (matchId, strategyId, kind, reason).
func (t *RoundTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		if a.MatchID != b.MatchID {
			return a.MatchID < b.MatchID
		}
		if a.StrategyID != b.StrategyID {
			return a.StrategyID < b.StrategyID
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		return a.Reason < b.Reason
	})
}

func kindOrder(k EventKind) int {
	switch k {
	case EventStrategyExcluded:
		return 10
	case EventMatchCompleted:
		return 20
	case EventMatchForfeited:
		return 30
	case EventMatchCancelled:
		return 40
	default:
		return 1000
	}
}

// CanonicalJSON returns the canonical encoding without mutating t.
func (t RoundTrace) CanonicalJSON() ([]byte, error) {
	cp := RoundTrace{Round: t.Round, Seed: t.Seed, Events: append([]Event(nil), t.Events...)}
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(cp)
}

// Hash returns the SHA-256 hex of the canonical JSON.
func (t RoundTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeHash(b), nil
}

// MarshalJSON fixes field order.
func (t RoundTrace) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"round":%d,"seed":%d,"events":[`, int(t.Round), t.Seed)
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes field order and omits empty optional fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)

	field := func(name, value string) {
		if value == "" {
			return
		}
		buf.WriteString(`,"` + name + `":`)
		vb, _ := json.Marshal(value)
		buf.Write(vb)
	}
	field("matchId", e.MatchID)
	field("strategyId", string(e.StrategyID))
	field("reason", e.Reason)

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
