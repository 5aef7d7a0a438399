package trace

import (
	"sync"

	"gauntlet/internal/game"
)

// Sink receives events. Record must not panic or block for long; callers
// assume it may be a no-op.
type Sink interface {
	Record(event Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(Event) {}

// SafeRecord records an event and swallows any panic from a buggy sink.
func SafeRecord(s Sink, event Event) {
	if s == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.Record(event)
}

// Recorder is a concurrency-safe in-memory sink. Ordering is fixed after
// collection, so lock contention never shows in the output.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(event Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Snapshot returns a copy of the events recorded so far.
func (r *Recorder) Snapshot() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Trace builds a canonical RoundTrace from the recorded events.
func (r *Recorder) Trace(round game.RoundNumber, seed uint64) RoundTrace {
	tr := RoundTrace{Round: round, Seed: seed, Events: r.Snapshot()}
	tr.Canonicalize()
	return tr
}

// MatchEvent returns the event describing a finished match.
func MatchEvent(m game.MatchResult) Event {
	switch {
	case m.Status == game.StatusCompleted:
		return Event{Kind: EventMatchCompleted, MatchID: m.ID}
	case m.Reason == game.ReasonCancelled:
		return Event{Kind: EventMatchCancelled, MatchID: m.ID, Reason: m.Reason}
	default:
		ev := Event{Kind: EventMatchForfeited, MatchID: m.ID, Reason: m.Reason}
		switch m.ForfeitedBy {
		case game.SideA:
			ev.StrategyID = m.Players[0]
		case game.SideB:
			ev.StrategyID = m.Players[1]
		}
		return ev
	}
}
