package trace

import "github.com/rs/zerolog"

// LogSink writes events to a zerolog logger. Completed matches are logged at
// debug, cancellations at info, and forfeits and exclusions at warn.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink returns a sink that logs to l.
func NewLogSink(l zerolog.Logger) *LogSink {
	return &LogSink{log: l.With().Str("component", "trace").Logger()}
}

func (s *LogSink) Record(event Event) {
	var ev *zerolog.Event
	switch event.Kind {
	case EventMatchCompleted:
		ev = s.log.Debug()
	case EventMatchCancelled:
		ev = s.log.Info()
	default:
		ev = s.log.Warn()
	}
	if event.MatchID != "" {
		ev = ev.Str("match_id", event.MatchID)
	}
	if event.StrategyID != "" {
		ev = ev.Str("strategy", string(event.StrategyID))
	}
	if event.Reason != "" {
		ev = ev.Str("reason", event.Reason)
	}
	ev.Msg(string(event.Kind))
}
