package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gauntlet/internal/game"
	"gauntlet/internal/tournament"
)

// RoundStatus is the terminal state of a persisted round.
type RoundStatus string

const (
	RoundCompleted RoundStatus = "completed"
	RoundCancelled RoundStatus = "cancelled"
)

// Run is the persistent metadata of one run. A run holds one round per
// `gauntlet run` invocation and up to three for a tournament.
type Run struct {
	RunID  string         `json:"run_id"`
	Rounds []RoundSummary `json:"rounds"`
}

// Round returns the summary for r.
func (r Run) Round(round game.RoundNumber) (RoundSummary, bool) {
	for _, s := range r.Rounds {
		if s.Round == round {
			return s, true
		}
	}
	return RoundSummary{}, false
}

// RoundSummary describes a stored round without its match logs.
type RoundSummary struct {
	Round      game.RoundNumber       `json:"round"`
	Seed       uint64                 `json:"seed"`
	Status     RoundStatus            `json:"status"`
	Matches    int                    `json:"matches"`
	Excluded   []tournament.Exclusion `json:"excluded"`
	Digest     string                 `json:"digest"`
	TraceHash  string                 `json:"trace_hash"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

func summarize(rep *tournament.RoundReport, status RoundStatus) RoundSummary {
	excluded := rep.Excluded
	if excluded == nil {
		excluded = []tournament.Exclusion{}
	}
	return RoundSummary{
		Round:      rep.Config.Round,
		Seed:       rep.Config.Seed,
		Status:     status,
		Matches:    len(rep.Results),
		Excluded:   excluded,
		Digest:     rep.Digest,
		TraceHash:  rep.TraceHash,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
	}
}

func validateReport(rep *tournament.RoundReport) error {
	if rep == nil {
		return errors.New("report is required")
	}
	var errs []error
	if strings.TrimSpace(rep.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	} else if strings.Contains(rep.RunID, "/") {
		errs = append(errs, fmt.Errorf("run_id %q contains '/'", rep.RunID))
	}
	if err := rep.Config.Round.Validate(); err != nil {
		errs = append(errs, err)
	}
	if rep.Digest == "" {
		errs = append(errs, errors.New("digest is required"))
	}
	seen := make(map[string]bool, len(rep.Results))
	for _, m := range rep.Results {
		if m.Round != rep.Config.Round {
			errs = append(errs, fmt.Errorf("match %s belongs to round %d", m.ID, m.Round))
		}
		if seen[m.ID] {
			errs = append(errs, fmt.Errorf("duplicate match %s", m.ID))
		}
		seen[m.ID] = true
	}
	return errors.Join(errs...)
}
