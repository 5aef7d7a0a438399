// Package runner invokes a strategy once per turn and reports what happened.
//
// A runner never interprets the strategy's output; it only says whether the
// invocation succeeded and hands back raw stdout. Parsing and penalties are
// the match engine's business.
package runner

import (
	"context"
	"time"

	"gauntlet/internal/game"
	"gauntlet/internal/sandbox"
)

// FailureKind classifies a failed invocation. The empty kind means success.
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureTimeout          FailureKind = "timeout"
	FailureNonZeroExit      FailureKind = "non_zero_exit"
	FailureResourceExceeded FailureKind = "resource_exceeded"
	FailureLaunchError      FailureKind = "launch_error"

	// FailureCancelled is reported when the caller's context ended. It is
	// not a strategy fault and never earns a strike.
	FailureCancelled FailureKind = "cancelled"
)

// PenaltyKind maps a failure onto the penalty recorded in the turn log.
func (k FailureKind) PenaltyKind() game.PenaltyKind {
	switch k {
	case FailureTimeout:
		return game.PenaltyTimeout
	case FailureNonZeroExit:
		return game.PenaltyNonZeroExit
	case FailureResourceExceeded:
		return game.PenaltyResourceExceeded
	case FailureLaunchError:
		return game.PenaltyLaunchError
	default:
		return ""
	}
}

// Outcome is Success(Stdout) when Failure is empty, Failure(kind) otherwise.
type Outcome struct {
	Stdout   []byte
	Failure  FailureKind
	Duration time.Duration
}

// OK reports whether the invocation succeeded.
func (o Outcome) OK() bool { return o.Failure == FailureNone }

// Success builds a successful outcome.
func Success(stdout []byte) Outcome { return Outcome{Stdout: stdout} }

// Failed builds a failed outcome.
func Failed(kind FailureKind) Outcome { return Outcome{Failure: kind} }

// TurnInput is the per-turn input for one side.
//
// Arg is the wire payload passed as argv[1]; nil means no argument (round 1).
// MatchID and Turn identify the invocation and are never sent to external
// programs.
type TurnInput struct {
	Round   game.RoundNumber
	MatchID string
	Turn    int
	Arg     *string
}

// Budget is the resource ceiling of a single invocation.
type Budget struct {
	Timeout        time.Duration
	MemoryBytes    int64
	CPUSeconds     int
	MaxOutputBytes int
}

// Limits converts b for the sandbox.
func (b Budget) Limits() sandbox.Limits {
	return sandbox.Limits{
		Timeout:        b.Timeout,
		MemoryBytes:    b.MemoryBytes,
		CPUSeconds:     b.CPUSeconds,
		MaxOutputBytes: b.MaxOutputBytes,
	}
}

// DefaultBudget is used when nothing is configured.
func DefaultBudget() Budget {
	return Budget{
		Timeout:        2 * time.Second,
		MemoryBytes:    256 << 20,
		CPUSeconds:     2,
		MaxOutputBytes: 4 << 10,
	}
}

// Runner executes one turn of one strategy.
type Runner interface {
	Execute(ctx context.Context, s game.Strategy, in TurnInput, budget Budget) Outcome
}

// Preparer is implemented by runners that can check a strategy is launchable
// before any match starts.
type Preparer interface {
	Prepare(ctx context.Context, s game.Strategy) error
}

// Observer receives one call per finished invocation.
type Observer interface {
	ObserveInvocation(lang game.Language, failure FailureKind, d time.Duration)
}
