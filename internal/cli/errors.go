package cli

import (
	"context"
	"errors"
	"fmt"

	"gauntlet/internal/game"
	"gauntlet/internal/tournament"
)

const (
	ExitSuccess           = 0
	ExitRoundFailure      = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// InvocationError carries the exit code the process should terminate with.
type InvocationError struct {
	ExitCode int
	Message  string
	Err      error
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *InvocationError) Unwrap() error { return e.Err }

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func configError(msg string, err error) error {
	return &InvocationError{ExitCode: ExitConfigError, Message: msg, Err: err}
}

func roundFailure(msg string, err error) error {
	return &InvocationError{ExitCode: ExitRoundFailure, Message: msg, Err: err}
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	switch {
	case errors.Is(err, tournament.ErrConfig), errors.Is(err, game.ErrInvalidRound):
		return ExitConfigError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitRoundFailure
	default:
		return ExitInternalError
	}
}
