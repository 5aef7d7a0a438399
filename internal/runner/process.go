package runner

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gauntlet/internal/game"
	"gauntlet/internal/sandbox"
	"gauntlet/internal/toolchain"
)

// ProcessRunner launches a fresh child process for every turn.
type ProcessRunner struct {
	preparer    *toolchain.Preparer
	executor    *sandbox.Executor
	scratchRoot string
	env         map[string]string
	observer    Observer
	logger      zerolog.Logger

	mu        sync.Mutex
	artifacts map[string]*toolchain.Artifact
}

// ProcessOption configures a ProcessRunner.
type ProcessOption func(*ProcessRunner)

// WithScratchRoot sets where per-invocation working directories are created.
func WithScratchRoot(dir string) ProcessOption {
	return func(r *ProcessRunner) { r.scratchRoot = dir }
}

// WithEnv sets the environment allowlist for strategy processes.
func WithEnv(env map[string]string) ProcessOption {
	return func(r *ProcessRunner) { r.env = env }
}

// WithObserver reports every invocation to o.
func WithObserver(o Observer) ProcessOption {
	return func(r *ProcessRunner) { r.observer = o }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) ProcessOption {
	return func(r *ProcessRunner) { r.logger = l }
}

// NewProcessRunner creates a runner backed by p and e.
func NewProcessRunner(p *toolchain.Preparer, e *sandbox.Executor, opts ...ProcessOption) *ProcessRunner {
	r := &ProcessRunner{
		preparer:  p,
		executor:  e,
		env:       map[string]string{"LANG": "C"},
		logger:    zerolog.Nop(),
		artifacts: make(map[string]*toolchain.Artifact),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prepare builds (or finds) the artifact for s.
func (r *ProcessRunner) Prepare(ctx context.Context, s game.Strategy) error {
	_, err := r.artifact(ctx, s)
	return err
}

func (r *ProcessRunner) artifact(ctx context.Context, s game.Strategy) (*toolchain.Artifact, error) {
	r.mu.Lock()
	a, ok := r.artifacts[s.Digest]
	r.mu.Unlock()
	if ok {
		return a, nil
	}

	a, err := r.preparer.Prepare(ctx, s)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.artifacts[s.Digest] = a
	r.mu.Unlock()
	return a, nil
}

// Execute runs one turn in a scratch directory that is removed afterwards.
func (r *ProcessRunner) Execute(ctx context.Context, s game.Strategy, in TurnInput, budget Budget) Outcome {
	start := time.Now()
	out := r.execute(ctx, s, in, budget)
	out.Duration = time.Since(start)
	if r.observer != nil {
		r.observer.ObserveInvocation(s.Language, out.Failure, out.Duration)
	}
	return out
}

func (r *ProcessRunner) execute(ctx context.Context, s game.Strategy, in TurnInput, budget Budget) Outcome {
	if ctx.Err() != nil {
		return Failed(FailureCancelled)
	}

	a, err := r.artifact(ctx, s)
	if err != nil {
		if ctx.Err() != nil {
			return Failed(FailureCancelled)
		}
		r.logger.Warn().Err(err).Str("strategy", string(s.ID)).Msg("strategy could not be prepared")
		return Failed(FailureLaunchError)
	}

	scratch, err := os.MkdirTemp(r.scratchRoot, "turn-")
	if err != nil {
		r.logger.Error().Err(err).Msg("creating scratch dir")
		return Failed(FailureLaunchError)
	}
	defer os.RemoveAll(scratch)

	cmd := a.Command(in.Round, in.Arg)
	cmd.Dir = scratch
	cmd.Env = r.env

	res, err := r.executor.Execute(ctx, cmd, budget.Limits())
	if err != nil {
		var le *sandbox.LaunchError
		if errors.As(err, &le) {
			r.logger.Warn().Err(err).Str("strategy", string(s.ID)).Str("match_id", in.MatchID).Msg("strategy launch failed")
		}
		return Failed(FailureLaunchError)
	}

	if res.Status != sandbox.StatusOK {
		r.logger.Debug().
			Str("strategy", string(s.ID)).
			Str("match_id", in.MatchID).
			Int("turn", in.Turn).
			Str("kind", res.Status.String()).
			Int("exit_code", res.ExitCode).
			Str("signal", res.Signal).
			Msg("strategy invocation failed")
	}

	switch res.Status {
	case sandbox.StatusOK:
		return Success(res.Stdout)
	case sandbox.StatusTimeout:
		return Failed(FailureTimeout)
	case sandbox.StatusResourceExceeded:
		return Failed(FailureResourceExceeded)
	case sandbox.StatusCancelled:
		return Failed(FailureCancelled)
	default:
		return Failed(FailureNonZeroExit)
	}
}
