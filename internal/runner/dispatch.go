package runner

import (
	"context"
	"fmt"

	"gauntlet/internal/game"
)

// Dispatch routes house bots to an in-process runner and everything else to
// an external one.
type Dispatch struct {
	House    Runner
	External Runner
}

// Execute forwards to the runner for s's language.
func (d *Dispatch) Execute(ctx context.Context, s game.Strategy, in TurnInput, budget Budget) Outcome {
	r := d.route(s)
	if r == nil {
		return Failed(FailureLaunchError)
	}
	return r.Execute(ctx, s, in, budget)
}

// Prepare forwards to the routed runner when it supports preparation.
func (d *Dispatch) Prepare(ctx context.Context, s game.Strategy) error {
	r := d.route(s)
	if r == nil {
		return fmt.Errorf("no runner for language %q", s.Language)
	}
	if p, ok := r.(Preparer); ok {
		return p.Prepare(ctx, s)
	}
	return nil
}

func (d *Dispatch) route(s game.Strategy) Runner {
	if s.Language == game.LanguageHouse {
		return d.House
	}
	return d.External
}
