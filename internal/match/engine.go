// Package match drives a single pairing from the first turn to a result.
package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"gauntlet/internal/game"
	"gauntlet/internal/protocol"
	"gauntlet/internal/runner"
)

// Engine plays matches. One Engine may play many matches concurrently; all
// per-match state lives in Play.
type Engine struct {
	runner    runner.Runner
	budget    runner.Budget
	protoOpts []protocol.Option
	logger    zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithBudget sets the per-invocation resource budget.
func WithBudget(b runner.Budget) Option {
	return func(e *Engine) { e.budget = b }
}

// WithProtocolOptions passes options to every protocol engine created.
func WithProtocolOptions(opts ...protocol.Option) Option {
	return func(e *Engine) { e.protoOpts = append(e.protoOpts, opts...) }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine that invokes strategies through r.
func NewEngine(r runner.Runner, opts ...Option) *Engine {
	e := &Engine{runner: r, budget: runner.DefaultBudget(), logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Play runs a, b through cfg.TurnCount turns.
//
// Strategy failures never surface as errors: they become forced defections,
// strikes and forfeits inside the result. Cancellation of ctx yields a
// result forfeited by both sides with reason "cancelled". An error is
// returned only for an invalid configuration.
func (e *Engine) Play(ctx context.Context, cfg game.RoundConfig, a, b game.Strategy) (game.MatchResult, error) {
	if err := cfg.Validate(); err != nil {
		return game.MatchResult{}, err
	}
	if a.ID == b.ID {
		return game.MatchResult{}, fmt.Errorf("self-play is not allowed: %q", a.ID)
	}
	engine, err := protocol.New(cfg.Round, protocol.MatchSeed(cfg.Seed, a.ID, b.ID), e.protoOpts...)
	if err != nil {
		return game.MatchResult{}, err
	}

	p := &play{
		Engine:   e,
		cfg:      cfg,
		players:  [2]game.Strategy{a, b},
		protocol: engine,
		history:  protocol.NewHistory(cfg.Round),
		machine:  newMachine(),
		result: game.MatchResult{
			ID:      game.MatchID(cfg.Round, a.ID, b.ID),
			Round:   cfg.Round,
			Players: [2]game.StrategyID{a.ID, b.ID},
			Turns:   make([]game.TurnRecord, 0, cfg.TurnCount),
		},
	}
	p.log = e.logger.With().Str("match_id", p.result.ID).Int("round", int(cfg.Round)).Logger()
	return p.run(ctx)
}

// Cancelled returns the result recorded for a match that never started.
func Cancelled(round game.RoundNumber, a, b game.StrategyID) game.MatchResult {
	return game.MatchResult{
		ID:          game.MatchID(round, a, b),
		Round:       round,
		Players:     [2]game.StrategyID{a, b},
		Turns:       []game.TurnRecord{},
		Status:      game.StatusForfeited,
		ForfeitedBy: game.SideBoth,
		Reason:      game.ReasonCancelled,
	}
}

// play is the state of one match in progress.
type play struct {
	*Engine
	cfg      game.RoundConfig
	players  [2]game.Strategy
	protocol protocol.Engine
	history  *protocol.History
	machine  *machine
	strikes  [2]int
	result   game.MatchResult
	log      zerolog.Logger
}

// errCancelled stops the turn loop without recording the interrupted turn.
var errCancelled = errors.New("match cancelled")

func (p *play) run(ctx context.Context) (game.MatchResult, error) {
	for turn := 1; turn <= p.cfg.TurnCount; turn++ {
		if err := p.machine.transition(StateTurn); err != nil {
			return game.MatchResult{}, err
		}
		forfeit, err := p.turn(ctx, turn)
		if errors.Is(err, errCancelled) {
			return p.forfeit(game.SideBoth, game.ReasonCancelled)
		}
		if err != nil {
			return game.MatchResult{}, err
		}
		if forfeit != nil {
			return p.forfeit(forfeit.side, forfeit.reason)
		}
	}
	if err := p.machine.transition(StateFinalized); err != nil {
		return game.MatchResult{}, err
	}
	p.result.Status = game.StatusCompleted
	return p.result, nil
}

type forfeiture struct {
	side   game.Side
	reason string
}

// turn plays one turn. It returns a forfeiture when the turn ended the match.
func (p *play) turn(ctx context.Context, turn int) (*forfeiture, error) {
	if ctx.Err() != nil {
		return nil, errCancelled
	}

	var outs [2]runner.Outcome
	var g errgroup.Group
	for i := range p.players {
		in := runner.TurnInput{
			Round:   p.cfg.Round,
			MatchID: p.result.ID,
			Turn:    turn,
			Arg:     p.history.Input(i),
		}
		g.Go(func() error {
			outs[i] = p.runner.Execute(ctx, p.players[i], in, p.budget)
			if outs[i].Failure == runner.FailureCancelled {
				return errCancelled
			}
			return nil
		})
	}
	// Neither output is looked at until both invocations have returned.
	if err := g.Wait(); err != nil || ctx.Err() != nil {
		return nil, errCancelled
	}

	rec := game.TurnRecord{Turn: turn}
	var (
		moves     [2]game.Move
		hints     [2]game.Hint
		launchErr [2]bool
	)
	for i, out := range outs {
		m, h, kind := p.decode(out)
		moves[i], hints[i] = m, h
		if kind == "" {
			continue
		}
		p.strikes[i]++
		rec.Penalties = append(rec.Penalties, game.Penalty{Player: i, Kind: kind, Strike: p.strikes[i]})
		launchErr[i] = kind == game.PenaltyLaunchError
		p.log.Debug().
			Str("strategy", string(p.players[i].ID)).
			Int("turn", turn).
			Str("kind", string(kind)).
			Int("strike", p.strikes[i]).
			Msg("turn penalized")
	}

	var hintPtr *[2]game.Hint
	if p.cfg.Round == game.RoundOracle {
		hintPtr = &hints
		rec.Hints = &hints
	}
	obs := p.protocol.Transform(moves, hintPtr)
	rec.Actual = moves
	rec.Observed = obs.Observed
	rec.ObservedHints = obs.ObservedHints
	rec.Payoff = obs.Payoff

	p.result.Turns = append(p.result.Turns, rec)
	p.result.Score[0] += rec.Payoff[0]
	p.result.Score[1] += rec.Payoff[1]
	p.history.Append(rec)

	if side, ok := sideOf(launchErr); ok {
		return &forfeiture{side: side, reason: game.ReasonLaunchError}, nil
	}
	struckOut := [2]bool{p.strikes[0] >= game.MaxStrikes, p.strikes[1] >= game.MaxStrikes}
	if side, ok := sideOf(struckOut); ok {
		return &forfeiture{side: side, reason: game.ReasonStrikes}, nil
	}
	return nil, nil
}

// decode turns a runner outcome into a move and hint. A non-empty penalty
// kind means the move and hint were forced to Defect.
func (p *play) decode(out runner.Outcome) (game.Move, game.Hint, game.PenaltyKind) {
	if !out.OK() {
		return game.Defect, game.Defect, out.Failure.PenaltyKind()
	}
	if p.cfg.Round == game.RoundOracle {
		m, h, err := game.ParseMoveHintOutput(out.Stdout)
		if err != nil {
			return game.Defect, game.Defect, game.PenaltyMalformedOutput
		}
		return m, h, ""
	}
	m, err := game.ParseMoveOutput(out.Stdout)
	if err != nil {
		return game.Defect, game.Defect, game.PenaltyMalformedOutput
	}
	return m, game.Defect, ""
}

func (p *play) forfeit(side game.Side, reason string) (game.MatchResult, error) {
	if err := p.machine.transition(StateForfeited); err != nil {
		return game.MatchResult{}, err
	}
	p.result.Status = game.StatusForfeited
	p.result.ForfeitedBy = side
	p.result.Reason = reason

	ev := p.log.Warn()
	if reason == game.ReasonCancelled {
		ev = p.log.Info()
	}
	ev.Str("forfeited_by", string(side)).
		Str("reason", reason).
		Int("turns", len(p.result.Turns)).
		Msg("match forfeited")
	return p.result, nil
}

func sideOf(flags [2]bool) (game.Side, bool) {
	switch {
	case flags[0] && flags[1]:
		return game.SideBoth, true
	case flags[0]:
		return game.SideA, true
	case flags[1]:
		return game.SideB, true
	default:
		return "", false
	}
}
