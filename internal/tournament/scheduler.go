// Package tournament schedules the round-robin of a round and collects its
// results.
package tournament

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"gauntlet/internal/game"
	"gauntlet/internal/match"
	"gauntlet/internal/runner"
	"gauntlet/internal/standings"
	"gauntlet/internal/trace"
)

// Observer receives scheduling metrics. metrics.Collectors implements it.
type Observer interface {
	MatchStarted()
	MatchFinished(m game.MatchResult, d time.Duration)
	StrategyExcluded(round game.RoundNumber)
	RoundFinished(round game.RoundNumber, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) MatchStarted() {}
func (nopObserver) MatchFinished(game.MatchResult, time.Duration) {}
func (nopObserver) StrategyExcluded(game.RoundNumber) {}
func (nopObserver) RoundFinished(game.RoundNumber, time.Duration) {}

// Exclusion records a strategy removed from a round before play.
type Exclusion struct {
	StrategyID game.StrategyID `json:"strategy_id"`
	Reason     string          `json:"reason"`
}

// RoundReport is everything a round produced.
type RoundReport struct {
	RunID      string                    `json:"run_id"`
	Config     game.RoundConfig          `json:"config"`
	Results    []game.MatchResult        `json:"results"`
	Excluded   []Exclusion               `json:"excluded"`
	Standings  []standings.RoundStanding `json:"standings"`
	Digest     string                    `json:"digest"`
	TraceHash  string                    `json:"trace_hash"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
}

// Leaderboard returns the report's standings as a leaderboard snapshot.
func (r *RoundReport) Leaderboard() standings.Leaderboard {
	return standings.Leaderboard{Round: r.Config.Round, Standings: r.Standings, ResultsDigest: r.Digest}
}

// ExcludedIDs returns the excluded strategy identities.
func (r *RoundReport) ExcludedIDs() []game.StrategyID {
	out := make([]game.StrategyID, len(r.Excluded))
	for i, e := range r.Excluded {
		out[i] = e.StrategyID
	}
	return out
}

// Scheduler runs rounds. The worker count affects throughput only; results
// are identical for any value.
type Scheduler struct {
	engine   *match.Engine
	runner   runner.Runner
	workers  int
	observer Observer
	sink     trace.Sink
	logger   zerolog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the maximum number of matches played at once.
func WithWorkers(n int) Option {
	return func(s *Scheduler) { s.workers = n }
}

// WithObserver reports scheduling metrics to o.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithSink forwards trace events to sink in addition to the round trace.
func WithSink(sink trace.Sink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a scheduler that plays matches on engine. r is used
// for preflight checks and should be the runner engine invokes.
func NewScheduler(engine *match.Engine, r runner.Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		engine:   engine,
		runner:   r,
		workers:  1,
		observer: nopObserver{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

// RunRound plays every pairing of set under cfg.
//
// A configuration problem returns a *ConfigError and no report. An unfrozen
// set returns ErrNotFrozen. When ctx is cancelled the report is still
// complete: unfinished matches are forfeited by both sides with reason
// "cancelled", and the returned error wraps ctx.Err().
func (s *Scheduler) RunRound(ctx context.Context, runID string, cfg game.RoundConfig, set *game.SubmissionSet) (*RoundReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Field: "round", Err: err}
	}
	if set == nil {
		return nil, configErrorf("submissions", "no submission set for round %d", cfg.Round)
	}
	if set.Round != cfg.Round {
		return nil, configErrorf("submissions", "set is for round %d, config is for round %d", set.Round, cfg.Round)
	}
	if !set.Frozen() {
		return nil, fmt.Errorf("round %d: %w", cfg.Round, ErrNotFrozen)
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	log := s.logger.With().Str("run_id", runID).Int("round", int(cfg.Round)).Logger()
	report := &RoundReport{RunID: runID, Config: cfg, StartedAt: time.Now().UTC()}
	rec := trace.NewRecorder()
	log.Info().Int("strategies", set.Len()).Int("workers", s.workers).Uint64("seed", cfg.Seed).Msg("round started")

	eligible := s.preflight(ctx, cfg.Round, set, report, rec, log)

	pairs := Pairs(eligibleIDs(eligible))
	results := make([]game.MatchResult, len(pairs))
	p := pool.New().WithMaxGoroutines(s.workers)
	for i, pair := range pairs {
		p.Go(func() {
			results[i] = s.playOne(ctx, cfg, eligible[pair.A], eligible[pair.B], log)
			s.record(rec, trace.MatchEvent(results[i]))
		})
	}
	p.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	report.Results = results
	report.Standings = standings.SummarizeWithExclusions(results, report.ExcludedIDs())
	report.FinishedAt = time.Now().UTC()

	digest, err := trace.Digest(results)
	if err != nil {
		return nil, fmt.Errorf("digesting results: %w", err)
	}
	report.Digest = digest
	if report.TraceHash, err = rec.Trace(cfg.Round, cfg.Seed).Hash(); err != nil {
		return nil, fmt.Errorf("hashing trace: %w", err)
	}

	elapsed := report.FinishedAt.Sub(report.StartedAt)
	s.observer.RoundFinished(cfg.Round, elapsed)
	log.Info().
		Int("matches", len(results)).
		Int("excluded", len(report.Excluded)).
		Str("digest", digest).
		Dur("elapsed", elapsed).
		Msg("round finished")

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("round %d cancelled: %w", cfg.Round, err)
	}
	return report, nil
}

// preflight prepares every strategy. Those that cannot be launched are
// excluded from the round with a zero score.
func (s *Scheduler) preflight(ctx context.Context, round game.RoundNumber, set *game.SubmissionSet, report *RoundReport, rec *trace.Recorder, log zerolog.Logger) map[game.StrategyID]game.Strategy {
	all := set.Strategies()
	eligible := make(map[game.StrategyID]game.Strategy, len(all))
	prep, ok := s.runner.(runner.Preparer)
	if !ok {
		for _, st := range all {
			eligible[st.ID] = st
		}
		return eligible
	}

	errs := make([]error, len(all))
	p := pool.New().WithMaxGoroutines(s.workers)
	for i, st := range all {
		p.Go(func() { errs[i] = prep.Prepare(ctx, st) })
	}
	p.Wait()

	for i, st := range all {
		err := errs[i]
		// Cancellation is not the strategy's fault; its matches will be
		// recorded as cancelled instead.
		if err == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
			eligible[st.ID] = st
			continue
		}
		report.Excluded = append(report.Excluded, Exclusion{StrategyID: st.ID, Reason: game.ReasonLaunchError})
		s.record(rec, trace.Event{Kind: trace.EventStrategyExcluded, StrategyID: st.ID, Reason: game.ReasonLaunchError})
		s.observer.StrategyExcluded(round)
		log.Warn().Err(err).Str("strategy", string(st.ID)).Msg("strategy excluded from round")
	}
	return eligible
}

func (s *Scheduler) playOne(ctx context.Context, cfg game.RoundConfig, a, b game.Strategy, log zerolog.Logger) game.MatchResult {
	if ctx.Err() != nil {
		return match.Cancelled(cfg.Round, a.ID, b.ID)
	}
	s.observer.MatchStarted()
	start := time.Now()
	res, err := s.engine.Play(ctx, cfg, a, b)
	if err != nil {
		// cfg was validated up front; this only fires on a programming error.
		log.Error().Err(err).Str("match_id", game.MatchID(cfg.Round, a.ID, b.ID)).Msg("match could not be played")
		res = match.Cancelled(cfg.Round, a.ID, b.ID)
	}
	s.observer.MatchFinished(res, time.Since(start))
	return res
}

func (s *Scheduler) record(rec *trace.Recorder, ev trace.Event) {
	rec.Record(ev)
	trace.SafeRecord(s.sink, ev)
}

func eligibleIDs(m map[game.StrategyID]game.Strategy) []game.StrategyID {
	ids := make([]game.StrategyID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return ids
}
