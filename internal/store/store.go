// Package store persists round reports in an embedded badger database so the
// read-only API can serve them after the run has exited.
//
// Layout:
//
//	run/<run-id>                          Run
//	match/<round>/<run-id>/<match-id>     game.MatchResult
//	standing/<round>/<run-id>             standings.Leaderboard
//	latest/<round>                        run id of the newest saved round
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"gauntlet/internal/game"
	"gauntlet/internal/standings"
	"gauntlet/internal/tournament"
)

// ErrNotFound is returned when a run, round or match is not stored.
var ErrNotFound = errors.New("not found")

// Options configures Open.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     zerolog.Logger
}

// Store is safe for concurrent use.
type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

type badgerLogger struct{ log zerolog.Logger }

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Trace().Msgf(format, args...)
}

// Open opens (creating if needed) the database described by opts.
func Open(opts Options) (*Store, error) {
	var bo badger.Options
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(opts.Path) == "" {
			return nil, errors.New("store path is required")
		}
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		bo = badger.DefaultOptions(opts.Path)
	}
	log := opts.Logger.With().Str("component", "store").Logger()
	bo = bo.WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: log})

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func runKey(runID string) []byte { return []byte("run/" + runID) }

func matchPrefix(round game.RoundNumber, runID string) []byte {
	return []byte(fmt.Sprintf("match/%d/%s/", round, runID))
}

func matchKey(round game.RoundNumber, runID, matchID string) []byte {
	return append(matchPrefix(round, runID), matchID...)
}

func standingKey(round game.RoundNumber, runID string) []byte {
	return []byte(fmt.Sprintf("standing/%d/%s", round, runID))
}

func latestKey(round game.RoundNumber) []byte {
	return []byte(fmt.Sprintf("latest/%d", round))
}

// SaveRound persists a round report. Saving the same round of a run twice
// replaces the earlier copy. A report from a cancelled round is stored with
// status cancelled and does not move the latest pointer.
func (s *Store) SaveRound(rep *tournament.RoundReport, cancelled bool) error {
	if s == nil {
		return errors.New("nil Store")
	}
	if err := validateReport(rep); err != nil {
		return fmt.Errorf("invalid round report: %w", err)
	}
	round := rep.Config.Round

	// Match logs can exceed a single transaction, so they go through a batch
	// before the metadata that makes them visible.
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, m := range rep.Results {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal match %s: %w", m.ID, err)
		}
		if err := wb.Set(matchKey(round, rep.RunID, m.ID), data); err != nil {
			return fmt.Errorf("write match %s: %w", m.ID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush matches: %w", err)
	}

	status := RoundCompleted
	if cancelled {
		status = RoundCancelled
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		var run Run
		if err := getJSON(txn, runKey(rep.RunID), &run); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		run.RunID = rep.RunID
		run.Rounds = upsertRound(run.Rounds, summarize(rep, status))
		if err := setJSON(txn, runKey(rep.RunID), run); err != nil {
			return err
		}
		if err := setJSON(txn, standingKey(round, rep.RunID), rep.Leaderboard()); err != nil {
			return err
		}
		if cancelled {
			return nil
		}
		return txn.Set(latestKey(round), []byte(rep.RunID))
	})
	if err != nil {
		return fmt.Errorf("save round %d of run %s: %w", round, rep.RunID, err)
	}
	s.log.Debug().Str("run_id", rep.RunID).Int("round", int(round)).Int("matches", len(rep.Results)).Msg("round saved")
	return nil
}

func upsertRound(rounds []RoundSummary, rs RoundSummary) []RoundSummary {
	out := rounds[:0:0]
	for _, r := range rounds {
		if r.Round != rs.Round {
			out = append(out, r)
		}
	}
	out = append(out, rs)
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out
}

// LoadRun returns the metadata of a run.
func (s *Store) LoadRun(runID string) (Run, error) {
	var run Run
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, runKey(runID), &run)
	})
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", runID, err)
	}
	return run, nil
}

// ListRunIDs returns every stored run ID in lexicographic order.
func (s *Store) ListRunIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte("run/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), "run/"))
		}
		return nil
	})
	return ids, err
}

// LatestRun returns the ID of the most recently saved completed run of
// round.
func (s *Store) LatestRun(round game.RoundNumber) (string, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(latestKey(round))
		if err != nil {
			return translate(err)
		}
		return item.Value(func(v []byte) error {
			id = string(v)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("latest run of round %d: %w", round, err)
	}
	return id, nil
}

// LoadMatches returns every match of a round ordered by match ID.
func (s *Store) LoadMatches(round game.RoundNumber, runID string) ([]game.MatchResult, error) {
	var out []game.MatchResult
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(standingKey(round, runID)); err != nil {
			return translate(err)
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = matchPrefix(round, runID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var m game.MatchResult
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &m) }); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("matches of round %d run %s: %w", round, runID, err)
	}
	return out, nil
}

// LoadMatch returns a single match.
func (s *Store) LoadMatch(round game.RoundNumber, runID, matchID string) (game.MatchResult, error) {
	var m game.MatchResult
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, matchKey(round, runID, matchID), &m)
	})
	if err != nil {
		return game.MatchResult{}, fmt.Errorf("match %s: %w", matchID, err)
	}
	return m, nil
}

// LoadStandings returns the leaderboard of a round.
func (s *Store) LoadStandings(round game.RoundNumber, runID string) (standings.Leaderboard, error) {
	var lb standings.Leaderboard
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, standingKey(round, runID), &lb)
	})
	if err != nil {
		return standings.Leaderboard{}, fmt.Errorf("standings of round %d run %s: %w", round, runID, err)
	}
	return lb, nil
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return translate(err)
	}
	return item.Value(func(b []byte) error { return json.Unmarshal(b, v) })
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, b)
}

func translate(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}
