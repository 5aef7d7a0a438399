// Package submission loads strategy manifests and freezes them into the
// per-round submission sets the scheduler plays.
package submission

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"gauntlet/internal/game"
)

// Entry is one submission as written in a manifest.
//
// ID defaults to Owner. Exactly one of Source and SourceFile must be set;
// SourceFile is resolved relative to the manifest.
type Entry struct {
	ID           string `yaml:"id,omitempty"`
	Owner        string `yaml:"owner"`
	Language     string `yaml:"language"`
	Source       string `yaml:"source,omitempty"`
	SourceFile   string `yaml:"source_file,omitempty"`
	Round        int    `yaml:"round"`
	CarryForward bool   `yaml:"carry_forward,omitempty"`
}

// Manifest is the decoded form of a submissions file.
type Manifest struct {
	Submissions []Entry `yaml:"submissions"`

	entries []resolved
}

type resolved struct {
	round        game.RoundNumber
	carryForward bool
	strategy     game.Strategy
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(b, filepath.Dir(path))
}

// Parse decodes a manifest. Unknown fields and trailing documents are
// rejected; source_file entries are read from baseDir.
func Parse(data []byte, baseDir string) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("parse manifest: empty document")
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	var trailing any
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, errors.New("parse manifest: trailing document")
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Submissions) == 0 {
		return nil, errors.New("parse manifest: no submissions")
	}
	if err := m.resolve(baseDir); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) resolve(baseDir string) error {
	var errs []error
	seen := make(map[string]bool)
	for i, e := range m.Submissions {
		r, err := e.resolve(baseDir)
		if err != nil {
			errs = append(errs, fmt.Errorf("submission %d: %w", i, err))
			continue
		}
		key := fmt.Sprintf("%d/%s", r.round, r.strategy.ID)
		if seen[key] {
			errs = append(errs, fmt.Errorf("submission %d: %w: %q in round %d", i, game.ErrDuplicateID, r.strategy.ID, r.round))
			continue
		}
		seen[key] = true
		m.entries = append(m.entries, r)
	}
	return errors.Join(errs...)
}

func (e Entry) resolve(baseDir string) (resolved, error) {
	var errs []error
	owner := strings.TrimSpace(e.Owner)
	if owner == "" {
		errs = append(errs, errors.New("owner is required"))
	}
	id := game.StrategyID(strings.TrimSpace(e.ID))
	if id == "" {
		id = game.StrategyID(owner)
	}
	if owner != "" || e.ID != "" {
		if err := game.ValidateID(id); err != nil {
			errs = append(errs, err)
		}
	}
	lang, err := game.ParseLanguage(e.Language)
	if err != nil {
		errs = append(errs, err)
	}
	round := game.RoundNumber(e.Round)
	if err := round.Validate(); err != nil {
		errs = append(errs, err)
	}

	source := e.Source
	switch {
	case e.Source != "" && e.SourceFile != "":
		errs = append(errs, errors.New("source and source_file are mutually exclusive"))
	case e.SourceFile != "":
		path := e.SourceFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read source_file: %w", err))
		}
		source = string(b)
	case strings.TrimSpace(e.Source) == "":
		errs = append(errs, errors.New("source or source_file is required"))
	}

	if len(errs) > 0 {
		return resolved{}, errors.Join(errs...)
	}
	return resolved{
		round:        round,
		carryForward: e.CarryForward,
		strategy:     game.NewStrategy(id, owner, lang, source),
	}, nil
}

// Rounds returns the rounds that would have at least one strategy after
// carry-forward, in play order.
func (m *Manifest) Rounds() []game.RoundNumber {
	var out []game.RoundNumber
	for _, r := range game.Rounds {
		if len(m.selectFor(r)) > 0 {
			out = append(out, r)
		}
	}
	return out
}

// Freeze builds the locked submission set for round.
//
// A strategy submitted for round is used as is. Otherwise its most recent
// earlier submission is used when that submission was marked carry_forward.
func (m *Manifest) Freeze(round game.RoundNumber) (*game.SubmissionSet, error) {
	if err := round.Validate(); err != nil {
		return nil, err
	}
	set := game.NewSubmissionSet(round)
	for _, st := range m.selectFor(round) {
		if err := set.Add(st); err != nil {
			return nil, err
		}
	}
	set.Freeze()
	return set, nil
}

// FreezeAll freezes every round returned by Rounds.
func (m *Manifest) FreezeAll() (map[game.RoundNumber]*game.SubmissionSet, error) {
	sets := make(map[game.RoundNumber]*game.SubmissionSet)
	for _, r := range m.Rounds() {
		set, err := m.Freeze(r)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", r, err)
		}
		sets[r] = set
	}
	return sets, nil
}

func (m *Manifest) selectFor(round game.RoundNumber) []game.Strategy {
	latest := make(map[game.StrategyID]resolved)
	for _, e := range m.entries {
		if e.round > round {
			continue
		}
		if cur, ok := latest[e.strategy.ID]; ok && cur.round >= e.round {
			continue
		}
		latest[e.strategy.ID] = e
	}

	out := make([]game.Strategy, 0, len(latest))
	for _, e := range latest {
		if e.round == round || e.carryForward {
			out = append(out, e.strategy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
