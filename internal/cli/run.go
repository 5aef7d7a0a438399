package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gauntlet/internal/game"
	"gauntlet/internal/store"
	"gauntlet/internal/submission"
	"gauntlet/internal/tournament"
)

type runFlags struct {
	manifest string
	round    int
	seed     uint64
	seedSet  bool
	workers  int
	out      string
	noStore  bool
}

func newRunCommand(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play one round between the strategies of a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.seedSet = cmd.Flags().Changed("seed")
			return a.runRound(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.manifest, "manifest", "", "submissions manifest (YAML)")
	fl.IntVar(&f.round, "round", 0, "round to play: 1 noise, 2 fog-of-war, 3 oracle hints")
	fl.Uint64Var(&f.seed, "seed", 0, "round seed (default: tournament.seed from config)")
	fl.IntVar(&f.workers, "workers", 0, "matches played at once (default: tournament.workers)")
	fl.StringVar(&f.out, "out", "", "write the full round report as JSON to this file")
	fl.BoolVar(&f.noStore, "no-store", false, "do not persist results")
	_ = cmd.MarkFlagRequired("manifest")
	_ = cmd.MarkFlagRequired("round")
	return cmd
}

func (a *app) runRound(cmd *cobra.Command, f runFlags) error {
	round := game.RoundNumber(f.round)
	if err := round.Validate(); err != nil {
		return configError("--round", err)
	}
	m, err := submission.Load(f.manifest)
	if err != nil {
		return configError("manifest", err)
	}
	set, err := m.Freeze(round)
	if err != nil {
		return configError("manifest", err)
	}
	seed := a.cfg.Tournament.Seed
	if f.seedSet {
		seed = f.seed
	}

	st, err := a.maybeOpenStore(f.noStore)
	if err != nil {
		return err
	}
	defer st.Close()

	rt, err := a.newRuntime(seed)
	if err != nil {
		return err
	}
	rep, runErr := rt.scheduler(a, f.workers).RunRound(cmd.Context(), "", game.DefaultRoundConfig(round, seed), set)
	if rep == nil {
		return runErr
	}
	if err := a.emitRound(cmd, st, rep, f.out, runErr != nil); err != nil {
		return err
	}
	if runErr != nil {
		return roundFailure(fmt.Sprintf("round %d", round), runErr)
	}
	return nil
}

// maybeOpenStore returns a nil store when persistence is disabled.
func (a *app) maybeOpenStore(disabled bool) (*store.Store, error) {
	if disabled {
		return nil, nil
	}
	return a.openStore()
}

func (a *app) emitRound(cmd *cobra.Command, st *store.Store, rep *tournament.RoundReport, out string, cancelled bool) error {
	var errs []error
	if st != nil {
		if err := st.SaveRound(rep, cancelled); err != nil {
			errs = append(errs, err)
		}
	}
	if out != "" {
		if err := writeJSONFile(out, rep); err != nil {
			errs = append(errs, fmt.Errorf("write report: %w", err))
		}
	}
	title := fmt.Sprintf("round %d (%s)  run %s  digest %s", rep.Config.Round, rep.Config.Round.Name(), rep.RunID, rep.Digest)
	if err := writeStandings(cmd.OutOrStdout(), title, rep.Standings); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
