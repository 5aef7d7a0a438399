package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gauntlet/internal/submission"
)

func newTournamentCommand(a *app) *cobra.Command {
	var (
		manifest string
		seed     uint64
		workers  int
		out      string
		noStore  bool
	)
	cmd := &cobra.Command{
		Use:   "tournament",
		Short: "Play every round that has submissions, then print overall standings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("seed") {
				seed = a.cfg.Tournament.Seed
			}
			m, err := submission.Load(manifest)
			if err != nil {
				return configError("manifest", err)
			}
			sets, err := m.FreezeAll()
			if err != nil {
				return configError("manifest", err)
			}
			st, err := a.maybeOpenStore(noStore)
			if err != nil {
				return err
			}
			defer st.Close()
			rt, err := a.newRuntime(seed)
			if err != nil {
				return err
			}

			rep, runErr := rt.scheduler(a, workers).RunTournament(cmd.Context(), seed, sets)
			if rep == nil {
				return runErr
			}
			var errs []error
			for i, rr := range rep.Rounds {
				cancelled := runErr != nil && i == len(rep.Rounds)-1
				if err := a.emitRound(cmd, st, rr, "", cancelled); err != nil {
					errs = append(errs, err)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			if err := writeStandings(cmd.OutOrStdout(), "overall  run "+rep.RunID, rep.Overall); err != nil {
				errs = append(errs, err)
			}
			if out != "" {
				if err := writeJSONFile(out, rep); err != nil {
					errs = append(errs, fmt.Errorf("write report: %w", err))
				}
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}
			if runErr != nil {
				return roundFailure("tournament", runErr)
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&manifest, "manifest", "", "submissions manifest (YAML)")
	fl.Uint64Var(&seed, "seed", 0, "tournament seed; each round derives its own")
	fl.IntVar(&workers, "workers", 0, "matches played at once (default: tournament.workers)")
	fl.StringVar(&out, "out", "", "write the full tournament report as JSON to this file")
	fl.BoolVar(&noStore, "no-store", false, "do not persist results")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}
