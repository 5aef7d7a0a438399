package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gauntlet/internal/game"
	"gauntlet/internal/submission"
)

// errDigestMismatch means a replayed round did not reproduce its stored
// results.
var errDigestMismatch = errors.New("results digest mismatch")

// newVerifyCommand replays a stored round from its seed and the manifest and
// checks that the results digest is reproduced.
func newVerifyCommand(a *app) *cobra.Command {
	var (
		manifest string
		runID    string
		round    int
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay a stored round and check its results digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := game.RoundNumber(round)
			if err := r.Validate(); err != nil {
				return configError("--round", err)
			}
			m, err := submission.Load(manifest)
			if err != nil {
				return configError("manifest", err)
			}
			set, err := m.Freeze(r)
			if err != nil {
				return configError("manifest", err)
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if runID == "" {
				if runID, err = st.LatestRun(r); err != nil {
					return invalidInvocationf("no stored run for round %d: %v", r, err)
				}
			}
			run, err := st.LoadRun(runID)
			if err != nil {
				return invalidInvocationf("%v", err)
			}
			stored, ok := run.Round(r)
			if !ok {
				return invalidInvocationf("run %s has no round %d", runID, r)
			}

			rt, err := a.newRuntime(stored.Seed)
			if err != nil {
				return err
			}
			rep, err := rt.scheduler(a, workers).RunRound(cmd.Context(), "", game.DefaultRoundConfig(r, stored.Seed), set)
			if err != nil {
				return roundFailure("replay", err)
			}
			if rep.Digest != stored.Digest {
				return roundFailure(fmt.Sprintf("run %s round %d", runID, r),
					fmt.Errorf("%w: stored %s, replayed %s", errDigestMismatch, stored.Digest, rep.Digest))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s round %d reproduced: %s\n", runID, r, rep.Digest)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&manifest, "manifest", "", "submissions manifest the run was played from")
	fl.StringVar(&runID, "run", "", "run ID (default: latest run of the round)")
	fl.IntVar(&round, "round", 0, "round to replay")
	fl.IntVar(&workers, "workers", 0, "matches played at once (default: tournament.workers)")
	_ = cmd.MarkFlagRequired("manifest")
	_ = cmd.MarkFlagRequired("round")
	return cmd
}
