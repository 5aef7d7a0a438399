package cli

import (
	"github.com/spf13/cobra"

	"gauntlet/internal/api"
	"gauntlet/internal/metrics"
	"gauntlet/internal/runner"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored results over HTTP until interrupted",
		Long: `Serve stored results over HTTP until interrupted.

/metrics exports this process's runtime collectors plus gauntlet_stored_*
gauges computed from the result store on every scrape. Invocation and match
counters of rounds live in the process that played them.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			srv := api.NewServer(st, metrics.New().Registry(), a.log)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	return cmd
}

func newBotsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bots",
		Short: "List the built-in opponent bots",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, b := range runner.Bots() {
				cmd.Println(b)
			}
		},
	}
}
