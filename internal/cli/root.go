// Package cli implements the gauntlet command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gauntlet/internal/config"
	"gauntlet/internal/logging"
)

type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
}

// app is the state shared by every subcommand once the root has loaded
// configuration.
type app struct {
	stdout io.Writer
	stderr io.Writer
	flags  globalFlags
	cfg    *config.Config
	log    zerolog.Logger
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "gauntlet",
		Short:         "Run iterated prisoner's dilemma tournaments between submitted programs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default: ./gauntlet.yaml, ~/.config/gauntlet, /etc/gauntlet)")
	pf.StringVar(&a.flags.envFile, "env-file", "", "dotenv file loaded before the environment is read (default: ./.env if present)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "override log.level")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "override log.format (json|console)")

	root.AddCommand(
		newRunCommand(a),
		newTournamentCommand(a),
		newArenaCommand(a),
		newServeCommand(a),
		newVerifyCommand(a),
		newBotsCommand(),
	)
	return root
}

func (a *app) load() error {
	if err := config.LoadEnvFile(a.flags.envFile); err != nil {
		return configError("env file", err)
	}
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return configError("configuration", err)
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = strings.ToLower(a.flags.logLevel)
	}
	if a.flags.logFormat != "" {
		cfg.Log.Format = strings.ToLower(a.flags.logFormat)
	}
	log, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: a.stderr})
	if err != nil {
		return invalidInvocationf("%v", err)
	}
	a.cfg = cfg
	a.log = log
	return nil
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "gauntlet:", err)
	}
	code := ExitCode(err)
	if code == ExitInternalError && isUsageError(err) {
		code = ExitInvalidInvocation
	}
	return code
}

// isUsageError recognises cobra's own argument errors, which are plain
// errors rather than flag errors.
func isUsageError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "accepts ") ||
		strings.Contains(msg, "required flag")
}
