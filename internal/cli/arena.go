package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gauntlet/internal/game"
	"gauntlet/internal/runner"
)

const (
	arenaPlayer game.StrategyID = "submission"
	arenaBot    game.StrategyID = "house"
)

type arenaFlags struct {
	source   string
	language string
	round    int
	bot      string
	turns    int
	seed     uint64
	asJSON   bool
}

// newArenaCommand plays a single match between a local program and a house
// bot, for trying a strategy before submitting it.
func newArenaCommand(a *app) *cobra.Command {
	var f arenaFlags
	cmd := &cobra.Command{
		Use:   "arena",
		Short: "Play one match between a source file and a built-in bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.arena(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.source, "source", "", "strategy source file")
	fl.StringVar(&f.language, "language", "", "c, cpp or python (default: from the file extension)")
	fl.IntVar(&f.round, "round", 1, "protocol round 1-3")
	fl.StringVar(&f.bot, "bot", runner.BotTitForTat, "opponent: "+strings.Join(runner.Bots(), ", "))
	fl.IntVar(&f.turns, "turns", game.TurnCount, "number of turns")
	fl.Uint64Var(&f.seed, "seed", 1, "match seed")
	fl.BoolVar(&f.asJSON, "json", false, "print the full match view as JSON")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func (a *app) arena(cmd *cobra.Command, f arenaFlags) error {
	round := game.RoundNumber(f.round)
	if err := round.Validate(); err != nil {
		return configError("--round", err)
	}
	if f.turns <= 0 {
		return invalidInvocationf("--turns must be > 0")
	}
	lang, err := arenaLanguage(f.language, f.source)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(f.source)
	if err != nil {
		return invalidInvocationf("read --source: %v", err)
	}

	rt, err := a.newRuntime(f.seed)
	if err != nil {
		return err
	}
	player := game.NewStrategy(arenaPlayer, "local", lang, string(src))
	bot := runner.HouseBot(arenaBot, f.bot)
	for _, s := range []game.Strategy{player, bot} {
		if err := rt.runner.Prepare(cmd.Context(), s); err != nil {
			return roundFailure(fmt.Sprintf("prepare %s", s.ID), err)
		}
	}

	cfg := game.RoundConfig{Round: round, TurnCount: f.turns, Seed: f.seed}
	res, err := rt.engine.Play(cmd.Context(), cfg, bot, player)
	if err != nil {
		return err
	}
	view, err := res.Perspective(arenaPlayer)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "round %d (%s) vs %s: you %d, bot %d, %s",
			round, round.Name(), f.bot, view.YourScore, view.OpponentScore, view.Status)
		if view.Reason != "" {
			fmt.Fprintf(out, " (%s)", view.Reason)
		}
		fmt.Fprintln(out)
		for _, t := range view.Turns {
			line := fmt.Sprintf("%4d  you %s  bot %s  +%d/+%d", t.Turn, t.YourMove, t.OpponentMove, t.YourPayoff, t.OpponentPayoff)
			if t.Penalty != nil {
				line += fmt.Sprintf("  penalty %s (strike %d)", t.Penalty.Kind, t.Penalty.Strike)
			}
			fmt.Fprintln(out, line)
		}
	}
	if err := cmd.Context().Err(); err != nil {
		return roundFailure("arena", err)
	}
	return nil
}

func arenaLanguage(flag, path string) (game.Language, error) {
	if flag == "" {
		switch {
		case strings.HasSuffix(path, ".py"):
			flag = "python"
		case strings.HasSuffix(path, ".c"):
			flag = "c"
		case strings.HasSuffix(path, ".cpp"), strings.HasSuffix(path, ".cc"), strings.HasSuffix(path, ".cxx"):
			flag = "cpp"
		default:
			return "", invalidInvocationf("cannot infer language of %q; pass --language", path)
		}
	}
	lang, err := game.ParseLanguage(flag)
	if err != nil {
		return "", invalidInvocationf("%v", err)
	}
	if lang == game.LanguageHouse {
		return "", invalidInvocationf("--language must name a programming language")
	}
	return lang, nil
}
