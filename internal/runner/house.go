package runner

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"strings"

	"gauntlet/internal/game"
)

// Bot names understood by HouseRunner.
const (
	BotAlwaysCooperate = "always_cooperate"
	BotAlwaysDefect    = "always_defect"
	BotTitForTat       = "tit_for_tat"
	BotRandom          = "random"
	BotGrudger         = "grudger"
)

// ErrUnknownBot is returned by Prepare for an unrecognized bot name.
var ErrUnknownBot = errors.New("unknown house bot")

type bot func(in TurnInput, rng *rand.Rand) (game.Move, game.Hint)

var bots = map[string]bot{
	BotAlwaysCooperate: func(TurnInput, *rand.Rand) (game.Move, game.Hint) {
		return game.Cooperate, game.Cooperate
	},
	BotAlwaysDefect: func(TurnInput, *rand.Rand) (game.Move, game.Hint) {
		return game.Defect, game.Defect
	},
	BotTitForTat: titForTat,
	BotRandom: func(_ TurnInput, rng *rand.Rand) (game.Move, game.Hint) {
		return coin(rng), coin(rng)
	},
	BotGrudger: grudger,
}

// Bots lists the available bot names.
func Bots() []string {
	names := make([]string, 0, len(bots))
	for n := range bots {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HouseBot returns a strategy that plays the named built-in bot.
func HouseBot(id game.StrategyID, name string) game.Strategy {
	return game.NewStrategy(id, "house", game.LanguageHouse, name)
}

// HouseRunner plays the classic bots in-process. It speaks the same wire
// format as external programs, so its output goes through the same parser.
type HouseRunner struct {
	seed uint64
}

// NewHouseRunner creates a runner whose random bots derive from seed.
func NewHouseRunner(seed uint64) *HouseRunner {
	return &HouseRunner{seed: seed}
}

// Prepare checks that s names a known bot.
func (h *HouseRunner) Prepare(_ context.Context, s game.Strategy) error {
	if _, ok := bots[botName(s)]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBot, s.Source)
	}
	return nil
}

// Execute plays one turn.
func (h *HouseRunner) Execute(ctx context.Context, s game.Strategy, in TurnInput, _ Budget) Outcome {
	if ctx.Err() != nil {
		return Failed(FailureCancelled)
	}
	b, ok := bots[botName(s)]
	if !ok {
		return Failed(FailureLaunchError)
	}
	move, hint := b(in, h.rng(s.ID, in))
	if in.Round == game.RoundOracle {
		return Success([]byte{byte(move), byte(hint), '\n'})
	}
	return Success([]byte{byte(move), '\n'})
}

// rng is keyed by match, strategy and turn so a bot's choices do not depend
// on scheduling.
func (h *HouseRunner) rng(id game.StrategyID, in TurnInput) *rand.Rand {
	f := fnv.New64a()
	f.Write([]byte(in.MatchID))
	f.Write([]byte{0})
	f.Write([]byte(id))
	var turn [8]byte
	binary.BigEndian.PutUint64(turn[:], uint64(in.Turn))
	f.Write(turn[:])
	return rand.New(rand.NewPCG(h.seed, f.Sum64()))
}

func botName(s game.Strategy) string {
	return strings.ToLower(strings.TrimSpace(s.Source))
}

func coin(rng *rand.Rand) game.Move {
	if rng.IntN(2) == 0 {
		return game.Cooperate
	}
	return game.Defect
}

// titForTat copies the opponent's last observed move. No prior turn and
// fogged turns count as cooperation.
func titForTat(in TurnInput, _ *rand.Rand) (game.Move, game.Hint) {
	switch in.Round {
	case game.RoundFog:
		if in.Arg != nil && *in.Arg == string(game.SignalDefect) {
			return game.Defect, game.Defect
		}
	case game.RoundOracle:
		if hist := history(in); len(hist) > 0 {
			m := hist[len(hist)-1].OpponentMove
			return m, m
		}
	}
	return game.Cooperate, game.Cooperate
}

// grudger cooperates until it has seen a single defection, then defects
// forever. In round 2 it only sees one turn back and degrades to tit for tat.
func grudger(in TurnInput, rng *rand.Rand) (game.Move, game.Hint) {
	if in.Round != game.RoundOracle {
		return titForTat(in, rng)
	}
	for _, b := range history(in) {
		if b.OpponentMove == game.Defect {
			return game.Defect, game.Defect
		}
	}
	return game.Cooperate, game.Cooperate
}

func history(in TurnInput) []game.Block {
	if in.Arg == nil {
		return nil
	}
	h, err := game.DecodeRound3History(*in.Arg)
	if err != nil {
		return nil
	}
	return h
}
