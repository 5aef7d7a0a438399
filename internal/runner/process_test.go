package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/game"
	"gauntlet/internal/sandbox"
	"gauntlet/internal/toolchain"
)

const langShell game.Language = "sh"

type recordingObserver struct {
	mu    sync.Mutex
	kinds []FailureKind
}

func (o *recordingObserver) ObserveInvocation(_ game.Language, f FailureKind, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kinds = append(o.kinds, f)
}

func newShellRunner(t *testing.T, opts ...ProcessOption) *ProcessRunner {
	t.Helper()
	return newShellRunnerOn(t, sandbox.NewExecutor(t.TempDir()), opts...)
}

func newShellRunnerOn(t *testing.T, exe *sandbox.Executor, opts ...ProcessOption) *ProcessRunner {
	t.Helper()
	reg := toolchain.NewRegistry(toolchain.Tools{})
	reg.Register(&toolchain.LanguageSpec{Language: langShell, SourceFile: "strategy.sh", Interpreter: "sh"})
	cache, err := toolchain.NewCache(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	opts = append([]ProcessOption{
		WithScratchRoot(t.TempDir()),
		WithEnv(map[string]string{"PATH": "/usr/bin:/bin"}),
	}, opts...)
	return NewProcessRunner(toolchain.NewPreparer(reg, cache, exe), exe, opts...)
}

func shell(id, src string) game.Strategy {
	return game.NewStrategy(game.StrategyID(id), id, langShell, src)
}

func budget() Budget {
	return Budget{Timeout: 2 * time.Second, MaxOutputBytes: 1024}
}

func TestProcessRunnerSuccess(t *testing.T) {
	r := newShellRunner(t)
	arg := "D"
	out := r.Execute(context.Background(), shell("echo", `echo "$1"`), TurnInput{Round: game.RoundFog, Arg: &arg}, budget())

	require.True(t, out.OK())
	assert.Equal(t, "D\n", string(out.Stdout))
}

func TestProcessRunnerFreshProcessPerTurn(t *testing.T) {
	r := newShellRunner(t)
	s := shell("memory", `if [ -f mem ]; then echo D; else echo C; fi; : > mem`)

	for turn := 1; turn <= 3; turn++ {
		out := r.Execute(context.Background(), s, TurnInput{Round: game.RoundNoise, Turn: turn}, budget())
		require.True(t, out.OK())
		assert.Equal(t, "C\n", string(out.Stdout), "turn %d saw state from an earlier turn", turn)
	}
}

func TestProcessRunnerConfinedTurnsShareNoFiles(t *testing.T) {
	r := newShellRunnerOn(t, sandbox.NewExecutor(t.TempDir(), sandbox.WithFilesystemConfinement(true)))
	host := filepath.Join(t.TempDir(), "mem")
	s := shell("hoarder", fmt.Sprintf(`seen=C
for f in /mem /tmp/mem %s; do
  [ -f "$f" ] && seen=D
  : > "$f" 2>/dev/null
done
echo $seen`, host))

	for turn := 1; turn <= 3; turn++ {
		out := r.Execute(context.Background(), s, TurnInput{Round: game.RoundNoise, Turn: turn}, budget())
		if turn == 1 && out.Failure == FailureLaunchError {
			t.Skip("filesystem confinement unavailable on this host")
		}
		require.True(t, out.OK(), "turn %d failed: %s", turn, out.Failure)
		assert.Equal(t, "C\n", string(out.Stdout), "turn %d saw state from an earlier turn", turn)
	}
	assert.NoFileExists(t, host)
}

func TestProcessRunnerFailureKinds(t *testing.T) {
	r := newShellRunner(t)

	cases := map[string]struct {
		src  string
		want FailureKind
	}{
		"non-zero": {`echo C; exit 1`, FailureNonZeroExit},
		"timeout":  {`sleep 10`, FailureTimeout},
		"flood":    {`while :; do echo CCCCCCCCCCCCCCCCCCCCCCCC; done`, FailureResourceExceeded},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			b := budget()
			b.Timeout = 500 * time.Millisecond
			out := r.Execute(context.Background(), shell(name, tc.src), TurnInput{Round: game.RoundNoise}, b)
			assert.Equal(t, tc.want, out.Failure)
			assert.Nil(t, out.Stdout)
		})
	}
}

func TestProcessRunnerLaunchError(t *testing.T) {
	r := newShellRunner(t)
	s := game.NewStrategy("ghost", "o", "brainfuck", "+.")

	require.Error(t, r.Prepare(context.Background(), s))
	out := r.Execute(context.Background(), s, TurnInput{Round: game.RoundNoise}, budget())
	assert.Equal(t, FailureLaunchError, out.Failure)
	assert.Equal(t, game.PenaltyLaunchError, out.Failure.PenaltyKind())
}

func TestProcessRunnerCancelled(t *testing.T) {
	r := newShellRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := r.Execute(ctx, shell("c", `echo C`), TurnInput{Round: game.RoundNoise}, budget())
	assert.Equal(t, FailureCancelled, out.Failure)
	assert.Empty(t, out.Failure.PenaltyKind())
}

func TestProcessRunnerObserver(t *testing.T) {
	obs := &recordingObserver{}
	r := newShellRunner(t, WithObserver(obs))

	r.Execute(context.Background(), shell("ok", `echo C`), TurnInput{Round: game.RoundNoise}, budget())
	r.Execute(context.Background(), shell("bad", `exit 2`), TurnInput{Round: game.RoundNoise}, budget())

	assert.Equal(t, []FailureKind{FailureNone, FailureNonZeroExit}, obs.kinds)
}
