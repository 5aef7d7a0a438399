package cli

import (
	"fmt"
	"os"

	"gauntlet/internal/match"
	"gauntlet/internal/metrics"
	"gauntlet/internal/runner"
	"gauntlet/internal/sandbox"
	"gauntlet/internal/store"
	"gauntlet/internal/toolchain"
	"gauntlet/internal/tournament"
	"gauntlet/internal/trace"
)

// strategyEnv is the whole environment a strategy process sees.
var strategyEnv = map[string]string{
	"LANG": "C",
	"PATH": "/usr/local/bin:/usr/bin:/bin",
}

// runtime is the assembled execution stack for one command.
type runtime struct {
	runner  *runner.Dispatch
	engine  *match.Engine
	metrics *metrics.Collectors
}

func (a *app) newRuntime(houseSeed uint64) (*runtime, error) {
	cfg := a.cfg
	exe := sandbox.NewExecutor(os.TempDir(),
		sandbox.WithNetworkIsolation(cfg.Runner.IsolateNetwork),
		sandbox.WithFilesystemConfinement(cfg.Runner.ConfineFilesystem, cfg.Runner.ReadOnlyPaths...),
		sandbox.WithSpawnRate(cfg.Runner.SpawnRate, cfg.Runner.SpawnBurst),
		sandbox.WithLogger(a.log),
	)
	cache, err := toolchain.NewCache(cfg.Toolchain.CacheDir)
	if err != nil {
		return nil, configError("toolchain cache", err)
	}
	prep := toolchain.NewPreparer(toolchain.NewRegistry(cfg.Toolchain.Tools()), cache, exe,
		toolchain.WithCompileTimeout(cfg.Toolchain.CompileTimeout),
		toolchain.WithPreparerLogger(a.log),
	)

	m := metrics.New()
	opts := []runner.ProcessOption{
		runner.WithEnv(strategyEnv),
		runner.WithObserver(m),
		runner.WithLogger(a.log),
	}
	if cfg.Runner.ScratchDir != "" {
		if err := os.MkdirAll(cfg.Runner.ScratchDir, 0o755); err != nil {
			return nil, configError("runner scratch dir", err)
		}
		opts = append(opts, runner.WithScratchRoot(cfg.Runner.ScratchDir))
	}

	d := &runner.Dispatch{
		House:    runner.NewHouseRunner(houseSeed),
		External: runner.NewProcessRunner(prep, exe, opts...),
	}
	return &runtime{
		runner:  d,
		engine:  match.NewEngine(d, match.WithBudget(cfg.Runner.Budget()), match.WithLogger(a.log)),
		metrics: m,
	}, nil
}

func (rt *runtime) scheduler(a *app, workers int) *tournament.Scheduler {
	if workers <= 0 {
		workers = a.cfg.Tournament.Workers
	}
	return tournament.NewScheduler(rt.engine, rt.runner,
		tournament.WithWorkers(workers),
		tournament.WithObserver(rt.metrics),
		tournament.WithSink(trace.NewLogSink(a.log)),
		tournament.WithLogger(a.log),
	)
}

func (a *app) openStore() (*store.Store, error) {
	st, err := store.Open(store.Options{
		Path:       a.cfg.Store.Path,
		InMemory:   a.cfg.Store.InMemory,
		SyncWrites: a.cfg.Store.SyncWrites,
		Logger:     a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	return st, nil
}
