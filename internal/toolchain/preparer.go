package toolchain

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"gauntlet/internal/game"
	"gauntlet/internal/sandbox"
)

//go:embed harness.py
var pythonHarness []byte

var (
	// ErrToolMissing means the compiler or interpreter is not installed.
	ErrToolMissing = errors.New("toolchain command not found")

	// ErrBuildFailed means the submission did not compile (or, for
	// interpreted languages, did not parse).
	ErrBuildFailed = errors.New("strategy build failed")
)

const binaryName = "strategy"

// syntaxCheck parses a python file without executing it.
const syntaxCheck = "import ast,sys; ast.parse(open(sys.argv[1],'rb').read(), sys.argv[1])"

// Preparer builds launchable artifacts for strategies.
type Preparer struct {
	registry *Registry
	cache    *Cache
	executor *sandbox.Executor
	limits   sandbox.Limits
	env      map[string]string
	logger   zerolog.Logger
	group    singleflight.Group
}

// PreparerOption configures a Preparer.
type PreparerOption func(*Preparer)

// WithCompileTimeout bounds a single compile.
func WithCompileTimeout(d time.Duration) PreparerOption {
	return func(p *Preparer) { p.limits.Timeout = d }
}

// WithBuildEnv sets the environment visible to compilers.
func WithBuildEnv(env map[string]string) PreparerOption {
	return func(p *Preparer) { p.env = env }
}

// WithPreparerLogger attaches a logger.
func WithPreparerLogger(l zerolog.Logger) PreparerOption {
	return func(p *Preparer) { p.logger = l }
}

// NewPreparer wires a registry, cache and executor together.
func NewPreparer(registry *Registry, cache *Cache, executor *sandbox.Executor, opts ...PreparerOption) *Preparer {
	p := &Preparer{
		registry: registry,
		cache:    cache,
		executor: executor,
		limits: sandbox.Limits{
			Timeout:        60 * time.Second,
			MaxOutputBytes: 64 << 10,
		},
		env:    map[string]string{"PATH": "/usr/local/bin:/usr/bin:/bin", "LANG": "C"},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare returns the artifact for s, building it on first use.
//
// Every failure other than cancellation of ctx is a *sandbox.LaunchError:
// the strategy cannot be started on this host, whatever the underlying
// reason.
func (p *Preparer) Prepare(ctx context.Context, s game.Strategy) (*Artifact, error) {
	spec, ok := p.registry.Get(s.Language)
	if !ok {
		return nil, &sandbox.LaunchError{Path: string(s.ID), Err: fmt.Errorf("%w: %q", game.ErrUnknownLanguage, s.Language)}
	}

	tool := spec.Compiler
	if !spec.Compiled() {
		tool = spec.Interpreter
	}
	toolPath, err := exec.LookPath(tool)
	if err != nil {
		return nil, &sandbox.LaunchError{Path: tool, Err: fmt.Errorf("%w: %v", ErrToolMissing, err)}
	}
	if toolPath, err = filepath.Abs(toolPath); err != nil {
		return nil, &sandbox.LaunchError{Path: tool, Err: err}
	}

	digest := s.Digest
	if digest == "" {
		digest = game.ComputeDigest(s.Language, []byte(s.Source))
	}
	key := cacheKey(digest, spec, toolPath)

	v, err, _ := p.group.Do(key, func() (any, error) {
		if a, hit, err := p.cache.Lookup(key); err != nil {
			return nil, err
		} else if hit {
			return a, nil
		}
		start := time.Now()
		a, err := p.cache.Build(key, func(dir string) (*Artifact, error) {
			return p.build(ctx, spec, toolPath, digest, s, dir)
		})
		if err == nil {
			p.logger.Debug().
				Str("strategy", string(s.ID)).
				Str("language", string(s.Language)).
				Dur("elapsed", time.Since(start)).
				Msg("strategy prepared")
		}
		return a, err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var le *sandbox.LaunchError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &sandbox.LaunchError{Path: string(s.ID), Err: err}
	}

	a := *v.(*Artifact)
	if !spec.Compiled() {
		a.Interpreter = toolPath
		a.InterpreterArgs = append([]string(nil), spec.InterpreterArgs...)
	}
	return &a, nil
}

func (p *Preparer) build(ctx context.Context, spec *LanguageSpec, toolPath, digest string, s game.Strategy, dir string) (*Artifact, error) {
	src := filepath.Join(dir, spec.SourceFile)
	if err := os.WriteFile(src, []byte(s.Source), 0o644); err != nil {
		return nil, fmt.Errorf("writing source: %w", err)
	}
	a := &Artifact{Digest: digest, Language: spec.Language}

	if spec.Compiled() {
		out := filepath.Join(dir, binaryName)
		args := expand(spec.CompileArgs, map[string]string{"{src}": src, "{out}": out})
		if err := p.runTool(ctx, toolPath, args, dir); err != nil {
			return nil, err
		}
		if err := os.Chmod(out, 0o755); err != nil {
			return nil, &sandbox.LaunchError{Path: toolPath, Err: fmt.Errorf("%w: no binary produced", ErrBuildFailed)}
		}
		a.Entry = binaryName
		return a, nil
	}

	if len(spec.CheckArgs) > 0 {
		if err := p.runTool(ctx, toolPath, expand(spec.CheckArgs, map[string]string{"{src}": src}), dir); err != nil {
			return nil, err
		}
	}
	a.Entry = spec.SourceFile
	if spec.Harness {
		if err := os.WriteFile(filepath.Join(dir, "harness.py"), pythonHarness, 0o644); err != nil {
			return nil, fmt.Errorf("writing harness: %w", err)
		}
		a.Harness = "harness.py"
	}
	return a, nil
}

func (p *Preparer) runTool(ctx context.Context, toolPath string, args []string, dir string) error {
	env := make(map[string]string, len(p.env)+1)
	for k, v := range p.env {
		env[k] = v
	}
	env["TMPDIR"] = dir

	res, err := p.executor.Execute(ctx, sandbox.Command{Path: toolPath, Args: args, Dir: dir, Env: env}, p.limits)
	if err != nil {
		return err
	}
	if res.Status == sandbox.StatusCancelled {
		return ctx.Err()
	}
	if res.Status != sandbox.StatusOK {
		p.logger.Debug().
			Str("tool", toolPath).
			Str("status", res.Status.String()).
			Bytes("stderr", firstLine(res.Stderr)).
			Msg("strategy build failed")
		return &sandbox.LaunchError{Path: toolPath, Err: fmt.Errorf("%w (%s)", ErrBuildFailed, res.Status)}
	}
	return nil
}

// cacheKey covers everything that changes the built artifact.
func cacheKey(digest string, spec *LanguageSpec, toolPath string) string {
	h := sha256.New()
	field := func(s string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	field(digest)
	field(string(spec.Language))
	field(toolPath)
	for _, a := range spec.CompileArgs {
		field(a)
	}
	for _, a := range spec.InterpreterArgs {
		field(a)
	}
	if spec.Harness {
		field(string(pythonHarness))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func firstLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i]
	}
	return b
}
