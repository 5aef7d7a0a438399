package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// DefaultShell runs the resource-limit prelude.
const DefaultShell = "/bin/sh"

// waitDelay bounds how long Wait keeps draining pipes held open by orphaned
// grandchildren after the direct child has exited.
const waitDelay = 250 * time.Millisecond

// Executor launches sandboxed child processes. It is safe for concurrent use.
type Executor struct {
	workingDir     string
	shell          string
	isolateNetwork bool
	confine        bool
	readOnly       []string
	limiter        *rate.Limiter
	logger         zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithShell overrides the shell used for the ulimit prelude.
func WithShell(path string) Option {
	return func(e *Executor) { e.shell = path }
}

// WithNetworkIsolation places children in fresh network, IPC and UTS
// namespaces where the platform supports it.
func WithNetworkIsolation(on bool) Option {
	return func(e *Executor) { e.isolateNetwork = on }
}

// WithFilesystemConfinement runs every child in its own mount namespace
// whose root holds only read-only system directories, the readOnly paths,
// each command's ReadOnly paths and its working directory. The working
// directory is the only host path a child can write to.
//
// The process must call Init at startup; Linux only.
func WithFilesystemConfinement(on bool, readOnly ...string) Option {
	return func(e *Executor) {
		e.confine = on
		e.readOnly = readOnly
	}
}

// WithSpawnRate caps process launches per second across all callers.
// A non-positive perSecond leaves launches unthrottled.
func WithSpawnRate(perSecond float64, burst int) Option {
	return func(e *Executor) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger attaches a logger for launch diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an Executor whose children default to workingDir.
func NewExecutor(workingDir string, opts ...Option) *Executor {
	e := &Executor{
		workingDir: workingDir,
		shell:      DefaultShell,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs cmd under limits.
//
// A non-nil error is returned only when the process could not be started
// (*LaunchError) or the command itself is invalid. Everything that happens
// after a successful start, including cancellation of ctx, is reported
// through Result.Status.
func (e *Executor) Execute(ctx context.Context, cmd Command, limits Limits) (*Result, error) {
	if cmd.Path == "" {
		return nil, fmt.Errorf("command path is empty")
	}
	if err := checkExecutable(cmd.Path); err != nil {
		return nil, &LaunchError{Path: cmd.Path, Err: err}
	}

	if e.limiter != nil {
		// Wait fails only when ctx ends (or would end) before a token frees up.
		if err := e.limiter.Wait(ctx); err != nil {
			return &Result{Status: StatusCancelled, ExitCode: -1}, nil
		}
	}

	dir := cmd.Dir
	if dir == "" {
		dir = e.workingDir
	}
	l, err := e.prepare(cmd, limits, dir)
	if err != nil {
		return nil, &LaunchError{Path: cmd.Path, Err: err}
	}
	defer l.close()

	c := l.cmd
	c.Dir = dir

	// The environment starts EMPTY. Host variables are never inherited.
	c.Env = buildIsolatedEnv(cmd.Env)
	c.SysProcAttr = sysProcAttr(e.isolateNetwork, e.confine)
	c.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	outOverflow, errOverflow := make(chan struct{}), make(chan struct{})
	outW := newCappedWriter(&stdout, limits.MaxOutputBytes, outOverflow)
	errW := newCappedWriter(&stderr, limits.MaxOutputBytes, errOverflow)
	c.Stdout = outW
	c.Stderr = errW

	runCtx := ctx
	if limits.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, limits.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := c.Start(); err != nil {
		e.logger.Debug().Err(err).Str("path", cmd.Path).Msg("process launch failed")
		return nil, &LaunchError{Path: cmd.Path, Err: err}
	}
	l.started()
	pgid := c.Process.Pid

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	var (
		waitErr  error
		killedBy Status = StatusOK
	)
	select {
	case <-runCtx.Done():
		killGroup(pgid)
		waitErr = <-done
		if ctx.Err() != nil {
			killedBy = StatusCancelled
		} else {
			killedBy = StatusTimeout
		}
	case <-outOverflow:
		killGroup(pgid)
		waitErr = <-done
		killedBy = StatusResourceExceeded
	case <-errOverflow:
		killGroup(pgid)
		waitErr = <-done
		killedBy = StatusResourceExceeded
	case waitErr = <-done:
		// Reap anything the child left behind in its group.
		killGroup(pgid)
	}

	if err := l.setupError(); err != nil {
		e.logger.Debug().Err(err).Str("path", cmd.Path).Msg("sandbox setup failed")
		return nil, &LaunchError{Path: cmd.Path, Err: err}
	}

	res := &Result{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: outW.overflowed() || errW.overflowed(),
		Duration:  time.Since(start),
	}
	if killedBy != StatusOK {
		res.Status = killedBy
		res.ExitCode = -1
		res.Stdout = nil
		return res, nil
	}

	e.classify(res, waitErr)
	if res.Status != StatusOK {
		res.Stdout = nil
	}
	return res, nil
}

// classify fills Status, ExitCode and Signal from the Wait error.
func (e *Executor) classify(res *Result, waitErr error) {
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			// Pipe copy failures after exit; treat as a failed run.
			res.Status = StatusNonZeroExit
			res.ExitCode = -1
			return
		}
		res.ExitCode = exitErr.ExitCode()
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			sig := ws.Signal()
			res.Signal = unix.SignalName(sig)
			switch sig {
			case unix.SIGXCPU, unix.SIGKILL, unix.SIGSEGV, unix.SIGBUS, unix.SIGXFSZ:
				res.Status = StatusResourceExceeded
			default:
				res.Status = StatusNonZeroExit
			}
			return
		}
		res.Status = StatusNonZeroExit
	}
	if res.Truncated {
		res.Status = StatusResourceExceeded
	}
}

// prelude returns the shell script that applies the memory and CPU
// ceilings before exec'ing the target, or "" when neither is set. A failed
// ulimit is reported on the status pipe.
func prelude(limits Limits) string {
	var steps []string
	if limits.MemoryBytes > 0 {
		steps = append(steps, ulimitStep("-v", strconv.FormatInt(max(limits.MemoryBytes/1024, 1), 10)))
	}
	if limits.CPUSeconds > 0 {
		steps = append(steps, ulimitStep("-t", strconv.Itoa(limits.CPUSeconds)))
	}
	if len(steps) == 0 {
		return ""
	}
	return strings.Join(steps, "; ") + `; exec 3>&-; exec "$@"`
}

func ulimitStep(flag, value string) string {
	return fmt.Sprintf(`ulimit %[1]s %[2]s || { echo "ulimit %[1]s %[2]s failed" >&3; exit %[3]d; }`, flag, value, setupFailedExit)
}

func killGroup(pgid int) {
	if pgid <= 0 {
		return
	}
	// ESRCH means the group is already gone.
	_ = unix.Kill(-pgid, unix.SIGKILL)
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

// buildIsolatedEnv turns the allowlist into KEY=VALUE pairs in a stable order.
// It never returns nil so the child is not handed the parent's environment.
func buildIsolatedEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(env))
	for _, k := range keys {
		result = append(result, k+"="+env[k])
	}
	return result
}
