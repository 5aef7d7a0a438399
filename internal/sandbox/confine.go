package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
)

// helperName is argv[0] of the re-executed process that confines a child
// before exec'ing it.
const helperName = "gauntlet-confine"

// statusFD is the descriptor a launcher writes setup failures to. Nothing
// written means the target was exec'd.
const statusFD = 3

// setupFailedExit is the exit code of a launcher whose setup failed.
const setupFailedExit = 125

var helperReady atomic.Bool

// Init must run first in main, and in TestMain of any package whose tests
// launch confined processes.
//
// In a process started as the confinement helper it builds the child's
// filesystem view and execs the target; it does not return there. Anywhere
// else it only marks the helper as usable.
func Init() {
	helperReady.Store(true)
	if len(os.Args) < 3 || os.Args[0] != helperName {
		return
	}
	// Credentials are per thread; the exec must come from the thread that
	// dropped them.
	runtime.LockOSThread()
	err := runHelper(os.Args[1], os.Args[2:])
	status := os.NewFile(statusFD, "status")
	fmt.Fprintf(status, "confine: %v", err)
	os.Exit(setupFailedExit)
}

// confinement is the helper's instructions, passed as JSON in argv[1].
type confinement struct {
	// Root is an empty host directory the new root is mounted on.
	Root string `json:"root"`

	// Workdir is the only host path the child may write to.
	Workdir string `json:"workdir"`

	// ReadOnly are host paths bound read-only in addition to systemPaths.
	ReadOnly []string `json:"read_only,omitempty"`

	AddrSpace uint64 `json:"addr_space,omitempty"`
	CPU       uint64 `json:"cpu,omitempty"`
}

func runHelper(raw string, argv []string) error {
	var c confinement
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return fmt.Errorf("decoding confinement: %w", err)
	}
	return c.enter(argv)
}

// launch is an exec.Cmd plus the status pipe its launcher reports on. A
// direct launch has no pipe.
type launch struct {
	cmd    *exec.Cmd
	status *os.File
	report *os.File
	root   string
}

func (l *launch) withStatusPipe() error {
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating status pipe: %w", err)
	}
	l.status, l.report = r, w
	l.cmd.ExtraFiles = []*os.File{w}
	return nil
}

// started drops the parent's copy of the write end so the read end sees EOF
// once the launcher execs or exits.
func (l *launch) started() {
	if l.report != nil {
		_ = l.report.Close()
		l.report = nil
	}
}

// setupError reads what the launcher reported. Call it only after the child
// has been waited for.
func (l *launch) setupError() error {
	if l.status == nil {
		return nil
	}
	msg, err := io.ReadAll(l.status)
	if err != nil {
		return fmt.Errorf("reading launch status: %w", err)
	}
	if len(msg) == 0 {
		return nil
	}
	return errors.New(strings.TrimSpace(string(msg)))
}

func (l *launch) close() {
	l.started()
	if l.status != nil {
		_ = l.status.Close()
	}
	if l.root != "" {
		// The tmpfs only ever existed in the child's mount namespace.
		_ = os.Remove(l.root)
	}
}

// prepare picks how cmd is started: through the confinement helper, through
// the ulimit prelude, or directly.
func (e *Executor) prepare(cmd Command, limits Limits, dir string) (*launch, error) {
	if e.confine {
		return e.confined(cmd, limits, dir)
	}
	script := prelude(limits)
	if script == "" {
		return &launch{cmd: exec.Command(cmd.Path, cmd.Args...)}, nil
	}
	args := append([]string{"-c", script, "sandbox", cmd.Path}, cmd.Args...)
	l := &launch{cmd: exec.Command(e.shell, args...)}
	if err := l.withStatusPipe(); err != nil {
		return nil, err
	}
	return l, nil
}

func (e *Executor) confined(cmd Command, limits Limits, dir string) (*launch, error) {
	if err := confinementSupported(); err != nil {
		return nil, err
	}
	if !helperReady.Load() {
		return nil, errors.New("filesystem confinement needs sandbox.Init at process start")
	}
	workdir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving working dir: %w", err)
	}

	c := confinement{Workdir: workdir}
	for _, p := range append(append([]string(nil), e.readOnly...), cmd.ReadOnly...) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving read-only path: %w", err)
		}
		c.ReadOnly = append(c.ReadOnly, abs)
	}
	if limits.MemoryBytes > 0 {
		c.AddrSpace = uint64(limits.MemoryBytes)
	}
	if limits.CPUSeconds > 0 {
		c.CPU = uint64(limits.CPUSeconds)
	}

	if c.Root, err = os.MkdirTemp("", "gauntlet-root-"); err != nil {
		return nil, fmt.Errorf("creating root mountpoint: %w", err)
	}
	raw, err := json.Marshal(c)
	if err != nil {
		_ = os.Remove(c.Root)
		return nil, fmt.Errorf("encoding confinement: %w", err)
	}

	ec := exec.Command(selfExe)
	ec.Args = append([]string{helperName, string(raw), cmd.Path}, cmd.Args...)
	l := &launch{cmd: ec, root: c.Root}
	if err := l.withStatusPipe(); err != nil {
		l.close()
		return nil, err
	}
	return l, nil
}
