package sandbox

import (
	"fmt"
	"time"
)

// Command describes one child process.
type Command struct {
	// Path is the program to exec. It must be absolute: the child sees no
	// PATH unless Env declares one.
	Path string

	// Args are passed after Path (argv[1:]).
	Args []string

	// Dir is the working directory. Empty means the executor's default.
	Dir string

	// Env is the complete environment visible to the child.
	Env map[string]string

	// ReadOnly are host paths the child needs to read when the executor
	// confines the filesystem. Ignored otherwise.
	ReadOnly []string
}

// Limits bounds a single invocation. Zero values disable a bound.
type Limits struct {
	Timeout        time.Duration
	MemoryBytes    int64
	CPUSeconds     int
	MaxOutputBytes int
}

// Status classifies how an invocation ended.
type Status int

const (
	StatusOK Status = iota
	StatusNonZeroExit
	StatusTimeout
	StatusResourceExceeded
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNonZeroExit:
		return "non_zero_exit"
	case StatusTimeout:
		return "timeout"
	case StatusResourceExceeded:
		return "resource_exceeded"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of a process that was started.
//
// Stdout is only meaningful when Status is StatusOK; callers must not parse
// output of a killed process.
type Result struct {
	Status    Status
	ExitCode  int
	Signal    string
	Stdout    []byte
	Stderr    []byte
	Truncated bool
	Duration  time.Duration
}

// LaunchError reports that the process could not be started at all.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
