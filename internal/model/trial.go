package model

import (
	"fmt"
	"time"
)

// ExitKind classifies how a trial ended.
type ExitKind int

const (
	// ExitNormal means the process exited on its own with an exit code.
	ExitNormal ExitKind = iota
	// ExitSignaled means the process was terminated by a signal.
	ExitSignaled
	// ExitTimedOut means the wall-clock limit expired and the process group was killed.
	ExitTimedOut
	// ExitCompileFailed means the source did not compile; nothing was executed.
	ExitCompileFailed
	// ExitCancelled means the run was cancelled while the trial was in flight.
	ExitCancelled
	// ExitHarnessFailure means the harness could not set the trial up (workspace, IO, exec).
	ExitHarnessFailure
)

func (k ExitKind) String() string {
	switch k {
	case ExitNormal:
		return "exited"
	case ExitSignaled:
		return "signaled"
	case ExitTimedOut:
		return "timed-out"
	case ExitCompileFailed:
		return "compile-failed"
	case ExitCancelled:
		return "cancelled"
	case ExitHarnessFailure:
		return "harness-failure"
	default:
		return "unknown"
	}
}

// ExitStatus is the terminal state of a process (or of the compile step).
type ExitStatus struct {
	Kind   ExitKind
	Code   int
	Signal string
}

// Crashed reports whether the status is a signal-terminated process.
func (s ExitStatus) Crashed() bool {
	return s.Kind == ExitSignaled
}

// Success reports a normal exit with code 0.
func (s ExitStatus) Success() bool {
	return s.Kind == ExitNormal && s.Code == 0
}

func (s ExitStatus) String() string {
	switch s.Kind {
	case ExitNormal:
		return fmt.Sprintf("exit %d", s.Code)
	case ExitSignaled:
		return "signal " + s.Signal
	default:
		return s.Kind.String()
	}
}

// Execution is one run of a compiled trial binary.
type Execution struct {
	Exit    ExitStatus
	Stdout  []byte
	Stderr  []byte
	Elapsed time.Duration
}

// Trial is one isolated compile+execute attempt of a test case under a
// build configuration. Immutable once recorded.
type Trial struct {
	ID            string
	TestCaseID    string
	SourceHash    string
	BuildSpec     BuildSpec
	StartTime     time.Time
	Elapsed       time.Duration
	Exit          ExitStatus
	CompileOutput []byte
	// Executions holds every repetition that actually ran, in order.
	Executions []Execution
	// Detail explains harness failures.
	Detail string
}

// Stdout returns the stdout of the deciding execution.
func (t Trial) Stdout() []byte {
	if len(t.Executions) == 0 {
		return nil
	}

	return t.Executions[len(t.Executions)-1].Stdout
}

// Stderr returns the stderr of the deciding execution.
func (t Trial) Stderr() []byte {
	if len(t.Executions) == 0 {
		return nil
	}

	return t.Executions[len(t.Executions)-1].Stderr
}
