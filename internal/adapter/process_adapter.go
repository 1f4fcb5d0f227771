package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	m "defectbench.dev/pkg/defectbench/internal/model"
)

// DefaultMaxOutputBytes bounds each captured stream of a process.
const DefaultMaxOutputBytes = 1 << 20

// killGracePeriod is how long Wait may linger on inherited pipes after the
// process group has been killed.
const killGracePeriod = 100 * time.Millisecond

// ProcessRequest describes one subprocess invocation.
type ProcessRequest struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Stdin   string
	Timeout time.Duration
	// MaxOutputBytes caps each of stdout and stderr. Zero selects DefaultMaxOutputBytes.
	MaxOutputBytes int
}

// ProcessAdapter runs subprocesses in their own process group under a hard
// wall-clock limit.
type ProcessAdapter interface {
	// Run executes the request and returns the observed execution. Timeouts,
	// cancellation, signals and non-zero exits are reported through the
	// returned Execution; an error means the process could not be started.
	Run(ctx context.Context, req ProcessRequest) (m.Execution, error)
}

// LocalProcessAdapter runs processes on the local machine via os/exec.
type LocalProcessAdapter struct{}

// NewLocalProcessAdapter constructs a LocalProcessAdapter.
func NewLocalProcessAdapter() *LocalProcessAdapter {
	return &LocalProcessAdapter{}
}

// Run executes the request in a fresh process group. On timeout or
// cancellation the whole group is killed with SIGKILL.
func (a *LocalProcessAdapter) Run(ctx context.Context, req ProcessRequest) (m.Execution, error) {
	runCtx := ctx

	var cancel context.CancelFunc

	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	limit := req.MaxOutputBytes
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}

	stdout := newCappedBuffer(limit)
	stderr := newCappedBuffer(limit)

	// #nosec G204 - running corpus binaries and the configured tool is the purpose of the harness
	cmd := exec.CommandContext(runCtx, req.Path, req.Args...)
	cmd.Dir = req.Dir
	cmd.Env = req.Env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = killGracePeriod

	if req.Stdin != "" {
		cmd.Stdin = strings.NewReader(req.Stdin)
	}

	start := time.Now()

	if err := cmd.Start(); err != nil {
		slog.Debug("Failed to start process", "path", req.Path, "error", err)
		return m.Execution{}, fmt.Errorf("start %s: %w", req.Path, err)
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	// The leader is reaped, so its pid may be reused. Only a descendant that
	// kept the output pipes open past WaitDelay still pins the group id;
	// timeouts and cancellation already killed the group through cmd.Cancel.
	if errors.Is(waitErr, exec.ErrWaitDelay) && runCtx.Err() == nil {
		_ = killProcessGroup(cmd)
	}

	execution := m.Execution{
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
		Elapsed: elapsed,
		Exit:    exitStatusFor(ctx, runCtx, cmd, waitErr),
	}

	slog.Debug("Process finished",
		"path", req.Path,
		"exit", execution.Exit.String(),
		"elapsed", elapsed,
	)

	return execution, nil
}

func exitStatusFor(parent, runCtx context.Context, cmd *exec.Cmd, waitErr error) m.ExitStatus {
	if parent.Err() != nil {
		return m.ExitStatus{Kind: m.ExitCancelled, Code: -1}
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return m.ExitStatus{Kind: m.ExitTimedOut, Code: -1}
	}

	state := cmd.ProcessState
	if state == nil {
		return m.ExitStatus{Kind: m.ExitHarnessFailure, Code: -1}
	}

	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return m.ExitStatus{
			Kind:   m.ExitSignaled,
			Code:   -1,
			Signal: unix.SignalName(status.Signal()),
		}
	}

	if waitErr != nil && !isExitError(waitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		slog.Debug("Unexpected wait error", "error", waitErr)
	}

	return m.ExitStatus{Kind: m.ExitNormal, Code: state.ExitCode()}
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

// killProcessGroup sends SIGKILL to the process group led by cmd.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}

	return nil
}

// cappedBuffer keeps the first limit bytes written and silently drops the
// rest so a chatty process cannot exhaust harness memory.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		c.truncated = true
		return len(p), nil
	}

	if len(p) > remaining {
		c.buf.Write(p[:remaining])
		c.truncated = true

		return len(p), nil
	}

	c.buf.Write(p)

	return len(p), nil
}

func (c *cappedBuffer) Bytes() []byte {
	out := bytes.Clone(c.buf.Bytes())
	if c.truncated {
		out = append(out, []byte("\n[output truncated]\n")...)
	}

	return out
}
