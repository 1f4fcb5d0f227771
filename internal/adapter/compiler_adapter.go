package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	m "defectbench.dev/pkg/defectbench/internal/model"
)

// ErrCompilerUnavailable is returned when the compiler cannot be found or started.
var ErrCompilerUnavailable = errors.New("compiler unavailable")

// DefaultCompiler is the compiler driver used when none is configured.
const DefaultCompiler = "c++"

// DefaultCompilerFlags are prepended to every compile.
var DefaultCompilerFlags = []string{"-std=c++17", "-O0", "-g", "-pthread"}

// CompileRequest describes one compilation.
type CompileRequest struct {
	Source    m.Path
	Output    m.Path
	Dir       m.Path
	Sanitizer m.Sanitizer
	Flags     []string
	Timeout   time.Duration
}

// CompileResult is what the compiler contract returns: an exit status and
// its diagnostics.
type CompileResult struct {
	Exit   m.ExitStatus
	Output []byte
}

// Succeeded reports a clean compiler exit.
func (r CompileResult) Succeeded() bool {
	return r.Exit.Success()
}

// CompilerAdapter invokes the external C/C++ compiler.
type CompilerAdapter interface {
	// Preflight verifies that the compiler can be located.
	Preflight(ctx context.Context) error
	// Compile builds req.Source into req.Output.
	Compile(ctx context.Context, req CompileRequest) (CompileResult, error)
}

// LocalCompilerAdapter drives a gcc/clang compatible compiler.
type LocalCompilerAdapter struct {
	path      string
	baseFlags []string
	process   ProcessAdapter
}

// NewLocalCompilerAdapter constructs a compiler adapter. An empty path
// selects DefaultCompiler and nil flags select DefaultCompilerFlags.
func NewLocalCompilerAdapter(path string, baseFlags []string, process ProcessAdapter) *LocalCompilerAdapter {
	if path == "" {
		path = DefaultCompiler
	}

	if baseFlags == nil {
		baseFlags = DefaultCompilerFlags
	}

	return &LocalCompilerAdapter{
		path:      path,
		baseFlags: baseFlags,
		process:   process,
	}
}

// Preflight checks that the compiler binary resolves on PATH.
func (a *LocalCompilerAdapter) Preflight(_ context.Context) error {
	if _, err := exec.LookPath(a.path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCompilerUnavailable, a.path, err)
	}

	return nil
}

// Compile runs the compiler with the sanitizer flags for req.Sanitizer.
func (a *LocalCompilerAdapter) Compile(ctx context.Context, req CompileRequest) (CompileResult, error) {
	args := make([]string, 0, len(a.baseFlags)+len(req.Flags)+6)
	args = append(args, a.baseFlags...)
	args = append(args, SanitizerFlags(req.Sanitizer)...)
	args = append(args, req.Flags...)
	args = append(args, string(req.Source), "-o", string(req.Output))

	slog.Debug("Compiling", "compiler", a.path, "source", req.Source, "sanitizer", req.Sanitizer)

	execution, err := a.process.Run(ctx, ProcessRequest{
		Path:    a.path,
		Args:    args,
		Dir:     string(req.Dir),
		Env:     []string{"PATH=" + os.Getenv("PATH"), "TMPDIR=" + string(req.Dir)},
		Timeout: req.Timeout,
	})
	if err != nil {
		return CompileResult{}, fmt.Errorf("%w: %w", ErrCompilerUnavailable, err)
	}

	output := append(execution.Stdout, execution.Stderr...)

	return CompileResult{Exit: execution.Exit, Output: output}, nil
}

// SanitizerFlags returns the compiler flags enabling the given sanitizer.
func SanitizerFlags(s m.Sanitizer) []string {
	switch s {
	case m.SanitizerAddress:
		return []string{"-fsanitize=address", "-fno-omit-frame-pointer"}
	case m.SanitizerUndefined:
		return []string{"-fsanitize=undefined", "-fno-sanitize-recover=all"}
	case m.SanitizerThread:
		return []string{"-fsanitize=thread"}
	case m.SanitizerNone:
		return nil
	default:
		return nil
	}
}

// SanitizerEnv returns the runtime options that make sanitizer findings
// observable as a signal or a distinctive exit code.
func SanitizerEnv(s m.Sanitizer) []string {
	switch s {
	case m.SanitizerAddress:
		return []string{"ASAN_OPTIONS=abort_on_error=1:detect_leaks=1:exitcode=" + SanitizerExitCodeString}
	case m.SanitizerUndefined:
		return []string{"UBSAN_OPTIONS=halt_on_error=1:abort_on_error=1:print_stacktrace=1"}
	case m.SanitizerThread:
		return []string{"TSAN_OPTIONS=halt_on_error=0:exitcode=" + SanitizerExitCodeString}
	case m.SanitizerNone:
		return nil
	default:
		return nil
	}
}

// SanitizerExitCode is the exit code sanitizers are configured to use when
// they report without aborting (leaks, thread races).
const SanitizerExitCode = 66

// SanitizerExitCodeString is SanitizerExitCode formatted for option strings.
const SanitizerExitCodeString = "66"
