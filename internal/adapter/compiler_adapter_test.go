package adapter

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "defectbench.dev/pkg/defectbench/internal/model"
)

// recordingProcess captures the last request and returns a canned execution.
type recordingProcess struct {
	last      ProcessRequest
	execution m.Execution
}

func (r *recordingProcess) Run(_ context.Context, req ProcessRequest) (m.Execution, error) {
	r.last = req
	return r.execution, nil
}

func TestSanitizerFlags(t *testing.T) {
	assert.Contains(t, SanitizerFlags(m.SanitizerAddress), "-fsanitize=address")
	assert.Contains(t, SanitizerFlags(m.SanitizerUndefined), "-fsanitize=undefined")
	assert.Contains(t, SanitizerFlags(m.SanitizerUndefined), "-fno-sanitize-recover=all")
	assert.Equal(t, []string{"-fsanitize=thread"}, SanitizerFlags(m.SanitizerThread))
	assert.Empty(t, SanitizerFlags(m.SanitizerNone))
	assert.Empty(t, SanitizerFlags(""))
}

func TestSanitizerEnv(t *testing.T) {
	asan := strings.Join(SanitizerEnv(m.SanitizerAddress), " ")
	assert.Contains(t, asan, "detect_leaks=1")
	assert.Contains(t, asan, "exitcode="+SanitizerExitCodeString)

	assert.Contains(t, strings.Join(SanitizerEnv(m.SanitizerUndefined), " "), "halt_on_error=1")
	assert.Contains(t, strings.Join(SanitizerEnv(m.SanitizerThread), " "), "exitcode=66")
	assert.Empty(t, SanitizerEnv(m.SanitizerNone))
}

func TestLocalCompilerAdapter_Compile(t *testing.T) {
	process := &recordingProcess{execution: m.Execution{
		Stderr: []byte("warning: unused variable"),
	}}

	compiler := NewLocalCompilerAdapter("clang++", nil, process)

	result, err := compiler.Compile(context.Background(), CompileRequest{
		Source:    "/w/TC01.cpp",
		Output:    "/w/trial.bin",
		Dir:       "/w",
		Sanitizer: m.SanitizerAddress,
		Flags:     []string{"-DCASE=1"},
		Timeout:   time.Minute,
	})
	require.NoError(t, err)

	assert.True(t, result.Succeeded())
	assert.Equal(t, "warning: unused variable", string(result.Output))

	assert.Equal(t, "clang++", process.last.Path)
	assert.Equal(t, "/w", process.last.Dir)
	assert.Equal(t, time.Minute, process.last.Timeout)

	args := process.last.Args
	assert.Equal(t, DefaultCompilerFlags, args[:len(DefaultCompilerFlags)])
	assert.Contains(t, args, "-fsanitize=address")
	assert.Contains(t, args, "-DCASE=1")
	assert.Equal(t, []string{"/w/TC01.cpp", "-o", "/w/trial.bin"}, args[len(args)-3:])
}

func TestLocalCompilerAdapter_Defaults(t *testing.T) {
	compiler := NewLocalCompilerAdapter("", nil, &recordingProcess{})

	assert.Equal(t, DefaultCompiler, compiler.path)
	assert.Equal(t, DefaultCompilerFlags, compiler.baseFlags)
}

func TestLocalCompilerAdapter_PreflightMissingCompiler(t *testing.T) {
	compiler := NewLocalCompilerAdapter("defectbench-no-such-compiler", nil, &recordingProcess{})

	err := compiler.Preflight(context.Background())
	require.ErrorIs(t, err, ErrCompilerUnavailable)
}

// TestSanitizedBuild_UseAfterFree compiles a real fault/fix pair when a
// compiler with AddressSanitizer support is installed.
func TestSanitizedBuild_UseAfterFree(t *testing.T) {
	if testing.Short() {
		t.Skip("compiles C++")
	}

	if _, err := exec.LookPath(DefaultCompiler); err != nil {
		t.Skip("no C++ compiler on PATH")
	}

	ctx := context.Background()
	fs := NewLocalSourceFSAdapter("")
	process := NewLocalProcessAdapter()
	compiler := NewLocalCompilerAdapter("", nil, process)

	run := func(t *testing.T, source string) m.Execution {
		t.Helper()

		dir := t.TempDir()
		src := filepath.Join(dir, "case.cpp")
		bin := filepath.Join(dir, "case.bin")
		require.NoError(t, fs.WriteFile(ctx, m.Path(src), []byte(source), 0o600))

		result, err := compiler.Compile(ctx, CompileRequest{
			Source:    m.Path(src),
			Output:    m.Path(bin),
			Dir:       m.Path(dir),
			Sanitizer: m.SanitizerAddress,
			Timeout:   time.Minute,
		})
		require.NoError(t, err)

		if !result.Succeeded() {
			t.Skipf("sanitized build unavailable: %s", result.Output)
		}

		execution, err := process.Run(ctx, ProcessRequest{
			Path:    bin,
			Dir:     dir,
			Env:     SanitizerEnv(m.SanitizerAddress),
			Timeout: 10 * time.Second,
		})
		require.NoError(t, err)

		return execution
	}

	fault := run(t, "#include <cstdio>\nint main() { int *p = new int(4); delete p; std::printf(\"%d\\n\", *p); return 0; }\n")
	assert.False(t, fault.Exit.Success())
	assert.Contains(t, string(fault.Stderr), "AddressSanitizer")

	fix := run(t, "#include <cstdio>\nint main() { int *p = new int(4); std::printf(\"%d\\n\", *p); delete p; return 0; }\n")
	assert.True(t, fix.Exit.Success(), "stderr: %s", fix.Stderr)
	assert.Equal(t, "4\n", string(fix.Stdout))
}

func TestSanitizedBuild_InfiniteLoopTimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("compiles C++")
	}

	if _, err := exec.LookPath(DefaultCompiler); err != nil {
		t.Skip("no C++ compiler on PATH")
	}

	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "loop.cpp")
	bin := filepath.Join(dir, "loop.bin")

	require.NoError(t, NewLocalSourceFSAdapter("").WriteFile(ctx, m.Path(src), []byte("int main() { volatile int x = 0; for (;;) { x = x + 1; } }\n"), 0o600))

	process := NewLocalProcessAdapter()

	result, err := NewLocalCompilerAdapter("", nil, process).Compile(ctx, CompileRequest{
		Source:  m.Path(src),
		Output:  m.Path(bin),
		Dir:     m.Path(dir),
		Timeout: time.Minute,
	})
	require.NoError(t, err)
	require.True(t, result.Succeeded(), "compile output: %s", result.Output)

	start := time.Now()

	execution, err := process.Run(ctx, ProcessRequest{Path: bin, Dir: dir, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, m.ExitTimedOut, execution.Exit.Kind)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
