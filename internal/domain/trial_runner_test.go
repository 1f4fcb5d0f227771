package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"defectbench.dev/pkg/defectbench/internal/adapter"
	adaptermocks "defectbench.dev/pkg/defectbench/internal/adapter/mocks"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

type runnerMocks struct {
	fs       *adaptermocks.MockSourceFSAdapter
	compiler *adaptermocks.MockCompilerAdapter
	process  *adaptermocks.MockProcessAdapter
}

func newRunnerUnderTest(t *testing.T) (TrialRunner, runnerMocks) {
	t.Helper()

	mocks := runnerMocks{
		fs:       adaptermocks.NewMockSourceFSAdapter(t),
		compiler: adaptermocks.NewMockCompilerAdapter(t),
		process:  adaptermocks.NewMockProcessAdapter(t),
	}

	return NewTrialRunner(mocks.fs, mocks.compiler, mocks.process, 4096), mocks
}

func (rm runnerMocks) expectWorkspace() {
	rm.fs.On("HashFile", mock.Anything, m.Path("/corpus/TC01.cpp")).Return("abc123", nil).Once()
	rm.fs.On("CreateTempDir", mock.Anything, "defectbench-trial-*").Return(m.Path("/tmp/trial-1"), nil).Once()
	rm.fs.On("JoinPath", mock.Anything, []string{"/tmp/trial-1", "TC01.cpp"}).Return(m.Path("/tmp/trial-1/TC01.cpp"))
	rm.fs.On("JoinPath", mock.Anything, []string{"/tmp/trial-1", "trial.bin"}).Return(m.Path("/tmp/trial-1/trial.bin"))
	rm.fs.On("CopyFile", mock.Anything, m.Path("/corpus/TC01.cpp"), m.Path("/tmp/trial-1/TC01.cpp")).Return(nil).Once()
	rm.fs.On("RemoveAll", mock.Anything, m.Path("/tmp/trial-1")).Return(nil).Once()
}

var runnerCase = m.TestCase{
	ID:         "TC01",
	Category:   m.CategoryMemoryManagement,
	Variant:    m.VariantFault,
	SourcePath: "/corpus/TC01.cpp",
	Args:       []string{"--n", "3"},
	Stdin:      "input\n",
}

func TestTrialRunner_CompileAndExecute(t *testing.T) {
	runner, mocks := newRunnerUnderTest(t)
	mocks.expectWorkspace()

	spec := m.BuildSpec{Sanitizer: m.SanitizerAddress, Timeout: time.Second, CompileTimeout: time.Minute}

	mocks.compiler.On("Compile", mock.Anything, mock.MatchedBy(func(req adapter.CompileRequest) bool {
		return req.Source == "/tmp/trial-1/TC01.cpp" &&
			req.Output == "/tmp/trial-1/trial.bin" &&
			req.Sanitizer == m.SanitizerAddress &&
			req.Timeout == time.Minute
	})).Return(adapter.CompileResult{Exit: m.ExitStatus{Kind: m.ExitNormal}}, nil).Once()

	crash := m.Execution{
		Exit:   m.ExitStatus{Kind: m.ExitSignaled, Code: -1, Signal: "SIGABRT"},
		Stderr: []byte("ERROR: AddressSanitizer: heap-use-after-free"),
	}

	mocks.process.On("Run", mock.Anything, mock.MatchedBy(func(req adapter.ProcessRequest) bool {
		hasASanOptions := false
		for _, kv := range req.Env {
			if strings.HasPrefix(kv, "ASAN_OPTIONS=") {
				hasASanOptions = true
			}
		}

		return req.Path == "/tmp/trial-1/trial.bin" &&
			req.Dir == "/tmp/trial-1" &&
			req.Stdin == "input\n" &&
			req.Timeout == time.Second &&
			req.MaxOutputBytes == 4096 &&
			len(req.Args) == 2 &&
			hasASanOptions
	})).Return(crash, nil).Once()

	trial := runner.Run(context.Background(), runnerCase, spec)

	assert.Equal(t, "TC01", trial.TestCaseID)
	assert.Equal(t, "abc123", trial.SourceHash)
	assert.NotEmpty(t, trial.ID)
	assert.Equal(t, m.ExitSignaled, trial.Exit.Kind)
	require.Len(t, trial.Executions, 1)
	assert.Equal(t, spec, trial.BuildSpec)
}

func TestTrialRunner_RepeatsUntilDiagnostic(t *testing.T) {
	runner, mocks := newRunnerUnderTest(t)
	mocks.expectWorkspace()

	mocks.compiler.On("Compile", mock.Anything, mock.Anything).
		Return(adapter.CompileResult{Exit: m.ExitStatus{Kind: m.ExitNormal}}, nil).Once()

	ok := m.Execution{Exit: m.ExitStatus{Kind: m.ExitNormal}}
	race := m.Execution{Exit: m.ExitStatus{Kind: m.ExitNormal, Code: 66}, Stderr: []byte("WARNING: ThreadSanitizer: data race")}

	mocks.process.On("Run", mock.Anything, mock.Anything).Return(ok, nil).Twice()
	mocks.process.On("Run", mock.Anything, mock.Anything).Return(race, nil).Once()

	trial := runner.Run(context.Background(), runnerCase, m.BuildSpec{Sanitizer: m.SanitizerThread, Repetitions: 10})

	assert.Len(t, trial.Executions, 3)
	assert.Equal(t, 66, trial.Exit.Code)
}

func TestTrialRunner_CompileFailure(t *testing.T) {
	runner, mocks := newRunnerUnderTest(t)
	mocks.expectWorkspace()

	mocks.compiler.On("Compile", mock.Anything, mock.Anything).Return(adapter.CompileResult{
		Exit:   m.ExitStatus{Kind: m.ExitNormal, Code: 1},
		Output: []byte("TC01.cpp:3: error: invalid conversion"),
	}, nil).Once()

	trial := runner.Run(context.Background(), runnerCase, m.BuildSpec{})

	assert.Equal(t, m.ExitCompileFailed, trial.Exit.Kind)
	assert.Contains(t, string(trial.CompileOutput), "invalid conversion")
	assert.Empty(t, trial.Executions)
}

func TestTrialRunner_CompileTimeoutIsHarnessFailure(t *testing.T) {
	runner, mocks := newRunnerUnderTest(t)
	mocks.expectWorkspace()

	mocks.compiler.On("Compile", mock.Anything, mock.Anything).
		Return(adapter.CompileResult{Exit: m.ExitStatus{Kind: m.ExitTimedOut, Code: -1}}, nil).Once()

	trial := runner.Run(context.Background(), runnerCase, m.BuildSpec{CompileTimeout: time.Second})

	assert.Equal(t, m.ExitHarnessFailure, trial.Exit.Kind)
	assert.Contains(t, trial.Detail, "compile")
}

func TestTrialRunner_WorkspaceFailure(t *testing.T) {
	runner, mocks := newRunnerUnderTest(t)

	mocks.fs.On("HashFile", mock.Anything, m.Path("/corpus/TC01.cpp")).Return("abc123", nil).Once()
	mocks.fs.On("CreateTempDir", mock.Anything, mock.Anything).Return(m.Path(""), errors.New("disk full")).Once()

	trial := runner.Run(context.Background(), runnerCase, m.BuildSpec{})

	assert.Equal(t, m.ExitHarnessFailure, trial.Exit.Kind)
	assert.Contains(t, trial.Detail, "disk full")
}

func TestTrialRunner_ExecFailure(t *testing.T) {
	runner, mocks := newRunnerUnderTest(t)
	mocks.expectWorkspace()

	mocks.compiler.On("Compile", mock.Anything, mock.Anything).
		Return(adapter.CompileResult{Exit: m.ExitStatus{Kind: m.ExitNormal}}, nil).Once()
	mocks.process.On("Run", mock.Anything, mock.Anything).Return(m.Execution{}, errors.New("exec format error")).Once()

	trial := runner.Run(context.Background(), runnerCase, m.BuildSpec{})

	assert.Equal(t, m.ExitHarnessFailure, trial.Exit.Kind)
	assert.Contains(t, trial.Detail, "execute")
}

func TestTrialRunner_CancelledBeforeStart(t *testing.T) {
	runner, _ := newRunnerUnderTest(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trial := runner.Run(ctx, runnerCase, m.BuildSpec{})

	assert.Equal(t, m.ExitCancelled, trial.Exit.Kind)
}
