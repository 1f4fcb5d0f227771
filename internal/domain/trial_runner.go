package domain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"defectbench.dev/pkg/defectbench/internal/adapter"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

// TrialRunner compiles and executes one test case under a build spec in an
// isolated, time-bounded workspace.
type TrialRunner interface {
	Run(ctx context.Context, tc m.TestCase, spec m.BuildSpec) m.Trial
}

type trialRunner struct {
	fsAdapter      adapter.SourceFSAdapter
	compiler       adapter.CompilerAdapter
	process        adapter.ProcessAdapter
	maxOutputBytes int
}

// NewTrialRunner constructs a TrialRunner backed by the provided adapters.
func NewTrialRunner(
	fsAdapter adapter.SourceFSAdapter,
	compiler adapter.CompilerAdapter,
	process adapter.ProcessAdapter,
	maxOutputBytes int,
) TrialRunner {
	return &trialRunner{
		fsAdapter:      fsAdapter,
		compiler:       compiler,
		process:        process,
		maxOutputBytes: maxOutputBytes,
	}
}

// Run never returns an error: every failure becomes the trial's exit status.
func (tr *trialRunner) Run(ctx context.Context, tc m.TestCase, spec m.BuildSpec) (trial m.Trial) {
	trial = m.Trial{
		ID:         uuid.NewString(),
		TestCaseID: tc.ID,
		BuildSpec:  spec,
		StartTime:  time.Now(),
	}

	defer func() {
		trial.Elapsed = time.Since(trial.StartTime)
	}()

	if ctx.Err() != nil {
		trial.Exit = m.ExitStatus{Kind: m.ExitCancelled, Code: -1}
		return trial
	}

	hash, err := tr.fsAdapter.HashFile(ctx, tc.SourcePath)
	if err != nil {
		return tr.harnessFailure(trial, "hash source", err)
	}

	trial.SourceHash = hash

	workDir, err := tr.fsAdapter.CreateTempDir(ctx, "defectbench-trial-*")
	if err != nil {
		return tr.harnessFailure(trial, "create workspace", err)
	}

	defer tr.cleanupWorkDir(ctx, workDir)

	source := tr.fsAdapter.JoinPath(ctx, string(workDir), filepath.Base(string(tc.SourcePath)))
	if err := tr.fsAdapter.CopyFile(ctx, tc.SourcePath, source); err != nil {
		return tr.harnessFailure(trial, "copy source", err)
	}

	binary := tr.fsAdapter.JoinPath(ctx, string(workDir), "trial.bin")

	compiled, err := tr.compiler.Compile(ctx, adapter.CompileRequest{
		Source:    source,
		Output:    binary,
		Dir:       workDir,
		Sanitizer: spec.Sanitizer,
		Flags:     spec.CompilerFlags,
		Timeout:   spec.CompileTimeout,
	})
	if err != nil {
		return tr.harnessFailure(trial, "compile", err)
	}

	trial.CompileOutput = compiled.Output

	switch {
	case compiled.Exit.Kind == m.ExitCancelled:
		trial.Exit = compiled.Exit
		return trial
	case compiled.Exit.Kind == m.ExitTimedOut:
		return tr.harnessFailure(trial, "compile", fmt.Errorf("compiler exceeded %s", spec.CompileTimeout))
	case !compiled.Succeeded():
		slog.Debug("Compile failed", "case", tc.ID, "exit", compiled.Exit.String())
		trial.Exit = m.ExitStatus{Kind: m.ExitCompileFailed, Code: compiled.Exit.Code, Signal: compiled.Exit.Signal}

		return trial
	}

	tr.execute(ctx, &trial, tc, workDir, binary)

	return trial
}

// execute runs the binary up to spec.Runs() times, stopping at the first
// run that shows a diagnostic.
func (tr *trialRunner) execute(ctx context.Context, trial *m.Trial, tc m.TestCase, workDir, binary m.Path) {
	env := append([]string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + string(workDir),
		"TMPDIR=" + string(workDir),
	}, adapter.SanitizerEnv(trial.BuildSpec.Sanitizer)...)

	for i := range trial.BuildSpec.Runs() {
		execution, err := tr.process.Run(ctx, adapter.ProcessRequest{
			Path:           string(binary),
			Args:           tc.Args,
			Dir:            string(workDir),
			Env:            env,
			Stdin:          tc.Stdin,
			Timeout:        trial.BuildSpec.Timeout,
			MaxOutputBytes: tr.maxOutputBytes,
		})
		if err != nil {
			*trial = tr.harnessFailure(*trial, "execute", err)
			return
		}

		trial.Executions = append(trial.Executions, execution)
		trial.Exit = execution.Exit

		if showsDiagnostic(execution) {
			slog.Debug("Diagnostic observed", "case", tc.ID, "run", i+1, "exit", execution.Exit.String())
			return
		}
	}
}

func (tr *trialRunner) harnessFailure(trial m.Trial, step string, err error) m.Trial {
	slog.Error("Trial harness failure", "case", trial.TestCaseID, "step", step, "error", err)

	trial.Exit = m.ExitStatus{Kind: m.ExitHarnessFailure, Code: -1}
	trial.Detail = fmt.Sprintf("%s: %v", step, err)

	return trial
}

// cleanupWorkDir removes the trial workspace, logging errors if cleanup fails.
func (tr *trialRunner) cleanupWorkDir(ctx context.Context, workDir m.Path) {
	if err := tr.fsAdapter.RemoveAll(ctx, workDir); err != nil {
		slog.Error("Failed to cleanup trial workspace", "dir", workDir, "error", err)
	}
}

// showsDiagnostic reports whether an execution ended abnormally or left a
// sanitizer report behind.
func showsDiagnostic(execution m.Execution) bool {
	if !execution.Exit.Success() {
		return true
	}

	return hasSanitizerReport(execution.Stderr)
}
