package domain

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/singleflight"

	"defectbench.dev/pkg/defectbench/internal/adapter"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

// maxDiffDetail bounds the stdout diff attached to a verdict.
const maxDiffDetail = 2048

var sanitizerMarkers = [][]byte{
	[]byte("ERROR: AddressSanitizer"),
	[]byte("ERROR: LeakSanitizer"),
	[]byte("WARNING: ThreadSanitizer"),
	[]byte("ERROR: ThreadSanitizer"),
	[]byte("SUMMARY: UndefinedBehaviorSanitizer"),
	[]byte("runtime error: "),
}

func hasSanitizerReport(stderr []byte) bool {
	for _, marker := range sanitizerMarkers {
		if bytes.Contains(stderr, marker) {
			return true
		}
	}

	return false
}

// DynamicOracle derives ground truth for a test case from observed
// behavior, independent of any tool under test and of the corpus label.
type DynamicOracle interface {
	Evaluate(ctx context.Context, tc m.TestCase, trial m.Trial) m.Verdict
}

type dynamicOracle struct {
	runner TrialRunner
	cases  map[string]m.TestCase

	group singleflight.Group
	mu    sync.Mutex
	refs  map[string]m.Trial
}

// NewDynamicOracle creates an oracle. runner and cases are used to compute
// reference outputs of paired fix variants on demand.
func NewDynamicOracle(runner TrialRunner, cases []m.TestCase) DynamicOracle {
	return &dynamicOracle{
		runner: runner,
		cases:  CaseIndex(cases),
		refs:   map[string]m.Trial{},
	}
}

func (o *dynamicOracle) Evaluate(ctx context.Context, tc m.TestCase, trial m.Trial) m.Verdict {
	policy := PolicyFor(tc.Category)

	switch trial.Exit.Kind {
	case m.ExitCancelled:
		return indeterminate("trial cancelled")
	case m.ExitHarnessFailure:
		return indeterminate(withDiagnostic(trial.Detail, trial.CompileOutput))
	case m.ExitCompileFailed:
		// A fix that does not build is a corpus problem, never ground truth.
		if !tc.IsFault() {
			return indeterminate(withDiagnostic("fix variant failed to compile", trial.CompileOutput))
		}

		if policy.CompileFailureIsDefect {
			return defect(withDiagnostic("rejected by the compiler", trial.CompileOutput))
		}

		return indeterminate(withDiagnostic("compile failed", trial.CompileOutput))
	case m.ExitTimedOut:
		if policy.TimeoutIsDefect {
			return defect(fmt.Sprintf("did not terminate within %s", trial.BuildSpec.Timeout))
		}

		return indeterminate(fmt.Sprintf("timed out after %s", trial.BuildSpec.Timeout))
	case m.ExitNormal, m.ExitSignaled:
	}

	if len(trial.Executions) == 0 {
		return indeterminate("no execution recorded")
	}

	switch policy.Strategy {
	case StrategyCrash:
		return crashVerdict(trial)
	case StrategyReference:
		return o.referenceVerdict(ctx, tc, trial)
	case StrategyRepeated:
		return repeatedVerdict(trial)
	case StrategyDetector:
		return detectorVerdict(trial)
	default:
		return indeterminate("no oracle strategy")
	}
}

func crashVerdict(trial m.Trial) m.Verdict {
	last := trial.Executions[len(trial.Executions)-1]

	switch {
	case last.Exit.Crashed():
		return defect("aborted with " + last.Exit.String())
	case hasSanitizerReport(last.Stderr):
		return defect("sanitizer report with " + last.Exit.String())
	case last.Exit.Success():
		return clean("exited 0")
	default:
		return indeterminate(last.Exit.String() + " without a sanitizer diagnostic")
	}
}

func repeatedVerdict(trial m.Trial) m.Verdict {
	for i, execution := range trial.Executions {
		if showsDiagnostic(execution) {
			return defect(fmt.Sprintf("run %d/%d reported %s", i+1, trial.BuildSpec.Runs(), execution.Exit.String()))
		}
	}

	return clean(fmt.Sprintf("%d clean runs", len(trial.Executions)))
}

func detectorVerdict(trial m.Trial) m.Verdict {
	last := trial.Executions[len(trial.Executions)-1]

	switch {
	case hasSanitizerReport(last.Stderr):
		return defect("detector report with " + last.Exit.String())
	case last.Exit.Crashed():
		return defect("crashed with " + last.Exit.String())
	case last.Exit.Kind == m.ExitNormal && last.Exit.Code == adapter.SanitizerExitCode:
		return defect("sanitizer exit code")
	case last.Exit.Kind == m.ExitNormal && last.Exit.Code >= 128:
		return defect(fmt.Sprintf("crash-style exit code %d", last.Exit.Code))
	case last.Exit.Success():
		return clean("exited 0")
	default:
		return indeterminate(last.Exit.String() + " without a detector report")
	}
}

func (o *dynamicOracle) referenceVerdict(ctx context.Context, tc m.TestCase, trial m.Trial) m.Verdict {
	last := trial.Executions[len(trial.Executions)-1]

	if !tc.IsFault() {
		o.seedReference(tc, trial)

		switch {
		case last.Exit.Crashed():
			return defect("aborted with " + last.Exit.String())
		case last.Exit.Success():
			return clean("exited 0")
		default:
			return indeterminate(last.Exit.String())
		}
	}

	if tc.Sibling == "" {
		return indeterminate("no designated fix to derive the reference output from")
	}

	fix, ok := o.cases[tc.Sibling]
	if !ok {
		return indeterminate(fmt.Sprintf("fix %s not loaded", tc.Sibling))
	}

	ref, err := o.reference(ctx, fix, tc, trial.BuildSpec)
	if err != nil {
		return indeterminate(err.Error())
	}

	refRun := ref.Executions[len(ref.Executions)-1]

	switch {
	case last.Exit.Crashed():
		return defect("aborted with " + last.Exit.String())
	case last.Exit.Code != refRun.Exit.Code:
		return defect(fmt.Sprintf("%s, reference %s", last.Exit.String(), refRun.Exit.String()))
	case !bytes.Equal(last.Stdout, refRun.Stdout):
		return defect("stdout differs from reference\n" + stdoutDiff(fix.ID, tc.ID, refRun.Stdout, last.Stdout))
	default:
		return clean("matches reference output of " + fix.ID)
	}
}

// reference returns the trial of fix run with the inputs of tc under spec,
// computing it at most once per key.
func (o *dynamicOracle) reference(ctx context.Context, fix, tc m.TestCase, spec m.BuildSpec) (m.Trial, error) {
	fix.Args = tc.Args
	fix.Stdin = tc.Stdin
	key := referenceKey(fix, spec)

	if ref, ok := o.cachedReference(key); ok {
		return ref, nil
	}

	value, err, _ := o.group.Do(key, func() (any, error) {
		if ref, ok := o.cachedReference(key); ok {
			return ref, nil
		}

		slog.Debug("Computing reference output", "fix", fix.ID, "for", tc.ID)

		ref := o.runner.Run(ctx, fix, spec)
		if ref.Exit.Kind == m.ExitCancelled {
			return nil, fmt.Errorf("reference run of %s cancelled", fix.ID)
		}

		if !ref.Exit.Success() || len(ref.Executions) == 0 {
			return nil, fmt.Errorf("reference run of %s ended with %s", fix.ID, ref.Exit.String())
		}

		o.storeReference(key, ref)

		return ref, nil
	})
	if err != nil {
		return m.Trial{}, err
	}

	ref, _ := value.(m.Trial)

	return ref, nil
}

func (o *dynamicOracle) seedReference(fix m.TestCase, trial m.Trial) {
	if !trial.Exit.Success() || len(trial.Executions) == 0 {
		return
	}

	key := referenceKey(fix, trial.BuildSpec)
	if _, ok := o.cachedReference(key); ok {
		return
	}

	o.storeReference(key, trial)
}

func (o *dynamicOracle) cachedReference(key string) (m.Trial, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ref, ok := o.refs[key]

	return ref, ok
}

func (o *dynamicOracle) storeReference(key string, trial m.Trial) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.refs[key] = trial
}

func referenceKey(fix m.TestCase, spec m.BuildSpec) string {
	return strings.Join([]string{
		fix.ID,
		spec.String(),
		strings.Join(spec.CompilerFlags, " "),
		strings.Join(fix.Args, "\x00"),
		fix.Stdin,
	}, "\x1f")
}

func stdoutDiff(fromID, toID string, from, to []byte) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(from)),
		B:        difflib.SplitLines(string(to)),
		FromFile: fromID,
		ToFile:   toID,
		Context:  1,
	})
	if err != nil {
		return ""
	}

	if len(diff) > maxDiffDetail {
		return diff[:maxDiffDetail] + "\n[diff truncated]"
	}

	return diff
}

// withDiagnostic appends the first compiler diagnostic in output to detail.
func withDiagnostic(detail string, output []byte) string {
	diag := firstDiagnostic(output)
	if diag == "" {
		return detail
	}

	return detail + ": " + diag
}

// firstDiagnostic returns the first "error:" line of compiler output, or its
// first non-empty line, with the workspace directory cut from the location.
func firstDiagnostic(output []byte) string {
	diag := firstLine(output)

	for _, line := range strings.Split(string(output), "\n") {
		if strings.Contains(line, "error:") {
			diag = strings.TrimSpace(line)
			break
		}
	}

	if loc, msg, ok := strings.Cut(diag, ": "); ok && filepath.IsAbs(loc) {
		diag = filepath.Base(loc) + ": " + msg
	}

	return diag
}

// firstLine returns the first non-blank line of output.
func firstLine(output []byte) string {
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}

	return ""
}

// MismatchesLabel reports whether a decided oracle verdict contradicts the
// corpus label of tc.
func MismatchesLabel(tc m.TestCase, verdict m.Verdict) bool {
	switch verdict.Kind {
	case m.DefectConfirmed:
		return !tc.ExpectedDefect
	case m.Clean:
		return tc.ExpectedDefect
	default:
		return false
	}
}

func defect(detail string) m.Verdict {
	return m.Verdict{Kind: m.DefectConfirmed, Detail: detail}
}

func clean(detail string) m.Verdict {
	return m.Verdict{Kind: m.Clean, Detail: detail}
}

func indeterminate(detail string) m.Verdict {
	return m.Verdict{Kind: m.Indeterminate, Detail: detail}
}
