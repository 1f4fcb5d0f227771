package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"defectbench.dev/pkg/defectbench/internal/adapter"
	"defectbench.dev/pkg/defectbench/internal/controller"
	m "defectbench.dev/pkg/defectbench/internal/model"
	"defectbench.dev/pkg/defectbench/pkg"
)

// GateConfig holds the maximum tolerated error rates. A negative
// threshold disables that check.
type GateConfig struct {
	FNRate float64
	FPRate float64
}

// CompilerConfig selects the compiler driver and its base flags.
type CompilerConfig struct {
	Path  string
	Flags []string
}

// CompilerFactory builds the compiler adapter for a run.
type CompilerFactory func(cfg CompilerConfig) adapter.CompilerAdapter

// RunArgs contains the arguments for an evaluation run.
type RunArgs struct {
	CorpusDir      m.Path
	Category       m.Category
	Tool           ToolConfig
	Compiler       CompilerConfig
	Build          BuildOptions
	Workers        int
	MaxOutputBytes int
	Output         m.Path
	SpillDir       string
	Progress       bool
	Gate           GateConfig
}

// ValidateArgs contains the arguments for corpus validation.
type ValidateArgs struct {
	CorpusDir m.Path
	Category  m.Category
}

// ImportArgs contains the arguments for deriving metadata from a legacy corpus.
type ImportArgs struct {
	From   m.Path
	Output m.Path
}

// ViewArgs contains the arguments for rendering a saved report.
type ViewArgs struct {
	Input m.Path
}

// MergeArgs contains the arguments for combining reports of disjoint runs.
type MergeArgs struct {
	Inputs []m.Path
	Output m.Path
	Gate   GateConfig
}

// Workflow defines the top-level defectbench operations.
type Workflow interface {
	Run(ctx context.Context, args RunArgs) error
	Validate(ctx context.Context, args ValidateArgs) error
	Import(ctx context.Context, args ImportArgs) error
	View(ctx context.Context, args ViewArgs) error
	Merge(ctx context.Context, args MergeArgs) error
}

type workflow struct {
	adapter.ReportStore
	adapter.SourceFSAdapter
	controller.UI
	process     adapter.ProcessAdapter
	newCompiler CompilerFactory
	loader      CorpusLoader
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(
	fsAdapter adapter.SourceFSAdapter,
	reportStore adapter.ReportStore,
	process adapter.ProcessAdapter,
	newCompiler CompilerFactory,
	ui controller.UI,
	loader CorpusLoader,
) Workflow {
	return &workflow{
		SourceFSAdapter: fsAdapter,
		ReportStore:     reportStore,
		UI:              ui,
		process:         process,
		newCompiler:     newCompiler,
		loader:          loader,
	}
}

// Run evaluates the tool against the corpus and writes the report. Only
// configuration-level failures and a failed gate are returned as errors;
// a cancelled run still writes the partial report and returns nil.
func (w *workflow) Run(ctx context.Context, args RunArgs) error {
	if err := w.Start(ctx, controller.WithRunMode(), controller.WithProgress(args.Progress)); err != nil {
		return err
	}
	defer w.Close(ctx)

	compiler := w.newCompiler(args.Compiler)
	if err := compiler.Preflight(ctx); err != nil {
		slog.Error("Compiler preflight failed", "error", err)
		return fmt.Errorf("compiler: %w", err)
	}

	cases, err := w.loadCases(ctx, args.CorpusDir, args.Category)
	if err != nil {
		return err
	}

	w.DisplayCorpusSummary(ctx, cases)

	invoker, err := NewAnalysisInvoker(w.SourceFSAdapter, w.process, args.Tool)
	if err != nil {
		return fmt.Errorf("tool: %w", err)
	}

	spill, err := pkg.NewFileSpill[m.Outcome](args.SpillDir)
	if err != nil {
		return fmt.Errorf("outcome spill: %w", err)
	}

	defer func() {
		if err := spill.Close(); err != nil {
			slog.Error("Failed to close outcome spill", "error", err)
		}
	}()

	runID := uuid.NewString()
	startedAt := time.Now()

	slog.Info("Run started", "run_id", runID, "cases", len(cases), "workers", args.Workers)

	runner := NewTrialRunner(w.SourceFSAdapter, compiler, w.process, args.MaxOutputBytes)
	oracle := NewDynamicOracle(runner, cases)
	scheduler := NewScheduler(runner, oracle, invoker, w.UI, args.Workers)

	stats, err := scheduler.Schedule(ctx, BuildUnits(cases, args.Build), spill)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	report, err := w.aggregate(spill, runID, startedAt, stats.Cancelled)
	if err != nil {
		return err
	}

	if err := w.SaveReport(args.Output, report); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	slog.Info("Run finished",
		"run_id", runID,
		"completed", stats.Completed,
		"skipped", stats.Skipped,
		"cancelled", stats.Cancelled,
		"report", args.Output,
	)

	w.DisplayReport(ctx, report)

	return CheckGate(report.Overall, args.Gate)
}

func (w *workflow) loadCases(ctx context.Context, dir m.Path, category m.Category) ([]m.TestCase, error) {
	cases, err := w.loader.Load(ctx, dir)
	if err != nil {
		return nil, err
	}

	filtered := FilterByCategory(cases, category)
	if len(filtered) == 0 {
		return nil, corpusErr(string(category), string(dir), ErrEmptyCorpus)
	}

	return filtered, nil
}

func (w *workflow) aggregate(spill pkg.FileSpill[m.Outcome], runID string, startedAt time.Time, cancelled bool) (m.Report, error) {
	aggregator := NewResultAggregator()

	slog.Debug("Aggregating outcomes", "count", spill.Len())

	err := spill.Range(func(_ uint64, outcome m.Outcome) error {
		aggregator.Add(outcome)
		return nil
	})
	if err != nil {
		return m.Report{}, fmt.Errorf("read outcomes: %w", err)
	}

	return aggregator.Finalize(runID, startedAt, cancelled), nil
}

// CheckGate compares the false-negative and false-positive rates of stats
// against gate and wraps ErrGateFailed when either is exceeded.
func CheckGate(stats m.Stats, gate GateConfig) error {
	var failures []error

	if gate.FNRate >= 0 {
		if rate, ok := safeRatio(stats.FN, stats.TP+stats.FN); ok && rate > gate.FNRate {
			failures = append(failures, fmt.Errorf("false-negative rate %.3f exceeds %.3f", rate, gate.FNRate))
		}
	}

	if gate.FPRate >= 0 {
		if rate, ok := safeRatio(stats.FP, stats.FP+stats.TN); ok && rate > gate.FPRate {
			failures = append(failures, fmt.Errorf("false-positive rate %.3f exceeds %.3f", rate, gate.FPRate))
		}
	}

	if len(failures) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrGateFailed, errors.Join(failures...))
}

// Validate loads the corpus and prints its per-category summary.
func (w *workflow) Validate(ctx context.Context, args ValidateArgs) error {
	if err := w.Start(ctx, controller.WithValidateMode()); err != nil {
		return err
	}
	defer w.Close(ctx)

	cases, err := w.loadCases(ctx, args.CorpusDir, args.Category)
	if err != nil {
		return err
	}

	w.DisplayCorpusSummary(ctx, cases)

	return nil
}

// Import derives metadata from a legacy corpus and writes it to args.Output.
func (w *workflow) Import(ctx context.Context, args ImportArgs) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Close(ctx)

	doc, summary, err := DeriveLegacyMetadata(ctx, w.SourceFSAdapter, args.From, filepath.Dir(string(args.Output)))
	if err != nil {
		return err
	}

	if len(doc.Cases) == 0 {
		return corpusErr("", string(args.From), ErrEmptyCorpus)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if err := w.WriteFile(ctx, args.Output, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	summary.Output = args.Output
	w.DisplayImportSummary(ctx, summary)

	return nil
}

// View renders a saved report.
func (w *workflow) View(ctx context.Context, args ViewArgs) error {
	if err := w.Start(ctx, controller.WithViewMode()); err != nil {
		return err
	}
	defer w.Close(ctx)

	report, err := w.LoadReport(args.Input)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}

	w.DisplayReport(ctx, report)

	return nil
}

// Merge combines saved reports into args.Output and applies the gate to
// the combined statistics.
func (w *workflow) Merge(ctx context.Context, args MergeArgs) error {
	if err := w.Start(ctx, controller.WithViewMode()); err != nil {
		return err
	}
	defer w.Close(ctx)

	reports := make([]m.Report, 0, len(args.Inputs))

	for _, input := range args.Inputs {
		report, err := w.LoadReport(input)
		if err != nil {
			return fmt.Errorf("load report: %w", err)
		}

		reports = append(reports, report)
	}

	merged, err := MergeReports(uuid.NewString(), reports)
	if err != nil {
		return err
	}

	if err := w.SaveReport(args.Output, merged); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	slog.Info("Reports merged", "run_id", merged.RunID, "inputs", len(args.Inputs), "report", args.Output)

	w.DisplayReport(ctx, merged)

	return CheckGate(merged.Overall, args.Gate)
}
