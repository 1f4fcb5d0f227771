package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"mvdan.cc/sh/v3/shell"

	"defectbench.dev/pkg/defectbench/internal/adapter"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

// SourcePlaceholder in a tool command line is replaced by the case's source path.
const SourcePlaceholder = "{source}"

// placeholderToken survives shell word splitting untouched.
const placeholderToken = "DEFECTBENCH_SOURCE_PLACEHOLDER"

// ErrEmptyToolCommand is returned for a blank tool command line.
var ErrEmptyToolCommand = errors.New("empty tool command")

// ToolConfig is the CLI contract of the tool under test.
type ToolConfig struct {
	Command        string
	Format         string
	Timeout        time.Duration
	OKExitCodes    []int
	MaxOutputBytes int
}

// AnalysisInvoker runs the tool under test against one case and normalizes
// its output into a verdict.
type AnalysisInvoker interface {
	Invoke(ctx context.Context, tc m.TestCase) (m.Verdict, *m.Execution)
}

type analysisInvoker struct {
	fsAdapter adapter.SourceFSAdapter
	process   adapter.ProcessAdapter
	parser    ToolOutputParser
	argv      []string
	cfg       ToolConfig
}

// NewAnalysisInvoker validates cfg and builds an invoker.
func NewAnalysisInvoker(fsAdapter adapter.SourceFSAdapter, process adapter.ProcessAdapter, cfg ToolConfig) (AnalysisInvoker, error) {
	argv, err := SplitToolCommand(cfg.Command)
	if err != nil {
		return nil, err
	}

	parser, err := ParserFor(cfg.Format)
	if err != nil {
		return nil, err
	}

	if len(cfg.OKExitCodes) == 0 {
		cfg.OKExitCodes = []int{0}
	}

	return &analysisInvoker{
		fsAdapter: fsAdapter,
		process:   process,
		parser:    parser,
		argv:      argv,
		cfg:       cfg,
	}, nil
}

// SplitToolCommand splits a shell-like command line into argv, appending
// the source placeholder when the command does not mention it.
func SplitToolCommand(command string) ([]string, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyToolCommand
	}

	fields, err := shell.Fields(strings.ReplaceAll(command, SourcePlaceholder, placeholderToken), nil)
	if err != nil {
		return nil, fmt.Errorf("parse tool command: %w", err)
	}

	if len(fields) == 0 {
		return nil, ErrEmptyToolCommand
	}

	if !slices.ContainsFunc(fields, func(f string) bool { return strings.Contains(f, placeholderToken) }) {
		fields = append(fields, placeholderToken)
	}

	return fields, nil
}

// ToolArgv substitutes source into a split command line.
func ToolArgv(argv []string, source m.Path) []string {
	out := make([]string, len(argv))
	for i, field := range argv {
		out[i] = strings.ReplaceAll(field, placeholderToken, string(source))
	}

	return out
}

func (ai *analysisInvoker) Invoke(ctx context.Context, tc m.TestCase) (m.Verdict, *m.Execution) {
	if ctx.Err() != nil {
		return toolError("cancelled"), nil
	}

	workDir, err := ai.fsAdapter.CreateTempDir(ctx, "defectbench-tool-*")
	if err != nil {
		return toolError(fmt.Sprintf("create workspace: %v", err)), nil
	}

	defer func() {
		if err := ai.fsAdapter.RemoveAll(ctx, workDir); err != nil {
			slog.Error("Failed to cleanup tool workspace", "dir", workDir, "error", err)
		}
	}()

	argv := ToolArgv(ai.argv, tc.SourcePath)

	execution, err := ai.process.Run(ctx, adapter.ProcessRequest{
		Path:           argv[0],
		Args:           argv[1:],
		Dir:            string(workDir),
		Env:            os.Environ(),
		Timeout:        ai.cfg.Timeout,
		MaxOutputBytes: ai.cfg.MaxOutputBytes,
	})
	if err != nil {
		slog.Error("Tool invocation failed", "case", tc.ID, "error", err)
		return toolError(err.Error()), nil
	}

	switch execution.Exit.Kind {
	case m.ExitNormal:
		if !slices.Contains(ai.cfg.OKExitCodes, execution.Exit.Code) {
			return toolError(fmt.Sprintf("tool %s", execution.Exit.String())), &execution
		}
	default:
		return toolError(fmt.Sprintf("tool %s", execution.Exit.String())), &execution
	}

	finding, err := ai.parser.Parse(execution.Stdout)
	if err != nil {
		slog.Debug("Unparseable tool output", "case", tc.ID, "parser", ai.parser.Name(), "error", err)
		return m.Verdict{Kind: m.ToolSilent, Detail: "unparseable output"}, &execution
	}

	if !finding.Flagged {
		return m.Verdict{Kind: m.ToolSilent}, &execution
	}

	verdict := m.Verdict{Kind: m.ToolFlagged}
	if finding.Category != nil {
		verdict.Category = *finding.Category
	}

	return verdict, &execution
}

func toolError(detail string) m.Verdict {
	return m.Verdict{Kind: m.ToolInvocationFailed, Detail: detail}
}
