package controller

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "defectbench.dev/pkg/defectbench/internal/model"
)

var (
	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// SimpleUI implements UI by printing through the cobra command output.
type SimpleUI struct {
	cmd    *cobra.Command
	config StartConfig
	color  bool
}

// NewSimpleUI creates a new SimpleUI. Status labels are colored only when
// the command writes to a terminal.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd, color: IsTTY(cmd.OutOrStdout())}
}

// IsTTY reports whether w is a terminal.
func IsTTY(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, option := range options {
		option(&s.config)
	}

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(_ context.Context) {}

// DisplayCorpusSummary prints fault and fix counts per category.
func (s *SimpleUI) DisplayCorpusSummary(ctx context.Context, cases []m.TestCase) {
	if err := ctx.Err(); err != nil {
		return
	}

	type row struct{ faults, fixes int }

	rows := map[m.Category]*row{}

	for _, tc := range cases {
		r, ok := rows[tc.Category]
		if !ok {
			r = &row{}
			rows[tc.Category] = r
		}

		if tc.IsFault() {
			r.faults++
		} else {
			r.fixes++
		}
	}

	categories := sortedCategories(rows)

	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Category", "Fault", "Fix"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER})

	faults, fixes := 0, 0

	for _, category := range categories {
		r := rows[category]
		faults += r.faults
		fixes += r.fixes

		table.Append([]string{string(category), fmt.Sprintf("%d", r.faults), fmt.Sprintf("%d", r.fixes)})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total %d cases", len(cases)),
		fmt.Sprintf("%d", faults),
		fmt.Sprintf("%d", fixes),
	})
	table.Render()

	s.printf("\n%s", buf.String())
}

// DisplayConcurrencyInfo shows the worker count.
func (s *SimpleUI) DisplayConcurrencyInfo(ctx context.Context, workers int, units int) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Running %d trial(s) with %d worker(s)\n", units, workers)
}

// DisplayStartingTrialInfo shows a trial being dispatched.
func (s *SimpleUI) DisplayStartingTrialInfo(ctx context.Context, tc m.TestCase, workerID int) {
	if err := ctx.Err(); err != nil || !s.config.progress {
		return
	}

	s.printf("%s %s (%s, %s)\n", s.style(dimStyle, fmt.Sprintf("[w%d]", workerID)), tc.ID, tc.Category, tc.Variant)
}

// DisplayCompletedTrialInfo shows the classification of a finished unit.
// It is printed even after cancellation so partial runs stay readable.
func (s *SimpleUI) DisplayCompletedTrialInfo(_ context.Context, outcome m.Outcome, cls m.Classification) {
	if !s.config.progress {
		return
	}

	s.printf("%s %s oracle=%s tool=%s %s\n",
		s.classificationLabel(cls),
		outcome.TestCase.ID,
		outcome.Oracle.Kind,
		outcome.Tool.Kind,
		s.style(dimStyle, outcome.Trial.Exit.String()),
	)
}

// DisplayReport renders per-category statistics and the findings list.
func (s *SimpleUI) DisplayReport(_ context.Context, report m.Report) {
	if report.Cancelled {
		s.printf("%s\n", s.style(warnStyle, "Run cancelled: partial results"))
	}

	s.printf("\n%s", renderStatsTable(report))

	if len(report.Findings) == 0 {
		return
	}

	s.printf("\nFindings (%d):\n", len(report.Findings))

	for _, finding := range report.Findings {
		detail := firstLine(finding.Detail)
		s.printf("  %s %s [%s] %s\n", s.findingLabel(finding.Kind), finding.TestCaseID, finding.Category, detail)
	}
}

// DisplayImportSummary reports the derived metadata and every file that
// could not be paired or labeled.
func (s *SimpleUI) DisplayImportSummary(_ context.Context, summary m.ImportSummary) {
	faults := 0

	for _, tc := range summary.Cases {
		if tc.IsFault() {
			faults++
		}
	}

	s.printf("Wrote %d case(s) (%d fault, %d fix) to %s\n", len(summary.Cases), faults, len(summary.Cases)-faults, summary.Output)

	for _, path := range summary.Unpaired {
		s.printf("%s %s\n", s.style(warnStyle, "unpaired"), path)
	}

	for _, path := range summary.Unlabeled {
		s.printf("%s %s\n", s.style(warnStyle, "no category"), path)
	}
}

func renderStatsTable(report m.Report) string {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Category", "TP", "FP", "TN", "FN", "Harness", "Tool err", "Precision", "Recall", "F1"})
	table.SetBorder(false)
	table.SetCenterSeparator("")

	for _, category := range sortedCategories(report.Categories) {
		table.Append(statsRow(string(category), report.Categories[category]))
	}

	table.SetFooter(statsRow("Overall", report.Overall))
	table.Render()

	return buf.String()
}

func statsRow(name string, stats m.Stats) []string {
	rate := func(v float64) string {
		if stats.InsufficientData && v == 0 {
			return "n/a"
		}

		return fmt.Sprintf("%.3f", v)
	}

	return []string{
		name,
		fmt.Sprintf("%d", stats.TP),
		fmt.Sprintf("%d", stats.FP),
		fmt.Sprintf("%d", stats.TN),
		fmt.Sprintf("%d", stats.FN),
		fmt.Sprintf("%d", stats.HarnessErrors),
		fmt.Sprintf("%d", stats.ToolErrors),
		rate(stats.Precision),
		rate(stats.Recall),
		rate(stats.F1),
	}
}

func sortedCategories[V any](rows map[m.Category]V) []m.Category {
	categories := make([]m.Category, 0, len(rows))
	for category := range rows {
		categories = append(categories, category)
	}

	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	return categories
}

func (s *SimpleUI) classificationLabel(cls m.Classification) string {
	label := fmt.Sprintf("%-4s", cls.String())

	switch cls {
	case m.TruePositive, m.TrueNegative:
		return s.style(goodStyle, label)
	case m.FalsePositive, m.FalseNegative:
		return s.style(badStyle, label)
	default:
		return s.style(warnStyle, label)
	}
}

func (s *SimpleUI) findingLabel(kind m.FindingKind) string {
	switch kind {
	case m.FindingOracleMismatch:
		return s.style(badStyle, string(kind))
	default:
		return s.style(warnStyle, string(kind))
	}
}

func (s *SimpleUI) style(style lipgloss.Style, text string) string {
	if !s.color {
		return text
	}

	return style.Render(text)
}

func (s *SimpleUI) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return line
}
