package domain

import (
	"fmt"
	"sort"
	"sync"
	"time"

	m "defectbench.dev/pkg/defectbench/internal/model"
)

// Classify places one (label, oracle verdict, tool verdict) triple in the
// confusion matrix. Ground truth is the oracle verdict, never the label.
func Classify(oracle, tool m.Verdict) m.Classification {
	if oracle.Kind != m.DefectConfirmed && oracle.Kind != m.Clean {
		return m.HarnessError
	}

	if tool.Kind == m.ToolInvocationFailed {
		return m.ToolInvocationError
	}

	flagged := tool.Kind == m.ToolFlagged

	switch {
	case oracle.Kind == m.DefectConfirmed && flagged:
		return m.TruePositive
	case oracle.Kind == m.DefectConfirmed:
		return m.FalseNegative
	case flagged:
		return m.FalsePositive
	default:
		return m.TrueNegative
	}
}

// ComputeStats derives precision, recall and F1 from counts. Zero
// denominators yield 0 and set InsufficientData.
func ComputeStats(counts m.Counts) m.Stats {
	stats := m.Stats{Counts: counts}

	var ok bool

	stats.Precision, ok = safeRatio(counts.TP, counts.TP+counts.FP)
	stats.InsufficientData = stats.InsufficientData || !ok

	stats.Recall, ok = safeRatio(counts.TP, counts.TP+counts.FN)
	stats.InsufficientData = stats.InsufficientData || !ok

	// P+R = 0 with both denominators present is a real F1 of 0.
	if sum := stats.Precision + stats.Recall; sum > 0 {
		stats.F1 = 2 * stats.Precision * stats.Recall / sum
	}

	return stats
}

func safeRatio(num, den int) (float64, bool) {
	if den == 0 {
		return 0, false
	}

	return float64(num) / float64(den), true
}

// ResultAggregator reduces outcomes into per-category and global statistics.
// It is safe for concurrent use; the final report does not depend on the
// order in which outcomes were added.
type ResultAggregator struct {
	mu       sync.Mutex
	counts   map[m.Category]*m.Counts
	findings []m.Finding
	cases    []m.CaseResult
}

// NewResultAggregator creates an empty aggregator.
func NewResultAggregator() *ResultAggregator {
	return &ResultAggregator{counts: map[m.Category]*m.Counts{}}
}

// Add classifies outcome and records it.
func (ra *ResultAggregator) Add(outcome m.Outcome) m.Classification {
	tc := outcome.TestCase
	cls := Classify(outcome.Oracle, outcome.Tool)

	ra.mu.Lock()
	defer ra.mu.Unlock()

	counts, ok := ra.counts[tc.Category]
	if !ok {
		counts = &m.Counts{}
		ra.counts[tc.Category] = counts
	}

	counts.Add(cls)

	ra.cases = append(ra.cases, m.CaseResult{
		TestCaseID:     tc.ID,
		Category:       tc.Category,
		Variant:        tc.Variant,
		ExpectedDefect: tc.ExpectedDefect,
		SourceSHA256:   outcome.Trial.SourceHash,
		Exit:           outcome.Trial.Exit.String(),
		ElapsedMs:      outcome.Trial.Elapsed.Milliseconds(),
		Oracle:         verdictLabel(outcome.Oracle),
		Tool:           verdictLabel(outcome.Tool),
		Classification: cls.String(),
	})

	if outcome.Trial.Exit.Kind == m.ExitCancelled {
		ra.addFinding(m.FindingCancelled, tc, outcome.Oracle.Detail)
	} else if cls == m.HarnessError {
		ra.addFinding(m.FindingHarnessError, tc, outcome.Oracle.Detail)
	}

	if MismatchesLabel(tc, outcome.Oracle) {
		ra.addFinding(m.FindingOracleMismatch, tc, mismatchDetail(tc, outcome.Oracle))
	}

	if outcome.Tool.Kind == m.ToolInvocationFailed && cls != m.HarnessError {
		ra.addFinding(m.FindingToolInvocationError, tc, toolFailureDetail(outcome))
	}

	return cls
}

func (ra *ResultAggregator) addFinding(kind m.FindingKind, tc m.TestCase, detail string) {
	ra.findings = append(ra.findings, m.Finding{
		Kind:       kind,
		TestCaseID: tc.ID,
		Category:   tc.Category,
		Detail:     detail,
	})
}

// toolFailureDetail adds the first stderr line of the failed tool run.
func toolFailureDetail(outcome m.Outcome) string {
	if outcome.ToolRun == nil {
		return outcome.Tool.Detail
	}

	if line := firstLine(outcome.ToolRun.Stderr); line != "" {
		return outcome.Tool.Detail + ": " + line
	}

	return outcome.Tool.Detail
}

func mismatchDetail(tc m.TestCase, oracle m.Verdict) string {
	label := "expected clean"
	if tc.ExpectedDefect {
		label = "expected defect"
	}

	return label + ", observed " + oracle.Kind.String() + ": " + oracle.Detail
}

func verdictLabel(v m.Verdict) string {
	if v.Kind == m.ToolFlagged && v.Category != "" {
		return v.Kind.String() + "(" + string(v.Category) + ")"
	}

	return v.Kind.String()
}

// Finalize builds the report. Cases and findings are sorted so the result
// is identical regardless of dispatch order or worker count.
func (ra *ResultAggregator) Finalize(runID string, startedAt time.Time, cancelled bool) m.Report {
	ra.mu.Lock()
	defer ra.mu.Unlock()

	report := m.Report{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Cancelled:  cancelled,
		Categories: make(map[m.Category]m.Stats, len(ra.counts)),
		Findings:   append([]m.Finding(nil), ra.findings...),
		Cases:      append([]m.CaseResult(nil), ra.cases...),
	}

	var overall m.Counts

	for category, counts := range ra.counts {
		report.Categories[category] = ComputeStats(*counts)
		overall.Merge(*counts)
	}

	report.Overall = ComputeStats(overall)
	sortReport(&report)

	return report
}

func sortReport(report *m.Report) {
	sort.Slice(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i], report.Findings[j]
		if a.TestCaseID != b.TestCaseID {
			return a.TestCaseID < b.TestCaseID
		}

		return a.Kind < b.Kind
	})

	sort.Slice(report.Cases, func(i, j int) bool {
		return report.Cases[i].TestCaseID < report.Cases[j].TestCaseID
	})
}

// MergeReports combines reports of disjoint runs, for example one per
// category or machine, into a single report under runID. Counts are summed
// and the rates recomputed; a case present in two reports is an error.
func MergeReports(runID string, reports []m.Report) (m.Report, error) {
	merged := m.Report{
		RunID:      runID,
		Categories: map[m.Category]m.Stats{},
	}

	counts := map[m.Category]m.Counts{}
	seen := map[string]string{}

	for _, report := range reports {
		for _, cr := range report.Cases {
			if previous, ok := seen[cr.TestCaseID]; ok {
				return m.Report{}, fmt.Errorf("%w: %s is in runs %s and %s", ErrOverlappingReports, cr.TestCaseID, previous, report.RunID)
			}

			seen[cr.TestCaseID] = report.RunID
		}

		for category, stats := range report.Categories {
			c := counts[category]
			c.Merge(stats.Counts)
			counts[category] = c
		}

		if merged.StartedAt.IsZero() || report.StartedAt.Before(merged.StartedAt) {
			merged.StartedAt = report.StartedAt
		}

		if report.FinishedAt.After(merged.FinishedAt) {
			merged.FinishedAt = report.FinishedAt
		}

		merged.Cancelled = merged.Cancelled || report.Cancelled
		merged.Findings = append(merged.Findings, report.Findings...)
		merged.Cases = append(merged.Cases, report.Cases...)
	}

	var overall m.Counts

	for category, c := range counts {
		merged.Categories[category] = ComputeStats(c)
		overall.Merge(c)
	}

	merged.Overall = ComputeStats(overall)
	sortReport(&merged)

	return merged, nil
}

// Counts returns a snapshot of the per-category counts.
func (ra *ResultAggregator) Counts() map[m.Category]m.Counts {
	ra.mu.Lock()
	defer ra.mu.Unlock()

	out := make(map[m.Category]m.Counts, len(ra.counts))
	for category, counts := range ra.counts {
		out[category] = *counts
	}

	return out
}
