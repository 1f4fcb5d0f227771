package adapter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "defectbench.dev/pkg/defectbench/internal/model"
)

func sampleReport() m.Report {
	started := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	return m.Report{
		RunID:      "4b1f6c3e-run",
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Minute),
		Categories: map[m.Category]m.Stats{
			m.CategoryNullPointer: {
				Counts:    m.Counts{TP: 2, TN: 2},
				Precision: 1,
				Recall:    1,
				F1:        1,
			},
		},
		Overall: m.Stats{Counts: m.Counts{TP: 2, TN: 2, HarnessErrors: 1}, Precision: 1, Recall: 1, F1: 1},
		Findings: []m.Finding{
			{Kind: m.FindingHarnessError, TestCaseID: "TC03", Category: m.CategoryArrayBounds, Detail: "compile failed"},
		},
		Cases: []m.CaseResult{
			{TestCaseID: "TC01", Category: m.CategoryNullPointer, Variant: m.VariantFault, ExpectedDefect: true, Exit: "signal SIGSEGV", Classification: "TP"},
		},
	}
}

func TestFileReportStore_RoundTrip(t *testing.T) {
	for _, name := range []string{"report.yaml", "report.json"} {
		t.Run(name, func(t *testing.T) {
			store := NewReportStore()
			path := m.Path(filepath.Join(t.TempDir(), "nested", name))

			want := sampleReport()
			require.NoError(t, store.SaveReport(path, want))

			got, err := store.LoadReport(path)
			require.NoError(t, err)

			assert.Equal(t, want.RunID, got.RunID)
			assert.True(t, want.StartedAt.Equal(got.StartedAt))
			assert.Equal(t, want.Categories, got.Categories)
			assert.Equal(t, want.Overall, got.Overall)
			assert.Equal(t, want.Findings, got.Findings)
			assert.Equal(t, want.Cases, got.Cases)
		})
	}
}

func TestFileReportStore_EncodingFollowsExtension(t *testing.T) {
	store := NewReportStore()
	dir := t.TempDir()

	require.NoError(t, store.SaveReport(m.Path(filepath.Join(dir, "r.json")), sampleReport()))
	require.NoError(t, store.SaveReport(m.Path(filepath.Join(dir, "r.yaml")), sampleReport()))

	jsonData, err := os.ReadFile(filepath.Join(dir, "r.json"))
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"run_id": "4b1f6c3e-run"`)
	assert.Contains(t, string(jsonData), `"tp": 2`)

	yamlData, err := os.ReadFile(filepath.Join(dir, "r.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(yamlData), "run_id: 4b1f6c3e-run")
	assert.Contains(t, string(yamlData), "harness_errors: 1")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temporary files must not be left behind")
}

func TestFileReportStore_LoadErrors(t *testing.T) {
	store := NewReportStore()

	_, err := store.LoadReport(m.Path(filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err = store.LoadReport(m.Path(path))
	require.Error(t, err)
}
