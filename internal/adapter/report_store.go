package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	m "defectbench.dev/pkg/defectbench/internal/model"
)

// ReportStore persists run reports. The encoding is chosen by file
// extension: .json writes JSON, anything else writes YAML.
type ReportStore interface {
	SaveReport(path m.Path, report m.Report) error
	LoadReport(path m.Path) (m.Report, error)
}

// FileReportStore is the filesystem ReportStore.
type FileReportStore struct{}

// NewReportStore constructs a FileReportStore.
func NewReportStore() *FileReportStore {
	return &FileReportStore{}
}

// SaveReport writes the report atomically (temp file + rename).
func (s *FileReportStore) SaveReport(path m.Path, report m.Report) error {
	data, err := encodeReport(path, report)
	if err != nil {
		return err
	}

	dir := filepath.Dir(string(path))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}

	if err := os.Rename(tmp.Name(), string(path)); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}

	return nil
}

// LoadReport reads a report previously written by SaveReport.
func (s *FileReportStore) LoadReport(path m.Path) (m.Report, error) {
	// #nosec G304 - report path is supplied by the operator
	data, err := os.ReadFile(string(path))
	if err != nil {
		return m.Report{}, fmt.Errorf("read report: %w", err)
	}

	var report m.Report

	if isJSON(path) {
		err = json.Unmarshal(data, &report)
	} else {
		err = yaml.Unmarshal(data, &report)
	}

	if err != nil {
		return m.Report{}, fmt.Errorf("decode report %s: %w", path, err)
	}

	return report, nil
}

func encodeReport(path m.Path, report m.Report) ([]byte, error) {
	if isJSON(path) {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode report: %w", err)
		}

		return append(data, '\n'), nil
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	return data, nil
}

func isJSON(path m.Path) bool {
	return strings.EqualFold(filepath.Ext(string(path)), ".json")
}
