// Package controller provides console output for defectbench runs.
package controller

import (
	"context"

	m "defectbench.dev/pkg/defectbench/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeRun StartMode = iota
	ModeValidate
	ModeView
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode     StartMode
	progress bool
}

// WithRunMode sets the UI to evaluation mode.
func WithRunMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeRun
	}
}

// WithValidateMode sets the UI to corpus validation mode.
func WithValidateMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeValidate
	}
}

// WithViewMode sets the UI to report rendering mode.
func WithViewMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeView
	}
}

// WithProgress enables one line per started and completed trial.
func WithProgress(enabled bool) StartOption {
	return func(c *StartConfig) {
		c.progress = enabled
	}
}

// UI defines the interface for displaying run progress and reports.
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	DisplayCorpusSummary(ctx context.Context, cases []m.TestCase)
	DisplayConcurrencyInfo(ctx context.Context, workers int, units int)
	DisplayStartingTrialInfo(ctx context.Context, tc m.TestCase, workerID int)
	DisplayCompletedTrialInfo(ctx context.Context, outcome m.Outcome, cls m.Classification)
	DisplayReport(ctx context.Context, report m.Report)
	DisplayImportSummary(ctx context.Context, summary m.ImportSummary)
}
