// Package mocks provides testify mocks of the controller interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"defectbench.dev/pkg/defectbench/internal/controller"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

// MockUI is a mock implementation of controller.UI.
type MockUI struct {
	mock.Mock
}

// NewMockUI creates a MockUI whose expectations are asserted when the test ends.
func NewMockUI(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockUI {
	mk := &MockUI{}
	mk.Mock.Test(t)

	t.Cleanup(func() { mk.AssertExpectations(t) })

	return mk
}

// Start provides a mock function.
func (_m *MockUI) Start(ctx context.Context, options ...controller.StartOption) error {
	ret := _m.Called(ctx, options)
	if len(ret) == 0 {
		panic("no return value specified for Start")
	}

	return ret.Error(0)
}

// Close provides a mock function.
func (_m *MockUI) Close(ctx context.Context) {
	_m.Called(ctx)
}

// DisplayCorpusSummary provides a mock function.
func (_m *MockUI) DisplayCorpusSummary(ctx context.Context, cases []m.TestCase) {
	_m.Called(ctx, cases)
}

// DisplayConcurrencyInfo provides a mock function.
func (_m *MockUI) DisplayConcurrencyInfo(ctx context.Context, workers int, units int) {
	_m.Called(ctx, workers, units)
}

// DisplayStartingTrialInfo provides a mock function.
func (_m *MockUI) DisplayStartingTrialInfo(ctx context.Context, tc m.TestCase, workerID int) {
	_m.Called(ctx, tc, workerID)
}

// DisplayCompletedTrialInfo provides a mock function.
func (_m *MockUI) DisplayCompletedTrialInfo(ctx context.Context, outcome m.Outcome, cls m.Classification) {
	_m.Called(ctx, outcome, cls)
}

// DisplayReport provides a mock function.
func (_m *MockUI) DisplayReport(ctx context.Context, report m.Report) {
	_m.Called(ctx, report)
}

// DisplayImportSummary provides a mock function.
func (_m *MockUI) DisplayImportSummary(ctx context.Context, summary m.ImportSummary) {
	_m.Called(ctx, summary)
}
