package mocks

import (
	"github.com/stretchr/testify/mock"

	m "defectbench.dev/pkg/defectbench/internal/model"
)

// MockReportStore is a mock implementation of adapter.ReportStore.
type MockReportStore struct {
	mock.Mock
}

// NewMockReportStore creates a MockReportStore whose expectations are
// asserted when the test ends.
func NewMockReportStore(t testingT) *MockReportStore {
	mk := &MockReportStore{}
	mk.Mock.Test(t)

	t.Cleanup(func() { mk.AssertExpectations(t) })

	return mk
}

// SaveReport provides a mock function.
func (_m *MockReportStore) SaveReport(path m.Path, report m.Report) error {
	ret := _m.Called(path, report)
	if len(ret) == 0 {
		panic("no return value specified for SaveReport")
	}

	return ret.Error(0)
}

// LoadReport provides a mock function.
func (_m *MockReportStore) LoadReport(path m.Path) (m.Report, error) {
	ret := _m.Called(path)
	if len(ret) == 0 {
		panic("no return value specified for LoadReport")
	}

	return ret.Get(0).(m.Report), ret.Error(1)
}
