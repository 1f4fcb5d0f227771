// Package mocks provides testify mocks of the adapter interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"defectbench.dev/pkg/defectbench/internal/adapter"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockProcessAdapter is a mock implementation of adapter.ProcessAdapter.
type MockProcessAdapter struct {
	mock.Mock
}

// NewMockProcessAdapter creates a MockProcessAdapter whose expectations are
// asserted when the test ends.
func NewMockProcessAdapter(t testingT) *MockProcessAdapter {
	mk := &MockProcessAdapter{}
	mk.Mock.Test(t)

	t.Cleanup(func() { mk.AssertExpectations(t) })

	return mk
}

// Run provides a mock function.
func (_m *MockProcessAdapter) Run(ctx context.Context, req adapter.ProcessRequest) (m.Execution, error) {
	ret := _m.Called(ctx, req)
	if len(ret) == 0 {
		panic("no return value specified for Run")
	}

	if rf, ok := ret.Get(0).(func(context.Context, adapter.ProcessRequest) (m.Execution, error)); ok {
		return rf(ctx, req)
	}

	return ret.Get(0).(m.Execution), ret.Error(1)
}
