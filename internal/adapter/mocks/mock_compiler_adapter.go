package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"defectbench.dev/pkg/defectbench/internal/adapter"
)

// MockCompilerAdapter is a mock implementation of adapter.CompilerAdapter.
type MockCompilerAdapter struct {
	mock.Mock
}

// NewMockCompilerAdapter creates a MockCompilerAdapter whose expectations
// are asserted when the test ends.
func NewMockCompilerAdapter(t testingT) *MockCompilerAdapter {
	mk := &MockCompilerAdapter{}
	mk.Mock.Test(t)

	t.Cleanup(func() { mk.AssertExpectations(t) })

	return mk
}

// Preflight provides a mock function.
func (_m *MockCompilerAdapter) Preflight(ctx context.Context) error {
	ret := _m.Called(ctx)
	if len(ret) == 0 {
		panic("no return value specified for Preflight")
	}

	return ret.Error(0)
}

// Compile provides a mock function.
func (_m *MockCompilerAdapter) Compile(ctx context.Context, req adapter.CompileRequest) (adapter.CompileResult, error) {
	ret := _m.Called(ctx, req)
	if len(ret) == 0 {
		panic("no return value specified for Compile")
	}

	if rf, ok := ret.Get(0).(func(context.Context, adapter.CompileRequest) (adapter.CompileResult, error)); ok {
		return rf(ctx, req)
	}

	return ret.Get(0).(adapter.CompileResult), ret.Error(1)
}
