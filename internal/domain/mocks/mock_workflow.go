// Package mocks provides testify mocks of the domain interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"defectbench.dev/pkg/defectbench/internal/domain"
)

// MockWorkflow is a mock implementation of domain.Workflow.
type MockWorkflow struct {
	mock.Mock
}

// NewMockWorkflow creates a MockWorkflow whose expectations are asserted
// when the test ends.
func NewMockWorkflow(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockWorkflow {
	m := &MockWorkflow{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// Run provides a mock function.
func (_m *MockWorkflow) Run(ctx context.Context, args domain.RunArgs) error {
	ret := _m.Called(ctx, args)
	return returnError(ret, "Run")
}

// Validate provides a mock function.
func (_m *MockWorkflow) Validate(ctx context.Context, args domain.ValidateArgs) error {
	ret := _m.Called(ctx, args)
	return returnError(ret, "Validate")
}

// Import provides a mock function.
func (_m *MockWorkflow) Import(ctx context.Context, args domain.ImportArgs) error {
	ret := _m.Called(ctx, args)
	return returnError(ret, "Import")
}

// View provides a mock function.
func (_m *MockWorkflow) View(ctx context.Context, args domain.ViewArgs) error {
	ret := _m.Called(ctx, args)
	return returnError(ret, "View")
}

// Merge provides a mock function.
func (_m *MockWorkflow) Merge(ctx context.Context, args domain.MergeArgs) error {
	ret := _m.Called(ctx, args)
	return returnError(ret, "Merge")
}

func returnError(ret mock.Arguments, method string) error {
	if len(ret) == 0 {
		panic("no return value specified for " + method)
	}

	return ret.Error(0)
}
