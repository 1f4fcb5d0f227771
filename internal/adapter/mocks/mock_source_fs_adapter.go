package mocks

import (
	"context"
	"os"

	"github.com/stretchr/testify/mock"

	"defectbench.dev/pkg/defectbench/internal/adapter"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

// MockSourceFSAdapter is a mock implementation of adapter.SourceFSAdapter.
type MockSourceFSAdapter struct {
	mock.Mock
}

// NewMockSourceFSAdapter creates a MockSourceFSAdapter whose expectations
// are asserted when the test ends.
func NewMockSourceFSAdapter(t testingT) *MockSourceFSAdapter {
	mk := &MockSourceFSAdapter{}
	mk.Mock.Test(t)

	t.Cleanup(func() { mk.AssertExpectations(t) })

	return mk
}

// Walk provides a mock function.
func (_m *MockSourceFSAdapter) Walk(ctx context.Context, root m.Path, fn adapter.FilepathWalkFunc) error {
	ret := _m.Called(ctx, root, fn)
	if len(ret) == 0 {
		panic("no return value specified for Walk")
	}

	if rf, ok := ret.Get(0).(func(context.Context, m.Path, adapter.FilepathWalkFunc) error); ok {
		return rf(ctx, root, fn)
	}

	return ret.Error(0)
}

// ReadFile provides a mock function.
func (_m *MockSourceFSAdapter) ReadFile(ctx context.Context, path m.Path) ([]byte, error) {
	ret := _m.Called(ctx, path)
	if len(ret) == 0 {
		panic("no return value specified for ReadFile")
	}

	var r0 []byte
	if v := ret.Get(0); v != nil {
		r0 = v.([]byte)
	}

	return r0, ret.Error(1)
}

// HashFile provides a mock function.
func (_m *MockSourceFSAdapter) HashFile(ctx context.Context, path m.Path) (string, error) {
	ret := _m.Called(ctx, path)
	if len(ret) == 0 {
		panic("no return value specified for HashFile")
	}

	return ret.String(0), ret.Error(1)
}

// FileInfo provides a mock function.
func (_m *MockSourceFSAdapter) FileInfo(ctx context.Context, path m.Path) (os.FileInfo, error) {
	ret := _m.Called(ctx, path)
	if len(ret) == 0 {
		panic("no return value specified for FileInfo")
	}

	var r0 os.FileInfo
	if v := ret.Get(0); v != nil {
		r0 = v.(os.FileInfo)
	}

	return r0, ret.Error(1)
}

// CreateTempDir provides a mock function.
func (_m *MockSourceFSAdapter) CreateTempDir(ctx context.Context, pattern string) (m.Path, error) {
	ret := _m.Called(ctx, pattern)
	if len(ret) == 0 {
		panic("no return value specified for CreateTempDir")
	}

	return ret.Get(0).(m.Path), ret.Error(1)
}

// RemoveAll provides a mock function.
func (_m *MockSourceFSAdapter) RemoveAll(ctx context.Context, path m.Path) error {
	ret := _m.Called(ctx, path)
	if len(ret) == 0 {
		panic("no return value specified for RemoveAll")
	}

	return ret.Error(0)
}

// CopyFile provides a mock function.
func (_m *MockSourceFSAdapter) CopyFile(ctx context.Context, src, dst m.Path) error {
	ret := _m.Called(ctx, src, dst)
	if len(ret) == 0 {
		panic("no return value specified for CopyFile")
	}

	return ret.Error(0)
}

// WriteFile provides a mock function.
func (_m *MockSourceFSAdapter) WriteFile(ctx context.Context, path m.Path, content []byte, perm os.FileMode) error {
	ret := _m.Called(ctx, path, content, perm)
	if len(ret) == 0 {
		panic("no return value specified for WriteFile")
	}

	return ret.Error(0)
}

// JoinPath provides a mock function.
func (_m *MockSourceFSAdapter) JoinPath(ctx context.Context, elem ...string) m.Path {
	ret := _m.Called(ctx, elem)
	if len(ret) == 0 {
		panic("no return value specified for JoinPath")
	}

	return ret.Get(0).(m.Path)
}
