package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"defectbench.dev/pkg/defectbench/internal/adapter"
	adaptermocks "defectbench.dev/pkg/defectbench/internal/adapter/mocks"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

func withProcessAdapter(t *testing.T, process adapter.ProcessAdapter) {
	t.Helper()

	original := processAdapter
	processAdapter = process

	t.Cleanup(func() { processAdapter = original })
}

func TestVersionCmd_Output(t *testing.T) {
	process := adaptermocks.NewMockProcessAdapter(t)
	process.On("Run", mock.Anything, mock.MatchedBy(func(req adapter.ProcessRequest) bool {
		return len(req.Args) == 1 && req.Args[0] == "--version"
	})).Return(m.Execution{
		Exit:   m.ExitStatus{Kind: m.ExitNormal},
		Stdout: []byte("clang version 18.1.3\nTarget: x86_64-pc-linux-gnu\n"),
	}, nil)
	withProcessAdapter(t, process)

	cmd := newVersionCmd()

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	output := out.String()
	assert.Contains(t, output, "defectbench\t")
	assert.Contains(t, output, "compiler\tclang version 18.1.3\n")
	assert.NotContains(t, output, "Target:")
}

func TestVersionCmd_Short(t *testing.T) {
	cmd := newVersionCmd()
	t.Cleanup(func() { versionShortFlag = false })

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--short"})

	require.NoError(t, cmd.Execute())

	assert.Equal(t, readBuildVersion().Version+"\n", out.String())
}

func TestProbeCompiler(t *testing.T) {
	t.Run("missing compiler", func(t *testing.T) {
		process := adaptermocks.NewMockProcessAdapter(t)
		process.On("Run", mock.Anything, mock.Anything).Return(m.Execution{}, errors.New("exec: not found"))
		withProcessAdapter(t, process)

		assert.Equal(t, "g++-99: not found", probeCompiler(context.Background(), "g++-99"))
	})

	t.Run("failing compiler", func(t *testing.T) {
		process := adaptermocks.NewMockProcessAdapter(t)
		process.On("Run", mock.Anything, mock.MatchedBy(func(req adapter.ProcessRequest) bool {
			return req.Path == adapter.DefaultCompiler
		})).Return(m.Execution{Exit: m.ExitStatus{Kind: m.ExitNormal, Code: 1}}, nil)
		withProcessAdapter(t, process)

		assert.Equal(t, "c++: exit 1", probeCompiler(context.Background(), ""))
	})
}

func TestPrintVersion(t *testing.T) {
	var out bytes.Buffer

	printVersion(&out, buildVersion{Version: "v0.3.0", GoVersion: "go1.25.1", Revision: "abc123", Modified: true}, "g++ (GCC) 14.2.0")

	assert.Equal(t, "defectbench\tv0.3.0\nrevision\tabc123 (modified)\ngo\t\tgo1.25.1\ncompiler\tg++ (GCC) 14.2.0\n", out.String())
}
