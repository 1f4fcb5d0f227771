package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defectbench.dev/pkg/defectbench/internal/domain"
)

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "defectbench", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.Equal(t, rootLongDescription, cmd.Long)
}

func TestRootCmd_HelpOutput(t *testing.T) {
	cmd := newRootCmd()
	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(&bytes.Buffer{})

	cmd.SetArgs([]string{})
	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, output.String(), "Usage:")
	assert.Contains(t, output.String(), "precision, recall and F1")
}

func TestInit(t *testing.T) {
	assert.NotNil(t, ui)
	assert.NotNil(t, fsAdapter)
	assert.NotNil(t, processAdapter)
	assert.NotNil(t, reportStore)
	assert.NotNil(t, corpusLoader)
	assert.NotNil(t, workflow)
}

func TestNewCompiler(t *testing.T) {
	compiler := newCompiler(domain.CompilerConfig{Path: "clang++", Flags: []string{"-O0"}})
	assert.NotNil(t, compiler)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"plain error", errors.New("boom"), exitHarnessError},
		{"gate", &ExitError{Code: exitGateFailed, Err: domain.ErrGateFailed}, exitGateFailed},
		{"wrapped exit error", fmt.Errorf("run: %w", &ExitError{Code: exitGateFailed, Err: domain.ErrGateFailed}), exitGateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	err := &ExitError{Code: exitGateFailed, Err: domain.ErrGateFailed}

	require.ErrorIs(t, err, domain.ErrGateFailed)
	assert.Equal(t, domain.ErrGateFailed.Error(), err.Error())
}

func TestExecute(t *testing.T) {
	originalRootCmd := rootCmd
	defer func() { rootCmd = originalRootCmd }()

	mockCmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}
	mockCmd.SetOut(&bytes.Buffer{})
	mockCmd.SetErr(&bytes.Buffer{})

	rootCmd = mockCmd

	Execute()
}

func TestExecute_ProcessLevel_Success(t *testing.T) {
	if os.Getenv("TEST_EXECUTE_SUBPROCESS") == "1" {
		mockCmd := &cobra.Command{
			Use: "test",
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Println("success")
				return nil
			},
		}
		mockCmd.SetOut(os.Stdout)
		mockCmd.SetErr(os.Stderr)
		rootCmd = mockCmd

		Execute()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestExecute_ProcessLevel_Success")
	cmd.Env = append(os.Environ(), "TEST_EXECUTE_SUBPROCESS=1")
	output, err := cmd.CombinedOutput()

	require.NoError(t, err, "output: %s", output)
	assert.Contains(t, string(output), "success")
}

func TestExecute_ProcessLevel_ExitCodes(t *testing.T) {
	if mode := os.Getenv("TEST_EXECUTE_SUBPROCESS_FAIL"); mode != "" {
		mockCmd := &cobra.Command{
			Use: "test",
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(os.Stderr, "error occurred")
				if mode == "gate" {
					return &ExitError{Code: exitGateFailed, Err: domain.ErrGateFailed}
				}

				return fmt.Errorf("command failed")
			},
		}
		mockCmd.SetOut(os.Stdout)
		mockCmd.SetErr(os.Stderr)
		rootCmd = mockCmd

		Execute()
		return
	}

	for mode, want := range map[string]int{"harness": exitHarnessError, "gate": exitGateFailed} {
		t.Run(mode, func(t *testing.T) {
			cmd := exec.Command(os.Args[0], "-test.run=TestExecute_ProcessLevel_ExitCodes")
			cmd.Env = append(os.Environ(), "TEST_EXECUTE_SUBPROCESS_FAIL="+mode)
			output, err := cmd.CombinedOutput()

			require.Error(t, err)

			var exitErr *exec.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, want, exitErr.ExitCode())
			assert.Contains(t, string(output), "error occurred")
		})
	}
}
