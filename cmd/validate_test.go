package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"defectbench.dev/pkg/defectbench/internal/domain"
	domainmocks "defectbench.dev/pkg/defectbench/internal/domain/mocks"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

func TestValidateCmd_PassesCorpusAndCategory(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newValidateCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	mockWorkflow.On("Validate", mock.Anything, domain.ValidateArgs{
		CorpusDir: m.Path("fixtures"),
		Category:  m.CategoryMemoryManagement,
	}).Return(nil)

	cmd.SetArgs([]string{"validate", "-c", "fixtures", "--category", "memory_management"})
	require.NoError(t, cmd.Execute())
}

func TestValidateCmd_PropagatesCorpusError(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newValidateCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	corpusErr := &domain.CorpusError{ID: "TC01", File: "metadata.yaml", Err: domain.ErrDuplicateID}
	mockWorkflow.On("Validate", mock.Anything, mock.Anything).Return(corpusErr)

	cmd.SetArgs([]string{"validate"})
	err := cmd.Execute()

	require.ErrorIs(t, err, domain.ErrDuplicateID)
	require.Equal(t, exitHarnessError, exitCode(err))
}
