package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func chdirTemp(t *testing.T) string {
	t.Helper()

	tempDir := t.TempDir()
	originalWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tempDir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(originalWD)) })

	return tempDir
}

func runInit(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { initForceFlag = false })

	out := &bytes.Buffer{}

	cmd := newRootCmd()
	cmd.AddCommand(newInitCmd())
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"init"}, args...))

	err := cmd.Execute()

	return out.String(), err
}

func TestInitCmd_WritesConfigFile(t *testing.T) {
	tempDir := chdirTemp(t)

	output, err := runInit(t)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote "+configFileName)

	contents, err := os.ReadFile(filepath.Join(tempDir, configFileName))
	require.NoError(t, err)

	var written map[string]any
	require.NoError(t, yaml.Unmarshal(contents, &written))

	assert.EqualValues(t, currentConfigVersion, written[configVersionKey])
	assert.Contains(t, written, "tool")
	assert.Contains(t, written, "gate")
	assert.Contains(t, written, "oracle")
}

func TestInitCmd_KeepsExistingFile(t *testing.T) {
	tempDir := chdirTemp(t)

	targetPath := filepath.Join(tempDir, configFileName)
	require.NoError(t, os.WriteFile(targetPath, []byte("existing: true\n"), 0o644))

	_, err := runInit(t)
	require.Error(t, err)

	contents, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	assert.Equal(t, "existing: true\n", string(contents))
}

func TestInitCmd_ForceOverwrites(t *testing.T) {
	tempDir := chdirTemp(t)

	targetPath := filepath.Join(tempDir, configFileName)
	require.NoError(t, os.WriteFile(targetPath, []byte("existing: true\n"), 0o644))

	_, err := runInit(t, "--force")
	require.NoError(t, err)

	contents, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "corpus:")
}
