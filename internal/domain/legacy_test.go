package domain

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defectbench.dev/pkg/defectbench/internal/adapter"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

func TestDeriveLegacyMetadata(t *testing.T) {
	from := filepath.Join("testdata", "legacy")
	fs := adapter.NewLocalSourceFSAdapter(t.TempDir())

	doc, summary, err := DeriveLegacyMetadata(context.Background(), fs, m.Path(from), from)
	require.NoError(t, err)

	require.Len(t, doc.Cases, 4)

	byID := map[string]MetadataRecord{}
	for _, rec := range doc.Cases {
		byID[rec.ID] = rec
	}

	tc01 := byID["TC01_uninit_arithmetic"]
	assert.Equal(t, string(m.CategoryUninitializedVariable), tc01.Category)
	assert.Equal(t, string(m.VariantFault), tc01.Variant)
	assert.True(t, tc01.ExpectedDefect)
	assert.Equal(t, "SOL01_uninit_arithmetic", tc01.Sibling)
	assert.Equal(t, "Testcases/TC01_uninit_arithmetic.cpp", tc01.Path)

	sol01 := byID["SOL01_uninit_arithmetic"]
	assert.False(t, sol01.ExpectedDefect)
	assert.Empty(t, sol01.Sibling)
	assert.Equal(t, "Solutions/SOL01_uninit_arithmetic.cpp", sol01.Path)

	assert.Equal(t, string(m.CategoryNullPointer), byID["TC02_null_deref"].Category)

	assert.Equal(t, []m.Path{
		m.Path(filepath.Join(from, "Solutions", "SOL06_div_zero.cpp")),
		m.Path(filepath.Join(from, "Solutions", "SOL08_double_free.cpp")),
		m.Path(filepath.Join(from, "Testcases", "TC08_double_free.cpp")),
	}, summary.Unpaired)

	assert.Equal(t, []m.Path{
		m.Path(filepath.Join(from, "Solutions", "SOL07_mystery.cpp")),
		m.Path(filepath.Join(from, "Testcases", "TC07_mystery.cpp")),
	}, summary.Unlabeled)

	require.Len(t, summary.Cases, 4)
	assert.Equal(t, m.VariantFix, summary.Cases[0].Variant)
}

func TestDeriveLegacyMetadata_RoundTripsThroughLoader(t *testing.T) {
	from := filepath.Join("testdata", "legacy")
	fs := adapter.NewLocalSourceFSAdapter(t.TempDir())

	out := t.TempDir()

	doc, _, err := DeriveLegacyMetadata(context.Background(), fs, m.Path(from), out)
	require.NoError(t, err)

	for _, rec := range doc.Cases {
		abs, err := filepath.Abs(filepath.Join(out, rec.Path))
		require.NoError(t, err)
		assert.FileExists(t, abs)
	}
}

func TestLegacyFileName(t *testing.T) {
	match := legacyFileName.FindStringSubmatch("TC045_race_condition.cpp")
	require.NotNil(t, match)
	assert.Equal(t, "TC", match[1])
	assert.Equal(t, "045", match[2])

	assert.NotNil(t, legacyFileName.FindStringSubmatch("sol3.cc"))
	assert.Nil(t, legacyFileName.FindStringSubmatch("TC01_notes.txt"))
	assert.Nil(t, legacyFileName.FindStringSubmatch("helper.cpp"))
}

func TestLegacyCategoryHeader(t *testing.T) {
	match := legacyCategory.FindSubmatch([]byte("// Category: Integer Overflow (Success Case)\n#include <climits>\n"))
	require.NotNil(t, match)
	assert.Equal(t, "Integer Overflow", string(match[1]))
}
