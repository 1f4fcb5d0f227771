package domain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"defectbench.dev/pkg/defectbench/internal/adapter"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

// MetadataRecord is one test case entry as written in a metadata file.
type MetadataRecord struct {
	ID             string   `yaml:"id" json:"id" validate:"required"`
	Category       string   `yaml:"category" json:"category" validate:"required,category"`
	Variant        string   `yaml:"variant" json:"variant" validate:"required,variant"`
	Path           string   `yaml:"path" json:"path" validate:"required"`
	ExpectedDefect bool     `yaml:"expectedDefect" json:"expectedDefect"`
	Sibling        string   `yaml:"sibling,omitempty" json:"sibling,omitempty"`
	Args           []string `yaml:"args,omitempty" json:"args,omitempty"`
	Stdin          string   `yaml:"stdin,omitempty" json:"stdin,omitempty"`
	Flags          []string `yaml:"flags,omitempty" json:"flags,omitempty"`
}

// MetadataFile is the document shape of a metadata file.
type MetadataFile struct {
	Cases []MetadataRecord `yaml:"cases" json:"cases"`
}

var recordValidate *validator.Validate

func init() {
	recordValidate = validator.New(validator.WithRequiredStructEnabled())

	_ = recordValidate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, err := m.ParseCategory(fl.Field().String())
		return err == nil
	})
	_ = recordValidate.RegisterValidation("variant", func(fl validator.FieldLevel) bool {
		_, err := m.ParseVariant(fl.Field().String())
		return err == nil
	})
}

// CorpusLoader reads and validates corpus metadata.
type CorpusLoader interface {
	Load(ctx context.Context, dir m.Path) ([]m.TestCase, error)
}

type corpusLoader struct {
	fs adapter.SourceFSAdapter
}

// NewCorpusLoader creates a CorpusLoader reading through fsAdapter.
func NewCorpusLoader(fsAdapter adapter.SourceFSAdapter) CorpusLoader {
	return &corpusLoader{fs: fsAdapter}
}

// Load walks dir for *.yaml, *.yml and *.json metadata files and returns
// the validated test cases sorted by id. Any violation is a *CorpusError.
func (cl *corpusLoader) Load(ctx context.Context, dir m.Path) ([]m.TestCase, error) {
	files, err := cl.metadataFiles(ctx, dir)
	if err != nil {
		return nil, err
	}

	byID := map[string]m.TestCase{}
	origin := map[string]string{}

	for _, file := range files {
		cases, err := cl.loadFile(ctx, file)
		if err != nil {
			return nil, err
		}

		for _, tc := range cases {
			if prev, dup := origin[tc.ID]; dup {
				slog.Error("Duplicate test case id", "id", tc.ID, "first", prev, "second", file)
				return nil, corpusErr(tc.ID, file, ErrDuplicateID)
			}

			origin[tc.ID] = file
			byID[tc.ID] = tc
		}
	}

	if len(byID) == 0 {
		return nil, corpusErr("", string(dir), ErrEmptyCorpus)
	}

	cases := make([]m.TestCase, 0, len(byID))
	for _, tc := range byID {
		cases = append(cases, tc)
	}

	sort.Slice(cases, func(i, j int) bool { return cases[i].ID < cases[j].ID })

	if err := validatePairing(cases, origin); err != nil {
		return nil, err
	}

	slog.Info("Corpus loaded", "dir", dir, "files", len(files), "cases", len(cases))

	return cases, nil
}

func (cl *corpusLoader) metadataFiles(ctx context.Context, dir m.Path) ([]string, error) {
	info, err := cl.fs.FileInfo(ctx, dir)
	if err != nil {
		return nil, corpusErr("", string(dir), err)
	}

	if !info.IsDir() {
		return nil, corpusErr("", string(dir), errors.New("not a directory"))
	}

	var files []string

	err = cl.fs.Walk(ctx, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, corpusErr("", string(dir), err)
	}

	sort.Strings(files)

	return files, nil
}

func (cl *corpusLoader) loadFile(ctx context.Context, file string) ([]m.TestCase, error) {
	data, err := cl.fs.ReadFile(ctx, m.Path(file))
	if err != nil {
		return nil, corpusErr("", file, err)
	}

	// JSON is a subset of YAML, so one decoder serves both.
	var head struct {
		Cases yaml.Node `yaml:"cases"`
		RunID string    `yaml:"run_id"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, corpusErr("", file, fmt.Errorf("%w: %w", ErrInvalidRecord, err))
	}

	// Reports written next to the corpus also carry a cases list.
	if head.RunID != "" {
		slog.Debug("Skipping report file in corpus", "file", file, "run_id", head.RunID)
		return nil, nil
	}

	if head.Cases.Kind == 0 {
		slog.Debug("Skipping file without cases", "file", file)
		return nil, nil
	}

	// Unknown keys are rejected so a misspelled label cannot default to clean.
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var doc MetadataFile
	if err := decoder.Decode(&doc); err != nil {
		return nil, corpusErr("", file, fmt.Errorf("%w: %w", ErrInvalidRecord, err))
	}

	base := filepath.Dir(file)
	cases := make([]m.TestCase, 0, len(doc.Cases))

	for i, rec := range doc.Cases {
		tc, err := cl.toTestCase(ctx, base, rec)
		if err != nil {
			id := rec.ID
			if id == "" {
				id = fmt.Sprintf("#%d", i)
			}

			return nil, corpusErr(id, file, err)
		}

		cases = append(cases, tc)
	}

	return cases, nil
}

func (cl *corpusLoader) toTestCase(ctx context.Context, base string, rec MetadataRecord) (m.TestCase, error) {
	if err := recordValidate.Struct(rec); err != nil {
		return m.TestCase{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	category, err := m.ParseCategory(rec.Category)
	if err != nil {
		return m.TestCase{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	variant, err := m.ParseVariant(rec.Variant)
	if err != nil {
		return m.TestCase{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if variant == m.VariantFix && rec.Sibling != "" {
		return m.TestCase{}, fmt.Errorf("%w: fix case declares sibling %q", ErrBadSibling, rec.Sibling)
	}

	source := rec.Path
	if !filepath.IsAbs(source) {
		source = filepath.Join(base, source)
	}

	// Trials and tool runs execute in their own working directories.
	if abs, err := filepath.Abs(source); err == nil {
		source = abs
	}

	info, err := cl.fs.FileInfo(ctx, m.Path(source))
	if err != nil || !info.Mode().IsRegular() {
		return m.TestCase{}, fmt.Errorf("%w: %s", ErrMissingSource, source)
	}

	return m.TestCase{
		ID:             rec.ID,
		Category:       category,
		Variant:        variant,
		SourcePath:     m.Path(source),
		ExpectedDefect: rec.ExpectedDefect,
		Sibling:        rec.Sibling,
		Args:           rec.Args,
		Stdin:          rec.Stdin,
		Flags:          rec.Flags,
	}, nil
}

// validatePairing enforces the category and sibling invariants over the
// whole corpus. cases must be sorted by id.
func validatePairing(cases []m.TestCase, origin map[string]string) error {
	byID := make(map[string]m.TestCase, len(cases))
	for _, tc := range cases {
		byID[tc.ID] = tc
	}

	faults := map[m.Category]int{}
	fixes := map[m.Category]int{}
	designated := map[string]string{}

	for _, tc := range cases {
		if !tc.IsFault() {
			fixes[tc.Category]++
			continue
		}

		faults[tc.Category]++

		if tc.Sibling == "" {
			continue
		}

		sibling, ok := byID[tc.Sibling]
		if !ok {
			return corpusErr(tc.ID, origin[tc.ID], fmt.Errorf("%w: %q does not exist", ErrBadSibling, tc.Sibling))
		}

		if sibling.IsFault() {
			return corpusErr(tc.ID, origin[tc.ID], fmt.Errorf("%w: %q is not a fix case", ErrBadSibling, tc.Sibling))
		}

		if sibling.Category != tc.Category {
			return corpusErr(tc.ID, origin[tc.ID], fmt.Errorf("%w: %q is in category %s", ErrBadSibling, tc.Sibling, sibling.Category))
		}

		if other, taken := designated[tc.Sibling]; taken {
			return corpusErr(tc.ID, origin[tc.ID], fmt.Errorf("%w: %q already designated by %s", ErrBadSibling, tc.Sibling, other))
		}

		designated[tc.Sibling] = tc.ID
	}

	for _, category := range m.Categories {
		if faults[category] == 0 && fixes[category] == 0 {
			continue
		}

		if faults[category] == 0 || fixes[category] == 0 {
			return corpusErr(string(category), "", fmt.Errorf("%w: %d fault, %d fix", ErrIncompleteCategory, faults[category], fixes[category]))
		}
	}

	return nil
}

// FilterByCategory keeps only the cases of category; an empty category keeps all.
func FilterByCategory(cases []m.TestCase, category m.Category) []m.TestCase {
	if category == "" {
		return cases
	}

	filtered := make([]m.TestCase, 0, len(cases))

	for _, tc := range cases {
		if tc.Category == category {
			filtered = append(filtered, tc)
		}
	}

	return filtered
}

// CaseIndex maps test case ids to cases.
func CaseIndex(cases []m.TestCase) map[string]m.TestCase {
	index := make(map[string]m.TestCase, len(cases))
	for _, tc := range cases {
		index[tc.ID] = tc
	}

	return index
}
