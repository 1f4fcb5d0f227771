package domain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"defectbench.dev/pkg/defectbench/internal/adapter"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

var (
	legacyFileName = regexp.MustCompile(`(?i)^(TC|SOL)(\d+)(?:_[A-Za-z0-9_]+)?\.(c|cc|cpp|cxx)$`)
	legacyCategory = regexp.MustCompile(`(?m)^\s*//\s*Category:\s*([^(\r\n]+?)\s*(?:\(.*\))?\s*$`)
)

type legacyFile struct {
	path     string
	id       string
	number   string
	variant  m.Variant
	category m.Category
}

// DeriveLegacyMetadata scans a legacy TCnn/SOLnn corpus and derives explicit
// metadata. Fault TCnn is paired with fix SOLnn; anything that cannot be
// paired or categorized is listed in the summary and left out. Paths in the
// result are relative to outputDir.
func DeriveLegacyMetadata(ctx context.Context, fsAdapter adapter.SourceFSAdapter, from m.Path, outputDir string) (MetadataFile, m.ImportSummary, error) {
	var (
		files   []legacyFile
		summary m.ImportSummary
	)

	err := fsAdapter.Walk(ctx, from, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		match := legacyFileName.FindStringSubmatch(filepath.Base(path))
		if match == nil {
			return nil
		}

		file := legacyFile{
			path:    path,
			id:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			number:  strings.TrimLeft(match[2], "0"),
			variant: m.VariantFix,
		}

		if strings.EqualFold(match[1], "TC") {
			file.variant = m.VariantFault
		}

		content, err := fsAdapter.ReadFile(ctx, m.Path(path))
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		if header := legacyCategory.FindSubmatch(content); header != nil {
			if category, err := m.ParseCategory(string(header[1])); err == nil {
				file.category = category
			} else {
				slog.Debug("Unknown legacy category", "path", path, "header", string(header[1]))
			}
		}

		files = append(files, file)

		return nil
	})
	if err != nil {
		return MetadataFile{}, summary, fmt.Errorf("scan legacy corpus: %w", err)
	}

	faults := map[string][]legacyFile{}
	fixes := map[string][]legacyFile{}

	for _, file := range files {
		if file.variant == m.VariantFault {
			faults[file.number] = append(faults[file.number], file)
		} else {
			fixes[file.number] = append(fixes[file.number], file)
		}
	}

	var doc MetadataFile

	for _, file := range files {
		if file.variant != m.VariantFault {
			continue
		}

		candidates := fixes[file.number]
		if len(faults[file.number]) != 1 || len(candidates) != 1 {
			summary.Unpaired = append(summary.Unpaired, m.Path(file.path))
			continue
		}

		fix := candidates[0]
		category := file.category

		if category == "" {
			category = fix.category
		}

		if category == "" {
			summary.Unlabeled = append(summary.Unlabeled, m.Path(file.path), m.Path(fix.path))
			continue
		}

		if fix.category != "" && fix.category != category {
			slog.Info("Legacy pair disagrees on category", "fault", file.id, "fix", fix.id)
			summary.Unpaired = append(summary.Unpaired, m.Path(file.path), m.Path(fix.path))

			continue
		}

		doc.Cases = append(doc.Cases,
			legacyRecord(file, category, fix.id, outputDir, true),
			legacyRecord(fix, category, "", outputDir, false),
		)
	}

	for _, file := range files {
		if file.variant == m.VariantFix && (len(faults[file.number]) != 1 || len(fixes[file.number]) != 1) {
			summary.Unpaired = append(summary.Unpaired, m.Path(file.path))
		}
	}

	sort.Slice(doc.Cases, func(i, j int) bool { return doc.Cases[i].ID < doc.Cases[j].ID })
	sort.Slice(summary.Unpaired, func(i, j int) bool { return summary.Unpaired[i] < summary.Unpaired[j] })
	sort.Slice(summary.Unlabeled, func(i, j int) bool { return summary.Unlabeled[i] < summary.Unlabeled[j] })

	for _, rec := range doc.Cases {
		category, _ := m.ParseCategory(rec.Category)
		variant, _ := m.ParseVariant(rec.Variant)
		summary.Cases = append(summary.Cases, m.TestCase{
			ID:             rec.ID,
			Category:       category,
			Variant:        variant,
			SourcePath:     m.Path(rec.Path),
			ExpectedDefect: rec.ExpectedDefect,
			Sibling:        rec.Sibling,
		})
	}

	return doc, summary, nil
}

func legacyRecord(file legacyFile, category m.Category, sibling, outputDir string, fault bool) MetadataRecord {
	path := file.path

	absDir, dirErr := filepath.Abs(outputDir)
	absPath, pathErr := filepath.Abs(file.path)

	if dirErr == nil && pathErr == nil {
		if rel, err := filepath.Rel(absDir, absPath); err == nil {
			path = rel
		}
	}

	return MetadataRecord{
		ID:             file.id,
		Category:       string(category),
		Variant:        string(file.variant),
		Path:           filepath.ToSlash(path),
		ExpectedDefect: fault,
		Sibling:        sibling,
	}
}
