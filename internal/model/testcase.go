// Package model defines the data structures for defect corpus evaluation.
package model

import (
	"fmt"
	"strings"
)

// Category is the defect family a test case belongs to.
type Category string

// Known categories.
const (
	CategoryUninitializedVariable Category = "uninitialized-variable"
	CategoryArrayBounds           Category = "array-bounds"
	CategoryMemoryManagement      Category = "memory-management"
	CategoryNullPointer           Category = "null-pointer"
	CategoryIntegerOverflow       Category = "integer-overflow"
	CategoryDivisionByZero        Category = "division-by-zero"
	CategoryLogicError            Category = "logic-error"
	CategoryControlFlow           Category = "control-flow"
	CategoryResourceLeak          Category = "resource-leak"
	CategoryTypeError             Category = "type-error"
	CategorySecurityVuln          Category = "security-vuln"
	CategoryConcurrency           Category = "concurrency"
	CategoryObjectOriented        Category = "object-oriented"
)

// Categories lists every known category in report order.
var Categories = []Category{
	CategoryUninitializedVariable,
	CategoryArrayBounds,
	CategoryMemoryManagement,
	CategoryNullPointer,
	CategoryIntegerOverflow,
	CategoryDivisionByZero,
	CategoryLogicError,
	CategoryControlFlow,
	CategoryResourceLeak,
	CategoryTypeError,
	CategorySecurityVuln,
	CategoryConcurrency,
	CategoryObjectOriented,
}

var categoryAliases = map[string]Category{
	"uninitialized":           CategoryUninitializedVariable,
	"uninit":                  CategoryUninitializedVariable,
	"buffer":                  CategoryArrayBounds,
	"arraybuffer":             CategoryArrayBounds,
	"memory":                  CategoryMemoryManagement,
	"pointer":                 CategoryNullPointer,
	"integer":                 CategoryIntegerOverflow,
	"divbyzero":               CategoryDivisionByZero,
	"logic":                   CategoryLogicError,
	"resource":                CategoryResourceLeak,
	"type":                    CategoryTypeError,
	"security":                CategorySecurityVuln,
	"securityvulnerabilities": CategorySecurityVuln,
	"securityvulnerability":   CategorySecurityVuln,
	"oop":                     CategoryObjectOriented,
	"objectoriented":          CategoryObjectOriented,
}

// normalizeCategoryKey folds case and drops separators so that
// "ArrayBounds", "array_bounds" and "array-bounds" compare equal.
func normalizeCategoryKey(s string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// ParseCategory resolves a category from its canonical name, a
// CamelCase/snake_case spelling or a short alias.
func ParseCategory(s string) (Category, error) {
	key := normalizeCategoryKey(s)
	if key == "" {
		return "", fmt.Errorf("empty category")
	}

	for _, c := range Categories {
		if normalizeCategoryKey(string(c)) == key {
			return c, nil
		}
	}

	// Plural spellings such as "LogicErrors" or "ResourceLeaks".
	for _, c := range Categories {
		if normalizeCategoryKey(string(c))+"s" == key {
			return c, nil
		}
	}

	if c, ok := categoryAliases[key]; ok {
		return c, nil
	}

	// Legacy headers read "Pointer Errors" or "Object-Oriented Errors".
	for _, suffix := range []string{"errors", "error"} {
		if trimmed, ok := strings.CutSuffix(key, suffix); ok && trimmed != "" {
			if c, err := ParseCategory(trimmed); err == nil {
				return c, nil
			}
		}
	}

	return "", fmt.Errorf("unknown category %q", s)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}

	return false
}

// Variant tells whether a test case carries the defect or its correction.
type Variant string

const (
	// VariantFault is a source file deliberately containing one defect.
	VariantFault Variant = "fault"
	// VariantFix is the paired source file with the defect corrected.
	VariantFix Variant = "fix"
)

// ParseVariant accepts "fault"/"fix" in any case.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(VariantFault):
		return VariantFault, nil
	case string(VariantFix):
		return VariantFix, nil
	}

	return "", fmt.Errorf("unknown variant %q", s)
}

// TestCase is one corpus entry. Loaded once at startup, never mutated.
type TestCase struct {
	ID             string
	Category       Category
	Variant        Variant
	SourcePath     Path
	ExpectedDefect bool
	// Sibling is the designated Fix case of a Fault case, empty otherwise.
	Sibling string
	Args    []string
	Stdin   string
	Flags   []string
}

// IsFault reports whether the case is a fault variant.
func (tc TestCase) IsFault() bool {
	return tc.Variant == VariantFault
}
