package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"

	m "defectbench.dev/pkg/defectbench/internal/model"
)

// ToolFinding is the normalized capability every output adapter extracts.
type ToolFinding struct {
	Flagged  bool
	Category *m.Category
}

// ToolOutputParser turns the raw stdout of the tool under test into a
// ToolFinding. A parse error means the output was not understood.
type ToolOutputParser interface {
	Name() string
	Parse(output []byte) (ToolFinding, error)
}

// Tool output formats.
const (
	FormatText  = "text"
	FormatSARIF = "sarif"
	FormatInfer = "infer"
	FormatJSON  = "json"
)

// ParserFor returns the parser registered for format.
func ParserFor(format string) (ToolOutputParser, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return textParser{}, nil
	case FormatSARIF:
		return sarifParser{}, nil
	case FormatInfer:
		return inferParser{}, nil
	case FormatJSON:
		return jsonParser{}, nil
	}

	return nil, fmt.Errorf("unknown tool output format %q", format)
}

type categoryKeywords struct {
	category m.Category
	pattern  *regexp.Regexp
}

// keywordTable is checked in order; the first match wins.
var keywordTable = []categoryKeywords{
	{m.CategoryConcurrency, regexp.MustCompile(`(?i)data[ _-]?race|deadlock|thread[ _-]?safety|lock order`)},
	{m.CategoryMemoryManagement, regexp.MustCompile(`(?i)use[ _-]?after[ _-]?free|double[ _-]?free|memory[ _-]?leak|mismatch(ed)?[ _-]?(delete|dealloc)|free of stack|invalid free|deallocuseafterfree`)},
	{m.CategoryUninitializedVariable, regexp.MustCompile(`(?i)uninit`)},
	{m.CategoryArrayBounds, regexp.MustCompile(`(?i)out[ _-]?of[ _-]?bounds|buffer[ _-]?(overflow|overrun)|array[ _-]?index|off[ _-]?by[ _-]?one|stack-buffer|heap-buffer`)},
	{m.CategoryNullPointer, regexp.MustCompile(`(?i)null[ _-]?(pointer|deref)|nullptr|dangling|wild pointer|pointer arithmetic`)},
	{m.CategoryDivisionByZero, regexp.MustCompile(`(?i)divi(de|sion)[ _-]?by[ _-]?zero|zerodiv|modulo by zero`)},
	{m.CategoryIntegerOverflow, regexp.MustCompile(`(?i)integer[ _-]?(overflow|underflow)|signed[ _-]?overflow|shift[ _-]?(too|overflow|exponent)|sign(ed)?[ _-]?compar|wrap[ _-]?around`)},
	{m.CategoryResourceLeak, regexp.MustCompile(`(?i)resource[ _-]?leak|file[ _-]?(descriptor|handle)?[ _-]?leak|fd[ _-]?leak|leak`)},
	{m.CategorySecurityVuln, regexp.MustCompile(`(?i)format[ _-]?string|command[ _-]?injection|toctou|time[ _-]?of[ _-]?check|hard[ _-]?coded|credential|unbounded (input|read)|gets\b|tainted`)},
	{m.CategoryObjectOriented, regexp.MustCompile(`(?i)slicing|virtual destructor|use after delete`)},
	{m.CategoryTypeError, regexp.MustCompile(`(?i)narrowing|truncat|implicit conversion|type[ _-]?pun|strict[ _-]?aliasing`)},
	{m.CategoryControlFlow, regexp.MustCompile(`(?i)infinite[ _-]?(loop|recursion)|unreachable|missing[ _-]?return|no return statement|fall[ _-]?through|empty (if|body)`)},
	{m.CategoryLogicError, regexp.MustCompile(`(?i)always (true|false)|assignment in (condition|if)|logical operator|redundant condition|suspicious`)},
}

var genericDiagnostic = regexp.MustCompile(`(?im)(^|\s|:)(error|warning)(\s*:|\s*\[)`)

// ClassifyText attributes a category to free-form diagnostic text.
func ClassifyText(text string) (m.Category, bool) {
	for _, entry := range keywordTable {
		if entry.pattern.MatchString(text) {
			return entry.category, true
		}
	}

	return "", false
}

// textParser scans free-form diagnostics (compiler-style "file:line: warning: ...").
type textParser struct{}

func (textParser) Name() string { return FormatText }

func (textParser) Parse(output []byte) (ToolFinding, error) {
	text := string(bytes.TrimSpace(output))
	if text == "" {
		return ToolFinding{}, nil
	}

	if category, ok := ClassifyText(text); ok {
		return ToolFinding{Flagged: true, Category: &category}, nil
	}

	if genericDiagnostic.MatchString(text) {
		return ToolFinding{Flagged: true}, nil
	}

	return ToolFinding{}, nil
}

// sarifParser reads SARIF 2.1.0 logs.
type sarifParser struct{}

func (sarifParser) Name() string { return FormatSARIF }

func (sarifParser) Parse(output []byte) (ToolFinding, error) {
	report, err := sarif.FromBytes(output)
	if err != nil {
		return ToolFinding{}, fmt.Errorf("parse sarif: %w", err)
	}

	var texts []string

	for _, run := range report.Runs {
		if run == nil {
			continue
		}

		for _, result := range run.Results {
			if result == nil {
				continue
			}

			if result.RuleID != nil {
				texts = append(texts, *result.RuleID)
			}

			if result.Message.Text != nil {
				texts = append(texts, *result.Message.Text)
			}

			if len(texts) == 0 {
				texts = append(texts, "result")
			}
		}
	}

	if len(texts) == 0 {
		return ToolFinding{}, nil
	}

	finding := ToolFinding{Flagged: true}
	if category, ok := ClassifyText(strings.Join(texts, "\n")); ok {
		finding.Category = &category
	}

	return finding, nil
}

// inferIssue mirrors the entries of Infer's report.json.
type inferIssue struct {
	BugType   string `json:"bug_type"`
	Qualifier string `json:"qualifier"`
	Line      int32  `json:"line"`
	File      string `json:"file"`
}

var inferBugTypes = map[string]m.Category{
	"NULL_DEREFERENCE":        m.CategoryNullPointer,
	"NULLPTR_DEREFERENCE":     m.CategoryNullPointer,
	"MEMORY_LEAK":             m.CategoryMemoryManagement,
	"MEMORY_LEAK_C":           m.CategoryMemoryManagement,
	"MEMORY_LEAK_CPP":         m.CategoryMemoryManagement,
	"USE_AFTER_FREE":          m.CategoryMemoryManagement,
	"USE_AFTER_DELETE":        m.CategoryMemoryManagement,
	"RESOURCE_LEAK":           m.CategoryResourceLeak,
	"UNINITIALIZED_VALUE":     m.CategoryUninitializedVariable,
	"BUFFER_OVERRUN_L1":       m.CategoryArrayBounds,
	"BUFFER_OVERRUN_L2":       m.CategoryArrayBounds,
	"BUFFER_OVERRUN_S2":       m.CategoryArrayBounds,
	"INTEGER_OVERFLOW_L1":     m.CategoryIntegerOverflow,
	"INTEGER_OVERFLOW_L2":     m.CategoryIntegerOverflow,
	"DIVIDE_BY_ZERO":          m.CategoryDivisionByZero,
	"THREAD_SAFETY_VIOLATION": m.CategoryConcurrency,
	"DEADLOCK":                m.CategoryConcurrency,
	"INFINITE_EXECUTION_TIME": m.CategoryControlFlow,
	"CONDITION_ALWAYS_TRUE":   m.CategoryLogicError,
	"CONDITION_ALWAYS_FALSE":  m.CategoryLogicError,
}

// inferParser reads Infer's JSON issue array.
type inferParser struct{}

func (inferParser) Name() string { return FormatInfer }

func (inferParser) Parse(output []byte) (ToolFinding, error) {
	var issues []inferIssue
	if err := json.Unmarshal(output, &issues); err != nil {
		return ToolFinding{}, fmt.Errorf("parse infer report: %w", err)
	}

	if len(issues) == 0 {
		return ToolFinding{}, nil
	}

	finding := ToolFinding{Flagged: true}

	for _, issue := range issues {
		if category, ok := inferBugTypes[strings.ToUpper(issue.BugType)]; ok {
			finding.Category = &category
			return finding, nil
		}
	}

	if category, ok := ClassifyText(issues[0].BugType + " " + issues[0].Qualifier); ok {
		finding.Category = &category
	}

	return finding, nil
}

// jsonVerdict is the minimal structured contract: {"flagged": true, "category": "null-pointer"}.
type jsonVerdict struct {
	Flagged  *bool  `json:"flagged"`
	Category string `json:"category"`
}

type jsonParser struct{}

func (jsonParser) Name() string { return FormatJSON }

func (jsonParser) Parse(output []byte) (ToolFinding, error) {
	var verdict jsonVerdict
	if err := json.Unmarshal(output, &verdict); err != nil {
		return ToolFinding{}, fmt.Errorf("parse json verdict: %w", err)
	}

	if verdict.Flagged == nil {
		return ToolFinding{}, fmt.Errorf("parse json verdict: missing \"flagged\"")
	}

	finding := ToolFinding{Flagged: *verdict.Flagged}
	if finding.Flagged && verdict.Category != "" {
		if category, err := m.ParseCategory(verdict.Category); err == nil {
			finding.Category = &category
		}
	}

	return finding, nil
}
