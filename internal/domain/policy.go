package domain

import (
	"time"

	m "defectbench.dev/pkg/defectbench/internal/model"
)

// OracleStrategy selects how ground truth is derived for a category.
type OracleStrategy int

const (
	// StrategyCrash: a sanitized build either aborts with a diagnostic or exits 0.
	StrategyCrash OracleStrategy = iota
	// StrategyReference: stdout and exit status are compared against the paired fix.
	StrategyReference
	// StrategyRepeated: many runs under the thread sanitizer, any report counts.
	StrategyRepeated
	// StrategyDetector: a leak/overflow detector report or an abnormal crash counts.
	StrategyDetector
)

func (s OracleStrategy) String() string {
	switch s {
	case StrategyCrash:
		return "crash"
	case StrategyReference:
		return "reference"
	case StrategyRepeated:
		return "repeated"
	case StrategyDetector:
		return "detector"
	default:
		return "unknown"
	}
}

// CategoryPolicy is one row of the oracle policy table.
type CategoryPolicy struct {
	Sanitizer m.Sanitizer
	Strategy  OracleStrategy
	// TimeoutIsDefect treats a non-terminating run as the defect itself
	// (infinite loops, recursion, deadlocks).
	TimeoutIsDefect bool
	// CompileFailureIsDefect treats a rejected fault variant as an observed defect.
	CompileFailureIsDefect bool
}

// DefaultRepetitions is the number of runs for StrategyRepeated categories.
const DefaultRepetitions = 50

// PolicyTable is the category-keyed oracle policy.
var PolicyTable = map[m.Category]CategoryPolicy{
	m.CategoryUninitializedVariable: {Sanitizer: m.SanitizerAddress, Strategy: StrategyCrash},
	m.CategoryArrayBounds:           {Sanitizer: m.SanitizerAddress, Strategy: StrategyCrash},
	m.CategoryMemoryManagement:      {Sanitizer: m.SanitizerAddress, Strategy: StrategyCrash},
	m.CategoryNullPointer:           {Sanitizer: m.SanitizerAddress, Strategy: StrategyCrash},
	m.CategoryTypeError:             {Sanitizer: m.SanitizerUndefined, Strategy: StrategyCrash, CompileFailureIsDefect: true},
	m.CategoryObjectOriented:        {Sanitizer: m.SanitizerAddress, Strategy: StrategyCrash},
	m.CategoryIntegerOverflow:       {Sanitizer: m.SanitizerUndefined, Strategy: StrategyReference, TimeoutIsDefect: true},
	m.CategoryDivisionByZero:        {Sanitizer: m.SanitizerUndefined, Strategy: StrategyReference, TimeoutIsDefect: true},
	m.CategoryLogicError:            {Sanitizer: m.SanitizerNone, Strategy: StrategyReference, TimeoutIsDefect: true},
	m.CategoryControlFlow:           {Sanitizer: m.SanitizerNone, Strategy: StrategyReference, TimeoutIsDefect: true, CompileFailureIsDefect: true},
	m.CategoryConcurrency:           {Sanitizer: m.SanitizerThread, Strategy: StrategyRepeated, TimeoutIsDefect: true},
	m.CategorySecurityVuln:          {Sanitizer: m.SanitizerAddress, Strategy: StrategyDetector},
	m.CategoryResourceLeak:          {Sanitizer: m.SanitizerAddress, Strategy: StrategyDetector},
}

// PolicyFor returns the policy of category, falling back to the crash
// strategy under the address sanitizer for unknown categories.
func PolicyFor(category m.Category) CategoryPolicy {
	if policy, ok := PolicyTable[category]; ok {
		return policy
	}

	return CategoryPolicy{Sanitizer: m.SanitizerAddress, Strategy: StrategyCrash}
}

// BuildOptions are the run-wide knobs that shape every BuildSpec.
type BuildOptions struct {
	// Sanitizer overrides the policy table when non-empty.
	Sanitizer      m.Sanitizer
	Timeout        time.Duration
	CompileTimeout time.Duration
	Repetitions    int
}

// BuildSpecFor derives the BuildSpec of tc from its category policy.
func BuildSpecFor(tc m.TestCase, opts BuildOptions) m.BuildSpec {
	policy := PolicyFor(tc.Category)

	sanitizer := policy.Sanitizer
	if opts.Sanitizer != "" {
		sanitizer = opts.Sanitizer
	}

	repetitions := 1

	if policy.Strategy == StrategyRepeated {
		repetitions = opts.Repetitions
		if repetitions < 1 {
			repetitions = DefaultRepetitions
		}
	}

	return m.BuildSpec{
		Sanitizer:      sanitizer,
		Timeout:        opts.Timeout,
		CompileTimeout: opts.CompileTimeout,
		CompilerFlags:  append([]string(nil), tc.Flags...),
		Repetitions:    repetitions,
	}
}
