package model

// VerdictKind is the derived judgement over a trial or a tool run.
type VerdictKind int

const (
	// DefectConfirmed is the oracle's "defect observed" ground truth.
	DefectConfirmed VerdictKind = iota
	// Clean is the oracle's "no defect observed" ground truth.
	Clean
	// ToolFlagged means the tool under test reported a defect.
	ToolFlagged
	// ToolSilent means the tool under test reported nothing usable.
	ToolSilent
	// Indeterminate means the oracle could not establish ground truth.
	Indeterminate
	// ToolInvocationFailed means the tool crashed, timed out or could not be started.
	ToolInvocationFailed
)

func (k VerdictKind) String() string {
	switch k {
	case DefectConfirmed:
		return "defect-confirmed"
	case Clean:
		return "clean"
	case ToolFlagged:
		return "tool-flagged"
	case ToolSilent:
		return "tool-silent"
	case Indeterminate:
		return "indeterminate"
	case ToolInvocationFailed:
		return "tool-invocation-error"
	default:
		return "unknown"
	}
}

// Verdict is a judgement plus the category a tool attributed, if any.
type Verdict struct {
	Kind     VerdictKind
	Category Category
	Detail   string
}

// Defect reports whether the verdict asserts a defect.
func (v Verdict) Defect() bool {
	return v.Kind == DefectConfirmed || v.Kind == ToolFlagged
}

// Classification is the confusion-matrix cell of one (test case, tool) pair.
type Classification int

const (
	// TruePositive means ground truth has a defect and the tool flagged it.
	TruePositive Classification = iota
	// TrueNegative means ground truth is clean and the tool stayed silent.
	TrueNegative
	// FalsePositive means ground truth is clean but the tool flagged it.
	FalsePositive
	// FalseNegative means ground truth has a defect but the tool stayed silent.
	FalseNegative
	// HarnessError means ground truth could not be established.
	HarnessError
	// ToolInvocationError means the tool run failed and is excluded from scoring.
	ToolInvocationError
)

func (c Classification) String() string {
	switch c {
	case TruePositive:
		return "TP"
	case TrueNegative:
		return "TN"
	case FalsePositive:
		return "FP"
	case FalseNegative:
		return "FN"
	case HarnessError:
		return "harness-error"
	case ToolInvocationError:
		return "tool-invocation-error"
	default:
		return "unknown"
	}
}

// Outcome is everything the scheduler records for one unit of work.
type Outcome struct {
	TestCase TestCase
	Trial    Trial
	Oracle   Verdict
	Tool     Verdict
	ToolRun  *Execution
}
