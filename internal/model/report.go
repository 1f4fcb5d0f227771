package model

import "time"

// Counts is a confusion matrix plus the excluded buckets.
type Counts struct {
	TP            int `yaml:"tp" json:"tp"`
	FP            int `yaml:"fp" json:"fp"`
	TN            int `yaml:"tn" json:"tn"`
	FN            int `yaml:"fn" json:"fn"`
	HarnessErrors int `yaml:"harness_errors" json:"harness_errors"`
	ToolErrors    int `yaml:"tool_errors" json:"tool_errors"`
}

// Add records one classification.
func (c *Counts) Add(cls Classification) {
	switch cls {
	case TruePositive:
		c.TP++
	case TrueNegative:
		c.TN++
	case FalsePositive:
		c.FP++
	case FalseNegative:
		c.FN++
	case HarnessError:
		c.HarnessErrors++
	case ToolInvocationError:
		c.ToolErrors++
	}
}

// Merge adds other into c.
func (c *Counts) Merge(other Counts) {
	c.TP += other.TP
	c.FP += other.FP
	c.TN += other.TN
	c.FN += other.FN
	c.HarnessErrors += other.HarnessErrors
	c.ToolErrors += other.ToolErrors
}

// Scored returns the number of entries that take part in precision/recall.
func (c Counts) Scored() int {
	return c.TP + c.FP + c.TN + c.FN
}

// Stats is a finalized confusion matrix with derived rates.
type Stats struct {
	Counts `yaml:",inline" json:",inline"`

	Precision float64 `yaml:"precision" json:"precision"`
	Recall    float64 `yaml:"recall" json:"recall"`
	F1        float64 `yaml:"f1" json:"f1"`
	// InsufficientData is set when any rate had a zero denominator and was defined as 0.
	InsufficientData bool `yaml:"insufficient_data" json:"insufficient_data"`
}

// FindingKind names a reportable harness observation.
type FindingKind string

// Finding kinds.
const (
	FindingHarnessError        FindingKind = "harness-error"
	FindingOracleMismatch      FindingKind = "oracle-mismatch"
	FindingToolInvocationError FindingKind = "tool-invocation-error"
	FindingCancelled           FindingKind = "cancelled"
)

// Finding is an entry in the report's list of non-scored observations.
type Finding struct {
	Kind       FindingKind `yaml:"kind" json:"kind"`
	TestCaseID string      `yaml:"test_case_id" json:"test_case_id"`
	Category   Category    `yaml:"category" json:"category"`
	Detail     string      `yaml:"detail,omitempty" json:"detail,omitempty"`
}

// CaseResult is the per-case line of the report.
type CaseResult struct {
	TestCaseID     string   `yaml:"id" json:"id"`
	Category       Category `yaml:"category" json:"category"`
	Variant        Variant  `yaml:"variant" json:"variant"`
	ExpectedDefect bool     `yaml:"expected_defect" json:"expected_defect"`
	SourceSHA256   string   `yaml:"source_sha256,omitempty" json:"source_sha256,omitempty"`
	Exit           string   `yaml:"exit" json:"exit"`
	ElapsedMs      int64    `yaml:"elapsed_ms" json:"elapsed_ms"`
	Oracle         string   `yaml:"oracle" json:"oracle"`
	Tool           string   `yaml:"tool" json:"tool"`
	Classification string   `yaml:"classification" json:"classification"`
}

// Report is the structured result of a run.
type Report struct {
	RunID      string             `yaml:"run_id" json:"run_id"`
	StartedAt  time.Time          `yaml:"started_at" json:"started_at"`
	FinishedAt time.Time          `yaml:"finished_at" json:"finished_at"`
	Cancelled  bool               `yaml:"cancelled" json:"cancelled"`
	Categories map[Category]Stats `yaml:"categories" json:"categories"`
	Overall    Stats              `yaml:"overall" json:"overall"`
	Findings   []Finding          `yaml:"findings" json:"findings"`
	Cases      []CaseResult       `yaml:"cases" json:"cases"`
}
