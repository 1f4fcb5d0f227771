package model

// ImportSummary describes the metadata derived from a legacy corpus.
type ImportSummary struct {
	Output Path
	Cases  []TestCase
	// Unpaired lists files whose TCnn/SOLnn counterpart is missing.
	Unpaired []Path
	// Unlabeled lists files without a category header.
	Unlabeled []Path
}
