package domain

import (
	"errors"
	"fmt"
)

// Corpus validation failures. All of them abort a run at startup.
var (
	ErrDuplicateID        = errors.New("duplicate test case id")
	ErrMissingSource      = errors.New("source file missing")
	ErrIncompleteCategory = errors.New("category lacks a fault or a fix case")
	ErrBadSibling         = errors.New("invalid sibling")
	ErrInvalidRecord      = errors.New("invalid metadata record")
	ErrEmptyCorpus        = errors.New("corpus has no test cases")
)

// ErrGateFailed is returned by a run whose error rates exceed the gate.
var ErrGateFailed = errors.New("quality gate failed")

// ErrOverlappingReports is returned when merged reports cover the same case.
var ErrOverlappingReports = errors.New("reports overlap")

// CorpusError reports malformed or incomplete corpus metadata.
type CorpusError struct {
	// ID is the offending test case id, or the category for ErrIncompleteCategory.
	ID   string
	File string
	Err  error
}

func (e *CorpusError) Error() string {
	switch {
	case e.ID != "" && e.File != "":
		return fmt.Sprintf("corpus: %s (%s): %v", e.ID, e.File, e.Err)
	case e.ID != "":
		return fmt.Sprintf("corpus: %s: %v", e.ID, e.Err)
	case e.File != "":
		return fmt.Sprintf("corpus: %s: %v", e.File, e.Err)
	default:
		return fmt.Sprintf("corpus: %v", e.Err)
	}
}

func (e *CorpusError) Unwrap() error {
	return e.Err
}

func corpusErr(id, file string, err error) *CorpusError {
	return &CorpusError{ID: id, File: file, Err: err}
}
