package model

import (
	"fmt"
	"strings"
	"time"
)

// Sanitizer is the compile-time instrumentation mode of a build.
type Sanitizer string

// Supported sanitizers.
const (
	SanitizerNone      Sanitizer = "none"
	SanitizerAddress   Sanitizer = "address"
	SanitizerUndefined Sanitizer = "undefined"
	SanitizerThread    Sanitizer = "thread"
)

// ParseSanitizer parses a sanitizer name. The empty string yields "".
func ParseSanitizer(s string) (Sanitizer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "none", "plain":
		return SanitizerNone, nil
	case "address", "asan":
		return SanitizerAddress, nil
	case "undefined", "ubsan":
		return SanitizerUndefined, nil
	case "thread", "tsan":
		return SanitizerThread, nil
	}

	return "", fmt.Errorf("unknown sanitizer %q", s)
}

// BuildSpec describes how a test case is compiled and executed.
type BuildSpec struct {
	Sanitizer      Sanitizer
	Timeout        time.Duration
	CompileTimeout time.Duration
	CompilerFlags  []string
	// Repetitions is how many times the compiled binary runs; values
	// below 1 mean a single run.
	Repetitions int
}

// Runs returns the effective repetition count.
func (b BuildSpec) Runs() int {
	if b.Repetitions < 1 {
		return 1
	}

	return b.Repetitions
}

func (b BuildSpec) String() string {
	return fmt.Sprintf("%s/%s/x%d", b.Sanitizer, b.Timeout, b.Runs())
}
