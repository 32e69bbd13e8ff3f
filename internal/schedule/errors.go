package schedule

import (
	"fmt"
	"strings"
)

// SyntaxError indicates structurally malformed schedule input: missing
// required fields, unknown fields, wrong types.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("schedule: %v", e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Violation is one structural problem found during validation, attributed to
// a step index (or -1 for schedule-level problems).
type Violation struct {
	Step int
	Msg  string
}

func (v Violation) String() string {
	if v.Step < 0 {
		return v.Msg
	}
	return fmt.Sprintf("step %d: %s", v.Step, v.Msg)
}

// ValidationError aggregates every violation found, so one pass surfaces all
// problems.
type ValidationError struct {
	Label      string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schedule %q failed validation with %d violation(s):", e.Label, len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("\n  ")
		b.WriteString(v.String())
	}
	return b.String()
}
