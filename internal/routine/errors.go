package routine

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateRoutine indicates a second registration under an
	// existing name. Registrations never silently overwrite.
	ErrDuplicateRoutine = errors.New("routine: name already registered")

	// ErrUnknownRoutine indicates a lookup for an unregistered name.
	ErrUnknownRoutine = errors.New("routine: unknown routine")
)

// ExecutionError wraps a failure raised by a user routine, annotated with the
// routine name and schedule step index for attribution.
type ExecutionError struct {
	Routine string
	Step    int
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("routine %q failed at step %d: %v", e.Routine, e.Step, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
