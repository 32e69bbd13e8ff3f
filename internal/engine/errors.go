package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvedReference indicates a step referencing a result key
	// that no prior step has populated.
	ErrUnresolvedReference = errors.New("engine: reference to unpopulated result key")

	// ErrNoPropagator indicates a time-advance directive on an engine
	// constructed without a propagator.
	ErrNoPropagator = errors.New("engine: no propagator configured")

	// ErrAlreadyRunning indicates a second Run on an engine whose
	// previous run has not finished.
	ErrAlreadyRunning = errors.New("engine: run already in progress")
)

// ReferenceError attributes an unresolved result reference to a step.
type ReferenceError struct {
	Step int
	Key  string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("step %d references unpopulated result key %q", e.Step, e.Key)
}

func (e *ReferenceError) Unwrap() error {
	return ErrUnresolvedReference
}

// PropagatorError wraps a failure from the propagator collaborator.
type PropagatorError struct {
	Step int
	Time float64
	Err  error
}

func (e *PropagatorError) Error() string {
	return fmt.Sprintf("propagator failed at step %d (t=%g): %v", e.Step, e.Time, e.Err)
}

func (e *PropagatorError) Unwrap() error {
	return e.Err
}

// CancelledError reports a run stopped by its context between steps. The
// partial result store reflects every step that completed.
type CancelledError struct {
	Step int
	Err  error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("run cancelled before step %d: %v", e.Step, e.Err)
}

func (e *CancelledError) Unwrap() error {
	return e.Err
}
