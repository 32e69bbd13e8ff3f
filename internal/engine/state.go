package engine

import "fmt"

// Status is the engine run state.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// IsTerminal reports whether the status is a finished run.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// allowedTransition encodes the run state machine. A terminal status may
// transition back to Running: re-running an engine with a fresh result store
// is part of the determinism contract.
func allowedTransition(from, to Status) bool {
	switch from {
	case StatusIdle:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	case StatusCompleted, StatusFailed, StatusCancelled:
		return to == StatusRunning
	default:
		return false
	}
}

func (e *Engine) transition(to Status) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !allowedTransition(e.status, to) {
		return fmt.Errorf("engine: invalid transition %s -> %s", e.status, to)
	}
	e.status = to
	return nil
}

// Status returns the current run state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}
