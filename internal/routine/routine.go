// Package routine maps names to user-supplied computation steps and enforces
// their calling convention.
package routine

import "fmt"

// Kind tags the two routine variants. The tag is validated at registration,
// not at call time.
type Kind int

const (
	// Observable routines return a measurement result; the state is
	// passed through unchanged.
	Observable Kind = iota
	// StateTransform routines return the new state.
	StateTransform
)

func (k Kind) String() string {
	switch k {
	case Observable:
		return "observable"
	case StateTransform:
		return "transform"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts the declarative tag used by plugin files.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "observable":
		return Observable, nil
	case "transform":
		return StateTransform, nil
	default:
		return 0, fmt.Errorf("routine: unknown kind %q", s)
	}
}

// Func is the uniform calling convention: the fixed context prefix (current
// state, then the run-wide external arguments) followed by the free-form
// positional and keyword arguments from the schedule step.
type Func func(state any, ext []any, args []any, kwargs map[string]any) (any, error)

// Routine is a named, registered callable.
type Routine struct {
	Name string
	Kind Kind
	Fn   Func

	// Cachable marks the routine free of side effects and eligible for
	// memoized reuse.
	Cachable bool

	// StateDependent marks the result as depending on the current state.
	// A cachable state-dependent routine requires the state to implement
	// cache.Fingerprinter; without it the call runs uncached.
	StateDependent bool
}

func (rt Routine) validate() error {
	if rt.Name == "" {
		return fmt.Errorf("routine: name is required")
	}
	if rt.Fn == nil {
		return fmt.Errorf("routine: %s has no function", rt.Name)
	}
	if rt.Kind != Observable && rt.Kind != StateTransform {
		return fmt.Errorf("routine: %s has invalid kind %d", rt.Name, int(rt.Kind))
	}
	return nil
}
