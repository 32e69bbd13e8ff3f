package schedule

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/qsched/internal/routine"
)

// Validate checks s against the registry before any execution: every
// referenced routine must resolve (eager resolution, so a run never starts
// with unresolvable steps), every time-advance directive must carry a
// well-formed non-negative timestep, and every result reference must point at
// a key some earlier step produces. All violations are collected into a
// single *ValidationError.
func Validate(s *Schedule, reg *routine.Registry) error {
	var violations []Violation

	produced := make(map[string]bool)
	for i, step := range s.Steps {
		if step.Name == "" {
			violations = append(violations, Violation{Step: i, Msg: "missing routine_name"})
		} else if _, err := reg.Resolve(step.Name); err != nil {
			violations = append(violations, Violation{Step: i, Msg: fmt.Sprintf("unknown routine %q", step.Name)})
		}

		if step.AdvanceTime != nil {
			dt := *step.AdvanceTime
			if math.IsNaN(dt) || math.IsInf(dt, 0) {
				violations = append(violations, Violation{Step: i, Msg: fmt.Sprintf("advance_time is not a finite number: %v", dt)})
			} else if dt < 0 {
				violations = append(violations, Violation{Step: i, Msg: fmt.Sprintf("advance_time must be non-negative, got %v", dt)})
			}
		}

		for j, arg := range step.Args {
			if key, ok := RefKey(arg); ok && !produced[key] {
				violations = append(violations, Violation{Step: i, Msg: fmt.Sprintf("args[%d] references result key %q before any step produces it", j, key)})
			}
		}
		names := make([]string, 0, len(step.Kwargs))
		for name := range step.Kwargs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if key, ok := RefKey(step.Kwargs[name]); ok && !produced[key] {
				violations = append(violations, Violation{Step: i, Msg: fmt.Sprintf("kwargs[%s] references result key %q before any step produces it", name, key)})
			}
		}

		if step.ResultKey != "" {
			produced[step.ResultKey] = true
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Label: s.Label, Violations: violations}
	}
	return nil
}
