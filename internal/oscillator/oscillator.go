// Package oscillator is a minimal harmonic-oscillator backend used by the
// CLI and the test suite. It demonstrates the backend contract: a state type
// with a stable fingerprint, a propagator, and a set of routines.
package oscillator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/qsched/internal/engine"
	"github.com/san-kum/qsched/internal/routine"
)

// State is the phase-space point {q, p}.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// Fingerprint satisfies the cache contract. Full float precision so distinct
// states never collide.
func (s State) Fingerprint() string {
	var b strings.Builder
	for i, v := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'x', -1, 64))
	}
	return b.String()
}

// Oscillator holds the system parameters.
type Oscillator struct {
	Omega float64
}

func New(omega float64) *Oscillator {
	return &Oscillator{Omega: omega}
}

// Energy of a phase-space point: (p^2 + w^2 q^2) / 2.
func (o *Oscillator) Energy(s State) float64 {
	if len(s) != 2 {
		return math.NaN()
	}
	q, p := s[0], s[1]
	return 0.5*(p*p) + 0.5*o.Omega*o.Omega*q*q
}

// Propagator returns the exact harmonic evolution, a rotation in phase
// space. Energy is conserved to floating-point precision.
func (o *Oscillator) Propagator() engine.Propagator {
	return func(state any, t, dt float64) (any, error) {
		s, ok := state.(State)
		if !ok || len(s) != 2 {
			return nil, fmt.Errorf("oscillator: expected 2d phase-space state, got %T", state)
		}
		q, p := s[0], s[1]
		w := o.Omega
		c, sn := math.Cos(w*dt), math.Sin(w*dt)
		return State{q*c + (p/w)*sn, p*c - q*w*sn}, nil
	}
}

// Register installs the builtin routines.
func (o *Oscillator) Register(reg *routine.Registry) error {
	routines := []routine.Routine{
		{
			Name: "init",
			Kind: routine.StateTransform,
			Fn: func(state any, ext []any, args []any, kwargs map[string]any) (any, error) {
				q, err := floatKwarg(kwargs, "q", 0)
				if err != nil {
					return nil, err
				}
				p, err := floatKwarg(kwargs, "p", 0)
				if err != nil {
					return nil, err
				}
				return State{q, p}, nil
			},
		},
		{
			Name: "noop",
			Kind: routine.Observable,
			Fn: func(state any, ext []any, args []any, kwargs map[string]any) (any, error) {
				return nil, nil
			},
		},
		{
			Name:           "measure_energy",
			Kind:           routine.Observable,
			Cachable:       true,
			StateDependent: true,
			Fn: func(state any, ext []any, args []any, kwargs map[string]any) (any, error) {
				s, ok := state.(State)
				if !ok {
					return nil, fmt.Errorf("oscillator: expected oscillator state, got %T", state)
				}
				return o.Energy(s), nil
			},
		},
		{
			Name:           "measure_position",
			Kind:           routine.Observable,
			Cachable:       true,
			StateDependent: true,
			Fn: func(state any, ext []any, args []any, kwargs map[string]any) (any, error) {
				s, ok := state.(State)
				if !ok || len(s) != 2 {
					return nil, fmt.Errorf("oscillator: expected oscillator state, got %T", state)
				}
				return s[0], nil
			},
		},
		{
			Name: "kick",
			Kind: routine.StateTransform,
			Fn: func(state any, ext []any, args []any, kwargs map[string]any) (any, error) {
				s, ok := state.(State)
				if !ok || len(s) != 2 {
					return nil, fmt.Errorf("oscillator: expected oscillator state, got %T", state)
				}
				dp, err := floatKwarg(kwargs, "dp", 0)
				if err != nil {
					return nil, err
				}
				next := s.Clone()
				next[1] += dp
				return next, nil
			},
		},
		{
			Name: "scale",
			Kind: routine.StateTransform,
			Fn: func(state any, ext []any, args []any, kwargs map[string]any) (any, error) {
				s, ok := state.(State)
				if !ok {
					return nil, fmt.Errorf("oscillator: expected oscillator state, got %T", state)
				}
				factor, err := floatKwarg(kwargs, "factor", 1)
				if err != nil {
					return nil, err
				}
				next := s.Clone()
				for i := range next {
					next[i] *= factor
				}
				return next, nil
			},
		},
	}

	for _, rt := range routines {
		if err := reg.Register(rt); err != nil {
			return err
		}
	}
	return nil
}

// floatKwarg reads a numeric keyword argument; YAML delivers numbers as
// float64 or int depending on their spelling.
func floatKwarg(kwargs map[string]any, name string, def float64) (float64, error) {
	v, ok := kwargs[name]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("oscillator: kwarg %q must be a number, got %T", name, v)
	}
}
