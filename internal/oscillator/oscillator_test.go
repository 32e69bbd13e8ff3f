package oscillator

import (
	"math"
	"testing"

	"github.com/san-kum/qsched/internal/routine"
)

func TestEnergy(t *testing.T) {
	o := New(1.0)

	// Pure momentum: E = p^2/2.
	e := o.Energy(State{0, math.Sqrt2})
	if math.Abs(e-1.0) > 1e-12 {
		t.Errorf("expected E=1, got %v", e)
	}

	// Pure displacement with omega=2: E = w^2 q^2 / 2.
	o2 := New(2.0)
	e = o2.Energy(State{1, 0})
	if math.Abs(e-2.0) > 1e-12 {
		t.Errorf("expected E=2, got %v", e)
	}
}

func TestPropagatorConservesEnergy(t *testing.T) {
	o := New(1.3)
	prop := o.Propagator()

	var state any = State{0.7, -0.2}
	e0 := o.Energy(state.(State))

	tNow := 0.0
	for i := 0; i < 1000; i++ {
		next, err := prop(state, tNow, 0.05)
		if err != nil {
			t.Fatalf("propagate failed: %v", err)
		}
		state = next
		tNow += 0.05
	}

	e1 := o.Energy(state.(State))
	if math.Abs(e1-e0) > 1e-9 {
		t.Errorf("energy drifted: %v -> %v", e0, e1)
	}
}

func TestPropagatorFullPeriod(t *testing.T) {
	o := New(1.0)
	prop := o.Propagator()

	initial := State{0.5, 0.25}
	next, err := prop(initial, 0, 2*math.Pi)
	if err != nil {
		t.Fatalf("propagate failed: %v", err)
	}
	final := next.(State)
	if math.Abs(final[0]-initial[0]) > 1e-9 || math.Abs(final[1]-initial[1]) > 1e-9 {
		t.Errorf("expected return to initial after full period, got %v", final)
	}
}

func TestPropagatorRejectsForeignState(t *testing.T) {
	o := New(1.0)
	if _, err := o.Propagator()("not a state", 0, 0.1); err == nil {
		t.Error("expected error for foreign state type")
	}
}

func TestFingerprint(t *testing.T) {
	a := State{0.1, 0.2}
	b := State{0.1, 0.2}
	c := State{0.1, 0.2000000001}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("equal states must share a fingerprint")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("distinct states must not collide")
	}
}

func TestCloneIndependent(t *testing.T) {
	a := State{1, 2}
	b := a.Clone()
	b[0] = 9
	if a[0] != 1 {
		t.Error("clone aliases original")
	}
}

func TestRegisterInstallsRoutines(t *testing.T) {
	reg := routine.NewRegistry()
	if err := New(1.0).Register(reg); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	for _, name := range []string{"init", "noop", "measure_energy", "measure_position", "kick", "scale"} {
		if _, err := reg.Resolve(name); err != nil {
			t.Errorf("expected %s registered: %v", name, err)
		}
	}
}

func TestFloatKwargCoercion(t *testing.T) {
	v, err := floatKwarg(map[string]any{"x": 3}, "x", 0)
	if err != nil || v != 3.0 {
		t.Errorf("int coercion failed: %v %v", v, err)
	}
	v, err = floatKwarg(map[string]any{}, "x", 7.5)
	if err != nil || v != 7.5 {
		t.Errorf("default failed: %v %v", v, err)
	}
	if _, err := floatKwarg(map[string]any{"x": "nope"}, "x", 0); err == nil {
		t.Error("expected type error")
	}
}
