package contact

import (
	"math"
	"testing"

	"github.com/san-kum/mbplant/internal/geometry"
)

func TestStep5Endpoints(t *testing.T) {
	if step5(0) != 0 {
		t.Errorf("step5(0) = %g", step5(0))
	}
	if math.Abs(step5(1)-1) > 1e-15 {
		t.Errorf("step5(1) = %g", step5(1))
	}
	if math.Abs(step5(0.5)-0.5) > 1e-15 {
		t.Errorf("step5(0.5) = %g, want 0.5 by symmetry", step5(0.5))
	}
}

func TestStribeckRegimes(t *testing.T) {
	m := NewStribeckModel(1e-3)
	f := geometry.CoulombFriction{Static: 1.0, Dynamic: 0.5}

	if mu := m.ComputeFrictionCoefficient(0, f); mu != 0 {
		t.Errorf("mu at rest = %g, want 0", mu)
	}
	// Peak at the stiction tolerance.
	if mu := m.ComputeFrictionCoefficient(1e-3, f); math.Abs(mu-f.Static) > 1e-12 {
		t.Errorf("mu at vs = %g, want %g", mu, f.Static)
	}
	// Settled to dynamic at three times the tolerance and beyond.
	for _, v := range []float64{3e-3, 1e-2, 1.0} {
		if mu := m.ComputeFrictionCoefficient(v, f); math.Abs(mu-f.Dynamic) > 1e-12 {
			t.Errorf("mu at %g = %g, want %g", v, mu, f.Dynamic)
		}
	}
}

func TestStribeckContinuity(t *testing.T) {
	m := NewStribeckModel(1e-3)
	f := geometry.CoulombFriction{Static: 0.9, Dynamic: 0.3}

	// The piecewise law must be continuous across its breakpoints at
	// normalized speeds 1 and 3.
	for _, v := range []float64{1e-3, 3e-3} {
		lo := m.ComputeFrictionCoefficient(v*(1-1e-9), f)
		hi := m.ComputeFrictionCoefficient(v*(1+1e-9), f)
		if math.Abs(lo-hi) > 1e-6 {
			t.Errorf("discontinuity at speed %g: %g vs %g", v, lo, hi)
		}
	}
}

func TestStribeckMonotoneDecay(t *testing.T) {
	m := NewStribeckModel(1e-3)
	f := geometry.CoulombFriction{Static: 1.0, Dynamic: 0.4}

	// Between the peak and settling the coefficient decays monotonically.
	prev := m.ComputeFrictionCoefficient(1e-3, f)
	for v := 1.1e-3; v <= 3e-3; v += 1e-4 {
		mu := m.ComputeFrictionCoefficient(v, f)
		if mu > prev+1e-12 {
			t.Fatalf("mu increased from %g to %g at speed %g", prev, mu, v)
		}
		prev = mu
	}
}

func TestCombineFriction(t *testing.T) {
	a := geometry.CoulombFriction{Static: 1.0, Dynamic: 0.5}
	b := geometry.CoulombFriction{Static: 0.5, Dynamic: 0.25}

	got := CombineFriction(a, b)
	want := geometry.CoulombFriction{
		Static:  2 * 1.0 * 0.5 / 1.5,
		Dynamic: 2 * 0.5 * 0.25 / 0.75,
	}
	if math.Abs(got.Static-want.Static) > 1e-15 || math.Abs(got.Dynamic-want.Dynamic) > 1e-15 {
		t.Errorf("combined = %+v, want %+v", got, want)
	}

	// Symmetric.
	if CombineFriction(b, a) != got {
		t.Error("friction combination must be symmetric")
	}

	// Frictionless dominates.
	zero := geometry.CoulombFriction{}
	if c := CombineFriction(a, zero); c.Static != 0 || c.Dynamic != 0 {
		t.Errorf("frictionless pairing must be frictionless, got %+v", c)
	}
	if c := CombineFriction(zero, zero); c.Static != 0 || c.Dynamic != 0 {
		t.Errorf("two frictionless surfaces must not divide by zero, got %+v", c)
	}
}
