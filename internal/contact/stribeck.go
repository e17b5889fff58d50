package contact

import (
	"github.com/san-kum/mbplant/internal/geometry"
)

// DefaultStictionTolerance is the slip speed below which contact is
// considered sticking, in m/s.
const DefaultStictionTolerance = 1e-3

// StribeckModel regularizes Coulomb friction: the friction coefficient is a
// smooth function of slip speed, rising to the static coefficient at the
// stiction tolerance and settling to the dynamic coefficient at three times
// that speed.
type StribeckModel struct {
	stictionTolerance float64
	invTolerance      float64
}

func NewStribeckModel(stictionTolerance float64) StribeckModel {
	return StribeckModel{
		stictionTolerance: stictionTolerance,
		invTolerance:      1 / stictionTolerance,
	}
}

func (m StribeckModel) StictionTolerance() float64 { return m.stictionTolerance }

// ComputeFrictionCoefficient evaluates the piecewise-quintic Stribeck law
// at the given non-negative slip speed.
func (m StribeckModel) ComputeFrictionCoefficient(speed float64, f geometry.CoulombFriction) float64 {
	v := speed * m.invTolerance
	switch {
	case v >= 3:
		return f.Dynamic
	case v >= 1:
		return f.Static - (f.Static-f.Dynamic)*step5((v-1)/2)
	default:
		return f.Static * step5(v)
	}
}

// step5 is the smooth quintic step 10x³ − 15x⁴ + 6x⁵ on [0, 1], with zero
// first and second derivatives at both ends.
func step5(x float64) float64 {
	x3 := x * x * x
	return x3 * (10 + x*(6*x-15))
}

// CombineFriction combines two surfaces' Coulomb coefficients with the
// harmonic-mean rule μ = 2·μ₁·μ₂/(μ₁+μ₂), applied to static and dynamic
// independently. Two frictionless surfaces combine to frictionless.
func CombineFriction(a, b geometry.CoulombFriction) geometry.CoulombFriction {
	combine := func(x, y float64) float64 {
		if x+y == 0 {
			return 0
		}
		return 2 * x * y / (x + y)
	}
	return geometry.CoulombFriction{
		Static:  combine(a.Static, b.Static),
		Dynamic: combine(a.Dynamic, b.Dynamic),
	}
}
