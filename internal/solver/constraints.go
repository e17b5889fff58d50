package solver

import (
	"fmt"
	"math"

	"github.com/san-kum/mbplant/internal/contact"
	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

// CouplerConstraint ties two single-DOF joint positions together:
// q0 = gearRatio·q1 + offset.
type CouplerConstraint struct {
	Joint0, Joint1 tree.JointIndex
	GearRatio      float64
	Offset         float64
}

// DistanceConstraint keeps two body-fixed points a fixed distance apart,
// enforced compliantly with the given stiffness and damping.
type DistanceConstraint struct {
	BodyA, BodyB tree.BodyIndex
	PA, PB       spatial.Vec3 // attachment points in the body frames
	Distance     float64
	Stiffness    float64
	Damping      float64
}

// BallConstraint pins two body-fixed points together, leaving rotation free.
type BallConstraint struct {
	BodyA, BodyB tree.BodyIndex
	PA, PB       spatial.Vec3
}

// ConstraintSet is the finalized collection of declared constraints.
type ConstraintSet struct {
	Couplers  []CouplerConstraint
	Distances []DistanceConstraint
	Balls     []BallConstraint
}

func (s *ConstraintSet) Empty() bool {
	return s == nil || len(s.Couplers)+len(s.Distances)+len(s.Balls) == 0
}

// addConstraintForces accumulates the compliant constraint reactions into f.
// Coupler and ball stiffnesses are derived from the step-scaled critically
// damped oscillator; distance constraints use their declared parameters.
func addConstraintForces(p *Problem, f *tree.Forces) {
	if p.Constraints.Empty() {
		return
	}
	timeScale := contact.LimitTimeScaleFactor * p.DT

	for _, c := range p.Constraints.Couplers {
		j0 := p.Tree.Joint(c.Joint0)
		j1 := p.Tree.Joint(c.Joint1)
		i0, i1 := j0.VelocityStart(), j1.VelocityStart()

		inertia0, ok0 := j0.Kind.CharacteristicInertia(p.Tree.Body(j0.Child))
		inertia1, ok1 := j1.Kind.CharacteristicInertia(p.Tree.Body(j1.Child))
		if !ok0 || !ok1 {
			continue
		}
		params := contact.PickLessStiff(
			contact.CalcCriticallyDampedParams(timeScale, inertia0),
			contact.CalcCriticallyDampedParams(timeScale, inertia1),
		)

		e := p.Q0[j0.PositionStart()] - c.GearRatio*p.Q0[j1.PositionStart()] - c.Offset
		edot := p.V0[i0] - c.GearRatio*p.V0[i1]
		lambda := -params.Stiffness*e - params.Damping*edot
		f.Generalized[i0] += lambda
		f.Generalized[i1] -= c.GearRatio * lambda
	}

	for _, c := range p.Constraints.Distances {
		pA := p.PC.XWB[c.BodyA].Apply(c.PA)
		pB := p.PC.XWB[c.BodyB].Apply(c.PB)
		delta := pB.Sub(pA)
		dist := delta.Norm()
		if dist == 0 {
			continue
		}
		u := delta.Scale(1 / dist)

		vA := p.VC.VWB[c.BodyA].Shift(pA.Sub(p.PC.XWB[c.BodyA].P)).Trans
		vB := p.VC.VWB[c.BodyB].Shift(pB.Sub(p.PC.XWB[c.BodyB].P)).Trans
		ddot := vB.Sub(vA).Dot(u)

		// Positive lambda pulls the points together.
		lambda := c.Stiffness*(dist-c.Distance) + c.Damping*ddot
		applyPointForces(p, f, c.BodyA, c.BodyB, pA, pB, u.Scale(lambda), u.Scale(-lambda))
	}

	for _, c := range p.Constraints.Balls {
		pA := p.PC.XWB[c.BodyA].Apply(c.PA)
		pB := p.PC.XWB[c.BodyB].Apply(c.PB)
		delta := pB.Sub(pA)

		vA := p.VC.VWB[c.BodyA].Shift(pA.Sub(p.PC.XWB[c.BodyA].P)).Trans
		vB := p.VC.VWB[c.BodyB].Shift(pB.Sub(p.PC.XWB[c.BodyB].P)).Trans

		inertia := ballInertia(p.Tree, c.BodyA, c.BodyB)
		params := contact.CalcCriticallyDampedParams(timeScale, inertia)

		fOnA := delta.Scale(params.Stiffness).Add(vB.Sub(vA).Scale(params.Damping))
		applyPointForces(p, f, c.BodyA, c.BodyB, pA, pB, fOnA, fOnA.Neg())
	}
}

// applyPointForces shifts the two point forces to the body origins and
// accumulates them, skipping the world.
func applyPointForces(p *Problem, f *tree.Forces, bodyA, bodyB tree.BodyIndex,
	pA, pB, fOnA, fOnB spatial.Vec3) {

	if bodyA != tree.WorldBodyIndex {
		offset := p.PC.XWB[bodyA].P.Sub(pA)
		f.Body[bodyA] = f.Body[bodyA].Add(spatial.Force{Trans: fOnA}.Shift(offset))
	}
	if bodyB != tree.WorldBodyIndex {
		offset := p.PC.XWB[bodyB].P.Sub(pB)
		f.Body[bodyB] = f.Body[bodyB].Add(spatial.Force{Trans: fOnB}.Shift(offset))
	}
}

// ballInertia is the smaller finite mass of the two bodies, or 1 when
// neither declares one.
func ballInertia(tr *tree.Tree, a, b tree.BodyIndex) float64 {
	inertia := math.Inf(1)
	for _, bi := range []tree.BodyIndex{a, b} {
		body := tr.Body(bi)
		if body.IsWorld() || math.IsNaN(body.Inertia.Mass) {
			continue
		}
		if body.Inertia.Mass < inertia {
			inertia = body.Inertia.Mass
		}
	}
	if math.IsInf(inertia, 1) {
		return 1
	}
	return inertia
}

// ValidateCoupler checks a coupler declaration at creation time.
func ValidateCoupler(tr *tree.Tree, c CouplerConstraint) error {
	if c.Joint0 == c.Joint1 {
		return fmt.Errorf("solver: coupler constraint relates joint %d to itself", c.Joint0)
	}
	for _, ji := range []tree.JointIndex{c.Joint0, c.Joint1} {
		if j := tr.Joint(ji); j.NumVelocities() != 1 {
			return fmt.Errorf("solver: coupler constraint requires single-DOF joints, %q has %d DOFs",
				j.Name, j.NumVelocities())
		}
	}
	if c.GearRatio == 0 || math.IsNaN(c.GearRatio) {
		return fmt.Errorf("solver: coupler gear ratio must be non-zero and finite, got %g", c.GearRatio)
	}
	return nil
}

// ValidateDistance checks a distance declaration at creation time.
func ValidateDistance(c DistanceConstraint) error {
	if c.BodyA == c.BodyB {
		return fmt.Errorf("solver: distance constraint relates body %d to itself", c.BodyA)
	}
	if !(c.Distance > 0) {
		return fmt.Errorf("solver: distance constraint requires a positive distance, got %g", c.Distance)
	}
	if c.Stiffness < 0 || c.Damping < 0 {
		return fmt.Errorf("solver: distance constraint stiffness/damping must be non-negative, got (%g, %g)",
			c.Stiffness, c.Damping)
	}
	return nil
}

// ValidateBall checks a ball declaration at creation time.
func ValidateBall(c BallConstraint) error {
	if c.BodyA == c.BodyB {
		return fmt.Errorf("solver: ball constraint relates body %d to itself", c.BodyA)
	}
	return nil
}
