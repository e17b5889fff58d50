package tree

import (
	"github.com/san-kum/mbplant/internal/spatial"
)

// Forces accumulates generalized forces (one entry per velocity DOF) and
// per-body spatial forces applied at each body origin, expressed in the
// world frame.
type Forces struct {
	Generalized []float64
	Body        []spatial.Force
}

func NewForces(t *Tree) *Forces {
	return &Forces{
		Generalized: make([]float64, t.NumVelocities()),
		Body:        make([]spatial.Force, t.NumBodies()),
	}
}

func (f *Forces) SetZero() {
	for i := range f.Generalized {
		f.Generalized[i] = 0
	}
	for i := range f.Body {
		f.Body[i] = spatial.ZeroForce()
	}
}

// AddIn accumulates other into f.
func (f *Forces) AddIn(other *Forces) {
	for i := range f.Generalized {
		f.Generalized[i] += other.Generalized[i]
	}
	for i := range f.Body {
		f.Body[i] = f.Body[i].Add(other.Body[i])
	}
}

// CheckSize reports whether f is dimensioned for t.
func (f *Forces) CheckSize(t *Tree) bool {
	return len(f.Generalized) == t.NumVelocities() && len(f.Body) == t.NumBodies()
}

// ForceElement contributes state-dependent forces (gravity, springs, custom
// elements) given the current kinematics.
type ForceElement interface {
	CalcAndAddForceContribution(t *Tree, pc *PositionKinematics, vc *VelocityKinematics, forces *Forces)
}

// CalcForceElementsContribution resets forces and adds every element's
// contribution plus gravity and joint viscous damping. Resetting here means
// this must be the first step of any force assembly.
func (t *Tree) CalcForceElementsContribution(pc *PositionKinematics, vc *VelocityKinematics, v []float64, forces *Forces) {
	forces.SetZero()

	// Gravity acts at each body's center of mass.
	for i := 1; i < t.NumBodies(); i++ {
		b := &t.bodies[i]
		m := b.Inertia.Mass
		if m != m || m == 0 { // NaN mass: kinematics-only body.
			continue
		}
		fg := t.gravity.Scale(m)
		comW := pc.XWB[i].R.MulVec(b.Inertia.Com)
		forces.Body[i] = forces.Body[i].Add(spatial.Force{Trans: fg}.Shift(comW.Neg()))
	}

	// Joint viscous damping.
	for i := range t.joints {
		j := &t.joints[i]
		if j.Damping == 0 || j.NumVelocities() != 1 {
			continue
		}
		forces.Generalized[j.velocityStart] -= j.Damping * v[j.velocityStart]
	}

	for _, e := range t.elements {
		e.CalcAndAddForceContribution(t, pc, vc, forces)
	}
}

// LinearSpringDamper connects point P on body A to point Q on body B with a
// linear spring of the given free length, stiffness and damping.
type LinearSpringDamper struct {
	BodyA, BodyB BodyIndex
	PAP, PBQ     spatial.Vec3 // attachment points in the body frames
	FreeLength   float64
	Stiffness    float64
	Damping      float64
}

func (s *LinearSpringDamper) CalcAndAddForceContribution(t *Tree, pc *PositionKinematics, vc *VelocityKinematics, forces *Forces) {
	pWP := pc.XWB[s.BodyA].Apply(s.PAP)
	pWQ := pc.XWB[s.BodyB].Apply(s.PBQ)
	d := pWQ.Sub(pWP)
	length := d.Norm()
	if length == 0 {
		return // direction undefined; no force
	}
	dir := d.Scale(1 / length)

	// Rate of change of the separation along dir.
	vP := vc.VWB[s.BodyA].Shift(pWP.Sub(pc.XWB[s.BodyA].P)).Trans
	vQ := vc.VWB[s.BodyB].Shift(pWQ.Sub(pc.XWB[s.BodyB].P)).Trans
	rate := vQ.Sub(vP).Dot(dir)

	// Positive magnitude pulls the points together.
	magnitude := s.Stiffness*(length-s.FreeLength) + s.Damping*rate
	fOnQ := dir.Scale(-magnitude)

	if s.BodyA != WorldBodyIndex {
		armA := pWP.Sub(pc.XWB[s.BodyA].P)
		forces.Body[s.BodyA] = forces.Body[s.BodyA].Add(
			spatial.Force{Trans: fOnQ.Neg()}.Shift(armA.Neg()))
	}
	if s.BodyB != WorldBodyIndex {
		armB := pWQ.Sub(pc.XWB[s.BodyB].P)
		forces.Body[s.BodyB] = forces.Body[s.BodyB].Add(
			spatial.Force{Trans: fOnQ}.Shift(armB.Neg()))
	}
}
