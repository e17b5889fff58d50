package tree

import (
	"fmt"
	"math"

	"github.com/san-kum/mbplant/internal/spatial"
)

// InverseDynamicsResult carries the generalized force output of an inverse
// dynamics pass plus the per-joint reaction forces (force from parent on
// child, applied at the joint's outboard frame origin, expressed in world).
type InverseDynamicsResult struct {
	Tau       []float64
	Reactions []spatial.Force
}

// CalcInverseDynamics runs a recursive Newton-Euler pass:
//
//	tau = M(q)·vdot + C(q,v)·v − tauApplied − Σ Jᵀ·Fapplied
//
// appliedBody holds spatial forces at each body origin in world (may be
// nil), appliedGeneralized the applied generalized forces (may be nil).
// With ignoreVelocityTerms all velocity-dependent terms are dropped, which
// turns the pass into the pure configuration-dependent map used to convert
// body forces into generalized forces.
func (t *Tree) CalcInverseDynamics(pc *PositionKinematics, v, vdot []float64,
	appliedBody []spatial.Force, appliedGeneralized []float64,
	ignoreVelocityTerms bool) *InverseDynamicsResult {

	nb := t.NumBodies()
	omega := make([]spatial.Vec3, nb)
	vel := make([]spatial.Vec3, nb)
	alpha := make([]spatial.Vec3, nb)
	acc := make([]spatial.Vec3, nb)

	// Outward pass: body angular/linear velocities and accelerations at
	// each body origin, expressed in world.
	for _, ji := range t.order {
		j := &t.joints[ji]
		p := pc.XWB[j.Child].P.Sub(pc.XWB[j.Parent].P)
		wP, vP := omega[j.Parent], vel[j.Parent]
		aP, alP := acc[j.Parent], alpha[j.Parent]
		if ignoreVelocityTerms {
			wP, vP = spatial.Vec3{}, spatial.Vec3{}
		}

		// Rigid transport of the parent motion to the child origin.
		wB := wP
		vB := vP.Add(wP.Cross(p))
		alB := alP
		aB := aP.Add(alP.Cross(p)).Add(wP.Cross(wP.Cross(p)))

		switch k := j.Kind.(type) {
		case RevoluteKind:
			s := pc.XWB[j.Parent].R.Mul(j.XPJ.R).MulVec(k.Axis.Normalized())
			rate := v[j.velocityStart]
			if ignoreVelocityTerms {
				rate = 0
			}
			wB = wB.Add(s.Scale(rate))
			alB = alB.Add(s.Scale(vdot[j.velocityStart])).Add(wP.Cross(s.Scale(rate)))
		case PrismaticKind:
			s := pc.XWB[j.Parent].R.Mul(j.XPJ.R).MulVec(k.Axis.Normalized())
			rate := v[j.velocityStart]
			if ignoreVelocityTerms {
				rate = 0
			}
			vB = vB.Add(s.Scale(rate))
			aB = aB.Add(s.Scale(vdot[j.velocityStart])).Add(wP.Cross(s.Scale(rate)).Scale(2))
		case FloatingKind:
			// Motion is relative to the world directly.
			vs := j.velocityStart
			if ignoreVelocityTerms {
				wB, vB = spatial.Vec3{}, spatial.Vec3{}
			} else {
				wB = spatial.V3(v[vs], v[vs+1], v[vs+2])
				vB = spatial.V3(v[vs+3], v[vs+4], v[vs+5])
			}
			alB = spatial.V3(vdot[vs], vdot[vs+1], vdot[vs+2])
			aB = spatial.V3(vdot[vs+3], vdot[vs+4], vdot[vs+5])
		case WeldKind:
			// Nothing to add.
		}
		omega[j.Child], vel[j.Child] = wB, vB
		alpha[j.Child], acc[j.Child] = alB, aB
	}

	// Newton-Euler at each body: net spatial force required about the body
	// origin for the computed accelerations, minus the applied forces.
	accum := make([]spatial.Force, nb)
	for i := 1; i < nb; i++ {
		b := &t.bodies[i]
		m := b.Inertia.Mass
		if math.IsNaN(m) {
			m = 0
		}
		cW := pc.XWB[i].R.MulVec(b.Inertia.Com)
		aCm := acc[i].Add(alpha[i].Cross(cW)).Add(omega[i].Cross(omega[i].Cross(cW)))
		fNet := aCm.Scale(m)

		r := pc.XWB[i].R
		iW := r.Mul(b.Inertia.ICom).Mul(r.Transpose())
		tauNet := iW.MulVec(alpha[i]).Add(omega[i].Cross(iW.MulVec(omega[i])))

		required := spatial.Force{Rot: tauNet.Add(cW.Cross(fNet)), Trans: fNet}
		if appliedBody != nil {
			required = required.Add(appliedBody[i].Neg())
		}
		accum[i] = required
	}

	// Inward pass: joint reactions and projected generalized forces.
	result := &InverseDynamicsResult{
		Tau:       make([]float64, t.nv),
		Reactions: make([]spatial.Force, t.NumJoints()),
	}
	for i := len(t.order) - 1; i >= 0; i-- {
		ji := t.order[i]
		j := &t.joints[ji]
		fJoint := accum[j.Child]
		result.Reactions[ji] = fJoint

		switch k := j.Kind.(type) {
		case RevoluteKind:
			s := pc.XWB[j.Parent].R.Mul(j.XPJ.R).MulVec(k.Axis.Normalized())
			result.Tau[j.velocityStart] = s.Dot(fJoint.Rot)
		case PrismaticKind:
			s := pc.XWB[j.Parent].R.Mul(j.XPJ.R).MulVec(k.Axis.Normalized())
			result.Tau[j.velocityStart] = s.Dot(fJoint.Trans)
		case FloatingKind:
			vs := j.velocityStart
			result.Tau[vs], result.Tau[vs+1], result.Tau[vs+2] =
				fJoint.Rot[0], fJoint.Rot[1], fJoint.Rot[2]
			result.Tau[vs+3], result.Tau[vs+4], result.Tau[vs+5] =
				fJoint.Trans[0], fJoint.Trans[1], fJoint.Trans[2]
		}

		if j.Parent != WorldBodyIndex {
			shift := pc.XWB[j.Parent].P.Sub(pc.XWB[j.Child].P)
			accum[j.Parent] = accum[j.Parent].Add(fJoint.Shift(shift))
		}
	}

	if appliedGeneralized != nil {
		for i := range result.Tau {
			result.Tau[i] -= appliedGeneralized[i]
		}
	}
	return result
}

// CalcMassMatrix builds M(q) column by column via inverse dynamics with
// unit accelerations and no velocities or forces.
func (t *Tree) CalcMassMatrix(pc *PositionKinematics) [][]float64 {
	nv := t.nv
	m := make([][]float64, nv)
	zero := make([]float64, nv)
	vdot := make([]float64, nv)
	for i := range m {
		m[i] = make([]float64, nv)
	}
	for col := 0; col < nv; col++ {
		vdot[col] = 1
		id := t.CalcInverseDynamics(pc, zero, vdot, nil, nil, true)
		for row := 0; row < nv; row++ {
			m[row][col] = id.Tau[row]
		}
		vdot[col] = 0
	}
	return m
}

// CalcBiasTerm computes C(q,v)·v.
func (t *Tree) CalcBiasTerm(pc *PositionKinematics, v []float64) []float64 {
	zero := make([]float64, t.nv)
	return t.CalcInverseDynamics(pc, v, zero, nil, nil, false).Tau
}

// CalcForwardDynamics solves M·vdot = tauApplied + ΣJᵀF − C(q,v)v for vdot.
// unlocked restricts the solve to the given velocity indices (nil means all
// DOFs); locked DOFs get zero acceleration.
func (t *Tree) CalcForwardDynamics(pc *PositionKinematics, v []float64,
	forces *Forces, unlocked []int) ([]float64, error) {

	zero := make([]float64, t.nv)
	// With vdot = 0: tau_id = Cv − tau_app − ΣJᵀF, so the RHS is −tau_id.
	id := t.CalcInverseDynamics(pc, v, zero, forces.Body, forces.Generalized, false)
	rhs := make([]float64, t.nv)
	for i := range rhs {
		rhs[i] = -id.Tau[i]
	}

	m := t.CalcMassMatrix(pc)

	if unlocked == nil {
		unlocked = make([]int, t.nv)
		for i := range unlocked {
			unlocked[i] = i
		}
	}

	n := len(unlocked)
	sub := make([][]float64, n)
	subRHS := make([]float64, n)
	for i, ri := range unlocked {
		sub[i] = make([]float64, n)
		for k, ci := range unlocked {
			sub[i][k] = m[ri][ci]
		}
		subRHS[i] = rhs[ri]
	}

	sol, err := solveDense(sub, subRHS)
	if err != nil {
		return nil, fmt.Errorf("tree: forward dynamics: %w", err)
	}
	vdot := make([]float64, t.nv)
	for i, ri := range unlocked {
		vdot[ri] = sol[i]
	}
	return vdot, nil
}

// solveDense solves A·x = b in place by Gaussian elimination with partial
// pivoting. A and b are clobbered.
func solveDense(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-14 {
			return nil, fmt.Errorf("singular mass matrix at DOF %d (zero or unspecified inertia?)", col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		inv := 1 / a[col][col]
		for row := col + 1; row < n; row++ {
			f := a[row][col] * inv
			if f == 0 {
				continue
			}
			for k := col; k < n; k++ {
				a[row][k] -= f * a[col][k]
			}
			b[row] -= f * b[col]
		}
	}
	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}
