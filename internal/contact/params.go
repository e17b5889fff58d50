// Package contact implements the compliant contact pipeline: penalty
// parameter estimation, the Stribeck regularized friction model, point
// penalty forces and hydroelastic traction integration.
package contact

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/mbplant/internal/tree"
)

var (
	// ErrSymbolicUnsupported is returned by contact computations asked to
	// run on a symbolic state representation; no numeric contact query is
	// meaningful there and the failure is unconditional.
	ErrSymbolicUnsupported = errors.New("contact: not defined for a symbolic state representation")
)

// LimitTimeScaleFactor is the alpha in tau0 = alpha * dt used for joint
// limit penalties. Explicit Euler on the critically damped oscillator is
// stable for alpha > 2*pi; this sits well inside the stability region.
const LimitTimeScaleFactor = 20 * math.Pi

// PenaltyParams is a spring/damper pair for a penalty force.
type PenaltyParams struct {
	Stiffness float64
	Damping   float64
}

// CalcCriticallyDampedParams returns (k, d) for a critically damped
// harmonic oscillator of the given period and inertia:
//
//	m̃·q̈ + d·q̇ + k·q = 0,  ω₀ = 2π/period,  k = m̃·ω₀²,  d = 2·√(k·m̃)
//
// An infinite inertia yields infinite parameters, which PickLessStiff then
// discards in favor of the finite side.
func CalcCriticallyDampedParams(period, inertia float64) PenaltyParams {
	omega0 := 2 * math.Pi / period
	k := inertia * omega0 * omega0
	return PenaltyParams{
		Stiffness: k,
		Damping:   2 * math.Sqrt(inertia*k),
	}
}

// PickLessStiff returns the pair with the smaller stiffness, the less
// numerically stiff of the two. Ties return the second argument; callers
// must not rely on the tie-break.
func PickLessStiff(p1, p2 PenaltyParams) PenaltyParams {
	if p1.Stiffness < p2.Stiffness {
		return p1
	}
	return p2
}

// CalcJointLimitParams estimates the limit penalty pair for a single-DOF
// joint: each connected body is treated with the other welded, yielding a
// harmonic oscillator whose inertia is the body's characteristic inertia
// about the joint's motion axis; the less stiff pair wins. ok is false for
// joint kinds without a motion axis.
func CalcJointLimitParams(j *tree.Joint, parent, child *tree.Body, timeScale float64) (PenaltyParams, bool) {
	iP, okP := j.Kind.CharacteristicInertia(parent)
	iC, okC := j.Kind.CharacteristicInertia(child)
	if !okP || !okC {
		return PenaltyParams{}, false
	}
	return PickLessStiff(
		CalcCriticallyDampedParams(timeScale, iP),
		CalcCriticallyDampedParams(timeScale, iC),
	), true
}

// JointLimitsTable holds the per-joint limit penalty data computed once at
// finalize; parallel slices indexed together, immutable afterwards.
type JointLimitsTable struct {
	Joints    []tree.JointIndex
	Lower     []float64
	Upper     []float64
	Stiffness []float64
	Damping   []float64
}

func (t *JointLimitsTable) Len() int { return len(t.Joints) }

// BuildJointLimitsTable scans all joints with finite limits and estimates
// their penalty parameters with tau0 = LimitTimeScaleFactor * dt.
func BuildJointLimitsTable(tr *tree.Tree, dt float64) *JointLimitsTable {
	table := &JointLimitsTable{}
	timeScale := LimitTimeScaleFactor * dt
	for i := 0; i < tr.NumJoints(); i++ {
		j := tr.Joint(tree.JointIndex(i))
		if !j.HasLimits() {
			continue
		}
		params, ok := CalcJointLimitParams(j, tr.Body(j.Parent), tr.Body(j.Child), timeScale)
		if !ok {
			continue
		}
		table.Joints = append(table.Joints, j.Index)
		table.Lower = append(table.Lower, j.LowerLimit)
		table.Upper = append(table.Upper, j.UpperLimit)
		table.Stiffness = append(table.Stiffness, params.Stiffness)
		table.Damping = append(table.Damping, params.Damping)
	}
	return table
}

// CalcLimitPenaltyForce is the one-sided spring-damper force for a joint
// coordinate q with rate v against its limits. The force never pulls the
// joint into the violated limit.
func CalcLimitPenaltyForce(lower, upper, stiffness, damping, q, v float64) float64 {
	switch {
	case q > upper:
		f := -stiffness*(q-upper) - damping*v
		return math.Min(f, 0)
	case q < lower:
		f := -stiffness*(q-lower) - damping*v
		return math.Max(f, 0)
	}
	return 0
}

// PointContactParams are the plant-wide defaults for geometries that do not
// declare their own stiffness/dissipation.
type PointContactParams struct {
	// GeometryStiffness is the per-geometry stiffness; two default
	// geometries combined in series reproduce the estimated combined
	// stiffness, hence the factor of two in the estimation.
	GeometryStiffness float64
	// Dissipation has units of 1/velocity.
	Dissipation float64
	// TimeScale estimates the contact resolution time; integrators may use
	// it to bound their step.
	TimeScale float64
}

// EstimatePointContactParams derives the penalty defaults from the largest
// body mass, the gravity magnitude and the penetration allowance length
// scale, via a critically damped spring-mass oscillator at static
// equilibrium (m·g = k·δ). An unusable mass is a modeling error surfaced
// immediately.
func EstimatePointContactParams(maxMass, gravity, penetrationAllowance float64) (PointContactParams, error) {
	if penetrationAllowance <= 0 {
		return PointContactParams{}, fmt.Errorf(
			"contact: penetration allowance must be positive, got %g", penetrationAllowance)
	}
	if math.IsNaN(maxMass) || maxMass <= 0 {
		return PointContactParams{}, fmt.Errorf(
			"contact: cannot estimate point contact parameters: no body declares a positive mass "+
				"(got %g); set mass properties before finalizing", maxMass)
	}
	if gravity <= 0 {
		// Weightless models still need a force scale; use standard gravity.
		gravity = 9.81
	}

	combined := maxMass * gravity / penetrationAllowance
	omega := math.Sqrt(combined / maxMass)
	timeScale := 1 / omega
	// Critical damping of the nonlinear fn = k·x·(1+d·ẋ) oscillator, by
	// dimensional analysis: time scale over length scale.
	dissipation := timeScale / penetrationAllowance

	return PointContactParams{
		GeometryStiffness: 2 * combined,
		Dissipation:       dissipation,
		TimeScale:         timeScale,
	}, nil
}

// CombinePointParams combines two geometries' stiffness/dissipation in
// series: k = kA·kB/(kA+kB), with dissipation weighted by the opposite
// stiffness share.
func CombinePointParams(kA, dA, kB, dB float64) (k, d float64) {
	denom := kA + kB
	if denom == 0 {
		return 0, 0
	}
	return kA * kB / denom, (kB*dA + kA*dB) / denom
}
