package contact

import (
	"math"
	"testing"

	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

func TestCriticallyDampedParams(t *testing.T) {
	// One-second period, unit inertia: k = (2π)², d = 2·2π.
	p := CalcCriticallyDampedParams(1.0, 1.0)
	wantK := 4 * math.Pi * math.Pi
	if math.Abs(p.Stiffness-wantK) > 1e-12 {
		t.Errorf("stiffness = %g, want %g", p.Stiffness, wantK)
	}
	wantD := 2 * math.Sqrt(wantK)
	if math.Abs(p.Damping-wantD) > 1e-12 {
		t.Errorf("damping = %g, want %g", p.Damping, wantD)
	}
}

func TestCriticallyDampedParamsInfiniteInertia(t *testing.T) {
	p := CalcCriticallyDampedParams(1.0, math.Inf(1))
	if !math.IsInf(p.Stiffness, 1) || !math.IsInf(p.Damping, 1) {
		t.Errorf("infinite inertia should give infinite params, got %+v", p)
	}
}

func TestPickLessStiff(t *testing.T) {
	soft := PenaltyParams{Stiffness: 1, Damping: 10}
	hard := PenaltyParams{Stiffness: 2, Damping: 1}

	if got := PickLessStiff(soft, hard); got != soft {
		t.Errorf("expected soft pair, got %+v", got)
	}
	if got := PickLessStiff(hard, soft); got != soft {
		t.Errorf("order must not matter for distinct stiffnesses, got %+v", got)
	}

	inf := PenaltyParams{Stiffness: math.Inf(1), Damping: math.Inf(1)}
	if got := PickLessStiff(inf, hard); got != hard {
		t.Errorf("finite side must beat infinite, got %+v", got)
	}
}

func TestJointLimitParamsSkipsWeld(t *testing.T) {
	parent := &tree.Body{Inertia: tree.PointMass(1)}
	child := &tree.Body{Inertia: tree.PointMass(1)}
	j := &tree.Joint{Kind: tree.WeldKind{}}
	if _, ok := CalcJointLimitParams(j, parent, child, 0.1); ok {
		t.Error("weld joints have no motion axis and no limit params")
	}
}

func TestJointLimitParamsGrowWithInertia(t *testing.T) {
	// The parent side reports infinite inertia, so the child's pair wins;
	// the heavier child must yield stiffer and more damped limits.
	parent := &tree.Body{Inertia: tree.SpatialInertia{Mass: math.NaN()}}
	light := &tree.Body{Index: 1, Inertia: tree.PointMass(1)}
	heavy := &tree.Body{Index: 2, Inertia: tree.PointMass(4)}
	j := &tree.Joint{Kind: tree.PrismaticKind{Axis: spatial.V3(0, 0, 1)}}

	pLight, ok := CalcJointLimitParams(j, parent, light, 0.1)
	if !ok {
		t.Fatal("expected params for prismatic joint")
	}
	pHeavy, ok := CalcJointLimitParams(j, parent, heavy, 0.1)
	if !ok {
		t.Fatal("expected params for prismatic joint")
	}

	if pHeavy.Stiffness <= pLight.Stiffness {
		t.Errorf("stiffness: heavy %g <= light %g", pHeavy.Stiffness, pLight.Stiffness)
	}
	if pHeavy.Damping <= pLight.Damping {
		t.Errorf("damping: heavy %g <= light %g", pHeavy.Damping, pLight.Damping)
	}
}

func TestBuildJointLimitsTable(t *testing.T) {
	tr := tree.New()
	b, err := tr.AddBody("arm", tree.DefaultModelInstance,
		tree.SpatialInertia{Mass: 2, Com: spatial.V3(0, 0, -0.5)})
	if err != nil {
		t.Fatal(err)
	}
	j, err := tr.AddJoint("shoulder", tree.WorldBodyIndex, b,
		tree.RevoluteKind{Axis: spatial.V3(0, 1, 0)}, spatial.IdentityPose())
	if err != nil {
		t.Fatal(err)
	}
	tr.Joint(j).LowerLimit = -1
	tr.Joint(j).UpperLimit = 1
	if err := tr.Finalize(); err != nil {
		t.Fatal(err)
	}

	table := BuildJointLimitsTable(tr, 1e-3)
	if table.Len() != 1 {
		t.Fatalf("expected one limited joint, got %d", table.Len())
	}
	if table.Stiffness[0] <= 0 || table.Damping[0] <= 0 {
		t.Errorf("expected positive penalty params, got k=%g d=%g",
			table.Stiffness[0], table.Damping[0])
	}
	// The world side is infinitely stiff; the finite arm inertia must win.
	if math.IsInf(table.Stiffness[0], 1) {
		t.Error("table picked the infinite world-side stiffness")
	}
}

func TestLimitPenaltyForce(t *testing.T) {
	const lower, upper, k, d = -1.0, 1.0, 100.0, 10.0

	if f := CalcLimitPenaltyForce(lower, upper, k, d, 0, 5); f != 0 {
		t.Errorf("no force inside limits, got %g", f)
	}
	// Above the upper limit, moving outward: spring and damper both push back.
	if f := CalcLimitPenaltyForce(lower, upper, k, d, 1.1, 1); f >= 0 {
		t.Errorf("expected negative restoring force, got %g", f)
	}
	// Above the upper limit but retreating fast: the damper may not pull the
	// joint back into the limit.
	if f := CalcLimitPenaltyForce(lower, upper, k, d, 1.01, -100); f != 0 {
		t.Errorf("clipped force must not pull into the limit, got %g", f)
	}
	// Mirror case below the lower limit.
	if f := CalcLimitPenaltyForce(lower, upper, k, d, -1.1, -1); f <= 0 {
		t.Errorf("expected positive restoring force, got %g", f)
	}
	if f := CalcLimitPenaltyForce(lower, upper, k, d, -1.01, 100); f != 0 {
		t.Errorf("clipped force must not pull into the limit, got %g", f)
	}
}

func TestEstimatePointContactParams(t *testing.T) {
	const mass, g, delta = 10.0, 9.81, 1e-3
	p, err := EstimatePointContactParams(mass, g, delta)
	if err != nil {
		t.Fatal(err)
	}

	// At static equilibrium the combined stiffness carries the weight at the
	// allowed penetration; per-geometry stiffness is twice the combined.
	combined := mass * g / delta
	if math.Abs(p.GeometryStiffness-2*combined) > 1e-9*combined {
		t.Errorf("geometry stiffness = %g, want %g", p.GeometryStiffness, 2*combined)
	}
	omega := math.Sqrt(combined / mass)
	if math.Abs(p.TimeScale-1/omega) > 1e-12 {
		t.Errorf("time scale = %g, want %g", p.TimeScale, 1/omega)
	}
	if math.Abs(p.Dissipation-p.TimeScale/delta) > 1e-12 {
		t.Errorf("dissipation = %g, want %g", p.Dissipation, p.TimeScale/delta)
	}
}

func TestEstimatePointContactParamsRejectsBadInput(t *testing.T) {
	if _, err := EstimatePointContactParams(1, 9.81, 0); err == nil {
		t.Error("zero penetration allowance must fail")
	}
	if _, err := EstimatePointContactParams(1, 9.81, -1); err == nil {
		t.Error("negative penetration allowance must fail")
	}
	if _, err := EstimatePointContactParams(math.NaN(), 9.81, 1e-3); err == nil {
		t.Error("NaN mass must fail")
	}
	if _, err := EstimatePointContactParams(0, 9.81, 1e-3); err == nil {
		t.Error("zero mass must fail")
	}
}

func TestEstimatePointContactParamsWeightless(t *testing.T) {
	// Zero gravity falls back to standard gravity for the force scale.
	p0, err := EstimatePointContactParams(1, 0, 1e-3)
	if err != nil {
		t.Fatal(err)
	}
	pg, err := EstimatePointContactParams(1, 9.81, 1e-3)
	if err != nil {
		t.Fatal(err)
	}
	if p0.GeometryStiffness != pg.GeometryStiffness {
		t.Errorf("weightless fallback mismatch: %g vs %g",
			p0.GeometryStiffness, pg.GeometryStiffness)
	}
}

func TestCombinePointParamsSeries(t *testing.T) {
	// Two equal springs in series halve the stiffness and keep dissipation.
	k, d := CombinePointParams(100, 0.5, 100, 0.5)
	if math.Abs(k-50) > 1e-12 {
		t.Errorf("series stiffness = %g, want 50", k)
	}
	if math.Abs(d-0.5) > 1e-12 {
		t.Errorf("series dissipation = %g, want 0.5", d)
	}

	// A rigid side leaves the compliant side's parameters.
	k, d = CombinePointParams(1e12, 0, 100, 0.5)
	if math.Abs(k-100) > 1e-6 {
		t.Errorf("near-rigid combination stiffness = %g, want ~100", k)
	}
	if math.Abs(d-0.5) > 1e-6 {
		t.Errorf("near-rigid combination dissipation = %g, want ~0.5", d)
	}
}
