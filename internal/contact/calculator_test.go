package contact

import (
	"math"
	"testing"

	"github.com/san-kum/mbplant/internal/geometry"
	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

// ballOnGround builds a floating unit sphere over a world half-space, with
// kinematics placing the sphere center at the given height and velocity.
func ballOnGround(t *testing.T, height float64, v spatial.Velocity) (*Calculator, *tree.PositionKinematics, *tree.VelocityKinematics, geometry.PointPair) {
	t.Helper()

	tr := tree.New()
	ball, err := tr.AddBody("ball", tree.DefaultModelInstance, tree.SolidSphere(1, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Finalize(); err != nil {
		t.Fatal(err)
	}

	friction := geometry.CoulombFriction{Static: 1.0, Dynamic: 0.5}
	reg := geometry.NewRegistry()
	ground, err := reg.Register(tree.WorldBodyIndex, "ground", geometry.HalfSpace{},
		spatial.IdentityPose(), geometry.RoleCollision, geometry.DefaultProximityProperties(friction))
	if err != nil {
		t.Fatal(err)
	}
	sphere, err := reg.Register(ball, "ball_collision", geometry.Sphere{Radius: 0.5},
		spatial.IdentityPose(), geometry.RoleCollision, geometry.DefaultProximityProperties(friction))
	if err != nil {
		t.Fatal(err)
	}

	pc := &tree.PositionKinematics{XWB: make([]spatial.Pose, tr.NumBodies())}
	pc.XWB[tree.WorldBodyIndex] = spatial.IdentityPose()
	pc.XWB[ball] = spatial.Pose{R: spatial.Identity3(), P: spatial.V3(0, 0, height)}
	vc := &tree.VelocityKinematics{VWB: make([]spatial.Velocity, tr.NumBodies())}
	vc.VWB[ball] = v

	depth := 0.5 - height
	pair := geometry.PointPair{
		IDA:   ground,
		IDB:   sphere,
		Depth: depth,
		// Normal pointing from B (sphere) into A (ground): -z.
		Nhat: spatial.V3(0, 0, -1),
		PWCa: spatial.V3(0, 0, 0),
		PWCb: spatial.V3(0, 0, height-0.5),
	}

	calc := &Calculator{
		Tree:     tr,
		Reg:      reg,
		Stribeck: NewStribeckModel(DefaultStictionTolerance),
		Defaults: PointContactParams{GeometryStiffness: 2000, Dissipation: 0.1},
	}
	return calc, pc, vc, pair
}

func TestPointContactRestingForce(t *testing.T) {
	// Sphere of radius 0.5 with center at 0.49: penetration 0.01, at rest.
	calc, pc, vc, pair := ballOnGround(t, 0.49, spatial.Velocity{})

	infos, err := calc.CalcPointPairInfos(pc, vc, []geometry.PointPair{pair})
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected one contact, got %d", len(infos))
	}
	info := infos[0]

	// fn = k·x at zero approach speed, with k the series combination of the
	// two default geometry stiffnesses (2000 each → 1000 combined).
	wantFn := 1000.0 * pair.Depth
	if math.Abs(info.ForceOnB[2]-wantFn) > 1e-9 {
		t.Errorf("normal force on sphere = %g, want %g", info.ForceOnB[2], wantFn)
	}
	if info.ForceOnB[0] != 0 || info.ForceOnB[1] != 0 {
		t.Errorf("no tangential force at rest, got %v", info.ForceOnB)
	}
	if info.SlipSpeed != 0 {
		t.Errorf("slip speed at rest = %g", info.SlipSpeed)
	}
	if info.SeparationSpeed != 0 {
		t.Errorf("approach speed at rest = %g", info.SeparationSpeed)
	}

	// Contact point at the witness midpoint.
	wantZ := 0.5 * (0 + (0.49 - 0.5))
	if math.Abs(info.Point[2]-wantZ) > 1e-12 {
		t.Errorf("contact point z = %g, want %g", info.Point[2], wantZ)
	}
}

func TestPointContactVanishesAtZeroDepth(t *testing.T) {
	calc, pc, vc, pair := ballOnGround(t, 0.5, spatial.Velocity{})
	if pair.Depth != 0 {
		t.Fatalf("setup: depth = %g", pair.Depth)
	}
	infos, err := calc.CalcPointPairInfos(pc, vc, []geometry.PointPair{pair})
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Errorf("zero depth must produce no force, got %d contacts", len(infos))
	}
}

func TestPointContactApproachStiffensRetreatSoftens(t *testing.T) {
	rest := spatial.Velocity{}
	approach := spatial.Velocity{Trans: spatial.V3(0, 0, -0.1)}
	retreat := spatial.Velocity{Trans: spatial.V3(0, 0, 0.1)}

	fn := func(v spatial.Velocity) float64 {
		calc, pc, vc, pair := ballOnGround(t, 0.49, v)
		infos, err := calc.CalcPointPairInfos(pc, vc, []geometry.PointPair{pair})
		if err != nil {
			t.Fatal(err)
		}
		if len(infos) != 1 {
			t.Fatalf("expected one contact, got %d", len(infos))
		}
		return infos[0].ForceOnB[2]
	}

	f0, fa, fr := fn(rest), fn(approach), fn(retreat)
	if !(fa > f0 && f0 > fr) {
		t.Errorf("expected approach > rest > retreat, got %g, %g, %g", fa, f0, fr)
	}
}

func TestPointContactRetreatNeverPulls(t *testing.T) {
	// Retreating much faster than 1/d: the Hunt & Crossley factor goes
	// negative and the force must clip to nothing, not become adhesive.
	fast := spatial.Velocity{Trans: spatial.V3(0, 0, 100)}
	calc, pc, vc, pair := ballOnGround(t, 0.49, fast)
	infos, err := calc.CalcPointPairInfos(pc, vc, []geometry.PointPair{pair})
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Errorf("fast retreat must produce no contact force, got %d contacts", len(infos))
	}
}

func TestPointContactSlidingFriction(t *testing.T) {
	// Sliding at 1 m/s, far above the Stribeck settling speed: the
	// tangential force is mu_dynamic times the normal force, opposing the
	// sphere's motion.
	slide := spatial.Velocity{Trans: spatial.V3(1, 0, 0)}
	calc, pc, vc, pair := ballOnGround(t, 0.49, slide)

	infos, err := calc.CalcPointPairInfos(pc, vc, []geometry.PointPair{pair})
	if err != nil {
		t.Fatal(err)
	}
	info := infos[0]

	fnMag := info.ForceOnB[2]
	// Combined dynamic friction of two identical surfaces is the surface
	// coefficient itself.
	wantFt := 0.5 * fnMag
	if math.Abs(-info.ForceOnB[0]-wantFt) > 1e-9 {
		t.Errorf("tangential force = %g, want %g opposing +x slip", info.ForceOnB[0], -wantFt)
	}
	if math.Abs(info.SlipSpeed-1) > 1e-12 {
		t.Errorf("slip speed = %g, want 1", info.SlipSpeed)
	}
}

func TestAddPointContactForcesTorque(t *testing.T) {
	calc, pc, vc, pair := ballOnGround(t, 0.49, spatial.Velocity{Trans: spatial.V3(1, 0, 0)})
	infos, err := calc.CalcPointPairInfos(pc, vc, []geometry.PointPair{pair})
	if err != nil {
		t.Fatal(err)
	}

	forces := make([]spatial.Force, calc.Tree.NumBodies())
	calc.AddPointContactForces(infos, pc, forces)

	// The world is never loaded.
	if forces[tree.WorldBodyIndex] != (spatial.Force{}) {
		t.Errorf("world accumulated force %+v", forces[tree.WorldBodyIndex])
	}

	ball := tree.BodyIndex(1)
	got := forces[ball]
	if got.Trans != infos[0].ForceOnB {
		t.Errorf("translational force %v, want %v", got.Trans, infos[0].ForceOnB)
	}
	// Friction -x at a point below the origin torques the sphere about +y.
	if got.Rot[1] <= 0 {
		t.Errorf("expected positive y torque from friction below the center, got %v", got.Rot)
	}
}

func TestHydroelasticRestingForce(t *testing.T) {
	calc, pc, vc, _ := ballOnGround(t, 0.49, spatial.Velocity{})

	surf := geometry.ContactSurface{
		IDM:          1, // sphere
		IDN:          0, // ground
		Centroid:     spatial.V3(0, 0, 0),
		Nhat:         spatial.V3(0, 0, 1), // from N (ground) into M (sphere)
		Area:         0.01,
		MeanPressure: 500,
	}

	forces := make([]spatial.Force, calc.Tree.NumBodies())
	infos, err := calc.CalcHydroelasticForces(pc, vc, []geometry.ContactSurface{surf},
		QuadratureIntegrator{StictionTolerance: DefaultStictionTolerance}, forces)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected one surface, got %d", len(infos))
	}

	// Resultant p̄·A along the normal, pushing the sphere up.
	wantFn := 500 * 0.01
	if math.Abs(infos[0].ForceOnMAtCentroid.Trans[2]-wantFn) > 1e-12 {
		t.Errorf("resultant = %v, want %g along +z", infos[0].ForceOnMAtCentroid.Trans, wantFn)
	}

	ball := tree.BodyIndex(1)
	if math.Abs(forces[ball].Trans[2]-wantFn) > 1e-12 {
		t.Errorf("sphere force = %v, want %g along +z", forces[ball].Trans, wantFn)
	}
	if forces[tree.WorldBodyIndex] != (spatial.Force{}) {
		t.Errorf("world accumulated force %+v", forces[tree.WorldBodyIndex])
	}
}

func TestHydroelasticSlidingOpposesMotion(t *testing.T) {
	slide := spatial.Velocity{Trans: spatial.V3(1, 0, 0)}
	calc, pc, vc, _ := ballOnGround(t, 0.49, slide)

	surf := geometry.ContactSurface{
		IDM:          1,
		IDN:          0,
		Centroid:     spatial.V3(0, 0, 0),
		Nhat:         spatial.V3(0, 0, 1),
		Area:         0.01,
		MeanPressure: 500,
	}
	forces := make([]spatial.Force, calc.Tree.NumBodies())
	infos, err := calc.CalcHydroelasticForces(pc, vc, []geometry.ContactSurface{surf},
		QuadratureIntegrator{StictionTolerance: DefaultStictionTolerance}, forces)
	if err != nil {
		t.Fatal(err)
	}
	if fx := infos[0].ForceOnMAtCentroid.Trans[0]; fx >= 0 {
		t.Errorf("friction must oppose the sphere's +x slide, got fx = %g", fx)
	}
}

func TestHydroelasticDissipationWeightedByStiffness(t *testing.T) {
	tr := tree.New()
	ball, err := tr.AddBody("ball", tree.DefaultModelInstance, tree.SolidSphere(1, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Finalize(); err != nil {
		t.Fatal(err)
	}

	friction := geometry.CoulombFriction{Static: 1.0, Dynamic: 0.5}
	groundProps := geometry.DefaultProximityProperties(friction)
	groundProps.PointStiffness = 3000
	groundProps.HcDissipation = 0.1
	sphereProps := geometry.DefaultProximityProperties(friction)
	sphereProps.PointStiffness = 1000
	sphereProps.HcDissipation = 0.3

	reg := geometry.NewRegistry()
	if _, err := reg.Register(tree.WorldBodyIndex, "ground", geometry.HalfSpace{},
		spatial.IdentityPose(), geometry.RoleCollision, groundProps); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Register(ball, "ball_collision", geometry.Sphere{Radius: 0.5},
		spatial.IdentityPose(), geometry.RoleCollision, sphereProps); err != nil {
		t.Fatal(err)
	}

	pc := &tree.PositionKinematics{XWB: make([]spatial.Pose, tr.NumBodies())}
	pc.XWB[tree.WorldBodyIndex] = spatial.IdentityPose()
	pc.XWB[ball] = spatial.Pose{R: spatial.Identity3(), P: spatial.V3(0, 0, 0.49)}
	vc := &tree.VelocityKinematics{VWB: make([]spatial.Velocity, tr.NumBodies())}
	// Approaching at 1 m/s: fn = p̄·A·(1 + d·vn) isolates d.
	vc.VWB[ball] = spatial.Velocity{Trans: spatial.V3(0, 0, -1)}

	calc := &Calculator{
		Tree:     tr,
		Reg:      reg,
		Stribeck: NewStribeckModel(DefaultStictionTolerance),
		Defaults: PointContactParams{GeometryStiffness: 2000, Dissipation: 0.1},
	}

	surf := geometry.ContactSurface{
		IDM:          1, // sphere
		IDN:          0, // ground
		Centroid:     spatial.V3(0, 0, 0),
		Nhat:         spatial.V3(0, 0, 1),
		Area:         0.01,
		MeanPressure: 500,
	}
	forces := make([]spatial.Force, tr.NumBodies())
	infos, err := calc.CalcHydroelasticForces(pc, vc, []geometry.ContactSurface{surf},
		QuadratureIntegrator{StictionTolerance: DefaultStictionTolerance}, forces)
	if err != nil {
		t.Fatal(err)
	}

	// Same stiffness-share weighting as the point path: the stiffer ground
	// pushes the combination toward the sphere's coefficient.
	// d = (kN·dM + kM·dN)/(kM+kN) = (3000·0.3 + 1000·0.1)/4000 = 0.25.
	wantFn := 500 * 0.01 * (1 + 0.25)
	if got := infos[0].ForceOnMAtCentroid.Trans[2]; math.Abs(got-wantFn) > 1e-12 {
		t.Errorf("resultant = %g, want %g with weighted dissipation", got, wantFn)
	}
}
