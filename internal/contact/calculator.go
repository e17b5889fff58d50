package contact

import (
	"fmt"
	"math"

	"github.com/san-kum/mbplant/internal/geometry"
	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

// slipSpeedFloorSquared: tangential speeds below 1e-14 are numerically
// zero; compared squared to avoid the sqrt on the no-slip path.
const slipSpeedFloorSquared = 1e-14 * 1e-14

// Calculator turns detected contacts into forces. Defaults supply the
// stiffness/dissipation for geometries that do not declare their own.
type Calculator struct {
	Tree     *tree.Tree
	Reg      *geometry.Registry
	Stribeck StribeckModel
	Defaults PointContactParams
}

// CalcPointPairInfos computes the penalty-method contact force for every
// detected point pair. Pairs whose normal force would pull (fn <= 0) are
// dropped; the penalty spring only pushes.
func (c *Calculator) CalcPointPairInfos(pc *tree.PositionKinematics, vc *tree.VelocityKinematics,
	pairs []geometry.PointPair) ([]PointPairContactInfo, error) {

	infos := make([]PointPairContactInfo, 0, len(pairs))
	for _, pair := range pairs {
		geomA, err := c.Reg.Geometry(pair.IDA)
		if err != nil {
			return nil, err
		}
		geomB, err := c.Reg.Geometry(pair.IDB)
		if err != nil {
			return nil, err
		}
		bodyA, bodyB := geomA.Body, geomB.Body

		if pair.Depth < 0 {
			return nil, fmt.Errorf("contact: negative penetration depth %g between %q and %q",
				pair.Depth, geomA.Name, geomB.Name)
		}

		// Contact point C: midpoint of the witness points.
		pWC := pair.PWCa.Add(pair.PWCb).Scale(0.5)

		// Velocity of the material points coincident with C.
		vAc := vc.VWB[bodyA].Shift(pWC.Sub(pc.XWB[bodyA].P)).Trans
		vBc := vc.VWB[bodyB].Shift(pWC.Sub(pc.XWB[bodyB].P)).Trans
		vAcBc := vBc.Sub(vAc)

		// vn > 0 means the bodies approach.
		vn := vAcBc.Dot(pair.Nhat)

		kA := geomA.Proximity.StiffnessOr(c.Defaults.GeometryStiffness)
		kB := geomB.Proximity.StiffnessOr(c.Defaults.GeometryStiffness)
		dA := geomA.Proximity.DissipationOr(c.Defaults.Dissipation)
		dB := geomB.Proximity.DissipationOr(c.Defaults.Dissipation)
		k, d := CombinePointParams(kA, dA, kB, dB)

		fn := k * pair.Depth * (1 + d*vn)
		if fn <= 0 {
			continue
		}

		combined := CombineFriction(geomA.Proximity.Friction, geomB.Proximity.Friction)

		// Force on A at C: normal plus regularized friction.
		fOnA := pair.Nhat.Scale(fn)
		slip := 0.0
		vt := vAcBc.Sub(pair.Nhat.Scale(vn))
		if vt2 := vt.SquaredNorm(); vt2 > slipSpeedFloorSquared {
			slip = math.Sqrt(vt2)
			mu := c.Stribeck.ComputeFrictionCoefficient(slip, combined)
			that := vt.Scale(1 / slip)
			fOnA = fOnA.Add(that.Scale(mu * fn))
		}

		infos = append(infos, PointPairContactInfo{
			BodyA:           bodyA,
			BodyB:           bodyB,
			ForceOnB:        fOnA.Neg(),
			Point:           pWC,
			SeparationSpeed: vn,
			SlipSpeed:       slip,
			Pair:            pair,
		})
	}
	return infos, nil
}

// AddPointContactForces distributes each contact's equal-and-opposite force
// to both bodies, shifted from the contact point to the body origins.
// forces is indexed by body and accumulated into.
func (c *Calculator) AddPointContactForces(infos []PointPairContactInfo,
	pc *tree.PositionKinematics, forces []spatial.Force) {

	for i := range infos {
		info := &infos[i]
		fAC := spatial.Force{Trans: info.ForceOnB.Neg()} // force on A at C

		if info.BodyA != tree.WorldBodyIndex {
			offset := pc.XWB[info.BodyA].P.Sub(info.Point)
			forces[info.BodyA] = forces[info.BodyA].Add(fAC.Shift(offset))
		}
		if info.BodyB != tree.WorldBodyIndex {
			offset := pc.XWB[info.BodyB].P.Sub(info.Point)
			forces[info.BodyB] = forces[info.BodyB].Add(fAC.Neg().Shift(offset))
		}
	}
}

// TractionData packs what the external traction integrator needs: poses and
// velocities of the two bodies plus the combined material parameters.
type TractionData struct {
	Surface         geometry.ContactSurface
	XWM, XWN        spatial.Pose
	VWM, VWN        spatial.Velocity
	Dissipation     float64
	DynamicFriction float64
}

// TractionIntegrator integrates the traction field over a contact surface,
// returning the resultant spatial force on the body owning geometry M,
// applied at the surface centroid, expressed in world.
type TractionIntegrator interface {
	Integrate(data TractionData) spatial.Force
}

// QuadratureIntegrator is the built-in traction integrator: resultant
// pressure force with Hunt & Crossley velocity damping and regularized
// sliding friction at the centroid.
type QuadratureIntegrator struct {
	StictionTolerance float64
}

func (qi QuadratureIntegrator) Integrate(d TractionData) spatial.Force {
	s := d.Surface
	fn0 := s.MeanPressure * s.Area
	if fn0 <= 0 {
		return spatial.ZeroForce()
	}

	// Relative velocity of M with respect to N at the centroid.
	vM := d.VWM.Shift(s.Centroid.Sub(d.XWM.P)).Trans
	vN := d.VWN.Shift(s.Centroid.Sub(d.XWN.P)).Trans
	vMN := vM.Sub(vN)

	// Approach speed along the surface normal (N into M).
	vn := -vMN.Dot(s.Nhat)
	fn := fn0 * (1 + d.Dissipation*vn)
	if fn <= 0 {
		return spatial.ZeroForce()
	}

	f := s.Nhat.Scale(fn)
	vt := vMN.Add(s.Nhat.Scale(vMN.Dot(s.Nhat)).Neg())
	if slip := vt.Norm(); slip*slip > slipSpeedFloorSquared {
		// Regularized Coulomb sliding opposing M's motion.
		scale := slip / (slip + qi.StictionTolerance)
		f = f.Add(vt.Scale(-d.DynamicFriction * fn * scale / slip))
	}
	return spatial.Force{Trans: f}
}

// CalcHydroelasticForces integrates every contact surface and accumulates
// the resultants on both bodies, shifted from the surface centroid to the
// body origins. forces is indexed by body.
func (c *Calculator) CalcHydroelasticForces(pc *tree.PositionKinematics, vc *tree.VelocityKinematics,
	surfaces []geometry.ContactSurface, integrator TractionIntegrator,
	forces []spatial.Force) ([]HydroelasticContactInfo, error) {

	infos := make([]HydroelasticContactInfo, 0, len(surfaces))
	for _, surf := range surfaces {
		geomM, err := c.Reg.Geometry(surf.IDM)
		if err != nil {
			return nil, err
		}
		geomN, err := c.Reg.Geometry(surf.IDN)
		if err != nil {
			return nil, err
		}
		bodyM, bodyN := geomM.Body, geomN.Body

		combined := CombineFriction(geomM.Proximity.Friction, geomN.Proximity.Friction)
		_, dissipation := CombinePointParams(
			geomM.Proximity.StiffnessOr(c.Defaults.GeometryStiffness),
			geomM.Proximity.DissipationOr(c.Defaults.Dissipation),
			geomN.Proximity.StiffnessOr(c.Defaults.GeometryStiffness),
			geomN.Proximity.DissipationOr(c.Defaults.Dissipation))

		fM := integrator.Integrate(TractionData{
			Surface:         surf,
			XWM:             pc.XWB[bodyM],
			XWN:             pc.XWB[bodyN],
			VWM:             vc.VWB[bodyM],
			VWN:             vc.VWB[bodyN],
			Dissipation:     dissipation,
			DynamicFriction: combined.Dynamic,
		})

		if bodyM != tree.WorldBodyIndex {
			offset := pc.XWB[bodyM].P.Sub(surf.Centroid)
			forces[bodyM] = forces[bodyM].Add(fM.Shift(offset))
		}
		if bodyN != tree.WorldBodyIndex {
			offset := pc.XWB[bodyN].P.Sub(surf.Centroid)
			forces[bodyN] = forces[bodyN].Add(fM.Neg().Shift(offset))
		}

		infos = append(infos, HydroelasticContactInfo{
			BodyM:              bodyM,
			BodyN:              bodyN,
			Surface:            surf,
			ForceOnMAtCentroid: fM,
		})
	}
	return infos, nil
}
