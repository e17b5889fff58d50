package tree

import (
	"github.com/san-kum/mbplant/internal/spatial"
)

// PositionKinematics holds the world pose of every body, indexed by
// BodyIndex. Rebuilt whenever the configuration changes.
type PositionKinematics struct {
	XWB []spatial.Pose
}

// VelocityKinematics holds the spatial velocity of every body measured at
// the body origin and expressed in the world frame.
type VelocityKinematics struct {
	VWB []spatial.Velocity
}

// jointTransform returns the pose of the child frame in the joint's parent
// frame for the joint's position block q.
func (j *Joint) jointTransform(q []float64) spatial.Pose {
	switch k := j.Kind.(type) {
	case RevoluteKind:
		return spatial.Pose{R: spatial.AxisAngle(k.Axis.Normalized(), q[0])}
	case PrismaticKind:
		return spatial.Pose{R: spatial.Identity3(), P: k.Axis.Normalized().Scale(q[0])}
	case WeldKind:
		return spatial.IdentityPose()
	case FloatingKind:
		quat := spatial.Quat{W: q[0], X: q[1], Y: q[2], Z: q[3]}.Normalized()
		return spatial.Pose{R: quat.RotationMatrix(), P: spatial.V3(q[4], q[5], q[6])}
	}
	return spatial.IdentityPose()
}

// CalcPositionKinematics computes every body pose for the configuration q.
func (t *Tree) CalcPositionKinematics(q []float64) *PositionKinematics {
	pc := &PositionKinematics{XWB: make([]spatial.Pose, t.NumBodies())}
	pc.XWB[WorldBodyIndex] = spatial.IdentityPose()
	for _, ji := range t.order {
		j := &t.joints[ji]
		qj := q[j.positionStart : j.positionStart+j.NumPositions()]
		xpc := j.XPJ.Mul(j.jointTransform(qj))
		pc.XWB[j.Child] = pc.XWB[j.Parent].Mul(xpc)
	}
	return pc
}

// CalcVelocityKinematics computes every body spatial velocity for the
// state (q, v); pc must be the position kinematics of q.
func (t *Tree) CalcVelocityKinematics(pc *PositionKinematics, v []float64) *VelocityKinematics {
	vc := &VelocityKinematics{VWB: make([]spatial.Velocity, t.NumBodies())}
	for _, ji := range t.order {
		j := &t.joints[ji]
		vj := v[j.velocityStart : j.velocityStart+j.NumVelocities()]
		parent := vc.VWB[j.Parent]
		offset := pc.XWB[j.Child].P.Sub(pc.XWB[j.Parent].P)
		across := parent.Shift(offset)

		switch k := j.Kind.(type) {
		case RevoluteKind:
			axisW := pc.XWB[j.Parent].R.Mul(j.XPJ.R).MulVec(k.Axis.Normalized())
			vc.VWB[j.Child] = across.Add(spatial.Velocity{Rot: axisW.Scale(vj[0])})
		case PrismaticKind:
			axisW := pc.XWB[j.Parent].R.Mul(j.XPJ.R).MulVec(k.Axis.Normalized())
			vc.VWB[j.Child] = across.Add(spatial.Velocity{Trans: axisW.Scale(vj[0])})
		case WeldKind:
			vc.VWB[j.Child] = across
		case FloatingKind:
			// Free motion relative to the world, expressed in world.
			vc.VWB[j.Child] = spatial.Velocity{
				Rot:   spatial.V3(vj[0], vj[1], vj[2]),
				Trans: spatial.V3(vj[3], vj[4], vj[5]),
			}
		}
	}
	return vc
}

// MapVelocityToQDot maps generalized velocities to position-coordinate time
// derivatives. Single-DOF joints are the identity map; floating joints use
// the quaternion kinematic map.
func (t *Tree) MapVelocityToQDot(q, v []float64) []float64 {
	qdot := make([]float64, t.nq)
	for i := range t.joints {
		j := &t.joints[i]
		switch j.Kind.(type) {
		case RevoluteKind, PrismaticKind:
			qdot[j.positionStart] = v[j.velocityStart]
		case FloatingKind:
			quat := spatial.Quat{
				W: q[j.positionStart],
				X: q[j.positionStart+1],
				Y: q[j.positionStart+2],
				Z: q[j.positionStart+3],
			}
			w := spatial.V3(v[j.velocityStart], v[j.velocityStart+1], v[j.velocityStart+2])
			qd := quat.Derivative(w)
			qdot[j.positionStart] = qd.W
			qdot[j.positionStart+1] = qd.X
			qdot[j.positionStart+2] = qd.Y
			qdot[j.positionStart+3] = qd.Z
			qdot[j.positionStart+4] = v[j.velocityStart+3]
			qdot[j.positionStart+5] = v[j.velocityStart+4]
			qdot[j.positionStart+6] = v[j.velocityStart+5]
		}
	}
	return qdot
}

// ProjectPositions renormalizes floating-joint quaternion blocks in place.
// Explicit integration drifts quaternions off the unit sphere; projecting
// after each step keeps the configuration valid.
func (t *Tree) ProjectPositions(q []float64) {
	for i := range t.joints {
		j := &t.joints[i]
		if _, ok := j.Kind.(FloatingKind); !ok {
			continue
		}
		s := j.positionStart
		quat := spatial.Quat{W: q[s], X: q[s+1], Y: q[s+2], Z: q[s+3]}.Normalized()
		q[s], q[s+1], q[s+2], q[s+3] = quat.W, quat.X, quat.Y, quat.Z
	}
}
