// Package spatial provides the small fixed-size linear algebra used by the
// multibody plant: 3-vectors, rotations, rigid poses, unit quaternions and
// 6-component spatial (rotational + translational) quantities.
package spatial

import "math"

type Vec3 [3]float64

func V3(x, y, z float64) Vec3 { return Vec3{x, y, z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }
func (v Vec3) Neg() Vec3       { return Vec3{-v[0], -v[1], -v[2]} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{s * v[0], s * v[1], s * v[2]} }

func (v Vec3) Dot(o Vec3) float64 { return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

func (v Vec3) Norm() float64        { return math.Sqrt(v.Dot(v)) }
func (v Vec3) SquaredNorm() float64 { return v.Dot(v) }

// Normalized returns v/|v|. The zero vector is returned unchanged.
func (v Vec3) Normalized() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

func (v Vec3) IsFinite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3]Vec3

func Identity3() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{m[0].Dot(v), m[1].Dot(v), m[2].Dot(v)}
}

func (m Mat3) Mul(o Mat3) Mat3 {
	ot := o.Transpose()
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i].Dot(ot[j])
		}
	}
	return r
}

func (m Mat3) Transpose() Mat3 {
	return Mat3{
		{m[0][0], m[1][0], m[2][0]},
		{m[0][1], m[1][1], m[2][1]},
		{m[0][2], m[1][2], m[2][2]},
	}
}

// QuadraticForm computes aᵀ·M·a, e.g. the scalar inertia of a rotational
// inertia tensor about the unit axis a.
func (m Mat3) QuadraticForm(a Vec3) float64 {
	return a.Dot(m.MulVec(a))
}

// AxisAngle builds the rotation of angle radians about the unit axis.
func AxisAngle(axis Vec3, angle float64) Mat3 {
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	x, y, z := axis[0], axis[1], axis[2]
	return Mat3{
		{t*x*x + c, t*x*y - s*z, t*x*z + s*y},
		{t*x*y + s*z, t*y*y + c, t*y*z - s*x},
		{t*x*z - s*y, t*y*z + s*x, t*z*z + c},
	}
}

// Quat is a unit quaternion (w, x, y, z) representing an orientation.
type Quat struct {
	W, X, Y, Z float64
}

func IdentityQuat() Quat { return Quat{W: 1} }

func (q Quat) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

func (q Quat) Normalized() Quat {
	n := q.Norm()
	if n == 0 {
		return IdentityQuat()
	}
	return Quat{q.W / n, q.X / n, q.Y / n, q.Z / n}
}

func (q Quat) RotationMatrix() Mat3 {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	return Mat3{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// Derivative returns q̇ for a body with angular velocity w expressed in the
// world frame: q̇ = 1/2 * ω ⊗ q.
func (q Quat) Derivative(w Vec3) Quat {
	return Quat{
		W: 0.5 * (-w[0]*q.X - w[1]*q.Y - w[2]*q.Z),
		X: 0.5 * (w[0]*q.W + w[2]*q.Y - w[1]*q.Z),
		Y: 0.5 * (w[1]*q.W - w[2]*q.X + w[0]*q.Z),
		Z: 0.5 * (w[2]*q.W + w[1]*q.X - w[0]*q.Y),
	}
}

// Pose is a rigid transform: rotation R and translation P.
type Pose struct {
	R Mat3
	P Vec3
}

func IdentityPose() Pose { return Pose{R: Identity3()} }

// Mul composes two poses: X_AC = X_AB.Mul(X_BC).
func (x Pose) Mul(o Pose) Pose {
	return Pose{R: x.R.Mul(o.R), P: x.P.Add(x.R.MulVec(o.P))}
}

// Apply transforms a point from the pose's frame to the parent frame.
func (x Pose) Apply(p Vec3) Vec3 { return x.P.Add(x.R.MulVec(p)) }

// Inverse returns the inverse transform.
func (x Pose) Inverse() Pose {
	rt := x.R.Transpose()
	return Pose{R: rt, P: rt.MulVec(x.P).Neg()}
}

// Force is a spatial force (torque about a point plus a linear force),
// expressed in some frame about some point.
type Force struct {
	Rot   Vec3 // torque
	Trans Vec3 // force
}

func ZeroForce() Force { return Force{} }

func (f Force) Add(o Force) Force {
	return Force{Rot: f.Rot.Add(o.Rot), Trans: f.Trans.Add(o.Trans)}
}

func (f Force) Neg() Force { return Force{Rot: f.Rot.Neg(), Trans: f.Trans.Neg()} }

// Shift moves the application point of the force by the offset p (from the
// current point to the new point, expressed in the same frame). The torque
// picks up the moment of the linear force: τ_new = τ − p × f.
func (f Force) Shift(p Vec3) Force {
	return Force{Rot: f.Rot.Sub(p.Cross(f.Trans)), Trans: f.Trans}
}

func (f Force) IsFinite() bool { return f.Rot.IsFinite() && f.Trans.IsFinite() }

// Velocity is a spatial velocity (angular + translational).
type Velocity struct {
	Rot   Vec3 // angular velocity
	Trans Vec3 // translational velocity
}

func (v Velocity) Add(o Velocity) Velocity {
	return Velocity{Rot: v.Rot.Add(o.Rot), Trans: v.Trans.Add(o.Trans)}
}

// Shift computes the velocity of a point offset by p from the measured
// point: v_new = v + ω × p. The angular component is unchanged.
func (v Velocity) Shift(p Vec3) Velocity {
	return Velocity{Rot: v.Rot, Trans: v.Trans.Add(v.Rot.Cross(p))}
}

// Acceleration is a spatial acceleration (angular + translational).
type Acceleration struct {
	Rot   Vec3
	Trans Vec3
}

func (a Acceleration) Add(o Acceleration) Acceleration {
	return Acceleration{Rot: a.Rot.Add(o.Rot), Trans: a.Trans.Add(o.Trans)}
}
