package tree

import (
	"math"

	"github.com/san-kum/mbplant/internal/spatial"
)

// JointKind is the tagged variant over the supported joint types. Each
// variant reports its DOF counts and, where meaningful, the scalar inertia a
// connected body opposes motion along the joint's axis with. That last
// operation is what the joint-limit penalty estimation needs, so it lives on
// the variant instead of behind runtime type inspection.
type JointKind interface {
	Name() string
	NumPositions() int
	NumVelocities() int

	// CharacteristicInertia returns the scalar inertia of the given body
	// about this joint's motion axis, treating the other body as fixed.
	// ok is false for joint kinds with no single motion axis (weld,
	// floating), for which limit penalties do not apply.
	CharacteristicInertia(b *Body) (inertia float64, ok bool)
}

// RevoluteKind rotates about a unit axis expressed in the joint frame.
type RevoluteKind struct {
	Axis spatial.Vec3
}

func (RevoluteKind) Name() string       { return "revolute" }
func (RevoluteKind) NumPositions() int  { return 1 }
func (RevoluteKind) NumVelocities() int { return 1 }

// CharacteristicInertia is the rotational inertia of the body about the
// joint axis, Ia = âᵀ·I·â, with I taken about the body origin. Unspecified
// mass means the body only participates kinematically; report an infinite
// inertia so the harmonic-oscillator estimate keeps the other body's pair.
func (k RevoluteKind) CharacteristicInertia(b *Body) (float64, bool) {
	if b.IsWorld() || math.IsNaN(b.Inertia.Mass) {
		return math.Inf(1), true
	}
	return b.Inertia.AboutOrigin().QuadraticForm(k.Axis.Normalized()), true
}

// PrismaticKind translates along a unit axis expressed in the joint frame.
type PrismaticKind struct {
	Axis spatial.Vec3
}

func (PrismaticKind) Name() string       { return "prismatic" }
func (PrismaticKind) NumPositions() int  { return 1 }
func (PrismaticKind) NumVelocities() int { return 1 }

func (PrismaticKind) CharacteristicInertia(b *Body) (float64, bool) {
	if b.IsWorld() || math.IsNaN(b.Inertia.Mass) {
		return math.Inf(1), true
	}
	return b.Inertia.Mass, true
}

// WeldKind rigidly attaches the child to the parent.
type WeldKind struct{}

func (WeldKind) Name() string       { return "weld" }
func (WeldKind) NumPositions() int  { return 0 }
func (WeldKind) NumVelocities() int { return 0 }

func (WeldKind) CharacteristicInertia(*Body) (float64, bool) { return 0, false }

// FloatingKind gives the child six DOFs relative to the world, with a
// quaternion-first position block: [qw qx qy qz x y z] and velocities
// [wx wy wz vx vy vz], both expressed in the world frame.
type FloatingKind struct{}

func (FloatingKind) Name() string       { return "floating" }
func (FloatingKind) NumPositions() int  { return 7 }
func (FloatingKind) NumVelocities() int { return 6 }

func (FloatingKind) CharacteristicInertia(*Body) (float64, bool) { return 0, false }
