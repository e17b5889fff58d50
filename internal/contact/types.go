package contact

import (
	"github.com/san-kum/mbplant/internal/geometry"
	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

// PointPairContactInfo describes one resolved point contact: the force on
// body B applied at the contact point C, expressed in the world frame,
// together with the kinematic quantities the force was computed from.
type PointPairContactInfo struct {
	BodyA, BodyB tree.BodyIndex
	// ForceOnB is f_Bc_W, the force on body B at C; body A receives the
	// opposite force.
	ForceOnB spatial.Vec3
	// Point is the contact point C (midpoint of the witness points).
	Point spatial.Vec3
	// SeparationSpeed is positive when the bodies approach.
	SeparationSpeed float64
	// SlipSpeed is the tangential speed magnitude.
	SlipSpeed float64
	Pair      geometry.PointPair
}

// HydroelasticContactInfo summarizes one traction-field integration over a
// contact surface.
type HydroelasticContactInfo struct {
	BodyM, BodyN tree.BodyIndex
	Surface      geometry.ContactSurface
	// ForceOnMAtCentroid is the resultant spatial force on the body owning
	// geometry M, applied at the surface centroid, expressed in world.
	ForceOnMAtCentroid spatial.Force
}

// Results aggregates one evaluation's contact output. Rebuilt on every
// cache recomputation; owned by the evaluation, never retained across
// steps.
type Results struct {
	PointPairs   []PointPairContactInfo
	Hydroelastic []HydroelasticContactInfo
}

func (r *Results) Clear() {
	r.PointPairs = r.PointPairs[:0]
	r.Hydroelastic = r.Hydroelastic[:0]
}

func (r *Results) NumPointPairContacts() int    { return len(r.PointPairs) }
func (r *Results) NumHydroelasticContacts() int { return len(r.Hydroelastic) }
