package geometry

import (
	"math"

	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

// PointPair is a point-contact penetration between two geometries. The
// normal points from B into A; depth is non-negative while in contact.
// Transient: recomputed every evaluation, never persisted.
type PointPair struct {
	IDA, IDB GeometryID
	Depth    float64
	Nhat     spatial.Vec3 // from B to A, unit length
	PWCa     spatial.Vec3 // witness point on A, world frame
	PWCb     spatial.Vec3 // witness point on B, world frame
}

// SurfaceRepresentation hints how contact surfaces are discretized.
type SurfaceRepresentation int

const (
	SurfaceTriangle SurfaceRepresentation = iota
	SurfacePolygon
)

// ContactSurface is the hydroelastic contact patch between geometries M and
// N, reduced to the quadrature summary the traction integrator consumes.
type ContactSurface struct {
	IDM, IDN GeometryID
	Centroid spatial.Vec3
	Nhat     spatial.Vec3 // from N into M, unit length
	Area     float64
	// MeanPressure is the area-averaged hydroelastic pressure over the patch.
	MeanPressure float64
}

// QueryObject is the external geometry query service: narrow-phase results
// for one fixed configuration. Implementations must be cheap to call
// repeatedly; the plant caches results per configuration.
type QueryObject interface {
	ComputePointPairPenetrations() []PointPair
	ComputeContactSurfaces(rep SurfaceRepresentation) []ContactSurface
	// ComputeContactSurfacesWithFallback returns hydroelastic surfaces for
	// pairs that support them and point pairs for the rest.
	ComputeContactSurfacesWithFallback(rep SurfaceRepresentation) ([]ContactSurface, []PointPair)
}

// Engine is the built-in narrow phase over the registry's collision
// geometries at a snapshot of body poses. It understands sphere-sphere,
// sphere-half-space and box-half-space; hydroelastic surfaces are produced
// for sphere-half-space pairs.
type Engine struct {
	reg   *Registry
	poses []spatial.Pose // world pose per body, indexed by tree.BodyIndex

	// HydroelasticModulus converts penetration depth to pressure for the
	// built-in surface computation.
	HydroelasticModulus float64
}

var _ QueryObject = (*Engine)(nil)

func NewEngine(reg *Registry, poses []spatial.Pose) *Engine {
	return &Engine{reg: reg, poses: poses, HydroelasticModulus: 1e7}
}

func (e *Engine) worldPose(g *Geometry) spatial.Pose {
	return e.poses[g.Body].Mul(g.XBG)
}

func (e *Engine) ComputePointPairPenetrations() []PointPair {
	var out []PointPair
	e.forEachPair(func(a, b *Geometry) {
		if pp, ok := e.collide(a, b); ok {
			out = append(out, pp)
		}
	})
	return out
}

func (e *Engine) ComputeContactSurfaces(SurfaceRepresentation) []ContactSurface {
	var out []ContactSurface
	e.forEachPair(func(a, b *Geometry) {
		if s, ok := e.surface(a, b); ok {
			out = append(out, s)
		}
	})
	return out
}

func (e *Engine) ComputeContactSurfacesWithFallback(SurfaceRepresentation) ([]ContactSurface, []PointPair) {
	var surfaces []ContactSurface
	var pairs []PointPair
	e.forEachPair(func(a, b *Geometry) {
		if s, ok := e.surface(a, b); ok {
			surfaces = append(surfaces, s)
			return
		}
		if pp, ok := e.collide(a, b); ok {
			pairs = append(pairs, pp)
		}
	})
	return surfaces, pairs
}

func (e *Engine) forEachPair(visit func(a, b *Geometry)) {
	gs := e.reg.CollisionGeometries()
	for i := 0; i < len(gs); i++ {
		for j := i + 1; j < len(gs); j++ {
			if gs[i].Body == gs[j].Body {
				continue // no self-contact within one body
			}
			visit(gs[i], gs[j])
		}
	}
}

func (e *Engine) collide(a, b *Geometry) (PointPair, bool) {
	switch sa := a.Shape.(type) {
	case Sphere:
		switch sb := b.Shape.(type) {
		case Sphere:
			return e.sphereSphere(a, sa, b, sb)
		case HalfSpace:
			return e.sphereHalfSpace(a, sa, b)
		}
	case HalfSpace:
		switch sb := b.Shape.(type) {
		case Sphere:
			pp, ok := e.sphereHalfSpace(b, sb, a)
			return pp.swapped(), ok
		case Box:
			pp, ok := e.boxHalfSpace(b, sb, a)
			return pp.swapped(), ok
		}
	case Box:
		if _, ok := b.Shape.(HalfSpace); ok {
			return e.boxHalfSpace(a, sa, b)
		}
	}
	return PointPair{}, false
}

func (p PointPair) swapped() PointPair {
	return PointPair{
		IDA: p.IDB, IDB: p.IDA,
		Depth: p.Depth,
		Nhat:  p.Nhat.Neg(),
		PWCa:  p.PWCb, PWCb: p.PWCa,
	}
}

func (e *Engine) sphereSphere(a *Geometry, sa Sphere, b *Geometry, sb Sphere) (PointPair, bool) {
	ca := e.worldPose(a).P
	cb := e.worldPose(b).P
	d := ca.Sub(cb)
	dist := d.Norm()
	depth := sa.Radius + sb.Radius - dist
	if depth <= 0 || dist == 0 {
		return PointPair{}, false
	}
	nhat := d.Scale(1 / dist) // from B to A
	return PointPair{
		IDA: a.ID, IDB: b.ID,
		Depth: depth,
		Nhat:  nhat,
		PWCa:  ca.Sub(nhat.Scale(sa.Radius)),
		PWCb:  cb.Add(nhat.Scale(sb.Radius)),
	}, true
}

// sphereHalfSpace treats the half-space geometry frame's z <= 0 region as
// solid; hs is the half-space geometry.
func (e *Engine) sphereHalfSpace(sph *Geometry, s Sphere, hs *Geometry) (PointPair, bool) {
	xwh := e.worldPose(hs)
	nhat := xwh.R.MulVec(spatial.V3(0, 0, 1)) // outward half-space normal
	c := e.worldPose(sph).P
	height := c.Sub(xwh.P).Dot(nhat)
	depth := s.Radius - height
	if depth <= 0 {
		return PointPair{}, false
	}
	return PointPair{
		IDA: sph.ID, IDB: hs.ID,
		Depth: depth,
		Nhat:  nhat,
		PWCa:  c.Sub(nhat.Scale(s.Radius)),
		PWCb:  c.Sub(nhat.Scale(height)),
	}, true
}

// boxHalfSpace reports a single pair at the centroid of the penetrating
// corners with their mean depth. A flat-resting box then contacts at its
// face center, so the compliant point force carries no spurious torque.
func (e *Engine) boxHalfSpace(box *Geometry, b Box, hs *Geometry) (PointPair, bool) {
	xwh := e.worldPose(hs)
	nhat := xwh.R.MulVec(spatial.V3(0, 0, 1))
	xwb := e.worldPose(box)

	var centroid spatial.Vec3
	var depth float64
	n := 0
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				corner := xwb.Apply(spatial.V3(sx*b.Lx/2, sy*b.Ly/2, sz*b.Lz/2))
				d := -corner.Sub(xwh.P).Dot(nhat)
				if d > 0 {
					centroid = centroid.Add(corner)
					depth += d
					n++
				}
			}
		}
	}
	if n == 0 {
		return PointPair{}, false
	}
	centroid = centroid.Scale(1 / float64(n))
	depth /= float64(n)
	return PointPair{
		IDA: box.ID, IDB: hs.ID,
		Depth: depth,
		Nhat:  nhat,
		PWCa:  centroid,
		PWCb:  centroid.Add(nhat.Scale(depth)),
	}, true
}

func (e *Engine) surface(a, b *Geometry) (ContactSurface, bool) {
	// Hydroelastic surfaces only for sphere against half-space.
	var sph *Geometry
	var s Sphere
	var hs *Geometry
	swap := false
	switch sa := a.Shape.(type) {
	case Sphere:
		if _, ok := b.Shape.(HalfSpace); ok {
			sph, s, hs = a, sa, b
		}
	case HalfSpace:
		if sb, ok := b.Shape.(Sphere); ok {
			sph, s, hs = b, sb, a
			swap = true
		}
	}
	if sph == nil {
		return ContactSurface{}, false
	}
	pp, ok := e.sphereHalfSpace(sph, s, hs)
	if !ok {
		return ContactSurface{}, false
	}

	// Patch radius from the sphere-plane intersection circle.
	r2 := s.Radius*s.Radius - (s.Radius-pp.Depth)*(s.Radius-pp.Depth)
	if r2 < 0 {
		r2 = 0
	}
	surf := ContactSurface{
		IDM:          sph.ID,
		IDN:          hs.ID,
		Centroid:     pp.PWCb.Add(pp.PWCa).Scale(0.5),
		Nhat:         pp.Nhat,
		Area:         math.Pi * r2,
		MeanPressure: e.HydroelasticModulus * pp.Depth * 0.5,
	}
	if swap {
		surf.IDM, surf.IDN = hs.ID, sph.ID
		surf.Nhat = surf.Nhat.Neg()
	}
	return surf, true
}

// BodyPoses builds the pose snapshot an Engine needs from position
// kinematics.
func BodyPoses(t *tree.Tree, pc *tree.PositionKinematics) []spatial.Pose {
	out := make([]spatial.Pose, len(pc.XWB))
	copy(out, pc.XWB)
	return out
}
