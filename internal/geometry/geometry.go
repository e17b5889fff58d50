// Package geometry keeps the plant's geometry bookkeeping: the bijective
// body-to-frame registration maps, per-geometry material properties, and the
// query service interface the contact pipeline consumes. A small built-in
// narrow phase backs the CLI and the tests.
package geometry

import (
	"fmt"
	"math"

	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

type (
	GeometryID int
	FrameID    int
)

type Role int

const (
	RoleVisual Role = iota
	RoleCollision
)

// CoulombFriction holds static and dynamic friction coefficients. Static
// must not be smaller than dynamic.
type CoulombFriction struct {
	Static  float64
	Dynamic float64
}

func (f CoulombFriction) Validate() error {
	if f.Static < 0 || f.Dynamic < 0 {
		return fmt.Errorf("geometry: friction coefficients must be non-negative, got (%g, %g)",
			f.Static, f.Dynamic)
	}
	if f.Static < f.Dynamic {
		return fmt.Errorf("geometry: static friction %g is smaller than dynamic friction %g",
			f.Static, f.Dynamic)
	}
	return nil
}

// ProximityProperties carries contact material parameters. NaN marks a value
// the plant should replace with its estimated default.
type ProximityProperties struct {
	PointStiffness float64
	HcDissipation  float64
	Friction       CoulombFriction
}

func DefaultProximityProperties(friction CoulombFriction) ProximityProperties {
	return ProximityProperties{
		PointStiffness: math.NaN(),
		HcDissipation:  math.NaN(),
		Friction:       friction,
	}
}

// StiffnessOr returns the geometry stiffness, or def when unset.
func (p ProximityProperties) StiffnessOr(def float64) float64 {
	if math.IsNaN(p.PointStiffness) {
		return def
	}
	return p.PointStiffness
}

// DissipationOr returns the dissipation, or def when unset.
func (p ProximityProperties) DissipationOr(def float64) float64 {
	if math.IsNaN(p.HcDissipation) {
		return def
	}
	return p.HcDissipation
}

// Shape is the closed set of collision shapes the built-in narrow phase
// understands.
type Shape interface {
	shapeName() string
}

// Sphere of the given radius, centered on the geometry frame origin.
type Sphere struct {
	Radius float64
}

// HalfSpace fills z <= 0 of the geometry frame.
type HalfSpace struct{}

// Box with the given full dimensions, centered on the geometry frame origin.
type Box struct {
	Lx, Ly, Lz float64
}

func (Sphere) shapeName() string    { return "sphere" }
func (HalfSpace) shapeName() string { return "half_space" }
func (Box) shapeName() string      { return "box" }

type Geometry struct {
	ID        GeometryID
	Name      string
	Body      tree.BodyIndex
	Frame     FrameID
	Shape     Shape
	XBG       spatial.Pose // pose of the geometry in the body frame
	Role      Role
	Proximity ProximityProperties
}

// Registry is the registration bookkeeping: every body has at most one
// frame, every geometry belongs to exactly one body. Mutation is
// pre-finalize only; the plant freezes it.
type Registry struct {
	frameOf    map[tree.BodyIndex]FrameID
	bodyOf     map[FrameID]tree.BodyIndex
	geometries []Geometry

	numCollision int
	frozen       bool
}

func NewRegistry() *Registry {
	return &Registry{
		frameOf: make(map[tree.BodyIndex]FrameID),
		bodyOf:  make(map[FrameID]tree.BodyIndex),
	}
}

func (r *Registry) Freeze()         { r.frozen = true }
func (r *Registry) IsFrozen() bool  { return r.frozen }

func (r *Registry) NumGeometries() int          { return len(r.geometries) }
func (r *Registry) NumCollisionGeometries() int { return r.numCollision }

// RegisterFrame associates a frame id with the body, creating it on first
// use. The body-to-frame association is bijective.
func (r *Registry) RegisterFrame(body tree.BodyIndex) (FrameID, error) {
	if r.frozen {
		return 0, fmt.Errorf("geometry: RegisterFrame: registry is frozen post-finalize")
	}
	if f, ok := r.frameOf[body]; ok {
		return f, nil
	}
	f := FrameID(len(r.frameOf))
	r.frameOf[body] = f
	r.bodyOf[f] = body
	return f, nil
}

func (r *Registry) Register(body tree.BodyIndex, name string, shape Shape, xbg spatial.Pose, role Role, props ProximityProperties) (GeometryID, error) {
	if r.frozen {
		return 0, fmt.Errorf("geometry: Register %q: registry is frozen post-finalize", name)
	}
	if role == RoleCollision {
		if err := props.Friction.Validate(); err != nil {
			return 0, fmt.Errorf("geometry: Register %q: %w", name, err)
		}
	}
	frame, err := r.RegisterFrame(body)
	if err != nil {
		return 0, err
	}
	id := GeometryID(len(r.geometries))
	r.geometries = append(r.geometries, Geometry{
		ID:        id,
		Name:      name,
		Body:      body,
		Frame:     frame,
		Shape:     shape,
		XBG:       xbg,
		Role:      role,
		Proximity: props,
	})
	if role == RoleCollision {
		r.numCollision++
	}
	return id, nil
}

func (r *Registry) Geometry(id GeometryID) (*Geometry, error) {
	if int(id) >= len(r.geometries) || id < 0 {
		return nil, fmt.Errorf("geometry: unknown geometry id %d", id)
	}
	return &r.geometries[id], nil
}

// BodyOfGeometry maps a geometry id to its owning body.
func (r *Registry) BodyOfGeometry(id GeometryID) (tree.BodyIndex, error) {
	g, err := r.Geometry(id)
	if err != nil {
		return 0, err
	}
	return g.Body, nil
}

// FrameOfBody returns the frame registered for body, if any.
func (r *Registry) FrameOfBody(body tree.BodyIndex) (FrameID, bool) {
	f, ok := r.frameOf[body]
	return f, ok
}

// BodyOfFrame returns the body owning frame, if any.
func (r *Registry) BodyOfFrame(frame FrameID) (tree.BodyIndex, bool) {
	b, ok := r.bodyOf[frame]
	return b, ok
}

// CollisionGeometries returns all collision-role geometries in id order.
func (r *Registry) CollisionGeometries() []*Geometry {
	out := make([]*Geometry, 0, r.numCollision)
	for i := range r.geometries {
		if r.geometries[i].Role == RoleCollision {
			out = append(out, &r.geometries[i])
		}
	}
	return out
}
