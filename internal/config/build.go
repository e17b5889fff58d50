package config

import (
	"fmt"

	"github.com/san-kum/mbplant/internal/geometry"
	"github.com/san-kum/mbplant/internal/plant"
	"github.com/san-kum/mbplant/internal/solver"
	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

// Build assembles and finalizes a plant from the scene. Bodies without a
// declared joint float freely; their Position field seeds the initial state
// applied by ApplyInitialState.
func (s *Scene) Build() (*plant.Plant, error) {
	p, err := plant.New(s.Dt)
	if err != nil {
		return nil, err
	}

	if s.Gravity > 0 {
		if err := p.SetGravity(spatial.V3(0, 0, -s.Gravity)); err != nil {
			return nil, err
		}
	}

	model, err := parseContactModel(s.Contact.Model)
	if err != nil {
		return nil, err
	}
	if err := p.SetContactModel(model); err != nil {
		return nil, err
	}
	kind, err := parseSolverKind(s.Contact.Solver)
	if err != nil {
		return nil, err
	}
	if err := p.SetSolverKind(kind); err != nil {
		return nil, err
	}

	if s.Ground != nil {
		friction := frictionOrDefault(s.Ground.StaticFriction, s.Ground.DynamicFriction)
		if _, err := p.RegisterCollisionGeometry(tree.WorldBodyIndex, "ground",
			geometry.HalfSpace{}, spatial.IdentityPose(),
			geometry.DefaultProximityProperties(friction)); err != nil {
			return nil, err
		}
	}

	bodies := make(map[string]tree.BodyIndex, len(s.Bodies))
	for _, bc := range s.Bodies {
		inertia, shape, err := bodyShape(bc)
		if err != nil {
			return nil, err
		}
		b, err := p.AddBody(bc.Name, tree.DefaultModelInstance, inertia)
		if err != nil {
			return nil, err
		}
		bodies[bc.Name] = b

		if bc.Collision {
			friction := frictionOrDefault(bc.StaticFriction, bc.DynamicFriction)
			if _, err := p.RegisterCollisionGeometry(b, bc.Name+"_collision",
				shape, spatial.IdentityPose(),
				geometry.DefaultProximityProperties(friction)); err != nil {
				return nil, err
			}
		}
	}

	for _, jc := range s.Joints {
		if err := s.addJoint(p, bodies, jc); err != nil {
			return nil, err
		}
	}

	if s.Contact.PenetrationAllowance > 0 {
		if err := p.SetPenetrationAllowance(s.Contact.PenetrationAllowance); err != nil {
			return nil, err
		}
	}
	if s.Contact.StictionTolerance > 0 {
		if err := p.SetStictionTolerance(s.Contact.StictionTolerance); err != nil {
			return nil, err
		}
	}

	if err := p.Finalize(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Scene) addJoint(p *plant.Plant, bodies map[string]tree.BodyIndex, jc JointConfig) error {
	parent, err := resolveBody(bodies, jc.Parent)
	if err != nil {
		return fmt.Errorf("joint %q: %w", jc.Name, err)
	}
	child, err := resolveBody(bodies, jc.Child)
	if err != nil {
		return fmt.Errorf("joint %q: %w", jc.Name, err)
	}

	var kind tree.JointKind
	switch jc.Type {
	case "revolute":
		axis, err := jointAxis(jc)
		if err != nil {
			return err
		}
		kind = tree.RevoluteKind{Axis: axis}
	case "prismatic":
		axis, err := jointAxis(jc)
		if err != nil {
			return err
		}
		kind = tree.PrismaticKind{Axis: axis}
	case "weld":
		kind = tree.WeldKind{}
	default:
		return fmt.Errorf("joint %q: unknown type %q", jc.Name, jc.Type)
	}

	// The joint frame sits at the child body's declared position, fixed in
	// the parent frame.
	xpj := spatial.Pose{R: spatial.Identity3(), P: s.bodyPosition(jc.Child)}
	j, err := p.AddJoint(jc.Name, parent, child, kind, xpj)
	if err != nil {
		return err
	}
	if jc.Limits != nil {
		joint := p.Tree().Joint(j)
		joint.LowerLimit = jc.Limits[0]
		joint.UpperLimit = jc.Limits[1]
	}
	return nil
}

// ApplyInitialState moves each free-floating body to its configured world
// position. Jointed bodies start at their joint's zero configuration.
func (s *Scene) ApplyInitialState(p *plant.Plant, ctx *plant.Context) error {
	t := p.Tree()
	q := ctx.Positions()
	for _, bc := range s.Bodies {
		for i := 0; i < t.NumJoints(); i++ {
			j := t.Joint(tree.JointIndex(i))
			if _, ok := j.Kind.(tree.FloatingKind); !ok {
				continue
			}
			if t.Body(j.Child).Name != bc.Name {
				continue
			}
			ps := j.PositionStart()
			q[ps+4] = bc.Position[0]
			q[ps+5] = bc.Position[1]
			q[ps+6] = bc.Position[2]
		}
	}
	return ctx.SetPositions(q)
}

func (s *Scene) bodyPosition(name string) spatial.Vec3 {
	for _, bc := range s.Bodies {
		if bc.Name == name {
			return spatial.V3(bc.Position[0], bc.Position[1], bc.Position[2])
		}
	}
	return spatial.Vec3{}
}

func resolveBody(bodies map[string]tree.BodyIndex, name string) (tree.BodyIndex, error) {
	if name == "world" {
		return tree.WorldBodyIndex, nil
	}
	b, ok := bodies[name]
	if !ok {
		return 0, fmt.Errorf("unknown body %q", name)
	}
	return b, nil
}

func bodyShape(bc BodyConfig) (tree.SpatialInertia, geometry.Shape, error) {
	if bc.Mass <= 0 {
		return tree.SpatialInertia{}, nil, fmt.Errorf("body %q: mass must be positive, got %g", bc.Name, bc.Mass)
	}
	switch bc.Shape {
	case "sphere":
		if bc.Radius <= 0 {
			return tree.SpatialInertia{}, nil, fmt.Errorf("body %q: sphere radius must be positive", bc.Name)
		}
		return tree.SolidSphere(bc.Mass, bc.Radius), geometry.Sphere{Radius: bc.Radius}, nil
	case "box":
		for _, l := range bc.Size {
			if l <= 0 {
				return tree.SpatialInertia{}, nil, fmt.Errorf("body %q: box size must be positive", bc.Name)
			}
		}
		return tree.SolidBox(bc.Mass, bc.Size[0], bc.Size[1], bc.Size[2]),
			geometry.Box{Lx: bc.Size[0], Ly: bc.Size[1], Lz: bc.Size[2]}, nil
	default:
		return tree.SpatialInertia{}, nil, fmt.Errorf("body %q: unknown shape %q", bc.Name, bc.Shape)
	}
}

func jointAxis(jc JointConfig) (spatial.Vec3, error) {
	axis := spatial.V3(jc.Axis[0], jc.Axis[1], jc.Axis[2])
	if axis.Norm() == 0 {
		return spatial.Vec3{}, fmt.Errorf("joint %q: axis must be non-zero", jc.Name)
	}
	return axis.Scale(1 / axis.Norm()), nil
}

func frictionOrDefault(static, dynamic float64) geometry.CoulombFriction {
	if static == 0 && dynamic == 0 {
		return geometry.CoulombFriction{
			Static:  DefaultStaticFriction,
			Dynamic: DefaultDynamicFriction,
		}
	}
	return geometry.CoulombFriction{Static: static, Dynamic: dynamic}
}

func parseContactModel(name string) (plant.ContactModel, error) {
	switch name {
	case "", "point":
		return plant.ContactModelPoint, nil
	case "hydroelastic":
		return plant.ContactModelHydroelastic, nil
	case "hydroelastic_with_fallback":
		return plant.ContactModelHydroelasticWithFallback, nil
	default:
		return 0, fmt.Errorf("unknown contact model %q", name)
	}
}

func parseSolverKind(name string) (solver.Kind, error) {
	switch name {
	case "":
		return solver.KindTamsi, nil
	case "tamsi", "sap", "euler":
		return solver.Kind(name), nil
	default:
		return "", fmt.Errorf("unknown solver %q", name)
	}
}
