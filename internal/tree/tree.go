// Package tree owns the multibody topology: rigid bodies, joints, actuators
// and model instances live in a single arena and are referenced by index
// everywhere else. Topology is mutable until Finalize and frozen after.
package tree

import (
	"fmt"
	"math"

	"github.com/san-kum/mbplant/internal/spatial"
)

type (
	BodyIndex          int
	JointIndex         int
	ActuatorIndex      int
	ModelInstanceIndex int
)

const (
	WorldBodyIndex BodyIndex = 0

	WorldModelInstance   ModelInstanceIndex = 0
	DefaultModelInstance ModelInstanceIndex = 1
)

// SpatialInertia of a body about its origin: mass, center of mass offset in
// the body frame, and rotational inertia about the center of mass in the
// body frame. A NaN mass marks an unspecified inertia (kinematics-only body).
type SpatialInertia struct {
	Mass    float64
	Com     spatial.Vec3
	ICom    spatial.Mat3
}

// UnspecifiedInertia marks a body whose mass properties were never set.
func UnspecifiedInertia() SpatialInertia {
	return SpatialInertia{Mass: math.NaN()}
}

// PointMass is the inertia of a point mass at the body origin.
func PointMass(mass float64) SpatialInertia {
	return SpatialInertia{Mass: mass}
}

// SolidBox is the inertia of a uniform box of the given dimensions centered
// on the body origin.
func SolidBox(mass, lx, ly, lz float64) SpatialInertia {
	c := mass / 12.0
	return SpatialInertia{
		Mass: mass,
		ICom: spatial.Mat3{
			{c * (ly*ly + lz*lz), 0, 0},
			{0, c * (lx*lx + lz*lz), 0},
			{0, 0, c * (lx*lx + ly*ly)},
		},
	}
}

// SolidSphere is the inertia of a uniform sphere centered on the body origin.
func SolidSphere(mass, radius float64) SpatialInertia {
	i := 0.4 * mass * radius * radius
	return SpatialInertia{
		Mass: mass,
		ICom: spatial.Mat3{{i, 0, 0}, {0, i, 0}, {0, 0, i}},
	}
}

// AboutOrigin returns the rotational inertia about the body origin
// (parallel-axis shift of ICom by the COM offset).
func (si SpatialInertia) AboutOrigin() spatial.Mat3 {
	m := si.Mass
	c := si.Com
	d := c.SquaredNorm()
	shift := spatial.Mat3{
		{m * (d - c[0]*c[0]), -m * c[0] * c[1], -m * c[0] * c[2]},
		{-m * c[1] * c[0], m * (d - c[1]*c[1]), -m * c[1] * c[2]},
		{-m * c[2] * c[0], -m * c[2] * c[1], m * (d - c[2]*c[2])},
	}
	var out spatial.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = si.ICom[i][j] + shift[i][j]
		}
	}
	return out
}

type Body struct {
	Name     string
	Index    BodyIndex
	Instance ModelInstanceIndex
	Inertia  SpatialInertia

	// Floating is set at Finalize for bodies attached to the world by a
	// floating joint (explicit or implicit).
	Floating bool

	// inboard is the joint whose child this body is; -1 for the world.
	inboard JointIndex
}

func (b *Body) IsWorld() bool { return b.Index == WorldBodyIndex }

type Joint struct {
	Name     string
	Index    JointIndex
	Instance ModelInstanceIndex
	Parent   BodyIndex
	Child    BodyIndex
	Kind     JointKind

	// XPJ is the pose of the joint frame fixed in the parent body. The
	// child body frame coincides with the joint's outboard frame.
	XPJ spatial.Pose

	// Position limits for single-DOF joints; ±Inf when unbounded.
	LowerLimit float64
	UpperLimit float64

	// Viscous damping along the joint's DOFs (single-DOF joints only).
	Damping float64

	positionStart int
	velocityStart int
}

func (j *Joint) NumPositions() int   { return j.Kind.NumPositions() }
func (j *Joint) NumVelocities() int  { return j.Kind.NumVelocities() }
func (j *Joint) PositionStart() int  { return j.positionStart }
func (j *Joint) VelocityStart() int  { return j.velocityStart }

// HasLimits reports whether the joint declares a finite position limit.
func (j *Joint) HasLimits() bool {
	return !math.IsInf(j.LowerLimit, -1) || !math.IsInf(j.UpperLimit, 1)
}

type Actuator struct {
	Name        string
	Index       ActuatorIndex
	Joint       JointIndex
	EffortLimit float64
}

// Tree is the topology arena. The world body occupies index 0.
type Tree struct {
	bodies    []Body
	joints    []Joint
	actuators []Actuator
	instances []string
	elements  []ForceElement

	gravity spatial.Vec3

	finalized bool
	nq, nv    int

	// joint evaluation order, outward from the world; set at Finalize.
	order []JointIndex
}

// New creates a tree holding only the world body and the two built-in model
// instances, with default Earth gravity along -z.
func New() *Tree {
	t := &Tree{
		instances: []string{"WorldModelInstance", "DefaultModelInstance"},
		gravity:   spatial.V3(0, 0, -9.81),
	}
	t.bodies = append(t.bodies, Body{
		Name:     "world",
		Index:    WorldBodyIndex,
		Instance: WorldModelInstance,
		inboard:  -1,
	})
	return t
}

func (t *Tree) IsFinalized() bool { return t.finalized }

func (t *Tree) NumBodies() int    { return len(t.bodies) }
func (t *Tree) NumJoints() int    { return len(t.joints) }
func (t *Tree) NumActuators() int { return len(t.actuators) }
func (t *Tree) NumInstances() int { return len(t.instances) }

// NumPositions and NumVelocities are valid only post-finalize.
func (t *Tree) NumPositions() int  { return t.nq }
func (t *Tree) NumVelocities() int { return t.nv }

func (t *Tree) Body(i BodyIndex) *Body          { return &t.bodies[i] }
func (t *Tree) Joint(i JointIndex) *Joint       { return &t.joints[i] }
func (t *Tree) Actuator(i ActuatorIndex) *Actuator { return &t.actuators[i] }

func (t *Tree) Gravity() spatial.Vec3 { return t.gravity }

// InboardJoint returns the joint whose child the body is; ok is false for
// the world body.
func (t *Tree) InboardJoint(b BodyIndex) (JointIndex, bool) {
	j := t.bodies[b].inboard
	if j < 0 {
		return 0, false
	}
	return j, true
}

func (t *Tree) SetGravity(g spatial.Vec3) error {
	if t.finalized {
		return fmt.Errorf("tree: SetGravity: %w", ErrFinalized)
	}
	t.gravity = g
	return nil
}

func (t *Tree) InstanceName(i ModelInstanceIndex) string { return t.instances[i] }

// ScopedName qualifies an element name with its model instance. The world
// and default instances do not scope.
func (t *Tree) ScopedName(i ModelInstanceIndex, name string) string {
	if i == WorldModelInstance || i == DefaultModelInstance {
		return name
	}
	return t.instances[i] + "::" + name
}

func (t *Tree) AddModelInstance(name string) (ModelInstanceIndex, error) {
	if t.finalized {
		return 0, fmt.Errorf("tree: AddModelInstance: %w", ErrFinalized)
	}
	for _, n := range t.instances {
		if n == name {
			return 0, fmt.Errorf("tree: model instance %q already exists", name)
		}
	}
	t.instances = append(t.instances, name)
	return ModelInstanceIndex(len(t.instances) - 1), nil
}

func (t *Tree) AddBody(name string, instance ModelInstanceIndex, inertia SpatialInertia) (BodyIndex, error) {
	if t.finalized {
		return 0, fmt.Errorf("tree: AddBody: %w", ErrFinalized)
	}
	if int(instance) >= len(t.instances) {
		return 0, fmt.Errorf("tree: AddBody %q: unknown model instance %d", name, instance)
	}
	index := BodyIndex(len(t.bodies))
	t.bodies = append(t.bodies, Body{
		Name:     name,
		Index:    index,
		Instance: instance,
		Inertia:  inertia,
		inboard:  -1,
	})
	return index, nil
}

// AddJoint connects parent and child bodies. Floating joints must attach
// their child directly to the world.
func (t *Tree) AddJoint(name string, parent, child BodyIndex, kind JointKind, xpj spatial.Pose) (JointIndex, error) {
	if t.finalized {
		return 0, fmt.Errorf("tree: AddJoint: %w", ErrFinalized)
	}
	if parent == child {
		return 0, fmt.Errorf("tree: joint %q: parent and child are the same body", name)
	}
	if int(parent) >= len(t.bodies) || int(child) >= len(t.bodies) {
		return 0, fmt.Errorf("tree: joint %q references an unknown body", name)
	}
	if child == WorldBodyIndex {
		return 0, fmt.Errorf("tree: joint %q: the world cannot be a child body", name)
	}
	if t.bodies[child].inboard >= 0 {
		return 0, fmt.Errorf("tree: joint %q: body %q already has an inboard joint",
			name, t.bodies[child].Name)
	}
	if _, ok := kind.(FloatingKind); ok && parent != WorldBodyIndex {
		return 0, fmt.Errorf("tree: floating joint %q must attach to the world", name)
	}
	index := JointIndex(len(t.joints))
	t.joints = append(t.joints, Joint{
		Name:       name,
		Index:      index,
		Instance:   t.bodies[child].Instance,
		Parent:     parent,
		Child:      child,
		Kind:       kind,
		XPJ:        xpj,
		LowerLimit: math.Inf(-1),
		UpperLimit: math.Inf(1),
	})
	t.bodies[child].inboard = index
	return index, nil
}

func (t *Tree) AddActuator(name string, joint JointIndex, effortLimit float64) (ActuatorIndex, error) {
	if t.finalized {
		return 0, fmt.Errorf("tree: AddActuator: %w", ErrFinalized)
	}
	j := &t.joints[joint]
	if j.NumVelocities() != 1 {
		return 0, fmt.Errorf("tree: actuator %q: joint %q has %d DOFs; only single-DOF joints are actuated",
			name, j.Name, j.NumVelocities())
	}
	index := ActuatorIndex(len(t.actuators))
	t.actuators = append(t.actuators, Actuator{
		Name:        name,
		Index:       index,
		Joint:       joint,
		EffortLimit: effortLimit,
	})
	return index, nil
}

func (t *Tree) AddForceElement(e ForceElement) error {
	if t.finalized {
		return fmt.Errorf("tree: AddForceElement: %w", ErrFinalized)
	}
	t.elements = append(t.elements, e)
	return nil
}

// Finalize freezes the topology: orphan bodies receive implicit floating
// joints, DOF offsets are assigned in joint index order and the outward
// evaluation order is computed.
func (t *Tree) Finalize() error {
	if t.finalized {
		return fmt.Errorf("tree: Finalize: %w", ErrFinalized)
	}

	// Bodies not connected by any joint float freely in the world.
	for i := range t.bodies {
		b := &t.bodies[i]
		if b.IsWorld() || b.inboard >= 0 {
			continue
		}
		if _, err := t.AddJoint(b.Name+"_floating", WorldBodyIndex, b.Index,
			FloatingKind{}, spatial.IdentityPose()); err != nil {
			return err
		}
	}

	t.nq, t.nv = 0, 0
	for i := range t.joints {
		j := &t.joints[i]
		j.positionStart = t.nq
		j.velocityStart = t.nv
		t.nq += j.NumPositions()
		t.nv += j.NumVelocities()
		if _, ok := j.Kind.(FloatingKind); ok {
			t.bodies[j.Child].Floating = true
		}
	}

	if err := t.computeOrder(); err != nil {
		return err
	}
	t.finalized = true
	return nil
}

// computeOrder does a breadth-first pass from the world so that a joint's
// parent body pose is always available when the joint is evaluated.
func (t *Tree) computeOrder() error {
	children := make(map[BodyIndex][]JointIndex)
	for i := range t.joints {
		j := &t.joints[i]
		children[j.Parent] = append(children[j.Parent], j.Index)
	}
	t.order = t.order[:0]
	queue := []BodyIndex{WorldBodyIndex}
	visited := make([]bool, len(t.bodies))
	visited[WorldBodyIndex] = true
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, ji := range children[b] {
			j := &t.joints[ji]
			if visited[j.Child] {
				return fmt.Errorf("tree: body %q is reached by more than one joint path",
					t.bodies[j.Child].Name)
			}
			visited[j.Child] = true
			t.order = append(t.order, ji)
			queue = append(queue, j.Child)
		}
	}
	for i := range t.bodies {
		if !visited[i] {
			return fmt.Errorf("tree: body %q is not connected to the world", t.bodies[i].Name)
		}
	}
	return nil
}

// DefaultPositions returns the zero configuration, with floating-joint
// quaternions set to identity.
func (t *Tree) DefaultPositions() []float64 {
	q := make([]float64, t.nq)
	for i := range t.joints {
		j := &t.joints[i]
		if _, ok := j.Kind.(FloatingKind); ok {
			q[j.positionStart] = 1 // qw
		}
	}
	return q
}

// InstanceVelocityIndices returns the velocity-vector indices belonging to
// joints of the given model instance, in plant DOF order.
func (t *Tree) InstanceVelocityIndices(instance ModelInstanceIndex) []int {
	var out []int
	for i := range t.joints {
		j := &t.joints[i]
		if j.Instance != instance {
			continue
		}
		for k := 0; k < j.NumVelocities(); k++ {
			out = append(out, j.velocityStart+k)
		}
	}
	return out
}

// MakeActuationMatrix builds the nv x nu matrix B mapping actuator efforts
// to generalized forces.
func (t *Tree) MakeActuationMatrix() [][]float64 {
	b := make([][]float64, t.nv)
	for i := range b {
		b[i] = make([]float64, len(t.actuators))
	}
	for ai := range t.actuators {
		j := &t.joints[t.actuators[ai].Joint]
		b[j.velocityStart][ai] = 1
	}
	return b
}

// NumActuatedDOFs counts actuated DOFs, optionally restricted to one
// model instance (pass a negative index for all).
func (t *Tree) NumActuatedDOFs(instance ModelInstanceIndex) int {
	n := 0
	for i := range t.actuators {
		j := &t.joints[t.actuators[i].Joint]
		if instance < 0 || j.Instance == instance {
			n += j.NumVelocities()
		}
	}
	return n
}
