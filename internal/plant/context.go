package plant

import (
	"fmt"
	"sort"

	"github.com/san-kum/mbplant/internal/cache"
	"github.com/san-kum/mbplant/internal/geometry"
	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

// Representation marks the scalar representation a context evaluates with.
// Contact and hydroelastic computations are only defined numerically.
type Representation int

const (
	Numeric Representation = iota
	Symbolic
)

// ExternallyAppliedSpatialForce is one entry of the applied-spatial-forces
// input: a wrench applied at a point fixed in the body frame, expressed in
// world.
type ExternallyAppliedSpatialForce struct {
	Body  tree.BodyIndex
	Point spatial.Vec3 // application point in the body frame
	Force spatial.Force
}

// QueryProvider produces a geometry query object for the configuration
// described by the position kinematics. It is the plant's geometry-query
// input connection.
type QueryProvider func(pc *tree.PositionKinematics) geometry.QueryObject

// ActuationSource is a demand-driven aggregate actuation input; it may
// consult the context, which is how algebraic loops arise.
type ActuationSource func(ctx *Context) ([]float64, error)

// Context owns one evaluation state: generalized positions and velocities,
// the input port values, the joint-lock set and the cache. Contexts are not
// safe for concurrent use, but independent contexts are.
type Context struct {
	plant *Plant

	q, v []float64

	store      *cache.Store
	versions   cache.Versions
	paramEpoch uint64

	representation Representation

	actuation          []float64
	actuationSource    ActuationSource
	instanceActuation  map[tree.ModelInstanceIndex][]float64
	appliedGeneralized []float64
	appliedSpatial     []ExternallyAppliedSpatialForce
	queryProvider      QueryProvider

	locked map[tree.JointIndex]bool

	// inNonContactForces is the algebraic-loop reentrancy flag; set and
	// cleared only by the scoped guard in the force assembler.
	inNonContactForces bool
}

// CreateDefaultContext builds a context at the default state: identity
// orientations, zero velocities, no inputs connected.
func (p *Plant) CreateDefaultContext() (*Context, error) {
	if err := p.postFinalize("CreateDefaultContext"); err != nil {
		return nil, err
	}
	return &Context{
		plant:             p,
		q:                 p.tree.DefaultPositions(),
		v:                 make([]float64, p.tree.NumVelocities()),
		store:             cache.NewStore(),
		paramEpoch:        p.paramEpoch,
		instanceActuation: make(map[tree.ModelInstanceIndex][]float64),
		locked:            make(map[tree.JointIndex]bool),
	}, nil
}

// sync folds plant-level parameter changes into the context's version
// vector. Called at the top of every evaluation.
func (ctx *Context) sync() {
	if ctx.paramEpoch != ctx.plant.paramEpoch {
		ctx.paramEpoch = ctx.plant.paramEpoch
		ctx.versions.Bump(cache.Parameters)
	}
}

// SetPositions replaces q; the quaternion blocks are not renormalized here.
func (ctx *Context) SetPositions(q []float64) error {
	if len(q) != ctx.plant.tree.NumPositions() {
		return fmt.Errorf("plant: SetPositions: got %d values, model has %d positions",
			len(q), ctx.plant.tree.NumPositions())
	}
	copy(ctx.q, q)
	ctx.versions.Bump(cache.Configuration)
	return nil
}

// SetVelocities replaces v.
func (ctx *Context) SetVelocities(v []float64) error {
	if len(v) != ctx.plant.tree.NumVelocities() {
		return fmt.Errorf("plant: SetVelocities: got %d values, model has %d velocities",
			len(v), ctx.plant.tree.NumVelocities())
	}
	copy(ctx.v, v)
	ctx.versions.Bump(cache.Velocity)
	return nil
}

// Positions returns a copy of q.
func (ctx *Context) Positions() []float64 {
	out := make([]float64, len(ctx.q))
	copy(out, ctx.q)
	return out
}

// Velocities returns a copy of v.
func (ctx *Context) Velocities() []float64 {
	out := make([]float64, len(ctx.v))
	copy(out, ctx.v)
	return out
}

// SetRepresentation switches the scalar representation marker.
func (ctx *Context) SetRepresentation(r Representation) {
	ctx.representation = r
	ctx.store.Invalidate()
}

// FixActuationInput connects the aggregate actuation input to a constant
// vector of length nu.
func (ctx *Context) FixActuationInput(u []float64) {
	ctx.actuation = append([]float64(nil), u...)
	ctx.actuationSource = nil
	ctx.versions.Bump(cache.Inputs)
}

// ConnectActuationSource connects the aggregate actuation input to a
// demand-driven source.
func (ctx *Context) ConnectActuationSource(src ActuationSource) {
	ctx.actuationSource = src
	ctx.actuation = nil
	ctx.versions.Bump(cache.Inputs)
}

// FixInstanceActuationInput connects the per-instance actuation input for
// one model instance.
func (ctx *Context) FixInstanceActuationInput(instance tree.ModelInstanceIndex, u []float64) {
	ctx.instanceActuation[instance] = append([]float64(nil), u...)
	ctx.versions.Bump(cache.Inputs)
}

// FixAppliedGeneralizedForceInput connects the applied generalized force
// input (length nv).
func (ctx *Context) FixAppliedGeneralizedForceInput(tau []float64) {
	ctx.appliedGeneralized = append([]float64(nil), tau...)
	ctx.versions.Bump(cache.Inputs)
}

// FixAppliedSpatialForceInput connects the applied spatial forces input.
func (ctx *Context) FixAppliedSpatialForceInput(forces []ExternallyAppliedSpatialForce) {
	ctx.appliedSpatial = append([]ExternallyAppliedSpatialForce(nil), forces...)
	ctx.versions.Bump(cache.Inputs)
}

// ConnectQueryProvider connects the geometry query input. Reconnection
// drops every cached artifact, since the detector caches are keyed on
// configuration alone.
func (ctx *Context) ConnectQueryProvider(qp QueryProvider) {
	ctx.queryProvider = qp
	ctx.versions.Bump(cache.Inputs)
	ctx.store.Invalidate()
}

// ConnectDefaultQuery wires the built-in narrow phase as the query input.
func (ctx *Context) ConnectDefaultQuery() {
	reg := ctx.plant.reg
	t := ctx.plant.tree
	ctx.ConnectQueryProvider(func(pc *tree.PositionKinematics) geometry.QueryObject {
		return geometry.NewEngine(reg, geometry.BodyPoses(t, pc))
	})
}

// LockJoint freezes a joint's velocities at zero for subsequent steps. Any
// velocity the joint carries at the moment of locking is discarded.
func (ctx *Context) LockJoint(j tree.JointIndex) error {
	if int(j) >= ctx.plant.tree.NumJoints() || j < 0 {
		return fmt.Errorf("plant: LockJoint: unknown joint %d", j)
	}
	jt := ctx.plant.tree.Joint(j)
	vs := jt.VelocityStart()
	for k := vs; k < vs+jt.NumVelocities(); k++ {
		ctx.v[k] = 0
	}
	ctx.locked[j] = true
	ctx.versions.Bump(cache.Velocity)
	ctx.versions.Bump(cache.Parameters)
	return nil
}

// UnlockJoint releases a locked joint.
func (ctx *Context) UnlockJoint(j tree.JointIndex) error {
	if int(j) >= ctx.plant.tree.NumJoints() || j < 0 {
		return fmt.Errorf("plant: UnlockJoint: unknown joint %d", j)
	}
	delete(ctx.locked, j)
	ctx.versions.Bump(cache.Parameters)
	return nil
}

// IsJointLocked reports the lock state.
func (ctx *Context) IsJointLocked(j tree.JointIndex) bool { return ctx.locked[j] }

// evalUnlockedIndices is the sorted, deduplicated list of velocity indices
// not frozen by joint locking, stable with respect to the plant's DOF
// ordering.
func (p *Plant) evalUnlockedIndices(ctx *Context) ([]int, error) {
	ctx.sync()
	return cache.Eval(ctx.store, &ctx.versions, "unlocked_indices",
		[]cache.Ticket{cache.Parameters}, func() ([]int, error) {
			seen := make(map[int]bool)
			out := make([]int, 0, p.tree.NumVelocities())
			for i := 0; i < p.tree.NumJoints(); i++ {
				j := p.tree.Joint(tree.JointIndex(i))
				if ctx.locked[j.Index] {
					continue
				}
				for k := 0; k < j.NumVelocities(); k++ {
					idx := j.VelocityStart() + k
					if !seen[idx] {
						seen[idx] = true
						out = append(out, idx)
					}
				}
			}
			sort.Ints(out)
			return out, nil
		})
}
