// Package plant is the orchestrator of the multibody engine: it owns the
// topology, the geometry registry, the contact parameters and the discrete
// solver backend, and evaluates forces and state updates against a Context.
//
// Lifecycle: registration calls are valid only before Finalize; evaluation
// calls only after. Post-finalize the plant is immutable apart from the
// contact-parameter setters, so independent contexts may be evaluated from
// separate goroutines.
package plant

import (
	"fmt"
	"math"

	"github.com/san-kum/mbplant/internal/contact"
	"github.com/san-kum/mbplant/internal/geometry"
	"github.com/san-kum/mbplant/internal/solver"
	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

// ContactModel selects how detected contacts become forces.
type ContactModel int

const (
	// ContactModelPoint resolves every contact as a point-penalty force.
	ContactModelPoint ContactModel = iota
	// ContactModelHydroelastic integrates traction over contact surfaces and
	// fails for geometry pairs without a surface representation.
	ContactModelHydroelastic
	// ContactModelHydroelasticWithFallback uses surfaces where available and
	// point penalties for the remaining pairs.
	ContactModelHydroelasticWithFallback
)

const (
	DefaultPenetrationAllowance = 1e-3 // m
	DefaultStictionTolerance    = 1e-3 // m/s
)

// Plant assembles a kinematic tree, collision geometry and contact
// parameters into an evaluable dynamics model.
type Plant struct {
	tree *tree.Tree
	reg  *geometry.Registry

	// dt is the discrete step; zero means continuous mode.
	dt float64

	contactModel ContactModel
	solverKind   solver.Kind
	manager      solver.Manager
	constraints  solver.ConstraintSet
	integrator   contact.TractionIntegrator

	penetrationAllowance float64
	stictionTolerance    float64

	// Derived at finalize (and on the setters below).
	pointParams contact.PointContactParams
	stribeck    contact.StribeckModel
	limits      *contact.JointLimitsTable
	calculator  *contact.Calculator

	// paramEpoch bumps on every post-finalize parameter change; contexts
	// compare it to their own copy to invalidate parameter-dependent cache
	// entries.
	paramEpoch uint64

	// limitWarning is queued once when continuous mode meets finite joint
	// limits; the caller surfaces it.
	limitWarning string

	finalized bool
}

// New creates an empty plant. A positive dt selects fixed-step discrete
// mode; zero selects continuous mode.
func New(dt float64) (*Plant, error) {
	if dt < 0 || math.IsNaN(dt) {
		return nil, fmt.Errorf("plant: time step must be non-negative, got %g", dt)
	}
	return &Plant{
		tree:                 tree.New(),
		reg:                  geometry.NewRegistry(),
		dt:                   dt,
		solverKind:           solver.KindTamsi,
		penetrationAllowance: DefaultPenetrationAllowance,
		stictionTolerance:    DefaultStictionTolerance,
	}, nil
}

func (p *Plant) Tree() *tree.Tree             { return p.tree }
func (p *Plant) Registry() *geometry.Registry { return p.reg }
func (p *Plant) TimeStep() float64            { return p.dt }
func (p *Plant) IsDiscrete() bool             { return p.dt > 0 }
func (p *Plant) IsFinalized() bool            { return p.finalized }

func (p *Plant) preFinalize(op string) error {
	if p.finalized {
		return fmt.Errorf("%w (%s)", ErrFinalized, op)
	}
	return nil
}

func (p *Plant) postFinalize(op string) error {
	if !p.finalized {
		return fmt.Errorf("%w (%s)", ErrNotFinalized, op)
	}
	return nil
}

// AddModelInstance reserves a named model instance.
func (p *Plant) AddModelInstance(name string) (tree.ModelInstanceIndex, error) {
	if err := p.preFinalize("AddModelInstance"); err != nil {
		return 0, err
	}
	return p.tree.AddModelInstance(name)
}

// AddBody adds a rigid body to the given model instance.
func (p *Plant) AddBody(name string, instance tree.ModelInstanceIndex, inertia tree.SpatialInertia) (tree.BodyIndex, error) {
	if err := p.preFinalize("AddBody"); err != nil {
		return 0, err
	}
	return p.tree.AddBody(name, instance, inertia)
}

// AddJoint connects child to parent with the given kind.
func (p *Plant) AddJoint(name string, parent, child tree.BodyIndex, kind tree.JointKind, xpj spatial.Pose) (tree.JointIndex, error) {
	if err := p.preFinalize("AddJoint"); err != nil {
		return 0, err
	}
	return p.tree.AddJoint(name, parent, child, kind, xpj)
}

// AddJointActuator attaches a single-DOF actuator to the joint.
func (p *Plant) AddJointActuator(name string, joint tree.JointIndex, effortLimit float64) (tree.ActuatorIndex, error) {
	if err := p.preFinalize("AddJointActuator"); err != nil {
		return 0, err
	}
	return p.tree.AddActuator(name, joint, effortLimit)
}

// AddForceElement installs a custom force element (springs, dampers).
func (p *Plant) AddForceElement(e tree.ForceElement) error {
	if err := p.preFinalize("AddForceElement"); err != nil {
		return err
	}
	return p.tree.AddForceElement(e)
}

// SetGravity overrides the default gravity vector.
func (p *Plant) SetGravity(g spatial.Vec3) error {
	if err := p.preFinalize("SetGravity"); err != nil {
		return err
	}
	return p.tree.SetGravity(g)
}

// RegisterVisualGeometry attaches display-only geometry to a body.
func (p *Plant) RegisterVisualGeometry(body tree.BodyIndex, name string, shape geometry.Shape, xbg spatial.Pose) (geometry.GeometryID, error) {
	if err := p.preFinalize("RegisterVisualGeometry"); err != nil {
		return 0, err
	}
	return p.reg.Register(body, name, shape, xbg, geometry.RoleVisual, geometry.ProximityProperties{})
}

// RegisterCollisionGeometry attaches contact geometry with material
// properties to a body.
func (p *Plant) RegisterCollisionGeometry(body tree.BodyIndex, name string, shape geometry.Shape, xbg spatial.Pose, props geometry.ProximityProperties) (geometry.GeometryID, error) {
	if err := p.preFinalize("RegisterCollisionGeometry"); err != nil {
		return 0, err
	}
	return p.reg.Register(body, name, shape, xbg, geometry.RoleCollision, props)
}

// SetContactModel selects the contact force model.
func (p *Plant) SetContactModel(m ContactModel) error {
	if err := p.preFinalize("SetContactModel"); err != nil {
		return err
	}
	p.contactModel = m
	return nil
}

// SetSolverKind selects the discrete update backend installed at finalize.
func (p *Plant) SetSolverKind(k solver.Kind) error {
	if err := p.preFinalize("SetSolverKind"); err != nil {
		return err
	}
	if _, ok := solver.ManagerFor(k); !ok {
		return fmt.Errorf("plant: unknown solver kind %q", k)
	}
	p.solverKind = k
	return nil
}

// SetTractionIntegrator overrides the built-in hydroelastic integrator.
func (p *Plant) SetTractionIntegrator(ti contact.TractionIntegrator) error {
	if err := p.preFinalize("SetTractionIntegrator"); err != nil {
		return err
	}
	p.integrator = ti
	return nil
}

// AddCouplerConstraint declares q0 = gearRatio·q1 + offset between two
// single-DOF joints. Validated immediately; invalid constraints are not
// added.
func (p *Plant) AddCouplerConstraint(c solver.CouplerConstraint) error {
	if err := p.preFinalize("AddCouplerConstraint"); err != nil {
		return err
	}
	if err := solver.ValidateCoupler(p.tree, c); err != nil {
		return err
	}
	p.constraints.Couplers = append(p.constraints.Couplers, c)
	return nil
}

// AddDistanceConstraint declares a fixed distance between two body points.
func (p *Plant) AddDistanceConstraint(c solver.DistanceConstraint) error {
	if err := p.preFinalize("AddDistanceConstraint"); err != nil {
		return err
	}
	if err := solver.ValidateDistance(c); err != nil {
		return err
	}
	p.constraints.Distances = append(p.constraints.Distances, c)
	return nil
}

// AddBallConstraint pins two body points together.
func (p *Plant) AddBallConstraint(c solver.BallConstraint) error {
	if err := p.preFinalize("AddBallConstraint"); err != nil {
		return err
	}
	if err := solver.ValidateBall(c); err != nil {
		return err
	}
	p.constraints.Balls = append(p.constraints.Balls, c)
	return nil
}

// SetPenetrationAllowance re-derives the point-contact parameters for the
// given penetration length scale. Valid pre- and post-finalize; after
// finalize it invalidates parameter-dependent cache entries in every
// context.
func (p *Plant) SetPenetrationAllowance(allowance float64) error {
	if !(allowance > 0) {
		return fmt.Errorf("plant: penetration allowance must be positive, got %g", allowance)
	}
	p.penetrationAllowance = allowance
	if p.finalized {
		if err := p.estimatePointParams(); err != nil {
			return err
		}
		p.bumpParameters()
	}
	return nil
}

// SetStictionTolerance sets the Stribeck regularization velocity scale.
func (p *Plant) SetStictionTolerance(tolerance float64) error {
	if !(tolerance > 0) {
		return fmt.Errorf("plant: stiction tolerance must be positive, got %g", tolerance)
	}
	p.stictionTolerance = tolerance
	if p.finalized {
		p.stribeck = contact.NewStribeckModel(tolerance)
		p.calculator.Stribeck = p.stribeck
		p.bumpParameters()
	}
	return nil
}

func (p *Plant) bumpParameters() { p.paramEpoch++ }

// maxBodyMass is the largest declared finite mass; NaN when no body declares
// one.
func (p *Plant) maxBodyMass() float64 {
	max := math.NaN()
	for i := 1; i < p.tree.NumBodies(); i++ {
		m := p.tree.Body(tree.BodyIndex(i)).Inertia.Mass
		if math.IsNaN(m) || m <= 0 {
			continue
		}
		if math.IsNaN(max) || m > max {
			max = m
		}
	}
	return max
}

func (p *Plant) estimatePointParams() error {
	params, err := contact.EstimatePointContactParams(
		p.maxBodyMass(), p.tree.Gravity().Norm(), p.penetrationAllowance)
	if err != nil {
		return err
	}
	p.pointParams = params
	if p.calculator != nil {
		p.calculator.Defaults = params
	}
	return nil
}

// Finalize freezes the topology and registry, derives the joint-limit
// penalty table and the point-contact defaults, validates the declared
// constraints against the selected solver and installs it. Irreversible.
func (p *Plant) Finalize() error {
	if err := p.preFinalize("Finalize"); err != nil {
		return err
	}
	if err := p.tree.Finalize(); err != nil {
		return err
	}
	p.reg.Freeze()

	// Contact defaults only matter when something can collide; a massless
	// model without collision geometry must still finalize.
	if p.reg.NumCollisionGeometries() > 0 {
		if err := p.estimatePointParams(); err != nil {
			return err
		}
	}
	p.stribeck = contact.NewStribeckModel(p.stictionTolerance)
	p.calculator = &contact.Calculator{
		Tree:     p.tree,
		Reg:      p.reg,
		Stribeck: p.stribeck,
		Defaults: p.pointParams,
	}
	if p.integrator == nil {
		p.integrator = contact.QuadratureIntegrator{StictionTolerance: p.stictionTolerance}
	}

	limitDT := p.dt
	if limitDT == 0 {
		// Continuous mode cannot apply limit penalties, but the table is
		// still built so the warning can name what is being ignored. A
		// nominal 1 ms step stands in for the missing one.
		limitDT = 1e-3
	}
	p.limits = contact.BuildJointLimitsTable(p.tree, limitDT)

	m, _ := solver.ManagerFor(p.solverKind)
	if err := m.ValidateConstraints(&p.constraints); err != nil {
		return err
	}
	p.manager = m

	p.finalized = true
	return nil
}

// PendingJointLimitWarning returns and clears the queued continuous-mode
// joint-limit warning; empty when none is pending.
func (p *Plant) PendingJointLimitWarning() string {
	w := p.limitWarning
	p.limitWarning = ""
	return w
}

func (p *Plant) queueLimitWarning() {
	if p.limitWarning != "" {
		return
	}
	p.limitWarning = fmt.Sprintf(
		"plant: %d joint(s) declare finite position limits, which are ignored in continuous mode; "+
			"use a positive time step to enforce them", p.limits.Len())
}

// MakeActuationMatrix returns the nv-by-nu actuation map B.
func (p *Plant) MakeActuationMatrix() [][]float64 {
	return p.tree.MakeActuationMatrix()
}
