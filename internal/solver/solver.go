// Package solver provides the pluggable discrete update managers that
// advance a contact problem by one fixed time step. The plant assembles the
// non-contact forces and hands the manager everything else through Problem;
// the manager owns contact solving and produces the next discrete state.
package solver

import (
	"errors"

	"github.com/san-kum/mbplant/internal/contact"
	"github.com/san-kum/mbplant/internal/tree"
)

var (
	// ErrConstraintUnsupported marks a solver/constraint incompatibility
	// detected at finalize.
	ErrConstraintUnsupported = errors.New("solver: constraint kind not supported")
)

// Problem is one step's input: the current discrete state, the forces the
// plant already assembled (actuation, gravity, force elements, joint-limit
// penalties) and hooks to evaluate contact at the current configuration.
type Problem struct {
	Tree *tree.Tree
	DT   float64

	Q0, V0 []float64
	PC     *tree.PositionKinematics
	VC     *tree.VelocityKinematics

	// NonContactForces excludes contact; the manager adds contact itself.
	NonContactForces *tree.Forces

	// EvalContact returns the contact results plus a per-body accumulation of
	// the contact forces at body origins, for the current configuration.
	EvalContact func() (*contact.Results, *tree.Forces, error)

	// Unlocked holds the sorted velocity indices not frozen by joint locking;
	// nil means every DOF participates.
	Unlocked []int

	Constraints *ConstraintSet
}

// DiscreteValues is the next discrete state.
type DiscreteValues struct {
	QNext []float64
	VNext []float64
}

// SolverResults carries the velocity-level solution alongside the
// generalized contact contribution, for the contact-force output ports.
type SolverResults struct {
	VNext                    []float64
	GeneralizedContactForces []float64
}

// AccelerationKinematics is the acceleration-level output of one step.
type AccelerationKinematics struct {
	VDot []float64
}

// Manager is the discrete update backend. ValidateConstraints runs once at
// finalize; the Calc methods run per step and must not retain Problem.
type Manager interface {
	Name() string
	ValidateConstraints(set *ConstraintSet) error
	CalcContactResults(p *Problem) (*contact.Results, error)
	CalcDiscreteValues(p *Problem) (*DiscreteValues, error)
	CalcAccelerationKinematicsCache(p *Problem) (*AccelerationKinematics, error)
	EvalContactSolverResults(p *Problem) (*SolverResults, error)
}

// totalForces merges the plant-assembled forces with the contact forces.
func totalForces(p *Problem) (*tree.Forces, *contact.Results, error) {
	f := tree.NewForces(p.Tree)
	f.AddIn(p.NonContactForces)

	var results *contact.Results
	if p.EvalContact != nil {
		r, cf, err := p.EvalContact()
		if err != nil {
			return nil, nil, err
		}
		results = r
		if cf != nil {
			f.AddIn(cf)
		}
	}
	return f, results, nil
}

// stepEuler is the shared velocity-level scheme: explicit Euler on the
// velocities, then the joint-specific velocity-to-qdot map evaluated at the
// new velocity, then explicit Euler on the positions.
func stepEuler(p *Problem, f *tree.Forces) (*DiscreteValues, []float64, error) {
	vdot, err := p.Tree.CalcForwardDynamics(p.PC, p.V0, f, p.Unlocked)
	if err != nil {
		return nil, nil, err
	}

	nv := p.Tree.NumVelocities()
	vNext := make([]float64, nv)
	for i := 0; i < nv; i++ {
		vNext[i] = p.V0[i] + p.DT*vdot[i]
	}

	qdot := p.Tree.MapVelocityToQDot(p.Q0, vNext)
	qNext := make([]float64, len(p.Q0))
	for i := range qNext {
		qNext[i] = p.Q0[i] + p.DT*qdot[i]
	}
	p.Tree.ProjectPositions(qNext)

	return &DiscreteValues{QNext: qNext, VNext: vNext}, vdot, nil
}

// generalizedContactForces maps the per-body contact forces into generalized
// coordinates via the configuration-dependent inverse dynamics map.
func generalizedContactForces(p *Problem, cf *tree.Forces) []float64 {
	nv := p.Tree.NumVelocities()
	if cf == nil {
		return make([]float64, nv)
	}
	zero := make([]float64, nv)
	id := p.Tree.CalcInverseDynamics(p.PC, zero, zero, cf.Body, cf.Generalized, true)
	tau := make([]float64, nv)
	for i := range tau {
		tau[i] = -id.Tau[i]
	}
	return tau
}
