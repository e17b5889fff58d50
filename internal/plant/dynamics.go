package plant

import (
	"fmt"

	"github.com/san-kum/mbplant/internal/contact"
	"github.com/san-kum/mbplant/internal/solver"
	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

// buildProblem packs one discrete step's input for the installed manager.
func (p *Plant) buildProblem(ctx *Context, output string) (*solver.Problem, error) {
	pc, err := p.evalPositionKinematics(ctx)
	if err != nil {
		return nil, err
	}
	vc, err := p.evalVelocityKinematics(ctx)
	if err != nil {
		return nil, err
	}
	f, err := p.CalcNonContactForces(ctx, true)
	if err != nil {
		return nil, err
	}
	unlocked, err := p.evalUnlockedIndices(ctx)
	if err != nil {
		return nil, err
	}

	return &solver.Problem{
		Tree:             p.tree,
		DT:               p.dt,
		Q0:               ctx.q,
		V0:               ctx.v,
		PC:               pc,
		VC:               vc,
		NonContactForces: f,
		Unlocked:         unlocked,
		Constraints:      &p.constraints,
		EvalContact: func() (*contact.Results, *tree.Forces, error) {
			ev, err := p.evalContactForces(ctx, output)
			if err != nil {
				return nil, nil, err
			}
			return ev.Results, ev.Forces, nil
		},
	}, nil
}

// Step advances the context by one fixed time step through the installed
// discrete update manager. Discrete mode only.
func (p *Plant) Step(ctx *Context) error {
	if err := p.postFinalize("Step"); err != nil {
		return err
	}
	if !p.IsDiscrete() {
		return fmt.Errorf("plant: Step requires a positive time step; this plant is continuous")
	}
	if ctx.representation == Symbolic {
		return contact.ErrSymbolicUnsupported
	}

	problem, err := p.buildProblem(ctx, "discrete update")
	if err != nil {
		return err
	}
	dv, err := p.manager.CalcDiscreteValues(problem)
	if err != nil {
		return err
	}

	copy(ctx.q, dv.QNext)
	copy(ctx.v, dv.VNext)
	ctx.versions.BumpState()
	return nil
}

// CalcTimeDerivatives is the continuous-mode aggregate: qdot from the
// velocity map and vdot from forward dynamics over all forces, contact
// included.
func (p *Plant) CalcTimeDerivatives(ctx *Context) (qdot, vdot []float64, err error) {
	if err := p.postFinalize("CalcTimeDerivatives"); err != nil {
		return nil, nil, err
	}
	if p.IsDiscrete() {
		return nil, nil, fmt.Errorf("plant: CalcTimeDerivatives requires continuous mode; this plant steps discretely")
	}
	if ctx.representation == Symbolic {
		return nil, nil, contact.ErrSymbolicUnsupported
	}

	vdot, err = p.calcAccelerations(ctx, "time derivatives", false)
	if err != nil {
		return nil, nil, err
	}
	qdot = p.tree.MapVelocityToQDot(ctx.q, ctx.v)
	return qdot, vdot, nil
}

// calcAccelerations computes vdot from forward dynamics over non-contact
// plus contact forces, honoring joint locking.
func (p *Plant) calcAccelerations(ctx *Context, output string, discrete bool) ([]float64, error) {
	pc, err := p.evalPositionKinematics(ctx)
	if err != nil {
		return nil, err
	}
	f, err := p.CalcNonContactForces(ctx, discrete)
	if err != nil {
		return nil, err
	}
	ev, err := p.evalContactForces(ctx, output)
	if err != nil {
		return nil, err
	}
	f.AddIn(ev.Forces)

	unlocked, err := p.evalUnlockedIndices(ctx)
	if err != nil {
		return nil, err
	}
	return p.tree.CalcForwardDynamics(pc, ctx.v, f, unlocked)
}

// EvalAccelerations is the acceleration output port. In discrete mode it
// delegates to the manager's acceleration kinematics; in continuous mode it
// is the same vdot the integrator sees.
func (p *Plant) EvalAccelerations(ctx *Context) ([]float64, error) {
	if err := p.postFinalize("EvalAccelerations"); err != nil {
		return nil, err
	}
	if ctx.representation == Symbolic {
		return nil, contact.ErrSymbolicUnsupported
	}
	if p.IsDiscrete() {
		problem, err := p.buildProblem(ctx, "acceleration output")
		if err != nil {
			return nil, err
		}
		ak, err := p.manager.CalcAccelerationKinematicsCache(problem)
		if err != nil {
			return nil, err
		}
		return ak.VDot, nil
	}
	return p.calcAccelerations(ctx, "acceleration output", false)
}

// CalcReactionForces reports the spatial reaction each joint transmits to
// its child body, at the child body origin, expressed in world.
//
// The computation assumes the joint's outboard frame coincides with the
// child body frame, which this topology guarantees in exactly one of two
// layouts (forward or reversed mobilization); a violation is an internal
// consistency failure, not a recoverable condition.
func (p *Plant) CalcReactionForces(ctx *Context) ([]spatial.Force, error) {
	if err := p.postFinalize("CalcReactionForces"); err != nil {
		return nil, err
	}
	if err := p.checkReactionFrames(); err != nil {
		return nil, err
	}

	vdot, err := p.EvalAccelerations(ctx)
	if err != nil {
		return nil, err
	}

	pc, err := p.evalPositionKinematics(ctx)
	if err != nil {
		return nil, err
	}
	f, err := p.CalcNonContactForces(ctx, p.IsDiscrete())
	if err != nil {
		return nil, err
	}
	ev, err := p.evalContactForces(ctx, "reaction forces output")
	if err != nil {
		return nil, err
	}
	f.AddIn(ev.Forces)

	id := p.tree.CalcInverseDynamics(pc, ctx.v, vdot, f.Body, f.Generalized, false)
	return id.Reactions, nil
}

// checkReactionFrames asserts the forward mobilization layout: every
// joint's child body must name that joint as its inboard connection.
func (p *Plant) checkReactionFrames() error {
	for i := 0; i < p.tree.NumJoints(); i++ {
		j := p.tree.Joint(tree.JointIndex(i))
		inboard, ok := p.tree.InboardJoint(j.Child)
		if !ok || inboard != j.Index {
			return fmt.Errorf("plant: internal consistency failure: joint %q is not the inboard "+
				"connection of its child body %q; reaction frames are undefined for this topology",
				j.Name, p.tree.Body(j.Child).Name)
		}
	}
	return nil
}
