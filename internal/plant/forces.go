package plant

import (
	"fmt"
	"math"

	"github.com/san-kum/mbplant/internal/contact"
	"github.com/san-kum/mbplant/internal/tree"
)

// CalcNonContactForces assembles every non-contact force contribution into
// one accumulator, in a fixed order: force elements (which reset the
// accumulator, so they run first), applied generalized forces, applied
// spatial forces, actuation, then joint-limit penalties in discrete mode.
//
// The whole computation runs under the reentrancy guard: a demand-driven
// input that triggers this computation while it is already running is an
// algebraic loop and fails with a structural diagnostic.
func (p *Plant) CalcNonContactForces(ctx *Context, discrete bool) (*tree.Forces, error) {
	if err := p.postFinalize("CalcNonContactForces"); err != nil {
		return nil, err
	}
	if ctx.inNonContactForces {
		return nil, loopError()
	}
	ctx.inNonContactForces = true
	defer func() { ctx.inNonContactForces = false }()

	pc, err := p.evalPositionKinematics(ctx)
	if err != nil {
		return nil, err
	}
	vc, err := p.evalVelocityKinematics(ctx)
	if err != nil {
		return nil, err
	}

	f := tree.NewForces(p.tree)

	// 1. Force elements: gravity, joint damping, custom elements. Resets f.
	p.tree.CalcForceElementsContribution(pc, vc, ctx.v, f)

	// 2. Applied generalized forces.
	if ctx.appliedGeneralized != nil {
		if len(ctx.appliedGeneralized) != p.tree.NumVelocities() {
			return nil, fmt.Errorf("plant: applied generalized force input has %d entries, model has %d velocities",
				len(ctx.appliedGeneralized), p.tree.NumVelocities())
		}
		for i, tau := range ctx.appliedGeneralized {
			if math.IsNaN(tau) || math.IsInf(tau, 0) {
				return nil, fmt.Errorf("plant: applied generalized force input contains a non-finite value at index %d", i)
			}
			f.Generalized[i] += tau
		}
	}

	// 3. Applied spatial forces, shifted from their application points to
	// the body origins.
	for i, af := range ctx.appliedSpatial {
		if !af.Force.IsFinite() {
			return nil, fmt.Errorf("plant: applied spatial force %d on body %q contains NaN or Inf",
				i, p.tree.Body(af.Body).Name)
		}
		if af.Body == tree.WorldBodyIndex {
			continue
		}
		pW := pc.XWB[af.Body].Apply(af.Point)
		offset := pc.XWB[af.Body].P.Sub(pW)
		f.Body[af.Body] = f.Body[af.Body].Add(af.Force.Shift(offset))
	}

	// 4. Actuation.
	if err := p.addActuation(ctx, f); err != nil {
		return nil, err
	}

	// 5. Joint-limit penalties. Continuous mode cannot enforce limits this
	// way; queue the one-time warning instead.
	if discrete {
		p.addJointLimitForces(ctx, f)
	} else if p.limits.Len() > 0 {
		p.queueLimitWarning()
	}

	return f, nil
}

// addActuation folds the actuation inputs into f. The aggregate input and
// the per-instance inputs are mutually exclusive.
func (p *Plant) addActuation(ctx *Context, f *tree.Forces) error {
	nu := p.tree.NumActuators()
	aggregate := ctx.actuation != nil || ctx.actuationSource != nil
	perInstance := len(ctx.instanceActuation) > 0

	if aggregate && perInstance && nu > 0 {
		return ErrBothActuationInputs
	}
	if nu == 0 {
		return nil
	}

	u := make([]float64, nu)
	switch {
	case ctx.actuationSource != nil:
		src, err := ctx.actuationSource(ctx)
		if err != nil {
			return fmt.Errorf("plant: actuation source: %w", err)
		}
		if len(src) != nu {
			return fmt.Errorf("plant: actuation source produced %d values, model has %d actuators",
				len(src), nu)
		}
		copy(u, src)
	case ctx.actuation != nil:
		if len(ctx.actuation) != nu {
			return fmt.Errorf("plant: actuation input has %d values, model has %d actuators",
				len(ctx.actuation), nu)
		}
		copy(u, ctx.actuation)
	case perInstance:
		if err := p.gatherInstanceActuation(ctx, u); err != nil {
			return err
		}
	default:
		// No actuation connected: zero input.
	}

	for i := 0; i < nu; i++ {
		if math.IsNaN(u[i]) {
			return fmt.Errorf("plant: actuation input contains NaN at actuator %q",
				p.tree.Actuator(tree.ActuatorIndex(i)).Name)
		}
		a := p.tree.Actuator(tree.ActuatorIndex(i))
		j := p.tree.Joint(a.Joint)
		f.Generalized[j.VelocityStart()] += u[i]
	}
	return nil
}

// gatherInstanceActuation composes the effective actuation vector from the
// connected per-instance inputs, in actuator-index order within each
// instance. Unconnected instances contribute zero.
func (p *Plant) gatherInstanceActuation(ctx *Context, u []float64) error {
	// Actuator slots per instance, in plant actuator order.
	slots := make(map[tree.ModelInstanceIndex][]int)
	for i := 0; i < p.tree.NumActuators(); i++ {
		a := p.tree.Actuator(tree.ActuatorIndex(i))
		inst := p.tree.Joint(a.Joint).Instance
		slots[inst] = append(slots[inst], i)
	}
	for inst, ui := range ctx.instanceActuation {
		idx := slots[inst]
		if len(ui) != len(idx) {
			return fmt.Errorf("plant: actuation input for instance %q has %d values, instance has %d actuators",
				p.tree.InstanceName(inst), len(ui), len(idx))
		}
		for k, slot := range idx {
			u[slot] = ui[k]
		}
	}
	return nil
}

// addJointLimitForces applies the one-sided limit penalties from the table
// computed at finalize, skipping locked joints.
func (p *Plant) addJointLimitForces(ctx *Context, f *tree.Forces) {
	for i := 0; i < p.limits.Len(); i++ {
		ji := p.limits.Joints[i]
		if ctx.locked[ji] {
			continue
		}
		j := p.tree.Joint(ji)
		q := ctx.q[j.PositionStart()]
		v := ctx.v[j.VelocityStart()]
		f.Generalized[j.VelocityStart()] += contact.CalcLimitPenaltyForce(
			p.limits.Lower[i], p.limits.Upper[i],
			p.limits.Stiffness[i], p.limits.Damping[i], q, v)
	}
}
