package plant

import (
	"github.com/san-kum/mbplant/internal/cache"
	"github.com/san-kum/mbplant/internal/contact"
	"github.com/san-kum/mbplant/internal/geometry"
	"github.com/san-kum/mbplant/internal/tree"
)

func (p *Plant) evalPositionKinematics(ctx *Context) (*tree.PositionKinematics, error) {
	ctx.sync()
	return cache.Eval(ctx.store, &ctx.versions, "position_kinematics",
		[]cache.Ticket{cache.Configuration}, func() (*tree.PositionKinematics, error) {
			return p.tree.CalcPositionKinematics(ctx.q), nil
		})
}

func (p *Plant) evalVelocityKinematics(ctx *Context) (*tree.VelocityKinematics, error) {
	ctx.sync()
	pc, err := p.evalPositionKinematics(ctx)
	if err != nil {
		return nil, err
	}
	return cache.Eval(ctx.store, &ctx.versions, "velocity_kinematics",
		[]cache.Ticket{cache.Configuration, cache.Velocity}, func() (*tree.VelocityKinematics, error) {
			return p.tree.CalcVelocityKinematics(pc, ctx.v), nil
		})
}

// queryObject resolves the geometry query connection for the current
// configuration. output names the computation that needed it, for the
// disconnected-input diagnostic.
func (p *Plant) queryObject(ctx *Context, output string) (geometry.QueryObject, error) {
	if ctx.queryProvider == nil {
		return nil, queryError(output)
	}
	pc, err := p.evalPositionKinematics(ctx)
	if err != nil {
		return nil, err
	}
	return ctx.queryProvider(pc), nil
}

// evalPointPairs is the detector adapter for point contact: configuration
// dependent only, empty without collision geometries.
func (p *Plant) evalPointPairs(ctx *Context, output string) ([]geometry.PointPair, error) {
	if p.reg.NumCollisionGeometries() == 0 {
		return nil, nil
	}
	qo, err := p.queryObject(ctx, output)
	if err != nil {
		return nil, err
	}
	return cache.Eval(ctx.store, &ctx.versions, "point_pairs",
		[]cache.Ticket{cache.Configuration}, func() ([]geometry.PointPair, error) {
			return qo.ComputePointPairPenetrations(), nil
		})
}

// surfacesAndPairs is the fallback query result: surfaces where the pair
// supports them, point pairs otherwise.
type surfacesAndPairs struct {
	Surfaces []geometry.ContactSurface
	Pairs    []geometry.PointPair
}

func (p *Plant) evalSurfaces(ctx *Context, output string, fallback bool) (surfacesAndPairs, error) {
	if p.reg.NumCollisionGeometries() == 0 {
		return surfacesAndPairs{}, nil
	}
	qo, err := p.queryObject(ctx, output)
	if err != nil {
		return surfacesAndPairs{}, err
	}
	return cache.Eval(ctx.store, &ctx.versions, "contact_surfaces",
		[]cache.Ticket{cache.Configuration}, func() (surfacesAndPairs, error) {
			if fallback {
				s, pp := qo.ComputeContactSurfacesWithFallback(geometry.SurfacePolygon)
				return surfacesAndPairs{Surfaces: s, Pairs: pp}, nil
			}
			return surfacesAndPairs{Surfaces: qo.ComputeContactSurfaces(geometry.SurfacePolygon)}, nil
		})
}

// contactEvaluation bundles the per-step contact output: the reportable
// results plus the body-force accumulation.
type contactEvaluation struct {
	Results *contact.Results
	Forces  *tree.Forces
}

// evalContactForces runs the configured contact model at the current state.
// Zero collision geometries short-circuits to empty regardless of the query
// connection; a symbolic representation fails unconditionally.
func (p *Plant) evalContactForces(ctx *Context, output string) (contactEvaluation, error) {
	if ctx.representation == Symbolic {
		return contactEvaluation{}, contact.ErrSymbolicUnsupported
	}
	if p.reg.NumCollisionGeometries() == 0 {
		return contactEvaluation{Results: &contact.Results{}, Forces: tree.NewForces(p.tree)}, nil
	}
	ctx.sync()
	return cache.Eval(ctx.store, &ctx.versions, "contact_results",
		[]cache.Ticket{cache.Configuration, cache.Velocity, cache.Parameters},
		func() (contactEvaluation, error) {
			return p.calcContactForces(ctx, output)
		})
}

func (p *Plant) calcContactForces(ctx *Context, output string) (contactEvaluation, error) {
	pc, err := p.evalPositionKinematics(ctx)
	if err != nil {
		return contactEvaluation{}, err
	}
	vc, err := p.evalVelocityKinematics(ctx)
	if err != nil {
		return contactEvaluation{}, err
	}

	results := &contact.Results{}
	forces := tree.NewForces(p.tree)

	var pairs []geometry.PointPair
	var surfaces []geometry.ContactSurface

	switch p.contactModel {
	case ContactModelPoint:
		pairs, err = p.evalPointPairs(ctx, output)
		if err != nil {
			return contactEvaluation{}, err
		}
	case ContactModelHydroelastic:
		sp, err := p.evalSurfaces(ctx, output, false)
		if err != nil {
			return contactEvaluation{}, err
		}
		surfaces = sp.Surfaces
	case ContactModelHydroelasticWithFallback:
		sp, err := p.evalSurfaces(ctx, output, true)
		if err != nil {
			return contactEvaluation{}, err
		}
		surfaces, pairs = sp.Surfaces, sp.Pairs
	}

	if len(pairs) > 0 {
		infos, err := p.calculator.CalcPointPairInfos(pc, vc, pairs)
		if err != nil {
			return contactEvaluation{}, err
		}
		p.calculator.AddPointContactForces(infos, pc, forces.Body)
		results.PointPairs = infos
	}
	if len(surfaces) > 0 {
		infos, err := p.calculator.CalcHydroelasticForces(pc, vc, surfaces, p.integrator, forces.Body)
		if err != nil {
			return contactEvaluation{}, err
		}
		results.Hydroelastic = infos
	}
	return contactEvaluation{Results: results, Forces: forces}, nil
}

// EvalContactResults reports the per-step contact summary. With zero
// collision geometries it is empty regardless of the query connection.
func (p *Plant) EvalContactResults(ctx *Context) (*contact.Results, error) {
	if err := p.postFinalize("EvalContactResults"); err != nil {
		return nil, err
	}
	ev, err := p.evalContactForces(ctx, "contact results output")
	if err != nil {
		return nil, err
	}
	return ev.Results, nil
}

// EvalGeneralizedContactForces maps the contact forces into generalized
// coordinates.
func (p *Plant) EvalGeneralizedContactForces(ctx *Context) ([]float64, error) {
	if err := p.postFinalize("EvalGeneralizedContactForces"); err != nil {
		return nil, err
	}
	ctx.sync()
	return cache.Eval(ctx.store, &ctx.versions, "generalized_contact_forces",
		[]cache.Ticket{cache.Configuration, cache.Velocity, cache.Parameters},
		func() ([]float64, error) {
			ev, err := p.evalContactForces(ctx, "generalized contact forces output")
			if err != nil {
				return nil, err
			}
			pc, err := p.evalPositionKinematics(ctx)
			if err != nil {
				return nil, err
			}
			nv := p.tree.NumVelocities()
			zero := make([]float64, nv)
			id := p.tree.CalcInverseDynamics(pc, zero, zero, ev.Forces.Body, ev.Forces.Generalized, true)
			tau := make([]float64, nv)
			for i := range tau {
				tau[i] = -id.Tau[i]
			}
			return tau, nil
		})
}

// EvalInstanceGeneralizedContactForces slices the generalized contact
// forces to one model instance's velocity block.
func (p *Plant) EvalInstanceGeneralizedContactForces(ctx *Context, instance tree.ModelInstanceIndex) ([]float64, error) {
	tau, err := p.EvalGeneralizedContactForces(ctx)
	if err != nil {
		return nil, err
	}
	idx := p.tree.InstanceVelocityIndices(instance)
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = tau[i]
	}
	return out, nil
}
