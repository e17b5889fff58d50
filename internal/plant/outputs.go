package plant

import (
	"github.com/san-kum/mbplant/internal/geometry"
	"github.com/san-kum/mbplant/internal/spatial"
	"github.com/san-kum/mbplant/internal/tree"
)

// EvalBodyPoses is the pose output: world pose per body, indexed by body.
func (p *Plant) EvalBodyPoses(ctx *Context) ([]spatial.Pose, error) {
	if err := p.postFinalize("EvalBodyPoses"); err != nil {
		return nil, err
	}
	pc, err := p.evalPositionKinematics(ctx)
	if err != nil {
		return nil, err
	}
	return pc.XWB, nil
}

// EvalBodyVelocities is the spatial-velocity output, indexed by body.
func (p *Plant) EvalBodyVelocities(ctx *Context) ([]spatial.Velocity, error) {
	if err := p.postFinalize("EvalBodyVelocities"); err != nil {
		return nil, err
	}
	vc, err := p.evalVelocityKinematics(ctx)
	if err != nil {
		return nil, err
	}
	return vc.VWB, nil
}

// EvalGeometryPoses is the geometry-pose output: world pose per registered
// geometry, in registration order.
func (p *Plant) EvalGeometryPoses(ctx *Context) (map[geometry.GeometryID]spatial.Pose, error) {
	if err := p.postFinalize("EvalGeometryPoses"); err != nil {
		return nil, err
	}
	pc, err := p.evalPositionKinematics(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[geometry.GeometryID]spatial.Pose, p.reg.NumGeometries())
	for id := 0; id < p.reg.NumGeometries(); id++ {
		g, err := p.reg.Geometry(geometry.GeometryID(id))
		if err != nil {
			return nil, err
		}
		out[g.ID] = pc.XWB[g.Body].Mul(g.XBG)
	}
	return out, nil
}

// InstancePositions slices q to one model instance's joint coordinates, in
// joint order.
func (p *Plant) InstancePositions(ctx *Context, instance tree.ModelInstanceIndex) []float64 {
	var out []float64
	for i := 0; i < p.tree.NumJoints(); i++ {
		j := p.tree.Joint(tree.JointIndex(i))
		if j.Instance != instance {
			continue
		}
		out = append(out, ctx.q[j.PositionStart():j.PositionStart()+j.NumPositions()]...)
	}
	return out
}

// InstanceVelocities slices v to one model instance's velocity block.
func (p *Plant) InstanceVelocities(ctx *Context, instance tree.ModelInstanceIndex) []float64 {
	idx := p.tree.InstanceVelocityIndices(instance)
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = ctx.v[i]
	}
	return out
}
