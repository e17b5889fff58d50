package viz

import (
	"math"

	"github.com/san-kum/mbplant/internal/geometry"
	"github.com/san-kum/mbplant/internal/plant"
)

// SideView sketches the scene's x-z plane onto a braille canvas: a ground
// line when a world half-space is registered, collision geometry outlines
// for everything else. scale is sub-pixels per meter.
func SideView(p *plant.Plant, ctx *plant.Context, width, height int, scale float64) (string, error) {
	poses, err := p.EvalBodyPoses(ctx)
	if err != nil {
		return "", err
	}

	canvas := NewCanvas(width, height)
	subW := width * 2
	subH := height * 4

	// World x = 0 maps to the horizontal center; world z = 0 sits at
	// three-quarters height so falling bodies stay in frame.
	groundY := subH * 3 / 4
	toPx := func(x float64) int { return subW/2 + int(math.Round(x*scale)) }
	toPy := func(z float64) int { return groundY - int(math.Round(z*scale)) }

	drewAny := false
	for _, g := range p.Registry().CollisionGeometries() {
		pose := poses[g.Body].Mul(g.XBG)
		switch shape := g.Shape.(type) {
		case geometry.HalfSpace:
			canvas.DrawLine(0, toPy(pose.P[2]), subW-1, toPy(pose.P[2]))
		case geometry.Sphere:
			canvas.DrawCircle(toPx(pose.P[0]), toPy(pose.P[2]), int(math.Round(shape.Radius*scale)))
		case geometry.Box:
			hx := int(math.Round(shape.Lx / 2 * scale))
			hz := int(math.Round(shape.Lz / 2 * scale))
			canvas.DrawRect(toPx(pose.P[0])-hx, toPy(pose.P[2])-hz,
				toPx(pose.P[0])+hx, toPy(pose.P[2])+hz)
		}
		drewAny = true
	}

	if !drewAny {
		// No geometry registered; mark each body origin instead.
		for b, pose := range poses {
			if b == 0 {
				continue
			}
			canvas.Set(toPx(pose.P[0]), toPy(pose.P[2]))
		}
	}

	return canvas.String(), nil
}
