package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/mbplant/internal/sim"
)

const (
	plotHeight = 10
	plotWidth  = 80
)

// PlotSeries renders one series as an ascii chart with a caption.
func PlotSeries(data []float64, caption string) string {
	if len(data) == 0 {
		return "no data"
	}
	return asciigraph.Plot(data,
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(caption),
	)
}

// PositionSeries extracts one generalized-position coordinate over a run.
func PositionSeries(result *sim.Result, coord int) []float64 {
	out := make([]float64, 0, len(result.Samples))
	for _, s := range result.Samples {
		if coord < len(s.Q) {
			out = append(out, s.Q[coord])
		}
	}
	return out
}

// VelocitySeries extracts one generalized-velocity coordinate over a run.
func VelocitySeries(result *sim.Result, coord int) []float64 {
	out := make([]float64, 0, len(result.Samples))
	for _, s := range result.Samples {
		if coord < len(s.V) {
			out = append(out, s.V[coord])
		}
	}
	return out
}

// ContactForceSeries sums the upward normal force over all recorded contacts
// at each sample.
func ContactForceSeries(result *sim.Result) []float64 {
	out := make([]float64, 0, len(result.Contacts))
	for _, cr := range result.Contacts {
		var fz float64
		for _, info := range cr.PointPairs {
			fz += info.ForceOnB[2]
		}
		for _, info := range cr.Hydroelastic {
			fz += info.ForceOnMAtCentroid.Trans[2]
		}
		out = append(out, fz)
	}
	return out
}

// PositionPlot charts q[coord] against the step index.
func PositionPlot(result *sim.Result, coord int) string {
	return PlotSeries(PositionSeries(result, coord), fmt.Sprintf("q%d vs time", coord))
}

// VelocityPlot charts v[coord] against the step index.
func VelocityPlot(result *sim.Result, coord int) string {
	return PlotSeries(VelocitySeries(result, coord), fmt.Sprintf("v%d vs time", coord))
}

// ContactForcePlot charts the total contact normal force over a run.
func ContactForcePlot(result *sim.Result) string {
	return PlotSeries(ContactForceSeries(result), "total contact fz vs time")
}
