package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/mbplant/internal/sim"
)

// ExportData is the flat JSON form of one run, convenient for external
// plotting tools.
type ExportData struct {
	Scene        string      `json:"scene"`
	Solver       string      `json:"solver"`
	ContactModel string      `json:"contact_model"`
	Dt           float64     `json:"dt"`
	Duration     float64     `json:"duration"`
	Steps        int         `json:"steps"`
	Times        []float64   `json:"times"`
	Positions    [][]float64 `json:"positions"`
	Velocities   [][]float64 `json:"velocities"`
}

func buildExport(scene, solver, contactModel string, dt, duration float64, result *sim.Result) ExportData {
	data := ExportData{
		Scene:        scene,
		Solver:       solver,
		ContactModel: contactModel,
		Dt:           dt,
		Duration:     duration,
		Steps:        result.StepsTaken,
		Times:        make([]float64, len(result.Samples)),
		Positions:    make([][]float64, len(result.Samples)),
		Velocities:   make([][]float64, len(result.Samples)),
	}
	for i, sample := range result.Samples {
		data.Times[i] = sample.Time
		data.Positions[i] = sample.Q
		data.Velocities[i] = sample.V
	}
	return data
}

func ExportJSON(path string, scene, solver, contactModel string, dt, duration float64, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return writeExport(file, scene, solver, contactModel, dt, duration, result)
}

func ExportJSONStdout(scene, solver, contactModel string, dt, duration float64, result *sim.Result) error {
	return writeExport(os.Stdout, scene, solver, contactModel, dt, duration, result)
}

func writeExport(w io.Writer, scene, solver, contactModel string, dt, duration float64, result *sim.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(buildExport(scene, solver, contactModel, dt, duration, result))
}
