package storage

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/mbplant/internal/contact"
	"github.com/san-kum/mbplant/internal/sim"
	"github.com/san-kum/mbplant/internal/spatial"
)

func sampleResult() *sim.Result {
	return &sim.Result{
		Samples: []sim.Sample{
			{Time: 0, Q: []float64{1, 0, 0, 0, 0, 0, 1}, V: []float64{0, 0, 0, 0, 0, 0}},
			{Time: 0.001, Q: []float64{1, 0, 0, 0, 0, 0, 0.999}, V: []float64{0, 0, 0, 0, 0, -0.00981}},
		},
		StepsTaken: 1,
	}
}

func TestSaveAndList(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	runID, err := store.Save("ball_drop", "tamsi", "point", 1e-3, 0.001, sampleResult())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	runs, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].ID != runID || runs[0].Scene != "ball_drop" || runs[0].Solver != "tamsi" {
		t.Errorf("unexpected metadata: %+v", runs[0])
	}
	if runs[0].Steps != 1 {
		t.Errorf("steps = %d, want 1", runs[0].Steps)
	}
}

func TestListEmptyDir(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "absent"))
	runs, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("runs = %d, want 0", len(runs))
	}
}

func TestLoadStatesRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	result := sampleResult()

	runID, err := store.Save("ball_drop", "tamsi", "point", 1e-3, 0.001, result)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	states, times, err := store.LoadStates(runID)
	if err != nil {
		t.Fatalf("LoadStates: %v", err)
	}
	if len(states) != 2 || len(times) != 2 {
		t.Fatalf("states = %d, times = %d, want 2 each", len(states), len(times))
	}
	if math.Abs(times[1]-0.001) > 1e-9 {
		t.Errorf("time[1] = %g, want 0.001", times[1])
	}
	// Row layout is q then v.
	nq := len(result.Samples[0].Q)
	if got := states[1][nq+5]; math.Abs(got-(-0.00981)) > 1e-9 {
		t.Errorf("vz = %g, want -0.00981", got)
	}
}

func TestSaveContactSummary(t *testing.T) {
	store := New(t.TempDir())
	result := sampleResult()
	result.Contacts = []*contact.Results{
		{PointPairs: []contact.PointPairContactInfo{{ForceOnB: spatial.V3(0, 0, 9.81)}}},
		{},
	}

	runID, err := store.Save("box_rest", "tamsi", "point", 1e-3, 0.001, result)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.baseDir, runID, "contacts.csv")); err != nil {
		t.Fatalf("contacts.csv not written: %v", err)
	}
}

func TestLoadMissingRun(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Load("nope"); err == nil {
		t.Error("expected error for missing run")
	}
	if _, _, err := store.LoadStates("nope"); err == nil {
		t.Error("expected error for missing states")
	}
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	result := sampleResult()

	if err := ExportJSON(path, "ball_drop", "tamsi", "point", 1e-3, 0.001, result); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var exported ExportData
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if exported.Scene != "ball_drop" || exported.Steps != 1 {
		t.Errorf("unexpected export: scene=%q steps=%d", exported.Scene, exported.Steps)
	}
	if len(exported.Positions) != 2 || len(exported.Positions[1]) != 7 {
		t.Errorf("positions shape wrong: %v", exported.Positions)
	}
}
