package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/mbplant/internal/sim"
)

// Store persists runs under baseDir, one directory per run: metadata.json,
// states.csv and, when contact was recorded, contacts.csv.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID            string    `json:"id"`
	Scene         string    `json:"scene"`
	Timestamp     time.Time `json:"timestamp"`
	Dt            float64   `json:"dt"`
	Duration      float64   `json:"duration"`
	Solver        string    `json:"solver"`
	ContactModel  string    `json:"contact_model"`
	Steps         int       `json:"steps"`
	NumPositions  int       `json:"num_positions"`
	NumVelocities int       `json:"num_velocities"`
}

func (s *Store) Save(scene, solver, contactModel string, dt, duration float64, result *sim.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", scene, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:           runID,
		Scene:        scene,
		Timestamp:    time.Now(),
		Dt:           dt,
		Duration:     duration,
		Solver:       solver,
		ContactModel: contactModel,
		Steps:        result.StepsTaken,
	}
	if len(result.Samples) > 0 {
		meta.NumPositions = len(result.Samples[0].Q)
		meta.NumVelocities = len(result.Samples[0].V)
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := s.writeStates(runDir, result); err != nil {
		return "", err
	}
	if len(result.Contacts) > 0 {
		if err := s.writeContacts(runDir, result); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func (s *Store) writeStates(runDir string, result *sim.Result) error {
	file, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if len(result.Samples) == 0 {
		return nil
	}

	header := []string{"time"}
	for i := range result.Samples[0].Q {
		header = append(header, fmt.Sprintf("q%d", i))
	}
	for i := range result.Samples[0].V {
		header = append(header, fmt.Sprintf("v%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, sample := range result.Samples {
		row := []string{strconv.FormatFloat(sample.Time, 'f', 6, 64)}
		for _, val := range sample.Q {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		for _, val := range sample.V {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// writeContacts summarizes each recorded instant: contact counts plus the
// total upward normal force across all contacts.
func (s *Store) writeContacts(runDir string, result *sim.Result) error {
	file, err := os.Create(filepath.Join(runDir, "contacts.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"time", "point_pairs", "surfaces", "total_fz"}); err != nil {
		return err
	}

	for i, cr := range result.Contacts {
		var fz float64
		for _, info := range cr.PointPairs {
			fz += info.ForceOnB[2]
		}
		for _, info := range cr.Hydroelastic {
			fz += info.ForceOnMAtCentroid.Trans[2]
		}
		row := []string{
			strconv.FormatFloat(result.Samples[i].Time, 'f', 6, 64),
			strconv.Itoa(cr.NumPointPairContacts()),
			strconv.Itoa(cr.NumHydroelasticContacts()),
			strconv.FormatFloat(fz, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadStates reads a run's trajectory back: per-sample state rows (q then v)
// and the matching times.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		state := make([]float64, 0, len(record)-1)
		for _, field := range record[1:] {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				continue
			}
			state = append(state, val)
		}
		times = append(times, t)
		states = append(states, state)
	}
	return states, times, nil
}
