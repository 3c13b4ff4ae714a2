package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/orbprop/internal/propagation"
	"github.com/soniakeys/meeus/v3/julian"
	"gonum.org/v1/gonum/mat"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
	matricesFile = "matrices.json"
)

var stateHeader = []string{"t", "x", "y", "z", "vx", "vy", "vz", "mass"}

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
	ID         string             `json:"id"`
	Scenario   string             `json:"scenario"`
	Timestamp  time.Time          `json:"timestamp"`
	Epoch      time.Time          `json:"epoch"`
	EpochJD    float64            `json:"epoch_jd"`
	Duration   float64            `json:"duration"`
	Integrator string             `json:"integrator"`
	OrbitType  string             `json:"orbit_type"`
	Samples    int                `json:"samples"`
	FinalMass  float64            `json:"final_mass"`
	Columns    []string           `json:"columns,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Sample is one output state: seconds since the epoch, then Cartesian
// position, velocity and mass.
type Sample struct {
	T     float64
	State [propagation.PrimaryDim]float64
}

// NewSample records s relative to epoch.
func NewSample(epoch time.Time, s propagation.SpacecraftState) Sample {
	out := Sample{T: s.Date().Sub(epoch).Seconds()}
	propagation.PrimaryArray(s, out.State[:])
	return out
}

// Matrices are the state transition matrix and parameter Jacobian of the
// final state, expressed in OrbitType.
type Matrices struct {
	Name      string      `json:"name"`
	OrbitType string      `json:"orbit_type"`
	STM       [][]float64 `json:"stm"`
	Columns   []string    `json:"columns,omitempty"`
	Jacobian  [][]float64 `json:"jacobian,omitempty"`
}

// Rows copies a matrix into row slices. A nil matrix gives nil.
func Rows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

// Save writes a new run and returns its ID. matrices may be nil.
func (s *Store) Save(meta RunMetadata, samples []Sample, matrices *Matrices) (string, error) {
	meta.ID = uuid.NewString()
	meta.Timestamp = time.Now()
	meta.EpochJD = julian.TimeToJD(meta.Epoch.UTC())
	meta.Samples = len(samples)
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if matrices != nil {
		if err := writeJSON(filepath.Join(runDir, matricesFile), matrices); err != nil {
			return "", err
		}
	}

	csvFile, err := os.Create(filepath.Join(runDir, statesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(stateHeader); err != nil {
		return "", err
	}
	for _, smp := range samples {
		row := []string{strconv.FormatFloat(smp.T, 'f', 6, 64)}
		for _, val := range smp.State {
			row = append(row, strconv.FormatFloat(val, 'g', 17, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// List returns the stored runs, oldest first. Unreadable runs are skipped.
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
		var meta RunMetadata
		if err := readJSON(filepath.Join(s.baseDir, entry.Name(), metadataFile), &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	if err := uuid.Validate(runID); err != nil {
		return nil, fmt.Errorf("storage: run id %q: %w", runID, err)
	}
	var meta RunMetadata
	if err := readJSON(filepath.Join(s.baseDir, runID, metadataFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadMatrices returns the final matrices of a run, or nil when the run
// did not compute them.
func (s *Store) LoadMatrices(runID string) (*Matrices, error) {
	var m Matrices
	err := readJSON(filepath.Join(s.baseDir, runID, matricesFile), &m)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) LoadStates(runID string) ([]Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(stateHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Sample{}, nil
	}

	samples := make([]Sample, 0, len(records)-1)
	for i, record := range records[1:] {
		var smp Sample
		if smp.T, err = strconv.ParseFloat(record[0], 64); err != nil {
			return nil, fmt.Errorf("storage: %s line %d: %w", statesFile, i+2, err)
		}
		for j := range smp.State {
			if smp.State[j], err = strconv.ParseFloat(record[j+1], 64); err != nil {
				return nil, fmt.Errorf("storage: %s line %d: %w", statesFile, i+2, err)
			}
		}
		samples = append(samples, smp)
	}
	return samples, nil
}
