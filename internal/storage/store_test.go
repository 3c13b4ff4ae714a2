package storage

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/orbprop/internal/orbit"
	"github.com/san-kum/orbprop/internal/propagation"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var epoch = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	o := orbit.NewCartesian(r3.Vec{X: 7e6, Y: 1.5}, r3.Vec{Y: 7546.0493}, epoch.Add(90*time.Second), orbit.EME2000, orbit.EarthMu)
	samples := []Sample{
		{T: 0, State: [7]float64{7e6, 0, 0, 0, 7546, 0, 1000}},
		NewSample(epoch, propagation.NewStateFromOrbit(o)),
	}
	matrices := &Matrices{
		Name:      "stm",
		OrbitType: "keplerian",
		STM:       Rows(mat.NewDense(2, 2, []float64{1, 2, 3, 4})),
		Columns:   []string{"Spandrag coefficient0"},
		Jacobian:  [][]float64{{0.5}, {0.25}},
	}

	id, err := st.Save(RunMetadata{Scenario: "leo", Epoch: epoch, Duration: 90}, samples, matrices)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := uuid.Validate(id); err != nil {
		t.Errorf("run id %q is not a uuid: %v", id, err)
	}

	meta, err := st.Load(id)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Scenario != "leo" || meta.Samples != 2 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.EpochJD != 2451545.0 {
		t.Errorf("epoch julian date %v, want 2451545", meta.EpochJD)
	}

	got, err := st.LoadStates(id)
	if err != nil {
		t.Fatalf("load states failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[1].T != 90 || got[1].State != samples[1].State {
		t.Errorf("sample %+v, want %+v", got[1], samples[1])
	}
	if got[1].State[6] != propagation.DefaultMass {
		t.Errorf("mass %v", got[1].State[6])
	}

	m, err := st.LoadMatrices(id)
	if err != nil {
		t.Fatalf("load matrices failed: %v", err)
	}
	if m == nil || m.STM[1][0] != 3 || m.Jacobian[1][0] != 0.25 {
		t.Errorf("matrices %+v", m)
	}
}

func TestStoreWithoutMatrices(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	id, err := st.Save(RunMetadata{Scenario: "geo", Epoch: epoch}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	m, err := st.LoadMatrices(id)
	if err != nil || m != nil {
		t.Errorf("matrices = %v, %v; want none", m, err)
	}
	samples, err := st.LoadStates(id)
	if err != nil || len(samples) != 0 {
		t.Errorf("samples = %v, %v; want none", samples, err)
	}
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	first, err := st.Save(RunMetadata{Scenario: "a", Epoch: epoch}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := st.Save(RunMetadata{Scenario: "b", Epoch: epoch}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != first || runs[1].ID != second {
		t.Errorf("runs out of order: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestStoreListMissingDir(t *testing.T) {
	runs, err := New(filepath.Join(t.TempDir(), "none")).List()
	if err != nil || len(runs) != 0 {
		t.Errorf("List() = %v, %v", runs, err)
	}
}

func TestStoreLoadInvalidID(t *testing.T) {
	if _, err := New(t.TempDir()).Load("../etc"); err == nil {
		t.Error("expected an error for a non uuid id")
	}
}

func TestRows(t *testing.T) {
	if Rows(nil) != nil {
		t.Error("rows of a nil matrix")
	}
	r := Rows(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, math.Pi}))
	if len(r) != 2 || len(r[1]) != 3 || r[1][2] != math.Pi {
		t.Errorf("rows %v", r)
	}
}
