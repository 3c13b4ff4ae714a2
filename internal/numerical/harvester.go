package numerical

import (
	"fmt"

	"github.com/san-kum/orbprop/internal/orbit"
	"github.com/san-kum/orbprop/internal/propagation"
	"gonum.org/v1/gonum/mat"
)

// Harvester extracts the state transition matrix and the parameter
// Jacobian from propagated states. Matrices are integrated in Cartesian
// coordinates and converted to the propagator's orbit type on extraction.
//
// The matrix dimension is 7 when the initial matrix is 7x7 or when a force
// model changes the mass, 6 otherwise. It is frozen by the first
// propagation.
type Harvester struct {
	p              *Propagator
	stmName        string
	initialSTM     *mat.Dense
	initialColumns map[string][]float64
	n              int
	columns        []string
}

func newHarvester(p *Propagator, name string, stm *mat.Dense, columns map[string][]float64) (*Harvester, error) {
	h := &Harvester{p: p, stmName: name, initialColumns: make(map[string][]float64, len(columns))}
	if stm != nil {
		r, c := stm.Dims()
		if r != c || (r != 6 && r != propagation.PrimaryDim) {
			return nil, propagation.NewError(propagation.DimensionMismatch, fmt.Sprintf("%dx%d", r, c), "6x6 or 7x7")
		}
		h.initialSTM = mat.DenseCopyOf(stm)
		h.n = r
	}
	for name, col := range columns {
		if len(col) != 6 && len(col) != propagation.PrimaryDim {
			return nil, propagation.NewError(propagation.DimensionMismatch, len(col), "6 or 7")
		}
		if h.n != 0 && len(col) != h.n {
			return nil, propagation.NewError(propagation.DimensionMismatch, len(col), h.n)
		}
		h.initialColumns[name] = append([]float64(nil), col...)
	}
	return h, nil
}

func (h *Harvester) STMName() string                    { return h.stmName }
func (h *Harvester) OrbitType() orbit.Type              { return h.p.orbitType }
func (h *Harvester) PositionAngle() orbit.PositionAngle { return h.p.angle }

func (h *Harvester) StateDimension() int {
	if h.n != 0 {
		return h.n
	}
	if agg, err := h.p.aggregator(); err == nil && agg.DepletesMass() {
		return propagation.PrimaryDim
	}
	return 6
}

// JacobiansColumnsNames returns the span names of the selected drivers of
// the propagator's force models.
func (h *Harvester) JacobiansColumnsNames() []string {
	agg, err := h.p.aggregator()
	if err != nil {
		return nil
	}
	var names []string
	for _, d := range agg.Drivers() {
		if d.IsSelected() {
			names = append(names, d.SpanNames()...)
		}
	}
	return names
}

func (h *Harvester) frozenColumns() []string { return h.columns }

func (h *Harvester) InitialStateTransitionMatrix() *mat.Dense {
	if h.initialSTM != nil {
		return mat.DenseCopyOf(h.initialSTM)
	}
	n := h.StateDimension()
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// InitialJacobianColumn returns the initial column of a span, zero unless
// one was given at setup.
func (h *Harvester) InitialJacobianColumn(name string) []float64 {
	if c, ok := h.initialColumns[name]; ok {
		return append([]float64(nil), c...)
	}
	return make([]float64, h.StateDimension())
}

// StateTransitionMatrix returns dY(t)/dY(t0) in the harvester's orbit
// type, or nil when s carries no matrix.
func (h *Harvester) StateTransitionMatrix(s propagation.SpacecraftState) *mat.Dense {
	const n7 = propagation.PrimaryDim
	phi, err := s.AdditionalState(h.stmName)
	if err != nil || len(phi) != stmDim {
		return nil
	}
	out := h.toElements(s.Orbit(), mat.NewDense(n7, n7, phi))
	n := h.StateDimension()
	return mat.DenseCopyOf(out.Slice(0, n, 0, n))
}

// ParametersJacobian returns dY(t)/dp with one column per selected span,
// or nil when no parameter is selected or s lacks a column.
func (h *Harvester) ParametersJacobian(s propagation.SpacecraftState) *mat.Dense {
	const n7 = propagation.PrimaryDim
	names := h.JacobiansColumnsNames()
	if len(names) == 0 {
		return nil
	}
	cart := mat.NewDense(n7, len(names), nil)
	for k, name := range names {
		col, err := s.AdditionalState(name)
		if err != nil || len(col) != n7 {
			return nil
		}
		cart.SetCol(k, col)
	}
	out := h.toElements(s.Orbit(), cart)
	return mat.DenseCopyOf(out.Slice(0, h.StateDimension(), 0, len(names)))
}

// prepare freezes the dimension and the column list, and adds the initial
// matrices to s0 unless it already carries them.
func (h *Harvester) prepare(r *run, s0 propagation.SpacecraftState) (*matrices, propagation.SpacecraftState, error) {
	const n7 = propagation.PrimaryDim
	if h.n == 0 {
		h.n = h.StateDimension()
	}
	for _, col := range h.initialColumns {
		if len(col) != h.n {
			return nil, s0, propagation.NewError(propagation.DimensionMismatch, len(col), h.n)
		}
	}
	columns := h.JacobiansColumnsNames()
	for _, c := range columns {
		if c == h.stmName {
			return nil, s0, propagation.NewError(propagation.NameConflict, c)
		}
	}
	h.columns = columns

	if !s0.HasAdditionalState(h.stmName) {
		m0 := mat.NewDense(n7, n7, nil)
		m0.Set(n7-1, n7-1, 1)
		init := h.InitialStateTransitionMatrix()
		for i := 0; i < h.n; i++ {
			for j := 0; j < h.n; j++ {
				m0.Set(i, j, init.At(i, j))
			}
		}
		phi, err := h.toCartesian(s0.Orbit(), m0)
		if err != nil {
			return nil, s0, err
		}
		s0 = s0.WithAdditionalState(h.stmName, phi.RawMatrix().Data...)
	}
	for _, c := range columns {
		if s0.HasAdditionalState(c) {
			continue
		}
		el := make([]float64, n7)
		copy(el, h.InitialJacobianColumn(c))
		col, err := h.toCartesian(s0.Orbit(), mat.NewDense(n7, 1, el))
		if err != nil {
			return nil, s0, err
		}
		s0 = s0.WithAdditionalState(c, col.RawMatrix().Data...)
	}
	return newMatrices(r, h.stmName, columns), s0, nil
}

func pad(j *mat.Dense) *mat.Dense {
	const n7 = propagation.PrimaryDim
	out := mat.NewDense(n7, n7, nil)
	out.Slice(0, 6, 0, 6).(*mat.Dense).Copy(j)
	out.Set(n7-1, n7-1, 1)
	return out
}

// toCartesian maps element space matrices (7 rows) to Cartesian ones.
func (h *Harvester) toCartesian(o orbit.Orbit, m *mat.Dense) (*mat.Dense, error) {
	if h.p.orbitType == orbit.Cartesian {
		return mat.DenseCopyOf(m), nil
	}
	inv, err := orbit.JacobianWrtParameters(o, h.p.orbitType, h.p.angle)
	if err != nil {
		return nil, propagation.NewError(propagation.SingularJacobian, h.p.orbitType)
	}
	var out mat.Dense
	out.Mul(pad(inv), m)
	return &out, nil
}

func (h *Harvester) toElements(o orbit.Orbit, m *mat.Dense) *mat.Dense {
	if h.p.orbitType == orbit.Cartesian {
		return m
	}
	var out mat.Dense
	out.Mul(pad(orbit.JacobianWrtCartesian(o, h.p.orbitType, h.p.angle)), m)
	return &out
}
