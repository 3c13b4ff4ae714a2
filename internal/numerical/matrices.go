package numerical

import (
	"time"

	"github.com/go-kit/log/level"
	"github.com/san-kum/orbprop/internal/dual"
	"github.com/san-kum/orbprop/internal/dynamo"
	"github.com/san-kum/orbprop/internal/forces"
	"github.com/san-kum/orbprop/internal/orbit"
	"github.com/san-kum/orbprop/internal/params"
	"github.com/san-kum/orbprop/internal/propagation"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const stmDim = propagation.PrimaryDim * propagation.PrimaryDim

// Finite difference steps for models without dual number support.
const (
	fdPosition = 1.0  // m
	fdVelocity = 1e-3 // m/s
	fdMass     = 1e-6 // relative
)

// matrices integrates the Cartesian state transition matrix and Jacobian
// columns of one propagation. The STM block is the first integrated block,
// followed by the columns in order.
type matrices struct {
	r       *run
	stmName string
	columns []string
	index   map[string]int

	// partials of the last evaluated state, shared by the STM and the
	// columns within one derivative evaluation
	cached bool
	date   time.Time
	key    [propagation.PrimaryDim]float64
	a, b   *mat.Dense
}

func newMatrices(r *run, stmName string, columns []string) *matrices {
	m := &matrices{r: r, stmName: stmName, columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		m.index[c] = i
	}
	return m
}

func (m *matrices) providers() []propagation.AdditionalDerivativesProvider {
	out := []propagation.AdditionalDerivativesProvider{&stmGenerator{m: m}}
	for i, c := range m.columns {
		out = append(out, &columnGenerator{m: m, name: c, index: i})
	}
	return out
}

// partials returns A = df/dy (7x7) and B = df/dp (7 x columns) at s.
func (m *matrices) partials(s propagation.SpacecraftState) (*mat.Dense, *mat.Dense) {
	var key [propagation.PrimaryDim]float64
	propagation.PrimaryArray(s, key[:])
	if m.cached && m.key == key && m.date.Equal(s.Date()) {
		return m.a, m.b
	}
	m.a, m.b = m.compute(s)
	m.cached, m.key, m.date = true, key, s.Date()
	return m.a, m.b
}

func (m *matrices) compute(s propagation.SpacecraftState) (*mat.Dense, *mat.Dense) {
	const n = propagation.PrimaryDim
	date := s.Date()
	nc := len(m.columns)
	dirs := n + nc

	a := mat.NewDense(n, n, nil)
	a.Set(0, 3, 1)
	a.Set(1, 4, 1)
	a.Set(2, 5, 1)
	var b *mat.Dense
	if nc > 0 {
		b = mat.NewDense(n, nc, nil)
	}

	o := s.Orbit()
	g := forces.GradientState{
		Date:     date,
		Position: dual.VecVariable(o.Position, dirs, 0),
		Velocity: dual.VecVariable(o.Velocity, dirs, 3),
		Mass:     dual.Variable(s.Mass(), dirs, 6),
	}
	agg := m.r.agg
	values := agg.Values(date)
	for i, model := range agg.Models() {
		drivers := agg.ModelDrivers(i)
		cols := make([]int, len(drivers))
		dv := make([]dual.Number, len(drivers))
		for k, d := range drivers {
			cols[k] = -1
			if d.IsSelected() {
				if c, ok := m.index[d.SpanNameAt(date)]; ok {
					cols[k] = c
				}
			}
			if cols[k] >= 0 {
				dv[k] = dual.Variable(values[i][k], dirs, n+cols[k])
			} else {
				dv[k] = dual.Constant(values[i][k], dirs)
			}
		}

		if dm, ok := model.(forces.Differentiable); ok {
			acc := dm.AccelerationDual(g, dv)
			accumulate(a, b, 3, acc.X)
			accumulate(a, b, 4, acc.Y)
			accumulate(a, b, 5, acc.Z)
		} else {
			finiteDifferences(a, b, model, s, values[i], drivers, cols)
		}
		if md, ok := model.(forces.MassDepleting); ok {
			accumulate(a, b, 6, md.MassRateDual(g, dv))
		}
	}
	return a, b
}

func accumulate(a, b *mat.Dense, row int, x dual.Number) {
	const n = propagation.PrimaryDim
	for j := 0; j < n; j++ {
		a.Set(row, j, a.At(row, j)+x.D(j))
	}
	if b == nil {
		return
	}
	_, nc := b.Dims()
	for c := 0; c < nc; c++ {
		b.Set(row, c, b.At(row, c)+x.D(n+c))
	}
}

func axis(j int) r3.Vec {
	switch j {
	case 0:
		return r3.Vec{X: 1}
	case 1:
		return r3.Vec{Y: 1}
	default:
		return r3.Vec{Z: 1}
	}
}

// finiteDifferences adds the central difference partials of a model's
// acceleration to rows 3-5.
func finiteDifferences(a, b *mat.Dense, model forces.Model, s propagation.SpacecraftState, values []float64, drivers []*params.Driver, cols []int) {
	o := s.Orbit()
	eval := func(pos, vel r3.Vec, mass float64, v []float64) r3.Vec {
		ps := s.WithOrbit(orbit.NewCartesian(pos, vel, o.Date, o.Frame, o.Mu)).WithMass(mass)
		return model.Acceleration(ps, v)
	}
	add := func(m *mat.Dense, col int, plus, minus r3.Vec, h float64) {
		d := r3.Scale(1/(2*h), r3.Sub(plus, minus))
		m.Set(3, col, m.At(3, col)+d.X)
		m.Set(4, col, m.At(4, col)+d.Y)
		m.Set(5, col, m.At(5, col)+d.Z)
	}

	for j := 0; j < 3; j++ {
		dp := r3.Scale(fdPosition, axis(j))
		add(a, j, eval(r3.Add(o.Position, dp), o.Velocity, s.Mass(), values),
			eval(r3.Sub(o.Position, dp), o.Velocity, s.Mass(), values), fdPosition)
	}
	if !model.DependsOnPositionOnly() {
		for j := 0; j < 3; j++ {
			dv := r3.Scale(fdVelocity, axis(j))
			add(a, 3+j, eval(o.Position, r3.Add(o.Velocity, dv), s.Mass(), values),
				eval(o.Position, r3.Sub(o.Velocity, dv), s.Mass(), values), fdVelocity)
		}
		hm := fdMass * s.Mass()
		add(a, 6, eval(o.Position, o.Velocity, s.Mass()+hm, values),
			eval(o.Position, o.Velocity, s.Mass()-hm, values), hm)
	}
	for k, c := range cols {
		if c < 0 {
			continue
		}
		h := drivers[k].Scale()
		plus := append([]float64(nil), values...)
		minus := append([]float64(nil), values...)
		plus[k] += h
		minus[k] -= h
		add(b, c, eval(o.Position, o.Velocity, s.Mass(), plus),
			eval(o.Position, o.Velocity, s.Mass(), minus), h)
	}
}

// correct applies the jump of the matrices across a switch of the
// dynamics. With f- and f+ the primary derivatives before and after the
// switch and g the switching function,
//
//	C  = I + (f+ - f-) dg/dy / gdot,  gdot = dg/dt + dg/dy f-
//	Φ+ = C Φ-
//	S+ = C S- + (f+ - f-) dg/dp / gdot
func (m *matrices) correct(y dynamo.State, before, after [propagation.PrimaryDim]float64, sp propagation.SwitchPartials) {
	const n = propagation.PrimaryDim
	gdot := sp.DgDt
	for k := range before {
		gdot += sp.DgDy[k] * before[k]
	}
	if gdot == 0 {
		level.Warn(m.r.p.logger).Log("msg", "switch with zero rate, matrices not corrected")
		return
	}
	df := make([]float64, n)
	for k := range df {
		df[k] = after[k] - before[k]
	}
	dfv := mat.NewVecDense(n, df)
	dgdy := sp.DgDy
	c := mat.NewDense(n, n, nil)
	for k := 0; k < n; k++ {
		c.Set(k, k, 1)
	}
	c.RankOne(c, 1/gdot, dfv, mat.NewVecDense(n, dgdy[:]))

	stm := m.r.blocks[0]
	var phi mat.Dense
	phi.Mul(c, mat.NewDense(n, n, y[stm.offset:stm.offset+stmDim]))
	copy(y[stm.offset:], phi.RawMatrix().Data)

	for i, name := range m.columns {
		b := m.r.blocks[1+i]
		var col mat.VecDense
		col.MulVec(c, mat.NewVecDense(n, y[b.offset:b.offset+n]))
		col.AddScaledVec(&col, sp.DgDp[name]/gdot, dfv)
		for k := 0; k < n; k++ {
			y[b.offset+k] = col.AtVec(k)
		}
	}
}

// stmGenerator integrates dΦ/dt = A Φ.
type stmGenerator struct {
	m *matrices
}

func (g *stmGenerator) Name() string                                      { return g.m.stmName }
func (g *stmGenerator) Dimension() int                                    { return stmDim }
func (g *stmGenerator) Init(propagation.SpacecraftState, time.Time) error { return nil }
func (g *stmGenerator) Yields(propagation.SpacecraftState) bool           { return false }

func (g *stmGenerator) Derivatives(s propagation.SpacecraftState) (propagation.CombinedDerivatives, error) {
	phi, err := s.AdditionalState(g.m.stmName)
	if err != nil {
		return propagation.CombinedDerivatives{}, err
	}
	a, _ := g.m.partials(s)
	var d mat.Dense
	d.Mul(a, mat.NewDense(propagation.PrimaryDim, propagation.PrimaryDim, phi))
	return propagation.CombinedDerivatives{Additional: d.RawMatrix().Data}, nil
}

// columnGenerator integrates dS/dt = A S + b for one parameter span. It
// waits for the STM derivative so that the partials are computed once.
type columnGenerator struct {
	m     *matrices
	name  string
	index int
}

func (g *columnGenerator) Name() string                                      { return g.name }
func (g *columnGenerator) Dimension() int                                    { return propagation.PrimaryDim }
func (g *columnGenerator) Init(propagation.SpacecraftState, time.Time) error { return nil }

func (g *columnGenerator) Yields(s propagation.SpacecraftState) bool {
	return !s.HasAdditionalStateDerivative(g.m.stmName)
}

func (g *columnGenerator) Derivatives(s propagation.SpacecraftState) (propagation.CombinedDerivatives, error) {
	col, err := s.AdditionalState(g.name)
	if err != nil {
		return propagation.CombinedDerivatives{}, err
	}
	a, b := g.m.partials(s)
	var d mat.VecDense
	d.MulVec(a, mat.NewVecDense(propagation.PrimaryDim, col))
	d.AddVec(&d, b.ColView(g.index))
	out := make([]float64, propagation.PrimaryDim)
	for k := range out {
		out[k] = d.AtVec(k)
	}
	return propagation.CombinedDerivatives{Additional: out}, nil
}
