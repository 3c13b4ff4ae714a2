package numerical

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/san-kum/orbprop/internal/forces"
	"github.com/san-kum/orbprop/internal/orbit"
	"github.com/san-kum/orbprop/internal/propagation"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

func TestStateTransitionMatrixMatchesFiniteDifferences(t *testing.T) {
	end := epoch.Add(30 * time.Minute)
	tests := []struct {
		name string
		sc   scenario
		dim  int
	}{
		{"cartesian drag", scenario{orbitType: orbit.Cartesian, drag: true}, 6},
		{"equinoctial drag", scenario{orbitType: orbit.Equinoctial, drag: true}, 6},
		{"keplerian maneuver", scenario{orbitType: orbit.Keplerian, maneuver: true}, 7},
		{"cartesian moon", scenario{orbitType: orbit.Cartesian, moon: true}, 6},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s0 := initialState(t)
			p := tc.sc.build(t, s0)
			h, err := p.SetupMatricesComputation("stm", nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			final, err := p.Propagate(context.Background(), end)
			if err != nil {
				t.Fatal(err)
			}
			if h.StateDimension() != tc.dim {
				t.Fatalf("state dimension = %d, want %d", h.StateDimension(), tc.dim)
			}
			phi := h.StateTransitionMatrix(final)
			if r, c := phi.Dims(); r != tc.dim || c != tc.dim {
				t.Fatalf("stm is %dx%d", r, c)
			}

			for j := 0; j < tc.dim; j++ {
				step := elementStep(tc.sc.orbitType, j)
				plus := tc.sc.elements(t, shifted(t, s0, tc.sc.orbitType, j, step), end)
				minus := tc.sc.elements(t, shifted(t, s0, tc.sc.orbitType, j, -step), end)
				fd := make([]float64, tc.dim)
				for i := range fd {
					fd[i] = difference(tc.sc.orbitType, i, plus[i], minus[i]) / (2 * step)
				}
				got := mat.Col(nil, j, phi)
				tol := 1e-5*floats.Norm(fd, 2) + 1e-9
				for i := range fd {
					if math.Abs(got[i]-fd[i]) > tol {
						t.Errorf("stm[%d][%d] = %.10e, finite differences %.10e", i, j, got[i], fd[i])
					}
				}
			}
		})
	}
}

func TestParametersJacobianMatchesFiniteDifferences(t *testing.T) {
	end := epoch.Add(30 * time.Minute)
	maneuver := scenario{orbitType: orbit.Cartesian, maneuver: true}
	tests := []struct {
		name  string
		sc    scenario
		param string
		step  float64
		tol   float64
	}{
		{"drag coefficient", scenario{orbitType: orbit.Cartesian, drag: true}, forces.DragCoefficient, 1e-2, 1e-5},
		{"drag coefficient keplerian", scenario{orbitType: orbit.Keplerian, drag: true}, forces.DragCoefficient, 1e-2, 1e-5},
		{"central attraction", scenario{orbitType: orbit.Cartesian}, forces.CentralAttractionCoefficient, orbit.EarthMu * 1e-8, 1e-5},
		{"moon attraction", scenario{orbitType: orbit.Cartesian, moon: true}, forces.Moon.String() + " attraction coefficient", forces.MoonMu * 1e-3, 1e-5},
		{"reflection coefficient", scenario{orbitType: orbit.Cartesian, srp: true}, forces.ReflectionCoefficient, 1e-1, 1e-5},
		{"reflection coefficient equinoctial", scenario{orbitType: orbit.Equinoctial, srp: true}, forces.ReflectionCoefficient, 1e-1, 1e-5},
		{"thrust", maneuver, burn + forces.ThrustSuffix, 1e-2, 1e-5},
		{"flow rate", maneuver, burn + forces.FlowRateSuffix, 1e-5, 1e-5},
		{"start", maneuver, burn + forces.StartSuffix, 1, 1e-4},
		{"stop", maneuver, burn + forces.StopSuffix, 1, 1e-4},
		{"median", maneuver, burn + forces.MedianSuffix, 1, 1e-4},
		{"duration", maneuver, burn + forces.DurationSuffix, 1, 1e-4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s0 := initialState(t)
			sc := tc.sc
			sc.selected = []string{tc.param}
			p := sc.build(t, s0)
			h, err := p.SetupMatricesComputation("stm", nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			final, err := p.Propagate(context.Background(), end)
			if err != nil {
				t.Fatal(err)
			}
			if names := h.JacobiansColumnsNames(); len(names) != 1 || names[0] != "Span"+tc.param+"0" {
				t.Fatalf("columns = %v", names)
			}
			jac := h.ParametersJacobian(final)
			if jac == nil {
				t.Fatal("no parameters jacobian")
			}
			n := h.StateDimension()

			sc.selected = nil
			sc.shift = map[string]float64{tc.param: tc.step}
			plus := sc.elements(t, s0, end)
			sc.shift = map[string]float64{tc.param: -tc.step}
			minus := sc.elements(t, s0, end)
			fd := make([]float64, n)
			for i := range fd {
				fd[i] = difference(sc.orbitType, i, plus[i], minus[i]) / (2 * tc.step)
			}
			tol := tc.tol*floats.Norm(fd, 2) + 1e-12
			for i := range fd {
				if got := jac.At(i, 0); math.Abs(got-fd[i]) > tol {
					t.Errorf("row %d = %.10e, finite differences %.10e", i, got, fd[i])
				}
			}
		})
	}
}

func TestSpannedTriggerColumns(t *testing.T) {
	end := epoch.Add(30 * time.Minute)
	stop := burn + forces.StopSuffix
	tests := []struct {
		name  string
		param string
		span  time.Duration
	}{
		{"stop split after the start", stop, 12 * time.Minute},
		{"stop split before the start", stop, 8 * time.Minute},
		{"duration split after the start", burn + forces.DurationSuffix, 12 * time.Minute},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s0 := initialState(t)
			sc := scenario{
				orbitType: orbit.Cartesian,
				maneuver:  true,
				selected:  []string{tc.param},
				spans:     map[string]time.Duration{tc.param: tc.span},
			}
			p := sc.build(t, s0)
			h, err := p.SetupMatricesComputation("stm", nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			final, err := p.Propagate(context.Background(), end)
			if err != nil {
				t.Fatal(err)
			}
			d, err := p.ParameterDriver(tc.param)
			if err != nil {
				t.Fatal(err)
			}
			names := h.JacobiansColumnsNames()
			if len(names) != d.Spans() || d.Spans() < 2 {
				t.Fatalf("columns = %v", names)
			}
			// the trigger dates are computed from the span holding the
			// nominal start date
			driving := d.SpanNameAt(epoch.Add(10 * time.Minute))
			jac := h.ParametersJacobian(final)

			sc.selected = nil
			sc.spans = nil
			sc.shift = map[string]float64{tc.param: 1}
			plus := sc.elements(t, s0, end)
			sc.shift = map[string]float64{tc.param: -1}
			minus := sc.elements(t, s0, end)
			fd := make([]float64, h.StateDimension())
			for i := range fd {
				fd[i] = (plus[i] - minus[i]) / 2
			}
			tol := 1e-4 * floats.Norm(fd, 2)

			for j, name := range names {
				col := mat.Col(nil, j, jac)
				for i := range fd {
					want := 0.0
					if name == driving {
						want = fd[i]
					}
					if math.Abs(col[i]-want) > tol {
						t.Errorf("%s row %d = %.10e, want %.10e", name, i, col[i], want)
					}
				}
			}
		})
	}
}

func TestMatrixDimension(t *testing.T) {
	tests := []struct {
		name    string
		sc      scenario
		initial *mat.Dense
		want    int
	}{
		{"ballistic", scenario{drag: true}, nil, 6},
		{"mass depleting", scenario{maneuver: true}, nil, 7},
		{"explicit 7x7", scenario{drag: true}, identity(7), 7},
		{"explicit 6x6 with maneuver", scenario{maneuver: true}, identity(6), 6},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.sc.build(t, initialState(t))
			h, err := p.SetupMatricesComputation("stm", tc.initial, nil)
			if err != nil {
				t.Fatal(err)
			}
			if got := h.StateDimension(); got != tc.want {
				t.Errorf("dimension = %d, want %d", got, tc.want)
			}
			final, err := p.Propagate(context.Background(), epoch.Add(20*time.Minute))
			if err != nil {
				t.Fatal(err)
			}
			if r, c := h.StateTransitionMatrix(final).Dims(); r != tc.want || c != tc.want {
				t.Errorf("stm is %dx%d", r, c)
			}
		})
	}
}

func TestSubMatricesAgreeAcrossDimensions(t *testing.T) {
	end := epoch.Add(20 * time.Minute)
	for _, typ := range []orbit.Type{orbit.Cartesian, orbit.Keplerian, orbit.Circular, orbit.Equinoctial} {
		t.Run(typ.String(), func(t *testing.T) {
			sc := scenario{orbitType: typ, drag: true, selected: []string{forces.DragCoefficient}}
			propagate := func(initial *mat.Dense) (*mat.Dense, *mat.Dense) {
				p := sc.build(t, initialState(t))
				h, err := p.SetupMatricesComputation("stm", initial, nil)
				if err != nil {
					t.Fatal(err)
				}
				final, err := p.Propagate(context.Background(), end)
				if err != nil {
					t.Fatal(err)
				}
				return h.StateTransitionMatrix(final), h.ParametersJacobian(final)
			}
			phi6, jac6 := propagate(nil)
			phi7, jac7 := propagate(identity(7))
			if r, _ := phi6.Dims(); r != 6 {
				t.Fatalf("default stm has %d rows", r)
			}
			if r, _ := phi7.Dims(); r != 7 {
				t.Fatalf("explicit 7x7 stm has %d rows", r)
			}
			if !mat.EqualApprox(phi7.Slice(0, 6, 0, 6), phi6, 1e-10*mat.Norm(phi6, math.Inf(1))) {
				t.Errorf("6x6 block of the 7x7 stm:\n%v\nwant\n%v", mat.Formatted(phi7.Slice(0, 6, 0, 6)), mat.Formatted(phi6))
			}
			if !mat.EqualApprox(jac7.Slice(0, 6, 0, 1), jac6, 1e-10*mat.Norm(jac6, math.Inf(1))) {
				t.Errorf("first rows of the 7 row jacobian %v, want %v", mat.Formatted(jac7.T()), mat.Formatted(jac6.T()))
			}
		})
	}
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func TestInitialMatricesAreComposed(t *testing.T) {
	s0 := initialState(t)
	sc := scenario{orbitType: orbit.Keplerian, drag: true, selected: []string{forces.DragCoefficient}}
	end := epoch.Add(15 * time.Minute)

	m0 := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		m0.Set(i, i, float64(i+1))
	}
	m0.Set(0, 5, 3)
	col := "Span" + forces.DragCoefficient + "0"
	c0 := []float64{10, 1e-4, 0, 0, 0, 1e-3}

	plain := sc.build(t, s0)
	hp, err := plain.SetupMatricesComputation("stm", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	fp, err := plain.Propagate(context.Background(), end)
	if err != nil {
		t.Fatal(err)
	}

	custom := sc.build(t, s0)
	hc, err := custom.SetupMatricesComputation("stm", m0, map[string][]float64{col: c0})
	if err != nil {
		t.Fatal(err)
	}
	if got := hc.InitialJacobianColumn(col); !floats.Equal(got, c0) {
		t.Errorf("initial column = %v", got)
	}
	if got := hc.InitialJacobianColumn("unknown"); !floats.Equal(got, make([]float64, 6)) {
		t.Errorf("unknown initial column = %v", got)
	}
	fc, err := custom.Propagate(context.Background(), end)
	if err != nil {
		t.Fatal(err)
	}

	// Φ(t) M0 and Φ(t) c0 + S(t)
	var want mat.Dense
	want.Mul(hp.StateTransitionMatrix(fp), m0)
	if !mat.EqualApprox(hc.StateTransitionMatrix(fc), &want, 1e-9*mat.Norm(&want, math.Inf(1))) {
		t.Errorf("stm with initial matrix:\n%v\nwant\n%v", mat.Formatted(hc.StateTransitionMatrix(fc)), mat.Formatted(&want))
	}
	var wantCol mat.VecDense
	wantCol.MulVec(hp.StateTransitionMatrix(fp), mat.NewVecDense(6, c0))
	wantCol.AddVec(&wantCol, hp.ParametersJacobian(fp).ColView(0))
	got := hc.ParametersJacobian(fc).ColView(0)
	if !mat.EqualApprox(got, &wantCol, 1e-9*mat.Norm(&wantCol, 2)) {
		t.Errorf("column with initial value = %v, want %v", mat.Formatted(got.T()), mat.Formatted(wantCol.T()))
	}
}

func TestResetEventMatchesTwoStagePropagation(t *testing.T) {
	sc := scenario{
		orbitType: orbit.Cartesian,
		drag:      true,
		maneuver:  true,
		selected:  []string{forces.DragCoefficient, burn + forces.StartSuffix, burn + forces.DurationSuffix},
	}
	end := epoch.Add(30 * time.Minute)
	tests := []struct {
		name string
		mid  time.Time
	}{
		{"during the burn", epoch.Add(12 * time.Minute)},
		{"at the start trigger", epoch.Add(10 * time.Minute)},
		{"at the stop trigger", epoch.Add(15 * time.Minute)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s0 := initialState(t)

			single := sc.build(t, s0)
			hs, err := single.SetupMatricesComputation("stm", nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			det, err := propagation.NewDateDetector([]time.Time{tc.mid}, propagation.WithDateHandler(resetHandler{}))
			if err != nil {
				t.Fatal(err)
			}
			single.AddEventDetector(det)
			s1, err := single.Propagate(context.Background(), end)
			if err != nil {
				t.Fatal(err)
			}

			staged := sc.build(t, s0)
			ht, err := staged.SetupMatricesComputation("stm", nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := staged.Propagate(context.Background(), tc.mid); err != nil {
				t.Fatal(err)
			}
			s2, err := staged.Propagate(context.Background(), end)
			if err != nil {
				t.Fatal(err)
			}

			if !s1.Date().Equal(s2.Date()) {
				t.Fatalf("dates %v and %v", s1.Date(), s2.Date())
			}
			a, b := s1.Orbit(), s2.Orbit()
			for _, d := range [][2]float64{
				{a.Position.X, b.Position.X}, {a.Position.Y, b.Position.Y}, {a.Position.Z, b.Position.Z},
				{a.Velocity.X, b.Velocity.X}, {a.Velocity.Y, b.Velocity.Y}, {a.Velocity.Z, b.Velocity.Z},
				{s1.Mass(), s2.Mass()},
			} {
				if !scalar.EqualWithinRel(d[0], d[1], 1e-13) {
					t.Errorf("single run %.17g, two stages %.17g", d[0], d[1])
				}
			}
			phi := hs.StateTransitionMatrix(s1)
			if !mat.EqualApprox(phi, ht.StateTransitionMatrix(s2), 1e-13*mat.Norm(phi, math.Inf(1))) {
				t.Error("state transition matrices differ")
			}
			jac := hs.ParametersJacobian(s1)
			if !mat.EqualApprox(jac, ht.ParametersJacobian(s2), 1e-13*mat.Norm(jac, math.Inf(1))) {
				t.Errorf("parameters jacobians differ:\n%v\n%v", mat.Formatted(jac), mat.Formatted(ht.ParametersJacobian(s2)))
			}
		})
	}
}

func TestManeuverDatesAreExact(t *testing.T) {
	sc := scenario{orbitType: orbit.Cartesian, maneuver: true}
	p := sc.build(t, initialState(t))
	rec := &propagation.RecordAndContinue{}
	det, err := propagation.NewDateDetector([]time.Time{epoch.Add(10 * time.Minute), epoch.Add(15 * time.Minute)},
		propagation.WithDateHandler(rec))
	if err != nil {
		t.Fatal(err)
	}
	p.AddEventDetector(det)
	final, err := p.Propagate(context.Background(), epoch.Add(20*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("%d events", len(events))
	}
	// the mass only changes between the two dates
	before, after := events[0].State.Mass(), events[1].State.Mass()
	if math.Abs(before-1000) > 1e-9 {
		t.Errorf("mass at start = %v", before)
	}
	flow := 10 / (forces.G0 * 300)
	if want := 1000 - 300*flow; math.Abs(after-want) > 1e-9 {
		t.Errorf("mass at stop = %.12f, want %.12f", after, want)
	}
	if math.Abs(final.Mass()-after) > 1e-9 {
		t.Errorf("final mass %v, mass at stop %v", final.Mass(), after)
	}
}

func TestNoMatricesWithoutBlocks(t *testing.T) {
	p := scenario{orbitType: orbit.Cartesian}.build(t, initialState(t))
	h, err := p.SetupMatricesComputation("stm", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m := h.StateTransitionMatrix(initialState(t)); m != nil {
		t.Error("state transition matrix without its block")
	}
	final, err := p.Propagate(context.Background(), epoch.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if h.ParametersJacobian(final) != nil {
		t.Error("parameters jacobian without selected parameters")
	}
	if h.StateTransitionMatrix(final) == nil {
		t.Error("missing state transition matrix")
	}
}
