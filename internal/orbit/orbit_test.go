package orbit

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var epoch = time.Date(2003, 5, 1, 0, 0, 0, 0, time.UTC)

func leo(t *testing.T) Orbit {
	t.Helper()
	o, err := NewKeplerian(7201009.7124401, 1e-3, 98.7*math.Pi/180, 93.0*math.Pi/180, 15.0*math.Pi/180, 0.1, Mean, epoch, EME2000, EarthMu)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func relDiff(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b)) / r3.Norm(b)
}

func TestElementsRoundTrip(t *testing.T) {
	o := leo(t)
	for _, typ := range []Type{Cartesian, Keplerian, Circular, Equinoctial} {
		for _, angle := range []PositionAngle{Mean, Eccentric, True} {
			t.Run(typ.String()+"/"+angle.String(), func(t *testing.T) {
				el := o.Elements(typ, angle)
				back, err := FromElements(typ, angle, el, o.Date, o.Frame, o.Mu)
				if err != nil {
					t.Fatal(err)
				}
				if d := relDiff(back.Position, o.Position); d > 1e-12 {
					t.Errorf("position relative error %e", d)
				}
				if d := relDiff(back.Velocity, o.Velocity); d > 1e-12 {
					t.Errorf("velocity relative error %e", d)
				}
			})
		}
	}
}

func TestKeplerianElementsValues(t *testing.T) {
	o := leo(t)
	el := o.Elements(Keplerian, Mean)
	want := [6]float64{7201009.7124401, 1e-3, 98.7 * math.Pi / 180, 93.0 * math.Pi / 180, 15.0 * math.Pi / 180, 0.1}
	tol := [6]float64{1e-5, 1e-13, 1e-13, 1e-10, 1e-13, 1e-10}
	for i := range want {
		if math.Abs(el[i]-want[i]) > tol[i] {
			t.Errorf("element %d = %.15g, want %.15g", i, el[i], want[i])
		}
	}
}

func TestJacobianMatchesFiniteDifferences(t *testing.T) {
	o := leo(t)
	for _, typ := range []Type{Keplerian, Circular, Equinoctial} {
		for _, angle := range []PositionAngle{Mean, Eccentric, True} {
			t.Run(typ.String()+"/"+angle.String(), func(t *testing.T) {
				j := JacobianWrtCartesian(o, typ, angle)
				steps := [6]float64{1, 1, 1, 1e-3, 1e-3, 1e-3}
				for k := 0; k < 6; k++ {
					plus, minus := o, o
					shift(&plus, k, steps[k])
					shift(&minus, k, -steps[k])
					ep := plus.Elements(typ, angle)
					em := minus.Elements(typ, angle)
					for i := 0; i < 6; i++ {
						fd := (ep[i] - em[i]) / (2 * steps[k])
						tol := 1e-6*math.Abs(fd) + 1e-14*(1+math.Abs(ep[i]))/steps[k]
						if math.Abs(fd-j.At(i, k)) > tol {
							t.Errorf("d%d/d%d = %e, finite differences %e", i, k, j.At(i, k), fd)
						}
					}
				}
			})
		}
	}
}

func shift(o *Orbit, k int, d float64) {
	switch k {
	case 0:
		o.Position.X += d
	case 1:
		o.Position.Y += d
	case 2:
		o.Position.Z += d
	case 3:
		o.Velocity.X += d
	case 4:
		o.Velocity.Y += d
	case 5:
		o.Velocity.Z += d
	}
}

func TestJacobianInverse(t *testing.T) {
	o := leo(t)
	for _, typ := range []Type{Cartesian, Keplerian, Circular, Equinoctial} {
		j := JacobianWrtCartesian(o, typ, True)
		inv, err := JacobianWrtParameters(o, typ, True)
		if err != nil {
			t.Fatalf("%v: %v", typ, err)
		}
		var p mat.Dense
		p.Mul(inv, j)
		for i := 0; i < 6; i++ {
			for k := 0; k < 6; k++ {
				want := 0.0
				if i == k {
					want = 1
				}
				if math.Abs(p.At(i, k)-want) > 1e-7 {
					t.Errorf("%v: (J^-1 J)[%d][%d] = %e", typ, i, k, p.At(i, k))
				}
			}
		}
	}
}

func TestSingularKeplerianJacobian(t *testing.T) {
	circ, err := NewKeplerian(7e6, 0, 0.5, 0, 0.3, 0, Mean, epoch, GCRF, EarthMu)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := Tolerances(1, circ, Keplerian, True); !errors.Is(err, ErrSingularJacobian) {
		t.Errorf("Tolerances(keplerian) error = %v, want ErrSingularJacobian", err)
	}
	if _, err := JacobianWrtParameters(circ, Keplerian, Mean); !errors.Is(err, ErrSingularJacobian) {
		t.Errorf("JacobianWrtParameters error = %v, want ErrSingularJacobian", err)
	}
	if _, _, err := Tolerances(1, circ, Circular, True); err != nil {
		t.Errorf("circular elements of a circular orbit: %v", err)
	}
}

func TestTolerances(t *testing.T) {
	o := leo(t)
	abs, rel, err := Tolerances(10, o, Cartesian, True)
	if err != nil {
		t.Fatal(err)
	}
	if len(abs) != 7 || len(rel) != 7 {
		t.Fatalf("got %d/%d tolerances, want 7", len(abs), len(rel))
	}
	if abs[0] != 10 || abs[6] != 1e-6 {
		t.Errorf("abs = %v", abs)
	}
	wantDV := o.Mu * 10 / (r3.Norm(o.Velocity) * r3.Norm2(o.Position))
	if math.Abs(abs[3]-wantDV) > 1e-15 {
		t.Errorf("velocity tolerance = %v, want %v", abs[3], wantDV)
	}

	absK, _, err := Tolerances(10, o, Keplerian, True)
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range absK {
		if !(x > 0) {
			t.Errorf("keplerian tolerance %d = %v", i, x)
		}
	}
}

func TestKeplerSolver(t *testing.T) {
	for _, e := range []float64{0, 0.1, 0.5, 0.9, 0.99} {
		for _, m := range []float64{-3, -0.5, 0, 0.2, 1.5, 3.1, 10} {
			E := EccentricFromMean(m, e)
			if got := E - e*math.Sin(E); math.Abs(got-m) > 1e-12 {
				t.Errorf("e=%v M=%v: E - e sinE = %v", e, m, got)
			}
		}
	}

	if !math.IsNaN(EccentricFromMean(math.NaN(), 0.1)) {
		t.Error("NaN mean anomaly should give NaN")
	}
	if !math.IsNaN(EccentricFromMean(1, math.NaN())) {
		t.Error("NaN eccentricity should give NaN")
	}
	if !math.IsNaN(EquinoctialEccentricFromMean(math.NaN(), 0.1, 0.1)) {
		t.Error("NaN longitude should give NaN")
	}
	if !math.IsNaN(EquinoctialEccentricFromMean(1, math.Inf(1), 0)) {
		t.Error("infinite eccentricity should give NaN")
	}
}

func TestShiftedByPeriod(t *testing.T) {
	o := leo(t)
	back := o.ShiftedBy(o.Period())
	if d := relDiff(back.Position, o.Position); d > 1e-8 {
		t.Errorf("position after one period differs by %e", d)
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"cartesian", Cartesian, false},
		{"KEPLERIAN", Keplerian, false},
		{"equinoctial", Equinoctial, false},
		{"polar", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseType(%q) error = %v", tt.in, err)
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
