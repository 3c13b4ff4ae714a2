package numerical

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/san-kum/orbprop/internal/attitude"
	"github.com/san-kum/orbprop/internal/dynamo"
	"github.com/san-kum/orbprop/internal/forces"
	"github.com/san-kum/orbprop/internal/integrators"
	"github.com/san-kum/orbprop/internal/orbit"
	"github.com/san-kum/orbprop/internal/propagation"
	"gonum.org/v1/gonum/spatial/r3"
)

var epoch = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

const burn = "burn"

func initialOrbit(t *testing.T) orbit.Orbit {
	t.Helper()
	o, err := orbit.NewKeplerian(7.0e6, 0.01, 0.9, 0.4, 1.2, 0.3, orbit.True, epoch, orbit.EME2000, orbit.EarthMu)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func initialState(t *testing.T) propagation.SpacecraftState {
	o := initialOrbit(t)
	return propagation.NewState(o, attitude.NewInertial().Attitude(o), 1000)
}

// scenario describes a propagator built from scratch, so that finite
// difference runs share no model state. spans splits drivers over the first
// half hour; shift moves the value of the span holding the epoch.
type scenario struct {
	orbitType orbit.Type
	step      float64
	drag      bool
	maneuver  bool
	moon      bool
	srp       bool
	selected  []string
	spans     map[string]time.Duration
	shift     map[string]float64
}

func (sc scenario) integrator() *integrators.Integrator {
	if sc.step > 0 {
		return integrators.NewRK4(sc.step)
	}
	return integrators.NewRK4(7)
}

func (sc scenario) build(t *testing.T, s0 propagation.SpacecraftState) *Propagator {
	t.Helper()
	p, err := sc.propagator(&s0)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// propagator builds the scenario. The initial state is left unset when s0
// is nil.
func (sc scenario) propagator(s0 *propagation.SpacecraftState) (*Propagator, error) {
	p, err := New(sc.integrator(), WithOrbitType(sc.orbitType), WithPositionAngle(orbit.True))
	if err != nil {
		return nil, err
	}
	models := []forces.Model{forces.NewJ2(orbit.EarthMu)}
	if sc.drag {
		models = append(models, forces.NewDrag(forces.DefaultAtmosphere(), 10, 2.2))
	}
	if sc.maneuver {
		m, err := forces.NewConstantThrustManeuver(burn, epoch.Add(10*time.Minute), 5*time.Minute,
			10, 300, r3.Vec{X: 1}, attitude.LOF{Kind: attitude.TNW})
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	if sc.moon {
		models = append(models, forces.NewThirdBody(forces.Moon))
	}
	if sc.srp {
		models = append(models, forces.NewSolarRadiationPressure(20, 1.5))
	}
	for _, m := range models {
		if err := p.AddForceModel(m); err != nil {
			return nil, err
		}
	}
	if s0 != nil {
		if err := p.SetInitialState(*s0); err != nil {
			return nil, err
		}
	}
	for name, step := range sc.spans {
		d, err := p.ParameterDriver(name)
		if err != nil {
			return nil, err
		}
		if err := d.AddSpans(epoch, epoch.Add(30*time.Minute), step); err != nil {
			return nil, err
		}
	}
	for name, dv := range sc.shift {
		d, err := p.ParameterDriver(name)
		if err != nil {
			return nil, err
		}
		d.SetValueAt(d.Value(epoch)+dv, epoch)
	}
	for _, name := range sc.selected {
		d, err := p.ParameterDriver(name)
		if err != nil {
			return nil, err
		}
		d.SetSelected(true)
	}
	return p, nil
}

// elements propagates s0 to end and returns the final elements and mass.
func (sc scenario) elements(t *testing.T, s0 propagation.SpacecraftState, end time.Time) [propagation.PrimaryDim]float64 {
	t.Helper()
	p := sc.build(t, s0)
	s, err := p.Propagate(context.Background(), end)
	if err != nil {
		t.Fatal(err)
	}
	m := propagation.NewStateMapper(s, sc.orbitType, orbit.True, nil)
	return m.ToArray(s)
}

// shifted returns s0 with element j (mass for j = 6) moved by h.
func shifted(t *testing.T, s0 propagation.SpacecraftState, typ orbit.Type, j int, h float64) propagation.SpacecraftState {
	t.Helper()
	m := propagation.NewStateMapper(s0, typ, orbit.True, nil)
	arr := m.ToArray(s0)
	arr[j] += h
	s, err := m.FromArray(arr, s0.Date())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// elementStep is the finite difference step of element j.
func elementStep(typ orbit.Type, j int) float64 {
	switch {
	case j == 6:
		return 1
	case typ == orbit.Cartesian && j < 3:
		return 1
	case typ == orbit.Cartesian:
		return 1e-3
	case j == 0:
		return 1
	default:
		return 1e-6
	}
}

// difference of element i between two runs, angles wrapped.
func difference(typ orbit.Type, i int, plus, minus float64) float64 {
	d := plus - minus
	if typ != orbit.Cartesian && i > 0 && i < 6 {
		d = math.Remainder(d, 2*math.Pi)
	}
	return d
}

// resetHandler restarts the integration at the event without changing the
// state.
type resetHandler struct{}

func (resetHandler) EventOccurred(propagation.SpacecraftState, propagation.EventDetector, bool) dynamo.Action {
	return dynamo.ResetDerivatives
}

func (resetHandler) ResetState(_ propagation.EventDetector, old propagation.SpacecraftState) propagation.SpacecraftState {
	return old
}
