package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/benbjohnson/immutable"
	"github.com/san-kum/orbprop/internal/attitude"
	"github.com/san-kum/orbprop/internal/orbit"
)

// DefaultMass is the mass used when a state is built without one (kg).
const DefaultMass = 1000.0

// SpacecraftState is an immutable snapshot of the spacecraft at one date.
// Every With method returns a new state; additional states are kept in
// persistent maps so that updates share the unchanged entries.
type SpacecraftState struct {
	orbit       orbit.Orbit
	attitude    attitude.Attitude
	mass        float64
	additional  *immutable.SortedMap[string, []float64]
	derivatives *immutable.SortedMap[string, []float64]
}

func emptyMap() *immutable.SortedMap[string, []float64] {
	return immutable.NewSortedMap[string, []float64](nil)
}

// NewState returns a state with no additional states. The attitude date is
// aligned on the orbit date.
func NewState(o orbit.Orbit, att attitude.Attitude, mass float64) SpacecraftState {
	att.Date = o.Date
	return SpacecraftState{
		orbit:       o,
		attitude:    att,
		mass:        mass,
		additional:  emptyMap(),
		derivatives: emptyMap(),
	}
}

// NewStateFromOrbit uses an inertial attitude and the default mass.
func NewStateFromOrbit(o orbit.Orbit) SpacecraftState {
	return NewState(o, attitude.NewInertial().Attitude(o), DefaultMass)
}

func (s SpacecraftState) Orbit() orbit.Orbit          { return s.orbit }
func (s SpacecraftState) Date() time.Time             { return s.orbit.Date }
func (s SpacecraftState) Frame() orbit.Frame          { return s.orbit.Frame }
func (s SpacecraftState) Mu() float64                 { return s.orbit.Mu }
func (s SpacecraftState) Mass() float64               { return s.mass }
func (s SpacecraftState) Attitude() attitude.Attitude { return s.attitude }

// IsZero reports whether s is the zero value.
func (s SpacecraftState) IsZero() bool { return s.additional == nil }

func (s SpacecraftState) WithOrbit(o orbit.Orbit) SpacecraftState {
	s.orbit = o
	s.attitude.Date = o.Date
	return s
}

func (s SpacecraftState) WithMass(m float64) SpacecraftState {
	s.mass = m
	return s
}

func (s SpacecraftState) WithAttitude(a attitude.Attitude) SpacecraftState {
	s.attitude = a
	return s
}

func maps(s SpacecraftState) (add, der *immutable.SortedMap[string, []float64]) {
	add, der = s.additional, s.derivatives
	if add == nil {
		add = emptyMap()
	}
	if der == nil {
		der = emptyMap()
	}
	return add, der
}

// WithAdditionalState returns a state where name holds a copy of value.
func (s SpacecraftState) WithAdditionalState(name string, value ...float64) SpacecraftState {
	add, der := maps(s)
	s.additional = add.Set(name, clone(value))
	s.derivatives = der
	return s
}

// WithAdditionalStateDerivative returns a state where the derivative of name
// holds a copy of value.
func (s SpacecraftState) WithAdditionalStateDerivative(name string, value ...float64) SpacecraftState {
	add, der := maps(s)
	s.additional = add
	s.derivatives = der.Set(name, clone(value))
	return s
}

func (s SpacecraftState) HasAdditionalState(name string) bool {
	if s.additional == nil {
		return false
	}
	_, ok := s.additional.Get(name)
	return ok
}

func (s SpacecraftState) HasAdditionalStateDerivative(name string) bool {
	if s.derivatives == nil {
		return false
	}
	_, ok := s.derivatives.Get(name)
	return ok
}

// AdditionalState returns a copy of the named additional state.
func (s SpacecraftState) AdditionalState(name string) ([]float64, error) {
	if s.additional != nil {
		if v, ok := s.additional.Get(name); ok {
			return clone(v), nil
		}
	}
	return nil, NewError(UnknownAdditionalState, name)
}

// AdditionalStateDerivative returns a copy of the named derivative.
func (s SpacecraftState) AdditionalStateDerivative(name string) ([]float64, error) {
	if s.derivatives != nil {
		if v, ok := s.derivatives.Get(name); ok {
			return clone(v), nil
		}
	}
	return nil, NewError(UnknownAdditionalState, name)
}

// AdditionalStates returns the additional state names in lexical order.
func (s SpacecraftState) AdditionalStates() []string {
	return keys(s.additional)
}

// AdditionalStateDerivatives returns the derivative names in lexical order.
func (s SpacecraftState) AdditionalStateDerivatives() []string {
	return keys(s.derivatives)
}

func keys(m *immutable.SortedMap[string, []float64]) []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, m.Len())
	itr := m.Iterator()
	for !itr.Done() {
		k, _, _ := itr.Next()
		out = append(out, k)
	}
	return out
}

// additionalView returns the stored slice without copying. Callers must not
// modify it.
func (s SpacecraftState) additionalView(name string) ([]float64, bool) {
	if s.additional == nil {
		return nil, false
	}
	return s.additional.Get(name)
}

// ShiftedBy returns a simple extrapolation of the state: Keplerian motion
// for the orbit, constant mass and attitude, and a linear extrapolation of
// the additional states that have a derivative.
func (s SpacecraftState) ShiftedBy(dt time.Duration) SpacecraftState {
	out := s.WithOrbit(s.orbit.ShiftedBy(dt))
	if s.additional == nil {
		return out
	}
	add := s.additional
	itr := s.additional.Iterator()
	for !itr.Done() {
		name, v, _ := itr.Next()
		d, ok := s.derivatives.Get(name)
		if !ok || len(d) != len(v) {
			continue
		}
		shifted := make([]float64, len(v))
		for i := range v {
			shifted[i] = v[i] + dt.Seconds()*d[i]
		}
		add = add.Set(name, shifted)
	}
	out.additional = add
	return out
}

// IsValid reports whether the orbit and mass are finite and the mass is
// positive.
func (s SpacecraftState) IsValid() bool {
	if !(s.mass > 0) || math.IsInf(s.mass, 0) {
		return false
	}
	for _, x := range []float64{s.orbit.Position.X, s.orbit.Position.Y, s.orbit.Position.Z,
		s.orbit.Velocity.X, s.orbit.Velocity.Y, s.orbit.Velocity.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (s SpacecraftState) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "state{%s m=%.6g", s.orbit, s.mass)
	for _, name := range s.AdditionalStates() {
		v, _ := s.additionalView(name)
		fmt.Fprintf(&b, " %s[%d]", name, len(v))
	}
	b.WriteString("}")
	return b.String()
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
