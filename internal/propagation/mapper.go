package propagation

import (
	"fmt"
	"time"

	"github.com/san-kum/orbprop/internal/attitude"
	"github.com/san-kum/orbprop/internal/orbit"
	"gonum.org/v1/gonum/spatial/r3"
)

// PrimaryDim is the size of the primary block: position, velocity and mass.
const PrimaryDim = 7

// StateMapper converts between spacecraft states and flat arrays. The
// element array uses Type and Angle; the primary array consumed by the
// integrator is always Cartesian. A mapper is immutable.
type StateMapper struct {
	Type     orbit.Type
	Angle    orbit.PositionAngle
	Frame    orbit.Frame
	Mu       float64
	Attitude attitude.Provider
}

// NewStateMapper returns a mapper using the frame and gravitational
// parameter of the reference state.
func NewStateMapper(ref SpacecraftState, t orbit.Type, angle orbit.PositionAngle, att attitude.Provider) StateMapper {
	if att == nil {
		att = attitude.NewInertial()
	}
	return StateMapper{Type: t, Angle: angle, Frame: ref.Frame(), Mu: ref.Mu(), Attitude: att}
}

// ToArray returns the six elements of the mapper's type followed by mass.
func (m StateMapper) ToArray(s SpacecraftState) [PrimaryDim]float64 {
	var out [PrimaryDim]float64
	el := s.Orbit().Elements(m.Type, m.Angle)
	copy(out[:6], el[:])
	out[6] = s.Mass()
	return out
}

// FromArray is the inverse of ToArray.
func (m StateMapper) FromArray(arr [PrimaryDim]float64, date time.Time) (SpacecraftState, error) {
	var el [6]float64
	copy(el[:], arr[:6])
	o, err := orbit.FromElements(m.Type, m.Angle, el, date, m.Frame, m.Mu)
	if err != nil {
		return SpacecraftState{}, fmt.Errorf("propagation: map array: %w", err)
	}
	return NewState(o, m.Attitude.Attitude(o), arr[6]), nil
}

// PrimaryArray writes position, velocity and mass into y[:7].
func PrimaryArray(s SpacecraftState, y []float64) {
	o := s.Orbit()
	y[0], y[1], y[2] = o.Position.X, o.Position.Y, o.Position.Z
	y[3], y[4], y[5] = o.Velocity.X, o.Velocity.Y, o.Velocity.Z
	y[6] = s.Mass()
}

// FromPrimary builds a state without additional states from the Cartesian
// primary block y[:7].
func (m StateMapper) FromPrimary(y []float64, date time.Time) SpacecraftState {
	o := orbit.NewCartesian(
		r3.Vec{X: y[0], Y: y[1], Z: y[2]},
		r3.Vec{X: y[3], Y: y[4], Z: y[5]},
		date, m.Frame, m.Mu)
	return NewState(o, m.Attitude.Attitude(o), y[6])
}
