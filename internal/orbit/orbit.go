// Package orbit holds the orbital state of a spacecraft and the conversions
// between its Cartesian, Keplerian, circular and equinoctial representations.
//
// An [Orbit] always stores position and velocity; element sets are computed
// on demand. Angles are radians, distances meters and velocities m/s.
// Keplerian, circular and equinoctial elements are defined for elliptic
// orbits only.
package orbit

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/orbprop/internal/dual"
	"gonum.org/v1/gonum/spatial/r3"
)

// EarthMu is the gravitational parameter of the Earth (m^3/s^2).
const EarthMu = 3.986004415e14

type Orbit struct {
	Position r3.Vec
	Velocity r3.Vec
	Date     time.Time
	Frame    Frame
	Mu       float64
}

func NewCartesian(pos, vel r3.Vec, date time.Time, frame Frame, mu float64) Orbit {
	return Orbit{Position: pos, Velocity: vel, Date: date, Frame: frame, Mu: mu}
}

// FromElements builds an orbit from an element array of the given type.
func FromElements(t Type, angle PositionAngle, e [6]float64, date time.Time, frame Frame, mu float64) (Orbit, error) {
	if mu <= 0 {
		return Orbit{}, fmt.Errorf("orbit: gravitational parameter must be positive, got %g", mu)
	}
	if t != Cartesian {
		if e[0] <= 0 {
			return Orbit{}, fmt.Errorf("orbit: %v elements need a positive semi-major axis, got %g", t, e[0])
		}
		if t == Keplerian && (e[1] < 0 || e[1] >= 1) {
			return Orbit{}, fmt.Errorf("orbit: keplerian eccentricity must be in [0, 1), got %g", e[1])
		}
	}
	pos, vel := elementsToCartesian(t, angle, e, mu)
	o := NewCartesian(pos, vel, date, frame, mu)
	if !o.valid() {
		return Orbit{}, fmt.Errorf("orbit: %v elements %v do not map to a finite state", t, e)
	}
	return o, nil
}

// NewKeplerian is a convenience wrapper around FromElements.
func NewKeplerian(a, e, i, pa, raan, anomaly float64, angle PositionAngle, date time.Time, frame Frame, mu float64) (Orbit, error) {
	return FromElements(Keplerian, angle, [6]float64{a, e, i, pa, raan, anomaly}, date, frame, mu)
}

func (o Orbit) valid() bool {
	for _, x := range []float64{o.Position.X, o.Position.Y, o.Position.Z, o.Velocity.X, o.Velocity.Y, o.Velocity.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Elements returns the element array of the given type.
func (o Orbit) Elements(t Type, angle PositionAngle) [6]float64 {
	el := elementsDual(dual.VecConst(o.Position, 0), dual.VecConst(o.Velocity, 0), o.Mu, t, angle)
	var out [6]float64
	for i, x := range el {
		out[i] = x.Value
	}
	return out
}

// A returns the semi-major axis.
func (o Orbit) A() float64 {
	r := r3.Norm(o.Position)
	v2 := r3.Norm2(o.Velocity)
	return 1 / (2/r - v2/o.Mu)
}

func (o Orbit) E() float64 {
	eq := o.Elements(Keplerian, Mean)
	return eq[1]
}

func (o Orbit) MeanMotion() float64 {
	a := o.A()
	return math.Sqrt(o.Mu / (a * a * a))
}

func (o Orbit) Period() time.Duration {
	return time.Duration(2 * math.Pi / o.MeanMotion() * float64(time.Second))
}

// ShiftedBy returns the orbit propagated by dt with a Keplerian motion.
func (o Orbit) ShiftedBy(dt time.Duration) Orbit {
	eq := o.Elements(Equinoctial, Mean)
	eq[5] += o.MeanMotion() * dt.Seconds()
	pos, vel := elementsToCartesian(Equinoctial, Mean, eq, o.Mu)
	return NewCartesian(pos, vel, o.Date.Add(dt), o.Frame, o.Mu)
}

// WithMu returns a copy of the orbit with another gravitational parameter.
func (o Orbit) WithMu(mu float64) Orbit {
	o.Mu = mu
	return o
}

func (o Orbit) String() string {
	return fmt.Sprintf("orbit{%s %s r=%v v=%v}", o.Date.Format(time.RFC3339Nano), o.Frame, o.Position, o.Velocity)
}
