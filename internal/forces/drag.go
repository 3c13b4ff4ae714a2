package forces

import (
	"math"
	"time"

	"github.com/san-kum/orbprop/internal/dual"
	"github.com/san-kum/orbprop/internal/params"
	"github.com/san-kum/orbprop/internal/propagation"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DragCoefficient = "drag coefficient"

	// EarthRotationRate is the rotation rate of the atmosphere (rad/s).
	EarthRotationRate = 7.292115e-5
)

// ExponentialAtmosphere is rho = Rho0 exp(-(h - H0) / Scale) above a
// spherical body of radius Re.
type ExponentialAtmosphere struct {
	Rho0  float64
	H0    float64
	Scale float64
	Re    float64
}

// DefaultAtmosphere fits the 400-700 km band.
func DefaultAtmosphere() ExponentialAtmosphere {
	return ExponentialAtmosphere{Rho0: 3.614e-13, H0: 700e3, Scale: 88.667e3, Re: EarthRadius}
}

func (a ExponentialAtmosphere) Density(p r3.Vec) float64 {
	h := r3.Norm(p) - a.Re
	return a.Rho0 * math.Exp(-(h-a.H0)/a.Scale)
}

func (a ExponentialAtmosphere) densityDual(p dual.Vec3) dual.Number {
	h := p.Norm().AddConst(-a.Re - a.H0)
	return dual.Exp(h.Scale(-1 / a.Scale)).Scale(a.Rho0)
}

// Drag is the atmospheric drag on a spherical spacecraft of cross section
// Area (m^2), with a co-rotating atmosphere.
type Drag struct {
	Atmosphere ExponentialAtmosphere
	Area       float64
	cd         *params.Driver
}

func NewDrag(atm ExponentialAtmosphere, area, cd float64) *Drag {
	return &Drag{
		Atmosphere: atm,
		Area:       area,
		cd:         params.MustDriver(DragCoefficient, cd, 1, 0, math.Inf(1)),
	}
}

func (d *Drag) Init(propagation.SpacecraftState, time.Time) error { return nil }

func (d *Drag) Acceleration(s propagation.SpacecraftState, values []float64) r3.Vec {
	p, v := s.Orbit().Position, s.Orbit().Velocity
	rel := r3.Vec{X: v.X + EarthRotationRate*p.Y, Y: v.Y - EarthRotationRate*p.X, Z: v.Z}
	k := -0.5 * d.Atmosphere.Density(p) * values[0] * d.Area / s.Mass()
	return r3.Scale(k*r3.Norm(rel), rel)
}

func (d *Drag) AccelerationDual(g GradientState, values []dual.Number) dual.Vec3 {
	p, v := g.Position, g.Velocity
	rel := dual.Vec3{
		X: v.X.Add(p.Y.Scale(EarthRotationRate)),
		Y: v.Y.Sub(p.X.Scale(EarthRotationRate)),
		Z: v.Z,
	}
	k := d.Atmosphere.densityDual(p).Mul(values[0]).Div(g.Mass).Scale(-0.5 * d.Area)
	return rel.Scale(k.Mul(rel.Norm()))
}

func (d *Drag) DependsOnPositionOnly() bool                 { return false }
func (d *Drag) EventDetectors() []propagation.EventDetector { return nil }
func (d *Drag) ParameterDrivers() []*params.Driver          { return []*params.Driver{d.cd} }
