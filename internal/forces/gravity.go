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
	// EarthRadius is the equatorial radius used by J2 and drag (m).
	EarthRadius = 6378136.3
	EarthJ2     = 1.08262668e-3

	CentralAttractionCoefficient = "central attraction coefficient"
)

// NewtonianAttraction is the point mass attraction of the central body.
type NewtonianAttraction struct {
	mu *params.Driver
}

func NewNewtonianAttraction(mu float64) *NewtonianAttraction {
	return &NewtonianAttraction{
		mu: params.MustDriver(CentralAttractionCoefficient, mu, math.Ldexp(1, 32), 0, math.Inf(1)),
	}
}

// Mu returns the current value of the gravitational parameter.
func (n *NewtonianAttraction) Mu(date time.Time) float64 { return n.mu.Value(date) }

func (n *NewtonianAttraction) Init(propagation.SpacecraftState, time.Time) error { return nil }

func (n *NewtonianAttraction) Acceleration(s propagation.SpacecraftState, values []float64) r3.Vec {
	p := s.Orbit().Position
	r2 := r3.Norm2(p)
	return r3.Scale(-values[0]/(r2*math.Sqrt(r2)), p)
}

func (n *NewtonianAttraction) AccelerationDual(g GradientState, values []dual.Number) dual.Vec3 {
	r2 := g.Position.NormSq()
	r3inv := dual.Pow(r2, -1.5)
	return g.Position.Scale(values[0].Mul(r3inv).Neg())
}

func (n *NewtonianAttraction) DependsOnPositionOnly() bool                 { return true }
func (n *NewtonianAttraction) EventDetectors() []propagation.EventDetector { return nil }
func (n *NewtonianAttraction) ParameterDrivers() []*params.Driver          { return []*params.Driver{n.mu} }

// J2 is the oblateness perturbation of the central body, without the
// central term.
type J2 struct {
	Mu float64
	Re float64
	J2 float64
}

func NewJ2(mu float64) *J2 {
	return &J2{Mu: mu, Re: EarthRadius, J2: EarthJ2}
}

func (j *J2) Init(propagation.SpacecraftState, time.Time) error { return nil }

func (j *J2) Acceleration(s propagation.SpacecraftState, _ []float64) r3.Vec {
	p := s.Orbit().Position
	r2 := r3.Norm2(p)
	r := math.Sqrt(r2)
	k := -1.5 * j.J2 * j.Mu * j.Re * j.Re / (r2 * r2 * r)
	z2 := 5 * p.Z * p.Z / r2
	return r3.Vec{
		X: k * p.X * (1 - z2),
		Y: k * p.Y * (1 - z2),
		Z: k * p.Z * (3 - z2),
	}
}

func (j *J2) AccelerationDual(g GradientState, _ []dual.Number) dual.Vec3 {
	p := g.Position
	r2 := p.NormSq()
	k := dual.Pow(r2, -2.5).Scale(-1.5 * j.J2 * j.Mu * j.Re * j.Re)
	z2 := p.Z.Mul(p.Z).Div(r2).Scale(5)
	xy := z2.Neg().AddConst(1).Mul(k)
	return dual.Vec3{
		X: p.X.Mul(xy),
		Y: p.Y.Mul(xy),
		Z: p.Z.Mul(z2.Neg().AddConst(3).Mul(k)),
	}
}

func (j *J2) DependsOnPositionOnly() bool                 { return true }
func (j *J2) EventDetectors() []propagation.EventDetector { return nil }
func (j *J2) ParameterDrivers() []*params.Driver          { return nil }
