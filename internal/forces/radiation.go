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
	ReflectionCoefficient = "reflection coefficient"

	// SolarPressure is the radiation pressure at one astronomical unit (N/m^2).
	SolarPressure = 4.56e-6
)

// SolarRadiationPressure is the cannonball radiation pressure model. The
// spacecraft is always lit.
type SolarRadiationPressure struct {
	Area float64
	cr   *params.Driver
}

func NewSolarRadiationPressure(area, cr float64) *SolarRadiationPressure {
	return &SolarRadiationPressure{
		Area: area,
		cr:   params.MustDriver(ReflectionCoefficient, cr, 1, 0, 2),
	}
}

func (r *SolarRadiationPressure) Init(propagation.SpacecraftState, time.Time) error { return nil }

func (r *SolarRadiationPressure) Acceleration(s propagation.SpacecraftState, values []float64) r3.Vec {
	d := r3.Sub(s.Orbit().Position, Sun.Position(s.Date()))
	d2 := r3.Norm2(d)
	k := values[0] * SolarPressure * AU * AU / d2 * r.Area / s.Mass()
	return r3.Scale(k/math.Sqrt(d2), d)
}

func (r *SolarRadiationPressure) AccelerationDual(g GradientState, values []dual.Number) dual.Vec3 {
	d := g.Position.AddConst(r3.Scale(-1, Sun.Position(g.Date)))
	d2 := d.NormSq()
	k := values[0].Mul(dual.Pow(d2, -1.5)).Div(g.Mass).Scale(SolarPressure * AU * AU * r.Area)
	return d.Scale(k)
}

func (r *SolarRadiationPressure) DependsOnPositionOnly() bool                 { return false }
func (r *SolarRadiationPressure) EventDetectors() []propagation.EventDetector { return nil }
func (r *SolarRadiationPressure) ParameterDrivers() []*params.Driver          { return []*params.Driver{r.cr} }

// ThirdBody is the differential attraction of the Sun or the Moon. It does
// not implement Differentiable; its partials are computed numerically.
type ThirdBody struct {
	Body Body
	mu   *params.Driver
}

func NewThirdBody(b Body) *ThirdBody {
	return &ThirdBody{
		Body: b,
		mu:   params.MustDriver(b.String()+" attraction coefficient", b.Mu(), b.Mu()*1e-6, 0, math.Inf(1)),
	}
}

func (t *ThirdBody) Init(propagation.SpacecraftState, time.Time) error { return nil }

func (t *ThirdBody) Acceleration(s propagation.SpacecraftState, values []float64) r3.Vec {
	b := t.Body.Position(s.Date())
	d := r3.Sub(b, s.Orbit().Position)
	d2, b2 := r3.Norm2(d), r3.Norm2(b)
	return r3.Scale(values[0], r3.Sub(r3.Scale(1/(d2*math.Sqrt(d2)), d), r3.Scale(1/(b2*math.Sqrt(b2)), b)))
}

func (t *ThirdBody) DependsOnPositionOnly() bool                 { return true }
func (t *ThirdBody) EventDetectors() []propagation.EventDetector { return nil }
func (t *ThirdBody) ParameterDrivers() []*params.Driver          { return []*params.Driver{t.mu} }
