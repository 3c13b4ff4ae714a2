package forces

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/orbprop/internal/attitude"
	"github.com/san-kum/orbprop/internal/dual"
	"github.com/san-kum/orbprop/internal/params"
	"github.com/san-kum/orbprop/internal/propagation"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// G0 is the standard gravity used to convert specific impulse (m/s^2).
	G0 = 9.80665

	ThrustSuffix   = "thrust"
	FlowRateSuffix = "flow rate"
)

// ConstantThrustManeuver applies a constant thrust along a body frame
// direction while its triggers fire. The thrust direction follows the
// maneuver's own attitude provider.
type ConstantThrustManeuver struct {
	name      string
	direction r3.Vec
	att       attitude.Provider
	thrust    *params.Driver
	flowRate  *params.Driver
	triggers  *DateBasedTriggers
}

// NewConstantThrustManeuver builds a maneuver of the given thrust (N) and
// specific impulse (s). A nil provider keeps the body frame inertial.
func NewConstantThrustManeuver(name string, start time.Time, duration time.Duration, thrust, isp float64, direction r3.Vec, att attitude.Provider) (*ConstantThrustManeuver, error) {
	if isp <= 0 {
		return nil, fmt.Errorf("forces: maneuver %q: specific impulse must be positive, got %g", name, isp)
	}
	if r3.Norm(direction) == 0 {
		return nil, fmt.Errorf("forces: maneuver %q: zero thrust direction", name)
	}
	triggers, err := NewDateBasedTriggers(name, start, duration)
	if err != nil {
		return nil, err
	}
	if att == nil {
		att = attitude.NewInertial()
	}
	flow := -thrust / (G0 * isp)
	return &ConstantThrustManeuver{
		name:      name,
		direction: r3.Unit(direction),
		att:       att,
		thrust:    params.MustDriver(name+ThrustSuffix, thrust, nonZero(thrust), math.Inf(-1), math.Inf(1)),
		flowRate:  params.MustDriver(name+FlowRateSuffix, flow, nonZero(math.Abs(flow)), math.Inf(-1), 0),
		triggers:  triggers,
	}, nil
}

func nonZero(x float64) float64 {
	if x == 0 {
		return 1
	}
	return x
}

func (m *ConstantThrustManeuver) Name() string                 { return m.name }
func (m *ConstantThrustManeuver) Triggers() *DateBasedTriggers { return m.triggers }
func (m *ConstantThrustManeuver) Direction() r3.Vec            { return m.direction }

func (m *ConstantThrustManeuver) Init(s0 propagation.SpacecraftState, target time.Time) error {
	m.triggers.Init(s0, target)
	return nil
}

func (m *ConstantThrustManeuver) Acceleration(s propagation.SpacecraftState, values []float64) r3.Vec {
	if !m.triggers.IsFiring() {
		return r3.Vec{}
	}
	dir := m.att.Attitude(s.Orbit()).ToInertial(m.direction)
	return r3.Scale(values[0]/s.Mass(), dir)
}

func (m *ConstantThrustManeuver) AccelerationDual(g GradientState, values []dual.Number) dual.Vec3 {
	if !m.triggers.IsFiring() {
		return zeroVec(g.Mass.Len())
	}
	dir := m.att.ToInertialDual(g.Position, g.Velocity, m.direction)
	return dir.Scale(values[0].Div(g.Mass))
}

func (m *ConstantThrustManeuver) MassRate(_ propagation.SpacecraftState, values []float64) float64 {
	if !m.triggers.IsFiring() {
		return 0
	}
	return values[1]
}

func (m *ConstantThrustManeuver) MassRateDual(g GradientState, values []dual.Number) dual.Number {
	if !m.triggers.IsFiring() {
		return dual.Constant(0, g.Mass.Len())
	}
	return values[1]
}

func (m *ConstantThrustManeuver) DependsOnPositionOnly() bool { return false }

func (m *ConstantThrustManeuver) EventDetectors() []propagation.EventDetector {
	return m.triggers.Detectors()
}

// ParameterDrivers returns thrust, flow rate and the four trigger drivers.
func (m *ConstantThrustManeuver) ParameterDrivers() []*params.Driver {
	return append([]*params.Driver{m.thrust, m.flowRate}, m.triggers.Drivers()...)
}
