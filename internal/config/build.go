package config

import (
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/san-kum/orbprop/internal/attitude"
	"github.com/san-kum/orbprop/internal/dynamo"
	"github.com/san-kum/orbprop/internal/forces"
	"github.com/san-kum/orbprop/internal/integrators"
	"github.com/san-kum/orbprop/internal/numerical"
	"github.com/san-kum/orbprop/internal/orbit"
	"github.com/san-kum/orbprop/internal/propagation"
	"github.com/soniakeys/unit"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/spatial/r3"
)

// EnvPrefix prefixes the environment variables that override scalar
// fields, e.g. ORBPROP_DURATION.
const EnvPrefix = "ORBPROP"

// ApplyEnv overrides the scalar fields of c from the environment.
func (c *Config) ApplyEnv() error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("duration", c.Duration)
	v.SetDefault("integrator", c.Integrator)
	v.SetDefault("step", c.Step)
	v.SetDefault("position_tolerance", c.PositionTolerance)
	v.SetDefault("orbit_type", c.OrbitType)
	v.SetDefault("position_angle", c.PositionAngle)
	v.SetDefault("output_step", c.OutputStep)
	v.SetDefault("mass", c.Mass)

	c.Duration = v.GetFloat64("duration")
	c.Integrator = v.GetString("integrator")
	c.Step = v.GetFloat64("step")
	c.PositionTolerance = v.GetFloat64("position_tolerance")
	c.OrbitType = v.GetString("orbit_type")
	c.PositionAngle = v.GetString("position_angle")
	c.OutputStep = v.GetFloat64("output_step")
	c.Mass = v.GetFloat64("mass")
	return c.Validate()
}

// Scenario is a configured propagator ready to run.
type Scenario struct {
	Config     *Config
	Propagator *numerical.Propagator
	Harvester  *numerical.Harvester
	Initial    propagation.SpacecraftState
}

// Build assembles the propagator described by c.
func (c *Config) Build(logger log.Logger) (*Scenario, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	typ, err := orbit.ParseType(c.OrbitType)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	angle, err := orbit.ParsePositionAngle(c.PositionAngle)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	o, err := c.initialOrbit()
	if err != nil {
		return nil, err
	}
	integ, err := c.integrator(o, typ, angle)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.NewNopLogger()
	}
	p, err := numerical.New(integ,
		numerical.WithOrbitType(typ),
		numerical.WithPositionAngle(angle),
		numerical.WithLogger(log.With(logger, "scenario", c.Name)),
	)
	if err != nil {
		return nil, err
	}
	models, err := c.forceModels(o)
	if err != nil {
		return nil, err
	}
	for _, m := range models {
		if err := p.AddForceModel(m); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	s0 := propagation.NewState(o, attitude.NewInertial().Attitude(o), c.Mass)
	if err := p.SetInitialState(s0); err != nil {
		return nil, err
	}
	sc := &Scenario{Config: c, Propagator: p, Initial: s0}
	if !c.Matrices.Enabled {
		return sc, nil
	}
	for _, name := range c.Matrices.Selected {
		d, err := p.ParameterDriver(name)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		d.SetSelected(true)
	}
	if sc.Harvester, err = p.SetupMatricesComputation(c.Matrices.Name, nil, nil); err != nil {
		return nil, err
	}
	return sc, nil
}

func (c *Config) initialOrbit() (orbit.Orbit, error) {
	oc := c.Orbit
	if len(oc.Position) == 3 {
		pos := r3.Vec{X: oc.Position[0], Y: oc.Position[1], Z: oc.Position[2]}
		vel := r3.Vec{X: oc.Velocity[0], Y: oc.Velocity[1], Z: oc.Velocity[2]}
		return orbit.NewCartesian(pos, vel, c.Epoch, orbit.EME2000, orbit.EarthMu), nil
	}
	angle, err := orbit.ParsePositionAngle(oc.AnomalyType)
	if err != nil {
		return orbit.Orbit{}, fmt.Errorf("config: %w", err)
	}
	deg := func(x float64) float64 { return unit.AngleFromDeg(x).Rad() }
	o, err := orbit.NewKeplerian(oc.SemiMajorAxis, oc.Eccentricity, deg(oc.Inclination), deg(oc.ArgPerigee),
		deg(oc.RAAN), deg(oc.Anomaly), angle, c.Epoch, orbit.EME2000, orbit.EarthMu)
	if err != nil {
		return orbit.Orbit{}, fmt.Errorf("config: %w", err)
	}
	return o, nil
}

// integrator returns a fixed step method, or Dormand-Prince with
// tolerances derived from the position tolerance in the orbit type.
func (c *Config) integrator(o orbit.Orbit, typ orbit.Type, angle orbit.PositionAngle) (*integrators.Integrator, error) {
	switch strings.ToLower(c.Integrator) {
	case "euler":
		return integrators.NewEuler(c.Step), nil
	case "rk4":
		return integrators.NewRK4(c.Step), nil
	}
	abs, rel, err := orbit.Tolerances(c.PositionTolerance, o, typ, angle)
	if err != nil {
		return nil, fmt.Errorf("config: tolerances: %w", err)
	}
	cfg := dynamo.DefaultConfig()
	cfg.AbsTol, cfg.RelTol = abs, rel
	if c.Step > 0 {
		cfg.InitialStep = c.Step
	}
	return integrators.NewDormandPrince(cfg), nil
}

func (c *Config) forceModels(o orbit.Orbit) ([]forces.Model, error) {
	var models []forces.Model
	if c.Forces.J2 {
		models = append(models, forces.NewJ2(o.Mu))
	}
	if d := c.Forces.Drag; d != nil {
		models = append(models, forces.NewDrag(forces.DefaultAtmosphere(), d.Area, d.Cd))
	}
	if s := c.Forces.SRP; s != nil {
		models = append(models, forces.NewSolarRadiationPressure(s.Area, s.Cr))
	}
	for _, name := range c.Forces.ThirdBodies {
		switch strings.ToLower(name) {
		case "sun":
			models = append(models, forces.NewThirdBody(forces.Sun))
		case "moon":
			models = append(models, forces.NewThirdBody(forces.Moon))
		default:
			return nil, fmt.Errorf("config: unknown third body %q", name)
		}
	}
	for _, m := range c.Maneuvers {
		att, err := lof(m.Frame)
		if err != nil {
			return nil, err
		}
		dir := r3.Vec{X: m.Direction[0], Y: m.Direction[1], Z: m.Direction[2]}
		tm, err := forces.NewConstantThrustManeuver(m.Name, c.Epoch.Add(seconds(m.Start)), seconds(m.Duration),
			m.Thrust, m.Isp, dir, att)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		models = append(models, tm)
	}
	return models, nil
}

func lof(frame string) (attitude.Provider, error) {
	switch strings.ToLower(frame) {
	case "", "inertial":
		return attitude.NewInertial(), nil
	case "tnw":
		return attitude.LOF{Kind: attitude.TNW}, nil
	case "qsw":
		return attitude.LOF{Kind: attitude.QSW}, nil
	default:
		return nil, fmt.Errorf("config: unknown maneuver frame %q", frame)
	}
}
