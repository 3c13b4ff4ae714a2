package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDuration          = 3600.0
	DefaultStep              = 30.0
	DefaultPositionTolerance = 1.0
	DefaultOutputStep        = 60.0
	DefaultMass              = 1000.0
	DefaultSTMName           = "stm"
)

// Config describes one propagation scenario. Durations and offsets are in
// seconds, angles in degrees.
type Config struct {
	Name              string           `yaml:"name"`
	Epoch             time.Time        `yaml:"epoch"`
	Duration          float64          `yaml:"duration"`
	Integrator        string           `yaml:"integrator"`
	Step              float64          `yaml:"step"`
	PositionTolerance float64          `yaml:"position_tolerance"`
	OrbitType         string           `yaml:"orbit_type"`
	PositionAngle     string           `yaml:"position_angle"`
	OutputStep        float64          `yaml:"output_step"`
	Mass              float64          `yaml:"mass"`
	Orbit             OrbitConfig      `yaml:"orbit"`
	Forces            ForcesConfig     `yaml:"forces"`
	Maneuvers         []ManeuverConfig `yaml:"maneuvers,omitempty"`
	Matrices          MatricesConfig   `yaml:"matrices"`
}

// OrbitConfig holds either Keplerian elements or a Cartesian state. The
// Cartesian state wins when Position is set.
type OrbitConfig struct {
	SemiMajorAxis float64   `yaml:"a"`
	Eccentricity  float64   `yaml:"e"`
	Inclination   float64   `yaml:"i"`
	ArgPerigee    float64   `yaml:"pa"`
	RAAN          float64   `yaml:"raan"`
	Anomaly       float64   `yaml:"anomaly"`
	AnomalyType   string    `yaml:"anomaly_type"`
	Position      []float64 `yaml:"position,omitempty"`
	Velocity      []float64 `yaml:"velocity,omitempty"`
}

type ForcesConfig struct {
	J2          bool        `yaml:"j2"`
	Drag        *DragConfig `yaml:"drag,omitempty"`
	SRP         *SRPConfig  `yaml:"srp,omitempty"`
	ThirdBodies []string    `yaml:"third_bodies,omitempty"`
}

type DragConfig struct {
	Area float64 `yaml:"area"`
	Cd   float64 `yaml:"cd"`
}

type SRPConfig struct {
	Area float64 `yaml:"area"`
	Cr   float64 `yaml:"cr"`
}

// ManeuverConfig is a constant thrust burn. Start is an offset from the
// scenario epoch. Frame is inertial, tnw or qsw.
type ManeuverConfig struct {
	Name      string     `yaml:"name"`
	Start     float64    `yaml:"start"`
	Duration  float64    `yaml:"duration"`
	Thrust    float64    `yaml:"thrust"`
	Isp       float64    `yaml:"isp"`
	Direction [3]float64 `yaml:"direction"`
	Frame     string     `yaml:"frame"`
}

// MatricesConfig enables the state transition matrix and the Jacobian
// columns of the selected parameters.
type MatricesConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Name     string   `yaml:"name"`
	Selected []string `yaml:"selected,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:              "default",
		Epoch:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:          DefaultDuration,
		Integrator:        "dopri5",
		Step:              DefaultStep,
		PositionTolerance: DefaultPositionTolerance,
		OrbitType:         "cartesian",
		PositionAngle:     "true",
		OutputStep:        DefaultOutputStep,
		Mass:              DefaultMass,
		Orbit: OrbitConfig{
			SemiMajorAxis: 6878137,
			Eccentricity:  0.001,
			Inclination:   51.6,
			AnomalyType:   "true",
		},
		Forces:   ForcesConfig{J2: true},
		Matrices: MatricesConfig{Name: DefaultSTMName},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML scenario over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Target is the final date of the scenario.
func (c *Config) Target() time.Time {
	return c.Epoch.Add(seconds(c.Duration))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Integrator) {
	case "euler", "rk4":
		if c.Step <= 0 {
			return fmt.Errorf("config: %s needs a positive step, got %g", c.Integrator, c.Step)
		}
	case "dopri5":
		if c.PositionTolerance <= 0 {
			return fmt.Errorf("config: dopri5 needs a positive position tolerance, got %g", c.PositionTolerance)
		}
	default:
		return fmt.Errorf("config: unknown integrator %q", c.Integrator)
	}
	if c.Duration == 0 {
		return fmt.Errorf("config: zero duration")
	}
	if c.Mass <= 0 {
		return fmt.Errorf("config: mass must be positive, got %g", c.Mass)
	}
	if c.OutputStep <= 0 {
		return fmt.Errorf("config: output step must be positive, got %g", c.OutputStep)
	}
	if len(c.Orbit.Position) > 0 && (len(c.Orbit.Position) != 3 || len(c.Orbit.Velocity) != 3) {
		return fmt.Errorf("config: cartesian orbit needs 3 position and 3 velocity components")
	}
	if c.Matrices.Enabled && c.Matrices.Name == "" {
		return fmt.Errorf("config: matrices enabled without a name")
	}
	for _, m := range c.Maneuvers {
		if m.Duration < 0 {
			return fmt.Errorf("config: maneuver %q has a negative duration", m.Name)
		}
	}
	return nil
}
