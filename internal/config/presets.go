package config

import (
	"sort"
	"time"
)

var presetEpoch = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

var Presets = map[string]*Config{
	"leo": {
		Name: "leo", Epoch: presetEpoch, Duration: 2 * 5554, Integrator: "dopri5",
		PositionTolerance: 0.1, OrbitType: "cartesian", PositionAngle: "true", OutputStep: 60, Mass: 500,
		Orbit:    OrbitConfig{SemiMajorAxis: 6778137, Eccentricity: 0.0005, Inclination: 51.6, RAAN: 30, AnomalyType: "true"},
		Forces:   ForcesConfig{J2: true},
		Matrices: MatricesConfig{Enabled: true, Name: DefaultSTMName},
	},
	"leo-maneuver": {
		Name: "leo-maneuver", Epoch: presetEpoch, Duration: 3 * 3600, Integrator: "dopri5",
		PositionTolerance: 0.1, OrbitType: "equinoctial", PositionAngle: "true", OutputStep: 60, Mass: 800,
		Orbit:  OrbitConfig{SemiMajorAxis: 6878137, Eccentricity: 0.001, Inclination: 51.6, ArgPerigee: 10, AnomalyType: "true"},
		Forces: ForcesConfig{J2: true, Drag: &DragConfig{Area: 4, Cd: 2.2}},

		Maneuvers: []ManeuverConfig{
			{Name: "raise", Start: 1800, Duration: 600, Thrust: 1, Isp: 220, Direction: [3]float64{1, 0, 0}, Frame: "tnw"},
		},
		Matrices: MatricesConfig{Enabled: true, Name: DefaultSTMName, Selected: []string{"raisethrust", "raise_MEDIAN"}},
	},
	"geo": {
		Name: "geo", Epoch: presetEpoch, Duration: 86164, Integrator: "dopri5",
		PositionTolerance: 1, OrbitType: "equinoctial", PositionAngle: "mean", OutputStep: 600, Mass: 3000,
		Orbit: OrbitConfig{SemiMajorAxis: 42164137, Eccentricity: 0.0002, Inclination: 0.05, AnomalyType: "mean"},

		Forces: ForcesConfig{
			J2:          true,
			SRP:         &SRPConfig{Area: 40, Cr: 1.5},
			ThirdBodies: []string{"sun", "moon"},
		},
		Matrices: MatricesConfig{Enabled: true, Name: DefaultSTMName, Selected: []string{"reflection coefficient"}},
	},
	"sso-drag": {
		Name: "sso-drag", Epoch: presetEpoch, Duration: 6 * 3600, Integrator: "rk4",
		Step: 20, OrbitType: "keplerian", PositionAngle: "true", OutputStep: 120, Mass: 150,
		Orbit:    OrbitConfig{SemiMajorAxis: 6878137, Eccentricity: 0.0012, Inclination: 97.4, ArgPerigee: 90, RAAN: 120, AnomalyType: "true"},
		Forces:   ForcesConfig{J2: true, Drag: &DragConfig{Area: 1.2, Cd: 2.2}},
		Matrices: MatricesConfig{Enabled: true, Name: DefaultSTMName, Selected: []string{"drag coefficient"}},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	c.Maneuvers = append([]ManeuverConfig(nil), cfg.Maneuvers...)
	c.Matrices.Selected = append([]string(nil), cfg.Matrices.Selected...)
	c.Forces.ThirdBodies = append([]string(nil), cfg.Forces.ThirdBodies...)
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
