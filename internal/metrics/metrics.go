// Package metrics summarizes a propagation from the states it goes
// through.
package metrics

import "github.com/san-kum/orbprop/internal/propagation"

type Metric interface {
	Name() string
	Observe(s propagation.SpacecraftState)
	Value() float64
	Reset()
}

// Default returns the metrics recorded for every run.
func Default() []Metric {
	return []Metric{NewEnergy(), NewEnergyDrift(), NewMinAltitude(), NewPropellant()}
}

// Collect returns the value of every metric by name.
func Collect(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
