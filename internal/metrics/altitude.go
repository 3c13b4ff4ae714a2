package metrics

import (
	"math"

	"github.com/san-kum/orbprop/internal/forces"
	"github.com/san-kum/orbprop/internal/propagation"
	"gonum.org/v1/gonum/spatial/r3"
)

// MinAltitude is the lowest altitude above the equatorial radius (m).
type MinAltitude struct {
	name string
	min  float64
}

func NewMinAltitude() *MinAltitude {
	return &MinAltitude{name: "min_altitude", min: math.Inf(1)}
}

func (m *MinAltitude) Name() string {
	return m.name
}

func (m *MinAltitude) Observe(s propagation.SpacecraftState) {
	m.min = math.Min(m.min, r3.Norm(s.Orbit().Position)-forces.EarthRadius)
}

func (m *MinAltitude) Value() float64 {
	if math.IsInf(m.min, 1) {
		return 0
	}
	return m.min
}

func (m *MinAltitude) Reset() {
	m.min = math.Inf(1)
}
