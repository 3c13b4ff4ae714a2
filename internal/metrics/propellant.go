package metrics

import "github.com/san-kum/orbprop/internal/propagation"

// Propellant is the mass consumed between the first and last observed
// states (kg).
type Propellant struct {
	name        string
	first, last float64
	samples     int
}

func NewPropellant() *Propellant {
	return &Propellant{name: "propellant"}
}

func (p *Propellant) Name() string {
	return p.name
}

func (p *Propellant) Observe(s propagation.SpacecraftState) {
	if p.samples == 0 {
		p.first = s.Mass()
	}
	p.last = s.Mass()
	p.samples++
}

func (p *Propellant) Value() float64 {
	if p.samples == 0 {
		return 0
	}
	return p.first - p.last
}

func (p *Propellant) Reset() {
	p.first, p.last = 0, 0
	p.samples = 0
}
