package integrators

import "github.com/san-kum/orbprop/internal/dynamo"

type Euler struct{}

func (Euler) name() string { return "euler" }
func (Euler) order() int   { return 1 }

func (Euler) attempt(sys dynamo.System, t0 float64, y0, f0 dynamo.State, h float64) (trial, error) {
	y1 := y0.AddScaled(h, f0)
	f1, err := sys.Derive(t0+h, y1)
	if err != nil {
		return trial{}, err
	}
	return trial{
		y1:     y1,
		f1:     f1,
		interp: newHermite(t0, h, y0, f0, y1, f1),
	}, nil
}

// NewEuler returns a fixed step explicit Euler integrator.
func NewEuler(step float64) *Integrator {
	return newFixed(Euler{}, step)
}
