package integrators

import "github.com/san-kum/orbprop/internal/dynamo"

// RK4 is the classical fourth order scheme. Dense output is the cubic Hermite
// polynomial through both step ends.
type RK4 struct{}

func (RK4) name() string { return "rk4" }
func (RK4) order() int   { return 4 }

func (RK4) attempt(sys dynamo.System, t0 float64, y0, k1 dynamo.State, h float64) (trial, error) {
	k2, err := sys.Derive(t0+0.5*h, axpy(y0, h, stage{0.5, k1}))
	if err != nil {
		return trial{}, err
	}
	k3, err := sys.Derive(t0+0.5*h, axpy(y0, h, stage{0.5, k2}))
	if err != nil {
		return trial{}, err
	}
	k4, err := sys.Derive(t0+h, axpy(y0, h, stage{1, k3}))
	if err != nil {
		return trial{}, err
	}

	n := len(y0)
	y1 := make(dynamo.State, n)
	h6 := h / 6.0
	for i := 0; i < n; i++ {
		y1[i] = y0[i] + h6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}

	f1, err := sys.Derive(t0+h, y1)
	if err != nil {
		return trial{}, err
	}
	return trial{
		y1:     y1,
		f1:     f1,
		interp: newHermite(t0, h, y0, k1, y1, f1),
	}, nil
}

// NewRK4 returns a fixed step classical Runge-Kutta integrator.
func NewRK4(step float64) *Integrator {
	return newFixed(RK4{}, step)
}
