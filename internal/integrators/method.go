package integrators

import "github.com/san-kum/orbprop/internal/dynamo"

// method is one explicit Runge-Kutta scheme. attempt takes a single step of
// size h from (t0, y0) where f0 = f(t0, y0).
type method interface {
	name() string
	order() int
	attempt(sys dynamo.System, t0 float64, y0, f0 dynamo.State, h float64) (trial, error)
}

type trial struct {
	y1     dynamo.State
	f1     dynamo.State
	errEst dynamo.State // nil for fixed step schemes
	interp dynamo.StepInterpolator
}

// stepScale is the step size controller shared by embedded schemes.
type stepScale struct {
	safety   float64
	minScale float64
	maxScale float64
}

func axpy(y dynamo.State, h float64, k ...stage) dynamo.State {
	out := y.Clone()
	for _, s := range k {
		c := h * s.c
		if c == 0 {
			continue
		}
		for i := range out {
			out[i] += c * s.k[i]
		}
	}
	return out
}

type stage struct {
	c float64
	k dynamo.State
}
