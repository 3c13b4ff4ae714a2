package integrators

import "github.com/san-kum/orbprop/internal/dynamo"

// span is the validity window shared by all interpolators. t0 and h describe
// the underlying step, lo and hi the (possibly restricted) window.
type span struct {
	t0, h  float64
	lo, hi float64
}

func (s span) PreviousTime() float64 { return s.lo }
func (s span) CurrentTime() float64  { return s.hi }
func (s span) Forward() bool         { return s.h >= 0 }

func (s span) theta(t float64) float64 {
	if s.h == 0 {
		return 0
	}
	return (t - s.t0) / s.h
}

type hermite struct {
	span
	y0, f0, y1, f1 dynamo.State
}

func newHermite(t0, h float64, y0, f0, y1, f1 dynamo.State) *hermite {
	return &hermite{
		span: span{t0: t0, h: h, lo: t0, hi: t0 + h},
		y0:   y0,
		f0:   f0,
		y1:   y1,
		f1:   f1,
	}
}

func (p *hermite) Interpolate(t float64) dynamo.State {
	th := p.theta(t)
	switch th {
	case 0:
		return p.y0.Clone()
	case 1:
		return p.y1.Clone()
	}
	th2 := th * th
	th3 := th2 * th
	h00 := 2*th3 - 3*th2 + 1
	h10 := th3 - 2*th2 + th
	h01 := -2*th3 + 3*th2
	h11 := th3 - th2

	out := make(dynamo.State, len(p.y0))
	for i := range out {
		out[i] = h00*p.y0[i] + h10*p.h*p.f0[i] + h01*p.y1[i] + h11*p.h*p.f1[i]
	}
	return out
}

func (p *hermite) Restrict(t0, t1 float64) dynamo.StepInterpolator {
	c := *p
	c.lo, c.hi = t0, t1
	return &c
}

// dopri holds the continuous extension coefficients of one Dormand-Prince step.
type dopri struct {
	span
	y0, y1     dynamo.State
	r2, r3, r4 dynamo.State
	r5         dynamo.State
}

func newDopriInterpolator(t0, h float64, y0, y1, k1, k7, r5 dynamo.State) *dopri {
	n := len(y0)
	r2 := make(dynamo.State, n)
	r3 := make(dynamo.State, n)
	r4 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		r2[i] = y1[i] - y0[i]
		r3[i] = h*k1[i] - r2[i]
		r4[i] = r2[i] - h*k7[i] - r3[i]
	}
	return &dopri{
		span: span{t0: t0, h: h, lo: t0, hi: t0 + h},
		y0:   y0,
		y1:   y1,
		r2:   r2,
		r3:   r3,
		r4:   r4,
		r5:   r5,
	}
}

func (p *dopri) Interpolate(t float64) dynamo.State {
	th := p.theta(t)
	switch th {
	case 0:
		return p.y0.Clone()
	case 1:
		return p.y1.Clone()
	}
	th1 := 1 - th
	out := make(dynamo.State, len(p.y0))
	for i := range out {
		out[i] = p.y0[i] + th*(p.r2[i]+th1*(p.r3[i]+th*(p.r4[i]+th1*p.r5[i])))
	}
	return out
}

func (p *dopri) Restrict(t0, t1 float64) dynamo.StepInterpolator {
	c := *p
	c.lo, c.hi = t0, t1
	return &c
}

// still is the interpolator of an empty integration range.
type still struct {
	t float64
	y dynamo.State
}

func (s still) PreviousTime() float64                         { return s.t }
func (s still) CurrentTime() float64                          { return s.t }
func (s still) Forward() bool                                 { return true }
func (s still) Interpolate(float64) dynamo.State              { return s.y.Clone() }
func (s still) Restrict(_, _ float64) dynamo.StepInterpolator { return s }
