package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/orbprop/internal/dynamo"
)

// Problem is one integration request.
type Problem struct {
	System   dynamo.System
	T0       float64
	Y0       dynamo.State
	T1       float64
	Events   []dynamo.EventDetector
	Handlers []dynamo.StepHandler
	// Snap, when set, maps a located event time onto the caller's time grid.
	// The snapped time is used only if it is still past the root.
	Snap func(t float64) float64
}

type Solution struct {
	T       float64
	Y       dynamo.State
	Steps   int
	Stopped bool
}

// Integrator drives a Runge-Kutta method from T0 to T1. Steps are never
// shortened to hit the target or an event: both are reached through the
// dense output of the step that crosses them, and integration restarts from
// scratch after every reset. An Integrator holds no per-run state and may be
// shared between goroutines.
type Integrator struct {
	cfg      dynamo.Config
	method   method
	adaptive bool
	step     float64
	ctrl     stepScale
}

func newFixed(m method, step float64) *Integrator {
	cfg := dynamo.DefaultConfig()
	cfg.InitialStep = step
	cfg.MinStep = step
	cfg.MaxStep = step
	return &Integrator{cfg: cfg, method: m, step: step}
}

func (in *Integrator) Name() string          { return in.method.name() }
func (in *Integrator) Order() int            { return in.method.order() }
func (in *Integrator) Adaptive() bool        { return in.adaptive }
func (in *Integrator) Config() dynamo.Config { return in.cfg }

// WithConfig returns a copy of an adaptive integrator using cfg.
func (in *Integrator) WithConfig(cfg dynamo.Config) *Integrator {
	c := *in
	if c.adaptive {
		c.cfg = cfg
	}
	return &c
}

func (in *Integrator) Integrate(ctx context.Context, p Problem) (Solution, error) {
	if p.System == nil {
		return Solution{}, fmt.Errorf("integrate: nil system")
	}
	if len(p.Y0) != p.System.Dim() {
		return Solution{}, fmt.Errorf("integrate: %w: state has %d components, system %d",
			dynamo.ErrDimensionMismatch, len(p.Y0), p.System.Dim())
	}
	if in.adaptive {
		if err := in.cfg.Validate(); err != nil {
			return Solution{}, fmt.Errorf("integrate: %w", err)
		}
	} else if in.step <= 0 {
		return Solution{}, fmt.Errorf("integrate: step must be positive, got %g", in.step)
	}

	for _, h := range p.Handlers {
		h.Init(p.T0, p.Y0, p.T1)
	}

	t, y := p.T0, p.Y0.Clone()
	if p.T1 == p.T0 {
		for _, h := range p.Handlers {
			h.HandleStep(still{t: t, y: y}, true)
		}
		return Solution{T: t, Y: y}, nil
	}

	forward := p.T1 > p.T0
	dir := 1.0
	if !forward {
		dir = -1
	}

	f, err := p.System.Derive(t, y)
	if err != nil {
		return Solution{}, &dynamo.StepError{Step: 0, Time: t, Wrapped: err}
	}

	events := make([]*eventState, len(p.Events))
	for i, det := range p.Events {
		events[i] = newEventState(det, t, y, forward)
	}

	h := in.initialStep(p.System, t, y, f, dir)
	steps := 0

	for {
		if err := ctx.Err(); err != nil {
			return Solution{T: t, Y: y, Steps: steps}, fmt.Errorf("%w: %v", dynamo.ErrContextCanceled, err)
		}
		if steps >= in.cfg.MaxSteps {
			return Solution{T: t, Y: y, Steps: steps}, &dynamo.StepError{Step: steps, Time: t, Wrapped: dynamo.ErrMaxSteps}
		}

		tr, hNext, err := in.takeStep(p.System, t, y, f, h)
		if err != nil {
			return Solution{T: t, Y: y, Steps: steps}, &dynamo.StepError{Step: steps, Time: t, Wrapped: err}
		}
		steps++
		if !tr.y1.IsValid() {
			return Solution{T: t, Y: y, Steps: steps}, &dynamo.StepError{Step: steps, Time: t, Wrapped: dynamo.ErrInvalidState}
		}

		stepStart := t
		tEnd := tr.interp.CurrentTime()
		limit := tEnd
		last := (tEnd-p.T1)*dir >= 0
		if last {
			limit = p.T1
		}

		// Events are processed in time order. After a reset, only events at
		// the reset time are still processed before restarting.
		var (
			restarted bool
			tr0       float64
			yr        dynamo.State
			fired     = make(map[*eventState]bool)
		)
		for {
			var (
				first *eventState
				te    float64
			)
			for _, es := range events {
				if tc, ok := es.find(tr.interp, limit, p.Snap); ok && (first == nil || (tc-te)*dir < 0) {
					first, te = es, tc
				}
			}
			if first == nil {
				break
			}

			ye := tr.interp.Interpolate(te)
			if restarted {
				ye = yr
			}
			newSign := -first.sign
			increasing := (newSign > 0) == forward
			action := first.det.EventOccurred(te, ye, increasing)
			first.accept(te, first.det.G(te, ye))

			if action == dynamo.Continue {
				continue
			}

			if action == dynamo.Stop {
				for _, hd := range p.Handlers {
					if restarted {
						hd.HandleStep(still{t: te, y: ye}, true)
					} else {
						hd.HandleStep(tr.interp.Restrict(stepStart, te), true)
					}
				}
				return Solution{T: te, Y: ye, Steps: steps, Stopped: true}, nil
			}

			if !restarted {
				for _, hd := range p.Handlers {
					hd.HandleStep(tr.interp.Restrict(stepStart, te), te == p.T1)
				}
			}
			if action == dynamo.ResetState {
				ye = first.det.ResetState(te, ye)
				if len(ye) != p.System.Dim() {
					return Solution{T: te, Y: ye, Steps: steps}, &dynamo.StepError{Step: steps, Time: te, Wrapped: dynamo.ErrDimensionMismatch}
				}
			}
			fired[first] = true
			restarted, tr0, yr, limit = true, te, ye, te
		}
		if restarted {
			t, y = tr0, yr
			if t == p.T1 {
				return Solution{T: t, Y: y, Steps: steps}, nil
			}
			if f, err = p.System.Derive(t, y); err != nil {
				return Solution{T: t, Y: y, Steps: steps}, &dynamo.StepError{Step: steps, Time: t, Wrapped: err}
			}
			for _, es := range events {
				keep := 0
				if fired[es] {
					keep = es.sign
				}
				es.reset(t, y, keep)
			}
			h = in.initialStep(p.System, t, y, f, dir)
			continue
		}

		if last {
			yt := tr.interp.Interpolate(p.T1)
			for _, hd := range p.Handlers {
				hd.HandleStep(tr.interp.Restrict(stepStart, p.T1), true)
			}
			return Solution{T: p.T1, Y: yt, Steps: steps}, nil
		}

		for _, hd := range p.Handlers {
			hd.HandleStep(tr.interp, false)
		}
		for _, es := range events {
			es.tLast = tEnd
			es.gLast = es.det.G(tEnd, tr.y1)
			if es.sign == 0 {
				es.reset(tEnd, tr.y1, 0)
			}
		}
		t, y, f = tEnd, tr.y1, tr.f1
		h = hNext
	}
}

// takeStep attempts steps until the error estimate is acceptable and
// returns the accepted trial with the proposed next step size.
func (in *Integrator) takeStep(sys dynamo.System, t float64, y, f dynamo.State, h float64) (trial, float64, error) {
	for {
		tr, err := in.method.attempt(sys, t, y, f, h)
		if err != nil {
			return trial{}, 0, err
		}
		if !in.adaptive {
			return tr, h, nil
		}

		errNorm := in.errorNorm(y, tr.y1, tr.errEst)
		if math.IsNaN(errNorm) {
			return trial{}, 0, dynamo.ErrInvalidState
		}

		ctrl := in.ctrl
		if errNorm <= 1 {
			scale := ctrl.maxScale
			if errNorm > 0 {
				scale = math.Min(ctrl.maxScale, ctrl.safety*math.Pow(errNorm, -0.2))
			}
			return tr, in.clamp(h * scale), nil
		}

		scale := math.Max(ctrl.minScale, ctrl.safety*math.Pow(errNorm, -0.25))
		h *= scale
		if math.Abs(h) < in.cfg.MinStep {
			return trial{}, 0, dynamo.ErrStepTooSmall
		}
	}
}

func (in *Integrator) clamp(h float64) float64 {
	a := math.Abs(h)
	if a > in.cfg.MaxStep {
		a = in.cfg.MaxStep
	}
	if a < in.cfg.MinStep {
		a = in.cfg.MinStep
	}
	return math.Copysign(a, h)
}

func (in *Integrator) mainDim(n int) int {
	if in.cfg.MainDim <= 0 || in.cfg.MainDim > n {
		return n
	}
	return in.cfg.MainDim
}

// errorNorm is the RMS of the scaled error estimate over the main components.
func (in *Integrator) errorNorm(y0, y1, errEst dynamo.State) float64 {
	n := in.mainDim(len(y0))
	sum := 0.0
	for i := 0; i < n; i++ {
		atol, rtol := in.cfg.Tolerance(i)
		sc := atol + rtol*math.Max(math.Abs(y0[i]), math.Abs(y1[i]))
		r := errEst[i] / sc
		sum += r * r
	}
	return math.Sqrt(sum / float64(n))
}

// initialStep follows the Hairer estimate, restricted to the main components.
func (in *Integrator) initialStep(sys dynamo.System, t float64, y, f dynamo.State, dir float64) float64 {
	if !in.adaptive {
		return dir * in.step
	}
	if in.cfg.InitialStep > 0 {
		return dir * in.clamp(in.cfg.InitialStep)
	}

	n := in.mainDim(len(y))
	dnf, dny := 0.0, 0.0
	for i := 0; i < n; i++ {
		atol, rtol := in.cfg.Tolerance(i)
		rc := atol + rtol*math.Abs(y[i])
		dnf += (f[i] / rc) * (f[i] / rc)
		dny += (y[i] / rc) * (y[i] / rc)
	}

	h := 1e-6
	if math.Min(dnf, dny) >= 1e-10 {
		h = 1e-2 * math.Sqrt(dny/dnf)
	}
	h = math.Min(h, in.cfg.MaxStep)

	y2 := y.AddScaled(dir*h, f)
	f2, err := sys.Derive(t+dir*h, y2)
	if err != nil {
		return dir * in.clamp(h)
	}

	der2 := 0.0
	for i := 0; i < n; i++ {
		atol, rtol := in.cfg.Tolerance(i)
		rc := atol + rtol*math.Abs(y[i])
		d := (f2[i] - f[i]) / rc
		der2 += d * d
	}
	der2 = math.Sqrt(der2) / h
	der12 := math.Max(der2, math.Sqrt(dnf))

	var h1 float64
	if der12 <= 1e-15 {
		h1 = math.Max(1e-6, h*1e-3)
	} else {
		h1 = math.Pow(1e-2/der12, 1.0/float64(in.method.order()))
	}
	return dir * in.clamp(math.Min(1e2*h, h1))
}
