package numerical

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/go-kit/log/level"
	"github.com/san-kum/orbprop/internal/dynamo"
	"github.com/san-kum/orbprop/internal/forces"
	"github.com/san-kum/orbprop/internal/propagation"
)

// block locates a named additional state inside the flat vector.
type block struct {
	name   string
	offset int
	dim    int
}

type constant struct {
	name  string
	value []float64
}

// run is the state of one propagation: the flat layout, the frozen force
// model stack and the adapters handed to the integrator. It implements
// dynamo.System. Integration time is seconds since ref.
type run struct {
	p      *Propagator
	ref    time.Time
	target time.Time
	t1     float64
	mapper propagation.StateMapper
	agg    *forces.Aggregator

	integrated []propagation.AdditionalDerivativesProvider
	blocks     []block
	providers  []propagation.AdditionalStateProvider
	unmanaged  []constant
	detectors  []*eventAdapter
	matrices   *matrices
	dim        int

	// err is the first error raised where the integrator cannot report it.
	err error
}

func newRun(p *Propagator, s0 propagation.SpacecraftState, target time.Time) (*run, propagation.SpacecraftState, error) {
	agg, err := p.aggregator()
	if err != nil {
		return nil, s0, err
	}
	r := &run{
		p:         p,
		ref:       s0.Date(),
		target:    target,
		agg:       agg,
		mapper:    propagation.NewStateMapper(s0, p.orbitType, p.angle, p.att),
		providers: slices.Clone(p.providers),
	}
	r.t1 = r.offset(target)

	if p.harvester != nil {
		if r.matrices, s0, err = p.harvester.prepare(r, s0); err != nil {
			return nil, s0, err
		}
		r.integrated = append(r.integrated, r.matrices.providers()...)
	}
	r.integrated = append(r.integrated, p.integrated...)

	seen := make(map[string]bool)
	off := propagation.PrimaryDim
	for _, ip := range r.integrated {
		if seen[ip.Name()] {
			return nil, s0, propagation.NewError(propagation.NameConflict, ip.Name())
		}
		seen[ip.Name()] = true
		v, err := s0.AdditionalState(ip.Name())
		if err != nil {
			return nil, s0, err
		}
		if len(v) != ip.Dimension() {
			return nil, s0, propagation.NewError(propagation.DimensionMismatch, len(v), ip.Dimension())
		}
		r.blocks = append(r.blocks, block{name: ip.Name(), offset: off, dim: ip.Dimension()})
		off += ip.Dimension()
	}
	r.dim = off
	for _, sp := range r.providers {
		if seen[sp.Name()] {
			return nil, s0, propagation.NewError(propagation.NameConflict, sp.Name())
		}
		seen[sp.Name()] = true
	}
	for _, name := range s0.AdditionalStates() {
		if !seen[name] {
			v, _ := s0.AdditionalState(name)
			r.unmanaged = append(r.unmanaged, constant{name: name, value: v})
		}
	}

	if err := agg.Init(s0, target); err != nil {
		return nil, s0, err
	}
	for _, ip := range r.integrated {
		if err := ip.Init(s0, target); err != nil {
			return nil, s0, err
		}
	}
	for _, sp := range r.providers {
		if err := sp.Init(s0, target); err != nil {
			return nil, s0, err
		}
	}
	detectors := append(agg.EventDetectors(), p.detectors...)
	for _, d := range detectors {
		if err := d.Init(s0, target); err != nil {
			return nil, s0, err
		}
		r.detectors = append(r.detectors, newEventAdapter(r, d))
	}

	s0, err = propagation.ResolveProviders(s0, r.providers)
	return r, s0, err
}

// offset converts a date to integration time.
func (r *run) offset(date time.Time) float64 { return date.Sub(r.ref).Seconds() }

// dateAt converts an integration time to a date on the nanosecond grid.
func (r *run) dateAt(t float64) time.Time {
	if t == r.t1 {
		return r.target
	}
	return r.ref.Add(time.Duration(math.Round(t * 1e9)))
}

// snap moves event times onto representable dates, so that date based
// events land exactly on their date.
func (r *run) snap(t float64) float64 { return r.offset(r.dateAt(t)) }

func (r *run) fail(err error) {
	if r.err == nil {
		r.err = err
		level.Warn(r.p.logger).Log("msg", "propagation aborted", "err", err)
	}
}

func (r *run) Dim() int { return r.dim }

// state builds the spacecraft state of the flat vector y at time t.
func (r *run) state(t float64, y dynamo.State) (propagation.SpacecraftState, error) {
	s := r.mapper.FromPrimary(y, r.dateAt(t))
	for _, c := range r.unmanaged {
		s = s.WithAdditionalState(c.name, c.value...)
	}
	for _, b := range r.blocks {
		s = s.WithAdditionalState(b.name, y[b.offset:b.offset+b.dim]...)
	}
	return propagation.ResolveProviders(s, r.providers)
}

// array is the inverse of state. Blocks missing from s are taken from
// fallback when it is not nil.
func (r *run) array(s propagation.SpacecraftState) dynamo.State {
	y, _ := r.arrayWith(s, nil)
	return y
}

func (r *run) arrayWith(s propagation.SpacecraftState, fallback dynamo.State) (dynamo.State, error) {
	y := make(dynamo.State, r.dim)
	propagation.PrimaryArray(s, y)
	for _, b := range r.blocks {
		v, err := s.AdditionalState(b.name)
		switch {
		case err == nil && len(v) == b.dim:
			copy(y[b.offset:], v)
		case err == nil:
			return nil, propagation.NewError(propagation.DimensionMismatch, len(v), b.dim)
		case fallback != nil:
			copy(y[b.offset:], fallback[b.offset:b.offset+b.dim])
		default:
			return nil, err
		}
	}
	return y, nil
}

// primary returns the derivative of position, velocity and mass due to
// the force models alone.
func (r *run) primary(s propagation.SpacecraftState) ([propagation.PrimaryDim]float64, error) {
	var f [propagation.PrimaryDim]float64
	acc, mdot, err := r.agg.Derivatives(s, r.agg.Values(s.Date()))
	if err != nil {
		return f, err
	}
	v := s.Orbit().Velocity
	f[0], f[1], f[2] = v.X, v.Y, v.Z
	f[3], f[4], f[5] = acc.X, acc.Y, acc.Z
	f[6] = mdot
	return f, nil
}

func (r *run) Derive(t float64, y dynamo.State) (dynamo.State, error) {
	if r.err != nil {
		return nil, r.err
	}
	s, err := r.state(t, y)
	if err != nil {
		return nil, err
	}
	f, err := r.primary(s)
	if err != nil {
		return nil, err
	}
	out := make(dynamo.State, r.dim)
	copy(out, f[:])

	pending := make([]int, len(r.integrated))
	for i := range pending {
		pending[i] = i
	}
	for len(pending) > 0 {
		var yielding []int
		for _, i := range pending {
			ip, b := r.integrated[i], r.blocks[i]
			if ip.Yields(s) {
				yielding = append(yielding, i)
				continue
			}
			cd, err := ip.Derivatives(s)
			if err != nil {
				return nil, fmt.Errorf("%s derivatives: %w", ip.Name(), err)
			}
			if len(cd.Additional) != b.dim {
				return nil, propagation.NewError(propagation.DimensionMismatch, len(cd.Additional), b.dim)
			}
			copy(out[b.offset:], cd.Additional)
			for k, inc := range cd.MainIncrements {
				if k < propagation.PrimaryDim {
					out[k] += inc
				}
			}
			s = s.WithAdditionalStateDerivative(ip.Name(), cd.Additional...)
		}
		if len(yielding) == len(pending) {
			names := make([]string, len(yielding))
			for k, i := range yielding {
				names[k] = r.integrated[i].Name()
			}
			return nil, propagation.NewError(propagation.CyclicDependency, names)
		}
		pending = yielding
	}
	return out, nil
}

// eventAdapter exposes a spacecraft state detector to the integrator. When
// matrices are computed and the detector switches the dynamics, the
// matrices are corrected across the event.
type eventAdapter struct {
	r       *run
	det     propagation.EventDetector
	sw      propagation.SwitchDetector
	gLast   float64
	pending dynamo.State
}

func newEventAdapter(r *run, d propagation.EventDetector) *eventAdapter {
	a := &eventAdapter{r: r, det: d}
	a.sw, _ = d.(propagation.SwitchDetector)
	return a
}

func (a *eventAdapter) G(t float64, y dynamo.State) float64 {
	s, err := a.r.state(t, y)
	if err != nil {
		a.r.fail(err)
		return a.gLast
	}
	a.gLast = a.det.G(s)
	return a.gLast
}

func (a *eventAdapter) MaxCheck() float64  { return a.det.MaxCheck() }
func (a *eventAdapter) Threshold() float64 { return a.det.Threshold() }
func (a *eventAdapter) MaxIter() int       { return a.det.MaxIter() }

func (a *eventAdapter) EventOccurred(t float64, y dynamo.State, increasing bool) dynamo.Action {
	r := a.r
	s, err := r.state(t, y)
	if err != nil {
		r.fail(err)
		return dynamo.Stop
	}
	correct := a.sw != nil && r.matrices != nil
	var before [propagation.PrimaryDim]float64
	if correct {
		if before, err = r.primary(s); err != nil {
			r.fail(err)
			return dynamo.Stop
		}
	}

	h := a.det.Handler()
	action := h.EventOccurred(s, a.det, increasing)
	if r.matrices != nil {
		r.matrices.cached = false
	}
	level.Debug(r.p.logger).Log("msg", "event", "detector", fmt.Sprintf("%T", a.det),
		"date", s.Date(), "increasing", increasing, "action", action)

	a.pending = nil
	after := s
	if action == dynamo.ResetState {
		after = h.ResetState(a.det, s)
		if a.pending, err = r.arrayWith(after, y); err != nil {
			r.fail(err)
			return dynamo.Stop
		}
	}
	if correct && (action == dynamo.ResetState || action == dynamo.ResetDerivatives) {
		f, err := r.primary(after)
		if err != nil {
			r.fail(err)
			return dynamo.Stop
		}
		if a.pending == nil {
			a.pending = y.Clone()
		}
		r.matrices.correct(a.pending, before, f, a.sw.SwitchPartials(s))
		action = dynamo.ResetState
	}
	return action
}

func (a *eventAdapter) ResetState(_ float64, y dynamo.State) dynamo.State {
	if a.pending == nil {
		return y
	}
	return a.pending
}

// stateInterpolator exposes a step interpolator to spacecraft state step
// handlers.
type stateInterpolator struct {
	r      *run
	interp dynamo.StepInterpolator
}

func (si *stateInterpolator) at(t float64) propagation.SpacecraftState {
	s, err := si.r.state(t, si.interp.Interpolate(t))
	if err != nil {
		si.r.fail(err)
	}
	return s
}

func (si *stateInterpolator) PreviousState() propagation.SpacecraftState {
	return si.at(si.interp.PreviousTime())
}

func (si *stateInterpolator) CurrentState() propagation.SpacecraftState {
	return si.at(si.interp.CurrentTime())
}

func (si *stateInterpolator) Interpolate(date time.Time) (propagation.SpacecraftState, error) {
	return si.r.state(si.r.offset(date), si.interp.Interpolate(si.r.offset(date)))
}

func (si *stateInterpolator) IsForward() bool { return si.interp.Forward() }

type handlerAdapter struct {
	r *run
	h propagation.StepHandler
}

func (ha *handlerAdapter) Init(float64, dynamo.State, float64) {}

func (ha *handlerAdapter) HandleStep(interp dynamo.StepInterpolator, isLast bool) {
	ha.h.HandleStep(&stateInterpolator{r: ha.r, interp: interp}, isLast)
}
