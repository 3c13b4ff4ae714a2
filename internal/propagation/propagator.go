package propagation

import (
	"context"
	"time"
)

// StateInterpolator gives spacecraft states over one accepted step.
type StateInterpolator interface {
	PreviousState() SpacecraftState
	CurrentState() SpacecraftState
	Interpolate(date time.Time) (SpacecraftState, error)
	IsForward() bool
}

type StepHandler interface {
	Init(s0 SpacecraftState, target time.Time)
	HandleStep(interp StateInterpolator, isLast bool)
}

// Propagator is the contract shared by the numerical propagator and the
// ephemerides it generates.
type Propagator interface {
	InitialState() SpacecraftState
	ResetInitialState(s SpacecraftState) error
	Propagate(ctx context.Context, target time.Time) (SpacecraftState, error)
}

// BoundedPropagator is valid over [MinDate, MaxDate] only.
type BoundedPropagator interface {
	Propagator
	MinDate() time.Time
	MaxDate() time.Time
}

// FixedStepHandler calls fn at every multiple of step from the initial
// date, plus once at the final state.
type FixedStepHandler struct {
	step time.Duration
	fn   func(s SpacecraftState, isLast bool)
	next time.Time
	fwd  bool
	err  error
}

func NewFixedStepHandler(step time.Duration, fn func(s SpacecraftState, isLast bool)) *FixedStepHandler {
	return &FixedStepHandler{step: step, fn: fn}
}

func (h *FixedStepHandler) Init(s0 SpacecraftState, target time.Time) {
	h.fwd = !target.Before(s0.Date())
	h.next = s0.Date()
	h.err = nil
}

func (h *FixedStepHandler) HandleStep(interp StateInterpolator, isLast bool) {
	end := interp.CurrentState().Date()
	for h.err == nil && h.before(h.next, end) {
		s, err := interp.Interpolate(h.next)
		if err != nil {
			h.err = err
			return
		}
		h.fn(s, false)
		h.advance()
	}
	if isLast {
		h.fn(interp.CurrentState(), true)
	}
}

func (h *FixedStepHandler) before(a, b time.Time) bool {
	if h.fwd {
		return a.Before(b)
	}
	return a.After(b)
}

func (h *FixedStepHandler) advance() {
	if h.fwd {
		h.next = h.next.Add(h.step)
	} else {
		h.next = h.next.Add(-h.step)
	}
}

// Err returns the first interpolation error met by the handler.
func (h *FixedStepHandler) Err() error { return h.err }
