package dynamo

import (
	"fmt"
	"math"
)

// State is the flat vector handed to integrators. For orbit propagation it is
// the augmented vector: primary block first, then every additional block.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// AddScaled returns s + factor*other.
func (s State) AddScaled(factor float64, other State) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i]
		if i < len(other) {
			result[i] += factor * other[i]
		}
	}
	return result
}

// System is a first order ODE dy/dt = f(t, y). Derive must not mutate y and
// must not depend on previous calls.
type System interface {
	Dim() int
	Derive(t float64, y State) (State, error)
}

// Action tells the integration loop what to do after an event.
type Action int

const (
	Continue Action = iota
	Stop
	ResetState
	ResetDerivatives
)

func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	case ResetState:
		return "reset-state"
	case ResetDerivatives:
		return "reset-derivatives"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// EventDetector is a switching function on the flat state. A sign change of G
// between two accepted points is an event.
type EventDetector interface {
	G(t float64, y State) float64
	MaxCheck() float64
	Threshold() float64
	MaxIter() int
	// EventOccurred is called once per located event. increasing refers to
	// physical time, not to the integration direction.
	EventOccurred(t float64, y State, increasing bool) Action
	// ResetState is only called when EventOccurred returned ResetState.
	ResetState(t float64, y State) State
}

// StepInterpolator gives dense output over one accepted step. Instances are
// immutable and may be retained after the integration returns.
type StepInterpolator interface {
	PreviousTime() float64
	CurrentTime() float64
	Forward() bool
	Interpolate(t float64) State
	// Restrict returns a copy valid over [t0, t1] only.
	Restrict(t0, t1 float64) StepInterpolator
}

type StepHandler interface {
	Init(t0 float64, y0 State, t1 float64)
	HandleStep(interp StepInterpolator, isLast bool)
}

// Config holds the integrator settings. AbsTol and RelTol apply to the first
// MainDim components only; a single value applies to all of them.
type Config struct {
	InitialStep float64
	MinStep     float64
	MaxStep     float64
	AbsTol      []float64
	RelTol      []float64
	MainDim     int
	MaxSteps    int
}

func DefaultConfig() Config {
	return Config{
		MinStep:  1e-3,
		MaxStep:  300,
		AbsTol:   []float64{1e-3},
		RelTol:   []float64{1e-10},
		MainDim:  7,
		MaxSteps: 1_000_000,
	}
}

func (c Config) Validate() error {
	if c.MinStep <= 0 {
		return fmt.Errorf("min step must be positive, got %g", c.MinStep)
	}
	if c.MaxStep < c.MinStep {
		return fmt.Errorf("max step %g below min step %g", c.MaxStep, c.MinStep)
	}
	if len(c.AbsTol) == 0 || len(c.RelTol) == 0 {
		return fmt.Errorf("tolerances must not be empty")
	}
	if len(c.AbsTol) != len(c.RelTol) {
		return fmt.Errorf("%w: %d absolute vs %d relative tolerances", ErrDimensionMismatch, len(c.AbsTol), len(c.RelTol))
	}
	if len(c.AbsTol) > 1 && len(c.AbsTol) < c.MainDim {
		return fmt.Errorf("%w: %d tolerances for %d main components", ErrDimensionMismatch, len(c.AbsTol), c.MainDim)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max steps must be positive, got %d", c.MaxSteps)
	}
	return nil
}

// Tolerance returns the absolute and relative tolerance of main component i.
func (c Config) Tolerance(i int) (float64, float64) {
	if len(c.AbsTol) == 1 {
		return c.AbsTol[0], c.RelTol[0]
	}
	return c.AbsTol[i], c.RelTol[i]
}
