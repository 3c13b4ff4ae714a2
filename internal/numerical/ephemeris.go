package numerical

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/san-kum/orbprop/internal/dynamo"
	"github.com/san-kum/orbprop/internal/propagation"
)

// EphemerisGenerator records the steps of the propagations it is
// registered for. Each propagation replaces the previous ephemeris.
type EphemerisGenerator struct {
	r     *run
	s0    propagation.SpacecraftState
	steps []dynamo.StepInterpolator
	eph   *Ephemeris
}

func (g *EphemerisGenerator) start(r *run, s0 propagation.SpacecraftState) {
	g.r, g.s0, g.steps = r, s0, nil
}

func (g *EphemerisGenerator) Init(float64, dynamo.State, float64) {}

func (g *EphemerisGenerator) HandleStep(interp dynamo.StepInterpolator, isLast bool) {
	g.steps = append(g.steps, interp)
	if isLast {
		g.eph = newEphemeris(g.r, g.s0, g.steps)
		g.steps = nil
	}
}

// GeneratedEphemeris returns the ephemeris of the last completed
// propagation.
func (g *EphemerisGenerator) GeneratedEphemeris() (*Ephemeris, error) {
	if g.eph == nil {
		return nil, fmt.Errorf("numerical: no ephemeris generated yet")
	}
	return g.eph, nil
}

type ephemerisStep struct {
	lo, hi float64
	interp dynamo.StepInterpolator
}

// Ephemeris replays a propagation from its recorded steps. It is immutable
// and keeps the state providers registered when the propagation started;
// those are evaluated again on every replayed state and must be stateless
// for the replay to be stable and safe for concurrent use.
type Ephemeris struct {
	r        *run
	initial  propagation.SpacecraftState
	steps    []ephemerisStep
	min, max time.Time
}

func newEphemeris(r *run, s0 propagation.SpacecraftState, interps []dynamo.StepInterpolator) *Ephemeris {
	e := &Ephemeris{r: r, initial: s0}
	for _, it := range interps {
		lo, hi := it.PreviousTime(), it.CurrentTime()
		if hi < lo {
			lo, hi = hi, lo
		}
		e.steps = append(e.steps, ephemerisStep{lo: lo, hi: hi, interp: it})
	}
	sort.SliceStable(e.steps, func(i, j int) bool { return e.steps[i].lo < e.steps[j].lo })
	e.min = r.dateAt(e.steps[0].lo)
	e.max = r.dateAt(e.steps[len(e.steps)-1].hi)
	return e
}

func (e *Ephemeris) MinDate() time.Time { return e.min }
func (e *Ephemeris) MaxDate() time.Time { return e.max }

// InitialState returns the state the recorded propagation started from.
func (e *Ephemeris) InitialState() propagation.SpacecraftState { return e.initial }

func (e *Ephemeris) ResetInitialState(propagation.SpacecraftState) error {
	return propagation.NewError(propagation.NonResettable)
}

// Propagate interpolates the state at date, which must lie within
// [MinDate, MaxDate].
func (e *Ephemeris) Propagate(_ context.Context, date time.Time) (propagation.SpacecraftState, error) {
	if date.Before(e.min) {
		return propagation.SpacecraftState{}, propagation.NewError(propagation.OutOfRangeBefore, date, e.min, e.min.Sub(date))
	}
	if date.After(e.max) {
		return propagation.SpacecraftState{}, propagation.NewError(propagation.OutOfRangeAfter, date, e.max, date.Sub(e.max))
	}
	t := e.r.offset(date)
	if date.Equal(e.max) {
		t = e.steps[len(e.steps)-1].hi
	}
	i := sort.Search(len(e.steps), func(i int) bool { return e.steps[i].hi >= t })
	if i == len(e.steps) {
		i = len(e.steps) - 1
	}
	return e.r.state(t, e.steps[i].interp.Interpolate(t))
}
