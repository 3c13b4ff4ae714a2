package integrators

import (
	"math"

	"github.com/san-kum/orbprop/internal/dynamo"
)

// eventState tracks the sign of one switching function along the
// integration. sign is 0 until the initial sign has been established.
type eventState struct {
	det     dynamo.EventDetector
	forward bool
	tLast   float64
	gLast   float64
	sign    int
}

func newEventState(det dynamo.EventDetector, t0 float64, y0 dynamo.State, forward bool) *eventState {
	es := &eventState{det: det, forward: forward}
	es.reset(t0, y0, 0)
	return es
}

// reset restarts tracking at (t, y). keep is used as the sign when g is
// exactly zero there.
func (es *eventState) reset(t float64, y dynamo.State, keep int) {
	es.tLast = t
	es.gLast = es.det.G(t, y)
	switch {
	case es.gLast > 0:
		es.sign = 1
	case es.gLast < 0:
		es.sign = -1
	default:
		es.sign = keep
	}
}

// signOf treats an exact zero as already being on the other side.
func signOf(g float64, current int) int {
	switch {
	case g > 0:
		return 1
	case g < 0:
		return -1
	default:
		return -current
	}
}

func (es *eventState) dir() float64 {
	if es.forward {
		return 1
	}
	return -1
}

func (es *eventState) g(interp dynamo.StepInterpolator, t float64) float64 {
	return es.det.G(t, interp.Interpolate(t))
}

// settle resolves a zero initial value by probing just after tLast.
func (es *eventState) settle(interp dynamo.StepInterpolator, limit float64) {
	if es.sign != 0 {
		return
	}
	probe := es.tLast + es.dir()*math.Max(es.det.Threshold(), math.Abs(es.tLast)*1e-15)
	if (limit-probe)*es.dir() < 0 {
		probe = limit
	}
	if gp := es.g(interp, probe); gp < 0 {
		es.sign = -1
	} else {
		es.sign = 1
	}
}

// find searches (tLast, limit] for the first sign change. It returns the
// event time, located on the new side of the root.
func (es *eventState) find(interp dynamo.StepInterpolator, limit float64, snap func(float64) float64) (float64, bool) {
	es.settle(interp, limit)

	span := limit - es.tLast
	if span*es.dir() <= 0 {
		return 0, false
	}
	n := int(math.Ceil(math.Abs(span) / es.det.MaxCheck()))
	if n < 1 {
		n = 1
	}

	ta, ga := es.tLast, es.gLast
	for i := 1; i <= n; i++ {
		tb := es.tLast + span*float64(i)/float64(n)
		if i == n {
			tb = limit
		}
		gb := es.g(interp, tb)
		if signOf(gb, es.sign) != es.sign {
			te := es.locate(interp, ta, ga, tb, gb)
			if snap != nil {
				if ts := snap(te); ts != te && (ts-es.tLast)*es.dir() > 0 && (limit-ts)*es.dir() >= 0 &&
					signOf(es.g(interp, ts), es.sign) != es.sign {
					te = ts
				}
			}
			return te, true
		}
		ta, ga = tb, gb
	}
	return 0, false
}

// locate runs the Illinois variant of regula falsi on a bracket where ta is
// on the current side and tb on the new side.
func (es *eventState) locate(interp dynamo.StepInterpolator, ta, ga, tb, gb float64) float64 {
	threshold := es.det.Threshold()
	retained := 0
	for i := 0; i < es.det.MaxIter() && math.Abs(tb-ta) > threshold; i++ {
		tm := tb - gb*(tb-ta)/(gb-ga)
		if math.IsNaN(tm) || (tm-ta)*(tm-tb) >= 0 {
			tm = 0.5 * (ta + tb)
			if tm == ta || tm == tb {
				break
			}
		}
		gm := es.g(interp, tm)
		if signOf(gm, es.sign) != es.sign {
			if gm == 0 {
				return tm
			}
			tb, gb = tm, gm
			if retained == -1 {
				ga *= 0.5
			}
			retained = -1
		} else {
			ta, ga = tm, gm
			if retained == 1 {
				gb *= 0.5
			}
			retained = 1
		}
	}
	return tb
}

func (es *eventState) accept(t, g float64) {
	es.tLast = t
	es.gLast = g
	es.sign = -es.sign
}
