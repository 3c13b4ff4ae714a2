package forces

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/orbprop/internal/dynamo"
	"github.com/san-kum/orbprop/internal/params"
	"github.com/san-kum/orbprop/internal/propagation"
)

// Suffixes of the trigger driver names.
const (
	StartSuffix    = "_START"
	StopSuffix     = "_STOP"
	MedianSuffix   = "_MEDIAN"
	DurationSuffix = "_DURATION"
)

// DateBasedTriggers fire a maneuver between a start and a stop date. The
// dates are driven by four parameters kept consistent with each other:
// start and stop offsets, median offset and duration, all in seconds.
// Offsets are relative to the dates the triggers were built with.
type DateBasedTriggers struct {
	name string

	startRef  time.Time
	stopOff0  float64
	medianOff float64

	start, stop, median, duration *params.Driver

	syncing bool
	firing  bool
	forward bool
}

func NewDateBasedTriggers(name string, start time.Time, duration time.Duration) (*DateBasedTriggers, error) {
	if duration < 0 {
		return nil, fmt.Errorf("forces: trigger %q: negative duration %v", name, duration)
	}
	d := duration.Seconds()
	t := &DateBasedTriggers{
		name:      name,
		startRef:  start,
		stopOff0:  d,
		medianOff: d / 2,
		start:     params.MustDriver(name+StartSuffix, 0, 1, math.Inf(-1), math.Inf(1)),
		stop:      params.MustDriver(name+StopSuffix, 0, 1, math.Inf(-1), math.Inf(1)),
		median:    params.MustDriver(name+MedianSuffix, 0, 1, math.Inf(-1), math.Inf(1)),
		duration:  params.MustDriver(name+DurationSuffix, d, 1, 0, math.Inf(1)),
	}
	edges := params.ObserverFunc(func(float64, *params.Driver, time.Time) { t.syncFromEdges() })
	center := params.ObserverFunc(func(float64, *params.Driver, time.Time) { t.syncFromCenter() })
	t.start.AddObserver(edges)
	t.stop.AddObserver(edges)
	t.median.AddObserver(center)
	t.duration.AddObserver(center)
	return t, nil
}

func (t *DateBasedTriggers) Name() string { return t.name }

func (t *DateBasedTriggers) startOffset() float64 { return t.start.Value(t.startRef) }

func (t *DateBasedTriggers) stopOffset() float64 { return t.stopOff0 + t.stop.Value(t.startRef) }

func (t *DateBasedTriggers) syncFromEdges() {
	if t.syncing {
		return
	}
	t.syncing = true
	defer func() { t.syncing = false }()
	s, e := t.startOffset(), t.stopOffset()
	t.median.SetValue((s+e)/2 - t.medianOff)
	t.duration.SetValue(e - s)
}

func (t *DateBasedTriggers) syncFromCenter() {
	if t.syncing {
		return
	}
	t.syncing = true
	defer func() { t.syncing = false }()
	m := t.medianOff + t.median.Value(t.startRef)
	d := t.duration.Value(t.startRef)
	t.start.SetValue(m - d/2)
	t.stop.SetValue(m + d/2 - t.stopOff0)
}

func offsetDate(ref time.Time, seconds float64) time.Time {
	return ref.Add(time.Duration(math.Round(seconds * 1e9)))
}

func (t *DateBasedTriggers) StartDate() time.Time { return offsetDate(t.startRef, t.startOffset()) }
func (t *DateBasedTriggers) StopDate() time.Time  { return offsetDate(t.startRef, t.stopOffset()) }

// Drivers returns start, stop, median and duration drivers.
func (t *DateBasedTriggers) Drivers() []*params.Driver {
	return []*params.Driver{t.start, t.stop, t.median, t.duration}
}

// IsFiring reports the latch state. It only changes in Init and at events.
func (t *DateBasedTriggers) IsFiring() bool { return t.firing }

// Init sets the latch from the initial date and the propagation direction.
func (t *DateBasedTriggers) Init(s0 propagation.SpacecraftState, target time.Time) {
	t0 := s0.Date()
	start, stop := t.StartDate(), t.StopDate()
	t.forward = !target.Before(t0)
	if t.forward {
		t.firing = !t0.Before(start) && t0.Before(stop)
	} else {
		t.firing = t0.After(start) && !t0.After(stop)
	}
}

// Detectors returns the start and stop detectors.
func (t *DateBasedTriggers) Detectors() []propagation.EventDetector {
	return []propagation.EventDetector{&triggerDetector{t: t, start: true}, &triggerDetector{t: t}}
}

// triggerDetector switches the maneuver at the start or stop date. Its
// switching function is the time elapsed since that date.
type triggerDetector struct {
	t     *DateBasedTriggers
	start bool
}

func (d *triggerDetector) date() time.Time {
	if d.start {
		return d.t.StartDate()
	}
	return d.t.StopDate()
}

func (d *triggerDetector) Init(s0 propagation.SpacecraftState, target time.Time) error {
	d.t.Init(s0, target)
	return nil
}

func (d *triggerDetector) G(s propagation.SpacecraftState) float64 {
	return s.Date().Sub(d.date()).Seconds()
}

func (d *triggerDetector) MaxCheck() float64                 { return propagation.DefaultMaxCheck }
func (d *triggerDetector) Threshold() float64                { return propagation.DefaultThreshold }
func (d *triggerDetector) MaxIter() int                      { return propagation.DefaultMaxIter }
func (d *triggerDetector) Handler() propagation.EventHandler { return d }

func (d *triggerDetector) EventOccurred(_ propagation.SpacecraftState, _ propagation.EventDetector, increasing bool) dynamo.Action {
	if d.start {
		d.t.firing = increasing == d.t.forward
	} else {
		d.t.firing = increasing != d.t.forward
	}
	return dynamo.ResetDerivatives
}

func (d *triggerDetector) ResetState(_ propagation.EventDetector, old propagation.SpacecraftState) propagation.SpacecraftState {
	return old
}

// SwitchPartials of g = t - t_s(p), with t_s = start or stop and
// start = median - duration/2, stop = median + duration/2. The dates are
// computed from the spans holding the reference date, so the partials are
// keyed by those spans whatever the event date.
func (d *triggerDetector) SwitchPartials(propagation.SpacecraftState) propagation.SwitchPartials {
	t := d.t
	date := t.startRef
	sp := propagation.SwitchPartials{DgDt: 1, DgDp: make(map[string]float64, 3)}
	sp.DgDp[t.median.SpanNameAt(date)] = -1
	if d.start {
		sp.DgDp[t.start.SpanNameAt(date)] = -1
		sp.DgDp[t.duration.SpanNameAt(date)] = 0.5
	} else {
		sp.DgDp[t.stop.SpanNameAt(date)] = -1
		sp.DgDp[t.duration.SpanNameAt(date)] = -0.5
	}
	return sp
}
