package propagation

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/san-kum/orbprop/internal/dynamo"
)

const (
	DefaultMaxCheck  = 600.0
	DefaultThreshold = 1e-6
	DefaultMaxIter   = 100
)

// EventDetector is a switching function on spacecraft states.
type EventDetector interface {
	Init(s0 SpacecraftState, target time.Time) error
	G(s SpacecraftState) float64
	// MaxCheck is the largest interval (s) between two checks of G.
	MaxCheck() float64
	// Threshold is the convergence threshold (s) of event location.
	Threshold() float64
	MaxIter() int
	Handler() EventHandler
}

// EventHandler decides what happens when an event occurs. increasing refers
// to physical time, whatever the propagation direction.
type EventHandler interface {
	EventOccurred(s SpacecraftState, d EventDetector, increasing bool) dynamo.Action
	// ResetState is only called after EventOccurred returned ResetState.
	ResetState(d EventDetector, old SpacecraftState) SpacecraftState
}

// SwitchPartials are the partial derivatives of a switching function with
// respect to the Cartesian primary state, time and parameters. DgDp is
// keyed by parameter span name.
type SwitchPartials struct {
	DgDy [PrimaryDim]float64
	DgDt float64
	DgDp map[string]float64
}

// SwitchDetector is implemented by detectors whose events switch the
// dynamics discontinuously, such as maneuver triggers.
type SwitchDetector interface {
	EventDetector
	SwitchPartials(s SpacecraftState) SwitchPartials
}

// StopOnEvent stops propagation at the event.
type StopOnEvent struct{}

func (StopOnEvent) EventOccurred(SpacecraftState, EventDetector, bool) dynamo.Action {
	return dynamo.Stop
}

func (StopOnEvent) ResetState(_ EventDetector, old SpacecraftState) SpacecraftState { return old }

type ContinueOnEvent struct{}

func (ContinueOnEvent) EventOccurred(SpacecraftState, EventDetector, bool) dynamo.Action {
	return dynamo.Continue
}

func (ContinueOnEvent) ResetState(_ EventDetector, old SpacecraftState) SpacecraftState { return old }

// RecordedEvent is one event seen by RecordAndContinue.
type RecordedEvent struct {
	State      SpacecraftState
	Detector   EventDetector
	Increasing bool
}

// RecordAndContinue records every event and lets propagation continue.
type RecordAndContinue struct {
	mu     sync.Mutex
	events []RecordedEvent
}

func (r *RecordAndContinue) EventOccurred(s SpacecraftState, d EventDetector, increasing bool) dynamo.Action {
	r.mu.Lock()
	r.events = append(r.events, RecordedEvent{State: s, Detector: d, Increasing: increasing})
	r.mu.Unlock()
	return dynamo.Continue
}

func (r *RecordAndContinue) ResetState(_ EventDetector, old SpacecraftState) SpacecraftState {
	return old
}

func (r *RecordAndContinue) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *RecordAndContinue) Clear() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// DateDetector triggers at each of a set of dates. Its switching function
// changes sign at every date and has a unit slope in between.
type DateDetector struct {
	dates     []time.Time
	handler   EventHandler
	maxCheck  float64
	threshold float64
}

type DateDetectorOption func(*DateDetector)

func WithDateHandler(h EventHandler) DateDetectorOption {
	return func(d *DateDetector) { d.handler = h }
}

func WithDateThreshold(t float64) DateDetectorOption {
	return func(d *DateDetector) { d.threshold = t }
}

// NewDateDetector returns a detector for the given dates, stopping at the
// first one unless another handler is set.
func NewDateDetector(dates []time.Time, opts ...DateDetectorOption) (*DateDetector, error) {
	if len(dates) == 0 {
		return nil, NewError(NullArgument, "dates")
	}
	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	d := &DateDetector{
		dates:     sorted,
		handler:   StopOnEvent{},
		maxCheck:  DefaultMaxCheck,
		threshold: DefaultThreshold,
	}
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Sub(sorted[i-1]).Seconds()
		if gap == 0 {
			return nil, fmt.Errorf("propagation: duplicate event date %v", sorted[i])
		}
		d.maxCheck = math.Min(d.maxCheck, gap/2)
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

func (d *DateDetector) Dates() []time.Time {
	out := make([]time.Time, len(d.dates))
	copy(out, d.dates)
	return out
}

func (d *DateDetector) Init(SpacecraftState, time.Time) error { return nil }

// G is (t - d_k) (-1)^k where d_k is the date closest to t.
func (d *DateDetector) G(s SpacecraftState) float64 {
	t := s.Date()
	k := sort.Search(len(d.dates), func(i int) bool { return !d.dates[i].Before(t) })
	switch {
	case k == len(d.dates):
		k--
	case k > 0 && t.Sub(d.dates[k-1]) < d.dates[k].Sub(t):
		k--
	}
	g := t.Sub(d.dates[k]).Seconds()
	if k%2 == 1 {
		g = -g
	}
	return g
}

func (d *DateDetector) MaxCheck() float64     { return d.maxCheck }
func (d *DateDetector) Threshold() float64    { return d.threshold }
func (d *DateDetector) MaxIter() int          { return DefaultMaxIter }
func (d *DateDetector) Handler() EventHandler { return d.handler }
