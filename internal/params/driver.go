// Package params provides parameter drivers: named scalar model inputs that
// can be selected for differentiation and may take different values over
// disjoint time spans.
//
// # Thread Safety
//
// Drivers are configuration. They may be read concurrently by any number of
// propagations but must not be modified while a propagation that uses them
// is running.
package params

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Observer is notified after a driver value changes. date is the zero time
// when the value was set for all spans.
type Observer interface {
	ValueChanged(previous float64, d *Driver, date time.Time)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(previous float64, d *Driver, date time.Time)

func (f ObserverFunc) ValueChanged(previous float64, d *Driver, date time.Time) {
	f(previous, d, date)
}

// span holds the value valid from start (inclusive) up to the start of the
// next span. The first span has a zero start and extends to the past.
type span struct {
	start time.Time
	value float64
}

type Driver struct {
	name      string
	reference float64
	scale     float64
	min, max  float64
	selected  bool
	spans     []span
	observers []Observer
}

// NewDriver returns an unselected driver whose value is the reference value.
// The scale must be non-zero; it is used to normalize the parameter for
// finite differences and estimation.
func NewDriver(name string, reference, scale, min, max float64) (*Driver, error) {
	if name == "" {
		return nil, fmt.Errorf("params: empty driver name")
	}
	if scale == 0 || math.IsNaN(scale) {
		return nil, fmt.Errorf("params: driver %q: scale must be non-zero, got %g", name, scale)
	}
	if min > max {
		return nil, fmt.Errorf("params: driver %q: min %g above max %g", name, min, max)
	}
	d := &Driver{
		name:      name,
		reference: reference,
		scale:     scale,
		min:       min,
		max:       max,
	}
	d.spans = []span{{value: d.clamp(reference)}}
	return d, nil
}

// MustDriver is like NewDriver but panics on error. It is meant for drivers
// built from constant arguments.
func MustDriver(name string, reference, scale, min, max float64) *Driver {
	d, err := NewDriver(name, reference, scale, min, max)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Driver) Name() string            { return d.name }
func (d *Driver) ReferenceValue() float64 { return d.reference }
func (d *Driver) Scale() float64          { return d.scale }
func (d *Driver) Min() float64            { return d.min }
func (d *Driver) Max() float64            { return d.max }
func (d *Driver) IsSelected() bool        { return d.selected }

func (d *Driver) SetSelected(selected bool) {
	d.selected = selected
}

func (d *Driver) clamp(v float64) float64 {
	return math.Max(d.min, math.Min(d.max, v))
}

// index returns the span holding date.
func (d *Driver) index(date time.Time) int {
	// first span whose start is after date, minus one
	i := sort.Search(len(d.spans), func(i int) bool {
		return i > 0 && d.spans[i].start.After(date)
	})
	return i - 1
}

// Value returns the value in effect at date.
func (d *Driver) Value(date time.Time) float64 {
	return d.spans[d.index(date)].value
}

// SetValue sets the value of every span. Values are clamped to [min, max].
func (d *Driver) SetValue(v float64) {
	previous := d.spans[0].value
	for i := range d.spans {
		d.spans[i].value = d.clamp(v)
	}
	d.notify(previous, time.Time{})
}

// SetValueAt sets the value of the span holding date.
func (d *Driver) SetValueAt(v float64, date time.Time) {
	i := d.index(date)
	previous := d.spans[i].value
	d.spans[i].value = d.clamp(v)
	d.notify(previous, date)
}

// NormalizedValue returns (value - reference) / scale at date.
func (d *Driver) NormalizedValue(date time.Time) float64 {
	return (d.Value(date) - d.reference) / d.scale
}

func (d *Driver) SetNormalizedValue(n float64) {
	d.SetValue(d.reference + n*d.scale)
}

func (d *Driver) notify(previous float64, date time.Time) {
	for _, o := range d.observers {
		o.ValueChanged(previous, d, date)
	}
}

func (d *Driver) AddObserver(o Observer) {
	d.observers = append(d.observers, o)
}

// AddSpans splits the driver into spans of length step between start and
// end. The first span extends to the past and the last one to the future;
// every new span starts with the current value of the span it splits.
func (d *Driver) AddSpans(start, end time.Time, step time.Duration) error {
	if step <= 0 {
		return fmt.Errorf("params: driver %q: span step must be positive, got %v", d.name, step)
	}
	if !end.After(start) {
		return fmt.Errorf("params: driver %q: span end %v not after start %v", d.name, end, start)
	}
	for t := start.Add(step); t.Before(end); t = t.Add(step) {
		d.split(t)
	}
	return nil
}

func (d *Driver) split(t time.Time) {
	i := d.index(t)
	if i > 0 && d.spans[i].start.Equal(t) {
		return
	}
	s := span{start: t, value: d.spans[i].value}
	d.spans = append(d.spans, span{})
	copy(d.spans[i+2:], d.spans[i+1:])
	d.spans[i+1] = s
}

// Spans returns the number of time spans.
func (d *Driver) Spans() int { return len(d.spans) }

// SpanStarts returns the start dates of every span but the first.
func (d *Driver) SpanStarts() []time.Time {
	out := make([]time.Time, 0, len(d.spans)-1)
	for _, s := range d.spans[1:] {
		out = append(out, s.start)
	}
	return out
}

func spanName(name string, i int) string {
	return "Span" + name + strconv.Itoa(i)
}

// SpanNames returns one name per span, in chronological order.
func (d *Driver) SpanNames() []string {
	out := make([]string, len(d.spans))
	for i := range d.spans {
		out[i] = spanName(d.name, i)
	}
	return out
}

// SpanNameAt returns the name of the span holding date.
func (d *Driver) SpanNameAt(date time.Time) string {
	return spanName(d.name, d.index(date))
}

func (d *Driver) String() string {
	return d.name + " = " + strconv.FormatFloat(d.spans[0].value, 'g', -1, 64)
}
