package forces

import (
	"fmt"
	"time"

	"github.com/san-kum/orbprop/internal/params"
	"github.com/san-kum/orbprop/internal/propagation"
	"gonum.org/v1/gonum/spatial/r3"
)

// Aggregator sums the contributions of an ordered list of models. It is
// immutable once built.
type Aggregator struct {
	models  []Model
	drivers [][]*params.Driver
}

// NewAggregator rejects two different drivers sharing a name. A driver
// shared by several models is allowed.
func NewAggregator(models ...Model) (*Aggregator, error) {
	a := &Aggregator{
		models:  models,
		drivers: make([][]*params.Driver, len(models)),
	}
	seen := make(map[string]*params.Driver)
	for i, m := range models {
		if m == nil {
			return nil, propagation.NewError(propagation.NullArgument, "force model")
		}
		a.drivers[i] = m.ParameterDrivers()
		for _, d := range a.drivers[i] {
			if prev, ok := seen[d.Name()]; ok && prev != d {
				return nil, propagation.NewError(propagation.NameConflict, d.Name())
			}
			seen[d.Name()] = d
		}
	}
	return a, nil
}

func (a *Aggregator) Models() []Model { return a.models }

func (a *Aggregator) Init(s0 propagation.SpacecraftState, target time.Time) error {
	for _, m := range a.models {
		if err := m.Init(s0, target); err != nil {
			return err
		}
	}
	return nil
}

// Drivers returns every driver once, in model order.
func (a *Aggregator) Drivers() []*params.Driver {
	var out []*params.Driver
	seen := make(map[*params.Driver]bool)
	for _, ds := range a.drivers {
		for _, d := range ds {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// Driver returns the driver with the given name.
func (a *Aggregator) Driver(name string) (*params.Driver, error) {
	var names []string
	for _, d := range a.Drivers() {
		if d.Name() == name {
			return d, nil
		}
		names = append(names, d.Name())
	}
	return nil, propagation.NewError(propagation.UnsupportedParameter, name, names)
}

// ModelDrivers returns the drivers of model i.
func (a *Aggregator) ModelDrivers(i int) []*params.Driver { return a.drivers[i] }

// Values returns the driver values of every model at date.
func (a *Aggregator) Values(date time.Time) [][]float64 {
	out := make([][]float64, len(a.models))
	for i, ds := range a.drivers {
		out[i] = make([]float64, len(ds))
		for k, d := range ds {
			out[i][k] = d.Value(date)
		}
	}
	return out
}

// Derivatives returns the total acceleration and mass rate.
func (a *Aggregator) Derivatives(s propagation.SpacecraftState, values [][]float64) (r3.Vec, float64, error) {
	var (
		acc  r3.Vec
		mdot float64
	)
	for i, m := range a.models {
		if i >= len(values) || len(values[i]) < len(a.drivers[i]) {
			name := fmt.Sprintf("%T", m)
			if i < len(values) {
				name = a.drivers[i][len(values[i])].Name()
			}
			return r3.Vec{}, 0, propagation.NewError(propagation.MissingParameter, name)
		}
		acc = r3.Add(acc, m.Acceleration(s, values[i]))
		if md, ok := m.(MassDepleting); ok {
			mdot += md.MassRate(s, values[i])
		}
	}
	return acc, mdot, nil
}

// EventDetectors returns the detectors of every model.
func (a *Aggregator) EventDetectors() []propagation.EventDetector {
	var out []propagation.EventDetector
	for _, m := range a.models {
		out = append(out, m.EventDetectors()...)
	}
	return out
}

// DepletesMass reports whether any model changes the mass.
func (a *Aggregator) DepletesMass() bool {
	for _, m := range a.models {
		if _, ok := m.(MassDepleting); ok {
			return true
		}
	}
	return false
}
