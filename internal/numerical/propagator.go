package numerical

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/san-kum/orbprop/internal/attitude"
	"github.com/san-kum/orbprop/internal/forces"
	"github.com/san-kum/orbprop/internal/integrators"
	"github.com/san-kum/orbprop/internal/orbit"
	"github.com/san-kum/orbprop/internal/params"
	"github.com/san-kum/orbprop/internal/propagation"
	"gonum.org/v1/gonum/mat"
)

// Propagator integrates the spacecraft equations of motion under a stack of
// force models, together with any number of additional blocks: user
// integrated providers and, once SetupMatricesComputation has been called,
// the state transition matrix and the parameter Jacobian columns.
//
// The integrated primary state is always Cartesian position, velocity and
// mass. The orbit type only affects how matrices are expressed.
type Propagator struct {
	integ      *integrators.Integrator
	orbitType  orbit.Type
	angle      orbit.PositionAngle
	att        attitude.Provider
	logger     log.Logger
	resetAtEnd bool

	initial    propagation.SpacecraftState
	models     []forces.Model
	integrated []propagation.AdditionalDerivativesProvider
	providers  []propagation.AdditionalStateProvider
	detectors  []propagation.EventDetector
	handlers   []propagation.StepHandler
	generators []*EphemerisGenerator
	harvester  *Harvester
}

type Option func(*Propagator)

// WithOrbitType sets the representation of the harvested matrices.
func WithOrbitType(t orbit.Type) Option {
	return func(p *Propagator) { p.orbitType = t }
}

func WithPositionAngle(a orbit.PositionAngle) Option {
	return func(p *Propagator) { p.angle = a }
}

// WithAttitudeProvider sets the provider used to build states. The default
// keeps the body frame inertial.
func WithAttitudeProvider(a attitude.Provider) Option {
	return func(p *Propagator) { p.att = a }
}

func WithLogger(l log.Logger) Option {
	return func(p *Propagator) { p.logger = l }
}

// WithResetAtEnd controls whether the final state of a propagation becomes
// the initial state of the next one. It defaults to true.
func WithResetAtEnd(reset bool) Option {
	return func(p *Propagator) { p.resetAtEnd = reset }
}

func New(integ *integrators.Integrator, opts ...Option) (*Propagator, error) {
	if integ == nil {
		return nil, propagation.NewError(propagation.NullArgument, "integrator")
	}
	p := &Propagator{
		integ:      integ,
		orbitType:  orbit.Cartesian,
		angle:      orbit.True,
		att:        attitude.NewInertial(),
		logger:     log.NewNopLogger(),
		resetAtEnd: true,
	}
	for _, o := range opts {
		o(p)
	}
	if p.att == nil {
		p.att = attitude.NewInertial()
	}
	return p, nil
}

func (p *Propagator) OrbitType() orbit.Type               { return p.orbitType }
func (p *Propagator) PositionAngle() orbit.PositionAngle  { return p.angle }
func (p *Propagator) Integrator() *integrators.Integrator { return p.integ }

// SetInitialState sets the state propagations start from. A Newtonian
// attraction built from the orbit's gravitational parameter is added when
// no force model provides one.
func (p *Propagator) SetInitialState(s propagation.SpacecraftState) error {
	if s.IsZero() {
		return propagation.NewError(propagation.NullArgument, "initial state")
	}
	if !s.IsValid() {
		return fmt.Errorf("numerical: invalid initial state %v", s)
	}
	p.initial = s
	if p.newtonian() == nil {
		p.models = append(p.models, forces.NewNewtonianAttraction(s.Mu()))
	}
	return nil
}

func (p *Propagator) ResetInitialState(s propagation.SpacecraftState) error {
	return p.SetInitialState(s)
}

func (p *Propagator) InitialState() propagation.SpacecraftState { return p.initial }

func (p *Propagator) newtonian() *forces.NewtonianAttraction {
	for _, m := range p.models {
		if n, ok := m.(*forces.NewtonianAttraction); ok {
			return n
		}
	}
	return nil
}

// AddForceModel appends a model. A Newtonian attraction replaces the
// current one.
func (p *Propagator) AddForceModel(m forces.Model) error {
	if m == nil {
		return propagation.NewError(propagation.NullArgument, "force model")
	}
	models := make([]forces.Model, 0, len(p.models)+1)
	_, replace := m.(*forces.NewtonianAttraction)
	for _, old := range p.models {
		if _, ok := old.(*forces.NewtonianAttraction); ok && replace {
			continue
		}
		models = append(models, old)
	}
	models = append(models, m)
	if _, err := forces.NewAggregator(models...); err != nil {
		return err
	}
	p.models = models
	return nil
}

// RemoveForceModels removes every model but the Newtonian attraction.
func (p *Propagator) RemoveForceModels() {
	n := p.newtonian()
	p.models = nil
	if n != nil {
		p.models = append(p.models, n)
	}
}

func (p *Propagator) AllForceModels() []forces.Model {
	out := make([]forces.Model, len(p.models))
	copy(out, p.models)
	return out
}

func (p *Propagator) aggregator() (*forces.Aggregator, error) {
	return forces.NewAggregator(p.models...)
}

// ParametersDrivers returns the drivers of every force model.
func (p *Propagator) ParametersDrivers() []*params.Driver {
	agg, err := p.aggregator()
	if err != nil {
		return nil
	}
	return agg.Drivers()
}

// ParameterDriver returns the named driver, or an UnsupportedParameter
// error when no model exposes it.
func (p *Propagator) ParameterDriver(name string) (*params.Driver, error) {
	agg, err := p.aggregator()
	if err != nil {
		return nil, err
	}
	return agg.Driver(name)
}

// ManagedAdditionalStates returns the names of the blocks the propagator
// computes: matrices, integrated providers and state providers.
func (p *Propagator) ManagedAdditionalStates() []string {
	var out []string
	if p.harvester != nil {
		out = append(out, p.harvester.stmName)
		out = append(out, p.harvester.frozenColumns()...)
	}
	for _, ip := range p.integrated {
		out = append(out, ip.Name())
	}
	for _, sp := range p.providers {
		out = append(out, sp.Name())
	}
	return out
}

func (p *Propagator) IsAdditionalStateManaged(name string) bool {
	for _, n := range p.ManagedAdditionalStates() {
		if n == name {
			return true
		}
	}
	return false
}

func (p *Propagator) checkName(name string) error {
	if name == "" {
		return propagation.NewError(propagation.NullArgument, "additional state name")
	}
	if p.IsAdditionalStateManaged(name) {
		return propagation.NewError(propagation.NameConflict, name)
	}
	return nil
}

func (p *Propagator) AddAdditionalDerivativesProvider(ap propagation.AdditionalDerivativesProvider) error {
	if ap == nil {
		return propagation.NewError(propagation.NullArgument, "additional derivatives provider")
	}
	if err := p.checkName(ap.Name()); err != nil {
		return err
	}
	p.integrated = append(p.integrated, ap)
	return nil
}

// AddAdditionalStateProvider registers a provider evaluated on every built
// state. Ephemerides keep evaluating it after the propagation that produced
// them, including after later propagations re-initialize it, so its values
// must depend only on the state it is given.
func (p *Propagator) AddAdditionalStateProvider(sp propagation.AdditionalStateProvider) error {
	if sp == nil {
		return propagation.NewError(propagation.NullArgument, "additional state provider")
	}
	if err := p.checkName(sp.Name()); err != nil {
		return err
	}
	p.providers = append(p.providers, sp)
	return nil
}

func (p *Propagator) AddEventDetector(d propagation.EventDetector) {
	p.detectors = append(p.detectors, d)
}

func (p *Propagator) EventDetectors() []propagation.EventDetector {
	out := make([]propagation.EventDetector, len(p.detectors))
	copy(out, p.detectors)
	return out
}

func (p *Propagator) ClearEventsDetectors() { p.detectors = nil }

func (p *Propagator) AddStepHandler(h propagation.StepHandler) {
	p.handlers = append(p.handlers, h)
}

func (p *Propagator) ClearStepHandlers() { p.handlers = nil }

// EphemerisGenerator returns a generator recording the next propagations.
func (p *Propagator) EphemerisGenerator() *EphemerisGenerator {
	g := &EphemerisGenerator{}
	p.generators = append(p.generators, g)
	return g
}

// SetupMatricesComputation registers the state transition matrix under
// stmName and one Jacobian column per selected parameter span. initialSTM
// may be nil (identity) and must otherwise be 6x6 or 7x7; initialColumns
// may be nil (zero columns). Matrices are expressed in the propagator's
// orbit type.
func (p *Propagator) SetupMatricesComputation(stmName string, initialSTM *mat.Dense, initialColumns map[string][]float64) (*Harvester, error) {
	if stmName == "" {
		return nil, propagation.NewError(propagation.NullArgument, "stm name")
	}
	if p.harvester == nil || p.harvester.stmName != stmName {
		if err := p.checkName(stmName); err != nil {
			return nil, err
		}
	}
	h, err := newHarvester(p, stmName, initialSTM, initialColumns)
	if err != nil {
		return nil, err
	}
	p.harvester = h
	return h, nil
}

// Propagate integrates from the initial state to target.
func (p *Propagator) Propagate(ctx context.Context, target time.Time) (propagation.SpacecraftState, error) {
	if p.initial.IsZero() {
		return propagation.SpacecraftState{}, propagation.NewError(propagation.NullArgument, "initial state")
	}
	final, err := p.integrate(ctx, p.initial, target, true)
	if err != nil {
		return final, err
	}
	if p.resetAtEnd {
		p.initial = final
	}
	return final, nil
}

// PropagateBetween first propagates silently from the initial state to
// start, without step handlers, then from start to target.
func (p *Propagator) PropagateBetween(ctx context.Context, start, target time.Time) (propagation.SpacecraftState, error) {
	if p.initial.IsZero() {
		return propagation.SpacecraftState{}, propagation.NewError(propagation.NullArgument, "initial state")
	}
	s := p.initial
	if !start.Equal(s.Date()) {
		var err error
		if s, err = p.integrate(ctx, s, start, false); err != nil {
			return s, err
		}
	}
	final, err := p.integrate(ctx, s, target, true)
	if err != nil {
		return final, err
	}
	if p.resetAtEnd {
		p.initial = final
	}
	return final, nil
}

func (p *Propagator) integrate(ctx context.Context, s0 propagation.SpacecraftState, target time.Time, withHandlers bool) (propagation.SpacecraftState, error) {
	r, s0, err := newRun(p, s0, target)
	if err != nil {
		return propagation.SpacecraftState{}, err
	}

	prob := integrators.Problem{
		System: r,
		T0:     0,
		Y0:     r.array(s0),
		T1:     r.t1,
		Snap:   r.snap,
	}
	for _, d := range r.detectors {
		prob.Events = append(prob.Events, d)
	}
	if withHandlers {
		for _, h := range p.handlers {
			h.Init(s0, target)
			prob.Handlers = append(prob.Handlers, &handlerAdapter{r: r, h: h})
		}
		for _, g := range p.generators {
			g.start(r, s0)
			prob.Handlers = append(prob.Handlers, g)
		}
	}

	level.Debug(p.logger).Log("msg", "propagation start", "from", s0.Date(), "to", target,
		"dim", r.dim, "models", len(p.models), "events", len(prob.Events))
	sol, err := p.integ.Integrate(ctx, prob)
	if r.err != nil {
		err = r.err
	}
	if err != nil {
		level.Error(p.logger).Log("msg", "propagation failed", "date", r.dateAt(sol.T), "err", err)
		return propagation.SpacecraftState{}, fmt.Errorf("numerical: propagate to %v: %w", target, err)
	}
	final, err := r.state(sol.T, sol.Y)
	if err != nil {
		return propagation.SpacecraftState{}, fmt.Errorf("numerical: final state: %w", err)
	}
	level.Debug(p.logger).Log("msg", "propagation end", "date", final.Date(), "steps", sol.Steps, "stopped", sol.Stopped)
	return final, nil
}
