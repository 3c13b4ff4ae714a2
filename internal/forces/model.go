// Package forces holds the force models acting on the spacecraft and the
// aggregator summing their contributions.
//
// Models expose their parameters as drivers and receive the driver values
// explicitly, so that the same model can be evaluated for perturbed values.
// Models may be shared between propagations only when they carry no
// per-run state; maneuvers do (their firing latch) and must be built once
// per propagator.
package forces

import (
	"time"

	"github.com/san-kum/orbprop/internal/dual"
	"github.com/san-kum/orbprop/internal/params"
	"github.com/san-kum/orbprop/internal/propagation"
	"gonum.org/v1/gonum/spatial/r3"
)

// Model is one force contribution. values holds one value per parameter
// driver, in ParameterDrivers order, taken at the state date.
type Model interface {
	// Init is called once before every propagation.
	Init(s0 propagation.SpacecraftState, target time.Time) error
	Acceleration(s propagation.SpacecraftState, values []float64) r3.Vec
	DependsOnPositionOnly() bool
	EventDetectors() []propagation.EventDetector
	ParameterDrivers() []*params.Driver
}

// GradientState is a spacecraft state whose components carry derivatives.
type GradientState struct {
	Date     time.Time
	Position dual.Vec3
	Velocity dual.Vec3
	Mass     dual.Number
}

// Differentiable models compute their acceleration in dual numbers. Models
// that do not implement it are differentiated numerically.
type Differentiable interface {
	AccelerationDual(g GradientState, values []dual.Number) dual.Vec3
}

// MassDepleting models change the spacecraft mass.
type MassDepleting interface {
	MassRate(s propagation.SpacecraftState, values []float64) float64
	MassRateDual(g GradientState, values []dual.Number) dual.Number
}

func zeroVec(n int) dual.Vec3 {
	return dual.VecConst(r3.Vec{}, n)
}
