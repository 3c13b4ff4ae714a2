// Package dynamo provides the primitives shared by integrators and the
// propagation engine.
//
// The package defines the contract between an ODE integrator and the code
// that assembles dy/dt:
//
//   - [State]: flat (augmented) state vector
//   - [System]: interface for ODE systems (dy/dt = f(t, y))
//   - [EventDetector]: switching function with an [Action] policy
//   - [StepInterpolator]: dense output over one accepted step
//   - [StepHandler]: observer of accepted steps
//   - [Config]: step size and tolerance settings
//
// # Thread Safety
//
// Values of this package carry no shared mutable state. [RunParallel] fans
// independent work out over goroutines; callers must make sure the work
// items do not share writable data.
package dynamo
