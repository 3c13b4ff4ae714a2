// Package numerical propagates spacecraft states by numerical integration
// of the equations of motion.
//
// The integrated vector starts with Cartesian position, velocity and mass,
// followed by every additional block in a fixed layout: the state
// transition matrix and the parameter Jacobian columns when requested
// through SetupMatricesComputation, then the user integrated providers.
//
// # Matrices
//
// The state transition matrix and the Jacobian columns are integrated in
// Cartesian coordinates from the partial derivatives of the force models,
// computed with dual numbers when a model supports them and by central
// finite differences otherwise. A Harvester converts them to the orbit type
// chosen at construction. When a maneuver switches on or off, the matrices
// are corrected across the discontinuity so that they stay the true
// derivatives of the final state, including with respect to the maneuver
// dates.
//
// # Concurrency
//
// A Propagator is not safe for concurrent use. Independent propagators,
// built with their own force models, can run in parallel; RecomputeSegments
// does so. Generated ephemerides are immutable.
package numerical
