package propagation

import "time"

// CombinedDerivatives is what an integrated provider contributes: the
// derivative of its own block and optional increments to the derivative of
// the primary block (Cartesian position, velocity and mass).
type CombinedDerivatives struct {
	Additional     []float64
	MainIncrements []float64
}

// AdditionalDerivativesProvider integrates a named block alongside the
// primary state. Yields reports that the provider needs other additional
// states or derivatives not yet present in s; it is asked again once the
// other providers have been evaluated.
type AdditionalDerivativesProvider interface {
	Name() string
	Dimension() int
	Init(s0 SpacecraftState, target time.Time) error
	Yields(s SpacecraftState) bool
	Derivatives(s SpacecraftState) (CombinedDerivatives, error)
}

// AdditionalStateProvider computes a named block from the state each time
// a state is built, without integrating it.
type AdditionalStateProvider interface {
	Name() string
	Init(s0 SpacecraftState, target time.Time) error
	Yields(s SpacecraftState) bool
	AdditionalState(s SpacecraftState) ([]float64, error)
}

// ResolveProviders adds the values of every provider to s, evaluating
// providers in an order compatible with their Yields answers.
func ResolveProviders(s SpacecraftState, providers []AdditionalStateProvider) (SpacecraftState, error) {
	pending := providers
	for len(pending) > 0 {
		var yielding []AdditionalStateProvider
		for _, p := range pending {
			if p.Yields(s) {
				yielding = append(yielding, p)
				continue
			}
			v, err := p.AdditionalState(s)
			if err != nil {
				return SpacecraftState{}, err
			}
			s = s.WithAdditionalState(p.Name(), v...)
		}
		if len(yielding) == len(pending) {
			names := make([]string, len(yielding))
			for i, p := range yielding {
				names[i] = p.Name()
			}
			return SpacecraftState{}, NewError(CyclicDependency, names)
		}
		pending = yielding
	}
	return s, nil
}
