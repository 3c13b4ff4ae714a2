package orbit

import (
	"fmt"
	"strings"
)

// Type selects the six-element representation used in arrays and matrices.
type Type int

const (
	Cartesian Type = iota
	Keplerian
	Circular
	Equinoctial
)

var typeNames = [...]string{"cartesian", "keplerian", "circular", "equinoctial"}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("type(%d)", int(t))
	}
	return typeNames[t]
}

func ParseType(s string) (Type, error) {
	for i, n := range typeNames {
		if strings.EqualFold(s, n) {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown orbit type %q", s)
}

// PositionAngle selects which anomaly (or longitude) is the sixth element.
type PositionAngle int

const (
	Mean PositionAngle = iota
	Eccentric
	True
)

var angleNames = [...]string{"mean", "eccentric", "true"}

func (a PositionAngle) String() string {
	if a < 0 || int(a) >= len(angleNames) {
		return fmt.Sprintf("angle(%d)", int(a))
	}
	return angleNames[a]
}

func ParsePositionAngle(s string) (PositionAngle, error) {
	for i, n := range angleNames {
		if strings.EqualFold(s, n) {
			return PositionAngle(i), nil
		}
	}
	return 0, fmt.Errorf("unknown position angle %q", s)
}

// Frame names the inertial frame an orbit is expressed in.
type Frame string

const (
	GCRF    Frame = "GCRF"
	EME2000 Frame = "EME2000"
)
