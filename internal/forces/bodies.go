package forces

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	AU     = 149597870700.0
	SunMu  = 1.32712440018e20
	MoonMu = 4.9028e12
	kmToM  = 1e3
)

// Body is a perturbing body with a low precision geocentric ephemeris.
type Body int

const (
	Sun Body = iota
	Moon
)

func (b Body) String() string {
	if b == Moon {
		return "Moon"
	}
	return "Sun"
}

// Mu returns the gravitational parameter of the body.
func (b Body) Mu() float64 {
	if b == Moon {
		return MoonMu
	}
	return SunMu
}

// Position returns the geocentric position of the body in an equatorial
// frame aligned on the mean equinox of date (m). Time scales are not
// distinguished; the error is well below the accuracy of the series.
func (b Body) Position(date time.Time) r3.Vec {
	jde := julian.TimeToJD(date.UTC())
	var lon, lat unit.Angle
	var dist float64
	if b == Moon {
		var km float64
		lon, lat, km = moonposition.Position(jde)
		dist = km * kmToM
	} else {
		T := base.J2000Century(jde)
		lon, _ = solar.True(T)
		dist = solar.Radius(T) * AU
	}
	return eclipticToEquatorial(lon, lat, dist, nutation.MeanObliquity(jde))
}

func eclipticToEquatorial(lon, lat unit.Angle, dist float64, eps unit.Angle) r3.Vec {
	sl, cl := math.Sincos(lon.Rad())
	sb, cb := math.Sincos(lat.Rad())
	se, ce := math.Sincos(eps.Rad())
	x := dist * cb * cl
	y := dist * cb * sl
	z := dist * sb
	return r3.Vec{X: x, Y: ce*y - se*z, Z: se*y + ce*z}
}
