package orbit

import "math"

const (
	keplerMaxIter = 50
	keplerTol     = 1e-14
)

// EccentricFromMean solves Kepler's equation M = E - e sin E for an elliptic
// orbit. It returns NaN for NaN input or when Newton iterations do not
// converge.
func EccentricFromMean(m, e float64) float64 {
	if math.IsNaN(m) || math.IsNaN(e) || e < 0 || e >= 1 {
		return math.NaN()
	}
	E := m
	if e > 0.8 {
		E = math.Pi * math.Copysign(1, math.Sin(m))
		E += m - math.Remainder(m, 2*math.Pi)
	}
	for i := 0; i < keplerMaxIter; i++ {
		s, c := math.Sincos(E)
		dE := (E - e*s - m) / (1 - e*c)
		E -= dE
		if math.Abs(dE) <= keplerTol*math.Max(1, math.Abs(E)) {
			return E
		}
	}
	return math.NaN()
}

// EquinoctialEccentricFromMean solves lM = lE - ex sin lE + ey cos lE for the
// eccentric longitude, with the same failure policy as EccentricFromMean.
func EquinoctialEccentricFromMean(lM, ex, ey float64) float64 {
	if math.IsNaN(lM) || math.IsNaN(ex) || math.IsNaN(ey) || ex*ex+ey*ey >= 1 {
		return math.NaN()
	}
	lE := lM
	for i := 0; i < keplerMaxIter; i++ {
		s, c := math.Sincos(lE)
		f := lE - ex*s + ey*c - lM
		fp := 1 - ex*c - ey*s
		d := f / fp
		lE -= d
		if math.Abs(d) <= keplerTol*math.Max(1, math.Abs(lE)) {
			return lE
		}
	}
	return math.NaN()
}

// eccentricToTrueLongitude and its inverse work on equinoctial longitudes.
func eccentricToTrueLongitude(lE, ex, ey float64) float64 {
	eps := math.Sqrt(1 - ex*ex - ey*ey)
	s, c := math.Sincos(lE)
	num := ex*s - ey*c
	den := eps + 1 - ex*c - ey*s
	return lE + 2*math.Atan(num/den)
}

func trueToEccentricLongitude(lv, ex, ey float64) float64 {
	eps := math.Sqrt(1 - ex*ex - ey*ey)
	s, c := math.Sincos(lv)
	num := ey*c - ex*s
	den := eps + 1 + ex*c + ey*s
	return lv + 2*math.Atan(num/den)
}

func eccentricToMeanLongitude(lE, ex, ey float64) float64 {
	s, c := math.Sincos(lE)
	return lE - ex*s + ey*c
}
