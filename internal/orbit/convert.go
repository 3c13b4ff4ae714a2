package orbit

import (
	"math"

	"github.com/san-kum/orbprop/internal/dual"
	"gonum.org/v1/gonum/spatial/r3"
)

// elementsDual converts a Cartesian state to the requested representation.
// Every representation goes through the equinoctial elements, which are
// regular for all elliptic orbits except exactly retrograde equatorial ones.
func elementsDual(p, v dual.Vec3, mu float64, t Type, angle PositionAngle) [6]dual.Number {
	if t == Cartesian {
		return [6]dual.Number{p.X, p.Y, p.Z, v.X, v.Y, v.Z}
	}

	r := p.Norm()
	v2 := v.NormSq()
	a := r.Inv().Scale(2).Sub(v2.Scale(1 / mu)).Inv()

	w := p.Cross(v).Unit()
	d := w.Z.AddConst(1).Inv()
	hx := d.Mul(w.Y).Neg()
	hy := d.Mul(w.X)

	hx2 := hx.Mul(hx)
	hy2 := hy.Mul(hy)
	factH := hx2.Add(hy2).AddConst(1).Inv()
	hxhy2 := hx.Mul(hy).Scale(2)
	f := dual.Vec3{
		X: hx2.Sub(hy2).AddConst(1).Mul(factH),
		Y: hxhy2.Mul(factH),
		Z: hy.Scale(-2).Mul(factH),
	}
	g := dual.Vec3{
		X: hxhy2.Mul(factH),
		Y: hy2.Sub(hx2).AddConst(1).Mul(factH),
		Z: hx.Scale(2).Mul(factH),
	}

	// eccentricity vector
	e := p.Scale(v2.Sub(r.Inv().Scale(mu))).Sub(v.Scale(p.Dot(v))).ScaleConst(1 / mu)
	ex := e.Dot(f)
	ey := e.Dot(g)

	lambda := dual.Atan2(p.Dot(g), p.Dot(f))
	if angle != True {
		eps := dual.Sqrt(ex.Mul(ex).Add(ey.Mul(ey)).Neg().AddConst(1))
		sLv, cLv := dual.Sincos(lambda)
		num := ey.Mul(cLv).Sub(ex.Mul(sLv))
		den := eps.AddConst(1).Add(ex.Mul(cLv)).Add(ey.Mul(sLv))
		lambda = lambda.Add(dual.Atan(num.Div(den)).Scale(2))
		if angle == Mean {
			sLE, cLE := dual.Sincos(lambda)
			lambda = lambda.Sub(ex.Mul(sLE)).Add(ey.Mul(cLE))
		}
	}

	switch t {
	case Keplerian:
		ecc := dual.Sqrt(ex.Mul(ex).Add(ey.Mul(ey)))
		inc := dual.Atan(dual.Sqrt(hx2.Add(hy2))).Scale(2)
		raan := dual.Atan2(hy, hx)
		pa := dual.Atan2(ey, ex)
		return [6]dual.Number{a, ecc, inc, pa.Sub(raan), raan, lambda.Sub(pa)}
	case Circular:
		inc := dual.Atan(dual.Sqrt(hx2.Add(hy2))).Scale(2)
		raan := dual.Atan2(hy, hx)
		sR, cR := dual.Sincos(raan)
		exC := ex.Mul(cR).Add(ey.Mul(sR))
		eyC := ey.Mul(cR).Sub(ex.Mul(sR))
		return [6]dual.Number{a, exC, eyC, inc, raan, lambda.Sub(raan)}
	default:
		return [6]dual.Number{a, ex, ey, hx, hy, lambda}
	}
}

// toEquinoctial maps elements of any non-Cartesian type to
// a, ex, ey, hx, hy and the longitude of the same position angle.
func toEquinoctial(t Type, e [6]float64) [6]float64 {
	switch t {
	case Keplerian:
		a, ecc, inc, pa, raan, anomaly := e[0], e[1], e[2], e[3], e[4], e[5]
		sP, cP := math.Sincos(pa + raan)
		sR, cR := math.Sincos(raan)
		tanHalf := math.Tan(inc / 2)
		return [6]float64{a, ecc * cP, ecc * sP, tanHalf * cR, tanHalf * sR, anomaly + pa + raan}
	case Circular:
		a, exC, eyC, inc, raan, alpha := e[0], e[1], e[2], e[3], e[4], e[5]
		sR, cR := math.Sincos(raan)
		tanHalf := math.Tan(inc / 2)
		return [6]float64{a, exC*cR - eyC*sR, exC*sR + eyC*cR, tanHalf * cR, tanHalf * sR, alpha + raan}
	default:
		return e
	}
}

// equinoctialToCartesian expects the eccentric longitude as sixth element.
func equinoctialToCartesian(eq [6]float64, mu float64) (r3.Vec, r3.Vec) {
	a, ex, ey, hx, hy, lE := eq[0], eq[1], eq[2], eq[3], eq[4], eq[5]

	hx2, hy2 := hx*hx, hy*hy
	factH := 1 / (1 + hx2 + hy2)
	f := r3.Vec{X: (1 + hx2 - hy2) * factH, Y: 2 * hx * hy * factH, Z: -2 * hy * factH}
	g := r3.Vec{X: 2 * hx * hy * factH, Y: (1 - hx2 + hy2) * factH, Z: 2 * hx * factH}

	exey := ex * ey
	ex2, ey2 := ex*ex, ey*ey
	beta := 1 / (1 + math.Sqrt(1-ex2-ey2))
	s, c := math.Sincos(lE)

	x := a * ((1-beta*ey2)*c + beta*exey*s - ex)
	y := a * ((1-beta*ex2)*s + beta*exey*c - ey)

	n := math.Sqrt(mu / a)
	factor := n / (1 - ex*c - ey*s) // n a^2 / r with n = sqrt(mu/a^3)
	xDot := factor * (beta*exey*c - (1-beta*ey2)*s)
	yDot := factor * ((1-beta*ex2)*c - beta*exey*s)

	pos := r3.Add(r3.Scale(x, f), r3.Scale(y, g))
	vel := r3.Add(r3.Scale(xDot, f), r3.Scale(yDot, g))
	return pos, vel
}

func elementsToCartesian(t Type, angle PositionAngle, e [6]float64, mu float64) (r3.Vec, r3.Vec) {
	if t == Cartesian {
		return r3.Vec{X: e[0], Y: e[1], Z: e[2]}, r3.Vec{X: e[3], Y: e[4], Z: e[5]}
	}
	eq := toEquinoctial(t, e)
	switch angle {
	case Mean:
		eq[5] = EquinoctialEccentricFromMean(eq[5], eq[1], eq[2])
	case True:
		eq[5] = trueToEccentricLongitude(eq[5], eq[1], eq[2])
	}
	return equinoctialToCartesian(eq, mu)
}
