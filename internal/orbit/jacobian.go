package orbit

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/orbprop/internal/dual"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrSingularJacobian is returned when the conversion Jacobian of an orbit
// type cannot be inverted for the orbit at hand (for instance Keplerian
// elements of a circular or equatorial orbit).
var ErrSingularJacobian = errors.New("orbit: singular jacobian for orbit type")

// maxScaledCondition bounds the condition number of the row and column
// scaled conversion Jacobian.
const maxScaledCondition = 1e11

// JacobianWrtCartesian returns d(elements)/d(position, velocity) as a 6x6
// matrix. It is computed by forward-mode differentiation of the conversion.
func JacobianWrtCartesian(o Orbit, t Type, angle PositionAngle) *mat.Dense {
	if t == Cartesian {
		return identity(6)
	}
	p := dual.VecVariable(o.Position, 6, 0)
	v := dual.VecVariable(o.Velocity, 6, 3)
	el := elementsDual(p, v, o.Mu, t, angle)

	j := mat.NewDense(6, 6, nil)
	for i, x := range el {
		for k := 0; k < 6; k++ {
			j.Set(i, k, x.D(k))
		}
	}
	return j
}

// JacobianWrtParameters returns d(position, velocity)/d(elements), the
// inverse of JacobianWrtCartesian.
func JacobianWrtParameters(o Orbit, t Type, angle PositionAngle) (*mat.Dense, error) {
	if t == Cartesian {
		return identity(6), nil
	}
	j := JacobianWrtCartesian(o, t, angle)
	s, err := scale(j, o, t)
	if err != nil {
		return nil, err
	}
	var sInv mat.Dense
	if err := sInv.Inverse(s.m); err != nil {
		return nil, fmt.Errorf("%w %v: %v", ErrSingularJacobian, t, err)
	}
	inv := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		for k := 0; k < 6; k++ {
			inv.Set(i, k, s.cols[i]*sInv.At(i, k)*s.rows[k])
		}
	}
	return inv, nil
}

// scaled is D_r J D_c where D_c brings columns to the orbit's own position
// and velocity magnitudes and D_r brings rows to unit max norm.
type scaled struct {
	m    *mat.Dense
	rows [6]float64
	cols [6]float64
}

// scale rejects Jacobians that are not finite or whose scaled condition
// number is too large.
func scale(j *mat.Dense, o Orbit, t Type) (scaled, error) {
	r := r3.Norm(o.Position)
	v := r3.Norm(o.Velocity)

	s := scaled{m: mat.NewDense(6, 6, nil)}
	for k := 0; k < 6; k++ {
		s.cols[k] = r
		if k >= 3 {
			s.cols[k] = v
		}
	}
	for i := 0; i < 6; i++ {
		rowMax := 0.0
		for k := 0; k < 6; k++ {
			x := j.At(i, k)
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return scaled{}, fmt.Errorf("%w %v", ErrSingularJacobian, t)
			}
			rowMax = math.Max(rowMax, math.Abs(x*s.cols[k]))
		}
		if rowMax == 0 {
			return scaled{}, fmt.Errorf("%w %v", ErrSingularJacobian, t)
		}
		s.rows[i] = 1 / rowMax
		for k := 0; k < 6; k++ {
			s.m.Set(i, k, s.rows[i]*j.At(i, k)*s.cols[k])
		}
	}

	var lu mat.LU
	lu.Factorize(s.m)
	if c := lu.Cond(); math.IsInf(c, 0) || math.IsNaN(c) || c > maxScaledCondition {
		return scaled{}, fmt.Errorf("%w %v (scaled condition %.3g)", ErrSingularJacobian, t, c)
	}
	return s, nil
}

// Tolerances returns absolute and relative integration tolerances for the
// six elements of type t plus mass, derived from a position tolerance dP.
// Cartesian tolerances are mapped through the conversion Jacobian; orbit
// types whose Jacobian is singular for o are rejected.
func Tolerances(dP float64, o Orbit, t Type, angle PositionAngle) (abs, rel []float64, err error) {
	r2 := r3.Norm2(o.Position)
	dV := o.Mu * dP / (r3.Norm(o.Velocity) * r2)
	cart := [6]float64{dP, dP, dP, dV, dV, dV}

	abs = make([]float64, 7)
	rel = make([]float64, 7)
	relP := dP / math.Sqrt(r2)

	if t == Cartesian {
		copy(abs, cart[:])
	} else {
		j := JacobianWrtCartesian(o, t, angle)
		if _, err := scale(j, o, t); err != nil {
			return nil, nil, err
		}
		for i := 0; i < 6; i++ {
			sum := 0.0
			for k := 0; k < 6; k++ {
				x := j.At(i, k) * cart[k]
				sum += x * x
			}
			abs[i] = math.Sqrt(sum)
		}
	}
	for i := 0; i < 6; i++ {
		rel[i] = relP
	}
	abs[6] = 1e-6
	rel[6] = 1e-7
	return abs, rel, nil
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
