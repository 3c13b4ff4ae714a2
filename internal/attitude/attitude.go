// Package attitude provides spacecraft attitude records and the providers
// that compute them from the orbital state.
package attitude

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/orbprop/internal/dual"
	"github.com/san-kum/orbprop/internal/orbit"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Attitude is the orientation of the body frame at a date. Rotation maps
// body frame vectors to the inertial frame.
type Attitude struct {
	Date     time.Time
	Frame    orbit.Frame
	Rotation quat.Number
}

// ToInertial rotates a body frame vector into the inertial frame.
func (a Attitude) ToInertial(v r3.Vec) r3.Vec {
	return rotate(a.Rotation, v)
}

// ToBody rotates an inertial vector into the body frame.
func (a Attitude) ToBody(v r3.Vec) r3.Vec {
	return rotate(quat.Conj(a.Rotation), v)
}

func rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Provider computes attitudes. ToInertialDual rotates a constant body
// vector with derivatives flowing through position and velocity.
type Provider interface {
	Attitude(o orbit.Orbit) Attitude
	ToInertialDual(pos, vel dual.Vec3, body r3.Vec) dual.Vec3
}

// Inertial keeps a fixed orientation with respect to the inertial frame.
type Inertial struct {
	Rotation quat.Number
}

// NewInertial returns the provider aligning the body frame with the
// inertial frame.
func NewInertial() Inertial {
	return Inertial{Rotation: quat.Number{Real: 1}}
}

func (p Inertial) Attitude(o orbit.Orbit) Attitude {
	return Attitude{Date: o.Date, Frame: o.Frame, Rotation: p.Rotation}
}

func (p Inertial) ToInertialDual(pos, _ dual.Vec3, body r3.Vec) dual.Vec3 {
	return dual.VecConst(rotate(p.Rotation, body), pos.X.Len())
}

// LOFKind selects a local orbital frame.
type LOFKind int

const (
	// TNW: X along velocity, Z along orbital momentum.
	TNW LOFKind = iota
	// QSW: X along position, Z along orbital momentum.
	QSW
)

func (k LOFKind) String() string {
	switch k {
	case TNW:
		return "TNW"
	case QSW:
		return "QSW"
	default:
		return fmt.Sprintf("lof(%d)", int(k))
	}
}

// LOF aligns the body frame with a local orbital frame.
type LOF struct {
	Kind LOFKind
}

func (p LOF) axes(pos, vel r3.Vec) (x, y, z r3.Vec) {
	z = r3.Unit(r3.Cross(pos, vel))
	if p.Kind == QSW {
		x = r3.Unit(pos)
	} else {
		x = r3.Unit(vel)
	}
	y = r3.Cross(z, x)
	return x, y, z
}

func (p LOF) Attitude(o orbit.Orbit) Attitude {
	x, y, z := p.axes(o.Position, o.Velocity)
	return Attitude{Date: o.Date, Frame: o.Frame, Rotation: fromAxes(x, y, z)}
}

func (p LOF) ToInertialDual(pos, vel dual.Vec3, body r3.Vec) dual.Vec3 {
	z := pos.Cross(vel).Unit()
	var x dual.Vec3
	if p.Kind == QSW {
		x = pos.Unit()
	} else {
		x = vel.Unit()
	}
	y := z.Cross(x)
	return x.ScaleConst(body.X).Add(y.ScaleConst(body.Y)).Add(z.ScaleConst(body.Z))
}

// fromAxes returns the quaternion of the rotation whose matrix has columns
// x, y and z.
func fromAxes(x, y, z r3.Vec) quat.Number {
	m00, m11, m22 := x.X, y.Y, z.Z
	tr := m00 + m11 + m22
	var q quat.Number
	switch {
	case tr > 0:
		s := 0.5 / math.Sqrt(tr+1)
		q = quat.Number{Real: 0.25 / s, Imag: (y.Z - z.Y) * s, Jmag: (z.X - x.Z) * s, Kmag: (x.Y - y.X) * s}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		q = quat.Number{Real: (y.Z - z.Y) / s, Imag: 0.25 * s, Jmag: (y.X + x.Y) / s, Kmag: (z.X + x.Z) / s}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		q = quat.Number{Real: (z.X - x.Z) / s, Imag: (y.X + x.Y) / s, Jmag: 0.25 * s, Kmag: (z.Y + y.Z) / s}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		q = quat.Number{Real: (x.Y - y.X) / s, Imag: (z.X + x.Z) / s, Jmag: (z.Y + y.Z) / s, Kmag: 0.25 * s}
	}
	return quat.Scale(1/quat.Abs(q), q)
}
