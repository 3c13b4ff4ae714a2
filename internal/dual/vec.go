package dual

import "gonum.org/v1/gonum/spatial/r3"

type Vec3 struct {
	X, Y, Z Number
}

// VecConst lifts a constant vector to n directions.
func VecConst(v r3.Vec, n int) Vec3 {
	return Vec3{Constant(v.X, n), Constant(v.Y, n), Constant(v.Z, n)}
}

// VecVariable makes the components of v the independent variables
// first, first+1 and first+2 out of n.
func VecVariable(v r3.Vec, n, first int) Vec3 {
	return Vec3{Variable(v.X, n, first), Variable(v.Y, n, first+1), Variable(v.Z, n, first+2)}
}

func (a Vec3) Value() r3.Vec { return r3.Vec{X: a.X.Value, Y: a.Y.Value, Z: a.Z.Value} }

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X.Add(b.X), a.Y.Add(b.Y), a.Z.Add(b.Z)} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X.Sub(b.X), a.Y.Sub(b.Y), a.Z.Sub(b.Z)} }

func (a Vec3) Scale(s Number) Vec3 { return Vec3{a.X.Mul(s), a.Y.Mul(s), a.Z.Mul(s)} }

func (a Vec3) ScaleConst(c float64) Vec3 {
	return Vec3{a.X.Scale(c), a.Y.Scale(c), a.Z.Scale(c)}
}

// AddConst returns a + v for a constant v.
func (a Vec3) AddConst(v r3.Vec) Vec3 {
	return Vec3{a.X.AddConst(v.X), a.Y.AddConst(v.Y), a.Z.AddConst(v.Z)}
}

func (a Vec3) Dot(b Vec3) Number {
	return a.X.Mul(b.X).Add(a.Y.Mul(b.Y)).Add(a.Z.Mul(b.Z))
}

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y.Mul(b.Z).Sub(a.Z.Mul(b.Y)),
		a.Z.Mul(b.X).Sub(a.X.Mul(b.Z)),
		a.X.Mul(b.Y).Sub(a.Y.Mul(b.X)),
	}
}

func (a Vec3) NormSq() Number { return a.Dot(a) }
func (a Vec3) Norm() Number   { return Sqrt(a.NormSq()) }

// Unit returns a/|a|.
func (a Vec3) Unit() Vec3 { return a.Scale(a.Norm().Inv()) }

// Jacobian returns the 3 x n matrix of partial derivatives, row-major.
func (a Vec3) Jacobian(n int) []float64 {
	out := make([]float64, 3*n)
	for j := 0; j < n; j++ {
		out[j] = a.X.D(j)
		out[n+j] = a.Y.D(j)
		out[2*n+j] = a.Z.D(j)
	}
	return out
}
