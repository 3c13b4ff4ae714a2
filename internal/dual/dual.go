// Package dual implements forward-mode automatic differentiation.
//
// A [Number] carries a value and its gradient with respect to a fixed set of
// independent variables. The number of directions is chosen at run time, so
// the same code computes a plain value (zero directions), a state Jacobian
// (six or seven directions) or a state-plus-parameters Jacobian. Gradients of
// different lengths may be mixed; missing entries count as zero.
package dual

import "math"

type Number struct {
	Value float64
	Grad  []float64
}

// Constant returns a number with a zero gradient of n directions.
func Constant(v float64, n int) Number {
	return Number{Value: v, Grad: make([]float64, n)}
}

// Variable returns the i-th of n independent variables.
func Variable(v float64, n, i int) Number {
	g := make([]float64, n)
	g[i] = 1
	return Number{Value: v, Grad: g}
}

func (a Number) Len() int { return len(a.Grad) }

// D returns the derivative along direction i.
func (a Number) D(i int) float64 {
	if i < len(a.Grad) {
		return a.Grad[i]
	}
	return 0
}

// chain builds f(a, b) given df/da and df/db.
func chain(v float64, a Number, da float64, b Number, db float64) Number {
	n := len(a.Grad)
	if len(b.Grad) > n {
		n = len(b.Grad)
	}
	g := make([]float64, n)
	for i := range a.Grad {
		g[i] = da * a.Grad[i]
	}
	for i := range b.Grad {
		g[i] += db * b.Grad[i]
	}
	return Number{Value: v, Grad: g}
}

// unary builds f(a) given df/da.
func unary(v float64, a Number, da float64) Number {
	g := make([]float64, len(a.Grad))
	for i, x := range a.Grad {
		g[i] = da * x
	}
	return Number{Value: v, Grad: g}
}

func (a Number) Add(b Number) Number { return chain(a.Value+b.Value, a, 1, b, 1) }
func (a Number) Sub(b Number) Number { return chain(a.Value-b.Value, a, 1, b, -1) }
func (a Number) Mul(b Number) Number { return chain(a.Value*b.Value, a, b.Value, b, a.Value) }

func (a Number) Div(b Number) Number {
	q := a.Value / b.Value
	return chain(q, a, 1/b.Value, b, -q/b.Value)
}

func (a Number) Neg() Number               { return unary(-a.Value, a, -1) }
func (a Number) Scale(c float64) Number    { return unary(c*a.Value, a, c) }
func (a Number) AddConst(c float64) Number { return unary(a.Value+c, a, 1) }

// Inv returns 1/a.
func (a Number) Inv() Number {
	r := 1 / a.Value
	return unary(r, a, -r*r)
}

func Sqrt(a Number) Number {
	s := math.Sqrt(a.Value)
	return unary(s, a, 0.5/s)
}

func Sin(a Number) Number {
	s, c := math.Sincos(a.Value)
	return unary(s, a, c)
}

func Cos(a Number) Number {
	s, c := math.Sincos(a.Value)
	return unary(c, a, -s)
}

func Sincos(a Number) (Number, Number) {
	s, c := math.Sincos(a.Value)
	return unary(s, a, c), unary(c, a, -s)
}

func Tan(a Number) Number {
	t := math.Tan(a.Value)
	return unary(t, a, 1+t*t)
}

func Atan(a Number) Number {
	return unary(math.Atan(a.Value), a, 1/(1+a.Value*a.Value))
}

// Atan2 returns atan2(y, x).
func Atan2(y, x Number) Number {
	r2 := x.Value*x.Value + y.Value*y.Value
	return chain(math.Atan2(y.Value, x.Value), y, x.Value/r2, x, -y.Value/r2)
}

func Exp(a Number) Number {
	e := math.Exp(a.Value)
	return unary(e, a, e)
}

// Pow returns a^p for a constant exponent.
func Pow(a Number, p float64) Number {
	v := math.Pow(a.Value, p)
	return unary(v, a, p*math.Pow(a.Value, p-1))
}

func Abs(a Number) Number {
	if a.Value < 0 {
		return a.Neg()
	}
	return a
}
