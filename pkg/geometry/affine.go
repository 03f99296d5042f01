// affine.go — 2D affine matrices with canvas-style chaining.
package geometry

import (
	"math"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/spatial/r2"
)

// Affine maps (x, y) to (A*x + C*y + E, B*x + D*y + F).
//
// Chained calls post-multiply, so Identity().Translate(...).Rotate(...)
// applies the rotation to a point first, like a 2D canvas context.
type Affine struct {
	A, B, C, D, E, F float64
}

// IdentityAffine is the identity matrix.
var IdentityAffine = Affine{A: 1, D: 1}

// Mul returns a·b: b is applied first.
func (a Affine) Mul(b Affine) Affine {
	return Affine{
		A: a.A*b.A + a.C*b.B,
		B: a.B*b.A + a.D*b.B,
		C: a.A*b.C + a.C*b.D,
		D: a.B*b.C + a.D*b.D,
		E: a.A*b.E + a.C*b.F + a.E,
		F: a.B*b.E + a.D*b.F + a.F,
	}
}

// Translate post-multiplies by a translation.
func (a Affine) Translate(x, y float64) Affine {
	return a.Mul(Affine{A: 1, D: 1, E: x, F: y})
}

// Scale post-multiplies by a non-uniform scale.
func (a Affine) Scale(sx, sy float64) Affine {
	return a.Mul(Affine{A: sx, D: sy})
}

// Rotate post-multiplies by a rotation of deg degrees (clockwise in a
// y-down space).
func (a Affine) Rotate(deg float64) Affine {
	s, c := math.Sincos(Radians(deg))
	return a.Mul(Affine{A: c, B: s, C: -s, D: c})
}

// Det returns the determinant of the linear part.
func (a Affine) Det() float64 {
	return a.A*a.D - a.B*a.C
}

// Invert returns the inverse matrix. ok is false for singular matrices.
func (a Affine) Invert() (inv Affine, ok bool) {
	det := a.Det()
	if det == 0 || math.IsNaN(det) {
		return Affine{}, false
	}
	inv.A = a.D / det
	inv.B = -a.B / det
	inv.C = -a.C / det
	inv.D = a.A / det
	inv.E = -(inv.A*a.E + inv.C*a.F)
	inv.F = -(inv.B*a.E + inv.D*a.F)
	return inv, true
}

// Apply transforms a point.
func (a Affine) Apply(p r2.Vec) r2.Vec {
	return r2.Vec{
		X: a.A*p.X + a.C*p.Y + a.E,
		Y: a.B*p.X + a.D*p.Y + a.F,
	}
}

// ScaleFactor returns the uniform scale of the linear part.
func (a Affine) ScaleFactor() float64 {
	return math.Sqrt(math.Abs(a.Det()))
}

// Aff3 converts to the x/image/draw representation.
func (a Affine) Aff3() f64.Aff3 {
	return f64.Aff3{a.A, a.C, a.E, a.B, a.D, a.F}
}

// Matrix2D converts to the rasterx representation.
func (a Affine) Matrix2D() rasterx.Matrix2D {
	return rasterx.Matrix2D{A: a.A, B: a.B, C: a.C, D: a.D, E: a.E, F: a.F}
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }
