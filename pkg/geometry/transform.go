// Package geometry maps between canvas display space and image pixel space.
//
// A Transform positions an image on the canvas: the image is fitted into 80%
// of the canvas, centered, then scaled, rotated and panned. Mapper turns a
// Transform into forward and inverse point mappings.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// FitMargin is the share of the canvas an image fills at scale 1.
	FitMargin = 0.8
	// MinScale and MaxScale bound interactive scaling.
	MinScale = 0.1
	MaxScale = 5.0
	// SnapThreshold is the pan distance from center that snaps to zero.
	SnapThreshold = 8.0
)

// Transform is a pan (canvas pixels), uniform scale and rotation in degrees.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
}

// Identity returns the untransformed placement.
func Identity() Transform {
	return Transform{Scale: 1}
}

// IsIdentity reports whether t leaves the fitted image untouched.
func (t Transform) IsIdentity() bool {
	return t == Identity()
}

// Size is a width/height pair.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Empty reports whether either side is not positive.
func (s Size) Empty() bool { return s.W <= 0 || s.H <= 0 }

// Center returns the midpoint of a box of this size anchored at the origin.
func (s Size) Center() r2.Vec { return r2.Vec{X: s.W / 2, Y: s.H / 2} }

// Scaled multiplies both sides by f.
func (s Size) Scaled(f float64) Size { return Size{W: s.W * f, H: s.H * f} }

// ClampScale bounds s to [MinScale, MaxScale].
func ClampScale(s float64) float64 {
	if math.IsNaN(s) {
		return MinScale
	}
	return math.Max(MinScale, math.Min(MaxScale, s))
}

// Snap returns 0 when v is within threshold of zero.
func Snap(v, threshold float64) float64 {
	if math.Abs(v) < threshold {
		return 0
	}
	return v
}

// FitScale is the factor that fits img into canvas with the FitMargin applied.
func FitScale(canvas, img Size) float64 {
	if img.Empty() || canvas.Empty() {
		return 1
	}
	return math.Min(canvas.W/img.W, canvas.H/img.H) * FitMargin
}

// Mapper converts points for one image placed on one canvas.
type Mapper struct {
	Canvas Size
	Image  Size
	T      Transform

	fit float64
}

// NewMapper builds a mapper. A non-positive scale is raised to MinScale so
// the inverse stays defined.
func NewMapper(canvas, img Size, t Transform) Mapper {
	if t.Scale <= 0 || math.IsNaN(t.Scale) {
		t.Scale = MinScale
	}
	return Mapper{Canvas: canvas, Image: img, T: t, fit: FitScale(canvas, img)}
}

// Fit returns the fit scale.
func (m Mapper) Fit() float64 { return m.fit }

// DrawSize is the image size on the canvas at transform scale 1.
func (m Mapper) DrawSize() Size { return m.Image.Scaled(m.fit) }

// Center is the canvas point the image center lands on.
func (m Mapper) Center() r2.Vec {
	return r2.Add(m.Canvas.Center(), r2.Vec{X: m.T.X, Y: m.T.Y})
}

// Matrix maps absolute image pixels to canvas coordinates.
func (m Mapper) Matrix() Affine {
	c := m.Center()
	return IdentityAffine.
		Translate(c.X, c.Y).
		Rotate(m.T.Rotation).
		Scale(m.T.Scale, m.T.Scale).
		Scale(m.fit, m.fit).
		Translate(-m.Image.W/2, -m.Image.H/2)
}

// LocalMatrix maps draw-size local coordinates, origin at the image center,
// to canvas coordinates. Clip paths are built in this space.
func (m Mapper) LocalMatrix() Affine {
	c := m.Center()
	return IdentityAffine.
		Translate(c.X, c.Y).
		Rotate(m.T.Rotation).
		Scale(m.T.Scale, m.T.Scale)
}

// Forward maps an absolute image pixel to the canvas.
func (m Mapper) Forward(p r2.Vec) r2.Vec {
	local := r2.Scale(m.fit*m.T.Scale, r2.Sub(p, m.Image.Center()))
	rotated := r2.Rotate(local, Radians(m.T.Rotation), r2.Vec{})
	return r2.Add(rotated, m.Center())
}

// Inverse maps a canvas point to an absolute image pixel.
func (m Mapper) Inverse(p r2.Vec) r2.Vec {
	d := r2.Sub(p, m.Center())
	d = r2.Rotate(d, -Radians(m.T.Rotation), r2.Vec{})
	d = r2.Scale(1/(m.T.Scale*m.fit), d)
	return r2.Add(d, m.Image.Center())
}

// Contains reports whether a canvas point falls on the image.
func (m Mapper) Contains(p r2.Vec) bool {
	q := m.Inverse(p)
	return q.X >= 0 && q.Y >= 0 && q.X < m.Image.W && q.Y < m.Image.H
}

// Bounds is the canvas-space bounding box of the transformed image.
func (m Mapper) Bounds() r2.Box {
	return BoundsOf(
		m.Forward(r2.Vec{}),
		m.Forward(r2.Vec{X: m.Image.W}),
		m.Forward(r2.Vec{X: m.Image.W, Y: m.Image.H}),
		m.Forward(r2.Vec{Y: m.Image.H}),
	)
}

// BoundsOf returns the smallest box holding all points.
func BoundsOf(pts ...r2.Vec) r2.Box {
	if len(pts) == 0 {
		return r2.Box{}
	}
	b := r2.Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b
}
