// crop.go — Crop rectangle, drag handles and size constraints.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// MinCropSize is the smallest crop side in canvas pixels.
	MinCropSize = 10.0
	// HandleRadius is the grab distance around a crop handle.
	HandleRadius = 15.0
	// HandleSize is the side of a drawn corner handle.
	HandleSize = 10.0
)

// Handle names the part of a crop rectangle under the pointer.
type Handle int

const (
	HandleNone Handle = iota
	HandleTL
	HandleTR
	HandleBL
	HandleBR
	HandleT
	HandleB
	HandleL
	HandleR
	HandleMove
	HandleNew
)

var handleNames = [...]string{"none", "tl", "tr", "bl", "br", "t", "b", "l", "r", "move", "new"}

func (h Handle) String() string {
	if h < 0 || int(h) >= len(handleNames) {
		return fmt.Sprintf("handle(%d)", int(h))
	}
	return handleNames[h]
}

// MarshalText encodes the handle by name.
func (h Handle) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText decodes a handle name.
func (h *Handle) UnmarshalText(b []byte) error {
	for i, n := range handleNames {
		if n == string(b) {
			*h = Handle(i)
			return nil
		}
	}
	return fmt.Errorf("unknown crop handle %q", b)
}

func (h Handle) left() bool   { return h == HandleTL || h == HandleBL || h == HandleL }
func (h Handle) right() bool  { return h == HandleTR || h == HandleBR || h == HandleR }
func (h Handle) top() bool    { return h == HandleTL || h == HandleTR || h == HandleT }
func (h Handle) bottom() bool { return h == HandleBL || h == HandleBR || h == HandleB }

// Resizes reports whether dragging h changes the rectangle's size.
func (h Handle) Resizes() bool { return h.left() || h.right() || h.top() || h.bottom() }

// CropRect is a crop region in canvas space. Straighten rotates it around its
// own center, in degrees.
type CropRect struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Straighten float64 `json:"straighten"`
}

// InitialCrop covers the image as drawn with an identity transform.
func InitialCrop(canvas, img Size) CropRect {
	d := img.Scaled(FitScale(canvas, img))
	c := canvas.Center()
	r := CropRect{X: c.X - d.W/2, Y: c.Y - d.H/2, W: d.W, H: d.H}
	return r.Normalize(canvas)
}

// Center returns the rectangle's midpoint.
func (r CropRect) Center() r2.Vec {
	return r2.Vec{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Box returns the unrotated rectangle.
func (r CropRect) Box() r2.Box {
	return r2.Box{Min: r2.Vec{X: r.X, Y: r.Y}, Max: r2.Vec{X: r.X + r.W, Y: r.Y + r.H}}
}

// Matrix maps rectangle-local coordinates (origin at the top-left corner,
// unrotated) to canvas space, applying Straighten around the center.
func (r CropRect) Matrix() Affine {
	c := r.Center()
	return IdentityAffine.
		Translate(c.X, c.Y).
		Rotate(r.Straighten).
		Translate(-r.W/2, -r.H/2)
}

// Corners returns the canvas positions of TL, TR, BR and BL.
func (r CropRect) Corners() [4]r2.Vec {
	m := r.Matrix()
	return [4]r2.Vec{
		m.Apply(r2.Vec{}),
		m.Apply(r2.Vec{X: r.W}),
		m.Apply(r2.Vec{X: r.W, Y: r.H}),
		m.Apply(r2.Vec{Y: r.H}),
	}
}

// HandlePoint is the unrotated canvas position of a resize handle.
func (r CropRect) HandlePoint(h Handle) r2.Vec {
	x := r.X + r.W/2
	switch {
	case h.left():
		x = r.X
	case h.right():
		x = r.X + r.W
	}
	y := r.Y + r.H/2
	switch {
	case h.top():
		y = r.Y
	case h.bottom():
		y = r.Y + r.H
	}
	return r2.Vec{X: x, Y: y}
}

// unrotate maps a canvas point into the frame where the rectangle is
// axis-aligned.
func (r CropRect) unrotate(p r2.Vec) r2.Vec {
	if r.Straighten == 0 {
		return p
	}
	c := r.Center()
	return IdentityAffine.
		Translate(c.X, c.Y).
		Rotate(-r.Straighten).
		Translate(-c.X, -c.Y).
		Apply(p)
}

// Contains reports whether p lies inside the rectangle as drawn, rotated by
// Straighten.
func (r CropRect) Contains(p r2.Vec) bool {
	p = r.unrotate(p)
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// HitHandle finds what a pointer at p grabs: a corner or edge handle within
// radius, the interior for a move, or a new rectangle. Handles follow the
// Straighten rotation.
func (r CropRect) HitHandle(p r2.Vec, radius float64) Handle {
	p = r.unrotate(p)
	for _, h := range []Handle{HandleTL, HandleTR, HandleBL, HandleBR, HandleT, HandleB, HandleL, HandleR} {
		if r2.Norm(r2.Sub(p, r.HandlePoint(h))) <= radius {
			return h
		}
	}
	if r.Contains(p) {
		return HandleMove
	}
	return HandleNew
}

// Normalize enforces the minimum size and keeps the rectangle on the canvas.
func (r CropRect) Normalize(canvas Size) CropRect {
	r.W = math.Max(r.W, MinCropSize)
	r.H = math.Max(r.H, MinCropSize)
	if canvas.W >= MinCropSize {
		r.W = math.Min(r.W, canvas.W)
	}
	if canvas.H >= MinCropSize {
		r.H = math.Min(r.H, canvas.H)
	}
	r.X = clamp(r.X, 0, math.Max(0, canvas.W-r.W))
	r.Y = clamp(r.Y, 0, math.Max(0, canvas.H-r.H))
	return r
}

// Spanning returns the rectangle between two points.
func Spanning(a, b r2.Vec, canvas Size) CropRect {
	r := CropRect{
		X: math.Min(a.X, b.X),
		Y: math.Min(a.Y, b.Y),
		W: math.Abs(b.X - a.X),
		H: math.Abs(b.Y - a.Y),
	}
	return r.Normalize(canvas)
}

// Moved translates r by d, clamped to the canvas.
func (r CropRect) Moved(d r2.Vec, canvas Size) CropRect {
	r.X += d.X
	r.Y += d.Y
	return r.Normalize(canvas)
}

// Resized drags handle h by d. With aspect > 0 the perpendicular side is
// recomputed from the locked width/height ratio. The edge opposite the
// handle stays put when the minimum size or the canvas edge kicks in.
func (r CropRect) Resized(h Handle, d r2.Vec, aspect float64, canvas Size) CropRect {
	l, t, rt, b := r.X, r.Y, r.X+r.W, r.Y+r.H
	if h.left() {
		l += d.X
	}
	if h.right() {
		rt += d.X
	}
	if h.top() {
		t += d.Y
	}
	if h.bottom() {
		b += d.Y
	}
	// Dragged edges stop at the canvas boundary.
	if !canvas.Empty() {
		if h.left() {
			l = math.Max(l, 0)
		}
		if h.right() {
			rt = math.Min(rt, canvas.W)
		}
		if h.top() {
			t = math.Max(t, 0)
		}
		if h.bottom() {
			b = math.Min(b, canvas.H)
		}
	}
	if rt-l < MinCropSize {
		if h.left() {
			l = rt - MinCropSize
		} else {
			rt = l + MinCropSize
		}
	}
	if b-t < MinCropSize {
		if h.top() {
			t = b - MinCropSize
		} else {
			b = t + MinCropSize
		}
	}

	if aspect > 0 {
		w, hh := rt-l, b-t
		if h == HandleT || h == HandleB {
			w = math.Max(hh*aspect, MinCropSize)
			cx := (l + rt) / 2
			l, rt = cx-w/2, cx+w/2
		} else {
			hh = math.Max(w/aspect, MinCropSize)
			switch {
			case h.top():
				t = b - hh
			case h.bottom():
				b = t + hh
			default:
				cy := (t + b) / 2
				t, b = cy-hh/2, cy+hh/2
			}
		}
	}

	out := CropRect{X: l, Y: t, W: rt - l, H: b - t, Straighten: r.Straighten}
	return out.Normalize(canvas)
}
