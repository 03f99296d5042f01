// crop.go — Crop mode and applying a crop at native resolution.
package editor

import (
	"fmt"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/geometry"
)

// MaxStraighten bounds the straighten angle in degrees.
const MaxStraighten = 45.0

// StartCrop enters crop mode with the rectangle covering the image.
func (s *Session) StartCrop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return ErrNoImage
	}
	if err := s.machine.BeginCrop(); err != nil {
		return err
	}
	s.crop = geometry.InitialCrop(s.canvas, s.baseSize())
	s.aspect = 0
	return nil
}

// SetAspect locks the crop to w/h, or unlocks it for a ratio of zero. The
// current rectangle is reshaped around its center.
func (s *Session) SetAspect(ratio float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.machine.Cropping() {
		return ErrMode
	}
	if ratio < 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return fmt.Errorf("aspect %g: must be a positive ratio or zero", ratio)
	}
	s.aspect = ratio
	if ratio == 0 {
		return nil
	}
	c := s.crop.Center()
	w, h := s.crop.W, s.crop.W/ratio
	if h > s.canvas.H {
		h = s.canvas.H
		w = h * ratio
	}
	if w > s.canvas.W {
		w = s.canvas.W
		h = w / ratio
	}
	s.crop = geometry.CropRect{
		X: c.X - w/2, Y: c.Y - h/2, W: w, H: h,
		Straighten: s.crop.Straighten,
	}.Normalize(s.canvas)
	return nil
}

// SetStraighten rotates the crop rectangle, clamped to ±MaxStraighten.
func (s *Session) SetStraighten(deg float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.machine.Cropping() {
		return ErrMode
	}
	s.crop.Straighten = min(max(deg, -MaxStraighten), MaxStraighten)
	return nil
}

// ToggleGrid shows or hides the rule-of-thirds grid.
func (s *Session) ToggleGrid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showGrid = !s.showGrid
	return s.showGrid
}

// CancelCrop leaves crop mode without changes.
func (s *Session) CancelCrop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.EndCrop()
}

// ApplyCrop replaces the base image with the area under the crop rectangle,
// sampled at the image's native resolution, and resets the transform.
func (s *Session) ApplyCrop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.machine.Cropping() || s.machine.Busy() {
		return ErrMode
	}
	if s.base == nil {
		return ErrNoImage
	}

	img, err := CropImage(s.base, s.canvas, s.crop)
	if err != nil {
		s.failed("Crop failed", err)
		return err
	}
	data, err := codec.EncodePNG(img)
	if err != nil {
		s.failed("Crop failed", err)
		return err
	}
	s.seq.Invalidate(keyBase)
	s.machine.EndCrop()
	s.replaceBase(img, data, true, "Image cropped")
	return nil
}

// CropImage cuts r, given in canvas space over the untransformed fitted
// image, out of img. The output keeps the image's pixel density, so a crop
// covering the whole fitted image returns an image of the same size.
func CropImage(img image.Image, canvas geometry.Size, r geometry.CropRect) (*image.RGBA, error) {
	b := img.Bounds()
	size := geometry.Size{W: float64(b.Dx()), H: float64(b.Dy())}
	m := geometry.NewMapper(canvas, size, geometry.Identity())
	k := 1 / m.Fit()

	w := int(math.Round(r.W * k))
	h := int(math.Round(r.H * k))
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("crop %gx%g: too small", r.W, r.H)
	}

	// output pixel → crop-local canvas → canvas → image pixel, inverted.
	toCanvas := r.Matrix().Scale(1/k, 1/k)
	fromCanvas, ok := toCanvas.Invert()
	if !ok {
		return nil, fmt.Errorf("crop: degenerate rectangle")
	}
	xf := fromCanvas.Mul(m.Matrix()).Translate(-float64(b.Min.X), -float64(b.Min.Y))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Transform(dst, xf.Aff3(), img, b, xdraw.Over, nil)
	return dst, nil
}
