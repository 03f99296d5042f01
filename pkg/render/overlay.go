// overlay.go — Editing overlays: selection, snap guides, crop and fill mask.
package render

import (
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/xob0t/curve/pkg/geometry"
	"github.com/xob0t/curve/pkg/mask"
)

// Overlay line styles in display pixels.
const (
	SelectionWidth = 2.0
	GuideWidth     = 1.0
	CropBorder     = 2.0
	GridWidth      = 1.0
	dashLen        = 5.0
)

func (f *frame) dashes() []float64 {
	return []float64{f.px(dashLen), f.px(dashLen)}
}

// drawSelection outlines an image layer's drawn rectangle.
func (f *frame) drawSelection(m geometry.Mapper) {
	w, h := m.Image.W, m.Image.H
	pts := []r2.Vec{{}, {X: w}, {X: w, Y: h}, {Y: h}}
	xf := f.view.Mul(m.Matrix())
	for i, p := range pts {
		pts[i] = xf.Apply(p)
	}
	strokePolyline(f.dst, Accent, f.px(SelectionWidth), f.dashes(), true, pts...)
}

// drawGuides shows centre lines while the pan sits within the snap range.
func (f *frame) drawGuides() {
	t := f.scene.Transform
	c := f.opts.Canvas.Center()
	if math.Abs(t.X) < geometry.SnapThreshold {
		a := f.view.Apply(r2.Vec{X: c.X})
		b := f.view.Apply(r2.Vec{X: c.X, Y: f.opts.Canvas.H})
		strokePolyline(f.dst, GuideStroke, f.px(GuideWidth), f.dashes(), false, a, b)
	}
	if math.Abs(t.Y) < geometry.SnapThreshold {
		a := f.view.Apply(r2.Vec{Y: c.Y})
		b := f.view.Apply(r2.Vec{X: f.opts.Canvas.W, Y: c.Y})
		strokePolyline(f.dst, GuideStroke, f.px(GuideWidth), f.dashes(), false, a, b)
	}
}

// drawCropOverlay darkens everything outside the crop rectangle, then draws
// its border, the optional thirds grid and the corner handles.
func (f *frame) drawCropOverlay(r geometry.CropRect) {
	xf := f.view.Mul(r.Matrix())
	local := func(x, y float64) r2.Vec { return xf.Apply(r2.Vec{X: x, Y: y}) }
	corners := []r2.Vec{local(0, 0), local(r.W, 0), local(r.W, r.H), local(0, r.H)}

	// The punch-out only removes scrim, never the image under it.
	hole := image.NewAlpha(f.dst.Bounds())
	fillPolygon(hole, CropStroke, corners)
	scrim := image.NewAlpha(f.dst.Bounds())
	for i, v := range hole.Pix {
		scrim.Pix[i] = uint8(uint32(Scrim.A) * uint32(255-v) / 255)
	}
	draw.DrawMask(f.dst, f.dst.Bounds(), image.Black, image.Point{}, scrim, scrim.Bounds().Min, draw.Over)

	strokePolyline(f.dst, CropStroke, f.px(CropBorder), nil, true, corners...)

	if f.scene.ShowGrid {
		for _, k := range []float64{1.0 / 3, 2.0 / 3} {
			strokePolyline(f.dst, GridStroke, f.px(GridWidth), nil, false, local(r.W*k, 0), local(r.W*k, r.H))
			strokePolyline(f.dst, GridStroke, f.px(GridWidth), nil, false, local(0, r.H*k), local(r.W, r.H*k))
		}
	}

	hs := f.px(geometry.HandleSize) / 2
	for _, c := range corners {
		fillPolygon(f.dst, CropStroke, []r2.Vec{
			{X: c.X - hs, Y: c.Y - hs},
			{X: c.X + hs, Y: c.Y - hs},
			{X: c.X + hs, Y: c.Y + hs},
			{X: c.X - hs, Y: c.Y + hs},
		})
	}
}

// drawMaskOverlay lays the fill mask over the base image using the real
// (unsuppressed) transform. The mask is stored at native resolution, so the
// base image's own matrix scales it to the draw size.
func (f *frame) drawMaskOverlay(m geometry.Mapper) {
	ov := f.scene.Mask.Overlay(mask.OverlayOpacity)
	xf := f.view.Mul(m.Matrix())
	xdraw.ApproxBiLinear.Transform(f.dst, xf.Aff3(), ov, ov.Bounds(), xdraw.Over, nil)
}
