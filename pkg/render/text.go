// text.go — Text layer drawing.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/xob0t/curve/pkg/layer"
)

// Editing outline offset in display pixels.
const outlineWidth = 2.0

// drawText draws a text layer centered on its anchor with the alphabetic
// baseline at Y. The anchor goes through the view, so exported text lands on
// the same spot of the image as in the preview.
func (c *Compositor) drawText(f *frame, l *layer.TextLayer, editing bool) error {
	if l.Text == "" {
		return nil
	}
	size := l.Size * f.view.ScaleFactor()
	anchor := f.view.Apply(r2.Vec{X: l.X, Y: l.Y})
	col := withAlpha(ParseHexColor(l.Color, color.NRGBA{A: 0xff}), l.Alpha())

	if editing {
		o := f.px(outlineWidth) / 2
		for _, d := range []r2.Vec{{X: -o}, {X: o}, {Y: -o}, {Y: o}, {X: -o, Y: -o}, {X: o, Y: o}, {X: -o, Y: o}, {X: o, Y: -o}} {
			if err := c.fonts.DrawString(f.dst, l.Text, size, r2.Add(anchor, d), Accent); err != nil {
				return err
			}
		}
	}
	return c.fonts.DrawString(f.dst, l.Text, size, anchor, col)
}

// DrawString draws text horizontally centered on anchor, baseline at
// anchor.Y.
func (fm *FontManager) DrawString(dst draw.Image, text string, size float64, anchor r2.Vec, col color.Color) error {
	face, err := fm.Face(size)
	if err != nil {
		return err
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()

	w := font.MeasureString(face, text)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(anchor.X*64) - w/2, Y: fixed.Int26_6(anchor.Y * 64)},
	}
	d.DrawString(text)
	return nil
}
