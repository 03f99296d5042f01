// Package mask holds the generative-fill mask: a single-channel bitmap at the
// image's native resolution where white marks regions to regenerate.
package mask

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/xob0t/curve/pkg/codec"
)

const (
	// BrushWidth is the stroke width in image pixels.
	BrushWidth = 50.0
	// OverlayOpacity is how strongly the mask shows over the preview.
	OverlayOpacity = 0.6
)

// Mask is a black/white bitmap. Black keeps, white is filled.
type Mask struct {
	img   *image.Gray
	width float64
}

// New returns an all-black mask of the given size.
func New(w, h int) *Mask {
	return &Mask{img: image.NewGray(image.Rect(0, 0, max(w, 1), max(h, 1))), width: BrushWidth}
}

// Bounds returns the mask rectangle.
func (m *Mask) Bounds() image.Rectangle { return m.img.Bounds() }

// Gray exposes the bitmap.
func (m *Mask) Gray() *image.Gray { return m.img }

// SetBrush changes the stroke width.
func (m *Mask) SetBrush(width float64) {
	if width > 0 {
		m.width = width
	}
}

func (m *Mask) scanner() *rasterx.ScannerGV {
	b := m.img.Bounds()
	sc := rasterx.NewScannerGV(b.Dx(), b.Dy(), m.img, b)
	sc.SetColor(color.White)
	return sc
}

// Dot paints a round brush mark centered on p (image pixels).
func (m *Mask) Dot(p r2.Vec) {
	b := m.img.Bounds()
	f := rasterx.NewFiller(b.Dx(), b.Dy(), m.scanner())
	rasterx.AddCircle(p.X, p.Y, m.width/2, f)
	f.Draw()
}

// Segment paints a round-capped stroke from a to b.
func (m *Mask) Segment(a, b r2.Vec) {
	if a == b {
		m.Dot(a)
		return
	}
	bounds := m.img.Bounds()
	s := rasterx.NewStroker(bounds.Dx(), bounds.Dy(), m.scanner())
	s.SetStroke(fixed.Int26_6(m.width*64), 4<<6, rasterx.RoundCap, rasterx.RoundCap, rasterx.RoundGap, rasterx.Round)
	s.Start(rasterx.ToFixedP(a.X, a.Y))
	s.Line(rasterx.ToFixedP(b.X, b.Y))
	s.Stop(false)
	s.Draw()
}

// Empty reports whether nothing has been painted.
func (m *Mask) Empty() bool {
	for _, v := range m.img.Pix {
		if v != 0 {
			return false
		}
	}
	return true
}

// Coverage is the painted share of the mask, 0–1.
func (m *Mask) Coverage() float64 {
	if len(m.img.Pix) == 0 {
		return 0
	}
	var sum int
	for _, v := range m.img.Pix {
		sum += int(v)
	}
	return float64(sum) / float64(255*len(m.img.Pix))
}

// RGBA returns the mask with equal colour channels and full alpha, the
// layout inpainting services expect.
func (m *Mask) RGBA() *image.RGBA {
	out := image.NewRGBA(m.img.Bounds())
	draw.Draw(out, out.Bounds(), m.img, m.img.Bounds().Min, draw.Src)
	return out
}

// PNG encodes the mask for upload.
func (m *Mask) PNG() ([]byte, error) {
	return codec.EncodePNG(m.RGBA())
}

// Overlay returns the mask as an alpha-carrying image for previews: white
// where painted, scaled by opacity, transparent elsewhere.
func (m *Mask) Overlay(opacity float64) *image.NRGBA {
	b := m.img.Bounds()
	out := image.NewNRGBA(b)
	a := min(max(opacity, 0), 1)
	for i, v := range m.img.Pix {
		if v == 0 {
			continue
		}
		o := i * 4
		out.Pix[o], out.Pix[o+1], out.Pix[o+2] = 255, 255, 255
		out.Pix[o+3] = uint8(float64(v)*a + 0.5)
	}
	return out
}
