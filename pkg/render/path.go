// path.go — Rounded rectangles, clip masks and stroked outlines.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/xob0t/curve/pkg/geometry"
)

// RoundedRect adds a w×h rectangle centered on the origin with the given
// corner radii to p. Uniform radii use rasterx.AddRoundRect; mixed radii are
// built from four edges and four quadratic corners. Both trace the same
// curve because the quadratic gap puts the control point on the corner.
func RoundedRect(p rasterx.Adder, w, h float64, r geometry.CornerRadii) {
	x0, y0, x1, y1 := -w/2, -h/2, w/2, h/2
	if r.IsUniform() {
		rasterx.AddRoundRect(x0, y0, x1, y1, r.TL, r.TL, 0, rasterx.QuadraticGap, p)
		return
	}
	roundedRectQuad(p, w, h, r)
}

func roundedRectQuad(p rasterx.Adder, w, h float64, r geometry.CornerRadii) {
	x0, y0, x1, y1 := -w/2, -h/2, w/2, h/2
	pt := rasterx.ToFixedP
	p.Start(pt(x0+r.TL, y0))
	p.Line(pt(x1-r.TR, y0))
	p.QuadBezier(pt(x1, y0), pt(x1, y0+r.TR))
	p.Line(pt(x1, y1-r.BR))
	p.QuadBezier(pt(x1, y1), pt(x1-r.BR, y1))
	p.Line(pt(x0+r.BL, y1))
	p.QuadBezier(pt(x0, y1), pt(x0, y1-r.BL))
	p.Line(pt(x0, y0+r.TL))
	p.QuadBezier(pt(x0, y0), pt(x0+r.TL, y0))
	p.Stop(true)
}

// ClipMask rasterizes a rounded rectangle through m into an alpha mask the
// size of bounds. Coverage is scaled by alpha (0–1).
func ClipMask(bounds image.Rectangle, m geometry.Affine, w, h float64, r geometry.CornerRadii, alpha float64) *image.Alpha {
	out := image.NewAlpha(bounds)
	fillInto(out, color.Alpha{A: uint8(clamp01(alpha)*255 + 0.5)}, func(p rasterx.Adder) {
		RoundedRect(&rasterx.MatrixAdder{Adder: p, M: m.Matrix2D()}, w, h, r)
	})
	return out
}

// fillInto fills the path traced by build onto dst.
func fillInto(dst draw.Image, c color.Color, build func(rasterx.Adder)) {
	b := dst.Bounds()
	sc := rasterx.NewScannerGV(b.Dx(), b.Dy(), dst, b)
	sc.SetColor(c)
	f := rasterx.NewFiller(b.Dx(), b.Dy(), sc)
	build(f)
	f.Draw()
}

// fillPolygon fills a closed polygon given in output pixels.
func fillPolygon(dst draw.Image, c color.Color, pts []r2.Vec) {
	if len(pts) < 3 {
		return
	}
	fillInto(dst, c, func(p rasterx.Adder) {
		p.Start(rasterx.ToFixedP(pts[0].X, pts[0].Y))
		for _, q := range pts[1:] {
			p.Line(rasterx.ToFixedP(q.X, q.Y))
		}
		p.Stop(true)
	})
}

// strokePolyline strokes pts (output pixels) with an optional dash pattern.
func strokePolyline(dst draw.Image, c color.Color, width float64, dashes []float64, closed bool, pts ...r2.Vec) {
	if len(pts) < 2 || width <= 0 {
		return
	}
	b := dst.Bounds()
	sc := rasterx.NewScannerGV(b.Dx(), b.Dy(), dst, b)
	sc.SetColor(c)
	d := rasterx.NewDasher(b.Dx(), b.Dy(), sc)
	d.SetStroke(fixed.Int26_6(width*64), 4<<6, rasterx.ButtCap, rasterx.ButtCap, rasterx.FlatGap, rasterx.MiterClip, dashes, 0)
	d.Start(rasterx.ToFixedP(pts[0].X, pts[0].Y))
	for _, q := range pts[1:] {
		d.Line(rasterx.ToFixedP(q.X, q.Y))
	}
	d.Stop(closed)
	d.Draw()
}

// drawImage draws src through mapper m and the view, clipped to the rounded
// rectangle of the draw size and faded by alpha.
func (f *frame) drawImage(src image.Image, m geometry.Mapper, radii geometry.CornerRadii, alpha float64) {
	if alpha <= 0 {
		return
	}
	d := m.DrawSize()
	clip := ClipMask(f.dst.Bounds(), f.view.Mul(m.LocalMatrix()), d.W, d.H, radii, alpha)

	sb := src.Bounds()
	xf := f.view.Mul(m.Matrix()).Translate(-float64(sb.Min.X), -float64(sb.Min.Y))
	f.interp.Transform(f.dst, xf.Aff3(), src, sb, xdraw.Over, &xdraw.Options{DstMask: clip})
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
