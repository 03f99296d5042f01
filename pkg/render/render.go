// Package render composites a document into a pixel buffer.
//
// The same procedure serves the on-screen preview and the full-resolution
// export. Everything is described in display canvas space and pushed through
// a view matrix: in preview it scales by the device pixel ratio, in export it
// reprojects the canvas onto the base image's native pixel grid.
package render

import (
	"errors"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/xob0t/curve/pkg/geometry"
	"github.com/xob0t/curve/pkg/layer"
	"github.com/xob0t/curve/pkg/mask"
)

// ErrNoBase is returned when exporting a scene without a base image.
var ErrNoBase = errors.New("no base image to export")

// Mode selects the render target.
type Mode int

const (
	// Preview renders the on-screen canvas with editing overlays.
	Preview Mode = iota
	// Export renders at the base image's native resolution without overlays.
	Export
)

func (m Mode) String() string {
	if m == Export {
		return "export"
	}
	return "preview"
}

// Options describe the output buffer.
type Options struct {
	Mode   Mode
	Canvas geometry.Size
	DPR    float64
}

// Scene is everything the compositor reads. It is not modified.
type Scene struct {
	Base      image.Image
	Transform geometry.Transform
	Radius    geometry.Radius
	Layers    *layer.Stack

	// Crop is non-nil while cropping.
	Crop     *geometry.CropRect
	ShowGrid bool
	// Mask is non-nil while a generative fill is being painted.
	Mask *mask.Mask

	Dark         bool
	Checkerboard bool
}

// Cropping reports whether the crop overlay is active.
func (s *Scene) Cropping() bool { return s.Crop != nil }

func (s *Scene) baseSize() geometry.Size {
	if s.Base == nil {
		return geometry.Size{}
	}
	b := s.Base.Bounds()
	return geometry.Size{W: float64(b.Dx()), H: float64(b.Dy())}
}

// Compositor renders scenes. It is safe for concurrent use.
type Compositor struct {
	fonts *FontManager
}

// NewCompositor creates a compositor drawing text with fm.
func NewCompositor(fm *FontManager) *Compositor {
	return &Compositor{fonts: fm}
}

// Fonts returns the font manager, which doubles as the text measurer.
func (c *Compositor) Fonts() *FontManager { return c.fonts }

// frame carries per-render state through the drawing steps.
type frame struct {
	dst    *image.RGBA
	scene  *Scene
	opts   Options
	view   geometry.Affine
	interp xdraw.Interpolator
}

func (f *frame) preview() bool { return f.opts.Mode == Preview }

// px converts a display length to output pixels.
func (f *frame) px(v float64) float64 { return v * f.view.ScaleFactor() }

// Render composites the scene. The order is fixed:
//  1. clear (checkerboard in preview when enabled)
//  2. base image, clipped to its rounded rectangle
//  3. image layers bottom to top, with the selection outline
//  4. text layers
//  5. snap guides
//  6. crop overlay
//  7. fill mask overlay
func (c *Compositor) Render(scene *Scene, opts Options) (*image.RGBA, error) {
	f, err := c.newFrame(scene, opts)
	if err != nil {
		return nil, err
	}

	if f.preview() && scene.Checkerboard {
		drawCheckerboard(f.dst, f.px(CheckerCell), scene.Dark)
	}

	if scene.Base != nil {
		m := c.baseMapper(scene, opts)
		radii := scene.Radius.Resolve(m.DrawSize().W, m.DrawSize().H)
		f.drawImage(scene.Base, m, radii, 1)
	}

	if scene.Layers != nil {
		for _, l := range scene.Layers.Images() {
			if !l.Visible || l.Decoded() == nil {
				continue
			}
			m := l.Mapper(opts.Canvas)
			d := m.DrawSize()
			f.drawImage(l.Decoded(), m, l.Radius.Resolve(d.W, d.H), l.Alpha())
			if f.preview() && !scene.Cropping() && l.ID() == scene.Layers.Selected() {
				f.drawSelection(m)
			}
		}
		for _, l := range scene.Layers.Texts() {
			if !l.Visible {
				continue
			}
			editing := f.preview() && l.ID() == scene.Layers.Editing()
			if err := c.drawText(f, l, editing); err != nil {
				return nil, err
			}
		}
	}

	if f.preview() {
		if scene.Base != nil && !scene.Cropping() {
			f.drawGuides()
		}
		if scene.Cropping() {
			f.drawCropOverlay(*scene.Crop)
		}
		if scene.Mask != nil && scene.Base != nil {
			f.drawMaskOverlay(geometry.NewMapper(opts.Canvas, scene.baseSize(), scene.Transform))
		}
	}

	return f.dst, nil
}

func (c *Compositor) newFrame(scene *Scene, opts Options) (*frame, error) {
	f := &frame{scene: scene, opts: opts}
	switch opts.Mode {
	case Export:
		if scene.Base == nil {
			return nil, ErrNoBase
		}
		b := scene.Base.Bounds()
		f.dst = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		f.view = ExportView(opts.Canvas, scene.baseSize(), scene.Transform)
		f.interp = xdraw.CatmullRom
	default:
		dpr := opts.DPR
		if dpr <= 0 || math.IsNaN(dpr) {
			dpr = 1
		}
		f.opts.DPR = dpr
		w := int(math.Ceil(opts.Canvas.W * dpr))
		h := int(math.Ceil(opts.Canvas.H * dpr))
		f.dst = image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
		f.view = geometry.IdentityAffine.Scale(dpr, dpr)
		f.interp = xdraw.ApproxBiLinear
	}
	return f, nil
}

// baseMapper places the base image. While cropping in preview the transform
// is suppressed so the crop rectangle lines up with the untransformed view.
func (c *Compositor) baseMapper(scene *Scene, opts Options) geometry.Mapper {
	t := scene.Transform
	if opts.Mode == Preview && scene.Cropping() {
		t = geometry.Identity()
	}
	return geometry.NewMapper(opts.Canvas, scene.baseSize(), t)
}

// ExportView maps display canvas coordinates onto the base image's native
// pixel grid: the pan is dropped and lengths grow by 1/fitScale around the
// image center, so layers and text keep their position relative to the base.
func ExportView(canvas, img geometry.Size, t geometry.Transform) geometry.Affine {
	m := geometry.NewMapper(canvas, img, t)
	k := 1 / m.Fit()
	c := m.Center()
	return geometry.IdentityAffine.
		Translate(img.W/2, img.H/2).
		Scale(k, k).
		Translate(-c.X, -c.Y)
}
