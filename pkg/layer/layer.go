// Package layer holds the ordered stack of image and text layers that sit on
// top of a document's base image.
package layer

import (
	"errors"
	"image"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/xob0t/curve/pkg/geometry"
)

var (
	// ErrNotFound is returned for unknown layer ids.
	ErrNotFound = errors.New("layer not found")
	// ErrLocked is returned when a locked layer would be moved or edited.
	ErrLocked = errors.New("layer is locked")
	// ErrKind is returned when a patch does not fit the layer kind.
	ErrKind = errors.New("field does not apply to layer kind")
)

// Kind tags the concrete layer type.
type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// Measurer reports the advance width of text at a font size.
type Measurer interface {
	MeasureText(text string, size float64) float64
}

// Layer is either an *ImageLayer or a *TextLayer.
type Layer interface {
	ID() int
	Kind() Kind
	Common() *Props
	// Placement is the layer's own transform in canvas space.
	Placement() geometry.Transform
	// Bounds is the canvas-space bounding box.
	Bounds(canvas geometry.Size, m Measurer) r2.Box
	Clone() Layer

	sealed()
}

// Props are the flags every layer carries.
type Props struct {
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Opacity int    `json:"opacity"`
	Locked  bool   `json:"locked"`
}

func defaultProps(name string) Props {
	return Props{Name: name, Visible: true, Opacity: 100}
}

// Alpha returns the opacity as a 0–1 fraction.
func (p Props) Alpha() float64 {
	return float64(min(max(p.Opacity, 0), 100)) / 100
}

// ImageLayer is an additional picture placed over the base image.
type ImageLayer struct {
	Props
	LayerID   int                `json:"id"`
	Data      []byte             `json:"-"`
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	Transform geometry.Transform `json:"transform"`
	Radius    geometry.Radius    `json:"radius"`

	decoded image.Image
}

// NewImageLayer wraps encoded bytes and their decoded image.
func NewImageLayer(id int, name string, data []byte, img image.Image) *ImageLayer {
	b := img.Bounds()
	return &ImageLayer{
		Props:     defaultProps(name),
		LayerID:   id,
		Data:      data,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Transform: geometry.Identity(),
		decoded:   img,
	}
}

func (l *ImageLayer) ID() int                       { return l.LayerID }
func (l *ImageLayer) Kind() Kind                    { return KindImage }
func (l *ImageLayer) Common() *Props                { return &l.Props }
func (l *ImageLayer) Placement() geometry.Transform { return l.Transform }
func (l *ImageLayer) sealed()                       {}

// Decoded returns the cached image, or nil when it has not been rebuilt.
func (l *ImageLayer) Decoded() image.Image { return l.decoded }

// SetDecoded installs the decoded image cache.
func (l *ImageLayer) SetDecoded(img image.Image) {
	l.decoded = img
	if img != nil {
		b := img.Bounds()
		l.Width, l.Height = b.Dx(), b.Dy()
	}
}

// Size is the natural pixel size.
func (l *ImageLayer) Size() geometry.Size {
	return geometry.Size{W: float64(l.Width), H: float64(l.Height)}
}

// Mapper places the layer on a canvas.
func (l *ImageLayer) Mapper(canvas geometry.Size) geometry.Mapper {
	return geometry.NewMapper(canvas, l.Size(), l.Transform)
}

func (l *ImageLayer) Bounds(canvas geometry.Size, _ Measurer) r2.Box {
	return l.Mapper(canvas).Bounds()
}

// Clone copies the layer without its decoded cache. Data is shared because
// encoded bytes are never mutated in place.
func (l *ImageLayer) Clone() Layer {
	c := *l
	c.decoded = nil
	return &c
}

// TextLayer is a line of text anchored in canvas space.
type TextLayer struct {
	Props
	LayerID int     `json:"id"`
	Text    string  `json:"text"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Size    float64 `json:"size"`
	Color   string  `json:"color"`
}

func (l *TextLayer) ID() int        { return l.LayerID }
func (l *TextLayer) Kind() Kind     { return KindText }
func (l *TextLayer) Common() *Props { return &l.Props }
func (l *TextLayer) sealed()        {}

func (l *TextLayer) Placement() geometry.Transform {
	return geometry.Transform{X: l.X, Y: l.Y, Scale: 1}
}

// Bounds approximates the text box: measured width, 1.5× the font size tall,
// horizontally centered on X with its top one font size above Y.
func (l *TextLayer) Bounds(_ geometry.Size, m Measurer) r2.Box {
	w := l.Size * 0.6 * float64(len([]rune(l.Text)))
	if m != nil {
		w = m.MeasureText(l.Text, l.Size)
	}
	top := l.Y - l.Size
	return r2.Box{
		Min: r2.Vec{X: l.X - w/2, Y: top},
		Max: r2.Vec{X: l.X + w/2, Y: top + l.Size*1.5},
	}
}

// Hit reports whether p falls inside the text box.
func (l *TextLayer) Hit(p r2.Vec, m Measurer) bool {
	b := l.Bounds(geometry.Size{}, m)
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

func (l *TextLayer) Clone() Layer {
	c := *l
	return &c
}
