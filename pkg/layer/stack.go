// stack.go — Ordered layer collection with selection and editing state.
package layer

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/xob0t/curve/pkg/geometry"
)

// Direction moves a layer towards the top (Up) or bottom (Down).
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

const (
	// DefaultText is the placeholder of a new text layer.
	DefaultText = "Tap to edit"
	// DefaultTextSize is the font size of a new text layer.
	DefaultTextSize = 32.0
)

// Stack keeps layers bottom to top. Ids come from a counter that only grows.
// The zero value is not usable; call NewStack.
type Stack struct {
	layers   []Layer
	nextID   int
	selected int
	editing  int
}

// NewStack returns an empty stack whose first id is 1.
func NewStack() *Stack {
	return &Stack{nextID: 1}
}

// Len returns the number of layers.
func (s *Stack) Len() int { return len(s.layers) }

// All returns the layers bottom to top. The slice is a copy; the layers are not.
func (s *Stack) All() []Layer {
	return append([]Layer(nil), s.layers...)
}

// Images returns the image layers bottom to top.
func (s *Stack) Images() []*ImageLayer {
	return lo.FilterMap(s.layers, func(l Layer, _ int) (*ImageLayer, bool) {
		img, ok := l.(*ImageLayer)
		return img, ok
	})
}

// Texts returns the text layers bottom to top.
func (s *Stack) Texts() []*TextLayer {
	return lo.FilterMap(s.layers, func(l Layer, _ int) (*TextLayer, bool) {
		t, ok := l.(*TextLayer)
		return t, ok
	})
}

// NextID is the id the next added layer will get.
func (s *Stack) NextID() int { return s.nextID }

// Selected returns the selected layer id, or 0.
func (s *Stack) Selected() int { return s.selected }

// Editing returns the id of the text layer being edited, or 0.
func (s *Stack) Editing() int { return s.editing }

func (s *Stack) index(id int) int {
	_, i, ok := lo.FindIndexOf(s.layers, func(l Layer) bool { return l.ID() == id })
	if !ok {
		return -1
	}
	return i
}

// Get looks a layer up by id.
func (s *Stack) Get(id int) (Layer, error) {
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("layer %d: %w", id, ErrNotFound)
	}
	return s.layers[i], nil
}

// Image looks an image layer up by id.
func (s *Stack) Image(id int) (*ImageLayer, error) {
	l, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	img, ok := l.(*ImageLayer)
	if !ok {
		return nil, fmt.Errorf("layer %d is %s: %w", id, l.Kind(), ErrKind)
	}
	return img, nil
}

// Text looks a text layer up by id.
func (s *Stack) Text(id int) (*TextLayer, error) {
	l, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	t, ok := l.(*TextLayer)
	if !ok {
		return nil, fmt.Errorf("layer %d is %s: %w", id, l.Kind(), ErrKind)
	}
	return t, nil
}

func (s *Stack) allocID() int {
	id := s.nextID
	s.nextID++
	return id
}

// Append places an existing layer on top, keeping its id. The id counter
// moves past it. Used when loading saved documents.
func (s *Stack) Append(l Layer) {
	s.layers = append(s.layers, l)
	if l.ID() >= s.nextID {
		s.nextID = l.ID() + 1
	}
}

// AddImage puts a decoded image on top and selects it.
func (s *Stack) AddImage(data []byte, img image.Image) *ImageLayer {
	id := s.allocID()
	l := NewImageLayer(id, fmt.Sprintf("Image %d", id), data, img)
	s.layers = append(s.layers, l)
	s.selected = id
	return l
}

// AddText puts a placeholder text layer at the canvas center and starts
// editing it.
func (s *Stack) AddText(canvas geometry.Size, dark bool) *TextLayer {
	id := s.allocID()
	c := canvas.Center()
	l := &TextLayer{
		Props:   defaultProps(fmt.Sprintf("Text %d", id)),
		LayerID: id,
		Text:    DefaultText,
		X:       c.X,
		Y:       c.Y,
		Size:    DefaultTextSize,
		Color:   lo.Ternary(dark, "#ffffff", "#000000"),
	}
	s.layers = append(s.layers, l)
	s.editing = id
	return l
}

// Update merges a patch onto a layer.
func (s *Stack) Update(id int, p Patch) error {
	l, err := s.Get(id)
	if err != nil {
		return err
	}
	return p.Apply(l)
}

// Delete removes a layer. A deleted selection falls back to the lowest
// remaining image layer, or to none.
func (s *Stack) Delete(id int) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("delete layer %d: %w", id, ErrNotFound)
	}
	s.layers = append(s.layers[:i:i], s.layers[i+1:]...)
	if s.selected == id {
		s.selected = 0
		if img, ok := lo.Find(s.layers, func(l Layer) bool { return l.Kind() == KindImage }); ok {
			s.selected = img.ID()
		}
	}
	if s.editing == id {
		s.editing = 0
	}
	return nil
}

// Duplicate copies a layer onto the top of the stack under a fresh id.
func (s *Stack) Duplicate(id int) (Layer, error) {
	l, err := s.Get(id)
	if err != nil {
		return nil, fmt.Errorf("duplicate: %w", err)
	}
	dup := l.Clone()
	newID := s.allocID()
	switch v := dup.(type) {
	case *ImageLayer:
		v.LayerID = newID
		v.decoded = copyImage(l.(*ImageLayer).decoded)
		s.selected = newID
	case *TextLayer:
		v.LayerID = newID
	}
	dup.Common().Name = l.Common().Name + " copy"
	s.layers = append(s.layers, dup)
	return dup, nil
}

// Reorder swaps a layer with its neighbour. changed is false when the layer
// already sits at that end of the stack.
func (s *Stack) Reorder(id int, dir Direction) (changed bool, err error) {
	i := s.index(id)
	if i < 0 {
		return false, fmt.Errorf("reorder layer %d: %w", id, ErrNotFound)
	}
	j := i + 1
	if dir == Down {
		j = i - 1
	}
	if j < 0 || j >= len(s.layers) {
		return false, nil
	}
	s.layers[i], s.layers[j] = s.layers[j], s.layers[i]
	return true, nil
}

// Select marks a layer as selected. Zero clears the selection.
func (s *Stack) Select(id int) error {
	if id != 0 && s.index(id) < 0 {
		return fmt.Errorf("select layer %d: %w", id, ErrNotFound)
	}
	s.selected = id
	return nil
}

// SetEditing marks a text layer as being edited. Zero ends editing.
func (s *Stack) SetEditing(id int) error {
	if id != 0 {
		if _, err := s.Text(id); err != nil {
			return fmt.Errorf("edit: %w", err)
		}
	}
	s.editing = id
	return nil
}

// HitText returns the topmost visible text layer under p.
func (s *Stack) HitText(p r2.Vec, m Measurer) (*TextLayer, bool) {
	texts := s.Texts()
	for i := len(texts) - 1; i >= 0; i-- {
		if t := texts[i]; t.Visible && t.Hit(p, m) {
			return t, true
		}
	}
	return nil, false
}

// Clone deep-copies the stack. Image layers lose their decoded caches.
func (s *Stack) Clone() *Stack {
	c := *s
	c.layers = lo.Map(s.layers, func(l Layer, _ int) Layer { return l.Clone() })
	return &c
}

func copyImage(src image.Image) image.Image {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
