package layer

import (
	"image"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/xob0t/curve/pkg/geometry"
)

type fixedWidth float64

func (w fixedWidth) MeasureText(text string, size float64) float64 {
	return float64(w) * float64(len(text))
}

func testImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func ids(s *Stack) []int {
	return lo.Map(s.All(), func(l Layer, _ int) int { return l.ID() })
}

func TestAddImageAssignsMonotonicIDs(t *testing.T) {
	s := NewStack()
	a := s.AddImage([]byte("a"), testImage(10, 20))
	b := s.AddImage([]byte("b"), testImage(30, 40))

	assert.Equal(t, 1, a.ID())
	assert.Equal(t, 2, b.ID())
	assert.Equal(t, "Image 2", b.Name)
	assert.True(t, b.Visible)
	assert.Equal(t, 100, b.Opacity)
	assert.False(t, b.Locked)
	assert.Equal(t, geometry.Identity(), b.Transform)
	assert.Equal(t, 2, s.Selected())
	assert.Equal(t, []int{1, 2}, ids(s))

	require.NoError(t, s.Delete(2))
	c := s.AddImage([]byte("c"), testImage(1, 1))
	assert.Equal(t, 3, c.ID(), "ids are never reused")
}

func TestAddTextDefaults(t *testing.T) {
	s := NewStack()
	light := s.AddText(geometry.Size{W: 400, H: 300}, false)
	dark := s.AddText(geometry.Size{W: 400, H: 300}, true)

	assert.Equal(t, DefaultText, light.Text)
	assert.Equal(t, 200.0, light.X)
	assert.Equal(t, 150.0, light.Y)
	assert.Equal(t, "#000000", light.Color)
	assert.Equal(t, "#ffffff", dark.Color)
	assert.Equal(t, dark.ID(), s.Editing())
}

func TestDeleteSelectionFallback(t *testing.T) {
	s := NewStack()
	s.AddImage(nil, testImage(1, 1))
	s.AddImage(nil, testImage(1, 1))
	s.AddImage(nil, testImage(1, 1))
	require.NoError(t, s.Select(2))

	require.NoError(t, s.Delete(2))
	assert.Equal(t, 1, s.Selected())

	require.NoError(t, s.Delete(1))
	assert.Equal(t, 3, s.Selected())

	require.NoError(t, s.Delete(3))
	assert.Equal(t, 0, s.Selected())

	assert.ErrorIs(t, s.Delete(3), ErrNotFound)
}

func TestDeleteSelectionSkipsText(t *testing.T) {
	s := NewStack()
	s.AddText(geometry.Size{W: 100, H: 100}, false)
	img := s.AddImage(nil, testImage(1, 1))
	top := s.AddImage(nil, testImage(1, 1))
	require.NoError(t, s.Select(top.ID()))

	require.NoError(t, s.Delete(top.ID()))
	assert.Equal(t, img.ID(), s.Selected(), "the text layer below is passed over")

	require.NoError(t, s.Delete(img.ID()))
	assert.Zero(t, s.Selected(), "only text remains")
}

func TestDeleteClearsEditing(t *testing.T) {
	s := NewStack()
	txt := s.AddText(geometry.Size{W: 100, H: 100}, false)
	require.NoError(t, s.Delete(txt.ID()))
	assert.Equal(t, 0, s.Editing())
}

func TestDuplicate(t *testing.T) {
	s := NewStack()
	src := s.AddImage([]byte("png"), testImage(8, 8))
	src.Transform.X = 12
	s.AddText(geometry.Size{W: 100, H: 100}, false)

	dup, err := s.Duplicate(src.ID())
	require.NoError(t, err)
	img := dup.(*ImageLayer)
	assert.Equal(t, 3, img.ID())
	assert.Equal(t, "Image 1 copy", img.Name)
	assert.Equal(t, 12.0, img.Transform.X)
	assert.NotNil(t, img.Decoded())
	assert.Equal(t, 3, s.Selected())
	assert.Equal(t, []int{1, 2, 3}, ids(s))

	img.Transform.X = 99
	assert.Equal(t, 12.0, src.Transform.X, "duplicate is independent")
}

func TestReorderBoundaries(t *testing.T) {
	s := NewStack()
	s.AddImage(nil, testImage(1, 1))
	s.AddImage(nil, testImage(1, 1))
	s.AddText(geometry.Size{W: 10, H: 10}, false)

	changed, err := s.Reorder(3, Up)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []int{1, 2, 3}, ids(s))

	changed, err = s.Reorder(1, Down)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []int{1, 2, 3}, ids(s))

	changed, err = s.Reorder(1, Up)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []int{2, 1, 3}, ids(s))

	changed, err = s.Reorder(3, Down)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []int{2, 3, 1}, ids(s))

	_, err = s.Reorder(42, Up)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePatch(t *testing.T) {
	s := NewStack()
	img := s.AddImage(nil, testImage(4, 4))
	txt := s.AddText(geometry.Size{W: 100, H: 100}, false)

	scale := 9.0
	opacity := 140
	require.NoError(t, s.Update(img.ID(), Patch{Scale: &scale, Opacity: &opacity}))
	assert.Equal(t, geometry.MaxScale, img.Transform.Scale)
	assert.Equal(t, 100, img.Opacity)

	text := "hello"
	require.NoError(t, s.Update(txt.ID(), Patch{Text: &text}))
	assert.Equal(t, "hello", txt.Text)

	assert.ErrorIs(t, s.Update(txt.ID(), Patch{Scale: &scale}), ErrKind)
	assert.ErrorIs(t, s.Update(img.ID(), Patch{Text: &text}), ErrKind)
}

func TestLockedLayerRejectsEdits(t *testing.T) {
	s := NewStack()
	img := s.AddImage(nil, testImage(4, 4))
	locked := true
	require.NoError(t, s.Update(img.ID(), Patch{Locked: &locked}))

	x := 10.0
	assert.ErrorIs(t, s.Update(img.ID(), Patch{X: &x}), ErrLocked)

	hidden := false
	require.NoError(t, s.Update(img.ID(), Patch{Visible: &hidden}))
	assert.False(t, img.Visible)

	unlocked := false
	require.NoError(t, s.Update(img.ID(), Patch{Locked: &unlocked, X: &x}))
	assert.Equal(t, 10.0, img.Transform.X)
}

func TestHitTextTopmostFirst(t *testing.T) {
	s := NewStack()
	canvas := geometry.Size{W: 200, H: 200}
	a := s.AddText(canvas, false)
	b := s.AddText(canvas, false)
	m := fixedWidth(10)

	hit, ok := s.HitText(r2.Vec{X: 100, Y: 95}, m)
	require.True(t, ok)
	assert.Equal(t, b.ID(), hit.ID())

	b.Visible = false
	hit, ok = s.HitText(r2.Vec{X: 100, Y: 95}, m)
	require.True(t, ok)
	assert.Equal(t, a.ID(), hit.ID())

	_, ok = s.HitText(r2.Vec{X: 100, Y: 60}, m)
	assert.False(t, ok, "above the text box")
}

func TestTextBounds(t *testing.T) {
	l := &TextLayer{Text: "abcd", X: 100, Y: 50, Size: 20}
	b := l.Bounds(geometry.Size{}, fixedWidth(10))
	assert.Equal(t, r2.Vec{X: 80, Y: 30}, b.Min)
	assert.Equal(t, r2.Vec{X: 120, Y: 60}, b.Max)
}

func TestCloneDropsDecoded(t *testing.T) {
	s := NewStack()
	s.AddImage([]byte("x"), testImage(2, 2))
	c := s.Clone()

	img := c.Images()[0]
	assert.Nil(t, img.Decoded())
	assert.Equal(t, []byte("x"), img.Data)
	assert.NotNil(t, s.Images()[0].Decoded())
	assert.Equal(t, s.NextID(), c.NextID())

	img.Name = "renamed"
	assert.Equal(t, "Image 1", s.Images()[0].Name)
}

func TestAppendKeepsCounterAhead(t *testing.T) {
	s := NewStack()
	s.Append(&TextLayer{LayerID: 7})
	assert.Equal(t, 8, s.NextID())
	l := s.AddImage(nil, testImage(1, 1))
	assert.Equal(t, 8, l.ID())
}
