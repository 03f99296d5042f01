package gesture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/xob0t/curve/pkg/geometry"
)

type fakeTarget struct {
	canvas  geometry.Size
	img     geometry.Size
	t       geometry.Transform
	crop    geometry.CropRect
	aspect  float64
	textBox *r2.Box

	dots     []r2.Vec
	segments [][2]r2.Vec
	strokes  int
	commits  int
	selected bool
}

func newFake() *fakeTarget {
	return &fakeTarget{
		canvas: geometry.Size{W: 1000, H: 800},
		img:    geometry.Size{W: 800, H: 600},
		t:      geometry.Identity(),
	}
}

func (f *fakeTarget) Canvas() geometry.Size { return f.canvas }
func (f *fakeTarget) BaseMapper() (geometry.Mapper, bool) {
	if f.img.Empty() {
		return geometry.Mapper{}, false
	}
	return geometry.NewMapper(f.canvas, f.img, f.t), true
}
func (f *fakeTarget) Transform() geometry.Transform     { return f.t }
func (f *fakeTarget) SetTransform(t geometry.Transform) { f.t = t }
func (f *fakeTarget) HitText(p r2.Vec) bool {
	if f.textBox != nil && p.X >= f.textBox.Min.X && p.X <= f.textBox.Max.X && p.Y >= f.textBox.Min.Y && p.Y <= f.textBox.Max.Y {
		f.selected = true
		return true
	}
	return false
}
func (f *fakeTarget) Crop() geometry.CropRect     { return f.crop }
func (f *fakeTarget) CropAspect() float64         { return f.aspect }
func (f *fakeTarget) SetCrop(r geometry.CropRect) { f.crop = r }
func (f *fakeTarget) PaintDot(p r2.Vec)           { f.dots = append(f.dots, p) }
func (f *fakeTarget) PaintSegment(a, b r2.Vec)    { f.segments = append(f.segments, [2]r2.Vec{a, b}) }
func (f *fakeTarget) StrokeDone()                 { f.strokes++ }
func (f *fakeTarget) Commit()                     { f.commits++ }

func pt(x, y float64) []r2.Vec { return []r2.Vec{{X: x, Y: y}} }

func drag(m *Machine, t Target, from, to r2.Vec, steps int) {
	m.Handle(t, Event{Kind: Down, Points: []r2.Vec{from}})
	d := r2.Scale(1/float64(steps), r2.Sub(to, from))
	p := from
	for i := 0; i < steps; i++ {
		p = r2.Add(p, d)
		m.Handle(t, Event{Kind: Move, Points: []r2.Vec{p}})
	}
	m.Handle(t, Event{Kind: Up})
}

func TestPanScenario(t *testing.T) {
	f := newFake()
	m := NewMachine(DefaultOptions())
	drag(m, f, r2.Vec{X: 500, Y: 400}, r2.Vec{X: 550, Y: 370}, 5)

	assert.InDelta(t, 50, f.t.X, 1e-9)
	assert.InDelta(t, -30, f.t.Y, 1e-9)
	assert.Equal(t, 1.0, f.t.Scale)
	assert.Equal(t, 1, f.commits, "one history entry per drag")
	assert.Equal(t, Idle{}, m.Mode())
}

func TestPanSnapsNearZero(t *testing.T) {
	f := newFake()
	m := NewMachine(DefaultOptions())
	m.Handle(f, Event{Kind: Down, Points: pt(500, 400)})
	m.Handle(f, Event{Kind: Move, Points: pt(505, 393)})
	assert.Equal(t, 0.0, f.t.X)
	assert.Equal(t, 0.0, f.t.Y)

	m.Handle(f, Event{Kind: Move, Points: pt(510, 400)})
	assert.Equal(t, 10.0, f.t.X, "raw pan escapes the snap zone")

	m.Handle(f, Event{Kind: Move, Points: pt(506, 400)})
	assert.Equal(t, 0.0, f.t.X)
	m.Handle(f, Event{Kind: Up})
	assert.Equal(t, 1, f.commits)
}

func TestTapWithoutMoveDoesNotCommit(t *testing.T) {
	f := newFake()
	m := NewMachine(DefaultOptions())
	m.Handle(f, Event{Kind: Down, Points: pt(10, 10)})
	m.Handle(f, Event{Kind: Up})
	assert.Equal(t, 0, f.commits)
}

func TestTextHitSelectsWithoutDrag(t *testing.T) {
	f := newFake()
	f.textBox = &r2.Box{Min: r2.Vec{X: 400, Y: 300}, Max: r2.Vec{X: 600, Y: 350}}
	m := NewMachine(DefaultOptions())

	drag(m, f, r2.Vec{X: 500, Y: 320}, r2.Vec{X: 600, Y: 420}, 3)
	assert.True(t, f.selected)
	assert.Equal(t, geometry.Identity(), f.t)
	assert.Equal(t, 0, f.commits)
}

func TestSheetBlocksPan(t *testing.T) {
	f := newFake()
	m := NewMachine(DefaultOptions())
	m.OpenSheet("radius")
	drag(m, f, r2.Vec{X: 500, Y: 400}, r2.Vec{X: 600, Y: 400}, 2)
	assert.Equal(t, geometry.Identity(), f.t)

	assert.Equal(t, "radius", m.CloseSheet())
	drag(m, f, r2.Vec{X: 500, Y: 400}, r2.Vec{X: 600, Y: 400}, 2)
	assert.Equal(t, 100.0, f.t.X)
}

func TestNoImageNoPan(t *testing.T) {
	f := newFake()
	f.img = geometry.Size{}
	m := NewMachine(DefaultOptions())
	drag(m, f, r2.Vec{X: 500, Y: 400}, r2.Vec{X: 600, Y: 400}, 2)
	assert.Equal(t, Idle{}, m.Mode())
	assert.Equal(t, 0, f.commits)
}

func TestDoubleTapResets(t *testing.T) {
	f := newFake()
	f.t = geometry.Transform{X: 40, Y: 40, Scale: 2, Rotation: 30}
	m := NewMachine(DefaultOptions())
	m.Handle(f, Event{Kind: DoubleTap, Points: pt(1, 1)})
	assert.Equal(t, geometry.Identity(), f.t)
	assert.Equal(t, 1, f.commits)
}

func TestPinch(t *testing.T) {
	f := newFake()
	m := NewMachine(DefaultOptions())
	m.Handle(f, Event{Kind: Down, Points: pt(400, 400)})
	m.Handle(f, Event{Kind: Down, Points: []r2.Vec{{X: 400, Y: 400}, {X: 500, Y: 400}}})
	require.IsType(t, Pinching{}, m.Mode())

	m.Handle(f, Event{Kind: Move, Points: []r2.Vec{{X: 400, Y: 400}, {X: 400, Y: 600}}})
	assert.InDelta(t, 2, f.t.Scale, 1e-9)
	assert.InDelta(t, 90, f.t.Rotation, 1e-9)

	m.Handle(f, Event{Kind: Move, Points: []r2.Vec{{X: 400, Y: 400}, {X: 401, Y: 400}}})
	assert.Equal(t, geometry.MinScale, f.t.Scale)

	m.Handle(f, Event{Kind: Move, Points: []r2.Vec{{X: 0, Y: 400}, {X: 999, Y: 400}}})
	assert.Equal(t, geometry.MaxScale, f.t.Scale)

	m.Handle(f, Event{Kind: Up, Points: pt(0, 400)})
	assert.Equal(t, Idle{}, m.Mode())
	assert.Equal(t, 1, f.commits)
}

func TestCropDrag(t *testing.T) {
	f := newFake()
	f.crop = geometry.CropRect{X: 100, Y: 100, W: 200, H: 100}
	m := NewMachine(DefaultOptions())
	require.NoError(t, m.BeginCrop())
	assert.True(t, m.Cropping())

	m.Handle(f, Event{Kind: Down, Points: pt(300, 200)})
	assert.Equal(t, Cropping{Handle: geometry.HandleBR, Start: r2.Vec{X: 300, Y: 200}, Origin: geometry.CropRect{X: 100, Y: 100, W: 200, H: 100}}, m.Mode())

	for _, d := range []float64{-50, -150, -400} {
		m.Handle(f, Event{Kind: Move, Points: pt(300+d, 200+d)})
		assert.GreaterOrEqual(t, f.crop.W, geometry.MinCropSize)
		assert.GreaterOrEqual(t, f.crop.H, geometry.MinCropSize)
	}
	m.Handle(f, Event{Kind: Up})
	assert.Equal(t, Cropping{}, m.Mode(), "release clears the handle")
	assert.Equal(t, 0, f.commits)

	f.crop = geometry.CropRect{X: 100, Y: 100, W: 200, H: 100}
	m.Handle(f, Event{Kind: Down, Points: pt(150, 150)})
	m.Handle(f, Event{Kind: Move, Points: pt(170, 160)})
	assert.Equal(t, 120.0, f.crop.X, "interior drags move")

	m.Handle(f, Event{Kind: Up})
	m.Handle(f, Event{Kind: Down, Points: pt(600, 500)})
	m.Handle(f, Event{Kind: Move, Points: pt(700, 650)})
	assert.Equal(t, geometry.CropRect{X: 600, Y: 500, W: 100, H: 150}, f.crop, "outside draws a new rectangle")

	m.EndCrop()
	assert.Equal(t, Idle{}, m.Mode())
}

func TestPaintStroke(t *testing.T) {
	f := newFake()
	m := NewMachine(DefaultOptions())
	require.NoError(t, m.ArmFill())

	bm, _ := f.BaseMapper()
	center := bm.Center()
	m.Handle(f, Event{Kind: Down, Points: []r2.Vec{center}})
	require.Len(t, f.dots, 1)
	assert.InDelta(t, 400, f.dots[0].X, 1e-6, "canvas center is the image center")
	assert.InDelta(t, 300, f.dots[0].Y, 1e-6)

	m.Handle(f, Event{Kind: Move, Points: []r2.Vec{r2.Add(center, r2.Vec{X: 80})}})
	require.Len(t, f.segments, 1)
	assert.InDelta(t, 400+80/bm.Fit(), f.segments[0][1].X, 1e-6, "segments are in image pixels")

	m.Handle(f, Event{Kind: Up})
	assert.Equal(t, FillArmed{}, m.Mode())
	assert.Equal(t, 1, f.strokes)
	assert.Equal(t, 0, f.commits)

	m.DisarmFill()
	assert.Equal(t, Idle{}, m.Mode())
}

func TestBusyBlocksGestures(t *testing.T) {
	f := newFake()
	m := NewMachine(DefaultOptions())
	require.NoError(t, m.BeginCrop())
	require.NoError(t, m.SetBusy("upscale"))
	assert.Equal(t, "busy(upscale)", m.Mode().String())
	assert.ErrorIs(t, m.SetBusy("enhance"), ErrBusy)
	assert.ErrorIs(t, m.ArmFill(), ErrBusy)
	assert.True(t, m.Cropping())

	drag(m, f, r2.Vec{X: 500, Y: 400}, r2.Vec{X: 600, Y: 400}, 2)
	m.Handle(f, Event{Kind: DoubleTap})
	assert.Equal(t, geometry.Identity(), f.t)
	assert.Equal(t, geometry.CropRect{}, f.crop)

	m.ClearBusy()
	assert.Equal(t, Cropping{}, m.Mode())
}

func TestBusyDropsGestureInProgress(t *testing.T) {
	f := newFake()
	m := NewMachine(DefaultOptions())
	m.Handle(f, Event{Kind: Down, Points: pt(500, 400)})
	m.Handle(f, Event{Kind: Move, Points: pt(600, 400)})
	require.NoError(t, m.SetBusy("generate"))
	m.ClearBusy()
	assert.Equal(t, Idle{}, m.Mode())
	m.Handle(f, Event{Kind: Up})
	assert.Equal(t, 0, f.commits)
}
