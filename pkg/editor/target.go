// target.go — The session as seen by the gesture machine.
package editor

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/xob0t/curve/pkg/geometry"
)

// target adapts a locked Session to gesture.Target.
type target struct{ s *Session }

func (t target) Canvas() geometry.Size { return t.s.canvas }

func (t target) BaseMapper() (geometry.Mapper, bool) {
	if t.s.base == nil {
		return geometry.Mapper{}, false
	}
	return geometry.NewMapper(t.s.canvas, t.s.baseSize(), t.s.transform), true
}

func (t target) Transform() geometry.Transform { return t.s.transform }

func (t target) SetTransform(tr geometry.Transform) {
	tr.Scale = geometry.ClampScale(tr.Scale)
	t.s.transform = tr
}

// HitText starts editing the text layer under p and opens the text sheet.
func (t target) HitText(p r2.Vec) bool {
	l, ok := t.s.layers.HitText(p, t.s.compositor.Fonts())
	if !ok {
		return false
	}
	_ = t.s.layers.SetEditing(l.ID())
	t.s.machine.OpenSheet(SheetText)
	return true
}

func (t target) Crop() geometry.CropRect { return t.s.crop }
func (t target) CropAspect() float64     { return t.s.aspect }

func (t target) SetCrop(r geometry.CropRect) {
	t.s.crop = r.Normalize(t.s.canvas)
}

func (t target) PaintDot(p r2.Vec) {
	if t.s.fill != nil {
		t.s.fill.Dot(p)
	}
}

func (t target) PaintSegment(a, b r2.Vec) {
	if t.s.fill != nil {
		t.s.fill.Segment(a, b)
	}
}

func (t target) StrokeDone() { t.s.prompted = true }

func (t target) Commit() { t.s.commit() }
