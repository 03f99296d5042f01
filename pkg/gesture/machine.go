// machine.go — Event dispatch and per-mode handlers.
package gesture

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/xob0t/curve/pkg/geometry"
)

// ErrBusy is returned when a mode change is attempted during an operation.
var ErrBusy = errors.New("an operation is in progress")

// Kind is the pointer event type.
type Kind int

const (
	Down Kind = iota
	Move
	Up
	DoubleTap
)

// Event is a pointer event in canvas coordinates. Points holds every pointer
// still in contact: for Up it is the pointers that remain.
type Event struct {
	Kind   Kind     `json:"kind"`
	Points []r2.Vec `json:"points"`
}

// Target is the document a Machine edits. Calls happen synchronously from
// Handle, so implementations must not re-enter the machine.
type Target interface {
	Canvas() geometry.Size
	// BaseMapper places the base image with its real transform. ok is false
	// when there is no image.
	BaseMapper() (m geometry.Mapper, ok bool)
	Transform() geometry.Transform
	SetTransform(geometry.Transform)

	// HitText selects the topmost text layer under p for editing.
	HitText(p r2.Vec) bool

	Crop() geometry.CropRect
	CropAspect() float64
	SetCrop(geometry.CropRect)

	// PaintDot and PaintSegment take image pixel coordinates.
	PaintDot(p r2.Vec)
	PaintSegment(a, b r2.Vec)
	// StrokeDone is called when a brush stroke ends and a fill description
	// should be requested.
	StrokeDone()

	Commit()
}

// Options tune thresholds in canvas pixels.
type Options struct {
	SnapThreshold float64
	HandleRadius  float64
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{SnapThreshold: geometry.SnapThreshold, HandleRadius: geometry.HandleRadius}
}

// Machine is the interaction state machine. It is not safe for concurrent
// use; the editor serializes access.
type Machine struct {
	opts  Options
	mode  Mode
	sheet string
	dirty bool
}

// NewMachine returns an idle machine.
func NewMachine(opts Options) *Machine {
	if opts.SnapThreshold <= 0 {
		opts.SnapThreshold = geometry.SnapThreshold
	}
	if opts.HandleRadius <= 0 {
		opts.HandleRadius = geometry.HandleRadius
	}
	return &Machine{opts: opts, mode: Idle{}}
}

// Mode returns the current mode.
func (m *Machine) Mode() Mode { return m.mode }

// Sheet returns the open sheet name, or "".
func (m *Machine) Sheet() string { return m.sheet }

// Busy reports whether an operation holds the machine.
func (m *Machine) Busy() bool {
	_, ok := m.mode.(Busy)
	return ok
}

// Cropping reports whether crop mode is active, including while busy.
func (m *Machine) Cropping() bool {
	_, ok := m.base().(Cropping)
	return ok
}

// Filling reports whether fill mode is active, including while busy.
func (m *Machine) Filling() bool {
	switch m.base().(type) {
	case FillArmed, Painting:
		return true
	}
	return false
}

func (m *Machine) base() Mode {
	if b, ok := m.mode.(Busy); ok {
		return b.Prev
	}
	return m.mode
}

// OpenSheet records an open panel. Ordinary gestures are ignored until it
// closes.
func (m *Machine) OpenSheet(name string) { m.sheet = name }

// CloseSheet clears the open panel and returns its name.
func (m *Machine) CloseSheet() string {
	s := m.sheet
	m.sheet = ""
	return s
}

// SetBusy enters Busy, dropping any gesture in progress.
func (m *Machine) SetBusy(op string) error {
	if m.Busy() {
		return ErrBusy
	}
	m.mode = Busy{Op: op, Prev: settled(m.mode)}
	m.dirty = false
	return nil
}

// ClearBusy leaves Busy for the mode it interrupted.
func (m *Machine) ClearBusy() {
	if b, ok := m.mode.(Busy); ok {
		m.mode = b.Prev
	}
}

// BeginCrop enters crop mode.
func (m *Machine) BeginCrop() error {
	if m.Busy() {
		return ErrBusy
	}
	m.mode = Cropping{}
	return nil
}

// EndCrop leaves crop mode.
func (m *Machine) EndCrop() {
	if m.Cropping() {
		m.setBase(Idle{})
	}
}

// ArmFill enters fill mode.
func (m *Machine) ArmFill() error {
	if m.Busy() {
		return ErrBusy
	}
	m.mode = FillArmed{}
	return nil
}

// DisarmFill leaves fill mode.
func (m *Machine) DisarmFill() {
	if m.Filling() {
		m.setBase(Idle{})
	}
}

func (m *Machine) setBase(mode Mode) {
	if b, ok := m.mode.(Busy); ok {
		b.Prev = mode
		m.mode = b
		return
	}
	m.mode = mode
}

// Handle feeds one event to the machine.
func (m *Machine) Handle(t Target, ev Event) {
	if m.Busy() {
		return
	}
	switch ev.Kind {
	case Down:
		m.down(t, ev.Points)
	case Move:
		m.move(t, ev.Points)
	case Up:
		m.up(t, ev.Points)
	case DoubleTap:
		m.doubleTap(t)
	}
}

func (m *Machine) down(t Target, pts []r2.Vec) {
	if len(pts) == 0 {
		return
	}
	p := pts[0]

	switch mode := m.mode.(type) {
	case Cropping:
		m.mode = Cropping{
			Handle: t.Crop().HitHandle(p, m.opts.HandleRadius),
			Start:  p,
			Origin: t.Crop(),
		}
		return
	case FillArmed:
		bm, ok := t.BaseMapper()
		if !ok {
			return
		}
		q := bm.Inverse(p)
		t.PaintDot(q)
		m.mode = Painting{Last: q}
		return
	case Painting:
		return
	case Idle, Panning:
		if m.sheet != "" {
			return
		}
		if len(pts) >= 2 {
			m.startPinch(t, pts[0], pts[1])
			return
		}
		if _, ok := mode.(Panning); ok {
			return
		}
		if t.HitText(p) {
			return
		}
		if _, ok := t.BaseMapper(); !ok {
			return
		}
		cur := t.Transform()
		m.mode = Panning{Last: p, Raw: r2.Vec{X: cur.X, Y: cur.Y}}
		m.dirty = false
	}
}

func (m *Machine) startPinch(t Target, a, b r2.Vec) {
	if _, ok := t.BaseMapper(); !ok {
		return
	}
	d := r2.Sub(b, a)
	cur := t.Transform()
	m.mode = Pinching{
		BaseDist:     r2.Norm(d),
		BaseAngle:    math.Atan2(d.Y, d.X),
		BaseScale:    cur.Scale,
		BaseRotation: cur.Rotation,
	}
}

func (m *Machine) move(t Target, pts []r2.Vec) {
	if len(pts) == 0 {
		return
	}
	p := pts[0]

	switch mode := m.mode.(type) {
	case Panning:
		mode.Raw = r2.Add(mode.Raw, r2.Sub(p, mode.Last))
		mode.Last = p
		m.mode = mode

		cur := t.Transform()
		cur.X = geometry.Snap(mode.Raw.X, m.opts.SnapThreshold)
		cur.Y = geometry.Snap(mode.Raw.Y, m.opts.SnapThreshold)
		t.SetTransform(cur)
		m.dirty = true

	case Pinching:
		if len(pts) < 2 || mode.BaseDist == 0 {
			return
		}
		d := r2.Sub(pts[1], pts[0])
		cur := t.Transform()
		cur.Scale = geometry.ClampScale(r2.Norm(d) / mode.BaseDist * mode.BaseScale)
		cur.Rotation = mode.BaseRotation + geometry.Degrees(math.Atan2(d.Y, d.X)-mode.BaseAngle)
		t.SetTransform(cur)
		m.dirty = true

	case Cropping:
		if mode.Handle == geometry.HandleNone {
			return
		}
		canvas := t.Canvas()
		var r geometry.CropRect
		switch mode.Handle {
		case geometry.HandleNew:
			r = geometry.Spanning(mode.Start, p, canvas)
			r.Straighten = mode.Origin.Straighten
		case geometry.HandleMove:
			r = mode.Origin.Moved(r2.Sub(p, mode.Start), canvas)
		default:
			r = mode.Origin.Resized(mode.Handle, r2.Sub(p, mode.Start), t.CropAspect(), canvas)
		}
		t.SetCrop(r)

	case Painting:
		bm, ok := t.BaseMapper()
		if !ok {
			return
		}
		q := bm.Inverse(p)
		t.PaintSegment(mode.Last, q)
		m.mode = Painting{Last: q}
	}
}

func (m *Machine) up(t Target, remaining []r2.Vec) {
	switch m.mode.(type) {
	case Pinching:
		if len(remaining) >= 2 {
			return
		}
		m.finish(t)
	case Panning:
		if len(remaining) > 0 {
			return
		}
		m.finish(t)
	case Cropping:
		m.mode = Cropping{}
	case Painting:
		m.mode = FillArmed{}
		t.StrokeDone()
	}
}

// finish ends a pan or pinch, committing it if the transform moved.
func (m *Machine) finish(t Target) {
	m.mode = Idle{}
	if m.dirty {
		m.dirty = false
		t.Commit()
	}
}

func (m *Machine) doubleTap(t Target) {
	if m.sheet != "" {
		return
	}
	switch m.mode.(type) {
	case Idle, Panning:
	default:
		return
	}
	if _, ok := t.BaseMapper(); !ok {
		return
	}
	m.mode = Idle{}
	m.dirty = false
	t.SetTransform(geometry.Identity())
	t.Commit()
}
