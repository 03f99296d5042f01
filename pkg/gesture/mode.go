// Package gesture turns pointer and touch streams into edits.
//
// A Machine is always in exactly one Mode. Down events pick the mode, Move
// events mutate the target through it, and Up events settle it and decide
// whether the edit is worth a history entry.
package gesture

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/xob0t/curve/pkg/geometry"
)

// Mode is one of Idle, Panning, Pinching, Cropping, FillArmed, Painting or
// Busy.
type Mode interface {
	String() string
	mode()
}

// Idle waits for a gesture.
type Idle struct{}

// Panning drags the base image. Raw accumulates the unsnapped pan so small
// moves can leave the snap zone again.
type Panning struct {
	Last r2.Vec
	Raw  r2.Vec
}

// Pinching scales and rotates from two-finger baselines.
type Pinching struct {
	BaseDist     float64
	BaseAngle    float64
	BaseScale    float64
	BaseRotation float64
}

// Cropping is crop mode. Handle is HandleNone between drags.
type Cropping struct {
	Handle geometry.Handle
	Start  r2.Vec
	Origin geometry.CropRect
}

// FillArmed is fill mode waiting for a brush stroke.
type FillArmed struct{}

// Painting is a brush stroke in progress. Last is in image pixels.
type Painting struct {
	Last r2.Vec
}

// Busy blocks gestures while an operation runs. Prev is restored after.
type Busy struct {
	Op   string
	Prev Mode
}

func (Idle) mode()      {}
func (Panning) mode()   {}
func (Pinching) mode()  {}
func (Cropping) mode()  {}
func (FillArmed) mode() {}
func (Painting) mode()  {}
func (Busy) mode()      {}

func (Idle) String() string      { return "idle" }
func (Panning) String() string   { return "panning" }
func (Pinching) String() string  { return "pinching" }
func (FillArmed) String() string { return "fill" }
func (Painting) String() string  { return "painting" }

func (c Cropping) String() string {
	if c.Handle == geometry.HandleNone {
		return "cropping"
	}
	return fmt.Sprintf("cropping(%s)", c.Handle)
}

func (b Busy) String() string { return fmt.Sprintf("busy(%s)", b.Op) }

// settled returns the resting mode once any gesture in m is dropped.
func settled(m Mode) Mode {
	switch v := m.(type) {
	case Panning, Pinching:
		return Idle{}
	case Cropping:
		return Cropping{}
	case Painting:
		return FillArmed{}
	case Busy:
		return v.Prev
	}
	return m
}
