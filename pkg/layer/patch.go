// patch.go — Merge partial updates onto layers.
package layer

import (
	"fmt"

	"github.com/xob0t/curve/pkg/geometry"
)

// Patch is a partial layer update. Nil fields are left alone.
// X and Y move either kind; Scale, Rotation and Radius apply to image
// layers; Text, Size and Color to text layers.
type Patch struct {
	Name     *string          `json:"name,omitempty"`
	Visible  *bool            `json:"visible,omitempty"`
	Opacity  *int             `json:"opacity,omitempty"`
	Locked   *bool            `json:"locked,omitempty"`
	X        *float64         `json:"x,omitempty"`
	Y        *float64         `json:"y,omitempty"`
	Scale    *float64         `json:"scale,omitempty"`
	Rotation *float64         `json:"rotation,omitempty"`
	Radius   *geometry.Radius `json:"radius,omitempty"`
	Text     *string          `json:"text,omitempty"`
	Size     *float64         `json:"size,omitempty"`
	Color    *string          `json:"color,omitempty"`
}

// editsContent reports whether the patch changes anything a lock protects.
// Name, visibility and the lock itself stay editable on locked layers.
func (p Patch) editsContent() bool {
	return p.Opacity != nil || p.X != nil || p.Y != nil || p.Scale != nil ||
		p.Rotation != nil || p.Radius != nil || p.Text != nil || p.Size != nil ||
		p.Color != nil
}

// Apply merges p onto l.
func (p Patch) Apply(l Layer) error {
	props := l.Common()
	locked := props.Locked
	if p.Locked != nil {
		locked = *p.Locked
	}
	if props.Locked && locked && p.editsContent() {
		return fmt.Errorf("update layer %d: %w", l.ID(), ErrLocked)
	}

	switch v := l.(type) {
	case *ImageLayer:
		if p.Text != nil || p.Size != nil || p.Color != nil {
			return fmt.Errorf("update layer %d: text fields: %w", l.ID(), ErrKind)
		}
		mergeTransform(&v.Transform, p)
		if p.Radius != nil {
			v.Radius = *p.Radius
		}
	case *TextLayer:
		if p.Scale != nil || p.Rotation != nil || p.Radius != nil {
			return fmt.Errorf("update layer %d: image fields: %w", l.ID(), ErrKind)
		}
		if p.X != nil {
			v.X = *p.X
		}
		if p.Y != nil {
			v.Y = *p.Y
		}
		if p.Text != nil {
			v.Text = *p.Text
		}
		if p.Size != nil && *p.Size > 0 {
			v.Size = *p.Size
		}
		if p.Color != nil && *p.Color != "" {
			v.Color = *p.Color
		}
	}

	mergeProps(props, p)
	return nil
}

func mergeProps(base *Props, p Patch) {
	if p.Name != nil && *p.Name != "" {
		base.Name = *p.Name
	}
	if p.Visible != nil {
		base.Visible = *p.Visible
	}
	if p.Opacity != nil {
		base.Opacity = min(max(*p.Opacity, 0), 100)
	}
	if p.Locked != nil {
		base.Locked = *p.Locked
	}
}

func mergeTransform(t *geometry.Transform, p Patch) {
	if p.X != nil {
		t.X = *p.X
	}
	if p.Y != nil {
		t.Y = *p.Y
	}
	if p.Scale != nil {
		t.Scale = geometry.ClampScale(*p.Scale)
	}
	if p.Rotation != nil {
		t.Rotation = *p.Rotation
	}
}
