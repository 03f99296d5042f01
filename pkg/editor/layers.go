// layers.go — Layer and border-radius editing.
package editor

import (
	"context"
	"fmt"

	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/geometry"
	"github.com/xob0t/curve/pkg/layer"
)

// Sheet names used by the clients.
const (
	SheetText   = "text"
	SheetRadius = "radius"
	SheetLayers = "layers"
	SheetCrop   = "crop"
	SheetAI     = "ai"
	SheetExport = "export"
)

// AddImageLayer decodes data and puts it on top of the stack. Nothing is
// added when decoding fails or the document was replaced meanwhile.
func (s *Session) AddImageLayer(ctx context.Context, data []byte) (*layer.ImageLayer, error) {
	s.mu.Lock()
	if err := s.idle(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	epoch := s.epoch
	s.mu.Unlock()

	img, err := codec.DecodeContext(ctx, data, s.cfg.Limits.MaxPixels)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failed("Could not load layer image", err)
		return nil, fmt.Errorf("add layer: %w", err)
	}
	if s.epoch != epoch {
		return nil, codec.ErrStale
	}
	l := s.layers.AddImage(data, img)
	s.commit()
	return l, nil
}

// AddTextLayer adds a placeholder text layer at the canvas center and
// starts editing it.
func (s *Session) AddTextLayer() (*layer.TextLayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idle(); err != nil {
		return nil, err
	}
	l := s.layers.AddText(s.canvas, s.dark)
	s.commit()
	return l, nil
}

// UpdateLayer merges a patch. While a sheet is open the change is committed
// when it closes.
func (s *Session) UpdateLayer(id int, p layer.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idle(); err != nil {
		return err
	}
	if err := s.layers.Update(id, p); err != nil {
		return err
	}
	s.touch()
	return nil
}

// DeleteLayer removes a layer.
func (s *Session) DeleteLayer(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idle(); err != nil {
		return err
	}
	if err := s.layers.Delete(id); err != nil {
		return err
	}
	s.commit()
	return nil
}

// DuplicateLayer copies a layer onto the top of the stack.
func (s *Session) DuplicateLayer(id int) (layer.Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idle(); err != nil {
		return nil, err
	}
	l, err := s.layers.Duplicate(id)
	if err != nil {
		return nil, err
	}
	s.commit()
	return l, nil
}

// ReorderLayer moves a layer one step. Nothing is committed at the ends of
// the stack.
func (s *Session) ReorderLayer(id int, dir layer.Direction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idle(); err != nil {
		return false, err
	}
	changed, err := s.layers.Reorder(id, dir)
	if err != nil || !changed {
		return false, err
	}
	s.commit()
	return true, nil
}

// SelectLayer selects an image layer; zero clears the selection.
func (s *Session) SelectLayer(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != 0 {
		if _, err := s.layers.Image(id); err != nil {
			return err
		}
	}
	return s.layers.Select(id)
}

// EditText starts editing a text layer; zero ends editing.
func (s *Session) EditText(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layers.SetEditing(id)
}

// SetRadius sets the base image's corner rounding in percent for all
// corners and leaves advanced mode.
func (s *Session) SetRadius(pct float64) error {
	return s.updateRadius(func(r *geometry.Radius) {
		r.Value = clampPct(pct)
		r.Corners = geometry.Uniform(r.Value)
		r.Advanced = false
	})
}

// SetCornerRadii sets each corner independently and enters advanced mode.
func (s *Session) SetCornerRadii(c geometry.Corners) error {
	return s.updateRadius(func(r *geometry.Radius) {
		r.Corners = geometry.Corners{
			TL: clampPct(c.TL),
			TR: clampPct(c.TR),
			BR: clampPct(c.BR),
			BL: clampPct(c.BL),
		}
		r.Advanced = true
	})
}

func (s *Session) updateRadius(fn func(*geometry.Radius)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idle(); err != nil {
		return err
	}
	if s.base == nil {
		return ErrNoImage
	}
	fn(&s.radius)
	s.touch()
	return nil
}

// ResetTransform restores the fitted placement, like a double tap.
func (s *Session) ResetTransform() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idle(); err != nil {
		return err
	}
	if s.base == nil {
		return ErrNoImage
	}
	s.transform = geometry.Identity()
	s.commit()
	return nil
}

// SetTransform places the base image numerically. The scale is clamped like
// a pinch.
func (s *Session) SetTransform(t geometry.Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idle(); err != nil {
		return err
	}
	if s.base == nil {
		return ErrNoImage
	}
	t.Scale = geometry.ClampScale(t.Scale)
	s.transform = t
	s.touch()
	return nil
}

func clampPct(v float64) float64 {
	return min(max(v, 0), 100)
}
