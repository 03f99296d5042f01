// view.go — Rendering, export and the client-facing state snapshot.
package editor

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/geometry"
	"github.com/xob0t/curve/pkg/layer"
	"github.com/xob0t/curve/pkg/notify"
	"github.com/xob0t/curve/pkg/render"
)

// Sink receives exported files.
type Sink interface {
	Save(data []byte, filename string) error
}

// DirSink writes exports into a directory.
type DirSink struct {
	Dir string
}

func (d DirSink) Save(data []byte, filename string) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(d.Dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// scene assembles the compositor input. Callers hold mu.
func (s *Session) scene() *render.Scene {
	sc := &render.Scene{
		Base:         s.base,
		Transform:    s.transform,
		Radius:       s.radius,
		Layers:       s.layers,
		ShowGrid:     s.showGrid,
		Mask:         s.fill,
		Dark:         s.dark,
		Checkerboard: s.cfg.Canvas.Checkerboard,
	}
	if s.machine.Cropping() {
		crop := s.crop
		sc.Crop = &crop
	}
	return sc
}

// Preview renders the canvas with editing overlays at the session's
// device pixel ratio.
func (s *Session) Preview() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compositor.Render(s.scene(), render.Options{
		Mode:   render.Preview,
		Canvas: s.canvas,
		DPR:    s.dpr,
	})
}

// Flatten renders the document at the base image's native resolution.
func (s *Session) Flatten() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return nil, ErrNoImage
	}
	return s.compositor.Render(s.scene(), render.Options{Mode: render.Export, Canvas: s.canvas})
}

// Export flattens and encodes the document, hands the file to the sink when
// one is configured and returns it with its suggested name.
func (s *Session) Export(ctx context.Context, f codec.Format, q codec.Quality) ([]byte, string, error) {
	s.mu.Lock()
	if err := s.idle(); err != nil {
		s.mu.Unlock()
		return nil, "", err
	}
	if err := s.machine.SetBusy("export"); err != nil {
		s.mu.Unlock()
		return nil, "", err
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.machine.ClearBusy()
		s.mu.Unlock()
	}()

	img, err := s.Flatten()
	if err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	data, err := codec.EncodeBytes(img, f, q)
	if err != nil {
		s.failed("Export failed", err)
		return nil, "", err
	}
	name := codec.ExportFilename(f)
	if s.sink != nil {
		if err := s.sink.Save(data, name); err != nil {
			s.failed("Export failed", err)
			return nil, "", err
		}
	}
	s.notify(notify.Info, "Image exported successfully")
	return data, name, nil
}

// LayerState pairs a layer with its kind for clients.
type LayerState struct {
	Kind  layer.Kind  `json:"kind"`
	Layer layer.Layer `json:"layer"`
}

// CropState is the crop overlay while cropping.
type CropState struct {
	Rect     geometry.CropRect `json:"rect"`
	Aspect   float64           `json:"aspect"`
	ShowGrid bool              `json:"showGrid"`
}

// FillState describes an active generative fill.
type FillState struct {
	Coverage float64 `json:"coverage"`
	// Prompt is set once a stroke finished and a description is wanted.
	Prompt bool `json:"prompt"`
}

// HistoryState is the cursor position in history.
type HistoryState struct {
	Index   int  `json:"index"`
	Len     int  `json:"len"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

// State is a read-only view of the session for clients.
type State struct {
	Mode      string             `json:"mode"`
	Sheet     string             `json:"sheet,omitempty"`
	Busy      bool               `json:"busy"`
	Canvas    geometry.Size      `json:"canvas"`
	DPR       float64            `json:"dpr"`
	Dark      bool               `json:"dark"`
	Image     *geometry.Size     `json:"image,omitempty"`
	Fit       float64            `json:"fit,omitempty"`
	Transform geometry.Transform `json:"transform"`
	Radius    geometry.Radius    `json:"radius"`
	Layers    []LayerState       `json:"layers"`
	Selected  int                `json:"selected"`
	Editing   int                `json:"editing"`
	Crop      *CropState         `json:"crop,omitempty"`
	Fill      *FillState         `json:"fill,omitempty"`
	History   HistoryState       `json:"history"`
}

// State returns a snapshot for clients.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Mode:      s.machine.Mode().String(),
		Sheet:     s.machine.Sheet(),
		Busy:      s.machine.Busy(),
		Canvas:    s.canvas,
		DPR:       s.dpr,
		Dark:      s.dark,
		Transform: s.transform,
		Radius:    s.radius,
		Layers: lo.Map(s.layers.Clone().All(), func(l layer.Layer, _ int) LayerState {
			return LayerState{Kind: l.Kind(), Layer: l}
		}),
		Selected: s.layers.Selected(),
		Editing:  s.layers.Editing(),
		History: HistoryState{
			Index:   s.hist.Index(),
			Len:     s.hist.Len(),
			CanUndo: s.hist.CanUndo(),
			CanRedo: s.hist.CanRedo(),
		},
	}
	if s.base != nil {
		size := s.baseSize()
		st.Image = &size
		st.Fit = geometry.FitScale(s.canvas, size)
	}
	if s.machine.Cropping() {
		st.Crop = &CropState{Rect: s.crop, Aspect: s.aspect, ShowGrid: s.showGrid}
	}
	if s.machine.Filling() && s.fill != nil {
		st.Fill = &FillState{Coverage: s.fill.Coverage(), Prompt: s.prompted}
	}
	return st
}
