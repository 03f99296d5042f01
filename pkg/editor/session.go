// Package editor runs one editing session: a single document, the gesture
// machine driving it, its undo history and the background work (decoding,
// AI calls) that feeds it.
//
// Every exported method is safe for concurrent use. Mutations serialize on
// one mutex; slow work runs with the mutex released and re-enters it to
// apply its result, which is dropped when a newer operation superseded it.
package editor

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/xob0t/curve/pkg/ai"
	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/config"
	"github.com/xob0t/curve/pkg/geometry"
	"github.com/xob0t/curve/pkg/gesture"
	"github.com/xob0t/curve/pkg/history"
	"github.com/xob0t/curve/pkg/layer"
	"github.com/xob0t/curve/pkg/mask"
	"github.com/xob0t/curve/pkg/notify"
	"github.com/xob0t/curve/pkg/render"
)

var (
	// ErrNoImage is returned by operations that need a base image.
	ErrNoImage = errors.New("no image loaded")
	// ErrBusy is returned while an operation holds the session.
	ErrBusy = gesture.ErrBusy
	// ErrEmptyMask is returned when a fill is submitted without a mask.
	ErrEmptyMask = errors.New("draw a mask before submitting")
	// ErrMode is returned when an operation does not fit the current mode.
	ErrMode = errors.New("not available in the current mode")
)

// keyBase is the sequencer key of work that replaces the base image.
const keyBase = "base"

// Document is the editable state a history entry records. Image layers in
// Layers carry their encoded bytes; decoded images are never part of it.
type Document struct {
	Base      []byte
	Transform geometry.Transform
	Radius    geometry.Radius
	Layers    *layer.Stack
}

// Clone deep-copies the document, dropping decoded caches.
func (d Document) Clone() Document {
	if d.Layers != nil {
		d.Layers = d.Layers.Clone()
	}
	return d
}

// Options configure a session.
type Options struct {
	Config   config.Config
	Fonts    *render.FontManager
	AI       ai.Service
	Notifier notify.Notifier
	Sink     Sink
}

// Session is one open document.
type Session struct {
	mu sync.Mutex

	cfg        config.Config
	canvas     geometry.Size
	dpr        float64
	dark       bool
	compositor *render.Compositor
	ai         ai.Service
	notifier   notify.Notifier
	sink       Sink

	base      image.Image
	baseData  []byte
	transform geometry.Transform
	radius    geometry.Radius
	layers    *layer.Stack

	crop     geometry.CropRect
	aspect   float64
	showGrid bool

	fill     *mask.Mask
	prompted bool

	machine *gesture.Machine
	hist    *history.Stack[Document]
	seq     *codec.Sequencer
	// epoch counts document replacements; layer decodes started in an older
	// epoch are discarded.
	epoch uint64
	// pending marks edits made while a sheet was open.
	pending bool
	// released runs after slow work drops mu. Tests use it to interleave.
	released func()
}

// New creates an empty session.
func New(opts Options) (*Session, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fonts := opts.Fonts
	if fonts == nil {
		var err error
		if fonts, err = render.NewFontManager(cfg.Canvas.Font); err != nil {
			return nil, fmt.Errorf("load fonts: %w", err)
		}
	}
	svc := opts.AI
	if svc == nil {
		svc = ai.New(cfg.AI, fonts)
	}
	n := opts.Notifier
	if n == nil {
		n = notify.Log{}
	}
	return &Session{
		cfg:        cfg,
		canvas:     cfg.Canvas.Size(),
		dpr:        cfg.Canvas.DPR,
		dark:       cfg.Canvas.Dark,
		compositor: render.NewCompositor(fonts),
		ai:         svc,
		notifier:   n,
		sink:       opts.Sink,
		transform:  geometry.Identity(),
		layers:     layer.NewStack(),
		machine: gesture.NewMachine(gesture.Options{
			SnapThreshold: cfg.Editor.SnapThreshold,
			HandleRadius:  cfg.Editor.HandleRadius,
		}),
		hist: history.New[Document](cfg.Editor.HistoryDepth),
		seq:  codec.NewSequencer(),
	}, nil
}

// Close cancels outstanding work.
func (s *Session) Close() {
	s.seq.Close()
}

// SetViewport resizes the display canvas.
func (s *Session) SetViewport(canvas geometry.Size, dpr float64) error {
	if canvas.Empty() {
		return fmt.Errorf("viewport %gx%g: size must be positive", canvas.W, canvas.H)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canvas = canvas
	if dpr > 0 {
		s.dpr = dpr
	}
	if s.machine.Cropping() {
		s.crop = s.crop.Normalize(canvas)
	}
	return nil
}

// SetDark switches the colour scheme for previews and new text layers.
func (s *Session) SetDark(dark bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dark = dark
}

func (s *Session) notify(level notify.Level, msg string) {
	s.notifier.Notify(level, msg)
}

func (s *Session) hookReleased() {
	if s.released != nil {
		s.released()
	}
}

// failed logs err and tells the user msg.
func (s *Session) failed(msg string, err error) {
	log.Printf("editor: %s: %v", msg, err)
	s.notify(notify.Error, msg)
}

// document captures the current state. Callers hold mu.
func (s *Session) document() Document {
	return Document{
		Base:      s.baseData,
		Transform: s.transform,
		Radius:    s.radius,
		Layers:    s.layers,
	}
}

// commit records the current state in history. Callers hold mu.
func (s *Session) commit() {
	if s.base == nil {
		return
	}
	s.hist.Commit(s.document())
	s.pending = false
}

// touch commits now, or when the open sheet closes.
func (s *Session) touch() {
	if s.machine.Sheet() != "" {
		s.pending = true
		return
	}
	s.commit()
}

// idle returns ErrBusy while an operation holds the session.
func (s *Session) idle() error {
	if s.machine.Busy() {
		return ErrBusy
	}
	return nil
}

func (s *Session) baseSize() geometry.Size {
	if s.base == nil {
		return geometry.Size{}
	}
	b := s.base.Bounds()
	return geometry.Size{W: float64(b.Dx()), H: float64(b.Dy())}
}

// setBase installs a new base image and drops a fill mask sized for the
// old one. Callers hold mu.
func (s *Session) setBase(img image.Image, data []byte) {
	s.base = img
	s.baseData = data
	s.machine.DisarmFill()
	s.fill = nil
	s.prompted = false
}

// Document returns a copy of the current document.
func (s *Session) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document().Clone()
}

// HasImage reports whether a base image is loaded.
func (s *Session) HasImage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base != nil
}

// OpenSheet records an open panel. Edits made while it is open are
// committed as one history entry when it closes.
func (s *Session) OpenSheet(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.OpenSheet(name)
}

// CloseSheet closes the open panel, ends text editing and commits pending
// edits.
func (s *Session) CloseSheet() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.CloseSheet()
	_ = s.layers.SetEditing(0)
	if s.pending {
		s.commit()
	}
}

// Pointer feeds a pointer event to the gesture machine.
func (s *Session) Pointer(ev gesture.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.Handle(target{s}, ev)
}
