// document.go — Importing images and moving through history.
package editor

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/samber/lo"

	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/geometry"
	"github.com/xob0t/curve/pkg/layer"
	"github.com/xob0t/curve/pkg/notify"
)

// Import decodes data and makes it the base image of a fresh document. A
// newer Import or base-replacing operation supersedes one still decoding.
func (s *Session) Import(ctx context.Context, data []byte) error {
	ctx, tok := s.seq.Begin(ctx, keyBase)
	defer s.seq.Finish(tok)

	img, err := codec.DecodeContext(ctx, data, s.cfg.Limits.MaxPixels)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seq.Current(tok) {
		return codec.ErrStale
	}
	if err != nil {
		s.failed("Could not load image", err)
		return fmt.Errorf("import: %w", err)
	}

	s.machine.EndCrop()
	s.machine.DisarmFill()
	s.setBase(img, data)
	s.transform = geometry.Identity()
	s.radius = geometry.Radius{}
	s.layers = layer.NewStack()
	s.epoch++
	s.hist.Reset(s.document())
	return nil
}

// Undo restores the previous history entry. It is a no-op at the first one.
func (s *Session) Undo(ctx context.Context) error {
	return s.step(ctx, true)
}

// Redo restores the next history entry. It is a no-op at the last one.
func (s *Session) Redo(ctx context.Context) error {
	return s.step(ctx, false)
}

func (s *Session) step(ctx context.Context, back bool) error {
	s.mu.Lock()
	if err := s.idle(); err != nil {
		s.mu.Unlock()
		return err
	}
	move, revert := s.hist.Redo, s.hist.Undo
	if back {
		move, revert = s.hist.Undo, s.hist.Redo
	}
	doc, ok := move()
	if !ok {
		s.mu.Unlock()
		return nil
	}
	op := lo.Ternary(back, "undo", "redo")
	_ = s.machine.SetBusy(op)
	ctx, tok := s.seq.Begin(ctx, keyBase)
	defer s.seq.Finish(tok)
	s.mu.Unlock()
	s.hookReleased()

	err := s.restore(ctx, tok, doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.ClearBusy()
	if errors.Is(err, codec.ErrStale) {
		// A newer document replaced the history this entry came from.
		return err
	}
	if err != nil {
		revert()
		s.failed(fmt.Sprintf("Could not %s", op), err)
		return err
	}
	return nil
}

// Load replaces the document with doc and starts a new history from it.
func (s *Session) Load(ctx context.Context, doc Document) error {
	if len(doc.Base) == 0 {
		return ErrNoImage
	}
	if doc.Layers == nil {
		doc.Layers = layer.NewStack()
	}
	s.mu.Lock()
	if err := s.idle(); err != nil {
		s.mu.Unlock()
		return err
	}
	ctx, tok := s.seq.Begin(ctx, keyBase)
	defer s.seq.Finish(tok)
	s.mu.Unlock()

	if err := s.restore(ctx, tok, doc.Clone()); err != nil {
		if !errors.Is(err, codec.ErrStale) {
			s.failed("Could not open project", err)
		}
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.Reset(s.document())
	return nil
}

// restore decodes every image of doc in parallel and swaps it in. The
// current state is untouched until all decodes succeed. tok is the
// generation the caller began for the restore, ctx its context.
func (s *Session) restore(ctx context.Context, tok codec.Token, doc Document) error {
	imgs := doc.Layers.Images()
	inputs := make([][]byte, 0, len(imgs)+1)
	inputs = append(inputs, doc.Base)
	for _, l := range imgs {
		inputs = append(inputs, l.Data)
	}
	decoded, err := codec.DecodeAll(ctx, inputs, s.cfg.Limits.MaxPixels)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seq.Current(tok) {
		return codec.ErrStale
	}
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	for i, l := range imgs {
		l.SetDecoded(decoded[i+1])
	}
	s.install(doc, decoded[0])
	return nil
}

// install swaps in a decoded document. Callers hold mu.
func (s *Session) install(doc Document, base image.Image) {
	s.machine.EndCrop()
	s.machine.DisarmFill()
	s.setBase(base, doc.Base)
	s.transform = doc.Transform
	s.radius = doc.Radius
	s.layers = doc.Layers
	s.epoch++
	s.pending = false
}

// replaceBase swaps the base image after an operation and commits. Callers
// hold mu.
func (s *Session) replaceBase(img image.Image, data []byte, resetTransform bool, msg string) {
	s.setBase(img, data)
	if resetTransform {
		s.transform = geometry.Identity()
	}
	s.commit()
	if msg != "" {
		s.notify(notify.Info, msg)
	}
}
