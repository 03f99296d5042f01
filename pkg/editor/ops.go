// ops.go — AI operations and generative fill.
package editor

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/xob0t/curve/pkg/ai"
	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/mask"
	"github.com/xob0t/curve/pkg/notify"
)

// operation describes one AI call and how its result lands.
type operation struct {
	op   ai.Op
	call func(ctx context.Context, base []byte) (ai.Result, error)
	// needsBase is false only for generate.
	needsBase      bool
	resetTransform bool
	done           string
	fail           string
	// check runs under the lock before the call starts.
	check func() error
}

// run executes o with the session marked Busy. The lock is released during
// the call. A result that arrives after a newer base-image operation is
// discarded. Failures notify the user and leave the document untouched.
func (s *Session) run(ctx context.Context, o operation) error {
	s.mu.Lock()
	if o.needsBase && s.base == nil {
		s.mu.Unlock()
		return ErrNoImage
	}
	if o.check != nil {
		if err := o.check(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	if err := s.machine.SetBusy(string(o.op)); err != nil {
		s.mu.Unlock()
		return err
	}
	data := s.baseData
	// The token is taken with the snapshot so a later import supersedes it.
	ctx, tok := s.seq.Begin(ctx, keyBase)
	defer s.seq.Finish(tok)
	s.mu.Unlock()
	s.hookReleased()

	res, err := o.call(ctx, data)
	var img image.Image
	if err == nil {
		img, err = codec.DecodeContext(ctx, res.Data, s.cfg.Limits.MaxPixels)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.ClearBusy()
	if !s.seq.Current(tok) {
		return codec.ErrStale
	}
	if err != nil {
		s.failed(o.fail, err)
		return fmt.Errorf("%s: %w", o.op, err)
	}

	if res.Fallback {
		// The service failed and a placeholder stands in for its result.
		s.replaceBase(img, res.Data, o.resetTransform, "")
		s.notify(notify.Error, o.fail+"; showing a placeholder")
		return nil
	}
	s.replaceBase(img, res.Data, o.resetTransform, o.done)
	if res.Message != "" {
		s.notify(notify.Info, res.Message)
	}
	return nil
}

// Generate replaces the base image with one generated from prompt.
func (s *Session) Generate(ctx context.Context, prompt string) error {
	if prompt == "" {
		return fmt.Errorf("generate: prompt is empty")
	}
	return s.run(ctx, operation{
		op: ai.OpGenerate,
		call: func(ctx context.Context, _ []byte) (ai.Result, error) {
			return s.ai.Generate(ctx, prompt)
		},
		resetTransform: true,
		done:           "Image generated",
		fail:           "AI generation failed",
	})
}

// Enhance improves the base image.
func (s *Session) Enhance(ctx context.Context) error {
	return s.run(ctx, operation{
		op:        ai.OpEnhance,
		call:      s.ai.Enhance,
		needsBase: true,
		done:      "Image enhanced",
		fail:      "Enhancement failed",
	})
}

// Upscale enlarges the base image by factor, between 1 and 8.
func (s *Session) Upscale(ctx context.Context, factor float64) error {
	if factor <= 1 || factor > 8 || math.IsNaN(factor) {
		return fmt.Errorf("upscale: factor %g out of range (1, 8]", factor)
	}
	return s.run(ctx, operation{
		op: ai.OpUpscale,
		call: func(ctx context.Context, img []byte) (ai.Result, error) {
			return s.ai.Upscale(ctx, img, factor)
		},
		needsBase: true,
		done:      fmt.Sprintf("Image upscaled %gx", factor),
		fail:      "Upscaling failed",
	})
}

// RemoveBackground makes the background of the base image transparent.
func (s *Session) RemoveBackground(ctx context.Context) error {
	return s.run(ctx, operation{
		op:        ai.OpRemoveBackground,
		call:      s.ai.RemoveBackground,
		needsBase: true,
		done:      "Background removed",
		fail:      "Background removal failed",
	})
}

// Expand outpaints the base image onto a canvas factor times larger.
func (s *Session) Expand(ctx context.Context, factor float64, prompt string) error {
	if factor <= 1 || factor > 4 || math.IsNaN(factor) {
		return fmt.Errorf("expand: factor %g out of range (1, 4]", factor)
	}
	return s.run(ctx, operation{
		op: ai.OpExpand,
		call: func(ctx context.Context, img []byte) (ai.Result, error) {
			return s.ai.Expand(ctx, img, factor, prompt)
		},
		needsBase: true,
		done:      "Image expanded",
		fail:      "Expansion failed",
	})
}

// StartFill enters fill mode with a blank mask at the image's resolution.
func (s *Session) StartFill() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return ErrNoImage
	}
	if err := s.machine.ArmFill(); err != nil {
		return err
	}
	b := s.base.Bounds()
	s.fill = mask.New(b.Dx(), b.Dy())
	s.fill.SetBrush(s.cfg.Editor.BrushWidth)
	s.prompted = false
	return nil
}

// SubmitFill regenerates the masked area from prompt. The mask is kept when
// the call fails so the user can retry.
func (s *Session) SubmitFill(ctx context.Context, prompt string) error {
	var maskData []byte
	return s.run(ctx, operation{
		op: ai.OpFill,
		check: func() error {
			if !s.machine.Filling() || s.fill == nil {
				return ErrMode
			}
			if s.fill.Empty() {
				s.notify(notify.Error, "Draw a mask before submitting")
				return ErrEmptyMask
			}
			var err error
			maskData, err = s.fill.PNG()
			return err
		},
		call: func(ctx context.Context, img []byte) (ai.Result, error) {
			return s.ai.GenerativeFill(ctx, img, maskData, prompt)
		},
		needsBase: true,
		done:      "Generative fill applied",
		fail:      "Generative fill failed",
	})
}

// CancelFill leaves fill mode and discards the mask.
func (s *Session) CancelFill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.DisarmFill()
	s.fill = nil
	s.prompted = false
}
