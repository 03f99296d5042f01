// decoder.go — Context-aware decoding with generation tokens.
package codec

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrStale is returned when a newer operation on the same key superseded
// the one that produced a result.
var ErrStale = errors.New("superseded by a newer operation")

// Token identifies one generation of work for a key.
type Token struct {
	Key string
	Gen uint64
}

// Sequencer hands out generation tokens per key. Beginning new work on a key
// cancels the context of the previous generation, and only the newest
// generation is Current.
type Sequencer struct {
	mu      sync.Mutex
	gens    map[string]uint64
	cancels map[string]context.CancelFunc
}

// NewSequencer returns an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{
		gens:    make(map[string]uint64),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Begin starts a new generation for key and returns its context.
func (s *Sequencer) Begin(parent context.Context, key string) (context.Context, Token) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.cancels[key]; ok {
		prev()
	}
	s.gens[key]++
	s.cancels[key] = cancel
	return ctx, Token{Key: key, Gen: s.gens[key]}
}

// Current reports whether tok is still the newest generation of its key.
func (s *Sequencer) Current(tok Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[tok.Key] == tok.Gen
}

// Finish releases the context of tok if it is still current.
func (s *Sequencer) Finish(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[tok.Key] != tok.Gen {
		return
	}
	if cancel, ok := s.cancels[tok.Key]; ok {
		cancel()
		delete(s.cancels, tok.Key)
	}
}

// Invalidate makes every outstanding token of key stale and cancels it.
func (s *Sequencer) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[key]++
	if cancel, ok := s.cancels[key]; ok {
		cancel()
		delete(s.cancels, key)
	}
}

// Busy reports whether key has work that has not finished.
func (s *Sequencer) Busy(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cancels[key]
	return ok
}

// Close cancels all outstanding work.
func (s *Sequencer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cancel := range s.cancels {
		cancel()
		s.gens[key]++
	}
	clear(s.cancels)
}

// DecodeContext decodes data off the caller's goroutine and gives up when
// ctx is done. maxPixels is passed to DecodeLimit.
func DecodeContext(ctx context.Context, data []byte, maxPixels int) (image.Image, error) {
	type result struct {
		img image.Image
		err error
	}
	ch := make(chan result, 1)
	go func() {
		img, _, err := DecodeLimit(data, maxPixels)
		ch <- result{img, err}
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("decode image: %w", ctx.Err())
	case r := <-ch:
		return r.img, r.err
	}
}

// DecodeAll decodes every input concurrently. It fails as a whole if any
// input fails; the returned slice matches the input order.
func DecodeAll(ctx context.Context, inputs [][]byte, maxPixels int) ([]image.Image, error) {
	out := make([]image.Image, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	for i, data := range inputs {
		g.Go(func() error {
			img, err := DecodeContext(ctx, data, maxPixels)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
