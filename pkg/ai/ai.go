// Package ai talks to image-generation services.
//
// Service is implemented by Client, which calls a remote HTTP API, and by
// Mock, which produces local placeholder results so the editor works offline.
// Fallback chains the two.
package ai

import (
	"context"
	"errors"
	"log"

	"github.com/xob0t/curve/pkg/config"
	"github.com/xob0t/curve/pkg/render"
)

var (
	// ErrRequest wraps transport failures.
	ErrRequest = errors.New("ai request failed")
	// ErrStatus wraps non-2xx responses.
	ErrStatus = errors.New("ai service returned an error status")
	// ErrEmptyResult is returned when a response carries no image.
	ErrEmptyResult = errors.New("ai service returned no image")
)

// Op names an operation, for busy state and messages.
type Op string

const (
	OpGenerate         Op = "generate"
	OpEnhance          Op = "enhance"
	OpUpscale          Op = "upscale"
	OpRemoveBackground Op = "remove-background"
	OpFill             Op = "fill"
	OpExpand           Op = "expand"
)

// Result is an encoded image. Mock marks placeholder output; Fallback marks
// a placeholder produced because the primary service failed.
type Result struct {
	Data     []byte `json:"-"`
	URL      string `json:"url,omitempty"`
	Mock     bool   `json:"mock"`
	Fallback bool   `json:"fallback,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Service runs AI image operations. Images travel encoded (PNG or JPEG).
type Service interface {
	Generate(ctx context.Context, prompt string) (Result, error)
	Enhance(ctx context.Context, img []byte) (Result, error)
	Upscale(ctx context.Context, img []byte, factor float64) (Result, error)
	RemoveBackground(ctx context.Context, img []byte) (Result, error)
	GenerativeFill(ctx context.Context, img, mask []byte, prompt string) (Result, error)
	Expand(ctx context.Context, img []byte, factor float64, prompt string) (Result, error)
}

// New picks the service for cfg: the mock when no key is configured or the
// mock is forced, otherwise the HTTP client backed by the mock.
func New(cfg config.AIConfig, fonts *render.FontManager) Service {
	mock := NewMock(fonts)
	if cfg.Mock || cfg.Key == "" {
		log.Printf("ai: no API key configured, using mock service")
		return mock
	}
	return Fallback(NewClient(cfg), mock)
}

type fallback struct {
	primary Service
	backup  Service
}

// Fallback uses primary and retries on backup when it fails. Generative
// fill does not fall back: a placeholder fill would silently discard the
// user's mask.
func Fallback(primary, backup Service) Service {
	return &fallback{primary: primary, backup: backup}
}

func retry(ctx context.Context, op Op, res Result, err error, backup func() (Result, error)) (Result, error) {
	if err == nil || ctx.Err() != nil {
		return res, err
	}
	log.Printf("ai: %s failed, using mock: %v", op, err)
	res, err = backup()
	if err != nil {
		return res, err
	}
	res.Fallback = true
	return res, nil
}

func (f *fallback) Generate(ctx context.Context, prompt string) (Result, error) {
	res, err := f.primary.Generate(ctx, prompt)
	return retry(ctx, OpGenerate, res, err, func() (Result, error) { return f.backup.Generate(ctx, prompt) })
}

func (f *fallback) Enhance(ctx context.Context, img []byte) (Result, error) {
	res, err := f.primary.Enhance(ctx, img)
	return retry(ctx, OpEnhance, res, err, func() (Result, error) { return f.backup.Enhance(ctx, img) })
}

func (f *fallback) Upscale(ctx context.Context, img []byte, factor float64) (Result, error) {
	res, err := f.primary.Upscale(ctx, img, factor)
	return retry(ctx, OpUpscale, res, err, func() (Result, error) { return f.backup.Upscale(ctx, img, factor) })
}

func (f *fallback) RemoveBackground(ctx context.Context, img []byte) (Result, error) {
	res, err := f.primary.RemoveBackground(ctx, img)
	return retry(ctx, OpRemoveBackground, res, err, func() (Result, error) { return f.backup.RemoveBackground(ctx, img) })
}

func (f *fallback) GenerativeFill(ctx context.Context, img, mask []byte, prompt string) (Result, error) {
	return f.primary.GenerativeFill(ctx, img, mask, prompt)
}

func (f *fallback) Expand(ctx context.Context, img []byte, factor float64, prompt string) (Result, error) {
	res, err := f.primary.Expand(ctx, img, factor, prompt)
	return retry(ctx, OpExpand, res, err, func() (Result, error) { return f.backup.Expand(ctx, img, factor, prompt) })
}
