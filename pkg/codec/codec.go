// Package codec decodes imported images and encodes exports.
//
// All output follows one pipeline: composite into an image.Image first, then
// encode it as PNG (lossless, keeps alpha) or JPEG (flattened onto a
// background colour, quality preset applied).
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	// Formats accepted on import besides PNG and JPEG.
	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupported is returned for unknown export formats.
	ErrUnsupported = errors.New("unsupported format")
	// ErrTooLarge is returned for images whose declared size exceeds the
	// pixel limit.
	ErrTooLarge = errors.New("image too large")
)

// DefaultMaxPixels is the decode limit when none is configured.
const DefaultMaxPixels = 8192 * 8192

// Format is an export encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// ParseFormat accepts "png", "jpeg", "jpg" and MIME types.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "image/")) {
	case "", "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	}
	return "", fmt.Errorf("format %q: %w", s, ErrUnsupported)
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return "png"
}

// MIME returns the content type.
func (f Format) MIME() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Quality is a JPEG quality fraction in (0, 1].
type Quality float64

const (
	QualityLow    Quality = 0.7
	QualityMedium Quality = 0.9
	QualityHigh   Quality = 0.95
)

// ParseQuality maps a preset name or fraction to a Quality.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(s) {
	case "low":
		return QualityLow, nil
	case "", "medium":
		return QualityMedium, nil
	case "high":
		return QualityHigh, nil
	}
	var q float64
	if _, err := fmt.Sscanf(s, "%g", &q); err != nil || q <= 0 || q > 1 {
		return 0, fmt.Errorf("quality %q: want low, medium, high or a fraction in (0,1]", s)
	}
	return Quality(q), nil
}

// jpegQuality converts the fraction to the 1–100 scale image/jpeg uses.
func (q Quality) jpegQuality() int {
	if q <= 0 {
		q = QualityMedium
	}
	return min(max(int(float64(q)*100+0.5), 1), 100)
}

// ExportFilename is the suggested name of an export.
func ExportFilename(f Format) string {
	return "curve-export." + f.Ext()
}

// Decode reads any registered image format, up to DefaultMaxPixels.
func Decode(data []byte) (image.Image, string, error) {
	return DecodeLimit(data, DefaultMaxPixels)
}

// DecodeLimit reads the header first and refuses images declaring more than
// maxPixels pixels. A limit of zero or less disables the check.
func DecodeLimit(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("decode image: empty input")
	}
	if maxPixels > 0 {
		cfg, err := DecodeConfig(data)
		if err != nil {
			return nil, "", err
		}
		if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
			return nil, "", fmt.Errorf("decode image: %dx%d exceeds %d pixels: %w",
				cfg.Width, cfg.Height, maxPixels, ErrTooLarge)
		}
	}
	img, kind, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, kind, nil
}

// DecodeConfig reads only the dimensions.
func DecodeConfig(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, fmt.Errorf("decode image config: %w", err)
	}
	return cfg, nil
}

// Encode writes img in the given format. JPEG output is flattened onto white.
func Encode(w io.Writer, img image.Image, f Format, q Quality) error {
	switch f {
	case PNG:
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("encode PNG: %w", err)
		}
	case JPEG:
		flat := Flatten(img, color.White)
		if err := jpeg.Encode(w, flat, &jpeg.Options{Quality: q.jpegQuality()}); err != nil {
			return fmt.Errorf("encode JPEG: %w", err)
		}
	default:
		return fmt.Errorf("encode %q: %w", f, ErrUnsupported)
	}
	return nil
}

// EncodeBytes is Encode into memory.
func EncodeBytes(img image.Image, f Format, q Quality) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, f, q); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePNG is the lossless encoding used for image data kept in documents.
func EncodePNG(img image.Image) ([]byte, error) {
	return EncodeBytes(img, PNG, 0)
}

// Flatten composites img over a solid background, dropping alpha.
func Flatten(img image.Image, bg color.Color) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

// ToRGBA returns img as *image.RGBA anchored at the origin, copying only
// when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
