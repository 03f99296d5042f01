// fonts.go - Font management with custom TTF support and embedded fallback font.
// Uses golang.org/x/image/font for OpenType rendering. Defaults to Go Regular
// when no custom font is given or when it fails to load. Faces are cached
// per size because text layers are redrawn on every frame.
package render

import (
	"fmt"
	"log"
	"math"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontManager parses one font and hands out faces by size.
type FontManager struct {
	parsed *opentype.Font

	mu    sync.Mutex
	faces map[float64]font.Face
}

// NewFontManager loads the font at path, or Go Regular when path is empty
// or unreadable.
func NewFontManager(path string) (*FontManager, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			log.Printf("font: could not load %q, using default: %v", path, err)
			data = nil
		}
	}
	return NewFontManagerFromBytes(data)
}

// NewFontManagerFromBytes parses TTF/OTF data, falling back to Go Regular
// for empty input.
func NewFontManagerFromBytes(data []byte) (*FontManager, error) {
	if len(data) == 0 {
		data = goregular.TTF
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &FontManager{parsed: parsed, faces: make(map[float64]font.Face)}, nil
}

// Face returns a face for a pixel size (72 DPI, so points equal pixels).
func (fm *FontManager) Face(size float64) (font.Face, error) {
	size = math.Round(math.Max(size, 1)*4) / 4

	fm.mu.Lock()
	defer fm.mu.Unlock()
	if f, ok := fm.faces[size]; ok {
		return f, nil
	}
	face, err := opentype.NewFace(fm.parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	fm.faces[size] = face
	return face, nil
}

// MeasureText returns the advance width of text in pixels.
func (fm *FontManager) MeasureText(text string, size float64) float64 {
	face, err := fm.Face(size)
	if err != nil {
		return 0
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return float64(font.MeasureString(face, text)) / 64
}
