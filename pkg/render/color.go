// color.go — Colour parsing for layer styles and overlays.
package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Overlay palette.
var (
	Accent      = color.NRGBA{0x66, 0x7e, 0xea, 0xff}
	Scrim       = color.NRGBA{0, 0, 0, 0x80}
	CropStroke  = color.NRGBA{0xff, 0xff, 0xff, 0xff}
	GridStroke  = color.NRGBA{0xff, 0xff, 0xff, 0x80}
	GuideStroke = color.NRGBA{0x66, 0x7e, 0xea, 0xcc}
)

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: expected #rgb, #rrggbb or #rrggbbaa", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// ParseHexColor is ParseColor with a fallback for unparsable input.
func ParseHexColor(s string, fallback color.NRGBA) color.NRGBA {
	c, err := ParseColor(s)
	if err != nil {
		return fallback
	}
	return c
}

// withAlpha scales a colour's alpha by a 0–1 factor.
func withAlpha(c color.NRGBA, a float64) color.NRGBA {
	c.A = uint8(float64(c.A)*min(max(a, 0), 1) + 0.5)
	return c
}
