// radius.go — Rounded-corner percentages and their pixel resolution.
package geometry

import "math"

// Corners holds per-corner radius percentages (0–100).
type Corners struct {
	TL float64 `json:"tl"`
	TR float64 `json:"tr"`
	BR float64 `json:"br"`
	BL float64 `json:"bl"`
}

// Uniform returns Corners with the same value at every corner.
func Uniform(v float64) Corners {
	return Corners{TL: v, TR: v, BR: v, BL: v}
}

// IsUniform reports whether all four corners match.
func (c Corners) IsUniform() bool {
	return c.TL == c.TR && c.TR == c.BR && c.BR == c.BL
}

// Radius is the border-radius state of an image: a single percentage, or four
// independent ones when Advanced is set.
type Radius struct {
	Value    float64 `json:"value"`
	Corners  Corners `json:"corners"`
	Advanced bool    `json:"advanced"`
}

// Percentages returns the effective per-corner percentages.
func (r Radius) Percentages() Corners {
	if r.Advanced {
		return r.Corners
	}
	return Uniform(r.Value)
}

// CornerRadii are resolved radii in pixels.
type CornerRadii struct {
	TL, TR, BR, BL float64
}

// Max returns the largest corner radius.
func (c CornerRadii) Max() float64 {
	return math.Max(math.Max(c.TL, c.TR), math.Max(c.BR, c.BL))
}

// IsUniform reports whether all four radii match.
func (c CornerRadii) IsUniform() bool {
	return c.TL == c.TR && c.TR == c.BR && c.BR == c.BL
}

// Scaled multiplies every radius by f.
func (c CornerRadii) Scaled(f float64) CornerRadii {
	return CornerRadii{TL: c.TL * f, TR: c.TR * f, BR: c.BR * f, BL: c.BL * f}
}

// Resolve converts the percentages to pixels for an image drawn at w×h.
// 100% is half the shorter side, and every corner is clamped to it.
func (r Radius) Resolve(w, h float64) CornerRadii {
	limit := math.Max(0, math.Min(w, h)/2)
	px := func(pct float64) float64 {
		return clamp(pct/100*limit, 0, limit)
	}
	p := r.Percentages()
	return CornerRadii{TL: px(p.TL), TR: px(p.TR), BR: px(p.BR), BL: px(p.BL)}
}

// PixelsPerPercent is the radius in pixels one percent represents at w×h.
func PixelsPerPercent(w, h float64) float64 {
	return math.Min(w, h) / 200
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
