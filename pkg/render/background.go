// background.go — Transparency checkerboard behind the preview.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// CheckerCell is the checkerboard square size in display pixels.
const CheckerCell = 20.0

var (
	checkerLight = [2]color.RGBA{{0xe0, 0xe0, 0xe0, 0xff}, {0xf5, 0xf5, 0xf5, 0xff}}
	checkerDark  = [2]color.RGBA{{0x2a, 0x2a, 0x2a, 0xff}, {0x1a, 0x1a, 0x1a, 0xff}}
)

// drawCheckerboard fills dst with alternating cells of the given size. The
// top-left cell uses the second colour.
func drawCheckerboard(dst *image.RGBA, cell float64, dark bool) {
	pal := checkerLight
	if dark {
		pal = checkerDark
	}
	b := dst.Bounds()
	draw.Draw(dst, b, image.NewUniform(pal[0]), image.Point{}, draw.Src)

	step := max(int(math.Round(cell)), 1)
	alt := image.NewUniform(pal[1])
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			if ((x-b.Min.X)/step+(y-b.Min.Y)/step)%2 == 0 {
				draw.Draw(dst, image.Rect(x, y, x+step, y+step).Intersect(b), alt, image.Point{}, draw.Src)
			}
		}
	}
}
