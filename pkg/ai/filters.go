// filters.go — Pixel filters backing the offline operations.
package ai

import (
	"image"
	"image/draw"
	"math"
)

func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func clampByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

// Enhance applies contrast, saturation and brightness factors in that order,
// each with CSS filter semantics (1 leaves the image unchanged).
func Enhance(img image.Image, contrast, saturate, brightness float64) *image.NRGBA {
	out := toNRGBA(img)
	s := saturate
	for i := 0; i+3 < len(out.Pix); i += 4 {
		var c [3]float64
		for k := 0; k < 3; k++ {
			c[k] = (float64(out.Pix[i+k])/255-0.5)*contrast + 0.5
		}
		r := (0.213+0.787*s)*c[0] + (0.715-0.715*s)*c[1] + (0.072-0.072*s)*c[2]
		g := (0.213-0.213*s)*c[0] + (0.715+0.285*s)*c[1] + (0.072-0.072*s)*c[2]
		b := (0.213-0.213*s)*c[0] + (0.715-0.715*s)*c[1] + (0.072+0.928*s)*c[2]
		out.Pix[i] = clampByte(r * brightness * 255)
		out.Pix[i+1] = clampByte(g * brightness * 255)
		out.Pix[i+2] = clampByte(b * brightness * 255)
	}
	return out
}

var sharpenKernel = [9]float64{0, -1, 0, -1, 5, -1, 0, -1, 0}

// Sharpen convolves the colour channels with a 3×3 sharpening kernel,
// extending edge pixels outward. Alpha is kept.
func Sharpen(img image.Image) *image.NRGBA {
	src := toNRGBA(img)
	out := image.NewNRGBA(src.Bounds())
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc [3]float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					wt := sharpenKernel[(ky+1)*3+kx+1]
					if wt == 0 {
						continue
					}
					sx := min(max(x+kx, 0), w-1)
					sy := min(max(y+ky, 0), h-1)
					o := src.PixOffset(sx, sy)
					acc[0] += float64(src.Pix[o]) * wt
					acc[1] += float64(src.Pix[o+1]) * wt
					acc[2] += float64(src.Pix[o+2]) * wt
				}
			}
			o := out.PixOffset(x, y)
			out.Pix[o] = clampByte(acc[0])
			out.Pix[o+1] = clampByte(acc[1])
			out.Pix[o+2] = clampByte(acc[2])
			out.Pix[o+3] = src.Pix[src.PixOffset(x, y)+3]
		}
	}
	return out
}

const (
	// bgDistance is the RGB distance under which a pixel matches the
	// background palette.
	bgDistance = 40.0
	// edgeSoft is the Sobel magnitude below which foreground is half opaque.
	edgeSoft    = 50.0
	paletteSize = 5
)

// CutOut makes the background transparent. Background colours are sampled
// from the four corners, then flooded inward from the border; pixels the
// flood stops at stay opaque (half opaque on weak edges) and the alpha is
// smoothed with a 3×3 blur.
func CutOut(img image.Image) *image.NRGBA {
	out := toNRGBA(img)
	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	if w == 0 || h == 0 {
		return out
	}
	edges := sobel(out)
	palette := kmeans(cornerSamples(out), paletteSize)

	alpha := make([]uint8, w*h)
	for i := range alpha {
		alpha[i] = 255
	}
	visited := make([]bool, w*h)
	queue := make([]image.Point, 0, 2*(w+h))
	push := func(x, y int) {
		if x < 0 || y < 0 || x >= w || y >= h || visited[y*w+x] {
			return
		}
		visited[y*w+x] = true
		queue = append(queue, image.Pt(x, y))
	}
	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		i := p.Y*w + p.X
		o := out.PixOffset(p.X, p.Y)
		px := [3]float64{float64(out.Pix[o]), float64(out.Pix[o+1]), float64(out.Pix[o+2])}
		if nearAny(px, palette, bgDistance) {
			alpha[i] = 0
			push(p.X-1, p.Y)
			push(p.X+1, p.Y)
			push(p.X, p.Y-1)
			push(p.X, p.Y+1)
			continue
		}
		if edges[i] < edgeSoft {
			alpha[i] = 128
		}
	}

	smoothed := blurAlpha(alpha, w, h)
	for i, a := range smoothed {
		out.Pix[i*4+3] = uint8(uint32(out.Pix[i*4+3]) * uint32(a) / 255)
	}
	return out
}

func sobel(img *image.NRGBA) []float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	gray := make([]float64, w*h)
	for i := range gray {
		o := i * 4
		gray[i] = 0.299*float64(img.Pix[o]) + 0.587*float64(img.Pix[o+1]) + 0.114*float64(img.Pix[o+2])
	}
	out := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			at := func(dx, dy int) float64 { return gray[(y+dy)*w+x+dx] }
			gx := -at(-1, -1) + at(1, -1) - 2*at(-1, 0) + 2*at(1, 0) - at(-1, 1) + at(1, 1)
			gy := -at(-1, -1) - 2*at(0, -1) - at(1, -1) + at(-1, 1) + 2*at(0, 1) + at(1, 1)
			out[y*w+x] = math.Min(255, math.Hypot(gx, gy))
		}
	}
	return out
}

func cornerSamples(img *image.NRGBA) [][3]float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	n := max(min(50, w/10, h/10), 1)
	var out [][3]float64
	for _, c := range []image.Point{{0, 0}, {w - n, 0}, {0, h - n}, {w - n, h - n}} {
		for y := c.Y; y < c.Y+n; y++ {
			for x := c.X; x < c.X+n; x++ {
				o := img.PixOffset(x, y)
				out = append(out, [3]float64{float64(img.Pix[o]), float64(img.Pix[o+1]), float64(img.Pix[o+2])})
			}
		}
	}
	return out
}

// kmeans clusters colours with evenly spaced initial centroids.
func kmeans(pts [][3]float64, k int) [][3]float64 {
	if len(pts) == 0 {
		return nil
	}
	k = min(k, len(pts))
	cents := make([][3]float64, k)
	for i := range cents {
		cents[i] = pts[i*len(pts)/k]
	}
	for iter := 0; iter < 5; iter++ {
		var sums [][3]float64 = make([][3]float64, k)
		counts := make([]int, k)
		for _, p := range pts {
			best, bd := 0, math.Inf(1)
			for j, c := range cents {
				if d := dist(p, c); d < bd {
					best, bd = j, d
				}
			}
			for ch := 0; ch < 3; ch++ {
				sums[best][ch] += p[ch]
			}
			counts[best]++
		}
		for j := range cents {
			if counts[j] == 0 {
				continue
			}
			for ch := 0; ch < 3; ch++ {
				cents[j][ch] = sums[j][ch] / float64(counts[j])
			}
		}
	}
	return cents
}

func dist(a, b [3]float64) float64 {
	return math.Sqrt((a[0]-b[0])*(a[0]-b[0]) + (a[1]-b[1])*(a[1]-b[1]) + (a[2]-b[2])*(a[2]-b[2]))
}

func nearAny(p [3]float64, palette [][3]float64, th float64) bool {
	for _, c := range palette {
		if dist(p, c) < th {
			return true
		}
	}
	return false
}

func blurAlpha(a []uint8, w, h int) []uint8 {
	out := make([]uint8, len(a))
	copy(out, a)
	weights := [9]int{1, 2, 1, 2, 4, 2, 1, 2, 1}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			sum := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sum += int(a[(y+ky)*w+x+kx]) * weights[(ky+1)*3+kx+1]
				}
			}
			out[y*w+x] = uint8((sum + 8) / 16)
		}
	}
	return out
}
