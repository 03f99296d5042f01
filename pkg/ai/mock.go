// mock.go — Offline placeholder implementations of every operation.
package ai

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/nfnt/resize"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/render"
)

// Mock answers every request locally.
type Mock struct {
	fonts *render.FontManager
	// Delay simulates service latency.
	Delay time.Duration
	// Size is the side of generated placeholders.
	Size int
}

// NewMock returns a mock drawing captions with fonts.
func NewMock(fonts *render.FontManager) *Mock {
	return &Mock{fonts: fonts, Size: GenerateSize}
}

func (m *Mock) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Mock) result(img image.Image) (Result, error) {
	data, err := codec.EncodePNG(img)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: data, Mock: true}, nil
}

// promptPalettes maps prompt keywords to gradient endpoints.
var promptPalettes = []struct {
	words []string
	from  string
	to    string
}{
	{[]string{"ocean", "sea", "water"}, "#667eea", "#3b82f6"},
	{[]string{"sunset", "fire", "warm"}, "#f093fb", "#f5576c"},
	{[]string{"forest", "nature", "green"}, "#4facfe", "#00f2fe"},
	{[]string{"space", "galaxy", "cosmic"}, "#30cfd0", "#330867"},
	{[]string{"night", "dark", "moon"}, "#2c3e50", "#4ca1af"},
}

// PromptColors picks gradient colours for a prompt.
func PromptColors(prompt string) (from, to color.NRGBA) {
	a, b := promptHex(strings.ToLower(prompt))
	return render.ParseHexColor(a, color.NRGBA{}), render.ParseHexColor(b, color.NRGBA{})
}

func promptHex(lower string) (string, string) {
	for _, p := range promptPalettes {
		for _, w := range p.words {
			if strings.Contains(lower, w) {
				return p.from, p.to
			}
		}
	}
	return "#a8edea", "#fed6e3"
}

// Generate draws a diagonal gradient coloured by the prompt with its first
// words as a caption.
func (m *Mock) Generate(ctx context.Context, prompt string) (Result, error) {
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}
	size := max(m.Size, 1)
	from, to := PromptColors(prompt)
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	diagonalGradient(img, from, to)

	if m.fonts != nil {
		words := strings.Fields(prompt)
		caption := strings.Join(words[:min(len(words), 5)], " ")
		fs := float64(size) * 48 / 1024
		lines := m.wrap(caption, fs, float64(size)*900/1024)
		lh := fs * 1.25
		y := float64(size)/2 - float64(len(lines)-1)*lh/2 + fs*0.35
		for i, line := range lines {
			anchor := r2.Vec{X: float64(size) / 2, Y: y + float64(i)*lh}
			if err := m.fonts.DrawString(img, line, fs, anchor, color.NRGBA{255, 255, 255, 230}); err != nil {
				return Result{}, err
			}
		}
	}
	return m.result(img)
}

func (m *Mock) wrap(text string, size, maxWidth float64) []string {
	var lines []string
	line := ""
	for _, w := range strings.Fields(text) {
		test := strings.TrimSpace(line + " " + w)
		if line != "" && m.fonts.MeasureText(test, size) > maxWidth {
			lines = append(lines, line)
			line = w
			continue
		}
		line = test
	}
	return append(lines, line)
}

func diagonalGradient(img *image.RGBA, from, to color.NRGBA) {
	b := img.Bounds()
	span := float64(b.Dx() + b.Dy() - 2)
	if span <= 0 {
		span = 1
	}
	lerp := func(a, b uint8, t float64) uint8 { return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5) }
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			t := float64(x-b.Min.X+y-b.Min.Y) / span
			img.SetRGBA(x, y, color.RGBA{lerp(from.R, to.R, t), lerp(from.G, to.G, t), lerp(from.B, to.B, t), 255})
		}
	}
}

// Enhance lifts contrast, saturation and brightness slightly.
func (m *Mock) Enhance(ctx context.Context, data []byte) (Result, error) {
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}
	src, _, err := codec.Decode(data)
	if err != nil {
		return Result{}, err
	}
	return m.result(Enhance(src, 1.1, 1.15, 1.05))
}

// Upscale resamples with Lanczos and sharpens the result.
func (m *Mock) Upscale(ctx context.Context, data []byte, factor float64) (Result, error) {
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}
	if factor <= 0 || math.IsNaN(factor) {
		return Result{}, fmt.Errorf("invalid upscale factor %g", factor)
	}
	src, _, err := codec.Decode(data)
	if err != nil {
		return Result{}, err
	}
	b := src.Bounds()
	w := uint(math.Round(float64(b.Dx()) * factor))
	h := uint(math.Round(float64(b.Dy()) * factor))
	return m.result(Sharpen(resize.Resize(max(w, 1), max(h, 1), src, resize.Lanczos3)))
}

// RemoveBackground cuts out the regions connected to the border that match
// the corner colours.
func (m *Mock) RemoveBackground(ctx context.Context, data []byte) (Result, error) {
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}
	src, _, err := codec.Decode(data)
	if err != nil {
		return Result{}, err
	}
	return m.result(CutOut(src))
}

// GenerativeFill paints the masked area with the average colour of the
// unmasked pixels.
func (m *Mock) GenerativeFill(ctx context.Context, data, maskData []byte, _ string) (Result, error) {
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}
	src, _, err := codec.Decode(data)
	if err != nil {
		return Result{}, err
	}
	mk, _, err := codec.Decode(maskData)
	if err != nil {
		return Result{}, fmt.Errorf("decode mask: %w", err)
	}
	out := codec.ToRGBA(src)
	b := out.Bounds()
	if mk.Bounds().Dx() != b.Dx() || mk.Bounds().Dy() != b.Dy() {
		return Result{}, fmt.Errorf("mask is %v, image is %v", mk.Bounds().Size(), b.Size())
	}

	gray := image.NewGray(b)
	draw.Draw(gray, b, mk, mk.Bounds().Min, draw.Src)

	var sum [3]float64
	var n float64
	for i, v := range gray.Pix {
		if v < 128 {
			o := i * 4
			sum[0] += float64(out.Pix[o])
			sum[1] += float64(out.Pix[o+1])
			sum[2] += float64(out.Pix[o+2])
			n++
		}
	}
	if n == 0 {
		n = 1
	}
	for i, v := range gray.Pix {
		if v == 0 {
			continue
		}
		o := i * 4
		a := float64(v) / 255
		for c := 0; c < 3; c++ {
			out.Pix[o+c] = uint8(float64(out.Pix[o+c])*(1-a) + sum[c]/n*a + 0.5)
		}
		out.Pix[o+3] = 255
	}
	res, err := m.result(out)
	res.Message = "Generative fill is running offline; the area was filled with a flat colour."
	return res, err
}

// Expand centers the image on a larger canvas filled with a gradient around
// its average colour.
func (m *Mock) Expand(ctx context.Context, data []byte, factor float64, _ string) (Result, error) {
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}
	if factor < 1 || math.IsNaN(factor) {
		return Result{}, fmt.Errorf("invalid expand factor %g", factor)
	}
	src, _, err := codec.Decode(data)
	if err != nil {
		return Result{}, err
	}
	avg := averageColor(src)
	shift := func(c uint8, d int) uint8 { return uint8(min(max(int(c)+d, 0), 255)) }
	w, h := expandedSize(src.Bounds(), factor)
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	diagonalGradient3(out,
		color.NRGBA{shift(avg.R, 20), shift(avg.G, 20), shift(avg.B, 20), 255},
		avg,
		color.NRGBA{shift(avg.R, -20), shift(avg.G, -20), shift(avg.B, -20), 255},
	)
	draw.Draw(out, centered(src.Bounds(), w, h), src, src.Bounds().Min, draw.Over)
	return m.result(out)
}

func diagonalGradient3(img *image.RGBA, a, mid, b color.NRGBA) {
	bounds := img.Bounds()
	span := float64(bounds.Dx() + bounds.Dy() - 2)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			t := float64(x-bounds.Min.X+y-bounds.Min.Y) / math.Max(span, 1)
			if t <= 0.5 {
				img.SetRGBA(x, y, lerpRGBA(a, mid, t*2))
			} else {
				img.SetRGBA(x, y, lerpRGBA(mid, b, (t-0.5)*2))
			}
		}
	}
}

func lerpRGBA(a, b color.NRGBA, t float64) color.RGBA {
	l := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5) }
	return color.RGBA{l(a.R, b.R), l(a.G, b.G), l(a.B, b.B), 255}
}

func expandedSize(b image.Rectangle, factor float64) (int, int) {
	return int(math.Round(float64(b.Dx()) * factor)), int(math.Round(float64(b.Dy()) * factor))
}

func centered(src image.Rectangle, w, h int) image.Rectangle {
	off := image.Pt((w-src.Dx())/2, (h-src.Dy())/2)
	return image.Rectangle{Min: off, Max: off.Add(src.Size())}
}

// padCanvas places img on an expanded canvas filled with its average colour
// and returns the matching mask: white where the service should paint.
func padCanvas(img image.Image, factor float64) (*image.RGBA, *image.Gray) {
	w, h := expandedSize(img.Bounds(), math.Max(factor, 1))
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(averageColor(img)), image.Point{}, draw.Src)
	inner := centered(img.Bounds(), w, h)
	draw.Draw(canvas, inner, img, img.Bounds().Min, draw.Over)

	mask := image.NewGray(canvas.Bounds())
	draw.Draw(mask, mask.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(mask, inner, image.Black, image.Point{}, draw.Src)
	return canvas, mask
}

func averageColor(img image.Image) color.NRGBA {
	rgba := codec.ToRGBA(img)
	var r, g, b, n float64
	for i := 0; i+3 < len(rgba.Pix); i += 4 {
		r += float64(rgba.Pix[i])
		g += float64(rgba.Pix[i+1])
		b += float64(rgba.Pix[i+2])
		n++
	}
	if n == 0 {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{uint8(r/n + 0.5), uint8(g/n + 0.5), uint8(b/n + 0.5), 255}
}
