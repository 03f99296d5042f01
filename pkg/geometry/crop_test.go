package geometry

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

var testCanvas = Size{W: 800, H: 600}

func TestHitHandle(t *testing.T) {
	r := CropRect{X: 100, Y: 100, W: 200, H: 100}
	tests := []struct {
		p    r2.Vec
		want Handle
	}{
		{r2.Vec{X: 102, Y: 98}, HandleTL},
		{r2.Vec{X: 310, Y: 205}, HandleBR},
		{r2.Vec{X: 200, Y: 100}, HandleT},
		{r2.Vec{X: 100, Y: 150}, HandleL},
		{r2.Vec{X: 200, Y: 150}, HandleMove},
		{r2.Vec{X: 10, Y: 10}, HandleNew},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.HitHandle(tt.p, HandleRadius), "%v", tt.p)
	}
}

func TestHitHandleStraightened(t *testing.T) {
	r := CropRect{X: 100, Y: 100, W: 200, H: 100, Straighten: 90}
	c := r.Corners()
	assert.Equal(t, HandleTL, r.HitHandle(c[0], HandleRadius))
	assert.Equal(t, HandleBR, r.HitHandle(c[2], HandleRadius))
	assert.Equal(t, HandleMove, r.HitHandle(r2.Vec{X: 200, Y: 230}, HandleRadius), "inside the rotated box")
	assert.Equal(t, HandleNew, r.HitHandle(r2.Vec{X: 100, Y: 100}, HandleRadius), "the unrotated corner is empty canvas")
	assert.False(t, r.Contains(r2.Vec{X: 290, Y: 150}))
	assert.True(t, r.Contains(r2.Vec{X: 200, Y: 70}))
}

func TestResizedStopsAtCanvasEdge(t *testing.T) {
	r := CropRect{X: 100, Y: 100, W: 200, H: 100}
	tests := []struct {
		h    Handle
		d    r2.Vec
		want CropRect
	}{
		{HandleL, r2.Vec{X: -150}, CropRect{X: 0, Y: 100, W: 300, H: 100}},
		{HandleR, r2.Vec{X: 600}, CropRect{X: 100, Y: 100, W: 700, H: 100}},
		{HandleT, r2.Vec{Y: -150}, CropRect{X: 100, Y: 0, W: 200, H: 200}},
		{HandleB, r2.Vec{Y: 600}, CropRect{X: 100, Y: 100, W: 200, H: 500}},
		{HandleTL, r2.Vec{X: -150, Y: -150}, CropRect{X: 0, Y: 0, W: 300, H: 200}},
		{HandleTR, r2.Vec{X: 600, Y: -150}, CropRect{X: 100, Y: 0, W: 700, H: 200}},
		{HandleBL, r2.Vec{X: -150, Y: 600}, CropRect{X: 0, Y: 100, W: 300, H: 500}},
		{HandleBR, r2.Vec{X: 600, Y: 600}, CropRect{X: 100, Y: 100, W: 700, H: 500}},
	}
	for _, tt := range tests {
		t.Run(tt.h.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resized(tt.h, tt.d, 0, testCanvas))
		})
	}
}

func TestResizedHonoursMinimum(t *testing.T) {
	r := CropRect{X: 100, Y: 100, W: 200, H: 100}

	got := r.Resized(HandleBR, r2.Vec{X: -500, Y: -500}, 0, testCanvas)
	assert.Equal(t, CropRect{X: 100, Y: 100, W: 10, H: 10}, got)

	got = r.Resized(HandleTL, r2.Vec{X: 500, Y: 500}, 0, testCanvas)
	assert.Equal(t, CropRect{X: 290, Y: 190, W: 10, H: 10}, got, "opposite corner stays anchored")
}

func TestResizedRandomDragsStayValid(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	handles := []Handle{HandleTL, HandleTR, HandleBL, HandleBR, HandleT, HandleB, HandleL, HandleR}
	r := InitialCrop(testCanvas, Size{W: 800, H: 600})
	for i := 0; i < 2000; i++ {
		d := r2.Vec{X: rng.Float64()*400 - 200, Y: rng.Float64()*400 - 200}
		aspect := 0.0
		if i%3 == 0 {
			aspect = 16.0 / 9
		}
		switch i % 5 {
		case 0:
			r = r.Moved(d, testCanvas)
		default:
			r = r.Resized(handles[rng.IntN(len(handles))], d, aspect, testCanvas)
		}
		require.GreaterOrEqual(t, r.W, MinCropSize)
		require.GreaterOrEqual(t, r.H, MinCropSize)
		require.GreaterOrEqual(t, r.X, 0.0)
		require.GreaterOrEqual(t, r.Y, 0.0)
		require.LessOrEqual(t, r.X+r.W, testCanvas.W+1e-9)
		require.LessOrEqual(t, r.Y+r.H, testCanvas.H+1e-9)
	}
}

func TestResizedAspectLock(t *testing.T) {
	r := CropRect{X: 100, Y: 100, W: 200, H: 100}
	got := r.Resized(HandleBR, r2.Vec{X: 100}, 1, testCanvas)
	assert.InDelta(t, 300, got.W, 1e-9)
	assert.InDelta(t, 300, got.H, 1e-9)
	assert.Equal(t, 100.0, got.Y)

	got = r.Resized(HandleT, r2.Vec{Y: -50}, 2, testCanvas)
	assert.InDelta(t, 150, got.H, 1e-9)
	assert.InDelta(t, 300, got.W, 1e-9)
	assert.InDelta(t, 200, got.Center().X, 1e-9, "width grows around the center")
}

func TestMovedClamps(t *testing.T) {
	r := CropRect{X: 100, Y: 100, W: 200, H: 100}
	assert.Equal(t, 0.0, r.Moved(r2.Vec{X: -1000}, testCanvas).X)
	assert.Equal(t, 500.0, r.Moved(r2.Vec{Y: 1000}, testCanvas).Y)
}

func TestSpanning(t *testing.T) {
	got := Spanning(r2.Vec{X: 50, Y: 50}, r2.Vec{X: 10, Y: 20}, testCanvas)
	assert.Equal(t, CropRect{X: 10, Y: 20, W: 40, H: 30}, got)

	got = Spanning(r2.Vec{X: 50, Y: 50}, r2.Vec{X: 52, Y: 51}, testCanvas)
	assert.Equal(t, MinCropSize, got.W)
	assert.Equal(t, MinCropSize, got.H)
}

func TestInitialCropCoversDrawnImage(t *testing.T) {
	got := InitialCrop(Size{W: 1000, H: 1000}, Size{W: 800, H: 600})
	assert.Equal(t, CropRect{X: 100, Y: 200, W: 800, H: 600}, got)
}

func TestCropCornersStraightened(t *testing.T) {
	r := CropRect{W: 20, H: 10, Straighten: 90}
	c := r.Corners()
	assert.InDelta(t, 15, c[0].X, 1e-9)
	assert.InDelta(t, -5, c[0].Y, 1e-9)
}

func TestHandleText(t *testing.T) {
	b, err := HandleBR.MarshalText()
	require.NoError(t, err)
	var h Handle
	require.NoError(t, h.UnmarshalText(b))
	assert.Equal(t, HandleBR, h)
	assert.Error(t, h.UnmarshalText([]byte("middle")))
}
