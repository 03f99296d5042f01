package cmd

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/config"
	"github.com/xob0t/curve/pkg/editor"
	"github.com/xob0t/curve/pkg/notify"
	"github.com/xob0t/curve/pkg/project"
)

func TestParseStep(t *testing.T) {
	tests := []struct {
		in   string
		want step
		err  bool
	}{
		{in: "enhance", want: step{Op: "enhance"}},
		{in: "Upscale=3", want: step{Op: "upscale", Arg: "3"}},
		{in: "generate=a cat = a dog", want: step{Op: "generate", Arg: "a cat = a dog"}},
		{in: " expand=2:sea ", want: step{Op: "expand", Arg: "2:sea"}},
		{in: "radius", err: true},
		{in: "sepia", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseStep(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRatio(t *testing.T) {
	for in, want := range map[string]float64{"16:9": 16.0 / 9, "4/3": 4.0 / 3, "1.5": 1.5} {
		got, err := parseRatio(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-12, in)
	}
	for _, in := range []string{"0:1", "a:b", "-2", "wide"} {
		_, err := parseRatio(in)
		assert.Error(t, err, in)
	}
}

func testSession(t *testing.T, w, h int) *editor.Session {
	t.Helper()
	c := config.Default()
	c.AI.Mock = true
	sess, err := editor.New(editor.Options{Config: c, Notifier: notify.NewQueue()})
	require.NoError(t, err)
	t.Cleanup(sess.Close)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{10, 120, 200, 255})
		}
	}
	data, err := codec.EncodePNG(img)
	require.NoError(t, err)
	require.NoError(t, sess.Import(context.Background(), data))
	return sess
}

func TestApplyRecipe(t *testing.T) {
	sess := testSession(t, 80, 40)
	steps, err := parseRecipe([]string{"upscale=2", "crop=1:1", "radius=25", "rotate=15", "text=Hi"})
	require.NoError(t, err)

	ctx := context.Background()
	for _, st := range steps {
		require.NoError(t, st.apply(ctx, sess), st.String())
	}

	st := sess.State()
	require.NotNil(t, st.Image)
	assert.Equal(t, st.Image.W, st.Image.H)
	assert.Equal(t, 25.0, st.Radius.Value)
	assert.Equal(t, 15.0, st.Transform.Rotation)
	require.Len(t, st.Layers, 1)
	assert.Equal(t, "idle", st.Mode)
}

func TestApplyRejectsBadNumbers(t *testing.T) {
	sess := testSession(t, 10, 10)
	assert.Error(t, step{Op: "upscale", Arg: "big"}.apply(context.Background(), sess))
	assert.Error(t, step{Op: "crop", Arg: "x"}.apply(context.Background(), sess))
}

func TestOpenProjectOrImage(t *testing.T) {
	sess := testSession(t, 30, 20)
	dir := t.TempDir()
	bundle := filepath.Join(dir, "doc"+project.Ext)
	require.NoError(t, project.SaveFile(bundle, sess.Document()))

	other, err := editor.New(editor.Options{Config: config.Default(), Notifier: notify.NewQueue()})
	require.NoError(t, err)
	defer other.Close()
	require.NoError(t, open(context.Background(), other, bundle))
	assert.Equal(t, 30.0, other.State().Image.W)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.png"), sess.Document().Base, 0o644))
	require.NoError(t, open(context.Background(), other, filepath.Join(dir, "x.png")))
	assert.Error(t, open(context.Background(), other, filepath.Join(dir, "missing.png")))
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, "jpeg", formatFromPath("out.JPG"))
	assert.Equal(t, "png", formatFromPath("a/b.png"))
	assert.Empty(t, formatFromPath(""))
	assert.Equal(t, "b", pick("", "b", "c"))
}
