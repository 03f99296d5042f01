package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/config"
	"github.com/xob0t/curve/pkg/editor"
	"github.com/xob0t/curve/pkg/notify"
)

type client struct {
	t   *testing.T
	srv *httptest.Server
	id  string
}

func newClient(t *testing.T, opts ...func(*config.Config)) *client {
	t.Helper()
	cfg := config.Default()
	cfg.AI.Mock = true
	for _, fn := range opts {
		fn(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})

	c := &client{t: t, srv: ts}
	res := c.do(http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var v struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	require.NotEmpty(t, v.ID)
	c.id = v.ID
	return c
}

func (c *client) do(method, path string, body []byte, contentType string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.srv.URL+path, bytes.NewReader(body))
	require.NoError(c.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { res.Body.Close() })
	return res
}

func (c *client) session(method, path string, body any) *http.Response {
	c.t.Helper()
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		require.NoError(c.t, err)
	}
	return c.do(method, "/api/sessions/"+c.id+path, data, "application/json")
}

// state mirrors editor.State with layers decoded to their ids.
type state struct {
	editor.State
	Layers []struct {
		Kind  string `json:"kind"`
		Layer struct {
			ID int `json:"id"`
		} `json:"layer"`
	} `json:"layers"`
}

func (c *client) state() state {
	c.t.Helper()
	res := c.session(http.MethodGet, "/state", nil)
	require.Equal(c.t, http.StatusOK, res.StatusCode)
	var st state
	require.NoError(c.t, json.NewDecoder(res.Body).Decode(&st))
	return st
}

func (c *client) importImage(w, h int) {
	c.t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{200, 40, 40, 255})
		}
	}
	data, err := codec.EncodePNG(img)
	require.NoError(c.t, err)
	res := c.do(http.MethodPost, "/api/sessions/"+c.id+"/import", data, "image/png")
	require.Equal(c.t, http.StatusOK, res.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	c := newClient(t)
	st := c.state()
	assert.Equal(t, "idle", st.Mode)
	assert.Nil(t, st.Image)

	res := c.do(http.MethodDelete, "/api/sessions/"+c.id, nil, "")
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res = c.session(http.MethodGet, "/state", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res = c.do(http.MethodDelete, "/api/sessions/"+c.id, nil, "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestIndexIsServed(t *testing.T) {
	c := newClient(t)
	res := c.do(http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<title>Curve</title>")
}

func TestImportAndPreview(t *testing.T) {
	c := newClient(t)
	res := c.session(http.MethodPost, "/viewport", map[string]any{"width": 300, "height": 200, "dpr": 2})
	require.Equal(t, http.StatusOK, res.StatusCode)
	c.importImage(120, 80)

	st := c.state()
	require.NotNil(t, st.Image)
	assert.Equal(t, 120.0, st.Image.W)
	assert.Equal(t, 1, st.History.Len)

	res = c.session(http.MethodGet, "/preview.png", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "image/png", res.Header.Get("Content-Type"))
	img, err := png.Decode(res.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 600, 400), img.Bounds())
}

func TestImportRejectsGarbage(t *testing.T) {
	c := newClient(t)
	res := c.do(http.MethodPost, "/api/sessions/"+c.id+"/import", []byte("not an image"), "application/octet-stream")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = c.do(http.MethodPost, "/api/sessions/"+c.id+"/import", nil, "application/octet-stream")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestImportLimits(t *testing.T) {
	c := newClient(t, func(cfg *config.Config) {
		cfg.Limits.MaxPixels = 10 * 10
		cfg.Limits.MaxUpload = 4 << 10
	})
	img, err := codec.EncodePNG(image.NewRGBA(image.Rect(0, 0, 20, 20)))
	require.NoError(t, err)
	res := c.do(http.MethodPost, "/api/sessions/"+c.id+"/import", img, "image/png")
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)

	res = c.do(http.MethodPost, "/api/sessions/"+c.id+"/import", make([]byte, 8<<10), "image/png")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, "bodies over the upload limit are cut off")
	assert.Nil(t, c.state().Image)
}

func TestPointerDragMovesImage(t *testing.T) {
	c := newClient(t)
	c.importImage(100, 100)

	pt := func(x, y float64) []map[string]float64 { return []map[string]float64{{"X": x, "Y": y}} }
	c.session(http.MethodPost, "/pointer", map[string]any{"kind": 0, "points": pt(195, 300)})
	c.session(http.MethodPost, "/pointer", map[string]any{"kind": 1, "points": pt(245, 280)})
	res := c.session(http.MethodPost, "/pointer", map[string]any{"kind": 2, "points": []any{}})
	require.Equal(t, http.StatusOK, res.StatusCode)

	st := c.state()
	assert.InDelta(t, 50, st.Transform.X, 1e-9)
	assert.InDelta(t, -20, st.Transform.Y, 1e-9)
	assert.Equal(t, 2, st.History.Len)

	res = c.session(http.MethodPost, "/undo", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Zero(t, c.state().Transform.X)
}

func TestLayerRoutes(t *testing.T) {
	c := newClient(t)
	c.importImage(100, 100)

	res := c.session(http.MethodPost, "/layers/text", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	st := c.state()
	require.Len(t, st.Layers, 1)
	id := st.Layers[0].Layer.ID

	path := "/layers/" + itoa(id)
	res = c.session(http.MethodPatch, path, map[string]any{"text": "Hello"})
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = c.session(http.MethodPost, path+"/duplicate", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, c.state().Layers, 2)

	res = c.session(http.MethodPost, path+"/move", map[string]any{"direction": "sideways"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res = c.session(http.MethodPost, path+"/move", map[string]any{"direction": "up"})
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = c.session(http.MethodPatch, path, map[string]any{"scale": 2})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, "image fields on a text layer")

	res = c.session(http.MethodDelete, "/layers/999", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res = c.session(http.MethodDelete, "/layers/abc", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = c.session(http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, c.state().Layers, 1)
}

func itoa(i int) string { return fmt.Sprint(i) }

func TestRadiusRoute(t *testing.T) {
	c := newClient(t)
	c.importImage(100, 100)

	res := c.session(http.MethodPost, "/radius", map[string]any{"value": 30})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 30.0, c.state().Radius.Value)

	res = c.session(http.MethodPost, "/radius", map[string]any{"corners": map[string]float64{"tl": 10, "tr": 20, "br": 30, "bl": 40}})
	require.Equal(t, http.StatusOK, res.StatusCode)
	st := c.state()
	assert.True(t, st.Radius.Advanced)
	assert.Equal(t, 40.0, st.Radius.Corners.BL)

	res = c.session(http.MethodPost, "/radius", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestCropRoutes(t *testing.T) {
	c := newClient(t)
	c.importImage(200, 100)

	res := c.session(http.MethodPost, "/crop/start", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	st := c.state()
	assert.Equal(t, "cropping", st.Mode)
	require.NotNil(t, st.Crop)

	res = c.session(http.MethodPost, "/crop/aspect", map[string]any{"ratio": 1})
	require.Equal(t, http.StatusOK, res.StatusCode)
	st = c.state()
	assert.InDelta(t, st.Crop.Rect.W, st.Crop.Rect.H, 1e-6)

	res = c.session(http.MethodPost, "/crop/apply", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	st = c.state()
	assert.Equal(t, "idle", st.Mode)
	assert.Equal(t, st.Image.W, st.Image.H)

	res = c.session(http.MethodPost, "/crop/bogus", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestAIRouteWithMock(t *testing.T) {
	c := newClient(t)
	res := c.session(http.MethodPost, "/ai/enhance", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, "no image yet")

	c.importImage(64, 64)
	res = c.session(http.MethodPost, "/ai/enhance", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = c.session(http.MethodPost, "/ai/upscale", map[string]any{"factor": 2})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 128.0, c.state().Image.W)

	res = c.session(http.MethodPost, "/ai/teleport", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = c.session(http.MethodGet, "/toasts", nil)
	var toasts []notify.Toast
	require.NoError(t, json.NewDecoder(res.Body).Decode(&toasts))
	msgs := make([]string, 0, len(toasts))
	for _, toast := range toasts {
		msgs = append(msgs, toast.Message)
	}
	assert.Contains(t, msgs, "Image enhanced")
	assert.Contains(t, msgs, "Image upscaled 2x")
}

func TestFillRoutes(t *testing.T) {
	c := newClient(t)
	c.importImage(64, 64)

	res := c.session(http.MethodPost, "/fill/submit", map[string]any{"prompt": "sky"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, "fill not started")

	res = c.session(http.MethodPost, "/fill/start", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "fill", c.state().Mode)

	res = c.session(http.MethodPost, "/fill/submit", map[string]any{"prompt": "sky"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, "empty mask")

	res = c.session(http.MethodPost, "/fill/cancel", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "idle", c.state().Mode)
}

func TestExportRoute(t *testing.T) {
	c := newClient(t)
	res := c.session(http.MethodGet, "/export", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	c.importImage(80, 40)
	res = c.session(http.MethodGet, "/export?format=jpeg&quality=high", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "image/jpeg", res.Header.Get("Content-Type"))
	assert.Contains(t, res.Header.Get("Content-Disposition"), "curve-export.jpg")

	cfg, _, err := image.DecodeConfig(res.Body)
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Width)

	res = c.session(http.MethodGet, "/export?format=tiff", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestProjectRoundTrip(t *testing.T) {
	c := newClient(t)
	c.importImage(50, 30)
	c.session(http.MethodPost, "/layers/text", nil)
	c.session(http.MethodPost, "/radius", map[string]any{"value": 12})

	res := c.session(http.MethodGet, "/project", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/zip", res.Header.Get("Content-Type"))
	bundle, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	other := newClient(t)
	res = other.do(http.MethodPost, "/api/sessions/"+other.id+"/project", bundle, "application/zip")
	require.Equal(t, http.StatusOK, res.StatusCode)

	st := other.state()
	require.NotNil(t, st.Image)
	assert.Equal(t, 50.0, st.Image.W)
	assert.Len(t, st.Layers, 1)
	assert.Equal(t, 12.0, st.Radius.Value)

	res = other.do(http.MethodPost, "/api/sessions/"+other.id+"/project", []byte("zip?"), "application/zip")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestMultipartUpload(t *testing.T) {
	c := newClient(t)
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	data, err := codec.EncodePNG(img)
	require.NoError(t, err)

	var body bytes.Buffer
	boundary := "curveboundary"
	body.WriteString("--" + boundary + "\r\n")
	body.WriteString(`Content-Disposition: form-data; name="file"; filename="a.png"` + "\r\n")
	body.WriteString("Content-Type: image/png\r\n\r\n")
	body.Write(data)
	body.WriteString("\r\n--" + boundary + "--\r\n")

	res := c.do(http.MethodPost, "/api/sessions/"+c.id+"/import", body.Bytes(), "multipart/form-data; boundary="+boundary)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotNil(t, c.state().Image)
}

func TestRegistrySweep(t *testing.T) {
	now := time.Unix(1000, 0)
	rg := newRegistry()
	rg.now = func() time.Time { return now }

	sess, err := editor.New(editor.Options{Config: config.Default(), Notifier: notify.NewQueue()})
	require.NoError(t, err)
	id := rg.add(&entry{session: sess, toasts: notify.NewQueue()})

	now = now.Add(IdleTimeout / 2)
	_, ok := rg.get(id)
	require.True(t, ok)

	now = now.Add(IdleTimeout / 2)
	assert.Zero(t, rg.sweep(), "touched by get")

	now = now.Add(IdleTimeout + time.Second)
	assert.Equal(t, 1, rg.sweep())
	_, ok = rg.get(id)
	assert.False(t, ok)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(editor.ErrBusy))
	assert.Equal(t, http.StatusConflict, statusFor(codec.ErrStale))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(editor.ErrEmptyMask))
	assert.Equal(t, http.StatusBadRequest, statusFor(io.ErrUnexpectedEOF))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(fmt.Errorf("crop: %w", editor.ErrNoImage)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(fmt.Errorf("import: %w", codec.ErrTooLarge)))
}
