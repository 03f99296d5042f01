// client.go — HTTP client for a remote image service.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/config"
)

// GenerateSize is the side of generated images.
const GenerateSize = 1024

const defaultExpandPrompt = "seamless extension, continuation"

// DefaultMaxResponse caps response bodies when the config sets no limit.
const DefaultMaxResponse = 50 << 20

// Client calls a remote service. Every request carries a bearer token and
// is bounded by the configured timeout.
type Client struct {
	base    string
	key     string
	timeout time.Duration
	limit   int64
	http    *http.Client
}

// NewClient builds a client from cfg.
func NewClient(cfg config.AIConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limit := cfg.MaxResponse
	if limit <= 0 {
		limit = DefaultMaxResponse
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.Key,
		timeout: timeout,
		limit:   limit,
		http:    &http.Client{},
	}
}

func (c *Client) Generate(ctx context.Context, prompt string) (Result, error) {
	body, err := json.Marshal(map[string]any{
		"prompt": prompt,
		"width":  GenerateSize,
		"height": GenerateSize,
	})
	if err != nil {
		return Result{}, err
	}
	return c.post(ctx, "/generate", "application/json", bytes.NewReader(body))
}

func (c *Client) Enhance(ctx context.Context, img []byte) (Result, error) {
	return c.post(ctx, "/enhance", http.DetectContentType(img), bytes.NewReader(img))
}

func (c *Client) Upscale(ctx context.Context, img []byte, factor float64) (Result, error) {
	path := "/upscale?scale=" + strconv.FormatFloat(factor, 'f', -1, 64)
	return c.post(ctx, path, http.DetectContentType(img), bytes.NewReader(img))
}

func (c *Client) RemoveBackground(ctx context.Context, img []byte) (Result, error) {
	return c.post(ctx, "/remove-background", http.DetectContentType(img), bytes.NewReader(img))
}

func (c *Client) GenerativeFill(ctx context.Context, img, mask []byte, prompt string) (Result, error) {
	ct, body, err := multipartBody(
		part{name: "image", file: "image.png", data: img},
		part{name: "mask", file: "mask.png", data: mask},
		part{name: "prompt", data: []byte(prompt)},
	)
	if err != nil {
		return Result{}, err
	}
	return c.post(ctx, "/fill", ct, body)
}

// Expand pads the image onto a larger canvas and asks the service to paint
// the border.
func (c *Client) Expand(ctx context.Context, img []byte, factor float64, prompt string) (Result, error) {
	src, _, err := codec.Decode(img)
	if err != nil {
		return Result{}, err
	}
	padded, mask := padCanvas(src, factor)
	pData, err := codec.EncodePNG(padded)
	if err != nil {
		return Result{}, err
	}
	mData, err := codec.EncodePNG(mask)
	if err != nil {
		return Result{}, err
	}
	if prompt == "" {
		prompt = defaultExpandPrompt
	}
	ct, body, err := multipartBody(
		part{name: "init_image", file: "image.png", data: pData},
		part{name: "mask", file: "mask.png", data: mData},
		part{name: "prompt", data: []byte(prompt)},
	)
	if err != nil {
		return Result{}, err
	}
	return c.post(ctx, "/expand", ct, body)
}

type part struct {
	name string
	file string
	data []byte
}

func multipartBody(parts ...part) (string, io.Reader, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		var (
			dst io.Writer
			err error
		)
		if p.file != "" {
			dst, err = w.CreateFormFile(p.name, p.file)
		} else {
			dst, err = w.CreateFormField(p.name)
		}
		if err != nil {
			return "", nil, fmt.Errorf("build form: %w", err)
		}
		if _, err := dst.Write(p.data); err != nil {
			return "", nil, fmt.Errorf("build form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", nil, fmt.Errorf("build form: %w", err)
	}
	return w.FormDataContentType(), &buf, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()
	return c.readResult(ctx, resp)
}

func (c *Client) authorize(req *http.Request) {
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}
}

// readResult accepts a raw image body, or JSON naming the image as a data
// URL or a URL to fetch.
func (c *Client) readResult(ctx context.Context, resp *http.Response) (Result, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	data, err := c.readBody(resp.Body)
	if err != nil {
		return Result{}, err
	}

	if mt != "application/json" {
		if len(data) == 0 {
			return Result{}, ErrEmptyResult
		}
		return Result{Data: data}, nil
	}

	var payload struct {
		URL   string `json:"url"`
		Data  string `json:"data"`
		Image string `json:"image"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrRequest, err)
	}
	for _, ref := range []string{payload.Data, payload.Image, payload.URL} {
		switch {
		case strings.HasPrefix(ref, "data:"):
			img, err := DecodeDataURL(ref)
			if err != nil {
				return Result{}, err
			}
			return Result{Data: img}, nil
		case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
			img, err := c.fetch(ctx, ref)
			if err != nil {
				return Result{}, err
			}
			return Result{Data: img, URL: ref}, nil
		}
	}
	return Result{}, ErrEmptyResult
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetch %s: %d", ErrStatus, url, resp.StatusCode)
	}
	return c.readBody(resp.Body)
}

// readBody reads at most the configured limit and fails beyond it.
func (c *Client) readBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, c.limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrRequest, err)
	}
	if int64(len(data)) > c.limit {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrRequest, c.limit)
	}
	return data, nil
}

// DecodeDataURL returns the payload of a base64 data URL.
func DecodeDataURL(s string) ([]byte, error) {
	_, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(s, "data:") {
		return nil, fmt.Errorf("invalid data URL")
	}
	if !strings.Contains(s[:len(s)-len(payload)], ";base64") {
		return []byte(payload), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	return data, nil
}

// EncodeDataURL wraps encoded image bytes in a data URL.
func EncodeDataURL(data []byte) string {
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}
