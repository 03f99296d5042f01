// Package project saves and opens .curve bundles: a ZIP holding
// project.json and the encoded images the document references.
package project

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/xob0t/curve/pkg/editor"
	"github.com/xob0t/curve/pkg/geometry"
	"github.com/xob0t/curve/pkg/layer"
)

const (
	// Ext is the bundle file extension.
	Ext = ".curve"
	// Version is written into new manifests.
	Version = 1

	manifestName = "project.json"
	maxEntrySize = 256 << 20
)

// ErrNoManifest is returned for bundles without project.json.
var ErrNoManifest = errors.New("bundle has no " + manifestName)

// Manifest is the content of project.json.
type Manifest struct {
	Version   int                `json:"version"`
	Base      string             `json:"base"`
	Transform geometry.Transform `json:"transform"`
	Radius    geometry.Radius    `json:"radius"`
	Layers    []Entry            `json:"layers"`
	Selected  int                `json:"selected,omitempty"`
}

// Entry is one layer, bottom to top. Exactly one of Image and Text is set.
type Entry struct {
	Kind  layer.Kind       `json:"kind"`
	Image *ImageEntry      `json:"image,omitempty"`
	Text  *layer.TextLayer `json:"text,omitempty"`
}

// ImageEntry is an image layer and the bundle file holding its bytes.
type ImageEntry struct {
	layer.ImageLayer
	File string `json:"file"`
}

// Save writes doc as a bundle.
func Save(w io.Writer, doc editor.Document) error {
	if len(doc.Base) == 0 {
		return editor.ErrNoImage
	}
	zw := zip.NewWriter(w)

	m := Manifest{
		Version:   Version,
		Base:      "images/base" + ext(doc.Base),
		Transform: doc.Transform,
		Radius:    doc.Radius,
	}
	if err := writeEntry(zw, m.Base, doc.Base); err != nil {
		return err
	}

	if doc.Layers != nil {
		m.Selected = doc.Layers.Selected()
		for _, l := range doc.Layers.All() {
			switch v := l.(type) {
			case *layer.ImageLayer:
				name := fmt.Sprintf("images/layer-%d%s", v.ID(), ext(v.Data))
				if err := writeEntry(zw, name, v.Data); err != nil {
					return err
				}
				m.Layers = append(m.Layers, Entry{Kind: layer.KindImage, Image: &ImageEntry{ImageLayer: *v, File: name}})
			case *layer.TextLayer:
				t := *v
				m.Layers = append(m.Layers, Entry{Kind: layer.KindText, Text: &t})
			}
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", manifestName, err)
	}
	if err := writeEntry(zw, manifestName, data); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish bundle: %w", err)
	}
	return nil
}

// SaveFile writes doc to path.
func SaveFile(path string, doc editor.Document) error {
	var buf bytes.Buffer
	if err := Save(&buf, doc); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return nil
}

// ext picks a file extension from the encoded bytes.
func ext(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	}
	return ".bin"
}

// Load reads a bundle. Problems with individual layers become warnings and
// the layer is skipped; a missing manifest or base image is an error.
func Load(data []byte) (editor.Document, []string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return editor.Document{}, nil, fmt.Errorf("open bundle: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	var warnings []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// Guard against zip slip.
		if !safeName(f.Name) {
			return editor.Document{}, nil, fmt.Errorf("illegal path in bundle: %s", f.Name)
		}
		files[path.Clean(f.Name)] = f
	}

	mf, ok := files[manifestName]
	if !ok {
		return editor.Document{}, nil, ErrNoManifest
	}
	raw, err := readEntry(mf)
	if err != nil {
		return editor.Document{}, nil, err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return editor.Document{}, nil, fmt.Errorf("parse %s: %w", manifestName, err)
	}
	warnings = append(warnings, Validate(&m, files)...)

	contents, err := readAll(files, m)
	if err != nil {
		return editor.Document{}, warnings, err
	}
	base, ok := contents[path.Clean(m.Base)]
	if !ok {
		return editor.Document{}, warnings, fmt.Errorf("base image %q missing from bundle", m.Base)
	}

	doc := editor.Document{
		Base:      base,
		Transform: m.Transform,
		Radius:    m.Radius,
		Layers:    layer.NewStack(),
	}
	if doc.Transform.Scale <= 0 {
		doc.Transform = geometry.Identity()
	}
	seen := make(map[int]bool)
	for i, e := range m.Layers {
		var l layer.Layer
		switch {
		case e.Kind == layer.KindImage && e.Image != nil:
			data, ok := contents[path.Clean(e.Image.File)]
			if !ok {
				continue
			}
			img := e.Image.ImageLayer
			img.Data = data
			l = &img
		case e.Kind == layer.KindText && e.Text != nil:
			t := *e.Text
			l = &t
		default:
			continue
		}
		if l.ID() <= 0 || seen[l.ID()] {
			warnings = append(warnings, fmt.Sprintf("layer %d has a missing or duplicate id %d — skipped", i, l.ID()))
			continue
		}
		seen[l.ID()] = true
		doc.Layers.Append(l)
	}
	if m.Selected != 0 {
		if err := doc.Layers.Select(m.Selected); err != nil {
			warnings = append(warnings, fmt.Sprintf("selected layer %d not found — selection cleared", m.Selected))
		}
	}
	return doc, warnings, nil
}

// LoadFile reads the bundle at path.
func LoadFile(path string) (editor.Document, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return editor.Document{}, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Load(data)
}

// readAll reads every image the manifest references, concurrently.
func readAll(files map[string]*zip.File, m Manifest) (map[string][]byte, error) {
	names := []string{path.Clean(m.Base)}
	for _, e := range m.Layers {
		if e.Image != nil && e.Image.File != "" {
			names = append(names, path.Clean(e.Image.File))
		}
	}

	var (
		mu  sync.Mutex
		out = make(map[string][]byte, len(names))
		g   errgroup.Group
	)
	for _, name := range names {
		f, ok := files[name]
		if !ok {
			continue
		}
		g.Go(func() error {
			data, err := readEntry(f)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxEntrySize {
		return nil, fmt.Errorf("read %s: entry too large", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

func safeName(name string) bool {
	clean := path.Clean(name)
	return clean != "." && clean != ".." && !path.IsAbs(clean) &&
		!strings.HasPrefix(clean, "../")
}
