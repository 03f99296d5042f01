// validator.go — Check project.json against the files in a bundle.
package project

import (
	"archive/zip"
	"fmt"
	"path"

	"github.com/xob0t/curve/pkg/layer"
)

// Validate checks that the manifest's layers are well formed and that every
// image it names is present. Returns warnings (never fatal errors); Load
// skips the offending layers.
func Validate(m *Manifest, files map[string]*zip.File) []string {
	if m == nil {
		return nil
	}

	var warnings []string
	if m.Version > Version {
		warnings = append(warnings, fmt.Sprintf("bundle version %d is newer than %d — some data may be ignored", m.Version, Version))
	}
	for i, e := range m.Layers {
		switch e.Kind {
		case layer.KindImage:
			if e.Image == nil {
				warnings = append(warnings, fmt.Sprintf("layer %d has no image data — skipped", i))
				continue
			}
			if _, ok := files[path.Clean(e.Image.File)]; !ok {
				warnings = append(warnings, fmt.Sprintf("layer %d references missing file %q — skipped", i, e.Image.File))
			}
		case layer.KindText:
			if e.Text == nil {
				warnings = append(warnings, fmt.Sprintf("layer %d has no text data — skipped", i))
			}
		default:
			warnings = append(warnings, fmt.Sprintf("layer %d has unknown kind %q — skipped", i, e.Kind))
		}
	}
	return warnings
}
