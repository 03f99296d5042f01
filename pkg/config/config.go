// Package config loads editor settings from defaults, an optional TOML file
// and CURVE_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/geometry"
	"github.com/xob0t/curve/pkg/history"
	"github.com/xob0t/curve/pkg/mask"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "curve.toml"

type Config struct {
	Server ServerConfig `toml:"server"`
	Canvas CanvasConfig `toml:"canvas"`
	Editor EditorConfig `toml:"editor"`
	Export ExportConfig `toml:"export"`
	AI     AIConfig     `toml:"ai"`
	Limits LimitsConfig `toml:"limits"`
}

type ServerConfig struct {
	Addr        string `toml:"addr"`
	OpenBrowser bool   `toml:"open_browser"`
}

// CanvasConfig is the display surface a session renders to.
type CanvasConfig struct {
	Width        float64 `toml:"width"`
	Height       float64 `toml:"height"`
	DPR          float64 `toml:"dpr"`
	Dark         bool    `toml:"dark"`
	Checkerboard bool    `toml:"checkerboard"`
	Font         string  `toml:"font"`
}

// Size returns the canvas size.
func (c CanvasConfig) Size() geometry.Size {
	return geometry.Size{W: c.Width, H: c.Height}
}

type EditorConfig struct {
	HistoryDepth  int     `toml:"history_depth"`
	SnapThreshold float64 `toml:"snap_threshold"`
	HandleRadius  float64 `toml:"handle_radius"`
	BrushWidth    float64 `toml:"brush_width"`
}

type ExportConfig struct {
	Format  string `toml:"format"`
	Quality string `toml:"quality"`
	Dir     string `toml:"dir"`
}

// AIConfig points at the image service. An empty Key selects the offline
// mock.
type AIConfig struct {
	BaseURL string        `toml:"base_url"`
	Key     string        `toml:"key"`
	Timeout time.Duration `toml:"timeout"`
	Mock    bool          `toml:"mock"`
	// MaxResponse caps the bytes read from one response.
	MaxResponse int64 `toml:"max_response"`
}

// LimitsConfig bounds untrusted input. MaxUpload is in bytes.
type LimitsConfig struct {
	MaxPixels int   `toml:"max_pixels"`
	MaxUpload int64 `toml:"max_upload"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Canvas: CanvasConfig{Width: 390, Height: 600, DPR: 1, Checkerboard: true},
		Editor: EditorConfig{
			HistoryDepth:  history.DefaultDepth,
			SnapThreshold: geometry.SnapThreshold,
			HandleRadius:  geometry.HandleRadius,
			BrushWidth:    mask.BrushWidth,
		},
		Export: ExportConfig{Format: "png", Quality: "medium", Dir: "."},
		AI:     AIConfig{BaseURL: "https://api.curve.local/v1", Timeout: 60 * time.Second, MaxResponse: 50 << 20},
		Limits: LimitsConfig{MaxPixels: codec.DefaultMaxPixels, MaxUpload: 50 << 20},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error when path is the default.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes TOML text over the defaults. Environment variables are not
// consulted.
func Parse(text string) (Config, error) {
	cfg := Default()
	if _, err := toml.Decode(text, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"CURVE_ADDR":        &cfg.Server.Addr,
		"CURVE_FONT":        &cfg.Canvas.Font,
		"CURVE_AI_URL":      &cfg.AI.BaseURL,
		"CURVE_AI_KEY":      &cfg.AI.Key,
		"CURVE_EXPORT_DIR":  &cfg.Export.Dir,
		"CURVE_EXPORT_FMT":  &cfg.Export.Format,
		"CURVE_EXPORT_QUAL": &cfg.Export.Quality,
	}
	for k, dst := range str {
		if v, ok := lookup(k); ok {
			*dst = v
		}
	}

	flags := map[string]*bool{
		"CURVE_DARK":    &cfg.Canvas.Dark,
		"CURVE_AI_MOCK": &cfg.AI.Mock,
	}
	for k, dst := range flags {
		if v, ok := lookup(k); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("parse %s: %w", k, err)
			}
			*dst = b
		}
	}

	if v, ok := lookup("CURVE_AI_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CURVE_AI_TIMEOUT: %w", err)
		}
		cfg.AI.Timeout = d
	}
	return nil
}

// Validate rejects settings the editor cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Canvas.Width <= 0 || c.Canvas.Height <= 0:
		return fmt.Errorf("canvas size must be positive, got %gx%g", c.Canvas.Width, c.Canvas.Height)
	case c.Canvas.DPR <= 0:
		return fmt.Errorf("canvas dpr must be positive, got %g", c.Canvas.DPR)
	case c.Editor.HistoryDepth < 1:
		return fmt.Errorf("history depth must be at least 1, got %d", c.Editor.HistoryDepth)
	case c.AI.Timeout <= 0:
		return fmt.Errorf("ai timeout must be positive, got %s", c.AI.Timeout)
	case c.Limits.MaxPixels < 1:
		return fmt.Errorf("max pixels must be positive, got %d", c.Limits.MaxPixels)
	case c.Limits.MaxUpload < 1:
		return fmt.Errorf("max upload must be positive, got %d", c.Limits.MaxUpload)
	}
	return nil
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes cfg to path.
func Save(path string, cfg Config) error {
	data, err := Encode(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
