//go:build js && wasm

// Curve WASM — the editor session running in the browser.
// Compiled with: GOOS=js GOARCH=wasm go build -o curve.wasm ./clients/wasm/
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"syscall/js"

	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/config"
	"github.com/xob0t/curve/pkg/editor"
	"github.com/xob0t/curve/pkg/geometry"
	"github.com/xob0t/curve/pkg/gesture"
	"github.com/xob0t/curve/pkg/layer"
	"github.com/xob0t/curve/pkg/notify"
	"github.com/xob0t/curve/pkg/project"
)

var (
	mu      sync.Mutex
	session *editor.Session
	toasts  *notify.Queue
)

func main() {
	fmt.Println("Curve WASM loaded")

	js.Global().Set("curveStart", js.FuncOf(start))
	js.Global().Set("curveState", js.FuncOf(state))
	js.Global().Set("curveToasts", js.FuncOf(activeToasts))
	js.Global().Set("curvePointer", js.FuncOf(pointer))
	js.Global().Set("curveCommand", js.FuncOf(command))
	js.Global().Set("curveImport", js.FuncOf(importImage))
	js.Global().Set("curveAddImageLayer", js.FuncOf(addImageLayer))
	js.Global().Set("curvePreview", js.FuncOf(preview))
	js.Global().Set("curveExport", js.FuncOf(export))
	js.Global().Set("curveSaveProject", js.FuncOf(saveProject))
	js.Global().Set("curveOpenProject", js.FuncOf(openProject))
	js.Global().Set("curveReady", js.ValueOf(true))

	// Block forever (WASM must not exit).
	select {}
}

func current() (*editor.Session, error) {
	mu.Lock()
	defer mu.Unlock()
	if session == nil {
		return nil, errors.New("call curveStart first")
	}
	return session, nil
}

// promise runs fn off the JS event loop and settles a Promise with its
// result. Blocking work (fetches, decoding) must go through here.
func promise(fn func() (any, error)) js.Value {
	ctor := js.Global().Get("Promise")
	var executor js.Func
	executor = js.FuncOf(func(this js.Value, args []js.Value) any {
		resolve, reject := args[0], args[1]
		go func() {
			defer executor.Release()
			v, err := fn()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolve.Invoke(v)
		}()
		return nil
	})
	return ctor.New(executor)
}

func stateJSON(s *editor.Session) (any, error) {
	data, err := json.Marshal(s.State())
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func bytesArg(v js.Value) []byte {
	buf := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(buf, v)
	return buf
}

func bytesValue(data []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(arr, data)
	return arr
}

// curveStart(configTOML?) — create the session, replacing any previous one.
func start(this js.Value, args []js.Value) any {
	cfg := config.Default()
	if len(args) > 0 && args[0].Type() == js.TypeString {
		var err error
		if cfg, err = config.Parse(args[0].String()); err != nil {
			return js.ValueOf("error: " + err.Error())
		}
	}
	q := notify.NewQueue()
	s, err := editor.New(editor.Options{Config: cfg, Notifier: notify.Multi{q, notify.Log{}}})
	if err != nil {
		return js.ValueOf("error: " + err.Error())
	}

	mu.Lock()
	if session != nil {
		session.Close()
	}
	session, toasts = s, q
	mu.Unlock()
	return js.ValueOf("ok")
}

// curveState() — JSON session state.
func state(this js.Value, args []js.Value) any {
	s, err := current()
	if err != nil {
		return js.ValueOf("error: " + err.Error())
	}
	v, err := stateJSON(s)
	if err != nil {
		return js.ValueOf("error: " + err.Error())
	}
	return js.ValueOf(v)
}

// curveToasts() — JSON list of active notifications.
func activeToasts(this js.Value, args []js.Value) any {
	mu.Lock()
	q := toasts
	mu.Unlock()
	if q == nil {
		return js.ValueOf("[]")
	}
	data, _ := json.Marshal(q.Active())
	return js.ValueOf(string(data))
}

// curvePointer(eventJSON) — feed a pointer event, returns JSON state.
func pointer(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf("error: need eventJSON")
	}
	s, err := current()
	if err != nil {
		return js.ValueOf("error: " + err.Error())
	}
	var ev gesture.Event
	if err := json.Unmarshal([]byte(args[0].String()), &ev); err != nil {
		return js.ValueOf("error: parse event: " + err.Error())
	}
	s.Pointer(ev)
	return state(this, nil)
}

// commandArgs is the union of every command's parameters.
type commandArgs struct {
	ID        int               `json:"id"`
	Name      string            `json:"name"`
	Prompt    string            `json:"prompt"`
	Factor    float64           `json:"factor"`
	Ratio     float64           `json:"ratio"`
	Degrees   float64           `json:"degrees"`
	Value     float64           `json:"value"`
	Corners   *geometry.Corners `json:"corners"`
	Direction layer.Direction   `json:"direction"`
	Patch     layer.Patch       `json:"patch"`
	Width     float64           `json:"width"`
	Height    float64           `json:"height"`
	DPR       float64           `json:"dpr"`
	Dark      bool              `json:"dark"`
}

var commands = map[string]func(ctx context.Context, s *editor.Session, a commandArgs) error{
	"viewport": func(_ context.Context, s *editor.Session, a commandArgs) error {
		if err := s.SetViewport(geometry.Size{W: a.Width, H: a.Height}, a.DPR); err != nil {
			return err
		}
		s.SetDark(a.Dark)
		return nil
	},
	"undo":       func(ctx context.Context, s *editor.Session, _ commandArgs) error { return s.Undo(ctx) },
	"redo":       func(ctx context.Context, s *editor.Session, _ commandArgs) error { return s.Redo(ctx) },
	"openSheet":  func(_ context.Context, s *editor.Session, a commandArgs) error { s.OpenSheet(a.Name); return nil },
	"closeSheet": func(_ context.Context, s *editor.Session, _ commandArgs) error { s.CloseSheet(); return nil },

	"addText": func(_ context.Context, s *editor.Session, _ commandArgs) error {
		_, err := s.AddTextLayer()
		return err
	},
	"updateLayer": func(_ context.Context, s *editor.Session, a commandArgs) error { return s.UpdateLayer(a.ID, a.Patch) },
	"deleteLayer": func(_ context.Context, s *editor.Session, a commandArgs) error { return s.DeleteLayer(a.ID) },
	"duplicateLayer": func(_ context.Context, s *editor.Session, a commandArgs) error {
		_, err := s.DuplicateLayer(a.ID)
		return err
	},
	"moveLayer": func(_ context.Context, s *editor.Session, a commandArgs) error {
		_, err := s.ReorderLayer(a.ID, a.Direction)
		return err
	},
	"selectLayer": func(_ context.Context, s *editor.Session, a commandArgs) error { return s.SelectLayer(a.ID) },
	"editText":    func(_ context.Context, s *editor.Session, a commandArgs) error { return s.EditText(a.ID) },

	"radius": func(_ context.Context, s *editor.Session, a commandArgs) error {
		if a.Corners != nil {
			return s.SetCornerRadii(*a.Corners)
		}
		return s.SetRadius(a.Value)
	},
	"resetTransform": func(_ context.Context, s *editor.Session, _ commandArgs) error { return s.ResetTransform() },

	"cropStart":      func(_ context.Context, s *editor.Session, _ commandArgs) error { return s.StartCrop() },
	"cropAspect":     func(_ context.Context, s *editor.Session, a commandArgs) error { return s.SetAspect(a.Ratio) },
	"cropStraighten": func(_ context.Context, s *editor.Session, a commandArgs) error { return s.SetStraighten(a.Degrees) },
	"cropGrid":       func(_ context.Context, s *editor.Session, _ commandArgs) error { s.ToggleGrid(); return nil },
	"cropApply":      func(_ context.Context, s *editor.Session, _ commandArgs) error { return s.ApplyCrop() },
	"cropCancel":     func(_ context.Context, s *editor.Session, _ commandArgs) error { s.CancelCrop(); return nil },

	"fillStart":  func(_ context.Context, s *editor.Session, _ commandArgs) error { return s.StartFill() },
	"fillSubmit": func(ctx context.Context, s *editor.Session, a commandArgs) error { return s.SubmitFill(ctx, a.Prompt) },
	"fillCancel": func(_ context.Context, s *editor.Session, _ commandArgs) error { s.CancelFill(); return nil },

	"generate":         func(ctx context.Context, s *editor.Session, a commandArgs) error { return s.Generate(ctx, a.Prompt) },
	"enhance":          func(ctx context.Context, s *editor.Session, _ commandArgs) error { return s.Enhance(ctx) },
	"upscale":          func(ctx context.Context, s *editor.Session, a commandArgs) error { return s.Upscale(ctx, a.Factor) },
	"removeBackground": func(ctx context.Context, s *editor.Session, _ commandArgs) error { return s.RemoveBackground(ctx) },
	"expand": func(ctx context.Context, s *editor.Session, a commandArgs) error {
		return s.Expand(ctx, a.Factor, a.Prompt)
	},
}

// curveCommand(name, argsJSON) — run an editing command, resolves to JSON
// state.
func command(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf("error: need name")
	}
	name := args[0].String()
	raw := "{}"
	if len(args) > 1 && args[1].Type() == js.TypeString {
		raw = args[1].String()
	}
	return promise(func() (any, error) {
		s, err := current()
		if err != nil {
			return nil, err
		}
		fn, ok := commands[name]
		if !ok {
			return nil, fmt.Errorf("unknown command %q", name)
		}
		var a commandArgs
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("parse args: %w", err)
		}
		if err := fn(context.Background(), s, a); err != nil {
			log.Printf("wasm: %s: %v", name, err)
			return nil, err
		}
		return stateJSON(s)
	})
}

// curveImport(uint8Array) — load an image as the base, resolves to JSON state.
func importImage(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf("error: need data")
	}
	data := bytesArg(args[0])
	return promise(func() (any, error) {
		s, err := current()
		if err != nil {
			return nil, err
		}
		if err := s.Import(context.Background(), data); err != nil {
			return nil, err
		}
		return stateJSON(s)
	})
}

// curveAddImageLayer(uint8Array) — add an image layer.
func addImageLayer(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf("error: need data")
	}
	data := bytesArg(args[0])
	return promise(func() (any, error) {
		s, err := current()
		if err != nil {
			return nil, err
		}
		if _, err := s.AddImageLayer(context.Background(), data); err != nil {
			return nil, err
		}
		return stateJSON(s)
	})
}

// curvePreview() — {width, height, data: Uint8ClampedArray} ready for
// putImageData.
func preview(this js.Value, args []js.Value) any {
	s, err := current()
	if err != nil {
		return js.ValueOf("error: " + err.Error())
	}
	img, err := s.Preview()
	if err != nil {
		return js.ValueOf("error: " + err.Error())
	}
	b := img.Bounds()
	arr := js.Global().Get("Uint8ClampedArray").New(len(img.Pix))
	js.CopyBytesToJS(arr, img.Pix)
	out := js.Global().Get("Object").New()
	out.Set("width", b.Dx())
	out.Set("height", b.Dy())
	out.Set("data", arr)
	return out
}

// curveExport(format, quality) — resolves to {name, mime, data: Uint8Array}.
func export(this js.Value, args []js.Value) any {
	format, quality := "png", "medium"
	if len(args) > 0 {
		format = args[0].String()
	}
	if len(args) > 1 {
		quality = args[1].String()
	}
	return promise(func() (any, error) {
		s, err := current()
		if err != nil {
			return nil, err
		}
		f, err := codec.ParseFormat(format)
		if err != nil {
			return nil, err
		}
		q, err := codec.ParseQuality(quality)
		if err != nil {
			return nil, err
		}
		data, name, err := s.Export(context.Background(), f, q)
		if err != nil {
			return nil, err
		}
		out := js.Global().Get("Object").New()
		out.Set("name", name)
		out.Set("mime", f.MIME())
		out.Set("data", bytesValue(data))
		return out, nil
	})
}

// curveSaveProject() — resolves to the .curve bundle as a Uint8Array.
func saveProject(this js.Value, args []js.Value) any {
	return promise(func() (any, error) {
		s, err := current()
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := project.Save(&buf, s.Document()); err != nil {
			return nil, err
		}
		return bytesValue(buf.Bytes()), nil
	})
}

// curveOpenProject(uint8Array) — load a .curve bundle, resolves to JSON state.
func openProject(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf("error: need data")
	}
	data := bytesArg(args[0])
	return promise(func() (any, error) {
		s, err := current()
		if err != nil {
			return nil, err
		}
		doc, warnings, err := project.Load(data)
		if err != nil {
			return nil, err
		}
		for _, w := range warnings {
			log.Printf("project: %s", w)
		}
		if err := s.Load(context.Background(), doc); err != nil {
			return nil, err
		}
		return stateJSON(s)
	})
}
