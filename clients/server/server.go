// Package server provides the Curve web editor and its HTTP API.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xob0t/curve/pkg/ai"
	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/config"
	"github.com/xob0t/curve/pkg/editor"
	"github.com/xob0t/curve/pkg/geometry"
	"github.com/xob0t/curve/pkg/gesture"
	"github.com/xob0t/curve/pkg/layer"
	"github.com/xob0t/curve/pkg/notify"
	"github.com/xob0t/curve/pkg/project"
	"github.com/xob0t/curve/pkg/render"
)

//go:embed web/*
var webContent embed.FS

const (
	// IdleTimeout is how long an untouched session survives.
	IdleTimeout = time.Hour
)

// ── Session registry ──

type entry struct {
	session *editor.Session
	toasts  *notify.Queue
	used    time.Time
}

type registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*entry), now: time.Now}
}

func (rg *registry) add(e *entry) string {
	id := uuid.NewString()
	rg.mu.Lock()
	e.used = rg.now()
	rg.sessions[id] = e
	rg.mu.Unlock()
	return id
}

func (rg *registry) get(id string) (*entry, bool) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	e, ok := rg.sessions[id]
	if ok {
		e.used = rg.now()
	}
	return e, ok
}

func (rg *registry) remove(id string) bool {
	rg.mu.Lock()
	e, ok := rg.sessions[id]
	delete(rg.sessions, id)
	rg.mu.Unlock()
	if ok {
		e.session.Close()
	}
	return ok
}

// sweep closes sessions idle for longer than IdleTimeout and returns how
// many it removed.
func (rg *registry) sweep() int {
	rg.mu.Lock()
	cutoff := rg.now().Add(-IdleTimeout)
	var stale []*entry
	for id, e := range rg.sessions {
		if e.used.Before(cutoff) {
			stale = append(stale, e)
			delete(rg.sessions, id)
		}
	}
	rg.mu.Unlock()
	for _, e := range stale {
		e.session.Close()
	}
	return len(stale)
}

func (rg *registry) closeAll() {
	rg.mu.Lock()
	all := rg.sessions
	rg.sessions = make(map[string]*entry)
	rg.mu.Unlock()
	for _, e := range all {
		e.session.Close()
	}
}

// ── Server ──

// Server hosts editing sessions for browser clients.
type Server struct {
	cfg      config.Config
	fonts    *render.FontManager
	ai       ai.Service
	sessions *registry
	mux      *http.ServeMux
}

// New builds a server. Fonts and the AI service are shared by all sessions.
func New(cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fonts, err := render.NewFontManager(cfg.Canvas.Font)
	if err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}
	s := &Server{
		cfg:      cfg,
		fonts:    fonts,
		ai:       ai.New(cfg.AI, fonts),
		sessions: newRegistry(),
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Close ends every session.
func (s *Server) Close() { s.sessions.closeAll() }

func (s *Server) routes() error {
	webFS, err := fs.Sub(webContent, "web")
	if err != nil {
		return fmt.Errorf("embed web: %w", err)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sessions", s.handleCreate)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)

	const p = "/api/sessions/{id}"
	mux.HandleFunc("GET "+p+"/state", s.with(s.handleState))
	mux.HandleFunc("GET "+p+"/toasts", s.with(s.handleToasts))
	mux.HandleFunc("POST "+p+"/viewport", s.with(s.handleViewport))
	mux.HandleFunc("POST "+p+"/import", s.with(s.handleImport))
	mux.HandleFunc("POST "+p+"/pointer", s.with(s.handlePointer))
	mux.HandleFunc("POST "+p+"/sheet", s.with(s.handleOpenSheet))
	mux.HandleFunc("DELETE "+p+"/sheet", s.with(s.handleCloseSheet))
	mux.HandleFunc("POST "+p+"/undo", s.with(s.handleUndo))
	mux.HandleFunc("POST "+p+"/redo", s.with(s.handleRedo))

	mux.HandleFunc("POST "+p+"/layers/image", s.with(s.handleAddImageLayer))
	mux.HandleFunc("POST "+p+"/layers/text", s.with(s.handleAddTextLayer))
	mux.HandleFunc("PATCH "+p+"/layers/{lid}", s.with(s.handleUpdateLayer))
	mux.HandleFunc("DELETE "+p+"/layers/{lid}", s.with(s.handleDeleteLayer))
	mux.HandleFunc("POST "+p+"/layers/{lid}/duplicate", s.with(s.handleDuplicateLayer))
	mux.HandleFunc("POST "+p+"/layers/{lid}/move", s.with(s.handleMoveLayer))
	mux.HandleFunc("POST "+p+"/layers/{lid}/select", s.with(s.handleSelectLayer))
	mux.HandleFunc("POST "+p+"/layers/{lid}/edit", s.with(s.handleEditText))

	mux.HandleFunc("POST "+p+"/radius", s.with(s.handleRadius))
	mux.HandleFunc("POST "+p+"/transform/reset", s.with(s.handleResetTransform))

	mux.HandleFunc("POST "+p+"/crop/{action}", s.with(s.handleCrop))
	mux.HandleFunc("POST "+p+"/fill/{action}", s.with(s.handleFill))
	mux.HandleFunc("POST "+p+"/ai/{op}", s.with(s.handleAI))

	mux.HandleFunc("GET "+p+"/preview.png", s.with(s.handlePreview))
	mux.HandleFunc("GET "+p+"/export", s.with(s.handleExport))
	mux.HandleFunc("GET "+p+"/project", s.with(s.handleSaveProject))
	mux.HandleFunc("POST "+p+"/project", s.with(s.handleOpenProject))

	// Static files.
	mux.Handle("/", http.FileServer(http.FS(webFS)))

	s.mux = mux
	return nil
}

// Run serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	s, err := New(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	hs := &http.Server{Addr: cfg.Server.Addr, Handler: s.Handler()}
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()

	url := "http://localhost" + cfg.Server.Addr
	if host, _, ok := strings.Cut(cfg.Server.Addr, ":"); ok && host != "" {
		url = "http://" + cfg.Server.Addr
	}
	log.Printf("Curve editor → %s", url)
	if cfg.Server.OpenBrowser {
		go openBrowser(url)
	}

	tick := time.NewTicker(IdleTimeout / 4)
	defer tick.Stop()
	for {
		select {
		case err := <-errc:
			return err
		case <-tick.C:
			if n := s.sessions.sweep(); n > 0 {
				log.Printf("server: closed %d idle session(s)", n)
			}
		case <-ctx.Done():
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdown)
		}
	}
}

// ── Sessions ──

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	toasts := notify.NewQueue()
	sess, err := editor.New(editor.Options{
		Config:   s.cfg,
		Fonts:    s.fonts,
		AI:       s.ai,
		Notifier: notify.Multi{toasts, notify.Log{}},
	})
	if err != nil {
		httpError(w, err)
		return
	}
	id := s.sessions.add(&entry{session: sess, toasts: toasts})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{"id": id, "state": sess.State()})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(r.PathValue("id")) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type handler func(w http.ResponseWriter, r *http.Request, e *entry)

// with resolves the {id} path segment to a session.
func (s *Server) with(h handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := s.sessions.get(r.PathValue("id"))
		if !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		h(w, r, e)
	}
}

// done answers a mutation with the resulting state, or the error.
func done(w http.ResponseWriter, e *entry, err error) {
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, e.session.State())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, e *entry) {
	writeJSON(w, e.session.State())
}

func (s *Server) handleToasts(w http.ResponseWriter, r *http.Request, e *entry) {
	writeJSON(w, e.toasts.Active())
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request, e *entry) {
	var req struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
		DPR    float64 `json:"dpr"`
		Dark   *bool   `json:"dark"`
	}
	if !decode(w, r, &req) {
		return
	}
	err := e.session.SetViewport(geometry.Size{W: req.Width, H: req.Height}, req.DPR)
	if err == nil && req.Dark != nil {
		e.session.SetDark(*req.Dark)
	}
	done(w, e, err)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, e *entry) {
	data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	done(w, e, e.session.Import(r.Context(), data))
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request, e *entry) {
	var ev gesture.Event
	if !decode(w, r, &ev) {
		return
	}
	e.session.Pointer(ev)
	done(w, e, nil)
}

func (s *Server) handleOpenSheet(w http.ResponseWriter, r *http.Request, e *entry) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	e.session.OpenSheet(req.Name)
	done(w, e, nil)
}

func (s *Server) handleCloseSheet(w http.ResponseWriter, r *http.Request, e *entry) {
	e.session.CloseSheet()
	done(w, e, nil)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request, e *entry) {
	done(w, e, e.session.Undo(r.Context()))
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request, e *entry) {
	done(w, e, e.session.Redo(r.Context()))
}

// ── Layers ──

func layerID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("lid"))
	if err != nil || id <= 0 {
		http.Error(w, "invalid layer id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) handleAddImageLayer(w http.ResponseWriter, r *http.Request, e *entry) {
	data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	_, err := e.session.AddImageLayer(r.Context(), data)
	done(w, e, err)
}

func (s *Server) handleAddTextLayer(w http.ResponseWriter, r *http.Request, e *entry) {
	_, err := e.session.AddTextLayer()
	done(w, e, err)
}

func (s *Server) handleUpdateLayer(w http.ResponseWriter, r *http.Request, e *entry) {
	id, ok := layerID(w, r)
	if !ok {
		return
	}
	var p layer.Patch
	if !decode(w, r, &p) {
		return
	}
	done(w, e, e.session.UpdateLayer(id, p))
}

func (s *Server) handleDeleteLayer(w http.ResponseWriter, r *http.Request, e *entry) {
	id, ok := layerID(w, r)
	if !ok {
		return
	}
	done(w, e, e.session.DeleteLayer(id))
}

func (s *Server) handleDuplicateLayer(w http.ResponseWriter, r *http.Request, e *entry) {
	id, ok := layerID(w, r)
	if !ok {
		return
	}
	_, err := e.session.DuplicateLayer(id)
	done(w, e, err)
}

func (s *Server) handleMoveLayer(w http.ResponseWriter, r *http.Request, e *entry) {
	id, ok := layerID(w, r)
	if !ok {
		return
	}
	var req struct {
		Direction layer.Direction `json:"direction"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Direction != layer.Up && req.Direction != layer.Down {
		http.Error(w, `direction must be "up" or "down"`, http.StatusBadRequest)
		return
	}
	_, err := e.session.ReorderLayer(id, req.Direction)
	done(w, e, err)
}

func (s *Server) handleSelectLayer(w http.ResponseWriter, r *http.Request, e *entry) {
	id, ok := layerID(w, r)
	if !ok {
		return
	}
	done(w, e, e.session.SelectLayer(id))
}

func (s *Server) handleEditText(w http.ResponseWriter, r *http.Request, e *entry) {
	id, ok := layerID(w, r)
	if !ok {
		return
	}
	done(w, e, e.session.EditText(id))
}

// ── Image properties ──

func (s *Server) handleRadius(w http.ResponseWriter, r *http.Request, e *entry) {
	var req struct {
		Value   *float64          `json:"value"`
		Corners *geometry.Corners `json:"corners"`
	}
	if !decode(w, r, &req) {
		return
	}
	switch {
	case req.Corners != nil:
		done(w, e, e.session.SetCornerRadii(*req.Corners))
	case req.Value != nil:
		done(w, e, e.session.SetRadius(*req.Value))
	default:
		http.Error(w, "value or corners required", http.StatusBadRequest)
	}
}

func (s *Server) handleResetTransform(w http.ResponseWriter, r *http.Request, e *entry) {
	done(w, e, e.session.ResetTransform())
}

// ── Crop, fill, AI ──

func (s *Server) handleCrop(w http.ResponseWriter, r *http.Request, e *entry) {
	sess := e.session
	switch r.PathValue("action") {
	case "start":
		done(w, e, sess.StartCrop())
	case "aspect":
		var req struct {
			Ratio float64 `json:"ratio"`
		}
		if decode(w, r, &req) {
			done(w, e, sess.SetAspect(req.Ratio))
		}
	case "straighten":
		var req struct {
			Degrees float64 `json:"degrees"`
		}
		if decode(w, r, &req) {
			done(w, e, sess.SetStraighten(req.Degrees))
		}
	case "grid":
		sess.ToggleGrid()
		done(w, e, nil)
	case "apply":
		done(w, e, sess.ApplyCrop())
	case "cancel":
		sess.CancelCrop()
		done(w, e, nil)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request, e *entry) {
	sess := e.session
	switch r.PathValue("action") {
	case "start":
		done(w, e, sess.StartFill())
	case "submit":
		var req struct {
			Prompt string `json:"prompt"`
		}
		if decode(w, r, &req) {
			done(w, e, sess.SubmitFill(r.Context(), req.Prompt))
		}
	case "cancel":
		sess.CancelFill()
		done(w, e, nil)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleAI(w http.ResponseWriter, r *http.Request, e *entry) {
	var req struct {
		Prompt string  `json:"prompt"`
		Factor float64 `json:"factor"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	ctx, sess := r.Context(), e.session
	var err error
	switch ai.Op(r.PathValue("op")) {
	case ai.OpGenerate:
		err = sess.Generate(ctx, req.Prompt)
	case ai.OpEnhance:
		err = sess.Enhance(ctx)
	case ai.OpUpscale:
		err = sess.Upscale(ctx, orDefault(req.Factor, 2))
	case ai.OpRemoveBackground:
		err = sess.RemoveBackground(ctx)
	case ai.OpExpand:
		err = sess.Expand(ctx, orDefault(req.Factor, 1.5), req.Prompt)
	default:
		http.NotFound(w, r)
		return
	}
	done(w, e, err)
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// ── Output ──

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, e *entry) {
	img, err := e.session.Preview()
	if err != nil {
		httpError(w, err)
		return
	}
	data, err := codec.EncodePNG(img)
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, e *entry) {
	q := r.URL.Query()
	f, err := codec.ParseFormat(orString(q.Get("format"), s.cfg.Export.Format))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	quality, err := codec.ParseQuality(orString(q.Get("quality"), s.cfg.Export.Quality))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, name, err := e.session.Export(r.Context(), f, quality)
	if err != nil {
		httpError(w, err)
		return
	}
	attach(w, f.MIME(), name, data)
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request, e *entry) {
	var buf bytes.Buffer
	if err := project.Save(&buf, e.session.Document()); err != nil {
		httpError(w, err)
		return
	}
	attach(w, "application/zip", "curve-project"+project.Ext, buf.Bytes())
}

func (s *Server) handleOpenProject(w http.ResponseWriter, r *http.Request, e *entry) {
	data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	doc, warnings, err := project.Load(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, msg := range warnings {
		log.Printf("project: %s", msg)
	}
	if err := e.session.Load(r.Context(), doc); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"state": e.session.State(), "warnings": warnings})
}

// ── Helpers ──

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: write response: %v", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		http.Error(w, "decode request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// readUpload returns the "file" field of a multipart form, or the raw body.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	maxUpload := s.cfg.Limits.MaxUpload
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			http.Error(w, "parse upload: "+err.Error(), http.StatusBadRequest)
			return nil, false
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "no file", http.StatusBadRequest)
			return nil, false
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
			return nil, false
		}
		return data, true
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if len(data) == 0 {
		http.Error(w, "empty upload", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

func attach(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Write(data)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, layer.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrBusy), errors.Is(err, codec.ErrStale):
		return http.StatusConflict
	case errors.Is(err, editor.ErrNoImage), errors.Is(err, editor.ErrMode),
		errors.Is(err, editor.ErrEmptyMask), errors.Is(err, layer.ErrLocked),
		errors.Is(err, layer.ErrKind):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ai.ErrRequest), errors.Is(err, ai.ErrStatus), errors.Is(err, ai.ErrEmptyResult):
		return http.StatusBadGateway
	case errors.Is(err, codec.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled):
		return 499
	}
	return http.StatusBadRequest
}

func httpError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Printf("server: %v", err)
	}
	http.Error(w, err.Error(), code)
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("server: open browser: %v", err)
	}
}
