// Package web serves a local preview of what the panels are showing.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"strconv"
	"sync"
	"time"

	"gglcd/internal/config"
	"gglcd/internal/framebuffer"
	appLog "gglcd/internal/log"
	"gglcd/internal/panel"
	"gglcd/internal/session"
)

const (
	defaultScale = 4
	maxScale     = 16
)

// Session is what the preview needs from a display session.
type Session interface {
	Panels() []panel.Variant
	State() session.State
	HeartbeatActive() bool
	OnUpdate(fn func(session.Frame))
}

// Server exposes the last flushed frame of every panel over HTTP and
// websocket.
type Server struct {
	cfg  config.PreviewConfig
	sess Session
	mux  *http.ServeMux
	hub  *hub

	framesMu sync.RWMutex
	frames   map[panel.Variant][]byte
	frameID  uint64
	lastAt   time.Time
}

// NewServer builds the preview server and subscribes it to sess updates.
func NewServer(cfg config.PreviewConfig, sess Session) *Server {
	s := &Server{
		cfg:    cfg,
		sess:   sess,
		mux:    http.NewServeMux(),
		hub:    newHub(),
		frames: make(map[panel.Variant][]byte),
	}
	s.registerRoutes()
	sess.OnUpdate(s.Publish)
	return s
}

// Handler returns the root handler, wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting preview server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Publish records a flushed frame and queues it for websocket clients. It
// never waits on a client connection.
func (s *Server) Publish(f session.Frame) {
	s.framesMu.Lock()
	for v, data := range f.Payloads {
		s.frames[v] = data
	}
	s.frameID++
	s.lastAt = f.At
	id := s.frameID
	msg := s.frameMessageLocked()
	s.framesMu.Unlock()

	s.hub.broadcast(id, msg)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg.BasicAuth == nil {
		return false
	}
	// 빈 사용자명 또는 비밀번호가 설정된 경우에는 비활성화로 취급한다.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="gglcd", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/panels", s.handlePanels)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type panelDTO struct {
	Name       string `json:"name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	DeviceType string `json:"device_type"`
	HasFrame   bool   `json:"has_frame"`
}

type panelsResponse struct {
	Panels    []panelDTO `json:"panels"`
	State     string     `json:"state"`
	Heartbeat bool       `json:"heartbeat"`
	LastFrame *time.Time `json:"last_frame,omitempty"`
	Clients   int        `json:"clients"`
}

func (s *Server) handlePanels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.framesMu.RLock()
	resp := panelsResponse{
		State:     s.sess.State().String(),
		Heartbeat: s.sess.HeartbeatActive(),
		Clients:   s.hub.count(),
	}
	if !s.lastAt.IsZero() {
		at := s.lastAt
		resp.LastFrame = &at
	}
	for _, v := range s.sess.Panels() {
		d := v.Dimensions()
		_, ok := s.frames[v]
		resp.Panels = append(resp.Panels, panelDTO{
			Name:       v.String(),
			Width:      d.Width,
			Height:     d.Height,
			DeviceType: v.DeviceType(),
			HasFrame:   ok,
		})
	}
	s.framesMu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

// handlePreview renders the last flushed frame of one panel as a PNG.
//
// GET /preview.png?panel=keyboard&scale=4
//   - panel: defaults to the first managed panel
//   - scale: 1..16, default 4
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var v panel.Variant
	if name := q.Get("panel"); name != "" {
		pv, err := panel.ParseVariant(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		v = pv
	} else {
		managed := s.sess.Panels()
		if len(managed) == 0 {
			writeError(w, http.StatusNotFound, "no panels")
			return
		}
		v = managed[0]
	}

	scale := parseIntDefault(q.Get("scale"), defaultScale)
	if scale < 1 || scale > maxScale {
		writeError(w, http.StatusBadRequest, "scale must be 1-16")
		return
	}

	s.framesMu.RLock()
	data, ok := s.frames[v]
	s.framesMu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "no frame flushed for "+v.String())
		return
	}

	fb, err := framebuffer.FromBytes(v.Dimensions(), data)
	if err != nil {
		appLog.Error("preview frame invalid", err, "panel", v.String())
		writeError(w, http.StatusInternalServerError, "invalid frame")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, fb.Gray(scale)); err != nil {
		appLog.Error("preview encode failed", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.framesMu.RLock()
	id := s.frameID
	var msg wsFrame
	if id > 0 {
		msg = s.frameMessageLocked()
	}
	s.framesMu.RUnlock()

	var hello []byte
	if id > 0 {
		b, err := json.Marshal(msg)
		if err != nil {
			appLog.Error("encode websocket hello", err, "frame_id", id)
		} else {
			hello = b
		}
	}
	s.hub.handle(w, r, id, hello)
}

type wsPanel struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"data"`
}

type wsFrame struct {
	T       int64              `json:"t"`
	FrameID uint64             `json:"frame_id"`
	Panels  map[string]wsPanel `json:"panels"`
}

func (s *Server) frameMessageLocked() wsFrame {
	msg := wsFrame{
		T:       s.lastAt.UnixMilli(),
		FrameID: s.frameID,
		Panels:  make(map[string]wsPanel, len(s.frames)),
	}
	for v, data := range s.frames {
		d := v.Dimensions()
		msg.Panels[v.String()] = wsPanel{Width: d.Width, Height: d.Height, Data: data}
	}
	return msg
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
