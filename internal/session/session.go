// Package session composes panel framebuffers with a GameSense client and
// drives the register -> bind -> update lifecycle plus the heartbeat.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"gglcd/internal/framebuffer"
	"gglcd/internal/gamesense"
	appLog "gglcd/internal/log"
	"gglcd/internal/panel"
)

// Client is the part of *gamesense.Client a session uses.
type Client interface {
	SetDeveloper(name string)
	SetDisplayName(name string)
	Register(ctx context.Context) error
	Bind(ctx context.Context, variants []panel.Variant) error
	SendEvent(ctx context.Context, frames gamesense.Frames) error
	Heartbeat(ctx context.Context) error
	RemoveGame(ctx context.Context) error
}

var _ Client = (*gamesense.Client)(nil)

// State is where the session is in the register -> bind sequence. It is
// recorded for diagnostics only; requests are never refused because of it.
type State int32

const (
	Unregistered State = iota
	Registered
	Bound
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Registered:
		return "registered"
	case Bound:
		return "bound"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Frame is one flushed update as delivered to OnUpdate observers. Payloads
// are copies and may be kept.
type Frame struct {
	At       time.Time
	Payloads gamesense.Frames
}

// Session owns one framebuffer per managed panel and one client.
//
// Framebuffers are single-writer: draw into them from the goroutine that
// calls Update. The heartbeat loop never touches them.
type Session struct {
	client Client

	mu        sync.Mutex
	panels    map[panel.Variant]*framebuffer.Framebuffer
	observers []func(Frame)

	state atomic.Int32
	hb    heartbeat
}

// New builds a session for the given panels. With no variants every known
// panel gets a framebuffer.
func New(client Client, variants ...panel.Variant) (*Session, error) {
	if client == nil {
		return nil, fmt.Errorf("session: nil client")
	}
	if len(variants) == 0 {
		variants = panel.All()
	}

	s := &Session{
		client: client,
		panels: make(map[panel.Variant]*framebuffer.Framebuffer, len(variants)),
	}
	for _, v := range variants {
		if err := s.addLocked(v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewSingle is the entry point for callers that drive exactly one panel.
func NewSingle(client Client, v panel.Variant) (*Session, error) {
	return New(client, v)
}

// State returns the last protocol step that succeeded.
func (s *Session) State() State {
	return State(s.state.Load())
}

// SetDeveloper sets the developer shown in SteelSeries GG. Call before
// Register; afterwards it only affects a re-registration.
func (s *Session) SetDeveloper(name string) {
	s.client.SetDeveloper(name)
}

// SetDescription sets the human readable game name. Call before Register;
// afterwards it only affects a re-registration.
func (s *Session) SetDescription(text string) {
	s.client.SetDisplayName(text)
}

// Register posts the game metadata. Calling it again re-registers.
func (s *Session) Register(ctx context.Context) error {
	if err := s.client.Register(ctx); err != nil {
		return fmt.Errorf("session: register: %w", err)
	}
	if s.State() == Unregistered {
		s.state.Store(int32(Registered))
	}
	appLog.Info("game registered")
	return nil
}

// Bind declares a screen handler for every managed panel. It must be
// repeated after AddPanel or RemovePanel.
func (s *Session) Bind(ctx context.Context) error {
	if s.State() == Unregistered {
		appLog.Warn("binding before register", "state", s.State().String())
	}

	variants := s.Panels()
	if err := s.client.Bind(ctx, variants); err != nil {
		return fmt.Errorf("session: bind: %w", err)
	}
	s.state.Store(int32(Bound))
	appLog.Info("screen event bound", "panels", len(variants))
	return nil
}

// Panels lists the managed panels in panel.All order.
func (s *Session) Panels() []panel.Variant {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]panel.Variant, 0, len(s.panels))
	for _, v := range panel.All() {
		if _, ok := s.panels[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Framebuffer returns the buffer for a managed panel.
func (s *Session) Framebuffer(v panel.Variant) (*framebuffer.Framebuffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fb, ok := s.panels[v]
	return fb, ok
}

// AddPanel starts managing another panel with a blank framebuffer. The
// session drops back to Registered until the next Bind.
func (s *Session) AddPanel(v panel.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.panels[v]; ok {
		return nil
	}
	if err := s.addLocked(v); err != nil {
		return err
	}
	s.unbind()
	return nil
}

// RemovePanel stops managing a panel. The session drops back to Registered
// until the next Bind.
func (s *Session) RemovePanel(v panel.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.panels[v]; !ok {
		return
	}
	delete(s.panels, v)
	s.unbind()
}

func (s *Session) addLocked(v panel.Variant) error {
	if !v.Valid() {
		return fmt.Errorf("session: unknown panel %s", v)
	}
	fb, err := framebuffer.ForVariant(v)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	s.panels[v] = fb
	return nil
}

func (s *Session) unbind() {
	s.state.CompareAndSwap(int32(Bound), int32(Registered))
}

// OnUpdate registers fn to be called after every successful Update.
func (s *Session) OnUpdate(fn func(Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Update flushes every managed framebuffer in a single event.
func (s *Session) Update(ctx context.Context) error {
	if st := s.State(); st != Bound {
		appLog.Warn("sending update before bind", "state", st.String())
	}

	s.mu.Lock()
	frames := make(gamesense.Frames, len(s.panels))
	for v, fb := range s.panels {
		frames[v] = fb.Bytes()
	}
	observers := append([]func(Frame){}, s.observers...)
	s.mu.Unlock()

	if err := s.client.SendEvent(ctx, frames); err != nil {
		return fmt.Errorf("session: update: %w", err)
	}

	if len(observers) > 0 {
		frame := Frame{At: time.Now(), Payloads: make(gamesense.Frames, len(frames))}
		for v, data := range frames {
			frame.Payloads[v] = append([]byte(nil), data...)
		}
		for _, fn := range observers {
			fn(frame)
		}
	}
	return nil
}

// Remove stops the heartbeat and unregisters the game from the service.
func (s *Session) Remove(ctx context.Context) error {
	s.StopHeartbeat()
	if err := s.client.RemoveGame(ctx); err != nil {
		return fmt.Errorf("session: remove game: %w", err)
	}
	s.state.Store(int32(Unregistered))
	appLog.Info("game removed")
	return nil
}
