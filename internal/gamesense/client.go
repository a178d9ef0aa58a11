// Package gamesense talks to the SteelSeries GameSense service that runs on
// the local machine and forwards frames to the device LCDs.
//
// The client is a thin facade: it builds the JSON bodies for registration,
// event binding, frame events and heartbeats and POSTs them. It does not
// track which calls have been made; ordering is the caller's job.
package gamesense

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	appLog "gglcd/internal/log"
	"gglcd/internal/panel"
)

// DefaultTimeout bounds each request when no http.Client is supplied.
const DefaultTimeout = 5 * time.Second

// maxErrorBody caps how much of a rejected response is kept for diagnostics.
const maxErrorBody = 4 << 10

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gamesense: %s rejected with %d: %s", e.Path, e.StatusCode, e.Body)
}

// TransportError is a failure to reach the service at all (refused,
// timeout, reset).
type TransportError struct {
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gamesense: %s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err came from the network rather than from
// the service rejecting a request.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Option configures a Client.
type Option func(*options)

type options struct {
	address       string
	corePropsPath string
	httpClient    *http.Client
	timeout       time.Duration
}

// WithAddress skips coreProps discovery and talks to host:port directly.
func WithAddress(addr string) Option {
	return func(o *options) {
		o.address = addr
	}
}

// WithCorePropsPath reads the endpoint from a specific coreProps.json.
func WithCorePropsPath(path string) Option {
	return func(o *options) {
		o.corePropsPath = path
	}
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// Client issues GameSense requests for one identity. The endpoint and HTTP
// client are fixed at construction and safe to share between goroutines.
type Client struct {
	http    *http.Client
	baseURL string

	mu sync.RWMutex
	id Identity
}

// New resolves the service endpoint and returns a ready client. Endpoint
// discovery failures are returned as *ConfigError.
func New(id Identity, opts ...Option) (*Client, error) {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	if id.Game == "" {
		return nil, errors.New("gamesense: game name is empty")
	}

	addr := o.address
	if addr == "" {
		path := o.corePropsPath
		if path == "" {
			p, err := DefaultCorePropsPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		a, err := ResolveAddress(path)
		if err != nil {
			return nil, err
		}
		addr = a
	}

	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: o.timeout}
	}

	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	appLog.Info("gamesense endpoint resolved", "address", addr, "game", id.Game)

	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(base, "/"),
		id:      id,
	}, nil
}

// Identity returns a copy of the current identity.
func (c *Client) Identity() Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// SetDeveloper changes the developer shown in SteelSeries GG. It takes
// effect on the next Register.
func (c *Client) SetDeveloper(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id.Developer = name
}

// SetDisplayName changes the human readable game name. It takes effect on
// the next Register.
func (c *Client) SetDisplayName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id.DisplayName = name
}

// BaseURL is the resolved service root, e.g. "http://127.0.0.1:51234".
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register posts the game metadata. Re-registering is allowed and updates
// the metadata.
func (c *Client) Register(ctx context.Context) error {
	id := c.Identity()
	return c.post(ctx, pathMetadata, metadataRequest{
		Game:                id.Game,
		Event:               id.event(),
		ValueOptional:       true,
		GameDisplayName:     id.DisplayName,
		Developer:           id.Developer,
		DeinitializeTimerMs: id.DeinitializeTimerMs,
	})
}

// Bind declares one screen handler per variant with an all-off initial
// image.
func (c *Client) Bind(ctx context.Context, variants []panel.Variant) error {
	if len(variants) == 0 {
		return errors.New("gamesense: bind needs at least one panel")
	}
	return c.post(ctx, pathBind, newBindRequest(c.Identity(), variants))
}

// SendEvent pushes one frame holding every panel's bytes.
func (c *Client) SendEvent(ctx context.Context, frames Frames) error {
	return c.post(ctx, pathEvent, newEventRequest(c.Identity(), frames))
}

// Heartbeat keeps the game alive on the service without sending a frame.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.post(ctx, pathHeartbeat, gameRequest{Game: c.Identity().Game})
}

// RemoveGame unregisters the game and all of its bound events.
func (c *Client) RemoveGame(ctx context.Context) error {
	return c.post(ctx, pathRemoveGame, gameRequest{Game: c.Identity().Game})
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gamesense: encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("gamesense: build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	appLog.Debug("gamesense request ok", "path", path, "status", resp.StatusCode, "bytes", len(data))
	return nil
}
