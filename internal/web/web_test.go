package web

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gglcd/internal/config"
	"gglcd/internal/gamesense"
	"gglcd/internal/panel"
	"gglcd/internal/session"
)

type fakeSession struct {
	panels   []panel.Variant
	onUpdate func(session.Frame)
}

func (f *fakeSession) Panels() []panel.Variant         { return f.panels }
func (f *fakeSession) State() session.State            { return session.Bound }
func (f *fakeSession) HeartbeatActive() bool           { return true }
func (f *fakeSession) OnUpdate(fn func(session.Frame)) { f.onUpdate = fn }

func (f *fakeSession) flush(frames gamesense.Frames) {
	f.onUpdate(session.Frame{At: time.Now(), Payloads: frames})
}

func newTestServer(t *testing.T, cfg config.PreviewConfig) (*httptest.Server, *fakeSession) {
	t.Helper()
	fs := &fakeSession{panels: []panel.Variant{panel.Keyboard, panel.Mouse}}
	s := NewServer(cfg, fs)
	require.NotNil(t, fs.onUpdate, "server subscribes to updates")

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(s.hub.closeAll)
	return ts, fs
}

func keyboardFrame() []byte {
	data := make([]byte, panel.Keyboard.Dimensions().ByteLen())
	data[0] = 0x80
	return data
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, config.PreviewConfig{})
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPanels(t *testing.T) {
	ts, fs := newTestServer(t, config.PreviewConfig{})
	fs.flush(gamesense.Frames{panel.Keyboard: keyboardFrame()})

	resp, err := http.Get(ts.URL + "/api/panels")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got panelsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "bound", got.State)
	assert.True(t, got.Heartbeat)
	require.NotNil(t, got.LastFrame)
	require.Len(t, got.Panels, 2)
	assert.Equal(t, panelDTO{Name: "keyboard", Width: 128, Height: 40, DeviceType: "screened-128x40", HasFrame: true}, got.Panels[0])
	assert.False(t, got.Panels[1].HasFrame)
}

func TestPreviewPNG(t *testing.T) {
	ts, fs := newTestServer(t, config.PreviewConfig{})

	resp, err := http.Get(ts.URL + "/preview.png?panel=keyboard")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "nothing flushed yet")

	fs.flush(gamesense.Frames{panel.Keyboard: keyboardFrame()})

	resp, err = http.Get(ts.URL + "/preview.png?scale=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())

	r, _, _, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xFFFF), r, "lit pixel is white")
	r, _, _, _ = img.At(2, 0).RGBA()
	assert.Zero(t, r)
}

func TestPreviewBadInput(t *testing.T) {
	ts, _ := newTestServer(t, config.PreviewConfig{})
	for _, q := range []string{"panel=toaster", "scale=0", "scale=99"} {
		resp, err := http.Get(ts.URL + "/preview.png?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestBasicAuth(t *testing.T) {
	ts, _ := newTestServer(t, config.PreviewConfig{
		BasicAuth: &config.BasicAuthConfig{Username: "u", Password: "p"},
	})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/panels")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/panels", nil)
	require.NoError(t, err)
	req.SetBasicAuth("u", "p")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocketFrames(t *testing.T) {
	ts, fs := newTestServer(t, config.PreviewConfig{})
	fs.flush(gamesense.Frames{panel.Keyboard: keyboardFrame()})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var hello wsFrame
	require.NoError(t, conn.ReadJSON(&hello))
	assert.EqualValues(t, 1, hello.FrameID)
	assert.Equal(t, byte(0x80), hello.Panels["keyboard"].Data[0])

	mouse := make([]byte, panel.Mouse.Dimensions().ByteLen())
	mouse[1] = 0xFF
	fs.flush(gamesense.Frames{panel.Mouse: mouse})

	var next wsFrame
	require.NoError(t, conn.ReadJSON(&next))
	assert.EqualValues(t, 2, next.FrameID)
	assert.Equal(t, 36, next.Panels["mouse"].Height)
	assert.Equal(t, byte(0xFF), next.Panels["mouse"].Data[1])
	assert.Contains(t, next.Panels, "keyboard", "panels not in the update keep their last frame")
}

func TestPublishDoesNotWaitForWriter(t *testing.T) {
	fs := &fakeSession{panels: []panel.Variant{panel.Keyboard}}
	s := NewServer(config.PreviewConfig{}, fs)
	t.Cleanup(s.hub.closeAll)

	// Hold the hub lock the way a stalled client write would.
	s.hub.mu.Lock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			fs.flush(gamesense.Frames{panel.Keyboard: keyboardFrame()})
		}
	}()

	var returned bool
	select {
	case <-done:
		returned = true
	case <-time.After(time.Second):
	}
	s.hub.mu.Unlock()
	require.True(t, returned, "publish blocked on the websocket writer")
	<-done

	s.framesMu.RLock()
	defer s.framesMu.RUnlock()
	assert.EqualValues(t, 5, s.frameID)
}
