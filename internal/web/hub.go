package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	appLog "gglcd/internal/log"
)

const writeWait = 200 * time.Millisecond

type queuedFrame struct {
	id  uint64
	msg []byte
}

// hub fans flushed frames out to websocket clients. A single writer
// goroutine owns every write; broadcast only queues, keeping at most one
// pending frame and dropping older ones.
type hub struct {
	mu sync.Mutex
	// clients maps each connection to the last frame id written to it.
	clients  map[*websocket.Conn]uint64
	upgrader websocket.Upgrader

	queue     chan queuedFrame
	done      chan struct{}
	closeOnce sync.Once
}

func newHub() *hub {
	h := &hub{
		clients: map[*websocket.Conn]uint64{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		queue: make(chan queuedFrame, 1),
		done:  make(chan struct{}),
	}
	go h.run()
	return h
}

// handle upgrades the request and sends hello (frame helloID) if non-nil.
func (h *hub) handle(w http.ResponseWriter, r *http.Request, helloID uint64, hello []byte) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		appLog.Debug("websocket upgrade failed", "err", err.Error())
		return
	}

	h.mu.Lock()
	h.clients[conn] = 0
	if hello != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
			appLog.Debug("websocket hello failed", "err", err.Error())
		}
		h.clients[conn] = helloID
	}
	h.mu.Unlock()

	// Clients never send anything useful; reading only detects close.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// broadcast queues frame id for every client and returns without waiting
// on any connection.
func (h *hub) broadcast(id uint64, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		appLog.Error("encode websocket frame", err)
		return
	}

	f := queuedFrame{id: id, msg: b}
	for {
		select {
		case <-h.done:
			return
		case h.queue <- f:
			return
		default:
		}
		// 대기 중인 이전 프레임은 버리고 최신 것만 보낸다.
		select {
		case stale := <-h.queue:
			appLog.Debug("websocket frame dropped", "frame_id", stale.id)
		default:
		}
	}
}

func (h *hub) run() {
	for {
		select {
		case <-h.done:
			return
		case f := <-h.queue:
			h.write(f)
		}
	}
}

func (h *hub) write(f queuedFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c, sent := range h.clients {
		if sent >= f.id {
			continue
		}
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, f.msg); err != nil {
			appLog.Debug("websocket write failed", "err", err.Error())
			continue
		}
		h.clients[c] = f.id
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.closeOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
			time.Now().Add(writeWait))
		c.Close()
		delete(h.clients, c)
	}
}
