package shelterboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is the JSON message pushed to connected dashboards.
type Event struct {
	// Event names what happened, e.g. "dataset-updated".
	Event string `json:"event"`
	// At is when it happened.
	At time.Time `json:"at"`
	// Detail carries optional context, e.g. the new checksum.
	Detail string `json:"detail,omitempty"`
}

// Hub fans refresh notifications out to open dashboard pages over WebSocket,
// so they re-fetch their charts without polling.
type Hub struct {
	mu     sync.RWMutex
	conns  map[*hubConn]struct{}
	closed bool

	pingInterval time.Duration
	writeTimeout time.Duration
}

type hubConn struct {
	ws   *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *hubConn) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:        make(map[*hubConn]struct{}),
		pingInterval: 30 * time.Second,
		writeTimeout: 10 * time.Second,
	}
}

// Broadcast pushes an event to every connected client. Slow clients whose
// buffers are full miss the event; the dashboard re-syncs on the next one.
func (h *Hub) Broadcast(event, detail string) {
	payload, err := json.Marshal(Event{Event: event, At: time.Now().UTC(), Detail: detail})
	if err != nil {
		slog.Error("failed to encode hub event", "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		select {
		case c.send <- payload:
		default:
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Handler upgrades the request and serves the connection until the client
// goes away.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			return
		}

		conn := &hubConn{ws: ws, send: make(chan []byte, 8)}
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			_ = ws.Close()
			return
		}
		h.conns[conn] = struct{}{}
		h.mu.Unlock()

		go h.writePump(conn)
		h.readPump(conn)
	}
}

func (h *Hub) writePump(c *hubConn) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(c *hubConn) {
	defer h.drop(c)

	c.ws.SetReadLimit(512)
	_ = c.ws.SetReadDeadline(time.Now().Add(h.pingInterval * 2))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.pingInterval * 2))
	})

	// Clients only listen; reads just detect disconnects.
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *hubConn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
	}
	h.mu.Unlock()
	c.close()
}

// Close disconnects every client. The hub cannot be reused afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*hubConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[*hubConn]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}
