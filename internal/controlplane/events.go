package controlplane

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"

	"hieasy-dvr-bridge/internal/logging"
	"hieasy-dvr-bridge/internal/recorder"
)

// upgrader mirrors the teacher's buffer sizing for its own video-frame
// websocket, reused here for small JSON status events instead.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	clientSendBuffer = 32
	writeTimeout     = 5 * time.Second
)

// StatusEvent is the JSON payload broadcast over /api/events.
type StatusEvent struct {
	Type      string    `json:"type"`
	Channel   int       `json:"channel,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans status events out to every connected dashboard. Unlike the
// feeder→transcoder pipe, this is not backpressured: a client too slow to
// keep up is disconnected rather than allowed to stall the broadcaster.
type Hub struct {
	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	conn *websocket.Conn
	send chan StatusEvent
}

// NewHub builds an empty event hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*hubClient]struct{})}
}

// Publish implements recorder.EventSink, translating recorder events into
// broadcast status events.
func (h *Hub) Publish(e recorder.Event) {
	h.Broadcast(StatusEvent{
		Type:      string(e.Kind),
		Channel:   e.Channel,
		Message:   e.Message,
		Timestamp: time.Now(),
	})
}

// Broadcast fans out an event to every connected client, dropping any
// client whose send buffer is already full.
func (h *Hub) Broadcast(e StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			logging.Warn("controlplane: dropping slow websocket client")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) add(c *hubClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *hubClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// HandleEvents upgrades the connection and streams status events until the
// client disconnects. GET /api/events
func (h *Hub) HandleEvents(ctx iris.Context) {
	conn, err := upgrader.Upgrade(ctx.ResponseWriter(), ctx.Request(), nil)
	if err != nil {
		logging.Warn("controlplane: websocket upgrade failed", "err", err)
		return
	}

	client := &hubClient{conn: conn, send: make(chan StatusEvent, clientSendBuffer)}
	h.add(client)
	defer func() {
		h.remove(client)
		conn.Close()
	}()

	// Drain and discard client reads; this feed is broadcast-only, but we
	// still need to notice disconnects promptly.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(client)
				return
			}
		}
	}()

	for e := range client.send {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
