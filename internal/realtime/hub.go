package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"restaurant-pos/internal/common/logger"
)

// Hub fans rider location updates out to tracking viewers over websocket.
// Viewers join a room keyed by rider id.
type Hub struct {
	clients    map[*HubClient]struct{}
	register   chan *HubClient
	unregister chan *HubClient
	broadcast  chan roomMessage

	log *logger.Logger
}

type HubClient struct {
	room string // rider id
	conn *websocket.Conn
	send chan []byte
}

type roomMessage struct {
	room    string
	payload []byte
}

type wsEnvelope struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*HubClient]struct{}),
		register:   make(chan *HubClient),
		unregister: make(chan *HubClient),
		broadcast:  make(chan roomMessage, 64),
		log:        log,
	}
}

func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.log.Debug("viewer_joined", map[string]any{"room": c.room})
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Debug("viewer_left", map[string]any{"room": c.room})
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				if c.room != msg.room {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					// Slow viewer: drop it rather than block the hub.
					delete(h.clients, c)
					close(c.send)
				}
			}
		case <-done:
			for c := range h.clients {
				close(c.send)
			}
			return
		}
	}
}

// Broadcast sends a typed payload to every viewer of one room.
func (h *Hub) Broadcast(room, msgType string, payload any) {
	body, err := json.Marshal(wsEnvelope{Type: msgType, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		h.log.Error("broadcast_marshal_failed", err, map[string]any{"room": room})
		return
	}
	select {
	case h.broadcast <- roomMessage{room: room, payload: body}:
	default:
		h.log.Warn("broadcast_dropped", map[string]any{"room": room})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Serve upgrades the request and attaches the viewer to a room.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, room string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &HubClient{room: room, conn: conn, send: make(chan []byte, 16)}
	h.register <- c
	go c.writePump()
	go c.readPump(h)
	return nil
}

func (c *HubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *HubClient) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Viewers only listen; reads exist to process control frames.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
