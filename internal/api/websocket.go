package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-access/internal/pseudonym"
	"github.com/nerrad567/gray-logic-access/internal/telemetry"
)

// WebSocket constants.
const (
	WSTypeOutcome = "outcome"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 64

	defaultMaxMessageSize = 4096
	defaultPingInterval   = 30
	defaultPongTimeout    = 10
)

// WSMessage is a message pushed to WebSocket clients.
type WSMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

// Hub fans access outcomes out to connected WebSocket clients.
//
// Hub implements access.Observer. A client whose buffer is full misses the
// message; the observer never waits on a slow browser.
type Hub struct {
	keepalive keepalive
	readLimit int64
	exposure  pseudonym.Exposure
	logger    *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// keepalive holds the ping cadence derived from WebSocketConfig.
type keepalive struct {
	ping time.Duration
	pong time.Duration
}

// deadline is how long a connection may stay silent before it is dropped.
func (k keepalive) deadline() time.Time {
	return time.Now().Add(k.ping + k.pong)
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The status API binds to the maintenance network only.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates a hub. Zero config values take the package defaults.
func NewHub(cfg config.WebSocketConfig, exposure pseudonym.Exposure, logger *logging.Logger) *Hub {
	orDefault := func(v, def int) int {
		if v <= 0 {
			return def
		}
		return v
	}
	return &Hub{
		keepalive: keepalive{
			ping: time.Duration(orDefault(cfg.PingInterval, defaultPingInterval)) * time.Second,
			pong: time.Duration(orDefault(cfg.PongTimeout, defaultPongTimeout)) * time.Second,
		},
		readLimit: int64(orDefault(cfg.MaxMessageSize, defaultMaxMessageSize)),
		exposure:  exposure,
		logger:    logger.Component("websocket"),
		clients:   make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
}

// Observe streams o to every connected client.
func (h *Hub) Observe(_ context.Context, o access.Outcome) error {
	h.Broadcast(WSTypeOutcome, telemetry.NewEvent(o, h.exposure))
	return nil
}

// Broadcast queues a message of the given type for every client.
func (h *Hub) Broadcast(msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal websocket message", "error", err)
		return
	}

	// Sends happen under the read lock so Run and remove cannot close a
	// channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// remove drops c. Only the caller that finds c in the map closes its
// channel, so Run and a failing reader cannot both close it.
func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.send)
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// handleWebSocket upgrades the request and starts the client's loops.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBufferSize)}
	s.hub.add(c)
	go s.hub.writeLoop(c)
	go s.hub.readLoop(c)
}

// readLoop discards client data and keeps the read deadline moving while
// pongs or messages arrive. It removes the client when the read fails.
func (h *Hub) readLoop(c *wsClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(h.readLimit)
	//nolint:errcheck // Best-effort deadline; a failed read ends the loop
	c.conn.SetReadDeadline(h.keepalive.deadline())
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(h.keepalive.deadline())
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(h.keepalive.deadline())
	}
}

// writeLoop drains c.send and pings on the keepalive cadence. A closed
// send channel ends the stream with a close frame.
func (h *Hub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(h.keepalive.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // Best-effort deadline; the write reports failure
		c.conn.SetWriteDeadline(time.Now().Add(h.keepalive.pong))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // Closing anyway
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
