package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

type client struct {
	ownerID string
	conn    *websocket.Conn
	send    chan []byte
}

// Hub keeps the websocket connections of this instance, indexed by owner.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	now      func() time.Time
}

// NewHub creates a hub. allowedOrigins empty accepts same-origin requests only.
func NewHub(allowedOrigins []string, logger zerolog.Logger) *Hub {
	allow := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allow[o] = struct{}{}
	}
	h := &Hub{
		clients: make(map[string]map[*client]struct{}),
		logger:  logger.With().Str("component", "realtime").Logger(),
		now:     time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allow[origin]; ok {
				return true
			}
			return origin == "http://"+r.Host || origin == "https://"+r.Host
		},
	}
	return h
}

// Publish delivers the event to the owner's sockets on this instance.
func (h *Hub) Publish(_ context.Context, ownerID, eventType string, payload any) error {
	msg, err := json.Marshal(Envelope{OwnerID: ownerID, Type: eventType, Payload: payload, Timestamp: h.now().UTC()})
	if err != nil {
		return err
	}
	h.deliver(ownerID, msg)
	return nil
}

// Connections returns the number of open sockets for an owner.
func (h *Hub) Connections(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[ownerID])
}

func (h *Hub) deliver(ownerID string, msg []byte) {
	h.mu.RLock()
	var slow []*client
	for c := range h.clients[ownerID] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn().Str("owner_id", ownerID).Msg("dropping slow realtime client")
		h.remove(c)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.ownerID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.ownerID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.ownerID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.ownerID)
	}
}

// Serve upgrades the request and streams the owner's events until the socket
// closes. The caller authenticates ownerID.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, ownerID string) {
	if ownerID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{ownerID: ownerID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)
	h.logger.Debug().Str("owner_id", ownerID).Int("connections", h.Connections(ownerID)).Msg("realtime client connected")

	go h.writePump(c)
	h.readPump(c)
}

// readPump only services control frames; clients do not send events.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("owner_id", c.ownerID).Msg("realtime client read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
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

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for owner, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, owner)
	}
}

// ErrRelayClosed is returned when the relay subscription ends.
var ErrRelayClosed = errors.New("realtime relay closed")

var _ Publisher = (*Hub)(nil)
