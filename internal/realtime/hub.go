// Package realtime pushes order changes to open dashboards over WebSocket.
package realtime

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/ordero/internal/models"
	"go.uber.org/zap"
)

// Event types.
const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
)

// Event is the JSON frame sent to subscribers.
type Event struct {
	Type  string       `json:"type"`
	Order models.Order `json:"order"`
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Frames queued per client before it counts as too slow and is dropped.
	sendBuffer = 32
	// Clients only send pongs and close frames.
	maxReadBytes = 512
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to every connection subscribed to a business.
type Hub struct {
	mu       sync.RWMutex
	subs     map[uuid.UUID]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub builds a hub. An empty allowedOrigins keeps gorilla's default
// same-origin check.
func NewHub(logger *zap.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		subs:   make(map[uuid.UUID]map[*client]struct{}),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		allowed := make(map[string]bool, len(allowedOrigins))
		for _, o := range allowedOrigins {
			allowed[o] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if allowed[origin] {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		}
	}
	return h
}

// OrderChanged publishes an order event to the order's business.
func (h *Hub) OrderChanged(eventType string, o models.Order) {
	h.Publish(o.BusinessID, Event{Type: eventType, Order: o})
}

// Publish never blocks: a client whose buffer is full is disconnected.
func (h *Hub) Publish(businessID uuid.UUID, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal realtime event", zap.Error(err))
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.subs[businessID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow realtime client", zap.String("business_id", businessID.String()))
		h.unsubscribe(businessID, c)
	}
}

// Subscribers reports how many connections a business has.
func (h *Hub) Subscribers(businessID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[businessID])
}

func (h *Hub) subscribe(businessID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[businessID] == nil {
		h.subs[businessID] = make(map[*client]struct{})
	}
	h.subs[businessID][c] = struct{}{}
}

// unsubscribe is idempotent; closing send ends the write loop.
func (h *Hub) unsubscribe(businessID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[businessID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.subs, businessID)
	}
}

// Serve upgrades the request and blocks until the connection closes.
// The caller must have authorised the request for businessID already.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, businessID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		return err
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.subscribe(businessID, c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(c)
	}()

	h.readLoop(c)
	h.unsubscribe(businessID, c)
	<-done
	return nil
}

// readLoop discards client frames; it exists to process pongs and notice
// disconnects.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
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
