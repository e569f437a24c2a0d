package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/chepyr/go-task-board/shared"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 5 * time.Second

type wsMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// WSHub fans board events out to every connected client. Delivery is best
// effort: a connection that fails a write is dropped.
type WSHub struct {
	connections map[*websocket.Conn]bool
	mutex       sync.Mutex
	upgrader    websocket.Upgrader
	log         logrus.FieldLogger
}

// NewWSHub accepts handshakes from allowedOrigins only; an empty list
// accepts any origin.
func NewWSHub(allowedOrigins []string, logger logrus.FieldLogger) *WSHub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WSHub{
		connections: make(map[*websocket.Conn]bool),
		log:         logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// Notify broadcasts {"event": event, "data": payload}. No listeners is not
// an error.
func (h *WSHub) Notify(event string, payload any) {
	message, err := json.Marshal(wsMessage{Event: event, Data: payload})
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("marshal websocket message")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.connections {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.log.WithError(err).WithField("event_id", "WS_CLIENT_DROPPED").Debug("websocket write failed")
			delete(h.connections, conn)
			conn.Close()
		}
	}
}

// Clients returns the number of open connections.
func (h *WSHub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections)
}

// Close disconnects every client.
func (h *WSHub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.connections {
		conn.Close()
		delete(h.connections, conn)
	}
}

func (h *WSHub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	h.mutex.Lock()
	h.connections[conn] = true
	h.mutex.Unlock()

	// clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.mutex.Lock()
			if h.connections[conn] {
				delete(h.connections, conn)
				conn.Close()
			}
			h.mutex.Unlock()
			return
		}
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if h.RateLimiter != nil && !h.RateLimiter.Allow(ip) {
		shared.SendError(w, "Too many WebSocket connection attempts", http.StatusTooManyRequests)
		return
	}
	h.WSHub.serve(w, r)
}
