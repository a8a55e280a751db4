package broadcast

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures the WebSocket endpoint.
type WSConfig struct {
	// WriteTimeout is the per-frame write deadline.
	WriteTimeout time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// PongTimeout is how long to wait for a pong before dropping the
	// connection.
	PongTimeout time.Duration
	// MaxMessageSize bounds inbound control messages.
	MaxMessageSize int64
}

// DefaultWSConfig returns default WebSocket endpoint configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		MaxMessageSize: 1024,
	}
}

// clientCommand is an inbound room control message.
type clientCommand struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	Topic  string `json:"topic"`
}

// WSHandler upgrades HTTP requests and bridges connections to the hub.
type WSHandler struct {
	hub      *Hub
	config   WSConfig
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *Hub, config WSConfig, logger *log.Logger) *WSHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &WSHandler{
		hub:    hub,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[broadcast] upgrade failed: %v", err)
		return
	}

	sub := h.hub.Subscribe()
	go h.writePump(conn, sub)
	h.readPump(conn, sub)
}

// readPump consumes room control messages until the connection drops.
// Closing the subscription ends the write pump.
func (h *WSHandler) readPump(conn *websocket.Conn, sub *Subscription) {
	defer sub.Close()

	conn.SetReadLimit(h.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd clientCommand
		if err := json.Unmarshal(msg, &cmd); err != nil || cmd.Topic == "" {
			continue
		}
		switch cmd.Action {
		case "subscribe":
			h.hub.Join(sub, cmd.Topic)
		case "unsubscribe":
			h.hub.Leave(sub, cmd.Topic)
		}
	}
}

// writePump forwards subscription events to the peer and keeps the
// connection alive with pings.
func (h *WSHandler) writePump(conn *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
