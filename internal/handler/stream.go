package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/relaypoint/message-relay/internal/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// ClientFilter narrows which status updates a client receives. Empty filter
// lists receive everything; a non-empty list matches when any entry matches.
type ClientFilter struct {
	MessageIDs []uuid.UUID     `json:"message_ids,omitempty"`
	Statuses   []domain.Status `json:"statuses,omitempty"`
}

func (f *ClientFilter) matches(message *domain.Message) bool {
	if f == nil {
		return true
	}
	if len(f.MessageIDs) == 0 && len(f.Statuses) == 0 {
		return true
	}

	for _, id := range f.MessageIDs {
		if id == message.ID {
			return true
		}
	}
	for _, s := range f.Statuses {
		if s == message.Status {
			return true
		}
	}
	return false
}

// StatusUpdate is the wire payload pushed to stream clients on every message
// status transition.
type StatusUpdate struct {
	Type      string          `json:"type"`
	Message   *domain.Message `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

// SubscribeMessage represents a subscription request from client
type SubscribeMessage struct {
	Action string       `json:"action"`
	Filter ClientFilter `json:"filter"`
}

// StreamClient represents a WebSocket client connection
type StreamClient struct {
	hub  *StreamHub
	conn *websocket.Conn
	send chan []byte
	id   string
}

type subscription struct {
	client *StreamClient
	filter *ClientFilter
}

// StreamHub fans message status updates out to WebSocket clients. The Run
// goroutine is the only owner of the client map and the per-client filters;
// registrations, filter changes, and broadcasts all flow through channels,
// so no lock is needed.
type StreamHub struct {
	clients    map[*StreamClient]*ClientFilter
	broadcast  chan *StatusUpdate
	register   chan *StreamClient
	unregister chan *StreamClient
	subscribe  chan subscription
	logger     *slog.Logger
}

// NewStreamHub creates a new StreamHub
func NewStreamHub(logger *slog.Logger) *StreamHub {
	return &StreamHub{
		clients:    make(map[*StreamClient]*ClientFilter),
		broadcast:  make(chan *StatusUpdate, 256),
		register:   make(chan *StreamClient),
		unregister: make(chan *StreamClient),
		subscribe:  make(chan subscription),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *StreamHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = nil
			h.logger.Info("stream client connected", "client_id", client.id)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.logger.Info("stream client disconnected", "client_id", client.id)

		case sub := <-h.subscribe:
			if _, ok := h.clients[sub.client]; ok {
				h.clients[sub.client] = sub.filter
			}

		case update := <-h.broadcast:
			payload, err := json.Marshal(update)
			if err != nil {
				h.logger.Error("failed to marshal status update", "error", err)
				continue
			}

			for client, filter := range h.clients {
				if !filter.matches(update.Message) {
					continue
				}
				select {
				case client.send <- payload:
				default:
					// Client buffer full, skip
				}
			}
		}
	}
}

// BroadcastStatus broadcasts a message status update
func (h *StreamHub) BroadcastStatus(message *domain.Message) {
	update := &StatusUpdate{
		Type:      "status_update",
		Message:   message,
		Timestamp: time.Now().UTC(),
	}

	select {
	case h.broadcast <- update:
	default:
		h.logger.Warn("broadcast channel full, dropping update")
	}
}

// StreamHandler handles WebSocket connections
type StreamHandler struct {
	hub *StreamHub
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(hub *StreamHub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// HandleStream handles WebSocket upgrade and connection
// @Summary WebSocket connection
// @Description Connect to WebSocket for real-time message status updates
// @Tags stream
// @Success 101 {string} string "Switching Protocols"
// @Router /ws [get]
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Error("failed to upgrade websocket", "error", err)
		return
	}

	client := &StreamClient{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
		id:   uuid.New().String(),
	}

	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump forwards subscription changes from the peer to the hub.
func (c *StreamClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket error", "error", err)
			}
			break
		}

		var subMsg SubscribeMessage
		if err := json.Unmarshal(raw, &subMsg); err != nil {
			continue
		}

		switch subMsg.Action {
		case "subscribe":
			filter := subMsg.Filter
			c.hub.subscribe <- subscription{client: c, filter: &filter}
		case "unsubscribe":
			c.hub.subscribe <- subscription{client: c, filter: nil}
		}
	}
}

// writePump pumps updates from the hub to the websocket connection
func (c *StreamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(payload)

			// Add queued updates to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
