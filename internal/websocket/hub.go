package websocket

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hermes-analytics/hermes/internal/metrics"
	"github.com/hermes-analytics/hermes/pkg/chartopt"
)

// Message types pushed to view clients.
const (
	TypeOption = "option"
	TypePing   = "ping"
	TypePong   = "pong"

	// TypeRequestOption is sent by a client that wants the current option again.
	TypeRequestOption = "requestOption"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	sendBuffer    = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 64, // 64KB to handle large option documents
	WriteBufferSize: 1024 * 64,
	CheckOrigin:     checkSameOrigin,
}

// Client represents a connected chart view
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	id       string
	lastPing time.Time
	request  *http.Request
}

// Hub keeps the connected views in sync with the current chart option
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	unregister chan *Client
	refresh    chan struct{}
	done       chan struct{}
	stopped    bool
	mu         sync.RWMutex
	getState   func(r *http.Request) any
}

// Message is the envelope for every frame sent over the socket
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewHub creates a hub. getState returns the option a client should render,
// given the request it connected with (so the theme query parameter applies).
func NewHub(getState func(r *http.Request) any) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		unregister: make(chan *Client),
		refresh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		getState:   getState,
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send channel is full, drop it
					log.Warn().Str("client", client.id).Msg("View client too slow, disconnecting")
					h.remove(client)
				}
			}

		case <-h.refresh:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				data, err := h.stateMessage(client.request)
				if err != nil {
					log.Error().Err(err).Str("client", client.id).Msg("Failed to marshal option")
					continue
				}
				select {
				case client.send <- data:
				default:
					log.Warn().Str("client", client.id).Msg("View client too slow, disconnecting")
					h.remove(client)
				}
			}

		case <-pingTicker.C:
			h.sendPing()

		case <-ctx.Done():
			h.mu.Lock()
			h.stopped = true
			close(h.done)
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			metrics.SetViewClients(0)
			return
		}
	}
}

// add registers a client. It fails once the hub has stopped.
func (h *Hub) add(client *Client) bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return false
	}
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.SetViewClients(count)
	log.Info().Str("client", client.id).Msg("View client connected")
	return true
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.SetViewClients(count)
		log.Info().Str("client", client.id).Msg("View client disconnected")
	}
}

// HandleWebSocket upgrades the request and sends the current option right away
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		id:       uuid.NewString(),
		lastPing: time.Now(),
		request:  r,
	}

	// Queue the initial option before the writer starts so it is always first.
	if data, err := h.stateMessage(r); err == nil {
		client.send <- data
	} else {
		log.Error().Err(err).Str("client", client.id).Msg("Failed to marshal initial option")
	}

	if !h.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Refresh re-sends the current option to every client, merged for the theme
// each client connected with. Call it after the source option changes.
func (h *Hub) Refresh() {
	select {
	case h.refresh <- struct{}{}:
	default:
		// a refresh is already pending
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) stateMessage(r *http.Request) ([]byte, error) {
	var state any
	if h.getState != nil {
		state = h.getState(r)
	}
	return json.Marshal(Message{Type: TypeOption, Data: sanitizeData(state)})
}

// broadcastMessage sends a message to all clients
func (h *Hub) broadcastMessage(msg Message) {
	// Sanitize the message data to handle NaN values
	msg.Data = sanitizeData(msg.Data)

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		log.Warn().Msg("WebSocket broadcast channel full")
	}
}

// sendPing sends a ping message to all clients
func (h *Hub) sendPing() {
	h.broadcastMessage(Message{
		Type: TypePing,
		Data: map[string]int64{"timestamp": time.Now().Unix()},
	})
}

// readPump handles incoming messages from the client
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		c.lastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("client", c.id).Msg("WebSocket read error")
			} else {
				log.Debug().Err(err).Str("client", c.id).Msg("WebSocket closed")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Warn().Err(err).Str("client", c.id).Msg("Failed to unmarshal WebSocket message")
			continue
		}

		switch msg.Type {
		case TypePing:
			pong := Message{
				Type: TypePong,
				Data: map[string]int64{"timestamp": time.Now().Unix()},
			}
			if data, err := json.Marshal(pong); err == nil {
				c.trySend(data)
			}
		case TypeRequestOption:
			if data, err := c.hub.stateMessage(c.request); err == nil {
				c.trySend(data)
			} else {
				log.Error().Err(err).Msg("Failed to marshal option for requestOption")
			}
		default:
			log.Debug().Str("client", c.id).Str("type", msg.Type).Msg("Received WebSocket message")
		}
	}
}

// trySend queues data without blocking. The hub closes send while holding
// its lock, so membership is checked under the same lock.
func (c *Client) trySend(data []byte) bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	if !c.hub.clients[c] {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// writePump handles outgoing messages to the client
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("client", c.id).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// checkSameOrigin accepts requests without an Origin header and browser
// requests whose Origin host matches the Host header.
func checkSameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// sanitizeData replaces NaN/Inf values with nil and normalizes the result
// through JSON so custom marshalers (label formatters) are applied.
func sanitizeData(data any) any {
	jsonBytes, err := json.Marshal(sanitizeValue(data))
	if err != nil {
		return data
	}

	var jsonData any
	if err := json.Unmarshal(jsonBytes, &jsonData); err != nil {
		return data
	}

	return sanitizeValue(jsonData)
}

// sanitizeValue recursively sanitizes JSON-compatible values
func sanitizeValue(data any) any {
	switch v := data.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil
		}
		return v
	case chartopt.Option:
		return sanitizeValue(map[string]any(v))
	case map[string]any:
		sanitized := make(map[string]any, len(v))
		for k, val := range v {
			sanitized[k] = sanitizeValue(val)
		}
		return sanitized
	case []any:
		sanitized := make([]any, len(v))
		for i, val := range v {
			sanitized[i] = sanitizeValue(val)
		}
		return sanitized
	case []map[string]any:
		sanitized := make([]any, len(v))
		for i, val := range v {
			sanitized[i] = sanitizeValue(val)
		}
		return sanitized
	default:
		return v
	}
}
