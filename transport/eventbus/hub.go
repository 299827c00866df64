package eventbus

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/puzzleparty/server/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Per-subscriber send buffer. When full, deliveries to that subscriber
	// are dropped rather than stalling the broadcast.
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame is the bridge wire format. Clients send register, unregister, and
// publish frames; the server pushes message frames for subscribed channels.
type Frame struct {
	Type    string          `json:"type"`
	Address string          `json:"address,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// Client is one event-bus connection, bound to a puzzle and a username at
// upgrade time.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	puzzleID string
	username string
}

// Hub fans events out to subscribed connections. Delivery per channel is
// FIFO in publish order; a slow or dead subscriber only ever loses its own
// events.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]bool

	m      *metrics.Metrics
	logger *slog.Logger

	// onDisconnect runs after a client's connection is torn down, giving the
	// lifecycle manager a chance to detach the participant.
	onDisconnect func(puzzleID, username string)

	// onCursor records relayed cursor positions in the session store.
	onCursor func(puzzleID, username string, x, y int)
}

// NewHub creates a hub. The metrics argument may be nil in tests.
func NewHub(m *metrics.Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		channels: make(map[string]map[*Client]bool),
		m:        m,
		logger:   logger,
	}
}

// SetDisconnectHandler installs the callback invoked when a connection
// closes for any reason.
func (h *Hub) SetDisconnectHandler(fn func(puzzleID, username string)) {
	h.onDisconnect = fn
}

// SetCursorHandler installs the callback invoked for relayed cursor frames.
func (h *Hub) SetCursorHandler(fn func(puzzleID, username string, x, y int)) {
	h.onCursor = fn
}

// ServeBus upgrades the request to a websocket and runs the bridge until the
// connection drops. The caller has already authenticated the user and
// resolved the puzzle id.
func (h *Hub) ServeBus(w http.ResponseWriter, r *http.Request, puzzleID, username string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("event bus upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		puzzleID: puzzleID,
		username: username,
	}

	if h.m != nil {
		h.m.ActiveSubscribers.Inc()
	}
	h.logger.Info("event bus connected", "puzzle", puzzleID, "username", username)

	go client.writePump()
	go client.readPump()
}

// Subscribe attaches a client to a channel.
func (h *Hub) Subscribe(channel string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][c] = true
}

// Unsubscribe detaches a client from a channel.
func (h *Hub) Unsubscribe(channel string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(channel, c)
}

func (h *Hub) removeLocked(channel string, c *Client) {
	subs, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

// Publish delivers an event to every current subscriber of the channel.
// It never blocks on a subscriber: sends go to buffered per-client channels
// and are dropped when a buffer is full. Calls for the same channel fan out
// in call order, so per-channel delivery is FIFO.
func (h *Hub) Publish(channel string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		h.logger.Error("failed to marshal event body", "channel", channel, "error", err)
		return
	}
	data, err := json.Marshal(Frame{Type: "message", Address: channel, Body: payload})
	if err != nil {
		h.logger.Error("failed to marshal event frame", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.channels[channel] {
		select {
		case c.send <- data:
		default:
			if h.m != nil {
				h.m.DeliveriesDropped.Inc()
			}
			h.logger.Warn("dropped event for slow subscriber",
				"channel", channel, "username", c.username)
		}
	}
}

// SubscriberCount returns the number of clients on a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// drop removes a client from every channel and closes its send channel.
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	for channel, subs := range h.channels {
		if subs[c] {
			h.removeLocked(channel, c)
		}
	}
	h.mu.Unlock()

	close(c.send)

	if h.m != nil {
		h.m.ActiveSubscribers.Dec()
	}
}

// handleFrame dispatches one inbound bridge frame.
func (h *Hub) handleFrame(c *Client, f Frame) {
	switch f.Type {
	case "register":
		if !c.allowedChannel(f.Address) {
			h.logger.Warn("rejected register for foreign channel",
				"address", f.Address, "puzzle", c.puzzleID, "username", c.username)
			return
		}
		h.Subscribe(f.Address, c)

	case "unregister":
		h.Unsubscribe(f.Address, c)

	case "publish":
		// The command path is HTTP; the only client-publishable channel is
		// the cursor relay, which bypasses the validator entirely.
		if f.Address != CursorChannel(c.puzzleID) {
			h.logger.Warn("rejected publish on non-relay channel",
				"address", f.Address, "username", c.username)
			return
		}

		var cursor CursorEvent
		if err := json.Unmarshal(f.Body, &cursor); err != nil {
			h.logger.Warn("malformed cursor frame", "username", c.username, "error", err)
			return
		}
		// the connection, not the payload, decides who moved
		cursor.Username = c.username

		if h.onCursor != nil {
			h.onCursor(c.puzzleID, c.username, cursor.PositionX, cursor.PositionY)
		}
		if h.m != nil {
			h.m.EventsPublished.WithLabelValues("cursor").Inc()
		}
		h.Publish(f.Address, cursor)

	default:
		h.logger.Warn("unknown frame type", "type", f.Type, "username", c.username)
	}
}

// allowedChannel restricts subscriptions to channels of the client's own
// puzzle.
func (c *Client) allowedChannel(address string) bool {
	return strings.HasSuffix(address, "."+c.puzzleID)
}

// readPump pumps frames from the websocket into the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
		if c.hub.onDisconnect != nil {
			c.hub.onDisconnect(c.puzzleID, c.username)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("event bus read error", "username", c.username, "error", err)
			}
			break
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.hub.logger.Warn("malformed bridge frame", "username", c.username, "error", err)
			continue
		}
		c.hub.handleFrame(c, f)
	}
}

// writePump pumps hub messages to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
