package signaling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Warpchat/backend/internal/matchmaking"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for WebRTC SDP messages

	// Outbound events buffered per connection before it counts as stuck.
	sendBuffer = 256
)

// Client is a wrapper for a single websocket connection (a peer)
type Client struct {
	// ID is the connection-scoped identifier handed to the engine.
	ID string

	// UserID, Tag and AutoJoin come from the upgrade request's query string.
	UserID   string
	Tag      string
	AutoJoin bool

	// hub is the hub that manages this client.
	hub *Hub

	// conn is the websocket connection.
	conn *websocket.Conn

	// send is a buffered channel for all outbound messages.
	// We write to this channel, and a separate goroutine (writePump)
	// reads from it and writes to the websocket.
	send chan *Message

	mu     sync.Mutex
	closed bool

	logger *slog.Logger
}

// NewClient wraps conn for hub.
func NewClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		ID:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan *Message, sendBuffer),
		logger: hub.logger.With("client_id", id),
	}
}

// enqueue hands msg to the write pump without blocking. A full buffer or a
// closed client is reported as ErrUndeliverable.
func (c *Client) enqueue(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return matchmaking.ErrUndeliverable
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return matchmaking.ErrUndeliverable
	}
}

// close stops the write pump, which sends a close frame and drops the
// connection. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	// When this function exits (e.g., connection closes), unregister the client
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
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
				c.logger.Warn("Connection closed unexpectedly", "error", err)
			}
			return
		}

		select {
		case c.hub.inbound <- inbound{client: c, data: data}:
		case <-c.hub.done:
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Debug("Write failed", "error", err)
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
