package signaling

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/BioHazard786/Warpchat/backend/internal/matchmaking"
)

// inbound is a raw frame read from a client.
type inbound struct {
	client *Client
	data   []byte
}

// Hub is the central brain of the signaling server. Its Run loop owns the
// connection lifecycle and feeds every client command into the matchmaking
// engine one at a time. It is also the engine's Notifier.
type Hub struct {
	engine *matchmaking.Engine
	logger *slog.Logger

	// clients maps client IDs to live connections. Written by Run, read by
	// Notify from whichever goroutine the engine flushes on.
	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound

	// done is closed when Run returns.
	done chan struct{}
}

// NewHub creates a Hub and the engine it drives.
func NewHub(logger *slog.Logger, opts ...matchmaking.Option) *Hub {
	h := &Hub{
		logger:     logger,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		done:       make(chan struct{}),
	}
	h.engine = matchmaking.New(h, logger.With("component", "matchmaking"), opts...)
	return h
}

// Engine returns the engine behind the hub.
func (h *Hub) Engine() *matchmaking.Engine {
	return h.engine
}

// Register hands a freshly upgraded client to the hub. It returns false if
// the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run starts the hub's main processing loop and blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.add(c)

		case c := <-h.unregister:
			h.remove(c)

		case in := <-h.inbound:
			h.handle(in)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	if err := h.engine.Connect(c.ID, c.UserID); err != nil {
		h.logger.Error("Client rejected", "client_id", c.ID, "error", err)
		h.mu.Lock()
		delete(h.clients, c.ID)
		h.mu.Unlock()
		c.close()
		return
	}
	h.logger.Info("Client registered", "client_id", c.ID, "remote", c.conn.RemoteAddr().String())

	if err := c.enqueue(newMessage(TypeConnected, ConnectedPayload{ClientID: c.ID})); err != nil {
		h.engine.Disconnect(c.ID)
		c.close()
		return
	}
	if c.AutoJoin {
		h.engine.JoinWaiting(matchmaking.JoinRequest{ClientID: c.ID, UserID: c.UserID, Tag: c.Tag})
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if cur, ok := h.clients[c.ID]; ok && cur == c {
		delete(h.clients, c.ID)
	}
	h.mu.Unlock()

	h.engine.Disconnect(c.ID)
	c.close()
	h.logger.Info("Client unregistered", "client_id", c.ID)
}

func (h *Hub) handle(in inbound) {
	c := in.client

	cmd, err := Decode(in.data)
	if err != nil {
		c.logger.Debug("Rejected frame", "error", err)
		if err := c.enqueue(errorMessage(err.Error())); err != nil {
			h.engine.Disconnect(c.ID)
			c.close()
		}
		return
	}

	switch cmd := cmd.(type) {
	case JoinWaiting:
		h.engine.JoinWaiting(matchmaking.JoinRequest{ClientID: c.ID, UserID: cmd.UserID, Tag: cmd.Tag})
	case Relay:
		h.engine.Relay(c.ID, cmd.Kind, cmd.Payload)
	case LeaveRoom:
		h.engine.Leave(c.ID)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
	h.logger.Info("Hub stopped")
}

// Notify delivers an engine event to the connection with clientID.
func (h *Hub) Notify(clientID string, ev matchmaking.Event) error {
	h.mu.RLock()
	c, ok := h.clients[clientID]
	h.mu.RUnlock()

	if !ok {
		return matchmaking.ErrUnknownClient
	}

	err := c.enqueue(encodeEvent(ev))
	if errors.Is(err, matchmaking.ErrUndeliverable) {
		c.logger.Warn("Outbound buffer full, closing connection", "event", ev.Type)
		c.close()
	}
	return err
}

// Clients returns the number of live connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
