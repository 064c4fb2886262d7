package matchmaking

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultWaitingTTL is how long a waiter stays eligible for matching.
	DefaultWaitingTTL = 5 * time.Minute

	waitingMessage = "Looking for a partner..."
	expiredMessage = "No partner found in time. Join again to keep looking."
)

// JoinRequest asks the matchmaker for a partner.
type JoinRequest struct {
	ClientID string
	UserID   string
	Tag      string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now, mostly for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithWaitingTTL sets how old a waiting entry may get before Reap evicts it.
func WithWaitingTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.ttl = ttl }
}

// WithObserver registers a receiver for lifecycle transitions.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithNotifyEvicted controls whether reaped waiters get a waiting_expired event.
func WithNotifyEvicted(notify bool) Option {
	return func(e *Engine) { e.notifyEvicted = notify }
}

// WithStrictInvariants makes every mutation verify the full state and panic
// on the first inconsistency. Meant for tests.
func WithStrictInvariants() Option {
	return func(e *Engine) { e.strict = true }
}

// WithRoomIDs replaces the room ID generator.
func WithRoomIDs(gen func(time.Time) string) Option {
	return func(e *Engine) { e.newRoomID = gen }
}

// Engine owns the Connection Registry, the Waiting Pool, the Room Directory
// and the Pair Index. A single mutex guards all four, so every operation is
// atomic with respect to every other one. Notifications are collected while
// the lock is held and delivered after it is released, in the order the
// operations took the lock.
type Engine struct {
	mu sync.Mutex
	// flushMu is taken before mu is released and held while an outbox is
	// delivered, so deliveries never overtake each other.
	flushMu sync.Mutex

	clients map[string]*Client
	pool    *pool
	rooms   *directory

	notifier      Notifier
	observer      Observer
	logger        *slog.Logger
	now           func() time.Time
	newRoomID     func(time.Time) string
	ttl           time.Duration
	notifyEvicted bool
	strict        bool
}

// New creates an Engine that delivers client events through notifier.
func New(notifier Notifier, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		clients:       make(map[string]*Client),
		pool:          newPool(),
		rooms:         newDirectory(),
		notifier:      notifier,
		observer:      nopObserver{},
		logger:        logger,
		now:           time.Now,
		newRoomID:     newRoomIDs(),
		ttl:           DefaultWaitingTTL,
		notifyEvicted: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type delivery struct {
	to string
	ev Event
}

// outbox collects the side effects of one operation.
type outbox struct {
	deliveries []delivery
	lifecycle  []Lifecycle
}

func (o *outbox) notify(to string, ev Event) {
	o.deliveries = append(o.deliveries, delivery{to: to, ev: ev})
}

func (o *outbox) record(l Lifecycle) {
	o.lifecycle = append(o.lifecycle, l)
}

// apply runs op under the lock, then flushes what it produced.
func (e *Engine) apply(op func(out *outbox)) {
	var out outbox

	e.mu.Lock()
	op(&out)
	if e.strict {
		if err := e.checkLocked(); err != nil {
			e.mu.Unlock()
			panic(err)
		}
	}
	e.flush(&out)
}

// flush must be called with mu held and releases it. It hands over to the
// flush lock before unlocking, so an operation that finished later under mu
// cannot deliver its events ahead of this one. A client whose connection
// refuses an event is disconnected; that can cascade into a
// peer_disconnected for its partner, which is flushed the same way.
func (e *Engine) flush(out *outbox) {
	e.flushMu.Lock()
	e.mu.Unlock()

	var failed []string
	dead := make(map[string]bool)

	for _, d := range out.deliveries {
		if dead[d.to] {
			continue
		}
		if err := e.notifier.Notify(d.to, d.ev); err != nil {
			e.logger.Warn("Event delivery failed, disconnecting client",
				"client_id", d.to, "event", d.ev.Type, "error", err)
			dead[d.to] = true
			failed = append(failed, d.to)
		}
	}

	for _, l := range out.lifecycle {
		e.observer.Observe(l)
	}
	e.flushMu.Unlock()

	for _, id := range failed {
		e.Disconnect(id)
	}
}

// Connect admits a client into the registry in state connected.
func (e *Engine) Connect(clientID, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.clients[clientID]; ok {
		return fmt.Errorf("connect %s: already registered", clientID)
	}
	e.clients[clientID] = &Client{
		ID:          clientID,
		UserID:      userID,
		State:       StateConnected,
		ConnectedAt: e.now(),
	}
	e.logger.Debug("Client connected", "client_id", clientID, "user_id", userID)
	return nil
}

// JoinWaiting matches the requester with the oldest waiter of its own tier,
// falling back to the oldest waiter of the global queue. Without a match the
// requester is enqueued and told to wait. A requester that is currently
// paired leaves its room first.
func (e *Engine) JoinWaiting(req JoinRequest) {
	e.apply(func(out *outbox) {
		e.joinLocked(out, req)
	})
}

func (e *Engine) joinLocked(out *outbox, req JoinRequest) {
	c, ok := e.clients[req.ClientID]
	if !ok {
		e.logger.Debug("Join from unknown client ignored", "client_id", req.ClientID)
		return
	}
	if req.UserID != "" {
		c.UserID = req.UserID
	}
	if c.State == StatePaired {
		e.leaveRoomLocked(out, c.ID, ReasonRequeued)
	}
	e.pool.remove(c.ID)

	now := e.now()
	tag := NormalizeTag(req.Tag)
	c.Tag = tag
	c.RequestedAt = now

	for {
		match := e.pool.next(tag, c.ID)
		if match == nil {
			break
		}
		peer, ok := e.clients[match.clientID]
		if !ok {
			e.logger.Warn("Discarding waiter without a connection", "client_id", match.clientID)
			continue
		}

		room := e.rooms.create(e.newRoomID(now), peer.ID, c.ID, now)
		peer.State, peer.RoomID = StatePaired, room.ID
		c.State, c.RoomID = StatePaired, room.ID

		out.notify(peer.ID, Event{Type: EventMatched, RoomID: room.ID, PeerID: c.ID})
		out.notify(c.ID, Event{Type: EventMatched, RoomID: room.ID, PeerID: peer.ID})
		out.record(Lifecycle{
			Kind:    RoomCreated,
			RoomID:  room.ID,
			Members: []string{peer.ID, c.ID},
			Tag:     tag,
			At:      now,
		})

		e.logger.Info("Room created",
			"room_id", room.ID, "waiter", peer.ID, "requester", c.ID,
			"tier", match.tag, "waited", now.Sub(match.enqueuedAt))
		return
	}

	e.pool.enqueue(c.ID, tag, now)
	c.State = StateWaiting
	c.RoomID = ""
	out.notify(c.ID, Event{Type: EventWaiting, Message: waitingMessage})
	e.logger.Debug("Client waiting", "client_id", c.ID, "tag", tag)
}

// Leave removes the client from the waiting pool and from its room. The
// client stays registered.
func (e *Engine) Leave(clientID string) {
	e.apply(func(out *outbox) {
		c, ok := e.clients[clientID]
		if !ok {
			return
		}
		e.pool.remove(clientID)
		e.leaveRoomLocked(out, clientID, ReasonLeft)
		c.State = StateConnected
		c.RoomID = ""
	})
}

// Disconnect runs the same cleanup as Leave and then forgets the client.
// Calling it for an unknown client is a no-op.
func (e *Engine) Disconnect(clientID string) {
	e.apply(func(out *outbox) {
		if _, ok := e.clients[clientID]; !ok {
			return
		}
		e.pool.remove(clientID)
		e.leaveRoomLocked(out, clientID, ReasonDisconnected)
		delete(e.clients, clientID)
		e.logger.Debug("Client disconnected", "client_id", clientID)
	})
}

// leaveRoomLocked destroys the room containing clientID, if any, and tells
// the other member its peer is gone.
func (e *Engine) leaveRoomLocked(out *outbox, clientID, reason string) {
	room, ok := e.rooms.lookup(clientID)
	if !ok {
		return
	}
	e.rooms.remove(room.ID)

	for _, m := range room.Members {
		if c, ok := e.clients[m]; ok {
			c.State = StateConnected
			c.RoomID = ""
		}
	}

	other := room.Other(clientID)
	out.notify(other, Event{Type: EventPeerDisconnected, RoomID: room.ID, PeerID: clientID})
	out.record(Lifecycle{
		Kind:     RoomClosed,
		RoomID:   room.ID,
		Members:  []string{room.Members[0], room.Members[1]},
		ClientID: clientID,
		Reason:   reason,
		At:       e.now(),
	})

	e.logger.Info("Room closed", "room_id", room.ID, "by", clientID, "reason", reason,
		"lifetime", e.now().Sub(room.CreatedAt))
}

// Relay forwards an opaque payload from sender to its current partner.
// It reports whether a partner existed; a sender without a partner is not
// an error, the payload is simply dropped.
func (e *Engine) Relay(senderID string, kind PayloadKind, payload []byte) bool {
	e.mu.Lock()
	partner, ok := e.rooms.partner(senderID)
	if !ok {
		e.mu.Unlock()
		e.logger.Debug("Relay dropped, sender has no partner", "client_id", senderID, "kind", kind)
		return false
	}

	var out outbox
	out.notify(partner, Event{Type: EventRelay, Kind: kind, Payload: payload, From: senderID})
	e.flush(&out)
	return true
}

// Reap evicts every waiter older than the TTL and returns how many it removed.
func (e *Engine) Reap() int {
	var evicted int
	e.apply(func(out *outbox) {
		now := e.now()
		for _, w := range e.pool.expired(now.Add(-e.ttl)) {
			e.pool.remove(w.clientID)
			if c, ok := e.clients[w.clientID]; ok {
				c.State = StateConnected
			}
			if e.notifyEvicted {
				out.notify(w.clientID, Event{Type: EventWaitingExpired, Message: expiredMessage})
			}
			out.record(Lifecycle{Kind: WaiterEvicted, ClientID: w.clientID, Tag: w.tag, At: now})
			evicted++
		}
	})
	if evicted > 0 {
		e.logger.Info("Evicted stale waiters", "count", evicted, "ttl", e.ttl)
	}
	return evicted
}

// Audit checks every invariant and, if one is broken, rebuilds the affected
// state into a consistent form. It returns the violation that was repaired.
func (e *Engine) Audit() error {
	var found error
	e.apply(func(out *outbox) {
		if found = e.checkLocked(); found != nil {
			e.logger.Error("Inconsistent matchmaking state, healing", "error", found)
			e.healLocked(out)
		}
	})
	return found
}

// CheckInvariants returns an ErrInvariant describing every inconsistency
// between the registry, the pool, the rooms and the pair index.
func (e *Engine) CheckInvariants() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checkLocked()
}

func (e *Engine) checkLocked() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for id, room := range e.rooms.rooms {
		a, b := room.Members[0], room.Members[1]
		if id != room.ID {
			add("room %s stored under %s", room.ID, id)
		}
		if a == "" || b == "" || a == b {
			add("room %s has members %q and %q", id, a, b)
			continue
		}
		if e.rooms.pairs[a] != b || e.rooms.pairs[b] != a {
			add("room %s: pair index is not {%s, %s}", id, a, b)
		}
		for _, m := range room.Members {
			if e.rooms.roomOf[m] != id {
				add("client %s: indexed in room %q instead of %s", m, e.rooms.roomOf[m], id)
			}
			c, ok := e.clients[m]
			switch {
			case !ok:
				add("room %s: member %s is not connected", id, m)
			case c.State != StatePaired || c.RoomID != id:
				add("client %s: state %s in room %q but member of %s", m, c.State, c.RoomID, id)
			}
			if e.pool.contains(m) {
				add("client %s is both waiting and paired", m)
			}
		}
	}

	if len(e.rooms.pairs) != 2*len(e.rooms.rooms) {
		add("pair index has %d entries for %d rooms", len(e.rooms.pairs), len(e.rooms.rooms))
	}
	for a, b := range e.rooms.pairs {
		if e.rooms.pairs[b] != a {
			add("pair index: %s -> %s is not mirrored", a, b)
		}
	}

	global := e.pool.queues[GlobalTag]
	for id, w := range e.pool.entries {
		if c, ok := e.clients[id]; !ok {
			add("waiter %s is not connected", id)
		} else if c.State != StateWaiting {
			add("waiter %s has state %s", id, c.State)
		}
		if _, ok := global.index[id]; !ok {
			add("waiter %s missing from the global queue", id)
		}
		if w.tag != GlobalTag {
			if q, ok := e.pool.queues[w.tag]; !ok {
				add("waiter %s missing from the %s queue", id, w.tag)
			} else if _, ok := q.index[id]; !ok {
				add("waiter %s missing from the %s queue", id, w.tag)
			}
		}
	}
	for tag, q := range e.pool.queues {
		for id := range q.index {
			w, ok := e.pool.entries[id]
			if !ok || (tag != GlobalTag && w.tag != tag) {
				add("queue %s holds stray entry %s", tag, id)
			}
		}
	}

	for id, c := range e.clients {
		if c.State == StateWaiting && !e.pool.contains(id) {
			add("client %s is waiting but not queued", id)
		}
		if c.State == StatePaired {
			if _, ok := e.rooms.pairs[id]; !ok {
				add("client %s is paired but has no partner", id)
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvariant, strings.Join(problems, "; "))
}

// healLocked drops every room and waiter that cannot be trusted and resets
// client states from what remains.
func (e *Engine) healLocked(out *outbox) {
	now := e.now()

	dropped := e.rooms.rebuild(func(r *Room) bool {
		for _, m := range r.Members {
			if _, ok := e.clients[m]; !ok {
				return false
			}
		}
		return true
	})
	for _, r := range dropped {
		for _, m := range r.Members {
			if _, ok := e.clients[m]; !ok {
				continue
			}
			if _, paired := e.rooms.roomOf[m]; !paired {
				out.notify(m, Event{Type: EventPeerDisconnected, RoomID: r.ID})
			}
		}
		out.record(Lifecycle{
			Kind:    RoomClosed,
			RoomID:  r.ID,
			Members: []string{r.Members[0], r.Members[1]},
			Reason:  ReasonHealed,
			At:      now,
		})
	}

	e.pool.rebuild(func(w *waitingEntry) bool {
		if _, ok := e.clients[w.clientID]; !ok {
			return false
		}
		_, paired := e.rooms.roomOf[w.clientID]
		return !paired
	})

	for id, c := range e.clients {
		switch roomID, paired := e.rooms.roomOf[id]; {
		case paired:
			c.State, c.RoomID = StatePaired, roomID
		case e.pool.contains(id):
			c.State, c.RoomID = StateWaiting, ""
		default:
			c.State, c.RoomID = StateConnected, ""
		}
	}
}

// Client returns a copy of the registry record for clientID.
func (e *Engine) Client(clientID string) (Client, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.clients[clientID]
	if !ok {
		return Client{}, false
	}
	return *c, true
}

// Partner returns the current partner of clientID.
func (e *Engine) Partner(clientID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms.partner(clientID)
}

// RoomOf returns the room clientID is a member of.
func (e *Engine) RoomOf(clientID string) (Room, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	room, ok := e.rooms.lookup(clientID)
	if !ok {
		return Room{}, false
	}
	return *room, true
}

// Room looks a room up by its ID.
func (e *Engine) Room(roomID string) (Room, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	room, ok := e.rooms.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return *room, true
}

// Waiting lists the clients queued under tag, oldest first.
func (e *Engine) Waiting(tag string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.pool.queues[NormalizeTag(tag)]
	if !ok {
		return nil
	}
	return q.ids()
}

// Stats summarises the current state.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Stats{
		Clients: len(e.clients),
		Waiting: e.pool.sizes(),
		Rooms:   len(e.rooms.rooms),
	}
}
