package matchmaking

import (
	"errors"
	"time"
)

var (
	// ErrUndeliverable is returned by a Notifier when the target connection
	// cannot take another event. The engine treats it as a disconnect.
	ErrUndeliverable = errors.New("client cannot accept events")

	// ErrUnknownClient is returned by a Notifier for an ID it has no
	// connection for.
	ErrUnknownClient = errors.New("unknown client")

	// ErrInvariant wraps every consistency violation found by CheckInvariants.
	ErrInvariant = errors.New("matchmaking invariant violated")
)

// State is where a connected client is in its lifecycle.
type State string

const (
	StateConnected State = "connected"
	StateWaiting   State = "waiting"
	StatePaired    State = "paired"
)

// Client is the registry record of a connected participant.
type Client struct {
	ID          string    `json:"client_id"`
	UserID      string    `json:"user_id,omitempty"`
	Tag         string    `json:"affinity_tag,omitempty"`
	State       State     `json:"state"`
	RoomID      string    `json:"room_id,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	RequestedAt time.Time `json:"requested_at,omitempty"`
}

// PayloadKind is the kind of an opaque payload relayed between partners.
type PayloadKind string

const (
	KindOffer        PayloadKind = "offer"
	KindAnswer       PayloadKind = "answer"
	KindICECandidate PayloadKind = "ice-candidate"
	KindChat         PayloadKind = "chat"
)

// ParseKind validates a payload kind received from a client.
func ParseKind(s string) (PayloadKind, bool) {
	switch k := PayloadKind(s); k {
	case KindOffer, KindAnswer, KindICECandidate, KindChat:
		return k, true
	}
	return "", false
}

// EventType names an event the engine sends to a client.
type EventType string

const (
	EventWaiting          EventType = "waiting"
	EventMatched          EventType = "matched"
	EventRelay            EventType = "relay"
	EventPeerDisconnected EventType = "peer_disconnected"
	EventWaitingExpired   EventType = "waiting_expired"
)

// Event is an outbound notification for a single client. Which fields are
// set depends on Type.
type Event struct {
	Type    EventType
	RoomID  string
	PeerID  string
	Message string

	// Relay fields. Payload is forwarded exactly as received.
	Kind    PayloadKind
	Payload []byte
	From    string
}

// Notifier delivers events to clients by ID. Implementations must not block;
// a connection that cannot keep up should be reported with ErrUndeliverable.
// Notify must not call back into the Engine.
type Notifier interface {
	Notify(clientID string, ev Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(clientID string, ev Event) error

func (f NotifierFunc) Notify(clientID string, ev Event) error {
	return f(clientID, ev)
}

// LifecycleKind names a room or pool transition reported to an Observer.
type LifecycleKind string

const (
	RoomCreated   LifecycleKind = "room.created"
	RoomClosed    LifecycleKind = "room.closed"
	WaiterEvicted LifecycleKind = "waiter.evicted"
)

// Close reasons carried by RoomClosed.
const (
	ReasonLeft         = "left"
	ReasonDisconnected = "disconnected"
	ReasonRequeued     = "requeued"
	ReasonHealed       = "healed"
)

// Lifecycle describes one transition of engine state.
type Lifecycle struct {
	Kind     LifecycleKind `json:"kind"`
	RoomID   string        `json:"room_id,omitempty"`
	Members  []string      `json:"members,omitempty"`
	ClientID string        `json:"client_id,omitempty"`
	Tag      string        `json:"affinity_tag,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	At       time.Time     `json:"at"`
}

// Observer receives lifecycle transitions after the engine lock is released.
type Observer interface {
	Observe(Lifecycle)
}

type nopObserver struct{}

func (nopObserver) Observe(Lifecycle) {}

// Stats is a point-in-time summary of engine state.
type Stats struct {
	Clients int            `json:"clients"`
	Waiting map[string]int `json:"waiting"`
	Rooms   int            `json:"rooms"`
}
