package signaling

import "encoding/json"

// Message represents all WebSocket messages between CLI and server.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	RoomID  string          `json:"room_id,omitempty"`
}

// Message type constants.
const (
	MessageTypeJoinWaiting = "join_waiting"
	MessageTypeSignal      = "signal"
	MessageTypeChat        = "chat_message"
	MessageTypeLeaveRoom   = "leave_room"

	MessageTypeConnected        = "connected"
	MessageTypeWaiting          = "waiting"
	MessageTypeMatched          = "matched"
	MessageTypePeerDisconnected = "peer_disconnected"
	MessageTypeWaitingExpired   = "waiting_expired"
	MessageTypeError            = "error"
)

// Signal payload kinds.
const (
	KindOffer        = "offer"
	KindAnswer       = "answer"
	KindICECandidate = "ice-candidate"
)

// JoinWaitingPayload asks the server for a partner.
type JoinWaitingPayload struct {
	UserID      string `json:"userId,omitempty"`
	AffinityTag string `json:"affinityTag,omitempty"`
}

// SignalPayload carries an opaque WebRTC value (SDP or ICE candidate).
// From is set by the server on delivery.
type SignalPayload struct {
	PayloadKind string          `json:"payloadKind"`
	Payload     json.RawMessage `json:"payload"`
	From        string          `json:"from,omitempty"`
}

// ChatPayload is a relayed chat message.
type ChatPayload struct {
	Message json.RawMessage `json:"message"`
	From    string          `json:"from,omitempty"`
}

// Text returns the message as a string. Non-string values are returned in
// their JSON form.
func (p *ChatPayload) Text() string {
	var s string
	if err := json.Unmarshal(p.Message, &s); err == nil {
		return s
	}
	return string(p.Message)
}

type ConnectedPayload struct {
	ClientID string `json:"clientId"`
}

type NoticePayload struct {
	Message string `json:"message"`
}

// MatchedPayload announces a new room.
type MatchedPayload struct {
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
}

// ErrorPayload represents error messages from server.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Stats is the body of the server's GET /stats.
type Stats struct {
	Clients     int            `json:"clients"`
	Connections int            `json:"connections"`
	Rooms       int            `json:"rooms"`
	Waiting     map[string]int `json:"waiting"`
}
