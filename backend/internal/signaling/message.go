package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BioHazard786/Warpchat/backend/internal/matchmaking"
)

// ErrMalformed is returned by Decode for frames that cannot be turned into a
// command. The connection stays open; the sender gets an error event.
var ErrMalformed = errors.New("malformed message")

// Message types, client to server.
const (
	TypeJoinWaiting  = "join_waiting"
	TypeSignal       = "signal"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeChatMessage  = "chat_message"
	TypeLeaveRoom    = "leave_room"
)

// Message types, server to client. TypeSignal and TypeChatMessage are used in
// both directions.
const (
	TypeConnected        = "connected"
	TypeWaiting          = "waiting"
	TypeMatched          = "matched"
	TypePeerDisconnected = "peer_disconnected"
	TypeWaitingExpired   = "waiting_expired"
	TypeError            = "error"
)

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	RoomID  string          `json:"room_id,omitempty"`
}

type JoinWaitingPayload struct {
	UserID      json.RawMessage `json:"userId,omitempty"`
	AffinityTag json.RawMessage `json:"affinityTag,omitempty"`
}

type SignalPayload struct {
	PayloadKind string          `json:"payloadKind"`
	Payload     json.RawMessage `json:"payload"`
	From        string          `json:"from,omitempty"`
}

type ChatPayload struct {
	Message json.RawMessage `json:"message"`
	From    string          `json:"from,omitempty"`
}

type ConnectedPayload struct {
	ClientID string `json:"clientId"`
}

type NoticePayload struct {
	Message string `json:"message"`
}

type MatchedPayload struct {
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// Command is a validated client request.
type Command interface {
	command()
}

// JoinWaiting asks to be matched. Tag is passed through as received; the
// engine normalizes it.
type JoinWaiting struct {
	UserID string
	Tag    string
}

// Relay forwards Payload to the sender's partner.
type Relay struct {
	Kind    matchmaking.PayloadKind
	Payload json.RawMessage
}

// LeaveRoom leaves the current room or cancels waiting.
type LeaveRoom struct{}

func (JoinWaiting) command() {}
func (Relay) command()       {}
func (LeaveRoom) command()   {}

// Decode parses one inbound frame into a Command.
func Decode(data []byte) (Command, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch msg.Type {
	case TypeJoinWaiting:
		var p JoinWaitingPayload
		if err := unmarshalOptional(msg.Payload, &p); err != nil {
			return nil, err
		}
		return JoinWaiting{UserID: stringOrEmpty(p.UserID), Tag: stringOrEmpty(p.AffinityTag)}, nil

	case TypeSignal:
		var p SignalPayload
		if err := unmarshalOptional(msg.Payload, &p); err != nil {
			return nil, err
		}
		kind, ok := matchmaking.ParseKind(p.PayloadKind)
		if !ok {
			return nil, fmt.Errorf("%w: unknown payloadKind %q", ErrMalformed, p.PayloadKind)
		}
		if isAbsent(p.Payload) {
			return nil, fmt.Errorf("%w: signal without payload", ErrMalformed)
		}
		return Relay{Kind: kind, Payload: p.Payload}, nil

	case TypeOffer, TypeAnswer, TypeICECandidate:
		if isAbsent(msg.Payload) {
			return nil, fmt.Errorf("%w: %s without payload", ErrMalformed, msg.Type)
		}
		kind, _ := matchmaking.ParseKind(msg.Type)
		return Relay{Kind: kind, Payload: msg.Payload}, nil

	case TypeChatMessage:
		var p ChatPayload
		if err := unmarshalOptional(msg.Payload, &p); err != nil {
			return nil, err
		}
		if isAbsent(p.Message) {
			return nil, fmt.Errorf("%w: chat_message without message", ErrMalformed)
		}
		return Relay{Kind: matchmaking.KindChat, Payload: p.Message}, nil

	case TypeLeaveRoom:
		return LeaveRoom{}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, msg.Type)
}

func unmarshalOptional(raw json.RawMessage, v any) error {
	if isAbsent(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// stringOrEmpty returns raw as a string if it holds one. Numbers, objects and
// the like are treated as absent.
func stringOrEmpty(raw json.RawMessage) string {
	var s string
	if isAbsent(raw) || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// newMessage builds an outbound message. Payload types in this file always
// marshal, so the error is not returned.
func newMessage(typ string, payload any) *Message {
	msg := &Message{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err == nil {
			msg.Payload = raw
		}
	}
	return msg
}

func errorMessage(text string) *Message {
	return newMessage(TypeError, ErrorPayload{Error: text})
}

// encodeEvent maps an engine event onto the wire.
func encodeEvent(ev matchmaking.Event) *Message {
	switch ev.Type {
	case matchmaking.EventWaiting:
		return newMessage(TypeWaiting, NoticePayload{Message: ev.Message})

	case matchmaking.EventMatched:
		msg := newMessage(TypeMatched, MatchedPayload{RoomID: ev.RoomID, PeerID: ev.PeerID})
		msg.RoomID = ev.RoomID
		return msg

	case matchmaking.EventRelay:
		if ev.Kind == matchmaking.KindChat {
			return newMessage(TypeChatMessage, ChatPayload{Message: ev.Payload, From: ev.From})
		}
		return newMessage(TypeSignal, SignalPayload{
			PayloadKind: string(ev.Kind),
			Payload:     ev.Payload,
			From:        ev.From,
		})

	case matchmaking.EventPeerDisconnected:
		return &Message{Type: TypePeerDisconnected, Payload: json.RawMessage(`{}`), RoomID: ev.RoomID}

	case matchmaking.EventWaitingExpired:
		return newMessage(TypeWaitingExpired, NoticePayload{Message: ev.Message})
	}
	return errorMessage(fmt.Sprintf("unsupported event %q", ev.Type))
}
