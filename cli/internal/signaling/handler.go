package signaling

import (
	"encoding/json"
	"sync"
)

// Handler routes incoming signaling messages to typed channels.
type Handler struct {
	client *Client

	Connected        chan string
	Waiting          chan string
	Matched          chan *MatchedPayload
	Signal           chan *SignalPayload
	Chat             chan *ChatPayload
	PeerDisconnected chan string
	Expired          chan string
	Error            chan string

	closed chan struct{}
	stop   chan struct{}
	once   sync.Once
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:           client,
		Connected:        make(chan string, 1),
		Waiting:          make(chan string, 4),
		Matched:          make(chan *MatchedPayload, 4),
		Signal:           make(chan *SignalPayload, 32),
		Chat:             make(chan *ChatPayload, 32),
		PeerDisconnected: make(chan string, 4),
		Expired:          make(chan string, 4),
		Error:            make(chan string, 4),
		closed:           make(chan struct{}),
		stop:             make(chan struct{}),
	}
}

// Start routes messages until the connection closes or Stop is called.
func (h *Handler) Start() {
	defer close(h.closed)

	for msg := range h.client.Incoming() {
		switch msg.Type {

		case MessageTypeConnected:
			var p ConnectedPayload
			if h.decode(msg, &p) {
				deliver(h, h.Connected, p.ClientID)
			}

		case MessageTypeWaiting:
			deliver(h, h.Waiting, noticeText(msg))

		case MessageTypeMatched:
			var p MatchedPayload
			if h.decode(msg, &p) {
				if p.RoomID == "" {
					p.RoomID = msg.RoomID
				}
				deliver(h, h.Matched, &p)
			}

		case MessageTypeSignal:
			var p SignalPayload
			if h.decode(msg, &p) {
				deliver(h, h.Signal, &p)
			}

		case MessageTypeChat:
			var p ChatPayload
			if h.decode(msg, &p) {
				deliver(h, h.Chat, &p)
			}

		case MessageTypePeerDisconnected:
			deliver(h, h.PeerDisconnected, msg.RoomID)

		case MessageTypeWaitingExpired:
			deliver(h, h.Expired, noticeText(msg))

		case MessageTypeError:
			var p ErrorPayload
			if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &p) != nil || p.Error == "" {
				p.Error = "Unknown error from server"
			}
			deliver(h, h.Error, p.Error)
		}

		select {
		case <-h.stop:
			return
		default:
		}
	}
}

// Closed is closed once Start returns.
func (h *Handler) Closed() <-chan struct{} {
	return h.closed
}

// Stop makes Start return without waiting for readers of the channels.
func (h *Handler) Stop() {
	h.once.Do(func() { close(h.stop) })
}

func (h *Handler) decode(msg *Message, v any) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		deliver(h, h.Error, "Failed to parse "+msg.Type+" payload")
		return false
	}
	return true
}

func deliver[T any](h *Handler, ch chan T, v T) {
	select {
	case ch <- v:
	case <-h.stop:
	}
}

func noticeText(msg *Message) string {
	var p NoticePayload
	if len(msg.Payload) > 0 {
		json.Unmarshal(msg.Payload, &p)
	}
	return p.Message
}
