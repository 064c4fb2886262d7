// Package chat defines what two matched peers exchange over the "chat" data
// channel, and the slash commands understood by the chat prompt.
package chat

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ChannelLabel is the label of the data channel carrying Frames.
const ChannelLabel = "chat"

// Frame types.
const (
	FrameText   = "text"
	FrameTyping = "typing"
	FrameBye    = "bye"
)

// Frame is one data channel message.
type Frame struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// TextPayload is the payload of a FrameText.
type TextPayload struct {
	Text   string `msgpack:"text"`
	SentAt int64  `msgpack:"sentAt"`
}

// NewFrame creates a new Frame with the given type and payload. A nil payload
// encodes as msgpack nil.
func NewFrame(t string, payload any) (Frame, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: t, Payload: b}, nil
}

// NewText builds a text frame stamped with now.
func NewText(text string, now time.Time) (Frame, error) {
	return NewFrame(FrameText, TextPayload{Text: text, SentAt: now.UnixMilli()})
}

// DecodePayload decodes the frame payload into v.
func (f Frame) DecodePayload(v any) error {
	return msgpack.Unmarshal(f.Payload, v)
}

// Text returns the payload of a text frame.
func (f Frame) Text() (TextPayload, error) {
	var p TextPayload
	if f.Type != FrameText {
		return p, fmt.Errorf("frame type %q is not %q", f.Type, FrameText)
	}
	err := f.DecodePayload(&p)
	return p, err
}

// Encode serializes f for the data channel.
func Encode(f Frame) ([]byte, error) {
	return msgpack.Marshal(f)
}

// Decode parses a data channel message.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("decode frame: missing type")
	}
	return f, nil
}
