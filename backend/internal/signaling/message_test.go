package signaling

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Warpchat/backend/internal/matchmaking"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Command
		wantErr bool
	}{
		{
			name:  "join with tag and user",
			frame: `{"type":"join_waiting","payload":{"userId":"u1","affinityTag":"US"}}`,
			want:  JoinWaiting{UserID: "u1", Tag: "US"},
		},
		{
			name:  "join without payload",
			frame: `{"type":"join_waiting"}`,
			want:  JoinWaiting{},
		},
		{
			name:  "join with non-string tag",
			frame: `{"type":"join_waiting","payload":{"affinityTag":["US"]}}`,
			want:  JoinWaiting{},
		},
		{
			name:  "signal",
			frame: `{"type":"signal","payload":{"payloadKind":"ice-candidate","payload":{"candidate":"c"}}}`,
			want:  Relay{Kind: matchmaking.KindICECandidate, Payload: json.RawMessage(`{"candidate":"c"}`)},
		},
		{
			name:  "offer alias",
			frame: `{"type":"offer","payload":{"sdp":"v=0"}}`,
			want:  Relay{Kind: matchmaking.KindOffer, Payload: json.RawMessage(`{"sdp":"v=0"}`)},
		},
		{
			name:  "chat",
			frame: `{"type":"chat_message","payload":{"message":"hi"}}`,
			want:  Relay{Kind: matchmaking.KindChat, Payload: json.RawMessage(`"hi"`)},
		},
		{
			name:  "leave",
			frame: `{"type":"leave_room","payload":{}}`,
			want:  LeaveRoom{},
		},
		{name: "not json", frame: `{`, wantErr: true},
		{name: "missing type", frame: `{"payload":{}}`, wantErr: true},
		{name: "unknown type", frame: `{"type":"create_room"}`, wantErr: true},
		{name: "unknown kind", frame: `{"type":"signal","payload":{"payloadKind":"video","payload":1}}`, wantErr: true},
		{name: "signal without payload", frame: `{"type":"signal","payload":{"payloadKind":"offer"}}`, wantErr: true},
		{name: "answer alias without payload", frame: `{"type":"answer","payload":null}`, wantErr: true},
		{name: "chat without message", frame: `{"type":"chat_message","payload":{}}`, wantErr: true},
		{name: "payload of wrong shape", frame: `{"type":"chat_message","payload":"hi"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.frame))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeEvent(t *testing.T) {
	t.Run("matched", func(t *testing.T) {
		msg := encodeEvent(matchmaking.Event{Type: matchmaking.EventMatched, RoomID: "room_1", PeerID: "p"})
		assert.Equal(t, TypeMatched, msg.Type)
		assert.Equal(t, "room_1", msg.RoomID)
		assert.JSONEq(t, `{"roomId":"room_1","peerId":"p"}`, string(msg.Payload))
	})

	t.Run("signal keeps payload bytes", func(t *testing.T) {
		msg := encodeEvent(matchmaking.Event{
			Type:    matchmaking.EventRelay,
			Kind:    matchmaking.KindAnswer,
			Payload: []byte(`{"sdp":"v=0","nested":[1,2]}`),
			From:    "a",
		})
		assert.Equal(t, TypeSignal, msg.Type)
		assert.JSONEq(t, `{"payloadKind":"answer","payload":{"sdp":"v=0","nested":[1,2]},"from":"a"}`, string(msg.Payload))
	})

	t.Run("chat", func(t *testing.T) {
		msg := encodeEvent(matchmaking.Event{
			Type:    matchmaking.EventRelay,
			Kind:    matchmaking.KindChat,
			Payload: []byte(`"hey"`),
			From:    "a",
		})
		assert.Equal(t, TypeChatMessage, msg.Type)
		assert.JSONEq(t, `{"message":"hey","from":"a"}`, string(msg.Payload))
	})

	t.Run("peer disconnected", func(t *testing.T) {
		msg := encodeEvent(matchmaking.Event{Type: matchmaking.EventPeerDisconnected, RoomID: "room_1"})
		assert.Equal(t, TypePeerDisconnected, msg.Type)
		assert.JSONEq(t, `{}`, string(msg.Payload))
	})

	t.Run("waiting and expired", func(t *testing.T) {
		msg := encodeEvent(matchmaking.Event{Type: matchmaking.EventWaiting, Message: "wait"})
		assert.Equal(t, TypeWaiting, msg.Type)
		assert.JSONEq(t, `{"message":"wait"}`, string(msg.Payload))

		msg = encodeEvent(matchmaking.Event{Type: matchmaking.EventWaitingExpired, Message: "gone"})
		assert.Equal(t, TypeWaitingExpired, msg.Type)
	})
}
