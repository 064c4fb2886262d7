package peer

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BioHazard786/Warpchat/cli/internal/chat"
	"github.com/BioHazard786/Warpchat/cli/internal/config"
	"github.com/BioHazard786/Warpchat/cli/internal/signaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signal struct {
	kind    string
	payload json.RawMessage
}

// pipe delivers signals to the other peer in order, like the server would.
type pipe struct {
	queue chan signal
}

func (p *pipe) SendSignal(kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.queue <- signal{kind: kind, payload: raw}
	return nil
}

func (p *pipe) forward(t *testing.T, to **Peer) {
	go func() {
		for sig := range p.queue {
			if err := (*to).HandleSignal(sig.kind, sig.payload); err != nil {
				t.Logf("handle %s: %v", sig.kind, err)
			}
		}
	}()
}

func offlineConfig() *config.Config {
	return &config.Config{}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPeer_ChatOverDataChannel(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real ICE sockets")
	}

	toB := &pipe{queue: make(chan signal, 64)}
	toA := &pipe{queue: make(chan signal, 64)}

	var a, b *Peer
	var err error
	a, err = New(offlineConfig(), toB, quietLogger())
	require.NoError(t, err)
	b, err = New(offlineConfig(), toA, quietLogger())
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	toB.forward(t, &b)
	toA.forward(t, &a)

	require.NoError(t, a.Offer())

	for _, p := range []*Peer{a, b} {
		select {
		case <-p.Open():
		case <-time.After(15 * time.Second):
			t.Fatal("data channel did not open")
		}
	}
	assert.True(t, a.IsOpen())

	f, err := chat.NewText("hi stranger", time.Now())
	require.NoError(t, err)
	require.NoError(t, a.Send(f))

	select {
	case got := <-b.Frames():
		p, err := got.Text()
		require.NoError(t, err)
		assert.Equal(t, "hi stranger", p.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("frame not delivered")
	}

	require.NoError(t, a.Close())
	select {
	case <-a.Failed():
	case <-time.After(5 * time.Second):
		t.Fatal("closed peer not marked failed")
	}
}

func TestPeer_SendBeforeOpen(t *testing.T) {
	p, err := New(offlineConfig(), &pipe{queue: make(chan signal, 8)}, quietLogger())
	require.NoError(t, err)
	defer p.Close()

	f, err := chat.NewFrame(chat.FrameTyping, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, p.Send(f), ErrChannelNotOpen)
	assert.False(t, p.IsOpen())
}

func TestPeer_HandleSignalErrors(t *testing.T) {
	p, err := New(offlineConfig(), &pipe{queue: make(chan signal, 8)}, quietLogger())
	require.NoError(t, err)
	defer p.Close()

	err = p.HandleSignal("bogus", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnexpectedSignal)

	err = p.HandleSignal(signaling.KindAnswer, json.RawMessage(`{"type":"offer","sdp":""}`))
	assert.ErrorIs(t, err, ErrUnexpectedSignal)

	err = p.HandleSignal(signaling.KindICECandidate, json.RawMessage(`not json`))
	var perr *Error
	assert.ErrorAs(t, err, &perr)
	assert.Equal(t, "parse ICE candidate", perr.Op)

	// Candidates before the remote description are queued, not rejected.
	err = p.HandleSignal(signaling.KindICECandidate,
		json.RawMessage(`{"candidate":"candidate:1 1 udp 2130706431 192.0.2.1 50000 typ host","sdpMid":"0","sdpMLineIndex":0}`))
	require.NoError(t, err)
	assert.Len(t, p.pending, 1)

	assert.NoError(t, p.HandleSignal(signaling.KindICECandidate, json.RawMessage(`{"candidate":""}`)))
}

func TestError_Format(t *testing.T) {
	assert.Equal(t, "send offer: channel not open", NewError("send offer", ErrChannelNotOpen).Error())
	assert.Equal(t, "handle signal: unexpected signal type (bogus)",
		WrapError("handle signal", ErrUnexpectedSignal, "bogus").Error())
}
