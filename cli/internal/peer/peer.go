// Package peer runs the WebRTC side of a chat: one peer connection per match,
// carrying a single ordered "chat" data channel. SDP and ICE candidates travel
// through a Signaler.
package peer

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/BioHazard786/Warpchat/cli/internal/chat"
	"github.com/BioHazard786/Warpchat/cli/internal/config"
	"github.com/BioHazard786/Warpchat/cli/internal/netutil"
	"github.com/BioHazard786/Warpchat/cli/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

const frameBuffer = 64

// Signaler relays a WebRTC value to the remote peer.
type Signaler interface {
	SendSignal(kind string, payload any) error
}

// Peer is one WebRTC connection to a matched partner.
type Peer struct {
	pc       *pion.PeerConnection
	signaler Signaler
	logger   *slog.Logger

	mu        sync.Mutex
	dc        *pion.DataChannel
	remoteSet bool
	pending   []pion.ICECandidateInit

	frames    chan chat.Frame
	open      chan struct{}
	failed    chan struct{}
	openOnce  sync.Once
	failOnce  sync.Once
	closeOnce sync.Once
}

// NewPeerConnection builds a pion peer connection from the ICE settings in cfg.
func NewPeerConnection(cfg *config.Config) (*pion.PeerConnection, error) {
	var iceServers []pion.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, pion.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || netutil.ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	return pc, nil
}

// New creates a Peer. Local ICE candidates are sent through signaler as they
// are gathered.
func New(cfg *config.Config, signaler Signaler, logger *slog.Logger) (*Peer, error) {
	pc, err := NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	p := &Peer{
		pc:       pc,
		signaler: signaler,
		logger:   logger,
		frames:   make(chan chat.Frame, frameBuffer),
		open:     make(chan struct{}),
		failed:   make(chan struct{}),
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		if err := signaler.SendSignal(signaling.KindICECandidate, c.ToJSON()); err != nil {
			logger.Debug("send ICE candidate failed", "error", err)
		}
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		logger.Debug("peer connection state", "state", state.String())
		if state == pion.PeerConnectionStateFailed || state == pion.PeerConnectionStateClosed {
			p.fail()
		}
	})

	pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() != chat.ChannelLabel {
			logger.Debug("ignoring data channel", "label", dc.Label())
			return
		}
		p.attach(dc)
	})

	return p, nil
}

// Offer creates the chat channel and sends an SDP offer. Only the side with
// the smaller client ID calls it.
func (p *Peer) Offer() error {
	ordered := true
	dc, err := p.pc.CreateDataChannel(chat.ChannelLabel, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return NewError("create data channel", err)
	}
	p.attach(dc)

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return NewError("create offer", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return NewError("set local description", err)
	}
	if err := p.signaler.SendSignal(signaling.KindOffer, p.pc.LocalDescription()); err != nil {
		return NewError("send offer", err)
	}
	return nil
}

// HandleSignal applies a relayed offer, answer or ICE candidate. Candidates
// that arrive before the remote description are held until it is set.
func (p *Peer) HandleSignal(kind string, payload json.RawMessage) error {
	switch kind {
	case signaling.KindOffer:
		desc, err := parseDescription(payload, pion.SDPTypeOffer)
		if err != nil {
			return err
		}
		if err := p.setRemote(desc); err != nil {
			return err
		}

		answer, err := p.pc.CreateAnswer(nil)
		if err != nil {
			return NewError("create answer", err)
		}
		if err := p.pc.SetLocalDescription(answer); err != nil {
			return NewError("set local description", err)
		}
		if err := p.signaler.SendSignal(signaling.KindAnswer, p.pc.LocalDescription()); err != nil {
			return NewError("send answer", err)
		}
		return nil

	case signaling.KindAnswer:
		desc, err := parseDescription(payload, pion.SDPTypeAnswer)
		if err != nil {
			return err
		}
		return p.setRemote(desc)

	case signaling.KindICECandidate:
		var ice pion.ICECandidateInit
		if err := json.Unmarshal(payload, &ice); err != nil {
			return NewError("parse ICE candidate", err)
		}
		if ice.Candidate == "" {
			return nil
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.remoteSet {
			p.pending = append(p.pending, ice)
			return nil
		}
		if err := p.pc.AddICECandidate(ice); err != nil {
			return NewError("add ICE candidate", err)
		}
		return nil
	}
	return WrapError("handle signal", ErrUnexpectedSignal, kind)
}

func (p *Peer) setRemote(desc pion.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return NewError("set remote description", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteSet = true
	for _, ice := range p.pending {
		if err := p.pc.AddICECandidate(ice); err != nil {
			p.logger.Debug("add queued ICE candidate failed", "error", err)
		}
	}
	p.pending = nil
	return nil
}

func parseDescription(payload json.RawMessage, want pion.SDPType) (pion.SessionDescription, error) {
	var desc pion.SessionDescription
	if err := json.Unmarshal(payload, &desc); err != nil {
		return desc, NewError("parse session description", err)
	}
	if desc.Type != want {
		return desc, WrapError("parse session description", ErrUnexpectedSignal, desc.Type.String())
	}
	return desc, nil
}

func (p *Peer) attach(dc *pion.DataChannel) {
	p.mu.Lock()
	p.dc = dc
	p.mu.Unlock()

	dc.OnOpen(func() {
		p.openOnce.Do(func() { close(p.open) })
	})

	dc.OnMessage(func(msg pion.DataChannelMessage) {
		f, err := chat.Decode(msg.Data)
		if err != nil {
			p.logger.Debug("dropping bad frame", "error", err)
			return
		}
		select {
		case p.frames <- f:
		default:
			p.logger.Warn("frame buffer full, dropping frame", "type", f.Type)
		}
	})

	dc.OnClose(p.fail)
}

func (p *Peer) fail() {
	p.failOnce.Do(func() { close(p.failed) })
}

// Send writes f to the chat channel.
func (p *Peer) Send(f chat.Frame) error {
	p.mu.Lock()
	dc := p.dc
	p.mu.Unlock()

	if dc == nil || dc.ReadyState() != pion.DataChannelStateOpen {
		return ErrChannelNotOpen
	}

	data, err := chat.Encode(f)
	if err != nil {
		return NewError("encode frame", err)
	}
	if err := dc.Send(data); err != nil {
		return NewError("send frame", err)
	}
	return nil
}

// IsOpen reports whether the chat channel is ready for Send.
func (p *Peer) IsOpen() bool {
	select {
	case <-p.open:
		return true
	default:
		return false
	}
}

// Frames delivers decoded frames from the remote peer.
func (p *Peer) Frames() <-chan chat.Frame { return p.frames }

// Open is closed once the chat channel opens.
func (p *Peer) Open() <-chan struct{} { return p.open }

// Failed is closed when the connection fails or the channel closes.
func (p *Peer) Failed() <-chan struct{} { return p.failed }

// Close tears down the peer connection.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.fail()
		err = p.pc.Close()
	})
	return err
}
