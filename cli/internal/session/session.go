// Package session drives one chat from the terminal: it joins the waiting
// pool, negotiates a WebRTC data channel with each matched stranger, and falls
// back to relaying chat through the server when the channel is not open.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BioHazard786/Warpchat/cli/internal/chat"
	"github.com/BioHazard786/Warpchat/cli/internal/config"
	"github.com/BioHazard786/Warpchat/cli/internal/peer"
	"github.com/BioHazard786/Warpchat/cli/internal/signaling"
	"github.com/BioHazard786/Warpchat/cli/internal/ui"
)

const connectTimeout = 15 * time.Second

var (
	ErrServerGone     = errors.New("connection to server lost")
	ErrConnectTimeout = errors.New("server did not acknowledge the connection")
)

// UI is what the session needs from the chat screen.
type UI interface {
	SetSearching(text string)
	SetConnected(text string)
	PeerMessage(text string)
	PeerTyping()
	Notice(text string)
	Error(text string)
	Actions() <-chan ui.Action
	Done() <-chan struct{}
}

// Options are the user's matching and transport choices.
type Options struct {
	UserID string
	Tag    string
	// RelayChat sends every message through the server instead of a
	// data channel.
	RelayChat bool
}

// Session owns the signaling connection for the lifetime of a chat.
type Session struct {
	cfg     *config.Config
	client  *signaling.Client
	handler *signaling.Handler
	ui      UI
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	selfID string
	roomID string
	peerID string
	peer   *peer.Peer

	// Nil unless a peer is live, so the select ignores them.
	peerFrames <-chan chat.Frame
	peerOpen   <-chan struct{}
	peerFailed <-chan struct{}

	summary ui.SessionSummary
	started time.Time
}

// New wires a session around a connected client whose handler is running.
func New(cfg *config.Config, client *signaling.Client, handler *signaling.Handler, screen UI, opts Options, logger *slog.Logger) *Session {
	return &Session{
		cfg:     cfg,
		client:  client,
		handler: handler,
		ui:      screen,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Run waits for the server greeting, then chats until the user quits, ctx is
// cancelled or the server goes away.
func (s *Session) Run(ctx context.Context) (ui.SessionSummary, error) {
	s.started = s.now()

	select {
	case id := <-s.handler.Connected:
		s.selfID = id
		s.logger.Debug("connected to server", "client_id", id)
	case <-s.handler.Closed():
		return s.finish(), ErrServerGone
	case <-ctx.Done():
		return s.finish(), ctx.Err()
	case <-time.After(connectTimeout):
		return s.finish(), ErrConnectTimeout
	}

	s.join()

	for {
		select {
		case <-ctx.Done():
			s.leave()
			return s.finish(), nil

		case <-s.ui.Done():
			s.leave()
			return s.finish(), nil

		case <-s.handler.Closed():
			s.closePeer()
			return s.finish(), ErrServerGone

		case a := <-s.ui.Actions():
			if s.handleAction(a) {
				s.leave()
				return s.finish(), nil
			}

		case text := <-s.handler.Waiting:
			if text == "" {
				text = "Looking for a stranger..."
			}
			s.ui.SetSearching(text)

		case m := <-s.handler.Matched:
			s.startMatch(m)

		case sig := <-s.handler.Signal:
			s.handleSignal(sig)

		case msg := <-s.handler.Chat:
			if s.peerID == "" || (msg.From != "" && msg.From != s.peerID) {
				continue
			}
			s.summary.Received++
			s.ui.PeerMessage(msg.Text())

		case roomID := <-s.handler.PeerDisconnected:
			if s.peerID == "" || (roomID != "" && roomID != s.roomID) {
				continue
			}
			s.endMatch()
			s.ui.Notice("Stranger has disconnected.")
			s.join()

		case text := <-s.handler.Expired:
			if s.peerID != "" {
				continue
			}
			if text == "" {
				text = "No one showed up in time."
			}
			s.ui.Notice(text + " Searching again.")
			s.join()

		case text := <-s.handler.Error:
			s.ui.Error(text)

		case f := <-s.peerFrames:
			s.handleFrame(f)

		case <-s.peerOpen:
			s.peerOpen = nil
			s.ui.Notice("Direct connection established.")

		case <-s.peerFailed:
			s.peerFailed = nil
			s.peerOpen = nil
			s.ui.Notice("Direct connection unavailable, messages go through the server.")
		}
	}
}

func (s *Session) join() {
	s.ui.SetSearching(s.searchingText())
	if err := s.client.JoinWaiting(s.opts.UserID, s.opts.Tag); err != nil {
		s.ui.Error(err.Error())
	}
}

func (s *Session) searchingText() string {
	if s.opts.Tag != "" {
		return "Looking for a stranger in " + s.opts.Tag + "..."
	}
	return "Looking for a stranger..."
}

// handleAction carries out a user action and reports whether to quit.
func (s *Session) handleAction(a ui.Action) bool {
	switch a.Kind {
	case ui.ActionSend:
		if s.peerID == "" {
			s.ui.Notice("No one to talk to yet.")
			return false
		}
		if err := s.sendText(a.Text); err != nil {
			s.ui.Error(err.Error())
			return false
		}
		s.summary.Sent++

	case ui.ActionTyping:
		if s.directOpen() {
			if f, err := chat.NewFrame(chat.FrameTyping, nil); err == nil {
				s.peer.Send(f)
			}
		}

	case ui.ActionNext:
		s.leave()
		s.join()

	case ui.ActionTag:
		s.opts.Tag = a.Text
		if a.Text == "" {
			s.ui.Notice("Tag cleared.")
		} else {
			s.ui.Notice("Matching within " + a.Text + " from now on.")
		}
		if s.peerID == "" {
			s.join()
		}

	case ui.ActionQuit:
		return true
	}
	return false
}

func (s *Session) sendText(text string) error {
	if s.directOpen() {
		f, err := chat.NewText(text, s.now())
		if err != nil {
			return err
		}
		if err = s.peer.Send(f); err == nil {
			return nil
		}
		s.logger.Debug("data channel send failed, relaying", "error", err)
	}
	return s.client.SendChat(text)
}

func (s *Session) directOpen() bool {
	return !s.opts.RelayChat && s.peer != nil && s.peer.IsOpen()
}

func (s *Session) startMatch(m *signaling.MatchedPayload) {
	s.closePeer()
	s.roomID, s.peerID = m.RoomID, m.PeerID
	s.summary.Strangers++
	s.ui.SetConnected("You're now chatting with a random stranger. Say hi!")

	if s.opts.RelayChat {
		return
	}

	p, err := peer.New(s.cfg, s.client, s.logger)
	if err != nil {
		s.logger.Warn("peer setup failed", "error", err)
		return
	}
	s.peer = p
	s.peerFrames, s.peerOpen, s.peerFailed = p.Frames(), p.Open(), p.Failed()

	// The smaller client ID makes the offer.
	if s.selfID < s.peerID {
		if err := p.Offer(); err != nil {
			s.logger.Warn("offer failed", "error", err)
		}
	}
}

func (s *Session) handleSignal(sig *signaling.SignalPayload) {
	if s.peer == nil || sig.From != s.peerID {
		s.logger.Debug("ignoring signal", "from", sig.From, "kind", sig.PayloadKind)
		return
	}
	if err := s.peer.HandleSignal(sig.PayloadKind, sig.Payload); err != nil {
		s.logger.Debug("signal failed", "kind", sig.PayloadKind, "error", err)
	}
}

func (s *Session) handleFrame(f chat.Frame) {
	switch f.Type {
	case chat.FrameText:
		p, err := f.Text()
		if err != nil {
			s.logger.Debug("bad text frame", "error", err)
			return
		}
		s.summary.Received++
		s.ui.PeerMessage(p.Text)
	case chat.FrameTyping:
		s.ui.PeerTyping()
	case chat.FrameBye:
		s.ui.Notice("Stranger said goodbye.")
	}
}

// leave ends the current match, or stops waiting.
func (s *Session) leave() {
	if s.directOpen() {
		if f, err := chat.NewFrame(chat.FrameBye, nil); err == nil {
			s.peer.Send(f)
		}
	}
	s.endMatch()
	if err := s.client.LeaveRoom(); err != nil {
		s.logger.Debug("leave failed", "error", err)
	}
}

func (s *Session) endMatch() {
	s.closePeer()
	s.roomID, s.peerID = "", ""
}

func (s *Session) closePeer() {
	if s.peer != nil {
		s.peer.Close()
	}
	s.peer = nil
	s.peerFrames, s.peerOpen, s.peerFailed = nil, nil, nil
}

func (s *Session) finish() ui.SessionSummary {
	s.summary.Duration = s.now().Sub(s.started)
	return s.summary
}
