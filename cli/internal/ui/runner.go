package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

const uiBuffer = 64

// ChatUI runs the chat screen and feeds it events from the session.
type ChatUI struct {
	program *tea.Program
	events  chan chatEvent
	actions chan Action
	done    chan struct{}
	once    sync.Once
	err     error
}

// NewChatUI creates the chat screen. opts are passed to tea.NewProgram.
func NewChatUI(opts ...tea.ProgramOption) *ChatUI {
	events := make(chan chatEvent, uiBuffer)
	actions := make(chan Action, uiBuffer)

	return &ChatUI{
		program: tea.NewProgram(newChatModel(events, actions), opts...),
		events:  events,
		actions: actions,
		done:    make(chan struct{}),
	}
}

// Start runs the program in a goroutine.
func (u *ChatUI) Start() {
	go func() {
		defer close(u.done)
		_, u.err = u.program.Run()
	}()
}

// Stop quits the program and waits for it to restore the terminal.
func (u *ChatUI) Stop() error {
	u.once.Do(u.program.Quit)
	<-u.done
	return u.err
}

// Actions delivers what the user asked for.
func (u *ChatUI) Actions() <-chan Action { return u.actions }

// Done is closed when the program exits.
func (u *ChatUI) Done() <-chan struct{} { return u.done }

func (u *ChatUI) push(ev chatEvent) {
	select {
	case u.events <- ev:
	case <-u.done:
	}
}

func (u *ChatUI) SetSearching(text string) { u.push(chatEvent{kind: eventSearching, text: text}) }
func (u *ChatUI) SetConnected(text string) { u.push(chatEvent{kind: eventConnected, text: text}) }
func (u *ChatUI) PeerMessage(text string)  { u.push(chatEvent{kind: eventPeerMessage, text: text}) }
func (u *ChatUI) PeerTyping()              { u.push(chatEvent{kind: eventPeerTyping}) }
func (u *ChatUI) Notice(text string)       { u.push(chatEvent{kind: eventNotice, text: text}) }
func (u *ChatUI) Error(text string)        { u.push(chatEvent{kind: eventError, text: text}) }
