package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/BioHazard786/Warpchat/cli/internal/chat"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	typingThrottle = 2 * time.Second
	typingShown    = 3 * time.Second
	maxTranscript  = 500
	defaultRows    = 20
)

// ActionKind is something the user asked for at the prompt.
type ActionKind int

const (
	ActionSend ActionKind = iota
	ActionTyping
	ActionNext
	ActionTag
	ActionQuit
)

// Action is emitted by the chat screen for the session to carry out.
type Action struct {
	Kind ActionKind
	Text string
}

type eventKind int

const (
	eventSearching eventKind = iota
	eventConnected
	eventPeerMessage
	eventPeerTyping
	eventNotice
	eventError
)

// chatEvent is pushed into the model from outside the bubbletea loop.
type chatEvent struct {
	kind eventKind
	text string
}

// chatModel is the interactive chat screen.
type chatModel struct {
	input   textinput.Model
	spinner spinner.Model

	lines     []string
	status    string
	searching bool
	quitting  bool
	height    int

	typingUntil    time.Time
	lastTypingSent time.Time

	events  <-chan chatEvent
	actions chan<- Action
	now     func() time.Time
}

func newChatModel(events <-chan chatEvent, actions chan<- Action) *chatModel {
	input := textinput.New()
	input.Placeholder = "Type a message, /help for commands"
	input.CharLimit = 2000
	input.Prompt = "> "
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = SpinnerStyle

	return &chatModel{
		input:     input,
		spinner:   s,
		status:    "Connecting...",
		searching: true,
		height:    defaultRows,
		events:    events,
		actions:   actions,
		now:       time.Now,
	}
}

func (m *chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.listenForEvents())
}

func (m *chatModel) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return nil
		}
		return ev
	}
}

func (m *chatModel) emit(a Action) {
	select {
	case m.actions <- a:
	default:
	}
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.emit(Action{Kind: ActionQuit})
			m.quitting = true
			return m, tea.Quit

		case tea.KeyEnter:
			if m.submit(m.input.Value()) {
				m.quitting = true
				return m, tea.Quit
			}
			m.input.Reset()
			return m, nil
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)

		if after := m.input.Value(); after != before && after != "" && !m.searching && !chat.IsCommand(after) {
			if now := m.now(); now.Sub(m.lastTypingSent) >= typingThrottle {
				m.lastTypingSent = now
				m.emit(Action{Kind: ActionTyping})
			}
		}

	case tea.WindowSizeMsg:
		m.height = max(msg.Height-4, 3)
		m.input.Width = max(msg.Width-4, 10)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case chatEvent:
		m.apply(msg)
		cmds = append(cmds, m.listenForEvents())

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// submit handles one entered line and reports whether the user quit.
func (m *chatModel) submit(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if chat.IsCommand(line) {
		cmd, err := chat.ParseCommand(line)
		if err != nil {
			m.appendLine(ErrorStyle.Render(err.Error()))
			return false
		}
		switch cmd.Name {
		case chat.CmdHelp:
			for _, l := range strings.Split(chat.HelpText, "\n") {
				m.appendLine(NoticeStyle.Render(l))
			}
		case chat.CmdNext:
			m.emit(Action{Kind: ActionNext})
		case chat.CmdTag:
			tag := ""
			if len(cmd.Args) == 1 {
				tag = cmd.Args[0]
			}
			m.emit(Action{Kind: ActionTag, Text: tag})
		case chat.CmdQuit:
			m.emit(Action{Kind: ActionQuit})
			return true
		}
		return false
	}

	if m.searching {
		m.appendLine(NoticeStyle.Render("No one to talk to yet."))
		return false
	}

	text := chat.Unescape(line)
	m.emit(Action{Kind: ActionSend, Text: text})
	m.appendLine(YouStyle.Render("You: ") + text)
	return false
}

func (m *chatModel) apply(ev chatEvent) {
	switch ev.kind {
	case eventSearching:
		m.searching = true
		m.status = ev.text
		m.typingUntil = time.Time{}
	case eventConnected:
		m.searching = false
		m.status = "Chatting with a stranger"
		m.appendLine(SuccessStyle.Render(IconChat + " " + ev.text))
	case eventPeerMessage:
		m.typingUntil = time.Time{}
		m.appendLine(StrangerStyle.Render("Stranger: ") + ev.text)
	case eventPeerTyping:
		m.typingUntil = m.now().Add(typingShown)
	case eventNotice:
		m.appendLine(NoticeStyle.Render(ev.text))
	case eventError:
		m.appendLine(ErrorStyle.Render(IconError + " " + ev.text))
	}
}

func (m *chatModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxTranscript {
		m.lines = m.lines[len(m.lines)-maxTranscript:]
	}
}

func (m *chatModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := StatusStyle.Render("warpchat") + " "
	if m.searching {
		header += m.spinner.View() + " " + m.status
	} else {
		header += SuccessStyle.Render(IconPeer) + " " + m.status
	}
	b.WriteString(header + "\n\n")

	start := max(len(m.lines)-m.height, 0)
	for _, line := range m.lines[start:] {
		b.WriteString(line + "\n")
	}

	if m.now().Before(m.typingUntil) {
		b.WriteString(MutedStyle.Render("Stranger is typing...") + "\n")
	} else {
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n" + MutedStyle.Render(fmt.Sprintf("%s /next for a new stranger, /quit or Esc to leave", IconWave)))
	return b.String()
}
