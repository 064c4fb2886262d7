package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/Warpchat/cli/internal/signaling"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel() (*chatModel, chan chatEvent, chan Action) {
	events := make(chan chatEvent, 8)
	actions := make(chan Action, 8)
	return newChatModel(events, actions), events, actions
}

func typeLine(m *chatModel, line string) tea.Cmd {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(line)})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func drain(actions chan Action) []Action {
	var out []Action
	for {
		select {
		case a := <-actions:
			out = append(out, a)
		default:
			return out
		}
	}
}

func TestChatModel_SendWhileConnected(t *testing.T) {
	m, _, actions := newTestModel()
	m.apply(chatEvent{kind: eventConnected, text: "Say hi!"})

	typeLine(m, "hello")

	got := drain(actions)
	require.Len(t, got, 2)
	assert.Equal(t, Action{Kind: ActionTyping}, got[0])
	assert.Equal(t, Action{Kind: ActionSend, Text: "hello"}, got[1])
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "hello")
}

func TestChatModel_NoSendWhileSearching(t *testing.T) {
	m, _, actions := newTestModel()
	m.apply(chatEvent{kind: eventSearching, text: "Looking..."})

	typeLine(m, "anyone?")

	assert.Empty(t, drain(actions))
	assert.Contains(t, m.View(), "No one to talk to yet.")
	assert.Contains(t, m.View(), "Looking...")
}

func TestChatModel_Commands(t *testing.T) {
	m, _, actions := newTestModel()

	typeLine(m, "/next")
	typeLine(m, "/tag eu")
	typeLine(m, "/tag")
	typeLine(m, "/bogus")
	assert.Equal(t, []Action{
		{Kind: ActionNext},
		{Kind: ActionTag, Text: "eu"},
		{Kind: ActionTag, Text: ""},
	}, drain(actions))
	assert.Contains(t, m.View(), "unknown command /bogus")

	cmd := typeLine(m, "/quit")
	assert.Equal(t, []Action{{Kind: ActionQuit}}, drain(actions))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestChatModel_EscapedSlash(t *testing.T) {
	m, _, actions := newTestModel()
	m.apply(chatEvent{kind: eventConnected})

	typeLine(m, "//shrug")

	got := drain(actions)
	require.NotEmpty(t, got)
	assert.Equal(t, Action{Kind: ActionSend, Text: "/shrug"}, got[len(got)-1])
}

func TestChatModel_PeerTyping(t *testing.T) {
	m, _, _ := newTestModel()
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }
	m.apply(chatEvent{kind: eventConnected})

	m.apply(chatEvent{kind: eventPeerTyping})
	assert.Contains(t, m.View(), "Stranger is typing")

	now = now.Add(typingShown + time.Second)
	assert.NotContains(t, m.View(), "Stranger is typing")

	m.apply(chatEvent{kind: eventPeerTyping})
	m.apply(chatEvent{kind: eventPeerMessage, text: "yo"})
	view := m.View()
	assert.NotContains(t, view, "Stranger is typing")
	assert.Contains(t, view, "yo")
}

func TestChatModel_EventsDelivered(t *testing.T) {
	m, events, _ := newTestModel()
	events <- chatEvent{kind: eventNotice, text: "server says hi"}

	msg := m.listenForEvents()()
	m.Update(msg)
	assert.Contains(t, m.View(), "server says hi")
}

func TestStatsView(t *testing.T) {
	out := StatsView("wss://chat.example.com", &signaling.Stats{
		Clients:     5,
		Connections: 6,
		Rooms:       2,
		Waiting:     map[string]int{"GLOBAL": 1, "US": 1},
	})

	assert.Contains(t, out, "warpchat @ wss://chat.example.com")
	assert.Contains(t, out, "Active rooms")
	assert.Contains(t, out, "Waiting in US")
	assert.Less(t, strings.Index(out, "Waiting (GLOBAL)"), strings.Index(out, "Waiting in US"))
}

func TestSessionSummaryView(t *testing.T) {
	out := SessionSummaryView(SessionSummary{Strangers: 3, Sent: 10, Received: 7, Duration: 90 * time.Second})
	assert.Contains(t, out, "Strangers met")
	assert.Contains(t, out, "1m30s")
}

func TestPrintLine(t *testing.T) {
	var buf bytes.Buffer
	printLine(&buf, WarningStyle, IconWarning, "relayed through the server")
	out := buf.String()
	assert.Contains(t, out, IconWarning)
	assert.Contains(t, out, "relayed through the server")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestSpinnerSuccess(t *testing.T) {
	var buf bytes.Buffer
	sp := NewConnectionSpinner("Connecting...")
	sp.out = &buf
	sp.Start()
	sp.Success("Connected to wss://example.test")

	out := buf.String()
	assert.Contains(t, out, IconSuccess)
	assert.True(t, strings.HasSuffix(out, "Connected to wss://example.test\n"))
}
