package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Palette, by role.
var (
	accentColor   = lipgloss.Color("#22d3ee")
	strangerColor = lipgloss.Color("#7C3AED")
	okColor       = lipgloss.Color("#10B981")
	warnColor     = lipgloss.Color("#F59E0B")
	errColor      = lipgloss.Color("#EF4444")
	dimColor      = lipgloss.Color("#6B7280")
	lightColor    = lipgloss.Color("#F9FAFB")
)

// Status line styles
var (
	SuccessStyle = lipgloss.NewStyle().Foreground(okColor).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errColor).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(warnColor)
	MutedStyle   = lipgloss.NewStyle().Foreground(dimColor)

	// StatusStyle is the badge at the top of the chat screen.
	StatusStyle = lipgloss.NewStyle().
			Foreground(lightColor).
			Background(accentColor).
			Padding(0, 1).
			Bold(true)

	SpinnerStyle = lipgloss.NewStyle().Foreground(accentColor)
)

// Chat transcript styles
var (
	YouStyle      = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	StrangerStyle = lipgloss.NewStyle().Foreground(strangerColor).Bold(true)
	NoticeStyle   = lipgloss.NewStyle().Foreground(dimColor).Italic(true)
)

// Summary table styles
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accentColor).
				Align(lipgloss.Center)

	tableCellStyle = lipgloss.NewStyle().Padding(0, 1)

	TableRowStyle    = tableCellStyle.Foreground(lipgloss.Color("255"))
	TableRowAltStyle = tableCellStyle.Foreground(lipgloss.Color("245"))
)

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconPeer    = "👤"
	IconChat    = "💬"
	IconWave    = "👋"
)

func printLine(w io.Writer, style lipgloss.Style, icon, msg string) {
	fmt.Fprintf(w, "%s %s\n", style.Render(icon), style.Render(msg))
}

// PrintError writes msg to stderr in the error style.
func PrintError(msg string) {
	printLine(os.Stderr, ErrorStyle, IconError, msg)
}

// PrintWarning writes msg to stderr in the warning style.
func PrintWarning(msg string) {
	printLine(os.Stderr, WarningStyle, IconWarning, msg)
}
