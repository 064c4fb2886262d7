package ui

import (
	"fmt"
	"sort"
	"time"

	"github.com/BioHazard786/Warpchat/cli/internal/signaling"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/jedib0t/go-pretty/v6/text"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
)

// StatsView renders the server's /stats body. The GLOBAL queue is listed
// first, then tags alphabetically.
func StatsView(server string, stats *signaling.Stats) string {
	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.SetTitle("warpchat @ " + server)
	t.AppendHeader(prettytable.Row{"Metric", "Value"})
	t.AppendRows([]prettytable.Row{
		{"Connections", stats.Connections},
		{"Clients", stats.Clients},
		{"Active rooms", stats.Rooms},
	})
	t.AppendSeparator()

	tags := make([]string, 0, len(stats.Waiting))
	total := 0
	for tag, n := range stats.Waiting {
		if tag != globalTag {
			tags = append(tags, tag)
		}
		total += n
	}
	sort.Strings(tags)

	t.AppendRow(prettytable.Row{"Waiting (" + globalTag + ")", stats.Waiting[globalTag]})
	for _, tag := range tags {
		t.AppendRow(prettytable.Row{"Waiting in " + tag, stats.Waiting[tag]})
	}
	t.AppendFooter(prettytable.Row{"Queue entries", total})
	t.SetColumnConfigs([]prettytable.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return t.Render()
}

// globalTag mirrors the server's name for the untagged queue.
const globalTag = "GLOBAL"

// SessionSummary is shown when the chat ends.
type SessionSummary struct {
	Strangers int
	Sent      int
	Received  int
	Duration  time.Duration
}

func SessionSummaryView(summary SessionSummary) string {
	headers := []string{"Metric", "Value"}
	rows := [][]string{
		{"Strangers met", fmt.Sprintf("%d", summary.Strangers)},
		{"Messages sent", fmt.Sprintf("%d", summary.Sent)},
		{"Messages received", fmt.Sprintf("%d", summary.Received)},
		{"Duration", summary.Duration.Round(time.Second).String()},
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(accentColor)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func RenderSessionSummary(summary SessionSummary) {
	fmt.Println(SessionSummaryView(summary))
}
