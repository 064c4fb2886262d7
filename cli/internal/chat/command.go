package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
)

// CommandName is a slash command typed at the chat prompt.
type CommandName string

const (
	CmdNext CommandName = "next"
	CmdQuit CommandName = "quit"
	CmdTag  CommandName = "tag"
	CmdHelp CommandName = "help"
)

var ErrNotCommand = errors.New("not a command")

// Command is a parsed slash command.
type Command struct {
	Name CommandName
	Args []string
}

// HelpText lists the commands for /help.
const HelpText = `/next        leave this stranger and find another
/tag [TAG]   match within TAG from now on (no TAG clears it)
/quit        leave the chat
/help        show this help`

// IsCommand reports whether line should be parsed as a command rather than
// sent as text. "//" escapes a literal leading slash.
func IsCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "/") && !strings.HasPrefix(line, "//")
}

// Unescape strips the "//" escape from a text line.
func Unescape(line string) string {
	if strings.HasPrefix(strings.TrimSpace(line), "//") {
		return strings.Replace(line, "//", "/", 1)
	}
	return line
}

// ParseCommand splits a "/name args..." line with shell quoting rules.
func ParseCommand(line string) (Command, error) {
	if !IsCommand(line) {
		return Command{}, ErrNotCommand
	}

	words, err := shellwords.Parse(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if err != nil {
		return Command{}, fmt.Errorf("parse command: %w", err)
	}
	if len(words) == 0 {
		return Command{}, errors.New("empty command")
	}

	cmd := Command{Name: CommandName(strings.ToLower(words[0])), Args: words[1:]}
	switch cmd.Name {
	case CmdNext, CmdQuit, CmdHelp:
		if len(cmd.Args) > 0 {
			return Command{}, fmt.Errorf("/%s takes no arguments", cmd.Name)
		}
	case CmdTag:
		if len(cmd.Args) > 1 {
			return Command{}, errors.New("/tag takes at most one argument")
		}
	default:
		return Command{}, fmt.Errorf("unknown command /%s, try /help", cmd.Name)
	}
	return cmd, nil
}
