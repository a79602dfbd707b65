package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cyberinferno/telnetnode/telnetnode"
	"github.com/cyberinferno/telnetnode/utils"
)

type commandKind int

const (
	cmdNone commandKind = iota
	cmdBroadcast
	cmdSend
	cmdClients
	cmdKick
	cmdHelp
	cmdQuit
)

// command is one parsed line of server console input.
type command struct {
	kind   commandKind
	target uint32
	text   string
}

var errUnknownCommand = errors.New("unknown command")

const commandDelims = " \t"

const serverHelp = `Commands:
  <text>             send text to every client
  /send <id> <text>  send text to one client
  /clients           list connected clients
  /kick <id>         disconnect a client
  /help              show this help
  /quit              stop the server`

// parseCommand turns a console line, without its newline, into a command.
// Plain text is broadcast; the text sent always ends in "\n".
func parseCommand(line string) (command, error) {
	if strings.TrimSpace(line) == "" {
		return command{kind: cmdNone}, nil
	}

	if !strings.HasPrefix(strings.TrimLeft(line, commandDelims), "/") {
		return command{kind: cmdBroadcast, target: telnetnode.Broadcast, text: line + "\n"}, nil
	}

	tokens := utils.TokenizeN(line, commandDelims, 3)
	switch name := strings.ToLower(tokens[0]); name {
	case "/send":
		if len(tokens) < 3 {
			return command{}, fmt.Errorf("usage: /send <id> <text>")
		}
		id, err := parseClientID(tokens[1])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdSend, target: id, text: tokens[2] + "\n"}, nil

	case "/kick":
		if len(tokens) != 2 {
			return command{}, fmt.Errorf("usage: /kick <id>")
		}
		id, err := parseClientID(tokens[1])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdKick, target: id}, nil

	case "/clients":
		return command{kind: cmdClients}, nil
	case "/help":
		return command{kind: cmdHelp}, nil
	case "/quit":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("%w: %s", errUnknownCommand, name)
	}
}

func parseClientID(raw string) (uint32, error) {
	if !utils.IsDecimal(raw) {
		return 0, fmt.Errorf("client id must be a number, got %q", raw)
	}

	id, err := utils.ToClientID(raw)
	if err != nil || id == telnetnode.Broadcast {
		return 0, fmt.Errorf("invalid client id %q", raw)
	}

	return id, nil
}

// isBye reports whether a received line asks the receiver to stop.
func isBye(text string) bool {
	return text == "bye\n"
}
