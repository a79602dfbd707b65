package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cyberinferno/telnetnode/config"
	"github.com/cyberinferno/telnetnode/tcpserver"
	"github.com/cyberinferno/telnetnode/telnetnode"
)

var (
	host       string
	maxClients int
)

// serverCmd runs a server node.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Accept clients and exchange text with them",
	Long: `Listen for clients and print every line they send, prefixed with the
client id. Console input is broadcast; /send, /clients and /kick address
single clients (see /help). The server answers "bye" with a broadcast "bye"
and stops.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVar(&host, "host", "", "Interface to bind (default all)")
	serverCmd.Flags().IntVar(&maxClients, "max-clients", 0, "Maximum connected clients (0 = unlimited)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, config.ModeServer)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = host
	}
	if cmd.Flags().Changed("max-clients") {
		cfg.MaxClients = maxClients
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	_, cleanup, err := setup(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	node, err := telnetnode.CreateServer(cfg.Port)
	if err != nil {
		return err
	}
	defer telnetnode.Release(node)

	out := cmd.OutOrStdout()
	server := node.(*tcpserver.Server)
	printStatus(out, "Server started on %s.", server.Addr())

	sigCtx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	lines := readLines(ctx, cmd.InOrStdin())
	messages := receiveLoop(ctx, node)

	for {
		select {
		case <-ctx.Done():
			printStatus(out, "Server terminated.")
			return nil

		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			printMessage(out, fmt.Sprintf("client %d", msg.SenderID), msg)
			if isBye(msg.String()) {
				if err := server.SendText("bye\n", telnetnode.Broadcast); err != nil {
					printError(out, err)
				}
				printStatus(out, "Server terminated.")
				return nil
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if quit := runCommand(out, server, line); quit {
				printStatus(out, "Server terminated.")
				return nil
			}
		}
	}
}

// runCommand executes one console line and reports whether to stop.
func runCommand(out io.Writer, server *tcpserver.Server, line string) bool {
	cmd, err := parseCommand(line)
	if err != nil {
		printError(out, err)
		return false
	}

	switch cmd.kind {
	case cmdBroadcast, cmdSend:
		if err := server.SendText(cmd.text, cmd.target); err != nil {
			printError(out, err)
		}
	case cmdKick:
		if err := server.Kick(cmd.target); err != nil {
			printError(out, err)
		} else {
			printStatus(out, "Client %d disconnected.", cmd.target)
		}
	case cmdClients:
		printClients(out, server)
	case cmdHelp:
		fmt.Fprintln(out, serverHelp)
	case cmdQuit:
		return true
	}

	return false
}

func printClients(out io.Writer, server *tcpserver.Server) {
	ids := server.Clients()
	if len(ids) == 0 {
		printWarning(out, "No clients connected.")
		return
	}

	for _, id := range ids {
		info, ok := server.Session(id)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%s %-21s connected %s ago, %d lines in, %d bytes out\n",
			color.CyanString("%5d", id),
			info.RemoteAddr,
			time.Since(info.ConnectedAt).Round(time.Second),
			info.Stats.LinesReceived,
			info.Stats.BytesSent,
		)
	}
}
