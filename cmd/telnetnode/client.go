package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/telnetnode/config"
	"github.com/cyberinferno/telnetnode/tcpclient"
	"github.com/cyberinferno/telnetnode/telnetnode"
)

const (
	demoGreeting  = "Hello, Mr.Server.\n"
	demoGreetings = 10
)

var (
	address      string
	demo         bool
	demoInterval time.Duration
)

// clientCmd runs a client node.
var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Connect to a server and exchange text with it",
	Long: `Connect to a server, send every console line to it and print what it
sends back. The client stops when the server sends "bye", when the server
hangs up, or on /quit.

With --demo the client greets the server ten times and then says "bye".`,
	RunE: runClient,
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.Flags().StringVarP(&address, "address", "a", telnetnode.DefaultAddress, "Server host name or IP")
	clientCmd.Flags().BoolVar(&demo, "demo", false, "Send the scripted greeting sequence")
	clientCmd.Flags().DurationVar(&demoInterval, "demo-interval", 500*time.Millisecond, "Delay between scripted lines")
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, config.ModeClient)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("address") {
		cfg.Address = address
	}

	_, cleanup, err := setup(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	sigCtx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	node, err := telnetnode.CreateClientContext(ctx, cfg.Address, cfg.Port)
	if err != nil {
		return err
	}
	defer telnetnode.Release(node)

	out := cmd.OutOrStdout()
	client := node.(*tcpclient.Client)

	hangUp := make(chan struct{})
	var hangUpOnce sync.Once
	client.OnConnectionState(func(e tcpclient.ConnectionStateEvent) {
		if e.State == tcpclient.Disconnected {
			hangUpOnce.Do(func() { close(hangUp) })
		}
	})
	if !client.IsConnected() {
		hangUpOnce.Do(func() { close(hangUp) })
	}
	printStatus(out, "Client started, connected to %s.", client.RemoteAddr())

	lines := readLines(ctx, cmd.InOrStdin())
	messages := receiveLoop(ctx, node)

	var tick <-chan time.Time
	if demo {
		ticker := time.NewTicker(demoInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	sent := 0

	for {
		select {
		case <-ctx.Done():
			printStatus(out, "Client terminated.")
			return nil

		case <-hangUp:
			// Lines that arrived before the hang-up are still queued.
			for {
				msg, ok := node.PopReceivedText()
				if !ok {
					break
				}
				printMessage(out, "server", msg)
			}
			printWarning(out, "Server closed the connection.")
			return nil

		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			printMessage(out, "server", msg)
			if isBye(msg.String()) {
				printStatus(out, "Client terminated.")
				return nil
			}

		case <-tick:
			text := demoGreeting
			if sent >= demoGreetings {
				text = "bye\n"
			}
			if err := node.SendText(text, 0); err != nil {
				printError(out, err)
			}
			sent++

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if line == "/quit" {
				printStatus(out, "Client terminated.")
				return nil
			}
			if err := node.SendText(line+"\n", 0); err != nil {
				printError(out, fmt.Errorf("send failed: %w", err))
			}
		}
	}
}
