package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/cyberinferno/telnetnode/msgqueue"
	"github.com/cyberinferno/telnetnode/telnetnode"
)

// readLines delivers r line by line, without newlines, until EOF.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSuffix(scanner.Text(), "\r"):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// receiveLoop forwards every line the node receives until ctx is done.
func receiveLoop(ctx context.Context, node telnetnode.Node) <-chan msgqueue.Message {
	messages := make(chan msgqueue.Message)
	go func() {
		defer close(messages)
		for {
			msg, err := node.Receive(ctx)
			if err != nil {
				return
			}
			select {
			case messages <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return messages
}

func printStatus(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, color.GreenString(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, color.YellowString(format, args...))
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, color.RedString("error: %v", err))
}

func printMessage(w io.Writer, who string, msg msgqueue.Message) {
	fmt.Fprintf(w, "%s %s", color.CyanString("[%s]", who), msg.String())
	if !strings.HasSuffix(msg.String(), "\n") {
		fmt.Fprintln(w)
	}
}
