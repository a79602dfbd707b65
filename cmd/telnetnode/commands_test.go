package main

import (
	"bufio"
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/telnetnode/tcpserver"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		line string
		want command
	}{
		{"blank line", "   ", command{kind: cmdNone}},
		{"plain text is broadcast", "hello all", command{kind: cmdBroadcast, text: "hello all\n"}},
		{"send keeps inner spacing", "/send 3 hi  there", command{kind: cmdSend, target: 3, text: "hi  there\n"}},
		{"kick", "/kick 12", command{kind: cmdKick, target: 12}},
		{"clients", "/clients", command{kind: cmdClients}},
		{"case insensitive", "/HELP", command{kind: cmdHelp}},
		{"quit with padding", "  /quit  ", command{kind: cmdQuit}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"send without text", "/send 3"},
		{"send with bad id", "/send three hi"},
		{"send to broadcast id", "/send 0 hi"},
		{"kick without id", "/kick"},
		{"kick with extra args", "/kick 1 2"},
		{"kick with negative id", "/kick -1"},
		{"id too large", "/kick 4294967296"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCommand(tt.line)
			assert.Error(t, err)
		})
	}

	t.Run("unknown command", func(t *testing.T) {
		_, err := parseCommand("/dance")
		assert.ErrorIs(t, err, errUnknownCommand)
	})
}

func TestIsBye(t *testing.T) {
	assert.True(t, isBye("bye\n"))
	assert.False(t, isBye("bye"))
	assert.False(t, isBye("goodbye\n"))
	assert.False(t, isBye("bye\r\n"))
}

func TestRunCommand(t *testing.T) {
	cfg := tcpserver.DefaultConfig()
	cfg.Host = "127.0.0.1"
	server := tcpserver.New(cfg, nil)
	require.NoError(t, server.Listen(0))
	defer server.Close()

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	reader := bufio.NewReader(conn)

	require.Eventually(t, func() bool { return len(server.Clients()) == 1 }, 2*time.Second, 5*time.Millisecond)

	readLine := func() string {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		return line
	}

	var out bytes.Buffer

	assert.False(t, runCommand(&out, server, "hello"))
	assert.Equal(t, "hello\n", readLine())

	assert.False(t, runCommand(&out, server, "/send 1 direct"))
	assert.Equal(t, "direct\n", readLine())

	out.Reset()
	assert.False(t, runCommand(&out, server, "/clients"))
	assert.Contains(t, out.String(), conn.LocalAddr().String())

	out.Reset()
	assert.False(t, runCommand(&out, server, "/send 9 nobody"))
	assert.Contains(t, out.String(), "unknown client")

	assert.False(t, runCommand(&out, server, "/kick 1"))
	assert.Empty(t, server.Clients())

	out.Reset()
	assert.False(t, runCommand(&out, server, "/clients"))
	assert.Contains(t, out.String(), "No clients connected.")

	assert.True(t, runCommand(&out, server, "/quit"))
}
