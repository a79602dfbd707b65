package telnetnode

import (
	"context"
	"net"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/telnetnode/config"
	"github.com/cyberinferno/telnetnode/tcpserver"
)

func initialize(t *testing.T, opts ...Option) {
	t.Helper()
	server := tcpserver.DefaultConfig()
	server.Host = "127.0.0.1"
	require.NoError(t, Initialize(append([]Option{WithServerConfig(server)}, opts...)...))
	t.Cleanup(func() { _ = Finalize() })
}

func serverPort(t *testing.T, node Node) int {
	t.Helper()
	server, ok := node.(*tcpserver.Server)
	require.True(t, ok)
	return server.Addr().(*net.TCPAddr).Port
}

func receive(t *testing.T, node Node) (string, uint32) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := node.Receive(ctx)
	require.NoError(t, err)
	return msg.String(), msg.SenderID
}

func TestLoopback(t *testing.T) {
	initialize(t)

	server, err := CreateServer(0)
	require.NoError(t, err)
	defer Release(server)
	assert.True(t, server.IsServer())

	client, err := CreateClient("127.0.0.1", serverPort(t, server))
	require.NoError(t, err)
	defer Release(client)
	assert.False(t, client.IsServer())

	require.NoError(t, client.SendText("hi\n", 0))
	text, id := receive(t, server)
	assert.Equal(t, "hi\n", text)
	assert.Equal(t, uint32(1), id)

	require.NoError(t, server.SendText("bye\n", Broadcast))
	text, id = receive(t, client)
	assert.Equal(t, "bye\n", text)
	assert.Equal(t, uint32(0), id)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, server.Pending())
	_, ok := server.PopReceivedText()
	assert.False(t, ok)
}

func TestManyClients(t *testing.T) {
	initialize(t)

	server, err := CreateServer(0)
	require.NoError(t, err)
	defer Release(server)
	port := serverPort(t, server)

	const m = 4
	clients := make([]Node, m)
	for i := range clients {
		clients[i], err = CreateClient("127.0.0.1", port)
		require.NoError(t, err)
		defer Release(clients[i])

		require.NoError(t, clients[i].SendText("ready\n", 0))
		_, id := receive(t, server)
		assert.Equal(t, uint32(i+1), id)
	}

	require.NoError(t, server.SendText("to three\n", 3))
	text, _ := receive(t, clients[2])
	assert.Equal(t, "to three\n", text)

	require.NoError(t, server.SendText("all\n", Broadcast))
	for _, c := range clients {
		text, _ := receive(t, c)
		assert.Equal(t, "all\n", text)
	}
	for i, c := range clients {
		if i != 2 {
			assert.Equal(t, 0, c.Pending())
		}
	}
}

func TestWithoutInitialize(t *testing.T) {
	server, err := CreateServer(0)
	require.NoError(t, err)
	defer Release(server)

	client, err := CreateClient("127.0.0.1", serverPort(t, server))
	require.NoError(t, err)
	defer Release(client)

	require.NoError(t, client.SendText("works\n", 0))
	text, _ := receive(t, server)
	assert.Equal(t, "works\n", text)
}

func TestInitialize(t *testing.T) {
	t.Run("second call keeps the first environment", func(t *testing.T) {
		var calls atomic.Int32
		initialize(t, WithLookup(func(context.Context, string) ([]string, error) {
			calls.Add(1)
			return []string{"127.0.0.1"}, nil
		}))
		require.NoError(t, Initialize(WithLookup(func(context.Context, string) ([]string, error) {
			t.Error("replacement lookup must not be used")
			return nil, nil
		})))

		server, err := CreateServer(0)
		require.NoError(t, err)
		defer Release(server)

		client, err := CreateClient("", serverPort(t, server))
		require.NoError(t, err)
		defer Release(client)

		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("finalize without initialize", func(t *testing.T) {
		assert.NoError(t, Finalize())
		assert.NoError(t, Finalize())
	})

	t.Run("unreachable redis fails", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		err = Initialize(WithRedis(addr, ""))
		assert.Error(t, err)

		mu.Lock()
		assert.Nil(t, env)
		mu.Unlock()
	})

	t.Run("config file settings", func(t *testing.T) {
		cfg := config.Default()
		cfg.Host = "127.0.0.1"
		cfg.MaxLineLength = 16
		initialize(t, WithConfig(cfg))

		mu.Lock()
		assert.Equal(t, 16, env.server.Connection.MaxLineLength)
		assert.Equal(t, 16, env.client.Connection.MaxLineLength)
		assert.Nil(t, env.redis)
		mu.Unlock()
	})
}

func TestInitialize_Redis(t *testing.T) {
	addr := os.Getenv("TELNETNODE_REDIS_ADDR")
	if addr == "" {
		t.Skip("TELNETNODE_REDIS_ADDR not set")
	}

	initialize(t, WithRedis(addr, "telnetnode:test:"+t.Name()+":"))

	server, err := CreateServer(0)
	require.NoError(t, err)
	defer Release(server)

	client, err := CreateClient("localhost", serverPort(t, server))
	require.NoError(t, err)
	defer Release(client)

	require.NoError(t, client.SendText("via redis\n", 0))
	text, _ := receive(t, server)
	assert.Equal(t, "via redis\n", text)
}

func TestCreate_Failures(t *testing.T) {
	initialize(t)

	t.Run("port in use", func(t *testing.T) {
		first, err := CreateServer(0)
		require.NoError(t, err)
		defer Release(first)

		second, err := CreateServer(serverPort(t, first))
		assert.Error(t, err)
		assert.Nil(t, second)
	})

	t.Run("nobody listening", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := ln.Addr().(*net.TCPAddr).Port
		require.NoError(t, ln.Close())

		client, err := CreateClient("127.0.0.1", port)
		assert.Error(t, err)
		assert.Nil(t, client)
	})

	t.Run("release nil", func(t *testing.T) {
		assert.NoError(t, Release(nil))
	})
}
