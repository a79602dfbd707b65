package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModeServer, cfg.Mode)
	assert.Equal(t, "LOCALHOST", cfg.Address)
	assert.Equal(t, 23, cfg.Port)
	assert.Equal(t, 8192, cfg.ReadBufferSize)
	assert.Equal(t, BackendMemory, cfg.Resolver.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Resolver.TTL)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "node.toml", `
mode = "client"
address = "example.net"
port = 2323

[connection]
max_line_length = 1024
connect_timeout = "3s"

[log]
level = "debug"
console = false

[resolver]
backend = "redis"
redis_addr = "127.0.0.1:6379"
ttl = "30s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeClient, cfg.Mode)
	assert.Equal(t, "example.net", cfg.Address)
	assert.Equal(t, 2323, cfg.Port)
	assert.Equal(t, 1024, cfg.MaxLineLength)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Console)
	assert.Equal(t, BackendRedis, cfg.Resolver.Backend)
	assert.Equal(t, "127.0.0.1:6379", cfg.Resolver.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.Resolver.TTL)

	// Untouched keys keep their defaults.
	assert.Equal(t, Default().ReadBufferSize, cfg.ReadBufferSize)
	assert.Equal(t, Default().HistoryTTL, cfg.HistoryTTL)
	assert.Equal(t, Default().Resolver.RedisPrefix, cfg.Resolver.RedisPrefix)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "node.yaml", `
port: 0
server:
  host: 127.0.0.1
  max_clients: 16
  history_ttl: 1m
connection:
  max_line_length: 0
log:
  dir: /tmp/telnetnode
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeServer, cfg.Mode)
	assert.Equal(t, 0, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 16, cfg.MaxClients)
	assert.Equal(t, time.Minute, cfg.HistoryTTL)
	assert.Equal(t, 0, cfg.MaxLineLength)
	assert.Equal(t, "/tmp/telnetnode", cfg.Log.Dir)
	assert.True(t, cfg.Log.Console)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unsupported extension", "node.json", `{}`},
		{"malformed toml", "node.toml", `port = `},
		{"malformed yaml", "node.yml", "port: [1"},
		{"bad duration", "node.toml", "[connection]\nwrite_timeout = \"soon\"\n"},
		{"bad mode", "node.yaml", "mode: relay\n"},
		{"redis without address", "node.toml", "[resolver]\nbackend = \"redis\"\n"},
		{"unknown log level", "node.toml", "[log]\nlevel = \"loud\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})

	t.Run("unsupported extension is reported", func(t *testing.T) {
		_, err := Load(writeFile(t, "node.ini", ""))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"ephemeral server port", func(c *Config) { c.Port = 0 }, true},
		{"client needs a port", func(c *Config) { c.Mode = ModeClient; c.Port = 0 }, false},
		{"port too large", func(c *Config) { c.Port = 70000 }, false},
		{"negative max clients", func(c *Config) { c.MaxClients = -1 }, false},
		{"zero read buffer", func(c *Config) { c.ReadBufferSize = 0 }, false},
		{"negative timeout", func(c *Config) { c.WriteTimeout = -time.Second }, false},
		{"unknown backend", func(c *Config) { c.Resolver.Backend = "etcd" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestConfig_Conversions(t *testing.T) {
	cfg := Default()
	cfg.Host = "127.0.0.1"
	cfg.MaxClients = 4
	cfg.MaxLineLength = 512
	cfg.ConnectTimeout = time.Second
	cfg.Log.Level = "warn"

	server := cfg.ServerConfig()
	assert.Equal(t, "telnet", server.Name)
	assert.Equal(t, "127.0.0.1", server.Host)
	assert.Equal(t, 4, server.MaxClients)
	assert.Equal(t, 512, server.Connection.MaxLineLength)

	client := cfg.ClientConfig()
	assert.Equal(t, time.Second, client.ConnectionTimeout)
	assert.Equal(t, 512, client.Connection.MaxLineLength)

	opts := cfg.LoggerOptions("telnetnode")
	assert.Equal(t, "telnetnode", opts.Service)
	assert.Equal(t, zerolog.WarnLevel, opts.Level)
	assert.True(t, opts.Console)
}
