// Package config loads node settings for the telnetnode command from TOML or
// YAML files. Values absent from the file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/cyberinferno/telnetnode/connection"
	"github.com/cyberinferno/telnetnode/logger"
	"github.com/cyberinferno/telnetnode/resolver"
	"github.com/cyberinferno/telnetnode/tcpclient"
	"github.com/cyberinferno/telnetnode/tcpserver"
)

const (
	ModeServer = "server"
	ModeClient = "client"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ErrUnsupportedFormat is returned by Load for file extensions other than
// .toml, .yaml and .yml.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Config is the full set of node settings.
type Config struct {
	Mode    string
	Address string
	Port    int

	Host       string
	MaxClients int
	HistoryTTL time.Duration

	ReadBufferSize int
	MaxLineLength  int
	WriteTimeout   time.Duration
	ConnectTimeout time.Duration

	Log      LogConfig
	Resolver ResolverConfig
}

// LogConfig selects logger output.
type LogConfig struct {
	Level   string
	Dir     string
	Console bool
}

// ResolverConfig selects the address cache backend.
type ResolverConfig struct {
	Backend     string
	TTL         time.Duration
	RedisAddr   string
	RedisPrefix string
}

// Default returns the settings used when no file is given.
func Default() Config {
	conn := connection.DefaultConfig()
	server := tcpserver.DefaultConfig()
	client := tcpclient.DefaultConfig()

	return Config{
		Mode:           ModeServer,
		Address:        tcpclient.DefaultAddress,
		Port:           tcpclient.DefaultPort,
		HistoryTTL:     server.HistoryTTL,
		ReadBufferSize: conn.ReadBufferSize,
		MaxLineLength:  conn.MaxLineLength,
		WriteTimeout:   conn.WriteTimeout,
		ConnectTimeout: client.ConnectionTimeout,
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
		Resolver: ResolverConfig{
			Backend:     BackendMemory,
			TTL:         resolver.DefaultTTL,
			RedisPrefix: resolver.DefaultRedisPrefix,
		},
	}
}

// fileConfig mirrors the on-disk layout. Durations are strings such as "10s".
type fileConfig struct {
	Mode    string `toml:"mode" yaml:"mode"`
	Address string `toml:"address" yaml:"address"`
	Port    int    `toml:"port" yaml:"port"`

	Server struct {
		Host       string `toml:"host" yaml:"host"`
		MaxClients int    `toml:"max_clients" yaml:"max_clients"`
		HistoryTTL string `toml:"history_ttl" yaml:"history_ttl"`
	} `toml:"server" yaml:"server"`

	Connection struct {
		ReadBufferSize int    `toml:"read_buffer_size" yaml:"read_buffer_size"`
		MaxLineLength  int    `toml:"max_line_length" yaml:"max_line_length"`
		WriteTimeout   string `toml:"write_timeout" yaml:"write_timeout"`
		ConnectTimeout string `toml:"connect_timeout" yaml:"connect_timeout"`
	} `toml:"connection" yaml:"connection"`

	Log struct {
		Level   string `toml:"level" yaml:"level"`
		Dir     string `toml:"dir" yaml:"dir"`
		Console bool   `toml:"console" yaml:"console"`
	} `toml:"log" yaml:"log"`

	Resolver struct {
		Backend     string `toml:"backend" yaml:"backend"`
		TTL         string `toml:"ttl" yaml:"ttl"`
		RedisAddr   string `toml:"redis_addr" yaml:"redis_addr"`
		RedisPrefix string `toml:"redis_prefix" yaml:"redis_prefix"`
	} `toml:"resolver" yaml:"resolver"`
}

// definedFunc reports whether the key path was present in the file.
type definedFunc func(keys ...string) bool

// Load reads path on top of Default and validates the result. The format is
// chosen by extension.
//
// Parameters:
//   - path: A .toml, .yaml or .yml file
//
// Returns:
//   - The merged Config
//   - An error if the file cannot be read, parsed, or fails Validate
func Load(path string) (Config, error) {
	var raw fileConfig
	var defined definedFunc

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		defined = meta.IsDefined
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("load config: failed to parse YAML: %w", err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return Config{}, fmt.Errorf("load config: failed to parse YAML: %w", err)
		}
		defined = func(keys ...string) bool { return hasPath(tree, keys) }
	default:
		return Config{}, fmt.Errorf("load config: %w: %q", ErrUnsupportedFormat, ext)
	}

	cfg, err := raw.apply(Default(), defined)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	return cfg, nil
}

func hasPath(tree map[string]any, keys []string) bool {
	node := tree
	for i, key := range keys {
		val, ok := node[key]
		if !ok {
			return false
		}
		if i == len(keys)-1 {
			return true
		}
		node, ok = val.(map[string]any)
		if !ok {
			return false
		}
	}
	return false
}

func (raw *fileConfig) apply(cfg Config, defined definedFunc) (Config, error) {
	if defined("mode") {
		cfg.Mode = strings.ToLower(strings.TrimSpace(raw.Mode))
	}
	if defined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if defined("port") {
		cfg.Port = raw.Port
	}

	if defined("server", "host") {
		cfg.Host = strings.TrimSpace(raw.Server.Host)
	}
	if defined("server", "max_clients") {
		cfg.MaxClients = raw.Server.MaxClients
	}

	if defined("connection", "read_buffer_size") {
		cfg.ReadBufferSize = raw.Connection.ReadBufferSize
	}
	if defined("connection", "max_line_length") {
		cfg.MaxLineLength = raw.Connection.MaxLineLength
	}

	if defined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if defined("log", "dir") {
		cfg.Log.Dir = strings.TrimSpace(raw.Log.Dir)
	}
	if defined("log", "console") {
		cfg.Log.Console = raw.Log.Console
	}

	if defined("resolver", "backend") {
		cfg.Resolver.Backend = strings.ToLower(strings.TrimSpace(raw.Resolver.Backend))
	}
	if defined("resolver", "redis_addr") {
		cfg.Resolver.RedisAddr = strings.TrimSpace(raw.Resolver.RedisAddr)
	}
	if defined("resolver", "redis_prefix") {
		cfg.Resolver.RedisPrefix = raw.Resolver.RedisPrefix
	}

	durations := []struct {
		keys []string
		raw  string
		dst  *time.Duration
	}{
		{[]string{"server", "history_ttl"}, raw.Server.HistoryTTL, &cfg.HistoryTTL},
		{[]string{"connection", "write_timeout"}, raw.Connection.WriteTimeout, &cfg.WriteTimeout},
		{[]string{"connection", "connect_timeout"}, raw.Connection.ConnectTimeout, &cfg.ConnectTimeout},
		{[]string{"resolver", "ttl"}, raw.Resolver.TTL, &cfg.Resolver.TTL},
	}
	for _, d := range durations {
		if !defined(d.keys...) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", strings.Join(d.keys, "."), err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeServer, ModeClient:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeServer, ModeClient, c.Mode)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	if c.Mode == ModeClient && c.Port == 0 {
		return fmt.Errorf("client port must not be 0")
	}

	if c.MaxClients < 0 {
		return fmt.Errorf("server.max_clients must be non-negative")
	}
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("connection.read_buffer_size must be positive")
	}
	if c.MaxLineLength < 0 {
		return fmt.Errorf("connection.max_line_length must be non-negative")
	}
	if c.HistoryTTL < 0 || c.WriteTimeout < 0 || c.ConnectTimeout < 0 || c.Resolver.TTL < 0 {
		return fmt.Errorf("durations must be non-negative")
	}

	if _, ok := logger.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}

	switch c.Resolver.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Resolver.RedisAddr == "" {
			return fmt.Errorf("resolver.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("resolver.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.Resolver.Backend)
	}

	return nil
}

// ConnectionConfig returns the per-connection settings.
func (c Config) ConnectionConfig() connection.Config {
	return connection.Config{
		ReadBufferSize: c.ReadBufferSize,
		MaxLineLength:  c.MaxLineLength,
		WriteTimeout:   c.WriteTimeout,
	}
}

// ServerConfig returns the settings for a server node.
func (c Config) ServerConfig() tcpserver.Config {
	cfg := tcpserver.DefaultConfig()
	cfg.Host = c.Host
	cfg.MaxClients = c.MaxClients
	cfg.HistoryTTL = c.HistoryTTL
	cfg.Connection = c.ConnectionConfig()
	return cfg
}

// ClientConfig returns the settings for a client node.
func (c Config) ClientConfig() tcpclient.Config {
	return tcpclient.Config{
		ConnectionTimeout: c.ConnectTimeout,
		Connection:        c.ConnectionConfig(),
	}
}

// LoggerOptions returns logger settings for the given service name.
func (c Config) LoggerOptions(service string) logger.Options {
	level, _ := logger.ParseLevel(c.Log.Level)
	return logger.Options{
		Service: service,
		Level:   level,
		Console: c.Log.Console,
		Dir:     c.Log.Dir,
	}
}
