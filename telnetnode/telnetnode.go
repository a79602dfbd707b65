// Package telnetnode is the entry point for applications: it creates server
// and client nodes that exchange newline-terminated text over TCP.
//
// Example:
//
//	if err := telnetnode.Initialize(telnetnode.WithLogger(log)); err != nil {
//		return err
//	}
//	defer telnetnode.Finalize()
//
//	server, err := telnetnode.CreateServer(telnetnode.DefaultPort)
//	if err != nil {
//		return err
//	}
//	defer telnetnode.Release(server)
//
//	msg, err := server.Receive(ctx)
package telnetnode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cyberinferno/telnetnode/config"
	"github.com/cyberinferno/telnetnode/logger"
	"github.com/cyberinferno/telnetnode/msgqueue"
	"github.com/cyberinferno/telnetnode/resolver"
	"github.com/cyberinferno/telnetnode/tcpclient"
	"github.com/cyberinferno/telnetnode/tcpserver"
)

const (
	// DefaultPort is the telnet port.
	DefaultPort = tcpclient.DefaultPort
	// DefaultAddress is the host a client connects to by default.
	DefaultAddress = tcpclient.DefaultAddress
	// Broadcast as a SendText target on a server reaches every client.
	Broadcast = tcpserver.Broadcast
)

const redisPingTimeout = 5 * time.Second

// Node is a server or client endpoint.
type Node interface {
	// IsServer reports whether the node accepts connections.
	IsServer() bool

	// SendText sends text verbatim. A server routes it to clientID, or to
	// every client when clientID is Broadcast; a client ignores clientID.
	SendText(text string, clientID uint32) error

	// PopReceivedText removes the oldest received line without blocking.
	PopReceivedText() (msgqueue.Message, bool)

	// Receive blocks until a line arrives or ctx is done.
	Receive(ctx context.Context) (msgqueue.Message, error)

	// Pending returns the number of received lines not yet popped.
	Pending() int

	// Close releases the node's sockets and goroutines.
	Close() error
}

var (
	_ Node = (*tcpserver.Server)(nil)
	_ Node = (*tcpclient.Client)(nil)
)

// Option configures Initialize.
type Option func(*options)

type options struct {
	logger      logger.Logger
	cache       resolver.Cache
	lookup      resolver.LookupFunc
	ttl         time.Duration
	server      tcpserver.Config
	client      tcpclient.Config
	redisAddr   string
	redisPrefix string
}

// WithLogger sets the logger shared by every node.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithResolverCache sets the address cache used by clients.
func WithResolverCache(c resolver.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithLookup replaces the system host lookup.
func WithLookup(fn resolver.LookupFunc) Option {
	return func(o *options) { o.lookup = fn }
}

// WithResolverTTL sets how long resolved addresses are reused.
func WithResolverTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithRedis shares resolved addresses through the Redis server at addr.
// Ignored when WithResolverCache is also given.
func WithRedis(addr, prefix string) Option {
	return func(o *options) {
		o.redisAddr = addr
		o.redisPrefix = prefix
	}
}

// WithServerConfig sets the settings used by CreateServer.
func WithServerConfig(cfg tcpserver.Config) Option {
	return func(o *options) { o.server = cfg }
}

// WithClientConfig sets the settings used by CreateClient.
func WithClientConfig(cfg tcpclient.Config) Option {
	return func(o *options) { o.client = cfg }
}

// WithConfig applies node, connection and resolver settings from a loaded
// config file. Logging is left to WithLogger.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.server = cfg.ServerConfig()
		o.client = cfg.ClientConfig()
		o.ttl = cfg.Resolver.TTL
		if cfg.Resolver.Backend == config.BackendRedis {
			o.redisAddr = cfg.Resolver.RedisAddr
			o.redisPrefix = cfg.Resolver.RedisPrefix
		}
	}
}

type environment struct {
	logger   logger.Logger
	resolver *resolver.Resolver
	redis    *redis.Client
	server   tcpserver.Config
	client   tcpclient.Config
}

var (
	mu  sync.Mutex
	env *environment
)

// Initialize sets up the process-wide environment shared by nodes created
// afterwards. Calling it again before Finalize does nothing.
//
// Returns:
//   - An error if the Redis backend was requested and cannot be reached
func Initialize(opts ...Option) error {
	mu.Lock()
	defer mu.Unlock()

	if env != nil {
		return nil
	}

	o := options{
		server: tcpserver.DefaultConfig(),
		client: tcpclient.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cache := o.cache
	var rdb *redis.Client
	if cache == nil && o.redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: o.redisAddr})

		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("failed to connect to redis at %s: %w", o.redisAddr, err)
		}

		cache = resolver.NewRedisCache(rdb, o.redisPrefix)
	}

	env = &environment{
		logger:   logger.OrNop(o.logger),
		resolver: resolver.New(cache, o.lookup, o.ttl),
		redis:    rdb,
		server:   o.server,
		client:   o.client,
	}
	env.logger.Debug("telnetnode initialized")

	return nil
}

// Finalize tears down the environment set up by Initialize. Nodes already
// created keep working; release them separately.
func Finalize() error {
	mu.Lock()
	defer mu.Unlock()

	if env == nil {
		return nil
	}

	var err error
	if env.redis != nil {
		if cerr := env.redis.Close(); cerr != nil {
			err = fmt.Errorf("failed to close redis client: %w", cerr)
		}
	}

	env.logger.Debug("telnetnode finalized")
	env = nil

	return err
}

func current() *environment {
	mu.Lock()
	defer mu.Unlock()

	if env != nil {
		return env
	}

	return &environment{
		logger:   logger.NewNopLogger(),
		resolver: resolver.New(nil, nil, 0),
		server:   tcpserver.DefaultConfig(),
		client:   tcpclient.DefaultConfig(),
	}
}

// CreateServer starts a server node listening on port. Port 0 picks a free
// port.
//
// Returns:
//   - The node, or an error if the port cannot be bound
func CreateServer(port int) (Node, error) {
	e := current()

	server := tcpserver.New(e.server, e.logger)
	if err := server.Listen(port); err != nil {
		return nil, err
	}

	return server, nil
}

// CreateClient connects a client node to address:port. An empty address
// means DefaultAddress and port 0 means DefaultPort.
func CreateClient(address string, port int) (Node, error) {
	return CreateClientContext(context.Background(), address, port)
}

// CreateClientContext is CreateClient with a context bounding resolution
// and dialing.
//
// Returns:
//   - The connected node, or the resolve or dial error
func CreateClientContext(ctx context.Context, address string, port int) (Node, error) {
	e := current()

	client := tcpclient.New(e.client, e.logger, e.resolver)
	if err := client.Connect(ctx, address, port); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Release closes node. A nil node is ignored.
func Release(node Node) error {
	if node == nil {
		return nil
	}

	return node.Close()
}
