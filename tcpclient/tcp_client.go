// Package tcpclient implements the client node: a single outbound TCP
// connection whose received lines are queued for the application and whose
// connection state changes are reported through an optional handler.
package tcpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/telnetnode/connection"
	"github.com/cyberinferno/telnetnode/logger"
	"github.com/cyberinferno/telnetnode/msgqueue"
	"github.com/cyberinferno/telnetnode/resolver"
)

const (
	// DefaultAddress is the host used when Connect is given an empty address.
	DefaultAddress = "LOCALHOST"
	// DefaultPort is the telnet port.
	DefaultPort = 23
)

// ServerID is the sender id stamped on every line the client receives.
const ServerID uint32 = 0

var (
	// ErrNotConnected is returned by SendText when there is no live connection.
	ErrNotConnected = errors.New("not connected")
	// ErrClientClosed is returned by Connect after Close.
	ErrClientClosed = errors.New("client is closed")
)

// ConnectionState represents the current state of the client's connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // Not connected
	Connecting                          // Resolve or dial in progress
	Connected                           // Connection established and receiving
	Closed                              // Client closed; Connect is refused
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ConnectionStateEvent is emitted when the connection state changes.
type ConnectionStateEvent struct {
	State     ConnectionState // The new state
	Address   string          // The "host:port" dialed, if any
	Timestamp time.Time       // When the change happened
	Error     error           // Non-nil if the change was caused by an error
}

// ConnectionStateHandler is called from its own goroutine for every state
// change; implementations must be safe for concurrent use.
type ConnectionStateHandler func(event ConnectionStateEvent)

// Config holds client settings.
type Config struct {
	// ConnectionTimeout bounds each dial attempt; 0 means no timeout.
	ConnectionTimeout time.Duration
	// Connection configures the session once established.
	Connection connection.Config
}

// DefaultConfig returns a Config with a 10 second dial timeout and default
// connection settings.
func DefaultConfig() Config {
	return Config{
		ConnectionTimeout: 10 * time.Second,
		Connection:        connection.DefaultConfig(),
	}
}

// Client is a TCP client node. It is safe for concurrent use.
type Client struct {
	config   Config
	logger   logger.Logger
	resolver *resolver.Resolver
	queue    *msgqueue.Queue

	mu                sync.RWMutex
	conn              *connection.Connection
	address           string
	state             ConnectionState
	onConnectionState ConnectionStateHandler
}

// New creates a Client in the Disconnected state.
//
// Parameters:
//   - config: Client settings (e.g. from DefaultConfig)
//   - log: Logger; nil means discard
//   - res: Resolver for host names; nil uses a private in-memory cache
//
// Returns:
//   - A new *Client; call Connect to establish a connection
func New(config Config, log logger.Logger, res *resolver.Resolver) *Client {
	if res == nil {
		res = resolver.New(nil, nil, 0)
	}

	return &Client{
		config:   config,
		logger:   logger.OrNop(log).With(logger.Field{Key: "node", Value: "client"}),
		resolver: res,
		queue:    msgqueue.New(),
		state:    Disconnected,
	}
}

// OnConnectionState registers the handler for state changes, replacing any
// previous one. Pass nil to clear it.
func (c *Client) OnConnectionState(handler ConnectionStateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnectionState = handler
}

// IsServer reports false; it lets callers tell node kinds apart.
func (c *Client) IsServer() bool {
	return false
}

// Connect drops any existing connection, resolves address, and dials each
// resolved address in turn until one succeeds.
//
// Parameters:
//   - ctx: Bounds resolution and dialing
//   - address: Host name or IP; empty means DefaultAddress
//   - port: TCP port; 0 means DefaultPort
//
// Returns:
//   - nil once connected; ErrClientClosed, or the resolve or dial error
func (c *Client) Connect(ctx context.Context, address string, port int) error {
	if address == "" {
		address = DefaultAddress
	}
	if port == 0 {
		port = DefaultPort
	}

	if c.State() == Closed {
		return ErrClientClosed
	}

	if err := c.disconnect(); err != nil {
		c.logger.Debug("closing previous connection failed", logger.Field{Key: "error", Value: err})
	}

	c.setState(Connecting, "", nil)

	addrs, err := c.resolver.DialAddresses(ctx, address, port)
	if err != nil {
		c.setState(Disconnected, "", err)
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	netConn, dialed, err := c.dial(ctx, addrs)
	if err != nil {
		c.setState(Disconnected, "", err)
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	var conn *connection.Connection
	conn = connection.New(ServerID, netConn, c.queue, c.logger, c.config.Connection, func(uint32) {
		c.connectionLost(conn)
	})

	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClientClosed
	}
	c.conn = conn
	c.address = dialed
	c.mu.Unlock()

	c.setState(Connected, dialed, nil)
	c.logger.Info("connected", logger.Field{Key: "addr", Value: dialed})
	conn.Start()

	return nil
}

func (c *Client) dial(ctx context.Context, addrs []string) (net.Conn, string, error) {
	dialer := net.Dialer{Timeout: c.config.ConnectionTimeout}

	var errs []error
	for _, addr := range addrs {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, addr, nil
		}

		c.logger.Debug("dial failed", logger.Field{Key: "addr", Value: addr}, logger.Field{Key: "error", Value: err})
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}

	return nil, "", errors.Join(errs...)
}

// SendText sends text to the server. clientID is ignored; a client only
// ever talks to its server.
//
// Returns:
//   - ErrNotConnected if there is no live connection, or the write error
func (c *Client) SendText(text string, clientID uint32) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.Send([]byte(text)); err != nil {
		if errors.Is(err, connection.ErrClosed) {
			return ErrNotConnected
		}
		return err
	}

	return nil
}

// PopReceivedText removes and returns the oldest received line.
//
// Returns:
//   - The message and true, or false if nothing is queued
func (c *Client) PopReceivedText() (msgqueue.Message, bool) {
	return c.queue.Pop()
}

// Receive blocks until a line is received or ctx is done.
func (c *Client) Receive(ctx context.Context) (msgqueue.Message, error) {
	return c.queue.PopWait(ctx)
}

// Pending returns the number of received lines not yet popped.
func (c *Client) Pending() int {
	return c.queue.Len()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the client has a live connection.
func (c *Client) IsConnected() bool {
	return c.State() == Connected
}

// RemoteAddr returns the "ip:port" of the current connection, or "" when
// disconnected.
func (c *Client) RemoteAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

// Close disconnects and moves the client to Closed. Idempotent.
//
// Returns:
//   - The error from closing the socket, if any
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	err := c.disconnect()
	c.setState(Closed, "", nil)

	return err
}

// disconnect detaches the current connection before closing it, so the
// connection's closed callback sees a stale pointer and does nothing.
func (c *Client) disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.address = ""
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	err := conn.Close()
	c.setState(Disconnected, "", nil)
	c.logger.Info("disconnected")

	return err
}

// connectionLost runs when conn stops on its own, typically because the
// server hung up.
func (c *Client) connectionLost(conn *connection.Connection) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	addr := c.address
	c.address = ""
	c.mu.Unlock()

	c.logger.Info("server closed the connection", logger.Field{Key: "addr", Value: addr})
	c.setState(Disconnected, addr, nil)
}

func (c *Client) setState(state ConnectionState, addr string, err error) {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	c.state = state
	handler := c.onConnectionState
	c.mu.Unlock()

	if handler != nil {
		go handler(ConnectionStateEvent{
			State:     state,
			Address:   addr,
			Timestamp: time.Now(),
			Error:     err,
		})
	}
}
