// Package connection implements one live TCP session: a socket, the goroutine
// that turns its byte stream into lines, and the locking that lets Send and
// Close race safely.
package connection

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/telnetnode/linesplitter"
	"github.com/cyberinferno/telnetnode/logger"
	"github.com/cyberinferno/telnetnode/msgqueue"
)

// ErrClosed is returned by Send once the connection has been closed.
var ErrClosed = errors.New("connection closed")

// State is the lifecycle state of a Connection.
type State int32

const (
	Created State = iota // Constructed, receive goroutine not started
	Running              // Receive goroutine active
	Closing              // Socket released, receive goroutine exiting
	Closed               // Terminal
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Running:
		return "Running"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Sink receives the lines a connection reads. *msgqueue.Queue implements it.
type Sink interface {
	Push(msg msgqueue.Message)
}

// ClosedFunc is called exactly once, after the connection reaches Closed.
type ClosedFunc func(id uint32)

// Config holds per-connection tuning.
type Config struct {
	// ReadBufferSize is the size of the buffer passed to each socket read.
	ReadBufferSize int
	// MaxLineLength caps the bytes of an unterminated line; a peer exceeding
	// it is disconnected. 0 disables the cap.
	MaxLineLength int
	// WriteTimeout bounds a single Send; 0 means no deadline.
	WriteTimeout time.Duration
}

// DefaultConfig returns the defaults: an 8 KiB read buffer, a 64 KiB line cap,
// and no write timeout.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize: 8192,
		MaxLineLength:  64 * 1024,
		WriteTimeout:   0,
	}
}

// Stats are running counters for a connection.
type Stats struct {
	BytesReceived uint64
	LinesReceived uint64
	BytesSent     uint64
}

// Connection owns one net.Conn. The socket handle is guarded by mu; the
// blocking Read happens outside the lock on the last handle observed.
type Connection struct {
	id         uint32
	remoteAddr string
	sink       Sink
	logger     logger.Logger
	config     Config
	onClosed   ClosedFunc

	mu   sync.Mutex
	conn net.Conn

	// writeMu serializes writers without holding mu across the blocking write.
	writeMu sync.Mutex

	state     atomic.Int32
	started   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	bytesReceived atomic.Uint64
	linesReceived atomic.Uint64
	bytesSent     atomic.Uint64
}

// New wraps conn. The connection does not read until Start is called.
//
// Parameters:
//   - id: Client id stamped on every Message this connection produces
//   - conn: The established socket; the Connection takes ownership
//   - sink: Destination for received lines
//   - log: Logger; nil means discard
//   - config: Buffer and timeout settings
//   - onClosed: Optional callback run once the connection is Closed
//
// Returns:
//   - A Connection in the Created state
func New(id uint32, conn net.Conn, sink Sink, log logger.Logger, config Config, onClosed ClosedFunc) *Connection {
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = DefaultConfig().ReadBufferSize
	}

	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	c := &Connection{
		id:         id,
		remoteAddr: remote,
		sink:       sink,
		config:     config,
		onClosed:   onClosed,
		conn:       conn,
		done:       make(chan struct{}),
	}
	c.logger = logger.OrNop(log).With(
		logger.Field{Key: "client_id", Value: id},
		logger.Field{Key: "remote_addr", Value: remote},
	)
	c.state.Store(int32(Created))

	return c
}

// ID returns the client id of the connection.
func (c *Connection) ID() uint32 {
	return c.id
}

// RemoteAddr returns the peer address captured at construction.
func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// Stats returns a snapshot of the connection counters.
func (c *Connection) Stats() Stats {
	return Stats{
		BytesReceived: c.bytesReceived.Load(),
		LinesReceived: c.linesReceived.Load(),
		BytesSent:     c.bytesSent.Load(),
	}
}

// Done returns a channel that is closed when the connection reaches Closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Start launches the receive goroutine. Only the first call on a connection
// in the Created state has an effect.
func (c *Connection) Start() {
	if !c.state.CompareAndSwap(int32(Created), int32(Running)) {
		return
	}

	c.started.Store(true)
	c.logger.Debug("connection started")
	go c.receiveLoop()
}

// Send writes data to the peer. Concurrent calls are serialized.
//
// Parameters:
//   - data: The bytes to write
//
// Returns:
//   - ErrClosed if the connection is closed, or the write error
func (c *Connection) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn := c.handle()
	if conn == nil {
		return ErrClosed
	}

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return c.writeError(err)
		}
	}

	n, err := conn.Write(data)
	c.bytesSent.Add(uint64(n))
	if err != nil {
		return c.writeError(err)
	}

	return nil
}

func (c *Connection) writeError(err error) error {
	if c.handle() == nil || errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}

	c.logger.Warn("send failed", logger.Field{Key: "error", Value: err})
	return err
}

// Close releases the socket and waits for the receive goroutine to exit.
// It is idempotent and safe to call concurrently with Send.
//
// Returns:
//   - The error from closing the socket on the first call, nil afterwards
func (c *Connection) Close() error {
	err := c.release()

	if c.started.Load() {
		<-c.done
	} else {
		c.finish()
	}

	return err
}

// release invalidates the handle and closes the socket without waiting.
func (c *Connection) release() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if conn != nil {
		c.state.Store(int32(Closing))
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	return conn.Close()
}

func (c *Connection) handle() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// finish moves the connection to Closed and notifies the owner, once.
func (c *Connection) finish() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(Closed))
		close(c.done)
		c.logger.Debug("connection closed")
		if c.onClosed != nil {
			c.onClosed(c.id)
		}
	})
}

func (c *Connection) receiveLoop() {
	defer c.finish()

	splitter := linesplitter.New(c.config.MaxLineLength)
	buffer := make([]byte, c.config.ReadBufferSize)

	for {
		conn := c.handle()
		if conn == nil {
			return
		}

		n, err := conn.Read(buffer)

		// Close may have run while Read was blocked; drop whatever it returned.
		if c.handle() == nil {
			return
		}

		if n > 0 {
			c.bytesReceived.Add(uint64(n))
			splitErr := splitter.Append(buffer[:n])
			for _, line := range splitter.Lines() {
				c.linesReceived.Add(1)
				c.sink.Push(msgqueue.Message{Text: line, SenderID: c.id})
			}

			if splitErr != nil {
				c.logger.Warn("dropping peer", logger.Field{Key: "error", Value: splitErr})
				_ = c.release()
				return
			}
		}

		if err != nil {
			c.logger.Debug("peer disconnected", logger.Field{Key: "error", Value: err})
			_ = c.release()
			return
		}
	}
}
