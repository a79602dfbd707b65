// Package tcpserver implements the server node: it listens on a TCP port,
// assigns every accepted peer a client id, and routes outgoing text to one
// peer or all of them. Lines received from every peer land in one shared
// inbound queue.
package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/telnetnode/connection"
	"github.com/cyberinferno/telnetnode/idgenerator"
	"github.com/cyberinferno/telnetnode/logger"
	"github.com/cyberinferno/telnetnode/msgqueue"
	"github.com/cyberinferno/telnetnode/safemap"
)

// Broadcast is the client id that addresses every connected peer.
const Broadcast = idgenerator.Reserved

// ErrUnknownClient is returned when a client id does not name a live session.
var ErrUnknownClient = errors.New("unknown client")

const maxAcceptBackoff = time.Second

// Config holds server settings.
type Config struct {
	// Name identifies the server in log entries.
	Name string
	// Host is the interface to bind; empty means all interfaces.
	Host string
	// MaxClients caps concurrently connected peers; 0 means no cap. Excess
	// peers wait in the kernel backlog until a slot frees up.
	MaxClients int
	// Connection configures every accepted session.
	Connection connection.Config
	// HistoryTTL is how long Session keeps reporting a disconnected peer.
	HistoryTTL time.Duration
	// NewSession overrides how sessions are built; nil uses connection.New.
	NewSession NewSessionFunc
}

// DefaultConfig returns a Config with default connection settings, no
// client cap, and ten minutes of session history.
func DefaultConfig() Config {
	return Config{
		Name:       "telnet",
		Connection: connection.DefaultConfig(),
		HistoryTTL: 10 * time.Minute,
	}
}

// SessionInfo describes a current or recently disconnected peer.
type SessionInfo struct {
	ID          uint32
	RemoteAddr  string
	ConnectedAt time.Time
	ClosedAt    time.Time // zero while connected
	Stats       connection.Stats
}

// Connected reports whether the session was still live when the info was taken.
func (i SessionInfo) Connected() bool {
	return i.ClosedAt.IsZero()
}

type historyEntry struct {
	session     Session
	connectedAt time.Time
	closedAt    time.Time
}

// Server is a TCP server node. Create it with New and start it with Listen.
// All methods are safe for concurrent use.
type Server struct {
	logger     logger.Logger
	config     Config
	newSession NewSessionFunc

	mu         sync.Mutex
	listener   net.Listener
	acceptDone chan struct{}
	listening  atomic.Bool

	sessions    *safemap.SafeMap[uint32, Session]
	idGenerator *idgenerator.IdGenerator
	queue       *msgqueue.Queue
	history     *cache.Cache
}

// New creates a Server that is not yet listening.
//
// Parameters:
//   - config: Server settings (e.g. from DefaultConfig)
//   - log: Logger; nil means discard
//
// Returns:
//   - A new *Server
func New(config Config, log logger.Logger) *Server {
	if config.Name == "" {
		config.Name = DefaultConfig().Name
	}

	newSession := config.NewSession
	if newSession == nil {
		newSession = connectionSession(config.Connection)
	}

	return &Server{
		logger:      logger.OrNop(log).With(logger.Field{Key: "server", Value: config.Name}),
		config:      config,
		newSession:  newSession,
		sessions:    safemap.NewSafeMap[uint32, Session](),
		idGenerator: idgenerator.NewIdGenerator(idgenerator.Reserved),
		queue:       msgqueue.New(),
		history:     cache.New(cache.NoExpiration, time.Minute),
	}
}

// IsServer reports true; it lets callers tell node kinds apart.
func (s *Server) IsServer() bool {
	return true
}

// Listen binds the port and starts accepting peers in a goroutine. A server
// that is already listening is closed first, disconnecting its peers.
//
// Parameters:
//   - port: TCP port to bind; 0 picks a free port (see Addr)
//
// Returns:
//   - An error if binding fails; the server is then not listening
func (s *Server) Listen(port int) error {
	if s.listening.Load() {
		_ = s.Close()
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.logger.Error("server failed to listen", logger.Field{Key: "addr", Value: addr}, logger.Field{Key: "error", Value: err})
		return fmt.Errorf("server %s failed to listen on %s: %w", s.config.Name, addr, err)
	}

	if s.config.MaxClients > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxClients)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.listener = ln
	s.acceptDone = done
	s.mu.Unlock()
	s.listening.Store(true)

	s.logger.Info(fmt.Sprintf("%s server started", s.config.Name), logger.Field{Key: "addr", Value: ln.Addr().String()})
	go s.acceptLoop(ln, done)

	return nil
}

// Addr returns the bound address, or nil if the server is not listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// IsListening reports whether the accept loop is running.
func (s *Server) IsListening() bool {
	return s.listening.Load()
}

// SendText sends text to one peer, or to every peer when clientID is
// Broadcast. A broadcast attempts every send even if some fail and returns
// the joined failures; a broadcast with no peers succeeds.
//
// Parameters:
//   - text: The bytes to send, verbatim
//   - clientID: Target peer, or Broadcast
//
// Returns:
//   - ErrUnknownClient if clientID names no live session, or the send error(s)
func (s *Server) SendText(text string, clientID uint32) error {
	data := []byte(text)

	if clientID != Broadcast {
		session, ok := s.sessions.Load(clientID)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownClient, clientID)
		}

		return session.Send(data)
	}

	sessions := s.sessions.Values()
	errs := make([]error, len(sessions))

	var g errgroup.Group
	for i, session := range sessions {
		g.Go(func() error {
			if err := session.Send(data); err != nil {
				errs[i] = fmt.Errorf("client %d: %w", session.ID(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// PopReceivedText removes and returns the oldest received line.
//
// Returns:
//   - The message and true, or false if nothing is queued
func (s *Server) PopReceivedText() (msgqueue.Message, bool) {
	return s.queue.Pop()
}

// Receive blocks until a line is received or ctx is done.
func (s *Server) Receive(ctx context.Context) (msgqueue.Message, error) {
	return s.queue.PopWait(ctx)
}

// Pending returns the number of received lines not yet popped.
func (s *Server) Pending() int {
	return s.queue.Len()
}

// Clients returns the ids of connected peers in ascending order.
func (s *Server) Clients() []uint32 {
	return s.sessions.Keys()
}

// Session returns information about a connected or recently disconnected peer.
//
// Parameters:
//   - id: The client id
//
// Returns:
//   - The session info and true, or false if the id is unknown or expired
func (s *Server) Session(id uint32) (SessionInfo, bool) {
	val, found := s.history.Get(historyKey(id))
	if !found {
		return SessionInfo{}, false
	}

	entry := val.(historyEntry)
	return SessionInfo{
		ID:          id,
		RemoteAddr:  entry.session.RemoteAddr(),
		ConnectedAt: entry.connectedAt,
		ClosedAt:    entry.closedAt,
		Stats:       entry.session.Stats(),
	}, true
}

// Kick disconnects one peer.
//
// Returns:
//   - ErrUnknownClient if id names no live session
func (s *Server) Kick(id uint32) error {
	session, ok := s.sessions.LoadAndDelete(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownClient, id)
	}

	s.logger.Info("kicking client", logger.Field{Key: "client_id", Value: id})
	return session.Close()
}

// Close disconnects every peer, closes the listener, and waits for the
// accept goroutine to exit. Safe to call when the server is not listening.
//
// Returns:
//   - The joined errors from closing sessions and the listener
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.listener
	done := s.acceptDone
	s.listener = nil
	s.acceptDone = nil
	s.mu.Unlock()
	s.listening.Store(false)

	err := closeAll(s.sessions.Drain())

	if ln == nil {
		return err
	}

	if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = errors.Join(err, cerr)
	}
	<-done

	s.logger.Info(fmt.Sprintf("%s server stopped", s.config.Name))
	return err
}

// acceptLoop accepts peers until ln is closed, then disconnects whatever
// peers are left.
func (s *Server) acceptLoop(ln net.Listener, done chan struct{}) {
	defer close(done)

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}

			backoff = max(5*time.Millisecond, min(backoff*2, maxAcceptBackoff))
			s.logger.Error(fmt.Sprintf("%s server accept error", s.config.Name), logger.Field{Key: "error", Value: err})
			time.Sleep(backoff)
			continue
		}

		backoff = 0
		s.addSession(conn)
	}

	_ = closeAll(s.sessions.Drain())
}

func (s *Server) addSession(conn net.Conn) {
	id := s.idGenerator.Id()
	session := s.newSession(id, conn, s.queue, s.logger, s.removeSession)

	s.history.Set(historyKey(id), historyEntry{session: session, connectedAt: time.Now()}, cache.NoExpiration)
	s.sessions.Store(id, session)

	s.logger.Info("client connected",
		logger.Field{Key: "client_id", Value: id},
		logger.Field{Key: "remote_addr", Value: session.RemoteAddr()},
	)
	session.Start()
}

// removeSession runs when a session stops, whether the peer left or the
// server closed it.
func (s *Server) removeSession(id uint32) {
	key := historyKey(id)
	if val, found := s.history.Get(key); found {
		entry := val.(historyEntry)
		entry.closedAt = time.Now()
		if s.config.HistoryTTL > 0 {
			s.history.Set(key, entry, s.config.HistoryTTL)
		} else {
			s.history.Delete(key)
		}
	}

	// History is settled before the id leaves the table.
	s.sessions.Delete(id)

	s.logger.Info("client disconnected", logger.Field{Key: "client_id", Value: id})
}

func closeAll(sessions []Session) error {
	if len(sessions) == 0 {
		return nil
	}

	errs := make([]error, len(sessions))
	var g errgroup.Group
	for i, session := range sessions {
		g.Go(func() error {
			if err := session.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs[i] = fmt.Errorf("client %d: %w", session.ID(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func historyKey(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
