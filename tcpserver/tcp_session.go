package tcpserver

import (
	"net"

	"github.com/cyberinferno/telnetnode/connection"
	"github.com/cyberinferno/telnetnode/logger"
	"github.com/cyberinferno/telnetnode/msgqueue"
)

// Session is one accepted peer as seen by the server. *connection.Connection
// implements it.
type Session interface {
	// ID returns the client id assigned by the server.
	ID() uint32

	// RemoteAddr returns the peer address.
	RemoteAddr() string

	// Start begins receiving lines from the peer.
	Start()

	// Send writes data to the peer. It must be safe for concurrent use.
	Send(data []byte) error

	// Close disconnects the peer and waits for the session to stop. It must
	// be safe to call multiple times.
	Close() error

	// Stats returns the session's traffic counters.
	Stats() connection.Stats
}

// NewSessionFunc creates the Session for an accepted socket. The session must
// push received lines into sink and call onClosed once it has stopped.
type NewSessionFunc func(
	id uint32,
	conn net.Conn,
	sink connection.Sink,
	log logger.Logger,
	onClosed connection.ClosedFunc,
) Session

// connectionSession is the default NewSessionFunc.
func connectionSession(config connection.Config) NewSessionFunc {
	return func(id uint32, conn net.Conn, sink connection.Sink, log logger.Logger, onClosed connection.ClosedFunc) Session {
		return connection.New(id, conn, sink, log, config, onClosed)
	}
}

var _ connection.Sink = (*msgqueue.Queue)(nil)
