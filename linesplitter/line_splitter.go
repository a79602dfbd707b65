// Package linesplitter turns an arbitrarily chunked byte stream into discrete
// newline-terminated lines. A LineSplitter keeps the trailing partial line
// between calls so that the lines it emits do not depend on how the stream
// was split by the network.
package linesplitter

import (
	"bytes"
	"errors"
)

// Delimiter is the byte that terminates a line.
const Delimiter = '\n'

// ErrLineTooLong is returned by Append when the unterminated tail of the stream
// grows past the configured maximum. The tail is discarded.
var ErrLineTooLong = errors.New("linesplitter: pending line exceeds maximum length")

// LineSplitter accumulates raw bytes and emits complete lines in FIFO order.
// Every emitted line ends with Delimiter. A LineSplitter is not safe for
// concurrent use; each connection owns its own.
type LineSplitter struct {
	pending    []byte
	lines      [][]byte
	maxPending int
}

// New creates a LineSplitter.
//
// Parameters:
//   - maxPending: Maximum number of bytes an unterminated line may hold before
//     Append reports ErrLineTooLong; 0 or less means no limit
//
// Returns:
//   - A new, empty LineSplitter
func New(maxPending int) *LineSplitter {
	if maxPending < 0 {
		maxPending = 0
	}

	return &LineSplitter{maxPending: maxPending}
}

// Append ingests newly received bytes. Every complete line found in the
// pending bytes plus data is queued for TakeLine; the unterminated remainder
// stays pending for the next call. An empty data slice is a no-op.
//
// Parameters:
//   - data: The bytes received; not retained after the call
//
// Returns:
//   - ErrLineTooLong if the remainder exceeds the maximum pending size. Lines
//     completed by this call are still available.
func (s *LineSplitter) Append(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	// Only the new bytes can contain a delimiter; pending never does.
	idx := bytes.IndexByte(data, Delimiter)
	if idx < 0 {
		s.pending = append(s.pending, data...)
		return s.checkPending()
	}

	first := make([]byte, 0, len(s.pending)+idx+1)
	first = append(first, s.pending...)
	first = append(first, data[:idx+1]...)
	s.lines = append(s.lines, first)
	s.pending = s.pending[:0]

	rest := data[idx+1:]
	for {
		idx = bytes.IndexByte(rest, Delimiter)
		if idx < 0 {
			break
		}

		s.lines = append(s.lines, bytes.Clone(rest[:idx+1]))
		rest = rest[idx+1:]
	}

	s.pending = append(s.pending, rest...)
	return s.checkPending()
}

func (s *LineSplitter) checkPending() error {
	if s.maxPending > 0 && len(s.pending) > s.maxPending {
		s.pending = nil
		return ErrLineTooLong
	}

	return nil
}

// HasLine reports whether at least one complete line is waiting.
func (s *LineSplitter) HasLine() bool {
	return len(s.lines) > 0
}

// TakeLine removes and returns the oldest complete line.
//
// Returns:
//   - The line including its trailing Delimiter
//   - false if no complete line is available
func (s *LineSplitter) TakeLine() ([]byte, bool) {
	if len(s.lines) == 0 {
		return nil, false
	}

	line := s.lines[0]
	s.lines[0] = nil
	s.lines = s.lines[1:]
	if len(s.lines) == 0 {
		s.lines = nil
	}

	return line, true
}

// Lines removes and returns every complete line in arrival order.
func (s *LineSplitter) Lines() [][]byte {
	lines := s.lines
	s.lines = nil
	return lines
}

// Pending returns the number of buffered bytes that do not yet form a line.
func (s *LineSplitter) Pending() int {
	return len(s.pending)
}

// Reset drops all pending bytes and queued lines.
func (s *LineSplitter) Reset() {
	s.pending = nil
	s.lines = nil
}
