// Package idgenerator hands out client identifiers for server sessions.
// Identifiers are strictly increasing and never reused; 0 is reserved for
// "broadcast" and is never returned.
package idgenerator

import "sync/atomic"

// Reserved is the identifier that Id never returns.
const Reserved uint32 = 0

// IdGenerator generates monotonically increasing uint32 IDs in a concurrency-safe
// manner. The first call to Id returns startValue+1. If the counter wraps past
// the maximum uint32 it skips Reserved.
type IdGenerator struct {
	start uint32
	id    atomic.Uint32
}

// NewIdGenerator creates an IdGenerator whose first Id() is startValue+1
// (or 1 if that would be Reserved).
//
// Parameters:
//   - startValue: The value to initialize the counter to
//
// Returns:
//   - A new IdGenerator instance
func NewIdGenerator(startValue uint32) *IdGenerator {
	gen := &IdGenerator{
		start: startValue,
	}
	gen.id.Store(startValue)
	return gen
}

// Id returns the next identifier. It is safe for concurrent use by multiple
// goroutines and never returns Reserved.
//
// Returns:
//   - The next uint32 ID
func (l *IdGenerator) Id() uint32 {
	for {
		if id := l.id.Add(1); id != Reserved {
			return id
		}
	}
}

// Last returns the most recently issued identifier, or the start value if
// Id has not been called yet.
func (l *IdGenerator) Last() uint32 {
	return l.id.Load()
}

// Start returns the value the generator was created with.
func (l *IdGenerator) Start() uint32 {
	return l.start
}
