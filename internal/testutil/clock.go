// Package testutil holds deterministic stand-ins for the sources of
// nondeterminism in mapsync: the event sequence clock and engine handles.
package testutil

import (
	"sync"

	"github.com/roach88/mapsync/internal/feed"
)

// DeterministicClock is a resettable logical clock for dispatchers under test.
//
// Unlike feed.Clock, DeterministicClock can be reset, so one scenario run
// twice stamps its events with identical sequence numbers.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

var _ feed.Sequencer = (*DeterministicClock)(nil)

// NewDeterministicClock creates a new deterministic clock starting at 0.
// The first call to Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset resets the clock to 0.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
