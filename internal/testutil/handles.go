package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/mapsync/internal/mapengine"
)

// DeterministicHandles generates annotation handles "<prefix>-1",
// "<prefix>-2", ... and can be reset between scenario runs.
//
// Golden traces record handles, so the same scenario with a fresh or reset
// generator produces byte-identical traces.
//
// Thread-safety: safe for concurrent use.
type DeterministicHandles struct {
	mu     sync.Mutex
	prefix string
	n      int
}

var _ mapengine.HandleGenerator = (*DeterministicHandles)(nil)

// NewDeterministicHandles creates a generator. An empty prefix defaults to "h".
func NewDeterministicHandles(prefix string) *DeterministicHandles {
	if prefix == "" {
		prefix = "h"
	}
	return &DeterministicHandles{prefix: prefix}
}

// Generate implements mapengine.HandleGenerator.
func (g *DeterministicHandles) Generate() mapengine.Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return mapengine.Handle(fmt.Sprintf("%s-%d", g.prefix, g.n))
}

// Issued returns how many handles have been generated since the last reset.
func (g *DeterministicHandles) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts numbering at 1.
func (g *DeterministicHandles) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
