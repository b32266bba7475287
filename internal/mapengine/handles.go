package mapengine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// HandleGenerator mints annotation handles.
// Implemented by UUIDv7Generator (production) and SequentialGenerator (tests).
type HandleGenerator interface {
	Generate() Handle
}

// UUIDv7Generator generates time-sortable UUIDv7 handles.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 handle.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() Handle {
	return Handle(uuid.Must(uuid.NewV7()).String())
}

// SequentialGenerator returns "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic handles for golden traces.
// Thread-safety: SequentialGenerator is safe for concurrent use.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequentialGenerator creates a generator. Empty prefix defaults to "h".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "h"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next handle.
func (g *SequentialGenerator) Generate() Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return Handle(fmt.Sprintf("%s-%d", g.prefix, g.next))
}
