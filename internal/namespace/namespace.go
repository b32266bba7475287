// Package namespace derives engine identifiers from logical identifiers.
//
// Every engine source and layer created by mapsync carries a fixed prefix.
// Engine identifiers without the prefix are foreign: mapsync never mutates
// or removes them. EngineID is a distinct type so that a logical identifier
// cannot reach the engine without passing through ToEngineID.
package namespace

import (
	"fmt"
	"strings"

	"github.com/roach88/mapsync/internal/ir"
)

// DefaultPrefix is the prefix used when no namespace is configured.
const DefaultPrefix = "mapsync."

// EngineID is an identifier as the engine sees it.
type EngineID string

// Namespace maps logical identifiers into a prefixed engine namespace.
// The zero value is not usable; use New or Default.
type Namespace struct {
	prefix string
}

// Default is the namespace with DefaultPrefix.
var Default = Namespace{prefix: DefaultPrefix}

// New creates a namespace with the given prefix.
// The prefix must be non-empty: with an empty prefix every engine
// identifier would look owned.
func New(prefix string) (Namespace, error) {
	if prefix == "" {
		return Namespace{}, fmt.Errorf("namespace prefix must not be empty")
	}
	return Namespace{prefix: prefix}, nil
}

// Prefix returns the namespace prefix.
func (n Namespace) Prefix() string {
	return n.prefix
}

// ToEngineID returns the engine identifier for a logical identifier.
// Deterministic and injective: distinct logical ids never collide.
func (n Namespace) ToEngineID(id ir.LogicalID) EngineID {
	return EngineID(n.prefix + string(id))
}

// IsOwned reports whether an engine identifier belongs to this namespace.
func (n Namespace) IsOwned(id EngineID) bool {
	return n.prefix != "" && strings.HasPrefix(string(id), n.prefix)
}

// ToLogicalID strips the prefix from an owned engine identifier.
// Returns false for foreign identifiers.
func (n Namespace) ToLogicalID(id EngineID) (ir.LogicalID, bool) {
	if !n.IsOwned(id) {
		return "", false
	}
	return ir.LogicalID(strings.TrimPrefix(string(id), n.prefix)), true
}
