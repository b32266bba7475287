// Package registry maps logical annotation identifiers to engine handles.
//
// Annotations are removed from the engine by handle, never by logical id,
// so the registry is the only memory mapsync keeps of what it added.
//
// Thread-safety: Registry is NOT safe for concurrent use. It is owned by the
// annotation reconciler and touched only from the reconciliation goroutine.
package registry

import (
	"maps"
	"slices"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/mapengine"
)

// Registry is the logical-id to handle table.
// A multi-polyline annotation owns one handle per engine polyline.
type Registry struct {
	entries map[ir.LogicalID][]mapengine.Handle
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[ir.LogicalID][]mapengine.Handle)}
}

// Put registers handles under id. The last write wins; the handles that
// were registered before are returned so the caller can retire them.
// Putting zero handles removes the entry.
func (r *Registry) Put(id ir.LogicalID, handles ...mapengine.Handle) []mapengine.Handle {
	prev := r.entries[id]
	if len(handles) == 0 {
		delete(r.entries, id)
		return prev
	}
	r.entries[id] = slices.Clone(handles)
	return prev
}

// Resolve returns the handles registered under id.
// Not found is a normal outcome.
func (r *Registry) Resolve(id ir.LogicalID) ([]mapengine.Handle, bool) {
	hs, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(hs), true
}

// RemoveMany drops every known id and returns their handles in input order.
// Unknown ids are skipped.
func (r *Registry) RemoveMany(ids []ir.LogicalID) []mapengine.Handle {
	var out []mapengine.Handle
	for _, id := range ids {
		hs, ok := r.entries[id]
		if !ok {
			continue
		}
		out = append(out, hs...)
		delete(r.entries, id)
	}
	return out
}

// Clear drops every entry.
func (r *Registry) Clear() {
	clear(r.entries)
}

// Len returns the number of registered ids.
func (r *Registry) Len() int {
	return len(r.entries)
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []ir.LogicalID {
	return slices.Sorted(maps.Keys(r.entries))
}

// Snapshot returns a deep copy of the table, for persistence.
func (r *Registry) Snapshot() map[ir.LogicalID][]mapengine.Handle {
	out := make(map[ir.LogicalID][]mapengine.Handle, len(r.entries))
	for id, hs := range r.entries {
		out[id] = slices.Clone(hs)
	}
	return out
}

// Restore replaces the table with a copy of snap.
func (r *Registry) Restore(snap map[ir.LogicalID][]mapengine.Handle) {
	r.entries = make(map[ir.LogicalID][]mapengine.Handle, len(snap))
	for id, hs := range snap {
		if len(hs) > 0 {
			r.entries[id] = slices.Clone(hs)
		}
	}
}
