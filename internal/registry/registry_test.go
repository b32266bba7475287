package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/mapengine"
)

func TestRegistry_PutResolve(t *testing.T) {
	r := New()

	prev := r.Put("pin1", "h-1")
	assert.Nil(t, prev)

	hs, ok := r.Resolve("pin1")
	require.True(t, ok)
	assert.Equal(t, []mapengine.Handle{"h-1"}, hs)

	_, ok = r.Resolve("missing")
	assert.False(t, ok)
}

func TestRegistry_PutOverwriteReturnsPrevious(t *testing.T) {
	r := New()
	r.Put("route", "h-1", "h-2")

	prev := r.Put("route", "h-3")
	assert.Equal(t, []mapengine.Handle{"h-1", "h-2"}, prev)

	hs, _ := r.Resolve("route")
	assert.Equal(t, []mapengine.Handle{"h-3"}, hs)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_PutNothingDeletes(t *testing.T) {
	r := New()
	r.Put("pin", "h-1")

	prev := r.Put("pin")
	assert.Equal(t, []mapengine.Handle{"h-1"}, prev)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_RemoveMany(t *testing.T) {
	r := New()
	r.Put("a", "h-1")
	r.Put("b", "h-2", "h-3")
	r.Put("c", "h-4")

	got := r.RemoveMany([]ir.LogicalID{"b", "missing", "a"})
	assert.Equal(t, []mapengine.Handle{"h-2", "h-3", "h-1"}, got)
	assert.Equal(t, []ir.LogicalID{"c"}, r.IDs())

	assert.Empty(t, r.RemoveMany([]ir.LogicalID{"a"}), "second removal resolves nothing")
}

func TestRegistry_ResolveReturnsCopy(t *testing.T) {
	r := New()
	r.Put("a", "h-1")

	hs, _ := r.Resolve("a")
	hs[0] = "mutated"

	again, _ := r.Resolve("a")
	assert.Equal(t, mapengine.Handle("h-1"), again[0])
}

func TestRegistry_SnapshotRestore(t *testing.T) {
	r := New()
	r.Put("a", "h-1")
	r.Put("b", "h-2", "h-3")

	snap := r.Snapshot()
	r.Clear()
	assert.Equal(t, 0, r.Len())

	r.Restore(snap)
	assert.Equal(t, []ir.LogicalID{"a", "b"}, r.IDs())
	hs, ok := r.Resolve("b")
	require.True(t, ok)
	assert.Equal(t, []mapengine.Handle{"h-2", "h-3"}, hs)
}
