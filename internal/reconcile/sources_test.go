package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/namespace"
)

func TestSources_UpsertScenario(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	r := NewSources(e, namespace.Default, quiet)

	first := ir.LineString{{Lat: 0, Long: 0}, {Lat: 1, Long: 1}}
	require.NoError(t, r.Upsert(ctx, ir.Source{ID: "roads", Shape: first}))

	src, ok, err := e.Source(ctx, "mapsync.roads")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.Geometry(first), src.Shape)

	second := ir.LineString{{Lat: 0, Long: 0}, {Lat: 2, Long: 2}}
	require.NoError(t, r.Upsert(ctx, ir.Source{ID: "roads", Shape: second}))

	assert.Equal(t, []namespace.EngineID{"mapsync.roads"}, engineSourceIDs(t, e))
	src, _, err = e.Source(ctx, "mapsync.roads")
	require.NoError(t, err)
	assert.Equal(t, ir.Geometry(second), src.Shape)
	assert.Equal(t, 1, e.CallCount(mapengine.OpAddSource))
}

func TestSources_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	r := NewSources(e, namespace.Default, quiet)
	src := ir.Source{ID: "pins", Shape: ir.Point{Lat: 10, Long: 20}}

	require.NoError(t, r.Upsert(ctx, src))
	before, err := mapengine.Capture(ctx, e)
	require.NoError(t, err)

	require.NoError(t, r.Upsert(ctx, src))
	after, err := mapengine.Capture(ctx, e)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Len(t, after.Sources, 1)
}

func TestSources_NewSourceGetsShapeImmediately(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	r := NewSources(e, namespace.Default, quiet)

	require.NoError(t, r.Upsert(ctx, ir.Source{ID: "s", Shape: ir.Point{Lat: 1, Long: 1}}))

	calls := e.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, mapengine.OpAddSource, calls[0].Op)
	assert.Equal(t, mapengine.OpSetSourceShape, calls[1].Op)
}

func TestSources_NoShapeStaysEmpty(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	r := NewSources(e, namespace.Default, quiet)

	require.NoError(t, r.Upsert(ctx, ir.Source{ID: "s"}))

	src, ok, err := e.Source(ctx, "mapsync.s")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, src.Shape)
	assert.Equal(t, 0, e.CallCount(mapengine.OpSetSourceShape))
}

func TestSources_EmptyIDSkipped(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	r := NewSources(e, namespace.Default, quiet)

	require.NoError(t, r.Upsert(ctx, ir.Source{Shape: ir.Point{}}))
	require.NoError(t, r.Remove(ctx, ir.Source{}))
	assert.Empty(t, e.Calls())
}

// Duplicate ids in one batch are dropped silently rather than reported.
// This keeps the permissive behavior scene authors rely on; flagged for
// review in DESIGN.md.
func TestSources_DuplicateIDsInBatchSkipped(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	r := NewSources(e, namespace.Default, quiet)

	err := r.UpsertMany(ctx, []ir.Source{
		{ID: "a", Shape: ir.Point{Lat: 1, Long: 1}},
		{ID: "a", Shape: ir.Point{Lat: 2, Long: 2}},
		{ID: "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, []namespace.EngineID{"mapsync.a", "mapsync.b"}, engineSourceIDs(t, e))
	src, _, _ := e.Source(ctx, "mapsync.a")
	assert.Equal(t, ir.Geometry(ir.Point{Lat: 1, Long: 1}), src.Shape, "first occurrence wins")
}

func TestSources_RemoveAbsentSucceeds(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	r := NewSources(e, namespace.Default, quiet)

	assert.NoError(t, r.Remove(ctx, ir.Source{ID: "ghost"}))
}

func TestSources_UpsertManyIsolatesFaults(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	boom := errors.New("engine exploded")
	e.InjectFault(mapengine.OpAddSource, "mapsync.bad", boom)
	r := NewSources(e, namespace.Default, quiet)

	err := r.UpsertMany(ctx, []ir.Source{{ID: "good1"}, {ID: "bad"}, {ID: "good2"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	items := Items(err)
	require.Len(t, items, 1)
	assert.Equal(t, CollectionSources, items[0].Collection)
	assert.Equal(t, OpUpsert, items[0].Op)
	assert.Equal(t, "bad", items[0].ID)

	assert.Equal(t, []namespace.EngineID{"mapsync.good1", "mapsync.good2"}, engineSourceIDs(t, e))
}

func TestSources_SetShape(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	r := NewSources(e, namespace.Default, quiet)

	ok, err := r.SetShape(ctx, "missing", ir.Point{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, engineSourceIDs(t, e), "SetShape never creates sources")

	require.NoError(t, r.Upsert(ctx, ir.Source{ID: "s"}))
	ok, err = r.SetShape(ctx, "s", ir.Point{Lat: 5, Long: 6})
	require.NoError(t, err)
	assert.True(t, ok)

	src, _, _ := e.Source(ctx, "mapsync.s")
	assert.Equal(t, ir.Geometry(ir.Point{Lat: 5, Long: 6}), src.Shape)
}

func TestSources_RemoveOwnedLeavesForeign(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	require.NoError(t, e.AddSource(ctx, "composite"))
	r := NewSources(e, namespace.Default, quiet)
	require.NoError(t, r.UpsertMany(ctx, []ir.Source{{ID: "a"}, {ID: "b"}}))

	require.NoError(t, r.RemoveOwned(ctx))

	assert.Equal(t, []namespace.EngineID{"composite"}, engineSourceIDs(t, e))
}
