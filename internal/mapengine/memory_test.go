package mapengine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/namespace"
)

func newTestMemory() *Memory {
	return NewMemory(NewSequentialGenerator("h"))
}

func TestMemory_AddSourceTwiceFails(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	require.NoError(t, m.AddSource(ctx, "mapsync.roads"))
	err := m.AddSource(ctx, "mapsync.roads")
	assert.ErrorIs(t, err, ErrSourceExists)

	sources, err := m.Sources(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestMemory_SetSourceShape(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	line := ir.LineString{{Lat: 0, Long: 0}, {Lat: 1, Long: 1}}

	require.NoError(t, m.AddSource(ctx, "mapsync.roads"))
	src, ok, err := m.Source(ctx, "mapsync.roads")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, src.Shape, "sources start empty")

	require.NoError(t, m.SetSourceShape(ctx, "mapsync.roads", line))
	src, _, err = m.Source(ctx, "mapsync.roads")
	require.NoError(t, err)
	assert.Equal(t, line, src.Shape)
}

func TestMemory_AbsentTargetsAreNoOps(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	assert.NoError(t, m.SetSourceShape(ctx, "mapsync.missing", ir.Point{}))
	assert.NoError(t, m.RemoveSource(ctx, "mapsync.missing"))
	assert.NoError(t, m.RemoveLayer(ctx, "mapsync.missing"))
	assert.NoError(t, m.SetLayerVisibility(ctx, "mapsync.missing", false))
	assert.NoError(t, m.RemoveAnnotations(ctx, []Handle{"nope"}))

	sources, _ := m.Sources(ctx)
	assert.Empty(t, sources)
	// Calls are still recorded.
	assert.Len(t, m.Calls(), 5)
}

func TestMemory_LayersKeepRenderOrder(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	for _, id := range []namespace.EngineID{"a", "b", "c"} {
		require.NoError(t, m.AddLayer(ctx, NativeLayer{ID: id, Type: "line"}))
	}
	require.NoError(t, m.RemoveLayer(ctx, "b"))
	require.NoError(t, m.AddLayer(ctx, NativeLayer{ID: "b", Type: "line"}))

	layers, err := m.Layers(ctx)
	require.NoError(t, err)
	ids := make([]namespace.EngineID, len(layers))
	for i, l := range layers {
		ids[i] = l.ID
	}
	assert.Equal(t, []namespace.EngineID{"a", "c", "b"}, ids)

	err = m.AddLayer(ctx, NativeLayer{ID: "a"})
	assert.ErrorIs(t, err, ErrLayerExists)
}

func TestMemory_Annotations(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	h1, err := m.AddMarker(ctx, MarkerOptions{Title: "pin", Position: ir.Coordinate{Lat: 10, Long: 20}})
	require.NoError(t, err)
	assert.Equal(t, Handle("h-1"), h1)

	hs, err := m.AddPolylines(ctx, []PolylineOptions{
		{Points: []ir.Coordinate{{Lat: 0, Long: 0}, {Lat: 1, Long: 1}}},
		{Points: []ir.Coordinate{{Lat: 2, Long: 2}, {Lat: 3, Long: 3}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []Handle{"h-2", "h-3"}, hs)

	require.NoError(t, m.RemoveAnnotations(ctx, []Handle{h1, "h-3"}))
	live, err := m.Annotations(ctx)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, Handle("h-2"), live[0].Handle)

	require.NoError(t, m.RemoveAllAnnotations(ctx))
	live, _ = m.Annotations(ctx)
	assert.Empty(t, live)
}

func TestMemory_InjectFault(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	boom := errors.New("boom")

	m.InjectFault(OpAddSource, "mapsync.bad", boom)
	err := m.AddSource(ctx, "mapsync.bad")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, m.AddSource(ctx, "mapsync.good"))

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Failed)
	assert.False(t, calls[1].Failed)

	// Wildcard target.
	m.InjectFault(OpAddMarker, "", boom)
	_, err = m.AddMarker(ctx, MarkerOptions{})
	assert.ErrorIs(t, err, boom)
	live, _ := m.Annotations(ctx)
	assert.Empty(t, live)

	m.ClearFaults()
	_, err = m.AddMarker(ctx, MarkerOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 2, m.CallCount(OpAddMarker))
}

func TestSnapshot_DigestIgnoresHandles(t *testing.T) {
	ctx := context.Background()
	build := func(gen HandleGenerator) string {
		m := NewMemory(gen)
		require.NoError(t, m.SetStyleURL(ctx, "mapbox://styles/test"))
		require.NoError(t, m.AddSource(ctx, "mapsync.s"))
		require.NoError(t, m.SetSourceShape(ctx, "mapsync.s", ir.Point{Lat: 1, Long: 2}))
		require.NoError(t, m.AddLayer(ctx, NativeLayer{
			ID: "mapsync.l", Type: "circle", SourceID: "mapsync.s", Visible: true,
			Paint: map[string]any{"circle-radius": 4.0},
		}))
		_, err := m.AddMarker(ctx, MarkerOptions{Title: "pin", Snippet: "pin"})
		require.NoError(t, err)

		snap, err := Capture(ctx, m)
		require.NoError(t, err)
		d, err := snap.Digest()
		require.NoError(t, err)
		return d
	}

	a := build(NewSequentialGenerator("x"))
	b := build(UUIDv7Generator{})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestSnapshot_DigestDetectsShapeChange(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	require.NoError(t, m.AddSource(ctx, "mapsync.s"))

	before, err := Capture(ctx, m)
	require.NoError(t, err)
	require.NoError(t, m.SetSourceShape(ctx, "mapsync.s", ir.Point{Lat: 1, Long: 2}))
	after, err := Capture(ctx, m)
	require.NoError(t, err)

	d1, _ := before.Digest()
	d2, _ := after.Digest()
	assert.NotEqual(t, d1, d2)
}

func TestSequentialGenerator(t *testing.T) {
	g := NewSequentialGenerator("")
	assert.Equal(t, Handle("h-1"), g.Generate())
	assert.Equal(t, Handle("h-2"), g.Generate())
}
