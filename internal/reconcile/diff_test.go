package reconcile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mapsync/internal/ir"
)

func TestDiff_Identical(t *testing.T) {
	d, err := Diff(testScene(), testScene())
	require.NoError(t, err)
	assert.True(t, d.Empty())
}

func TestDiff_FromEmpty(t *testing.T) {
	d, err := Diff(ir.Scene{}, testScene())
	require.NoError(t, err)

	assert.True(t, d.StyleChanged)
	assert.Len(t, d.Sources.Added, 2)
	assert.Len(t, d.Layers.Added, 2)
	assert.Len(t, d.Annotations.Added, 1)
	assert.Equal(t, d.Layers.Added, d.Layers.Upserts)
}

func TestDiff_ChangedKeepsDesiredOrder(t *testing.T) {
	prev := testScene()
	next := testScene()
	next.Layers = []ir.Layer{
		lineLayer("newLayer", "roads"),
		next.Layers[0],
		next.Layers[1],
	}
	changed := lineLayer("roadsLayer", "roads")
	changed.Color = "#00ff00"
	next.Layers[1] = changed

	d, err := Diff(prev, next)
	require.NoError(t, err)

	require.Len(t, d.Layers.Old, 1)
	assert.Equal(t, ir.LogicalID("roadsLayer"), d.Layers.Old[0].Base().ID)
	assert.Equal(t, "#00ff00", d.Layers.New[0].(ir.LineLayer).Color)

	ids := make([]ir.LogicalID, len(d.Layers.Upserts))
	for i, l := range d.Layers.Upserts {
		ids[i] = l.Base().ID
	}
	assert.Equal(t, []ir.LogicalID{"newLayer", "roadsLayer"}, ids)
	assert.Empty(t, d.Layers.Removed)
}

func TestDiff_Removed(t *testing.T) {
	next := testScene()
	next.Annotations = nil
	next.Sources = next.Sources[1:]

	d, err := Diff(testScene(), next)
	require.NoError(t, err)

	require.Len(t, d.Sources.Removed, 1)
	assert.Equal(t, ir.LogicalID("roads"), d.Sources.Removed[0].ID)
	require.Len(t, d.Annotations.Removed, 1)
	assert.False(t, d.StyleChanged)
}

func TestDiff_EmptyStyleKeepsCurrent(t *testing.T) {
	next := testScene()
	next.StyleURL = ""

	d, err := Diff(testScene(), next)
	require.NoError(t, err)
	assert.False(t, d.StyleChanged)
}

func TestDiff_IgnoresEmptyAndDuplicateIDs(t *testing.T) {
	next := ir.Scene{Sources: []ir.Source{
		{ID: ""},
		{ID: "a", Shape: ir.Point{Lat: 1}},
		{ID: "a", Shape: ir.Point{Lat: 2}},
	}}

	d, err := Diff(ir.Scene{}, next)
	require.NoError(t, err)
	require.Len(t, d.Sources.Added, 1)
	assert.Equal(t, ir.Geometry(ir.Point{Lat: 1}), d.Sources.Added[0].Shape)
}

func TestDiff_RejectsNonFinite(t *testing.T) {
	next := ir.Scene{Sources: []ir.Source{{ID: "bad", Shape: ir.Point{Lat: math.NaN()}}}}

	_, err := Diff(ir.Scene{}, next)
	assert.Error(t, err)
}
