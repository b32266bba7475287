package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/namespace"
)

func TestNativeLayer_Circle(t *testing.T) {
	got, err := nativeLayer(namespace.Default, ir.CircleLayer{
		LayerBase:     ir.LayerBase{ID: "stops", SourceID: "stopsSrc", Visible: true, MinZoom: 10},
		Radius:        6,
		Color:         "#123456",
		StrokeWidth:   1,
		StrokeColor:   "#ffffff",
		StrokeOpacity: 0.5,
	})
	require.NoError(t, err)

	assert.Equal(t, mapengine.NativeLayer{
		ID:       "mapsync.stops",
		Type:     "circle",
		SourceID: "mapsync.stopsSrc",
		Visible:  true,
		MinZoom:  10,
		Paint: map[string]any{
			"circle-radius":         6.0,
			"circle-color":          "#123456",
			"circle-stroke-width":   1.0,
			"circle-stroke-color":   "#ffffff",
			"circle-stroke-opacity": 0.5,
		},
		Layout: map[string]any{},
	}, got)
}

func TestNativeLayer_Line(t *testing.T) {
	got, err := nativeLayer(namespace.Default, ir.LineLayer{
		LayerBase: ir.LayerBase{ID: "roads", SourceID: "roadsSrc"},
		Width:     3,
		Opacity:   0.8,
		Dashes:    []float64{2, 1},
		Cap:       "round",
		Join:      "bevel",
	})
	require.NoError(t, err)

	assert.Equal(t, "line", got.Type)
	assert.False(t, got.Visible)
	assert.Equal(t, map[string]any{
		"line-width":     3.0,
		"line-opacity":   0.8,
		"line-dasharray": []any{2.0, 1.0},
	}, got.Paint)
	assert.Equal(t, map[string]any{"line-cap": "round", "line-join": "bevel"}, got.Layout)
}
