package reconcile

import (
	"fmt"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/namespace"
)

// nativeLayer translates a scene layer into the engine's layer description.
// Zero-valued paint properties are left for the engine to default.
func nativeLayer(ns namespace.Namespace, l ir.Layer) (mapengine.NativeLayer, error) {
	base := l.Base()
	native := mapengine.NativeLayer{
		ID:       ns.ToEngineID(base.ID),
		Type:     string(l.Kind()),
		SourceID: ns.ToEngineID(base.SourceID),
		Visible:  base.Visible,
		MinZoom:  base.MinZoom,
		MaxZoom:  base.MaxZoom,
		Paint:    map[string]any{},
		Layout:   map[string]any{},
	}

	switch layer := l.(type) {
	case ir.CircleLayer:
		paintFloat(native.Paint, "circle-radius", layer.Radius)
		paintString(native.Paint, "circle-color", layer.Color)
		paintFloat(native.Paint, "circle-opacity", layer.Opacity)
		paintFloat(native.Paint, "circle-stroke-width", layer.StrokeWidth)
		paintString(native.Paint, "circle-stroke-color", layer.StrokeColor)
		paintFloat(native.Paint, "circle-stroke-opacity", layer.StrokeOpacity)
	case ir.LineLayer:
		paintFloat(native.Paint, "line-width", layer.Width)
		paintString(native.Paint, "line-color", layer.Color)
		paintFloat(native.Paint, "line-opacity", layer.Opacity)
		if len(layer.Dashes) > 0 {
			dashes := make([]any, len(layer.Dashes))
			for i, d := range layer.Dashes {
				dashes[i] = d
			}
			native.Paint["line-dasharray"] = dashes
		}
		paintString(native.Layout, "line-cap", layer.Cap)
		paintString(native.Layout, "line-join", layer.Join)
	default:
		return mapengine.NativeLayer{}, fmt.Errorf("unknown layer kind %T", l)
	}
	return native, nil
}

func paintFloat(m map[string]any, key string, v float64) {
	if v != 0 {
		m[key] = v
	}
}

func paintString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}
