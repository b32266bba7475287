package mapengine

import (
	"context"
	"errors"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/namespace"
)

// Engine errors.
var (
	ErrSourceExists = errors.New("source already exists")
	ErrLayerExists  = errors.New("layer already exists")
)

// Handle is the engine-assigned reference to a live annotation.
// Annotation removal requires the handle, not the logical id.
type Handle string

// SourceState is a live engine source.
// Shape is nil until the first SetSourceShape.
type SourceState struct {
	ID    namespace.EngineID
	Shape ir.Geometry
}

// NativeLayer is an engine-native layer description.
// Paint and layout keys follow the Mapbox style specification
// ("circle-radius", "line-cap", ...). Values are float64, string or []any so
// the layer encodes as canonical JSON.
type NativeLayer struct {
	ID       namespace.EngineID
	Type     string
	SourceID namespace.EngineID
	Visible  bool
	MinZoom  float64
	MaxZoom  float64
	Paint    map[string]any
	Layout   map[string]any
}

// MarkerOptions describes a marker annotation.
type MarkerOptions struct {
	Title    string
	Snippet  string
	Position ir.Coordinate
}

// PolylineOptions describes a polyline annotation.
type PolylineOptions struct {
	Points []ir.Coordinate
}

// AnnotationType distinguishes live annotation kinds.
type AnnotationType string

const (
	AnnotationMarker   AnnotationType = "marker"
	AnnotationPolyline AnnotationType = "polyline"
)

// AnnotationState is a live engine annotation.
type AnnotationState struct {
	Handle  Handle
	Type    AnnotationType
	Title   string
	Snippet string
	Points  []ir.Coordinate
}

// Engine is the imperative map engine.
// Every method may fail with an engine fault; absent targets are not faults.
type Engine interface {
	SetStyleURL(ctx context.Context, url string) error
	StyleURL(ctx context.Context) (string, error)

	Source(ctx context.Context, id namespace.EngineID) (SourceState, bool, error)
	Sources(ctx context.Context) ([]SourceState, error)
	AddSource(ctx context.Context, id namespace.EngineID) error
	SetSourceShape(ctx context.Context, id namespace.EngineID, shape ir.Geometry) error
	RemoveSource(ctx context.Context, id namespace.EngineID) error

	Layer(ctx context.Context, id namespace.EngineID) (NativeLayer, bool, error)
	// Layers returns live layers in render order, bottom first.
	Layers(ctx context.Context) ([]NativeLayer, error)
	AddLayer(ctx context.Context, layer NativeLayer) error
	RemoveLayer(ctx context.Context, id namespace.EngineID) error
	SetLayerVisibility(ctx context.Context, id namespace.EngineID, visible bool) error

	AddMarker(ctx context.Context, opts MarkerOptions) (Handle, error)
	AddPolyline(ctx context.Context, opts PolylineOptions) (Handle, error)
	// AddPolylines returns one handle per input, in input order.
	AddPolylines(ctx context.Context, opts []PolylineOptions) ([]Handle, error)
	RemoveAnnotations(ctx context.Context, handles []Handle) error
	RemoveAllAnnotations(ctx context.Context) error
	// Annotations returns live annotations in insertion order.
	Annotations(ctx context.Context) ([]AnnotationState, error)
}
