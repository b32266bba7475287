package ir

// LogicalID is the caller-assigned name of a source, layer or annotation.
// It is never sent to the engine directly; see internal/namespace.
type LogicalID string

// Empty reports whether the id marks an unmanaged entry.
func (id LogicalID) Empty() bool {
	return id == ""
}

// Coordinate is a WGS84 position.
type Coordinate struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// GeometryKind names a geometry variant. Values match GeoJSON type names.
type GeometryKind string

const (
	GeometryPoint           GeometryKind = "Point"
	GeometryLineString      GeometryKind = "LineString"
	GeometryMultiLineString GeometryKind = "MultiLineString"
)

// Geometry is a sealed interface over the shapes a source can carry.
// Only Point, LineString and MultiLineString implement it.
type Geometry interface {
	Kind() GeometryKind
	geometry()
}

// Point is a single position.
type Point Coordinate

func (Point) geometry() {}

// Kind implements Geometry.
func (Point) Kind() GeometryKind { return GeometryPoint }

// LineString is an ordered sequence of positions.
type LineString []Coordinate

func (LineString) geometry() {}

// Kind implements Geometry.
func (LineString) Kind() GeometryKind { return GeometryLineString }

// MultiLineString is an ordered sequence of line strings.
type MultiLineString [][]Coordinate

func (MultiLineString) geometry() {}

// Kind implements Geometry.
func (MultiLineString) Kind() GeometryKind { return GeometryMultiLineString }

// Source is a shape-bearing data source.
// Shape may be nil, in which case the engine source is created empty.
type Source struct {
	ID    LogicalID
	Shape Geometry
}

// LayerKind names a layer variant.
type LayerKind string

const (
	LayerCircle LayerKind = "circle"
	LayerLine   LayerKind = "line"
)

// LayerBase holds the properties every layer kind shares.
type LayerBase struct {
	ID       LogicalID
	SourceID LogicalID
	Visible  bool
	MinZoom  float64 // 0 means unset
	MaxZoom  float64 // 0 means unset
}

// Layer is a sealed interface over rendering layer kinds.
// Only CircleLayer and LineLayer implement it.
type Layer interface {
	Base() LayerBase
	Kind() LayerKind
	layer()
}

// CircleLayer renders point features as circles.
type CircleLayer struct {
	LayerBase
	Radius        float64
	Color         string
	Opacity       float64 // 0 means engine default
	StrokeWidth   float64
	StrokeColor   string
	StrokeOpacity float64
}

func (CircleLayer) layer() {}

// Base implements Layer.
func (l CircleLayer) Base() LayerBase { return l.LayerBase }

// Kind implements Layer.
func (CircleLayer) Kind() LayerKind { return LayerCircle }

// LineLayer renders line features.
type LineLayer struct {
	LayerBase
	Width   float64
	Color   string
	Opacity float64
	Dashes  []float64
	Cap     string // butt|round|square
	Join    string // bevel|round|miter
}

func (LineLayer) layer() {}

// Base implements Layer.
func (l LineLayer) Base() LayerBase { return l.LayerBase }

// Kind implements Layer.
func (LineLayer) Kind() LayerKind { return LayerLine }

// AnnotationKind names an annotation variant.
type AnnotationKind string

const (
	AnnotationPoint         AnnotationKind = "point"
	AnnotationPolyline      AnnotationKind = "polyline"
	AnnotationMultiPolyline AnnotationKind = "multi_polyline"
)

// Annotation is a sealed interface over engine-managed annotations.
// Only PointAnnotation, PolylineAnnotation and MultiPolylineAnnotation
// implement it.
type Annotation interface {
	AnnotationID() LogicalID
	Kind() AnnotationKind
	annotation()
}

// PointAnnotation is a marker with a title.
type PointAnnotation struct {
	ID         LogicalID
	Title      string
	Coordinate Coordinate
}

func (PointAnnotation) annotation() {}

// AnnotationID implements Annotation.
func (a PointAnnotation) AnnotationID() LogicalID { return a.ID }

// Kind implements Annotation.
func (PointAnnotation) Kind() AnnotationKind { return AnnotationPoint }

// PolylineAnnotation is a single polyline.
type PolylineAnnotation struct {
	ID          LogicalID
	Title       string
	Coordinates []Coordinate
}

func (PolylineAnnotation) annotation() {}

// AnnotationID implements Annotation.
func (a PolylineAnnotation) AnnotationID() LogicalID { return a.ID }

// Kind implements Annotation.
func (PolylineAnnotation) Kind() AnnotationKind { return AnnotationPolyline }

// MultiPolylineAnnotation is a group of polylines added in one batch.
type MultiPolylineAnnotation struct {
	ID          LogicalID
	Title       string
	Coordinates [][]Coordinate
}

func (MultiPolylineAnnotation) annotation() {}

// AnnotationID implements Annotation.
func (a MultiPolylineAnnotation) AnnotationID() LogicalID { return a.ID }

// Kind implements Annotation.
func (MultiPolylineAnnotation) Kind() AnnotationKind { return AnnotationMultiPolyline }

// Scene is the desired state of a map.
// Layer order is render order: later layers draw on top.
type Scene struct {
	StyleURL    string
	Sources     []Source
	Layers      []Layer
	Annotations []Annotation
}
