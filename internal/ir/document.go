package ir

import (
	"encoding/json"
	"fmt"
)

// Documents are the plain map form of scene entries. They feed canonical
// JSON for digests and for scenes persisted by the store.

// GeometryDocument returns the document form of a geometry.
// Returns nil for a nil geometry.
func GeometryDocument(g Geometry) map[string]any {
	switch geom := g.(type) {
	case nil:
		return nil
	case Point:
		return map[string]any{
			"type":        string(GeometryPoint),
			"coordinates": coordinateDoc(Coordinate(geom)),
		}
	case LineString:
		return map[string]any{
			"type":        string(GeometryLineString),
			"coordinates": coordinatesDoc(geom),
		}
	case MultiLineString:
		lines := make([]any, len(geom))
		for i, line := range geom {
			lines[i] = coordinatesDoc(line)
		}
		return map[string]any{
			"type":        string(GeometryMultiLineString),
			"coordinates": lines,
		}
	default:
		panic(fmt.Sprintf("ir: unknown geometry %T", g))
	}
}

// SourceDocument returns the document form of a source.
func SourceDocument(s Source) map[string]any {
	doc := map[string]any{"id": string(s.ID)}
	if s.Shape != nil {
		doc["shape"] = GeometryDocument(s.Shape)
	}
	return doc
}

// LayerDocument returns the document form of a layer.
// Zero-valued paint properties are omitted.
func LayerDocument(l Layer) map[string]any {
	base := l.Base()
	doc := map[string]any{
		"id":      string(base.ID),
		"kind":    string(l.Kind()),
		"source":  string(base.SourceID),
		"visible": base.Visible,
	}
	putFloat(doc, "min_zoom", base.MinZoom)
	putFloat(doc, "max_zoom", base.MaxZoom)

	paint := map[string]any{}
	switch layer := l.(type) {
	case CircleLayer:
		putFloat(paint, "radius", layer.Radius)
		putString(paint, "color", layer.Color)
		putFloat(paint, "opacity", layer.Opacity)
		putFloat(paint, "stroke_width", layer.StrokeWidth)
		putString(paint, "stroke_color", layer.StrokeColor)
		putFloat(paint, "stroke_opacity", layer.StrokeOpacity)
	case LineLayer:
		putFloat(paint, "width", layer.Width)
		putString(paint, "color", layer.Color)
		putFloat(paint, "opacity", layer.Opacity)
		if len(layer.Dashes) > 0 {
			dashes := make([]any, len(layer.Dashes))
			for i, d := range layer.Dashes {
				dashes[i] = d
			}
			paint["dashes"] = dashes
		}
		putString(paint, "cap", layer.Cap)
		putString(paint, "join", layer.Join)
	default:
		panic(fmt.Sprintf("ir: unknown layer %T", l))
	}
	if len(paint) > 0 {
		doc["paint"] = paint
	}
	return doc
}

// AnnotationDocument returns the document form of an annotation.
func AnnotationDocument(a Annotation) map[string]any {
	doc := map[string]any{
		"id":   string(a.AnnotationID()),
		"kind": string(a.Kind()),
	}
	switch ann := a.(type) {
	case PointAnnotation:
		putString(doc, "title", ann.Title)
		doc["coordinate"] = coordinateDoc(ann.Coordinate)
	case PolylineAnnotation:
		putString(doc, "title", ann.Title)
		doc["coordinates"] = coordinatesDoc(ann.Coordinates)
	case MultiPolylineAnnotation:
		putString(doc, "title", ann.Title)
		lines := make([]any, len(ann.Coordinates))
		for i, line := range ann.Coordinates {
			lines[i] = coordinatesDoc(line)
		}
		doc["coordinates"] = lines
	default:
		panic(fmt.Sprintf("ir: unknown annotation %T", a))
	}
	return doc
}

// SceneDocument returns the document form of a whole scene.
func SceneDocument(s Scene) map[string]any {
	sources := make([]any, len(s.Sources))
	for i, src := range s.Sources {
		sources[i] = SourceDocument(src)
	}
	layers := make([]any, len(s.Layers))
	for i, l := range s.Layers {
		layers[i] = LayerDocument(l)
	}
	annotations := make([]any, len(s.Annotations))
	for i, a := range s.Annotations {
		annotations[i] = AnnotationDocument(a)
	}
	doc := map[string]any{
		"sources":     sources,
		"layers":      layers,
		"annotations": annotations,
	}
	putString(doc, "style_url", s.StyleURL)
	return doc
}

// MarshalScene encodes a scene as canonical JSON.
func MarshalScene(s Scene) ([]byte, error) {
	data, err := MarshalCanonical(SceneDocument(s))
	if err != nil {
		return nil, fmt.Errorf("marshal scene: %w", err)
	}
	return data, nil
}

type sceneJSON struct {
	StyleURL    string            `json:"style_url"`
	Sources     []json.RawMessage `json:"sources"`
	Layers      []json.RawMessage `json:"layers"`
	Annotations []json.RawMessage `json:"annotations"`
}

type geometryJSON struct {
	Type        GeometryKind    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type sourceJSON struct {
	ID    LogicalID     `json:"id"`
	Shape *geometryJSON `json:"shape"`
}

type layerJSON struct {
	ID      LogicalID `json:"id"`
	Kind    LayerKind `json:"kind"`
	Source  LogicalID `json:"source"`
	Visible bool      `json:"visible"`
	MinZoom float64   `json:"min_zoom"`
	MaxZoom float64   `json:"max_zoom"`
	Paint   struct {
		Radius        float64   `json:"radius"`
		Width         float64   `json:"width"`
		Color         string    `json:"color"`
		Opacity       float64   `json:"opacity"`
		StrokeWidth   float64   `json:"stroke_width"`
		StrokeColor   string    `json:"stroke_color"`
		StrokeOpacity float64   `json:"stroke_opacity"`
		Dashes        []float64 `json:"dashes"`
		Cap           string    `json:"cap"`
		Join          string    `json:"join"`
	} `json:"paint"`
}

type annotationJSON struct {
	ID          LogicalID       `json:"id"`
	Kind        AnnotationKind  `json:"kind"`
	Title       string          `json:"title"`
	Coordinate  *[2]float64     `json:"coordinate"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// UnmarshalScene decodes a scene written by MarshalScene.
func UnmarshalScene(data []byte) (Scene, error) {
	var raw sceneJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Scene{}, fmt.Errorf("unmarshal scene: %w", err)
	}

	scene := Scene{StyleURL: raw.StyleURL}
	for i, msg := range raw.Sources {
		src, err := UnmarshalSource(msg)
		if err != nil {
			return Scene{}, fmt.Errorf("sources[%d]: %w", i, err)
		}
		scene.Sources = append(scene.Sources, src)
	}
	for i, msg := range raw.Layers {
		l, err := UnmarshalLayer(msg)
		if err != nil {
			return Scene{}, fmt.Errorf("layers[%d]: %w", i, err)
		}
		scene.Layers = append(scene.Layers, l)
	}
	for i, msg := range raw.Annotations {
		a, err := UnmarshalAnnotation(msg)
		if err != nil {
			return Scene{}, fmt.Errorf("annotations[%d]: %w", i, err)
		}
		scene.Annotations = append(scene.Annotations, a)
	}
	return scene, nil
}

// UnmarshalSource decodes a source document.
func UnmarshalSource(data []byte) (Source, error) {
	var raw sourceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Source{}, err
	}
	src := Source{ID: raw.ID}
	if raw.Shape != nil {
		shape, err := decodeGeometry(*raw.Shape)
		if err != nil {
			return Source{}, fmt.Errorf("source %q shape: %w", raw.ID, err)
		}
		src.Shape = shape
	}
	return src, nil
}

// UnmarshalGeometry decodes a geometry document.
func UnmarshalGeometry(data []byte) (Geometry, error) {
	var raw geometryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return decodeGeometry(raw)
}

// UnmarshalLayer decodes a layer document.
func UnmarshalLayer(data []byte) (Layer, error) {
	var raw layerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	base := LayerBase{
		ID:       raw.ID,
		SourceID: raw.Source,
		Visible:  raw.Visible,
		MinZoom:  raw.MinZoom,
		MaxZoom:  raw.MaxZoom,
	}
	switch raw.Kind {
	case LayerCircle:
		return CircleLayer{
			LayerBase:     base,
			Radius:        raw.Paint.Radius,
			Color:         raw.Paint.Color,
			Opacity:       raw.Paint.Opacity,
			StrokeWidth:   raw.Paint.StrokeWidth,
			StrokeColor:   raw.Paint.StrokeColor,
			StrokeOpacity: raw.Paint.StrokeOpacity,
		}, nil
	case LayerLine:
		return LineLayer{
			LayerBase: base,
			Width:     raw.Paint.Width,
			Color:     raw.Paint.Color,
			Opacity:   raw.Paint.Opacity,
			Dashes:    raw.Paint.Dashes,
			Cap:       raw.Paint.Cap,
			Join:      raw.Paint.Join,
		}, nil
	default:
		return nil, fmt.Errorf("layer %q: unknown kind %q", raw.ID, raw.Kind)
	}
}

// UnmarshalAnnotation decodes an annotation document.
func UnmarshalAnnotation(data []byte) (Annotation, error) {
	var raw annotationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	switch raw.Kind {
	case AnnotationPoint:
		if raw.Coordinate == nil {
			return nil, fmt.Errorf("annotation %q: coordinate is required", raw.ID)
		}
		return PointAnnotation{
			ID:         raw.ID,
			Title:      raw.Title,
			Coordinate: Coordinate{Lat: raw.Coordinate[0], Long: raw.Coordinate[1]},
		}, nil
	case AnnotationPolyline:
		coords, err := decodeLine(raw.Coordinates)
		if err != nil {
			return nil, fmt.Errorf("annotation %q: %w", raw.ID, err)
		}
		return PolylineAnnotation{ID: raw.ID, Title: raw.Title, Coordinates: coords}, nil
	case AnnotationMultiPolyline:
		lines, err := decodeLines(raw.Coordinates)
		if err != nil {
			return nil, fmt.Errorf("annotation %q: %w", raw.ID, err)
		}
		return MultiPolylineAnnotation{ID: raw.ID, Title: raw.Title, Coordinates: lines}, nil
	default:
		return nil, fmt.Errorf("annotation %q: unknown kind %q", raw.ID, raw.Kind)
	}
}

func decodeGeometry(raw geometryJSON) (Geometry, error) {
	switch raw.Type {
	case GeometryPoint:
		var pair [2]float64
		if err := json.Unmarshal(raw.Coordinates, &pair); err != nil {
			return nil, fmt.Errorf("point coordinates: %w", err)
		}
		return Point{Lat: pair[0], Long: pair[1]}, nil
	case GeometryLineString:
		coords, err := decodeLine(raw.Coordinates)
		if err != nil {
			return nil, err
		}
		return LineString(coords), nil
	case GeometryMultiLineString:
		lines, err := decodeLines(raw.Coordinates)
		if err != nil {
			return nil, err
		}
		return MultiLineString(lines), nil
	default:
		return nil, fmt.Errorf("unknown geometry type %q", raw.Type)
	}
}

func decodeLine(data json.RawMessage) ([]Coordinate, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var pairs [][2]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("coordinates: %w", err)
	}
	coords := make([]Coordinate, len(pairs))
	for i, p := range pairs {
		coords[i] = Coordinate{Lat: p[0], Long: p[1]}
	}
	return coords, nil
}

func decodeLines(data json.RawMessage) ([][]Coordinate, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var groups []json.RawMessage
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("coordinates: %w", err)
	}
	lines := make([][]Coordinate, len(groups))
	for i, g := range groups {
		line, err := decodeLine(g)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		lines[i] = line
	}
	return lines, nil
}

func coordinateDoc(c Coordinate) []any {
	return []any{c.Lat, c.Long}
}

func coordinatesDoc(cs []Coordinate) []any {
	out := make([]any, len(cs))
	for i, c := range cs {
		out[i] = coordinateDoc(c)
	}
	return out
}

func putFloat(m map[string]any, key string, v float64) {
	if v != 0 {
		m[key] = v
	}
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}
