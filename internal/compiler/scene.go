package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/mapsync/internal/ir"
)

// CompileScene parses a CUE value into a Scene.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the scene struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`scene: { style_url: "...", sources: [...] }`)
//	scene, err := CompileScene(v.LookupPath(cue.ParsePath("scene")))
//
// Sources, layers and annotations are lists so their order is explicit;
// layer order is render order. Coordinates are [lat, long] pairs.
func CompileScene(v cue.Value) (ir.Scene, error) {
	if err := v.Err(); err != nil {
		return ir.Scene{}, formatCUEError(err)
	}

	var scene ir.Scene
	var err error

	if scene.StyleURL, err = optionalString(v, "style_url"); err != nil {
		return ir.Scene{}, err
	}

	err = eachListItem(v, "sources", func(item cue.Value) error {
		src, err := CompileSource(item)
		if err != nil {
			return err
		}
		scene.Sources = append(scene.Sources, src)
		return nil
	})
	if err != nil {
		return ir.Scene{}, err
	}

	err = eachListItem(v, "layers", func(item cue.Value) error {
		l, err := CompileLayer(item)
		if err != nil {
			return err
		}
		scene.Layers = append(scene.Layers, l)
		return nil
	})
	if err != nil {
		return ir.Scene{}, err
	}

	err = eachListItem(v, "annotations", func(item cue.Value) error {
		a, err := CompileAnnotation(item)
		if err != nil {
			return err
		}
		scene.Annotations = append(scene.Annotations, a)
		return nil
	})
	if err != nil {
		return ir.Scene{}, err
	}

	return scene, nil
}

// eachListItem calls fn for every element of the optional list at field.
func eachListItem(v cue.Value, field string, fn func(cue.Value) error) error {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil
	}
	iter, err := listVal.List()
	if err != nil {
		return &CompileError{
			Field:   field,
			Message: "must be a list",
			Pos:     listVal.Pos(),
		}
	}
	for i := 0; iter.Next(); i++ {
		if err := fn(iter.Value()); err != nil {
			return inEntry(err, field, i)
		}
	}
	return nil
}

// CompileSource parses one source: { id: "roads", shape?: {...} }.
func CompileSource(v cue.Value) (ir.Source, error) {
	if err := v.Err(); err != nil {
		return ir.Source{}, formatCUEError(err)
	}
	id, err := requiredString(v, "id")
	if err != nil {
		return ir.Source{}, err
	}
	src := ir.Source{ID: ir.LogicalID(id)}

	shapeVal := v.LookupPath(cue.ParsePath("shape"))
	if shapeVal.Exists() {
		if src.Shape, err = CompileGeometry(shapeVal); err != nil {
			return ir.Source{}, err
		}
	}
	return src, nil
}

// CompileGeometry parses a GeoJSON-like geometry with [lat, long] positions:
//
//	{ type: "Point", coordinates: [lat, long] }
//	{ type: "LineString", coordinates: [[lat, long], ...] }
//	{ type: "MultiLineString", coordinates: [[[lat, long], ...], ...] }
func CompileGeometry(v cue.Value) (ir.Geometry, error) {
	kind, err := requiredString(v, "type")
	if err != nil {
		return nil, err
	}
	coordsVal := v.LookupPath(cue.ParsePath("coordinates"))
	if !coordsVal.Exists() {
		return nil, &CompileError{
			Field:   "coordinates",
			Message: "coordinates are required",
			Pos:     v.Pos(),
		}
	}

	switch ir.GeometryKind(kind) {
	case ir.GeometryPoint:
		c, err := parseCoordinate(coordsVal)
		if err != nil {
			return nil, err
		}
		return ir.Point(c), nil
	case ir.GeometryLineString:
		line, err := parseLine(coordsVal)
		if err != nil {
			return nil, err
		}
		return ir.LineString(line), nil
	case ir.GeometryMultiLineString:
		lines, err := parseLines(coordsVal)
		if err != nil {
			return nil, err
		}
		ml := make(ir.MultiLineString, len(lines))
		for i, l := range lines {
			ml[i] = ir.LineString(l)
		}
		return ml, nil
	default:
		return nil, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unknown geometry type %q (want Point, LineString or MultiLineString)", kind),
			Pos:     v.LookupPath(cue.ParsePath("type")).Pos(),
		}
	}
}

// CompileLayer parses one layer:
//
//	{ id: "roadsLayer", kind: "line", source: "roads", visible?: bool,
//	  min_zoom?: number, max_zoom?: number, paint?: {...} }
//
// visible defaults to true.
func CompileLayer(v cue.Value) (ir.Layer, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	id, err := requiredString(v, "id")
	if err != nil {
		return nil, err
	}
	kind, err := requiredString(v, "kind")
	if err != nil {
		return nil, err
	}
	source, err := requiredString(v, "source")
	if err != nil {
		return nil, err
	}

	base := ir.LayerBase{ID: ir.LogicalID(id), SourceID: ir.LogicalID(source), Visible: true}
	if visVal := v.LookupPath(cue.ParsePath("visible")); visVal.Exists() {
		if base.Visible, err = visVal.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if base.MinZoom, err = optionalFloat(v, "min_zoom"); err != nil {
		return nil, err
	}
	if base.MaxZoom, err = optionalFloat(v, "max_zoom"); err != nil {
		return nil, err
	}

	paint := v.LookupPath(cue.ParsePath("paint"))
	switch ir.LayerKind(kind) {
	case ir.LayerCircle:
		return compileCircle(base, paint)
	case ir.LayerLine:
		return compileLine(base, paint)
	default:
		return nil, &CompileError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown layer kind %q (want circle or line)", kind),
			Pos:     v.LookupPath(cue.ParsePath("kind")).Pos(),
		}
	}
}

func compileCircle(base ir.LayerBase, paint cue.Value) (ir.Layer, error) {
	l := ir.CircleLayer{LayerBase: base}
	if !paint.Exists() {
		return l, nil
	}
	var err error
	if l.Radius, err = optionalFloat(paint, "radius"); err != nil {
		return nil, err
	}
	if l.Color, err = optionalString(paint, "color"); err != nil {
		return nil, err
	}
	if l.Opacity, err = optionalFloat(paint, "opacity"); err != nil {
		return nil, err
	}
	if l.StrokeWidth, err = optionalFloat(paint, "stroke_width"); err != nil {
		return nil, err
	}
	if l.StrokeColor, err = optionalString(paint, "stroke_color"); err != nil {
		return nil, err
	}
	if l.StrokeOpacity, err = optionalFloat(paint, "stroke_opacity"); err != nil {
		return nil, err
	}
	return l, nil
}

func compileLine(base ir.LayerBase, paint cue.Value) (ir.Layer, error) {
	l := ir.LineLayer{LayerBase: base}
	if !paint.Exists() {
		return l, nil
	}
	var err error
	if l.Width, err = optionalFloat(paint, "width"); err != nil {
		return nil, err
	}
	if l.Color, err = optionalString(paint, "color"); err != nil {
		return nil, err
	}
	if l.Opacity, err = optionalFloat(paint, "opacity"); err != nil {
		return nil, err
	}
	if l.Cap, err = optionalString(paint, "cap"); err != nil {
		return nil, err
	}
	if l.Join, err = optionalString(paint, "join"); err != nil {
		return nil, err
	}
	if dashVal := paint.LookupPath(cue.ParsePath("dashes")); dashVal.Exists() {
		iter, err := dashVal.List()
		if err != nil {
			return nil, &CompileError{Field: "dashes", Message: "must be a list of numbers", Pos: dashVal.Pos()}
		}
		for iter.Next() {
			f, err := iter.Value().Float64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			l.Dashes = append(l.Dashes, f)
		}
	}
	return l, nil
}

// CompileAnnotation parses one annotation:
//
//	{ id: "pin", kind: "point", title?: "...", coordinate: [lat, long] }
//	{ id: "trail", kind: "polyline", coordinates: [[lat, long], ...] }
//	{ id: "route", kind: "multi_polyline", coordinates: [[[lat, long], ...], ...] }
func CompileAnnotation(v cue.Value) (ir.Annotation, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	id, err := requiredString(v, "id")
	if err != nil {
		return nil, err
	}
	kind, err := requiredString(v, "kind")
	if err != nil {
		return nil, err
	}
	title, err := optionalString(v, "title")
	if err != nil {
		return nil, err
	}

	switch ir.AnnotationKind(kind) {
	case ir.AnnotationPoint:
		coordVal := v.LookupPath(cue.ParsePath("coordinate"))
		if !coordVal.Exists() {
			return nil, &CompileError{Field: "coordinate", Message: "coordinate is required", Pos: v.Pos()}
		}
		c, err := parseCoordinate(coordVal)
		if err != nil {
			return nil, err
		}
		return ir.PointAnnotation{ID: ir.LogicalID(id), Title: title, Coordinate: c}, nil
	case ir.AnnotationPolyline:
		line, err := parseLine(v.LookupPath(cue.ParsePath("coordinates")))
		if err != nil {
			return nil, err
		}
		return ir.PolylineAnnotation{ID: ir.LogicalID(id), Title: title, Coordinates: line}, nil
	case ir.AnnotationMultiPolyline:
		lines, err := parseLines(v.LookupPath(cue.ParsePath("coordinates")))
		if err != nil {
			return nil, err
		}
		return ir.MultiPolylineAnnotation{ID: ir.LogicalID(id), Title: title, Coordinates: lines}, nil
	default:
		return nil, &CompileError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown annotation kind %q (want point, polyline or multi_polyline)", kind),
			Pos:     v.LookupPath(cue.ParsePath("kind")).Pos(),
		}
	}
}

// parseCoordinate reads a [lat, long] pair.
func parseCoordinate(v cue.Value) (ir.Coordinate, error) {
	var pair []float64
	iter, err := v.List()
	if err == nil {
		for iter.Next() {
			f, ferr := iter.Value().Float64()
			if ferr != nil {
				return ir.Coordinate{}, formatCUEError(ferr)
			}
			pair = append(pair, f)
		}
	}
	if err != nil || len(pair) != 2 {
		return ir.Coordinate{}, &CompileError{
			Field:   "coordinates",
			Message: "position must be a [lat, long] pair",
			Pos:     v.Pos(),
		}
	}
	return ir.Coordinate{Lat: pair[0], Long: pair[1]}, nil
}

// parseLine reads a list of positions. A missing value is an empty line.
func parseLine(v cue.Value) ([]ir.Coordinate, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: "coordinates", Message: "must be a list of [lat, long] pairs", Pos: v.Pos()}
	}
	var line []ir.Coordinate
	for iter.Next() {
		c, err := parseCoordinate(iter.Value())
		if err != nil {
			return nil, err
		}
		line = append(line, c)
	}
	return line, nil
}

func parseLines(v cue.Value) ([][]ir.Coordinate, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: "coordinates", Message: "must be a list of lines", Pos: v.Pos()}
	}
	var lines [][]ir.Coordinate
	for iter.Next() {
		line, err := parseLine(iter.Value())
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// optionalFloat reads a number; ints are accepted. Missing means 0.
func optionalFloat(v cue.Value, field string) (float64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	f, err := fv.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return f, nil
}
