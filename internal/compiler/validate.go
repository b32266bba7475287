package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/mapsync/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrEmptyID          = "E100" // entry has no id
	ErrDuplicateID      = "E101" // id repeated within a collection
	ErrUnknownSource    = "E102" // layer references an undeclared source
	ErrCoordinateRange  = "E103" // lat outside [-90, 90] or long outside [-180, 180]
	ErrZoomRange        = "E104" // zoom outside [0, 24] or min above max
	ErrInvalidLineStyle = "E105" // unknown line cap or join
	ErrOpacityRange     = "E106" // opacity outside [0, 1]
	ErrNegativeSize     = "E107" // negative radius, width or stroke width
)

const maxZoom = 24

var (
	lineCaps  = []string{"butt", "round", "square"}
	lineJoins = []string{"bevel", "round", "miter"}
)

// ValidationError represents a scene validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled scene.
// Returns all errors found (does not fail-fast).
//
// The reconciler tolerates empty and duplicate ids by skipping them; Validate
// reports them so authors learn about entries that would never render.
func Validate(scene ir.Scene) []ValidationError {
	var errs []ValidationError

	sourceIDs := make(map[ir.LogicalID]bool)
	for i, src := range scene.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		errs = append(errs, checkID(field, src.ID, sourceIDs)...)
		errs = append(errs, checkGeometry(field+".shape", src.Shape)...)
	}

	layerIDs := make(map[ir.LogicalID]bool)
	for i, l := range scene.Layers {
		field := fmt.Sprintf("layers[%d]", i)
		base := l.Base()
		errs = append(errs, checkID(field, base.ID, layerIDs)...)
		if !sourceIDs[base.SourceID] {
			errs = append(errs, ValidationError{
				Field:   field + ".source",
				Message: fmt.Sprintf("layer %q references undeclared source %q", base.ID, base.SourceID),
				Code:    ErrUnknownSource,
			})
		}
		errs = append(errs, checkZoom(field, base)...)
		errs = append(errs, checkPaint(field+".paint", l)...)
	}

	annotationIDs := make(map[ir.LogicalID]bool)
	for i, a := range scene.Annotations {
		field := fmt.Sprintf("annotations[%d]", i)
		errs = append(errs, checkID(field, a.AnnotationID(), annotationIDs)...)
		switch ann := a.(type) {
		case ir.PointAnnotation:
			errs = append(errs, checkCoordinates(field+".coordinate", []ir.Coordinate{ann.Coordinate})...)
		case ir.PolylineAnnotation:
			errs = append(errs, checkCoordinates(field+".coordinates", ann.Coordinates)...)
		case ir.MultiPolylineAnnotation:
			for j, line := range ann.Coordinates {
				errs = append(errs, checkCoordinates(fmt.Sprintf("%s.coordinates[%d]", field, j), line)...)
			}
		}
	}

	return errs
}

func checkID(field string, id ir.LogicalID, seen map[ir.LogicalID]bool) []ValidationError {
	if id.Empty() {
		return []ValidationError{{Field: field + ".id", Message: "id is required", Code: ErrEmptyID}}
	}
	if seen[id] {
		return []ValidationError{{
			Field:   field + ".id",
			Message: fmt.Sprintf("duplicate id %q", id),
			Code:    ErrDuplicateID,
		}}
	}
	seen[id] = true
	return nil
}

func checkGeometry(field string, g ir.Geometry) []ValidationError {
	switch geom := g.(type) {
	case ir.Point:
		return checkCoordinates(field, []ir.Coordinate{ir.Coordinate(geom)})
	case ir.LineString:
		return checkCoordinates(field, geom)
	case ir.MultiLineString:
		var errs []ValidationError
		for i, line := range geom {
			errs = append(errs, checkCoordinates(fmt.Sprintf("%s[%d]", field, i), line)...)
		}
		return errs
	}
	return nil
}

func checkCoordinates(field string, coords []ir.Coordinate) []ValidationError {
	var errs []ValidationError
	for i, c := range coords {
		if c.Lat < -90 || c.Lat > 90 || c.Long < -180 || c.Long > 180 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: fmt.Sprintf("position (%v, %v) is out of range", c.Lat, c.Long),
				Code:    ErrCoordinateRange,
			})
		}
	}
	return errs
}

func checkZoom(field string, base ir.LayerBase) []ValidationError {
	var errs []ValidationError
	for _, z := range []struct {
		name  string
		value float64
	}{{"min_zoom", base.MinZoom}, {"max_zoom", base.MaxZoom}} {
		if z.value < 0 || z.value > maxZoom {
			errs = append(errs, ValidationError{
				Field:   field + "." + z.name,
				Message: fmt.Sprintf("%s %v is outside [0, %d]", z.name, z.value, maxZoom),
				Code:    ErrZoomRange,
			})
		}
	}
	if base.MinZoom != 0 && base.MaxZoom != 0 && base.MinZoom > base.MaxZoom {
		errs = append(errs, ValidationError{
			Field:   field + ".min_zoom",
			Message: fmt.Sprintf("min_zoom %v is above max_zoom %v", base.MinZoom, base.MaxZoom),
			Code:    ErrZoomRange,
		})
	}
	return errs
}

func checkPaint(field string, l ir.Layer) []ValidationError {
	var errs []ValidationError
	opacity := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, ValidationError{
				Field:   field + "." + name,
				Message: fmt.Sprintf("%s %v is outside [0, 1]", name, v),
				Code:    ErrOpacityRange,
			})
		}
	}
	size := func(name string, v float64) {
		if v < 0 {
			errs = append(errs, ValidationError{
				Field:   field + "." + name,
				Message: fmt.Sprintf("%s must not be negative", name),
				Code:    ErrNegativeSize,
			})
		}
	}

	switch layer := l.(type) {
	case ir.CircleLayer:
		size("radius", layer.Radius)
		size("stroke_width", layer.StrokeWidth)
		opacity("opacity", layer.Opacity)
		opacity("stroke_opacity", layer.StrokeOpacity)
	case ir.LineLayer:
		size("width", layer.Width)
		opacity("opacity", layer.Opacity)
		if layer.Cap != "" && !slices.Contains(lineCaps, layer.Cap) {
			errs = append(errs, ValidationError{
				Field:   field + ".cap",
				Message: fmt.Sprintf("invalid line cap %q, must be one of %v", layer.Cap, lineCaps),
				Code:    ErrInvalidLineStyle,
			})
		}
		if layer.Join != "" && !slices.Contains(lineJoins, layer.Join) {
			errs = append(errs, ValidationError{
				Field:   field + ".join",
				Message: fmt.Sprintf("invalid line join %q, must be one of %v", layer.Join, lineJoins),
				Code:    ErrInvalidLineStyle,
			})
		}
		for i, d := range layer.Dashes {
			size(fmt.Sprintf("dashes[%d]", i), d)
		}
	}
	return errs
}
