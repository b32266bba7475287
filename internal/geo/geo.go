// Package geo converts scene geometries to and from GeoJSON.
//
// GeoJSON is the interchange format between mapsync and the engine. Scene
// coordinates are (lat, long); GeoJSON positions are [long, lat]. Every
// conversion in mapsync goes through this package so the swap happens in
// exactly one place.
package geo

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/roach88/mapsync/internal/ir"
)

// ToOrb converts a scene geometry. A nil geometry converts to nil.
func ToOrb(g ir.Geometry) orb.Geometry {
	switch geom := g.(type) {
	case nil:
		return nil
	case ir.Point:
		return toPoint(ir.Coordinate(geom))
	case ir.LineString:
		return toLine(geom)
	case ir.MultiLineString:
		ml := make(orb.MultiLineString, len(geom))
		for i, line := range geom {
			ml[i] = toLine(line)
		}
		return ml
	default:
		panic(fmt.Sprintf("geo: unknown geometry %T", g))
	}
}

// FromOrb converts an orb geometry back to a scene geometry.
// Only Point, LineString and MultiLineString are supported.
func FromOrb(g orb.Geometry) (ir.Geometry, error) {
	switch geom := g.(type) {
	case orb.Point:
		return ir.Point(fromPoint(geom)), nil
	case orb.LineString:
		return ir.LineString(fromLine(geom)), nil
	case orb.MultiLineString:
		ml := make(ir.MultiLineString, len(geom))
		for i, line := range geom {
			ml[i] = fromLine(line)
		}
		return ml, nil
	case nil:
		return nil, fmt.Errorf("geometry is required")
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.GeoJSONType())
	}
}

// FeatureCollection wraps a geometry in a single-feature collection, the
// shape payload engines accept. A nil geometry yields an empty collection.
func FeatureCollection(g ir.Geometry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if g != nil {
		fc.Append(geojson.NewFeature(ToOrb(g)))
	}
	return fc
}

// Marshal encodes a geometry as a GeoJSON FeatureCollection.
func Marshal(g ir.Geometry) ([]byte, error) {
	data, err := FeatureCollection(g).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode geojson: %w", err)
	}
	return data, nil
}

// Decode parses a GeoJSON document into a scene geometry.
//
// A FeatureCollection must hold at most one feature; an empty collection
// decodes to nil. A Feature or a bare geometry object is accepted as well.
func Decode(data []byte) (ir.Geometry, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("decode feature collection: %w", err)
		}
		switch len(fc.Features) {
		case 0:
			return nil, nil
		case 1:
			return FromOrb(fc.Features[0].Geometry)
		default:
			return nil, fmt.Errorf("feature collection has %d features, want at most 1", len(fc.Features))
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("decode feature: %w", err)
		}
		return FromOrb(f.Geometry)
	case "":
		return nil, fmt.Errorf("decode geojson: missing type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("decode geometry: %w", err)
		}
		return FromOrb(g.Geometry())
	}
}

// Collection builds one feature per source that has a shape, with the
// source id in the "id" property. Used for exports.
func Collection(sources []ir.Source) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, src := range sources {
		if src.Shape == nil {
			continue
		}
		f := geojson.NewFeature(ToOrb(src.Shape))
		f.ID = string(src.ID)
		f.Properties["id"] = string(src.ID)
		fc.Append(f)
	}
	return fc
}

func toPoint(c ir.Coordinate) orb.Point {
	return orb.Point{c.Long, c.Lat}
}

func fromPoint(p orb.Point) ir.Coordinate {
	return ir.Coordinate{Lat: p.Lat(), Long: p.Lon()}
}

func toLine(cs []ir.Coordinate) orb.LineString {
	ls := make(orb.LineString, len(cs))
	for i, c := range cs {
		ls[i] = toPoint(c)
	}
	return ls
}

func fromLine(ls orb.LineString) []ir.Coordinate {
	cs := make([]ir.Coordinate, len(ls))
	for i, p := range ls {
		cs[i] = fromPoint(p)
	}
	return cs
}
