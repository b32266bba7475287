package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/mapsync/internal/geo"
	"github.com/roach88/mapsync/internal/ir"
)

// marshalShape encodes a source shape as GeoJSON.
// A nil shape is stored as NULL so "never shaped" survives a round trip.
func marshalShape(g ir.Geometry) (sql.NullString, error) {
	if g == nil {
		return sql.NullString{}, nil
	}
	data, err := geo.Marshal(g)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal shape: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalShape(ns sql.NullString) (ir.Geometry, error) {
	if !ns.Valid {
		return nil, nil
	}
	g, err := geo.Decode([]byte(ns.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal shape: %w", err)
	}
	return g, nil
}

// marshalProps encodes paint or layout properties as canonical JSON TEXT.
func marshalProps(props map[string]any) (string, error) {
	if props == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(props)
	if err != nil {
		return "", fmt.Errorf("marshal properties: %w", err)
	}
	return string(data), nil
}

// unmarshalProps decodes properties. Numbers come back as float64 and arrays
// as []any, the same value set NativeLayer documents.
func unmarshalProps(data string) (map[string]any, error) {
	var props map[string]any
	if err := json.Unmarshal([]byte(data), &props); err != nil {
		return nil, fmt.Errorf("unmarshal properties: %w", err)
	}
	if len(props) == 0 {
		return nil, nil
	}
	return props, nil
}

// marshalPoints encodes coordinates as [[lat, long], ...].
func marshalPoints(points []ir.Coordinate) (string, error) {
	arr := make([]any, len(points))
	for i, p := range points {
		arr[i] = []any{p.Lat, p.Long}
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal points: %w", err)
	}
	return string(data), nil
}

func unmarshalPoints(data string) ([]ir.Coordinate, error) {
	var pairs [][2]float64
	if err := json.Unmarshal([]byte(data), &pairs); err != nil {
		return nil, fmt.Errorf("unmarshal points: %w", err)
	}
	points := make([]ir.Coordinate, len(pairs))
	for i, p := range pairs {
		points[i] = ir.Coordinate{Lat: p[0], Long: p[1]}
	}
	return points, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
