package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mapsync/internal/ir"
)

func TestToOrb_SwapsAxes(t *testing.T) {
	g := ToOrb(ir.Point{Lat: 10, Long: 20})
	p, ok := g.(orb.Point)
	require.True(t, ok)
	assert.Equal(t, 20.0, p.Lon())
	assert.Equal(t, 10.0, p.Lat())
}

func TestMarshal_Point(t *testing.T) {
	data, err := Marshal(ir.Point{Lat: 10, Long: 20})
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"type":"FeatureCollection"`)
	assert.Contains(t, s, `"geometry":{"type":"Point","coordinates":[20,10]}`)
}

func TestMarshal_NilIsEmptyCollection(t *testing.T) {
	data, err := Marshal(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		geom ir.Geometry
	}{
		{"point", ir.Point{Lat: 1.5, Long: -2.25}},
		{"line", ir.LineString{{Lat: 0, Long: 0}, {Lat: 1, Long: 1}}},
		{"multi", ir.MultiLineString{
			{{Lat: 0, Long: 0}, {Lat: 1, Long: 1}},
			{{Lat: 2, Long: 2}, {Lat: 3, Long: 3}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.geom)
			require.NoError(t, err)
			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.geom, got)
		})
	}
}

func TestDecode_Forms(t *testing.T) {
	want := ir.LineString{{Lat: 1, Long: 0}, {Lat: 2, Long: 1}}

	bare := `{"type":"LineString","coordinates":[[0,1],[1,2]]}`
	got, err := Decode([]byte(bare))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	feature := `{"type":"Feature","geometry":` + bare + `,"properties":{}}`
	got, err = Decode([]byte(feature))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	empty := `{"type":"FeatureCollection","features":[]}`
	got, err = Decode([]byte(empty))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", `{`},
		{"missing type", `{}`},
		{"polygon", `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`},
		{"two features", `{"type":"FeatureCollection","features":[
			{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{}},
			{"type":"Feature","geometry":{"type":"Point","coordinates":[1,1]},"properties":{}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestCollection_SkipsEmptySources(t *testing.T) {
	fc := Collection([]ir.Source{
		{ID: "a", Shape: ir.Point{Lat: 1, Long: 2}},
		{ID: "empty"},
	})
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "a", fc.Features[0].ID)
	assert.Equal(t, "a", fc.Features[0].Properties["id"])
}
