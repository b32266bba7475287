package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_StyleAndSource(t *testing.T) {
	scenario := mustParse(t, `
name: golden_style_and_source
description: Trace snapshot for a style change and one source
steps:
  - action: style
    url: mapbox://styles/golden
  - action: bind
    collection: sources
    items: [{ id: s }]
assertions:
  - type: engine_sources
    ids: [mapsync.s]
`)

	// First run with -update to create golden file:
	//   go test ./internal/harness -run TestRunWithGolden_StyleAndSource -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestMarshalTrace_Deterministic(t *testing.T) {
	scenario := mustParse(t, `
name: deterministic
description: Two runs of one scenario produce identical traces
steps:
  - action: bind
    collection: annotations
    items:
      - { id: route, kind: multi_polyline, coordinates: [[[0, 0], [1, 1]], [[2, 2], [3, 3]]] }
      - { id: pin, kind: point, title: Start, coordinate: [0, 0] }
  - action: clear
    collection: annotations
assertions:
  - type: annotation_count
    count: 0
`)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalTrace(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"handles":["h-1","h-2"]`)
	assert.Contains(t, string(a), `"handles":["h-3"]`)
}

func TestMarshalTrace_FailedCall(t *testing.T) {
	result := NewResult()
	result.Trace = []TraceEvent{
		{Type: TraceEngineCall, Op: "AddLayer", Target: "mapsync.l", Failed: true},
	}
	result.StateDigest = "d"

	data, err := MarshalTrace("failed", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"failed","state_digest":"d","trace":[{"failed":true,"op":"AddLayer","target":"mapsync.l","type":"call"}]}`,
		string(data))
}
