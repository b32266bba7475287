// Package harness provides scenario-driven conformance testing for mapsync.
//
// A scenario binds observable collections to the change-feed adapter,
// mutates them step by step, and asserts on the engine calls and the final
// engine state. The engine is a fresh mapengine.Memory per scenario.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	faults:
//	  - op: AddLayer
//	    target: mapsync.routes
//	    error: "style not loaded"
//	steps:
//	  - action: bind
//	    collection: sources
//	    items:
//	      - id: trail
//	  - action: replace
//	    collection: layers
//	    id: trail-line
//	    item: { id: trail-line, kind: line, source: trail, paint: { width: 3 } }
//	    expect_error: true
//	assertions:
//	  - type: engine_sources
//	    ids: [mapsync.trail]
//	  - type: call_count
//	    op: AddLayer
//	    count: 2
//
// Items use the field layout of scene CUE files; see internal/compiler.
//
// # Assertion Types
//
//   - engine_sources, engine_layers: engine ids present, in engine order
//   - annotation_count: number of live annotations
//   - registry: number of handles registered for a logical id
//   - call_count: exact number of calls of an op (optionally one target)
//   - call_order: ops appear in order among the calls
//   - trace_contains: at least one call of an op (optionally one target)
//   - style_url, layer_visible, source_shape: final engine properties
//
// # Deterministic Testing
//
// The harness uses:
//   - Deterministic annotation handles (testutil.DeterministicHandles)
//   - Deterministic logical clock (testutil.DeterministicClock)
//   - Synchronous delivery: each step drains the dispatcher before the next
//
// This ensures identical traces across runs for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/rebind.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
