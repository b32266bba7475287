package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/reconcile"
)

// Scenario defines a reconciliation test scenario.
// Scenarios drive the change-feed adapter against an in-memory engine and
// assert on the resulting engine calls and final engine state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Namespace overrides the default "mapsync." identifier prefix.
	Namespace string `yaml:"namespace,omitempty"`

	// Faults are injected into the engine before the first step.
	Faults []Fault `yaml:"faults,omitempty"`

	// Steps run in order; each step's events are drained before the next.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final engine state.
	Assertions []Assertion `yaml:"assertions"`
}

// Fault makes an engine operation fail.
type Fault struct {
	// Op is a mapengine.Op name such as "AddLayer".
	Op string `yaml:"op"`

	// Target is the engine id; empty matches every target.
	Target string `yaml:"target,omitempty"`

	// Error is the fault message.
	Error string `yaml:"error"`
}

// Step is one change driven through the adapter.
//
// Items, Item, Geometry and Scene use the same field layout as scene CUE
// files (see internal/compiler); they are encoded to CUE and compiled.
type Step struct {
	// Action is one of the Step* constants.
	Action string `yaml:"action"`

	// Collection is "sources", "layers" or "annotations".
	Collection string `yaml:"collection,omitempty"`

	// Items are the entries for bind and add.
	Items []map[string]any `yaml:"items,omitempty"`

	// IDs are the logical ids for remove.
	IDs []string `yaml:"ids,omitempty"`

	// ID selects the entry for replace, shape and visibility.
	ID string `yaml:"id,omitempty"`

	// Item is the replacement entry for replace.
	Item map[string]any `yaml:"item,omitempty"`

	// URL is the style URL for style.
	URL string `yaml:"url,omitempty"`

	// Geometry is the new shape for shape. Absent clears the shape.
	Geometry map[string]any `yaml:"geometry,omitempty"`

	// Visible is the target visibility for visibility.
	Visible *bool `yaml:"visible,omitempty"`

	// Scene is the next whole scene for scene.
	Scene map[string]any `yaml:"scene,omitempty"`

	// ExpectError marks steps whose delivery must report an engine fault.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

// Step actions.
const (
	StepBind       = "bind"
	StepUnbind     = "unbind"
	StepAdd        = "add"
	StepRemove     = "remove"
	StepReplace    = "replace"
	StepClear      = "clear"
	StepStyle      = "style"
	StepShape      = "shape"
	StepVisibility = "visibility"
	StepScene      = "scene"
)

// Assertion validates the trace or the final engine state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// IDs are engine ids (engine_sources, engine_layers), in order.
	IDs []string `yaml:"ids,omitempty"`

	// ID is an engine id (layer_visible, source_shape) or a logical id
	// (registry).
	ID string `yaml:"id,omitempty"`

	// Op is the engine operation (call_count, trace_contains).
	Op string `yaml:"op,omitempty"`

	// Target narrows call_count and trace_contains to one engine id.
	Target string `yaml:"target,omitempty"`

	// Ops is the expected operation order (call_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number (call_count, annotation_count, registry).
	Count int `yaml:"count,omitempty"`

	// Value is the expected style URL (style_url).
	Value string `yaml:"value,omitempty"`

	// Visible is the expected visibility (layer_visible).
	Visible *bool `yaml:"visible,omitempty"`

	// Shape is the expected geometry (source_shape). Absent means no shape.
	Shape map[string]any `yaml:"shape,omitempty"`
}

// Assertion type constants.
const (
	AssertEngineSources   = "engine_sources"
	AssertEngineLayers    = "engine_layers"
	AssertAnnotationCount = "annotation_count"
	AssertRegistry        = "registry"
	AssertCallCount       = "call_count"
	AssertCallOrder       = "call_order"
	AssertTraceContains   = "trace_contains"
	AssertStyleURL        = "style_url"
	AssertLayerVisible    = "layer_visible"
	AssertSourceShape     = "source_shape"
)

var knownOps = []mapengine.Op{
	mapengine.OpSetStyleURL,
	mapengine.OpAddSource,
	mapengine.OpSetSourceShape,
	mapengine.OpRemoveSource,
	mapengine.OpAddLayer,
	mapengine.OpRemoveLayer,
	mapengine.OpSetLayerVisibility,
	mapengine.OpAddMarker,
	mapengine.OpAddPolyline,
	mapengine.OpAddPolylines,
	mapengine.OpRemoveAnnotations,
	mapengine.OpRemoveAllAnnotations,
}

var knownCollections = []reconcile.Collection{
	reconcile.CollectionSources,
	reconcile.CollectionLayers,
	reconcile.CollectionAnnotations,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, f := range s.Faults {
		if !slices.Contains(knownOps, mapengine.Op(f.Op)) {
			return fmt.Errorf("faults[%d]: unknown op %q", i, f.Op)
		}
		if f.Error == "" {
			return fmt.Errorf("faults[%d]: error is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	needCollection := func() error {
		if !slices.Contains(knownCollections, reconcile.Collection(st.Collection)) {
			return fmt.Errorf("steps[%d]: %s requires collection sources, layers or annotations", index, st.Action)
		}
		return nil
	}

	switch st.Action {
	case StepBind, StepUnbind, StepClear:
		return needCollection()
	case StepAdd:
		if err := needCollection(); err != nil {
			return err
		}
		if len(st.Items) == 0 {
			return fmt.Errorf("steps[%d]: add requires items", index)
		}
	case StepRemove:
		if err := needCollection(); err != nil {
			return err
		}
		if len(st.IDs) == 0 {
			return fmt.Errorf("steps[%d]: remove requires ids", index)
		}
	case StepReplace:
		if err := needCollection(); err != nil {
			return err
		}
		if st.ID == "" || st.Item == nil {
			return fmt.Errorf("steps[%d]: replace requires id and item", index)
		}
	case StepStyle:
		if st.URL == "" {
			return fmt.Errorf("steps[%d]: style requires url", index)
		}
	case StepShape:
		if st.ID == "" {
			return fmt.Errorf("steps[%d]: shape requires id", index)
		}
	case StepVisibility:
		if st.ID == "" || st.Visible == nil {
			return fmt.Errorf("steps[%d]: visibility requires id and visible", index)
		}
	case StepScene:
		if st.Scene == nil {
			return fmt.Errorf("steps[%d]: scene requires scene", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEngineSources, AssertEngineLayers, AssertStyleURL:
		// Empty ids assert an empty engine.
	case AssertSourceShape:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for source_shape", index)
		}
	case AssertAnnotationCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertRegistry:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for registry", index)
		}
	case AssertCallCount, AssertTraceContains:
		if !slices.Contains(knownOps, mapengine.Op(a.Op)) {
			return fmt.Errorf("assertions[%d]: unknown op %q for %s", index, a.Op, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertCallOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for call_order", index)
		}
	case AssertLayerVisible:
		if a.ID == "" || a.Visible == nil {
			return fmt.Errorf("assertions[%d]: id and visible are required for layer_visible", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
