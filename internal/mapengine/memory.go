package mapengine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/namespace"
)

// Op names an engine mutation in the call log.
type Op string

const (
	OpSetStyleURL          Op = "SetStyleURL"
	OpAddSource            Op = "AddSource"
	OpSetSourceShape       Op = "SetSourceShape"
	OpRemoveSource         Op = "RemoveSource"
	OpAddLayer             Op = "AddLayer"
	OpRemoveLayer          Op = "RemoveLayer"
	OpSetLayerVisibility   Op = "SetLayerVisibility"
	OpAddMarker            Op = "AddMarker"
	OpAddPolyline          Op = "AddPolyline"
	OpAddPolylines         Op = "AddPolylines"
	OpRemoveAnnotations    Op = "RemoveAnnotations"
	OpRemoveAllAnnotations Op = "RemoveAllAnnotations"
)

// Call is one recorded mutation.
// Target is the engine id for source/layer calls and empty otherwise.
// Handles lists the handles returned or consumed by annotation calls.
type Call struct {
	Op      Op
	Target  string
	Handles []Handle
	Failed  bool
}

type faultKey struct {
	op     Op
	target string
}

// Memory is an in-memory Engine that records every mutation.
//
// Reads are not recorded. Faults can be injected per (op, target) to
// exercise per-item error isolation.
//
// Thread-safety: Memory guards its state with a mutex so tests may inspect
// it from another goroutine; mapsync itself calls it from one goroutine.
type Memory struct {
	mu          sync.Mutex
	handles     HandleGenerator
	style       string
	sources     map[namespace.EngineID]ir.Geometry
	sourceOrder []namespace.EngineID
	layers      []NativeLayer
	annotations []AnnotationState
	calls       []Call
	faults      map[faultKey]error
}

// NewMemory creates an empty in-memory engine.
// A nil generator defaults to UUIDv7Generator.
func NewMemory(handles HandleGenerator) *Memory {
	if handles == nil {
		handles = UUIDv7Generator{}
	}
	return &Memory{
		handles: handles,
		sources: make(map[namespace.EngineID]ir.Geometry),
		faults:  make(map[faultKey]error),
	}
}

// InjectFault makes every later call of op on target fail with err.
// An empty target matches every target of op.
func (m *Memory) InjectFault(op Op, target string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[faultKey{op: op, target: target}] = err
}

// ClearFaults removes all injected faults.
func (m *Memory) ClearFaults() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.faults)
}

// Calls returns a copy of the call log.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallCount returns how many calls of op were recorded.
func (m *Memory) CallCount(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log without touching engine state.
func (m *Memory) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// record appends a call and returns the injected fault, if any.
// Caller must hold m.mu.
func (m *Memory) record(op Op, target string, handles []Handle) error {
	err := m.faults[faultKey{op: op, target: target}]
	if err == nil {
		err = m.faults[faultKey{op: op}]
	}
	m.calls = append(m.calls, Call{
		Op:      op,
		Target:  target,
		Handles: slices.Clone(handles),
		Failed:  err != nil,
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, target, err)
	}
	return nil
}

// SetStyleURL implements Engine.
func (m *Memory) SetStyleURL(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpSetStyleURL, url, nil); err != nil {
		return err
	}
	m.style = url
	return nil
}

// StyleURL implements Engine.
func (m *Memory) StyleURL(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.style, nil
}

// Source implements Engine.
func (m *Memory) Source(_ context.Context, id namespace.EngineID) (SourceState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shape, ok := m.sources[id]
	if !ok {
		return SourceState{}, false, nil
	}
	return SourceState{ID: id, Shape: shape}, true, nil
}

// Sources implements Engine. Sources are returned in creation order.
func (m *Memory) Sources(_ context.Context) ([]SourceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SourceState, 0, len(m.sourceOrder))
	for _, id := range m.sourceOrder {
		out = append(out, SourceState{ID: id, Shape: m.sources[id]})
	}
	return out, nil
}

// AddSource implements Engine.
func (m *Memory) AddSource(_ context.Context, id namespace.EngineID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpAddSource, string(id), nil); err != nil {
		return err
	}
	if _, ok := m.sources[id]; ok {
		return fmt.Errorf("add source %s: %w", id, ErrSourceExists)
	}
	m.sources[id] = nil
	m.sourceOrder = append(m.sourceOrder, id)
	return nil
}

// SetSourceShape implements Engine.
func (m *Memory) SetSourceShape(_ context.Context, id namespace.EngineID, shape ir.Geometry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpSetSourceShape, string(id), nil); err != nil {
		return err
	}
	if _, ok := m.sources[id]; ok {
		m.sources[id] = shape
	}
	return nil
}

// RemoveSource implements Engine.
func (m *Memory) RemoveSource(_ context.Context, id namespace.EngineID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpRemoveSource, string(id), nil); err != nil {
		return err
	}
	if _, ok := m.sources[id]; !ok {
		return nil
	}
	delete(m.sources, id)
	m.sourceOrder = slices.DeleteFunc(m.sourceOrder, func(s namespace.EngineID) bool { return s == id })
	return nil
}

// Layer implements Engine.
func (m *Memory) Layer(_ context.Context, id namespace.EngineID) (NativeLayer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.layerIndex(id); i >= 0 {
		return m.layers[i], true, nil
	}
	return NativeLayer{}, false, nil
}

// Layers implements Engine.
func (m *Memory) Layers(_ context.Context) ([]NativeLayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.layers), nil
}

// AddLayer implements Engine.
func (m *Memory) AddLayer(_ context.Context, layer NativeLayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpAddLayer, string(layer.ID), nil); err != nil {
		return err
	}
	if m.layerIndex(layer.ID) >= 0 {
		return fmt.Errorf("add layer %s: %w", layer.ID, ErrLayerExists)
	}
	m.layers = append(m.layers, layer)
	return nil
}

// RemoveLayer implements Engine.
func (m *Memory) RemoveLayer(_ context.Context, id namespace.EngineID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpRemoveLayer, string(id), nil); err != nil {
		return err
	}
	if i := m.layerIndex(id); i >= 0 {
		m.layers = slices.Delete(m.layers, i, i+1)
	}
	return nil
}

// SetLayerVisibility implements Engine.
func (m *Memory) SetLayerVisibility(_ context.Context, id namespace.EngineID, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpSetLayerVisibility, string(id), nil); err != nil {
		return err
	}
	if i := m.layerIndex(id); i >= 0 {
		m.layers[i].Visible = visible
	}
	return nil
}

func (m *Memory) layerIndex(id namespace.EngineID) int {
	return slices.IndexFunc(m.layers, func(l NativeLayer) bool { return l.ID == id })
}

// AddMarker implements Engine.
func (m *Memory) AddMarker(_ context.Context, opts MarkerOptions) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.handles.Generate()
	if err := m.record(OpAddMarker, "", []Handle{h}); err != nil {
		return "", err
	}
	m.annotations = append(m.annotations, AnnotationState{
		Handle:  h,
		Type:    AnnotationMarker,
		Title:   opts.Title,
		Snippet: opts.Snippet,
		Points:  []ir.Coordinate{opts.Position},
	})
	return h, nil
}

// AddPolyline implements Engine.
func (m *Memory) AddPolyline(_ context.Context, opts PolylineOptions) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.handles.Generate()
	if err := m.record(OpAddPolyline, "", []Handle{h}); err != nil {
		return "", err
	}
	m.annotations = append(m.annotations, AnnotationState{
		Handle: h,
		Type:   AnnotationPolyline,
		Points: slices.Clone(opts.Points),
	})
	return h, nil
}

// AddPolylines implements Engine.
func (m *Memory) AddPolylines(_ context.Context, opts []PolylineOptions) ([]Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	handles := make([]Handle, len(opts))
	for i := range opts {
		handles[i] = m.handles.Generate()
	}
	if err := m.record(OpAddPolylines, "", handles); err != nil {
		return nil, err
	}
	for i, o := range opts {
		m.annotations = append(m.annotations, AnnotationState{
			Handle: handles[i],
			Type:   AnnotationPolyline,
			Points: slices.Clone(o.Points),
		})
	}
	return handles, nil
}

// RemoveAnnotations implements Engine. Unknown handles are ignored.
func (m *Memory) RemoveAnnotations(_ context.Context, handles []Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpRemoveAnnotations, "", handles); err != nil {
		return err
	}
	m.annotations = slices.DeleteFunc(m.annotations, func(a AnnotationState) bool {
		return slices.Contains(handles, a.Handle)
	})
	return nil
}

// RemoveAllAnnotations implements Engine.
func (m *Memory) RemoveAllAnnotations(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpRemoveAllAnnotations, "", nil); err != nil {
		return err
	}
	m.annotations = nil
	return nil
}

// Annotations implements Engine.
func (m *Memory) Annotations(_ context.Context) ([]AnnotationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.annotations), nil
}

var _ Engine = (*Memory)(nil)
