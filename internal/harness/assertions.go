package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/namespace"
	"github.com/roach88/mapsync/internal/registry"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			switch ev.Type {
			case TraceEventDelivered:
				fmt.Fprintf(&buf, "  [%d] event #%d %s %s\n", i+1, ev.Seq, ev.Collection, ev.Action)
			case TraceEngineCall:
				failed := ""
				if ev.Failed {
					failed = " (failed)"
				}
				fmt.Fprintf(&buf, "  [%d]   %s %s%s\n", i+1, ev.Op, ev.Target, failed)
			}
		}
	}

	return buf.String()
}

// AssertionContext provides the final engine state for state assertions.
type AssertionContext struct {
	Ctx       context.Context
	Engine    mapengine.Engine
	Registry  *registry.Registry
	Namespace namespace.Namespace
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty slice means all assertions held.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCallCount:
			err = assertCallCount(result.Trace, assertion)
		case AssertCallOrder:
			err = assertCallOrder(result.Trace, assertion)
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertEngineSources, AssertEngineLayers, AssertAnnotationCount,
			AssertStyleURL, AssertLayerVisible, AssertSourceShape, AssertRegistry:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: %s requires engine context", i, assertion.Type)
			} else {
				err = assertState(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func callMatches(ev TraceEvent, op, target string) bool {
	return ev.Type == TraceEngineCall && ev.Op == op && (target == "" || ev.Target == target)
}

// assertTraceContains checks that at least one matching engine call was made.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if callMatches(ev, a.Op, a.Target) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("call %s %s", a.Op, a.Target),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertCallCount checks the exact number of matching engine calls.
func assertCallCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if callMatches(ev, a.Op, a.Target) {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCallCount,
		Expected: fmt.Sprintf("%d calls of %s %s", a.Count, a.Op, a.Target),
		Actual:   fmt.Sprintf("%d calls", n),
		Trace:    trace,
	}
}

// assertCallOrder checks that the ops appear in order among the engine
// calls. Other calls may be interleaved.
func assertCallOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next == len(a.Ops) {
			break
		}
		if ev.Type == TraceEngineCall && ev.Op == a.Ops[next] {
			next++
		}
	}
	if next == len(a.Ops) {
		return nil
	}
	return &AssertionError{
		Type:     AssertCallOrder,
		Expected: fmt.Sprintf("calls in order %v", a.Ops),
		Actual:   fmt.Sprintf("%s not found after %v", a.Ops[next], a.Ops[:next]),
		Trace:    trace,
	}
}

// assertState checks one assertion against the final engine state.
func assertState(actx *AssertionContext, a Assertion) error {
	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual}
	}

	switch a.Type {
	case AssertEngineSources:
		srcs, err := actx.Engine.Sources(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Type, err)
		}
		got := make([]string, len(srcs))
		for i, s := range srcs {
			got[i] = string(s.ID)
		}
		if !slices.Equal(got, nonNil(a.IDs)) {
			return fail(fmt.Sprintf("sources %v", a.IDs), fmt.Sprintf("sources %v", got))
		}

	case AssertEngineLayers:
		layers, err := actx.Engine.Layers(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Type, err)
		}
		got := make([]string, len(layers))
		for i, l := range layers {
			got[i] = string(l.ID)
		}
		if !slices.Equal(got, nonNil(a.IDs)) {
			return fail(fmt.Sprintf("layers %v", a.IDs), fmt.Sprintf("layers %v", got))
		}

	case AssertAnnotationCount:
		anns, err := actx.Engine.Annotations(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Type, err)
		}
		if len(anns) != a.Count {
			return fail(fmt.Sprintf("%d annotations", a.Count), fmt.Sprintf("%d annotations", len(anns)))
		}

	case AssertStyleURL:
		url, err := actx.Engine.StyleURL(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Type, err)
		}
		if url != a.Value {
			return fail(fmt.Sprintf("style %q", a.Value), fmt.Sprintf("style %q", url))
		}

	case AssertLayerVisible:
		l, ok, err := actx.Engine.Layer(ctx, namespace.EngineID(a.ID))
		if err != nil {
			return fmt.Errorf("%s: %w", a.Type, err)
		}
		if !ok {
			return fail(fmt.Sprintf("layer %s visible=%v", a.ID, *a.Visible), "layer not found")
		}
		if l.Visible != *a.Visible {
			return fail(fmt.Sprintf("layer %s visible=%v", a.ID, *a.Visible), fmt.Sprintf("visible=%v", l.Visible))
		}

	case AssertSourceShape:
		src, ok, err := actx.Engine.Source(ctx, namespace.EngineID(a.ID))
		if err != nil {
			return fmt.Errorf("%s: %w", a.Type, err)
		}
		if !ok {
			return fail(fmt.Sprintf("source %s", a.ID), "source not found")
		}
		want, err := newItemCompiler().geometry(a.Shape)
		if err != nil {
			return fmt.Errorf("%s: expected shape: %w", a.Type, err)
		}
		wantDigest, gotDigest := shapeKey(want), shapeKey(src.Shape)
		if wantDigest != gotDigest {
			return fail(fmt.Sprintf("shape %s", describeShape(want)), fmt.Sprintf("shape %s", describeShape(src.Shape)))
		}

	case AssertRegistry:
		if actx.Registry == nil {
			return fmt.Errorf("%s: no registry in context", a.Type)
		}
		handles, _ := actx.Registry.Resolve(ir.LogicalID(a.ID))
		if len(handles) != a.Count {
			return fail(fmt.Sprintf("%d handles for %s", a.Count, a.ID), fmt.Sprintf("%d handles %v", len(handles), handles))
		}
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// shapeKey is the shape digest, or empty for no shape.
func shapeKey(g ir.Geometry) string {
	if g == nil {
		return ""
	}
	d, err := ir.ShapeDigest(g)
	if err != nil {
		return "invalid"
	}
	return d
}

func describeShape(g ir.Geometry) string {
	if g == nil {
		return "<none>"
	}
	data, err := ir.MarshalCanonical(ir.GeometryDocument(g))
	if err != nil {
		return string(g.Kind())
	}
	return string(data)
}
