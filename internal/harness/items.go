package harness

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/mapsync/internal/compiler"
	"github.com/roach88/mapsync/internal/ir"
)

// itemCompiler turns YAML-decoded scenario items into scene entries by
// encoding them as CUE values and running the scene compiler, so scenario
// items and scene files share one format and one set of error messages.
type itemCompiler struct {
	cc *cue.Context
}

func newItemCompiler() *itemCompiler {
	return &itemCompiler{cc: cuecontext.New()}
}

func (c *itemCompiler) value(raw any) (cue.Value, error) {
	v := c.cc.Encode(raw)
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("encode item: %w", err)
	}
	return v, nil
}

func (c *itemCompiler) source(raw map[string]any) (ir.Source, error) {
	v, err := c.value(raw)
	if err != nil {
		return ir.Source{}, err
	}
	return compiler.CompileSource(v)
}

func (c *itemCompiler) layer(raw map[string]any) (ir.Layer, error) {
	v, err := c.value(raw)
	if err != nil {
		return nil, err
	}
	return compiler.CompileLayer(v)
}

func (c *itemCompiler) annotation(raw map[string]any) (ir.Annotation, error) {
	v, err := c.value(raw)
	if err != nil {
		return nil, err
	}
	return compiler.CompileAnnotation(v)
}

// geometry compiles an optional geometry. A nil map is no geometry.
func (c *itemCompiler) geometry(raw map[string]any) (ir.Geometry, error) {
	if raw == nil {
		return nil, nil
	}
	v, err := c.value(raw)
	if err != nil {
		return nil, err
	}
	return compiler.CompileGeometry(v)
}

func (c *itemCompiler) scene(raw map[string]any) (ir.Scene, error) {
	v, err := c.value(raw)
	if err != nil {
		return ir.Scene{}, err
	}
	return compiler.CompileScene(v)
}

func compileAll[T any](raw []map[string]any, compile func(map[string]any) (T, error)) ([]T, error) {
	out := make([]T, 0, len(raw))
	for i, item := range raw {
		v, err := compile(item)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
