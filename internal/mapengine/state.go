package mapengine

import (
	"context"
	"fmt"

	"github.com/roach88/mapsync/internal/ir"
)

// Snapshot is the observable state of an engine at one point in time.
type Snapshot struct {
	StyleURL    string
	Sources     []SourceState
	Layers      []NativeLayer
	Annotations []AnnotationState
}

// Capture reads the full state of e.
func Capture(ctx context.Context, e Engine) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.StyleURL, err = e.StyleURL(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("read style: %w", err)
	}
	if snap.Sources, err = e.Sources(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("read sources: %w", err)
	}
	if snap.Layers, err = e.Layers(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("read layers: %w", err)
	}
	if snap.Annotations, err = e.Annotations(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("read annotations: %w", err)
	}
	return snap, nil
}

// Document returns the snapshot as a canonical-JSON-ready document.
//
// Annotation handles are left out: two engines that received the same calls
// hold equal state even though their handle generators differ.
func (s Snapshot) Document() map[string]any {
	sources := make([]any, len(s.Sources))
	for i, src := range s.Sources {
		doc := map[string]any{"id": string(src.ID)}
		if src.Shape != nil {
			doc["shape"] = ir.GeometryDocument(src.Shape)
		}
		sources[i] = doc
	}

	layers := make([]any, len(s.Layers))
	for i, l := range s.Layers {
		doc := map[string]any{
			"id":      string(l.ID),
			"type":    l.Type,
			"source":  string(l.SourceID),
			"visible": l.Visible,
		}
		if l.MinZoom != 0 {
			doc["min_zoom"] = l.MinZoom
		}
		if l.MaxZoom != 0 {
			doc["max_zoom"] = l.MaxZoom
		}
		if len(l.Paint) > 0 {
			doc["paint"] = l.Paint
		}
		if len(l.Layout) > 0 {
			doc["layout"] = l.Layout
		}
		layers[i] = doc
	}

	annotations := make([]any, len(s.Annotations))
	for i, a := range s.Annotations {
		points := make([]any, len(a.Points))
		for j, p := range a.Points {
			points[j] = []any{p.Lat, p.Long}
		}
		doc := map[string]any{
			"type":   string(a.Type),
			"points": points,
		}
		if a.Title != "" {
			doc["title"] = a.Title
		}
		if a.Snippet != "" {
			doc["snippet"] = a.Snippet
		}
		annotations[i] = doc
	}

	return map[string]any{
		"style_url":   s.StyleURL,
		"sources":     sources,
		"layers":      layers,
		"annotations": annotations,
	}
}

// Digest returns the domain-separated hash of the snapshot document.
func (s Snapshot) Digest() (string, error) {
	data, err := ir.MarshalCanonical(s.Document())
	if err != nil {
		return "", fmt.Errorf("encode engine state: %w", err)
	}
	return ir.HashWithDomain(ir.DomainState, data), nil
}
