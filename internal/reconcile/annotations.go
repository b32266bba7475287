package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/registry"
)

// Annotations reconciles scene annotations against engine annotations.
//
// The engine identifies annotations by handle, so every handle returned for
// an annotation with a logical id is kept in the registry. Annotations have
// no owned/foreign split: mapsync manages the whole annotation set.
type Annotations struct {
	engine   mapengine.Engine
	registry *registry.Registry
	logger   *slog.Logger
}

// NewAnnotations creates an annotation reconciler over reg.
// A nil logger uses slog.Default().
func NewAnnotations(engine mapengine.Engine, reg *registry.Registry, logger *slog.Logger) *Annotations {
	if logger == nil {
		logger = slog.Default()
	}
	return &Annotations{engine: engine, registry: reg, logger: logger}
}

// Registry returns the handle registry.
func (r *Annotations) Registry() *registry.Registry {
	return r.registry
}

// Add creates the engine annotation and registers its handles.
//
// Returns nil handles without calling the engine when there is nothing to
// draw: an empty polyline, or a multi-polyline whose lines are all empty.
// When the id was already registered, the earlier handles are removed from
// the engine once the new ones are in place.
func (r *Annotations) Add(ctx context.Context, a ir.Annotation) ([]mapengine.Handle, error) {
	handles, err := r.draw(ctx, a)
	if err != nil || len(handles) == 0 {
		return nil, err
	}

	id := a.AnnotationID()
	if id.Empty() {
		return handles, nil
	}
	if prev := r.registry.Put(id, handles...); len(prev) > 0 {
		r.logger.Debug("retiring annotation handles", "id", id, "count", len(prev))
		if err := r.engine.RemoveAnnotations(ctx, prev); err != nil {
			return handles, fmt.Errorf("retire annotation %s: %w", id, err)
		}
	}
	return handles, nil
}

func (r *Annotations) draw(ctx context.Context, a ir.Annotation) ([]mapengine.Handle, error) {
	switch ann := a.(type) {
	case ir.PointAnnotation:
		h, err := r.engine.AddMarker(ctx, mapengine.MarkerOptions{
			Title:    ann.Title,
			Snippet:  ann.Title,
			Position: ann.Coordinate,
		})
		if err != nil {
			return nil, fmt.Errorf("add marker: %w", err)
		}
		return []mapengine.Handle{h}, nil

	case ir.PolylineAnnotation:
		if len(ann.Coordinates) == 0 {
			r.logger.Debug("skipping annotation", "id", ann.ID, "reason", "empty polyline")
			return nil, nil
		}
		h, err := r.engine.AddPolyline(ctx, mapengine.PolylineOptions{Points: ann.Coordinates})
		if err != nil {
			return nil, fmt.Errorf("add polyline: %w", err)
		}
		return []mapengine.Handle{h}, nil

	case ir.MultiPolylineAnnotation:
		opts := make([]mapengine.PolylineOptions, 0, len(ann.Coordinates))
		for _, line := range ann.Coordinates {
			if len(line) == 0 {
				continue
			}
			opts = append(opts, mapengine.PolylineOptions{Points: line})
		}
		if len(opts) == 0 {
			r.logger.Debug("skipping annotation", "id", ann.ID, "reason", "empty multi-polyline")
			return nil, nil
		}
		handles, err := r.engine.AddPolylines(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("add polylines: %w", err)
		}
		if len(handles) != len(opts) {
			// Without a 1:1 mapping the handles cannot be registered; take
			// back what the engine drew rather than leak it.
			mismatch := fmt.Errorf("add polylines: engine returned %d handles for %d lines", len(handles), len(opts))
			if err := r.engine.RemoveAnnotations(ctx, handles); err != nil {
				return nil, errors.Join(mismatch, fmt.Errorf("roll back %d drawn polylines: %w", len(handles), err))
			}
			return nil, mismatch
		}
		return handles, nil

	default:
		return nil, fmt.Errorf("unknown annotation kind %T", a)
	}
}

// AddMany adds each annotation. Failures do not stop the batch and are
// returned as a *BatchError.
func (r *Annotations) AddMany(ctx context.Context, as []ir.Annotation) error {
	var b batch
	for _, a := range as {
		_, err := r.Add(ctx, a)
		b.add(CollectionAnnotations, OpAdd, string(a.AnnotationID()), err)
	}
	return b.err()
}

// RemoveMany removes the engine annotations registered for as in one bulk
// call. Unregistered ids are skipped; nothing is sent when none resolve.
// Registry entries are dropped only once the engine accepted the removal.
func (r *Annotations) RemoveMany(ctx context.Context, as []ir.Annotation) error {
	var ids []ir.LogicalID
	var handles []mapengine.Handle
	seen := make(map[ir.LogicalID]bool, len(as))
	for _, a := range as {
		id := a.AnnotationID()
		if seen[id] {
			continue
		}
		seen[id] = true
		hs, ok := r.registry.Resolve(id)
		if !ok {
			r.logger.Debug("skipping annotation", "id", id, "reason", "not registered")
			continue
		}
		ids = append(ids, id)
		handles = append(handles, hs...)
	}
	if len(handles) == 0 {
		return nil
	}
	if err := r.engine.RemoveAnnotations(ctx, handles); err != nil {
		var b batch
		b.add(CollectionAnnotations, OpRemove, "", fmt.Errorf("remove %d annotations: %w", len(handles), err))
		return b.err()
	}
	r.registry.RemoveMany(ids)
	return nil
}

// RemoveAll clears every engine annotation and the registry.
func (r *Annotations) RemoveAll(ctx context.Context) error {
	if err := r.engine.RemoveAllAnnotations(ctx); err != nil {
		var b batch
		b.add(CollectionAnnotations, OpReset, "", err)
		return b.err()
	}
	r.registry.Clear()
	return nil
}
