package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/namespace"
)

// Sources reconciles scene sources against engine sources.
// It reads engine state on demand and keeps no mirror of it.
type Sources struct {
	engine mapengine.Engine
	ns     namespace.Namespace
	logger *slog.Logger
}

// NewSources creates a source reconciler. A nil logger uses slog.Default().
func NewSources(engine mapengine.Engine, ns namespace.Namespace, logger *slog.Logger) *Sources {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sources{engine: engine, ns: ns, logger: logger}
}

// Upsert creates the engine source when absent and sets its shape.
//
// A new engine source starts empty; the shape is pushed right after the add
// so a source never stays empty when the scene carries a shape. A source
// without a shape is created empty.
func (r *Sources) Upsert(ctx context.Context, src ir.Source) error {
	if src.ID.Empty() {
		r.logger.Debug("skipping source", "reason", "empty id")
		return nil
	}
	id := r.ns.ToEngineID(src.ID)

	_, found, err := r.engine.Source(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup source %s: %w", id, err)
	}
	if !found {
		if err := r.engine.AddSource(ctx, id); err != nil {
			return fmt.Errorf("add source %s: %w", id, err)
		}
		r.logger.Debug("source added", "id", src.ID, "engine_id", id)
		if src.Shape == nil {
			return nil
		}
	}
	if err := r.engine.SetSourceShape(ctx, id, src.Shape); err != nil {
		return fmt.Errorf("set shape %s: %w", id, err)
	}
	return nil
}

// Remove deletes the engine source. Removing an absent source succeeds.
func (r *Sources) Remove(ctx context.Context, src ir.Source) error {
	if src.ID.Empty() {
		r.logger.Debug("skipping source", "reason", "empty id")
		return nil
	}
	id := r.ns.ToEngineID(src.ID)
	if err := r.engine.RemoveSource(ctx, id); err != nil {
		return fmt.Errorf("remove source %s: %w", id, err)
	}
	return nil
}

// UpsertMany upserts each source. A failing source does not stop the rest;
// failures are returned as a *BatchError. Later duplicates of an id within
// the batch are skipped.
func (r *Sources) UpsertMany(ctx context.Context, srcs []ir.Source) error {
	var b batch
	seen := make(map[ir.LogicalID]bool, len(srcs))
	for _, src := range srcs {
		if seen[src.ID] && !src.ID.Empty() {
			r.logger.Debug("skipping source", "id", src.ID, "reason", "duplicate id")
			continue
		}
		seen[src.ID] = true
		b.add(CollectionSources, OpUpsert, string(src.ID), r.Upsert(ctx, src))
	}
	return b.err()
}

// RemoveMany removes each source, isolating failures like UpsertMany.
func (r *Sources) RemoveMany(ctx context.Context, srcs []ir.Source) error {
	var b batch
	for _, src := range srcs {
		b.add(CollectionSources, OpRemove, string(src.ID), r.Remove(ctx, src))
	}
	return b.err()
}

// SetShape replaces the shape of an existing engine source.
// It reports false, without error, when the source does not exist.
func (r *Sources) SetShape(ctx context.Context, id ir.LogicalID, shape ir.Geometry) (bool, error) {
	if id.Empty() {
		return false, nil
	}
	eid := r.ns.ToEngineID(id)
	_, found, err := r.engine.Source(ctx, eid)
	if err != nil {
		return false, fmt.Errorf("lookup source %s: %w", eid, err)
	}
	if !found {
		return false, nil
	}
	if err := r.engine.SetSourceShape(ctx, eid, shape); err != nil {
		return false, &ItemError{Collection: CollectionSources, Op: OpSetShape, ID: string(id), Err: err}
	}
	return true, nil
}

// RemoveOwned removes every engine source inside the namespace.
// Foreign sources are left alone.
func (r *Sources) RemoveOwned(ctx context.Context) error {
	live, err := r.engine.Sources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	var b batch
	for _, src := range live {
		if !r.ns.IsOwned(src.ID) {
			continue
		}
		if err := r.engine.RemoveSource(ctx, src.ID); err != nil {
			b.add(CollectionSources, OpReset, string(src.ID), err)
		}
	}
	return b.err()
}
