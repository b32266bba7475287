package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/namespace"
)

// Layers reconciles scene layers against engine layers.
//
// Engine layers are immutable from mapsync's point of view: an upsert
// removes the old layer and adds a new one on top of the render stack.
type Layers struct {
	engine mapengine.Engine
	ns     namespace.Namespace
	logger *slog.Logger
}

// NewLayers creates a layer reconciler. A nil logger uses slog.Default().
func NewLayers(engine mapengine.Engine, ns namespace.Namespace, logger *slog.Logger) *Layers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Layers{engine: engine, ns: ns, logger: logger}
}

// Upsert replaces the engine layer. A layer whose source is not in the
// engine is dropped, not queued.
func (r *Layers) Upsert(ctx context.Context, layer ir.Layer) error {
	base := layer.Base()
	if base.ID.Empty() {
		r.logger.Debug("skipping layer", "reason", "empty id")
		return nil
	}
	id := r.ns.ToEngineID(base.ID)

	if err := r.removeIfPresent(ctx, id); err != nil {
		return err
	}

	sourceID := r.ns.ToEngineID(base.SourceID)
	_, found, err := r.engine.Source(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("lookup source %s: %w", sourceID, err)
	}
	if !found {
		r.logger.Debug("skipping layer", "id", base.ID, "source", base.SourceID, "reason", "source not found")
		return nil
	}

	native, err := nativeLayer(r.ns, layer)
	if err != nil {
		return err
	}
	if err := r.engine.AddLayer(ctx, native); err != nil {
		return fmt.Errorf("add layer %s: %w", id, err)
	}
	r.logger.Debug("layer added", "id", base.ID, "engine_id", id)
	return nil
}

// Remove deletes the engine layer if present.
func (r *Layers) Remove(ctx context.Context, layer ir.Layer) error {
	id := layer.Base().ID
	if id.Empty() {
		r.logger.Debug("skipping layer", "reason", "empty id")
		return nil
	}
	return r.removeIfPresent(ctx, r.ns.ToEngineID(id))
}

func (r *Layers) removeIfPresent(ctx context.Context, id namespace.EngineID) error {
	_, found, err := r.engine.Layer(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup layer %s: %w", id, err)
	}
	if !found {
		return nil
	}
	if err := r.engine.RemoveLayer(ctx, id); err != nil {
		return fmt.Errorf("remove layer %s: %w", id, err)
	}
	return nil
}

// UpsertMany upserts each layer in order, isolating failures.
// Later duplicates of an id within the batch are skipped.
func (r *Layers) UpsertMany(ctx context.Context, layers []ir.Layer) error {
	var b batch
	seen := make(map[ir.LogicalID]bool, len(layers))
	for _, l := range layers {
		id := l.Base().ID
		if seen[id] && !id.Empty() {
			r.logger.Debug("skipping layer", "id", id, "reason", "duplicate id")
			continue
		}
		seen[id] = true
		b.add(CollectionLayers, OpUpsert, string(id), r.Upsert(ctx, l))
	}
	return b.err()
}

// RemoveMany removes each layer, isolating failures.
func (r *Layers) RemoveMany(ctx context.Context, layers []ir.Layer) error {
	var b batch
	for _, l := range layers {
		b.add(CollectionLayers, OpRemove, string(l.Base().ID), r.Remove(ctx, l))
	}
	return b.err()
}

// SetVisibility shows or hides a layer. Unlike the bulk operations it
// reports whether the layer existed: false means nothing was changed.
func (r *Layers) SetVisibility(ctx context.Context, id ir.LogicalID, visible bool) (bool, error) {
	if id.Empty() {
		return false, nil
	}
	eid := r.ns.ToEngineID(id)
	_, found, err := r.engine.Layer(ctx, eid)
	if err != nil {
		return false, fmt.Errorf("lookup layer %s: %w", eid, err)
	}
	if !found {
		return false, nil
	}
	if err := r.engine.SetLayerVisibility(ctx, eid, visible); err != nil {
		return false, &ItemError{Collection: CollectionLayers, Op: OpSetVisibility, ID: string(id), Err: err}
	}
	return true, nil
}

// RemoveOwned removes every engine layer inside the namespace.
// Foreign layers are left alone.
func (r *Layers) RemoveOwned(ctx context.Context) error {
	return r.removeOwnedWhere(ctx, func(mapengine.NativeLayer) bool { return true })
}

// RemoveOwnedOnOwnedSources removes the owned layers that draw from an
// owned source. It runs before a sources reset so no layer outlives its
// source.
func (r *Layers) RemoveOwnedOnOwnedSources(ctx context.Context) error {
	return r.removeOwnedWhere(ctx, func(l mapengine.NativeLayer) bool { return r.ns.IsOwned(l.SourceID) })
}

func (r *Layers) removeOwnedWhere(ctx context.Context, match func(mapengine.NativeLayer) bool) error {
	live, err := r.engine.Layers(ctx)
	if err != nil {
		return fmt.Errorf("list layers: %w", err)
	}
	var b batch
	for _, l := range live {
		if !r.ns.IsOwned(l.ID) || !match(l) {
			continue
		}
		if err := r.engine.RemoveLayer(ctx, l.ID); err != nil {
			b.add(CollectionLayers, OpReset, string(l.ID), err)
		}
	}
	return b.err()
}
