// Package reconcile issues the engine calls that bring a map engine into
// agreement with a declarative scene.
//
// Three component reconcilers (Sources, Layers, Annotations) each own one
// collection. Reconciler is the facade the change-feed adapter and the CLI
// drive; it enforces the single-goroutine contract.
//
// Error model:
//   - Skippable inputs (empty ids, empty geometry, missing layer sources)
//     are logged at debug level and dropped
//   - Not-found targets are success for bulk paths, false for SetVisibility
//     and SetShape
//   - Engine faults are isolated per item and returned as *BatchError
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/namespace"
	"github.com/roach88/mapsync/internal/registry"
)

// Reconciler is the entry point for every engine mutation mapsync makes.
//
// Thread-safety: Reconciler is NOT safe for concurrent use. Engines forbid
// concurrent mutation, so calls must be serialized (feed.Dispatcher does
// this). Overlapping calls panic rather than interleave.
type Reconciler struct {
	guard       serialGuard
	engine      mapengine.Engine
	ns          namespace.Namespace
	logger      *slog.Logger
	sources     *Sources
	layers      *Layers
	annotations *Annotations
}

// Option configures a Reconciler.
type Option func(*options)

type options struct {
	ns       namespace.Namespace
	logger   *slog.Logger
	registry *registry.Registry
}

// WithNamespace sets the identifier namespace. Default: namespace.Default.
func WithNamespace(ns namespace.Namespace) Option {
	return func(o *options) { o.ns = ns }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry reuses an existing handle registry, e.g. one restored from
// the store.
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) { o.registry = r }
}

// New creates a Reconciler over engine.
func New(engine mapengine.Engine, opts ...Option) *Reconciler {
	o := options{ns: namespace.Default, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = registry.New()
	}
	return &Reconciler{
		engine:      engine,
		ns:          o.ns,
		logger:      o.logger,
		sources:     NewSources(engine, o.ns, o.logger),
		layers:      NewLayers(engine, o.ns, o.logger),
		annotations: NewAnnotations(engine, o.registry, o.logger),
	}
}

// Namespace returns the identifier namespace.
func (r *Reconciler) Namespace() namespace.Namespace {
	return r.ns
}

// Registry returns the annotation handle registry.
func (r *Reconciler) Registry() *registry.Registry {
	return r.annotations.Registry()
}

// UpsertSources upserts sources. See Sources.UpsertMany.
func (r *Reconciler) UpsertSources(ctx context.Context, srcs []ir.Source) error {
	defer r.guard.enter()()
	return r.sources.UpsertMany(ctx, srcs)
}

// RemoveSources removes sources. See Sources.RemoveMany.
func (r *Reconciler) RemoveSources(ctx context.Context, srcs []ir.Source) error {
	defer r.guard.enter()()
	return r.sources.RemoveMany(ctx, srcs)
}

// SetSourceShape updates the shape of an existing source.
// Reports false when the source does not exist.
func (r *Reconciler) SetSourceShape(ctx context.Context, id ir.LogicalID, shape ir.Geometry) (bool, error) {
	defer r.guard.enter()()
	return r.sources.SetShape(ctx, id, shape)
}

// UpsertLayers upserts layers in order. See Layers.UpsertMany.
func (r *Reconciler) UpsertLayers(ctx context.Context, layers []ir.Layer) error {
	defer r.guard.enter()()
	return r.layers.UpsertMany(ctx, layers)
}

// RemoveLayers removes layers. See Layers.RemoveMany.
func (r *Reconciler) RemoveLayers(ctx context.Context, layers []ir.Layer) error {
	defer r.guard.enter()()
	return r.layers.RemoveMany(ctx, layers)
}

// SetLayerVisibility shows or hides a layer.
// Reports false when the layer does not exist.
func (r *Reconciler) SetLayerVisibility(ctx context.Context, id ir.LogicalID, visible bool) (bool, error) {
	defer r.guard.enter()()
	return r.layers.SetVisibility(ctx, id, visible)
}

// AddAnnotations adds annotations. See Annotations.AddMany.
func (r *Reconciler) AddAnnotations(ctx context.Context, as []ir.Annotation) error {
	defer r.guard.enter()()
	return r.annotations.AddMany(ctx, as)
}

// RemoveAnnotations removes registered annotations in one engine call.
func (r *Reconciler) RemoveAnnotations(ctx context.Context, as []ir.Annotation) error {
	defer r.guard.enter()()
	return r.annotations.RemoveMany(ctx, as)
}

// SetStyleURL sets the engine style. An empty url is ignored.
func (r *Reconciler) SetStyleURL(ctx context.Context, url string) error {
	defer r.guard.enter()()
	if url == "" {
		return nil
	}
	if err := r.engine.SetStyleURL(ctx, url); err != nil {
		var b batch
		b.add("", OpStyle, url, err)
		return b.err()
	}
	return nil
}

// Reset tears down every entity mapsync owns in one collection.
// Resetting sources first removes the owned layers drawn from them.
// Resetting annotations also clears the registry.
func (r *Reconciler) Reset(ctx context.Context, c Collection) error {
	defer r.guard.enter()()
	return r.reset(ctx, c)
}

func (r *Reconciler) reset(ctx context.Context, c Collection) error {
	r.logger.Info("resetting collection", "collection", c)
	switch c {
	case CollectionSources:
		var b batch
		b.merge(r.layers.RemoveOwnedOnOwnedSources(ctx))
		b.merge(r.sources.RemoveOwned(ctx))
		return b.err()
	case CollectionLayers:
		return r.layers.RemoveOwned(ctx)
	case CollectionAnnotations:
		return r.annotations.RemoveAll(ctx)
	default:
		return fmt.Errorf("unknown collection %q", c)
	}
}

// ResetAll tears down layers, then sources, then annotations.
func (r *Reconciler) ResetAll(ctx context.Context) error {
	defer r.guard.enter()()
	var b batch
	for _, c := range []Collection{CollectionLayers, CollectionSources, CollectionAnnotations} {
		b.merge(r.reset(ctx, c))
	}
	return b.err()
}

// Apply moves the engine from the committed scene prev to next.
//
// Removals run first, layers before the sources they draw from; then
// sources are upserted before the layers that need them. Changed sources
// are updated in place, changed layers and annotations are replaced.
// Faults are isolated per item and returned together as a *BatchError.
func (r *Reconciler) Apply(ctx context.Context, prev, next ir.Scene) error {
	defer r.guard.enter()()

	d, err := Diff(prev, next)
	if err != nil {
		return err
	}
	if d.Empty() {
		r.logger.Debug("scene unchanged")
		return nil
	}

	var b batch
	if d.StyleChanged {
		if err := r.engine.SetStyleURL(ctx, d.StyleURL); err != nil {
			b.add("", OpStyle, d.StyleURL, err)
		}
	}

	b.merge(r.annotations.RemoveMany(ctx, slices.Concat(d.Annotations.Removed, d.Annotations.Old)))
	b.merge(r.layers.RemoveMany(ctx, slices.Concat(d.Layers.Removed, d.Layers.Old)))
	b.merge(r.sources.RemoveMany(ctx, d.Sources.Removed))

	b.merge(r.sources.UpsertMany(ctx, d.Sources.Upserts))
	b.merge(r.layers.UpsertMany(ctx, d.Layers.Upserts))
	b.merge(r.annotations.AddMany(ctx, d.Annotations.Upserts))

	r.logger.Info("scene applied",
		"sources_added", len(d.Sources.Added), "sources_removed", len(d.Sources.Removed),
		"layers_added", len(d.Layers.Added), "layers_removed", len(d.Layers.Removed),
		"annotations_added", len(d.Annotations.Added), "annotations_removed", len(d.Annotations.Removed))
	return b.err()
}

// serialGuard panics when two goroutines are inside the Reconciler at once.
type serialGuard struct {
	mu sync.Mutex
}

func (g *serialGuard) enter() func() {
	if !g.mu.TryLock() {
		panic("reconcile: concurrent use of Reconciler; calls must be serialized")
	}
	return g.mu.Unlock
}
