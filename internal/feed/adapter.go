package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/reconcile"
)

// BindState is the subscription state of one watched collection.
type BindState int

const (
	// Unbound: no live subscription.
	Unbound BindState = iota
	// Bound: subscribed and forwarding changes.
	Bound
)

func (s BindState) String() string {
	if s == Bound {
		return "bound"
	}
	return "unbound"
}

// binding tracks the collection currently bound for one slot.
type binding[T any] struct {
	coll        *Collection[T]
	unsubscribe func()
}

func (b *binding[T]) state() BindState {
	if b.coll == nil {
		return Unbound
	}
	return Bound
}

// Adapter turns collection changes into reconciler calls.
//
// Bound collections forward each change to the dispatcher as an Event;
// the dispatcher delivers events back to OnCollectionChanged on its single
// goroutine, which routes them to the reconciler.
//
// Thread-safety: Bind* and Close are safe for concurrent use.
// OnCollectionChanged, SetSourceShape and SetLayerVisibility reconcile and
// must run on the dispatch goroutine.
type Adapter struct {
	rec        *reconcile.Reconciler
	dispatcher *Dispatcher
	logger     *slog.Logger

	mu          sync.Mutex
	sources     binding[ir.Source]
	layers      binding[ir.Layer]
	annotations binding[ir.Annotation]
}

// NewAdapter creates an adapter that reconciles through rec and queues on
// d. A nil logger uses slog.Default().
func NewAdapter(rec *reconcile.Reconciler, d *Dispatcher, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{rec: rec, dispatcher: d, logger: logger}
}

// BindSources binds the scene's source collection. See bind.
func (a *Adapter) BindSources(c *Collection[ir.Source]) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return bind(a, &a.sources, c, func(items []ir.Source) Batch { return Sources(items) })
}

// BindLayers binds the scene's layer collection. See bind.
func (a *Adapter) BindLayers(c *Collection[ir.Layer]) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return bind(a, &a.layers, c, func(items []ir.Layer) Batch { return Layers(items) })
}

// BindAnnotations binds the scene's annotation collection. See bind.
func (a *Adapter) BindAnnotations(c *Collection[ir.Annotation]) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return bind(a, &a.annotations, c, func(items []ir.Annotation) Batch { return Annotations(items) })
}

// bind moves one slot to collection c.
//
// Binding the instance already bound does nothing. Otherwise the old
// instance is unsubscribed first, so its handler can never fire on a stale
// target, and its items are torn down. A non-nil c is then subscribed and
// its current items are added. Binding nil leaves the slot Unbound.
// Caller must hold a.mu.
func bind[T any](a *Adapter, slot *binding[T], c *Collection[T], wrap func([]T) Batch) error {
	if slot.coll == c {
		return nil
	}
	if slot.coll != nil {
		slot.unsubscribe()
		old := slot.coll.Items()
		*slot = binding[T]{}
		if len(old) > 0 {
			if err := a.dispatcher.Enqueue(Removed(wrap(old))); err != nil {
				return err
			}
		}
	}
	if c == nil {
		return nil
	}

	if a.dispatcher.queue.Closed() {
		return ErrStopped
	}
	slot.unsubscribe = c.Watch(func(ch Change[T]) {
		if err := a.dispatcher.Enqueue(changeEvent(ch, wrap)); err != nil {
			a.logger.Warn("dropping change", "collection", wrap(nil).Collection(), "action", ch.Action, "error", err)
		}
	})
	slot.coll = c
	return nil
}

func changeEvent[T any](ch Change[T], wrap func([]T) Batch) Event {
	collection := wrap(nil).Collection()
	ev := Event{Collection: collection, Action: ch.Action}
	if len(ch.Old) > 0 {
		ev.Old = wrap(ch.Old)
	}
	if len(ch.New) > 0 {
		ev.New = wrap(ch.New)
	}
	return ev
}

// State returns the binding state of collection c.
func (a *Adapter) State(c reconcile.Collection) BindState {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch c {
	case reconcile.CollectionSources:
		return a.sources.state()
	case reconcile.CollectionLayers:
		return a.layers.state()
	case reconcile.CollectionAnnotations:
		return a.annotations.state()
	default:
		return Unbound
	}
}

// Close unsubscribes every bound collection. Engine state is left as is.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	closeBinding(&a.sources)
	closeBinding(&a.layers)
	closeBinding(&a.annotations)
}

func closeBinding[T any](b *binding[T]) {
	if b.coll != nil {
		b.unsubscribe()
	}
	*b = binding[T]{}
}

// OnCollectionChanged reconciles one event. It implements Handler.
//
// Add reconciles the new items, Remove the old ones. Replace removes the
// old items before adding the new ones, so two engine entities with the
// same id never coexist. Reset tears down every owned entity of the
// collection. Shape and Visibility update existing entities in place.
func (a *Adapter) OnCollectionChanged(ctx context.Context, ev Event) error {
	a.logger.Debug("collection changed", "seq", ev.Seq, "collection", ev.Collection, "action", ev.Action)

	switch ev.Action {
	case ActionAdd:
		return a.add(ctx, ev.New)
	case ActionRemove:
		return a.remove(ctx, ev.Old)
	case ActionReplace:
		if err := a.remove(ctx, ev.Old); err != nil {
			// The removal faults are reported; the additions still run so
			// the rest of the batch reaches the engine.
			return joinFaults(err, a.add(ctx, ev.New))
		}
		return a.add(ctx, ev.New)
	case ActionReset:
		return a.rec.Reset(ctx, ev.Collection)
	case ActionStyle:
		return a.rec.SetStyleURL(ctx, ev.StyleURL)
	case ActionShape:
		return a.applyShapes(ctx, ev.New)
	case ActionVisibility:
		return a.applyVisibility(ctx, ev.New)
	default:
		return fmt.Errorf("unknown action %q", ev.Action)
	}
}

func (a *Adapter) add(ctx context.Context, b Batch) error {
	switch items := b.(type) {
	case nil:
		return nil
	case Sources:
		return a.rec.UpsertSources(ctx, items)
	case Layers:
		return a.rec.UpsertLayers(ctx, items)
	case Annotations:
		return a.rec.AddAnnotations(ctx, items)
	default:
		return fmt.Errorf("unknown batch %T", b)
	}
}

func (a *Adapter) remove(ctx context.Context, b Batch) error {
	switch items := b.(type) {
	case nil:
		return nil
	case Sources:
		return a.rec.RemoveSources(ctx, items)
	case Layers:
		return a.rec.RemoveLayers(ctx, items)
	case Annotations:
		return a.rec.RemoveAnnotations(ctx, items)
	default:
		return fmt.Errorf("unknown batch %T", b)
	}
}

// applyShapes handles ActionShape through SetSourceShape, so the bound
// collection is patched exactly as for a direct call.
func (a *Adapter) applyShapes(ctx context.Context, b Batch) error {
	srcs, ok := b.(Sources)
	if !ok && b != nil {
		return fmt.Errorf("shape event carries %T", b)
	}
	var errs []error
	for _, s := range srcs {
		found, err := a.SetSourceShape(ctx, s.ID, s.Shape)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !found {
			a.logger.Debug("skipping shape", "id", s.ID, "reason", "source not found")
		}
	}
	return errors.Join(errs...)
}

// applyVisibility handles ActionVisibility through SetLayerVisibility.
func (a *Adapter) applyVisibility(ctx context.Context, b Batch) error {
	layers, ok := b.(Layers)
	if !ok && b != nil {
		return fmt.Errorf("visibility event carries %T", b)
	}
	var errs []error
	for _, l := range layers {
		base := l.Base()
		found, err := a.SetLayerVisibility(ctx, base.ID, base.Visible)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !found {
			a.logger.Debug("skipping visibility", "id", base.ID, "reason", "layer not found")
		}
	}
	return errors.Join(errs...)
}

// joinFaults merges the item faults of both errors into one *BatchError.
// When either side carries something other than item faults both are
// kept whole with errors.Join.
func joinFaults(first, second error) error {
	if second == nil {
		return first
	}
	a, b := reconcile.Items(first), reconcile.Items(second)
	if a == nil || b == nil {
		return errors.Join(first, second)
	}
	return &reconcile.BatchError{Items: append(slices.Clone(a), b...)}
}

// SetSourceShape updates an engine source's shape and mirrors the new
// shape into the bound source collection without raising a change event.
// Reports false when the engine has no such source.
func (a *Adapter) SetSourceShape(ctx context.Context, id ir.LogicalID, shape ir.Geometry) (bool, error) {
	ok, err := a.rec.SetSourceShape(ctx, id, shape)
	if err != nil || !ok {
		return ok, err
	}
	a.mu.Lock()
	coll := a.sources.coll
	a.mu.Unlock()
	if coll != nil {
		coll.Patch(
			func(s ir.Source) bool { return s.ID == id },
			func(s ir.Source) ir.Source { s.Shape = shape; return s },
		)
	}
	return true, nil
}

// SetLayerVisibility shows or hides an engine layer and mirrors the flag
// into the bound layer collection without raising a change event.
// Reports false when the engine has no such layer.
func (a *Adapter) SetLayerVisibility(ctx context.Context, id ir.LogicalID, visible bool) (bool, error) {
	ok, err := a.rec.SetLayerVisibility(ctx, id, visible)
	if err != nil || !ok {
		return ok, err
	}
	a.mu.Lock()
	coll := a.layers.coll
	a.mu.Unlock()
	if coll != nil {
		coll.Patch(
			func(l ir.Layer) bool { return l.Base().ID == id },
			func(l ir.Layer) ir.Layer { return WithVisibility(l, visible) },
		)
	}
	return true, nil
}

// WithVisibility returns a copy of l with its visible flag set.
func WithVisibility(l ir.Layer, visible bool) ir.Layer {
	switch layer := l.(type) {
	case ir.CircleLayer:
		layer.Visible = visible
		return layer
	case ir.LineLayer:
		layer.Visible = visible
		return layer
	default:
		panic(fmt.Sprintf("feed: unknown layer %T", l))
	}
}
