package feed

import (
	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/reconcile"
)

// Action is the kind of change a collection reports.
type Action string

const (
	// ActionAdd reconciles the new items.
	ActionAdd Action = "add"
	// ActionRemove reconciles the old items.
	ActionRemove Action = "remove"
	// ActionReplace removes the old items, then adds the new ones.
	ActionReplace Action = "replace"
	// ActionReset tears down every owned entity of the collection.
	ActionReset Action = "reset"
	// ActionStyle sets the engine style URL. It belongs to no collection.
	ActionStyle Action = "style"
	// ActionShape pushes the shapes of the new sources to existing engine
	// sources. Absent sources are skipped.
	ActionShape Action = "shape"
	// ActionVisibility applies the visible flag of the new layers to
	// existing engine layers. Absent layers are skipped.
	ActionVisibility Action = "visibility"
)

// Batch is a sealed interface over the item lists an event carries.
// Only Sources, Layers and Annotations implement it.
type Batch interface {
	Collection() reconcile.Collection
	Len() int
	batch()
}

// Sources is a batch of scene sources.
type Sources []ir.Source

func (Sources) batch() {}

// Collection implements Batch.
func (Sources) Collection() reconcile.Collection { return reconcile.CollectionSources }

// Len implements Batch.
func (b Sources) Len() int { return len(b) }

// Layers is a batch of scene layers.
type Layers []ir.Layer

func (Layers) batch() {}

// Collection implements Batch.
func (Layers) Collection() reconcile.Collection { return reconcile.CollectionLayers }

// Len implements Batch.
func (b Layers) Len() int { return len(b) }

// Annotations is a batch of scene annotations.
type Annotations []ir.Annotation

func (Annotations) batch() {}

// Collection implements Batch.
func (Annotations) Collection() reconcile.Collection { return reconcile.CollectionAnnotations }

// Len implements Batch.
func (b Annotations) Len() int { return len(b) }

// Event is one collection change notification.
//
// Seq is stamped by the dispatcher's logical clock at delivery; producers
// leave it zero. Old and New are nil when the action carries no items of
// that side. StyleURL is set only for ActionStyle.
type Event struct {
	Seq        int64
	Collection reconcile.Collection
	Action     Action
	Old        Batch
	New        Batch
	StyleURL   string
}

// Added builds an Add event.
func Added(items Batch) Event {
	return Event{Collection: items.Collection(), Action: ActionAdd, New: items}
}

// Removed builds a Remove event.
func Removed(items Batch) Event {
	return Event{Collection: items.Collection(), Action: ActionRemove, Old: items}
}

// Replaced builds a Replace event. prev and next must belong to the same
// collection.
func Replaced(prev, next Batch) Event {
	return Event{Collection: next.Collection(), Action: ActionReplace, Old: prev, New: next}
}

// Reset builds a Reset event for collection c.
func Reset(c reconcile.Collection) Event {
	return Event{Collection: c, Action: ActionReset}
}

// Style builds a style event.
func Style(url string) Event {
	return Event{Action: ActionStyle, StyleURL: url}
}

// ShapeUpdated builds a shape event for one source.
func ShapeUpdated(src ir.Source) Event {
	return Event{Collection: reconcile.CollectionSources, Action: ActionShape, New: Sources{src}}
}

// VisibilityChanged builds a visibility event for one layer.
func VisibilityChanged(l ir.Layer) Event {
	return Event{Collection: reconcile.CollectionLayers, Action: ActionVisibility, New: Layers{l}}
}
