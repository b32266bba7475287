package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

// Collection names one of the three reconciled collections.
type Collection string

const (
	CollectionSources     Collection = "sources"
	CollectionLayers      Collection = "layers"
	CollectionAnnotations Collection = "annotations"
)

// Op names the reconciler operation an item failed in.
type Op string

const (
	OpUpsert        Op = "upsert"
	OpRemove        Op = "remove"
	OpAdd           Op = "add"
	OpSetShape      Op = "set_shape"
	OpSetVisibility Op = "set_visibility"
	OpReset         Op = "reset"
	OpStyle         Op = "style"
)

// ItemError is an engine fault isolated to one scene entry.
//
// Skippable inputs (empty ids, empty geometry, layers whose source is
// missing) never produce an ItemError; only faults reported by the engine do.
type ItemError struct {
	// Collection is the collection the entry belongs to.
	Collection Collection

	// Op is the reconciler operation that failed.
	Op Op

	// ID is the logical id of the entry, or the engine id for reset sweeps.
	ID string

	// Err is the engine fault.
	Err error
}

// Error implements the error interface.
func (e *ItemError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Collection, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %q: %v", e.Collection, e.Op, e.ID, e.Err)
}

// Unwrap returns the engine fault.
func (e *ItemError) Unwrap() error {
	return e.Err
}

// BatchError collects the item faults of one batch operation.
// The rest of the batch was still applied.
type BatchError struct {
	Items []*ItemError
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if len(e.Items) == 1 {
		return e.Items[0].Error()
	}
	msgs := make([]string, len(e.Items))
	for i, item := range e.Items {
		msgs[i] = item.Error()
	}
	return fmt.Sprintf("%d items failed: %s", len(e.Items), strings.Join(msgs, "; "))
}

// Unwrap returns the item errors so errors.Is and errors.As see every fault.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Items))
	for i, item := range e.Items {
		errs[i] = item
	}
	return errs
}

// batch accumulates item faults. The zero value is ready to use.
type batch struct {
	items []*ItemError
}

// add records err unless it is nil. Nested batch errors are flattened.
func (b *batch) add(collection Collection, op Op, id string, err error) {
	if err == nil {
		return
	}
	var be *BatchError
	if errors.As(err, &be) {
		b.items = append(b.items, be.Items...)
		return
	}
	var ie *ItemError
	if errors.As(err, &ie) {
		b.items = append(b.items, ie)
		return
	}
	b.items = append(b.items, &ItemError{Collection: collection, Op: op, ID: id, Err: err})
}

// merge records every fault carried by err.
func (b *batch) merge(err error) {
	b.add("", "", "", err)
}

// err returns nil when nothing failed.
func (b *batch) err() error {
	if len(b.items) == 0 {
		return nil
	}
	return &BatchError{Items: b.items}
}

// Items returns the item faults carried by err, or nil.
// Uses errors.As to handle wrapped errors.
func Items(err error) []*ItemError {
	var be *BatchError
	if errors.As(err, &be) {
		return be.Items
	}
	var ie *ItemError
	if errors.As(err, &ie) {
		return []*ItemError{ie}
	}
	return nil
}

// IsEngineFault reports whether err carries at least one item fault.
func IsEngineFault(err error) bool {
	return len(Items(err)) > 0
}
