package feed

import (
	"slices"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/reconcile"
)

// Plan returns the events that move an engine from the committed scene
// prev to next, in delivery order:
//
//  1. style, when it changed
//  2. removals: annotations, then layers, then sources
//  3. sources, upserted in place
//  4. layers, added in desired render order
//  5. annotations, replaced when changed
//
// Changed layers are removed in step 2 and re-added in step 4, so a layer
// never exists twice. Unchanged entries produce no event.
func Plan(prev, next ir.Scene) ([]Event, error) {
	d, err := reconcile.Diff(prev, next)
	if err != nil {
		return nil, err
	}

	var events []Event
	if d.StyleChanged {
		events = append(events, Style(d.StyleURL))
	}

	if len(d.Annotations.Removed) > 0 {
		events = append(events, Removed(Annotations(d.Annotations.Removed)))
	}
	if gone := slices.Concat(d.Layers.Removed, d.Layers.Old); len(gone) > 0 {
		events = append(events, Removed(Layers(gone)))
	}
	if len(d.Sources.Removed) > 0 {
		events = append(events, Removed(Sources(d.Sources.Removed)))
	}

	if len(d.Sources.Upserts) > 0 {
		events = append(events, Added(Sources(d.Sources.Upserts)))
	}
	if len(d.Layers.Upserts) > 0 {
		events = append(events, Added(Layers(d.Layers.Upserts)))
	}

	switch {
	case len(d.Annotations.Old) > 0:
		events = append(events, Replaced(Annotations(d.Annotations.Old), Annotations(d.Annotations.Upserts)))
	case len(d.Annotations.Upserts) > 0:
		events = append(events, Added(Annotations(d.Annotations.Upserts)))
	}
	return events, nil
}
