package reconcile

import (
	"fmt"

	"github.com/roach88/mapsync/internal/ir"
)

// Changes is the per-collection difference between two scenes.
// Changed entries are pairs at the same index: Old[i] becomes New[i].
// Upserts lists added and changed entries together in desired order.
type Changes[T any] struct {
	Added   []T
	Removed []T
	Old     []T
	New     []T
	Upserts []T
}

// Empty reports whether nothing changed.
func (c Changes[T]) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.New) == 0
}

// SceneDiff is the difference between a committed scene and a desired one.
type SceneDiff struct {
	StyleChanged bool
	StyleURL     string
	Sources      Changes[ir.Source]
	Layers       Changes[ir.Layer]
	Annotations  Changes[ir.Annotation]
}

// Empty reports whether applying the diff would issue no engine call.
func (d SceneDiff) Empty() bool {
	return !d.StyleChanged && d.Sources.Empty() && d.Layers.Empty() && d.Annotations.Empty()
}

// Diff compares prev and next by logical id. Entries with equal document
// digests are unchanged. Entries with empty ids are unmanaged and ignored;
// for duplicate ids the first occurrence wins.
//
// Added and changed entries keep next's order, removed entries keep prev's.
func Diff(prev, next ir.Scene) (SceneDiff, error) {
	d := SceneDiff{
		StyleChanged: prev.StyleURL != next.StyleURL && next.StyleURL != "",
		StyleURL:     next.StyleURL,
	}
	var err error
	d.Sources, err = diffItems(prev.Sources, next.Sources,
		func(s ir.Source) ir.LogicalID { return s.ID }, ir.SourceDocument)
	if err != nil {
		return SceneDiff{}, fmt.Errorf("diff sources: %w", err)
	}
	d.Layers, err = diffItems(prev.Layers, next.Layers,
		func(l ir.Layer) ir.LogicalID { return l.Base().ID }, ir.LayerDocument)
	if err != nil {
		return SceneDiff{}, fmt.Errorf("diff layers: %w", err)
	}
	d.Annotations, err = diffItems(prev.Annotations, next.Annotations,
		ir.Annotation.AnnotationID, ir.AnnotationDocument)
	if err != nil {
		return SceneDiff{}, fmt.Errorf("diff annotations: %w", err)
	}
	return d, nil
}

type digested[T any] struct {
	item   T
	digest string
}

func index[T any](items []T, id func(T) ir.LogicalID, doc func(T) map[string]any) ([]ir.LogicalID, map[ir.LogicalID]digested[T], error) {
	order := make([]ir.LogicalID, 0, len(items))
	byID := make(map[ir.LogicalID]digested[T], len(items))
	for _, item := range items {
		key := id(item)
		if key.Empty() {
			continue
		}
		if _, dup := byID[key]; dup {
			continue
		}
		digest, err := ir.DocumentDigest(doc(item))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", key, err)
		}
		order = append(order, key)
		byID[key] = digested[T]{item: item, digest: digest}
	}
	return order, byID, nil
}

func diffItems[T any](prev, next []T, id func(T) ir.LogicalID, doc func(T) map[string]any) (Changes[T], error) {
	prevOrder, prevByID, err := index(prev, id, doc)
	if err != nil {
		return Changes[T]{}, err
	}
	nextOrder, nextByID, err := index(next, id, doc)
	if err != nil {
		return Changes[T]{}, err
	}

	var c Changes[T]
	for _, key := range prevOrder {
		if _, ok := nextByID[key]; !ok {
			c.Removed = append(c.Removed, prevByID[key].item)
		}
	}
	for _, key := range nextOrder {
		n := nextByID[key]
		p, ok := prevByID[key]
		switch {
		case !ok:
			c.Added = append(c.Added, n.item)
			c.Upserts = append(c.Upserts, n.item)
		case p.digest != n.digest:
			c.Old = append(c.Old, p.item)
			c.New = append(c.New, n.item)
			c.Upserts = append(c.Upserts, n.item)
		}
	}
	return c, nil
}
