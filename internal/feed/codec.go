package feed

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/reconcile"
)

// EncodePayload returns the canonical JSON journal payload of ev: its item
// documents and, for style events, the style URL. Seq, collection and
// action are journaled as separate columns.
func EncodePayload(ev Event) ([]byte, error) {
	doc := map[string]any{}
	if ev.Old != nil && ev.Old.Len() > 0 {
		doc["old"] = batchDocuments(ev.Old)
	}
	if ev.New != nil && ev.New.Len() > 0 {
		doc["new"] = batchDocuments(ev.New)
	}
	if ev.StyleURL != "" {
		doc["style_url"] = ev.StyleURL
	}
	data, err := ir.MarshalCanonical(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s event: %w", ev.Collection, ev.Action, err)
	}
	return data, nil
}

// DecodeEvent rebuilds an event from its journaled columns.
func DecodeEvent(seq int64, collection, action string, payload []byte) (Event, error) {
	ev := Event{
		Seq:        seq,
		Collection: reconcile.Collection(collection),
		Action:     Action(action),
	}
	switch ev.Action {
	case ActionAdd, ActionRemove, ActionReplace, ActionReset, ActionStyle, ActionShape, ActionVisibility:
	default:
		return Event{}, fmt.Errorf("event %d: unknown action %q", seq, action)
	}

	var raw struct {
		Old      []json.RawMessage `json:"old"`
		New      []json.RawMessage `json:"new"`
		StyleURL string            `json:"style_url"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Event{}, fmt.Errorf("event %d: %w", seq, err)
	}
	ev.StyleURL = raw.StyleURL

	var err error
	if ev.Old, err = decodeBatch(ev.Collection, raw.Old); err != nil {
		return Event{}, fmt.Errorf("event %d old: %w", seq, err)
	}
	if ev.New, err = decodeBatch(ev.Collection, raw.New); err != nil {
		return Event{}, fmt.Errorf("event %d new: %w", seq, err)
	}
	return ev, nil
}

func batchDocuments(b Batch) []any {
	docs := make([]any, 0, b.Len())
	switch items := b.(type) {
	case Sources:
		for _, s := range items {
			docs = append(docs, ir.SourceDocument(s))
		}
	case Layers:
		for _, l := range items {
			docs = append(docs, ir.LayerDocument(l))
		}
	case Annotations:
		for _, a := range items {
			docs = append(docs, ir.AnnotationDocument(a))
		}
	default:
		panic(fmt.Sprintf("feed: unknown batch %T", b))
	}
	return docs
}

func decodeBatch(c reconcile.Collection, raw []json.RawMessage) (Batch, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch c {
	case reconcile.CollectionSources:
		out := make(Sources, len(raw))
		for i, r := range raw {
			s, err := ir.UnmarshalSource(r)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = s
		}
		return out, nil
	case reconcile.CollectionLayers:
		out := make(Layers, len(raw))
		for i, r := range raw {
			l, err := ir.UnmarshalLayer(r)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = l
		}
		return out, nil
	case reconcile.CollectionAnnotations:
		out := make(Annotations, len(raw))
		for i, r := range raw {
			a, err := ir.UnmarshalAnnotation(r)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = a
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown collection %q", c)
	}
}
