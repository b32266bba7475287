package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mapsync/internal/feed"
	"github.com/roach88/mapsync/internal/ir"
)

func TestJournal_AppendAndRead(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	require.NoError(t, s.AppendEvent(ctx, 2, "layers", "remove", []byte(`{"old":[]}`)))
	require.NoError(t, s.AppendEvent(ctx, 1, "sources", "add", []byte(`{"new":[]}`)))

	events, err := s.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, "sources", events[0].Collection)
	assert.Equal(t, int64(2), events[1].Seq)

	later, err := s.EventsAfter(ctx, 1)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, "remove", later[0].Action)

	seq, err = s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
}

func TestJournal_AppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	payload := []byte(`{"new":[]}`)

	require.NoError(t, s.AppendEvent(ctx, 1, "sources", "add", payload))
	require.NoError(t, s.AppendEvent(ctx, 1, "sources", "add", payload))

	err := s.AppendEvent(ctx, 1, "sources", "remove", payload)
	assert.ErrorIs(t, err, ErrSeqConflict)

	events, err := s.Events(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestJournal_AsDispatcherJournal(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	var handled []int64
	h := handlerFunc(func(_ context.Context, ev feed.Event) error {
		handled = append(handled, ev.Seq)
		return nil
	})

	d := feed.NewDispatcher(feed.WithJournal(s))
	require.NoError(t, d.Enqueue(feed.Style("mapbox://styles/a")))
	require.NoError(t, d.Enqueue(feed.Added(feed.Sources{{ID: "roads", Shape: ir.Point{Lat: 1, Long: 2}}})))
	require.NoError(t, d.Drain(ctx, h))
	assert.Equal(t, []int64{1, 2}, handled)

	events, err := s.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	ev, err := feed.DecodeEvent(events[1].Seq, events[1].Collection, events[1].Action, events[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, feed.ActionAdd, ev.Action)
	assert.Equal(t, feed.Sources{{ID: "roads", Shape: ir.Point{Lat: 1, Long: 2}}}, ev.New)

	// A resumed dispatcher continues the sequence.
	last, err := s.LastSeq(ctx)
	require.NoError(t, err)
	d2 := feed.NewDispatcher(feed.WithJournal(s), feed.WithClock(feed.NewClockAt(last)))
	require.NoError(t, d2.Enqueue(feed.Reset("annotations")))
	require.NoError(t, d2.Drain(ctx, h))
	assert.Equal(t, []int64{1, 2, 3}, handled)
}

type handlerFunc func(context.Context, feed.Event) error

func (f handlerFunc) OnCollectionChanged(ctx context.Context, ev feed.Event) error {
	return f(ctx, ev)
}
