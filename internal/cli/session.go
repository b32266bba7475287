package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/mapsync/internal/feed"
	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/reconcile"
	"github.com/roach88/mapsync/internal/registry"
	"github.com/roach88/mapsync/internal/store"
)

// session wires the adapter to the SQLite engine for one command.
//
// The registry is restored from the store on open and saved on close, and
// the dispatcher journals into the store with its clock resumed after the
// last journaled event, so consecutive commands extend one history.
type session struct {
	store      *store.Store
	rec        *reconcile.Reconciler
	dispatcher *feed.Dispatcher
	adapter    *feed.Adapter
	logger     *slog.Logger

	committed       ir.Scene
	committedDigest string
	hasScene        bool
}

func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	cfg := opts.Config()
	logger := opts.Logger()

	ns, err := cfg.NamespaceValue()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	snap, err := st.LoadRegistry(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}
	reg := registry.New()
	reg.Restore(snap)

	last, err := st.LastSeq(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}

	committed, ok, err := st.LoadScene(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}

	rec := reconcile.New(st,
		reconcile.WithNamespace(ns),
		reconcile.WithLogger(logger),
		reconcile.WithRegistry(reg),
	)
	d := feed.NewDispatcher(
		feed.WithJournal(st),
		feed.WithClock(feed.NewClockAt(last)),
		feed.WithDispatchLogger(logger),
	)

	logger.Debug("session opened", "database", cfg.Database, "last_seq", last, "registry", reg.Len())
	return &session{
		store:           st,
		rec:             rec,
		dispatcher:      d,
		adapter:         feed.NewAdapter(rec, d, logger),
		logger:          logger,
		committed:       committed.Scene,
		committedDigest: committed.Digest,
		hasScene:        ok,
	}, nil
}

// deliver queues events and drains them through the adapter.
func (s *session) deliver(ctx context.Context, events ...feed.Event) error {
	for _, ev := range events {
		if err := s.dispatcher.Enqueue(ev); err != nil {
			return err
		}
	}
	return s.dispatcher.Drain(ctx, s.adapter)
}

// commit records scene as the committed scene.
func (s *session) commit(ctx context.Context, scene ir.Scene) error {
	if err := s.store.SaveScene(ctx, scene); err != nil {
		return err
	}
	digest, err := ir.DocumentDigest(ir.SceneDocument(scene))
	if err != nil {
		return err
	}
	s.committed = scene
	s.committedDigest = digest
	s.hasScene = true
	return nil
}

// close persists the registry and closes the store.
func (s *session) close(ctx context.Context) error {
	s.adapter.Close()
	s.dispatcher.Stop()
	err := s.store.SaveRegistry(ctx, s.rec.Registry().Snapshot())
	if cerr := s.store.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// lastSeq is the sequence number of the last delivered event.
func (s *session) lastSeq() int64 {
	return s.dispatcher.Clock().Current()
}

// faultMessages flattens a delivery error into one line per failed item.
// Drain joins the errors of several events, so each branch is unpacked.
func faultMessages(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, faultMessages(e)...)
		}
		return msgs
	}
	items := reconcile.Items(err)
	if len(items) == 0 {
		return []string{err.Error()}
	}
	msgs := make([]string, len(items))
	for i, item := range items {
		msgs[i] = item.Error()
	}
	return msgs
}

// isEngineFault reports whether every branch of a delivery error is an
// engine fault, as opposed to a journal or context failure.
func isEngineFault(err error) bool {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !isEngineFault(e) {
				return false
			}
		}
		return true
	}
	return reconcile.IsEngineFault(err)
}

// batchIDs returns the logical ids carried by a batch.
func batchIDs(b feed.Batch) []string {
	var ids []string
	switch items := b.(type) {
	case feed.Sources:
		for _, s := range items {
			ids = append(ids, string(s.ID))
		}
	case feed.Layers:
		for _, l := range items {
			ids = append(ids, string(l.Base().ID))
		}
	case feed.Annotations:
		for _, a := range items {
			ids = append(ids, string(a.AnnotationID()))
		}
	}
	return ids
}
