package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/mapsync/internal/feed"
	"github.com/roach88/mapsync/internal/ir"
	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/namespace"
	"github.com/roach88/mapsync/internal/reconcile"
	"github.com/roach88/mapsync/internal/testutil"
)

// Harness is the test execution engine.
// It drives one scenario against an in-memory engine with deterministic
// handles and a deterministic dispatch clock.
type Harness struct {
	engine     *mapengine.Memory
	rec        *reconcile.Reconciler
	dispatcher *feed.Dispatcher
	adapter    *feed.Adapter
	items      *itemCompiler
	logger     *slog.Logger

	sources     slot[ir.Source]
	layers      slot[ir.Layer]
	annotations slot[ir.Annotation]

	// scene is the last whole scene applied by a scene step.
	scene ir.Scene

	// seen is how many engine calls have already been copied to the trace.
	seen int
}

// slot is the harness-owned collection for one adapter binding.
type slot[T any] struct {
	coll    *feed.Collection[T]
	bind    func(*feed.Collection[T]) error
	compile func(map[string]any) (T, error)
	id      func(T) ir.LogicalID
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh mapengine.Memory for isolation.
//
// Execution flow:
//  1. Inject the scenario's faults into the engine
//  2. Run each step, draining the dispatcher after it
//  3. Capture the final engine state digest
//  4. Evaluate assertions
//
// A returned error means the scenario itself could not run (bad items, a
// step against an unbound collection). Engine faults are step outcomes and
// land in Result.Errors unless the step expects them.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	for i, step := range scenario.Steps {
		stepErr, err := h.runStep(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, step.Action, err)
		}
		switch {
		case stepErr != nil && !step.ExpectError:
			result.AddError(fmt.Sprintf("steps[%d] (%s): unexpected error: %v", i, step.Action, stepErr))
		case stepErr == nil && step.ExpectError:
			result.AddError(fmt.Sprintf("steps[%d] (%s): expected an engine fault, got none", i, step.Action))
		}
	}

	snap, err := mapengine.Capture(ctx, h.engine)
	if err != nil {
		return nil, fmt.Errorf("capture final state: %w", err)
	}
	if result.StateDigest, err = snap.Digest(); err != nil {
		return nil, fmt.Errorf("digest final state: %w", err)
	}

	actx := &AssertionContext{
		Ctx:       ctx,
		Engine:    h.engine,
		Registry:  h.rec.Registry(),
		Namespace: h.rec.Namespace(),
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	ns := namespace.Default
	if scenario.Namespace != "" {
		var err error
		if ns, err = namespace.New(scenario.Namespace); err != nil {
			return nil, fmt.Errorf("scenario namespace: %w", err)
		}
	}

	// Suppress logs in tests
	logger := slog.New(slog.DiscardHandler)

	engine := mapengine.NewMemory(testutil.NewDeterministicHandles("h"))
	for _, f := range scenario.Faults {
		engine.InjectFault(mapengine.Op(f.Op), f.Target, errors.New(f.Error))
	}

	rec := reconcile.New(engine, reconcile.WithNamespace(ns), reconcile.WithLogger(logger))
	d := feed.NewDispatcher(
		feed.WithClock(testutil.NewDeterministicClock()),
		feed.WithDispatchLogger(logger),
	)
	adapter := feed.NewAdapter(rec, d, logger)
	items := newItemCompiler()

	return &Harness{
		engine:     engine,
		rec:        rec,
		dispatcher: d,
		adapter:    adapter,
		items:      items,
		logger:     logger,
		sources: slot[ir.Source]{
			bind:    adapter.BindSources,
			compile: items.source,
			id:      func(s ir.Source) ir.LogicalID { return s.ID },
		},
		layers: slot[ir.Layer]{
			bind:    adapter.BindLayers,
			compile: items.layer,
			id:      func(l ir.Layer) ir.LogicalID { return l.Base().ID },
		},
		annotations: slot[ir.Annotation]{
			bind:    adapter.BindAnnotations,
			compile: items.annotation,
			id:      func(a ir.Annotation) ir.LogicalID { return a.AnnotationID() },
		},
	}, nil
}

func (h *Harness) close() {
	h.adapter.Close()
	h.dispatcher.Stop()
}

// runStep applies one step. stepErr is the engine-side outcome; err means
// the step could not be applied at all.
func (h *Harness) runStep(ctx context.Context, step Step, result *Result) (stepErr, err error) {
	tracer := &tracingHandler{next: h.adapter, h: h, result: result}

	switch step.Action {
	case StepStyle:
		if err := h.dispatcher.Enqueue(feed.Style(step.URL)); err != nil {
			return nil, err
		}
	case StepScene:
		next, err := h.items.scene(step.Scene)
		if err != nil {
			return nil, fmt.Errorf("compile scene: %w", err)
		}
		events, err := feed.Plan(h.scene, next)
		if err != nil {
			return nil, fmt.Errorf("plan scene: %w", err)
		}
		for _, ev := range events {
			if err := h.dispatcher.Enqueue(ev); err != nil {
				return nil, err
			}
		}
		h.scene = next
	case StepShape:
		shape, err := h.items.geometry(step.Geometry)
		if err != nil {
			return nil, fmt.Errorf("compile geometry: %w", err)
		}
		_, stepErr = h.adapter.SetSourceShape(ctx, ir.LogicalID(step.ID), shape)
		h.flushCalls(result)
		return stepErr, nil
	case StepVisibility:
		_, stepErr = h.adapter.SetLayerVisibility(ctx, ir.LogicalID(step.ID), *step.Visible)
		h.flushCalls(result)
		return stepErr, nil
	default:
		var err error
		switch reconcile.Collection(step.Collection) {
		case reconcile.CollectionSources:
			err = applyCollectionStep(&h.sources, step)
		case reconcile.CollectionLayers:
			err = applyCollectionStep(&h.layers, step)
		case reconcile.CollectionAnnotations:
			err = applyCollectionStep(&h.annotations, step)
		default:
			err = fmt.Errorf("unknown collection %q", step.Collection)
		}
		if err != nil {
			return nil, err
		}
	}

	return h.dispatcher.Drain(ctx, tracer), nil
}

// applyCollectionStep mutates or (un)binds the harness collection for s.
// The resulting change notifications are queued on the dispatcher.
func applyCollectionStep[T any](s *slot[T], step Step) error {
	switch step.Action {
	case StepBind:
		items, err := compileAll(step.Items, s.compile)
		if err != nil {
			return err
		}
		c := feed.NewCollection(items...)
		if err := s.bind(c); err != nil {
			return err
		}
		s.coll = c
		return nil
	case StepUnbind:
		if err := s.bind(nil); err != nil {
			return err
		}
		s.coll = nil
		return nil
	}

	if s.coll == nil {
		return errors.New("collection is not bound")
	}

	switch step.Action {
	case StepAdd:
		items, err := compileAll(step.Items, s.compile)
		if err != nil {
			return err
		}
		s.coll.Add(items...)
	case StepRemove:
		ids := make([]ir.LogicalID, len(step.IDs))
		for i, id := range step.IDs {
			ids[i] = ir.LogicalID(id)
		}
		if s.coll.RemoveFunc(func(item T) bool { return slices.Contains(ids, s.id(item)) }) == 0 {
			return fmt.Errorf("no items match %v", step.IDs)
		}
	case StepReplace:
		item, err := s.compile(step.Item)
		if err != nil {
			return fmt.Errorf("item: %w", err)
		}
		id := ir.LogicalID(step.ID)
		if !s.coll.Replace(func(cur T) bool { return s.id(cur) == id }, item) {
			return fmt.Errorf("no item %q to replace", step.ID)
		}
	case StepClear:
		s.coll.Clear()
	default:
		return fmt.Errorf("action %q does not apply to collections", step.Action)
	}
	return nil
}

// flushCalls copies engine calls made since the last flush into the trace.
func (h *Harness) flushCalls(result *Result) {
	calls := h.engine.Calls()
	for _, c := range calls[h.seen:] {
		result.AddCallTrace(c)
	}
	h.seen = len(calls)
}

// tracingHandler records each delivered event followed by the engine calls
// it caused.
type tracingHandler struct {
	next   feed.Handler
	h      *Harness
	result *Result
}

func (t *tracingHandler) OnCollectionChanged(ctx context.Context, ev feed.Event) error {
	// Calls made outside delivery (shape, visibility) were flushed already.
	t.h.flushCalls(t.result)
	t.result.AddEventTrace(ev.Seq, string(ev.Collection), string(ev.Action))
	err := t.next.OnCollectionChanged(ctx, ev)
	t.h.flushCalls(t.result)
	return err
}
