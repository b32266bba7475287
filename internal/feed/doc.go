// Package feed implements the change-feed adapter: it turns changes to
// observable scene collections into serialized reconciler calls.
//
// ARCHITECTURE:
//
// Dedicated Executor:
// The engine forbids concurrent mutation, so every reconciler call runs on
// one goroutine. Collections may be changed from anywhere; their handlers
// only enqueue an Event.
//
// Event Flow:
// 1. A bound Collection changes and notifies the Adapter's handler
// 2. The handler enqueues an Event on the Dispatcher (FIFO)
// 3. Dispatcher.Run (or Drain) dequeues one event at a time
// 4. The event is stamped with Clock.Next() and journaled, if configured
// 5. Adapter.OnCollectionChanged routes it to the reconcile.Reconciler
//
// Scene Apply:
// Plan(prev, next) produces the same events from a whole-scene diff, so a
// full apply is journaled and replayable like any incremental change.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Events are stamped with a monotonic seq at delivery.
// NEVER use wall-clock timestamps for ordering.
//
// Replace Ordering:
// Replace removes old items before adding new ones, so an engine never
// holds two entities with the same id.
package feed
