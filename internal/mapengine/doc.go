// Package mapengine defines the imperative map-engine contract that mapsync
// reconciles against, plus an in-memory implementation.
//
// The engine owns live sources, layers and annotations and mutates them in
// place. mapsync never caches engine state beyond annotation handles: every
// reconciliation step reads what it needs through this interface.
//
// Engine contract:
//   - SetSourceShape, RemoveSource, RemoveLayer, SetLayerVisibility and
//     RemoveAnnotations are no-ops on absent targets
//   - AddSource and AddLayer fail with ErrSourceExists / ErrLayerExists when
//     the identifier is already live; the engine never holds two entities
//     with the same identifier
//   - AddLayer appends to the top of the render stack
//   - Calls are synchronous and must be serialized by the caller
//
// Two implementations ship with mapsync: Memory (tests, harness, replay)
// and store.Store (SQLite-backed headless engine).
package mapengine
