// Package store is the SQLite-backed headless map engine for mapsync.
//
// One database file holds:
//   - Engine state: style URL, sources, layers and annotations
//     (Store implements mapengine.Engine)
//   - Feed journal: every dispatched change-feed event with its sequence
//     number (Store implements feed.Journal)
//   - Annotation registry: logical id to engine handles, reloaded by the CLI
//   - Committed scene: the last scene applied, the baseline for the next diff
//
// # Critical Patterns
//
// Logical ordering
//   - Sources, layers and annotations carry integer order columns assigned
//     at insert time, NEVER timestamps
//   - Layers are read ORDER BY z, so removing and re-adding a layer moves
//     it to the top exactly as a live engine would
//
// Journal idempotency
//   - feed_events.seq is the primary key; re-appending an identical event
//     is a no-op, a different event under the same seq is ErrSeqConflict
//
// Engine semantics
//   - Adding an existing source or layer fails with the mapengine sentinels
//   - Mutations on absent targets are no-ops, matching mapengine.Memory
//   - Shapes are stored as GeoJSON through internal/geo
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
