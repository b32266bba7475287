// Package ir provides the declarative scene types for mapsync.
//
// A scene is three flat collections (sources, layers, annotations) keyed by
// caller-assigned logical identifiers. Layers, annotations and geometries are
// closed families: each is a sealed interface whose implementations live in
// this package, and consumers select behavior with a type switch.
//
// This package contains data types and their canonical encoding only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Coordinates are written [lat, long] in scene documents; GeoJSON output
//     (see internal/geo) swaps them to [long, lat]
//   - An empty LogicalID marks an unmanaged entry that reconcilers skip
//   - Canonical JSON (RFC 8785 ordering, NFC strings) is the only encoding
//     used for digests and persisted scenes
package ir
