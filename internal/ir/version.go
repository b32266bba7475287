package ir

// Version constants for persisted scene documents.
const (
	// DocumentVersion is the scene document schema version.
	DocumentVersion = "1"

	// Version is the mapsync release version.
	Version = "0.1.0"
)
