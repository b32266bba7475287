package store

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/mapsync/internal/mapengine"
)

// createTestStore opens a fresh store in a temp directory with
// deterministic annotation handles.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, withHandleGenerator(mapengine.NewSequentialGenerator("h")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
