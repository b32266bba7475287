package reconcile

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/namespace"
)

var quiet = slog.New(slog.DiscardHandler)

func newEngine() *mapengine.Memory {
	return mapengine.NewMemory(mapengine.NewSequentialGenerator("h"))
}

func engineSourceIDs(t *testing.T, e mapengine.Engine) []namespace.EngineID {
	t.Helper()
	srcs, err := e.Sources(context.Background())
	require.NoError(t, err)
	ids := make([]namespace.EngineID, len(srcs))
	for i, s := range srcs {
		ids[i] = s.ID
	}
	return ids
}

func engineLayerIDs(t *testing.T, e mapengine.Engine) []namespace.EngineID {
	t.Helper()
	layers, err := e.Layers(context.Background())
	require.NoError(t, err)
	ids := make([]namespace.EngineID, len(layers))
	for i, l := range layers {
		ids[i] = l.ID
	}
	return ids
}
