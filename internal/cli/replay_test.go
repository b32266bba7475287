package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mapsync/internal/store"
)

func TestReplay_EmptyDatabase(t *testing.T) {
	env := newCLIEnv(t)
	var result ReplayResult
	resp, err := env.runJSON(&result, "replay")
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Status)
	assert.Zero(t, result.Events)
	assert.True(t, result.Deterministic)
	assert.True(t, result.Matches)
	assert.Equal(t, result.StoreDigest, result.ReplayDigest)
}

func TestReplay_MatchesStoreAfterCommands(t *testing.T) {
	env := appliedEnv(t)
	_, err := env.run("visibility", "hut-dots", "off")
	require.NoError(t, err)
	_, err = env.run("apply", writeScene(t, trimmedScene))
	require.NoError(t, err)
	_, err = env.run("reset", "annotations")
	require.NoError(t, err)

	var result ReplayResult
	_, err = env.runJSON(&result, "replay")
	require.NoError(t, err)

	state := env.inspect()
	assert.Equal(t, int(state.LastSeq), result.Events)
	assert.True(t, result.Deterministic)
	assert.True(t, result.Matches)
	assert.Equal(t, state.StateDigest, result.ReplayDigest)
}

func TestReplay_Until(t *testing.T) {
	env := appliedEnv(t)

	var result ReplayResult
	_, err := env.runJSON(&result, "replay", "--until", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Events)
	assert.Equal(t, int64(1), result.Until)
	assert.Empty(t, result.StoreDigest, "prefix replays are not compared")
	assert.True(t, result.Matches)
}

func TestReplay_DetectsUnjournaledChange(t *testing.T) {
	env := appliedEnv(t)
	env.withStore(func(st *store.Store) {
		require.NoError(t, st.SetStyleURL(context.Background(), "mapbox://styles/tampered"))
	})

	var result ReplayResult
	resp, err := env.runJSON(&result, "replay")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeDivergence, resp.Error.Code)
	assert.True(t, result.Deterministic)
	assert.False(t, result.Matches)
}

func TestReplay_DetectsUnretriedFault(t *testing.T) {
	env := newCLIEnv(t)
	env.withStore(func(st *store.Store) { rejectMarkers(t, st) })
	_, err := env.run("apply", writeScene(t, hikingScene))
	require.Error(t, err)

	out, err := env.run("replay")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Replayed state differs from the database")
}
