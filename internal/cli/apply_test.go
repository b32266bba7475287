package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mapsync/internal/store"
)

// withStore opens the env's database directly, for setup the CLI cannot do.
func (e *cliEnv) withStore(fn func(st *store.Store)) {
	e.t.Helper()
	st, err := store.Open(e.db)
	require.NoError(e.t, err)
	defer st.Close()
	fn(st)
}

func rejectMarkers(t *testing.T, st *store.Store) {
	t.Helper()
	_, err := st.DB().Exec(`CREATE TRIGGER reject_markers BEFORE INSERT ON annotations
		BEGIN SELECT RAISE(ABORT, 'marker rejected'); END`)
	require.NoError(t, err)
}

func acceptMarkers(t *testing.T, st *store.Store) {
	t.Helper()
	_, err := st.DB().Exec(`DROP TRIGGER reject_markers`)
	require.NoError(t, err)
}

func TestApply_FreshScene(t *testing.T) {
	env := newCLIEnv(t)
	var result ApplyResult
	resp, err := env.runJSON(&result, "apply", writeScene(t, hikingScene))
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Committed)
	assert.False(t, result.DryRun)
	assert.Empty(t, result.Faults)
	require.NotEmpty(t, result.Events)
	assert.Equal(t, "style", result.Events[0].Action)
	assert.Equal(t, "mapbox://styles/outdoors", result.Events[0].StyleURL)
	assert.Positive(t, result.LastSeq)

	state := env.inspect()
	assert.Equal(t, "mapbox://styles/outdoors", state.StyleURL)
	assert.Equal(t, []string{"mapsync.trail", "mapsync.huts"}, state.Sources)
	require.Len(t, state.Layers, 2)
	assert.Equal(t, LayerInfo{ID: "mapsync.trail-line", Type: "line", Source: "mapsync.trail", Visible: true}, state.Layers[0])
	assert.Equal(t, "mapsync.hut-dots", state.Layers[1].ID)
	assert.Equal(t, 1, state.Annotations)
	assert.Equal(t, 1, state.Registry)
	assert.Equal(t, result.LastSeq, state.LastSeq)
	assert.True(t, state.Committed)
	assert.NotEmpty(t, state.CommittedDigest)
	assert.Len(t, state.StateDigest, 64)
}

func TestApply_SameSceneTwiceIsNoOp(t *testing.T) {
	env := newCLIEnv(t)
	scene := writeScene(t, hikingScene)

	_, err := env.run("apply", scene)
	require.NoError(t, err)
	before := env.inspect()

	out, err := env.run("apply", scene)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to apply")

	after := env.inspect()
	assert.Equal(t, before.LastSeq, after.LastSeq, "no events journaled")
	assert.Equal(t, before.StateDigest, after.StateDigest)
}

func TestApply_DiffAgainstCommittedScene(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run("apply", writeScene(t, hikingScene))
	require.NoError(t, err)

	var result ApplyResult
	_, err = env.runJSON(&result, "apply", writeScene(t, trimmedScene))
	require.NoError(t, err)
	for _, ev := range result.Events {
		assert.NotEqual(t, "style", ev.Action, "style is unchanged")
	}

	state := env.inspect()
	assert.Equal(t, []string{"mapsync.huts"}, state.Sources)
	require.Len(t, state.Layers, 1)
	assert.Equal(t, "mapsync.hut-dots", state.Layers[0].ID)
	assert.Zero(t, state.Annotations)
	assert.Zero(t, state.Registry)
}

func TestApply_DryRunChangesNothing(t *testing.T) {
	env := newCLIEnv(t)
	var result ApplyResult
	_, err := env.runJSON(&result, "apply", "--dry-run", writeScene(t, hikingScene))
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.False(t, result.Committed)
	assert.NotEmpty(t, result.Events)

	state := env.inspect()
	assert.Empty(t, state.Sources)
	assert.Zero(t, state.LastSeq)
	assert.False(t, state.Committed)
}

func TestApply_TextOutput(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run("apply", writeScene(t, trimmedScene))
	require.NoError(t, err)
	assert.Contains(t, out, "Applied")
	assert.Contains(t, out, "style mapbox://styles/outdoors")
	assert.Contains(t, out, "sources add huts")
}

func TestApply_InvalidSceneIsRejected(t *testing.T) {
	env := newCLIEnv(t)
	scene := writeScene(t, `scene: layers: [{id: "l", kind: "circle", source: "nowhere"}]
`)
	_, err := env.run("apply", scene)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.False(t, env.inspect().Committed)
}

func TestApply_FaultKeepsSceneUncommitted(t *testing.T) {
	env := newCLIEnv(t)
	scene := writeScene(t, hikingScene)
	env.withStore(func(st *store.Store) { rejectMarkers(t, st) })

	var result ApplyResult
	resp, err := env.runJSON(&result, "apply", scene)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeEngineFault, resp.Error.Code)
	assert.False(t, result.Committed)
	require.Len(t, result.Faults, 1)
	assert.Contains(t, result.Faults[0], "summit")

	state := env.inspect()
	assert.False(t, state.Committed)
	assert.Len(t, state.Layers, 2, "the rest of the scene was applied")
	assert.Zero(t, state.Annotations)

	// Retrying once the engine accepts markers converges and commits.
	env.withStore(func(st *store.Store) { acceptMarkers(t, st) })
	_, err = env.runJSON(&result, "apply", scene)
	require.NoError(t, err)
	assert.True(t, result.Committed)
	state = env.inspect()
	assert.Equal(t, 1, state.Annotations)
	assert.Len(t, state.Layers, 2)
}
