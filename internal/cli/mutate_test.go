package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mapsync/internal/mapengine"
	"github.com/roach88/mapsync/internal/namespace"
	"github.com/roach88/mapsync/internal/store"
)

func appliedEnv(t *testing.T) *cliEnv {
	t.Helper()
	env := newCLIEnv(t)
	_, err := env.run("apply", writeScene(t, hikingScene))
	require.NoError(t, err)
	return env
}

func TestVisibility_HideAndShow(t *testing.T) {
	env := appliedEnv(t)
	before := env.inspect()

	var result MutationResult
	_, err := env.runJSON(&result, "visibility", "hut-dots", "off")
	require.NoError(t, err)
	assert.Equal(t, "visibility", result.Action)
	assert.Equal(t, []string{"hut-dots"}, result.Targets)
	assert.Equal(t, before.LastSeq+1, result.LastSeq)

	state := env.inspect()
	require.Len(t, state.Layers, 2)
	assert.True(t, state.Layers[0].Visible)
	assert.False(t, state.Layers[1].Visible)
	assert.NotEqual(t, before.CommittedDigest, state.CommittedDigest, "committed scene records the change")

	_, err = env.run("visibility", "hut-dots", "on")
	require.NoError(t, err)
	assert.True(t, env.inspect().Layers[1].Visible)
}

func TestVisibility_SurvivesReapplyOnlyUntilSceneSaysOtherwise(t *testing.T) {
	env := appliedEnv(t)
	_, err := env.run("visibility", "trail-line", "off")
	require.NoError(t, err)

	// The scene file still says visible, so apply restores it.
	_, err = env.run("apply", writeScene(t, hikingScene))
	require.NoError(t, err)
	l, ok := layerByID(env.inspect(), "mapsync.trail-line")
	require.True(t, ok)
	assert.True(t, l.Visible)
}

func layerByID(state InspectResult, id string) (LayerInfo, bool) {
	for _, l := range state.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return LayerInfo{}, false
}

func TestVisibility_Errors(t *testing.T) {
	env := appliedEnv(t)

	resp, err := env.runJSON(nil, "visibility", "nope", "off")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknownID, resp.Error.Code)

	_, err = env.run("visibility", "hut-dots", "maybe")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// dropFromEngine removes entities behind mapsync's back, leaving the
// committed scene claiming they exist.
func (e *cliEnv) dropFromEngine(layers []namespace.EngineID, sources []namespace.EngineID) {
	e.t.Helper()
	ctx := context.Background()
	e.withStore(func(st *store.Store) {
		for _, id := range layers {
			require.NoError(e.t, st.RemoveLayer(ctx, id))
		}
		for _, id := range sources {
			require.NoError(e.t, st.RemoveSource(ctx, id))
		}
	})
}

func TestVisibility_LayerMissingFromEngine(t *testing.T) {
	env := appliedEnv(t)
	env.dropFromEngine([]namespace.EngineID{"mapsync.trail-line"}, nil)
	before := env.inspect()

	resp, err := env.runJSON(nil, "visibility", "trail-line", "off")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknownID, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "not found in the engine")

	after := env.inspect()
	assert.Equal(t, before.LastSeq, after.LastSeq, "nothing journaled")
	assert.Equal(t, before.CommittedDigest, after.CommittedDigest, "nothing committed")

	// The committed scene still lists the layer, so a plain apply is a no-op;
	// resetting the layers first lets apply draw them again.
	_, err = env.run("reset", "layers")
	require.NoError(t, err)
	_, err = env.run("apply", writeScene(t, hikingScene))
	require.NoError(t, err)
	_, err = env.run("visibility", "trail-line", "off")
	require.NoError(t, err)
	l, ok := layerByID(env.inspect(), "mapsync.trail-line")
	require.True(t, ok)
	assert.False(t, l.Visible)
}

func TestShape_SourceMissingFromEngine(t *testing.T) {
	env := appliedEnv(t)
	env.dropFromEngine([]namespace.EngineID{"mapsync.hut-dots"}, []namespace.EngineID{"mapsync.huts"})
	before := env.inspect()

	resp, err := env.runJSON(nil, "shape", "huts")
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknownID, resp.Error.Code)

	after := env.inspect()
	assert.Equal(t, before.LastSeq, after.LastSeq)
	assert.Equal(t, before.CommittedDigest, after.CommittedDigest)
}

func TestShape_FromGeoJSONFile(t *testing.T) {
	env := appliedEnv(t)
	path := filepath.Join(t.TempDir(), "hut.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"Point","coordinates":[7.02,46.01]}`), 0o644))

	_, err := env.run("shape", "huts", path)
	require.NoError(t, err)

	out, err := env.run("inspect", "--geojson")
	require.NoError(t, err)
	assert.Contains(t, out, `"id":"huts"`)
	assert.Contains(t, out, "[7.02,46.01]")
	assert.Contains(t, out, `"id":"trail"`)
}

func TestShape_FromStdinAndClear(t *testing.T) {
	env := appliedEnv(t)
	before := env.inspect().StateDigest

	cmd := NewRootCommand()
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	cmd.SetIn(strings.NewReader(`{"type":"Feature","geometry":{"type":"Point","coordinates":[7,46]},"properties":{}}`))
	cmd.SetArgs([]string{"--db", env.db, "--config", env.config, "shape", "huts", "-"})
	require.NoError(t, cmd.Execute())
	assert.NotEqual(t, before, env.inspect().StateDigest)

	_, err := env.run("shape", "huts")
	require.NoError(t, err)
	assert.Equal(t, before, env.inspect().StateDigest, "clearing restores the shapeless source")
}

func TestShape_Errors(t *testing.T) {
	env := appliedEnv(t)

	resp, err := env.runJSON(nil, "shape", "nope")
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknownID, resp.Error.Code)

	resp, err = env.runJSON(nil, "shape", "huts", filepath.Join(t.TempDir(), "absent.geojson"))
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeReadFailed, resp.Error.Code)

	bad := filepath.Join(t.TempDir(), "bad.geojson")
	require.NoError(t, os.WriteFile(bad, []byte(`{"coordinates":[]}`), 0o644))
	resp, err = env.runJSON(nil, "shape", "huts", bad)
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCompile, resp.Error.Code)
}

func TestReset_Collections(t *testing.T) {
	env := appliedEnv(t)

	_, err := env.run("reset", "annotations")
	require.NoError(t, err)
	state := env.inspect()
	assert.Zero(t, state.Annotations)
	assert.Zero(t, state.Registry)
	assert.Len(t, state.Layers, 2)

	_, err = env.run("reset", "all")
	require.NoError(t, err)
	state = env.inspect()
	assert.Empty(t, state.Sources)
	assert.Empty(t, state.Layers)
	assert.Equal(t, "mapbox://styles/outdoors", state.StyleURL, "style is not a collection")

	// The committed scene was cleared too, so apply brings everything back.
	var result ApplyResult
	_, err = env.runJSON(&result, "apply", writeScene(t, hikingScene))
	require.NoError(t, err)
	state = env.inspect()
	assert.Len(t, state.Sources, 2)
	assert.Len(t, state.Layers, 2)
	assert.Equal(t, 1, state.Annotations)
}

func TestReset_UnknownCollection(t *testing.T) {
	env := appliedEnv(t)
	_, err := env.run("reset", "styles")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInspect_OwnershipAndRegistry(t *testing.T) {
	env := appliedEnv(t)
	env.withStore(func(st *store.Store) {
		require.NoError(t, st.AddLayer(context.Background(), mapengine.NativeLayer{ID: "hillshade", Type: "raster", SourceID: "dem", Visible: true}))
	})

	state := env.inspect()
	trail, ok := layerByID(state, "mapsync.trail-line")
	require.True(t, ok)
	assert.Equal(t, "trail-line", trail.LogicalID)
	foreign, ok := layerByID(state, "hillshade")
	require.True(t, ok)
	assert.Empty(t, foreign.LogicalID)
	assert.Equal(t, []string{"summit"}, state.Registered)

	out, err := env.run("--format", "text", "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "hillshade (raster on dem, visible, foreign)")
	assert.Contains(t, out, "  summit\n")
}
