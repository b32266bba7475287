package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mapsync/internal/compiler"
)

func TestValidate_ValidScene(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run("validate", writeScene(t, hikingScene))
	require.NoError(t, err)
	assert.Contains(t, out, "Scene is valid: 2 source(s), 2 layer(s), 1 annotation(s)")
}

func TestValidate_ValidSceneJSON(t *testing.T) {
	env := newCLIEnv(t)
	var result ValidationResult
	resp, err := env.runJSON(&result, "validate", writeScene(t, hikingScene))
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.Sources)
	assert.Equal(t, 2, result.Layers)
	assert.Equal(t, 1, result.Annotations)
}

func TestValidate_ReportsEveryError(t *testing.T) {
	env := newCLIEnv(t)
	scene := writeScene(t, `scene: {
	sources: [{id: "a"}, {id: "a"}]
	layers: [{id: "l", kind: "circle", source: "missing", paint: {opacity: 2}}]
}
`)
	var result ValidationResult
	resp, err := env.runJSON(&result, "validate", scene)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))

	assert.Equal(t, "error", resp.Status)
	assert.False(t, result.Valid)
	var codes []string
	for _, e := range result.Errors {
		codes = append(codes, e.Code)
	}
	assert.Equal(t, []string{compiler.ErrDuplicateID, compiler.ErrUnknownSource, compiler.ErrOpacityRange}, codes)
}

func TestValidate_TextErrors(t *testing.T) {
	env := newCLIEnv(t)
	scene := writeScene(t, `scene: annotations: [{id: "p", kind: "point", coordinate: [95.0, 7.0]}]
`)
	out, err := env.run("validate", scene)
	require.Error(t, err)
	assert.Contains(t, out, "Validation failed with 1 error(s)")
	assert.Contains(t, out, compiler.ErrCoordinateRange)
}

func TestValidate_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		dir  func(t *testing.T) string
		code string
	}{
		{
			name: "missing directory",
			dir:  func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent") },
			code: ErrCodeNotFound,
		},
		{
			name: "no cue files",
			dir:  func(t *testing.T) string { return t.TempDir() },
			code: ErrCodeNoFiles,
		},
		{
			name: "no scene value",
			dir:  func(t *testing.T) string { return writeScene(t, "other: 1\n") },
			code: ErrCodeNoScene,
		},
		{
			name: "does not compile",
			dir:  func(t *testing.T) string { return writeScene(t, `scene: sources: [{shape: 1}]` + "\n") },
			code: ErrCodeCompile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t)
			resp, err := env.runJSON(nil, "validate", tt.dir(t))
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestValidate_SingleFile(t *testing.T) {
	dir := writeScene(t, trimmedScene)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.cue"), []byte("package scene\n\nscene: sources: [{id: \"x\"}, {id: \"x\"}]\n"), 0o644))

	env := newCLIEnv(t)
	var result ValidationResult
	_, err := env.runJSON(&result, "validate", filepath.Join(dir, "scene.cue"))
	require.NoError(t, err, "other.cue is not part of a single-file load")
	assert.Equal(t, 1, result.Sources)
}

func TestFindCUEFiles_SkipsModuleAndHiddenDirs(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{"scene.cue", "parts/layers.cue", "cue.mod/module.cue", ".cache/x.cue", "notes.txt"} {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "scene.cue"), filepath.Join(dir, "parts", "layers.cue")}, files)
}
