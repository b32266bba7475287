package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// cliEnv runs commands against a database and config in a temp dir.
type cliEnv struct {
	t      *testing.T
	dir    string
	db     string
	config string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	return &cliEnv{
		t:      t,
		dir:    dir,
		db:     filepath.Join(dir, "state.db"),
		config: filepath.Join(dir, "mapsync.toml"),
	}
}

// run executes the root command and returns stdout.
func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", e.db, "--config", e.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// jsonResponse is CLIResponse with the payload left undecoded.
type jsonResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

// runJSON executes a command with --format json and decodes its data
// into v when v is non-nil.
func (e *cliEnv) runJSON(v any, args ...string) (jsonResponse, error) {
	e.t.Helper()
	out, err := e.run(append([]string{"--format", "json"}, args...)...)
	var resp jsonResponse
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if v != nil && len(resp.Data) > 0 {
		require.NoError(e.t, json.Unmarshal(resp.Data, v))
	}
	return resp, err
}

func (e *cliEnv) inspect() InspectResult {
	e.t.Helper()
	var r InspectResult
	_, err := e.runJSON(&r, "inspect")
	require.NoError(e.t, err)
	return r
}

// writeScene writes body as the only CUE file of a new scene directory.
func writeScene(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.cue"), []byte("package scene\n\n"+body), 0o644))
	return dir
}

const hikingScene = `scene: {
	style_url: "mapbox://styles/outdoors"
	sources: [
		{id: "trail", shape: {type: "LineString", coordinates: [[46.0, 7.0], [46.1, 7.1]]}},
		{id: "huts"},
	]
	layers: [
		{id: "trail-line", kind: "line", source: "trail", paint: {width: 2, cap: "round"}},
		{id: "hut-dots", kind: "circle", source: "huts", paint: {radius: 6}},
	]
	annotations: [
		{id: "summit", kind: "point", title: "Summit", coordinate: [46.05, 7.05]},
	]
}
`

const trimmedScene = `scene: {
	style_url: "mapbox://styles/outdoors"
	sources: [{id: "huts"}]
	layers: [{id: "hut-dots", kind: "circle", source: "huts", paint: {radius: 6}}]
}
`
