package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDir_Testdata(t *testing.T) {
	suite, err := RunDir(context.Background(), "testdata/scenarios")
	require.NoError(t, err)

	assert.Equal(t, suite.Total, suite.Passed, "failures: %+v", suite.Failures)
	assert.Zero(t, suite.Failed)
	assert.GreaterOrEqual(t, suite.Total, 3)
	for _, r := range suite.Results {
		assert.NotEmpty(t, r.StateDigest, r.Path)
	}
}

func TestRunDir_CollectsFailures(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("a_pass.yaml", `
name: pass
description: passes
steps: [{ action: style, url: "mapbox://styles/a" }]
assertions: [{ type: style_url, value: "mapbox://styles/a" }]
`)
	write("b_fail.yml", `
name: fail
description: fails
steps: [{ action: style, url: "mapbox://styles/a" }]
assertions: [{ type: style_url, value: "mapbox://styles/b" }]
`)
	write("c_broken.yaml", "name: broken\n")
	write("notes.txt", "not a scenario")

	suite, err := RunDir(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, suite.Total)
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 2, suite.Failed)
	require.Len(t, suite.Failures, 2)
	assert.Equal(t, "fail", suite.Failures[0].Name)
	assert.Contains(t, suite.Failures[1].Errors[0], "description is required")
}

func TestFindScenarios_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.yaml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	paths, err := FindScenarios(path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, paths)
}

func TestRunDir_MissingDir(t *testing.T) {
	_, err := RunDir(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestRunFiles_CheckAddsFailures(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	var seen []string
	suite, err := RunFiles(context.Background(), paths[:1], func(path string, s *Scenario, r *Result) []string {
		seen = append(seen, s.Name)
		return []string{"golden mismatch"}
	})
	require.NoError(t, err)

	assert.Len(t, seen, 1)
	assert.Equal(t, 1, suite.Failed)
	assert.False(t, suite.Results[0].Pass)
	assert.Equal(t, []string{"golden mismatch"}, suite.Failures[0].Errors)
}

func TestRunFiles_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunFiles(ctx, []string{"testdata/scenarios/bind_and_rebind.yaml"}, nil)
	require.ErrorIs(t, err, context.Canceled)
}
