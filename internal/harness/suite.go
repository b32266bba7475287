package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
	Results  []ScenarioResult  `json:"results"`
}

// ScenarioResult is the outcome of one scenario in a suite.
type ScenarioResult struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Pass        bool   `json:"pass"`
	StateDigest string `json:"state_digest,omitempty"`
}

// ScenarioFailure explains why a scenario in a suite failed.
type ScenarioFailure struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Errors []string `json:"errors"`
}

// FindScenarios returns the scenario files under dir, sorted by path.
// A path naming a single file is returned as is.
func FindScenarios(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scenario path: %w", err)
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// Check inspects a finished scenario and returns extra failure messages,
// such as a golden trace mismatch. A nil Check accepts every result.
type Check func(path string, scenario *Scenario, result *Result) []string

// RunDir loads and runs every scenario under dir.
// The returned error is reserved for an unreadable dir.
func RunDir(ctx context.Context, dir string) (*SuiteResult, error) {
	paths, err := FindScenarios(dir)
	if err != nil {
		return nil, err
	}
	return RunFiles(ctx, paths, nil)
}

// RunFiles loads and runs the scenario files in order.
// A scenario that fails to load or run counts as failed; the suite keeps
// going. Only context cancellation stops it early.
func RunFiles(ctx context.Context, paths []string, check Check) (*SuiteResult, error) {
	suite := &SuiteResult{Results: []ScenarioResult{}}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		suite.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			suite.fail(ScenarioFailure{Path: path, Errors: []string{err.Error()}})
			continue
		}

		result, err := Run(scenario)
		if err != nil {
			suite.fail(ScenarioFailure{Path: path, Name: scenario.Name, Errors: []string{err.Error()}})
			continue
		}

		errs := slices.Clone(result.Errors)
		if check != nil {
			errs = append(errs, check(path, scenario, result)...)
		}
		pass := len(errs) == 0

		suite.Results = append(suite.Results, ScenarioResult{
			Path:        path,
			Name:        scenario.Name,
			Pass:        pass,
			StateDigest: result.StateDigest,
		})
		if pass {
			suite.Passed++
			continue
		}
		suite.fail(ScenarioFailure{Path: path, Name: scenario.Name, Errors: errs})
	}
	return suite, nil
}

func (s *SuiteResult) fail(f ScenarioFailure) {
	s.Failed++
	s.Failures = append(s.Failures, f)
}
